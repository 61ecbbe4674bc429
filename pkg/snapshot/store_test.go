package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newtron-network/netchange/pkg/settings"
	"github.com/newtron-network/netchange/pkg/util"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := st.Load(ctx, "S1", Pre); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("Load() before Save error = %v, want ErrNotFound", err)
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	content := "hostname S1\ninterfaces {\n    ge-0/0/0;\n}\n"
	if err := st.Save(ctx, &Snapshot{Device: "S1", Tag: Pre, Content: content, CapturedAt: at}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := st.Load(ctx, "S1", Pre)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Content != content {
		t.Errorf("Content = %q, want %q", got.Content, content)
	}
	if !got.CapturedAt.Equal(at) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, at)
	}

	// same key overwrites
	if err := st.Save(ctx, &Snapshot{Device: "S1", Tag: Pre, Content: "v2", CapturedAt: at}); err != nil {
		t.Fatalf("Save() overwrite failed: %v", err)
	}
	if got, _ := st.Load(ctx, "S1", Pre); got == nil || got.Content != "v2" {
		t.Errorf("overwrite not visible: %+v", got)
	}

	if err := st.Save(ctx, New("S1", Post, "post")); err != nil {
		t.Fatalf("Save(post) failed: %v", err)
	}
	if err := st.Save(ctx, New("R1", Pre, "router")); err != nil {
		t.Fatalf("Save(R1) failed: %v", err)
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	var keys []string
	for _, s := range list {
		keys = append(keys, s.Key())
	}
	want := []string{"R1_pre", "S1_pre", "S1_post"}
	if len(keys) != len(want) {
		t.Fatalf("List() keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	defer st.Close()
	exerciseStore(t, st)

	// artifacts follow <name>_<tag>.cfg
	if _, err := os.Stat(filepath.Join(dir, "S1_pre.cfg")); err != nil {
		t.Errorf("S1_pre.cfg not written: %v", err)
	}
}

func TestFileStore_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewFileStore(dir)
	for _, name := range []string{"notes.txt", "S1_old.cfg", "_pre.cfg"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}
	os.WriteFile(filepath.Join(dir, "core_sw_1_pre.cfg"), []byte("x"), 0644)

	list, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 1 || list[0].Device != "core_sw_1" || list[0].Tag != Pre {
		t.Errorf("List() = %+v, want only core_sw_1 pre", list)
	}
}

func TestBoltStore(t *testing.T) {
	st, err := NewBoltStore(filepath.Join(t.TempDir(), "db", "snapshots.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() failed: %v", err)
	}
	defer st.Close()
	exerciseStore(t, st)
}

func TestParseTag(t *testing.T) {
	for _, s := range []string{"pre", "post"} {
		if _, err := ParseTag(s); err != nil {
			t.Errorf("ParseTag(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseTag("mid"); err == nil {
		t.Error("ParseTag(mid) should fail")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(&settings.Settings{BackupDir: dir})
	if err != nil {
		t.Fatalf("Open(file) failed: %v", err)
	}
	if _, ok := st.(*FileStore); !ok {
		t.Errorf("Open(file) = %T, want *FileStore", st)
	}

	st, err = Open(&settings.Settings{StoreBackend: "bolt", BackupDir: dir})
	if err != nil {
		t.Fatalf("Open(bolt) failed: %v", err)
	}
	if _, ok := st.(*BoltStore); !ok {
		t.Errorf("Open(bolt) = %T, want *BoltStore", st)
	}
	st.Close()

	if _, err := Open(&settings.Settings{StoreBackend: "redis"}); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Open(redis) without addr error = %v, want ErrInvalidConfig", err)
	}
	if _, err := Open(&settings.Settings{StoreBackend: "s3"}); err == nil {
		t.Error("Open(s3) should fail")
	}
}
