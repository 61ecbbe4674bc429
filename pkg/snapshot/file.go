package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore writes one <device>_<tag>.cfg file per snapshot.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating backup dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the artifact path for a device and tag.
func (f *FileStore) Path(device string, tag Tag) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_%s.cfg", device, tag))
}

func (f *FileStore) Save(_ context.Context, snap *Snapshot) error {
	path := f.Path(snap.Device, snap.Tag)
	if err := os.WriteFile(path, []byte(snap.Content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if !snap.CapturedAt.IsZero() {
		// mtime carries the capture time so Load can return it
		_ = os.Chtimes(path, snap.CapturedAt, snap.CapturedAt)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, device string, tag Tag) (*Snapshot, error) {
	path := f.Path(device, tag)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(device, tag)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	snap := &Snapshot{Device: device, Tag: tag, Content: string(data)}
	if info, err := os.Stat(path); err == nil {
		snap.CapturedAt = info.ModTime()
	}
	return snap, nil
}

// List returns metadata for every artifact in the directory, sorted by
// device then tag. Content is not loaded.
func (f *FileStore) List(_ context.Context) ([]*Snapshot, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []*Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cfg") {
			continue
		}
		device, tag, ok := splitArtifactName(strings.TrimSuffix(e.Name(), ".cfg"))
		if !ok {
			continue
		}
		snap := &Snapshot{Device: device, Tag: tag}
		if info, err := e.Info(); err == nil {
			snap.CapturedAt = info.ModTime()
		}
		out = append(out, snap)
	}
	sortSnapshots(out)
	return out, nil
}

func (f *FileStore) Close() error { return nil }

func splitArtifactName(base string) (string, Tag, bool) {
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return "", "", false
	}
	tag, err := ParseTag(base[idx+1:])
	if err != nil {
		return "", "", false
	}
	return base[:idx], tag, true
}

func sortSnapshots(s []*Snapshot) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Device != s[j].Device {
			return s[i].Device < s[j].Device
		}
		return s[i].Tag > s[j].Tag // pre before post
	})
}
