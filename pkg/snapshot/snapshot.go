// Package snapshot persists point-in-time captures of device running
// configuration, keyed by device name and tag.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/newtron-network/netchange/pkg/settings"
	"github.com/newtron-network/netchange/pkg/util"
)

// Tag marks when a snapshot was captured relative to a change.
type Tag string

const (
	Pre  Tag = "pre"
	Post Tag = "post"
)

// ParseTag validates a tag name.
func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case Pre, Post:
		return Tag(s), nil
	}
	return "", fmt.Errorf("unknown snapshot tag %q (want pre or post): %w", s, util.ErrInvalidConfig)
}

// Snapshot is a captured running configuration.
type Snapshot struct {
	Device     string    `json:"device"`
	Tag        Tag       `json:"tag"`
	Content    string    `json:"content"`
	CapturedAt time.Time `json:"captured_at"`
}

// Key is the "<device>_<tag>" name used for artifacts and labels.
func (s *Snapshot) Key() string {
	return fmt.Sprintf("%s_%s", s.Device, s.Tag)
}

// New stamps a snapshot with the current time.
func New(device string, tag Tag, content string) *Snapshot {
	return &Snapshot{Device: device, Tag: tag, Content: content, CapturedAt: time.Now()}
}

// Store persists snapshots. A later Save with the same device and tag
// overwrites the earlier one. Load returns an error wrapping
// util.ErrNotFound when nothing is stored under the key.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, device string, tag Tag) (*Snapshot, error)
	List(ctx context.Context) ([]*Snapshot, error)
	Close() error
}

// Open builds the store selected by the settings backend.
func Open(s *settings.Settings) (Store, error) {
	switch s.GetStoreBackend() {
	case "file":
		return NewFileStore(s.GetBackupDir())
	case "redis":
		if s.RedisAddr == "" {
			return nil, fmt.Errorf("redis store requires redis_addr: %w", util.ErrInvalidConfig)
		}
		st := NewRedisStore(s.RedisAddr, s.RedisDB)
		if err := st.Connect(context.Background()); err != nil {
			st.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", s.RedisAddr, err)
		}
		return st, nil
	case "bolt":
		return NewBoltStore(s.GetBoltPath())
	default:
		return nil, fmt.Errorf("unknown store backend %q: %w", s.StoreBackend, util.ErrInvalidConfig)
	}
}

func notFound(device string, tag Tag) error {
	return fmt.Errorf("snapshot %s_%s: %w", device, tag, util.ErrNotFound)
}
