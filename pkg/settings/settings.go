// Package settings manages persistent user settings for the netchange CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Defaults applied by the getters when a field is unset.
const (
	DefaultInventory         = "devices.yaml"
	DefaultBackupDir         = "backup"
	DefaultStoreBackend      = "file"
	DefaultSwitchChangeset   = "vlan.cfg"
	DefaultRouterChangeset   = "loopback.cfg"
	DefaultRollbackChangeset = "rollback_vlan.cfg"
	DefaultPolicy            = "policy.yaml"
	DefaultCallTimeout       = 30 * time.Second
	DefaultMQTTTopicPrefix   = "netchange"
)

// Settings holds persistent user preferences
type Settings struct {
	// Inventory is the devices.yaml used when --inventory is not given
	Inventory string `json:"inventory,omitempty"`

	// BackupDir is where the file store writes <name>_<tag>.cfg snapshots
	BackupDir string `json:"backup_dir,omitempty"`

	// StoreBackend selects the snapshot store: file, redis or bolt
	StoreBackend string `json:"store_backend,omitempty"`
	RedisAddr    string `json:"redis_addr,omitempty"`
	RedisDB      int    `json:"redis_db,omitempty"`
	BoltPath     string `json:"bolt_path,omitempty"`

	// Changeset files per role, and the partial-rollback changeset
	SwitchChangeset   string `json:"switch_changeset,omitempty"`
	RouterChangeset   string `json:"router_changeset,omitempty"`
	RollbackChangeset string `json:"rollback_changeset,omitempty"`

	// Policy is the verification policy file
	Policy string `json:"policy,omitempty"`

	// CallTimeoutSeconds bounds every individual device call
	CallTimeoutSeconds int `json:"call_timeout_seconds,omitempty"`

	AuditLogPath    string `json:"audit_log_path,omitempty"`
	AuditMaxSizeMB  int    `json:"audit_max_size_mb,omitempty"`
	AuditMaxBackups int    `json:"audit_max_backups,omitempty"`

	// MQTT outcome notifications (disabled when broker is empty)
	MQTTBroker      string `json:"mqtt_broker,omitempty"`
	MQTTTopicPrefix string `json:"mqtt_topic_prefix,omitempty"`

	// MetricsTextfile is a node-exporter textfile path; empty disables export
	MetricsTextfile string `json:"metrics_textfile,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	if p := os.Getenv("NETCHANGE_SETTINGS"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "netchange_settings.json"
	}
	return filepath.Join(home, ".netchange", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// GetInventory returns the inventory path (with fallback)
func (s *Settings) GetInventory() string { return orDefault(s.Inventory, DefaultInventory) }

// GetBackupDir returns the snapshot directory (with fallback)
func (s *Settings) GetBackupDir() string { return orDefault(s.BackupDir, DefaultBackupDir) }

// GetStoreBackend returns the snapshot store backend (with fallback)
func (s *Settings) GetStoreBackend() string { return orDefault(s.StoreBackend, DefaultStoreBackend) }

// GetBoltPath returns the bolt database path, defaulting to a file in the backup dir
func (s *Settings) GetBoltPath() string {
	return orDefault(s.BoltPath, filepath.Join(s.GetBackupDir(), "snapshots.db"))
}

// GetSwitchChangeset returns the switch-role changeset file (with fallback)
func (s *Settings) GetSwitchChangeset() string {
	return orDefault(s.SwitchChangeset, DefaultSwitchChangeset)
}

// GetRouterChangeset returns the router-role changeset file (with fallback)
func (s *Settings) GetRouterChangeset() string {
	return orDefault(s.RouterChangeset, DefaultRouterChangeset)
}

// GetRollbackChangeset returns the partial rollback changeset file (with fallback)
func (s *Settings) GetRollbackChangeset() string {
	return orDefault(s.RollbackChangeset, DefaultRollbackChangeset)
}

// GetPolicy returns the verification policy path (with fallback)
func (s *Settings) GetPolicy() string { return orDefault(s.Policy, DefaultPolicy) }

// GetAuditLogPath returns the audit log path, defaulting to the backup dir
func (s *Settings) GetAuditLogPath() string {
	return orDefault(s.AuditLogPath, filepath.Join(s.GetBackupDir(), "audit.log"))
}

// GetMQTTTopicPrefix returns the MQTT topic prefix (with fallback)
func (s *Settings) GetMQTTTopicPrefix() string {
	return orDefault(s.MQTTTopicPrefix, DefaultMQTTTopicPrefix)
}

// CallTimeout returns the per-call device timeout
func (s *Settings) CallTimeout() time.Duration {
	if s.CallTimeoutSeconds > 0 {
		return time.Duration(s.CallTimeoutSeconds) * time.Second
	}
	return DefaultCallTimeout
}

// field binds a settings key to its accessors for the settings CLI.
type field struct {
	get func(s *Settings) string
	set func(s *Settings, v string) error
}

func stringField(p func(s *Settings) *string) field {
	return field{
		get: func(s *Settings) string { return *p(s) },
		set: func(s *Settings, v string) error { *p(s) = v; return nil },
	}
}

func intField(p func(s *Settings) *int) field {
	return field{
		get: func(s *Settings) string {
			if *p(s) == 0 {
				return ""
			}
			return strconv.Itoa(*p(s))
		},
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("expected a non-negative integer, got %q", v)
			}
			*p(s) = n
			return nil
		},
	}
}

var fields = map[string]field{
	"inventory":            stringField(func(s *Settings) *string { return &s.Inventory }),
	"backup_dir":           stringField(func(s *Settings) *string { return &s.BackupDir }),
	"store_backend":        {get: func(s *Settings) string { return s.StoreBackend }, set: setBackend},
	"redis_addr":           stringField(func(s *Settings) *string { return &s.RedisAddr }),
	"redis_db":             intField(func(s *Settings) *int { return &s.RedisDB }),
	"bolt_path":            stringField(func(s *Settings) *string { return &s.BoltPath }),
	"switch_changeset":     stringField(func(s *Settings) *string { return &s.SwitchChangeset }),
	"router_changeset":     stringField(func(s *Settings) *string { return &s.RouterChangeset }),
	"rollback_changeset":   stringField(func(s *Settings) *string { return &s.RollbackChangeset }),
	"policy":               stringField(func(s *Settings) *string { return &s.Policy }),
	"call_timeout_seconds": intField(func(s *Settings) *int { return &s.CallTimeoutSeconds }),
	"audit_log_path":       stringField(func(s *Settings) *string { return &s.AuditLogPath }),
	"audit_max_size_mb":    intField(func(s *Settings) *int { return &s.AuditMaxSizeMB }),
	"audit_max_backups":    intField(func(s *Settings) *int { return &s.AuditMaxBackups }),
	"mqtt_broker":          stringField(func(s *Settings) *string { return &s.MQTTBroker }),
	"mqtt_topic_prefix":    stringField(func(s *Settings) *string { return &s.MQTTTopicPrefix }),
	"metrics_textfile":     stringField(func(s *Settings) *string { return &s.MetricsTextfile }),
}

func setBackend(s *Settings, v string) error {
	switch v {
	case "file", "redis", "bolt":
		s.StoreBackend = v
		return nil
	}
	return fmt.Errorf("store_backend must be file, redis or bolt, got %q", v)
}

// Keys returns all settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw (non-defaulted) value of a setting key.
func (s *Settings) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown setting: %s", key)
	}
	return f.get(s), nil
}

// Set assigns a setting key from its string form.
func (s *Settings) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown setting: %s", key)
	}
	if err := f.set(s, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}
