package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateStore persists plugin configuration across runs.
type StateStore interface {
	// Load returns every stored entry keyed by plugin name.
	Load(ctx context.Context) (map[string]ConfigEntry, error)
	// Save stores the configuration of one plugin, keeping the other entries.
	Save(ctx context.Context, name string, cfg PluginConfig) error
}

// FileStateStore keeps plugin configuration in a YAML or JSON file.
// A missing file is an empty configuration.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStateStore creates a store backed by path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Path returns the backing file.
func (s *FileStateStore) Path() string { return s.path }

// Load implements StateStore.
func (s *FileStateStore) Load(_ context.Context) (map[string]ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save implements StateStore.
func (s *FileStateStore) Save(_ context.Context, name string, cfg PluginConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	entries[name] = EntryFromConfig(cfg)
	return WriteConfigFile(s.path, entries)
}

func (s *FileStateStore) loadLocked() (map[string]ConfigEntry, error) {
	entries, err := LoadConfigFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]ConfigEntry), nil
	}
	return entries, err
}

// PluginSetting is the database row of one plugin's configuration.
type PluginSetting struct {
	Name      string `gorm:"primaryKey;size:128"`
	Enabled   bool   `gorm:"not null"`
	Priority  int    `gorm:"not null"`
	Settings  string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName implements gorm's tabler.
func (PluginSetting) TableName() string { return "plugin_settings" }

// GormStateStore keeps plugin configuration in a SQL database.
type GormStateStore struct {
	db *gorm.DB
}

// NewGormStateStore creates a store and migrates its table.
func NewGormStateStore(db *gorm.DB) (*GormStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.AutoMigrate(&PluginSetting{}); err != nil {
		return nil, fmt.Errorf("migrate plugin_settings: %w", err)
	}
	return &GormStateStore{db: db}, nil
}

// Load implements StateStore.
func (s *GormStateStore) Load(ctx context.Context) (map[string]ConfigEntry, error) {
	var rows []PluginSetting
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query plugin settings: %w", err)
	}

	entries := make(map[string]ConfigEntry, len(rows))
	for _, row := range rows {
		enabled, priority := row.Enabled, row.Priority
		entry := ConfigEntry{Enabled: &enabled, Priority: &priority}
		if row.Settings != "" {
			if err := json.Unmarshal([]byte(row.Settings), &entry.Settings); err != nil {
				return nil, fmt.Errorf("decode settings of plugin %s: %w", row.Name, err)
			}
		}
		entries[row.Name] = entry
	}
	return entries, nil
}

// Save implements StateStore.
func (s *GormStateStore) Save(ctx context.Context, name string, cfg PluginConfig) error {
	row := PluginSetting{
		Name:     name,
		Enabled:  cfg.Enabled,
		Priority: cfg.Priority,
	}
	if len(cfg.Settings) > 0 {
		data, err := json.Marshal(cfg.Settings)
		if err != nil {
			return fmt.Errorf("encode settings of plugin %s: %w", name, err)
		}
		row.Settings = string(data)
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "priority", "settings", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save plugin %s settings: %w", name, err)
	}
	return nil
}
