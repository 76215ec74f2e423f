package plugins

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true, Logger: logger.Discard})
	require.NoError(t, err)
	return mock, db
}

func TestFileStateStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileStateStore(filepath.Join(t.TempDir(), "state", "plugins.yaml"))

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "missing file is an empty configuration")

	require.NoError(t, store.Save(ctx, "logging", PluginConfig{Enabled: true, Priority: 100}))
	require.NoError(t, store.Save(ctx, "cache", PluginConfig{Enabled: false, Priority: 50, Settings: map[string]any{"ttl": 60}}))
	require.NoError(t, store.Save(ctx, "logging", PluginConfig{Enabled: true, Priority: 10}))

	entries, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 10, *entries["logging"].Priority)
	assert.False(t, *entries["cache"].Enabled)
	assert.Equal(t, 60, entries["cache"].Settings["ttl"])
}

func TestGormStateStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewGormStateStore(setupSQLiteDB(t))
	require.NoError(t, err)

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Save(ctx, "cache", PluginConfig{Enabled: true, Priority: 50, Settings: map[string]any{"ttl": 60}}))
	require.NoError(t, store.Save(ctx, "logging", PluginConfig{Enabled: false, Priority: 100}))
	require.NoError(t, store.Save(ctx, "cache", PluginConfig{Enabled: false, Priority: 5}))

	entries, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, *entries["cache"].Enabled)
	assert.Equal(t, 5, *entries["cache"].Priority)
	assert.Empty(t, entries["cache"].Settings, "upsert replaces settings")
	assert.False(t, *entries["logging"].Enabled)
	assert.Equal(t, 100, *entries["logging"].Priority)
}

func TestGormStateStore_WithManager(t *testing.T) {
	ctx := context.Background()
	store, err := NewGormStateStore(setupSQLiteDB(t))
	require.NoError(t, err)

	m := NewManager(WithStateStore(store))
	require.NoError(t, m.Register(newRequestPlugin("p", nil)))
	require.NoError(t, m.SetPriority(ctx, "p", 42))

	next := NewManager(WithStateStore(store))
	require.NoError(t, next.LoadConfig(ctx))
	require.NoError(t, next.Register(newRequestPlugin("p", nil)))
	info, err := next.Registry().Info("p")
	require.NoError(t, err)
	assert.Equal(t, 42, info.Config.Priority)
}

func TestGormStateStore_DatabaseErrors(t *testing.T) {
	mock, db := setupMockDB(t)
	store := &GormStateStore{db: db}
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "plugin_settings"`).WillReturnError(errors.New("connection reset"))
	_, err := store.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query plugin settings")

	mock.ExpectExec(`INSERT INTO "plugin_settings"`).WillReturnError(errors.New("connection reset"))
	err = store.Save(ctx, "p", DefaultPluginConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save plugin p settings")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStateStore_CorruptSettings(t *testing.T) {
	db := setupSQLiteDB(t)
	store, err := NewGormStateStore(db)
	require.NoError(t, err)
	require.NoError(t, db.Create(&PluginSetting{Name: "p", Enabled: true, Settings: "{not json"}).Error)

	_, err = store.Load(context.Background())
	assert.ErrorContains(t, err, "decode settings of plugin p")
}

func TestNewGormStateStore_NilDB(t *testing.T) {
	_, err := NewGormStateStore(nil)
	assert.Error(t, err)
}
