package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/aicli/config"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	return mock, gormDB
}

func TestNewPoolManager(t *testing.T) {
	_, gormDB := setupMockDB(t)

	cfg := PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour}
	pm, err := NewPoolManager(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Same(t, gormDB, pm.DB())
	assert.Equal(t, cfg, pm.config)
	assert.Equal(t, 10, pm.GetStats().MaxOpenConnections)
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), nil)
	assert.Error(t, err)
}

func TestPoolManager_Ping(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	pm, err := NewPoolManager(gormDB, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, pm.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_Close(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	pm, err := NewPoolManager(gormDB, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, pm.Close())
	require.NoError(t, pm.Close())

	assert.ErrorIs(t, pm.Ping(context.Background()), ErrPoolClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_HealthCheckStopsOnClose(t *testing.T) {
	_, gormDB := setupMockDB(t)
	cfg := DefaultPoolConfig()
	cfg.HealthCheckInterval = 5 * time.Millisecond

	pm, err := NewPoolManager(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_ = pm.Close()
	select {
	case <-pm.stop:
	default:
		t.Fatal("stop channel should be closed")
	}
}

// =============================================================================
// 🧪 Open 测试
// =============================================================================

func TestDialector(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		dialect string
		wantErr bool
	}{
		{name: "postgres", cfg: config.DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432}, dialect: "postgres"},
		{name: "mysql", cfg: config.DatabaseConfig{Driver: "mysql", Host: "localhost", Port: 3306}, dialect: "mysql"},
		{name: "sqlite", cfg: config.DatabaseConfig{Driver: "sqlite", Name: "x.db"}, dialect: "sqlite"},
		{name: "sqlite without path", cfg: config.DatabaseConfig{Driver: "sqlite"}, wantErr: true},
		{name: "unknown", cfg: config.DatabaseConfig{Driver: "oracle"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Dialector(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, d.Name())
		})
	}
}

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "aicli.db")
	pm, err := Open(config.DatabaseConfig{Driver: "sqlite", Name: path, MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Close() })

	require.NoError(t, pm.Ping(context.Background()))
	assert.Equal(t, 1, pm.GetStats().MaxOpenConnections)
	assert.FileExists(t, path)
}

func TestPoolConfigFrom(t *testing.T) {
	pc := PoolConfigFrom(config.DatabaseConfig{MaxIdleConns: 7})
	assert.Equal(t, 7, pc.MaxIdleConns)
	assert.Equal(t, DefaultPoolConfig().MaxOpenConns, pc.MaxOpenConns)
	assert.Equal(t, time.Hour, pc.ConnMaxLifetime)
}
