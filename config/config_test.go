package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hnhuaxi/xdal/provider/memory"
	"github.com/hnhuaxi/xdal/repository/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (s Setting) GetID() string { return s.Key }

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, "xdal", cfg.Name)
	assert.Equal(t, "silent", cfg.Options.LogLevel)
	assert.Equal(t, 200*time.Millisecond, cfg.Options.SlowThreshold)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
driver: MySQL
dsn: shop:secret@tcp(127.0.0.1:3306)/orders
options:
  log_level: warn
  slow_threshold: 1s
  max_open_conns: 4
  disable_auto_migrate: true
`))
	require.NoError(t, err)

	assert.Equal(t, DriverMysql, cfg.Driver)
	assert.Equal(t, "shop:secret@tcp(127.0.0.1:3306)/orders", cfg.DSN)
	assert.Equal(t, "warn", cfg.Options.LogLevel)
	assert.Equal(t, time.Second, cfg.Options.SlowThreshold)
	assert.Equal(t, 4, cfg.Options.MaxOpenConns)
	assert.True(t, cfg.Options.DisableAutoMigrate)
}

func TestInvalidConfig(t *testing.T) {
	_, err := Parse([]byte("driver: oracle"))
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = Parse([]byte("driver: postgres"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("driver: [memory"))
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	var (
		ctx  = context.Background()
		name = uuid.NewString()
	)
	defer memory.Drop(name)

	cfg, err := Parse([]byte("name: " + name))
	require.NoError(t, err)

	u, err := cfg.Open(db.MapEntityTypes(&Setting{}))
	require.NoError(t, err)
	defer u.Dispose()

	repo, err := db.GetRepository[Setting, string](u)
	require.NoError(t, err)
	require.NoError(t, repo.Add(&Setting{Key: "currency", Value: "EUR"}))
	require.NoError(t, u.Commit(ctx))

	setting, found, err := repo.GetByID(ctx, "currency")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "EUR", setting.Value)
}

func TestLoadFileSqlite(t *testing.T) {
	var (
		dir  = t.TempDir()
		path = filepath.Join(dir, "xdal.yaml")
	)

	require.NoError(t, os.WriteFile(path, []byte("driver: sqlite\ndsn: "+filepath.Join(dir, "settings.db")+"\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	u, err := cfg.Open(db.MapEntityTypes(&Setting{}))
	require.NoError(t, err)
	defer u.Dispose()

	repo, err := db.GetRepository[Setting, string](u)
	require.NoError(t, err)
	_, found, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}
