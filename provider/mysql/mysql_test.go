package mysql

import (
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	cfg := Config("127.0.0.1:3306", "shop", "secret", "orders")

	parsed, err := driver.ParseDSN(cfg.FormatDSN())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3306", parsed.Addr)
	assert.Equal(t, "shop", parsed.User)
	assert.Equal(t, "orders", parsed.DBName)
	assert.True(t, parsed.ParseTime)
}

func TestUnreachableServer(t *testing.T) {
	cfg := Config("127.0.0.1:1", "shop", "secret", "orders")
	cfg.Timeout = 500 * time.Millisecond

	_, err := NewConfig(cfg, nil)
	assert.Error(t, err)
}
