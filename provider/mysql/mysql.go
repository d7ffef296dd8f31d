// Package mysql binds units of work to a MySQL server.
package mysql

import (
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/hnhuaxi/xdal/repository/db"
	"gorm.io/driver/mysql"
)

// New returns a unit of work on the server addressed by dsn.
func New(dsn string, build db.ModelBuildFunc, ops ...db.OptionFunc) (*db.UnitOfWork, error) {
	return db.New(mysql.Open(dsn), build, ops...)
}

// Config returns a driver configuration for database on addr with the
// settings the mapping layer relies on.
func Config(addr, user, password, database string) *driver.Config {
	cfg := driver.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg
}

// NewConfig is New with a structured configuration.
func NewConfig(cfg *driver.Config, build db.ModelBuildFunc, ops ...db.OptionFunc) (*db.UnitOfWork, error) {
	return New(cfg.FormatDSN(), build, ops...)
}
