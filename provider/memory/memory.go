// Package memory binds units of work to named in-memory databases. A named
// database lives until Drop, independently of the units of work opened on it.
package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/hnhuaxi/xdal/repository/db"
	"github.com/hnhuaxi/xdal/singleton"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrEmptyName = errors.New("memory: empty database name")

// DSN returns the shared-cache connection string of the database name.
func DSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(name))
}

func keeperKey(name string) string {
	return "memory/" + name
}

// keep opens the connection holding the database name open.
func keep(name string) error {
	_, err := singleton.Named(keeperKey(name), func() (*sql.DB, error) {
		gdb, err := gorm.Open(sqlite.Open(DSN(name)), &gorm.Config{
			Logger: logger.Discard,
		})
		if err != nil {
			return nil, err
		}

		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxIdleTime(0)
		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return nil, err
		}
		return sqlDB, nil
	})
	return err
}

// New returns a unit of work on the in-memory database name, creating the
// database on first use. Units of work are limited to one connection unless
// ops say otherwise.
func New(name string, build db.ModelBuildFunc, ops ...db.OptionFunc) (*db.UnitOfWork, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	if err := keep(name); err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", name, err)
	}

	ops = append([]db.OptionFunc{db.WithMaxOpenConns(1)}, ops...)
	return db.New(sqlite.Open(DSN(name)), build, ops...)
}

// Drop releases the database name. Its content is gone once the units of
// work still open on it are disposed.
func Drop(name string) error {
	keeper, ok := singleton.Release[*sql.DB](keeperKey(name))
	if !ok {
		return nil
	}
	return keeper.Close()
}
