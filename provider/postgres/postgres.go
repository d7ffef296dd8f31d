// Package postgres binds units of work to a PostgreSQL server.
package postgres

import (
	"fmt"
	"net/url"

	"github.com/hnhuaxi/xdal/repository/db"
	"gorm.io/driver/postgres"
)

// New returns a unit of work on the server addressed by dsn.
func New(dsn string, build db.ModelBuildFunc, ops ...db.OptionFunc) (*db.UnitOfWork, error) {
	return db.New(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), build, ops...)
}

// URL formats a postgres:// connection string.
func URL(host string, port int, user, password, database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
