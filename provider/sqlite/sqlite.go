// Package sqlite binds units of work to an embedded file database.
package sqlite

import (
	"github.com/hnhuaxi/xdal/repository/db"
	"gorm.io/driver/sqlite"
)

// New returns a unit of work on the database file named by connectionString.
// The file is created when missing.
func New(connectionString string, build db.ModelBuildFunc, ops ...db.OptionFunc) (*db.UnitOfWork, error) {
	return db.New(sqlite.Open(connectionString), build, ops...)
}
