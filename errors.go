package xdal

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrDisposed      = errors.New("unit of work is disposed")
	ErrInvalidEntity = errors.New("invalid entity type")
)

func CheckDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}

	return false
}

func CheckDuplicateRelation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1452 {
		return true
	}

	return false
}

func CheckDisposed(err error) bool {
	return errors.Is(err, ErrDisposed)
}
