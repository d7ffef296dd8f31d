package db

import (
	"fmt"
	"reflect"

	"github.com/hnhuaxi/xdal/repository"
	"gorm.io/gorm/clause"
)

// Op builds a condition on column.
type Op func(column string, value interface{}) repository.QueryFunc

var (
	EQ    Op = DBEquals
	GT    Op = DBGreat
	GE    Op = DBGreatEqual
	LT    Op = DBLess
	LE    Op = DBLessEqual
	IN    Op = DBIN
	LIKE  Op = DBLike
	ISNIL Op = DBIsNil
)

// Where returns a query function filtering column with op. It is meant to be
// passed to Find, FindList, Get or GetList.
func Where(column string, op Op, value interface{}) repository.QueryFunc {
	return op(column, value)
}

// And chains query functions.
func And(fns ...repository.QueryFunc) repository.QueryFunc {
	return func(tx Scope) Scope {
		for _, fn := range fns {
			tx = fn(tx)
		}
		return tx
	}
}

// OrderBy sorts by column.
func OrderBy(column string, desc bool) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Order(clause.OrderByColumn{Column: col(column), Desc: desc})
	}
}

func col(column string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: column}
}

func DBEquals(key string, value interface{}) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Where(clause.Eq{Column: col(key), Value: value})
	}
}

func DBGreat(key string, value interface{}) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Where(clause.Gt{Column: col(key), Value: value})
	}
}

func DBGreatEqual(key string, value interface{}) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Where(clause.Gte{Column: col(key), Value: value})
	}
}

func DBLess(key string, value interface{}) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Where(clause.Lt{Column: col(key), Value: value})
	}
}

func DBLessEqual(key string, value interface{}) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Where(clause.Lte{Column: col(key), Value: value})
	}
}

func DBLike(key string, value interface{}) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Where(clause.Like{Column: col(key), Value: fmt.Sprintf("%%%v%%", value)})
	}
}

func DBIN(key string, value interface{}) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Where(clause.IN{Column: col(key), Values: values(value)})
	}
}

func DBIsNil(key string, _ interface{}) repository.QueryFunc {
	return func(tx Scope) Scope {
		return tx.Where(clause.Eq{Column: col(key), Value: nil})
	}
}

func values(value interface{}) []interface{} {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []interface{}{value}
	}

	vals := make([]interface{}, v.Len())
	for i := range vals {
		vals[i] = v.Index(i).Interface()
	}
	return vals
}
