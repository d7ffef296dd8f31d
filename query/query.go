// Package query provides named, reusable queries bound to a unit of work.
package query

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/hnhuaxi/xdal"
	"github.com/hnhuaxi/xdal/repository/db"
)

var (
	ErrNoUnitOfWork     = errors.New("query: no unit of work")
	ErrInvalidArguments = errors.New("query: invalid arguments")
)

// Args are the named arguments of a query.
type Args map[string]any

// Func is the logic of a query.
type Func[R any] func(ctx context.Context, u *db.UnitOfWork, args Args) (R, error)

type Query[R any] interface {
	Name() string
	UnitOfWork() *db.UnitOfWork
	// SetUnitOfWork selects the unit of work the next Execute runs against.
	SetUnitOfWork(u *db.UnitOfWork)
	Execute(ctx context.Context, args Args) (R, error)
}

// Named is a Query running a Func.
type Named[R any] struct {
	name string
	uow  *db.UnitOfWork
	fn   Func[R]
}

var _ Query[int] = (*Named[int])(nil)

func New[R any](name string, fn Func[R]) *Named[R] {
	return &Named[R]{name: name, fn: fn}
}

func (q *Named[R]) Name() string {
	return q.name
}

func (q *Named[R]) UnitOfWork() *db.UnitOfWork {
	return q.uow
}

func (q *Named[R]) SetUnitOfWork(u *db.UnitOfWork) {
	q.uow = u
}

// Execute runs the query against its unit of work. A nil args is an empty
// argument map.
func (q *Named[R]) Execute(ctx context.Context, args Args) (R, error) {
	var zero R
	if q.uow == nil {
		return zero, fmt.Errorf("%w: %s", ErrNoUnitOfWork, q.name)
	}

	if q.uow.IsDisposed() {
		return zero, fmt.Errorf("query %s: %w", q.name, xdal.ErrDisposed)
	}

	if args == nil {
		args = Args{}
	}
	return q.fn(ctx, q.uow, args)
}

// ExecuteWith runs q with the fields of value as arguments, see Flatten.
func ExecuteWith[R any](ctx context.Context, q Query[R], value any) (R, error) {
	args, err := Flatten(value)
	if err != nil {
		var zero R
		return zero, err
	}
	return q.Execute(ctx, args)
}

// Flatten maps the exported fields declared by the struct value, or the
// struct value points to, to arguments keyed by field name. A `query` tag
// renames the key; "-" skips the field. Field values are taken as they are:
// nested structs are not expanded.
func Flatten(value any) (Args, error) {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil %s", ErrInvalidArguments, v.Type())
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a struct", ErrInvalidArguments, value)
	}

	var (
		typ  = v.Type()
		args = make(Args, typ.NumField())
	)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag, ok := field.Tag.Lookup("query"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		args[name] = v.Field(i).Interface()
	}
	return args, nil
}
