package repository

import (
	"context"

	"github.com/hnhuaxi/xdal"
	"gorm.io/gorm"
)

type Scope = *gorm.DB

// QueryFunc composes a query on top of a repository's base scope.
type QueryFunc func(tx Scope) Scope

// ReadOnlyRepository is the query surface of a repository bound to one unit
// of work and one entity type.
type ReadOnlyRepository[T xdal.Entity[K], K comparable] interface {
	UnitOfWork() xdal.UnitOfWork

	// All returns a scope over every row of T with the configured includes
	// applied as eager loads, in the order they were added.
	All(ctx context.Context) Scope
	Includes() []string

	GetByID(ctx context.Context, id K, opts ...ReadOptFunc) (*T, bool, error)
	Find(ctx context.Context, query QueryFunc, opts ...ReadOptFunc) (*T, bool, error)
	FindList(ctx context.Context, query QueryFunc, opts ...ReadOptFunc) ([]*T, error)
}

// Repository stages writes against its unit of work. Nothing is persisted
// until the unit of work commits.
type Repository[T xdal.Entity[K], K comparable] interface {
	ReadOnlyRepository[T, K]

	Add(entity *T) error
	AddRange(entities ...*T) error
	Update(entity *T) error
	UpdateRange(entities ...*T) error
	Delete(entity *T) error
	DeleteRange(entities ...*T) error
	DeleteByID(ctx context.Context, id K) error
	DeleteByIDs(ctx context.Context, ids ...K) error
}
