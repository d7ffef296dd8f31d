package db

import (
	"context"
	"reflect"

	"github.com/akrennmair/slice"
	"github.com/hnhuaxi/xdal"
	"github.com/hnhuaxi/xdal/repository"
	"github.com/hnhuaxi/xdal/utils"
	"go.uber.org/multierr"
	"golang.org/x/exp/slices"
	"gorm.io/gorm/clause"
)

// Repository is bound to one unit of work and one entity type for its whole
// life. Obtain it with GetRepository.
type Repository[T xdal.Entity[K], K comparable] struct {
	uow      *UnitOfWork
	includes []string
}

func (r *Repository[T, K]) UnitOfWork() xdal.UnitOfWork {
	return r.uow
}

func (r *Repository[T, K]) entityType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Include appends navigation properties to eager load on every subsequent
// read. Names accumulate as given, with the first rune of each segment
// upper-cased, and are not deduplicated.
func (r *Repository[T, K]) Include(navigationProperties ...string) *Repository[T, K] {
	r.includes = append(r.includes, slice.Map(navigationProperties, utils.NavigationPath)...)
	return r
}

func (r *Repository[T, K]) Includes() []string {
	return slices.Clone(r.includes)
}

// All returns a scope over every row of T with the includes preloaded in
// the order they were added.
func (r *Repository[T, K]) All(ctx context.Context) Scope {
	scope := r.uow.set(ctx, new(T))
	for _, include := range r.includes {
		scope = scope.Preload(r.navigationPath(include))
	}
	return scope
}

func (r *Repository[T, K]) navigationPath(path string) string {
	return r.uow.navigationPath(new(T), path)
}

func (r *Repository[T, K]) compose(ctx context.Context, query repository.QueryFunc, opts []repository.ReadOptFunc) (Scope, error) {
	opt, err := repository.BuildReadOpt(opts)
	if err != nil {
		return nil, err
	}

	opt.Includes = slice.Map(opt.Includes, r.navigationPath)
	scope := opt.Apply(r.All(ctx))
	if query != nil {
		scope = query(scope)
	}
	return scope, nil
}

func (r *Repository[T, K]) keyEquals(id K) (repository.QueryFunc, error) {
	column, err := r.uow.primaryColumn(new(T))
	if err != nil {
		return nil, err
	}

	return func(tx Scope) Scope {
		return tx.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: column},
			Value:  id,
		})
	}, nil
}

// GetByID returns the entity whose key equals id. A missing row is reported
// by found == false, not by an error.
func (r *Repository[T, K]) GetByID(ctx context.Context, id K, opts ...repository.ReadOptFunc) (entity *T, found bool, err error) {
	if err := r.uow.checkDisposed(); err != nil {
		return nil, false, err
	}

	byKey, err := r.keyEquals(id)
	if err != nil {
		return nil, false, err
	}
	return r.Find(ctx, byKey, opts...)
}

// Find returns the first entity of All composed with query.
func (r *Repository[T, K]) Find(ctx context.Context, query repository.QueryFunc, opts ...repository.ReadOptFunc) (*T, bool, error) {
	return Get[*T](ctx, r, query, opts...)
}

// FindList returns every entity of All composed with query.
func (r *Repository[T, K]) FindList(ctx context.Context, query repository.QueryFunc, opts ...repository.ReadOptFunc) ([]*T, error) {
	return GetList[*T](ctx, r, query, opts...)
}

func (r *Repository[T, K]) Add(entity *T) error {
	return r.AddRange(entity)
}

// AddRange stages entities for insertion.
func (r *Repository[T, K]) AddRange(entities ...*T) error {
	if err := r.uow.checkDisposed(); err != nil {
		return err
	}

	for _, entity := range entities {
		if entity != nil {
			r.uow.tracker.add(entity)
		}
	}
	return nil
}

func (r *Repository[T, K]) Update(entity *T) error {
	return r.UpdateRange(entity)
}

// UpdateRange stages detached entities for update. Instances the unit of
// work already tracks are skipped.
func (r *Repository[T, K]) UpdateRange(entities ...*T) error {
	if err := r.uow.checkDisposed(); err != nil {
		return err
	}

	for _, entity := range entities {
		if entity != nil {
			r.uow.tracker.update(entity)
		}
	}
	return nil
}

func (r *Repository[T, K]) Delete(entity *T) error {
	return r.DeleteRange(entity)
}

// DeleteRange stages entities for removal.
func (r *Repository[T, K]) DeleteRange(entities ...*T) error {
	if err := r.uow.checkDisposed(); err != nil {
		return err
	}

	for _, entity := range entities {
		if entity != nil {
			r.uow.tracker.remove(entity)
		}
	}
	return nil
}

// findByKey looks in the tracker first and falls back to the store without
// applying includes.
func (r *Repository[T, K]) findByKey(ctx context.Context, id K) (*T, bool, error) {
	if tracked, ok := r.uow.tracker.lookup(r.entityType(), id); ok {
		return tracked.(*T), true, nil
	}

	byKey, err := r.keyEquals(id)
	if err != nil {
		return nil, false, err
	}
	return First[*T](ctx, r.uow, byKey(r.uow.set(ctx, new(T))))
}

// DeleteByID stages the entity with key id for removal. A missing entity is
// ignored.
func (r *Repository[T, K]) DeleteByID(ctx context.Context, id K) error {
	if err := r.uow.checkDisposed(); err != nil {
		return err
	}

	entity, found, err := r.findByKey(ctx, id)
	if err != nil || !found {
		return err
	}
	return r.Delete(entity)
}

// DeleteByIDs applies DeleteByID to every id. A failing id does not stop the
// remaining ones; the failures are returned together.
func (r *Repository[T, K]) DeleteByIDs(ctx context.Context, ids ...K) error {
	if err := r.uow.checkDisposed(); err != nil {
		return err
	}

	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, r.DeleteByID(ctx, id))
	}
	return errs
}
