package db

import (
	"context"
	"errors"

	"github.com/hnhuaxi/xdal"
	"github.com/hnhuaxi/xdal/repository"
)

type cardinality int

const (
	single cardinality = iota
	many
)

var ErrNilQuery = errors.New("nil query")

type debugSQLKey struct{}

// WithDebugSQL makes the reads and commits issued with ctx log their SQL
// whatever the configured log level.
func WithDebugSQL(ctx context.Context) context.Context {
	return context.WithValue(ctx, debugSQLKey{}, true)
}

func IsDebug(ctx context.Context) bool {
	val, ok := ctx.Value(debugSQLKey{}).(bool)
	return ok && val
}

func withDebug(ctx context.Context, scope Scope) Scope {
	if IsDebug(ctx) {
		return scope.Debug()
	}
	return scope
}

// fetch is the one read path. Entities of tracked types in the result are
// attached to u, and already tracked instances replace freshly read ones
// after taking over their preloaded associations. Results of queries that
// select partial rows are never tracked.
func fetch[R any](ctx context.Context, u *UnitOfWork, query Scope, card cardinality) ([]R, error) {
	if err := u.checkDisposed(); err != nil {
		return nil, err
	}

	if query == nil {
		return nil, ErrNilQuery
	}

	scope := withDebug(ctx, query.WithContext(ctx))
	if card == single {
		scope = scope.Limit(1)
	}

	var (
		rows      = make([]R, 0)
		untracked = partial(scope)
		preloads  = scope.Statement.Preloads
	)
	if err := scope.Find(&rows).Error; err != nil {
		return nil, err
	}

	// partial rows are handed out untracked
	if untracked {
		return rows, nil
	}

	for i, row := range rows {
		tracked, ok := u.tracker.attach(row)
		if !ok {
			continue
		}

		if any(row) != tracked {
			u.fixup(tracked, row, preloads)
		}
		rows[i] = tracked.(R)
	}
	return rows, nil
}

// partial reports whether scope selects less than whole rows of its model.
func partial(scope Scope) bool {
	stmt := scope.Statement
	if len(stmt.Selects) > 0 || len(stmt.Omits) > 0 || len(stmt.Joins) > 0 || stmt.Distinct {
		return true
	}

	if sel, ok := stmt.Clauses["SELECT"]; ok && sel.Expression != nil {
		return true
	}

	_, grouped := stmt.Clauses["GROUP BY"]
	return grouped
}

// First returns the first result of query, which must have been built from
// u. found is false when the query yields nothing.
func First[R any](ctx context.Context, u *UnitOfWork, query Scope) (result R, found bool, err error) {
	rows, err := fetch[R](ctx, u, query, single)
	if err != nil || len(rows) == 0 {
		return result, false, err
	}
	return rows[0], true, nil
}

// List returns every result of query. An empty result is an empty slice.
func List[R any](ctx context.Context, u *UnitOfWork, query Scope) ([]R, error) {
	return fetch[R](ctx, u, query, many)
}

// Get applies query to repo.All and returns the first result as R.
func Get[R any, T xdal.Entity[K], K comparable](ctx context.Context, repo *Repository[T, K], query repository.QueryFunc, opts ...repository.ReadOptFunc) (R, bool, error) {
	var zero R
	if err := repo.uow.checkDisposed(); err != nil {
		return zero, false, err
	}

	scope, err := repo.compose(ctx, query, opts)
	if err != nil {
		return zero, false, err
	}
	return First[R](ctx, repo.uow, scope)
}

// GetList applies query to repo.All and returns every result as R.
func GetList[R any, T xdal.Entity[K], K comparable](ctx context.Context, repo *Repository[T, K], query repository.QueryFunc, opts ...repository.ReadOptFunc) ([]R, error) {
	if err := repo.uow.checkDisposed(); err != nil {
		return nil, err
	}

	scope, err := repo.compose(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return List[R](ctx, repo.uow, scope)
}
