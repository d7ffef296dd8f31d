package xdal

import (
	"context"
)

// Entity is a persisted record exposing a typed identifier.
//
// GetID must be declared on the value receiver so that both T and *T satisfy
// the contract; repositories persist entities as *T.
type Entity[K comparable] interface {
	GetID() K
}

// Int64Entity is the entity contract for records keyed by an int64.
type Int64Entity = Entity[int64]

// UnitOfWork is a transactional scope bound to one storage connection. Changes
// staged through its repositories are flushed together by Commit.
//
// A UnitOfWork is not safe for concurrent use.
type UnitOfWork interface {
	ID() string

	Commit(ctx context.Context) error
	CommitAsync(ctx context.Context) <-chan error

	OnCommitting(handler CommittingHandler) (unsubscribe func())
	OnCommitted(handler CommittedHandler) (unsubscribe func())

	ContextData() map[string]any
	ContextValue(key string) (any, bool)
	SetContextValue(key string, value any)

	PreventDisposal() bool
	SetPreventDisposal(prevent bool)
	IsDisposed() bool
	Dispose() error
}

// CommittingEvent is delivered to pre-commit observers before staged changes
// are flushed.
type CommittingEvent struct {
	UnitOfWork UnitOfWork
}

// CommittedEvent is delivered to post-commit observers once per Commit,
// whether or not the flush succeeded.
type CommittedEvent struct {
	UnitOfWork UnitOfWork
	Successful bool
	Err        error
}

// CommittingHandler runs before the flush. A non-nil error aborts the commit
// before anything is persisted.
type CommittingHandler func(ctx context.Context, event *CommittingEvent) error

// CommittedHandler runs after the flush. Handlers must not fail: a panic is
// not recovered and escapes Commit.
type CommittedHandler func(ctx context.Context, event *CommittedEvent)
