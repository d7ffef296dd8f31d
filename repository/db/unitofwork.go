package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/akrennmair/slice"
	"github.com/google/uuid"
	"github.com/hnhuaxi/xdal"
	"github.com/hnhuaxi/xdal/repository"
	"github.com/hnhuaxi/xdal/utils"
	"github.com/imdario/mergo"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

type Scope = repository.Scope

// UnitOfWork is a gorm backed xdal.UnitOfWork. It owns one connection pool,
// tracks the entities read and staged through its repositories and flushes
// the staged changes in one transaction on Commit.
type UnitOfWork struct {
	id   string
	db   *gorm.DB
	opts *Options
	log  *zap.SugaredLogger

	build      ModelBuildFunc
	builder    *ModelBuilder
	schemaOnce sync.Once
	schemaErr  error
	schemas    *sync.Map
	columns    map[reflect.Type][][]int

	tracker *tracker

	disposed        atomic.Bool
	preventDisposal bool
	contextData     map[string]any

	committing observers[xdal.CommittingHandler]
	committed  observers[xdal.CommittedHandler]
}

var _ xdal.UnitOfWork = (*UnitOfWork)(nil)

// New opens dialector and returns a unit of work bound to the connection.
// build is invoked once, the first time the schema is needed.
func New(dialector gorm.Dialector, build ModelBuildFunc, ops ...OptionFunc) (*UnitOfWork, error) {
	opts, err := BuildOptions(ops)
	if err != nil {
		return nil, err
	}

	cfg, err := opts.gormConfig()
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialector.Name(), err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	return newUnitOfWork(gdb, build, opts), nil
}

func newUnitOfWork(gdb *gorm.DB, build ModelBuildFunc, opts *Options) *UnitOfWork {
	id := uuid.NewString()
	u := &UnitOfWork{
		id:          id,
		db:          gdb,
		opts:        opts,
		log:         opts.Logger.Sugar().With("unit_of_work", id, "dialect", gdb.Dialector.Name()),
		build:       build,
		builder:     &ModelBuilder{},
		schemas:     &sync.Map{},
		columns:     make(map[reflect.Type][][]int),
		contextData: make(map[string]any),
	}
	u.tracker = newTracker(u.columnIndexes)
	u.log.Debug("unit of work created")
	return u
}

func (u *UnitOfWork) ID() string {
	return u.id
}

// DB returns the underlying gorm connection.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}

func (u *UnitOfWork) checkDisposed() error {
	if u.disposed.Load() {
		return xdal.ErrDisposed
	}
	return nil
}

// ensureSchema builds and migrates the schema once. The migration is not
// bound to the cancellation of the first caller's ctx.
func (u *UnitOfWork) ensureSchema(ctx context.Context) error {
	u.schemaOnce.Do(func() {
		ctx := context.WithoutCancel(ctx)

		mb := &ModelBuilder{}
		if u.build != nil {
			u.build(mb)
		}
		u.builder = mb

		if err := mb.Err(); err != nil {
			u.schemaErr = err
			return
		}

		if u.opts.DisableAutoMigrate {
			return
		}

		var plain []any
		for _, model := range mb.Models() {
			if table, ok := mb.TableName(model); ok {
				if err := u.db.WithContext(ctx).Table(table).AutoMigrate(model); err != nil {
					u.schemaErr = fmt.Errorf("migrate %s: %w", table, err)
					return
				}
				continue
			}
			plain = append(plain, model)
		}

		if len(plain) > 0 {
			if err := u.db.WithContext(ctx).AutoMigrate(plain...); err != nil {
				u.schemaErr = fmt.Errorf("migrate models: %w", err)
				return
			}
		}
		u.log.Debugw("schema ready", "models", len(mb.Models()))
	})

	return u.schemaErr
}

func (u *UnitOfWork) parseSchema(model any) (*schema.Schema, error) {
	return schema.Parse(model, u.schemas, u.db.NamingStrategy)
}

func (u *UnitOfWork) primaryColumn(model any) (string, error) {
	sch, err := u.parseSchema(model)
	if err != nil {
		return "", err
	}

	field := sch.PrioritizedPrimaryField
	if field == nil && len(sch.PrimaryFields) > 0 {
		field = sch.PrimaryFields[0]
	}
	if field == nil {
		return "", fmt.Errorf("%w: %s has no primary key", xdal.ErrInvalidEntity, sch.Name)
	}
	return field.DBName, nil
}

func (u *UnitOfWork) columnIndexes(typ reflect.Type) ([][]int, error) {
	if indexes, ok := u.columns[typ]; ok {
		return indexes, nil
	}

	sch, err := u.parseSchema(reflect.New(typ).Interface())
	if err != nil {
		return nil, err
	}

	fields := slice.Filter(sch.Fields, func(f *schema.Field) bool {
		return f.DBName != ""
	})
	indexes := slice.Map(fields, func(f *schema.Field) []int {
		return f.StructField.Index
	})
	u.columns[typ] = indexes
	return indexes, nil
}

// navigationPath resolves each segment of path to a relationship of model.
// A segment naming no relationship as given is retried in camel case, so
// "line_items" finds LineItems. Unresolved segments are kept for gorm to
// report.
func (u *UnitOfWork) navigationPath(model any, path string) string {
	sch, err := u.parseSchema(model)
	if err != nil {
		return path
	}

	segments := strings.Split(path, ".")
	for i, segment := range segments {
		rel, ok := sch.Relationships.Relations[segment]
		if !ok {
			rel, ok = sch.Relationships.Relations[utils.CamelCase(segment)]
		}
		if !ok {
			break
		}

		segments[i] = rel.Name
		sch = rel.FieldSchema
	}
	return strings.Join(segments, ".")
}

// fixup copies the associations preloaded into fresh onto tracked, the
// instance already tracked under the same key.
func (u *UnitOfWork) fixup(tracked, fresh any, preloads map[string][]interface{}) {
	if len(preloads) == 0 {
		return
	}

	sch, err := u.parseSchema(tracked)
	if err != nil {
		return
	}

	var (
		dst = reflect.Indirect(reflect.ValueOf(tracked))
		src = reflect.Indirect(reflect.ValueOf(fresh))
	)
	for name := range preloads {
		root, _, _ := strings.Cut(name, ".")
		rel, ok := sch.Relationships.Relations[root]
		if !ok {
			continue
		}

		index := rel.Field.StructField.Index
		dst.FieldByIndex(index).Set(src.FieldByIndex(index))
	}
}

// scope binds tx to model and its mapped table.
func (u *UnitOfWork) scope(tx *gorm.DB, model any) *gorm.DB {
	tx = tx.Model(model)
	if table, ok := u.builder.TableName(model); ok {
		tx = tx.Table(table)
	}
	return tx
}

// set returns the query surface over model's table. Errors are carried by
// the returned scope and surface when it is executed.
func (u *UnitOfWork) set(ctx context.Context, model any) Scope {
	tx := u.db.WithContext(ctx)
	if err := u.checkDisposed(); err != nil {
		tx.AddError(err)
		return tx
	}

	if err := u.ensureSchema(ctx); err != nil {
		tx.AddError(err)
		return tx
	}
	return u.scope(tx, model)
}

// Commit flushes every staged change in one transaction. Pre-commit observers
// run first and may abort the commit; post-commit observers always run once
// with the outcome, after which a flush error is returned unchanged.
func (u *UnitOfWork) Commit(ctx context.Context) (err error) {
	if err := u.checkDisposed(); err != nil {
		return err
	}

	var successful bool
	defer func() {
		u.notifyCommitted(ctx, successful, err)
	}()

	if err = u.notifyCommitting(ctx); err != nil {
		return err
	}

	if err = u.saveChanges(ctx); err != nil {
		return err
	}

	successful = true
	return nil
}

// CommitAsync runs Commit on its own goroutine and delivers the result on
// the returned channel. The unit of work must not be used until it arrives.
func (u *UnitOfWork) CommitAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- u.Commit(ctx)
	}()
	return done
}

func (u *UnitOfWork) notifyCommitting(ctx context.Context) error {
	event := &xdal.CommittingEvent{UnitOfWork: u}
	for _, handler := range u.committing.handlers() {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnitOfWork) notifyCommitted(ctx context.Context, successful bool, err error) {
	event := &xdal.CommittedEvent{
		UnitOfWork: u,
		Successful: successful,
		Err:        err,
	}
	for _, handler := range u.committed.handlers() {
		handler(ctx, event)
	}
}

func (u *UnitOfWork) saveChanges(ctx context.Context) error {
	if err := u.ensureSchema(ctx); err != nil {
		return err
	}

	if err := u.tracker.detectChanges(); err != nil {
		return err
	}

	pending := u.tracker.pending()
	if len(pending) == 0 {
		u.log.Debug("commit: nothing to save")
		return nil
	}

	err := withDebug(ctx, u.db.WithContext(ctx)).Transaction(func(tx *gorm.DB) error {
		for _, entry := range pending {
			scope := u.scope(tx, entry.entity)

			var result *gorm.DB
			switch entry.state {
			case Added:
				result = scope.Create(entry.entity)
			case Modified:
				result = scope.Omit(clause.Associations).Save(entry.entity)
			case Deleted:
				result = scope.Delete(entry.entity)
			default:
				continue
			}

			if result.Error != nil {
				u.log.Errorw("commit: save failed",
					"entity", entry.typ.String(),
					"state", entry.state.String(),
					"duplicate", xdal.CheckDuplicate(result.Error),
					"missing_relation", xdal.CheckDuplicateRelation(result.Error),
					"error", result.Error,
				)
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.tracker.acceptChanges()
	u.log.Debugw("commit: saved", "changes", len(pending))
	return nil
}

// OnCommitting subscribes a pre-commit observer. Observers run in
// subscription order.
func (u *UnitOfWork) OnCommitting(handler xdal.CommittingHandler) (unsubscribe func()) {
	return u.committing.add(handler)
}

// OnCommitted subscribes a post-commit observer. Observers run in
// subscription order and must not fail.
func (u *UnitOfWork) OnCommitted(handler xdal.CommittedHandler) (unsubscribe func()) {
	return u.committed.add(handler)
}

func (u *UnitOfWork) ContextData() map[string]any {
	return u.contextData
}

func (u *UnitOfWork) ContextValue(key string) (any, bool) {
	v, ok := u.contextData[key]
	return v, ok
}

func (u *UnitOfWork) SetContextValue(key string, value any) {
	u.contextData[key] = value
}

// MergeContextData copies data into the context map, overriding existing keys.
func (u *UnitOfWork) MergeContextData(data map[string]any) error {
	return mergo.Map(&u.contextData, data, mergo.WithOverride)
}

// State returns the tracking state of entity.
func (u *UnitOfWork) State(entity any) EntityState {
	return u.tracker.state(entity)
}

// Entries lists the tracked instances in tracking order.
func (u *UnitOfWork) Entries() []Entry {
	return u.tracker.list()
}

func (u *UnitOfWork) PreventDisposal() bool {
	return u.preventDisposal
}

// SetPreventDisposal hands disposal over to the caller: while set, Dispose
// does nothing and the unit of work stays usable.
func (u *UnitOfWork) SetPreventDisposal(prevent bool) {
	u.preventDisposal = prevent
}

func (u *UnitOfWork) IsDisposed() bool {
	return u.disposed.Load()
}

// Dispose releases the connection and drops every observer. It does nothing
// while disposal is prevented or after the first call.
func (u *UnitOfWork) Dispose() error {
	if u.preventDisposal {
		return nil
	}

	if u.disposed.Swap(true) {
		return nil
	}

	u.committing.clear()
	u.committed.clear()
	u.tracker.clear()

	var errs error
	sqlDB, err := u.db.DB()
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if err := sqlDB.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close connection: %w", err))
	}

	u.log.Debug("unit of work disposed")
	return errs
}

func (u *UnitOfWork) Close() error {
	return u.Dispose()
}

type observer[H any] struct {
	id      uint64
	handler H
}

type observers[H any] struct {
	seq  uint64
	list []observer[H]
}

func (o *observers[H]) add(handler H) func() {
	o.seq++
	id := o.seq
	o.list = append(o.list, observer[H]{id: id, handler: handler})

	return func() {
		o.list = slices.DeleteFunc(o.list, func(ob observer[H]) bool {
			return ob.id == id
		})
	}
}

func (o *observers[H]) handlers() []H {
	return slice.Map(o.list, func(ob observer[H]) H {
		return ob.handler
	})
}

func (o *observers[H]) clear() {
	o.list = nil
}

// GetRepository returns a new repository for T bound to u. Every call yields
// a fresh repository with no includes.
func GetRepository[T xdal.Entity[K], K comparable](u *UnitOfWork) (*Repository[T, K], error) {
	if u == nil {
		return nil, errors.New("nil unit of work")
	}

	if err := u.checkDisposed(); err != nil {
		return nil, err
	}

	u.tracker.register(reflect.TypeOf((*T)(nil)).Elem(), func(entity any) any {
		return (*entity.(*T)).GetID()
	})

	return &Repository[T, K]{uow: u}, nil
}

// GetInt64Repository returns a repository for an entity keyed by int64.
func GetInt64Repository[T xdal.Int64Entity](u *UnitOfWork) (*Repository[T, int64], error) {
	return GetRepository[T, int64](u)
}
