package db

import (
	"fmt"
	"reflect"

	"github.com/hnhuaxi/xdal"
	"github.com/hnhuaxi/xdal/registry"
)

// ModelBuildFunc registers entity types with a ModelBuilder. It is invoked
// once per unit of work, the first time the schema is needed.
type ModelBuildFunc func(mb *ModelBuilder)

type entityModel struct {
	model any
	table string
}

// ModelBuilder collects the entity types a unit of work maps. Entity types
// register explicitly; nothing is discovered at runtime.
type ModelBuilder struct {
	entities registry.Registry[entityModel]
	err      error
}

// Entity registers models. Each model must be a struct or a pointer to one.
func (mb *ModelBuilder) Entity(models ...any) *ModelBuilder {
	for _, model := range models {
		t := registry.TypeOf(model)
		if t == nil || t.Kind() != reflect.Struct {
			mb.err = fmt.Errorf("%w: %T", xdal.ErrInvalidEntity, model)
			continue
		}

		if _, ok := mb.entities.LookupType(t); ok {
			continue
		}
		mb.entities.Register(model, entityModel{model: reflect.New(t).Interface()})
	}
	return mb
}

// Table registers model (if needed) and maps it to table.
func (mb *ModelBuilder) Table(model any, table string) *ModelBuilder {
	mb.Entity(model)
	if em, ok := mb.entities.Lookup(model); ok {
		em.table = table
		mb.entities.Register(model, em)
	}
	return mb
}

// Models returns a pointer to a zero value of every registered type, in
// registration order.
func (mb *ModelBuilder) Models() []any {
	var models []any
	for _, t := range mb.entities.Types() {
		em, _ := mb.entities.LookupType(t)
		models = append(models, em.model)
	}
	return models
}

func (mb *ModelBuilder) TableName(model any) (string, bool) {
	em, ok := mb.entities.Lookup(model)
	if !ok || em.table == "" {
		return "", false
	}
	return em.table, true
}

func (mb *ModelBuilder) Err() error {
	return mb.err
}

// MapEntityTypes returns a ModelBuildFunc registering models.
func MapEntityTypes(models ...any) ModelBuildFunc {
	return func(mb *ModelBuilder) {
		mb.Entity(models...)
	}
}
