package registry

import "reflect"

// Registry maps a struct type to a value. Pointers are resolved to the
// underlying struct type so &Order{} and Order{} share an entry. Keys keep
// their registration order.
type Registry[T any] struct {
	set   map[reflect.Type]T
	order []reflect.Type
}

func (reg *Registry[T]) init() {
	if reg.set == nil {
		reg.set = make(map[reflect.Type]T)
	}
}

func TypeOf(node interface{}) reflect.Type {
	t := reflect.TypeOf(node)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func (reg *Registry[T]) Register(node interface{}, value T) {
	reg.init()

	t := TypeOf(node)
	if _, ok := reg.set[t]; !ok {
		reg.order = append(reg.order, t)
	}
	reg.set[t] = value
}

func (reg *Registry[T]) Lookup(node interface{}) (value T, ok bool) {
	reg.init()

	value, ok = reg.set[TypeOf(node)]
	return value, ok
}

func (reg *Registry[T]) LookupType(t reflect.Type) (value T, ok bool) {
	reg.init()

	value, ok = reg.set[t]
	return value, ok
}

func (reg *Registry[T]) Types() []reflect.Type {
	return append([]reflect.Type(nil), reg.order...)
}

func (reg *Registry[T]) Len() int {
	return len(reg.order)
}
