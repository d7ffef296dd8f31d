package singleton

import "sync"

var (
	mu    sync.Mutex
	named = make(map[string]any)
)

// Named returns the process-wide instance registered under name, creating
// it with ctor when absent. A failing ctor registers nothing.
func Named[T any](name string, ctor func() (T, error)) (T, error) {
	mu.Lock()
	defer mu.Unlock()

	if created, ok := named[name]; ok {
		if v, ok := created.(T); ok {
			return v, nil
		}
		panic("invalid instance object " + name)
	}

	v, err := ctor()
	if err != nil {
		return v, err
	}
	named[name] = v
	return v, nil
}

// Release forgets the instance registered under name and returns it.
func Release[T any](name string) (T, bool) {
	mu.Lock()
	defer mu.Unlock()

	var zero T
	created, ok := named[name]
	if !ok {
		return zero, false
	}
	delete(named, name)

	v, ok := created.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
