package repository

import (
	"github.com/akrennmair/slice"
	"github.com/hnhuaxi/xdal/utils"
)

// ReadOpt adjusts a single read. Includes listed here are applied after the
// repository's own includes and are not remembered.
type ReadOpt struct {
	Includes []string
	Scopes   []QueryFunc
	Limit    int
	Offset   int
}

type ReadOptFunc func(opt *ReadOpt) error

func BuildReadOpt(opts []ReadOptFunc) (*ReadOpt, error) {
	var opt ReadOpt
	for _, op := range opts {
		if err := op(&opt); err != nil {
			return nil, err
		}
	}

	return &opt, nil
}

func (opt *ReadOpt) Apply(scope Scope) Scope {
	for _, include := range opt.Includes {
		scope = scope.Preload(include)
	}

	for _, fn := range opt.Scopes {
		scope = fn(scope)
	}

	if opt.Limit > 0 {
		scope = scope.Limit(opt.Limit)
	}

	if opt.Offset > 0 {
		scope = scope.Offset(opt.Offset)
	}
	return scope
}

func OptInclude(navigationProperties ...string) ReadOptFunc {
	return func(opt *ReadOpt) error {
		opt.Includes = append(opt.Includes, slice.Map(navigationProperties, utils.NavigationPath)...)
		return nil
	}
}

func OptScope(fn ...QueryFunc) ReadOptFunc {
	return func(opt *ReadOpt) error {
		opt.Scopes = append(opt.Scopes, fn...)
		return nil
	}
}

func OptLimit(limit int) ReadOptFunc {
	return func(opt *ReadOpt) error {
		opt.Limit = limit
		return nil
	}
}

func OptOffset(offset int) ReadOptFunc {
	return func(opt *ReadOpt) error {
		opt.Offset = offset
		return nil
	}
}
