package singleton

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStore struct {
	Name string
}

func TestNamed(t *testing.T) {
	var calls int
	ctor := func() (*TestStore, error) {
		calls++
		return &TestStore{Name: "a"}, nil
	}

	a, err := Named("named-a", ctor)
	require.NoError(t, err)
	a1, err := Named("named-a", ctor)
	require.NoError(t, err)
	assert.Same(t, a, a1)
	assert.Equal(t, 1, calls)

	released, ok := Release[*TestStore]("named-a")
	assert.True(t, ok)
	assert.Same(t, a, released)

	_, ok = Release[*TestStore]("named-a")
	assert.False(t, ok)

	a2, err := Named("named-a", ctor)
	require.NoError(t, err)
	assert.NotSame(t, a, a2)
	assert.Equal(t, 2, calls)
}

func TestNamedFailingCtor(t *testing.T) {
	errBoom := errors.New("boom")

	_, err := Named("named-b", func() (*TestStore, error) {
		return nil, errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	_, ok := Release[*TestStore]("named-b")
	assert.False(t, ok)
}
