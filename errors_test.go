package xdal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestCheckDuplicate(t *testing.T) {
	duplicate := fmt.Errorf("commit: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"})
	assert.True(t, CheckDuplicate(duplicate))
	assert.False(t, CheckDuplicateRelation(duplicate))

	relation := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}
	assert.True(t, CheckDuplicateRelation(relation))
	assert.False(t, CheckDuplicate(relation))
	assert.False(t, CheckDuplicate(errors.New("duplicate")))
}

func TestCheckDisposed(t *testing.T) {
	assert.True(t, CheckDisposed(fmt.Errorf("get order: %w", ErrDisposed)))
	assert.False(t, CheckDisposed(ErrInvalidEntity))
}
