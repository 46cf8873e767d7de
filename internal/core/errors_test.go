package core

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError(t *testing.T) {
	err := configErrorf("max depth must not be negative, got %d", -1)

	assert.EqualError(t, err, "adjacency: max depth must not be negative, got -1")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, IsConfigurationError(err))
	assert.False(t, IsUnsupportedOperation(err))

	var cfg *ConfigurationError
	assert.True(t, errors.As(WrapError(err, "building plan"), &cfg))
}

func TestUnsupportedOperationError(t *testing.T) {
	err := &UnsupportedOperationError{Dialect: "sqlite", Operation: "correlated existence subquery"}

	assert.EqualError(t, err, "adjacency: correlated existence subquery is not supported by the sqlite dialect")
	assert.True(t, IsUnsupportedOperation(err))
	assert.False(t, IsConfigurationError(err))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "context"))

	err := WrapError(sql.ErrConnDone, "executing relation")
	assert.EqualError(t, err, "executing relation: sql: connection is already closed")
	assert.True(t, errors.Is(err, sql.ErrConnDone))
}
