package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/brunokim/resolve/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestError(t *testing.T) {
	err := errors.Errorf(errors.UndefinedPredicate, "user:foo/1")
	assert.Equal(t, "undefined_predicate: user:foo/1", err.Error())
	assert.Equal(t, "stack_empty", errors.Errorf(errors.StackEmpty).Error())

	wrapped := fmt.Errorf("running query: %w", err)
	assert.True(t, stderrors.Is(wrapped, &errors.Error{Type: errors.UndefinedPredicate}))
	assert.False(t, stderrors.Is(wrapped, &errors.Error{Type: errors.StackEmpty}))
	assert.True(t, errors.IsType(wrapped, errors.UndefinedPredicate))

	got, ok := errors.As(wrapped)
	require.True(t, ok)
	assert.Same(t, err, got)
}

func TestNew(t *testing.T) {
	inner := stderrors.New("inner")
	err := errors.New("outer %d: %v", 1, inner)
	assert.Equal(t, "outer 1: inner", err.Error())
	assert.True(t, stderrors.Is(err, inner))
}

func TestSinks(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	collect := new(errors.CollectSink)
	sink := errors.Multi{errors.LogSink{Logger: zap.New(core)}, collect, errors.NopSink{}}

	sink.Report(errors.Errorf(errors.UnresolvedPredicate, "user:bar/0"))
	sink.Report(errors.Errorf(errors.InvalidClause, "1"))

	require.Len(t, collect.Errors(), 2)
	assert.Equal(t, errors.InvalidClause, collect.Errors()[1].Type)
	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "engine error", entry.Message)
	assert.Equal(t, "unresolved_predicate", entry.ContextMap()["type"])
}
