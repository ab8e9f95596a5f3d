package observability

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManagerRegistersFuncs(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, time.Second)

	called := false
	sm.RegisterShutdownFunc(func(context.Context) error {
		called = true
		return nil
	})

	assert.Len(t, sm.shutdownFuncs, 1)
	assert.NoError(t, sm.shutdownFuncs[0](context.Background()))
	assert.True(t, called)
}

func TestShutdownManagerDefaultTimeout(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 0)

	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)
}
