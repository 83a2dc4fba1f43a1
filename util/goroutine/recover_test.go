package goroutine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestRecover_NoPanic tests that Recover doesn't interfere when there's no panic
func TestRecover_NoPanic(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	func() {
		defer Recover("test-goroutine", logger)
	}()
}

// TestRecover_StringPanic tests recovery from string panic
func TestRecover_StringPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	func() {
		defer Recover("string-panic-goroutine", logger)
		panic("test panic message")
	}()

	entries := logs.All()
	require.Len(t, entries, 1, "Should have logged exactly one error")

	entry := entries[0]
	assert.Equal(t, zap.ErrorLevel, entry.Level)
	assert.Equal(t, "Goroutine panic recovered", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "string-panic-goroutine", fields["goroutine"])
	assert.Equal(t, "test panic message", fields["panic"])

	stackTrace, ok := fields["stack"].(string)
	require.True(t, ok, "Stack trace should be a string")
	assert.Contains(t, stackTrace, "goroutine")
}

// TestRecover_IntPanic tests recovery from integer panic
func TestRecover_IntPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	func() {
		defer Recover("int-panic-goroutine", logger)
		panic(42)
	}()

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(42), entries[0].ContextMap()["panic"])
}

// TestRecover_WithNilLogger verifies the stderr fallback does not panic again
func TestRecover_WithNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover("test-goroutine", nil)
		panic("test panic with nil logger")
	})
}

func TestRecoverThen_CallsHandler(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	var gotName string
	var gotValue interface{}
	func() {
		defer RecoverThen("serve-loop", logger, func(name string, value interface{}) {
			gotName, gotValue = name, value
		})
		panic("listener exploded")
	}()

	assert.Equal(t, "serve-loop", gotName)
	assert.Equal(t, "listener exploded", gotValue)
	assert.Equal(t, 1, logs.Len())
}

func TestRecoverThen_NoPanicSkipsHandler(t *testing.T) {
	called := false
	func() {
		defer RecoverThen("quiet", zap.NewNop().Sugar(), func(string, interface{}) { called = true })
	}()
	assert.False(t, called)
}

func TestGo_RecoversAndReports(t *testing.T) {
	AssertNoLeaks(t)

	reported := make(chan interface{}, 1)
	Go("worker", zap.NewNop().Sugar(), func(_ string, value interface{}) {
		reported <- value
	}, func() {
		panic("boom")
	})

	select {
	case v := <-reported:
		assert.Equal(t, "boom", v)
	case <-time.After(time.Second):
		t.Fatal("panic was not reported")
	}
}
