package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleHandler_BasicLogging(t *testing.T) {
	handler := NewConsoleHandler(nil, 10, slog.LevelInfo)
	logger := slog.New(handler)

	logger.Info("Test log message")

	messages := handler.Messages(0)
	require.Len(t, messages, 1)
	assert.Equal(t, "Test log message", messages[0].Message)
	assert.Equal(t, "info", messages[0].Level)
	assert.WithinDuration(t, time.Now(), messages[0].Timestamp, time.Second)
}

func TestConsoleHandler_Levels(t *testing.T) {
	handler := NewConsoleHandler(nil, 10, slog.LevelInfo)
	logger := slog.New(handler)

	logger.Debug("hidden")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	messages := handler.Messages(0)
	require.Len(t, messages, 3)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "warning", messages[1].Level)
	assert.Equal(t, "error", messages[2].Level)
}

func TestConsoleHandler_RingBuffer(t *testing.T) {
	handler := NewConsoleHandler(nil, 3, slog.LevelInfo)
	logger := slog.New(handler)

	for i := range 5 {
		logger.Info(fmt.Sprintf("Message %d", i))
	}

	messages := handler.Messages(0)
	require.Len(t, messages, 3)
	for i, msg := range messages {
		assert.Equal(t, fmt.Sprintf("Message %d", i+2), msg.Message)
	}

	last := handler.Messages(2)
	require.Len(t, last, 2)
	assert.Equal(t, "Message 3", last[0].Message)
	assert.Equal(t, "Message 4", last[1].Message)
}

func TestConsoleHandler_AttrsAndGroups(t *testing.T) {
	handler := NewConsoleHandler(nil, 10, slog.LevelInfo)
	logger := slog.New(handler).With("scene", "default").WithGroup("engine")

	logger.Info("resized", "width", 320, slog.Group("grid", "rows", 200))

	messages := handler.Messages(0)
	require.Len(t, messages, 1)
	assert.Equal(t, "resized scene=default engine.width=320 engine.grid.rows=200", messages[0].Message)
}

func TestConsoleHandler_ForwardsToNext(t *testing.T) {
	var out bytes.Buffer
	next := slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewConsoleHandler(next, 10, slog.LevelWarn)
	logger := slog.New(handler)

	logger.Debug("debug only")
	logger.Warn("both")

	assert.Contains(t, out.String(), "debug only")
	assert.Contains(t, out.String(), "both")

	messages := handler.Messages(0)
	require.Len(t, messages, 1)
	assert.Equal(t, "both", messages[0].Message)
}

func TestConsoleHandler_Subscribe(t *testing.T) {
	handler := NewConsoleHandler(nil, 0, slog.LevelInfo)
	logger := slog.New(handler)

	ch, unsubscribe := handler.Subscribe(10)
	logger.Info("live")

	select {
	case msg := <-ch:
		assert.Equal(t, "live", msg.Message)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for console message")
	}

	// A zero-size buffer keeps nothing
	assert.Empty(t, handler.Messages(0))

	unsubscribe()
	unsubscribe()
	logger.Info("after unsubscribe")

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestConsoleHandler_SlowSubscriberDoesNotBlock(t *testing.T) {
	handler := NewConsoleHandler(nil, 10, slog.LevelInfo)
	logger := slog.New(handler)

	ch, unsubscribe := handler.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := range 5 {
			logger.Info(fmt.Sprintf("Message %d", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("logging blocked on a full subscriber")
	}

	assert.Equal(t, "Message 0", (<-ch).Message)
	assert.Len(t, handler.Messages(0), 5)
}
