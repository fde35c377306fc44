package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warning", "error"
}

// consoleBuffer is the state shared by a ConsoleHandler and every handler
// derived from it with WithAttrs or WithGroup
type consoleBuffer struct {
	mu          sync.Mutex
	messages    []ConsoleMessage // ring buffer
	next        int
	full        bool
	subscribers map[chan ConsoleMessage]struct{}
}

// ConsoleHandler is a slog.Handler that keeps the most recent records for
// the web console and fans them out to live subscribers, then passes each
// record on to the wrapped handler
type ConsoleHandler struct {
	next   slog.Handler
	level  slog.Leveler
	buf    *consoleBuffer
	attrs  string // pre-formatted attributes from WithAttrs
	prefix string // group prefix from WithGroup
}

// NewConsoleHandler keeps the last size records at or above level. next may
// be nil to only feed the console.
func NewConsoleHandler(next slog.Handler, size int, level slog.Leveler) *ConsoleHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &ConsoleHandler{
		next:  next,
		level: level,
		buf: &consoleBuffer{
			messages:    make([]ConsoleMessage, max(size, 0)),
			subscribers: make(map[chan ConsoleMessage]struct{}),
		},
	}
}

// Enabled reports whether either the console or the wrapped handler wants
// records at level
func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

// Handle records the message and forwards it
func (h *ConsoleHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		h.buf.add(ConsoleMessage{
			Message:   h.format(r),
			Timestamp: r.Time,
			Level:     levelName(r.Level),
		})
	}

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

// WithAttrs returns a handler that adds attrs to every record
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *h
	var sb strings.Builder
	sb.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&sb, h.prefix, a)
	}
	derived.attrs = sb.String()
	if h.next != nil {
		derived.next = h.next.WithAttrs(attrs)
	}
	return &derived
}

// WithGroup returns a handler that qualifies later attributes with name
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	derived := *h
	derived.prefix = h.prefix + name + "."
	if h.next != nil {
		derived.next = h.next.WithGroup(name)
	}
	return &derived
}

// Messages returns up to limit of the most recent messages, oldest first.
// A limit of 0 or less returns everything kept.
func (h *ConsoleHandler) Messages(limit int) []ConsoleMessage {
	return h.buf.snapshot(limit)
}

// Subscribe returns a channel receiving every new message and a function
// that ends the subscription. Slow subscribers miss messages rather than
// blocking the logger.
func (h *ConsoleHandler) Subscribe(buffer int) (<-chan ConsoleMessage, func()) {
	ch := make(chan ConsoleMessage, buffer)

	h.buf.mu.Lock()
	h.buf.subscribers[ch] = struct{}{}
	h.buf.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.buf.mu.Lock()
			delete(h.buf.subscribers, ch)
			h.buf.mu.Unlock()
			close(ch)
		})
	}
}

func (h *ConsoleHandler) format(r slog.Record) string {
	var sb strings.Builder
	sb.WriteString(r.Message)
	sb.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.prefix, a)
		return true
	})
	return sb.String()
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		group := prefix
		if a.Key != "" {
			group += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(sb, group, ga)
		}
		return
	}
	fmt.Fprintf(sb, " %s%s=%v", prefix, a.Key, a.Value.Any())
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

func (b *consoleBuffer) add(msg ConsoleMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.messages) > 0 {
		b.messages[b.next] = msg
		b.next = (b.next + 1) % len(b.messages)
		if b.next == 0 {
			b.full = true
		}
	}

	for ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			// Subscriber is behind, skip (don't block)
		}
	}
}

func (b *consoleBuffer) snapshot(limit int) []ConsoleMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []ConsoleMessage
	if b.full {
		out = append(out, b.messages[b.next:]...)
	}
	out = append(out, b.messages[:b.next]...)

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
