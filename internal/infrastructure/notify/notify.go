// Package notify delivers transient success and error messages to the user.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Kind of a notification
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a single message. For errors Title holds the failure code.
type Notification struct {
	Kind    Kind
	Title   string
	Message string
}

// Success builds a success notification
func Success(title, message string) Notification {
	return Notification{Kind: KindSuccess, Title: title, Message: message}
}

// Error builds an error notification carrying a failure code
func Error(code, message string) Notification {
	return Notification{Kind: KindError, Title: code, Message: message}
}

// Emitter presents notifications. Notify must not block the caller for long
// and has no result.
type Emitter interface {
	Notify(ctx context.Context, n Notification)
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(ctx context.Context, n Notification)

func (f EmitterFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Discard drops every notification
var Discard Emitter = EmitterFunc(func(context.Context, Notification) {})

// LogEmitter writes notifications as structured log entries
type LogEmitter struct {
	logger *zap.Logger
}

// NewLogEmitter creates a LogEmitter
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmitter{logger: logger.Named("notify")}
}

func (e *LogEmitter) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{zap.String("title", n.Title), zap.String("message", n.Message)}
	if n.Kind == KindError {
		e.logger.Warn("notification", fields...)
		return
	}
	e.logger.Info("notification", fields...)
}

// WriterEmitter prints one line per notification, e.g. to a terminal's stderr
type WriterEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterEmitter creates a WriterEmitter writing to w
func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{w: w}
}

func (e *WriterEmitter) Notify(_ context.Context, n Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mark := "OK"
	if n.Kind == KindError {
		mark = "ERROR"
	}
	_, _ = fmt.Fprintf(e.w, "[%s] %s: %s\n", mark, n.Title, n.Message)
}

// Hub fans a notification out to several emitters. A panicking emitter is
// logged and does not affect the others.
type Hub struct {
	mu       sync.RWMutex
	emitters []Emitter
	logger   *zap.Logger
}

// NewHub creates a Hub
func NewHub(logger *zap.Logger, emitters ...Emitter) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{emitters: emitters, logger: logger.Named("notify")}
}

// Add registers another emitter
func (h *Hub) Add(e Emitter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emitters = append(h.emitters, e)
}

func (h *Hub) Notify(ctx context.Context, n Notification) {
	h.mu.RLock()
	emitters := h.emitters
	h.mu.RUnlock()

	for _, e := range emitters {
		h.deliver(ctx, e, n)
	}
}

func (h *Hub) deliver(ctx context.Context, e Emitter, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("emitter panicked",
				zap.String("kind", string(n.Kind)),
				zap.String("title", n.Title),
				zap.Any("panic", r),
			)
		}
	}()
	e.Notify(ctx, n)
}

var (
	_ Emitter = (*LogEmitter)(nil)
	_ Emitter = (*WriterEmitter)(nil)
	_ Emitter = (*Hub)(nil)
)
