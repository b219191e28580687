// Package notice carries the user-facing message sink through the request
// context, the same way zctx carries the logger. Domain code emits notices
// ("discount applied", "payment failed") without knowing how the surrounding
// layer surfaces them.
package notice

import (
	"context"
	"sync"
)

// Sink receives informational and error notices addressed to the requester.
type Sink interface {
	Info(msg string)
	Error(msg string)
}

type ctxKey struct{}

// With returns a context carrying the given sink.
func With(ctx context.Context, s Sink) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From extracts the sink from the context. When none is present it returns
// a sink that discards everything, so emitting a notice is always safe.
func From(ctx context.Context) Sink {
	if s, ok := ctx.Value(ctxKey{}).(Sink); ok {
		return s
	}
	return nopSink{}
}

type nopSink struct{}

func (nopSink) Info(string)  {}
func (nopSink) Error(string) {}

// Recorder collects notices for inclusion in an HTTP response. Safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (r *Recorder) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

// Infos returns the collected informational notices.
func (r *Recorder) Infos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.infos...)
}

// Errors returns the collected error notices.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}
