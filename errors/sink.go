package errors

import (
	"sync"

	"go.uber.org/zap"
)

// Sink receives errors that are tolerated by the engine, like a predicate that failed to
// compile.
type Sink interface {
	Report(err *Error)
}

// NopSink discards every error.
type NopSink struct{}

func (NopSink) Report(*Error) {}

// LogSink writes errors to a logger at warn level.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Report(err *Error) {
	s.Logger.Warn("engine error",
		zap.Stringer("type", err.Type),
		zap.String("error", err.Error()))
}

// CollectSink accumulates errors in memory. It's safe for concurrent use.
type CollectSink struct {
	mu   sync.Mutex
	errs []*Error
}

func (s *CollectSink) Report(err *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Errors returns a copy of the collected errors.
func (s *CollectSink) Errors() []*Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Error(nil), s.errs...)
}

// Multi forwards errors to every sink.
type Multi []Sink

func (ss Multi) Report(err *Error) {
	for _, s := range ss {
		s.Report(err)
	}
}
