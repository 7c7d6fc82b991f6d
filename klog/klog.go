// Package klog is the structured-logging facade the simulated kernel logs
// through: a small Logger interface with a no-op default and a JSON
// implementation backed by github.com/joeycumines/logiface with the
// github.com/joeycumines/stumpy encoder. sched, heap and synch never
// import klog directly (the kernel core carries no logging obligation);
// platform (NewLoggingPanic) uses it to report fatal errors, and
// cmd/aliensim uses it to narrate allocator stats and scenario progress
// the way a real kernel's dmesg would.
package klog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Field is one structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F constructs a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the facade every caller in this repository logs through.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	// Fatal logs at the highest configured severity. Unlike logiface's own
	// Logger.Fatal builder (which calls os.Exit(1) itself once the event is
	// written), this method never terminates the process — callers that
	// need a hard halt compose it explicitly (see platform.NewLoggingPanic),
	// so a disabled or test logger never has a surprising side effect.
	Fatal(msg string, fields ...Field)
}

type nopLogger struct{}

// NewNop returns a Logger that discards everything, the default wherever no
// logger is configured.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)        {}
func (nopLogger) Info(string, ...Field)         {}
func (nopLogger) Warn(string, ...Field)         {}
func (nopLogger) Error(string, error, ...Field) {}
func (nopLogger) Fatal(string, ...Field)        {}

// stumpyLogger adapts a logiface.Logger[*stumpy.Event] — stumpy's compact
// JSON encoder — onto the Logger facade.
type stumpyLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// New constructs a Logger that writes newline-delimited JSON to w via
// stumpy, at the given minimum level. A nil w defaults to os.Stderr.
func New(w io.Writer, level logiface.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &stumpyLogger{
		l: stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
			stumpy.L.WithLevel(level),
		),
	}
}

func withFields(b *logiface.Builder[*stumpy.Event], fields []Field) *logiface.Builder[*stumpy.Event] {
	for _, f := range fields {
		b = b.Field(f.Key, f.Value)
	}
	return b
}

func (s *stumpyLogger) Debug(msg string, fields ...Field) {
	withFields(s.l.Debug(), fields).Log(msg)
}

func (s *stumpyLogger) Info(msg string, fields ...Field) {
	withFields(s.l.Info(), fields).Log(msg)
}

func (s *stumpyLogger) Warn(msg string, fields ...Field) {
	withFields(s.l.Warning(), fields).Log(msg)
}

func (s *stumpyLogger) Error(msg string, err error, fields ...Field) {
	b := s.l.Err()
	if err != nil {
		b = b.Err(err)
	}
	withFields(b, fields).Log(msg)
}

func (s *stumpyLogger) Fatal(msg string, fields ...Field) {
	withFields(s.l.Alert(), fields).Log(msg)
}

// DefaultLevel is the level New uses when the caller has no stronger
// opinion: LevelInformational (Info and above are written, Debug is not).
const DefaultLevel = logiface.LevelInformational
