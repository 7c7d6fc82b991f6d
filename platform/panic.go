package platform

import (
	"fmt"
	"os"
)

// DefaultPanic writes the formatted message to stderr and halts the
// process: output to a diagnostic channel, then halt.
func DefaultPanic(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "alienos: fatal: "+format+"\n", args...)
	os.Exit(1)
}

// RecordingPanic is a test double for Panic: it stores every invocation's
// formatted message instead of halting, so tests can assert a fatal path
// was taken without killing the test binary.
type RecordingPanic struct {
	Messages []string
}

// Panic implements the Panic func signature as a method value; callers
// pass rp.Panic wherever a platform.Panic is expected.
func (r *RecordingPanic) Panic(format string, args ...any) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// Triggered reports whether Panic has been called at least once.
func (r *RecordingPanic) Triggered() bool {
	return len(r.Messages) > 0
}
