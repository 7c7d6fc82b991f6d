package platform

import (
	"fmt"
	"os"

	"github.com/Alientation/AlienOS/klog"
)

// NewLoggingPanic builds a Panic that records the formatted message through
// logger before halting via halt (nil defaults to os.Exit(1), the same halt
// DefaultPanic uses). This is how cmd/aliensim routes a kernel-core fatal
// invariant violation through its configured klog.Logger instead of writing
// straight to stderr. logger is never nil in practice: klog.NewNop is the
// default wherever a caller configures none.
func NewLoggingPanic(logger klog.Logger, halt func()) Panic {
	if halt == nil {
		halt = func() { os.Exit(1) }
	}
	return func(format string, args ...any) {
		logger.Fatal(fmt.Sprintf(format, args...))
		halt()
	}
}
