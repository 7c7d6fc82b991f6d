package platform

import (
	"bytes"
	"testing"

	"github.com/Alientation/AlienOS/klog"
)

func TestNewLoggingPanicLogsBeforeHalting(t *testing.T) {
	var buf bytes.Buffer
	logger := klog.New(&buf, klog.DefaultLevel)

	halted := false
	p := NewLoggingPanic(logger, func() { halted = true })

	p("heap: corrupt block at %#x", uintptr(0x1000))

	if !halted {
		t.Fatal("expected halt to be called")
	}
	if buf.Len() == 0 {
		t.Fatal("expected a log line to be written before halting")
	}
}
