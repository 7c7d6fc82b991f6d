// Package kconfig is the typed configuration surface for the simulated
// kernel's tunables: tick frequency, default stack size, and the heap's
// initial extend. Values come from a functional-option constructor with
// environment overrides layered on top, and can additionally be bound to
// a flag.FlagSet for CLI use.
package kconfig

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Defaults: 100 Hz tick, 16 KiB stacks, a 16 KiB initial heap extend.
// DefaultKernelImageEnd is the simulated arena's reserved low region
// (1 MiB), where a PC kernel image loaded above the low-memory hole would
// end.
const (
	DefaultTickHz            = 100
	DefaultStackSize         = 16 * 1024
	DefaultInitialHeapExtend = 16 * 1024
	DefaultKernelImageEnd    = 0x100000
)

// Config holds the tunables. A zero Config is not valid input to anything
// that consumes it directly; construct one with New, which fills in
// defaults before applying Options and environment overrides.
type Config struct {
	TickHz            int
	StackSize         int
	InitialHeapExtend uint64
	KernelImageEnd    uint64
}

// Option configures a Config under construction.
type Option func(*Config)

// WithTickHz overrides the scheduler's tick frequency.
func WithTickHz(hz int) Option {
	return func(c *Config) { c.TickHz = hz }
}

// WithStackSize overrides the default per-thread stack size.
func WithStackSize(n int) Option {
	return func(c *Config) { c.StackSize = n }
}

// WithInitialHeapExtend overrides the heap's initial extend-from-empty size.
func WithInitialHeapExtend(n uint64) Option {
	return func(c *Config) { c.InitialHeapExtend = n }
}

// WithKernelImageEnd overrides the offset the simulated arena's available
// region starts from, standing in for a linked kernel image's end symbol
// (there is no real kernel image in this simulation).
func WithKernelImageEnd(n uint64) Option {
	return func(c *Config) { c.KernelImageEnd = n }
}

// New builds a Config from the documented defaults, applies opts in order,
// then applies any ALIENOS_* environment overrides on top — environment
// wins over explicit Options, matching the usual "flags/options are
// developer defaults, environment is the deployment override" precedence.
func New(opts ...Option) Config {
	c := Config{
		TickHz:            DefaultTickHz,
		StackSize:         DefaultStackSize,
		InitialHeapExtend: DefaultInitialHeapExtend,
		KernelImageEnd:    DefaultKernelImageEnd,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	c.applyEnv()
	return c
}

// applyEnv overrides fields from ALIENOS_TICK_HZ, ALIENOS_STACK_SIZE,
// ALIENOS_HEAP_INITIAL_EXTEND, and ALIENOS_KERNEL_IMAGE_END when set to a
// valid positive value. Unset or
// malformed variables are silently ignored — this is ambient configuration,
// not user input crossing a trust boundary, so there is no caller to report
// a parse error to.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("ALIENOS_TICK_HZ"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TickHz = n
		}
	}
	if v, ok := os.LookupEnv("ALIENOS_STACK_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.StackSize = n
		}
	}
	if v, ok := os.LookupEnv("ALIENOS_HEAP_INITIAL_EXTEND"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			c.InitialHeapExtend = n
		}
	}
	if v, ok := os.LookupEnv("ALIENOS_KERNEL_IMAGE_END"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			c.KernelImageEnd = n
		}
	}
}

// RegisterFlags binds the Config's fields onto fs as -tick-hz, -stack-size,
// -heap-initial-extend and -kernel-image-end, with the Config's current values (whatever New
// already resolved) as each flag's default. Call before fs.Parse.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.TickHz, "tick-hz", c.TickHz, "scheduler tick frequency, in Hz")
	fs.IntVar(&c.StackSize, "stack-size", c.StackSize, "per-thread stack size, in bytes")
	fs.Uint64Var(&c.InitialHeapExtend, "heap-initial-extend", c.InitialHeapExtend, "heap's initial extend-from-empty size, in bytes")
	fs.Uint64Var(&c.KernelImageEnd, "kernel-image-end", c.KernelImageEnd, "offset the simulated arena's available region starts from, in bytes")
}

// TickPeriod converts TickHz into the equivalent time.Duration period for a
// platform.Ticker. A non-positive TickHz defaults to the 100 Hz period.
func (c Config) TickPeriod() time.Duration {
	if c.TickHz <= 0 {
		return time.Second / DefaultTickHz
	}
	return time.Second / time.Duration(c.TickHz)
}
