/*
PURPOSE:
  Point-in-time resource readings for the benchmarking process:
  resident memory and CPU utilisation.

REQUIREMENTS:
  User-specified:
  - Memory in megabytes (RSS), CPU as a percentage over a short interval.

  Implementation-discovered:
  - Bound to an explicit PID instead of an implicit "current process"
    global, so tests and embedders can construct their own.
  - CPU interval is capped so sampling never dominates a scenario.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine (through the engine.Sampler interface)
  - Dependencies: github.com/shirou/gopsutil/v3/process

ERROR HANDLING:
  - Returns the gopsutil error wrapped with the PID.

IMPLEMENTATION RULES:
  - Synchronous reads, no background goroutines.
  - Deltas are the caller's job (after - before).

USAGE:
  s, err := resource.New()
  mb, err := s.MemoryMB()

SELF-HEALING INSTRUCTIONS:
  - If CPU readings are always 0, the interval is probably too short for
    the platform clock tick. Raise it with WithCPUInterval.

RELATED FILES:
  - internal/engine/orchestrator.go

MAINTENANCE:
  - None.
*/

package resource

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	// DefaultCPUInterval matches the interval the original harness used.
	DefaultCPUInterval = 100 * time.Millisecond
	// MaxCPUInterval bounds a single CPU sample.
	MaxCPUInterval = 200 * time.Millisecond

	bytesPerMB = 1024 * 1024
)

// Sampler reads memory and CPU usage of one process.
type Sampler struct {
	pid         int32
	proc        *process.Process
	cpuInterval time.Duration
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithPID samples another process instead of the current one.
func WithPID(pid int32) Option {
	return func(s *Sampler) { s.pid = pid }
}

// WithCPUInterval sets the CPU measurement window, clamped to
// (0, MaxCPUInterval].
func WithCPUInterval(d time.Duration) Option {
	return func(s *Sampler) {
		switch {
		case d <= 0:
			s.cpuInterval = DefaultCPUInterval
		case d > MaxCPUInterval:
			s.cpuInterval = MaxCPUInterval
		default:
			s.cpuInterval = d
		}
	}
}

// New creates a Sampler for the current process unless WithPID is given.
func New(opts ...Option) (*Sampler, error) {
	s := &Sampler{
		pid:         int32(os.Getpid()),
		cpuInterval: DefaultCPUInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	p, err := process.NewProcess(s.pid)
	if err != nil {
		return nil, errors.Wrapf(err, "attach to process %d", s.pid)
	}
	s.proc = p
	return s, nil
}

// PID returns the sampled process id.
func (s *Sampler) PID() int32 { return s.pid }

// CPUInterval returns the configured CPU window.
func (s *Sampler) CPUInterval() time.Duration { return s.cpuInterval }

// MemoryMB returns the resident set size in megabytes.
func (s *Sampler) MemoryMB() (float64, error) {
	mi, err := s.proc.MemoryInfoWithContext(context.Background())
	if err != nil {
		return 0, errors.Wrapf(err, "read memory of process %d", s.pid)
	}
	return float64(mi.RSS) / bytesPerMB, nil
}

// CPUPercent blocks for the CPU interval and returns utilisation over it.
// Values above 100 are possible on multi-core machines.
func (s *Sampler) CPUPercent() (float64, error) {
	pct, err := s.proc.PercentWithContext(context.Background(), s.cpuInterval)
	if err != nil {
		return 0, errors.Wrapf(err, "read cpu of process %d", s.pid)
	}
	if pct < 0 {
		pct = 0
	}
	return pct, nil
}
