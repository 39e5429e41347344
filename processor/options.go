//go:build unix
// +build unix

// File: processor/options.go
// Package processor defines functional options for the Processor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package processor

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/control"
)

// Option customizes processor initialization.
type Option func(*Processor)

// WithSelectTimeout bounds one multiplexer wait. It also bounds the
// staleness of idle scanning and of queue changes submitted without an
// explicit wakeup.
func WithSelectTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.cfg.selectTimeout = d
		}
	}
}

// WithIdleTimeout closes sessions with no IO activity for longer than
// d. Zero disables idle closing.
func WithIdleTimeout(d time.Duration) Option {
	return func(p *Processor) { p.cfg.idleTimeout = d }
}

// WithReadBufferSize sizes the reusable read buffer.
func WithReadBufferSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.cfg.readBufSize = n
		}
	}
}

// WithFairnessBytes caps bytes read from one session per loop pass so a
// busy session cannot starve the others.
func WithFairnessBytes(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.cfg.fairnessBytes = n
		}
	}
}

// WithMaxEvents caps readiness notifications consumed per wait.
func WithMaxEvents(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.cfg.maxEvents = n
		}
	}
}

// WithExecutor shares an externally owned executor. The processor will
// not close it on shutdown.
func WithExecutor(e api.Executor) Option {
	return func(p *Processor) {
		p.exec = e
		p.ownExec = false
	}
}

// WithExecutorWorkers sizes the processor-owned executor; ignored when
// WithExecutor is used.
func WithExecutorWorkers(n int) Option {
	return func(p *Processor) { p.cfg.workers = n }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *control.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithMultiplexer injects a multiplexer, replacing the platform one.
func WithMultiplexer(m api.Multiplexer) Option {
	return func(p *Processor) { p.mux = m }
}

// FromConfig maps a control.ProcessorConfig onto options.
func FromConfig(c control.ProcessorConfig) []Option {
	return []Option{
		WithSelectTimeout(time.Duration(c.SelectTimeoutMs) * time.Millisecond),
		WithIdleTimeout(time.Duration(c.IdleTimeoutMs) * time.Millisecond),
		WithReadBufferSize(c.ReadBufferSize),
		WithFairnessBytes(c.FairnessBytes),
		WithMaxEvents(c.MaxEvents),
		WithExecutorWorkers(c.ExecutorWorkers),
	}
}
