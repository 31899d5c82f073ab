package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FaultKind names the kind of failure that reached the supervisor.
type FaultKind string

const (
	// FaultPanic is a panic nobody recovered: the synchronous fault path.
	FaultPanic FaultKind = "uncaught_panic"
	// FaultUnhandled is an error returned by a background goroutine that has
	// no caller to return it to: the asynchronous fault path.
	FaultUnhandled FaultKind = "unhandled_error"
)

// State is the supervisor's lifecycle position.
type State int32

const (
	StateRunning State = iota
	StateCrashing
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCrashing:
		return "crashing"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// HTTPListener stops accepting connections. *Server satisfies it.
type HTTPListener interface {
	StopHTTP(ctx context.Context) error
}

// JobChannel is drained before exit. *job.JobService satisfies it.
type JobChannel interface {
	Stop()
}

// Supervisor is the process-wide owner of shutdown.
//
// Both the graceful path (signal) and the crash path (OnFatal) end with the
// job channel stopped before the process exits. Only the first of them runs;
// later calls are logged and ignored. It never retries or recovers the fault.
type Supervisor struct {
	http   HTTPListener
	jobs   JobChannel
	logger *zerolog.Logger

	// drainTimeout bounds how long in-flight HTTP requests get on the crash path.
	drainTimeout time.Duration

	exit  func(code int)
	now   func() time.Time
	state atomic.Int32
}

func NewSupervisor(http HTTPListener, jobs JobChannel, logger *zerolog.Logger, drainTimeout time.Duration) *Supervisor {
	return &Supervisor{
		http:         http,
		jobs:         jobs,
		logger:       logger,
		drainTimeout: drainTimeout,
		exit:         os.Exit,
		now:          time.Now,
	}
}

// State reports the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

func (s *Supervisor) set(to State) {
	s.state.Store(int32(to))
}

// OnFatal logs the fault, drains the job channel and exits with status 1.
//
// For FaultUnhandled the HTTP listener is closed first so in-flight responses
// can complete. For FaultPanic closing it is best-effort: a failure or panic
// while closing is logged and the drain continues.
func (s *Supervisor) OnFatal(kind FaultKind, err error) {
	if err == nil {
		err = errors.New("unknown fault")
	}

	if !s.transition(StateRunning, StateCrashing) {
		s.logger.Error().
			Str("kind", string(kind)).
			Str("message", err.Error()).
			Str("state", s.State().String()).
			Msg("fatal fault during shutdown, ignoring")
		return
	}

	s.logger.Error().
		Str("kind", string(kind)).
		Str("message", err.Error()).
		Time("timestamp", s.now().UTC()).
		Msg("fatal process fault, shutting down")

	s.closeHTTP(kind == FaultUnhandled)

	s.set(StateDraining)
	s.jobs.Stop()

	s.set(StateTerminated)
	s.exit(1)
}

func (s *Supervisor) closeHTTP(required bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("panic while closing HTTP listener")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()

	if err := s.http.StopHTTP(ctx); err != nil {
		event := s.logger.Warn()
		if required {
			event = s.logger.Error()
		}
		event.Err(err).Msg("failed to close HTTP listener")
	}
}

// Shutdown is the graceful path: stop HTTP within ctx, then drain the job
// channel. It returns the HTTP error, if any; the job channel is stopped
// regardless.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if !s.transition(StateRunning, StateDraining) {
		s.logger.Warn().Str("state", s.State().String()).Msg("shutdown already in progress")
		return nil
	}

	s.logger.Info().Msg("shutting down gracefully")

	httpErr := s.http.StopHTTP(ctx)
	s.jobs.Stop()

	s.set(StateTerminated)
	return httpErr
}

// RecoverPanic reports a panic of the calling goroutine as FaultPanic.
// Use as `defer sup.RecoverPanic()`.
func (s *Supervisor) RecoverPanic() {
	if r := recover(); r != nil {
		s.OnFatal(FaultPanic, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
	}
}

// Go runs fn on a new goroutine. A panic becomes FaultPanic and a returned
// error FaultUnhandled.
func (s *Supervisor) Go(name string, fn func() error) {
	go func() {
		defer s.RecoverPanic()

		if err := fn(); err != nil {
			s.OnFatal(FaultUnhandled, fmt.Errorf("%s: %w", name, err))
		}
	}()
}
