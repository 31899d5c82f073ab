package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type steps struct {
	mu  sync.Mutex
	log []string
}

func (s *steps) add(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, step)
}

func (s *steps) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

type fakeHTTP struct {
	steps *steps
	err   error
	panic bool
}

func (f *fakeHTTP) StopHTTP(context.Context) error {
	f.steps.add("http")
	if f.panic {
		panic("listener in a bad state")
	}
	return f.err
}

type fakeJobs struct {
	steps *steps
	stops int
}

func (f *fakeJobs) Stop() {
	f.stops++
	f.steps.add("jobs")
}

func newTestSupervisor(t *testing.T) (*Supervisor, *steps, *fakeHTTP, *fakeJobs, chan int) {
	t.Helper()

	logger := zerolog.Nop()
	st := &steps{}
	http := &fakeHTTP{steps: st}
	jobs := &fakeJobs{steps: st}

	sup := NewSupervisor(http, jobs, &logger, time.Second)
	exits := make(chan int, 4)
	sup.exit = func(code int) {
		st.add("exit")
		exits <- code
	}
	return sup, st, http, jobs, exits
}

func TestOnFatalUnhandledClosesHTTPThenDrainsThenExits(t *testing.T) {
	sup, st, _, jobs, exits := newTestSupervisor(t)

	sup.OnFatal(FaultUnhandled, errors.New("listener crashed"))

	assert.Equal(t, []string{"http", "jobs", "exit"}, st.all())
	assert.Equal(t, 1, <-exits)
	assert.Equal(t, 1, jobs.stops)
	assert.Equal(t, StateTerminated, sup.State())
}

func TestOnFatalPanicDrainsEvenWhenHTTPCloseFails(t *testing.T) {
	sup, st, http, jobs, exits := newTestSupervisor(t)
	http.panic = true

	sup.OnFatal(FaultPanic, errors.New("nil map write"))

	assert.Equal(t, []string{"http", "jobs", "exit"}, st.all())
	assert.Equal(t, 1, <-exits)
	assert.Equal(t, 1, jobs.stops)
}

func TestOnFatalRunsOnce(t *testing.T) {
	sup, _, _, jobs, exits := newTestSupervisor(t)

	sup.OnFatal(FaultUnhandled, errors.New("first"))
	sup.OnFatal(FaultPanic, errors.New("second"))

	assert.Equal(t, 1, jobs.stops)
	assert.Len(t, exits, 1)
}

func TestGracefulShutdownThenFatalIsIgnored(t *testing.T) {
	sup, st, _, jobs, exits := newTestSupervisor(t)

	require.NoError(t, sup.Shutdown(context.Background()))
	sup.OnFatal(FaultUnhandled, errors.New("late"))

	assert.Equal(t, []string{"http", "jobs"}, st.all())
	assert.Equal(t, 1, jobs.stops)
	assert.Empty(t, exits)
	assert.Equal(t, StateTerminated, sup.State())
}

func TestShutdownReturnsHTTPErrorButStillDrains(t *testing.T) {
	sup, _, http, jobs, _ := newTestSupervisor(t)
	http.err = context.DeadlineExceeded

	err := sup.Shutdown(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, jobs.stops)
}

func TestGoReportsErrorsAndPanics(t *testing.T) {
	sup, _, _, _, exits := newTestSupervisor(t)
	sup.Go("serve", func() error { return errors.New("accept: too many open files") })

	select {
	case code := <-exits:
		assert.Equal(t, 1, code)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not exit on goroutine error")
	}

	sup2, _, _, _, exits2 := newTestSupervisor(t)
	sup2.Go("worker", func() error { panic("boom") })

	select {
	case code := <-exits2:
		assert.Equal(t, 1, code)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not exit on goroutine panic")
	}
}

func TestGoNilErrorDoesNothing(t *testing.T) {
	sup, _, _, jobs, exits := newTestSupervisor(t)

	done := make(chan struct{})
	sup.Go("noop", func() error {
		defer close(done)
		return nil
	})
	<-done

	assert.Equal(t, StateRunning, sup.State())
	assert.Equal(t, 0, jobs.stops)
	assert.Empty(t, exits)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "state(9)", State(9).String())
}
