package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SignalKind tags a ReadinessSignal.
type SignalKind string

const (
	SignalStdoutMatch SignalKind = "stdout-match"
	SignalStderrMatch SignalKind = "stderr-match"
	SignalHTTPProbe   SignalKind = "http-probe"
	SignalTimeout     SignalKind = "timeout"
	SignalFatalStderr SignalKind = "fatal-stderr"
	SignalProcessExit SignalKind = "process-exit"
	SignalCancelled   SignalKind = "cancelled"
)

// ReadinessSignal is the event that resolved a readiness race.
type ReadinessSignal struct {
	Kind     SignalKind
	Text     string        // matched line, probe status or timeout description
	ExitCode int           // set for SignalProcessExit
	Elapsed  time.Duration // since the race was armed
}

// Ready reports whether the signal means the worker is serving.
func (s ReadinessSignal) Ready() bool {
	switch s.Kind {
	case SignalStdoutMatch, SignalStderrMatch, SignalHTTPProbe:
		return true
	}
	return false
}

func (s ReadinessSignal) String() string {
	switch {
	case s.Kind == SignalProcessExit:
		return fmt.Sprintf("%s (code %d)", s.Kind, s.ExitCode)
	case s.Text != "":
		return fmt.Sprintf("%s: %s", s.Kind, s.Text)
	}
	return string(s.Kind)
}

// readinessRace lets any number of listeners offer a signal; only the first
// one is kept. Resolution cancels the race context so every listener can
// return.
type readinessRace struct {
	once    sync.Once
	result  chan ReadinessSignal
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

func newReadinessRace() *readinessRace {
	ctx, cancel := context.WithCancel(context.Background())
	return &readinessRace{
		result:  make(chan ReadinessSignal, 1),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}
}

// offer submits sig and reports whether it won.
func (r *readinessRace) offer(sig ReadinessSignal) bool {
	won := false
	r.once.Do(func() {
		sig.Elapsed = time.Since(r.started)
		r.result <- sig
		r.cancel()
		won = true
	})
	return won
}

func (r *readinessRace) wait() ReadinessSignal {
	return <-r.result
}

func (r *readinessRace) done() <-chan struct{} {
	return r.ctx.Done()
}

func (r *readinessRace) context() context.Context {
	return r.ctx
}

func (r *readinessRace) resolved() bool {
	select {
	case <-r.ctx.Done():
		return true
	default:
		return false
	}
}
