// Package supervisor owns the lifecycle of the backend worker.
//
// A start attempt runs locate → install → launch and moves the supervisor
// through idle, locating, installing, starting and running. Concurrent Start
// calls share one attempt and concurrent Stop calls share one shutdown. A Stop
// that arrives mid-start cancels the attempt, waits for it to unwind and
// reports how the partially started worker was disposed of.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"panelctl/internal/config"
	"panelctl/internal/deps"
	"panelctl/internal/interpreter"
	"panelctl/internal/launcher"
	"panelctl/internal/reporting"
	"panelctl/pkg/logging"
)

// source labels every event published by the supervisor.
const source = "backend"

// ErrStopping is returned by Start while a stop is in progress.
var ErrStopping = errors.New("backend is stopping")

// Locator finds the interpreter.
type Locator interface {
	Locate(ctx context.Context) (*interpreter.Interpreter, error)
}

// Installer provisions the worker's dependencies.
type Installer interface {
	EnsureDependencies(ctx context.Context, python string)
	EnsureModuleRunner(ctx context.Context, python string) error
}

// Process is a started worker.
type Process interface {
	PID() int
	StartedAt() time.Time
	Strategy() launcher.StrategyName
	ReadySignal() launcher.ReadinessSignal
	Done() <-chan struct{}
	ExitCode() int
}

// Launcher starts and stops worker processes.
type Launcher interface {
	Launch(ctx context.Context, python string, strategy launcher.Strategy) (Process, error)
	Shutdown(ctx context.Context, p Process) launcher.ShutdownOutcome
}

type processLauncher struct {
	l *launcher.Launcher
}

// NewProcessLauncher adapts a *launcher.Launcher to the Launcher interface.
func NewProcessLauncher(l *launcher.Launcher) Launcher {
	return processLauncher{l: l}
}

func (p processLauncher) Launch(ctx context.Context, python string, strategy launcher.Strategy) (Process, error) {
	h, err := p.l.Launch(ctx, python, strategy)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (p processLauncher) Shutdown(ctx context.Context, proc Process) launcher.ShutdownOutcome {
	h, _ := proc.(*launcher.ProcessHandle)
	return p.l.Shutdown(ctx, h)
}

// Supervisor drives the worker lifecycle. It is safe for concurrent use.
type Supervisor struct {
	cfg       config.SupervisorConfig
	locator   Locator
	installer Installer
	launcher  Launcher
	bus       reporting.EventBus
	metrics   MetricsCollector

	group singleflight.Group

	mu            sync.Mutex
	state         State
	lastErr       error
	interp        *interpreter.Interpreter
	proc          Process
	cancelAttempt context.CancelFunc
	attemptDone   chan struct{}
	attemptID     string
	cleanup       launcher.ShutdownOutcome
}

// New creates a supervisor for cfg. Components not supplied through options
// are built from cfg.
func New(cfg config.SupervisorConfig, opts ...Option) (*Supervisor, error) {
	s := &Supervisor{
		cfg:   cfg,
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.locator == nil {
		loc, err := interpreter.NewLocator(cfg, nil)
		if err != nil {
			return nil, err
		}
		s.locator = loc
	}
	if s.installer == nil {
		s.installer = deps.NewInstaller(cfg, nil)
	}
	if s.launcher == nil {
		s.launcher = NewProcessLauncher(launcher.New(cfg))
	}
	if s.metrics == nil {
		s.metrics = NewNoopMetricsCollector()
	}
	return s, nil
}

// Config returns the configuration the supervisor was built with.
func (s *Supervisor) Config() config.SupervisorConfig {
	return s.cfg
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error of the last failed start, if any.
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Interpreter returns the cached interpreter, or nil before the first locate.
func (s *Supervisor) Interpreter() *interpreter.Interpreter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interp
}

// AttemptID returns the correlation ID of the latest start attempt. Events
// published for that attempt, including a later exit, carry it.
func (s *Supervisor) AttemptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptID
}

// StartedAt returns when the running worker was spawned, or the zero time.
func (s *Supervisor) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return time.Time{}
	}
	return s.proc.StartedAt()
}

// PID returns the worker's pid, or 0 when none is running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return 0
	}
	return s.proc.PID()
}

// Start brings the worker up and blocks until it is ready or the attempt
// fails. It returns nil immediately when already running and ErrStopping
// while a stop is in progress. Callers arriving during an attempt wait for
// that attempt; cancelling ctx only stops this caller from waiting.
func (s *Supervisor) Start(ctx context.Context) error {
	switch s.State() {
	case StateRunning:
		return nil
	case StateStopping:
		return ErrStopping
	}

	ch := s.group.DoChan("start", func() (interface{}, error) {
		return nil, s.runAttempt()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the worker down. Stopping an idle supervisor returns an
// AlreadyStopped outcome. Cancelling ctx shortens the grace period.
func (s *Supervisor) Stop(ctx context.Context) (launcher.ShutdownOutcome, error) {
	ch := s.group.DoChan("stop", func() (interface{}, error) {
		return s.stop(ctx)
	})
	res := <-ch
	outcome, _ := res.Val.(launcher.ShutdownOutcome)
	return outcome, res.Err
}

func (s *Supervisor) runAttempt() error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return nil
	case StateStopping:
		s.mu.Unlock()
		return ErrStopping
	}
	if err := s.setStateLocked(StateLocating); err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancelAttempt = cancel
	s.attemptDone = done
	s.attemptID = reporting.GenerateCorrelationID()
	s.lastErr = nil
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancelAttempt = nil
		s.attemptDone = nil
		s.mu.Unlock()
		close(done)
	}()

	return s.attempt(ctx)
}

func (s *Supervisor) attempt(ctx context.Context) error {
	started := time.Now()

	interp, err := s.locate(ctx)
	if err != nil {
		return s.fail(ctx, launcher.ReasonInterpreterNotFound, "", err, started)
	}

	if err := s.advance(StateInstalling); err != nil {
		return s.fail(ctx, launcher.ReasonCancelled, "", err, started)
	}
	s.installer.EnsureDependencies(ctx, interp.Path)

	strategy := launcher.PrimaryStrategy(s.cfg)
	if err := s.installer.EnsureModuleRunner(ctx, interp.Path); err != nil {
		logging.Warn("Supervisor", "Module runner unavailable, using the fallback strategy: %v", err)
		strategy = launcher.FallbackStrategy(s.cfg)
	}

	if err := s.advance(StateStarting); err != nil {
		return s.fail(ctx, launcher.ReasonCancelled, strategy.Name, err, started)
	}
	proc, err := s.launcher.Launch(ctx, interp.Path, strategy)
	if err != nil {
		return s.fail(ctx, launcher.ReasonOf(err), strategy.Name, err, started)
	}

	s.mu.Lock()
	s.proc = proc
	if s.state != StateStarting {
		// Stop arrived after readiness; it owns proc now.
		s.mu.Unlock()
		return &launcher.StartupError{Reason: launcher.ReasonCancelled, Strategy: strategy.Name, Err: context.Canceled}
	}
	_ = s.setStateLocked(StateRunning)
	id := s.attemptID
	s.mu.Unlock()

	go s.watch(proc, id)

	sig := proc.ReadySignal()
	elapsed := time.Since(started)
	s.metrics.StartupDuration(strategy.Name, sig.Kind, elapsed, nil)
	logging.Info("Supervisor", "Backend running on port %d (pid %d, %s strategy)", s.cfg.Port, proc.PID(), strategy.Name)

	ev := reporting.NewReadyEvent(source, proc.PID(), string(strategy.Name), string(sig.Kind), elapsed)
	ev.WithCorrelation(id)
	s.publish(ev)
	return nil
}

// locate returns the cached interpreter or runs the locator once.
func (s *Supervisor) locate(ctx context.Context) (*interpreter.Interpreter, error) {
	s.mu.Lock()
	cached := s.interp
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	interp, err := s.locator.Locate(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.interp = interp
	s.mu.Unlock()
	return interp, nil
}

// advance moves to the next start phase unless a stop took over.
func (s *Supervisor) advance(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopping {
		return context.Canceled
	}
	return s.setStateLocked(to)
}

// fail records a failed attempt. When a stop is in progress the state is left
// to Stop and the cleanup outcome is handed over.
func (s *Supervisor) fail(ctx context.Context, reason launcher.Reason, strategy launcher.StrategyName, err error, started time.Time) error {
	if ctx.Err() != nil {
		reason = launcher.ReasonCancelled
	}
	if reason == "" {
		reason = launcher.ReasonSpawnFailed
	}

	var se *launcher.StartupError
	if !errors.As(err, &se) {
		se = &launcher.StartupError{Reason: reason, Strategy: strategy, Err: err}
	}

	s.mu.Lock()
	if s.state == StateStopping {
		s.cleanup = se.Cleanup
	} else {
		s.lastErr = se
		_ = s.setStateLocked(StateError)
	}
	id := s.attemptID
	s.mu.Unlock()

	s.metrics.StartupFailure(se.Reason)
	s.metrics.StartupDuration(strategy, se.Signal.Kind, time.Since(started), se)

	if se.Reason == launcher.ReasonCancelled {
		logging.Info("Supervisor", "Start attempt cancelled")
	} else {
		logging.Error("Supervisor", se, "Backend failed to start")
	}

	ev := reporting.NewFailedEvent(source, string(se.Reason), se)
	ev.WithCorrelation(id)
	s.publish(ev)
	return se
}

// watch turns an exit of a running worker into idle plus an exited event.
func (s *Supervisor) watch(proc Process, attemptID string) {
	<-proc.Done()

	s.mu.Lock()
	if s.proc != proc {
		s.mu.Unlock()
		return
	}
	s.proc = nil
	_ = s.setStateLocked(StateIdle)
	s.mu.Unlock()

	code := proc.ExitCode()
	logging.Warn("Supervisor", "Backend (pid %d) exited with code %d after %s", proc.PID(), code, time.Since(proc.StartedAt()).Round(time.Second))
	ev := reporting.NewExitedEvent(source, proc.PID(), code)
	ev.WithCorrelation(attemptID)
	s.publish(ev)
}

func (s *Supervisor) stop(ctx context.Context) (launcher.ShutdownOutcome, error) {
	s.mu.Lock()
	switch {
	case s.state == StateIdle || s.state == StateError:
		if s.state == StateError {
			_ = s.setStateLocked(StateIdle)
		}
		s.mu.Unlock()
		outcome := launcher.ShutdownOutcome{AlreadyStopped: true}
		s.publishStopped(outcome)
		return outcome, nil

	case s.state == StateRunning:
		proc := s.proc
		s.proc = nil
		_ = s.setStateLocked(StateStopping)
		s.mu.Unlock()
		return s.finishStop(s.launcher.Shutdown(ctx, proc)), nil

	case s.state.Starting():
		_ = s.setStateLocked(StateStopping)
		cancel, done := s.cancelAttempt, s.attemptDone
		s.mu.Unlock()

		logging.Info("Supervisor", "Stop requested during startup, cancelling")
		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}

		s.mu.Lock()
		proc := s.proc
		s.proc = nil
		outcome := s.cleanup
		s.cleanup = launcher.ShutdownOutcome{}
		s.mu.Unlock()

		if proc != nil {
			outcome = s.launcher.Shutdown(ctx, proc)
		}
		if outcome == (launcher.ShutdownOutcome{}) {
			outcome.AlreadyStopped = true
		}
		return s.finishStop(outcome), nil
	}

	s.mu.Unlock()
	return launcher.ShutdownOutcome{}, ErrStopping
}

func (s *Supervisor) finishStop(outcome launcher.ShutdownOutcome) launcher.ShutdownOutcome {
	s.mu.Lock()
	_ = s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if !outcome.AlreadyStopped {
		s.metrics.ShutdownDuration(outcome.Forced, outcome.Elapsed)
	}
	logging.Info("Supervisor", "Backend stopped (%s)", outcome)
	s.publishStopped(outcome)
	return outcome
}

// setStateLocked performs a guarded transition. Callers hold s.mu.
func (s *Supervisor) setStateLocked(to State) error {
	from := s.state
	if from == to {
		return nil
	}
	if !from.CanTransitionTo(to) {
		err := &TransitionError{From: from, To: to}
		logging.Debug("Supervisor", "%v", err)
		return err
	}
	s.state = to
	s.metrics.StateTransition(from, to)
	logging.Debug("Supervisor", "State %s → %s", from, to)

	ev := reporting.NewStateChangedEvent(source, string(from), string(to))
	ev.WithCorrelation(s.attemptID)
	s.publish(ev)
	return nil
}

func (s *Supervisor) publishStopped(o launcher.ShutdownOutcome) {
	s.publish(reporting.NewStoppedEvent(source, o.ExitedGracefully, o.Forced, o.AlreadyStopped, o.Elapsed))
}

func (s *Supervisor) publish(event reporting.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}
