package launcher

import (
	"errors"
	"fmt"
)

// Reason classifies a failed start.
type Reason string

const (
	ReasonInterpreterNotFound Reason = "interpreter-not-found"
	ReasonStartupTimeout      Reason = "startup-timeout"
	ReasonBindError           Reason = "bind-error"
	ReasonUnexpectedExit      Reason = "unexpected-exit"
	ReasonSpawnFailed         Reason = "spawn-failed"
	ReasonCancelled           Reason = "cancelled"
)

// StartupError is returned when the worker does not become ready. Cleanup
// tells how the partially started process was disposed of.
type StartupError struct {
	Reason   Reason
	Strategy StrategyName
	Signal   ReadinessSignal
	Cleanup  ShutdownOutcome
	Err      error
}

func (e *StartupError) Error() string {
	msg := "backend startup failed (" + string(e.Reason)
	if e.Strategy != "" {
		msg += ", " + string(e.Strategy) + " strategy"
	}
	msg += ")"

	switch {
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	case e.Signal.Kind == SignalProcessExit:
		msg += fmt.Sprintf(": worker exited with code %d", e.Signal.ExitCode)
	case e.Signal.Text != "":
		msg += ": " + e.Signal.Text
	}
	return msg
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the Reason from err, or "" if err is not a *StartupError.
func ReasonOf(err error) Reason {
	var se *StartupError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}

func reasonFor(kind SignalKind) Reason {
	switch kind {
	case SignalTimeout:
		return ReasonStartupTimeout
	case SignalFatalStderr:
		return ReasonBindError
	case SignalCancelled:
		return ReasonCancelled
	}
	return ReasonUnexpectedExit
}
