package reporting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	// Backend lifecycle events
	EventTypeStateChanged EventType = "backend.state"
	EventTypeReady        EventType = "backend.ready"
	EventTypeFailed       EventType = "backend.failed"
	EventTypeExited       EventType = "backend.exited"
	EventTypeStopped      EventType = "backend.stopped"
)

// EventSeverity indicates the importance/severity of an event
type EventSeverity string

const (
	SeverityDebug EventSeverity = "debug"
	SeverityInfo  EventSeverity = "info"
	SeverityWarn  EventSeverity = "warn"
	SeverityError EventSeverity = "error"
)

// Event is the base interface for all events in the system
type Event interface {
	// Type returns the event type
	Type() EventType

	// Source returns the component that generated this event
	Source() string

	// Timestamp returns when the event occurred
	Timestamp() time.Time

	// Severity returns the event severity
	Severity() EventSeverity

	// CorrelationID ties together the events of one start attempt
	CorrelationID() string

	// String returns a human-readable description of the event
	String() string
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventType     EventType     `json:"type"`
	SourceLabel   string        `json:"source"`
	EventTime     time.Time     `json:"timestamp"`
	EventSeverity EventSeverity `json:"severity"`
	CorrelationId string        `json:"correlation_id,omitempty"`
}

// Type implements Event interface
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Source implements Event interface
func (e BaseEvent) Source() string {
	return e.SourceLabel
}

// Timestamp implements Event interface
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// Severity implements Event interface
func (e BaseEvent) Severity() EventSeverity {
	return e.EventSeverity
}

// CorrelationID implements Event interface
func (e BaseEvent) CorrelationID() string {
	return e.CorrelationId
}

// String implements Event interface
func (e BaseEvent) String() string {
	return string(e.EventType) + " from " + e.SourceLabel
}

// WithCorrelation sets the correlation ID.
func (e *BaseEvent) WithCorrelation(correlationID string) *BaseEvent {
	e.CorrelationId = correlationID
	return e
}

func newBase(eventType EventType, source string, severity EventSeverity) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SourceLabel:   source,
		EventTime:     time.Now(),
		EventSeverity: severity,
	}
}

// GenerateCorrelationID returns a fresh random identifier.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// StateChangedEvent records one supervisor state transition.
type StateChangedEvent struct {
	BaseEvent
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
}

func (e StateChangedEvent) String() string {
	return fmt.Sprintf("%s: %s → %s", e.SourceLabel, e.OldState, e.NewState)
}

// ReadyEvent is published when the worker is confirmed ready.
type ReadyEvent struct {
	BaseEvent
	PID      int           `json:"pid"`
	Strategy string        `json:"strategy"`
	Signal   string        `json:"signal"`
	Elapsed  time.Duration `json:"elapsed"`
}

func (e ReadyEvent) String() string {
	return fmt.Sprintf("%s ready (pid %d, %s strategy, via %s after %s)",
		e.SourceLabel, e.PID, e.Strategy, e.Signal, e.Elapsed.Round(time.Millisecond))
}

// FailedEvent is published when a start attempt fails.
type FailedEvent struct {
	BaseEvent
	Reason string `json:"reason"`
	Error  error  `json:"-"`
}

func (e FailedEvent) String() string {
	if e.Error != nil {
		return fmt.Sprintf("%s failed (%s): %v", e.SourceLabel, e.Reason, e.Error)
	}
	return fmt.Sprintf("%s failed (%s)", e.SourceLabel, e.Reason)
}

// ExitedEvent is published when a ready worker exits on its own.
type ExitedEvent struct {
	BaseEvent
	PID      int `json:"pid"`
	ExitCode int `json:"exit_code"`
}

func (e ExitedEvent) String() string {
	return fmt.Sprintf("%s exited unexpectedly (pid %d, code %d)", e.SourceLabel, e.PID, e.ExitCode)
}

// StoppedEvent is published after a requested stop completes.
type StoppedEvent struct {
	BaseEvent
	Graceful       bool          `json:"graceful"`
	Forced         bool          `json:"forced"`
	AlreadyStopped bool          `json:"already_stopped"`
	Elapsed        time.Duration `json:"elapsed"`
}

func (e StoppedEvent) String() string {
	switch {
	case e.AlreadyStopped:
		return e.SourceLabel + " was already stopped"
	case e.Forced:
		return fmt.Sprintf("%s force-killed after %s", e.SourceLabel, e.Elapsed.Round(time.Millisecond))
	default:
		return fmt.Sprintf("%s stopped after %s", e.SourceLabel, e.Elapsed.Round(time.Millisecond))
	}
}

// NewStateChangedEvent creates a state transition event
func NewStateChangedEvent(source, oldState, newState string) *StateChangedEvent {
	severity := SeverityDebug
	if newState == "error" {
		severity = SeverityWarn
	}
	return &StateChangedEvent{
		BaseEvent: newBase(EventTypeStateChanged, source, severity),
		OldState:  oldState,
		NewState:  newState,
	}
}

// NewReadyEvent creates a ready event
func NewReadyEvent(source string, pid int, strategy, signal string, elapsed time.Duration) *ReadyEvent {
	return &ReadyEvent{
		BaseEvent: newBase(EventTypeReady, source, SeverityInfo),
		PID:       pid,
		Strategy:  strategy,
		Signal:    signal,
		Elapsed:   elapsed,
	}
}

// NewFailedEvent creates a failure event
func NewFailedEvent(source, reason string, err error) *FailedEvent {
	return &FailedEvent{
		BaseEvent: newBase(EventTypeFailed, source, SeverityError),
		Reason:    reason,
		Error:     err,
	}
}

// NewExitedEvent creates an unexpected-exit event
func NewExitedEvent(source string, pid, exitCode int) *ExitedEvent {
	return &ExitedEvent{
		BaseEvent: newBase(EventTypeExited, source, SeverityWarn),
		PID:       pid,
		ExitCode:  exitCode,
	}
}

// NewStoppedEvent creates a stop event
func NewStoppedEvent(source string, graceful, forced, alreadyStopped bool, elapsed time.Duration) *StoppedEvent {
	return &StoppedEvent{
		BaseEvent:      newBase(EventTypeStopped, source, SeverityInfo),
		Graceful:       graceful,
		Forced:         forced,
		AlreadyStopped: alreadyStopped,
		Elapsed:        elapsed,
	}
}
