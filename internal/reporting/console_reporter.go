package reporting

import (
	"panelctl/pkg/logging"
)

// ConsoleReporter logs lifecycle events through pkg/logging.
type ConsoleReporter struct {
	bus          EventBus
	subscription *EventSubscription
	done         chan struct{}
}

// NewConsoleReporter subscribes to bus and logs every event at or above
// minSeverity until Close is called.
func NewConsoleReporter(bus EventBus, minSeverity EventSeverity) *ConsoleReporter {
	c := &ConsoleReporter{
		bus:          bus,
		subscription: bus.SubscribeChannel(FilterBySeverity(minSeverity), 64),
		done:         make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *ConsoleReporter) run() {
	defer close(c.done)
	if c.subscription == nil {
		return
	}
	for event := range c.subscription.Channel {
		Log(event)
	}
}

// Close unsubscribes and waits for queued events to be logged.
func (c *ConsoleReporter) Close() {
	c.bus.Unsubscribe(c.subscription)
	<-c.done
}

// Log writes one event at the level matching its severity.
func Log(event Event) {
	subsystem := event.Source()
	switch event.Severity() {
	case SeverityError:
		var err error
		if f, ok := event.(*FailedEvent); ok {
			err = f.Error
		}
		logging.Error(subsystem, err, "%s", event.String())
	case SeverityWarn:
		logging.Warn(subsystem, "%s", event.String())
	case SeverityDebug:
		logging.Debug(subsystem, "%s", event.String())
	default:
		logging.Info(subsystem, "%s", event.String())
	}
}
