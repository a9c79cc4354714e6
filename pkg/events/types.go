package events

import "time"

// EventType identifies the kind of event emitted while waiting on element state.
type EventType string

const (
	EventWaitStart     EventType = "wait.start"
	EventWaitPoll      EventType = "wait.poll"
	EventWaitSatisfied EventType = "wait.satisfied"
	EventWaitTimeout   EventType = "wait.timeout"
	EventWaitError     EventType = "wait.error"
	EventPageChange    EventType = "page.change"
	EventContextChange EventType = "context.change"
	EventPlanStart     EventType = "plan.start"
	EventPlanStep      EventType = "plan.step"
	EventPlanEnd       EventType = "plan.end"
)

// Event represents a single runtime event.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	WaitID    string        `json:"wait_id,omitempty"`
	Data      any           `json:"data"`
	Attempt   int           `json:"attempt,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// WaitEvent builds an event scoped to one wait invocation.
func WaitEvent(typ EventType, waitID string, data any) Event {
	e := NewEvent(typ, data)
	e.WaitID = waitID
	return e
}
