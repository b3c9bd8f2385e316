package eventbus

import "time"

// EventType represents the type of event being passed on the bus.  It allows handlers receiving the event to
// decide if processing is required and what Data holds.
type EventType string

// Event is passed on the event bus to every subscriber on the topic
type Event struct {
	EventType EventType
	Time      time.Time
	Data      interface{}
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, data interface{}) Event {
	return Event{
		EventType: t,
		Time:      time.Now(),
		Data:      data,
	}
}
