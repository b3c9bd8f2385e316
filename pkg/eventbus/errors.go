package eventbus

import "errors"

const (
	errorTopic Topic = Topic("errors")

	// ErrorEvent carries an error in Data.
	ErrorEvent EventType = "error"
)

// ErrShutdownTimeout is returned if calling eventbus.Shutdown(ctx) causes the context to timeout before the bus
// could be closed
var ErrShutdownTimeout = errors.New("eventbus: context timeout or cancelled before shutdown completed")

// OnErrorTopic is the topic runtime errors are published on.
func OnErrorTopic() Topic {
	return errorTopic
}

// NewErrorEvent wraps err for dispatch on the error topic.
func NewErrorEvent(err error) Event {
	return NewEvent(ErrorEvent, err)
}
