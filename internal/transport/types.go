package transport

import "context"

// Message is a rendered reminder ready for delivery. EventLine is optional;
// an empty value means the reminder has no displayable event time.
type Message struct {
	Title     string
	Body      string
	EventLine string
}

// Channel is a single destination capable of delivering rendered reminders.
// Send must respect ctx for cancellation and deadlines.
type Channel interface {
	Send(ctx context.Context, mention string, msg Message) error
}

// Resolver maps an opaque channel id to a live Channel.
// A nil result means the id is unknown or the backend is not connected.
type Resolver interface {
	ResolveChannel(id string) Channel
}

// Connector is the process-lifecycle surface of a messaging backend:
// Connect on start, Disconnect on stop.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}
