package publishers

import "context"

// Publisher sends events to a downstream sink (SQS, SNS, Pub/Sub, HTTP).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// sender is the transport half of a publisher: it moves one event to the
// remote system. Publishers wrap a sender with identity.
type sender interface {
	Send(ctx context.Context, evt Event) error
}

// senderPublisher adapts a sender into a Publisher.
type senderPublisher struct {
	id  string
	typ string
	s   sender
}

func (p *senderPublisher) ID() string   { return p.id }
func (p *senderPublisher) Type() string { return p.typ }

func (p *senderPublisher) Publish(ctx context.Context, evt Event) error {
	return p.s.Send(ctx, evt)
}
