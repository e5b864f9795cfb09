// Package cloudevent publishes reference value notifications as
// CloudEvents over HTTP.
//
// Each message becomes one structured event whose data is the reference
// value's wire JSON form. Subscribers that already consume CloudEvents
// (eventing buses, knative-style sinks) need no custom decoding.
package cloudevent

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/meigma/refval/broadcast"
)

// Defaults for emitted events.
const (
	DefaultSource    = "refval/broadcast"
	DefaultEventType = "dev.meigma.refval.published"
)

// Channel sends reference value notifications to one HTTP target.
type Channel struct {
	client    cloudevents.Client
	target    string
	source    string
	eventType string
}

// Option configures a Channel.
type Option func(*Channel)

// WithSource sets the CloudEvents source attribute.
func WithSource(source string) Option {
	return func(c *Channel) {
		c.source = source
	}
}

// WithEventType sets the CloudEvents type attribute.
func WithEventType(eventType string) Option {
	return func(c *Channel) {
		c.eventType = eventType
	}
}

// New returns a channel delivering to the given HTTP target URL.
func New(target string, opts ...Option) (*Channel, error) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("cloudevent: create client: %w", err)
	}
	c := &Channel{
		client:    client,
		target:    target,
		source:    DefaultSource,
		eventType: DefaultEventType,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c, nil
}

// Publish implements broadcast.Channel. An undelivered send surfaces as
// [broadcast.ErrChannelUnavailable].
func (c *Channel) Publish(ctx context.Context, message []byte) error {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(c.source)
	event.SetType(c.eventType)
	if err := event.SetData(cloudevents.ApplicationJSON, message); err != nil {
		return fmt.Errorf("cloudevent: set event data: %w", err)
	}

	result := c.client.Send(cloudevents.ContextWithTarget(ctx, c.target), event)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("%w: %v", broadcast.ErrChannelUnavailable, result)
	}
	return nil
}

var _ broadcast.Channel = (*Channel)(nil)
