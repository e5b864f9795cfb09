// Package broadcast composes a cache and a publish channel into one
// store-then-notify operation.
//
// The ordering is fixed: the cache write precedes the publish. If the
// publish fails after a successful write, the cache already reflects
// the new value while no subscriber was notified. There is no
// compensating rollback; a retried StoreAndPublish heals the window,
// because the cache write is an idempotent last-write-wins upsert.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meigma/refval"
	"github.com/meigma/refval/cache"
)

// Sentinel errors for the store-then-publish path.
var (
	// ErrSerialization is returned when the reference value cannot be
	// serialized to its wire form. Nothing is stored or published.
	ErrSerialization = errors.New("broadcast: reference value serialization failed")

	// ErrChannelUnavailable is returned by channels whose underlying
	// transport cannot deliver the message.
	ErrChannelUnavailable = errors.New("broadcast: publish channel unavailable")
)

// Channel publishes serialized reference values to subscribers, e.g.
// the attestation service. Delivery is best-effort; the broadcaster
// assumes no acknowledgment.
type Channel interface {
	Publish(ctx context.Context, message []byte) error
}

// ChannelFunc is an adapter to allow ordinary functions as channels.
type ChannelFunc func(ctx context.Context, message []byte) error

// Publish calls f(ctx, message).
func (f ChannelFunc) Publish(ctx context.Context, message []byte) error {
	return f(ctx, message)
}

// Broadcaster durably records reference values and notifies subscribers
// of their availability. Safe for concurrent use when its cache and
// channel are.
type Broadcaster struct {
	cache   cache.Cache
	channel Channel
	logger  *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithLogger sets a custom logger for the broadcaster.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// New returns a Broadcaster writing to c and notifying via ch.
func New(c cache.Cache, ch Channel, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		cache:   c,
		channel: ch,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(b)
	}
	return b
}

// StoreAndPublish serializes value, writes it into the cache keyed by
// its artifact name, then publishes the serialized form.
//
// A serialization failure stores and publishes nothing. A publish
// failure leaves the cache write in place; see the package comment for
// the inconsistency window this opens.
func (b *Broadcaster) StoreAndPublish(ctx context.Context, value *refval.ReferenceValue) error {
	if err := value.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	message, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	if err := b.cache.Set(value.Name(), value); err != nil {
		return err
	}

	if err := b.channel.Publish(ctx, message); err != nil {
		b.logger.Warn("publish failed after cache write",
			slog.String("name", value.Name()),
			slog.Any("error", err))
		return err
	}

	b.logger.Debug("stored and published reference value",
		slog.String("name", value.Name()))
	return nil
}
