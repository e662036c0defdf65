// Package publisher fans ranking events out to live subscribers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/okian/crux/internal/domain/types"
	"github.com/okian/crux/pkg/logger"
)

// Topic carries every ranking event; subscribers filter by scope.
const Topic = "rankings"

const (
	metaScope   = "scope"
	metaVersion = "version"
)

// Publisher delivers ranking events in the order they are published.
type Publisher interface {
	Publish(ctx context.Context, ev types.RankingEvent) error
	// Subscribe returns a channel of events that closes when ctx is done.
	Subscribe(ctx context.Context) (<-chan types.RankingEvent, error)
	Close() error
}

// Watermill publishes over an in-process watermill pub/sub. Publish blocks
// until every subscriber has acknowledged, so events of a scope never
// overtake each other.
type Watermill struct {
	pubsub *gochannel.GoChannel
	log    logger.Logger
}

// New builds a Watermill publisher with the given per-subscriber buffer.
func New(opts ...Option) *Watermill {
	cfg := config{buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            cfg.buffer,
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NewSlogLogger(logger.Slog()))
	return &Watermill{pubsub: ps, log: logger.Named("publisher")}
}

// Publish implements Publisher.Publish.
func (w *Watermill) Publish(ctx context.Context, ev types.RankingEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode ranking event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(metaScope, ev.Scope.String())
	msg.Metadata.Set(metaVersion, strconv.FormatUint(ev.Version, 10))
	msg.SetContext(ctx)

	if err := w.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s v%d: %w", ev.Scope, ev.Version, err)
	}
	w.log.Debug(ctx, "ranking published",
		logger.String("scope", ev.Scope.String()),
		logger.Uint64("version", ev.Version),
		logger.Int("diff", len(ev.Diff)))
	return nil
}

// Subscribe implements Publisher.Subscribe.
func (w *Watermill) Subscribe(ctx context.Context) (<-chan types.RankingEvent, error) {
	msgs, err := w.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Topic, err)
	}
	out := make(chan types.RankingEvent)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev types.RankingEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				w.log.Error(ctx, "dropping undecodable ranking event",
					logger.String("uuid", msg.UUID), logger.Error(err))
				msg.Ack()
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Close stops the pub/sub and closes every subscription.
func (w *Watermill) Close() error {
	return w.pubsub.Close()
}

var _ Publisher = (*Watermill)(nil)
