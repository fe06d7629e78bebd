// Package pubsub publishes leaderboard panels as Google Cloud Pub/Sub events.
//
// A refresh produces one "clear" event followed by one "panel" event per
// group. Subscribers own the rendering surface and replace what they show
// whenever a clear arrives.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

// Event types.
const (
	EventClear = "clear"
	EventPanel = "panel"
)

// Event is the JSON payload of every published message.
type Event struct {
	Type     string             `json:"type"`
	Sequence int64              `json:"sequence"`
	SentAt   time.Time          `json:"sent_at"`
	Panel    *leaderboard.Panel `json:"panel,omitempty"`
}

type sender interface {
	send(ctx context.Context, msg *pubsub.Message) (string, error)
}

type topicSender struct {
	publisher *pubsub.Publisher
}

func (t topicSender) send(ctx context.Context, msg *pubsub.Message) (string, error) {
	id, err := t.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Channel implements leaderboard.Channel on a Pub/Sub topic.
type Channel struct {
	sender sender
	seq    atomic.Int64
	now    func() time.Time
}

// New creates a Channel for the provided topic publisher.
func New(publisher *pubsub.Publisher) (*Channel, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher is not configured")
	}
	return newChannel(topicSender{publisher: publisher}), nil
}

func newChannel(s sender) *Channel {
	return &Channel{sender: s, now: func() time.Time { return time.Now().UTC() }}
}

// Purge publishes a clear event.
func (c *Channel) Purge(ctx context.Context) error {
	return c.publish(ctx, Event{Type: EventClear})
}

// Send publishes one panel event.
func (c *Channel) Send(ctx context.Context, panel leaderboard.Panel) error {
	return c.publish(ctx, Event{Type: EventPanel, Panel: &panel})
}

func (c *Channel) publish(ctx context.Context, ev Event) error {
	ev.Sequence = c.seq.Add(1)
	ev.SentAt = c.now()
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	attrs := map[string]string{"event": ev.Type}
	if ev.Panel != nil && ev.Panel.Category != "" {
		attrs["category"] = ev.Panel.Category
	}
	if _, err := c.sender.send(ctx, &pubsub.Message{Data: data, Attributes: attrs}); err != nil {
		return fmt.Errorf("send %s event: %w", ev.Type, err)
	}
	return nil
}
