// Package webhook publishes leaderboard panels through a Discord-compatible
// webhook. Posted message ids are remembered, optionally in a Ledger that
// survives restarts, so Purge can delete them.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

const (
	// DefaultTimeout bounds each webhook call.
	DefaultTimeout = 10 * time.Second
	// maxDescription is the embed description limit enforced by Discord.
	maxDescription = 4096
	embedColor     = 0x3498DB
	// MaxDeleteAttempts bounds retries of a delete that failed transiently
	// (network error, 429, 5xx). The id is forgotten after the last attempt.
	MaxDeleteAttempts = 3
)

// Config configures the webhook channel.
type Config struct {
	URL     string
	Timeout time.Duration
	// Ledger persists tracked ids. Nil keeps them in memory only.
	Ledger Ledger
}

// Channel implements leaderboard.Channel over a webhook URL.
type Channel struct {
	client *resty.Client
	url    string
	logger *zap.Logger

	ledger Ledger

	mu     sync.Mutex
	posted []TrackedMessage
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
}

type messageRequest struct {
	Embeds []embed `json:"embeds"`
}

type messageResponse struct {
	ID string `json:"id"`
}

// New constructs a webhook Channel.
func New(cfg Config, logger *zap.Logger) (*Channel, error) {
	if cfg.URL == "" {
		return nil, errors.New("channel.webhook.url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var posted []TrackedMessage
	if cfg.Ledger != nil {
		loaded, err := cfg.Ledger.Load()
		if err != nil {
			return nil, fmt.Errorf("load message ledger: %w", err)
		}
		posted = loaded
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Channel{
		client: client,
		url:    strings.TrimRight(cfg.URL, "/"),
		logger: logger.Named("webhook"),
		ledger: cfg.Ledger,
		posted: posted,
	}, nil
}

// Send posts one panel as an embed and remembers the message id.
func (c *Channel) Send(ctx context.Context, panel leaderboard.Panel) error {
	var out messageResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("wait", "true").
		SetBody(messageRequest{Embeds: []embed{{
			Title:       panel.Title,
			Description: truncate(panel.Body(), maxDescription),
			Color:       embedColor,
		}}}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("post panel: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post panel: unexpected status %d", resp.StatusCode())
	}
	if out.ID != "" {
		c.mu.Lock()
		c.posted = append(c.posted, TrackedMessage{ID: out.ID})
		c.persistLocked()
		c.mu.Unlock()
	}
	return nil
}

// Purge deletes every message this channel has posted. Messages that are
// already gone count as deleted. A delete the webhook refuses (a 4xx other
// than 429) is logged and forgotten, since older content is not guaranteed
// removable. Transient failures are kept for the next purge and reported,
// up to MaxDeleteAttempts per message.
func (c *Channel) Purge(ctx context.Context) error {
	c.mu.Lock()
	msgs := c.posted
	c.posted = nil
	c.mu.Unlock()

	var (
		errs []error
		kept []TrackedMessage
	)
	for _, msg := range msgs {
		resp, err := c.client.R().
			SetContext(ctx).
			SetPathParam("id", msg.ID).
			Delete(c.url + "/messages/{id}")
		switch {
		case err != nil:
			err = fmt.Errorf("delete message %s: %w", msg.ID, err)
		case resp.StatusCode() == http.StatusNotFound:
			c.logger.Debug("message already deleted", zap.String("id", msg.ID))
			continue
		case !resp.IsError():
			continue
		case permanentFailure(resp.StatusCode()):
			c.logger.Warn("message cannot be deleted; forgetting it",
				zap.String("id", msg.ID),
				zap.Int("status", resp.StatusCode()),
			)
			continue
		default:
			err = fmt.Errorf("delete message %s: unexpected status %d", msg.ID, resp.StatusCode())
		}

		msg.Attempts++
		if msg.Attempts >= MaxDeleteAttempts {
			c.logger.Warn("giving up on message delete",
				zap.String("id", msg.ID),
				zap.Int("attempts", msg.Attempts),
				zap.Error(err),
			)
			continue
		}
		errs = append(errs, err)
		kept = append(kept, msg)
	}

	c.mu.Lock()
	c.posted = append(kept, c.posted...)
	c.persistLocked()
	c.mu.Unlock()
	return errors.Join(errs...)
}

// permanentFailure reports statuses a retry will not fix.
func permanentFailure(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

// persistLocked writes the tracked ids to the ledger. Callers hold c.mu. A
// failed write is logged; the in-memory list stays authoritative.
func (c *Channel) persistLocked() {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.Save(append([]TrackedMessage(nil), c.posted...)); err != nil {
		c.logger.Warn("persist message ledger failed", zap.Error(err))
	}
}

// Tracked returns the ids of messages Purge would delete.
func (c *Channel) Tracked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.posted))
	for _, msg := range c.posted {
		ids = append(ids, msg.ID)
	}
	return ids
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
