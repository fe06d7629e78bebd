// Package commands implements the four user-facing operations (add, remove,
// show, refresh) with their allow-lists and reply text. Transports such as
// the HTTP API and the CLI only translate requests into these calls.
package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/robot-leaderboard/internal/coordinator"
	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
	"github.com/JakeFAU/robot-leaderboard/internal/reconcile"
)

// Reply text shared by every transport.
const (
	MsgChannelDenied = "This command can only be used in designated channels."
	MsgNotConfigured = "[ERROR] Store not configured."
	MsgRefreshed     = "Refreshed all tracked bots."
)

// Outcome classifies a reply so transports can pick a status code.
type Outcome int

const (
	// OK means the command did what was asked.
	OK Outcome = iota
	// NotFound means the target was not tracked.
	NotFound
	// Denied means an allow-list rejected the caller.
	Denied
	// Failed means scraping or the store failed.
	Failed
	// Unavailable means no store is configured.
	Unavailable
)

// Caller identifies who issued a command and where.
type Caller struct {
	ChannelID string
	UserID    string
}

// Reply is the user-visible result of a command.
type Reply struct {
	Outcome Outcome
	Text    string
	// Entry is set by a successful Add.
	Entry *leaderboard.Entry
	// Created reports whether Add inserted a new entry.
	Created bool
	// Groups is set by Show.
	Groups []leaderboard.Group
	// Summary is set by Refresh.
	Summary *reconcile.RefreshSummary
}

// Reconciler is the slice of reconcile.Adapter the commands use.
type Reconciler interface {
	AddOrUpdate(ctx context.Context, sourceURL string) (reconcile.Result, error)
	Remove(ctx context.Context, sourceURL string) (bool, error)
	ListAll(ctx context.Context) ([]leaderboard.Entry, error)
	RefreshAll(ctx context.Context) (reconcile.RefreshSummary, error)
}

// Refresher requests a coordinator cycle without waiting for it.
type Refresher interface {
	Trigger(ctx context.Context, trigger coordinator.Trigger) bool
}

// Config holds the allow-lists. Empty lists allow everyone.
type Config struct {
	AllowedChannels []string
	AdminIDs        []string
}

// Service executes commands.
type Service struct {
	reconciler Reconciler
	refresher  Refresher
	channels   map[string]struct{}
	admins     map[string]struct{}
	logger     *zap.Logger
}

// New constructs a Service. refresher may be nil, in which case mutations do
// not republish.
func New(reconciler Reconciler, refresher Refresher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reconciler: reconciler,
		refresher:  refresher,
		channels:   toSet(cfg.AllowedChannels),
		admins:     toSet(cfg.AdminIDs),
		logger:     logger.Named("commands"),
	}
}

// Add scrapes sourceURL and creates or updates its entry. On success a
// republish is requested in the background.
func (s *Service) Add(ctx context.Context, caller Caller, sourceURL string) Reply {
	if r, ok := s.authorize(caller, "add bots"); !ok {
		return r
	}
	res, err := s.reconciler.AddOrUpdate(ctx, sourceURL)
	if err != nil {
		return s.failure(err, fmt.Sprintf("[ERROR] Failed to parse the bot page: %s", sourceURL), sourceURL)
	}

	verb := "Updated existing bot"
	if res.Created {
		verb = "Added new bot"
	}
	if s.refresher != nil && !s.refresher.Trigger(ctx, coordinator.TriggerMutation) {
		s.logger.Debug("post-mutation refresh dropped", zap.String("url", sourceURL))
	}
	entry := res.Entry
	return Reply{
		Outcome: OK,
		Text: fmt.Sprintf("%s: %s (Rank %d, %s pts).",
			verb, entry.DisplayName, entry.Rank, leaderboard.FormatScore(entry.TotalScore)),
		Entry:   &entry,
		Created: res.Created,
	}
}

// Remove stops tracking sourceURL.
func (s *Service) Remove(ctx context.Context, caller Caller, sourceURL string) Reply {
	if r, ok := s.authorize(caller, "remove bots"); !ok {
		return r
	}
	removed, err := s.reconciler.Remove(ctx, sourceURL)
	if err != nil {
		return s.failure(err, fmt.Sprintf("[ERROR] Failed to remove bot: %s", sourceURL), sourceURL)
	}
	if !removed {
		return Reply{Outcome: NotFound, Text: fmt.Sprintf("No bot found for URL %s", sourceURL)}
	}
	return Reply{Outcome: OK, Text: fmt.Sprintf("Removed bot with URL %s.", sourceURL)}
}

// Show renders the current leaderboard as text. It never republishes.
func (s *Service) Show(ctx context.Context, caller Caller) Reply {
	if !s.channelAllowed(caller) {
		return Reply{Outcome: Denied, Text: MsgChannelDenied}
	}
	entries, err := s.reconciler.ListAll(ctx)
	if err != nil {
		return s.failure(err, "[ERROR] Failed to load the leaderboard.", "")
	}
	groups := leaderboard.GroupAndRank(entries)
	return Reply{Outcome: OK, Text: leaderboard.RenderText(groups), Groups: groups}
}

// Refresh re-scrapes every entry and then requests a republish.
func (s *Service) Refresh(ctx context.Context, caller Caller) Reply {
	if r, ok := s.authorize(caller, "refresh data"); !ok {
		return r
	}
	summary, err := s.reconciler.RefreshAll(ctx)
	if err != nil {
		return s.failure(err, "[ERROR] Failed to refresh tracked bots.", "")
	}
	if s.refresher != nil {
		s.refresher.Trigger(ctx, coordinator.TriggerManual)
	}
	return Reply{
		Outcome: OK,
		Text:    fmt.Sprintf("%s (%d updated, %d failed)", MsgRefreshed, summary.Updated, summary.Failed),
		Summary: &summary,
	}
}

func (s *Service) authorize(caller Caller, verb string) (Reply, bool) {
	if !s.channelAllowed(caller) {
		return Reply{Outcome: Denied, Text: MsgChannelDenied}, false
	}
	if len(s.admins) > 0 {
		if _, ok := s.admins[caller.UserID]; !ok {
			return Reply{Outcome: Denied, Text: fmt.Sprintf("You are not authorized to %s.", verb)}, false
		}
	}
	return Reply{}, true
}

func (s *Service) channelAllowed(caller Caller) bool {
	if len(s.channels) == 0 {
		return true
	}
	_, ok := s.channels[caller.ChannelID]
	return ok
}

func (s *Service) failure(err error, text, sourceURL string) Reply {
	if errors.Is(err, leaderboard.ErrNotConfigured) {
		return Reply{Outcome: Unavailable, Text: MsgNotConfigured}
	}
	s.logger.Warn("command failed", zap.String("url", sourceURL), zap.Error(err))
	return Reply{Outcome: Failed, Text: text}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
