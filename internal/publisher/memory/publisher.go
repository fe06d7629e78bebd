// Package memory contains an in-memory channel for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

// Channel keeps the panels currently "visible" plus a log of every call.
type Channel struct {
	mu      sync.RWMutex
	visible []leaderboard.Panel
	purges  int
	sends   int
}

// New returns an empty memory Channel.
func New() *Channel {
	return &Channel{}
}

// Purge removes every visible panel.
func (c *Channel) Purge(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = nil
	c.purges++
	return nil
}

// Send appends a panel to the visible list.
func (c *Channel) Send(_ context.Context, panel leaderboard.Panel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = append(c.visible, panel)
	c.sends++
	return nil
}

// Panels returns a copy of the visible panels.
func (c *Channel) Panels() []leaderboard.Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]leaderboard.Panel, len(c.visible))
	copy(out, c.visible)
	return out
}

// Counts returns how many purges and sends have been recorded.
func (c *Channel) Counts() (purges, sends int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.purges, c.sends
}
