// Package coordinator runs the clear-and-republish refresh cycle.
//
// The coordinator is a two-state machine (Idle, Refreshing). A request that
// arrives while a cycle is running is dropped rather than queued; drops are
// counted and exported so they can be observed. Startup, a fixed-interval
// timer, successful mutations and manual requests all go through the same
// gate.
package coordinator
