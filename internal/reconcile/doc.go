// Package reconcile maps scraped records onto the entry store, keyed by
// source URL. It owns the lookup-then-write upsert, removal, listing and the
// bulk re-scrape of every tracked entry.
package reconcile
