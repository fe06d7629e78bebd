// Package scrape turns a tracked bot page into normalized leaderboard
// fields. Fetching is delegated to a Fetcher (colly or headless Chrome),
// parsing uses goquery, and normalization applies the defaults for anything
// the page leaves out.
package scrape
