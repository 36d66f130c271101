package pagemeta

import "time"

// TTL matches the default image freshness.
const TTL = 7 * 24 * time.Hour

// Record is what a resolution learned about a page, keyed by the page's
// cache key hash.
type Record struct {
	Key       string
	URL       string
	Title     string
	ImageURL  string
	Strategy  string
	FetchedAt time.Time
	ExpiresAt time.Time
}
