package crawler

import "time"

// CrawlError is recorded for any fetch that did not end in a usable
// response (spec §3/§7).
type CrawlError struct {
	URL          string    `json:"url"`
	Status       int       `json:"status"` // 0 for a transport error
	ReferringURL string    `json:"referringUrl,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message,omitempty"`
}
