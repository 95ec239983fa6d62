// Package model defines the domain types used across the application.
package model

import "time"

// Rule is a user-defined interest rule. Unset constraints are nil or empty.
type Rule struct {
	Label string

	TitleContains []string
	TitleExcludes []string
	TitleRegex    []string

	Author         string
	AuthorExcludes []string

	MaxPrice *float64
	Category []string

	MinPopularity *float64
	WindowMinutes *int
	TestURL       string
}

// HasPopularity reports whether the rule carries a popularity threshold.
func (r Rule) HasPopularity() bool {
	return r.MinPopularity != nil
}

// Window returns the deferred-evaluation horizon, or zero if none is set.
func (r Rule) Window() time.Duration {
	if r.WindowMinutes == nil {
		return 0
	}
	return time.Duration(*r.WindowMinutes) * time.Minute
}

// Deal is a single item of the deal feed.
type Deal struct {
	ID            string
	URL           string
	Title         string
	Author        string
	Price         *float64
	NextBestPrice *float64
	Category      string
	Temperature   float64
	PublishedAt   time.Time
	RepublishedAt *time.Time
	ImageURL      string
	Description   string
}

// Republished reports whether the feed re-surfaced the deal.
func (d Deal) Republished() bool {
	return d.RepublishedAt != nil
}

// SeenID records a deal ID that was already scanned.
type SeenID struct {
	ID     string    `json:"id"`
	SeenAt time.Time `json:"seen_at"`
}

// WatchEntry is a deal awaiting a popularity threshold or a timeout.
type WatchEntry struct {
	URL                string     `json:"url"`
	Label              string     `json:"label,omitempty"`
	RequiredPopularity *float64   `json:"required_popularity,omitempty"`
	Fingerprint        string     `json:"fingerprint"`
	Baseline           *float64   `json:"baseline,omitempty"`
	Expiry             *time.Time `json:"expiry,omitempty"`

	EnqueuedAt          time.Time `json:"enqueued_at"`
	PopularityAtEnqueue float64   `json:"popularity_at_enqueue"`
}

// Notification is the payload sent when a deal matches.
type Notification struct {
	Label         string
	Temperature   float64
	Title         string
	URL           string
	PublishedAt   time.Time
	ImageURL      string
	Price         *float64
	NextBestPrice *float64
	Description   string
}

// ErrorReport is the payload sent when a run fails.
type ErrorReport struct {
	Message string
	Stack   string
	Context map[string]string
}

// NotificationFor builds the notification payload for a deal matched under label.
func NotificationFor(label string, d Deal) Notification {
	return Notification{
		Label:         label,
		Temperature:   d.Temperature,
		Title:         d.Title,
		URL:           d.URL,
		PublishedAt:   d.PublishedAt,
		ImageURL:      d.ImageURL,
		Price:         d.Price,
		NextBestPrice: d.NextBestPrice,
		Description:   d.Description,
	}
}
