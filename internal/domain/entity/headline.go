package entity

import "time"

// maxTitleLength bounds headline titles to keep digest prompts and webhook
// payloads within their limits.
const maxTitleLength = 500

// Headline represents one news item collected by the market watch.
// It contains the item's metadata, extracted summary, and source relationship.
type Headline struct {
	ID          int64
	SourceID    int64
	Title       string
	URL         string
	Summary     string
	PublishedAt time.Time
	CreatedAt   time.Time
}

// Validate validates the Headline entity fields.
func (h *Headline) Validate() error {
	if h.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if len(h.Title) > maxTitleLength {
		return &ValidationError{Field: "title", Message: "title is too long"}
	}
	if h.SourceID <= 0 {
		return &ValidationError{Field: "source_id", Message: "source_id must be positive"}
	}
	return ValidateURL(h.URL)
}
