package entity

import (
	"errors"
	"fmt"
	"time"
)

// Source represents one news source watched for market-moving headlines.
// It contains the feed URL, metadata, and crawling status information.
// For exchange announcement pages, it also includes the scraper selectors.
type Source struct {
	ID            int64
	Name          string
	FeedURL       string
	LastCrawledAt *time.Time
	Active        bool
	SourceType    string           `json:"source_type"`    // RSS or Announcement
	ScraperConfig *AnnouncementCfg `json:"scraper_config"` // Selectors for Announcement sources
}

// AnnouncementCfg holds the HTML selectors for scraping an exchange
// announcement page that offers no feed.
type AnnouncementCfg struct {
	ItemSelector  string `json:"item_selector,omitempty"`
	TitleSelector string `json:"title_selector,omitempty"`
	DateSelector  string `json:"date_selector,omitempty"`
	URLSelector   string `json:"url_selector,omitempty"`
	DateFormat    string `json:"date_format,omitempty"`
	URLPrefix     string `json:"url_prefix,omitempty"` // Prepend to relative URLs
}

// Validate validates the Source entity fields.
// It checks that the source type is valid and that required configuration is present.
func (s *Source) Validate() error {
	// Empty type means RSS for backward compatibility with older source rows.
	if s.SourceType == "" {
		s.SourceType = "RSS"
	}

	validTypes := map[string]bool{
		"RSS":          true,
		"Announcement": true,
	}
	if !validTypes[s.SourceType] {
		return fmt.Errorf("invalid source_type: %s (must be RSS or Announcement)", s.SourceType)
	}

	if s.SourceType == "Announcement" {
		if s.ScraperConfig == nil {
			return errors.New("scraper_config is required for Announcement sources")
		}
		if s.ScraperConfig.ItemSelector == "" || s.ScraperConfig.TitleSelector == "" {
			return errors.New("scraper_config requires item_selector and title_selector")
		}
	}

	return ValidateURL(s.FeedURL)
}
