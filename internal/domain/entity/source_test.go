package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		wantErr bool
	}{
		{
			name: "valid RSS source",
			source: Source{
				Name:       "CoinDesk",
				FeedURL:    "https://example.com/feed.xml",
				SourceType: "RSS",
			},
			wantErr: false,
		},
		{
			name: "empty type defaults to RSS",
			source: Source{
				Name:    "CoinDesk",
				FeedURL: "https://example.com/feed.xml",
			},
			wantErr: false,
		},
		{
			name: "valid announcement source",
			source: Source{
				Name:       "Exchange Announcements",
				FeedURL:    "https://exchange.example.com/announcements",
				SourceType: "Announcement",
				ScraperConfig: &AnnouncementCfg{
					ItemSelector:  "div.announcement-item",
					TitleSelector: "h3",
					URLSelector:   "a",
					URLPrefix:     "https://exchange.example.com",
				},
			},
			wantErr: false,
		},
		{
			name: "unknown source type",
			source: Source{
				Name:       "Bad",
				FeedURL:    "https://example.com/feed.xml",
				SourceType: "Webflow",
			},
			wantErr: true,
		},
		{
			name: "announcement without scraper config",
			source: Source{
				Name:       "Exchange Announcements",
				FeedURL:    "https://exchange.example.com/announcements",
				SourceType: "Announcement",
			},
			wantErr: true,
		},
		{
			name: "announcement with incomplete selectors",
			source: Source{
				Name:       "Exchange Announcements",
				FeedURL:    "https://exchange.example.com/announcements",
				SourceType: "Announcement",
				ScraperConfig: &AnnouncementCfg{
					ItemSelector: "div.announcement-item",
				},
			},
			wantErr: true,
		},
		{
			name: "invalid feed URL",
			source: Source{
				Name:       "Bad URL",
				FeedURL:    "ftp://example.com/feed.xml",
				SourceType: "RSS",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.source.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSource_ValidateDefaultsType(t *testing.T) {
	source := Source{
		Name:    "CoinDesk",
		FeedURL: "https://example.com/feed.xml",
	}

	assert.NoError(t, source.Validate())
	assert.Equal(t, "RSS", source.SourceType)
}

func TestSource_LastCrawledAt(t *testing.T) {
	t.Run("never crawled", func(t *testing.T) {
		source := Source{
			Name:    "New Source",
			FeedURL: "https://example.com/feed.xml",
		}

		assert.Nil(t, source.LastCrawledAt)
	})

	t.Run("recently crawled", func(t *testing.T) {
		crawledAt := time.Now().Add(-1 * time.Hour)
		source := Source{
			Name:          "Active Source",
			FeedURL:       "https://example.com/feed.xml",
			LastCrawledAt: &crawledAt,
		}

		assert.NotNil(t, source.LastCrawledAt)
		assert.True(t, source.LastCrawledAt.Before(time.Now()))
	})
}
