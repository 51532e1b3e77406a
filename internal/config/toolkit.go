// Package config loads the toolkit's structured configuration.
//
// Tunables (timeouts, budgets, feature switches) stay in environment
// variables and are read through pkg/config. Structured data that does not
// fit flat env vars lives in one YAML file loaded here: the markets the
// collector tracks, the news sources and symbols the watch follows, and
// references to exchange credentials.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"autotrade/internal/domain/entity"
)

// Toolkit is the root of the YAML configuration file.
type Toolkit struct {
	// Markets lists the markets the candle collector tracks.
	Markets []MarketSpec `yaml:"markets"`

	// Watch configures the news watch: which sources to poll and which
	// symbols to alert on.
	Watch WatchSpec `yaml:"watch"`

	// Exchanges references exchange API credentials by environment variable
	// name. Secrets never appear in the file itself.
	Exchanges []ExchangeSpec `yaml:"exchanges"`
}

// MarketSpec describes one collected market.
type MarketSpec struct {
	Exchange string `yaml:"exchange"`
	Base     string `yaml:"base"`
	Quote    string `yaml:"quote"`

	// Resolution is the candle interval in minutes. 0 means tick data.
	Resolution int `yaml:"resolution"`
}

// WatchSpec configures the news watch pipeline.
type WatchSpec struct {
	// Symbols lists the symbols whose mentions trigger alerts.
	Symbols []SymbolSpec `yaml:"symbols"`

	// Sources lists the news sources to poll. They are synced into the
	// source store at startup, keyed by URL.
	Sources []SourceSpec `yaml:"sources"`
}

// SymbolSpec is one watched symbol plus the extra terms that count as a
// mention of it.
type SymbolSpec struct {
	// Symbol is the ticker, e.g. "BTC".
	Symbol string `yaml:"symbol"`

	// Keywords are additional match terms, e.g. "bitcoin". The symbol
	// itself always matches.
	Keywords []string `yaml:"keywords"`
}

// SourceSpec is one news source entry.
type SourceSpec struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`

	// Type is "RSS" (default when empty) or "Announcement".
	Type string `yaml:"type"`

	// Selectors configure the page scraper for Announcement sources.
	Selectors *SelectorSpec `yaml:"selectors"`
}

// SelectorSpec holds the CSS selectors for an announcement page.
type SelectorSpec struct {
	Item       string `yaml:"item"`
	Title      string `yaml:"title"`
	Date       string `yaml:"date"`
	URL        string `yaml:"url"`
	DateFormat string `yaml:"date_format"`
	URLPrefix  string `yaml:"url_prefix"`
}

// ExchangeSpec references one exchange's credentials by env var name.
type ExchangeSpec struct {
	// Name is the exchange identifier, e.g. "Coinbase".
	Name string `yaml:"name"`

	// KeyNameEnv and PrivateKeyEnv name the environment variables holding
	// the API key name and PEM private key.
	KeyNameEnv    string `yaml:"key_name_env"`
	PrivateKeyEnv string `yaml:"private_key_env"`
}

// LoadToolkit reads and validates the YAML configuration at path.
func LoadToolkit(path string) (*Toolkit, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read toolkit config: %w", err)
	}

	var tk Toolkit
	if err := yaml.Unmarshal(raw, &tk); err != nil {
		return nil, fmt.Errorf("parse toolkit config: %w", err)
	}

	if err := tk.validate(); err != nil {
		return nil, fmt.Errorf("invalid toolkit config %s: %w", path, err)
	}
	return &tk, nil
}

func (t *Toolkit) validate() error {
	for i, m := range t.Markets {
		if _, err := m.Entity(); err != nil {
			return fmt.Errorf("markets[%d]: %w", i, err)
		}
	}
	for i, s := range t.Watch.Symbols {
		if strings.TrimSpace(s.Symbol) == "" {
			return fmt.Errorf("watch.symbols[%d]: symbol is required", i)
		}
	}
	seen := make(map[string]bool, len(t.Watch.Sources))
	for i, s := range t.Watch.Sources {
		src, err := s.Entity()
		if err != nil {
			return fmt.Errorf("watch.sources[%d] (%s): %w", i, s.Name, err)
		}
		if seen[src.FeedURL] {
			return fmt.Errorf("watch.sources[%d]: duplicate url %s", i, src.FeedURL)
		}
		seen[src.FeedURL] = true
	}
	for i, e := range t.Exchanges {
		if e.Name == "" {
			return fmt.Errorf("exchanges[%d]: name is required", i)
		}
	}
	return nil
}

// Entity converts the spec into a validated domain market.
func (m MarketSpec) Entity() (entity.Market, error) {
	mk := entity.Market{
		Exchange:   m.Exchange,
		Base:       strings.ToUpper(m.Base),
		Quote:      strings.ToUpper(m.Quote),
		Resolution: m.Resolution,
	}
	if err := mk.Validate(); err != nil {
		return entity.Market{}, err
	}
	return mk, nil
}

// EntityMarkets converts all market specs. The config has already been
// validated, so conversion errors only occur on hand-built values.
func (t *Toolkit) EntityMarkets() ([]entity.Market, error) {
	markets := make([]entity.Market, 0, len(t.Markets))
	for i, m := range t.Markets {
		mk, err := m.Entity()
		if err != nil {
			return nil, fmt.Errorf("markets[%d]: %w", i, err)
		}
		markets = append(markets, mk)
	}
	return markets, nil
}

// Entity converts the spec into a validated domain source. Active is always
// true: removing a source from the file deactivates it at the next sync.
func (s SourceSpec) Entity() (*entity.Source, error) {
	src := &entity.Source{
		Name:       s.Name,
		FeedURL:    s.URL,
		Active:     true,
		SourceType: s.Type,
	}
	if s.Selectors != nil {
		src.ScraperConfig = &entity.AnnouncementCfg{
			ItemSelector:  s.Selectors.Item,
			TitleSelector: s.Selectors.Title,
			DateSelector:  s.Selectors.Date,
			URLSelector:   s.Selectors.URL,
			DateFormat:    s.Selectors.DateFormat,
			URLPrefix:     s.Selectors.URLPrefix,
		}
	}
	if src.Name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return src, nil
}

// Keywords returns the match terms per symbol, lowercased. The symbol itself
// is always included.
func (w WatchSpec) Keywords() map[string][]string {
	out := make(map[string][]string, len(w.Symbols))
	for _, s := range w.Symbols {
		sym := strings.ToUpper(strings.TrimSpace(s.Symbol))
		if sym == "" {
			continue
		}
		terms := make([]string, 0, len(s.Keywords)+1)
		terms = append(terms, strings.ToLower(sym))
		for _, kw := range s.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				terms = append(terms, kw)
			}
		}
		out[sym] = terms
	}
	return out
}
