package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FeedConfig describes one named price source in the feed catalog.
// UpdatedAt (RFC 3339) dates a fixed answer; live feeds report their own time.
type FeedConfig struct {
	Kind      string `mapstructure:"kind"`
	Symbol    string `mapstructure:"symbol"`
	Answer    string `mapstructure:"answer"`
	Decimals  int32  `mapstructure:"decimals"`
	UpdatedAt string `mapstructure:"updated_at"`
}

// UpdatedTime parses UpdatedAt. An empty value yields the zero time.
func (f FeedConfig) UpdatedTime() (time.Time, error) {
	if f.UpdatedAt == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, f.UpdatedAt)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FeedCatalog maps feed references to their definitions.
type FeedCatalog map[string]FeedConfig

func DefaultFeedCatalog() FeedCatalog {
	return FeedCatalog{
		"link-usd": {Kind: "static", Answer: "77777777777", Decimals: 8},
	}
}

// FeedCatalogHolder keeps the current catalog and swaps it on file changes.
type FeedCatalogHolder struct {
	current atomic.Value // holds FeedCatalog
}

func NewFeedCatalogHolder(cfg Config, log *zap.Logger) (*FeedCatalogHolder, error) {
	holder := &FeedCatalogHolder{}

	path := strings.TrimSpace(cfg.Oracle.FeedsConfigPath)
	if path == "" {
		holder.current.Store(DefaultFeedCatalog())
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read feed catalog: %w", err)
	}

	catalog, err := decodeFeedCatalog(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeFeedCatalog(v)
		if err != nil {
			log.Warn("feed catalog reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("feed catalog reloaded", zap.String("file", e.Name), zap.Int("feeds", len(updated)))
	})

	return holder, nil
}

// NewStaticFeedCatalogHolder returns a holder that never reloads.
func NewStaticFeedCatalogHolder(catalog FeedCatalog) *FeedCatalogHolder {
	holder := &FeedCatalogHolder{}
	holder.current.Store(normalizeFeedCatalog(catalog))
	return holder
}

func (h *FeedCatalogHolder) Get() FeedCatalog {
	if h == nil {
		return FeedCatalog{}
	}
	catalog, _ := h.current.Load().(FeedCatalog)
	return catalog
}

// Lookup returns the feed definition for ref.
func (h *FeedCatalogHolder) Lookup(ref string) (FeedConfig, bool) {
	feed, ok := h.Get()[normalizeFeedRef(ref)]
	return feed, ok
}

func decodeFeedCatalog(v *viper.Viper) (FeedCatalog, error) {
	var raw FeedCatalog
	if err := v.UnmarshalKey("feeds", &raw); err != nil {
		return nil, err
	}
	catalog := normalizeFeedCatalog(raw)
	if err := validateFeedCatalog(catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

func normalizeFeedCatalog(raw FeedCatalog) FeedCatalog {
	out := make(FeedCatalog, len(raw))
	for ref, feed := range raw {
		ref = normalizeFeedRef(ref)
		if ref == "" {
			continue
		}
		feed.Kind = strings.ToLower(strings.TrimSpace(feed.Kind))
		feed.Symbol = strings.ToUpper(strings.TrimSpace(feed.Symbol))
		feed.Answer = strings.TrimSpace(feed.Answer)
		feed.UpdatedAt = strings.TrimSpace(feed.UpdatedAt)
		out[ref] = feed
	}
	return out
}

func validateFeedCatalog(catalog FeedCatalog) error {
	for ref, feed := range catalog {
		if feed.Kind == "" {
			return fmt.Errorf("feed %q: kind is required", ref)
		}
		if feed.Decimals < 0 {
			return errors.New("feed decimals must not be negative")
		}
		if _, err := feed.UpdatedTime(); err != nil {
			return fmt.Errorf("feed %q: updated_at: %w", ref, err)
		}
	}
	return nil
}

func normalizeFeedRef(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}
