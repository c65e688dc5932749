package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSubscriptions reads every *.yml file in feedsDir. A missing directory
// yields no subscriptions. Invalid files are skipped with a warning so that
// one broken file does not block the others.
func LoadSubscriptions(feedsDir string) ([]Subscription, error) {
	if feedsDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(feedsDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(feedsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	sort.Strings(files)

	subscriptions := make([]Subscription, 0, len(files))
	for _, file := range files {
		sub, err := parseSubscription(file)
		if err != nil {
			slog.Warn("Skipping invalid subscription file", "file", file, "error", err)
			continue
		}
		subscriptions = append(subscriptions, *sub)
	}

	return subscriptions, nil
}

func parseSubscription(file string) (*Subscription, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sub Subscription
	if err := yaml.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	sub.Name = strings.TrimSuffix(filepath.Base(file), ".yml")
	sub.URL = strings.TrimSpace(sub.URL)

	if err := validateSubscription(&sub); err != nil {
		return nil, err
	}

	return &sub, nil
}

func validateSubscription(sub *Subscription) error {
	if sub.URL == "" {
		return fmt.Errorf("feed URL is required")
	}

	parsed, err := url.Parse(sub.URL)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("feed URL must use http or https, got %q", parsed.Scheme)
	}

	return nil
}
