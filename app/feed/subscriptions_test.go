package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSubscription(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSubscriptions(t *testing.T) {
	tempDir := t.TempDir()

	writeSubscription(t, tempDir, "news.yml", `url: "https://example.com/news.xml"`)
	writeSubscription(t, tempDir, "podcast.yml", "url: https://example.com/podcast.xml\nenabled: false\n")
	writeSubscription(t, tempDir, "broken.yml", "url: [unterminated")
	writeSubscription(t, tempDir, "empty.yml", "enabled: true\n")
	writeSubscription(t, tempDir, "ftp.yml", "url: ftp://example.com/feed\n")
	writeSubscription(t, tempDir, "ignored.yaml", "url: https://example.com/ignored\n")

	subs, err := LoadSubscriptions(tempDir)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(subs) != 2 {
		t.Fatalf("Expected 2 valid subscriptions, got %d: %+v", len(subs), subs)
	}

	if subs[0].Name != "news" || subs[0].URL != "https://example.com/news.xml" {
		t.Errorf("Unexpected first subscription: %+v", subs[0])
	}
	if !subs[0].IsEnabled() {
		t.Error("Expected subscriptions to be enabled by default")
	}

	if subs[1].Name != "podcast" {
		t.Errorf("Expected second subscription 'podcast', got '%s'", subs[1].Name)
	}
	if subs[1].IsEnabled() {
		t.Error("Expected podcast subscription to be disabled")
	}
}

func TestLoadSubscriptionsMissingDir(t *testing.T) {
	subs, err := LoadSubscriptions(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Expected no error for missing directory, got: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("Expected no subscriptions, got %d", len(subs))
	}

	subs, err = LoadSubscriptions("")
	if err != nil || subs != nil {
		t.Errorf("Expected nil result for empty directory setting, got %v, %v", subs, err)
	}
}
