package cfg

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	original := Version
	defer func() { Version = original }()

	Version = ""
	if got := GetVersion(); got != "unknown" {
		t.Errorf("Expected 'unknown' for empty version, got '%s'", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TZ", "UTC")

	cfg, err := load(nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := &Cfg{
		DBPath:            "./feedsync.db",
		Port:              "8080",
		WorkerCount:       5,
		FetchTimeout:      30,
		WriteTimeout:      120,
		MaxBodySize:       5 << 20,
		SchedulerInterval: 0,
		RefreshInterval:   3600,
		UserAgent:         "feedsync/1.0",
		Timezone:          "UTC",
		LogLevel:          "info",
	}
	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreFields(Cfg{}, "Version")); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}

	if cfg.FetchTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected fetch timeout 30s, got %v", cfg.FetchTimeoutDuration())
	}
	if cfg.IngestTimeoutDuration() != 110*time.Second {
		t.Errorf("Expected ingest timeout 110s, got %v", cfg.IngestTimeoutDuration())
	}
	if cfg.RefreshIntervalDuration() != time.Hour {
		t.Errorf("Expected refresh interval 1h, got %v", cfg.RefreshIntervalDuration())
	}
}

func TestLoadFromEnvAndFlags(t *testing.T) {
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("SCHEDULER_INTERVAL", "60")
	t.Setenv("FEEDS_DIR", "/etc/feedsync/feeds")

	cfg, err := load([]string{"--port", "9090", "--log-level", "debug"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.DBPath != ":memory:" {
		t.Errorf("Expected DB path ':memory:', got '%s'", cfg.DBPath)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("Expected worker count 8, got %d", cfg.WorkerCount)
	}
	if cfg.SchedulerIntervalDuration() != time.Minute {
		t.Errorf("Expected scheduler interval 1m, got %v", cfg.SchedulerIntervalDuration())
	}
	if cfg.FeedsDir != "/etc/feedsync/feeds" {
		t.Errorf("Expected feeds dir '/etc/feedsync/feeds', got '%s'", cfg.FeedsDir)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero workers", []string{"--worker-count", "0"}, "worker-count"},
		{"zero timeout", []string{"--fetch-timeout", "0"}, "fetch-timeout"},
		{"negative body size", []string{"--max-body-size=-1"}, "max-body-size"},
		{"negative scheduler interval", []string{"--scheduler-interval=-5"}, "scheduler-interval"},
		{"negative refresh interval", []string{"--refresh-interval=-5"}, "refresh-interval"},
		{"empty db path", []string{"--db-path", " "}, "db-path"},
		{"write timeout below fetch timeout", []string{"--fetch-timeout", "60", "--write-timeout", "30"}, "write-timeout"},
		{"write timeout without margin", []string{"--write-timeout", "35"}, "write-timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(tt.args)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention '%s', got: %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	if _, err := load([]string{"--log-level", "verbose"}); err == nil {
		t.Error("Expected error for unknown log level")
	}
}
