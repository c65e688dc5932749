package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./feedsync.db" description:"SQLite database file (or :memory:)"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" description:"Directory of *.yml subscription files ingested at startup (optional)"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Maximum concurrent fetches and background workers"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-feed fetch timeout in seconds"`
	WriteTimeout      int    `long:"write-timeout" env:"WRITE_TIMEOUT" default:"120" description:"HTTP write timeout in seconds, bounds synchronous feed ingestion"`
	MaxBodySize       int64  `long:"max-body-size" env:"MAX_BODY_SIZE" default:"5242880" description:"Maximum feed document size in bytes"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"0" description:"Background sync interval in seconds (0 disables)"`
	RefreshInterval   int    `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"3600" description:"Minimum feed age in seconds before background sync refreshes it"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"feedsync/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            strings.TrimSpace(raw.DBPath),
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		FetchTimeout:      raw.FetchTimeout,
		WriteTimeout:      raw.WriteTimeout,
		MaxBodySize:       raw.MaxBodySize,
		SchedulerInterval: raw.SchedulerInterval,
		RefreshInterval:   raw.RefreshInterval,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		LogLevel:          raw.LogLevel,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	var errs []error

	if cfg.DBPath == "" {
		errs = append(errs, errors.New("db-path must not be empty"))
	}
	if cfg.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("worker-count must be at least 1, got %d", cfg.WorkerCount))
	}
	if cfg.FetchTimeout < 1 {
		errs = append(errs, fmt.Errorf("fetch-timeout must be at least 1 second, got %d", cfg.FetchTimeout))
	}
	if minWrite := cfg.FetchTimeout + int(ingestMargin/time.Second); cfg.WriteTimeout < minWrite {
		errs = append(errs, fmt.Errorf("write-timeout must be at least fetch-timeout + %d seconds (%d), got %d",
			int(ingestMargin/time.Second), minWrite, cfg.WriteTimeout))
	}
	if cfg.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("max-body-size must be positive, got %d", cfg.MaxBodySize))
	}
	if cfg.SchedulerInterval < 0 {
		errs = append(errs, fmt.Errorf("scheduler-interval must not be negative, got %d", cfg.SchedulerInterval))
	}
	if cfg.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("refresh-interval must not be negative, got %d", cfg.RefreshInterval))
	}

	return errors.Join(errs...)
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
