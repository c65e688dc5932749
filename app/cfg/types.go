package cfg

import "time"

const ingestMargin = 10 * time.Second

type Cfg struct {
	// Storage
	DBPath string

	// Application configuration
	FeedsDir          string
	Port              string
	WorkerCount       int
	FetchTimeout      int // seconds
	WriteTimeout      int // seconds, covers synchronous batch ingestion
	MaxBodySize       int64
	SchedulerInterval int // seconds, 0 disables periodic sync
	RefreshInterval   int // seconds

	// Application metadata
	UserAgent string
	Timezone  string
	LogLevel  string
	Debug     bool
	Version   string
}

func (c *Cfg) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

func (c *Cfg) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

// IngestTimeoutDuration is the fetch budget of one batch request. It leaves
// ingestMargin of the write timeout for merging and writing the response.
func (c *Cfg) IngestTimeoutDuration() time.Duration {
	return c.WriteTimeoutDuration() - ingestMargin
}

func (c *Cfg) SchedulerIntervalDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) RefreshIntervalDuration() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}
