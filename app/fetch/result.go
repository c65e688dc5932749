package fetch

import (
	"time"

	"github.com/lysyi3m/feedsync/app/feed"
)

// Result is the outcome of one fetch. Exactly one of Snapshot and Err is set.
type Result struct {
	URL      string
	Snapshot *feed.Snapshot
	Err      *feed.Error
	Duration time.Duration
}

func success(url string, snapshot *feed.Snapshot) Result {
	return Result{URL: url, Snapshot: snapshot}
}

func failure(url string, err *feed.Error) Result {
	return Result{URL: url, Err: err}
}

func (r Result) OK() bool {
	return r.Err == nil && r.Snapshot != nil
}

// Outcome is the metrics label for r: "success" or the failure kind.
func (r Result) Outcome() string {
	if r.OK() {
		return "success"
	}
	return string(r.Err.Kind)
}
