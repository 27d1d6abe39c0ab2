// Package monitoring watches the verdict ledger and raises an alert when
// too many resources end up undetermined.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hdx-tools/pcode-detector/internal/model"
)

// Snapshot holds verdict counts over a lookback window.
type Snapshot struct {
	Total            int       `json:"total"`
	Coded            int       `json:"coded"`
	NotCoded         int       `json:"not_coded"`
	Undetermined     int       `json:"undetermined"`
	UndeterminedRate float64   `json:"undetermined_rate"`
	LookbackHours    int       `json:"lookback_hours"`
	CollectedAt      time.Time `json:"collected_at"`
}

// Counter reports verdict counts recorded since a point in time.
type Counter interface {
	Counts(ctx context.Context, since time.Time) (map[model.Verdict]int, error)
}

// Collector gathers snapshots from the verdict ledger.
type Collector struct {
	counter Counter
}

// NewCollector creates a new metrics collector.
func NewCollector(counter Counter) *Collector {
	return &Collector{counter: counter}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := time.Now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	counts, err := c.counter.Counts(ctx, now.Add(-time.Duration(lookbackHours)*time.Hour))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count verdicts")
	}

	snap.Coded = counts[model.VerdictCoded]
	snap.NotCoded = counts[model.VerdictNotCoded]
	snap.Undetermined = counts[model.VerdictUndetermined]
	snap.Total = snap.Coded + snap.NotCoded + snap.Undetermined
	if snap.Total > 0 {
		snap.UndeterminedRate = float64(snap.Undetermined) / float64(snap.Total)
	}
	return snap, nil
}
