// Package store keeps a ledger of classification verdicts.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hdx-tools/pcode-detector/internal/model"
)

// Record is one classification outcome.
type Record struct {
	ID           string        `json:"id"`
	DatasetID    string        `json:"dataset_id"`
	DatasetName  string        `json:"dataset_name"`
	ResourceID   string        `json:"resource_id"`
	ResourceName string        `json:"resource_name"`
	Verdict      model.Verdict `json:"verdict"`
	Miscoded     bool          `json:"miscoded"`
	Error        string        `json:"error,omitempty"`
	Updated      bool          `json:"updated"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Filter specifies criteria for listing records.
type Filter struct {
	Verdict     model.Verdict `json:"verdict,omitempty"`
	DatasetName string        `json:"dataset_name,omitempty"`
	Since       time.Time     `json:"since,omitempty"`
	Limit       int           `json:"limit,omitempty"`
	Offset      int           `json:"offset,omitempty"`
}

// Store persists verdict records.
type Store interface {
	// Record appends rec, assigning its ID and CreatedAt.
	Record(ctx context.Context, rec *Record) error
	// Latest returns the newest record for a resource, or nil if there is none.
	Latest(ctx context.Context, resourceID string) (*Record, error)
	// List returns records newest first.
	List(ctx context.Context, filter Filter) ([]Record, error)
	// Counts returns the number of records per verdict since the given time.
	Counts(ctx context.Context, since time.Time) (map[model.Verdict]int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open connects to the store for driver and applies migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case DriverSQLite:
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, nil)
	case DriverNone, "":
		return Nop{}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, *Record) error { return nil }

func (Nop) Latest(context.Context, string) (*Record, error) { return nil, nil }

func (Nop) List(context.Context, Filter) ([]Record, error) { return nil, nil }

func (Nop) Counts(context.Context, time.Time) (map[model.Verdict]int, error) {
	return map[model.Verdict]int{}, nil
}

func (Nop) Migrate(context.Context) error { return nil }

func (Nop) Close() error { return nil }

const defaultListLimit = 100
