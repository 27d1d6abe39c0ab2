package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hdx-tools/pcode-detector/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS verdicts (
	id            TEXT PRIMARY KEY,
	dataset_id    TEXT NOT NULL,
	dataset_name  TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	resource_name TEXT NOT NULL,
	verdict       TEXT NOT NULL,
	miscoded      BOOLEAN NOT NULL DEFAULT false,
	error         TEXT NOT NULL DEFAULT '',
	updated       BOOLEAN NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_verdicts_resource ON verdicts(resource_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_verdicts_dataset ON verdicts(dataset_name);
CREATE INDEX IF NOT EXISTS idx_verdicts_created ON verdicts(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO verdicts (id, dataset_id, dataset_name, resource_id, resource_name, verdict, miscoded, error, updated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.DatasetID, rec.DatasetName, rec.ResourceID, rec.ResourceName,
		string(rec.Verdict), rec.Miscoded, rec.Error, rec.Updated, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert verdict for %s", rec.ResourceID)
}

const postgresSelect = `SELECT id, dataset_id, dataset_name, resource_id, resource_name, verdict, miscoded, error, updated, created_at FROM verdicts`

func (s *PostgresStore) Latest(ctx context.Context, resourceID string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		postgresSelect+` WHERE resource_id = $1 ORDER BY created_at DESC LIMIT 1`,
		resourceID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest verdict for %s", resourceID)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := postgresSelect + ` WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Verdict != "" {
		query += ` AND verdict = ` + arg(string(filter.Verdict))
	}
	if filter.DatasetName != "" {
		query += ` AND dataset_name = ` + arg(filter.DatasetName)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ` + arg(filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list verdicts")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan verdict")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list verdicts iterate")
}

func (s *PostgresStore) Counts(ctx context.Context, since time.Time) (map[model.Verdict]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT verdict, COUNT(*) FROM verdicts WHERE created_at >= $1 GROUP BY verdict`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count verdicts")
	}
	defer rows.Close()
	return scanCounts(rows)
}
