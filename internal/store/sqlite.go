package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hdx-tools/pcode-detector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS verdicts (
	id            TEXT PRIMARY KEY,
	dataset_id    TEXT NOT NULL,
	dataset_name  TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	resource_name TEXT NOT NULL,
	verdict       TEXT NOT NULL,
	miscoded      INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	updated       INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdicts_resource ON verdicts(resource_id, created_at);
CREATE INDEX IF NOT EXISTS idx_verdicts_dataset ON verdicts(dataset_name);
CREATE INDEX IF NOT EXISTS idx_verdicts_created ON verdicts(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verdicts (id, dataset_id, dataset_name, resource_id, resource_name, verdict, miscoded, error, updated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DatasetID, rec.DatasetName, rec.ResourceID, rec.ResourceName,
		string(rec.Verdict), rec.Miscoded, rec.Error, rec.Updated, rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert verdict for %s", rec.ResourceID)
}

const sqliteSelect = `SELECT id, dataset_id, dataset_name, resource_id, resource_name, verdict, miscoded, error, updated, created_at FROM verdicts`

func (s *SQLiteStore) Latest(ctx context.Context, resourceID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		sqliteSelect+` WHERE resource_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		resourceID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest verdict for %s", resourceID)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := sqliteSelect + ` WHERE 1=1`
	var args []any

	if filter.Verdict != "" {
		query += ` AND verdict = ?`
		args = append(args, string(filter.Verdict))
	}
	if filter.DatasetName != "" {
		query += ` AND dataset_name = ?`
		args = append(args, filter.DatasetName)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list verdicts")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verdict")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list verdicts iterate")
}

func (s *SQLiteStore) Counts(ctx context.Context, since time.Time) (map[model.Verdict]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT verdict, COUNT(*) FROM verdicts WHERE created_at >= ? GROUP BY verdict`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count verdicts")
	}
	defer rows.Close()
	return scanCounts(rows)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var r Record
	var verdict string
	if err := row.Scan(&r.ID, &r.DatasetID, &r.DatasetName, &r.ResourceID, &r.ResourceName,
		&verdict, &r.Miscoded, &r.Error, &r.Updated, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Verdict = model.Verdict(verdict)
	return &r, nil
}

type countRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanCounts(rows countRows) (map[model.Verdict]int, error) {
	out := make(map[model.Verdict]int)
	for rows.Next() {
		var verdict string
		var n int
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, eris.Wrap(err, "store: scan count")
		}
		out[model.Verdict(verdict)] = n
	}
	return out, eris.Wrap(rows.Err(), "store: iterate counts")
}
