package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY,
	created_at  TIMESTAMPTZ NOT NULL,
	client      TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	domain      TEXT NOT NULL DEFAULT '',
	final_label TEXT NOT NULL,
	risk_score  DOUBLE PRECISION NOT NULL,
	snippet     TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL DEFAULT '',
	result      JSONB
);
CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at DESC);
CREATE TABLE IF NOT EXISTS feedback (
	analysis_id TEXT PRIMARY KEY REFERENCES analyses(id) ON DELETE CASCADE,
	user_label  TEXT NOT NULL DEFAULT '',
	is_correct  BOOLEAN NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);`

// PostgresStore persists history in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// OpenPostgres connects, pings and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

// NewPostgresStore wraps an existing pool; the schema must already exist.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO analyses (id, created_at, client, url, domain, final_label, risk_score, snippet, fingerprint, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			final_label = EXCLUDED.final_label,
			risk_score = EXCLUDED.risk_score,
			result = EXCLUDED.result`

	var result any
	if len(rec.Result) > 0 {
		result = string(rec.Result)
	}
	_, err := s.db.Exec(ctx, query,
		rec.ID, rec.Timestamp, rec.Client, rec.URL, rec.Domain,
		rec.FinalLabel, rec.RiskScore, rec.Snippet, rec.Fingerprint, result,
	)
	if err != nil {
		return fmt.Errorf("history: save %s: %w", rec.ID, err)
	}
	return nil
}

const selectRecord = `
	SELECT id, created_at, client, url, domain, final_label, risk_score, snippet, fingerprint, COALESCE(result::text, '')
	FROM analyses`

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, selectRecord+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("history: get %s: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, selectRecord+` ORDER BY created_at DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, fb Feedback) error {
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}
	query := `
		INSERT INTO feedback (analysis_id, user_label, is_correct, notes, created_at)
		SELECT $1, $2, $3, $4, $5 WHERE EXISTS (SELECT 1 FROM analyses WHERE id = $1)
		ON CONFLICT (analysis_id) DO UPDATE SET
			user_label = EXCLUDED.user_label,
			is_correct = EXCLUDED.is_correct,
			notes = EXCLUDED.notes,
			created_at = EXCLUDED.created_at`

	tag, err := s.db.Exec(ctx, query, fb.AnalysisID, fb.UserLabel, fb.IsCorrect, fb.Notes, fb.Timestamp)
	if err != nil {
		return fmt.Errorf("history: save feedback %s: %w", fb.AnalysisID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByLabel: map[string]int{}}

	rows, err := s.db.Query(ctx, `SELECT final_label, count(*) FROM analyses GROUP BY final_label`)
	if err != nil {
		return st, fmt.Errorf("history: stats labels: %w", err)
	}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			rows.Close()
			return st, fmt.Errorf("history: stats scan: %w", err)
		}
		st.ByLabel[label] = n
		st.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("history: stats labels: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE is_correct) FROM feedback`,
	).Scan(&st.Feedback, &st.Correct)
	if err != nil {
		return st, fmt.Errorf("history: stats feedback: %w", err)
	}
	st.Incorrect = st.Feedback - st.Correct
	st.Accuracy = accuracy(st.Correct, st.Feedback)
	return st, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var result string
	err := row.Scan(
		&rec.ID, &rec.Timestamp, &rec.Client, &rec.URL, &rec.Domain,
		&rec.FinalLabel, &rec.RiskScore, &rec.Snippet, &rec.Fingerprint, &result,
	)
	if err != nil {
		return Record{}, err
	}
	if result != "" {
		rec.Result = []byte(result)
	}
	return rec, nil
}
