package database

import (
	"context"
	"fmt"
	"time"

	"go-crowdworks-watcher/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func ConnectDB(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	// Poolers in transaction mode (Supabase, PgBouncer) reject prepared
	// statements, so the statement cache stays off.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Repository{db: pool}, nil
}

func (r *Repository) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id             UUID PRIMARY KEY,
	run_at         TIMESTAMPTZ NOT NULL,
	raw_count      INTEGER NOT NULL,
	filtered_count INTEGER NOT NULL,
	raw_path       TEXT NOT NULL,
	filtered_path  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	url                TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	budget             TEXT NOT NULL,
	client             TEXT NOT NULL,
	posted_date        TEXT,
	crawled_at         TEXT NOT NULL,
	detail_description TEXT,
	crawled_detail_at  TEXT,
	gpt_reason         TEXT,
	relevant           BOOLEAN NOT NULL DEFAULT FALSE,
	last_run_id        UUID REFERENCES crawl_runs(id),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// EnsureSchema creates the tables when they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ListingRow is one listing as mirrored to the listings table.
type ListingRow struct {
	models.Listing
	Relevant bool
}

// RowsFor merges a run's raw and filtered sets. Every raw listing gets a
// row; listings that passed the relevance filter carry their enriched fields.
func RowsFor(result models.RunResult) []ListingRow {
	filtered := make(map[string]models.Listing, len(result.Filtered))
	for _, l := range result.Filtered {
		filtered[l.URL] = l
	}

	rows := make([]ListingRow, 0, len(result.Raw))
	for _, l := range result.Raw {
		if f, ok := filtered[l.URL]; ok {
			rows = append(rows, ListingRow{Listing: f, Relevant: true})
			continue
		}
		rows = append(rows, ListingRow{Listing: l})
	}
	return rows
}

const upsertListing = `
	INSERT INTO listings (url, title, budget, client, posted_date, crawled_at,
		detail_description, crawled_detail_at, gpt_reason, relevant, last_run_id, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11, now())
	ON CONFLICT (url)
	DO UPDATE SET title = EXCLUDED.title, budget = EXCLUDED.budget, client = EXCLUDED.client,
		posted_date = EXCLUDED.posted_date, crawled_at = EXCLUDED.crawled_at,
		detail_description = EXCLUDED.detail_description, crawled_detail_at = EXCLUDED.crawled_detail_at,
		gpt_reason = EXCLUDED.gpt_reason, relevant = EXCLUDED.relevant,
		last_run_id = EXCLUDED.last_run_id, updated_at = now()`

// SaveRun records the run and upserts its listings in one transaction.
func (r *Repository) SaveRun(ctx context.Context, result models.RunResult) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	runID := result.RunID.String()
	_, err = tx.Exec(ctx,
		`INSERT INTO crawl_runs (id, run_at, raw_count, filtered_count, raw_path, filtered_path)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, result.RunAt, len(result.Raw), len(result.Filtered), result.RawPath, result.FilteredPath)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range RowsFor(result) {
		batch.Queue(upsertListing,
			row.URL, row.Title, row.Budget, row.Client, row.PostedDate, row.CrawledAt,
			row.DetailDescription, row.CrawledDetailAt, row.GPTReason, row.Relevant, runID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save listings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Publish makes the repository usable as a pipeline sink.
func (r *Repository) Publish(ctx context.Context, result models.RunResult) error {
	return r.SaveRun(ctx, result)
}

func (r *Repository) Name() string {
	return "postgres"
}
