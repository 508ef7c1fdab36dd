package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagescout/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "pagescout.db"

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ResultDB provides SQLite-based storage for finished runs.
//
// Design decision: One database file holds every run rather than one file
// per run because:
//  1. History queries span runs (ContentHistory)
//  2. Backup is a single file copy
type ResultDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ResultDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist,
// ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	var dsn string
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw"
	}

	// A reader (pagescout history) may open the file while a run writes.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{
		db:     db,
		dbPath: dbPath,
	}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := rdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *ResultDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ResultDB) createTables(ctx context.Context) error {
	schema := `
	-- One row per pagescout run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		page_types TEXT NOT NULL,
		homepages INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);

	-- One row per (homepage, page type) of a run
	CREATE TABLE IF NOT EXISTS page_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		homepage TEXT NOT NULL,
		page_order INTEGER NOT NULL,
		page_type TEXT NOT NULL,
		url TEXT NOT NULL,
		content TEXT NOT NULL,
		digest TEXT NOT NULL,
		source TEXT NOT NULL,
		phrase TEXT NOT NULL,
		outcome TEXT NOT NULL,
		strategy TEXT NOT NULL,
		UNIQUE(run_id, position, page_order)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON page_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_page ON page_results(homepage, page_type);
	`

	_, err := rdb.db.ExecContext(ctx, schema)
	return err
}

// Run describes one stored run.
type Run struct {
	// ID is a random UUID assigned by SaveRun when empty.
	ID string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// PageTypes are the page type names in export order.
	PageTypes []string

	// Homepages is the number of homepages (records) in the run.
	Homepages int
}

// RunSummary is a Run with outcome counts over all its page results.
type RunSummary struct {
	Run

	Success        int
	EmptyOrBlocked int
	Unreachable    int

	// Fallbacks counts results that fell back to the homepage.
	Fallbacks int
}

// ContentVersion is the stored state of one page type of one homepage in
// one run. Comparing Digest across versions shows whether the text changed.
type ContentVersion struct {
	RunID      string
	FinishedAt time.Time
	URL        string
	Digest     string
	Outcome    model.OutcomeKind
	Source     model.Source

	// Length is the text length in characters.
	Length int
}

// Digest returns the hex BLAKE2b-256 digest of text, or "" for empty text.
func Digest(text string) string {
	if text == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SaveRun stores a run and its records in one transaction.
// Records are stored in the given order; their index is the homepage
// position used by LoadRun. run.ID is filled in when empty.
func (rdb *ResultDB) SaveRun(ctx context.Context, run *Run, records []model.SiteRecord) (err error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Homepages = len(records)

	pageTypesJSON, err := json.Marshal(run.PageTypes)
	if err != nil {
		return fmt.Errorf("failed to serialize page types: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, page_types, homepages) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		string(pageTypesJSON),
		run.Homepages,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO page_results
		(run_id, position, homepage, page_order, page_type, url, content, digest, source, phrase, outcome, strategy)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for pos, rec := range records {
		for order, r := range rec.Results {
			_, err = stmt.ExecContext(ctx,
				run.ID, pos, rec.Homepage, order, r.PageType, r.URL, r.Text, Digest(r.Text),
				r.Source.String(), r.Phrase, r.Outcome.String(), r.Strategy.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to save result %s/%s: %w", rec.Homepage, r.PageType, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (rdb *ResultDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
	SELECT r.id, r.started_at, r.finished_at, r.page_types, r.homepages,
		COALESCE(SUM(CASE WHEN p.outcome = 'success' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN p.outcome = 'empty_or_blocked' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN p.outcome = 'unreachable' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN p.source = 'homepage_fallback' THEN 1 ELSE 0 END), 0)
	FROM runs r
	LEFT JOIN page_results p ON p.run_id = r.id
	GROUP BY r.id
	ORDER BY r.finished_at DESC
	LIMIT ?
	`

	rows, err := rdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished, pageTypes string
		if err := rows.Scan(&s.ID, &started, &finished, &pageTypes, &s.Homepages,
			&s.Success, &s.EmptyOrBlocked, &s.Unreachable, &s.Fallbacks); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		s.PageTypes = parsePageTypes(pageTypes)
		runs = append(runs, s)
	}

	return runs, rows.Err()
}

// LoadRun returns a stored run and its records in their original order.
// id may be a full run ID or a unique prefix of one.
func (rdb *ResultDB) LoadRun(ctx context.Context, id string) (*Run, []model.SiteRecord, error) {
	fullID, err := rdb.resolveRunID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	run := &Run{ID: fullID}
	var started, finished, pageTypes string
	err = rdb.db.QueryRowContext(ctx,
		`SELECT started_at, finished_at, page_types, homepages FROM runs WHERE id = ?`, fullID,
	).Scan(&started, &finished, &pageTypes, &run.Homepages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	run.PageTypes = parsePageTypes(pageTypes)

	rows, err := rdb.db.QueryContext(ctx, `
	SELECT position, homepage, page_type, url, content, source, phrase, outcome, strategy
	FROM page_results
	WHERE run_id = ?
	ORDER BY position, page_order
	`, fullID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	records := make([]model.SiteRecord, 0, run.Homepages)
	for rows.Next() {
		var pos int
		var homepage, source, outcome, strategy string
		var r model.PageResult
		if err := rows.Scan(&pos, &homepage, &r.PageType, &r.URL, &r.Text,
			&source, &r.Phrase, &outcome, &strategy); err != nil {
			return nil, nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := decodeEnums(&r, source, outcome, strategy); err != nil {
			return nil, nil, err
		}

		for len(records) <= pos {
			records = append(records, model.SiteRecord{})
		}
		records[pos].Homepage = homepage
		records[pos].Results = append(records[pos].Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return run, records, nil
}

// ContentHistory returns every stored version of one page type of one
// homepage, newest run first.
func (rdb *ResultDB) ContentHistory(ctx context.Context, homepage, pageType string) ([]ContentVersion, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT p.run_id, r.finished_at, p.url, p.digest, p.outcome, p.source, length(p.content)
	FROM page_results p
	JOIN runs r ON r.id = p.run_id
	WHERE p.homepage = ? AND p.page_type = ?
	ORDER BY r.finished_at DESC
	`, homepage, pageType)
	if err != nil {
		return nil, fmt.Errorf("failed to query content history: %w", err)
	}
	defer rows.Close()

	var versions []ContentVersion
	for rows.Next() {
		var v ContentVersion
		var finished, outcome, source string
		if err := rows.Scan(&v.RunID, &finished, &v.URL, &v.Digest, &outcome, &source, &v.Length); err != nil {
			return nil, fmt.Errorf("failed to scan content version: %w", err)
		}
		v.FinishedAt = parseTimestamp(finished)
		if err := v.Outcome.UnmarshalText([]byte(outcome)); err != nil {
			return nil, err
		}
		if err := v.Source.UnmarshalText([]byte(source)); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

// resolveRunID expands a run ID prefix to the full ID.
func (rdb *ResultDB) resolveRunID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrRunNotFound
	}

	rows, err := rdb.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE substr(id, 1, length(?)) = ? LIMIT 2`, prefix, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to resolve run ID: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, prefix)
	}
}

func decodeEnums(r *model.PageResult, source, outcome, strategy string) error {
	return errors.Join(
		r.Source.UnmarshalText([]byte(source)),
		r.Outcome.UnmarshalText([]byte(outcome)),
		r.Strategy.UnmarshalText([]byte(strategy)),
	)
}

func parsePageTypes(s string) []string {
	var names []string
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return nil
	}
	return names
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
