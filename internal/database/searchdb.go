package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitesearch/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "sitesearch.db"

// timestampLayout is fixed-width so that timestamps stored as text sort
// chronologically. Values are always stored in UTC.
const timestampLayout = "2006-01-02 15:04:05.000000000"

var (
	// ErrAmbiguousID is returned by FindReport when an ID prefix matches
	// more than one report.
	ErrAmbiguousID = errors.New("report ID prefix matches more than one report")

	// ErrNilReport is returned by SaveReport when given a nil report.
	ErrNilReport = errors.New("report is nil")
)

// SearchDB stores finished search reports.
type SearchDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures SearchDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so that readers (for example
	// `sitesearch history` while `serve` is running) do not block writers.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
// If CreateIfNotExists is false and the database does not exist, an error
// is returned and nothing is created.
func Open(dbDir string, opts Options) (*SearchDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (no search has been saved yet)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SearchDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Path returns the database file path.
func (sdb *SearchDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *SearchDB) Close() error {
	return sdb.db.Close()
}

func (sdb *SearchDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_reports (
		id TEXT PRIMARY KEY,
		start_url TEXT NOT NULL,
		query TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		pages_matched INTEGER NOT NULL DEFAULT 0,
		context_count INTEGER NOT NULL DEFAULT 0,
		timed_out INTEGER NOT NULL DEFAULT 0,
		digest TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON search_reports(start_url, query);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON search_reports(timestamp);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// ReportMetadata summarises a saved report without decoding it.
type ReportMetadata struct {
	ID           string
	StartURL     string
	Query        string
	MaxDepth     int
	Timestamp    time.Time
	Duration     time.Duration
	PagesFetched int
	PagesMatched int
	ContextCount int
	TimedOut     bool
	Digest       string
}

// ListFilter narrows ListReports. Zero values match everything.
type ListFilter struct {
	StartURL string
	Query    string

	// Limit caps the number of rows. 0 means no limit.
	Limit int
}

// SaveReport stores a finished report. Saving a report with an ID that
// already exists replaces it.
func (sdb *SearchDB) SaveReport(ctx context.Context, report *model.SearchReport) error {
	if report == nil {
		return ErrNilReport
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO search_reports (
		id, start_url, query, max_depth, timestamp, duration_ms,
		pages_fetched, pages_matched, context_count, timed_out, digest, report_json
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		timestamp = excluded.timestamp,
		duration_ms = excluded.duration_ms,
		pages_fetched = excluded.pages_fetched,
		pages_matched = excluded.pages_matched,
		context_count = excluded.context_count,
		timed_out = excluded.timed_out,
		digest = excluded.digest,
		report_json = excluded.report_json
	`

	_, err = sdb.db.ExecContext(ctx, query,
		report.ID,
		report.Request.StartURL,
		report.Request.Query,
		report.Request.MaxDepth,
		report.StartedAt.UTC().Format(timestampLayout),
		report.Duration().Milliseconds(),
		report.Stats.PagesFetched,
		len(report.Results),
		report.ContextCount(),
		report.TimedOut,
		report.Digest,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save search report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by its exact ID.
// It returns nil and no error when the ID is unknown.
func (sdb *SearchDB) GetReport(ctx context.Context, id string) (*model.SearchReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx,
		`SELECT report_json FROM search_reports WHERE id = ?`, id,
	).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search report: %w", err)
	}

	return decodeReport(reportJSON)
}

// FindReport retrieves a report by ID or by a unique ID prefix, so that
// users can type the first characters of a UUID.
// It returns nil and no error when nothing matches.
func (sdb *SearchDB) FindReport(ctx context.Context, idPrefix string) (*model.SearchReport, error) {
	if idPrefix == "" {
		return nil, nil
	}

	report, err := sdb.GetReport(ctx, idPrefix)
	if err != nil || report != nil {
		return report, err
	}

	rows, err := sdb.db.QueryContext(ctx,
		`SELECT report_json FROM search_reports WHERE substr(id, 1, ?) = ? LIMIT 2`,
		len(idPrefix), idPrefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find search report: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan search report: %w", err)
		}
		matches = append(matches, reportJSON)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return decodeReport(matches[0])
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, idPrefix)
	}
}

// ListReports returns report metadata, newest first.
func (sdb *SearchDB) ListReports(ctx context.Context, filter ListFilter) ([]ReportMetadata, error) {
	query := `
	SELECT id, start_url, query, max_depth, timestamp, duration_ms,
		pages_fetched, pages_matched, context_count, timed_out, digest
	FROM search_reports
	WHERE 1=1
	`
	args := make([]any, 0, 3)

	if filter.StartURL != "" {
		query += " AND start_url = ?"
		args = append(args, filter.StartURL)
	}
	if filter.Query != "" {
		query += " AND query = ?"
		args = append(args, filter.Query)
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list search reports: %w", err)
	}
	defer rows.Close()

	results := make([]ReportMetadata, 0)
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, meta)
	}

	return results, rows.Err()
}

// LatestFor returns the metadata of the newest saved search for the same
// start URL and query, skipping excludeID. It returns nil when there is
// none. The search command uses it to tell whether results changed.
func (sdb *SearchDB) LatestFor(ctx context.Context, startURL, query, excludeID string) (*ReportMetadata, error) {
	row := sdb.db.QueryRowContext(ctx, `
	SELECT id, start_url, query, max_depth, timestamp, duration_ms,
		pages_fetched, pages_matched, context_count, timed_out, digest
	FROM search_reports
	WHERE start_url = ? AND query = ? AND id != ?
	ORDER BY timestamp DESC, rowid DESC
	LIMIT 1
	`, startURL, query, excludeID)

	meta, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// DeleteReport removes a report. It reports whether a row was deleted.
func (sdb *SearchDB) DeleteReport(ctx context.Context, id string) (bool, error) {
	result, err := sdb.db.ExecContext(ctx, `DELETE FROM search_reports WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete search report: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(s rowScanner) (ReportMetadata, error) {
	var (
		meta       ReportMetadata
		timestamp  string
		durationMS int64
		digest     sql.NullString
	)

	err := s.Scan(
		&meta.ID,
		&meta.StartURL,
		&meta.Query,
		&meta.MaxDepth,
		&timestamp,
		&durationMS,
		&meta.PagesFetched,
		&meta.PagesMatched,
		&meta.ContextCount,
		&meta.TimedOut,
		&digest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return meta, err
	}
	if err != nil {
		return meta, fmt.Errorf("failed to scan report metadata: %w", err)
	}

	meta.Timestamp = parseTimestamp(timestamp)
	meta.Duration = time.Duration(durationMS) * time.Millisecond
	meta.Digest = digest.String

	return meta, nil
}

func decodeReport(reportJSON string) (*model.SearchReport, error) {
	var report model.SearchReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats are the formats SQLite may hand back for a DATETIME
// column, most specific first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each of timestampFormats and returns the zero time
// when none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
