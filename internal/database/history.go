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

	"github.com/nao1215/relayview/internal/model"
)

// DefaultFileName is the database file created inside the history directory.
const DefaultFileName = "history.db"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("navigation record not found")

// HistoryDB stores navigation records.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dir.
func Open(dir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dir, DefaultFileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS navigations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		requested TEXT NOT NULL,
		kind TEXT,
		state TEXT NOT NULL,
		status TEXT,
		charset TEXT,
		charset_source TEXT,
		endpoint TEXT,
		status_code INTEGER,
		size INTEGER,
		hash TEXT,
		panes INTEGER DEFAULT 0,
		failed_panes INTEGER DEFAULT 0,
		timed_out INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER,
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nav_target ON navigations(target);
	CREATE INDEX IF NOT EXISTS idx_nav_started ON navigations(started_at);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		navigation_id INTEGER NOT NULL REFERENCES navigations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		endpoint TEXT NOT NULL,
		status_code INTEGER,
		error TEXT,
		duration_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_endpoint ON attempts(endpoint);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Record stores nav. It satisfies the pipeline recorder interface.
func (h *HistoryDB) Record(ctx context.Context, nav *model.Navigation) error {
	_, err := h.Save(ctx, nav)
	return err
}

// Save stores nav and its relay attempts in one transaction and returns the
// new record ID.
func (h *HistoryDB) Save(ctx context.Context, nav *model.Navigation) (int64, error) {
	recordJSON, err := json.Marshal(nav)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize navigation: %w", err)
	}

	var (
		charset, charsetSource, endpoint, hash string
		statusCode, size                       int
	)
	if f := nav.Fetch; f != nil {
		charset = f.Charset.Name
		charsetSource = f.Charset.Source.String()
		endpoint = f.Endpoint
		hash = f.Hash
		statusCode = f.StatusCode
		size = f.Size
	}
	attempts := nav.Attempts()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO navigations (target, requested, kind, state, status, charset, charset_source,
		endpoint, status_code, size, hash, panes, failed_panes, timed_out, error,
		started_at, duration_ms, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nav.Target,
		nav.Requested,
		string(nav.Kind),
		string(nav.State),
		nav.Status,
		charset,
		charsetSource,
		endpoint,
		statusCode,
		size,
		hash,
		len(nav.Panes),
		nav.FailedPanes(),
		boolToInt(nav.TimedOut),
		nav.ErrorMessage,
		nav.StartedAt.UTC().Format(timeLayout),
		nav.Duration().Milliseconds(),
		string(recordJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save navigation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read navigation id: %w", err)
	}

	for i, a := range attempts {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO attempts (navigation_id, seq, endpoint, status_code, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, a.Endpoint, a.StatusCode, a.Error, a.Duration.Milliseconds(),
		); err != nil {
			return 0, fmt.Errorf("failed to save attempt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit navigation: %w", err)
	}
	return id, nil
}

// Entry is one row of the navigation history.
type Entry struct {
	ID          int64                 `json:"id"`
	Target      string                `json:"target"`
	Kind        model.DocumentKind    `json:"kind"`
	State       model.NavigationState `json:"state"`
	Status      string                `json:"status"`
	Charset     string                `json:"charset,omitempty"`
	Endpoint    string                `json:"endpoint,omitempty"`
	StatusCode  int                   `json:"status_code,omitempty"`
	Size        int                   `json:"size"`
	Hash        string                `json:"hash,omitempty"`
	Panes       int                   `json:"panes"`
	FailedPanes int                   `json:"failed_panes"`
	TimedOut    bool                  `json:"timed_out"`
	Error       string                `json:"error,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
}

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	// Target restricts to one normalized URL.
	Target string

	// State restricts to one terminal state.
	State model.NavigationState

	// Limit caps the number of rows. 0 means 50.
	Limit int
}

// List returns history entries, newest first.
func (h *HistoryDB) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
	SELECT id, target, kind, state, status, charset, endpoint, status_code, size, hash,
		panes, failed_panes, timed_out, error, started_at, duration_ms
	FROM navigations WHERE 1=1`
	var args []any
	if f.Target != "" {
		query += " AND target = ?"
		args = append(args, f.Target)
	}
	if f.State != "" {
		query += " AND state = ?"
		args = append(args, string(f.State))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list navigations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                       Entry
			kind, state                             string
			status, charset, endpoint, hash, errMsg sql.NullString
			statusCode, size                        sql.NullInt64
			timedOut                                int
			startedAt                               string
			durationMS                              sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Target, &kind, &state, &status, &charset, &endpoint,
			&statusCode, &size, &hash, &e.Panes, &e.FailedPanes, &timedOut, &errMsg,
			&startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan navigation: %w", err)
		}
		e.Kind = model.DocumentKind(kind)
		e.State = model.NavigationState(state)
		e.Status = status.String
		e.Charset = charset.String
		e.Endpoint = endpoint.String
		e.StatusCode = int(statusCode.Int64)
		e.Size = int(size.Int64)
		e.Hash = hash.String
		e.TimedOut = timedOut != 0
		e.Error = errMsg.String
		e.StartedAt = parseTimestamp(startedAt)
		e.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the full navigation record stored under id.
// The output document itself is not stored.
func (h *HistoryDB) Get(ctx context.Context, id int64) (*model.Navigation, error) {
	var recordJSON string
	err := h.db.QueryRowContext(ctx, `SELECT record_json FROM navigations WHERE id = ?`, id).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get navigation: %w", err)
	}

	var nav model.Navigation
	if err := json.Unmarshal([]byte(recordJSON), &nav); err != nil {
		return nil, fmt.Errorf("failed to parse navigation: %w", err)
	}
	return &nav, nil
}

// LastHash returns the content hash of the most recent successful
// navigation to target, or "" when there is none.
func (h *HistoryDB) LastHash(ctx context.Context, target string) (string, error) {
	var hash sql.NullString
	err := h.db.QueryRowContext(ctx, `
	SELECT hash FROM navigations
	WHERE target = ? AND state = ?
	ORDER BY started_at DESC, id DESC LIMIT 1`,
		target, string(model.StateDone),
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last hash: %w", err)
	}
	return hash.String, nil
}

// EndpointStats summarizes the recorded attempts of one relay endpoint.
type EndpointStats struct {
	Endpoint        string
	Attempts        int
	Successes       int
	AverageDuration time.Duration
}

// SuccessRate returns the fraction of successful attempts.
func (s EndpointStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// EndpointStats returns per-endpoint attempt statistics, ordered by endpoint.
func (h *HistoryDB) EndpointStats(ctx context.Context) ([]EndpointStats, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT endpoint,
		COUNT(*),
		SUM(CASE WHEN error IS NULL OR error = '' THEN 1 ELSE 0 END),
		CAST(AVG(duration_ms) AS INTEGER)
	FROM attempts
	GROUP BY endpoint
	ORDER BY endpoint`)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint stats: %w", err)
	}
	defer rows.Close()

	var stats []EndpointStats
	for rows.Next() {
		var (
			s     EndpointStats
			avgMS int64
		)
		if err := rows.Scan(&s.Endpoint, &s.Attempts, &s.Successes, &avgMS); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint stats: %w", err)
		}
		s.AverageDuration = time.Duration(avgMS) * time.Millisecond
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Prune deletes navigations started before cutoff and returns how many
// were removed.
func (h *HistoryDB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	ts := cutoff.UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx, `
	DELETE FROM attempts WHERE navigation_id IN (SELECT id FROM navigations WHERE started_at < ?)`, ts); err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM navigations WHERE started_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to prune navigations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows: %w", err)
	}
	return n, tx.Commit()
}

// boolToInt maps a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is a fixed-width UTC layout, so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// timestampFormats are the layouts a stored timestamp may use.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a stored timestamp, returning the zero time when no
// layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
