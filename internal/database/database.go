package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Reap actions as stored in the actions table.
const (
	ActionDelete = "DELETE"
	ActionDryRun = "DRY_RUN"
	ActionSkip   = "SKIP"
	ActionError  = "ERROR"
)

// File verdicts as stored in the verdicts table.
const (
	VerdictLoaded   = "LOADED"
	VerdictRejected = "REJECTED"
	VerdictFailed   = "FAILED"
)

// HistoryDB manages the SQLite database holding reap and processing history
type HistoryDB struct {
	db *sql.DB
}

// ActionRecord is one entry the reaper acted on, or failed to.
type ActionRecord struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	Action       string
	Path         string
	FileName     string
	ObjectType   string
	Size         int64
	FailureKind  string
	ErrorMessage string
}

// VerdictRecord is the outcome of loading one file in a processing run.
type VerdictRecord struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	Path         string
	Encoding     string
	Verdict      string
	Size         int64
	ErrorMessage string
}

// NewHistoryDB opens (creating when needed) the database at dbPath and
// initializes its schema.
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Ping does not create the file; a query does
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}
	return hdb, nil
}

func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		object_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		failure_kind TEXT,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id);
	CREATE INDEX IF NOT EXISTS idx_actions_timestamp ON actions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_actions_action ON actions(action);
	CREATE INDEX IF NOT EXISTS idx_actions_path ON actions(path);

	CREATE TABLE IF NOT EXISTS verdicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		path TEXT NOT NULL,
		encoding TEXT NOT NULL,
		verdict TEXT NOT NULL,
		size INTEGER NOT NULL,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_verdicts_run ON verdicts(run_id);
	CREATE INDEX IF NOT EXISTS idx_verdicts_encoding ON verdicts(encoding);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordAction inserts one reap action. A zero Timestamp is stamped with
// the current time.
func (d *HistoryDB) RecordAction(r ActionRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	if r.FileName == "" {
		r.FileName = filepath.Base(r.Path)
	}

	_, err := d.db.Exec(`
	INSERT INTO actions (
		run_id, timestamp, action, path, file_name, object_type, size,
		failure_kind, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID,
		r.Timestamp,
		r.Action,
		r.Path,
		r.FileName,
		r.ObjectType,
		r.Size,
		nullString(r.FailureKind),
		nullString(r.ErrorMessage),
	)
	return err
}

// RecordVerdict inserts the outcome of loading one file.
func (d *HistoryDB) RecordVerdict(r VerdictRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	_, err := d.db.Exec(`
	INSERT INTO verdicts (
		run_id, timestamp, path, encoding, verdict, size, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID,
		r.Timestamp,
		r.Path,
		r.Encoding,
		r.Verdict,
		r.Size,
		nullString(r.ErrorMessage),
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns record counts and the on-disk size.
func (d *HistoryDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var actions, verdicts int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM actions").Scan(&actions); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM verdicts").Scan(&verdicts); err != nil {
		return nil, err
	}
	stats["action_records"] = actions
	stats["verdict_records"] = verdicts

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	var runs int64
	if err := d.db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT run_id FROM actions UNION SELECT run_id FROM verdicts
		)`).Scan(&runs); err != nil {
		return nil, err
	}
	stats["runs"] = runs

	return stats, nil
}
