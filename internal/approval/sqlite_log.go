package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/hyperlint/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS approvals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    decision_type TEXT NOT NULL,
    issue_type TEXT NOT NULL,
    approved INTEGER NOT NULL,
    date TEXT NOT NULL,
    file_path TEXT NOT NULL,
    line INTEGER NOT NULL,
    issue_messages TEXT,
    existing_content TEXT NOT NULL DEFAULT '',
    replacement_content TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT '',
    run_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_approvals_file ON approvals(file_path);
CREATE INDEX IF NOT EXISTS idx_approvals_run ON approvals(run_id);

CREATE TRIGGER IF NOT EXISTS approvals_no_update BEFORE UPDATE ON approvals
BEGIN
    SELECT RAISE(ABORT, 'approval records are append-only');
END;

CREATE TRIGGER IF NOT EXISTS approvals_no_delete BEFORE DELETE ON approvals
BEGIN
    SELECT RAISE(ABORT, 'approval records are append-only');
END;
`

// SQLiteLog stores records in a SQLite table guarded against updates and deletes
type SQLiteLog struct {
	db   *sql.DB
	path string
}

// NewSQLiteLog opens (creating if needed) the database at path
func NewSQLiteLog(path string) (*SQLiteLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteLog{db: db, path: path}, nil
}

func (l *SQLiteLog) Path() string { return l.path }
func (l *SQLiteLog) Close() error { return l.db.Close() }

func (l *SQLiteLog) Append(ctx context.Context, rec Record) error {
	var messages sql.NullString
	if rec.Messages != nil {
		data, err := json.Marshal(rec.Messages)
		if err != nil {
			return fmt.Errorf("failed to marshal messages: %w", err)
		}
		messages = sql.NullString{String: string(data), Valid: true}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO approvals (
			decision_type, issue_type, approved, date, file_path, line,
			issue_messages, existing_content, replacement_content, reason, run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.DecisionType, string(rec.IssueType), rec.Approved, rec.Date.UTC().Format(time.RFC3339Nano),
		rec.FilePath, rec.Line, messages, rec.ContentBefore, rec.ContentAfter, rec.Reason, rec.RunID)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Recent returns the last limit records oldest first (all when limit <= 0)
func (l *SQLiteLog) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT decision_type, issue_type, approved, date, file_path, line,
		       issue_messages, existing_content, replacement_content, reason, run_id
		FROM approvals ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			kind     string
			date     string
			messages sql.NullString
		)
		if err := rows.Scan(&rec.DecisionType, &kind, &rec.Approved, &date, &rec.FilePath, &rec.Line,
			&messages, &rec.ContentBefore, &rec.ContentAfter, &rec.Reason, &rec.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.IssueType = types.IssueKind(kind)
		if rec.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", date, err)
		}
		if messages.Valid {
			if err := json.Unmarshal([]byte(messages.String), &rec.Messages); err != nil {
				return nil, fmt.Errorf("invalid messages: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}
