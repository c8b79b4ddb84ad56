package approval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Backend names a decision log implementation
type Backend string

const (
	BackendJSONL  Backend = "jsonl"
	BackendSQLite Backend = "sqlite"
	BackendNone   Backend = "none"
)

const (
	jsonlFileName  = "editor_judge.jsonl"
	sqliteFileName = "editor_judge.db"
)

// Log is an append-only store of decision records
type Log interface {
	Append(ctx context.Context, rec Record) error
	Path() string
	Close() error
}

// Reader returns the most recent records, oldest first
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// LogConfig selects and locates a decision log
type LogConfig struct {
	Backend Backend
	Dir     string
}

// OpenLog opens the configured backend inside cfg.Dir
func OpenLog(cfg LogConfig) (Log, error) {
	switch cfg.Backend {
	case BackendNone:
		return NopLog{}, nil
	case BackendJSONL, "":
		return NewJSONLLog(filepath.Join(cfg.Dir, jsonlFileName)), nil
	case BackendSQLite:
		return NewSQLiteLog(filepath.Join(cfg.Dir, sqliteFileName))
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

// NopLog discards every record
type NopLog struct{}

func (NopLog) Append(context.Context, Record) error { return nil }
func (NopLog) Path() string                         { return "" }
func (NopLog) Close() error                         { return nil }

// JSONLLog appends one JSON object per line. The file is opened in append mode
// for each record, so nothing is buffered between writes and an interrupted run
// leaves every earlier record intact.
type JSONLLog struct {
	path string
	mu   sync.Mutex
}

// NewJSONLLog creates a log writing to path; the file is created on first append
func NewJSONLLog(path string) *JSONLLog {
	return &JSONLLog{path: path}
}

func (l *JSONLLog) Path() string { return l.path }
func (l *JSONLLog) Close() error { return nil }

func (l *JSONLLog) Append(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write log: %w", err)
	}
	return f.Close()
}

// Recent reads the last limit records (all when limit <= 0)
func (l *JSONLLog) Recent(_ context.Context, limit int) ([]Record, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", l.path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
