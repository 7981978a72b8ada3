package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// ErrNotFound is returned by Get for an unknown assembly id.
var ErrNotFound = errors.New("assembly not found")

// Module is one archive entry of a recorded assembly.
type Module struct {
	FQN         string
	ArchivePath string
	Redirected  bool
}

// Record is one completed assembly.
type Record struct {
	ID          string
	Entry       string
	Digest      string
	ModuleCount int
	Size        int64
	ArchivePath string
	Timestamp   time.Time
	// Modules is only filled by Get.
	Modules []Module
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts when batch and watch builds overlap.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores rec and its module list in one transaction and returns the
// record id, generating one when rec.ID is empty.
func (s *Store) Save(rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Entry = strings.TrimSpace(rec.Entry)
	if rec.Entry == "" {
		return "", fmt.Errorf("entry must not be empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.ModuleCount == 0 {
		rec.ModuleCount = len(rec.Modules)
	}

	err := s.withRetry("save assembly", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO assemblies (id, entry_fqn, digest, module_count, size_bytes, archive_path, ts_utc)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Entry, rec.Digest, rec.ModuleCount, rec.Size, rec.ArchivePath,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		for i, m := range rec.Modules {
			if _, err := tx.Exec(`
INSERT INTO assembly_modules (assembly_id, position, module_fqn, archive_path, redirected)
VALUES (?, ?, ?, ?, ?)`,
				rec.ID, i, m.FQN, m.ArchivePath, m.Redirected,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// List returns the assemblies of entry (all entries when empty), oldest
// first. A positive limit keeps only the newest limit records.
func (s *Store) List(entry string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, entry_fqn, digest, module_count, size_bytes, archive_path, ts_utc
FROM assemblies`
	args := make([]any, 0, 2)
	if entry = strings.TrimSpace(entry); entry != "" {
		query += " WHERE entry_fqn = ?"
		args = append(args, entry)
	}
	query += " ORDER BY ts_utc DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list assemblies", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assembly rows: %w", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Get loads one assembly with its module list.
func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec Record
	err := s.withRetry("get assembly", func() error {
		row := s.db.QueryRow(`
SELECT id, entry_fqn, digest, module_count, size_bytes, archive_path, ts_utc
FROM assemblies WHERE id = ?`, id)
		var scanErr error
		rec, scanErr = scanRecord(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rows, err := s.db.Query(`
SELECT module_fqn, archive_path, redirected
FROM assembly_modules WHERE assembly_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return Record{}, fmt.Errorf("load assembly modules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.FQN, &m.ArchivePath, &m.Redirected); err != nil {
			return Record{}, fmt.Errorf("scan assembly module row: %w", err)
		}
		rec.Modules = append(rec.Modules, m)
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("iterate assembly module rows: %w", err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec   Record
		tsRaw string
	)
	if err := row.Scan(&rec.ID, &rec.Entry, &rec.Digest, &rec.ModuleCount, &rec.Size, &rec.ArchivePath, &tsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan assembly row: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return Record{}, fmt.Errorf("parse assembly timestamp %q: %w", tsRaw, err)
	}
	rec.Timestamp = ts.UTC()
	return rec, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
