package history

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoHistory is returned by ExportRaw when a session has no records.
var ErrNoHistory = errors.New("no history for session")

// Record is one completed cleanup run. Written once, never mutated.
type Record struct {
	Date            string `json:"date"` // ISO-8601, record creation time
	Action          string `json:"action"`
	TotalMessages   int    `json:"totalMessages"`
	DeletedMessages int    `json:"deletedMessages"`
}

// Store is the append-only history ledger, partitioned by session id.
// Records outlive their session.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Append adds a record to the session's partition, creating it implicitly.
func (s *Store) Append(sessionID string, rec Record) error {
	_, err := s.db.Exec(
		`INSERT INTO history_records (session_id, date, action, total_messages, deleted_messages)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, rec.Date, rec.Action, rec.TotalMessages, rec.DeletedMessages,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ReadAll returns the session's records in append order. An unknown session
// id yields an empty slice, not an error.
func (s *Store) ReadAll(sessionID string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT date, action, total_messages, deleted_messages
		 FROM history_records WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Date, &r.Action, &r.TotalMessages, &r.DeletedMessages); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ExportRaw renders the session's partition as a JSON document for a
// one-shot download. Returns ErrNoHistory when the partition is empty.
func (s *Store) ExportRaw(sessionID string) ([]byte, error) {
	records, err := s.ReadAll(sessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoHistory
	}
	return json.MarshalIndent(records, "", "  ")
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}
