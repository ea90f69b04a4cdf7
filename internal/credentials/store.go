package credentials

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// Store persists the bearer token and the user descriptor between runs.
// Its only writers are the gateway's 401 path and the explicit logout
// action; everything else reads. The in-memory snapshot keeps the request
// path off sqlite.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	token string
	user  string
}

// Open opens (or creates) the credential database at path and loads any
// previously saved values.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}

	createTable := `
	CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		value TEXT
	);`

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create credentials table: %w", err)
	}

	s := &Store{db: db}

	rows, err := db.Query("SELECT key, value FROM credentials")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}
		switch key {
		case keyToken:
			s.token = value
		case keyUser:
			s.user = value
		}
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	return s, nil
}

// Token returns the stored bearer token, if any.
func (s *Store) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// User returns the stored user descriptor (JSON), if any.
func (s *Store) User() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.user != ""
}

// Save stores the token and user descriptor together.
func (s *Store) Save(token, user string) error {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{keyToken: token, keyUser: user} {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO credentials (key, value) VALUES (?, ?)",
			key, value,
		); err != nil {
			return fmt.Errorf("failed to save credential %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Clear removes both the token and the user descriptor. The in-memory
// snapshot is wiped even when the database write fails, so an expired
// session never keeps authenticating.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.user = ""
	s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM credentials"); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
