// Package store persists dialogue checkpoints in SQLite. A checkpoint is
// the full serialized information state under a dialogue id; restoring one
// resumes the conversation exactly where it stopped.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"converse/internal/logging"
	"converse/internal/state"
)

// Store manages the checkpoint database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// CheckpointInfo describes one saved checkpoint.
type CheckpointInfo struct {
	ID         int64
	DialogueID string
	Label      string
	CreatedAt  time.Time
}

// Open creates or opens the checkpoint store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("checkpoint store open at %s", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dialogue_id TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		state_json TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_dialogue ON checkpoints(dialogue_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save writes a checkpoint of the state under the dialogue id and returns
// its row id.
func (s *Store) Save(dialogueID, label string, is *state.InformationState) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(is)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize state: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO checkpoints (dialogue_id, label, state_json, created_at) VALUES (?, ?, ?, ?)`,
		dialogueID, label, string(data), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	logging.Store("checkpoint %d saved for dialogue %s (%d bytes)", id, dialogueID, len(data))
	return id, nil
}

// Load restores the checkpoint with the given row id.
func (s *Store) Load(id int64) (*state.InformationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(`SELECT state_json FROM checkpoints WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checkpoint %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %d: %w", id, err)
	}
	is := state.New()
	if err := json.Unmarshal([]byte(raw), is); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint %d: %w", id, err)
	}
	return is, nil
}

// LoadLatest restores the most recent checkpoint of a dialogue.
func (s *Store) LoadLatest(dialogueID string) (*state.InformationState, error) {
	s.mu.Lock()
	var id int64
	err := s.db.QueryRow(
		`SELECT id FROM checkpoints WHERE dialogue_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		dialogueID,
	).Scan(&id)
	s.mu.Unlock()
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no checkpoints for dialogue %s", dialogueID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest checkpoint: %w", err)
	}
	return s.Load(id)
}

// List returns the checkpoints of a dialogue, newest first. An empty
// dialogue id lists everything.
func (s *Store) List(dialogueID string) ([]CheckpointInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, dialogue_id, label, created_at FROM checkpoints`
	var args []any
	if dialogueID != "" {
		query += ` WHERE dialogue_id = ?`
		args = append(args, dialogueID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []CheckpointInfo
	for rows.Next() {
		var info CheckpointInfo
		if err := rows.Scan(&info.ID, &info.DialogueID, &info.Label, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a checkpoint.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM checkpoints WHERE id = ?`, id)
	return err
}
