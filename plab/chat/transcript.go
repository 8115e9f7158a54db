package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	ports "personalab/plab/engine/ports"
)

// TranscriptStore persists chat turns to the embedded libsql database so a
// session survives restarts.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore creates the store and its schema when absent.
func NewTranscriptStore(db *sql.DB) (*TranscriptStore, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS chat_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			name TEXT,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns(session_id, id);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("could not create transcript schema: %w", err)
	}
	return &TranscriptStore{db: db}, nil
}

// SaveTurn appends one turn to a session's transcript.
func (s *TranscriptStore) SaveTurn(ctx context.Context, sessionID string, msg ports.Message) error {
	query := `
		INSERT INTO chat_turns (session_id, role, name, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, sessionID, msg.Role, msg.Name, msg.Content, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// RecentTurns loads the last k turns of a session in chronological order.
func (s *TranscriptStore) RecentTurns(ctx context.Context, sessionID string, k int) ([]ports.Message, error) {
	query := `
		SELECT role, name, content FROM chat_turns
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []ports.Message
	for rows.Next() {
		var msg ports.Message
		var name sql.NullString
		if err := rows.Scan(&msg.Role, &name, &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		msg.Name = name.String
		turns = append(turns, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	// Reverse to get chronological order (oldest first).
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
