// Package repo persists users, conversations and message history in
// Postgres. History is what gives the model its short-term memory, so
// both sides of every turn are stored.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository wraps a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StoredMessage is one persisted conversation turn.
type StoredMessage struct {
	ID        int64
	Role      string
	Content   string
	CreatedAt time.Time
}

// UpsertUserByChat creates or refreshes the user row keyed by the
// external chat user id and returns the internal id.
func (r *Repository) UpsertUserByChat(ctx context.Context, chatUserID, displayName string) (int64, error) {
	const q = `
		INSERT INTO users (chat_user_id, display_name, last_seen_at)
		VALUES ($1, NULLIF($2, ''), now())
		ON CONFLICT (chat_user_id) DO UPDATE
		SET display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name),
		    last_seen_at = now()
		RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, q, chatUserID, displayName).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert user: %w", err)
	}
	return id, nil
}

// EnsureConversation returns the conversation row for a chat id,
// creating it on first contact.
func (r *Repository) EnsureConversation(ctx context.Context, userID int64, chatID string) (int64, error) {
	const q = `
		INSERT INTO conversations (user_id, chat_id, started_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, q, userID, chatID).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure conversation: %w", err)
	}
	return id, nil
}

// InsertMessage stores one turn. Role is "user" or "assistant".
func (r *Repository) InsertMessage(ctx context.Context, conversationID int64, role, content string) error {
	const q = `
		INSERT INTO messages (conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, now())`
	if _, err := r.pool.Exec(ctx, q, conversationID, role, content); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// LastMessages returns the most recent turns in chronological order.
func (r *Repository) LastMessages(ctx context.Context, conversationID int64, limit int) ([]StoredMessage, error) {
	const q = `
		SELECT id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
