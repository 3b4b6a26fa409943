package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"drawchat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages. Status updates go
// through the guarded MarkChatRead / MarkPendingDelivered queries only, which
// keeps the sent -> delivered -> read progression monotonic at the store.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListByChat(ctx context.Context, chatID int) ([]models.Message, error)
	MarkChatRead(ctx context.Context, chatID int, readerID int) ([]models.Message, error)
	MarkPendingDelivered(ctx context.Context, userID int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message with status sent.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3)
        RETURNING id, chat_id, sender_id, content, status, created_at`,
		chatID, senderID, content).StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, chat_id, sender_id, content, status, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListByChat returns chat messages in display order: creation time with a
// stable id tie-break, sender username attached.
func (r *MessageRepo) ListByChat(ctx context.Context, chatID int) ([]models.Message, error) {
	query := `SELECT m.id, m.chat_id, m.sender_id, m.content, m.status, m.created_at, u.username AS sender_username
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        WHERE m.chat_id=$1
        ORDER BY m.created_at ASC, m.id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, chatID)
	return msgs, err
}

// MarkChatRead transitions every message in the chat not sent by the reader
// and not yet read to read, returning the affected messages. The status guard
// makes a concurrent delivered-update on the same rows irrelevant: the end
// state is read either way.
func (r *MessageRepo) MarkChatRead(ctx context.Context, chatID int, readerID int) ([]models.Message, error) {
	query := `UPDATE messages SET status='read'
        WHERE chat_id=$1 AND sender_id<>$2 AND status<>'read'
        RETURNING id, chat_id, sender_id, content, status, created_at`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, chatID, readerID)
	return msgs, err
}

// MarkPendingDelivered transitions every sent message addressed to the user
// to delivered and returns the affected messages. Rows already read are left
// alone by the status='sent' guard, so delivery never regresses a read.
func (r *MessageRepo) MarkPendingDelivered(ctx context.Context, userID int) ([]models.Message, error) {
	query := `UPDATE messages SET status='delivered'
        WHERE status='sent' AND sender_id<>$1 AND chat_id IN (
            SELECT id FROM chats WHERE user1_id=$1 OR user2_id=$1
        )
        RETURNING id, chat_id, sender_id, content, status, created_at`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, userID)
	return msgs, err
}
