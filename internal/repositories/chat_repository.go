package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"drawchat/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence, including the per-participant
// unread counters backing Chat.UnreadCount.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int, otherID int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	ListChats(ctx context.Context, userID int) ([]models.Chat, error)
	IncrementUnread(ctx context.Context, chatID int, userID int) error
	ResetUnread(ctx context.Context, chatID int, userID int) error
	SetLastMessage(ctx context.Context, chatID int, messageID int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateOrGetChat returns the chat between the two users, creating it if
// needed. Participants are sorted before lookup so both argument orders hit
// the same row, and the insert tolerates a concurrent create of the same pair.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	if userID == otherID {
		return models.Chat{}, errors.New("cannot create chat with self")
	}
	user1, user2 := userID, otherID
	if user1 > user2 {
		user1, user2 = user2, user1
	}

	var chat models.Chat
	query := `SELECT id, user1_id, user2_id, last_message_id, created_at FROM chats WHERE user1_id=$1 AND user2_id=$2`
	err := r.db.GetContext(ctx, &chat, query, user1, user2)
	if err == nil {
		return r.attachUnread(ctx, chat)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO chats (user1_id, user2_id) VALUES ($1, $2) ON CONFLICT (user1_id, user2_id) DO NOTHING`,
		user1, user2)
	if err != nil {
		return models.Chat{}, err
	}

	// Re-select rather than RETURNING: on a lost race the insert is a no-op
	// and the winner's row is the one we want.
	if err := r.db.GetContext(ctx, &chat, query, user1, user2); err != nil {
		return models.Chat{}, err
	}
	return r.attachUnread(ctx, chat)
}

// GetChat fetches a chat with its unread counters.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT id, user1_id, user2_id, last_message_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	return r.attachUnread(ctx, chat)
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, chatID, userID)
	return exists, err
}

// ListChats returns the user's chats ordered by most recent activity.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.Chat, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.last_message_id, c.created_at FROM chats c
        LEFT JOIN messages m ON m.id = c.last_message_id
        WHERE c.user1_id=$1 OR c.user2_id=$1
        ORDER BY COALESCE(m.created_at, c.created_at) DESC`
	var chats []models.Chat
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, err
	}
	for i := range chats {
		chat, err := r.attachUnread(ctx, chats[i])
		if err != nil {
			return nil, err
		}
		chats[i] = chat
	}
	return chats, nil
}

// IncrementUnread bumps a participant's unread counter by one. The upsert is
// a single atomic read-modify-write at the store, so concurrent sends to the
// same chat cannot lose an increment.
func (r *ChatRepo) IncrementUnread(ctx context.Context, chatID int, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_unread (chat_id, user_id, unread) VALUES ($1, $2, 1)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET unread = chat_unread.unread + 1`,
		chatID, userID)
	return err
}

// ResetUnread zeroes a participant's unread counter.
func (r *ChatRepo) ResetUnread(ctx context.Context, chatID int, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_unread (chat_id, user_id, unread) VALUES ($1, $2, 0)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET unread = 0`,
		chatID, userID)
	return err
}

// SetLastMessage points the chat at its most recent message.
func (r *ChatRepo) SetLastMessage(ctx context.Context, chatID int, messageID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET last_message_id=$2 WHERE id=$1`, chatID, messageID)
	return err
}

// attachUnread decodes the chat_unread rows into the in-memory map. This is
// the only place the row representation and the map representation meet.
func (r *ChatRepo) attachUnread(ctx context.Context, chat models.Chat) (models.Chat, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT user_id, unread FROM chat_unread WHERE chat_id=$1`, chat.ID)
	if err != nil {
		return models.Chat{}, err
	}
	defer rows.Close()

	counts := map[int]int{chat.User1ID: 0, chat.User2ID: 0}
	for rows.Next() {
		var userID, unread int
		if err := rows.Scan(&userID, &unread); err != nil {
			return models.Chat{}, err
		}
		counts[userID] = unread
	}
	if err := rows.Err(); err != nil {
		return models.Chat{}, err
	}
	chat.UnreadCount = counts
	return chat, nil
}
