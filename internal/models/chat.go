package models

import (
	"database/sql"
	"time"
)

// Chat is a private conversation between exactly two users. Participants are
// stored sorted (User1ID < User2ID) so a pair maps to exactly one row.
type Chat struct {
	ID            int           `db:"id" json:"id"`
	User1ID       int           `db:"user1_id" json:"user1_id"`
	User2ID       int           `db:"user2_id" json:"user2_id"`
	LastMessageID sql.NullInt64 `db:"last_message_id" json:"-"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`

	// UnreadCount maps participant id to unread counter. Persisted as
	// chat_unread rows; the map form exists only on this side of the
	// repository boundary.
	UnreadCount map[int]int `json:"unread_count,omitempty"`
}

// OtherParticipant returns the participant that is not userID.
func (c Chat) OtherParticipant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID belongs to the chat.
func (c Chat) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// ChatSummary is the chat-list view for one user: the chat with hydrated
// participants and a last-message preview.
type ChatSummary struct {
	ChatID       int          `json:"chat_id"`
	Participants []PublicUser `json:"participants"`
	UnreadCount  map[int]int  `json:"unread_count"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
