package models

import "time"

// MessageStatus is the delivery state of a message. Transitions are strictly
// forward: sent -> delivered -> read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is a single chat message. Everything but Status is immutable once
// created.
type Message struct {
	ID             int           `db:"id" json:"id"`
	ChatID         int           `db:"chat_id" json:"chat_id"`
	SenderID       int           `db:"sender_id" json:"sender_id"`
	Content        string        `db:"content" json:"content"`
	Status         MessageStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	SenderUsername string        `db:"sender_username" json:"sender_username,omitempty"`
}
