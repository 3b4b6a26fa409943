package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"drawchat/internal/models"
	"drawchat/internal/repositories"
)

var (
	// ErrInvalidRequest covers malformed input: empty content, unknown chat
	// on send, or a sender outside the chat.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrForbidden means the actor is not a participant of the chat.
	ErrForbidden = errors.New("not a chat participant")
	// ErrChatNotFound mirrors the repository sentinel for handler mapping.
	ErrChatNotFound = repositories.ErrChatNotFound
)

// SendResult is a stored message plus the participant it should be fanned out
// to.
type SendResult struct {
	Message     models.Message
	RecipientID int
}

// ReadResult reports which messages a read-ack touched, grouped by their
// original sender so each can be notified, plus the participant to send the
// chat_read event to.
type ReadResult struct {
	ChatID             int
	ReaderID           int
	OtherParticipantID int
	MessageIDsBySender map[int][]int
}

// StatusChange is one message whose delivery status moved forward during
// reconciliation.
type StatusChange struct {
	MessageID int
	SenderID  int
}

// Engine owns the message lifecycle and unread-count bookkeeping. It is the
// only writer of message status and chat unread counters; the hub and the
// HTTP handlers go through it for every mutation.
type Engine struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
}

// NewEngine constructs an Engine.
func NewEngine(chats repositories.ChatRepository, messages repositories.MessageRepository) *Engine {
	return &Engine{chats: chats, messages: messages}
}

// CreateChat returns the chat between the requester and the other user,
// creating it on first contact. Calling it twice, in either argument order,
// yields the same chat.
func (e *Engine) CreateChat(ctx context.Context, requesterID int, otherID int) (models.Chat, error) {
	if requesterID == otherID || otherID <= 0 {
		return models.Chat{}, fmt.Errorf("%w: bad participant pair", ErrInvalidRequest)
	}
	return e.chats.CreateOrGetChat(ctx, requesterID, otherID)
}

// Send persists a message with status sent, bumps the recipient's unread
// counter and updates the chat's last message. This is the only path that
// increases unread counts. Nothing is emitted here; fan-out happens at the
// hub only after the durable write succeeded.
func (e *Engine) Send(ctx context.Context, senderID int, chatID int, content string) (SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return SendResult{}, fmt.Errorf("%w: empty content", ErrInvalidRequest)
	}

	chat, err := e.chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return SendResult{}, fmt.Errorf("%w: unknown chat %d", ErrInvalidRequest, chatID)
		}
		return SendResult{}, err
	}
	if !chat.HasParticipant(senderID) {
		return SendResult{}, fmt.Errorf("%w: sender %d not in chat %d", ErrInvalidRequest, senderID, chatID)
	}

	msg, err := e.messages.CreateMessage(ctx, chatID, senderID, content)
	if err != nil {
		return SendResult{}, err
	}

	recipientID := chat.OtherParticipant(senderID)
	if err := e.chats.IncrementUnread(ctx, chatID, recipientID); err != nil {
		// The message is durable already; the counter self-corrects on the
		// recipient's next read-ack, which rewrites it to zero.
		return SendResult{}, fmt.Errorf("unread increment for chat %d: %w", chatID, err)
	}
	if err := e.chats.SetLastMessage(ctx, chatID, msg.ID); err != nil {
		return SendResult{}, fmt.Errorf("set last message for chat %d: %w", chatID, err)
	}

	return SendResult{Message: msg, RecipientID: recipientID}, nil
}

// MarkRead zeroes the reader's unread counter and transitions every message
// from the other participant to read. Safe to call when there is nothing to
// mark.
func (e *Engine) MarkRead(ctx context.Context, readerID int, chatID int) (ReadResult, error) {
	chat, err := e.chats.GetChat(ctx, chatID)
	if err != nil {
		return ReadResult{}, err
	}
	if !chat.HasParticipant(readerID) {
		return ReadResult{}, fmt.Errorf("%w: user %d, chat %d", ErrForbidden, readerID, chatID)
	}

	if err := e.chats.ResetUnread(ctx, chatID, readerID); err != nil {
		return ReadResult{}, err
	}

	msgs, err := e.messages.MarkChatRead(ctx, chatID, readerID)
	if err != nil {
		return ReadResult{}, err
	}

	bySender := make(map[int][]int)
	for _, msg := range msgs {
		bySender[msg.SenderID] = append(bySender[msg.SenderID], msg.ID)
	}
	return ReadResult{
		ChatID:             chatID,
		ReaderID:           readerID,
		OtherParticipantID: chat.OtherParticipant(readerID),
		MessageIDsBySender: bySender,
	}, nil
}

// ReconcilePending transitions every still-sent message addressed to the user
// to delivered, returning one change per message so the hub can notify each
// sender. Invoked when the user comes online.
func (e *Engine) ReconcilePending(ctx context.Context, userID int) ([]StatusChange, error) {
	msgs, err := e.messages.MarkPendingDelivered(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := make([]StatusChange, 0, len(msgs))
	for _, msg := range msgs {
		changes = append(changes, StatusChange{MessageID: msg.ID, SenderID: msg.SenderID})
	}
	return changes, nil
}
