package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"drawchat/internal/delivery"
	"drawchat/internal/models"
	"drawchat/internal/repositories"
	"drawchat/internal/telemetry"
	"drawchat/internal/ws"
)

// ChatHandler serves the chat-list, chat-creation and read-ack endpoints.
type ChatHandler struct {
	engine   *delivery.Engine
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	hub      *ws.Hub
	emitter  *telemetry.Emitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(engine *delivery.Engine, chats repositories.ChatRepository, messages repositories.MessageRepository, users repositories.UserRepository, hub *ws.Hub, emitter *telemetry.Emitter) *ChatHandler {
	return &ChatHandler{engine: engine, chats: chats, messages: messages, users: users, hub: hub, emitter: emitter}
}

// ListChats returns the user's chats with hydrated participants and a
// last-message preview, most recently active first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chats.ListChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	participantIDs := make([]int, 0, len(chats)*2)
	seen := map[int]struct{}{}
	for _, chat := range chats {
		for _, id := range []int{chat.User1ID, chat.User2ID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				participantIDs = append(participantIDs, id)
			}
		}
	}

	users, err := h.users.GetByIDs(c.Request.Context(), participantIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	userByID := make(map[int]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := models.ChatSummary{
			ChatID: chat.ID,
			Participants: []models.PublicUser{
				userByID[chat.User1ID].Public(),
				userByID[chat.User2ID].Public(),
			},
			UnreadCount: chat.UnreadCount,
			CreatedAt:   chat.CreatedAt,
		}
		if chat.LastMessageID.Valid {
			msg, err := h.messages.GetMessage(c.Request.Context(), int(chat.LastMessageID.Int64))
			if err == nil {
				msg.SenderUsername = userByID[msg.SenderID].Username
				summary.LastMessage = &msg
			}
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// CreateChat finds or creates the chat between the user and other_user_id.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		OtherUserID int `json:"other_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "other_user_id required"})
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.users.GetByID(c.Request.Context(), req.OtherUserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	chat, err := h.engine.CreateChat(c.Request.Context(), userID, req.OtherUserID)
	if err != nil {
		if errors.Is(err, delivery.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	c.JSON(http.StatusOK, chat)
}

// MarkChatRead acknowledges the chat as read: zeroes the caller's unread
// counter, flips pending messages to read and notifies the other side.
func (h *ChatHandler) MarkChatRead(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	userID := c.GetInt("userID")

	result, err := h.engine.MarkRead(c.Request.Context(), userID, chatID)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, delivery.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark chat read"})
		}
		return
	}

	h.hub.EmitToUser(result.OtherParticipantID, models.ReadEvent{
		Type:     models.EventChatRead,
		ChatID:   result.ChatID,
		ReaderID: result.ReaderID,
	})
	for senderID, messageIDs := range result.MessageIDsBySender {
		for _, messageID := range messageIDs {
			h.hub.EmitToUser(senderID, models.StatusEvent{
				Type:      models.EventStatusChanged,
				MessageID: messageID,
				Status:    models.StatusRead,
			})
		}
	}
	h.emitter.Emit(c.Request.Context(), "chat_read", userID, gin.H{"chat_id": chatID})

	c.JSON(http.StatusOK, gin.H{"success": true})
}
