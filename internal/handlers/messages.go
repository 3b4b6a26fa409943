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

// MessageHandler serves the REST send path and chat history.
type MessageHandler struct {
	engine   *delivery.Engine
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	hub      *ws.Hub
	emitter  *telemetry.Emitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(engine *delivery.Engine, chats repositories.ChatRepository, messages repositories.MessageRepository, hub *ws.Hub, emitter *telemetry.Emitter) *MessageHandler {
	return &MessageHandler{engine: engine, chats: chats, messages: messages, hub: hub, emitter: emitter}
}

// SendMessage is the HTTP fallback for sending. It goes through the same
// engine path as the socket, so unread bookkeeping and fan-out behave
// identically on both routes.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		ChatID  int    `json:"chat_id" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id and content are required"})
		return
	}

	userID := c.GetInt("userID")
	result, err := h.engine.Send(c.Request.Context(), userID, req.ChatID, req.Content)
	if err != nil {
		if errors.Is(err, delivery.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.hub.EmitToUser(result.RecipientID, models.MessageEvent{
		Type:    models.EventReceiveMessage,
		Message: &result.Message,
	})
	h.emitter.Emit(c.Request.Context(), "message_sent", userID, gin.H{
		"chat_id":    result.Message.ChatID,
		"message_id": result.Message.ID,
	})

	c.JSON(http.StatusCreated, result.Message)
}

// ListMessages returns the chat history in display order.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	msgs, err := h.messages.ListByChat(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
