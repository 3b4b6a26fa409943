package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"drawchat/internal/auth"
	"drawchat/internal/delivery"
	"drawchat/internal/models"
	"drawchat/internal/observability"
	"drawchat/internal/repositories"
	"drawchat/internal/telemetry"
)

// Handler authenticates realtime connections, registers them with the hub and
// dispatches client events to the delivery engine and the whiteboard relay.
type Handler struct {
	hub     *Hub
	engine  *delivery.Engine
	users   repositories.UserRepository
	tokens  *auth.TokenService
	emitter *telemetry.Emitter
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *Hub, engine *delivery.Engine, users repositories.UserRepository, tokens *auth.TokenService, emitter *telemetry.Emitter) *Handler {
	return &Handler{hub: hub, engine: engine, users: users, tokens: tokens, emitter: emitter}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection after verifying the bearer credential. An
// invalid credential refuses the connection before any registration happens.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("drawchat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	log.Printf("ws connect user=%d conn=%s ip=%s request_id=%s trace_id=%s", userID, info.ConnID, info.IP, info.RequestID, info.TraceID)
	go h.serve(NewClient(conn), info)
}

// serve runs the connection lifecycle: register, reconcile pending delivery,
// then pump client events until the connection drops.
func (h *Handler) serve(client *Client, info ConnInfo) {
	// Operations triggered by this connection outlive it: once accepted, a
	// send or read-ack completes against the store even if the socket dies.
	ctx := context.Background()
	userID := info.UserID

	h.connect(ctx, userID, client)
	defer h.disconnect(ctx, userID, client, info)

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("bad client event from user %d: %v", userID, err)
			continue
		}
		observability.IncWSEvent(event.Type)

		switch event.Type {
		case models.EventSendMessage:
			h.handleSend(ctx, userID, event)
		case models.EventJoinWhiteboard:
			if event.RoomID != "" {
				h.hub.JoinRoom(client, event.RoomID)
			}
		case models.EventDraw:
			if event.RoomID != "" {
				h.hub.BroadcastToRoom(client, event.RoomID, models.DrawEvent{
					Type:   models.EventDraw,
					RoomID: event.RoomID,
					Points: event.Points,
				})
			}
		default:
			log.Printf("unknown client event %q from user %d", event.Type, userID)
		}
	}
}

func (h *Handler) connect(ctx context.Context, userID int, client *Client) {
	cameOnline := h.hub.Register(userID, client)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")

	if cameOnline {
		observability.IncOnlineUsers()
		if err := h.users.SetOnline(ctx, userID, true); err != nil {
			log.Printf("mark user %d online: %v", userID, err)
		}
		h.hub.Broadcast(userID, models.PresenceEvent{Type: models.EventUserOnline, UserID: userID})
		h.emitter.Emit(ctx, "user_online", userID, nil)
	}

	changes, err := h.engine.ReconcilePending(ctx, userID)
	if err != nil {
		log.Printf("reconcile pending for user %d: %v", userID, err)
		return
	}
	for _, change := range changes {
		observability.IncStatusTransition(string(models.StatusDelivered))
		h.hub.EmitToUser(change.SenderID, models.StatusEvent{
			Type:      models.EventStatusChanged,
			MessageID: change.MessageID,
			Status:    models.StatusDelivered,
		})
	}
}

func (h *Handler) disconnect(ctx context.Context, userID int, client *Client, info ConnInfo) {
	client.Close()
	wentOffline := h.hub.Unregister(userID, client)
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	log.Printf("ws disconnect user=%d conn=%s duration=%s", userID, info.ConnID, time.Since(info.ConnectedAt))

	if wentOffline {
		observability.DecOnlineUsers()
		if err := h.users.SetOnline(ctx, userID, false); err != nil {
			log.Printf("mark user %d offline: %v", userID, err)
		}
		h.hub.Broadcast(userID, models.PresenceEvent{Type: models.EventUserOffline, UserID: userID})
		h.emitter.Emit(ctx, "user_offline", userID, nil)
	}
}

// handleSend persists the message through the engine and fans it out to the
// recipient. On a failed persist nothing is emitted, so no message can exist
// only as a live event.
func (h *Handler) handleSend(ctx context.Context, userID int, event models.ClientEvent) {
	result, err := h.engine.Send(ctx, userID, event.ChatID, event.Content)
	if err != nil {
		log.Printf("send from user %d to chat %d: %v", userID, event.ChatID, err)
		return
	}

	observability.IncStatusTransition(string(models.StatusSent))
	h.hub.EmitToUser(result.RecipientID, models.MessageEvent{
		Type:    models.EventReceiveMessage,
		Message: &result.Message,
	})
	h.emitter.Emit(ctx, "message_sent", userID, gin.H{
		"chat_id":    result.Message.ChatID,
		"message_id": result.Message.ID,
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
