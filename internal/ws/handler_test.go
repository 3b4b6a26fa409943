package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"drawchat/internal/auth"
	"drawchat/internal/delivery"
	"drawchat/internal/mocks"
	"drawchat/internal/models"
)

type handlerFixture struct {
	srv      *httptest.Server
	tokens   *auth.TokenService
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	hub      *Hub
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		tokens:   auth.NewTokenService("test-secret"),
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		hub:      NewHub(),
	}

	// Connections are torn down during test cleanup; offline transitions may
	// land at any time.
	f.users.On("SetOnline", mock.Anything, mock.Anything, false).Return(nil).Maybe()

	engine := delivery.NewEngine(f.chats, f.messages)
	handler := NewHandler(f.hub, engine, f.users, f.tokens, nil)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	f.srv = httptest.NewServer(router)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *handlerFixture) dial(t *testing.T, userID int) *websocket.Conn {
	t.Helper()
	token, err := f.tokens.Issue(userID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func awaitOnline(t *testing.T, hub *Hub, userID int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Presence().IsOnline(userID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %d never came online", userID)
}

func TestHandshakeRefusedWithoutToken(t *testing.T) {
	f := newHandlerFixture(t)

	resp, err := http.Get(f.srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeRefusedWithBadToken(t *testing.T) {
	f := newHandlerFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectReconcilesPendingAndNotifiesSender(t *testing.T) {
	f := newHandlerFixture(t)

	// Sender (user 1) is already connected; nothing pending for them.
	f.users.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()
	f.messages.On("MarkPendingDelivered", mock.Anything, 1).Return([]models.Message(nil), nil).Once()
	sender := f.dial(t, 1)
	awaitOnline(t, f.hub, 1)

	// Recipient (user 2) connects; one message from user 1 is still sent.
	f.users.On("SetOnline", mock.Anything, 2, true).Return(nil).Once()
	f.messages.On("MarkPendingDelivered", mock.Anything, 2).Return([]models.Message{
		{ID: 10, ChatID: 5, SenderID: 1, Status: models.StatusDelivered},
	}, nil).Once()
	f.dial(t, 2)

	// Sender first sees user 2 come online, then the delivery update.
	sender.SetReadDeadline(time.Now().Add(2 * time.Second))
	var presence models.PresenceEvent
	require.NoError(t, sender.ReadJSON(&presence))
	assert.Equal(t, models.EventUserOnline, presence.Type)
	assert.Equal(t, 2, presence.UserID)

	var status models.StatusEvent
	require.NoError(t, sender.ReadJSON(&status))
	assert.Equal(t, models.EventStatusChanged, status.Type)
	assert.Equal(t, 10, status.MessageID)
	assert.Equal(t, models.StatusDelivered, status.Status)

	f.messages.AssertExpectations(t)
}

func TestSendMessageOverSocketFansOutToRecipient(t *testing.T) {
	f := newHandlerFixture(t)

	f.users.On("SetOnline", mock.Anything, mock.Anything, true).Return(nil)
	f.messages.On("MarkPendingDelivered", mock.Anything, mock.Anything).Return([]models.Message(nil), nil)

	sender := f.dial(t, 1)
	awaitOnline(t, f.hub, 1)
	recipient := f.dial(t, 2)
	awaitOnline(t, f.hub, 2)

	f.chats.On("GetChat", mock.Anything, 5).Return(models.Chat{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, 5, 1, "hi").
		Return(models.Message{ID: 7, ChatID: 5, SenderID: 1, Content: "hi", Status: models.StatusSent}, nil).Once()
	f.chats.On("IncrementUnread", mock.Anything, 5, 2).Return(nil).Once()
	f.chats.On("SetLastMessage", mock.Anything, 5, 7).Return(nil).Once()

	require.NoError(t, sender.WriteJSON(models.ClientEvent{
		Type:    models.EventSendMessage,
		ChatID:  5,
		Content: "hi",
	}))

	// Recipient sees the sender's user_online first, then the message.
	recipient.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var event models.MessageEvent
		require.NoError(t, recipient.ReadJSON(&event))
		if event.Type != models.EventReceiveMessage {
			continue
		}
		require.NotNil(t, event.Message)
		assert.Equal(t, 7, event.Message.ID)
		assert.Equal(t, "hi", event.Message.Content)
		break
	}

	f.chats.AssertExpectations(t)
	f.messages.AssertExpectations(t)
}

func TestDrawEventRelaysToRoomWithoutEcho(t *testing.T) {
	f := newHandlerFixture(t)

	f.users.On("SetOnline", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.messages.On("MarkPendingDelivered", mock.Anything, mock.Anything).Return([]models.Message(nil), nil)

	client1 := f.dial(t, 1)
	awaitOnline(t, f.hub, 1)
	client2 := f.dial(t, 2)
	awaitOnline(t, f.hub, 2)

	points := []models.Point{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}
	require.NoError(t, client1.WriteJSON(models.ClientEvent{Type: models.EventJoinWhiteboard, RoomID: "r1"}))
	require.NoError(t, client2.WriteJSON(models.ClientEvent{Type: models.EventJoinWhiteboard, RoomID: "r1"}))

	// Joins are processed asynchronously by each connection's read loop.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, client1.WriteJSON(models.ClientEvent{Type: models.EventDraw, RoomID: "r1", Points: points}))

	client2.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var event models.DrawEvent
		require.NoError(t, client2.ReadJSON(&event))
		if event.Type != models.EventDraw {
			continue
		}
		assert.Equal(t, points, event.Points)
		break
	}

	client1.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var echo models.DrawEvent
	for {
		if err := client1.ReadJSON(&echo); err != nil {
			break
		}
		require.NotEqual(t, models.EventDraw, echo.Type, "origin must not receive its own stroke")
	}
}
