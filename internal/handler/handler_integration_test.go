package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/broker"
	"github.com/JackBerck/guyub-rukun-sub001/internal/handler"
	"github.com/JackBerck/guyub-rukun-sub001/internal/health"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/notifier"
	"github.com/JackBerck/guyub-rukun-sub001/internal/presence"
	"github.com/JackBerck/guyub-rukun-sub001/internal/realtime"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/internal/service"
	"github.com/JackBerck/guyub-rukun-sub001/internal/testutil"
	"github.com/JackBerck/guyub-rukun-sub001/internal/utils"
	"github.com/JackBerck/guyub-rukun-sub001/internal/workerpool"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type HandlerIntegrationTestSuite struct {
	suite.Suite
	testDB *testutil.TestDatabase
	tokens *utils.TokenIssuer
	pool   *workerpool.Pool
	broker *broker.MemoryMessageBroker
	cancel context.CancelFunc
	router *gin.Engine
}

func (s *HandlerIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	s.testDB = testutil.SetupTestDatabase(s.T())
	s.tokens = utils.NewTokenIssuer("test-secret-key", time.Hour)
	s.broker = broker.NewMemoryMessageBroker()
	s.pool = workerpool.New(2, 64)
	online := presence.NewMemoryStore()

	userRepo := repository.NewUserRepository(s.testDB.DB)
	messageRepo := repository.NewMessageRepository(s.testDB.DB)

	authService := service.NewAuthService(userRepo, s.tokens)
	messageService := service.NewMessageService(messageRepo, userRepo, notifier.New(s.broker, s.pool), 2000, 50)
	unreadService := service.NewUnreadService(messageRepo)
	chatService := service.NewChatService(messageRepo, userRepo, messageService, online)

	hub := realtime.NewHub(s.broker, online, messageService)
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.Require().NoError(hub.Start(ctx))

	s.router = gin.New()
	handler.Register(s.router, handler.Routes{
		Auth:      handler.NewAuthHandler(authService, "https://cdn.example.com", false, 3600),
		Messages:  handler.NewMessageHandler(messageService, unreadService),
		Chats:     handler.NewChatHandler(chatService, messageService, "https://cdn.example.com"),
		Broadcast: handler.NewBroadcastHandler(),
		WebSocket: handler.NewWebSocketHandler(hub, nil),
		Health:    handler.NewHealthHandler(health.NewChecker(s.testDB.DB, nil, nil)),
		Tokens:    s.tokens,
	})
}

func (s *HandlerIntegrationTestSuite) TearDownSuite() {
	s.cancel()
	s.pool.Shutdown()
	s.broker.Close()
	s.testDB.Teardown(s.T())
}

func (s *HandlerIntegrationTestSuite) SetupTest() {
	testutil.CleanDatabase(s.T(), s.testDB.DB)
}

func (s *HandlerIntegrationTestSuite) tokenFor(u *models.User) string {
	token, err := s.tokens.Issue(u)
	s.Require().NoError(err)
	return token
}

func (s *HandlerIntegrationTestSuite) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *HandlerIntegrationTestSuite) TestRegisterAndLogin() {
	w, resp := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Wulan",
		"email":    "wulan@example.com",
		"password": "SecurePass123",
		"image":    "avatars/wulan.png",
	})
	s.Equal(http.StatusCreated, w.Code)
	user := resp["user"].(map[string]any)
	s.Equal("Wulan", user["name"])
	s.Equal("https://cdn.example.com/avatars/wulan.png", user["avatar"])
	s.NotContains(user, "password_hash")

	var tokenCookie *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "token" {
			tokenCookie = cookie
		}
	}
	s.Require().NotNil(tokenCookie)
	s.True(tokenCookie.HttpOnly)
	s.Equal(http.SameSiteLaxMode, tokenCookie.SameSite)

	w, resp = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "wulan@example.com",
		"password": "SecurePass123",
	})
	s.Equal(http.StatusOK, w.Code)
	token := resp["token"].(string)

	w, resp = s.do(http.MethodGet, "/api/me", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("wulan@example.com", resp["user"].(map[string]any)["email"])

	w, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "wulan@example.com",
		"password": "wrong-password",
	})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerIntegrationTestSuite) TestRegisterValidation() {
	w, resp := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Wulan",
		"email":    "invalid-email",
		"password": "short",
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	errs := resp["errors"].(map[string]any)
	s.Contains(errs, "email")
	s.Contains(errs, "password")

	w, resp = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "x"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	errs = resp["errors"].(map[string]any)
	s.Contains(errs, "email")
	s.Contains(errs, "password")
	s.NotContains(errs, "Email")
}

func (s *HandlerIntegrationTestSuite) TestRequiresAuthentication() {
	for _, path := range []string{"/api/chats", "/api/messages/unread", "/api/me"} {
		w, _ := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, w.Code, path)
	}
}

func (s *HandlerIntegrationTestSuite) TestDemoConversationFlow() {
	demo := testutil.DemoConversation(s.T(), s.testDB.DB)
	bob := s.tokenFor(demo.Bob)
	alice := s.tokenFor(demo.Alice)

	w, resp := s.do(http.MethodGet, "/api/messages/unread", bob, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(2), resp["total"])
	s.Equal(float64(2), resp["by_sender"].(map[string]any)[demo.Alice.ID.String()])

	w, resp = s.do(http.MethodGet, "/api/chats", bob, nil)
	s.Equal(http.StatusOK, w.Code)
	conversations := resp["conversations"].([]any)
	s.Require().Len(conversations, 1)
	row := conversations[0].(map[string]any)
	s.Equal(demo.Alice.ID.String(), row["id"])
	s.Equal("Alice", row["name"])
	s.Equal(float64(2), row["unreadCount"])
	s.Equal(false, row["isOnline"])
	last := row["lastMessage"].(map[string]any)
	s.Equal("Masih ada?", last["text"])
	s.Equal("2024-05-01T10:05:00Z", last["timestamp"])
	s.Equal(false, last["isRead"])

	w, resp = s.do(http.MethodGet, "/api/chats/"+demo.Alice.ID.String(), bob, nil)
	s.Equal(http.StatusOK, w.Code)
	messages := resp["messages"].([]any)
	s.Require().Len(messages, 2)
	first := messages[0].(map[string]any)
	s.Equal("Halo", first["message"])
	s.Equal("2024-05-01T10:00:00Z", first["timestamp"])
	s.Equal("2024-05-01", first["date"])
	s.Equal(demo.Alice.ID.String(), first["senderId"])
	s.Equal(false, resp["has_more"])

	w, resp = s.do(http.MethodGet, "/api/messages/unread/"+demo.Alice.ID.String(), bob, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(0), resp["unreadCount"])

	// Bob replies
	w, resp = s.do(http.MethodPost, "/api/messages", bob, map[string]string{
		"receiver_id": demo.Alice.ID.String(),
		"message":     "Ya, masih",
	})
	s.Equal(http.StatusCreated, w.Code)
	s.Equal("Ya, masih", resp["message"].(map[string]any)["message"])

	w, resp = s.do(http.MethodGet, "/api/chats", alice, nil)
	s.Equal(http.StatusOK, w.Code)
	row = resp["conversations"].([]any)[0].(map[string]any)
	s.Equal(float64(1), row["unreadCount"])
	s.Equal("Ya, masih", row["lastMessage"].(map[string]any)["text"])

	w, resp = s.do(http.MethodPost, "/api/chats/"+demo.Bob.ID.String()+"/read", alice, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), resp["marked"])

	w, resp = s.do(http.MethodPost, "/api/chats/"+demo.Bob.ID.String()+"/read", alice, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(0), resp["marked"])
}

func (s *HandlerIntegrationTestSuite) TestHistoryPaging() {
	demo := testutil.DemoConversation(s.T(), s.testDB.DB)
	bob := s.tokenFor(demo.Bob)
	path := "/api/chats/" + demo.Alice.ID.String() + "/history"

	w, resp := s.do(http.MethodGet, path+"?limit=1", bob, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, resp["has_more"])
	messages := resp["messages"].([]any)
	s.Require().Len(messages, 1)
	s.Equal("Masih ada?", messages[0].(map[string]any)["message"])

	cursor := uint64(resp["next_cursor"].(float64))
	w, resp = s.do(http.MethodGet, path+"?limit=1&before="+strconv.FormatUint(cursor, 10), bob, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("Halo", resp["messages"].([]any)[0].(map[string]any)["message"])
	s.Equal(false, resp["has_more"])

	// History does not mark anything read
	w, resp = s.do(http.MethodGet, "/api/messages/unread", bob, nil)
	s.Equal(float64(2), resp["total"])

	w, _ = s.do(http.MethodGet, path+"?after=abc", bob, nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	w, _ = s.do(http.MethodGet, path+"?after=1&before=2", bob, nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlerIntegrationTestSuite) TestSendValidation() {
	demo := testutil.DemoConversation(s.T(), s.testDB.DB)
	alice := s.tokenFor(demo.Alice)

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"empty message", map[string]string{"receiver_id": demo.Bob.ID.String(), "message": "   "}, "message"},
		{"too long", map[string]string{"receiver_id": demo.Bob.ID.String(), "message": strings.Repeat("x", 2001)}, "message"},
		{"unknown receiver", map[string]string{"receiver_id": uuid.NewString(), "message": "hi"}, "receiver_id"},
		{"malformed receiver", map[string]string{"receiver_id": "42", "message": "hi"}, "receiver_id"},
		{"self", map[string]string{"receiver_id": demo.Alice.ID.String(), "message": "hi"}, "receiver_id"},
		{"missing receiver", map[string]string{"message": "hi"}, "receiver_id"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w, resp := s.do(http.MethodPost, "/api/messages", alice, tt.body)
			s.Equal(http.StatusUnprocessableEntity, w.Code)
			s.Contains(resp["errors"], tt.field)
		})
	}
}

func (s *HandlerIntegrationTestSuite) TestOpenUnknownConversation() {
	demo := testutil.DemoConversation(s.T(), s.testDB.DB)
	bob := s.tokenFor(demo.Bob)

	w, _ := s.do(http.MethodGet, "/api/chats/"+uuid.NewString(), bob, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodGet, "/api/chats/not-a-uuid", bob, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerIntegrationTestSuite) TestBroadcastingAuth() {
	demo := testutil.DemoConversation(s.T(), s.testDB.DB)
	bob := s.tokenFor(demo.Bob)

	w, _ := s.do(http.MethodPost, "/api/broadcasting/auth", bob, map[string]string{
		"channel_name": broker.UserChannel(demo.Bob.ID),
	})
	s.Equal(http.StatusOK, w.Code)

	w, resp := s.do(http.MethodPost, "/api/broadcasting/auth", bob, map[string]string{
		"channel_name": broker.UserChannel(demo.Alice.ID),
	})
	s.Equal(http.StatusForbidden, w.Code)
	s.NotEmpty(resp["error"])

	w, resp = s.do(http.MethodPost, "/api/broadcasting/auth", bob, map[string]string{})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Contains(resp["errors"], "channel_name")
}

func (s *HandlerIntegrationTestSuite) TestHealth() {
	w, resp := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("connected", resp["database"])
	s.Equal("disabled", resp["redis"])
}

// A message sent over HTTP reaches the receiver's websocket as an unread event
func (s *HandlerIntegrationTestSuite) TestWebSocketReceivesUnreadUpdates() {
	demo := testutil.DemoConversation(s.T(), s.testDB.DB)

	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?token=" + s.tokenFor(demo.Bob)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	channel := broker.UserChannel(demo.Bob.ID)
	s.Require().NoError(conn.WriteJSON(realtime.Command{Type: realtime.CommandSubscribe, Channel: channel}))

	var frame map[string]any
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Equal(realtime.ReplySubscribed, frame["type"])

	w, _ := s.do(http.MethodPost, "/api/messages", s.tokenFor(demo.Alice), map[string]string{
		"receiver_id": demo.Bob.ID.String(),
		"message":     "Halo lagi",
	})
	s.Require().Equal(http.StatusCreated, w.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Equal(notifier.EventUnreadUpdated, frame["event"])
	data := frame["data"].(map[string]any)
	s.Equal(demo.Alice.ID.String(), data["fromUserId"])
	s.Equal(float64(3), data["unreadCount"])
}

func TestHandlerIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerIntegrationTestSuite))
}
