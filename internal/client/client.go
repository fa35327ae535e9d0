// Package client is a small HTTP and websocket client for the chat API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/broker"
	"github.com/JackBerck/guyub-rukun-sub001/internal/dto"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/notifier"
	"github.com/JackBerck/guyub-rukun-sub001/internal/realtime"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int                 `json:"-"`
	Message string              `json:"message"`
	Detail  string              `json:"error"`
	Fields  map[string][]string `json:"errors"`
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}

	if len(e.Fields) == 0 {
		return fmt.Sprintf("%d: %s", e.Status, msg)
	}

	var parts []string
	for field, errs := range e.Fields {
		parts = append(parts, field+": "+strings.Join(errs, ", "))
	}
	return fmt.Sprintf("%d: %s (%s)", e.Status, msg, strings.Join(parts, "; "))
}

type Unread struct {
	Total    int64            `json:"total"`
	BySender map[string]int64 `json:"by_sender"`
}

type Client struct {
	baseURL string
	http    *resty.Client
	token   string
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080
func New(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL+"/api").
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// SetToken authenticates every following request
func (c *Client) SetToken(token string) {
	c.token = token
	c.http.SetAuthToken(token)
}

func (c *Client) Token() string {
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

// Login stores and returns the issued token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}

	c.SetToken(out.Token)
	return out.Token, nil
}

func (c *Client) Me(ctx context.Context) (*dto.User, error) {
	var out struct {
		User dto.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Send(ctx context.Context, receiverID uuid.UUID, body string) (*dto.Message, error) {
	var out struct {
		Message dto.Message `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/messages", map[string]string{
		"receiver_id": receiverID.String(),
		"message":     body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Message, nil
}

func (c *Client) Unread(ctx context.Context) (*Unread, error) {
	var out Unread
	if err := c.do(ctx, http.MethodGet, "/messages/unread", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Conversations(ctx context.Context) ([]dto.Conversation, error) {
	var out struct {
		Conversations []dto.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// Open fetches a page of the conversation and marks incoming messages read
func (c *Client) Open(ctx context.Context, counterpartID uuid.UUID, q models.HistoryQuery) (*dto.History, error) {
	var out dto.History
	path := "/chats/" + counterpartID.String() + historyParams(q)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkRead(ctx context.Context, counterpartID uuid.UUID) (int64, error) {
	var out struct {
		Marked int64 `json:"marked"`
	}
	if err := c.do(ctx, http.MethodPost, "/chats/"+counterpartID.String()+"/read", nil, &out); err != nil {
		return 0, err
	}
	return out.Marked, nil
}

func historyParams(q models.HistoryQuery) string {
	v := url.Values{}
	if q.After > 0 {
		v.Set("after", strconv.FormatUint(q.After, 10))
	}
	if q.Before > 0 {
		v.Set("before", strconv.FormatUint(q.Before, 10))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Watch subscribes to the user's private channel over the websocket and
// calls handle for every event until ctx ends or the connection drops.
func (c *Client) Watch(ctx context.Context, userID uuid.UUID, handle func(notifier.Event)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/ws"

	header := http.Header{}
	header.Add("Authorization", "Bearer "+c.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to websocket: %w, status: %s", err, resp.Status)
		}
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	err = conn.WriteJSON(realtime.Command{
		Type:    realtime.CommandSubscribe,
		Channel: broker.UserChannel(userID),
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		event, err := notifier.Decode(raw)
		if err != nil || event.Event == "" {
			// command replies share the socket
			continue
		}
		handle(*event)
	}
}
