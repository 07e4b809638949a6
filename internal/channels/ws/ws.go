// Package ws implements the WebSocket channel adapter: an HTTP server
// exposing /health, POST /auth, and GET /ws, speaking a tagged-JSON frame
// protocol to each connected client.
package ws

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// Frame is the tagged-JSON envelope exchanged over the WebSocket connection.
// Type selects which payload fields are populated; a response frame, for
// example, carries both Content and IsError.
type Frame struct {
	Type     string   `json:"type"`
	Content  string   `json:"content,omitempty"`
	IsError  bool     `json:"is_error,omitempty"`
	Token    string   `json:"token,omitempty"`
	ClientID string   `json:"client_id,omitempty"`
	Sessions []string `json:"sessions,omitempty"`
}

const (
	frameMessage      = "message"
	frameResponse     = "response"
	framePing         = "ping"
	framePong         = "pong"
	frameAuth         = "auth"
	frameAuthResult   = "auth_result"
	frameSessionsReq  = "sessions_request"
	frameSessionsList = "sessions_list"
)

// Config controls authentication and CORS policy.
type Config struct {
	// LongLivedToken is exchanged by POST /auth for a one-time session token.
	LongLivedToken string
	// SessionTokenTTL bounds how long an exchanged session token is valid.
	SessionTokenTTL time.Duration
	// AllowedOrigins lists acceptable Origin header values; empty means "*".
	AllowedOrigins []string
	Logger         *slog.Logger
}

func (c *Config) setDefaults() {
	if c.SessionTokenTTL <= 0 {
		c.SessionTokenTTL = 10 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type sessionToken struct {
	expiresAt time.Time
}

// Adapter serves the WebSocket gateway. Each connected client is a
// "ws:<client_id>" channel; SendResponse routes to the per-client outbound
// queue. A response whose client id has no queue is dropped: it is not
// broadcast to the other connected clients.
type Adapter struct {
	cfg Config

	upgrader websocket.Upgrader

	tokensMu sync.Mutex
	tokens   map[string]sessionToken

	clientsMu sync.RWMutex
	clients   map[string]chan Frame
}

// New creates a ws Adapter. inboundTx is supplied later to Run.
func New(cfg Config) *Adapter {
	cfg.setDefaults()
	a := &Adapter{
		cfg:     cfg,
		tokens:  make(map[string]sessionToken),
		clients: make(map[string]chan Frame),
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     a.checkOrigin,
	}
	return a
}

func (a *Adapter) checkOrigin(r *http.Request) bool {
	if len(a.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range a.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (a *Adapter) ChannelID() models.ChannelID {
	return models.ChannelID("ws:gateway")
}

// Run starts the HTTP server on addr and serves until ctx is canceled.
func (a *Adapter) Run(ctx context.Context, addr string, inboundTx chan<- models.ChannelEvent) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/auth", a.handleAuth)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.handleUpgrade(w, r, inboundTx)
	})

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type authRequest struct {
	Token string `json:"token"`
}

type authResponse struct {
	Success      bool      `json:"success"`
	SessionToken string    `json:"session_token,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

func (a *Adapter) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token != a.cfg.LongLivedToken {
		json.NewEncoder(w).Encode(authResponse{Success: false}) //nolint:errcheck
		return
	}

	token, err := newRandomToken()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	expires := time.Now().Add(a.cfg.SessionTokenTTL)

	a.tokensMu.Lock()
	a.tokens[token] = sessionToken{expiresAt: expires}
	a.tokensMu.Unlock()

	clientID := uuid.NewString()
	json.NewEncoder(w).Encode(authResponse{ //nolint:errcheck
		Success:      true,
		SessionToken: token,
		ClientID:     clientID,
		ExpiresAt:    expires,
	})
}

func newRandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (a *Adapter) validToken(token string) bool {
	if token == "" {
		return false
	}
	a.tokensMu.Lock()
	defer a.tokensMu.Unlock()
	tok, ok := a.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(tok.expiresAt) {
		delete(a.tokens, token)
		return false
	}
	return true
}

func (a *Adapter) handleUpgrade(w http.ResponseWriter, r *http.Request, inboundTx chan<- models.ChannelEvent) {
	sessionToken := r.URL.Query().Get("session_token")
	legacyToken := r.URL.Query().Get("token")
	if !a.validToken(sessionToken) && legacyToken != a.cfg.LongLivedToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	clientID := uuid.NewString()
	outbound := make(chan Frame, 64)
	a.clientsMu.Lock()
	a.clients[clientID] = outbound
	a.clientsMu.Unlock()
	defer func() {
		a.clientsMu.Lock()
		delete(a.clients, clientID)
		a.clientsMu.Unlock()
		close(outbound)
		_ = conn.Close()
	}()

	channelID := models.ChannelID("ws:" + clientID)
	writeFrame(conn, Frame{Type: frameAuthResult, ClientID: clientID})

	done := make(chan struct{})
	go writeLoop(conn, outbound, done)
	readLoop(conn, channelID, inboundTx, outbound)
	<-done
}

func writeLoop(conn *websocket.Conn, outbound <-chan Frame, done chan<- struct{}) {
	defer close(done)
	for frame := range outbound {
		if !writeFrame(conn, frame) {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, frame Frame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	return conn.WriteMessage(websocket.TextMessage, data) == nil
}

func readLoop(conn *websocket.Conn, channelID models.ChannelID, inboundTx chan<- models.ChannelEvent, outbound chan<- Frame) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case framePing:
			select {
			case outbound <- Frame{Type: framePong}:
			default:
			}
		case frameMessage:
			if strings.TrimSpace(frame.Content) == "" {
				continue
			}
			inboundTx <- models.ChannelEvent{
				ChannelID:   channelID,
				SessionID:   models.SessionID(channelID),
				UserMessage: frame.Content,
			}
		case frameSessionsReq:
			select {
			case outbound <- Frame{Type: frameSessionsList}:
			default:
			}
		}
	}
}

// SendResponse routes resp to the per-client queue keyed by the client id
// embedded in resp.ChannelID ("ws:<client_id>"). If that client is no
// longer connected, SendResponse completes successfully without affecting
// any other client's queue.
func (a *Adapter) SendResponse(ctx context.Context, resp models.AgentResponse) error {
	clientID := strings.TrimPrefix(string(resp.ChannelID), "ws:")

	a.clientsMu.RLock()
	outbound, ok := a.clients[clientID]
	a.clientsMu.RUnlock()
	if !ok {
		return nil
	}

	frame := Frame{Type: frameResponse, Content: resp.Content, IsError: resp.IsError}
	select {
	case outbound <- frame:
	default:
	}
	return nil
}
