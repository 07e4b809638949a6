// Package whatsapp implements the WhatsApp Cloud API channel adapter: an
// HTTP webhook receiver plus a Graph API sender, authenticated by a Bearer
// access token.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// Config holds the Cloud API credentials and endpoint settings. It has no
// webhook verification secret: subscription verification checks hub.mode only.
type Config struct {
	// AccessToken authenticates both inbound webhook requests (Bearer) and
	// outbound Graph API calls.
	AccessToken string
	// PhoneNumberID is the Cloud API sender phone number id used in the
	// outbound Graph API path.
	PhoneNumberID string
	// GraphAPIBaseURL defaults to https://graph.facebook.com/v21.0.
	GraphAPIBaseURL string
	HTTPClient      *http.Client
}

func (c *Config) setDefaults() {
	if c.GraphAPIBaseURL == "" {
		c.GraphAPIBaseURL = "https://graph.facebook.com/v21.0"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
}

// Adapter serves the webhook HTTP endpoint and sends replies through the
// Graph API.
type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	cfg.setDefaults()
	return &Adapter{cfg: cfg}
}

func (a *Adapter) ChannelID() models.ChannelID {
	return models.ChannelID("whatsapp:webhook")
}

// Run starts the webhook HTTP server on addr and serves until ctx is
// canceled.
func (a *Adapter) Run(ctx context.Context, addr string, inboundTx chan<- models.ChannelEvent) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			a.handleVerification(w, r)
		case http.MethodPost:
			a.handleWebhook(w, r, inboundTx)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
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

// handleVerification answers Meta's subscription challenge, echoing
// hub.challenge back only when hub.mode=subscribe.
func (a *Adapter) handleVerification(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("hub.mode") != "subscribe" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	_, _ = w.Write([]byte(query.Get("hub.challenge")))
}

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (a *Adapter) handleWebhook(w http.ResponseWriter, r *http.Request, inboundTx chan<- models.ChannelEvent) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") || strings.TrimPrefix(authHeader, "Bearer ") != a.cfg.AccessToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" {
					continue
				}
				sessionID := models.SessionID("whatsapp:" + msg.From)
				inboundTx <- models.ChannelEvent{
					ChannelID:   models.ChannelID(sessionID),
					SessionID:   sessionID,
					UserMessage: msg.Text.Body,
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

type sendMessageRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendResponse posts resp's content to the phone number encoded in its
// ChannelID ("whatsapp:<phone>") via the Graph API messages endpoint.
func (a *Adapter) SendResponse(ctx context.Context, resp models.AgentResponse) error {
	phone := strings.TrimPrefix(string(resp.ChannelID), "whatsapp:")
	if phone == "" {
		return fmt.Errorf("missing phone number in channel id %q", resp.ChannelID)
	}

	body := sendMessageRequest{MessagingProduct: "whatsapp", To: phone, Type: "text"}
	body.Text.Body = resp.Content

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", a.cfg.GraphAPIBaseURL, a.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp graph api: HTTP %d", httpResp.StatusCode)
	}
	return nil
}
