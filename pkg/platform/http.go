package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/otherjamesbrown/meetflow/config"
	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
)

const defaultHTTPTimeout = 30 * time.Second

// Client implements Video and Chat against the platform's REST API.
type Client struct {
	cfg        config.PlatformConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a platform client. One client is constructed at process
// start and passed by reference to the handlers that need it.
func NewClient(cfg config.PlatformConfig, logger logging.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		logger: logger.With(logging.F("component", "platform_client")),
	}
}

// EndCall ends the live call session.
func (c *Client) EndCall(ctx context.Context, callID string) error {
	url := fmt.Sprintf("%s/video/call/%s/%s/mark_ended", c.cfg.VideoBaseURL, CallType, callID)
	return c.post(ctx, url, nil, nil)
}

// ConnectAssistant joins the agent to the call as a realtime assistant.
func (c *Client) ConnectAssistant(ctx context.Context, callID, agentID, instructions string) error {
	url := fmt.Sprintf("%s/video/call/%s/%s/assistant", c.cfg.VideoBaseURL, CallType, callID)
	body := map[string]string{
		"agent_user_id": agentID,
		"instructions":  instructions,
	}
	return c.post(ctx, url, body, nil)
}

// RecentMessages returns up to limit most recent channel messages in
// chronological order.
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]ChatMessage, error) {
	url := fmt.Sprintf("%s/chat/channels/messaging/%s/messages?limit=%d", c.cfg.ChatBaseURL, channelID, limit)

	var out struct {
		Messages []ChatMessage `json:"messages"`
	}
	if err := c.get(ctx, url, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage posts a message to the channel under the given identity.
func (c *Client) SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) error {
	url := fmt.Sprintf("%s/chat/channels/messaging/%s/message", c.cfg.ChatBaseURL, channelID)
	return c.post(ctx, url, map[string]interface{}{"message": msg}, nil)
}

// UpsertUser registers or updates an identity with the chat provider.
func (c *Client) UpsertUser(ctx context.Context, user ChatUser) error {
	url := fmt.Sprintf("%s/chat/users", c.cfg.ChatBaseURL)
	return c.post(ctx, url, map[string]interface{}{"user": user}, nil)
}

func (c *Client) post(ctx context.Context, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APISecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w: %v", mferrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read platform response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform returned HTTP %d: %s: %w", resp.StatusCode, string(respBody), mferrors.ErrUpstream)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse platform response: %w", err)
		}
	}
	return nil
}

// Verify interface compliance
var (
	_ Video = (*Client)(nil)
	_ Chat  = (*Client)(nil)
)
