package conversation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/teslashibe/go-lingua/internal/httpc"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// Option configures a Client.
type Option func(*Client)

// WithEndpoint sets the backend URL.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = url
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout on a dedicated HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = httpc.NewClient(d)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is an Exchanger over HTTP POST with JSON bodies. It sends no
// credentials.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a backend client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		http:     httpc.Client,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "conversation.client")
	return c
}

// Endpoint returns the backend URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type wireResponse struct {
	Text       *string   `json:"text"`
	NewHistory *[]string `json:"new_history"`
}

// Exchange posts one turn and decodes the reply.
func (c *Client) Exchange(ctx context.Context, req Request) (*Response, error) {
	if c.endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if req.ConversationHistory == nil {
		req.ConversationHistory = []string{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("conversation: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("conversation: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("conversation: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, NewAPIError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.NewHistory == nil {
		return nil, fmt.Errorf("%w: missing new_history", ErrMalformedResponse)
	}

	out := &Response{NewHistory: *wire.NewHistory}
	if wire.Text != nil {
		out.Text = *wire.Text
	}

	c.logger.Debug("exchange complete",
		"history", len(out.NewHistory),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

var _ Exchanger = (*Client)(nil)
