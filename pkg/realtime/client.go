package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultWebSocketURL is the default WebSocket endpoint.
	DefaultWebSocketURL = "wss://api.openai.com/v1/realtime"

	// DefaultHTTPURL is the default HTTP endpoint, used for the session
	// bootstrap (ephemeral credentials) and the WebRTC SDP exchange.
	DefaultHTTPURL = "https://api.openai.com/v1/realtime"

	// DefaultConnectTimeout bounds the wait for the session.created
	// handshake event after the transport opens.
	DefaultConnectTimeout = 30 * time.Second
)

// Client is the Realtime API client.
type Client struct {
	config *clientConfig
}

// clientConfig holds the client configuration.
type clientConfig struct {
	apiKey             string
	organization       string
	project            string
	wsURL              string
	httpURL            string
	httpClient         *http.Client
	callTimeout        time.Duration
	connectTimeout     time.Duration
	decodeErrorHandler func(error)
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a new Realtime client.
//
// The apiKey is the long-lived API credential. It authorizes the session
// bootstrap and the WebRTC SDP exchange; realtime WebSocket connections
// themselves are authorized by ephemeral tokens minted per connection.
func NewClient(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		panic("realtime: API key is required")
	}

	cfg := &clientConfig{
		apiKey:         apiKey,
		wsURL:          DefaultWebSocketURL,
		httpURL:        DefaultHTTPURL,
		httpClient:     http.DefaultClient,
		callTimeout:    DefaultCallTimeout,
		connectTimeout: DefaultConnectTimeout,
		decodeErrorHandler: func(err error) {
			slog.Warn("dropping undecodable frame", "err", err)
		},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{config: cfg}
}

// WithOrganization sets the organization ID for API requests.
func WithOrganization(orgID string) Option {
	return func(c *clientConfig) {
		c.organization = orgID
	}
}

// WithProject sets the project ID for API requests.
func WithProject(projectID string) Option {
	return func(c *clientConfig) {
		c.project = projectID
	}
}

// WithWebSocketURL sets the WebSocket URL.
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) {
		c.wsURL = url
	}
}

// WithHTTPURL sets the HTTP URL for session bootstrap and SDP exchange.
func WithHTTPURL(url string) Option {
	return func(c *clientConfig) {
		c.httpURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithCallTimeout sets the default per-call timeout for awaitable sends.
func WithCallTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.callTimeout = d
	}
}

// WithConnectTimeout sets the handshake timeout for Connect*.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.connectTimeout = d
	}
}

// WithDecodeErrorHandler installs a diagnostics callback for frames the
// decoder rejects (unknown event type, malformed JSON). Such frames are
// dropped without stopping the receive loop; the handler is the only
// place they remain observable.
func WithDecodeErrorHandler(fn func(error)) Option {
	return func(c *clientConfig) {
		if fn != nil {
			c.decodeErrorHandler = fn
		}
	}
}

// ConnectWebSocket establishes a WebSocket session. The call mints an
// ephemeral credential over HTTP, dials the socket with it, and blocks
// until the session.created handshake completes or fails.
func (c *Client) ConnectWebSocket(ctx context.Context, config *ConnectConfig) (*WebSocketSession, error) {
	return c.connectWebSocket(ctx, config)
}

// ConnectWebRTC establishes a WebRTC session: SDP offer/answer over HTTP,
// JSON events over a data channel, audio over a negotiated media track.
// The returned session has additional methods for accessing audio tracks.
func (c *Client) ConnectWebRTC(ctx context.Context, config *ConnectConfig) (*WebRTCSession, error) {
	return c.connectWebRTC(ctx, config)
}

// CreateEphemeralToken mints a short-lived credential (default 600s
// lifetime) scoped to one realtime connection by POSTing the desired
// session configuration to the bootstrap endpoint.
func (c *Client) CreateEphemeralToken(ctx context.Context, config *ConnectConfig) (*EphemeralToken, error) {
	if config == nil {
		config = &ConnectConfig{}
	}
	reqConfig := *config
	if reqConfig.Model == "" && reqConfig.Deployment == "" {
		reqConfig.Model = ModelGPT4oRealtimePreview
	}
	if reqConfig.Voice == "" {
		reqConfig.Voice = VoiceAlloy
	}

	body, err := json.Marshal(&reqConfig)
	if err != nil {
		return nil, wrapError(err, "marshal session config")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.httpURL+"/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return nil, wrapError(err, "create session")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.readAPIError(resp, "session_creation_failed")
	}

	var res SessionResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, wrapError(err, "decode session response")
	}
	if res.ClientSecret == nil || res.ClientSecret.Value == "" {
		return nil, &Error{
			Code:    "missing_client_secret",
			Message: "session response carried no ephemeral credential",
		}
	}

	return &EphemeralToken{
		SessionID: res.ID,
		Model:     res.Model,
		Value:     res.ClientSecret.Value,
		ExpiresAt: res.ClientSecret.ExpiresAt,
	}, nil
}

// setAuthHeaders applies the long-lived credential and scoping headers.
func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.apiKey)
	if c.config.organization != "" {
		req.Header.Set("OpenAI-Organization", c.config.organization)
	}
	if c.config.project != "" {
		req.Header.Set("OpenAI-Project", c.config.project)
	}
}

// readAPIError converts a non-2xx HTTP response into *Error, preserving
// the server's error body when it parses.
func (c *Client) readAPIError(resp *http.Response, fallbackCode string) error {
	body, _ := io.ReadAll(resp.Body)

	var payload struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		payload.Error.HTTPStatus = resp.StatusCode
		return payload.Error
	}
	return &Error{
		Code:       fallbackCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		HTTPStatus: resp.StatusCode,
	}
}

// endpointQuery builds the model/deployment query parameter shared by the
// WebSocket URL and the SDP exchange URL.
func endpointQuery(config *ConnectConfig) string {
	q := url.Values{}
	if config.Deployment != "" {
		q.Set("deployment", config.Deployment)
	} else {
		q.Set("model", config.Model)
	}
	return q.Encode()
}
