// Package client talks to the identity and data platform over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
)

const (
	clientInfo           = "anlik-eleman-go/1.0"
	refreshMargin        = 30 * time.Second
	singleObjectMIMEType = "application/vnd.pgrst.object+json"
)

// Config describes how to reach the platform.
type Config struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
	Storage    Storage
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Client is a thread-safe platform client holding the current session.
type Client struct {
	baseURL    *url.URL
	anonKey    string
	httpClient *http.Client
	storage    Storage
	logger     *zap.Logger
	clock      func() time.Time
	events     *authDispatcher

	mu      sync.Mutex
	session *models.Session
	loaded  bool
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	rawURL := strings.TrimSpace(cfg.URL)
	if rawURL == "" {
		return nil, ErrMissingURL
	}
	baseURL, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: invalid platform url: %w", err)
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, ErrMissingAnonKey
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	storage := cfg.Storage
	if storage == nil {
		storage = NewMemoryStorage()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		baseURL:    baseURL,
		anonKey:    strings.TrimSpace(cfg.AnonKey),
		httpClient: httpClient,
		storage:    storage,
		logger:     logger,
		clock:      clock,
		events:     newAuthDispatcher(),
	}, nil
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        any
	headers     http.Header
	accessToken string
}

func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + req.path
	if len(req.query) > 0 {
		endpoint.RawQuery = req.query.Encode()
	}

	var payload io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("client: encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	httpRequest.Header.Set("apikey", c.anonKey)
	httpRequest.Header.Set("X-Client-Info", clientInfo)
	token := req.accessToken
	if token == "" {
		token = c.anonKey
	}
	httpRequest.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if httpRequest.Header.Get("Accept") == "" {
		httpRequest.Header.Set("Accept", "application/json")
	}
	for key, values := range req.headers {
		httpRequest.Header.Del(key)
		for _, value := range values {
			httpRequest.Header.Add(key, value)
		}
	}

	started := c.clock()
	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		c.logger.Debug("platform request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err))
		return nil, &TransportError{Err: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	c.logger.Debug("platform request completed",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", response.StatusCode),
		zap.Duration("elapsed", c.clock().Sub(started)))

	if response.StatusCode >= http.StatusBadRequest {
		var decoded errorBody
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &decoded); err != nil {
				decoded.Message = strings.TrimSpace(string(body))
			}
		}
		apiErr := decoded.toAPIError(response.StatusCode)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(response.StatusCode)
		}
		return nil, apiErr
	}
	return body, nil
}

// accessToken returns the current session's token, or "" to fall back to the anon key
// when nobody is signed in. Session errors are returned rather than masked.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", nil
	}
	return session.AccessToken, nil
}
