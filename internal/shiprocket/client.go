package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// Shiprocket does not return a token expiry; tokens are documented to
	// live well over a day, so assume 23 hours and renew conservatively.
	tokenLifetime   = 23 * time.Hour
	tokenRenewSlack = 5 * time.Minute

	defaultTimeout = 30 * time.Second
)

// Config carries the provider endpoint and one of two credential modes.
// Key/secret is preferred when both modes are configured.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Email     string
	Password  string
	Timeout   time.Duration
}

// Client talks to the Shiprocket REST API. It owns the cached auth token;
// construct one at startup and share it by reference.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateShipment sends an adhoc order-creation payload and returns the raw
// provider response.
func (c *Client) CreateShipment(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	body, status, err := c.doAuthed(ctx, http.MethodPost, "/orders/create/adhoc", payload)
	if err != nil {
		if _, ok := err.(AuthenticationError); ok {
			return nil, err
		}
		return nil, ShipmentCreationError{Message: err.Error()}
	}
	if status < 200 || status >= 300 {
		return nil, ShipmentCreationError{StatusCode: status, Message: providerMessage(body)}
	}
	return decodeBody(body)
}

// GetOrderStatus fetches the current state of a provider order by its id.
func (c *Client) GetOrderStatus(ctx context.Context, providerOrderID string) (map[string]interface{}, error) {
	return c.getStatus(ctx, "/orders/show/"+url.PathEscape(providerOrderID))
}

// GetShipmentStatus fetches the current state of a shipment by its id.
func (c *Client) GetShipmentStatus(ctx context.Context, providerShipmentID string) (map[string]interface{}, error) {
	return c.getStatus(ctx, "/shipments/show/"+url.PathEscape(providerShipmentID))
}

func (c *Client) getStatus(ctx context.Context, path string) (map[string]interface{}, error) {
	body, status, err := c.doAuthed(ctx, http.MethodGet, path, nil)
	if err != nil {
		if _, ok := err.(AuthenticationError); ok {
			return nil, err
		}
		return nil, StatusFetchError{Message: err.Error()}
	}
	if status < 200 || status >= 300 {
		return nil, StatusFetchError{StatusCode: status, Message: providerMessage(body)}
	}
	return decodeBody(body)
}

// doAuthed performs one request with a bearer token, re-authenticating once
// if the cached token is rejected.
func (c *Client) doAuthed(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	body, status, err := c.do(ctx, method, path, payload, token)
	if err != nil {
		return nil, 0, err
	}

	if status == http.StatusUnauthorized {
		log.Println("[SHIPROCKET] [WARN] token rejected, re-authenticating")
		c.invalidateToken()
		token, err = c.currentToken(ctx)
		if err != nil {
			return nil, 0, err
		}
		return c.do(ctx, method, path, payload, token)
	}

	return body, status, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, token string) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return body, resp.StatusCode, nil
}

// currentToken returns the cached token if more than tokenRenewSlack remains
// before its assumed expiry, otherwise logs in again.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > tokenRenewSlack {
		return c.token, nil
	}

	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	return token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

func (c *Client) login(ctx context.Context) (string, error) {
	payload := c.loginPayload()
	if payload == nil {
		return "", AuthenticationError{Message: "no credentials configured"}
	}

	body, status, err := c.do(ctx, http.MethodPost, "/auth/login", payload, "")
	if err != nil {
		return "", AuthenticationError{Message: err.Error()}
	}
	if status < 200 || status >= 300 {
		return "", AuthenticationError{Message: providerMessage(body)}
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || strings.TrimSpace(parsed.Token) == "" {
		return "", AuthenticationError{Message: "login response carried no token"}
	}

	log.Println("[SHIPROCKET] [INFO] authenticated, token cached")
	return parsed.Token, nil
}

// loginPayload selects the auth mode by credential presence; key/secret wins
// over email/password.
func (c *Client) loginPayload() map[string]string {
	if c.cfg.APIKey != "" && c.cfg.APISecret != "" {
		return map[string]string{
			"api_key":    c.cfg.APIKey,
			"api_secret": c.cfg.APISecret,
		}
	}
	if c.cfg.Email != "" && c.cfg.Password != "" {
		return map[string]string{
			"email":    c.cfg.Email,
			"password": c.cfg.Password,
		}
	}
	return nil
}

func decodeBody(body []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, nil
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return parsed, nil
}

// providerMessage pulls a human-readable message out of an error body so it
// can be surfaced verbatim.
func providerMessage(body []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"message", "error", "errors"} {
			if msg := stringify(parsed[key]); msg != "" {
				return msg
			}
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "provider returned no error detail"
	}
	return trimmed
}
