// Package apiclient is a Go client for the chatrooms REST API.
// It keeps the access token fresh: token close to expiry is refreshed before the request is sent,
// and unauthorized response is retried once with a refreshed token.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const defaultRefreshThreshold = 60 * time.Second

// Session is gone: refresh token rejected or not present. User has to login again
var ErrMustReauthenticate = errors.New("session expired, login required")

// Non successful API response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	// Server address, e.g. 'http://localhost:8000'
	BaseURL string

	// Refresh access token when it expires sooner than threshold
	// If not set than default is used
	RefreshThreshold time.Duration

	// Transport to use. Client's cookie jar is always replaced with own one
	HTTPClient *http.Client
}

type Client struct {
	baseURL   string
	threshold time.Duration
	http      *http.Client

	mu          sync.Mutex
	accessToken string

	refreshGroup singleflight.Group

	now func() time.Time
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url must not be empty")
	}
	if cfg.RefreshThreshold == 0 {
		cfg.RefreshThreshold = defaultRefreshThreshold
	}

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		*httpClient = *cfg.HTTPClient
	}

	// Refresh token lives in cookie only
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.Jar = jar

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		threshold: cfg.RefreshThreshold,
		http:      httpClient,
		now:       time.Now,
	}, nil
}

func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (c *Client) Login(ctx context.Context, username string, password string) error {
	body := map[string]string{"username": username, "password": password}

	var resp tokenResponse
	if err := c.send(ctx, http.MethodPost, "/api/auth/login", "", body, &resp); err != nil {
		return err
	}

	c.setAccessToken(resp.AccessToken)
	return nil
}

// Logout forgets access token and asks server to clear refresh cookie
func (c *Client) Logout(ctx context.Context) error {
	c.setAccessToken("")
	return c.send(ctx, http.MethodPost, "/api/auth/logout", "", nil, nil)
}

// Do sends authenticated request and decodes JSON response into out (if not nil)
func (c *Client) Do(ctx context.Context, method string, path string, body any, out any) error {
	token := c.AccessToken()
	if token == "" {
		return ErrMustReauthenticate
	}

	if c.expiresSoon(token) {
		fresh, err := c.refresh(ctx)
		switch {
		case errors.Is(err, ErrMustReauthenticate):
			return err
		case err == nil:
			token = fresh
		}
		// Refresh failed for another reason: try with the token we have
	}

	err := c.send(ctx, method, path, token, body, out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	// Token rejected: refresh once and retry
	token, err = c.refresh(ctx)
	if err != nil {
		return err
	}

	err = c.send(ctx, method, path, token, body, out)
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.setAccessToken("")
		return ErrMustReauthenticate
	}
	return err
}

// Token that can't be decoded counts as expired
func (c *Client) expiresSoon(token string) bool {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}

	return claims.ExpiresAt.Time.Sub(c.now()) <= c.threshold
}

// Exchange refresh cookie for a new access token. Concurrent callers share one request,
// so it is not cancelled with the caller that happened to start it.
func (c *Client) refresh(ctx context.Context) (string, error) {
	shared := context.WithoutCancel(ctx)

	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		var resp tokenResponse
		err := c.send(shared, http.MethodPost, "/api/auth/refresh-token", "", nil, &resp)

		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
			c.setAccessToken("")
			return "", ErrMustReauthenticate
		case err != nil:
			return "", fmt.Errorf("refresh failed: %w", err)
		}

		c.setAccessToken(resp.AccessToken)
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) send(ctx context.Context, method string, path string, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("can't encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil {
			apiErr.Message = errBody.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("can't decode response: %w", err)
	}
	return nil
}
