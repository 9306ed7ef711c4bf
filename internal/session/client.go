package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrExpired is returned when the refresh token is rejected; the caller must
// log in again.
var ErrExpired = errors.New("session: refresh token rejected")

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client calls the SocialConnect API on behalf of an explicit Session. When
// Store is set, refreshed sessions are saved under Name.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Store   *Store
	Name    string
}

// NewClient returns a Client for baseURL such as "http://localhost:8080/api".
func NewClient(baseURL string, store *Store, name string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Store:   store,
		Name:    name,
	}
}

// Login exchanges credentials for a Session. login may be an email or a username.
func (c *Client) Login(ctx context.Context, login, password string) (*Session, error) {
	payload := map[string]string{"password": password}
	if strings.Contains(login, "@") {
		payload["email"] = login
	} else {
		payload["username"] = login
	}

	var sess Session
	if err := c.call(ctx, http.MethodPost, "/auth/login", "", payload, &sess); err != nil {
		return nil, err
	}
	if err := c.persist(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Refresh replaces sess.AccessToken using sess.RefreshToken. A 401 from the
// server yields ErrExpired and clears the stored session.
func (c *Client) Refresh(ctx context.Context, sess *Session) error {
	if !sess.Valid() {
		return ErrExpired
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.call(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": sess.RefreshToken}, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		if c.Store != nil {
			_ = c.Store.Clear(ctx, c.Name)
		}
		return ErrExpired
	}
	if err != nil {
		return err
	}
	sess.AccessToken = out.AccessToken
	return c.persist(ctx, sess)
}

// Logout revokes sess.RefreshToken on the server and clears the stored session.
func (c *Client) Logout(ctx context.Context, sess *Session) error {
	if !sess.Valid() {
		return nil
	}
	err := c.Do(ctx, sess, http.MethodPost, "/auth/logout", map[string]string{"refresh_token": sess.RefreshToken}, nil)
	sess.AccessToken, sess.RefreshToken = "", ""
	if c.Store != nil {
		if clearErr := c.Store.Clear(ctx, c.Name); err == nil {
			err = clearErr
		}
	}
	return err
}

// Do sends an authenticated request and decodes the JSON response into out.
// On 401 the session is refreshed once and the request retried.
func (c *Client) Do(ctx context.Context, sess *Session, method, path string, body, out any) error {
	if !sess.Valid() {
		return ErrExpired
	}
	err := c.call(ctx, method, path, sess.AccessToken, body, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}
	if err := c.Refresh(ctx, sess); err != nil {
		return err
	}
	return c.call(ctx, method, path, sess.AccessToken, body, out)
}

func (c *Client) persist(ctx context.Context, sess *Session) error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Save(ctx, c.Name, sess)
}

func (c *Client) call(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
