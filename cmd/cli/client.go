package main

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

const sessionCookie = "session_token"

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status     int
	Message    string
	RetryAfter string
}

func (e *apiError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("http %d: %s (retry after %ss)", e.Status, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// client talks JSON to the board API, authenticating with a bearer token.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(addr, token string) *client {
	base := strings.TrimSuffix(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &client{base: base, token: token, http: &http.Client{Timeout: 15 * time.Second}}
}

// do sends in as JSON (when non-nil) and decodes the response into out (when non-nil).
func (c *client) do(ctx context.Context, method, path string, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return resp, &apiError{Status: resp.StatusCode, Message: e.Error, RetryAfter: resp.Header.Get("Retry-After")}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

// login authenticates and returns the session token and its expiry.
func (c *client) login(ctx context.Context, username, password string) (string, time.Time, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/login", map[string]string{"username": username, "password": password}, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie && ck.Value != "" {
			exp := time.Now().Add(24 * time.Hour)
			if ck.MaxAge > 0 {
				exp = time.Now().Add(time.Duration(ck.MaxAge) * time.Second)
			}
			return ck.Value, exp, nil
		}
	}
	return "", time.Time{}, errors.New("login response carried no session cookie")
}

// setFields keeps only the flags the user actually set, so edits stay partial.
func setFields(set map[string]bool, vals map[string]*string) map[string]string {
	out := map[string]string{}
	for name, v := range vals {
		if set[name] {
			out[name] = *v
		}
	}
	return out
}
