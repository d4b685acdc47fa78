// Package apiclient talks to the tutoring-center REST API. It attaches the
// session's bearer token to every request and invalidates the session when
// the server answers 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/me/tutordesk/internal/logging"
	"github.com/me/tutordesk/internal/session"
	"github.com/me/tutordesk/pkg/model"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for the tutoring-center API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Session    session.Store
	Logger     *slog.Logger
}

// New creates an API client. baseURL is the fixed API root; request paths are
// joined onto it.
func New(baseURL string, st session.Store, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Session:    st,
		Logger:     logger.With("component", "apiclient"),
	}
}

// WithSession returns a shallow copy of c bound to another session store.
// The portal uses it to give each browser its own client over one shared
// transport.
func (c *Client) WithSession(st session.Store) *Client {
	cp := *c
	cp.Session = st
	return &cp
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &model.APIError{
			Kind:    model.KindDecode,
			Status:  r.StatusCode,
			Message: fmt.Sprintf("parse response: %v", err),
			Err:     err,
		}
	}
	return nil
}

// Do sends one request. Caller headers are applied first; Authorization is
// then overwritten with the session token when one is stored.
//
// A 401 clears the whole session before Do returns and yields an AUTH error.
// Other non-2xx statuses return the response together with a REJECTED or
// SERVER error. A request that got no response yields a NETWORK error.
func (c *Client) Do(ctx context.Context, method, path string, body any, headers http.Header) (*Response, error) {
	url := c.BaseURL + "/" + strings.TrimLeft(path, "/")

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := "req_" + uuid.New().String()[:8]
	req.Header.Set("X-Request-ID", reqID)

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.Logger.With("request_id", reqID)
	log.Debug("HTTP request", "method", method, "url", url, "token", logging.RedactToken(token))

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Warn("HTTP request failed", "method", method, "path", path, "error", err)
		return nil, &model.APIError{Kind: model.KindNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.APIError{Kind: model.KindNetwork, Message: "read response", Err: err}
	}

	log.Debug("HTTP response", "status", resp.StatusCode, "duration", time.Since(start).String(), "bytes", len(respBody))

	r := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if err := c.Session.Clear(ctx); err != nil {
			log.Error("clear session after 401", "error", err)
		}
		log.Info("session invalidated by server", "method", method, "path", path)
		return r, &model.APIError{
			Kind:    model.KindAuth,
			Status:  resp.StatusCode,
			Message: "unauthorized",
			Detail:  detailFromBody(respBody),
		}
	case resp.StatusCode >= 500:
		return r, &model.APIError{
			Kind:    model.KindServer,
			Status:  resp.StatusCode,
			Message: "server error",
			Detail:  detailFromBody(respBody),
		}
	case resp.StatusCode >= 400:
		return r, &model.APIError{
			Kind:    model.KindRejected,
			Status:  resp.StatusCode,
			Message: "request rejected",
			Detail:  detailFromBody(respBody),
		}
	}

	return r, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, nil)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, nil)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) token(ctx context.Context) (string, error) {
	token, _, err := c.Session.Get(ctx, model.KeyToken)
	if err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	}
	return token, nil
}

// detailFromBody extracts the human-readable message from an error body.
// The API sends {"detail": "..."} or, for validation failures, a list of
// {"msg": "..."} objects under detail.
func detailFromBody(body []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Detail) > 0 {
		var s string
		if json.Unmarshal(envelope.Detail, &s) == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(envelope.Detail, &items) == nil && len(items) > 0 {
			return items[0].Msg
		}
	}
	return envelope.Message
}

// IsUnauthorized reports whether err came from a 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, model.ErrSessionInvalidated)
}
