// Package docclient binds the client sync layer to the backend: documents
// over REST with live snapshots over Server-Sent Events, authentication
// over /api/auth and the recipe AI endpoints.
package docclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/appstate"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

var _ appstate.DocumentStore = (*Client)(nil)

// ErrSignedOut is returned by a TokenSource without a session.
var ErrSignedOut = errors.New("not signed in")

// TokenSource supplies the bearer token of the current session.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Client talks to the document API of one app.
type Client struct {
	baseURL string
	appID   string
	tokens  TokenSource
	http    *http.Client
	streams *http.Client
	log     *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the client used for requests and streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
		c.streams = hc
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithBackoff bounds the delay between stream reconnects.
func WithBackoff(initial, limit time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = initial
		c.maxBackoff = limit
	}
}

func New(baseURL, appID string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		appID:      appID,
		tokens:     tokens,
		http:       &http.Client{Timeout: defaultTimeout},
		streams:    &http.Client{},
		log:        slog.Default(),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Create(ctx context.Context, collection string, data any) (string, error) {
	var resp dto.CreateDocumentResponse
	if err := c.do(ctx, http.MethodPost, docPath(collection, ""), nil, data, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Set(ctx context.Context, collection, id string, data any, merge bool) error {
	var query url.Values
	if merge {
		query = url.Values{"merge": {"true"}}
	}
	return c.do(ctx, http.MethodPut, docPath(collection, id), query, data, nil)
}

func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, docPath(collection, id), nil, fields, nil)
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	err := c.do(ctx, http.MethodDelete, docPath(collection, id), nil, nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// Profile reads the root profile document.
func (c *Client) Profile(ctx context.Context) (dto.ProfileResponse, error) {
	var resp dto.ProfileResponse
	err := c.do(ctx, http.MethodGet, "/api/me", nil, nil, &resp)
	return resp, err
}

// UpdateProfile patches the root profile document. Nil fields are left
// unchanged.
func (c *Client) UpdateProfile(ctx context.Context, displayName, taxID *string) (dto.ProfileResponse, error) {
	var resp dto.ProfileResponse
	req := dto.UpdateProfileRequest{DisplayName: displayName, TaxID: taxID}
	err := c.do(ctx, http.MethodPatch, "/api/me", nil, req, &resp)
	return resp, err
}

func docPath(collection, id string) string {
	p := "/api/docs/" + url.PathEscape(collection)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// newRequest builds an authenticated request for path.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-App-ID", c.appID)
	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// readError turns an error response into a StatusError.
func readError(resp *http.Response) error {
	se := &StatusError{Status: resp.StatusCode}
	var body dto.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		se.Code = body.Code
		se.Message = body.Message
	}
	return se
}

func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
