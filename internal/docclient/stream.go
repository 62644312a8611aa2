package docclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/appstate"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
)

// profileStream is the pseudo-collection that streams the root profile.
const profileStream = "profile"

const maxEventBytes = 8 << 20

// errStreamEvent is an "error" event: the server could not load a
// snapshot. The stream is reopened.
var errStreamEvent = errors.New("server reported a snapshot error")

// Listen streams collection snapshots until ctx ends. It fails at once
// without a session; later failures are retried, except a refusal by the
// server, which is reported to onError and ends the subscription.
func (c *Client) Listen(ctx context.Context, collection string, onSnapshot func([]appstate.Document), onError func(error)) error {
	return c.listen(ctx, collection, func(data []byte) error {
		var snap dto.SnapshotResponse
		if err := json.Unmarshal(data, &snap); err != nil {
			return err
		}
		docs := make([]appstate.Document, 0, len(snap.Docs))
		for _, d := range snap.Docs {
			docs = append(docs, appstate.Document{ID: d.ID, Data: d.Data})
		}
		onSnapshot(docs)
		return nil
	}, onError)
}

// ListenProfile streams the root profile document.
func (c *Client) ListenProfile(ctx context.Context, onProfile func(domain.Profile), onError func(error)) error {
	return c.listen(ctx, profileStream, func(data []byte) error {
		var p dto.ProfileResponse
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		onProfile(domain.Profile{
			Email:                  p.Email,
			DisplayName:            p.DisplayName,
			TaxID:                  p.TaxID,
			IsAdmin:                p.IsAdmin,
			NeedsProfileCompletion: p.NeedsProfileCompletion,
		})
		return nil
	}, onError)
}

func (c *Client) listen(ctx context.Context, stream string, onData func([]byte) error, onError func(error)) error {
	if stream == "" {
		return errors.New("stream name is required")
	}
	if c.tokens != nil {
		if _, err := c.tokens.AccessToken(ctx); err != nil {
			return fmt.Errorf("listen %s: %w", stream, err)
		}
	}
	go c.run(ctx, stream, onData, onError)
	return nil
}

// run keeps one stream open, backing off between attempts. The delay
// resets after a connection that delivered data.
func (c *Client) run(ctx context.Context, stream string, onData func([]byte) error, onError func(error)) {
	backoff := c.minBackoff
	for {
		delivered, err := c.streamOnce(ctx, stream, onData)
		if ctx.Err() != nil {
			return
		}
		switch status := statusOf(err); {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			onError(fmt.Errorf("%w: %v", appstate.ErrPermissionDenied, err))
			return
		case status == http.StatusNotFound || errors.Is(err, ErrSignedOut):
			onError(err)
			return
		}

		if delivered {
			backoff = c.minBackoff
		}
		c.log.Warn("stream interrupted, reconnecting", "stream", stream, "error", err, "retry_in", backoff)
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

// streamOnce reads one connection until it breaks. It reports whether any
// snapshot was delivered.
func (c *Client) streamOnce(ctx context.Context, stream string, onData func([]byte) error) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/stream/"+url.PathEscape(stream), nil, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streams.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, readError(resp)
	}

	delivered := false
	err = readEvents(resp.Body, func(event string, data []byte) error {
		switch event {
		case "error":
			return errStreamEvent
		case "", "snapshot":
			if err := onData(data); err != nil {
				return fmt.Errorf("decode %s snapshot: %w", stream, err)
			}
			delivered = true
		}
		return nil
	})
	if err == nil {
		err = errors.New("stream closed by server")
	}
	return delivered, err
}

// readEvents parses a text/event-stream body and calls fn once per event.
// Comment lines are keepalives and are skipped.
func readEvents(r io.Reader, fn func(event string, data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventBytes)

	var event string
	var data bytes.Buffer
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		switch {
		case line == "":
			if data.Len() > 0 {
				if err := fn(event, data.Bytes()); err != nil {
					return err
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return sc.Err()
}
