package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/services"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const (
	defaultPingInterval = 25 * time.Second
	snapshotTimeout     = 10 * time.Second
)

// StreamHandler serves live collection snapshots as Server-Sent Events.
// Every change notification is answered with the complete current contents
// of the collection.
type StreamHandler struct {
	docs     *services.DocumentService
	profiles *services.ProfileService
	hub      *realtime.Hub

	PingInterval time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func NewStreamHandler(docs *services.DocumentService, profiles *services.ProfileService, hub *realtime.Hub) *StreamHandler {
	return &StreamHandler{
		docs:         docs,
		profiles:     profiles,
		hub:          hub,
		PingInterval: defaultPingInterval,
		done:         make(chan struct{}),
	}
}

// Close ends every open stream.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

type snapshotFunc func(ctx context.Context) (interface{}, error)

func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	appID := tenant.GetAppID(c)
	collection := c.Params("collection")

	var load snapshotFunc
	switch {
	case collection == services.CollectionProfile:
		load = func(ctx context.Context) (interface{}, error) {
			return h.profiles.Get(ctx, appID, userID)
		}
	case services.IsCollection(collection):
		load = h.collectionLoader(appID, userID, collection)
	default:
		return fail(c, fiber.StatusNotFound, dto.CodeNotFound, services.ErrUnknownCollection.Error())
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	key := realtime.Key{AppID: appID, OwnerID: userID.String(), Collection: collection}
	changes, cancel := h.hub.Subscribe(key)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		if err := h.serve(w, load, changes); err != nil {
			slog.Debug("stream closed", "collection", collection, "app_id", appID, "error", err)
		}
	}))
	return nil
}

func (h *StreamHandler) collectionLoader(appID string, userID uuid.UUID, collection string) snapshotFunc {
	return func(ctx context.Context) (interface{}, error) {
		docs, err := h.docs.List(ctx, appID, userID, collection)
		if err != nil {
			return nil, err
		}
		return Snapshot(collection, docs), nil
	}
}

// serve writes the initial snapshot, then one snapshot per change signal,
// until the client goes away or the handler is closed.
func (h *StreamHandler) serve(w *bufio.Writer, load snapshotFunc, changes <-chan struct{}) error {
	interval := h.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := writeSnapshot(w, load); err != nil {
		return err
	}

	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := writeSnapshot(w, load); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		case <-h.done:
			return nil
		}
	}
}

func writeSnapshot(w *bufio.Writer, load snapshotFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snapshot, err := load(ctx)
	if err != nil {
		payload, _ := json.Marshal(dto.ErrorResponse{Error: true, Code: dto.CodeInternal, Message: "snapshot failed"})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
		if ferr := w.Flush(); ferr != nil {
			return ferr
		}
		return err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
