package main

import (
	"context"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/appstate"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/docclient"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/kv"
)

// client wires the sync layer to the backend for one command run.
type client struct {
	app  *appstate.App
	auth *docclient.Auth
	docs *docclient.Client
	log  *slog.Logger
}

func openClient(ctx context.Context, cfg Config, log *slog.Logger) (*client, error) {
	store, err := kv.OpenFile(cfg.StateFile, log)
	if err != nil {
		return nil, err
	}
	return newClient(ctx, cfg, store, log), nil
}

// newClient starts the session manager and returns once the stored
// session, if any, has been restored.
func newClient(ctx context.Context, cfg Config, store kv.Store, log *slog.Logger) *client {
	opts := []docclient.Option{docclient.WithLogger(log)}
	auth := docclient.NewAuth(cfg.ServerURL, cfg.AppID, store, opts...)
	docs := docclient.New(cfg.ServerURL, cfg.AppID, auth, opts...)
	app := appstate.New(appstate.Options{
		Auth:        auth,
		Documents:   docs,
		KV:          store,
		Logger:      log,
		AuthTimeout: cfg.AuthTimeout,
	})
	app.Start(ctx)
	auth.Wait()
	return &client{app: app, auth: auth, docs: docs, log: log}
}

func (c *client) Close() { c.app.Close() }
