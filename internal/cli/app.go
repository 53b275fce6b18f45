package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/soyeahso/skillswap/internal/api"
	"github.com/soyeahso/skillswap/internal/attachment"
	"github.com/soyeahso/skillswap/internal/auth"
	"github.com/soyeahso/skillswap/internal/config"
	"github.com/soyeahso/skillswap/internal/conversation"
	"github.com/soyeahso/skillswap/internal/device"
	"github.com/soyeahso/skillswap/internal/hooks"
	"github.com/soyeahso/skillswap/internal/logging"
	"github.com/soyeahso/skillswap/internal/store"
)

// app is the client core wired from config for one command invocation.
type app struct {
	cfg       config.Config
	log       *logging.Logger
	hooks     *hooks.Manager
	db        *store.DB
	auth      *auth.Manager
	api       *api.Client
	convs     *conversation.Store
	devices   *device.Manager
	validator *attachment.Validator
}

func openApp(cfg config.Config, paths config.Paths, log *logging.Logger) (*app, error) {
	src, err := deviceSource(cfg.Devices)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, hooks: hooks.NewManager(log)}

	var tokens auth.TokenStore
	switch cfg.Auth.Store {
	case "memory":
		tokens = auth.NewMemoryTokenStore()
	default:
		if err := paths.EnsureDirs(); err != nil {
			return nil, err
		}
		db, err := store.Open(paths.TokenDB(), log)
		if err != nil {
			return nil, fmt.Errorf("opening token store: %w", err)
		}
		a.db = db
		tokens = store.NewTokenStore(db)
	}

	plain := &http.Client{Timeout: cfg.API.Timeout()}
	a.auth = auth.NewManager(tokens, api.NewAuthClient(cfg.API.BaseURL, plain, log), a.hooks, log)
	a.api = api.NewClient(cfg.API.BaseURL, a.auth.Client(plain), log)
	a.convs = conversation.NewStore(a.api, a.hooks, log, conversation.Options{BatchRead: cfg.Messages.BatchRead})
	a.devices = device.NewManager(src, a.hooks, log)
	a.validator = attachment.NewValidator(cfg.Attachments.AllowedTypes)

	a.hooks.On(hooks.EventSessionExpired, "cli-redirect", func(_ context.Context, p hooks.Payload) error {
		log.Error().Any("redirect", p.Data["redirect"]).Msg("session expired, run `skillswap login` to sign in again")
		return nil
	})
	return a, nil
}

// deviceSource picks the capture backend named by devices.backend.
func deviceSource(c config.DevicesConfig) (device.Source, error) {
	switch c.Backend {
	case "", "simulated":
		return device.NewSimulated(c.Simulate), nil
	default:
		return nil, fmt.Errorf("unknown device backend %q", c.Backend)
	}
}

// requireUser resolves the logged-in user and sets them as the viewer.
func (a *app) requireUser(ctx context.Context) error {
	if a.auth.State() != auth.LoggedIn {
		return fmt.Errorf("not logged in, run `skillswap login`")
	}
	u, err := a.auth.EnsureUser(ctx)
	if err != nil {
		return err
	}
	a.convs.SetViewer(u.ID)
	return nil
}

func (a *app) Close() {
	a.convs.Close()
	if a.db != nil {
		a.db.Close()
	}
}
