package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdhe/kelly-poet/pkg/chat"
	"github.com/abdhe/kelly-poet/pkg/completion"
	"github.com/abdhe/kelly-poet/pkg/config"
	"github.com/abdhe/kelly-poet/pkg/conversation"
	"github.com/abdhe/kelly-poet/pkg/logging"
	"github.com/abdhe/kelly-poet/pkg/provider"
	"github.com/abdhe/kelly-poet/pkg/secrets"
)

// app is the wired object graph shared by chat and serve.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	chat  *chat.Service
	close func() error
}

func buildApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)

	// -------------------------------------------------------------------------
	// Provider
	// -------------------------------------------------------------------------
	var opts []provider.Option
	if cfg.BaseURL != "" {
		opts = append(opts, provider.WithBaseURL(cfg.BaseURL))
	}
	p, err := provider.New(cfg.Provider, opts...)
	if err != nil {
		return nil, err
	}

	// -------------------------------------------------------------------------
	// Credentials
	// -------------------------------------------------------------------------
	env := secrets.NewEnvStore(nil)
	var store secrets.Store = env
	if keys := env.Keys(cfg.Provider); len(keys) > 1 {
		store = secrets.NewKeyPool(cfg.Provider, keys, cfg.KeyCooldown)
		log.Info().Str("provider", cfg.Provider).Int("keys", len(keys)).Msg("key pool enabled")
	}

	client, err := completion.New(p, store, cfg.Completion(), completion.WithLogger(log))
	if err != nil {
		return nil, err
	}

	// -------------------------------------------------------------------------
	// Conversation store
	// -------------------------------------------------------------------------
	var (
		convStore conversation.Store
		closeFn   = func() error { return nil }
	)
	switch cfg.Store.Backend {
	case "redis":
		rs := conversation.NewRedisStore(cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB, cfg.Store.SessionTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rs.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis store at %s: %w", cfg.Store.Redis.Addr, err)
		}
		convStore, closeFn = rs, rs.Close
		log.Info().Str("addr", cfg.Store.Redis.Addr).Dur("ttl", cfg.Store.SessionTTL).Msg("redis session store")
	default:
		convStore = conversation.NewMemoryStore()
	}

	log.Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Int("max_retries", cfg.MaxRetries).
		Msg("kelly configured")

	return &app{
		cfg:   cfg,
		log:   log,
		chat:  chat.NewService(convStore, client, chat.WithLogger(log)),
		close: closeFn,
	}, nil
}
