package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/funnelbot/core/config"
	coretelegram "github.com/m3rciful/funnelbot/core/telegram"
	"github.com/m3rciful/funnelbot/funnel"
	"github.com/m3rciful/funnelbot/gateway"
	"github.com/m3rciful/funnelbot/orders"

	tele "gopkg.in/telebot.v4"
)

// App aggregates the wired funnel components.
type App struct {
	cfg        *coreconfig.Config
	handler    *Handler
	closeStore func() error
}

// New builds the session store, gateway client, optional order journal,
// and the funnel controller from configuration. db may be nil when the
// order journal is disabled.
func New(cfg *coreconfig.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config provided")
	}

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		Timeout: time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
	})

	var opts []funnel.ControllerOption
	if db != nil {
		opts = append(opts, funnel.WithJournal(orders.NewJournal(db)))
	}
	ctrl := funnel.NewController(store, gw, opts...)

	return &App{
		cfg:        cfg,
		handler:    NewHandler(ctrl),
		closeStore: closeStore,
	}, nil
}

func buildStore(cfg *coreconfig.Config) (funnel.Store, func() error, error) {
	idleTTL := time.Duration(cfg.Sessions.IdleTTLSeconds) * time.Second

	switch cfg.Sessions.Backend {
	case coreconfig.SessionBackendRedis:
		store, err := funnel.NewRedisStore(context.Background(), funnel.RedisOptions{
			Addr:     cfg.Sessions.RedisAddr,
			Password: cfg.Sessions.RedisPassword,
			DB:       cfg.Sessions.RedisDB,
			TTL:      idleTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("bot: sessions store: %w", err)
		}
		return store, store.Close, nil
	default:
		store := funnel.NewMemoryStore(idleTTL)
		return store, func() error { store.Close(); return nil }, nil
	}
}

// TelegramRunOptions exposes routes, middlewares, and lifecycle hooks
// for the Telegram runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	routes := []coretelegram.Route{
		{Endpoint: "/start", Handler: a.handler.Start},
		{Endpoint: tele.OnCallback, Handler: a.handler.Callback},
	}

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		Commands: []tele.Command{
			{Text: "start", Description: "Оформить заказ"},
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			if a.closeStore != nil {
				return a.closeStore()
			}
			return nil
		},
	}, nil
}
