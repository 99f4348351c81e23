package app

import (
	"context"
	"errors"
	"time"

	"autoeden/pkg/ai"
	"autoeden/pkg/auth"
	"autoeden/pkg/mail"
	"autoeden/pkg/queue"
	"autoeden/pkg/storage"
	"autoeden/pkg/store"
	"autoeden/pkg/ws"
)

// TaskQueue enqueues background work.
type TaskQueue interface {
	Enqueue(ctx context.Context, kind, payload string) (queue.Task, error)
}

// ResultCache stores rendered marketplace pages.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
	Invalidate(ctx context.Context) error
}

// WhatsAppSender delivers WhatsApp messages, returning a delivery id.
type WhatsAppSender interface {
	Enabled() bool
	SendText(ctx context.Context, phone, body string) (string, error)
}

// Config holds dependencies for the core application.
type Config struct {
	Store         store.Store
	RefreshTokens store.RefreshTokenStore
	Tokens        *auth.TokenService
	Cache         ResultCache
	Queue         TaskQueue
	Objects       storage.ObjectStore
	Mailer        mail.Sender
	Hub           *ws.Hub
	WhatsApp      WhatsAppSender
	Generator     ai.TextGenerator
	Search        SearchIndex
	PublicBaseURL string
	RefreshTTL    time.Duration
	// Now is overridable in tests; defaults to time.Now UTC.
	Now func() time.Time
}

// App wires storage and domain logic behind the HTTP layer.
type App struct {
	store         store.Store
	refresh       store.RefreshTokenStore
	tokens        *auth.TokenService
	cache         ResultCache
	queue         TaskQueue
	objects       storage.ObjectStore
	mailer        mail.Sender
	hub           *ws.Hub
	whatsapp      WhatsAppSender
	generator     ai.TextGenerator
	search        SearchIndex
	bus           *Bus
	publicBaseURL string
	refreshTTL    time.Duration
	now           func() time.Time
}

// New constructs the application and subscribes the built-in event
// handlers (notification fan-out, cache invalidation, search matching).
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token service required")
	}
	if cfg.RefreshTokens == nil {
		return nil, errors.New("refresh token store required")
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}

	a := &App{
		store:         cfg.Store,
		refresh:       cfg.RefreshTokens,
		tokens:        cfg.Tokens,
		cache:         cfg.Cache,
		queue:         cfg.Queue,
		objects:       cfg.Objects,
		mailer:        cfg.Mailer,
		hub:           cfg.Hub,
		whatsapp:      cfg.WhatsApp,
		generator:     cfg.Generator,
		search:        cfg.Search,
		bus:           NewBus(),
		publicBaseURL: cfg.PublicBaseURL,
		refreshTTL:    refreshTTL,
		now:           now,
	}
	if a.search == nil {
		a.search = NewStoreSearch(a.store)
	}
	a.bus.Subscribe(a.handleEvent)
	return a, nil
}

// Bus exposes the event bus for additional subscribers.
func (a *App) Bus() *Bus { return a.bus }
