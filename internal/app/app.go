// Package app orchestrates all components of grouppilot.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianly1003/grouppilot/internal/autoapprove"
	"github.com/brianly1003/grouppilot/internal/bot"
	"github.com/brianly1003/grouppilot/internal/config"
	"github.com/brianly1003/grouppilot/internal/credstore"
	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/gateway"
	"github.com/brianly1003/grouppilot/internal/hub"
	"github.com/brianly1003/grouppilot/internal/journal"
	"github.com/brianly1003/grouppilot/internal/pairing"
	"github.com/brianly1003/grouppilot/internal/rpc"
	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/handler/methods"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
	"github.com/brianly1003/grouppilot/internal/security"
	httpserver "github.com/brianly1003/grouppilot/internal/server/http"
	"github.com/brianly1003/grouppilot/internal/session"
	"github.com/brianly1003/grouppilot/internal/sync"
	"github.com/brianly1003/grouppilot/internal/workflow"
	"github.com/lmittmann/tint"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Frontend is the chat front-end: where messages go and where commands
// come from.
type Frontend interface {
	Notifier() ports.Notifier
	// Run delivers commands to handler until ctx is done.
	Run(ctx context.Context, handler ports.CommandHandler) error
}

// FrontendFactory connects the front-end. It is called once by Run.
type FrontendFactory func(cfg config.TelegramConfig) (Frontend, error)

// App is the main application struct that orchestrates all components.
type App struct {
	version string
	logger  *slog.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	hub      *hub.Hub
	store    *credstore.Store
	journal  *journal.Store
	factory  ports.ClientFactory
	frontend FrontendFactory

	manager  *session.Manager
	approver *autoapprove.Controller
	engine   *workflow.Engine
	router   *bot.Router
	registry *handler.Registry
	control  *rpc.Server
	http     *httpserver.Server
}

// Option customizes App construction.
type Option func(*App)

// WithClientFactory replaces the gateway client factory.
func WithClientFactory(f ports.ClientFactory) Option {
	return func(a *App) { a.factory = f }
}

// WithFrontend replaces the Telegram front-end.
func WithFrontend(f FrontendFactory) Option {
	return func(a *App) { a.frontend = f }
}

// WithLogger replaces the session manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates a new App instance. Nothing runs until Run.
func New(cfg *config.Config, version string, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		version:  version,
		hub:      hub.New(),
		frontend: telegramFrontend,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = NewSlogLogger(cfg.Logging.Level)
	}
	if a.factory == nil {
		a.factory = gateway.NewFactory(cfg.Gateway.URL, cfg.Gateway.HandshakeTimeout, cfg.Gateway.CallTimeout)
	}

	var storeOpts []credstore.Option
	if cfg.Sessions.AgeIdentityFile != "" {
		sealer, err := credstore.LoadSealer(cfg.Sessions.AgeIdentityFile)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, credstore.WithSealer(sealer))
		log.Info().Str("identity", cfg.Sessions.AgeIdentityFile).Msg("credentials are sealed at rest")
	}
	store, err := credstore.New(cfg.Sessions.Path, cfg.Sessions.DirPrefix, storeOpts...)
	if err != nil {
		return nil, err
	}
	a.store = store

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		a.journal = j
	}

	return a, nil
}

// wire builds the components that need the front-end's notifier.
func (a *App) wire(notifier ports.Notifier) {
	cfg := a.config()

	a.manager = session.NewManager(session.Dependencies{
		Factory:  a.factory,
		Store:    a.store,
		Notifier: notifier,
		Hub:      a.hub,
		QR:       pairing.NewQRRenderer(pairing.DefaultSize).PNG,
	}, session.Options{
		MaxReconnectAttempts: cfg.Sessions.MaxReconnectAttempts,
		ReconnectDelay:       cfg.Sessions.ReconnectDelay,
		RestoreDelay:         cfg.Sessions.RestoreDelay,
		QRThrottle:           cfg.Sessions.QRThrottle,
	}, a.logger)

	// A nil *journal.Store must not become a non-nil interface.
	var approvals autoapprove.Recorder
	var renames workflow.Recorder
	var reader methods.JournalReader
	var httpJournal httpserver.Journal
	if a.journal != nil {
		approvals, renames, reader, httpJournal = a.journal, a.journal, a.journal, a.journal
	}

	a.approver = autoapprove.New(a.manager, a.hub, approvals, autoapprove.Options{
		SettleDelay:      cfg.Sessions.OpenSettleDelay,
		ApprovalDelay:    cfg.Approval.Delay,
		ToggleSweepDelay: cfg.Approval.ToggleSweepDelay,
	})
	a.manager.AddObserver(a.approver)

	a.engine = workflow.NewEngine(a.manager, notifier, workflow.NewExecutor(a.hub, renames, workflow.ExecutorOptions{
		Delay:          cfg.Rename.Delay,
		RateLimitDelay: cfg.Rename.RateLimitDelay,
	}))

	a.router = bot.NewRouter(a.manager, a.approver, a.engine, notifier, bot.OwnersFunc(a.IsOwner), bot.Options{
		PairingSettle: cfg.Sessions.PairingSettle,
	})

	a.registry = handler.NewRegistry()
	a.registry.Use(loggingMiddleware)
	a.registry.RegisterService(methods.NewSessionService(a.manager))
	a.registry.RegisterService(methods.NewAutoApproveService(a.approver))
	a.registry.RegisterService(methods.NewJournalService(reader))
	a.registry.RegisterService(methods.NewStatusService(a, func() *handler.OpenRPCSpec {
		return httpserver.OpenRPCSpec(a.registry, fmt.Sprintf("ws://%s:%d/rpc", cfg.Server.Host, cfg.Server.Port))
	}))
	subscriptions := methods.NewSubscriptionService()
	a.registry.RegisterService(subscriptions)
	a.control = rpc.NewServer(handler.NewDispatcher(a.registry), a.hub)
	subscriptions.SetProvider(a.control)

	if cfg.Server.Enabled {
		// Already validated by config.
		proxies, _ := security.ParseTrustedProxies(cfg.Server.TrustedProxies)
		a.http = httpserver.New(httpserver.Options{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			Version:        a.version,
			RequestTimeout: cfg.Server.RequestTimeout,
			RateLimit:      cfg.Server.RateLimit,
			Pprof:          cfg.Server.Pprof,
			AuthToken:      cfg.Server.AuthToken,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			TrustedProxies: proxies,
		}, a.manager, httpJournal, a.control, a.registry)
	}
}

// Run starts every component and blocks until ctx is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}
	defer func() { _ = a.hub.Stop() }()

	a.hub.Subscribe(hub.NewLogSubscriber("internal-logger", func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Time("timestamp", event.Timestamp()).
			Msg("event broadcast")
	}))

	frontend, err := a.frontend(a.config().Telegram)
	if err != nil {
		return fmt.Errorf("failed to connect front-end: %w", err)
	}
	a.wire(frontend.Notifier())
	defer a.shutdown()

	a.config().Watch(a.reload)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return frontend.Run(gctx, a.router)
	})

	if a.http != nil {
		g.Go(func() error {
			return a.http.Run(gctx)
		})
	}

	g.Go(func() error {
		restored := a.manager.RestoreAll(gctx)
		log.Info().Int("restored", len(restored)).Msg("stored sessions restored")
		return nil
	})

	log.Info().
		Str("version", a.version).
		Str("sessions_path", a.store.Root()).
		Bool("journal", a.journal != nil).
		Bool("http", a.http != nil).
		Msg("grouppilot running")

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (a *App) shutdown() {
	log.Info().Msg("shutting down")
	_ = a.control.Stop()
	a.engine.Close()
	a.approver.Close()
	a.manager.Shutdown()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close journal")
		}
	}
}

// reload applies a changed config file. Only the owner allow-list and the
// log level take effect without a restart.
func (a *App) reload(next *config.Config, err error) {
	if err != nil {
		log.Error().Err(err).Msg("config reload rejected, keeping previous config")
		return
	}
	a.cfgMu.Lock()
	a.cfg = next
	a.cfgMu.Unlock()

	if level, err := zerolog.ParseLevel(next.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Int("owners", len(next.Telegram.Owners)).Msg("config reloaded")
}

func (a *App) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// IsOwner reports whether userID may use the bot under the current config.
func (a *App) IsOwner(userID string) bool {
	return a.config().IsOwner(userID)
}

// Version implements methods.StatusProvider.
func (a *App) Version() string {
	return a.version
}

// SessionCount implements methods.StatusProvider.
func (a *App) SessionCount() int {
	return len(a.manager.Snapshots())
}

// ConnectedCount implements methods.StatusProvider.
func (a *App) ConnectedCount() int {
	n := 0
	for _, s := range a.manager.Snapshots() {
		if s.Connected {
			n++
		}
	}
	return n
}

// ControlClients implements methods.StatusProvider.
func (a *App) ControlClients() int {
	return a.control.ClientCount()
}

// NewSlogLogger builds the session manager's logger.
func NewSlogLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))
}

// loggingMiddleware logs every control-API call.
func loggingMiddleware(method string, next handler.HandlerFunc) handler.HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
		start := time.Now()
		result, rpcErr := next(ctx, params)
		evt := log.Debug()
		if rpcErr != nil {
			evt = log.Warn().Int("code", rpcErr.Code).Str("error", rpcErr.Message)
		}
		evt.Str("method", method).
			Str("client_id", handler.ClientID(ctx)).
			Dur("duration", time.Since(start)).
			Msg("control call")
		return result, rpcErr
	}
}

var _ methods.StatusProvider = (*App)(nil)
