// Package app assembles the relay service and runs its HTTP and Telegram surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/m3rciful/sensorbridge/core/bootstrap"
	coreconfig "github.com/m3rciful/sensorbridge/core/config"
	"github.com/m3rciful/sensorbridge/core/logger"
	coretelegram "github.com/m3rciful/sensorbridge/core/telegram"
	tgsender "github.com/m3rciful/sensorbridge/core/telegram/sender"
	"github.com/m3rciful/sensorbridge/internal/archive"
	"github.com/m3rciful/sensorbridge/internal/chat"
	"github.com/m3rciful/sensorbridge/internal/device"
	"github.com/m3rciful/sensorbridge/internal/mqttbridge"
	"github.com/m3rciful/sensorbridge/internal/notify"
	"github.com/m3rciful/sensorbridge/internal/relay"
	"github.com/m3rciful/sensorbridge/internal/report"
	"github.com/m3rciful/sensorbridge/internal/state"

	tele "gopkg.in/telebot.v4"
)

// Options adjusts how New builds the app.
type Options struct {
	// HTTPClient overrides the Telegram HTTP client.
	HTTPClient *http.Client
	// Offline skips the Telegram handshake and the command menu call.
	Offline bool
}

// App owns every long-lived component of the relay.
type App struct {
	cfg        *coreconfig.Config
	infra      *bootstrap.Result
	svc        *relay.Service
	bot        *tele.Bot
	notifier   *notify.Notifier
	chat       *chat.Router
	updates    tele.HandlerFunc
	registry   *coretelegram.Registry
	webhooks   *coretelegram.WebhookClient
	archive    archive.Archive
	bridge     *mqttbridge.Bridge
	server     *http.Server
	offline    bool
	started    time.Time
}

// New wires the relay from cfg and the bootstrapped infrastructure.
func New(cfg *coreconfig.Config, infra *bootstrap.Result, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}
	client := opts.HTTPClient
	if client == nil {
		client = coretelegram.BuildHTTPClient(cfg.Telegram.RetryAttempts)
	}
	bot, err := coretelegram.NewBot(coretelegram.BotOptions{Config: cfg, Client: client, Offline: opts.Offline})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &App{
		cfg:      cfg,
		infra:    infra,
		bot:      bot,
		registry: coretelegram.NewRegistry(),
		webhooks: coretelegram.NewWebhookClient(cfg.Telegram.APIURL, cfg.Telegram.Token, client),
		offline:  opts.Offline,
		started:  time.Now(),
	}
	a.notifier = notify.New(bot, tgsender.Options{
		QueueSize: cfg.Sender.QueueSize,
		Workers:   cfg.Sender.Workers,
	})
	a.archive = buildArchive(cfg, infra)
	a.svc = relay.New(relay.Options{
		Store:          state.NewStore(),
		Formatter:      report.NewFormatter(cfg.DisplayLocation()),
		Notifier:       a.notifier,
		Archive:        a.archive,
		OperatorChatID: cfg.Telegram.OperatorChatID,
	})
	a.chat = chat.NewRouter(a.svc)
	a.chat.Commands(a.registry)
	a.updates = a.chat.Handler()

	if cfg.MQTT.Broker != "" {
		a.bridge = mqttbridge.New(cfg.MQTT, a.svc)
		a.svc.OnLocation(a.bridge.PublishLocation)
	}

	a.server = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func buildArchive(cfg *coreconfig.Config, infra *bootstrap.Result) archive.Archive {
	var sinks archive.Multi
	if infra != nil && infra.DB != nil {
		sinks = append(sinks, archive.NewPostgres(infra.DB))
	}
	if cfg.Influx.URL != "" {
		sinks = append(sinks, archive.NewInflux(cfg.Influx))
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

// Service exposes the relay service.
func (a *App) Service() *relay.Service { return a.svc }

// Addr is the listen address built from http.listen and http.port.
func (a *App) Addr() string {
	return net.JoinHostPort(a.cfg.HTTP.Listen, strconv.Itoa(a.cfg.HTTP.Port))
}

// Handler returns the full HTTP surface.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger, recoverHTTP)

	device.NewHandlers(a.svc).Register(r)
	r.HandleFunc("/webhook/{token}", a.webhook).Methods(http.MethodPost)
	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/", a.index).Methods(http.MethodGet)

	return withCORS(a.cfg.HTTP.CORSOrigins, r)
}

// Run listens on Addr and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Addr())
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln together with the Telegram intake and
// shuts everything down once ctx is done or the server fails.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.bridge != nil {
		if err := a.bridge.Start(); err != nil {
			// Devices can still use HTTP.
			logger.MQTT.Error("mqtt unavailable", slog.String("event", "mqtt.connect"), slog.String("status", "fail"), slog.String("err", err.Error()))
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		defer close(serveErr)
		logger.HTTP.Info("listening",
			slog.String("event", "http.listen"),
			slog.String("listen", ln.Addr().String()),
		)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("app: http serve: %w", err)
			cancel()
		}
	}()

	tgErr := coretelegram.RunTelegram(ctx, coretelegram.RunOptions{
		Config:   a.cfg,
		Bot:      a.bot,
		Registry: a.registry,
		Webhooks: a.webhooks,
		Routes:   a.chat.Routes(),
		Offline:  a.offline,
	})

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownTimeoutSeconds)*time.Second)
	defer stop()
	shutdownErr := a.server.Shutdown(shutdownCtx)
	if a.bridge != nil {
		a.bridge.Stop()
	}
	// Every producer is stopped; drain what is queued.
	a.notifier.Close()
	var closeErr error
	if a.archive != nil {
		closeErr = a.archive.Close()
	}
	if a.infra != nil {
		closeErr = errors.Join(closeErr, a.infra.Close())
	}
	return errors.Join(<-serveErr, tgErr, shutdownErr, closeErr)
}
