package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/sensorbridge/core/config"
	"github.com/m3rciful/sensorbridge/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Webhooks registers and removes the Telegram webhook.
type Webhooks interface {
	Set(ctx context.Context, url string) error
	Delete(ctx context.Context, dropPending bool) error
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Bot      *tele.Bot
	Registry *Registry
	Webhooks Webhooks
	Routes   []Route
	// Offline skips the command menu call.
	Offline bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

const webhookCallTimeout = 10 * time.Second

// WebhookPath returns the request path Telegram posts updates to.
func WebhookPath(token string) string {
	return "/webhook/" + token
}

// RunTelegram wires routes onto the bot and keeps the update intake alive until ctx is done.
// In webhook mode updates are delivered by the HTTP server; in longpoll mode the bot polls.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Bot == nil {
		return fmt.Errorf("telegram: nil bot provided")
	}
	cfg := opts.Config
	bot := opts.Bot
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	rt := Runtime{Bot: bot, Registry: reg}

	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}
	if !opts.Offline {
		InitBotCommands(bot, reg)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	var runErr error
	switch cfg.Telegram.RunMode {
	case coreconfig.RunModeLongpoll:
		runErr = runLongpoll(ctx, bot, opts.Webhooks)
	default:
		runErr = runWebhook(ctx, cfg, opts.Webhooks)
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func runWebhook(ctx context.Context, cfg *coreconfig.Config, hooks Webhooks) error {
	publicURL := cfg.Webhook.PublicURL
	attrs := []slog.Attr{
		slog.String("event", "mode"),
		slog.String("mode", coreconfig.RunModeWebhook),
	}
	if publicURL == "" || hooks == nil {
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode, registration skipped", attrs...)
	} else {
		callCtx, cancel := context.WithTimeout(ctx, webhookCallTimeout)
		start := time.Now()
		err := hooks.Set(callCtx, publicURL+WebhookPath(cfg.Telegram.Token))
		cancel()
		attrs = append(attrs,
			slog.String("public_url", publicURL),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		)
		if err != nil {
			// Telegram keeps the previous registration; serving continues.
			attrs = append(attrs, slog.String("err", sanitizeToken(err.Error())))
			logger.TG.LogAttrs(ctx, slog.LevelError, "set webhook failed", attrs...)
		} else {
			logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook registered", attrs...)
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func runLongpoll(ctx context.Context, bot *tele.Bot, hooks Webhooks) error {
	if hooks != nil {
		callCtx, cancel := context.WithTimeout(ctx, webhookCallTimeout)
		err := hooks.Delete(callCtx, false)
		cancel()
		if err != nil {
			logger.TG.Warn("failed to delete webhook",
				slog.String("event", "delete_webhook"),
				slog.String("mode", coreconfig.RunModeLongpoll),
				slog.String("err", sanitizeToken(err.Error())),
			)
		} else {
			logger.TG.Info("webhook deleted",
				slog.String("event", "delete_webhook"),
				slog.String("mode", coreconfig.RunModeLongpoll),
			)
		}
	}
	logger.TG.Info("polling mode",
		slog.String("event", "mode"),
		slog.String("mode", coreconfig.RunModeLongpoll),
	)

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		return ctx.Err()
	case <-runDone:
		return nil
	}
}
