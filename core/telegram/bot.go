package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	coreconfig "github.com/m3rciful/sensorbridge/core/config"
	"github.com/m3rciful/sensorbridge/core/logger"

	tele "gopkg.in/telebot.v4"
)

// BotOptions configures NewBot.
type BotOptions struct {
	Config *coreconfig.Config
	// Client overrides the tuned HTTP client, mainly for tests.
	Client *http.Client
	// Offline skips the getMe handshake; sends still reach Config.Telegram.APIURL.
	Offline bool
}

// NewBot builds a synchronous telebot instance pointed at the configured API URL.
func NewBot(opts BotOptions) (*tele.Bot, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	client := opts.Client
	if client == nil {
		client = BuildHTTPClient(cfg.Telegram.RetryAttempts)
	}

	settings := tele.Settings{
		URL:   cfg.Telegram.APIURL,
		Token: cfg.Telegram.Token,
		Poller: BuildPoller(PollerOptions{
			RunMode:                cfg.Telegram.RunMode,
			LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		}),
		Client:      client,
		Synchronous: true,
		Offline:     opts.Offline,
		OnError: func(err error, c tele.Context) {
			attrs := []slog.Attr{slog.String("err", sanitizeToken(err.Error()))}
			if c != nil {
				attrs = append(attrs, slog.Int("update_id", c.Update().ID))
			}
			logger.TG.LogAttrs(context.Background(), slog.LevelError, "bot error", attrs...)
		},
	}

	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", sanitizeErr(err))
	}
	return bot, nil
}
