package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/sensorbridge/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
}

// BuildPoller returns the long poller for longpoll mode and nil for webhook
// mode, where updates arrive through the HTTP server instead.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.ToLower(strings.TrimSpace(opts.RunMode)) != coreconfig.RunModeLongpoll {
		return nil
	}
	timeout := defaultLongPollTimeout
	if opts.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{
		Timeout:        timeout,
		AllowedUpdates: []string{"message"},
	}
}
