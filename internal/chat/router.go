// Package chat answers Telegram messages.
package chat

import (
	"errors"
	"log/slog"

	"github.com/m3rciful/sensorbridge/core/logger"
	coretelegram "github.com/m3rciful/sensorbridge/core/telegram"
	tghelpers "github.com/m3rciful/sensorbridge/core/telegram/helpers"
	"github.com/m3rciful/sensorbridge/core/telegram/middleware"
	"github.com/m3rciful/sensorbridge/core/telegram/router"
	"github.com/m3rciful/sensorbridge/internal/archive"
	"github.com/m3rciful/sensorbridge/internal/relay"
	"github.com/m3rciful/sensorbridge/internal/report"

	tele "gopkg.in/telebot.v4"
)

// Router answers chat messages on behalf of the relay.
type Router struct {
	svc *relay.Service
}

// NewRouter returns a Router over svc.
func NewRouter(svc *relay.Service) *Router {
	return &Router{svc: svc}
}

// Rules lists the message rules in priority order.
func (r *Router) Rules() []router.Rule {
	return []router.Rule{
		{Name: "start", Match: router.TextPrefix("/start"), Handle: r.start},
		{Name: "location_attachment", Match: router.HasLocation, Handle: r.locationAttachment},
		{Name: "location", Match: router.TextPrefix(locationPrefix), Handle: r.locationCommand},
		{Name: "status", Match: router.TextEquals("/status"), Handle: r.status},
		{Name: "test", Match: router.TextEquals("/test"), Handle: r.test},
	}
}

// Handler is the full update pipeline, used directly by the webhook endpoint.
func (r *Router) Handler() tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(router.Dispatch(r.Rules()...)))
}

// Routes binds Handler to the endpoints telebot uses when polling.
func (r *Router) Routes() []coretelegram.Route {
	h := r.Handler()
	return []coretelegram.Route{
		{Endpoint: tele.OnText, Handler: h},
		{Endpoint: tele.OnLocation, Handler: h},
	}
}

// Commands registers the command menu entries.
func (r *Router) Commands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", coretelegram.Command{Description: "Welcome and setup help"})
	reg.RegisterCommand("/status", coretelegram.Command{Description: "Current location and sensor data"})
	reg.RegisterCommand("/test", coretelegram.Command{Description: "Store a sample reading"})
	reg.RegisterCommand("/location", coretelegram.Command{Description: "Set location: /location lat,lon name"})
}

func (r *Router) reply(c tele.Context, text string) error {
	r.svc.Notify(tghelpers.BuildContext(c), tghelpers.ChatID(c), text)
	return nil
}

func (r *Router) start(c tele.Context) error {
	var firstName string
	if u := c.Sender(); u != nil {
		firstName = u.FirstName
	}
	return r.reply(c, r.svc.Formatter().Welcome(firstName))
}

func (r *Router) locationAttachment(c tele.Context) error {
	cmd := attachmentCommand(c)
	loc := r.svc.SetLocation(tghelpers.BuildContext(c), cmd.Lat, cmd.Lon, cmd.Name, archive.SourceAttachment)
	return r.reply(c, r.svc.Formatter().LocationConfirm(loc))
}

func (r *Router) locationCommand(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cmd, err := ParseLocationCommand(c.Text())
	if err != nil {
		logger.Info(ctx, "chat", "location.parse",
			slog.String("status", "rejected"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 128)),
		)
		if errors.Is(err, ErrLocationFormat) {
			return r.reply(c, report.LocationFormatError)
		}
		return r.reply(c, report.LocationParseError)
	}
	loc := r.svc.SetLocation(ctx, cmd.Lat, cmd.Lon, cmd.Name, archive.SourceCommand)
	return r.reply(c, r.svc.Formatter().LocationConfirm(loc))
}

func (r *Router) status(c tele.Context) error {
	f := r.svc.Formatter()
	return r.reply(c, f.Status(r.svc.Location(), r.svc.Reading(), r.svc.Now()))
}

func (r *Router) test(c tele.Context) error {
	reading := r.svc.StoreTestReading(tghelpers.BuildContext(c))
	return r.reply(c, r.svc.Formatter().Test(reading))
}
