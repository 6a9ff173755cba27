package app

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/m3rciful/sensorbridge/core/logger"
	coretelegram "github.com/m3rciful/sensorbridge/core/telegram"
	"github.com/m3rciful/sensorbridge/internal/chat"
	"github.com/m3rciful/sensorbridge/internal/device"

	tele "gopkg.in/telebot.v4"
)

const (
	tokenPlaceholder = "<BOT_TOKEN>"
	maxUpdateBytes   = 1 << 20
)

func (a *App) webhook(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.cfg.Telegram.Token)) != 1 {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	var upd tele.Update
	if err == nil {
		err = json.Unmarshal(body, &upd)
	}
	if err != nil {
		logger.Warn(r.Context(), "tg", "webhook.decode",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	if upd.Message != nil {
		c := a.bot.NewContext(upd)
		chat.AttachRawLocation(c, body)
		if err := a.updates(c); err != nil {
			http.Error(w, "Error", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	device.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": device.Stamp(now),
		"uptime":    now.Sub(a.started).Seconds(),
	})
}

func (a *App) index(w http.ResponseWriter, _ *http.Request) {
	base := a.cfg.Webhook.PublicURL
	if base == "" {
		base = "https://<your-host>"
	}
	device.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "🚀 ESP32-Telegram sensor relay",
		"status":  "Running",
		"mode":    a.cfg.Telegram.RunMode,
		"endpoints": map[string]string{
			"POST /sensor-data":         "ESP32 posts a sensor reading",
			"GET /get-location":         "ESP32 polls the customer location",
			"POST /webhook/[BOT_TOKEN]": "Telegram webhook",
			"GET /health":               "Health check",
		},
		"webhook_url": base + coretelegram.WebhookPath(tokenPlaceholder),
	})
}
