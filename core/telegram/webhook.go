package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

// WebhookClient manages the Telegram webhook registration.
type WebhookClient struct {
	rc    *resty.Client
	token string
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// NewWebhookClient builds a client for setWebhook and deleteWebhook calls.
// A nil httpClient uses resty defaults.
func NewWebhookClient(apiURL, token string, httpClient *http.Client) *WebhookClient {
	var rc *resty.Client
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(apiURL, "/"))
	return &WebhookClient{rc: rc, token: token}
}

// Set registers url as the webhook target.
func (w *WebhookClient) Set(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("setWebhook: empty url")
	}
	return w.call(ctx, "setWebhook", map[string]string{
		"url":             url,
		"allowed_updates": `["message"]`,
	})
}

// Delete removes the webhook so getUpdates can be used.
func (w *WebhookClient) Delete(ctx context.Context, dropPending bool) error {
	return w.call(ctx, "deleteWebhook", map[string]string{
		"drop_pending_updates": strconv.FormatBool(dropPending),
	})
}

func (w *WebhookClient) call(ctx context.Context, method string, form map[string]string) error {
	if strings.TrimSpace(w.token) == "" {
		return fmt.Errorf("%s: empty token", method)
	}
	var result, apiErr apiResponse
	resp, err := w.rc.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		SetError(&apiErr).
		Post("/bot" + w.token + "/" + method)
	if err != nil {
		return fmt.Errorf("%s: %w", method, sanitizeErr(err))
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %s (%d)", method, apiErr.Description, resp.StatusCode())
	}
	if !result.OK {
		return fmt.Errorf("%s: %s (%d)", method, result.Description, result.ErrorCode)
	}
	return nil
}
