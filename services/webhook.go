package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"owner-revenue-scraper/models"
	"owner-revenue-scraper/utils"
)

// ErrDelivery is returned when the webhook cannot be reached or answers
// with a non-2xx status.
var ErrDelivery = errors.New("webhook delivery failed")

// WebhookSink posts the whole result set to an HTTP endpoint in one request.
type WebhookSink struct {
	url    string
	client *resty.Client
	logger *utils.Logger
}

func NewWebhookSink(url string, timeout time.Duration, logger *utils.Logger) *WebhookSink {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("content-type", "application/json")
	// one-shot delivery
	client.SetRetryCount(0)
	return &WebhookSink{url: url, client: client, logger: logger}
}

// Deliver sends {"items": items}. An empty slice is sent as an empty array.
func (w *WebhookSink) Deliver(ctx context.Context, items []models.ResultItem) (*models.Payload, error) {
	if items == nil {
		items = []models.ResultItem{}
	}
	payload := &models.Payload{Items: items}

	start := time.Now()
	res, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return payload, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if res.IsError() || res.StatusCode() < 200 || res.StatusCode() > 299 {
		return payload, fmt.Errorf("%w: %s answered %s: %s", ErrDelivery, w.url, res.Status(), truncate(string(res.Body()), 200))
	}

	w.logger.Info("[webhook] delivered %d item(s) in %s (%s)", len(items), time.Since(start).Round(time.Millisecond), res.Status())
	return payload, nil
}
