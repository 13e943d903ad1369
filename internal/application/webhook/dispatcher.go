package webhookapp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/webhook"
)

// Delivery request headers
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEventType = "X-Event-Type"
)

// ErrDeliveryFailed is returned when every delivery attempt for one
// trigger has failed
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// Config holds delivery settings
type Config struct {
	DeliveryTimeout time.Duration
	TestTimeout     time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	UserAgent       string
}

// Dispatcher delivers signed event payloads to webhook endpoints. Each
// HTTP attempt is recorded as one immutable log row and one trigger on
// the webhook's statistics.
type Dispatcher struct {
	webhooks webhook.Repository
	logs     webhook.LogRepository
	client   *http.Client
	logger   *zap.Logger
	cfg      Config
}

// NewDispatcher creates a webhook dispatcher
func NewDispatcher(webhooks webhook.Repository, logs webhook.LogRepository, logger *zap.Logger, cfg Config) *Dispatcher {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "catalogd-webhook/1.0"
	}
	return &Dispatcher{
		webhooks: webhooks,
		logs:     logs,
		client:   &http.Client{},
		logger:   logger.Named("webhook_dispatcher"),
		cfg:      cfg,
	}
}

// Deliver posts the body to the endpoint, retrying on failure with a
// fixed delay up to the configured attempt limit. Every attempt writes
// a log row and updates trigger statistics. Returns ErrDeliveryFailed
// once all attempts are spent.
func (d *Dispatcher) Deliver(ctx context.Context, wh *webhook.Webhook, eventType webhook.EventType, body []byte) error {
	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.cfg.RetryDelay):
			}
		}

		log := d.attempt(ctx, wh, eventType, body, attempt, d.cfg.DeliveryTimeout)
		d.record(ctx, wh, log)

		if log.Success {
			return nil
		}
		d.logger.Warn("Webhook delivery attempt failed",
			zap.String("webhook_id", wh.ID.String()),
			zap.String("url", wh.URL),
			zap.Int("attempt", attempt),
			zap.Int("status_code", log.StatusCode),
			zap.String("error", log.Error),
		)
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrDeliveryFailed, wh.URL, d.cfg.MaxRetries)
}

// Test sends a one-shot delivery with a short timeout and returns the
// attempt log. Test pings are logged but excluded from trigger
// statistics.
func (d *Dispatcher) Test(ctx context.Context, wh *webhook.Webhook, body []byte) (*webhook.Log, error) {
	log := d.attempt(ctx, wh, wh.EventType, body, 0, d.cfg.TestTimeout)
	if err := d.logs.Create(ctx, log); err != nil {
		d.logger.Error("Failed to persist webhook test log",
			zap.String("webhook_id", wh.ID.String()),
			zap.Error(err),
		)
	}
	return log, nil
}

// attempt performs one signed POST and builds its log row
func (d *Dispatcher) attempt(ctx context.Context, wh *webhook.Webhook, eventType webhook.EventType, body []byte, retryCount int, timeout time.Duration) *webhook.Log {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return webhook.NewLog(wh.ID, eventType, body, 0, "", time.Since(start), err, retryCount)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set(HeaderSignature, ComputeSignature(wh.Secret, body))
	req.Header.Set(HeaderEventType, string(eventType))

	resp, err := d.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return webhook.NewLog(wh.ID, eventType, body, 0, "", elapsed, err, retryCount)
	}
	defer resp.Body.Close()

	// Read a bounded prefix; the log keeps at most
	// webhook.MaxResponseBodyLength anyway
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, webhook.MaxResponseBodyLength+1))

	var deliveryErr error
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		deliveryErr = fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return webhook.NewLog(wh.ID, eventType, body, resp.StatusCode, string(respBody), elapsed, deliveryErr, retryCount)
}

// record persists the attempt log and trigger statistics
func (d *Dispatcher) record(ctx context.Context, wh *webhook.Webhook, log *webhook.Log) {
	if err := d.logs.Create(ctx, log); err != nil {
		d.logger.Error("Failed to persist webhook log",
			zap.String("webhook_id", wh.ID.String()),
			zap.Error(err),
		)
	}
	wh.RecordTrigger(log.Success)
	if err := d.webhooks.SaveTriggerStats(ctx, wh); err != nil {
		d.logger.Error("Failed to persist webhook trigger stats",
			zap.String("webhook_id", wh.ID.String()),
			zap.Error(err),
		)
	}
}
