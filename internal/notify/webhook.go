package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SoftFusion-Technologies/backend-compras/internal/events"
	"github.com/SoftFusion-Technologies/backend-compras/internal/obs"
	"github.com/SoftFusion-Technologies/backend-compras/internal/resilience"
)

// TaskWebhookDeliver is the task type the worker consumes to drain due
// deliveries without waiting for the next poll tick.
const TaskWebhookDeliver = "webhook:deliver"

// TaskEnqueuer wakes the delivery worker after new rows are scheduled.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher coordinates webhook scheduling and delivery.
type Dispatcher struct {
	Store              Store
	Client             *http.Client
	Tasks              TaskEnqueuer
	Breaker            *resilience.Breaker
	BackoffBaseSec     int
	DefaultMaxAttempts int
	Enabled            bool
	Replay             ReplayProtector
	ReplayTTL          time.Duration
}

// Schedule enqueues deliveries for active endpoints subscribed to the topic.
func (d *Dispatcher) Schedule(ctx context.Context, event events.Event) error {
	if d == nil || !d.Enabled || d.Store == nil {
		return nil
	}
	if strings.TrimSpace(event.Topic) == "" {
		return nil
	}
	endpoints, err := d.Store.ListActiveEndpointsForTopic(ctx, event.Topic)
	if err != nil {
		return err
	}
	var joined error
	scheduled := 0
	for _, ep := range endpoints {
		maxAttempt := d.DefaultMaxAttempts
		if maxAttempt <= 0 {
			maxAttempt = 6
		}
		if _, err := d.Store.EnqueueDelivery(ctx, ep.ID, event.ID, maxAttempt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				continue
			}
			joined = errors.Join(joined, fmt.Errorf("enqueue delivery for %s: %w", ep.ID, err))
			continue
		}
		scheduled++
	}
	if scheduled > 0 && d.Tasks != nil {
		// Best effort wake-up; the worker's poll ticker covers a lost task.
		_, _ = d.Tasks.Enqueue(asynq.NewTask(TaskWebhookDeliver, nil))
	}
	return joined
}

// WorkOnce dequeues eligible deliveries and attempts delivery.
func (d *Dispatcher) WorkOnce(ctx context.Context, batch int) error {
	if d == nil || !d.Enabled || d.Store == nil {
		return nil
	}
	if batch <= 0 {
		batch = 1
	}
	ctx, span := otel.Tracer("notify.Dispatcher").Start(ctx, "Dispatcher.WorkOnce")
	defer span.End()
	span.SetAttributes(attribute.Int("webhook.batch", batch))

	deliveries, err := d.Store.DequeueDueDeliveries(ctx, batch)
	if err != nil {
		span.RecordError(err)
		return err
	}
	for _, del := range deliveries {
		attemptStart := time.Now()
		if d.Breaker != nil && !d.Breaker.Allow(ctx) {
			// Downstream looks unhealthy; push the whole batch out without
			// burning attempts.
			_ = d.Store.MarkFailedWithBackoff(ctx, del.ID, d.nextDelay(del.Attempt), resilience.ErrOpenCircuit.Error())
			continue
		}
		if err := d.Store.MarkDelivering(ctx, del.ID); err != nil {
			continue
		}
		endpoint, err := d.Store.GetEndpoint(ctx, del.EndpointID)
		if err != nil {
			_ = d.failDelivery(ctx, del, fmt.Errorf("load endpoint: %w", err))
			continue
		}
		event, err := d.Store.GetDomainEvent(ctx, del.EventID)
		if err != nil {
			_ = d.failDelivery(ctx, del, fmt.Errorf("load event: %w", err))
			continue
		}
		status, respBody, deliverErr := d.deliver(ctx, endpoint, event, del)
		if d.Breaker != nil {
			d.Breaker.Report(ctx, deliverErr == nil && status >= 200 && status < 300)
		}
		if deliverErr == nil && status >= 200 && status < 300 {
			observeOutcome("delivered", attemptStart)
			if err := d.Store.MarkDelivered(ctx, del.ID, status, respBody); err != nil {
				return err
			}
			continue
		}
		reason := fmt.Sprintf("status=%d err=%v", status, deliverErr)
		if del.Attempt+1 >= del.MaxAttempt {
			observeOutcome("dead", attemptStart)
			_ = d.Store.MarkDead(ctx, del.ID, reason)
			continue
		}
		observeOutcome("failed", attemptStart)
		_ = d.Store.MarkFailedWithBackoff(ctx, del.ID, d.nextDelay(del.Attempt), reason)
	}
	return nil
}

func observeOutcome(result string, start time.Time) {
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if obs.WebhookAttemptLatency != nil {
		obs.WebhookAttemptLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func (d *Dispatcher) nextDelay(attempt int) int {
	base := d.BackoffBaseSec
	if base <= 0 {
		base = 5
	}
	delay := resilience.Backoff(time.Duration(base)*time.Second, attempt+1, 0.2)
	secs := int(delay / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (d *Dispatcher) failDelivery(ctx context.Context, del Delivery, err error) error {
	reason := err.Error()
	if del.Attempt+1 >= del.MaxAttempt {
		if obs.WebhookDeliveriesTotal != nil {
			obs.WebhookDeliveriesTotal.WithLabelValues("dead").Inc()
		}
		return d.Store.MarkDead(ctx, del.ID, reason)
	}
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
	}
	return d.Store.MarkFailedWithBackoff(ctx, del.ID, d.nextDelay(del.Attempt), reason)
}

func (d *Dispatcher) deliver(ctx context.Context, ep Endpoint, ev events.Event, del Delivery) (int, string, error) {
	if d.Client == nil {
		d.Client = HttpClient(5000, false)
	}
	ctx, span := otel.Tracer("notify.Dispatcher").Start(ctx, "Dispatcher.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.endpoint_id", ep.ID.String()),
		attribute.String("webhook.delivery_id", del.ID.String()),
		attribute.String("webhook.topic", ev.Topic),
	)
	if err := validateURL(ep.URL); err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	payload := struct {
		EventID    string          `json:"eventId"`
		Topic      string          `json:"topic"`
		Data       json.RawMessage `json:"data"`
		OccurredAt time.Time       `json:"occurredAt"`
	}{
		EventID:    ev.ID.String(),
		Topic:      ev.Topic,
		Data:       json.RawMessage(ev.Payload),
		OccurredAt: occurred,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	ts := time.Now().Unix()
	if d.Replay != nil && d.ReplayTTL > 0 {
		key := replayKey(ep.ID, ev.ID)
		ok, err := d.Replay.Acquire(ctx, key, d.ReplayTTL)
		if err != nil {
			span.RecordError(err)
			return 0, "", err
		}
		if !ok {
			span.AddEvent("delivery replay prevented")
			return http.StatusOK, "replay-suppressed", nil
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "compras-api-webhooks/1.0")
	eventID := ev.ID.String()
	req.Header.Set("X-Event-ID", eventID)
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", ts))
	req.Header.Set("X-Idempotency-Key", del.ID.String())
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, eventID, body))
	resp, err := d.Client.Do(req)
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, "", err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, string(responseBody), nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// Deliver exposes the low-level delivery routine to allow manual replays and testing.
func (d *Dispatcher) Deliver(ctx context.Context, ep Endpoint, ev events.Event, del Delivery) (int, string, error) {
	return d.deliver(ctx, ep, ev, del)
}

// ComputeSignature calculates the webhook signature for the provided payload. The
// format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HttpClient returns an HTTP client configured for webhook delivery.
func HttpClient(timeoutMs int, insecure bool) *http.Client {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = insecureTLSConfig
	}
	return &http.Client{
		Timeout:   time.Duration(timeoutMs) * time.Millisecond,
		Transport: otelhttp.NewTransport(transport),
	}
}

var insecureTLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec

// ReplayProtector guards against sending duplicate deliveries within a TTL.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

func replayKey(endpointID, eventID uuid.UUID) string {
	return fmt.Sprintf("wh:%s:%s", endpointID, eventID)
}
