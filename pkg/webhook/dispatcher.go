// Package webhook delivers workflow webhook calls out of band. Delivery is
// fire-and-forget relative to the workflow run: the action reports success at
// enqueue time, and the dispatcher bounds concurrency, applies a per-attempt
// timeout and a capped retry policy, and records every outcome in a delivery
// log so operators can audit what the detached calls actually did.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMaxConcurrency = 8
	defaultMaxAttempts    = 3
	defaultTimeout        = 10 * time.Second
	defaultRetryBackoff   = 2 * time.Second
)

// Request is one webhook call to deliver.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
}

// DeliveryStatus tracks a delivery through its lifecycle.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Delivery is the audit record of one webhook call.
type Delivery struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Method      string         `json:"method"`
	Status      DeliveryStatus `json:"status"`
	Attempts    int            `json:"attempts"`
	StatusCode  int            `json:"status_code,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// DeliveryLog records delivery outcomes. Implementations must be safe for
// concurrent use.
type DeliveryLog interface {
	Record(delivery Delivery)
}

// MemoryDeliveryLog keeps deliveries in memory, latest state per id.
type MemoryDeliveryLog struct {
	mu         sync.Mutex
	deliveries map[string]Delivery
}

func NewMemoryDeliveryLog() *MemoryDeliveryLog {
	return &MemoryDeliveryLog{deliveries: make(map[string]Delivery)}
}

func (l *MemoryDeliveryLog) Record(delivery Delivery) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.deliveries[delivery.ID] = delivery
}

func (l *MemoryDeliveryLog) Delivery(id string) (Delivery, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delivery, ok := l.deliveries[id]

	return delivery, ok
}

// Config tunes the dispatcher; zero values fall back to defaults.
type Config struct {
	MaxConcurrency int
	MaxAttempts    int
	Timeout        time.Duration
	RetryBackoff   time.Duration
}

// Dispatcher delivers webhook requests on a bounded worker pool.
type Dispatcher struct {
	client  *http.Client
	log     DeliveryLog
	logger  *slog.Logger
	slots   chan struct{}
	wg      sync.WaitGroup
	config  Config
	backoff func(attempt int) time.Duration
}

func NewDispatcher(config Config, log DeliveryLog, logger *slog.Logger) *Dispatcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaultMaxConcurrency
	}

	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}

	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaultRetryBackoff
	}

	d := &Dispatcher{
		client: &http.Client{Timeout: config.Timeout},
		log:    log,
		logger: logger.With("module", "webhook_dispatcher"),
		slots:  make(chan struct{}, config.MaxConcurrency),
		config: config,
	}
	d.backoff = func(attempt int) time.Duration {
		return time.Duration(attempt) * config.RetryBackoff
	}

	return d
}

// Enqueue accepts a request for delivery and returns its delivery id
// immediately. The caller is never blocked on the outcome; a full worker
// pool only delays the background delivery, not the enqueue.
func (d *Dispatcher) Enqueue(request Request) string {
	delivery := Delivery{
		ID:        uuid.New().String(),
		URL:       request.URL,
		Method:    strings.ToUpper(request.Method),
		Status:    DeliveryPending,
		CreatedAt: time.Now().UTC(),
	}

	if delivery.Method == "" {
		delivery.Method = http.MethodPost
	}

	d.log.Record(delivery)

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		d.slots <- struct{}{}
		defer func() { <-d.slots }()

		d.deliver(request, delivery)
	}()

	return delivery.ID
}

// Wait blocks until every enqueued delivery has finished. Used by shutdown
// and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(request Request, delivery Delivery) {
	var lastErr error

	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(d.backoff(attempt - 1))
		}

		delivery.Attempts = attempt

		statusCode, err := d.attempt(request)
		if err == nil && statusCode < 500 {
			now := time.Now().UTC()
			delivery.Status = DeliveryDelivered
			delivery.StatusCode = statusCode
			delivery.LastError = ""
			delivery.CompletedAt = &now
			d.log.Record(delivery)

			d.logger.Debug("Webhook delivered",
				"delivery_id", delivery.ID, "url", delivery.URL,
				"status_code", statusCode, "attempts", attempt)

			return
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("server returned status %d", statusCode)
			delivery.StatusCode = statusCode
		}

		delivery.LastError = lastErr.Error()
		d.log.Record(delivery)
	}

	now := time.Now().UTC()
	delivery.Status = DeliveryFailed
	delivery.CompletedAt = &now
	d.log.Record(delivery)

	d.logger.Warn("Webhook delivery failed",
		"delivery_id", delivery.ID, "url", delivery.URL,
		"attempts", delivery.Attempts, "error", lastErr)
}

func (d *Dispatcher) attempt(request Request) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
	defer cancel()

	var body *strings.Reader
	if request.Body != "" {
		body = strings.NewReader(request.Body)
	} else {
		body = strings.NewReader("")
	}

	method := strings.ToUpper(request.Method)
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, request.URL, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create webhook request: %w", err)
	}

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode, nil
}
