package carrier

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fulfillment-service/config"
	"fulfillment-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sleeper waits between attempts. It must return early when ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client talks to the carrier's XML REST API. Its configuration is copied
// at construction and never changes afterwards.
type Client struct {
	cfg        config.CarrierConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	sleep      Sleeper
}

type Option func(*Client)

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

func NewClient(cfg config.CarrierConfig, opts ...Option) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 15 * time.Second
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    limiter,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LabelFormat is the configured default label layout.
func (c *Client) LabelFormat() string {
	return c.cfg.LabelFormat
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// backoff returns the wait before the given attempt (2-based).
func (c *Client) backoff(attempt int) time.Duration {
	return c.cfg.BaseDelay << (attempt - 2)
}

// post sends payload and retries transport failures, attempt timeouts and
// 5xx answers with exponential backoff. A 4xx answer is returned at once.
func (c *Client) post(ctx context.Context, operation string, payload interface{}) (*response, error) {
	ctx, span := util.StartSpan(ctx, "carrier."+operation,
		attribute.Int("carrier.max_attempts", c.cfg.MaxAttempts),
	)
	defer span.End()

	body, err := xml.Marshal(payload)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	logger := util.LoggerFrom(ctx)
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt)
			logger.Warn("Retrying carrier request",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := c.sleep(ctx, delay); err != nil {
				util.RecordError(span, err)
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			util.RecordError(span, err)
			return nil, err
		}

		resp, err := c.attempt(ctx, operation, body)
		if err == nil {
			span.SetAttributes(attribute.Int("carrier.attempts", attempt))
			return resp, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			util.RecordError(span, err)
			return nil, err
		}
		if ctx.Err() != nil {
			util.RecordError(span, ctx.Err())
			return nil, ctx.Err()
		}
		lastErr = err
	}

	err = &RetryError{Operation: operation, Attempts: c.cfg.MaxAttempts, Last: lastErr}
	util.RecordError(span, err)
	return nil, err
}

func (c *Client) attempt(ctx context.Context, operation string, body []byte) (*response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.CarrierRequestLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		util.CarrierRequestsTotal.WithLabelValues(operation, "transport_error").Inc()
		return nil, fmt.Errorf("carrier request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		util.CarrierRequestsTotal.WithLabelValues(operation, "transport_error").Inc()
		return nil, fmt.Errorf("failed to read carrier response: %w", err)
	}

	if resp.StatusCode >= 400 {
		outcome := "client_error"
		if resp.StatusCode >= 500 {
			outcome = "server_error"
		}
		util.CarrierRequestsTotal.WithLabelValues(operation, outcome).Inc()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: preview(data)}
	}

	util.CarrierRequestsTotal.WithLabelValues(operation, "ok").Inc()
	return &response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
