package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmgender/pkg/tracing"
)

// RetryOptions is the backoff policy of WithRetry.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions is used by the Overpass and Wikidata clients.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// DefaultClient is shared by the service clients. An Overpass query on a
// whole city can run for minutes.
var DefaultClient = &http.Client{
	Timeout: 5 * time.Minute,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// RequestFactory builds the request of one attempt, so POST bodies are
// fresh on every retry.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// backoff hands out the delays between attempts.
type backoff struct {
	next   time.Duration
	max    time.Duration
	factor float64
}

// delay returns the next wait. A server hint longer than the computed
// delay wins, both capped at max.
func (b *backoff) delay(hint time.Duration) time.Duration {
	d := max(b.next, hint)
	if b.max > 0 {
		d = min(d, b.max)
	}
	b.next = time.Duration(float64(b.next) * b.factor)
	if b.max > 0 {
		b.next = min(b.next, b.max)
	}
	return d
}

// retryable reports whether a failed status may succeed later. Overpass
// answers 429 and 504 when its slots are busy. Other client errors mean
// the request itself is wrong.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return status >= http.StatusInternalServerError
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attempt sends one request. On failure, retry tells whether another
// attempt makes sense and hint carries the server's Retry-After.
func attempt(ctx context.Context, service string, factory RequestFactory, client Doer) (resp *http.Response, hint time.Duration, retry bool, err error) {
	req, err := factory(ctx)
	if err != nil {
		return nil, 0, false, NewError(ErrInternalError, "failed to create request").Wrap(err)
	}

	resp, err = client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, false, ctx.Err()
		}
		return nil, 0, true, NewError(ErrNetworkError, "request failed").Wrap(err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, 0, false, nil
	}

	hint = retryAfter(resp)
	_ = resp.Body.Close()
	err = ServiceError(service, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode)).
		WithPath(req.URL.String())
	return nil, hint, retryable(resp.StatusCode), err
}

// WithRetry sends the requests built by factory until one answers 200 OK.
// Network errors, 408, 429 and 5xx responses are retried with exponential
// backoff; any other status fails at once.
func WithRetry(ctx context.Context, service string, factory RequestFactory, client Doer, options RetryOptions) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "http.request "+service,
		trace.WithAttributes(attribute.String(tracing.AttrServiceName, service)),
	)
	defer span.End()

	if client == nil {
		client = DefaultClient
	}
	attempts := max(options.MaxAttempts, 1)
	wait := &backoff{next: options.InitialDelay, max: options.MaxDelay, factor: options.Multiplier}
	logger := slog.Default().With("service", service)

	for n := 1; ; n++ {
		resp, hint, retry, err := attempt(ctx, service, factory, client)
		if err == nil {
			span.SetAttributes(
				attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
				attribute.Int("http.retry.attempts", n),
			)
			span.SetStatus(codes.Ok, "")
			return resp, nil
		}

		if !retry || n >= attempts {
			span.RecordError(err)
			span.SetAttributes(attribute.Int("http.retry.attempts", n))
			span.SetStatus(codes.Error, "request failed")
			if retry {
				logger.Error("giving up", "attempts", n, "error", err)
			}
			return nil, err
		}

		d := wait.delay(hint)
		logger.Warn("request failed, retrying", "attempt", n, "max_attempts", attempts, "delay", d, "error", err)
		tracing.AddEvent(ctx, "retry_attempt", trace.WithAttributes(
			attribute.Int("attempt", n+1),
			attribute.Int64("delay_ms", d.Milliseconds()),
		))
		observe().retry(service, n+1)

		if err := sleep(ctx, d); err != nil {
			span.SetStatus(codes.Error, "request cancelled")
			return nil, err
		}
	}
}
