package core

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmgender/pkg/tracing"
)

// Doer sends HTTP requests. *http.Client and *ServiceClient implement it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ServiceClient sends the requests of one external service. Each service
// has its own rate limit, and Overpass and Wikidata both expect a
// descriptive User-Agent.
type ServiceClient struct {
	service   string
	operation string
	userAgent string
	limiter   *rate.Limiter
	client    *http.Client
}

// NewServiceClient creates a client for service allowing rps requests per
// second with the given burst.
func NewServiceClient(service, operation, userAgent string, rps float64, burst int) *ServiceClient {
	return &ServiceClient{
		service:   service,
		operation: operation,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(rps), max(burst, 1)),
		client:    DefaultClient,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *ServiceClient) WithHTTPClient(client *http.Client) *ServiceClient {
	c.client = client
	return c
}

// Service returns the name used in metrics and spans.
func (c *ServiceClient) Service() string {
	return c.service
}

// throttle blocks until the limiter grants a token. Waits are reported,
// immediate grants are not.
func (c *ServiceClient) throttle(req *http.Request, monitor *MonitoringHooks) error {
	if c.limiter.Allow() {
		return nil
	}

	ctx := req.Context()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrRateLimitService, c.service)),
	)
	start := time.Now()
	err := c.limiter.Wait(ctx)
	waited := time.Since(start)

	tracing.SetAttributes(ctx, attribute.Int64(tracing.AttrRateLimitWaitMs, waited.Milliseconds()))
	monitor.rateLimited(c.service, waited)
	if err != nil {
		monitor.failed(c.service, "rate_limit_wait_error")
	}
	return err
}

// Do waits for the rate limiter, then sends req.
func (c *ServiceClient) Do(req *http.Request) (*http.Response, error) {
	monitor := observe()
	monitor.request(c.service, c.operation)

	req.Header.Set("User-Agent", c.userAgent)
	if err := c.throttle(req, monitor); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	monitor.response(c.service, c.operation, time.Since(start), err == nil && resp.StatusCode < http.StatusBadRequest)
	if err != nil {
		monitor.failed(c.service, "request_error")
	}
	return resp, err
}
