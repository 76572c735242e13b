package osm

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/tracing"
)

// OverpassClient runs Overpass QL queries.
type OverpassClient struct {
	baseURL string
	client  core.Doer
	retry   core.RetryOptions
	logger  *slog.Logger
}

// NewOverpassClient creates a client posting queries to baseURL.
func NewOverpassClient(baseURL string, client core.Doer, logger *slog.Logger) *OverpassClient {
	if baseURL == "" {
		baseURL = OverpassBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverpassClient{
		baseURL: baseURL,
		client:  client,
		retry:   core.DefaultRetryOptions,
		logger:  logger,
	}
}

// WithRetryOptions overrides the retry policy.
func (c *OverpassClient) WithRetryOptions(options core.RetryOptions) *OverpassClient {
	c.retry = options
	return c
}

// Query runs query and returns the raw response together with its decoded
// form. The raw bytes are what gets stored on disk.
func (c *OverpassClient) Query(ctx context.Context, query string) (raw []byte, doc *Document, err error) {
	ctx, span := tracing.StartSpan(ctx, "overpass.query")
	defer func() { tracing.EndWithError(span, err) }()

	form := url.Values{"data": {query}}.Encode()
	factory := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	c.logger.Debug("running overpass query", "url", c.baseURL, "query", query)

	resp, err := core.WithRetry(ctx, tracing.ServiceOverpass, factory, c.client, c.retry)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, core.NewError(core.ErrNetworkError, "reading overpass response").Wrap(err)
	}

	doc, err = DecodeDocument(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, core.NewError(core.ErrParseError, "overpass returned an invalid document").Wrap(err)
	}
	if doc.Remark != "" {
		return nil, nil, core.Errorf(core.ErrServiceTimeout, "overpass query failed: %s", doc.Remark).
			WithGuidance("Increase overpass.timeout in config.yaml or retry later.")
	}

	span.SetAttributes(attribute.Int("overpass.elements", len(doc.Elements)))
	c.logger.Info("overpass query done", "elements", len(doc.Elements), "bytes", len(raw))
	return raw, doc, nil
}
