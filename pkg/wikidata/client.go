package wikidata

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/tracing"
)

// Client downloads entity documents from Special:EntityData.
type Client struct {
	baseURL string
	client  core.Doer
	retry   core.RetryOptions
}

// NewClient creates a client for the Special:EntityData endpoint at baseURL.
func NewClient(baseURL string, client core.Doer) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		client:  client,
		retry:   core.DefaultRetryOptions,
	}
}

// WithRetryOptions overrides the retry policy.
func (c *Client) WithRetryOptions(options core.RetryOptions) *Client {
	c.retry = options
	return c
}

// URL returns the address of the document of id.
func (c *Client) URL(id string) string {
	return c.baseURL + id + ".json"
}

// Fetch downloads the document of id. A missing entity is reported as a
// NOT_FOUND error, an unreadable one as PARSE_ERROR.
func (c *Client) Fetch(ctx context.Context, id string) ([]byte, error) {
	if !ValidIdentifier(id) {
		return nil, core.Errorf(core.ErrInvalidIdentifier, "invalid Wikidata identifier %q", id)
	}

	url := c.URL(id)
	factory := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := core.WithRetry(ctx, tracing.ServiceWikidata, factory, c.client, c.retry)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError(core.ErrNetworkError, "reading wikidata response").WithPath(url).Wrap(err)
	}
	if _, err := DecodeDocument(bytes.NewReader(raw)); err != nil {
		return nil, core.ParseFailure(url, err)
	}
	return raw, nil
}
