// Package geo annotates peer addresses with coarse location data from the
// ip-api.com free endpoint. Lookups are best effort: any failure yields an
// empty annotation, never an error the caller has to handle.
package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "http://ip-api.com"
	requestTimeout = 3 * time.Second
)

type Client struct {
	httpClient *http.Client
	baseURL    string

	logger *zap.Logger
}

type Opts struct {
	Logger *zap.Logger
	// BaseURL overrides the lookup endpoint, for tests.
	BaseURL string
}

func NewClient(opts Opts) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		logger:     opts.Logger,
	}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Lookup returns "city, country, isp" for an IP address, with empty
// components dropped.
func (c *Client) Lookup(ctx context.Context, ip string) string {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/json/%s?fields=city,country,isp", c.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("geo: lookup failed", zap.Error(err))
		return ""
	}
	defer func() {
		err := res.Body.Close()
		if err != nil {
			c.logger.Debug("geo: failed to close response body", zap.Error(err))
		}
	}()
	if res.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return ""
	}

	js := gjson.ParseBytes(body)
	var parts []string
	for _, field := range []string{"city", "country", "isp"} {
		if v := js.Get(field).String(); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}
