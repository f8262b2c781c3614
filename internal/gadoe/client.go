// Package gadoe talks to the Georgia Department of Education download
// portal: per-year directory listings, lightweight existence probes, and
// full-file downloads. URL resolution against the portal's timestamp-
// suffixed naming scheme lives in the Resolver.
package gadoe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"gaenroll/internal/config"
	apperrors "gaenroll/internal/errors"
)

// Client wraps the portal HTTP surface. Every call is rate limited so
// repeated multi-year fetches stay polite toward the public host.
type Client struct {
	http    *resty.Client
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger

	listingTimeout  time.Duration
	probeTimeout    time.Duration
	downloadTimeout time.Duration
}

// NewClient builds a portal client from the source configuration.
func NewClient(cfg config.SourceConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetHeader("User-Agent", cfg.UserAgent)

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	}

	return &Client{
		http:            httpClient,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		limiter:         limiter,
		logger:          logger,
		listingTimeout:  cfg.ListingTimeout,
		probeTimeout:    cfg.ProbeTimeout,
		downloadTimeout: cfg.DownloadTimeout,
	}
}

// YearPath returns the portal path of a year's directory listing.
func (c *Client) YearPath(year int) string {
	return fmt.Sprintf("/%d/", year)
}

// FileURL returns the absolute URL of a file inside a year directory.
func (c *Client) FileURL(year int, filename string) string {
	return fmt.Sprintf("%s/%d/%s", c.baseURL, year, filename)
}

// Listing fetches a year directory's listing HTML. A short timeout keeps
// an unresponsive portal from stalling resolution; callers fall back to
// the known-good table on error.
func (c *Client) Listing(ctx context.Context, year int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listingTimeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		Get(c.YearPath(year))
	if err != nil {
		return nil, apperrors.NewTransportError(
			fmt.Sprintf("failed to fetch directory listing for %d", year), err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, apperrors.NewTransportError(
			fmt.Sprintf("directory listing for %d returned status %d", year, res.StatusCode()), nil).
			WithContext("status", res.StatusCode())
	}

	return res.Body(), nil
}

// Probe checks whether a URL exists with a HEAD request. Probe failures
// are never fatal; they just disqualify a candidate URL.
func (c *Client) Probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return false
	}

	res, err := c.http.R().
		SetContext(ctx).
		Head(url)
	if err != nil {
		c.logger.DebugContext(ctx, "probe failed",
			slog.String("url", url),
			slog.String("error", err.Error()))
		return false
	}

	return res.StatusCode() == http.StatusOK
}

// Download retrieves a resolved file. Non-200 responses and transport
// failures are fatal for the requesting year.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, apperrors.NewTransportError("download failed", err).
			WithContext("url", url)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, apperrors.NewTransportError(
			fmt.Sprintf("download returned status %d", res.StatusCode()), nil).
			WithContext("url", url).
			WithContext("status", res.StatusCode())
	}

	body := res.Body()
	c.logger.InfoContext(ctx, "downloaded file",
		slog.String("url", url),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	return body, nil
}

// wait blocks on the rate limiter, honoring context cancellation.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.NewTransportError("rate limit wait canceled", err)
	}
	return nil
}
