package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

// Timing describes one completed resource load.
type Timing struct {
	URL          string
	Status       int
	TransferSize int64 // Bytes read from the network, 0 when served from cache
	DecodedSize  int64 // Bytes of the body handed to the caller
	Duration     time.Duration
}

// BodyCache stores fetched bodies by URL.
type BodyCache interface {
	Get(key string) (any, bool)
	Set(key string, data any)
}

// ScriptCheck is the outcome of fetching a worker script.
type ScriptCheck struct {
	Status      int
	ContentType string
}

// Valid reports whether the script exists and, when a content type was
// sent, is served as JavaScript.
func (s ScriptCheck) Valid() bool {
	if s.Status == http.StatusNotFound {
		return false
	}
	return s.ContentType == "" || strings.Contains(s.ContentType, "javascript")
}

// Client wraps a resty client for probe requests.
type Client struct {
	http     *resty.Client
	logger   *log.Logger
	onTiming func(Timing)
	cache    BodyCache
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimingHook calls fn after every Fetch.
func WithTimingHook(fn func(Timing)) Option {
	return func(c *Client) { c.onTiming = fn }
}

// WithBodyCache serves Fetch from cache when possible and fills it on
// network loads.
func WithBodyCache(bc BodyCache) Option {
	return func(c *Client) { c.cache = bc }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		timeout := c.http.GetClient().Timeout
		c.http = resty.NewWithClient(hc).SetTimeout(timeout)
	}
}

// New creates a probe client.
func New(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetTimeout(10*time.Second).
			SetRetryCount(0).
			SetHeader("User-Agent", "offlinekit-probe"),
		logger: log.Default().WithPrefix("probe"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exists issues a HEAD request and reports whether it returned 2xx.
func (c *Client) Exists(ctx context.Context, url string) (bool, error) {
	resp, err := c.http.R().SetContext(ctx).Head(url)
	if err != nil {
		return false, fmt.Errorf("head %s: %w", url, err)
	}
	return resp.IsSuccess(), nil
}

// CheckScript fetches a worker script the way the runtime does before
// installing it and reports its status and content type.
func (c *Client) CheckScript(ctx context.Context, url string) (ScriptCheck, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Service-Worker", "script").
		Get(url)
	if err != nil {
		return ScriptCheck{}, fmt.Errorf("fetch script %s: %w", url, err)
	}
	return ScriptCheck{
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
	}, nil
}

// Reachable reports whether url answers at all.
func (c *Client) Reachable(ctx context.Context, url string) bool {
	_, err := c.http.R().SetContext(ctx).Head(url)
	return err == nil
}

// Fetch loads url, serving it from the body cache when present. Every call
// reports a Timing to the timing hook.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(url); ok {
			if body, ok := v.([]byte); ok {
				c.report(Timing{URL: url, Status: http.StatusOK, DecodedSize: int64(len(body))})
				return body, nil
			}
		}
	}

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	body := resp.Body()
	c.report(Timing{
		URL:          url,
		Status:       resp.StatusCode(),
		TransferSize: resp.Size(),
		DecodedSize:  int64(len(body)),
		Duration:     resp.Time(),
	})
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status())
	}
	if c.cache != nil {
		c.cache.Set(url, body)
	}
	return body, nil
}

func (c *Client) report(t Timing) {
	c.logger.Debug("resource loaded", "url", t.URL, "status", t.Status, "transfer", t.TransferSize)
	if c.onTiming != nil {
		c.onTiming(t)
	}
}
