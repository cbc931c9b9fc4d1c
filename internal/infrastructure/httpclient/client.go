package httpclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"portfolio_aggregator/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxErrorBodyLen = 256

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets callers match throttling with errors.Is(err, entity.ErrRateLimited).
func (e *StatusError) Unwrap() error {
	if e.StatusCode == fasthttp.StatusTooManyRequests {
		return entity.ErrRateLimited
	}
	return nil
}

// Request is a single outgoing call.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// Client is a thin JSON transport over fasthttp shared by the REST adapters.
type Client struct {
	client  *fasthttp.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout used when the context carries no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRateLimit paces requests with a token bucket. Non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a new Client.
func New(name string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		client:  &fasthttp.Client{Name: "portfolio-aggregator"},
		timeout: 10 * time.Second,
		logger:  logger.Named(name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes the request and returns the body of a 2xx response.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(r.URL)
	method := r.Method
	if method == "" {
		method = fasthttp.MethodGet
	}
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	if len(r.Body) > 0 {
		req.Header.SetContentType("application/json")
		req.SetBody(r.Body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.logger.Debug("Sending request", zap.String("method", method), zap.String("url", redactURL(r.URL)))

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Warn("Request failed", zap.String("url", redactURL(r.URL)), zap.Error(err))
		return nil, fmt.Errorf("failed to execute %s request: %w", method, err)
	}

	body := append([]byte(nil), resp.Body()...)
	status := resp.StatusCode()
	if status < 200 || status > 299 {
		c.logger.Warn("Unexpected status",
			zap.String("url", redactURL(r.URL)),
			zap.Int("statusCode", status),
			zap.ByteString("responseBody", truncate(body)))
		return nil, &StatusError{StatusCode: status, Body: string(truncate(body))}
	}
	return body, nil
}

// GetJSON performs a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, header map[string]string, out any) error {
	body, err := c.Do(ctx, Request{Method: fasthttp.MethodGet, URL: url, Header: header})
	if err != nil {
		return err
	}
	return Decode(body, out)
}

// PostJSON encodes payload as JSON, performs a POST and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, header map[string]string, payload, out any) error {
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	body, err := c.Do(ctx, Request{Method: fasthttp.MethodPost, URL: url, Header: header, Body: raw})
	if err != nil {
		return err
	}
	return Decode(body, out)
}

// Decode unmarshals body into out; failures wrap entity.ErrDecode.
func Decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrDecode, err)
	}
	return nil
}

func truncate(body []byte) []byte {
	if len(body) > maxErrorBodyLen {
		return body[:maxErrorBodyLen]
	}
	return body
}

// redactURL strips the query string, which may carry keys or signatures.
func redactURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
