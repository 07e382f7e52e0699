// Package httpclient wraps the service's REST API for Go consumers: JSON in
// and out, cookie-based session credentials, retry with backoff on transient
// failures, and a single interception point for authentication expiry.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

const baseURLEnv = "CONNECTHUB_API_URL"

// APIError is returned for every non-2xx response, body preserved verbatim.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Status)
}

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	conf    Config

	// OnUnauthorized fires once per 401 response, before the *APIError is
	// returned unchanged. Typical use: trigger re-authentication.
	OnUnauthorized func(*APIError)
}

// NewFromEnv reads the base endpoint from CONNECTHUB_API_URL.
func NewFromEnv() (*Client, error) {
	base := os.Getenv(baseURLEnv)
	if base == "" {
		return nil, fmt.Errorf("%s not set", baseURLEnv)
	}
	return New(Config{BaseURL: base})
}

func New(conf Config) (*Client, error) {
	base, err := url.Parse(conf.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if conf.Timeout == 0 {
		conf.Timeout = 15 * time.Second
	}
	if conf.RetryMaxElapsed == 0 {
		conf.RetryMaxElapsed = 30 * time.Second
	}
	if conf.MaxIdleConns == 0 {
		conf.MaxIdleConns = 32
	}

	// the jar carries the session cookie across requests
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    conf.MaxIdleConns,
		IdleConnTimeout: conf.IdleConnTimeout,
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "connecthub-api"})

	return &Client{
		base:    base,
		http:    &http.Client{Transport: tr, Timeout: conf.Timeout, Jar: jar},
		breaker: cb,
		conf:    conf,
	}, nil
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	resp, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Body: raw}
		if resp.StatusCode == http.StatusUnauthorized && c.OnUnauthorized != nil {
			c.OnUnauthorized(apiErr)
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do runs the request behind the circuit breaker, retrying transport errors
// and 5xx responses with exponential backoff. 4xx responses are final.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	u := c.base.JoinPath(strings.Split(strings.Trim(path, "/"), "/")...)

	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.http.Do(req)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		r := res.(*http.Response)
		if r.StatusCode >= 500 {
			raw, _ := io.ReadAll(r.Body)
			r.Body.Close()
			// retryable; surfaces as the final error once backoff gives up
			return &APIError{Status: r.StatusCode, Body: raw}
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.conf.RetryMaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}
