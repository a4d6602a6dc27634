// Package httpclient sends the CLI's requests to the submit service.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultGetRetries = 2

// ResponseInfo is what the REPL prints for one exchange.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

type Client struct {
	baseURL    string
	http       *http.Client
	getRetries uint64
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		getRetries: defaultGetRetries,
	}
}

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.http.Timeout = timeout
	}
}

// Do sends one request. GETs are retried on transport errors and 502/503/504;
// other methods are sent exactly once.
func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (ResponseInfo, error) {
	var info ResponseInfo
	start := time.Now()
	op := func() error {
		resp, err := c.send(ctx, method, path, headers, body)
		if err != nil {
			return err
		}
		info = resp
		if method == http.MethodGet && retryableStatus(resp.StatusCode) {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return nil
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if method == http.MethodGet {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 200 * time.Millisecond
		policy = backoff.WithMaxRetries(exp, c.getRetries)
	}
	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	info.Duration = time.Since(start)
	if err != nil && info.StatusCode == 0 {
		return info, err
	}
	return info, nil
}

func (c *Client) send(ctx context.Context, method, path string, headers map[string]string, body []byte) (ResponseInfo, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return ResponseInfo{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ResponseInfo{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ResponseInfo{}, fmt.Errorf("read response body: %w", err)
	}
	return ResponseInfo{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
