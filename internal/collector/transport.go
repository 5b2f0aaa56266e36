package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const maxBodyBytes = 10 << 20

// Response is the status and raw body of an upstream GET.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs upstream GET requests. Adapters depend only on this.
type Transport interface {
	Get(ctx context.Context, rawURL string, params url.Values, headers map[string]string, timeout time.Duration) (*Response, error)
}

// StatusError is returned for a non-success upstream status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("GET %s: status %d, body: %s", e.URL, e.StatusCode, body)
}

// HTTPTransport implements Transport over net/http with optional proxy support.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport creates a transport. An invalid proxy URL is ignored.
func NewHTTPTransport(proxyURL string) *HTTPTransport {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPTransport{
		Client: &http.Client{Transport: transport},
	}
}

func (t *HTTPTransport) Get(ctx context.Context, rawURL string, params url.Values, headers map[string]string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u.String(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// get performs a request and turns non-2xx statuses into a *StatusError.
func get(ctx context.Context, t Transport, rawURL string, params url.Values, headers map[string]string, timeout time.Duration) ([]byte, error) {
	resp, err := t.Get(ctx, rawURL, params, headers, timeout)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp.Body, nil
}
