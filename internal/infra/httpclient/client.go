package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
)

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http error status=%d body=%s", e.StatusCode, e.Body)
}

type InstrumentedClient struct {
	Name           string
	BaseURL        string
	DefaultHeaders map[string]string
	Client         *http.Client
	Retry          *RetryConfig
	Underlying     *http.Transport
}

// NewInstrumentedClient builds a client outside the component, e.g. against an httptest server.
func NewInstrumentedClient(name string, cfg *HTTPClientConfig, hc *http.Client) *InstrumentedClient {
	if cfg == nil {
		cfg = &HTTPClientConfig{}
	}
	cfg.applyDefaults()
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &InstrumentedClient{
		Name:           name,
		BaseURL:        cfg.BaseURL,
		DefaultHeaders: cfg.DefaultHeaders,
		Client:         hc,
		Retry:          cfg.Retry,
	}
}

func (ic *InstrumentedClient) buildURL(path string, q map[string]string) (string, error) {
	full := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if path != "" && path[0] != '/' {
			path = "/" + path
		}
		full = ic.BaseURL + path
	}
	u, err := url.Parse(full)
	if err != nil {
		return "", err
	}
	if len(q) > 0 {
		qs := u.Query()
		for k, v := range q {
			qs.Set(k, v)
		}
		u.RawQuery = qs.Encode()
	}
	return u.String(), nil
}

func (ic *InstrumentedClient) newRequest(ctx context.Context, method, path string, query, headers map[string]string, body interface{}) (*http.Request, error) {
	if method == "" {
		method = http.MethodGet
	}
	targetURL, err := ic.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	var (
		payload     []byte
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	case string:
		payload = []byte(b)
	default:
		payload, err = json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		// allow retries to replay the body
		req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(payload)), nil }
	}
	for k, v := range ic.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, */*")
	}
	return req, nil
}

// Fetch performs the request and returns the whole response body. Status >= 400 yields *StatusError.
func (ic *InstrumentedClient) Fetch(ctx context.Context, method, path string, query, headers map[string]string, body interface{}) ([]byte, error) {
	req, err := ic.newRequest(ctx, method, path, query, headers, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := ic.doWithRetry(ctx, req)
	fields := []zap.Field{
		zap.String("client", ic.Name),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		logging.Error(ctx, "http_client_request", append(fields, zap.Error(err))...)
		return nil, err
	}
	defer resp.Body.Close()
	logging.Info(ctx, "http_client_request", append(fields, zap.Int("status", resp.StatusCode))...)

	if resp.StatusCode >= 400 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(slurp))}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

// Do decodes a JSON response into out (nil discards the body).
func (ic *InstrumentedClient) Do(ctx context.Context, method, path string, query, headers map[string]string, body, out interface{}) error {
	raw, err := ic.Fetch(ctx, method, path, query, headers, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (ic *InstrumentedClient) Get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	return ic.Do(ctx, http.MethodGet, path, query, nil, nil, out)
}

func (ic *InstrumentedClient) Post(ctx context.Context, path string, body, out interface{}) error {
	return ic.Do(ctx, http.MethodPost, path, nil, nil, body, out)
}

// doWithRetry retries transport errors and 5xx with exponential backoff. 4xx is returned as-is.
func (ic *InstrumentedClient) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ic.Retry == nil || !ic.Retry.Enabled || ic.Retry.MaxAttempts <= 1 {
		return ic.Client.Do(req)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = ic.Retry.InitialBackoff
	eb.MaxInterval = ic.Retry.MaxBackoff
	eb.Multiplier = ic.Retry.BackoffMultiplier

	attempt := 0
	op := func() (*http.Response, error) {
		attempt++
		r := req
		if attempt > 1 && req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			r = req.Clone(ctx)
			r.Body = b
		}
		resp, err := ic.Client.Do(r)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("server error %d", resp.StatusCode)
		}
		return resp, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(ic.Retry.MaxAttempts)),
	)
}
