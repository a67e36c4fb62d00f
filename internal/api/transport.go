// Package api holds the HTTP transport shared by the collaborator and companion clients:
// the response envelope, the error taxonomy, outbound rate limiting and bounded retries.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verte-zerg/focustimer/internal/logging"
)

const (
	defaultMaxRetries = 2
	defaultBackoff    = 250 * time.Millisecond
	maxBackoff        = 5 * time.Second
	maxBodyBytes      = 1 << 20
)

// TransportConfig configures a Transport.
type TransportConfig struct {
	BaseURL string
	// MaxRetries bounds retries of transient failures. Negative disables retries.
	MaxRetries int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
	// RateLimit is requests per second. Zero means unlimited.
	RateLimit float64
	Burst     int
	// HTTPClient defaults to a client without a timeout; hung calls are bounded by ctx.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Call describes one request.
type Call struct {
	Method string
	Path   string
	Body   any
	Header http.Header
	// Verb names the operation for logs and error classification.
	Verb string
	// FailureMessage is the RequestError message for non-2xx statuses.
	FailureMessage string
	// Idempotent allows retrying a POST after network and server errors. GET, HEAD, PUT
	// and DELETE are always treated as idempotent.
	Idempotent bool
}

func (c Call) idempotent() bool {
	switch c.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return c.Idempotent
}

// Transport performs envelope-based JSON requests.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewTransport creates a Transport.
func NewTransport(cfg TransportConfig) *Transport {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Transport{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logging.OrNop(cfg.Logger),
	}
}

// BaseURL returns the configured base URL.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// Do sends the call and decodes the envelope's data into out (if non-nil).
// Transient failures are retried with exponential backoff up to MaxRetries times. A
// non-idempotent call is only retried after 429, since any other failure may come after
// the server already applied it.
func (t *Transport) Do(ctx context.Context, call Call, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return &NetworkError{Err: err}
	}

	var lastErr error
	backoff := t.backoff
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return lastErr
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := t.do(ctx, call, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !t.retryable(call, err) || ctx.Err() != nil {
			return err
		}
		t.logger.Debug("retrying request",
			zap.String("verb", call.Verb),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return lastErr
}

func (t *Transport) retryable(call Call, err error) bool {
	if call.idempotent() {
		return IsRetryable(err)
	}
	var rerr *RequestError
	return errors.As(err, &rerr) && rerr.Status == http.StatusTooManyRequests
}

func (t *Transport) do(ctx context.Context, call Call, out any) error {
	var body io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", call.Verb, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, t.baseURL+call.Path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", call.Verb, err)
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer func() {
		// Best-effort close.
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := call.FailureMessage
		if msg == "" {
			msg = fmt.Sprintf("Failed to %s", call.Verb)
		}
		return &RequestError{Verb: call.Verb, Status: resp.StatusCode, Message: msg}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &ProtocolError{Verb: call.Verb, Err: err}
	}
	if !env.Success {
		msg := "request failed"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return &ApplicationError{Verb: call.Verb, Message: msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &ProtocolError{Verb: call.Verb, Err: err}
	}
	return nil
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var nerr *NetworkError
	return errors.As(err, &nerr)
}
