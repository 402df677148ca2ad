package client

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

	"github.com/dmitrijs2005/molecheck/internal/logging"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

// errServerStatus marks 5xx responses as breaker failures. The response is
// still handed back to the caller.
var errServerStatus = errors.New("server error status")

// Transport executes HTTP calls against the backend. It is shared by the
// auth and diagnostic clients so they trip the same breaker. Safe for
// concurrent use.
type Transport struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

type Option func(*Transport)

func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.http = c }
}

func WithLogger(l logging.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithBreaker opens the circuit after maxFailures consecutive network or
// 5xx failures and keeps it open for openTimeout.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(t *Transport) {
		t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "molecheck-api",
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		})
	}
}

// NewTransport builds a transport rooted at baseURL. timeout bounds every
// call; it is applied through the request context so it also covers
// reading the body.
func NewTransport(baseURL string, timeout time.Duration, opts ...Option) *Transport {
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		logger:  logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.With("component", "http")
	return t
}

// request describes one call. Exactly one of form and jsonBody may be set.
type request struct {
	method   string
	path     string
	form     url.Values
	jsonBody any
	token    string
}

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// do performs the call. A non-nil error is always a KindNetwork *Error;
// error statuses are returned as a response for the caller to map.
func (t *Transport) do(ctx context.Context, req request) (response, error) {
	if t.breaker == nil {
		return t.roundTrip(ctx, req)
	}

	out, err := t.breaker.Execute(func() (any, error) {
		res, err := t.roundTrip(ctx, req)
		if err == nil && res.status >= 500 {
			return res, errServerStatus
		}
		return res, err
	})
	if errors.Is(err, errServerStatus) {
		return out.(response), nil
	}
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return response{}, e
		}
		t.logger.Warn(ctx, "circuit open", "method", req.method, "path", req.path, "state", t.breaker.State().String())
		return response{}, networkError(err, t.timeout)
	}
	return out.(response), nil
}

func (t *Transport) roundTrip(ctx context.Context, req request) (response, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return response{}, &Error{Kind: KindNetwork, Message: "cannot encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, t.baseURL+req.path, body)
	if err != nil {
		return response{}, &Error{Kind: KindNetwork, Message: "cannot build request", Err: err}
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(RequestIDHeader, requestID)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	start := time.Now()
	log := t.logger.With("request_id", requestID, "method", req.method, "path", req.path)

	resp, err := t.http.Do(httpReq)
	if err != nil {
		log.Warn(ctx, "request failed", "duration", time.Since(start), "error", err)
		return response{}, networkError(err, t.timeout)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Warn(ctx, "reading response failed", "status", resp.StatusCode, "error", err)
		return response{}, networkError(err, t.timeout)
	}

	log.Debug(ctx, "request finished", "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(payload))
	return response{status: resp.StatusCode, body: payload}, nil
}

func encodeBody(req request) (io.Reader, string, error) {
	switch {
	case req.form != nil:
		return strings.NewReader(req.form.Encode()), "application/x-www-form-urlencoded", nil
	case req.jsonBody != nil:
		b, err := json.Marshal(req.jsonBody)
		if err != nil {
			return nil, "", fmt.Errorf("marshal %s %s: %w", req.method, req.path, err)
		}
		return bytes.NewReader(b), "application/json", nil
	default:
		return nil, "", nil
	}
}

// errorMessage extracts a message from an error body. It understands
// {"detail": "..."}, {"detail": [{"msg": "..."}]} and {"message": "..."}
// and returns "" for anything else.
func errorMessage(body []byte) string {
	var env struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}

	if len(env.Detail) > 0 {
		var s string
		if err := json.Unmarshal(env.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(env.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return env.Message
}
