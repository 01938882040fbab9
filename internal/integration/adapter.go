package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Session carries the per-conversation credentials and thread identity
// threaded through sendMessage calls. The adapter itself holds no
// conversation state.
type Session struct {
	ThreadID  string
	AuthToken string
}

// Reply is the extracted assistant response for one chat turn.
type Reply struct {
	Text    string
	Latency time.Duration
}

// Adapter normalizes an IntegrationConfig into callable operations.
type Adapter interface {
	Authenticate(ctx context.Context) (string, error)
	InitThread(ctx context.Context, authToken string) (string, error)
	SendMessage(ctx context.Context, session Session, prompt string, history []HistoryEntry) (Reply, error)
	RequiresAuth() bool
	RequiresThreadInit() bool
}

// HTTPAdapter implements Adapter over buffered HTTP and SSE streaming.
type HTTPAdapter struct {
	config  *IntegrationConfig
	client  *http.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

var _ Adapter = (*HTTPAdapter)(nil)

// AdapterOption configures an HTTPAdapter.
type AdapterOption func(*HTTPAdapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *HTTPAdapter) {
		a.logger = logger
	}
}

// WithTracer sets the adapter tracer.
func WithTracer(tracer trace.Tracer) AdapterOption {
	return func(a *HTTPAdapter) {
		a.tracer = tracer
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) AdapterOption {
	return func(a *HTTPAdapter) {
		a.client = client
	}
}

// WithRetryPolicy overrides the transient-failure retry policy.
func WithRetryPolicy(policy RetryPolicy) AdapterOption {
	return func(a *HTTPAdapter) {
		a.retry = policy
	}
}

// WithRateLimit bounds outbound calls per second against the target.
func WithRateLimit(perSecond float64) AdapterOption {
	return func(a *HTTPAdapter) {
		if perSecond > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(timeout time.Duration) AdapterOption {
	return func(a *HTTPAdapter) {
		a.timeout = timeout
	}
}

// NewHTTPAdapter creates an adapter for the given integration config.
func NewHTTPAdapter(cfg *IntegrationConfig, opts ...AdapterOption) (*HTTPAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &HTTPAdapter{
		config:  cfg,
		client:  &http.Client{},
		retry:   DefaultRetryPolicy(),
		timeout: 60 * time.Second,
		logger:  slog.Default(),
		tracer:  noop.NewTracerProvider().Tracer("humanbound.integration"),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// RequiresAuth reports whether a thread_auth endpoint is configured.
func (a *HTTPAdapter) RequiresAuth() bool {
	return a.config.ThreadAuth != nil
}

// RequiresThreadInit reports whether a thread_init endpoint is configured.
func (a *HTTPAdapter) RequiresThreadInit() bool {
	return a.config.ThreadInit != nil
}

// Authenticate calls the thread_auth endpoint and extracts a credential.
// Auth failures are fatal for the conversation and are not retried.
func (a *HTTPAdapter) Authenticate(ctx context.Context) (string, error) {
	ctx, span := a.tracer.Start(ctx, "integration.authenticate")
	defer span.End()

	if a.config.ThreadAuth == nil {
		return "", nil
	}

	body, status, err := a.call(ctx, a.config.ThreadAuth, templateVars{}, false)
	if err != nil {
		return "", types.WrapError(types.AUTH_FAILED, "authentication request failed", err)
	}
	if status < 200 || status >= 300 {
		return "", types.NewError(types.AUTH_FAILED, fmt.Sprintf("authentication returned status %d", status))
	}

	token, err := extractAuthToken(body)
	if err != nil {
		return "", err
	}

	a.logger.Debug("authenticated against target", "endpoint", a.config.ThreadAuth.Endpoint)
	return token, nil
}

// InitThread calls the thread_init endpoint and extracts a thread id.
// Init failures are fatal for the conversation and are not retried.
func (a *HTTPAdapter) InitThread(ctx context.Context, authToken string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "integration.init_thread")
	defer span.End()

	if a.config.ThreadInit == nil {
		return "", nil
	}

	vars := templateVars{AuthToken: authToken}
	body, status, err := a.call(ctx, a.config.ThreadInit, vars, false)
	if err != nil {
		return "", types.WrapError(types.THREAD_INIT_FAILED, "thread init request failed", err)
	}
	if status < 200 || status >= 300 {
		return "", types.NewError(types.THREAD_INIT_FAILED, fmt.Sprintf("thread init returned status %d", status))
	}

	threadID, err := extractThreadID(body)
	if err != nil {
		return "", err
	}

	a.logger.Debug("thread initialized", "endpoint", a.config.ThreadInit.Endpoint, "thread_id", threadID)
	return threadID, nil
}

// SendMessage substitutes the prompt into the chat payload template,
// performs the call (retrying transient failures), and extracts the reply
// text. Streaming integrations are read as SSE until the terminal marker
// or stream close.
func (a *HTTPAdapter) SendMessage(ctx context.Context, session Session, prompt string, history []HistoryEntry) (Reply, error) {
	ctx, span := a.tracer.Start(ctx, "integration.send_message",
		trace.WithAttributes(attribute.Bool("streaming", a.config.Streaming)))
	defer span.End()

	vars := templateVars{
		Prompt:    prompt,
		ThreadID:  session.ThreadID,
		AuthToken: session.AuthToken,
		History:   history,
	}

	var lastErr error
	for attempt := 0; attempt < a.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := a.retry.Backoff(attempt - 1)
			a.logger.Debug("retrying send", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return Reply{}, types.WrapError(types.RUN_CANCELLED, "send cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		reply, err := a.sendOnce(ctx, vars)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !types.IsRetryable(err) {
			return Reply{}, err
		}
		if ctx.Err() != nil {
			return Reply{}, types.WrapError(types.RUN_CANCELLED, "send cancelled", ctx.Err())
		}
	}

	return Reply{}, lastErr
}

func (a *HTTPAdapter) sendOnce(ctx context.Context, vars templateVars) (Reply, error) {
	started := time.Now()

	spec := a.config.ChatCompletion
	if a.config.Streaming {
		text, err := a.callStreaming(ctx, spec, vars)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: text, Latency: time.Since(started)}, nil
	}

	body, status, err := a.call(ctx, spec, vars, false)
	if err != nil {
		return Reply{}, err
	}
	if status >= 500 || status == http.StatusTooManyRequests {
		return Reply{}, types.NewRetryableError(types.ENDPOINT_CALL_FAILED,
			fmt.Sprintf("endpoint returned status %d: %s", status, truncate(string(body), 200)))
	}
	if status < 200 || status >= 300 {
		return Reply{}, types.NewError(types.ENDPOINT_CALL_FAILED,
			fmt.Sprintf("endpoint returned status %d: %s", status, truncate(string(body), 200)))
	}

	text, err := extractReply(body, spec.ResponsePath)
	if err != nil {
		return Reply{}, err
	}

	return Reply{Text: text, Latency: time.Since(started)}, nil
}

// call performs one HTTP exchange against the given endpoint.
func (a *HTTPAdapter) call(ctx context.Context, spec *EndpointSpec, vars templateVars, stream bool) ([]byte, int, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, 0, types.WrapError(types.RUN_CANCELLED, "rate limiter wait cancelled", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := a.buildRequest(callCtx, spec, vars, stream)
	if err != nil {
		return nil, 0, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, 0, types.WrapRetryableError(types.ENDPOINT_TIMEOUT, "call timed out", err)
		}
		return nil, 0, types.WrapRetryableError(types.ENDPOINT_CALL_FAILED, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, types.WrapRetryableError(types.ENDPOINT_CALL_FAILED, "failed to read response body", err)
	}

	return body, resp.StatusCode, nil
}

// callStreaming performs an SSE exchange, accumulating chunk text until the
// terminal marker or stream close.
func (a *HTTPAdapter) callStreaming(ctx context.Context, spec *EndpointSpec, vars templateVars) (string, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", types.WrapError(types.RUN_CANCELLED, "rate limiter wait cancelled", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := a.buildRequest(callCtx, spec, vars, true)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return "", types.WrapRetryableError(types.ENDPOINT_TIMEOUT, "stream open timed out", err)
		}
		return "", types.WrapRetryableError(types.ENDPOINT_CALL_FAILED, "stream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return "", types.NewRetryableError(types.ENDPOINT_CALL_FAILED,
			fmt.Sprintf("endpoint returned status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", types.NewError(types.ENDPOINT_CALL_FAILED,
			fmt.Sprintf("endpoint returned status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	text, err := readStream(resp.Body, spec.ResponsePath)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return "", types.WrapRetryableError(types.ENDPOINT_TIMEOUT, "no terminal signal within timeout", err)
		}
		return "", types.WrapRetryableError(types.ENDPOINT_CALL_FAILED, "stream read failed", err)
	}

	return text, nil
}

func (a *HTTPAdapter) buildRequest(ctx context.Context, spec *EndpointSpec, vars templateVars, stream bool) (*http.Request, error) {
	var bodyReader io.Reader
	if len(spec.Payload) > 0 {
		rendered := renderPayload(spec.Payload, vars)
		encoded, err := json.Marshal(rendered)
		if err != nil {
			return nil, types.WrapError(types.ENDPOINT_BAD_PAYLOAD, "failed to encode payload", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	method := http.MethodPost
	if bodyReader == nil {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.Endpoint, bodyReader)
	if err != nil {
		return nil, types.WrapError(types.ENDPOINT_CALL_FAILED, "failed to build request", err)
	}

	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range renderHeaders(spec.Headers, vars) {
		req.Header.Set(k, v)
	}

	return req, nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
