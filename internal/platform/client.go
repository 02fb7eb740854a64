// Package platform is a client for the workflow platform API: fetching a
// workflow and its graph definition, and patching the definition under an
// optimistic lock.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowctl/flowctl/internal/debug"
	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/telemetry"
)

const (
	workflowsPath = "/platform/v1/workflows"
	scopeName     = "github.com/flowctl/flowctl/platform"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 32 << 20

	// The breaker opens after this many consecutive transient failures and
	// lets a single trial request through once breakerTimeout has passed.
	breakerThreshold = 5
	breakerTimeout   = 30 * time.Second
)

// Client provides HTTP access to the workflow platform API.
type Client struct {
	BaseURL         string
	APIKey          string
	RetryMaxElapsed time.Duration
	HTTPClient      *http.Client

	tracer  trace.Tracer
	breaker *gobreaker.CircuitBreaker
}

// NewClient validates cfg and creates a client for it.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		RetryMaxElapsed: cfg.RetryMaxElapsed,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tracer:  telemetry.Tracer(scopeName),
		breaker: newBreaker(cfg.BaseURL),
	}, nil
}

// newBreaker trips on network failures, 429 and 5xx. Other API errors are
// answers from a healthy server and count as successes.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			debug.Logf("circuit breaker %s: %s -> %s\n", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
	})
}

// GetDefinition fetches a workflow together with its graph definition.
func (c *Client) GetDefinition(ctx context.Context, id string) (*flowdef.Workflow, error) {
	data, err := c.doRequest(ctx, http.MethodGet, workflowPath(id)+"/definition", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch workflow definition %s: %w", id, err)
	}
	wf, err := decodeWorkflow(data)
	if err != nil {
		return nil, err
	}
	if !isJSONObject(wf.Definition) {
		return nil, &flowdef.ParseError{Msg: "workflow definition missing in response"}
	}
	return wf, nil
}

// GetWorkflow fetches workflow metadata, including the current lock version.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*flowdef.Workflow, error) {
	data, err := c.doRequest(ctx, http.MethodGet, workflowPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch workflow %s: %w", id, err)
	}
	return decodeWorkflow(data)
}

// UpdateDefinition replaces the workflow's definition. The server rejects the
// write with 409 when expected is no longer the current lock version.
func (c *Client) UpdateDefinition(ctx context.Context, id string, def json.RawMessage, expected flowdef.LockVersion) (*flowdef.Workflow, error) {
	payload := map[string]any{
		"workflow": map[string]any{
			"definition":   def,
			"lock_version": expected,
		},
	}
	data, err := c.doRequest(ctx, http.MethodPatch, workflowPath(id), payload)
	if err != nil {
		return nil, fmt.Errorf("update workflow %s: %w", id, err)
	}
	return decodeWorkflow(data)
}

func workflowPath(id string) string {
	return workflowsPath + "/" + url.PathEscape(id)
}

// doRequest performs one API call and returns the response's "data" member,
// or the whole body when there is no envelope. GET requests are retried on
// network errors, 429 and 5xx; writes never are.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = flowdef.Encode(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	tracer := c.tracer
	if tracer == nil {
		tracer = telemetry.Tracer(scopeName)
	}
	ctx, span := tracer.Start(ctx, "platform."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	var respBody []byte
	send := func() error {
		var err error
		respBody, err = c.guardedSend(ctx, method, path, payload)
		return err
	}

	var err error
	if method == http.MethodGet && c.RetryMaxElapsed > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = c.RetryMaxElapsed
		err = backoff.Retry(func() error {
			err := send()
			if err != nil && retryable(err) {
				debug.Logf("retrying %s %s: %v\n", method, path, err)
				return err
			}
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}, backoff.WithContext(bo, ctx))
	} else {
		err = send()
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		span.SetAttributes(attribute.Int("http.response.status_code", apiErr.Status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return unwrapData(respBody), nil
}

// guardedSend runs send through the circuit breaker when the client has one.
func (c *Client) guardedSend(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.breaker == nil {
		return c.send(ctx, method, path, payload)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &NetworkError{URL: c.BaseURL + path, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// send performs a single HTTP round trip and returns the body of a 2xx
// response.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	fullURL := c.BaseURL + path

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	debug.Logf("%s %s\n", method, fullURL)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &NetworkError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{URL: fullURL, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(method, path, resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// retryable reports whether a failed GET is worth repeating.
func retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return false
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return false
		}
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return false
}

func unwrapData(body []byte) json.RawMessage {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		if data, ok := envelope["data"]; ok {
			return data
		}
	}
	return json.RawMessage(body)
}

func decodeWorkflow(data json.RawMessage) (*flowdef.Workflow, error) {
	var wf flowdef.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, &flowdef.ParseError{Msg: "unexpected workflow response", Err: err}
	}
	return &wf, nil
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
