package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

const maxResponseBytes = 8 << 20

type Operation struct {
	Name      string         `json:"operationName,omitempty"`
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Observer receives one call per round trip; outcome is ok, graphql_error or transport_error.
type Observer func(operation string, took time.Duration, outcome string)

type Options struct {
	Endpoint        string
	Timeout         time.Duration
	HTTPClient      *http.Client
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Observer        Observer
}

type Client struct {
	endpoint string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	observe  Observer
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graphql",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
	return &Client{endpoint: opts.Endpoint, http: hc, breaker: cb, observe: opts.Observer}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Do posts op and decodes data into out. The token goes into Authorization
// as-is, without a scheme prefix. Server-reported errors come back as Errors;
// only transport failures count against the circuit breaker.
func (c *Client) Do(ctx context.Context, token string, op Operation, out any) error {
	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, token, op)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrBreakerOpen, err)
		}
		c.report(op.Name, start, "transport_error")
		return err
	}
	resp := res.(*response)
	if len(resp.Errors) > 0 {
		c.report(op.Name, start, "graphql_error")
		return resp.Errors
	}
	c.report(op.Name, start, "ok")
	if out == nil {
		return nil
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrTransport, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, token string, op Operation) (*response, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer httpResp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	var resp response
	decodeErr := json.Unmarshal(raw, &resp)
	if httpResp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c.endpoint)
	}
	if decodeErr == nil && len(resp.Errors) > 0 {
		// GraphQL servers may pair errors with 4xx statuses; the error array wins.
		return &resp, nil
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrTransport, httpResp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, decodeErr)
	}
	return &resp, nil
}

func (c *Client) report(op string, start time.Time, outcome string) {
	if c.observe == nil {
		return
	}
	if op == "" {
		op = "anonymous"
	}
	c.observe(op, time.Since(start), outcome)
}
