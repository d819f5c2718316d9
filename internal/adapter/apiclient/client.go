// Package apiclient talks to the splitledger HTTP API.
package apiclient

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

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/adapter/http/middleware"
	"github.com/iho/splitledger/internal/domain"
)

const apiPrefix = "/api/v1"

// Client is a retrying JSON client for the API. Reads and idempotent posts
// are retried on network errors, 429 and 5xx responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	userID     string
	maxRetries uint64
	newBackOff func() backoff.BackOff
	newKey     func() string
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserID sends the X-User-ID header, for servers running without auth.
func WithUserID(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// WithBackOff sets the retry policy.
func WithBackOff(newBackOff func() backoff.BackOff, maxRetries uint64) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
		c.maxRetries = maxRetries
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 15 * time.Second
			return b
		},
		newKey: func() string { return uuid.NewString() },
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response. It unwraps to domain.ErrTransport and to
// the domain error matching the status code, if any.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap exposes the transport sentinel and the mapped domain error.
func (e *APIError) Unwrap() []error {
	errs := []error{domain.ErrTransport}
	switch e.Status {
	case http.StatusBadRequest:
		errs = append(errs, domain.ErrValidation)
	case http.StatusUnauthorized:
		errs = append(errs, domain.ErrUnauthorized)
	case http.StatusForbidden:
		errs = append(errs, domain.ErrForbidden)
	case http.StatusNotFound:
		errs = append(errs, domain.ErrNotFound)
	case http.StatusUnprocessableEntity:
		errs = append(errs, domain.ErrUnknownParticipant)
	}
	return errs
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// do sends one logical request, retrying transient failures. out is decoded
// from any status listed in accept, or from a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any, accept ...int) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("%w: encode request: %v", domain.ErrTransport, err)
		}
	}

	var (
		status  int
		attempt int
	)

	op := func() error {
		attempt++

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrTransport, err))
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if c.userID != "" {
			req.Header.Set(middleware.UserIDHeader, c.userID)
		}
		if idempotencyKey != "" {
			req.Header.Set(middleware.IdempotencyKeyHeader, idempotencyKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrTransport, err))
			}
			c.logger.Warn().Err(err).Int("attempt", attempt).Str("path", path).Msg("request failed, retrying")
			return fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %v", domain.ErrTransport, err)
		}
		status = resp.StatusCode

		if status/100 == 2 || accepts(accept, status) {
			if out == nil || len(raw) == 0 {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: decode response: %v", domain.ErrTransport, err))
			}
			return nil
		}

		apiErr := &APIError{Status: status}
		var errResp dto.ErrorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			apiErr.Message, apiErr.Details = errResp.Error, errResp.Message
		} else {
			apiErr.Message = http.StatusText(status)
		}

		if retryableStatus(status) {
			c.logger.Warn().Int("status", status).Int("attempt", attempt).Str("path", path).Msg("server error, retrying")
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if !errors.Is(err, domain.ErrTransport) {
			err = fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
		return status, err
	}
	return status, nil
}

func accepts(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func contextPath(contextID string, parts ...string) string {
	p := apiPrefix + "/contexts/" + url.PathEscape(contextID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}
