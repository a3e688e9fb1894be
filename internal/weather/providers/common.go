package providers

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

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// maxErrorBody bounds how much of a failed response ends up in errors.
const maxErrorBody = 512

// HTTPClientConfig bundles the HTTP client and the circuit breaker settings
// shared by the providers. Timeouts belong to Client.
type HTTPClientConfig struct {
	Client  *http.Client
	Breaker BreakerConfig
}

// BreakerConfig controls when a provider stops calling a failing upstream.
type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ConsecutiveFailures trips the breaker. Zero uses gobreaker's default.
	ConsecutiveFailures uint32
}

// DefaultBreaker mirrors the settings used for every upstream.
var DefaultBreaker = BreakerConfig{
	MaxRequests:         5,
	Interval:            1 * time.Minute,
	Timeout:             2 * time.Minute,
	ConsecutiveFailures: 5,
}

var (
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// callerGone marks a request abandoned because the caller's context ended.
// It says nothing about the upstream, so the breaker does not count it.
type callerGone struct {
	err error
}

func (e *callerGone) Error() string { return e.err.Error() }
func (e *callerGone) Unwrap() error { return e.err }

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		IsSuccessful: func(err error) bool {
			var gone *callerGone
			return err == nil || errors.As(err, &gone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("providers: %s circuit %s -> %s", name, from, to)
		},
	}
	if n := cfg.ConsecutiveFailures; n > 0 {
		settings.ReadyToTrip = func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= n
		}
	}
	return gobreaker.NewCircuitBreaker(settings)
}

// getJSON performs a single GET through the circuit breaker and decodes the
// body into out. Non-2xx responses become *weather.StatusError, a success
// with no payload becomes weather.ErrEmptyBody. There is no retry.
func getJSON(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, url string, out interface{}) error {
	if cfg.Client == nil {
		return errNoHTTPClient
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			if ctx.Err() != nil {
				return nil, &callerGone{err: ctx.Err()}
			}
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, &callerGone{err: ctx.Err()}
			}
			return nil, readErr
		}

		// Only upstream faults count against the breaker; a 4xx is the
		// caller's problem and is handed back as a value.
		if resp.StatusCode >= 500 {
			return nil, &weather.StatusError{Code: resp.StatusCode, Body: truncate(body)}
		}
		return &payload{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		var gone *callerGone
		if errors.As(err, &gone) {
			return gone.err
		}
		return err
	}

	p, ok := result.(*payload)
	if !ok {
		return fmt.Errorf("unexpected result type from circuit breaker")
	}
	if p.status < 200 || p.status >= 300 {
		return &weather.StatusError{Code: p.status, Body: truncate(p.body)}
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return weather.ErrEmptyBody
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type payload struct {
	status int
	body   []byte
}

func truncate(body []byte) string {
	s := string(bytes.TrimSpace(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%f", v)
}
