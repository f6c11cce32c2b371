package httpclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig sizes the breaker in front of one downstream service.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counts. Zero keeps them forever.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// The breaker opens once MinRequests calls have been seen and at least
	// FailureRatio of them failed.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig returns the settings used for the matching
// service: a short open window and a trip after half of five calls fail.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// ErrCircuitOpen is returned without touching the network while open.
var ErrCircuitOpen = gobreaker.ErrOpenState

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "downstream_breaker_state",
	Help: "Breaker state per downstream service: 0 closed, 1 half-open, 2 open",
}, []string{"downstream"})

func stateGaugeValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// CircuitBreakerClient guards a Client. Transport errors and 5xx answers
// count as failures; 4xx answers are returned to the caller untouched.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	name    string
}

func (cfg CircuitBreakerConfig) readyToTrip(c gobreaker.Counts) bool {
	return c.Requests >= cfg.MinRequests &&
		float64(c.TotalFailures) >= cfg.FailureRatio*float64(c.Requests)
}

// NewCircuitBreakerClient wraps client. State changes are logged and
// exported on the downstream_breaker_state gauge.
func NewCircuitBreakerClient(client *Client, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	gauge := breakerState.WithLabelValues(cfg.Name)
	gauge.Set(stateGaugeValue(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			gauge.Set(stateGaugeValue(to))
			level := slog.LevelWarn
			if to == gobreaker.StateClosed {
				level = slog.LevelInfo
			}
			logger.Log(context.Background(), level, "downstream breaker changed state",
				slog.String("downstream", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &CircuitBreakerClient{client: client, breaker: cb, name: cfg.Name}
}

// Do sends req through the breaker. A 5xx answer is consumed and returned
// as the error ParseResponseError builds for it.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, ParseResponseError(resp, c.name)
		}
		return resp, nil
	})
}

// State reports the breaker's current state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
