package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"

	"github.com/google/uuid"
)

// Endpoint names, used for breakers, metrics and logs.
const (
	EndpointSymbols   = "symbols"
	EndpointPrices    = "prices"
	EndpointTechnical = "technical"
	EndpointLSTM      = "lstm"
	EndpointSentiment = "sentiment"
	EndpointOnchain   = "onchain"
	EndpointSignal    = "signal"
)

var endpoints = []string{
	EndpointSymbols, EndpointPrices, EndpointTechnical, EndpointLSTM,
	EndpointSentiment, EndpointOnchain, EndpointSignal,
}

const maxBodyBytes = 16 << 20

// Config describes the backend and the retry policy.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	UserAgent      string

	BreakerFailures  int
	BreakerSuccesses int
	BreakerTimeout   time.Duration
}

// ConfigFrom maps the application config onto the gateway's.
func ConfigFrom(c infra.APIConfig) Config {
	return Config{
		BaseURL:          c.BaseURL,
		Timeout:          c.Timeout,
		MaxRetries:       c.MaxRetries,
		RetryBaseDelay:   c.RetryBaseDelay,
		UserAgent:        c.UserAgent,
		BreakerFailures:  c.Breaker.FailureThreshold,
		BreakerSuccesses: c.Breaker.SuccessThreshold,
		BreakerTimeout:   c.Breaker.Timeout,
	}
}

// Observer records the outcome of every backend call.
type Observer interface {
	ObserveRequest(endpoint string, latency time.Duration, err error)
	ObserveRetry(endpoint string)
	ObserveBreaker(endpoint string, open bool)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(g *Gateway) {
		if o != nil {
			g.observers = append(g.observers, o)
		}
	}
}

// WithLogger sets the logger for failed calls.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// Gateway fetches backend payloads and normalizes them into domain types.
// Failures never leave the gateway: every fetch degrades to an absent result.
type Gateway struct {
	base      *url.URL
	cfg       Config
	client    *http.Client
	backoff   infra.Backoff
	breakers  map[string]*infra.CircuitBreaker
	observers []Observer
	logger    *slog.Logger
}

// New creates a Gateway. An unparsable BaseURL is a configuration error.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing scheme or host in %q", cfg.BaseURL)
		}
		return nil, &domain.ConfigError{Field: "api.base_url", Err: err}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = infra.DefaultUserAgent
	}

	g := &Gateway{
		base:    base,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		backoff: infra.Backoff{Base: cfg.RetryBaseDelay, Max: 10 * cfg.RetryBaseDelay},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("module", "gateway")

	g.breakers = make(map[string]*infra.CircuitBreaker, len(endpoints))
	for _, ep := range endpoints {
		g.breakers[ep] = infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
			Name:             ep,
			FailureThreshold: cfg.BreakerFailures,
			SuccessThreshold: cfg.BreakerSuccesses,
			Timeout:          cfg.BreakerTimeout,
			OnStateChange: func(name string, s infra.BreakerState) {
				for _, o := range g.observers {
					o.ObserveBreaker(name, s == infra.StateOpen)
				}
			},
		})
	}
	return g, nil
}

// BreakerState reports the breaker for endpoint. Unknown endpoints read as closed.
func (g *Gateway) BreakerState(endpoint string) infra.BreakerState {
	if cb, ok := g.breakers[endpoint]; ok {
		return cb.GetState()
	}
	return infra.StateClosed
}

// getJSON performs GET base+path?query with retries and decodes the body into a
// loosely typed value (numbers kept as json.Number).
func (g *Gateway) getJSON(ctx context.Context, endpoint, path string, query url.Values) (any, error) {
	cb := g.breakers[endpoint]
	if cb != nil && !cb.Allow() {
		return nil, fmt.Errorf("%s: %w", endpoint, domain.ErrCircuitOpen)
	}

	u := *g.base
	u.Path = u.Path + path
	u.RawQuery = query.Encode()

	start := time.Now()
	var (
		body    any
		lastErr error
	)
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoff.Delay(attempt - 1)
			g.logger.Debug("Retrying backend call",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			for _, o := range g.observers {
				o.ObserveRetry(endpoint)
			}
			select {
			case <-ctx.Done():
				lastErr = domain.NewFatalNetworkError(endpoint, ctx.Err())
			case <-time.After(delay):
			}
			if ctx.Err() != nil {
				break
			}
		}

		body, lastErr = g.do(ctx, endpoint, u.String())
		if lastErr == nil || !domain.IsRetriable(lastErr) {
			break
		}
	}

	// Only outages count against the breaker; a 404 or a bad payload means the server is up.
	if cb != nil {
		if lastErr != nil && domain.IsRetriable(lastErr) {
			cb.RecordFailure()
		} else {
			cb.RecordSuccess()
		}
	}
	for _, o := range g.observers {
		o.ObserveRequest(endpoint, time.Since(start), lastErr)
	}
	return body, lastErr
}

func (g *Gateway) do(ctx context.Context, endpoint, rawURL string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewFatalNetworkError(endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.cfg.UserAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewFatalNetworkError(endpoint, err)
		}
		return nil, domain.NewNetworkError(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &domain.StatusError{Op: endpoint, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewNetworkError(endpoint, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", endpoint, domain.ErrMalformedBody, err)
	}
	return v, nil
}

// warn logs a failed call at warn level. Open breakers are logged at debug to avoid flooding.
func (g *Gateway) warn(endpoint, id string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, domain.ErrCircuitOpen) {
		level = slog.LevelDebug
	}
	g.logger.Log(context.Background(), level, "Backend call failed, treating as absent",
		slog.String("endpoint", endpoint),
		slog.String("id", id),
		slog.Any("error", err),
	)
}
