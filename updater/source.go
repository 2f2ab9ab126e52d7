package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Source fetches schema payloads.
type Source interface {
	Fetch(ctx context.Context) (*schema.Payload, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*schema.Payload, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (*schema.Payload, error) {
	return f(ctx)
}

// Media types understood by HTTPSource.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeMsgpack = "application/msgpack"
)

// SchemaPath is the resource fetched relative to the base URL.
const SchemaPath = "/schema.json"

// HTTPSource fetches <base>/schema.json. Requests go through a circuit
// breaker, so a failing endpoint is not hammered on every refresh.
type HTTPSource struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// BreakerConfig configures the circuit breaker of an HTTPSource.
type BreakerConfig struct {
	MaxRequests uint32        // requests allowed while half-open
	Interval    time.Duration // period after which closed-state counts reset
	Timeout     time.Duration // open-state duration before half-open
	MinRequests uint32        // requests needed before the failure ratio counts
	FailureRate float64       // failure ratio that trips the breaker
}

// DefaultBreakerConfig returns the breaker settings used by NewHTTPSource.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		MinRequests: 3,
		FailureRate: 0.6,
	}
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	client  *http.Client
	breaker BreakerConfig
	logger  *zap.Logger
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(cfg *httpConfig) { cfg.client = c }
}

// WithBreaker sets the circuit breaker configuration.
func WithBreaker(b BreakerConfig) HTTPOption {
	return func(cfg *httpConfig) { cfg.breaker = b }
}

// WithHTTPLogger sets the logger for breaker state changes.
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(cfg *httpConfig) { cfg.logger = l }
}

// NewHTTPSource returns a source for the schema served under baseURL.
func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	cfg := httpConfig{
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: DefaultBreakerConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	url := strings.TrimSuffix(baseURL, "/") + SchemaPath
	s := &HTTPSource{url: url, client: cfg.client, logger: cfg.logger}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "schema " + url,
		MaxRequests: cfg.breaker.MaxRequests,
		Interval:    cfg.breaker.Interval,
		Timeout:     cfg.breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.breaker.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.breaker.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("Schema source circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A cancelled caller says nothing about the endpoint.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return s
}

// URL returns the fetched URL.
func (s *HTTPSource) URL() string {
	return s.url
}

// Fetch downloads and decodes the schema payload.
func (s *HTTPSource) Fetch(ctx context.Context) (*schema.Payload, error) {
	v, err := s.breaker.Execute(func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		if strata.IsTransportError(err) {
			return nil, err
		}
		return nil, strata.NewTransportError("fetch", s.url, err)
	}
	return v.(*schema.Payload), nil
}

func (s *HTTPSource) fetch(ctx context.Context) (*schema.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, strata.NewTransportError("fetch", s.url, err)
	}
	req.Header.Set("Accept", MediaTypeJSON+", "+MediaTypeMsgpack+";q=0.9")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, strata.NewTransportError("fetch", s.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, strata.NewTransportError("fetch", s.url, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var p *schema.Payload
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == MediaTypeMsgpack {
		p, err = schema.DecodeMsgpack(resp.Body)
	} else {
		p, err = schema.DecodeJSON(resp.Body)
	}
	if err != nil {
		return nil, strata.NewTransportError("decode", s.url, err)
	}
	return p, nil
}
