package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nao1215/relayview/internal/charset"
	"github.com/nao1215/relayview/internal/model"
	"golang.org/x/time/rate"
)

// DefaultMaxBodySize caps the bytes read from one relay response.
const DefaultMaxBodySize int64 = 10 * 1024 * 1024

// Observer receives one call per endpoint trial. It is used for metrics.
type Observer interface {
	ObserveAttempt(endpoint string, statusCode int, duration time.Duration, err error)
}

// Fetcher retrieves documents through relay endpoints.
// A Fetcher is safe for concurrent use; panes of a frameset are fetched
// through the same instance.
type Fetcher struct {
	// endpoints are tried in order.
	endpoints []Endpoint

	// limiters holds one limiter per endpoint, same index.
	limiters []*rate.Limiter

	// client executes relay requests. Its retry count is always zero.
	client *resty.Client

	// resolver chooses and applies the charset.
	resolver *charset.Resolver

	// maxBodySize caps the response size.
	maxBodySize int64

	// observer is notified of every attempt. May be nil.
	observer Observer

	// logger for structured logging.
	logger *slog.Logger

	// rateLimit and rateBurst configure the per-endpoint limiters.
	rateLimit rate.Limit
	rateBurst int

	// httpClient overrides the underlying client when set.
	httpClient *http.Client

	// userAgent is sent when non-empty.
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithEndpoints sets the ordered endpoint list.
func WithEndpoints(endpoints []Endpoint) Option {
	return func(f *Fetcher) {
		f.endpoints = append([]Endpoint(nil), endpoints...)
	}
}

// WithHTTPClient sets the HTTP client used underneath resty, for example
// one from the transport package that dials through SOCKS5.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithResolver sets the charset resolver.
func WithResolver(r *charset.Resolver) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.resolver = r
		}
	}
}

// WithRateLimit throttles each endpoint independently to rps requests per
// second. A non-positive rps means unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(f *Fetcher) {
		if rps <= 0 {
			f.rateLimit, f.rateBurst = rate.Inf, 0
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.rateLimit, f.rateBurst = rate.Limit(rps), burst
	}
}

// WithMaxBodySize sets the response size cap. Non-positive values keep the default.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithObserver registers an attempt observer.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) {
		f.observer = o
	}
}

// WithUserAgent sets the User-Agent header sent to relays.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher. Without options it uses DefaultEndpoints,
// a default charset resolver, and no rate limit.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		endpoints:   append([]Endpoint(nil), DefaultEndpoints...),
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
		rateLimit:   rate.Inf,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.resolver == nil {
		f.resolver = charset.NewResolver(charset.WithLogger(f.logger))
	}

	if f.httpClient != nil {
		f.client = resty.NewWithClient(f.httpClient)
	} else {
		f.client = resty.New()
	}
	f.client.SetRetryCount(0)
	if f.userAgent != "" {
		f.client.SetHeader("User-Agent", f.userAgent)
	}

	f.limiters = make([]*rate.Limiter, len(f.endpoints))
	for i := range f.endpoints {
		f.limiters[i] = rate.NewLimiter(f.rateLimit, f.rateBurst)
	}

	return f
}

// Endpoints returns a copy of the configured endpoints in trial order.
func (f *Fetcher) Endpoints() []Endpoint {
	return append([]Endpoint(nil), f.endpoints...)
}

// Fetch retrieves target through the endpoints in order and returns the
// decoded document from the first one that succeeds.
//
// When every endpoint fails, or the context ends before one succeeds, the
// error is a *RetrievalError.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*model.FetchOutcome, error) {
	if len(f.endpoints) == 0 {
		return nil, &RetrievalError{Target: target, Last: ErrNoEndpoints}
	}

	attempts := make([]model.Attempt, 0, len(f.endpoints))
	var lastErr error

	for i, endpoint := range f.endpoints {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		start := time.Now()
		raw, resp, err := f.try(ctx, i, endpoint, target)
		duration := time.Since(start)

		attempt := model.Attempt{Endpoint: endpoint.Prefix, Duration: duration}
		if resp != nil {
			attempt.StatusCode = resp.StatusCode()
		}
		if f.observer != nil {
			f.observer.ObserveAttempt(endpoint.Prefix, attempt.StatusCode, duration, err)
		}

		if err != nil {
			attempt.Error = err.Error()
			attempts = append(attempts, attempt)
			lastErr = err
			f.logger.Debug("relay endpoint failed",
				"endpoint", endpoint.Prefix,
				"target", target,
				"error", err,
			)
			continue
		}
		attempts = append(attempts, attempt)

		contentType := resp.Header().Get("Content-Type")
		text, candidate := f.resolver.DecodeBody(raw, contentType)

		outcome := &model.FetchOutcome{
			Target:      target,
			Text:        text,
			Charset:     candidate,
			Endpoint:    endpoint.Prefix,
			StatusCode:  resp.StatusCode(),
			ContentType: contentType,
			Attempts:    attempts,
		}
		outcome.ComputeHash(raw)

		f.logger.Debug("relay endpoint succeeded",
			"endpoint", endpoint.Prefix,
			"target", target,
			"charset", candidate.Name,
			"charset_source", candidate.Source.String(),
			"size", outcome.Size,
		)
		return outcome, nil
	}

	return nil, &RetrievalError{
		Target:   target,
		Tried:    len(attempts),
		Last:     lastErr,
		Attempts: attempts,
	}
}

// try performs one relay request and reads its body.
func (f *Fetcher) try(ctx context.Context, index int, endpoint Endpoint, target string) ([]byte, *resty.Response, error) {
	if err := f.limiters[index].Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(endpoint.URL(target))
	if err != nil {
		return nil, resp, fmt.Errorf("request to relay: %w", err)
	}

	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096)) //nolint:errcheck // drain for reuse
		return nil, resp, fmt.Errorf("%w: HTTP %d", ErrRelayStatus, resp.StatusCode())
	}

	raw, err := io.ReadAll(io.LimitReader(body, f.maxBodySize+1))
	if err != nil {
		return nil, resp, fmt.Errorf("read relay body: %w", err)
	}
	if int64(len(raw)) > f.maxBodySize {
		return nil, resp, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBodySize)
	}

	return raw, resp, nil
}
