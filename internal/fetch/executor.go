// Package fetch wraps the raw proxy client with the per-request policy
// every billable fetch goes through: hard timeout, transient-only retry
// with backoff, inter-request pacing, and response-shape validation.
package fetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/peoplesearch-cli/internal/resilience"
	"github.com/sells-group/peoplesearch-cli/pkg/proxyfetch"
)

// Options configures the executor.
type Options struct {
	// RequestTimeout bounds each physical request. Default: 70s.
	RequestTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt. Default: 2.
	MaxRetries int
	// RetryBackoffBase is the initial retry delay. Default: 1s.
	RetryBackoffBase time.Duration
	// InterRequestDelay paces successive physical requests so the proxy
	// is never hit in a tight loop even on success. Default: 250ms.
	InterRequestDelay time.Duration
	// BreakerThreshold is the consecutive transient-failure count that
	// opens the circuit to the proxy. Default: 5.
	BreakerThreshold int
	// BreakerResetTimeout is how long the circuit stays open before a
	// probe request is allowed through. Default: 30s.
	BreakerResetTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 70 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoffBase <= 0 {
		o.RetryBackoffBase = time.Second
	}
	if o.InterRequestDelay <= 0 {
		o.InterRequestDelay = 250 * time.Millisecond
	}
	if o.BreakerThreshold <= 0 {
		o.BreakerThreshold = 5
	}
	if o.BreakerResetTimeout <= 0 {
		o.BreakerResetTimeout = 30 * time.Second
	}
	return o
}

// Executor performs single page fetches. It is stateless apart from the
// shared pacing limiter and safe for concurrent use by pool workers.
type Executor struct {
	client  proxyfetch.Client
	opts    Options
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewExecutor creates an executor over the given proxy client.
func NewExecutor(client proxyfetch.Client, opts Options) *Executor {
	opts = opts.withDefaults()
	return &Executor{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.InterRequestDelay), 1),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: opts.BreakerThreshold,
			ResetTimeout:     opts.BreakerResetTimeout,
			// Fatal errors are page-specific (404 for a missing record);
			// only transient failures indicate a sick proxy.
			ShouldTrip: resilience.IsTransient,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("proxy circuit state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// Fetch retrieves one page. Transient failures (timeout, 5xx, 429, proxy
// error envelope, non-HTML payload on 200) are retried with exponential
// backoff; everything else fails immediately for this one unit. A run of
// consecutive transient failures across units opens the circuit breaker,
// and calls fail fast with ErrCircuitOpen until the proxy recovers.
func (e *Executor) Fetch(ctx context.Context, url string) (string, error) {
	cfg := resilience.RetryConfig{
		MaxRetries:     e.opts.MaxRetries,
		InitialBackoff: e.opts.RetryBackoffBase,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "fetch: pacing wait")
		}

		return resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (string, error) {
			reqCtx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
			defer cancel()

			body, err := e.client.Fetch(reqCtx, url)
			if err != nil {
				return "", classify(err)
			}

			if err := validateHTML(body); err != nil {
				return "", err
			}
			return body, nil
		})
	})
}

// classify maps raw client errors onto the retryable/fatal taxonomy.
func classify(err error) error {
	var se *proxyfetch.StatusError
	if errors.As(err, &se) {
		if resilience.IsTransientHTTPStatus(se.StatusCode) {
			return resilience.NewTransientError(se, se.StatusCode)
		}
		return resilience.NewFatalError(se, se.StatusCode)
	}
	// Timeouts and connection errors fall through to the default
	// transient heuristics.
	return err
}

// validateHTML rejects bodies that cannot plausibly be the page the
// parser expects: empty payloads and proxy error envelopes returned with
// a 200 status.
func validateHTML(body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return resilience.NewTransientError(eris.New("fetch: empty response body"), 0)
	}

	// Proxy-layer failures often arrive as small JSON envelopes on 200.
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return resilience.NewTransientError(eris.New("fetch: json payload where html expected"), 0)
	}

	lower := strings.ToLower(trimmed)
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<!doctype") && !strings.Contains(lower, "<body") {
		return resilience.NewTransientError(eris.New("fetch: payload does not look like html"), 0)
	}
	return nil
}
