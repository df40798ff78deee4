package embed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bippobippo/hospital-vectors/pkg/config"
	"github.com/bippobippo/hospital-vectors/pkg/fn"
	"github.com/bippobippo/hospital-vectors/pkg/ollama"
	"github.com/bippobippo/hospital-vectors/pkg/resilience"
)

// ResilientOpts tunes the guard around a provider.
type ResilientOpts struct {
	Retry   fn.RetryOpts
	Breaker resilience.BreakerOpts
	Limiter resilience.LimiterOpts
}

// ResilientOptsFrom maps the embedding config onto ResilientOpts.
// Unset retry fields keep fn.DefaultRetry.
func ResilientOptsFrom(cfg config.EmbeddingConfig) ResilientOpts {
	retry := fn.DefaultRetry
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialWait > 0 {
		retry.InitialWait = cfg.InitialWait
	}
	if cfg.MaxWait > 0 {
		retry.MaxWait = cfg.MaxWait
	}
	return ResilientOpts{
		Retry: retry,
		Breaker: resilience.BreakerOpts{
			FailThreshold: cfg.BreakerThreshold,
			Timeout:       cfg.BreakerTimeout,
		},
		Limiter: resilience.LimiterOpts{Rate: cfg.RatePerSec, Burst: cfg.Burst},
	}
}

// Resilient retries a provider with backoff behind a rate limiter and a
// circuit breaker. The error of the last attempt is returned.
type Resilient struct {
	next    Embedder
	retry   fn.RetryOpts
	breaker *resilience.Breaker
	limiter *resilience.Limiter
}

// NewResilient wraps next. log may be nil.
func NewResilient(next Embedder, opts ResilientOpts, log *zap.Logger) *Resilient {
	if log == nil {
		log = zap.NewNop()
	}
	opts.Breaker.OnStateChange = func(from, to resilience.State) {
		log.Warn("embedding circuit breaker changed state",
			zap.Stringer("from", from), zap.Stringer("to", to))
	}
	opts.Retry.Retryable = retryable
	return &Resilient{
		next:    next,
		retry:   opts.Retry,
		breaker: resilience.NewBreaker(opts.Breaker),
		limiter: resilience.NewLimiter(opts.Limiter),
	}
}

// Embed implements Embedder.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	return fn.Retry(ctx, r.retry, func(ctx context.Context) fn.Result[[]float32] {
		var vec []float32
		err := r.limiter.CallWait(ctx, func(ctx context.Context) error {
			return r.breaker.Call(ctx, func(ctx context.Context) error {
				v, err := r.next.Embed(ctx, text)
				if err == nil && len(v) == 0 {
					err = ErrEmptyEmbedding
				}
				vec = v
				return err
			})
		})
		return fn.FromPair(vec, err)
	}).Unwrap()
}

// BreakerState reports the breaker state.
func (r *Resilient) BreakerState() resilience.State { return r.breaker.State() }

func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var oe *ollama.StatusError
	if errors.As(err, &oe) {
		return transient(oe.Code)
	}
	var se *StatusError
	if errors.As(err, &se) {
		return transient(se.Code)
	}
	return true
}

// transient reports whether a provider status is worth another attempt.
func transient(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Timed wraps e and reports the duration of every successful call.
func Timed(e Embedder, observe func(time.Duration)) Embedder {
	return Func(func(ctx context.Context, text string) ([]float32, error) {
		start := time.Now()
		vec, err := e.Embed(ctx, text)
		if err == nil {
			observe(time.Since(start))
		}
		return vec, err
	})
}
