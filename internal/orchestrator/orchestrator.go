package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lumikid/kidcoach-core/internal/pkg/httpx"
	"github.com/lumikid/kidcoach-core/internal/pkg/logger"
)

// Governor admits an outbound attempt, waiting when the shared budget is
// spent. Satisfied by ratelimit.Window.
type Governor interface {
	Admit(ctx context.Context) error
}

// CredentialSource resolves the active API key. Resolved fresh before every
// attempt so a just-saved key is picked up mid-run.
type CredentialSource interface {
	Resolve() (string, error)
}

// Policy is the per-call-site retry shape. The source material disagrees
// with itself on these numbers across call sites, so they are configuration,
// not constants.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// WorkFunc is one attempt of the caller's unit of work against a specific
// model with a resolved credential.
type WorkFunc[T any] func(ctx context.Context, model, apiKey string) (T, error)

// Runner drives a model chain: bounded retries with exponential backoff per
// model, escalation to the next model on exhaustion or a structurally
// unusable model, one shared rate budget in front of every attempt.
type Runner struct {
	log       *logger.Logger
	governor  Governor
	creds     CredentialSource
	sleep     func(ctx context.Context, d time.Duration) error
	jitterOff bool
}

type RunnerOption func(*Runner)

// WithSleep substitutes the backoff delay primitive. Tests use this to
// observe waits without real time passing.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *Runner) {
		r.sleep = sleep
		r.jitterOff = true
	}
}

func NewRunner(log *logger.Logger, governor Governor, creds CredentialSource, opts ...RunnerOption) *Runner {
	r := &Runner{
		log:      log.With("service", "orchestrator.Runner"),
		governor: governor,
		creds:    creds,
		sleep:    httpx.SleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run tries each model in chain, in order, until one attempt succeeds.
// Transient failures are absorbed here; callers only ever see success, a
// credential failure, or *ExhaustedError.
func Run[T any](ctx context.Context, r *Runner, chain []string, pol Policy, fn WorkFunc[T]) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	pol = pol.withDefaults()

	runID := uuid.NewString()
	log := r.log.With("run_id", runID)

	var lastErr error
	for mi, model := range chain {
		lastModel := mi == len(chain)-1
		delay := pol.BaseDelay

	attempts:
		for attempt := 1; attempt <= pol.MaxRetries; attempt++ {
			if err := r.governor.Admit(ctx); err != nil {
				return zero, err
			}
			apiKey, err := r.creds.Resolve()
			if err != nil {
				// Terminal by definition: no model can succeed
				// without a key.
				return zero, err
			}

			start := time.Now()
			out, err := fn(ctx, model, apiKey)
			attemptDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
			if err == nil {
				attemptsTotal.WithLabelValues(model, "success").Inc()
				if mi > 0 || attempt > 1 {
					log.Info("generation recovered",
						"model", model, "attempt", attempt, "models_skipped", mi)
				}
				return out, nil
			}

			lastErr = err
			kind := classifyFailure(err)
			attemptsTotal.WithLabelValues(model, kind.String()).Inc()
			log.Warn("generation attempt failed",
				"model", model,
				"attempt", attempt,
				"max_retries", pol.MaxRetries,
				"kind", kind.String(),
				"error", err.Error(),
			)

			switch kind {
			case kindNotFound:
				// Unknown model name: retrying burns budget for
				// nothing, move down the chain now.
				break attempts
			case kindRateLimited:
				if attempt < pol.MaxRetries {
					// Quota windows reset on the provider's
					// cadence, not ours; back off twice as hard,
					// or as long as the server asked for.
					wait := 2 * delay
					if hint := httpx.RetryAfterOf(err); hint > wait {
						wait = hint
					}
					if err := r.backoff(ctx, wait); err != nil {
						return zero, err
					}
					delay = scale(delay, pol.Multiplier)
					continue
				}
			case kindTransient:
				if attempt < pol.MaxRetries {
					if err := r.backoff(ctx, delay); err != nil {
						return zero, err
					}
					delay = scale(delay, pol.Multiplier)
					continue
				}
			}
			// Terminal for this model, or retries spent.
			break attempts
		}

		if !lastModel {
			log.Info("advancing model chain", "from", model, "to", chain[mi+1])
		}
	}

	runsExhaustedTotal.Inc()
	return zero, &ExhaustedError{
		Models:  chain,
		LastErr: lastErr,
		Hint:    "check your API key's quota, then wait a minute and try again",
	}
}

func (r *Runner) backoff(ctx context.Context, d time.Duration) error {
	if !r.jitterOff {
		d = httpx.Jitter(d)
	}
	return r.sleep(ctx, d)
}

func scale(d time.Duration, mult float64) time.Duration {
	return time.Duration(float64(d) * mult)
}
