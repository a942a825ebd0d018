package reqstrategy

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// rateLimitUnit scales the rate limit policy; Airtable documents it in seconds
var rateLimitUnit = time.Second

// RetryingStrategy makes the same requests as a SimpleStrategy, but repeats the
// network call for as long as its Policy asks it to.
//
// Requests are built and responses processed exactly as a SimpleStrategy would; only
// the network call in between is wrapped.
type RetryingStrategy struct {
	base   *SimpleStrategy
	policy Policy
	engine retryEngine

	// send is base.send wrapped with policy. It is set once, by the constructor.
	send sendFunc
}

var _ Strategy = (*RetryingStrategy)(nil)

// NewRetrying returns a RetryingStrategy applying policy to every request.
//
// It fails before any network call is made if retry support wasn't compiled in, or
// if policy is nil or incomplete.
func NewRetrying(policy *Policy, opts ...Option) (*RetryingStrategy, error) {
	if defaultEngine == nil {
		return nil, &ConfigError{
			Reason: "this build was made with the `noretry` tag; rebuild without it to enable retries",
			Err:    ErrRetryUnavailable,
		}
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	r := &RetryingStrategy{
		base:   newSimple(newOptions(opts)),
		policy: *policy,
		engine: defaultEngine,
	}

	r.send = r.wrap(r.base.send)

	return r, nil
}

// RateLimitPolicy mirrors the backoff used by the official Airtable clients: a 429
// is retried up to twice, waiting a random time of up to 30s, then up to 60s. The
// API asks for a 30s wait once its rate limit has been exceeded.
func RateLimitPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Wait:        RandomExponentialWait(30*rateLimitUnit, 480*rateLimitUnit),
		RetryIf:     RetryOnStatus(http.StatusTooManyRequests),
	}
}

// NewRateLimitRetrying returns a RetryingStrategy using RateLimitPolicy
func NewRateLimitRetrying(opts ...Option) (*RetryingStrategy, error) {
	p := RateLimitPolicy()

	return NewRetrying(&p, opts...)
}

// Policy returns a copy of the policy r was built with
func (r *RetryingStrategy) Policy() Policy {
	return r.policy
}

// Client returns the *http.Client requests are made with
func (r *RetryingStrategy) Client() *http.Client {
	return r.base.client
}

// Request behaves like SimpleStrategy.Request, making one or more network calls.
//
// When the attempts run out the final outcome is returned as it is: a final 429
// surfaces as whatever the ResponseProcessor makes of it, unless the policy has
// FailOnExhaustion set.
func (r *RetryingStrategy) Request(ctx context.Context, method, url string, p Params) (any, error) {
	return r.base.execute(ctx, r.send, method, url, p)
}

func (r *RetryingStrategy) wrap(send sendFunc) sendFunc {
	return func(ctx context.Context, c *call) (*http.Response, error) {
		var attempts uint

		attempt := func() (*http.Response, error) {
			attempts++

			return send(ctx, c)
		}

		notify := func(resp *http.Response, err error, wait time.Duration) {
			r.base.metrics.observeRetry(resp, err, wait)

			ev := r.base.logger.Warn().
				Str("method", c.Method).
				Str("url", c.URL).
				Uint("attempt", attempts).
				Dur("wait", wait)

			if err != nil {
				ev = ev.Err(err)
			} else {
				ev = ev.Int("status", resp.StatusCode)
			}

			ev.Msg("retrying request")
		}

		resp, exhausted, err := r.engine.run(ctx, &r.policy, attempt, notify)
		if exhausted && r.policy.FailOnExhaustion {
			return nil, r.exhaustedError(attempts, resp, err)
		}

		if err != nil {
			return nil, err
		}

		return resp, nil
	}
}

func (r *RetryingStrategy) exhaustedError(attempts uint, resp *http.Response, err error) error {
	if err == nil {
		_, err = r.base.processor.Process(resp)
		if err == nil {
			err = errors.New(resp.Status)
		}
	}

	return &RetriesExhaustedError{Attempts: attempts, Err: err}
}
