package reqstrategy

import (
	"math/rand/v2"
	"net/http"
	"slices"
	"time"
)

// A WaitFunc returns how long to wait after the given attempt before making the
// next one. Attempts are numbered from 1.
type WaitFunc func(attempt int) time.Duration

// A RetryPredicate decides, from the outcome of an attempt, whether to make another.
// Exactly one of resp and err is non-nil.
type RetryPredicate func(resp *http.Response, err error) bool

// Policy configures a RetryingStrategy. A strategy takes a copy of the policy it is
// built with, so later changes to the caller's value have no effect.
type Policy struct {
	// MaxAttempts counts the initial call, so 3 means up to 2 retries
	MaxAttempts uint `validate:"min=1"`

	Wait    WaitFunc       `validate:"required"`
	RetryIf RetryPredicate `validate:"required"`

	// RespectRetryAfter waits for the number of seconds in a Retry-After header,
	// when one is present, instead of calling Wait
	RespectRetryAfter bool

	// FailOnExhaustion wraps the final outcome in a RetriesExhaustedError when the
	// last attempt still asked for a retry
	FailOnExhaustion bool
}

// Validate reports whether p can be used to build a RetryingStrategy
func (p *Policy) Validate() error {
	if p == nil {
		return &ConfigError{Reason: "policy must not be nil", Err: ErrInvalidPolicy}
	}

	if err := validate.Struct(p); err != nil {
		return &ConfigError{Reason: err.Error(), Err: ErrInvalidPolicy}
	}

	return nil
}

// RandomExponentialWait waits a uniformly random time between zero and
// multiplier * 2^(attempt-1), never more than ceiling
func RandomExponentialWait(multiplier, ceiling time.Duration) WaitFunc {
	return func(attempt int) time.Duration {
		high := exponential(multiplier, attempt, ceiling)
		if high <= 0 {
			return 0
		}

		return rand.N(high)
	}
}

func exponential(multiplier time.Duration, attempt int, ceiling time.Duration) time.Duration {
	d := multiplier
	for i := 1; i < attempt; i++ {
		if d >= ceiling/2 {
			return ceiling
		}

		d *= 2
	}

	return min(d, ceiling)
}

// FixedWait always waits d
func FixedWait(d time.Duration) WaitFunc {
	return func(int) time.Duration {
		return d
	}
}

// NoWait retries immediately
func NoWait(int) time.Duration {
	return 0
}

// RetryOnStatus retries any response carrying one of codes. Transport errors are
// never retried.
func RetryOnStatus(codes ...int) RetryPredicate {
	return func(resp *http.Response, err error) bool {
		if err != nil || resp == nil {
			return false
		}

		return slices.Contains(codes, resp.StatusCode)
	}
}

// RetryOnError retries transport errors for which pred returns true
func RetryOnError(pred func(error) bool) RetryPredicate {
	return func(_ *http.Response, err error) bool {
		return err != nil && pred(err)
	}
}

// AnyOf retries when any of preds does
func AnyOf(preds ...RetryPredicate) RetryPredicate {
	return func(resp *http.Response, err error) bool {
		for _, p := range preds {
			if p(resp, err) {
				return true
			}
		}

		return false
	}
}
