//go:build !noretry

package reqstrategy

import (
	"context"
	"net/http"
	"strconv"
	"time"

	backoff "github.com/cenkalti/backoff/v5"
)

var defaultEngine retryEngine = backoffEngine{}

type backoffEngine struct{}

// retryableResponse marks a response the policy wants retried. backoff only
// retries on errors, so the response is carried through as one.
type retryableResponse struct {
	status     string
	retryAfter error
}

func (e *retryableResponse) Error() string {
	return "retryable response: " + e.status
}

// Unwrap exposes a *backoff.RetryAfterError, if any, so that backoff.Retry uses it
// in place of the policy's wait
func (e *retryableResponse) Unwrap() error {
	return e.retryAfter
}

func (backoffEngine) run(ctx context.Context, p *Policy, attempt attemptFunc, notify notifyFunc) (*http.Response, bool, error) {
	var (
		tries   uint
		wanted  bool
		last    *http.Response
		lastErr error
	)

	operation := func() (*http.Response, error) {
		tries++

		last, lastErr = attempt()
		wanted = p.RetryIf(last, lastErr)

		switch {
		case !wanted && lastErr != nil:
			return nil, backoff.Permanent(lastErr)
		case !wanted:
			return last, nil
		case lastErr != nil:
			return nil, lastErr
		}

		return last, &retryableResponse{
			status:     last.Status,
			retryAfter: retryAfter(p, last),
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&waitBackOff{wait: p.Wait}),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, wait time.Duration) {
			notify(last, lastErr, wait)
		}),
	)

	switch {
	case wanted && tries >= p.MaxAttempts:
		return last, true, lastErr
	case !wanted && lastErr != nil:
		return nil, false, lastErr
	case err != nil:
		// the context ended during a wait
		return nil, false, err
	}

	return last, false, nil
}

// retryAfter returns a backoff.RetryAfter for responses carrying a delay in
// seconds. HTTP-date values fall back to the policy's wait.
func retryAfter(p *Policy, resp *http.Response) error {
	if !p.RespectRetryAfter {
		return nil
	}

	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return nil
	}

	seconds, err := strconv.Atoi(ra)
	if err != nil || seconds < 0 {
		return nil
	}

	return backoff.RetryAfter(seconds)
}

// waitBackOff adapts a WaitFunc to backoff.BackOff. One is created per call; like
// every backoff.BackOff it isn't safe for concurrent use.
type waitBackOff struct {
	wait    WaitFunc
	attempt int
}

// NextBackOff never returns backoff.Stop: the attempt budget is the only thing
// that ends the loop
func (b *waitBackOff) NextBackOff() time.Duration {
	b.attempt++

	return max(b.wait(b.attempt), 0)
}

func (b *waitBackOff) Reset() {
	b.attempt = 0
}
