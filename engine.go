package reqstrategy

import (
	"context"
	"net/http"
	"time"
)

// retryEngine runs the attempts of one call under a policy. It reports whether
// the attempt budget ran out while the policy still wanted another attempt, in
// which case the last outcome is returned as produced.
type retryEngine interface {
	run(ctx context.Context, p *Policy, attempt attemptFunc, notify notifyFunc) (resp *http.Response, exhausted bool, err error)
}

type attemptFunc func() (*http.Response, error)

// notifyFunc is called with the outcome that caused a retry, before waiting
type notifyFunc func(resp *http.Response, err error, wait time.Duration)
