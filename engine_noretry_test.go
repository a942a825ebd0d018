//go:build noretry

package reqstrategy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botsandus/reqstrategy"
)

func TestNewRateLimitRetrying_WithoutEngine(t *testing.T) {
	r, err := reqstrategy.NewRateLimitRetrying()
	assert.Nil(t, r)

	var cerr *reqstrategy.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, reqstrategy.ErrRetryUnavailable)
}

func TestNewRetrying_WithoutEngine(t *testing.T) {
	r, err := reqstrategy.NewRetrying(&reqstrategy.Policy{
		MaxAttempts: 3,
		Wait:        reqstrategy.NoWait,
		RetryIf:     reqstrategy.RetryOnStatus(http.StatusTooManyRequests),
	})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, reqstrategy.ErrRetryUnavailable)
}

func TestConfig_Build_WithoutEngine(t *testing.T) {
	cfg, err := reqstrategy.LoadConfig("")
	require.NoError(t, err)

	_, err = cfg.Build()
	assert.ErrorIs(t, err, reqstrategy.ErrRetryUnavailable)
}

func TestSimpleStrategy_Request_WithoutEngine(t *testing.T) {
	var calls atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := reqstrategy.NewSimple().Request(context.Background(), http.MethodGet, ts.URL, reqstrategy.Params{})
	assert.True(t, reqstrategy.IsHTTPStatusError(err, http.StatusTooManyRequests), "received %v", err)
	assert.False(t, errors.Is(err, reqstrategy.ErrRetryUnavailable))
	assert.EqualValues(t, 1, calls.Load())
}
