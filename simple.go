package reqstrategy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SimpleStrategy makes exactly one network call per Request, through a reusable
// connection pool. It never retries.
type SimpleStrategy struct {
	client    *http.Client
	processor ResponseProcessor
	logger    zerolog.Logger
	limiter   *rate.Limiter
	metrics   *Metrics
}

var _ Strategy = (*SimpleStrategy)(nil)

// NewSimple returns a SimpleStrategy. Without WithClient it uses a pooled client
// from go-cleanhttp.
func NewSimple(opts ...Option) *SimpleStrategy {
	return newSimple(newOptions(opts))
}

func newSimple(o *options) *SimpleStrategy {
	return &SimpleStrategy{
		client:    o.client,
		processor: o.processor,
		logger:    o.logger,
		limiter:   o.limiter,
		metrics:   o.metrics,
	}
}

// Client returns the *http.Client requests are made with
func (s *SimpleStrategy) Client() *http.Client {
	return s.client
}

// Request validates its inputs, makes a single call and processes the response.
//
// Transport errors are returned exactly as net/http produced them. Status codes are
// left to the ResponseProcessor.
func (s *SimpleStrategy) Request(ctx context.Context, method, url string, p Params) (any, error) {
	return s.execute(ctx, s.send, method, url, p)
}

// execute is shared by every strategy: only the hook differs
func (s *SimpleStrategy) execute(ctx context.Context, send sendFunc, method, url string, p Params) (any, error) {
	c, err := newCall(method, url, p)
	if err != nil {
		return nil, err
	}

	if md, ok := getRequestMetadata(ctx); ok {
		md.reset()
	}

	resp, err := send(ctx, c)
	if err != nil {
		return nil, err
	}

	return s.processor.Process(resp)
}

// send is the innermost network-call hook. The response body is read in full
// before the per-attempt deadline is released, and handed back in memory.
func (s *SimpleStrategy) send(ctx context.Context, c *call) (*http.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := c.timeout.context(ctx)
	defer cancel()

	req, err := newRequest(attemptCtx, c)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.do(req)
	duration := time.Since(start)

	s.metrics.observeAttempt(c.Method, resp, err)

	md, hasMetadata := getRequestMetadata(ctx)
	if hasMetadata {
		md.requests++
	}

	if err != nil {
		s.logger.Debug().Err(err).Str("method", c.Method).Str("url", c.URL).Msg("request failed")

		return nil, err
	}

	s.logger.Debug().
		Str("method", c.Method).
		Str("url", c.URL).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("request complete")

	if hasMetadata && resp.StatusCode/100 == 2 {
		md.successfulDuration = duration
	}

	return resp, nil
}

func (s *SimpleStrategy) do(req *http.Request) (*http.Response, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))

	return resp, nil
}
