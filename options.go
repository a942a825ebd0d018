package reqstrategy

import (
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Option configures a strategy at construction time
type Option func(*options)

type options struct {
	client    *http.Client
	processor ResponseProcessor
	logger    zerolog.Logger
	limiter   *rate.Limiter
	metrics   *Metrics
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		// A pooled client keeps idle connections around between calls, unlike
		// cleanhttp.DefaultClient which disables keep-alives
		o.client = cleanhttp.DefaultPooledClient()
	}

	if o.processor == nil {
		o.processor = JSONProcessor{}
	}

	return o
}

// WithClient sets the *http.Client, and therefore the connection pool, used for
// every call. The client is shared by reference and never modified.
func WithClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithProcessor replaces the default JSONProcessor
func WithProcessor(p ResponseProcessor) Option {
	return func(o *options) {
		o.processor = p
	}
}

// WithLogger sets the logger used to report attempts and backoff waits
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLimiter makes every attempt, retries included, wait on l before touching
// the network
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithMetrics records attempts, retries and backoff waits into m
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
