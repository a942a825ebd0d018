package reqstrategy

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors strategies report into. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	waits    prometheus.Histogram
}

// NewMetrics creates the collectors under namespace and registers them with reg
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_attempts_total",
				Help:      "The number of network calls made, by method and status code",
			},
			[]string{"method", "code"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_retries_total",
				Help:      "The number of retries scheduled, by the status code which caused them",
			},
			[]string{"code"},
		),
		waits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_backoff_seconds",
				Help:      "Time waited between attempts",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 11),
			},
		),
	}

	var err error

	if m.attempts, err = register(reg, m.attempts); err != nil {
		return nil, err
	}

	if m.retries, err = register(reg, m.retries); err != nil {
		return nil, err
	}

	if m.waits, err = register(reg, m.waits); err != nil {
		return nil, err
	}

	return m, nil
}

// register hands back the collector already registered under the same
// descriptor, so several strategies can share one registry
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}

	return c, err
}

func (m *Metrics) observeAttempt(method string, resp *http.Response, err error) {
	if m == nil {
		return
	}

	m.attempts.WithLabelValues(method, outcomeCode(resp, err)).Inc()
}

func (m *Metrics) observeRetry(resp *http.Response, err error, wait time.Duration) {
	if m == nil {
		return
	}

	m.retries.WithLabelValues(outcomeCode(resp, err)).Inc()
	m.waits.Observe(wait.Seconds())
}

func outcomeCode(resp *http.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}

	return strconv.Itoa(resp.StatusCode)
}
