package reqstrategy

import (
	"context"
	"time"
)

// requestMetadata is stored as a pointer inside our contexts to allow strategies to
// report back on a request once it is done
type requestMetadata struct {
	requests           int
	successfulDuration time.Duration
}

func (md *requestMetadata) reset() {
	md.requests = 0
	md.successfulDuration = 0
}

// httpRequestMetadataContextKey is used to key metadata within request contexts
type httpRequestMetadataContextKey struct{}

// NewContext returns a context.Context preseeded for Request use, so that the
// attempt count and timing can be read back afterwards
func NewContext() context.Context {
	return ContextWithMetadata(context.Background())
}

// ContextWithMetadata is NewContext for callers who already have a context
func ContextWithMetadata(parent context.Context) context.Context {
	return context.WithValue(parent, httpRequestMetadataContextKey{}, new(requestMetadata))
}

func getRequestMetadata(ctx context.Context) (*requestMetadata, bool) {
	v := ctx.Value(httpRequestMetadataContextKey{})

	ptr, ok := v.(*requestMetadata)

	return ptr, ok
}

// NumberOfAttemptsFromContext may be used to return the number of network calls the
// last Request made with ctx went through
func NumberOfAttemptsFromContext(ctx context.Context) (int, bool) {
	md, ok := getRequestMetadata(ctx)
	if !ok {
		return 0, false
	}

	return md.requests, true
}

// SuccessfulRequestDurationFromContext may be used to return how long the attempt
// which got a 2xx response took. It is zero if no attempt did.
func SuccessfulRequestDurationFromContext(ctx context.Context) (time.Duration, bool) {
	md, ok := getRequestMetadata(ctx)
	if !ok {
		return 0, false
	}

	return md.successfulDuration, true
}
