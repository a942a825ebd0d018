//go:build noretry

package reqstrategy

// Builds tagged noretry leave the backoff engine out entirely
var defaultEngine retryEngine
