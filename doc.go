/*
Package reqstrategy provides pluggable request-execution strategies for REST API clients.

A SimpleStrategy issues exactly one HTTP call per request through a reusable, pooled
net/http client, and hands the response to a ResponseProcessor which either decodes it
or returns a typed error.

A RetryingStrategy wraps the same network call with a retry Policy. The policy decides from
the outcome of each attempt (the response itself, not only transport errors) whether to try
again, which is how `429 Too Many Requests` is handled. NewRateLimitRetrying pre-configures
the policy used by the official Airtable clients: three attempts, with randomised exponential
backoff starting at 30 seconds and capped at 480 seconds.

Retry support is compiled in by default. Building with the `noretry` tag leaves the backoff
engine out, in which case constructing a RetryingStrategy fails with ErrRetryUnavailable.
*/
package reqstrategy
