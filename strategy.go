package reqstrategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/http/httpguts"
)

// validate is safe for concurrent use and caches struct metadata, so one is shared
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// methods are RFC 7230 tokens, the same grammar as header field names
	if err := v.RegisterValidation("httptoken", func(fl validator.FieldLevel) bool {
		return httpguts.ValidHeaderFieldName(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

// A Strategy executes a single logical request against a REST API and returns the
// decoded result. SimpleStrategy and RetryingStrategy are interchangeable.
type Strategy interface {
	Request(ctx context.Context, method, url string, p Params) (any, error)
}

// Params holds everything about a request other than its method and url. The zero
// value is a valid, empty set of params.
type Params struct {
	Query   url.Values
	JSON    any
	Timeout Timeout
	Headers map[string]string
}

// Timeout bounds a single attempt. A zero Timeout leaves the attempt bounded only by
// the caller's context and the client's own timeout.
type Timeout struct {
	Connect time.Duration
	Read    time.Duration
}

// SingleTimeout returns a Timeout using d for both the connect and read phases
func SingleTimeout(d time.Duration) Timeout {
	return Timeout{Connect: d, Read: d}
}

// IsZero reports whether t sets no deadline at all
func (t Timeout) IsZero() bool {
	return t.Connect <= 0 && t.Read <= 0
}

// context derives the per-attempt context. net/http has no per-request connect
// timeout, so the two phases are summed into one deadline.
func (t Timeout) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.IsZero() {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, max(t.Connect, 0)+max(t.Read, 0))
}

// call is one logical request, fixed before the first attempt and reused
// unmodified by every attempt
type call struct {
	Method  string `validate:"required,httptoken"`
	URL     string `validate:"required,url"`
	query   url.Values
	body    []byte
	timeout Timeout
	headers map[string]string
}

// sendFunc is the innermost network-call hook
type sendFunc func(ctx context.Context, c *call) (*http.Response, error)

func newCall(method, rawURL string, p Params) (*call, error) {
	c := &call{
		Method:  strings.ToUpper(method),
		URL:     rawURL,
		query:   p.Query,
		timeout: p.Timeout,
		headers: p.Headers,
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &ValidationError{Field: strings.ToLower(verrs[0].Field()), Value: fmt.Sprint(verrs[0].Value())}
		}

		return nil, err
	}

	body, err := marshalBody(p.JSON)
	if err != nil {
		return nil, err
	}

	c.body = body

	return c, nil
}
