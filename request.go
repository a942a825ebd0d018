package reqstrategy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

func marshalBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}

// newRequest builds a fresh *http.Request for one attempt of c.
//
// Every attempt gets its own request, and that request has a `GetBody` function, so
// that any retry, whether ours or one made by net/http itself after a connection was
// dropped part way through an upload, always sends the whole payload.
func newRequest(ctx context.Context, c *call) (*http.Request, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, err
	}

	// the caller's own query goes out exactly as written; params are appended
	if len(c.query) > 0 {
		if u.RawQuery == "" {
			u.RawQuery = c.query.Encode()
		} else {
			u.RawQuery += "&" + c.query.Encode()
		}
	}

	var body io.Reader
	if c.body != nil {
		body = bytes.NewReader(c.body)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	if c.body != nil {
		bb := c.body
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bb)), nil
		}

		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}
