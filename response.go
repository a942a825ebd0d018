package reqstrategy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// A ResponseProcessor turns a raw response into a result, or into an error if the
// status code says the request failed. Strategies call it exactly once per logical
// request, with the response of the final attempt.
type ResponseProcessor interface {
	Process(resp *http.Response) (any, error)
}

// ProcessorFunc adapts an ordinary function to a ResponseProcessor
type ProcessorFunc func(resp *http.Response) (any, error)

// Process calls f(resp)
func (f ProcessorFunc) Process(resp *http.Response) (any, error) {
	return f(resp)
}

// JSONProcessor is the default ResponseProcessor. Any status of 400 or above becomes
// an *HTTPError; anything else has its body decoded as JSON. An empty body decodes
// to nil.
type JSONProcessor struct{}

// Process implements ResponseProcessor
func (JSONProcessor) Process(resp *http.Response) (any, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, newHTTPError(resp, body)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}

	return v, nil
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}

	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.URL = resp.Request.URL.String()
	}

	if gjson.ValidBytes(body) {
		e.Detail = errorDetail(gjson.GetBytes(body, "error"))
	}

	return e
}

// errorDetail flattens the two shapes Airtable uses for its `error` member: a bare
// string such as "NOT_FOUND", or an object carrying a type and a message
func errorDetail(v gjson.Result) string {
	switch {
	case !v.Exists():
		return ""
	case v.Type == gjson.String:
		return v.String()
	case v.IsObject():
		typ, msg := v.Get("type").String(), v.Get("message").String()
		switch {
		case typ != "" && msg != "":
			return typ + ": " + msg
		case typ != "":
			return typ
		case msg != "":
			return msg
		}
	}

	return v.Raw
}
