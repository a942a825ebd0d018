package reqstrategy_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/botsandus/reqstrategy"
)

func TestNewSimple(t *testing.T) {
	s := reqstrategy.NewSimple()
	if s == nil {
		t.Fatal("value must not be nil")
	}

	if s.Client() == nil {
		t.Fatal("expected a default pooled client")
	}
}

func TestNewSimple_WithClient(t *testing.T) {
	c := &http.Client{}

	s := reqstrategy.NewSimple(reqstrategy.WithClient(c))
	if s.Client() != c {
		t.Error("expected the supplied client to be used by reference")
	}
}

func TestSimpleStrategy_Request(t *testing.T) {
	for _, test := range []struct {
		name        string
		resp        int
		body        string
		expectError bool
	}{
		{"200s decode the body", http.StatusOK, `{"id":"rec1"}`, false},
		{"204s return nil", http.StatusNoContent, "", false},
		{"404s return an HTTPError", http.StatusNotFound, `{"error":"NOT_FOUND"}`, true},
		{"429s are not retried", http.StatusTooManyRequests, `{}`, true},
		{"500s are not retried", http.StatusInternalServerError, "", true},
	} {
		t.Run(test.name, func(t *testing.T) {
			var calls atomic.Int32

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(test.resp)
				io.WriteString(w, test.body)
			}))
			defer ts.Close()

			ctx := reqstrategy.NewContext()

			_, err := reqstrategy.NewSimple().Request(ctx, http.MethodGet, ts.URL, reqstrategy.Params{})
			if test.expectError == (err == nil) {
				t.Errorf("expected error: %v, received %#v", test.expectError, err)
			}

			if err != nil && !reqstrategy.IsHTTPStatusError(err, test.resp) {
				t.Errorf("expected an HTTPError with status %d, received %v", test.resp, err)
			}

			if calls.Load() != 1 {
				t.Errorf("expected exactly 1 call, received %d", calls.Load())
			}

			attempts, ok := reqstrategy.NumberOfAttemptsFromContext(ctx)
			if !ok {
				t.Fatal("expected `attempts` in the context")
			}

			if attempts != 1 {
				t.Errorf("expected 1 attempt, received %d", attempts)
			}

			dur, ok := reqstrategy.SuccessfulRequestDurationFromContext(ctx)
			if !ok {
				t.Fatal("expected `duration` in the context")
			}

			if test.expectError == (dur == 0) {
				t.Errorf("expectedDuration is %v, yet duration was %s", !test.expectError, dur)
			}
		})
	}
}

func TestSimpleStrategy_Request_ForwardsParams(t *testing.T) {
	var (
		method string
		query  url.Values
		header string
		body   string
	)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		query = r.URL.Query()
		header = r.Header.Get("Authorization")

		b, _ := io.ReadAll(r.Body)
		body = string(b)

		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer ts.Close()

	v, err := reqstrategy.NewSimple().Request(context.Background(), "patch", ts.URL+"?view=Grid", reqstrategy.Params{
		Query:   url.Values{"fields[]": {"Name", "Notes"}},
		JSON:    map[string]any{"fields": map[string]any{"Name": "Alice"}},
		Timeout: reqstrategy.SingleTimeout(5 * time.Second),
		Headers: map[string]string{"Authorization": "Bearer key"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if ok := v.(map[string]any)["ok"]; ok != true {
		t.Errorf("expected decoded body, received %#v", v)
	}

	if method != http.MethodPatch {
		t.Errorf("expected PATCH, received %q", method)
	}

	if query.Get("view") != "Grid" {
		t.Errorf("expected existing query to be kept, received %q", query.Encode())
	}

	if got := query["fields[]"]; len(got) != 2 || got[0] != "Name" || got[1] != "Notes" {
		t.Errorf("expected repeated fields[], received %v", got)
	}

	if header != "Bearer key" {
		t.Errorf("expected Authorization header, received %q", header)
	}

	if expect := `{"fields":{"Name":"Alice"}}`; body != expect {
		t.Errorf("expected %q, received %q", expect, body)
	}
}

func TestSimpleStrategy_Request_KeepsCallerQuery(t *testing.T) {
	var raw string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	_, err := reqstrategy.NewSimple().Request(context.Background(), http.MethodGet, ts.URL+"?b=2&a=%7e", reqstrategy.Params{
		Query: url.Values{"fields[]": {"Name"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if expect := "b=2&a=%7e&fields%5B%5D=Name"; raw != expect {
		t.Errorf("expected %q, received %q", expect, raw)
	}
}

func TestSimpleStrategy_Request_ExtensionMethods(t *testing.T) {
	var method string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if _, err := reqstrategy.NewSimple().Request(context.Background(), "m-search", ts.URL, reqstrategy.Params{}); err != nil {
		t.Fatal(err)
	}

	if method != "M-SEARCH" {
		t.Errorf("expected M-SEARCH, received %q", method)
	}
}

func TestSimpleStrategy_Request_Validation(t *testing.T) {
	for _, test := range []struct {
		name   string
		method string
		url    string
		field  string
	}{
		{"empty method", "", "https://example.com", "method"},
		{"bad method", "GE T", "https://example.com", "method"},
		{"separator in method", "GET/1", "https://example.com", "method"},
		{"relative url", http.MethodGet, "/v0/app/tbl", "url"},
		{"empty url", http.MethodGet, "", "url"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := reqstrategy.NewSimple().Request(context.Background(), test.method, test.url, reqstrategy.Params{})

			var verr *reqstrategy.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected a ValidationError, received %#v", err)
			}

			if verr.Field != test.field {
				t.Errorf("expected field %q, received %q", test.field, verr.Field)
			}
		})
	}
}

func TestSimpleStrategy_Request_TransportErrorsAreUnchanged(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	_, err := reqstrategy.NewSimple().Request(context.Background(), http.MethodGet, ts.URL, reqstrategy.Params{})

	var uerr *url.Error
	if !errors.As(err, &uerr) {
		t.Fatalf("expected a *url.Error straight from net/http, received %#v", err)
	}
}

func TestSimpleStrategy_Request_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer ts.Close()

	_, err := reqstrategy.NewSimple().Request(context.Background(), http.MethodGet, ts.URL, reqstrategy.Params{
		Timeout: reqstrategy.Timeout{Connect: 10 * time.Millisecond, Read: 10 * time.Millisecond},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a deadline error, received %#v", err)
	}
}

func TestSimpleStrategy_Request_Limiter(t *testing.T) {
	var calls atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	s := reqstrategy.NewSimple(reqstrategy.WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))

	if _, err := s.Request(context.Background(), http.MethodGet, ts.URL, reqstrategy.Params{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.Request(ctx, http.MethodGet, ts.URL, reqstrategy.Params{}); err == nil {
		t.Error("expected the limiter to refuse a second call")
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 call to reach the server, received %d", calls.Load())
	}
}

// TestSimpleStrategy_Request_NakedContexts tests the strategy doesn't fall over
// if we use a naked context.Context from the standard library
func TestSimpleStrategy_Request_NakedContexts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx := context.Background()

	if _, err := reqstrategy.NewSimple().Request(ctx, http.MethodGet, ts.URL, reqstrategy.Params{}); err != nil {
		t.Fatal(err)
	}

	if _, ok := reqstrategy.NumberOfAttemptsFromContext(ctx); ok {
		t.Error("no attempts should have been returned")
	}

	if _, ok := reqstrategy.SuccessfulRequestDurationFromContext(ctx); ok {
		t.Error("no duration should have been returned")
	}
}
