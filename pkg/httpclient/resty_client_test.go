package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func newCaptureServer(t *testing.T, status int, respBody string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	ch := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- capturedRequest{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: body}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestNewRestyClientValidatesArguments(t *testing.T) {
	if _, err := NewRestyClient("", Options{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for empty base url, got %v", err)
	}
	if _, err := NewRestyClient("not a url", Options{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for relative base url, got %v", err)
	}
	if _, err := NewRestyClient("https://api.example.com", Options{Scheme: APIKeyScheme("")}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for api key without header, got %v", err)
	}
}

func TestGetSendsBearerHeader(t *testing.T) {
	srv, reqs := newCaptureServer(t, http.StatusOK, `{}`)
	c, err := NewRestyClient(srv.URL, Options{Scheme: BearerScheme()})
	if err != nil {
		t.Fatalf("NewRestyClient: %v", err)
	}

	resp, err := c.Get(context.Background(), "v1/items/5", "tok1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := <-reqs
	if got.method != http.MethodGet || got.path != "/v1/items/5" {
		t.Fatalf("unexpected request %s %s", got.method, got.path)
	}
	if h := got.header.Get("Authorization"); h != "Bearer tok1" {
		t.Fatalf("Authorization = %q", h)
	}
	if h := got.header.Get("Accept"); h != "application/json" {
		t.Fatalf("Accept = %q", h)
	}
	if resp.StatusCode() != http.StatusOK || string(resp.Body()) != `{}` {
		t.Fatalf("unexpected response %d %q", resp.StatusCode(), resp.Body())
	}
}

func TestGetSendsAPIKeyHeaderWithoutAuthorization(t *testing.T) {
	srv, reqs := newCaptureServer(t, http.StatusOK, "")
	c, err := NewRestyClient(srv.URL, Options{Scheme: APIKeyScheme("X-Api-Key")})
	if err != nil {
		t.Fatalf("NewRestyClient: %v", err)
	}

	if _, err := c.Get(context.Background(), "v1/count", "abc"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := <-reqs
	if h := got.header.Get("X-Api-Key"); h != "abc" {
		t.Fatalf("X-Api-Key = %q", h)
	}
	if h := got.header.Get("Authorization"); h != "" {
		t.Fatalf("expected no Authorization header, got %q", h)
	}
}

func TestLoginAlwaysUsesBasic(t *testing.T) {
	for _, scheme := range []Scheme{BearerScheme(), APIKeyScheme("X-Api-Key"), BasicScheme(), {}} {
		srv, reqs := newCaptureServer(t, http.StatusOK, "")
		c, err := NewRestyClient(srv.URL, Options{Scheme: scheme})
		if err != nil {
			t.Fatalf("NewRestyClient: %v", err)
		}
		if _, err := c.Login(context.Background(), "Zm9vOmJhcg==", "v1/login"); err != nil {
			t.Fatalf("Login (%s): %v", scheme, err)
		}
		got := <-reqs
		if got.method != http.MethodPost || got.path != "/v1/login" {
			t.Fatalf("unexpected login request %s %s", got.method, got.path)
		}
		if h := got.header.Get("Authorization"); h != "Basic Zm9vOmJhcg==" {
			t.Fatalf("scheme %s: Authorization = %q", scheme, h)
		}
		if h := got.header.Get("X-Api-Key"); h != "" {
			t.Fatalf("scheme %s: login must not send api key header, got %q", scheme, h)
		}
		if len(got.body) != 0 {
			t.Fatalf("login body should be empty, got %q", got.body)
		}
	}
}

func TestLoginRejectsEmptyCredentials(t *testing.T) {
	c, err := NewRestyClient("http://127.0.0.1:1", Options{})
	if err != nil {
		t.Fatalf("NewRestyClient: %v", err)
	}
	if _, err := c.Login(context.Background(), " ", "v1/login"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestPostPutDeleteEncodeJSONBody(t *testing.T) {
	type widget struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	calls := []struct {
		method string
		fn     func(c *RestyClient) (Response, error)
	}{
		{http.MethodPost, func(c *RestyClient) (Response, error) {
			return c.Post(context.Background(), "v1/widgets", "t", widget{Name: "w", Count: 2})
		}},
		{http.MethodPut, func(c *RestyClient) (Response, error) {
			return c.Put(context.Background(), "v1/widgets", "t", widget{Name: "w", Count: 2})
		}},
		{http.MethodDelete, func(c *RestyClient) (Response, error) {
			return c.Delete(context.Background(), "v1/widgets", "t", widget{Name: "w", Count: 2})
		}},
	}

	for _, call := range calls {
		srv, reqs := newCaptureServer(t, http.StatusCreated, "")
		c, err := NewRestyClient(srv.URL, Options{Scheme: BearerScheme()})
		if err != nil {
			t.Fatalf("NewRestyClient: %v", err)
		}
		resp, err := call.fn(c)
		if err != nil {
			t.Fatalf("%s: %v", call.method, err)
		}
		if resp.StatusCode() != http.StatusCreated {
			t.Fatalf("%s: status %d", call.method, resp.StatusCode())
		}
		got := <-reqs
		if got.method != call.method {
			t.Fatalf("expected %s, got %s", call.method, got.method)
		}
		if ct := got.header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s: Content-Type = %q", call.method, ct)
		}
		var decoded widget
		if err := json.Unmarshal(got.body, &decoded); err != nil {
			t.Fatalf("%s: body not JSON: %v (%q)", call.method, err, got.body)
		}
		if decoded != (widget{Name: "w", Count: 2}) {
			t.Fatalf("%s: decoded body %+v", call.method, decoded)
		}
	}
}

func TestNilBodySendsNothing(t *testing.T) {
	srv, reqs := newCaptureServer(t, http.StatusOK, "")
	c, err := NewRestyClient(srv.URL, Options{})
	if err != nil {
		t.Fatalf("NewRestyClient: %v", err)
	}
	if _, err := c.Post(context.Background(), "v1/ping", "", nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	got := <-reqs
	if len(got.body) != 0 {
		t.Fatalf("expected empty body, got %q", got.body)
	}
	if h := got.header.Get("Authorization"); h != "" {
		t.Fatalf("scheme none must not send Authorization, got %q", h)
	}
}

func TestUnencodableBodyIsInvalidArgument(t *testing.T) {
	c, err := NewRestyClient("http://127.0.0.1:1", Options{})
	if err != nil {
		t.Fatalf("NewRestyClient: %v", err)
	}
	_, err = c.Post(context.Background(), "v1/x", "", map[string]any{"ch": make(chan int)})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestTransportDoesNotInterpretStatus(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusInternalServerError, "boom")
	c, err := NewRestyClient(srv.URL, Options{Scheme: BearerScheme()})
	if err != nil {
		t.Fatalf("NewRestyClient: %v", err)
	}
	resp, err := c.Get(context.Background(), "v1/fail", "t")
	if err != nil {
		t.Fatalf("transport should not fail on 5xx, got %v", err)
	}
	if resp.StatusCode() != http.StatusInternalServerError || string(resp.Body()) != "boom" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode(), resp.Body())
	}
}

func TestCancellationAbortsInFlightCall(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewRestyClient(srv.URL, Options{Scheme: BearerScheme()})
	if err != nil {
		t.Fatalf("NewRestyClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = c.Get(ctx, "v1/slow", "t")
	if err == nil {
		t.Fatalf("expected error on cancelled call")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("cancellation did not abort the call promptly")
	}
}
