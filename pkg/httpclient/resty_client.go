package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options tunes a RestyClient.
type Options struct {
	Scheme Scheme
	// Timeout bounds every call in addition to the caller's context. Zero means no limit.
	Timeout time.Duration
	Logger  Logger
}

// RestyClient implements Client by building a fresh resty.Client for every call.
// Nothing is shared between calls: each gets its own header set and connections.
type RestyClient struct {
	baseURL string
	scheme  Scheme
	timeout time.Duration
	log     Logger
}

var _ Client = (*RestyClient)(nil)

// NewRestyClient validates the base domain and scheme and returns a transport client.
func NewRestyClient(baseURL string, opts Options) (*RestyClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if err := ParamNotEmpty("base url", baseURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q is not an absolute URL", ErrInvalidArgument, baseURL)
	}
	if err := opts.Scheme.validate(); err != nil {
		return nil, err
	}

	return &RestyClient{
		baseURL: baseURL,
		scheme:  opts.Scheme,
		timeout: opts.Timeout,
		log:     EnsureLogger(opts.Logger),
	}, nil
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// BaseURL returns the base domain every path is resolved against.
func (r *RestyClient) BaseURL() string { return r.baseURL }

// Scheme returns the configured authentication scheme.
func (r *RestyClient) Scheme() Scheme { return r.scheme }

// Login posts an empty body with "Authorization: Basic <encodedCredentials>",
// whatever scheme the client was built with.
func (r *RestyClient) Login(ctx context.Context, encodedCredentials, path string) (Response, error) {
	if err := ParamNotEmpty("encoded credentials", encodedCredentials); err != nil {
		return nil, err
	}
	return r.execute(ctx, loginHeaders(encodedCredentials), Request{
		Method: http.MethodPost,
		Path:   path,
	})
}

// Get issues a GET carrying token according to the client's scheme.
func (r *RestyClient) Get(ctx context.Context, path, token string) (Response, error) {
	return r.Do(ctx, Request{Method: http.MethodGet, Path: path, Credential: token})
}

// Post issues a POST; a non-nil body is sent as JSON.
func (r *RestyClient) Post(ctx context.Context, path, token string, body any) (Response, error) {
	return r.Do(ctx, withBody(Request{Method: http.MethodPost, Path: path, Credential: token}, body))
}

// Put issues a PUT; a non-nil body is sent as JSON.
func (r *RestyClient) Put(ctx context.Context, path, token string, body any) (Response, error) {
	return r.Do(ctx, withBody(Request{Method: http.MethodPut, Path: path, Credential: token}, body))
}

// Delete issues a DELETE; a non-nil body is sent as JSON.
func (r *RestyClient) Delete(ctx context.Context, path, token string, body any) (Response, error) {
	return r.Do(ctx, withBody(Request{Method: http.MethodDelete, Path: path, Credential: token}, body))
}

// Do executes req with the client's scheme applied to req.Credential.
func (r *RestyClient) Do(ctx context.Context, req Request) (Response, error) {
	return r.execute(ctx, r.scheme.headers(req.Credential), req)
}

func withBody(req Request, body any) Request {
	if body != nil {
		req.Body = body
		req.HasBody = true
	}
	return req
}

// execute builds a single-use resty client with headers, performs req and
// releases the client's connections once the response has been read.
func (r *RestyClient) execute(ctx context.Context, headers map[string]string, req Request) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	client := newRestyBaseClient(r.timeout).
		SetBaseURL(r.baseURL).
		SetHeaders(headers)
	defer client.GetClient().CloseIdleConnections()

	rr := client.R().SetContext(ctx)
	if req.HasBody {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request body: %v", ErrInvalidArgument, err)
		}
		rr.SetHeader(headerContentType, applicationJSON).SetBody(payload)
	}

	start := time.Now()
	resp, err := rr.Execute(req.Method, req.Path)
	if err != nil {
		r.log.DebugObj("http call failed", "http_call", map[string]any{
			"method": req.Method,
			"path":   req.Path,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	r.log.DebugObj("http call completed", "http_call", map[string]any{
		"method":     req.Method,
		"path":       req.Path,
		"status":     resp.StatusCode(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte        { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int     { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Status() string      { return r.resp.Status() }
func (r *restyResponseAdapter) Header() http.Header { return r.resp.Header() }
