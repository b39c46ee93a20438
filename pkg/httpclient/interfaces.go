package httpclient

import (
	"context"
	"net/http"
)

// Response is the raw outcome of a single HTTP call. Clients hand it back untouched.
type Response interface {
	Body() []byte
	StatusCode() int
	Status() string
	Header() http.Header
}

// Client executes exactly one authenticated HTTP call per method and returns the
// raw response. Status codes and bodies are left for the caller to interpret.
type Client interface {
	Login(ctx context.Context, encodedCredentials, path string) (Response, error)
	Get(ctx context.Context, path, token string) (Response, error)
	Post(ctx context.Context, path, token string, body any) (Response, error)
	Put(ctx context.Context, path, token string, body any) (Response, error)
	Delete(ctx context.Context, path, token string, body any) (Response, error)
}

// Request describes one call issued through Do.
type Request struct {
	Method string
	Path   string
	// Credential is the per-call token attached according to the client's scheme.
	Credential string
	Body       any
	HasBody    bool
}
