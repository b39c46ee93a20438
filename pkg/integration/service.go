package integration

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-integration-client/pkg/httpclient"
)

// DefaultVersion is the API version prefix used when none is configured.
const DefaultVersion = "v1"

const loginPath = "login"

// Logger is the logging surface shared with the transport.
type Logger = httpclient.Logger

// Service composes versioned request paths, sends them through a transport
// client with the current session token and turns responses into typed values.
//
// The token is read once when a call is dispatched. SetToken is safe to call
// concurrently, but sequencing login, SetToken and later calls is the caller's job.
type Service struct {
	transport httpclient.Client
	version   string
	token     atomic.Pointer[string]
	log       Logger
}

// Option customises a Service.
type Option func(*Service)

// WithToken sets the initial session token.
func WithToken(token string) Option {
	return func(s *Service) { s.SetToken(token) }
}

// WithVersion sets the API version prefix. Blank keeps DefaultVersion.
func WithVersion(version string) Option {
	return func(s *Service) {
		if v := strings.Trim(strings.TrimSpace(version), "/"); v != "" {
			s.version = v
		}
	}
}

// WithLogger sets the logger used for classified failures.
func WithLogger(log Logger) Option {
	return func(s *Service) { s.log = httpclient.EnsureLogger(log) }
}

// New wraps an existing transport client.
func New(transport httpclient.Client, opts ...Option) (*Service, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: transport client must not be nil", ErrInvalidArgument)
	}
	s := &Service{
		transport: transport,
		version:   DefaultVersion,
		log:       httpclient.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Config describes a Service together with the transport it owns.
type Config struct {
	BaseURL string
	Scheme  httpclient.Scheme
	Token   string
	Version string
	Timeout time.Duration
	Logger  Logger
}

// NewFromConfig builds the transport client and the Service on top of it.
func NewFromConfig(cfg Config) (*Service, error) {
	transport, err := httpclient.NewRestyClient(cfg.BaseURL, httpclient.Options{
		Scheme:  cfg.Scheme,
		Timeout: cfg.Timeout,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return New(transport, WithToken(cfg.Token), WithVersion(cfg.Version), WithLogger(cfg.Logger))
}

// NewWithBearer builds a Service sending "Authorization: Bearer <token>".
func NewWithBearer(baseURL, token string, opts ...Option) (*Service, error) {
	transport, err := httpclient.NewRestyClient(baseURL, httpclient.Options{Scheme: httpclient.BearerScheme()})
	if err != nil {
		return nil, err
	}
	return New(transport, append([]Option{WithToken(token)}, opts...)...)
}

// NewWithAPIKey builds a Service sending the token in the apiKeyHeader header.
func NewWithAPIKey(baseURL, apiKeyHeader, token string, opts ...Option) (*Service, error) {
	transport, err := httpclient.NewRestyClient(baseURL, httpclient.Options{Scheme: httpclient.APIKeyScheme(apiKeyHeader)})
	if err != nil {
		return nil, err
	}
	return New(transport, append([]Option{WithToken(token)}, opts...)...)
}

// Token returns the current session token.
func (s *Service) Token() string {
	if p := s.token.Load(); p != nil {
		return *p
	}
	return ""
}

// SetToken replaces the session token used by calls dispatched afterwards.
func (s *Service) SetToken(token string) {
	s.token.Store(&token)
}

// WithSessionToken returns a copy of s bound to token. s itself is unchanged.
func (s *Service) WithSessionToken(token string) *Service {
	c := &Service{transport: s.transport, version: s.version, log: s.log}
	c.SetToken(token)
	return c
}

// Version returns the API version prefix.
func (s *Service) Version() string { return s.version }

// Login exchanges encrypted credentials for an AuthenticationResult at {version}/login.
// Both 200 and 401 carry a decodable payload; any other status is an error.
// The returned token is not stored; call SetToken to use it.
func (s *Service) Login(ctx context.Context, encryptedCredentials string) (AuthenticationResult, error) {
	uri := s.requestURI(loginPath)
	op := http.MethodPost + " " + uri
	if err := httpclient.ParamNotEmpty("encrypted credentials", encryptedCredentials); err != nil {
		return AuthenticationResult{}, s.fail(newInvalidArgumentError(op, err))
	}

	resp, err := s.transport.Login(ctx, encryptedCredentials, uri)
	if err != nil {
		return AuthenticationResult{}, s.fail(classifyCallError(ctx, op, err))
	}
	if code := resp.StatusCode(); code != http.StatusOK && code != http.StatusUnauthorized {
		return AuthenticationResult{}, s.fail(newUnexpectedStatusError(op, resp))
	}

	result, err := decodeBody[AuthenticationResult](op, resp)
	if err != nil {
		return AuthenticationResult{}, s.fail(err)
	}
	result.StatusCode = resp.StatusCode()
	return result, nil
}

// requestURI composes "{version}/{path}".
func (s *Service) requestURI(path string) string {
	return s.version + "/" + strings.TrimLeft(path, "/")
}

// send issues one call through the transport verb matching method and rejects
// 5xx and 404 responses.
func (s *Service) send(ctx context.Context, method, path string, body any, hasBody bool) (httpclient.Response, string, error) {
	uri := s.requestURI(path)
	op := method + " " + uri
	if err := httpclient.ParamNotEmpty("request path", path); err != nil {
		return nil, op, s.fail(newInvalidArgumentError(op, err))
	}

	var payload any
	if hasBody {
		payload = body
	}

	token := s.Token()
	var (
		resp httpclient.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = s.transport.Get(ctx, uri, token)
	case http.MethodPost:
		resp, err = s.transport.Post(ctx, uri, token, payload)
	case http.MethodPut:
		resp, err = s.transport.Put(ctx, uri, token, payload)
	case http.MethodDelete:
		resp, err = s.transport.Delete(ctx, uri, token, payload)
	default:
		return nil, op, s.fail(newInvalidArgumentError(op, fmt.Errorf("%w: unsupported method %q", ErrInvalidArgument, method)))
	}
	if err != nil {
		return nil, op, s.fail(classifyCallError(ctx, op, err))
	}
	if err := checkForAPIErrors(op, resp); err != nil {
		return nil, op, s.fail(err)
	}
	return resp, op, nil
}

// fail logs a classified error and returns it.
func (s *Service) fail(err error) error {
	if e, ok := err.(*Error); ok {
		s.log.WarnObj("integration call failed", "integration_error", map[string]any{
			"op":     e.Op,
			"kind":   string(e.Kind),
			"status": e.StatusCode,
		})
	}
	return err
}
