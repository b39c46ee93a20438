package httpclient

import (
	"fmt"
	"strings"
)

// SchemeKind identifies how a credential is attached to outgoing requests.
type SchemeKind int

const (
	// SchemeNone attaches no credential; only the Accept header is sent.
	SchemeNone SchemeKind = iota
	// SchemeBearer sends "Authorization: Bearer <token>".
	SchemeBearer
	// SchemeBasic sends "Authorization: Basic <encoded>". Only the login handshake uses it.
	SchemeBasic
	// SchemeAPIKey sends the token in a custom header named by the scheme.
	SchemeAPIKey
)

const (
	headerAuthorization = "Authorization"
	headerAccept        = "Accept"
	headerContentType   = "Content-Type"
	applicationJSON     = "application/json"
)

// String returns the configuration name of the kind.
func (k SchemeKind) String() string {
	switch k {
	case SchemeBearer:
		return "bearer"
	case SchemeBasic:
		return "basic"
	case SchemeAPIKey:
		return "apikey"
	default:
		return "none"
	}
}

// Scheme is the authentication mechanism of a Client.
type Scheme struct {
	Kind SchemeKind
	// HeaderName is the custom header carrying the token (SchemeAPIKey only).
	HeaderName string
}

// BearerScheme returns the bearer token scheme.
func BearerScheme() Scheme { return Scheme{Kind: SchemeBearer} }

// BasicScheme returns the basic credential scheme.
func BasicScheme() Scheme { return Scheme{Kind: SchemeBasic} }

// APIKeyScheme returns a scheme sending the token in the named header.
func APIKeyScheme(headerName string) Scheme {
	return Scheme{Kind: SchemeAPIKey, HeaderName: strings.TrimSpace(headerName)}
}

// ParseScheme maps a configuration value to a Scheme.
func ParseScheme(name, headerName string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return Scheme{}, nil
	case "bearer":
		return BearerScheme(), nil
	case "basic":
		return BasicScheme(), nil
	case "apikey", "api_key", "api":
		s := APIKeyScheme(headerName)
		if err := s.validate(); err != nil {
			return Scheme{}, err
		}
		return s, nil
	default:
		return Scheme{}, fmt.Errorf("%w: unsupported auth scheme %q", ErrInvalidArgument, name)
	}
}

func (s Scheme) String() string {
	if s.Kind == SchemeAPIKey {
		return fmt.Sprintf("%s(%s)", s.Kind, s.HeaderName)
	}
	return s.Kind.String()
}

func (s Scheme) validate() error {
	if s.Kind == SchemeAPIKey {
		return ParamNotEmpty("api key header name", s.HeaderName)
	}
	return nil
}

// headers returns the default header set for a call carrying credential.
// Basic is deliberately absent: Login sets it explicitly.
func (s Scheme) headers(credential string) map[string]string {
	h := map[string]string{headerAccept: applicationJSON}
	switch s.Kind {
	case SchemeBearer:
		h[headerAuthorization] = "Bearer " + credential
	case SchemeAPIKey:
		h[s.HeaderName] = credential
	}
	return h
}

// loginHeaders returns the header set of the login handshake.
func loginHeaders(encodedCredentials string) map[string]string {
	return map[string]string{
		headerAccept:        applicationJSON,
		headerAuthorization: "Basic " + encodedCredentials,
	}
}
