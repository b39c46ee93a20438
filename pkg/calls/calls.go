package calls

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Package calls loads the set of API calls the runner executes (YAML/JSON).

// Call is one configured request against the integration API.
type Call struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Method string `json:"method" yaml:"method" validate:"oneof=GET POST PUT DELETE"`
	// Path is relative to the API version prefix.
	Path string `json:"path" yaml:"path" validate:"required"`
	Body any    `json:"body" yaml:"body"`
	// Discard drops the response payload and only checks the call for errors.
	Discard bool  `json:"discard" yaml:"discard"`
	Enabled *bool `json:"enabled" yaml:"enabled"`
	DelayMs int   `json:"delay_ms" yaml:"delay_ms" validate:"gte=0"`
}

type callsFile struct {
	Calls []Call `json:"calls" yaml:"calls"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Registry holds validated calls in file order.
type Registry struct {
	mu    sync.RWMutex
	calls []Call
	idx   map[string]Call
}

// LoadRegistry loads the calls registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("calls file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calls file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read calls file: %w", err)
	}

	parsed, err := parseCallsFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(parsed.Calls)
}

// NewRegistry sanitizes and validates calls.
func NewRegistry(in []Call) (*Registry, error) {
	if len(in) == 0 {
		return nil, errors.New("calls file contains no calls entries")
	}

	reg := &Registry{
		calls: make([]Call, len(in)),
		idx:   make(map[string]Call, len(in)),
	}
	for i := range in {
		c := sanitizeCall(in[i])
		if err := validateCall(c); err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
		if _, exists := reg.idx[c.ID]; exists {
			return nil, fmt.Errorf("duplicate call id %q", c.ID)
		}
		reg.calls[i] = c
		reg.idx[c.ID] = c
	}
	return reg, nil
}

func parseCallsFile(data []byte, ext string) (callsFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var errs []error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var f callsFile
		if err := d.fn(data, &f); err != nil {
			errs = append(errs, fmt.Errorf("decode %s calls: %w", d.name, err))
			continue
		}
		return f, nil
	}
	return callsFile{}, fmt.Errorf("calls file format not recognized (expected YAML or JSON): %w", errors.Join(errs...))
}

func sanitizeCall(c Call) Call {
	c.ID = strings.TrimSpace(c.ID)
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	c.Path = strings.TrimLeft(strings.TrimSpace(c.Path), "/")
	if c.Enabled == nil {
		def := true
		c.Enabled = &def
	}
	return c
}

func validateCall(c Call) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
		}
		if c.ID != "" {
			return fmt.Errorf("call %q: %s", c.ID, strings.Join(msgs, "; "))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	if c.Method == http.MethodGet && c.Body != nil {
		return fmt.Errorf("call %q: GET cannot carry a body", c.ID)
	}
	return nil
}

// All returns every configured call.
func (r *Registry) All() []Call {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Enabled returns calls that are enabled, in file order.
func (r *Registry) Enabled() []Call {
	all := r.All()
	out := make([]Call, 0, len(all))
	for _, c := range all {
		if c.EnabledValue() {
			out = append(out, c)
		}
	}
	return out
}

// ByID returns the call with the given id.
func (r *Registry) ByID(id string) (Call, bool) {
	if r == nil {
		return Call{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.idx[strings.TrimSpace(id)]
	return c, ok
}

// EnabledValue returns enabled flag defaulting to true.
func (c Call) EnabledValue() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// HasBody reports whether the call sends a request body.
func (c Call) HasBody() bool { return c.Body != nil }

// Delay returns the pause observed before the call is issued.
func (c Call) Delay() time.Duration {
	if c.DelayMs <= 0 {
		return 0
	}
	return time.Duration(c.DelayMs) * time.Millisecond
}
