package httpclient

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument reports a missing or malformed argument. It is returned before
// any network activity takes place.
var ErrInvalidArgument = errors.New("invalid argument")

// ParamNotEmpty fails with ErrInvalidArgument when value is empty or whitespace.
func ParamNotEmpty(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, name)
	}
	return nil
}
