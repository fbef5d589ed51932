package framevk

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error classes. Every fatal error returned by this package matches exactly
// one of them with errors.Is.
var (
	// ErrConfig reports a platform that cannot run the renderer: no usable
	// device or queue family, no surface format, no matching memory type.
	ErrConfig = errors.New("fatal configuration error")
	// ErrCreate reports a failed GPU object creation.
	ErrCreate = errors.New("gpu object creation failed")
	// ErrInvalidArgument reports a caller bug such as an unknown layout
	// transition or an out of order destroy.
	ErrInvalidArgument = errors.New("invalid argument")
)

type classified struct {
	class error
	cause error
}

func (c *classified) Error() string {
	return fmt.Sprintf("%s: %s", c.class, c.cause)
}

func (c *classified) Unwrap() error { return c.cause }

func (c *classified) Cause() error { return c.cause }

func (c *classified) Is(target error) bool {
	return target == c.class
}

func classify(class, cause error) error {
	var c *classified
	if errors.As(cause, &c) {
		return cause
	}
	return &classified{class: class, cause: cause}
}

func configErrorf(format string, args ...interface{}) error {
	return classify(ErrConfig, errors.Errorf(format, args...))
}

func invalidArgumentf(format string, args ...interface{}) error {
	return classify(ErrInvalidArgument, errors.Errorf(format, args...))
}

// createError wraps a driver failure for the named operation.
func createError(err error, op string) error {
	if err == nil {
		return nil
	}
	return classify(ErrCreate, errors.Wrap(err, op))
}

// ConfigErrorf builds an ErrConfig error for backends outside this package,
// such as a device without a usable queue family or extension.
func ConfigErrorf(format string, args ...interface{}) error {
	return configErrorf(format, args...)
}
