package errors

import (
	stderrors "errors"
	"sort"
	"strings"
)

// Error is a charforge failure carrying a machine-readable code.
type Error struct {
	Code    Code
	Message string
	// Metadata names the inputs involved, such as Category, Entry or Script.
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by code, so errors.Is(err, New(code, "")) tests
// for a code anywhere in the chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New returns an error with code and message.
func New(code Code, message string) *Error {
	return WrapWithMetadata(code, message, nil, nil)
}

// WithMetadata returns an error describing the inputs involved.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return WrapWithMetadata(code, message, metadata, nil)
}

// Wrap attaches code and message to cause.
func Wrap(code Code, message string, cause error) *Error {
	return WrapWithMetadata(code, message, nil, cause)
}

// WrapWithMetadata attaches code, message and metadata to cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// MetadataOf merges the metadata of every *Error in err's chain. Outer
// errors win on conflicting keys.
func MetadataOf(err error) map[string]string {
	var out map[string]string
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			break
		}
		for k, v := range e.Metadata {
			if out == nil {
				out = map[string]string{}
			}
			if _, seen := out[k]; !seen {
				out[k] = v
			}
		}
		err = e.Cause
	}
	return out
}

// Describe renders err's code and metadata as "CODE key=value ...", or ""
// when err carries no code.
func Describe(err error) string {
	code := GetCode(err)
	if code == CodeUnknown {
		return ""
	}
	meta := MetadataOf(err)
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{string(code)}
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, " ")
}
