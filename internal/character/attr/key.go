package attr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyKey indicates an empty key string.
	ErrEmptyKey = errors.New("attribute key is empty")
	// ErrUnknownNamespace indicates the key prefix is not a declared namespace.
	ErrUnknownNamespace = errors.New("unknown attribute namespace")
	// ErrMalformedKey indicates the key segments do not fit the namespace shape.
	ErrMalformedKey = errors.New("malformed attribute key")
)

// Key addresses one attribute.
//
// Rendered form is namespace[.qualifier][.name]: "level", "feats.Alert",
// "choices.skills.Arcana".
type Key struct {
	Namespace Namespace
	Qualifier string
	Name      string
}

// NewKey builds a key in an unqualified namespace.
func NewKey(ns Namespace, name string) Key {
	return Key{Namespace: ns, Name: name}
}

// QualifiedKey builds a key in a qualified namespace.
func QualifiedKey(ns Namespace, qualifier, name string) Key {
	return Key{Namespace: ns, Qualifier: qualifier, Name: name}
}

// Scalar builds the key for a nameless namespace.
func Scalar(ns Namespace) Key {
	return Key{Namespace: ns}
}

// ParseKey parses and validates a rendered key.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Key{}, ErrEmptyKey
	}
	head, rest, hasRest := strings.Cut(s, ".")
	ns, ok := LookupNamespace(head)
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownNamespace, head)
	}
	switch {
	case ns.Nameless():
		if hasRest {
			return Key{}, fmt.Errorf("%w: %q takes no name", ErrMalformedKey, s)
		}
		return Scalar(ns), nil
	case !hasRest || rest == "":
		return Key{}, fmt.Errorf("%w: %q needs a name", ErrMalformedKey, s)
	case ns.Qualified():
		qualifier, name, ok := strings.Cut(rest, ".")
		if !ok || qualifier == "" || name == "" {
			return Key{}, fmt.Errorf("%w: %q needs qualifier and name", ErrMalformedKey, s)
		}
		return QualifiedKey(ns, qualifier, name), nil
	default:
		return NewKey(ns, rest), nil
	}
}

// MustParseKey is ParseKey for static keys; it panics on error.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String renders the key.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Namespace.String())
	if k.Qualifier != "" {
		b.WriteByte('.')
		b.WriteString(k.Qualifier)
	}
	if k.Name != "" {
		b.WriteByte('.')
		b.WriteString(k.Name)
	}
	return b.String()
}

// Raw reports whether the key may be set directly in a character state.
func (k Key) Raw() bool {
	return k.Namespace.Valid() && !k.Namespace.Derived()
}

// MarshalText implements encoding.TextMarshaler so keys work as JSON map keys.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
