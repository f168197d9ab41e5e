package binlay

import (
	"errors"
	"fmt"
)

// ErrLengthExceeded is returned when a write would overflow a length-limited
// stream view. Overflow fails; it never truncates silently.
var ErrLengthExceeded = errors.New("write exceeds length limit")

// BindingError reports a malformed or unresolvable binding: an empty or
// ambiguous cross-field path, or a subtype lookup miss.
type BindingError struct {
	Path    string // the offending path, if any
	Message string
}

func (e *BindingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("binding %q: %s", e.Path, e.Message)
	}
	return "binding: " + e.Message
}

// bindErr builds a BindingError.
func bindErr(path, format string, args ...any) *BindingError {
	return &BindingError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// UnsupportedError reports a capability invoked on a node whose variant does
// not support it, or a binding that resolved to a value of the wrong
// semantic kind.
type UnsupportedError struct {
	Op      string // the operation or parameter involved
	Kind    Kind   // the node kind the operation was attempted on
	Message string
}

func (e *UnsupportedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s on %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s not supported on %s", e.Op, e.Kind)
}

// unsupported builds the default capability failure for a variant.
func unsupported(op string, k Kind) *UnsupportedError {
	return &UnsupportedError{Op: op, Kind: k}
}

// StreamFault marks a transport-level failure of the underlying stream.
// The engine never rewraps one: it propagates unchanged through every level
// of the recursion so callers can distinguish transport failures from
// schema/data mismatches. Stream implementations backed by fallible media
// should wrap their I/O errors in a StreamFault.
type StreamFault struct {
	Err error
}

func (e *StreamFault) Error() string { return "stream fault: " + e.Err.Error() }

func (e *StreamFault) Unwrap() error { return e.Err }

// IsStreamFault reports whether err is (or wraps) a StreamFault.
func IsStreamFault(err error) bool {
	var f *StreamFault
	return errors.As(err, &f)
}

// SerializationError attributes a failure to a specific field in the value
// tree. The field is named by its schema name or, for the unnamed root, by
// its kind. Errors nest along the recursion, yielding a path from the root
// to the failing node.
type SerializationError struct {
	Field string // field name, or kind name for the unnamed root
	Op    string // "serialize", "deserialize" or "bind"
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// fieldErr wraps err with field attribution unless it is a stream fault,
// which must surface unchanged.
func fieldErr(op string, n *Node, err error) error {
	if err == nil || IsStreamFault(err) {
		return err
	}
	return &SerializationError{Field: n.displayName(), Op: op, Err: err}
}
