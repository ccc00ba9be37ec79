package upnp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrHeaderMissing reports a required header or element that is absent.
	ErrHeaderMissing = errors.New("header missing")
	// ErrBadFormat reports a value that is present but cannot be parsed.
	ErrBadFormat = errors.New("bad format")
)

// ParseError is returned for malformed SSDP text, descriptions, SOAP bodies
// and DIDL-Lite fields. Kind is ErrHeaderMissing or ErrBadFormat.
type ParseError struct {
	Kind  error
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// MissingError builds a ParseError of kind ErrHeaderMissing.
func MissingError(field string) error {
	return &ParseError{Kind: ErrHeaderMissing, Field: field}
}

// FormatError builds a ParseError of kind ErrBadFormat.
func FormatError(field, value string, err error) error {
	return &ParseError{Kind: ErrBadFormat, Field: field, Value: value, Err: err}
}

// TransportError is a network-level failure: unreachable host, timeout,
// reset connection or a non-SOAP reply.
type TransportError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a UPnP control error returned by a device.
type ServiceError struct {
	Code        int
	Description string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("upnp error %d: %s", e.Code, e.Description)
}

// ActionError carries the device and action context of a failed control call.
type ActionError struct {
	Device  string
	Service string
	Action  string
	Args    []Arg
	Err     error
}

func (e *ActionError) Error() string {
	args := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		args = append(args, a.Name+"="+a.Value)
	}
	return fmt.Sprintf("%s: %s#%s(%s): %v", e.Device, e.Service, e.Action, strings.Join(args, ", "), e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// IsServiceError reports whether err carries the given UPnP error code.
func IsServiceError(err error, code int) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Code == code
}
