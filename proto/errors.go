package proto

import "fmt"

// ErrorKind classifies decode failures.
type ErrorKind string

// Malformed covers unknown message types, invalid JSON and missing required fields.
const Malformed ErrorKind = "malformed"

// DecodeError is returned by Decode. It concerns a single message only.
type DecodeError struct {
	Kind   ErrorKind
	Type   Type
	Reason string
}

// Error returns error as a string.
func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s message: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s %q message: %s", e.Kind, e.Type, e.Reason)
}

func malformed(t Type, reason string) *DecodeError {
	return &DecodeError{Kind: Malformed, Type: t, Reason: reason}
}
