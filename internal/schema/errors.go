package schema

import (
	"errors"
	"fmt"
)

// ErrUnknownType is matched by every UnknownTypeError via errors.Is.
var ErrUnknownType = errors.New("unknown type")

// UnknownTypeError is returned when a logical type name does not resolve in the registry.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", e.Name)
}

// Is lets errors.Is(err, ErrUnknownType) match.
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}
