package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dbsmedya/gofixture/internal/schema"
)

// ErrMaxDepthExceeded is returned when a walk recurses deeper than the
// configured maximum.
var ErrMaxDepthExceeded = errors.New("maximum walk depth exceeded")

// WalkError reports which query of a walk failed.
type WalkError struct {
	Type        schema.LogicalType
	FilterKey   string
	FilterValue string
	Err         error
}

func (e *WalkError) Error() string {
	key := e.FilterKey
	if key == "" {
		key = "<all>"
	}
	return fmt.Sprintf("walk %s where %s=%s: %v", e.Type, key, e.FilterValue, e.Err)
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// MalformedRecordError is returned when a fetched record lacks its primary
// key or a declared relation attribute.
type MalformedRecordError struct {
	Type      schema.LogicalType
	Attribute string
	PK        interface{}
}

func (e *MalformedRecordError) Error() string {
	if e.PK == nil {
		return fmt.Sprintf("malformed %s record: missing %q", e.Type, e.Attribute)
	}
	return fmt.Sprintf("malformed %s record %v: missing %q", e.Type, e.PK, e.Attribute)
}

// PreflightError represents a preflight check failure.
type PreflightError struct {
	Check   string
	Message string
	Models  []string
}

func (e *PreflightError) Error() string {
	if len(e.Models) > 0 {
		return fmt.Sprintf("%s: %s (models: %s)", e.Check, e.Message, strings.Join(e.Models, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}
