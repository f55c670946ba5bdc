package export

import (
	"errors"
	"fmt"

	"github.com/boomerchi/dream-go/internal/tensor"
)

// Common errors.
var (
	// ErrFinalized is returned when a context is mutated after Finalize.
	ErrFinalized = errors.New("context is finalized")
)

// ConfigError reports mutually exclusive or missing parameters. It is
// caller-fixable, detected before any numeric work, and fatal to the
// whole document: a skipped layer would desynchronize the operation
// graph.
type ConfigError struct {
	Op      string // Layer kind being serialized (e.g. "Conv2D")
	Details string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.Op, e.Details)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Details)
}

// ShapeError reports a rank or broadcast mismatch between the kernel and
// a normalization parameter. It indicates a trainer/exporter contract
// violation upstream.
type ShapeError struct {
	Param   string // Offending tensor (e.g. "gamma", "kernel")
	Want    tensor.Shape
	Got     tensor.Shape
	Details string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("shape mismatch for %s: %s (want %v, got %v)", e.Param, e.Details, e.Want, e.Got)
	}
	return fmt.Sprintf("shape mismatch for %s: want %v, got %v", e.Param, e.Want, e.Got)
}

// IdentityError reports a broken dedup invariant: the same handle
// resolving to two different IDs, or two incompatible declared shapes.
// It is never user-triggerable; raising one indicates a context bug.
type IdentityError struct {
	Details string
}

// Error implements the error interface.
func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity consistency violation: %s", e.Details)
}
