package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnsupported    = errors.New("unsupported operation")
	ErrInternal       = errors.New("internal error")
)

// Specific errors.
var (
	// ErrNothingToRender reports that enumeration produced zero tiles.
	// It is informational, not a failure.
	ErrNothingToRender = errors.New("nothing to render")

	// ErrSinkFinalized reports a write to a sink that was already finalized.
	ErrSinkFinalized = errors.New("sink already finalized")

	ErrUnsupportedFormat     = fmt.Errorf("image format: %w", ErrUnsupported)
	ErrUnsupportedProjection = fmt.Errorf("projection: %w", ErrUnsupported)
)

// ValidationError represents a detailed request validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// RenderError represents a renderer or encoder failure on a single tile.
// It is fatal to the whole run: a tile render is assumed deterministic,
// so a retry would reproduce the same failure.
type RenderError struct {
	Address TileAddress // Tile that failed
	Stage   string      // "render" or "encode"
	Err     error       // Underlying error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("%s failed for tile %s: %v", e.Stage, e.Address, e.Err)
}

// Unwrap returns the underlying error.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// SinkError represents a failure while persisting tiles.
type SinkError struct {
	Operation string // Operation that failed (write, finalize, ...)
	Sink      string // Sink kind (directory, archive, mbtiles, ...)
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("%s sink: %s failed: %v", e.Sink, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error {
	return e.Err
}

// CompactionError represents a failure during the deduplication pass.
// The pre-compaction tile table remains valid when this is returned.
type CompactionError struct {
	Stage string // Stage that failed (prepare, copy, swap, ...)
	Err   error  // Underlying error
}

// Error implements the error interface.
func (e *CompactionError) Error() string {
	return fmt.Sprintf("compaction %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompactionError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidRequest
}
