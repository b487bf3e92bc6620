package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateVector is returned when a vector with zero L2 norm would be normalized.
	ErrDegenerateVector = errors.New("degenerate vector: zero norm")

	// ErrDuplicateUser is returned when an id is inserted twice.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrInvalidDimension is returned when an index is created with a non-positive dimension.
	ErrInvalidDimension = errors.New("dimensions must be positive")
)

// DimensionMismatchError indicates a vector or query whose length differs from the expected dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
