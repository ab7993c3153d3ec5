package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateName        = errors.New("duplicate name")
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrInconsistentIndex    = errors.New("inconsistent index")
	ErrUnknownSlot          = errors.New("unknown slot")
	ErrTimeout              = errors.New("timeout")
)

// EmbeddingError is returned when the embedding capability fails. Transient
// failures (network, rate limit, timeout) may succeed on retry.
type EmbeddingError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	if e == nil || e.Err == nil {
		return ErrEmbeddingUnavailable.Error()
	}
	return fmt.Sprintf("%s: %v", ErrEmbeddingUnavailable, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbeddingUnavailable }

// NewEmbeddingError wraps err, keeping an existing *EmbeddingError as is.
func NewEmbeddingError(transient bool, err error) error {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return err
	}
	return &EmbeddingError{Transient: transient, Err: err}
}

// InconsistentIndexError reports an index slot that no longer resolves to
// stored text.
type InconsistentIndexError struct {
	Slot    int
	StoreID int64
	Err     error
}

func (e *InconsistentIndexError) Error() string {
	return fmt.Sprintf("%s: slot %d (store id %d): %v", ErrInconsistentIndex, e.Slot, e.StoreID, e.Err)
}

func (e *InconsistentIndexError) Unwrap() error { return e.Err }

func (e *InconsistentIndexError) Is(target error) bool { return target == ErrInconsistentIndex }

// DimensionError builds an ErrDimensionMismatch with the offending sizes.
func DimensionError(got, want int) error {
	return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, got, want)
}
