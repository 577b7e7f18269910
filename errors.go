package pagearena

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pagearena/internal/pagealloc"
	"github.com/hupe1980/pagearena/internal/resource"
)

var (
	// ErrOutOfMemory is returned when no free range can hold a request.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrMetadataExhausted is returned when the arena is split into as many
	// ranges as its metadata can describe.
	ErrMetadataExhausted = errors.New("range metadata exhausted")
	// ErrMemoryLimit is returned when a commit would exceed WithMemoryLimit.
	ErrMemoryLimit = errors.New("memory limit exceeded")
	// ErrRateLimited is returned when a commit is larger than the commit burst.
	ErrRateLimited = errors.New("commit rate limited")
	// ErrClosed is returned by operations on a closed Arena.
	ErrClosed = errors.New("arena is closed")
)

// ErrInvalidSize indicates a commit size that is not a positive multiple of
// the page size.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidSize struct {
	Size     int
	PageSize int
	cause    error
}

func (e *ErrInvalidSize) Error() string {
	return fmt.Sprintf("invalid size: %d is not a positive multiple of page size %d", e.Size, e.PageSize)
}

func (e *ErrInvalidSize) Unwrap() error { return e.cause }

func translateError(err error, size, pageSize int) error {
	if err == nil {
		return nil
	}

	// Exhaustion.
	if errors.Is(err, pagealloc.ErrOutOfMemory) {
		return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	if errors.Is(err, pagealloc.ErrMetadataExhausted) {
		return fmt.Errorf("%w: %w", ErrMetadataExhausted, err)
	}
	if errors.Is(err, resource.ErrMemoryLimitExceeded) {
		return fmt.Errorf("%w: %w", ErrMemoryLimit, err)
	}
	if errors.Is(err, resource.ErrCommitRateExceeded) {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}

	// Argument normalization.
	if errors.Is(err, pagealloc.ErrInvalidSize) {
		return &ErrInvalidSize{Size: size, PageSize: pageSize, cause: err}
	}
	if errors.Is(err, pagealloc.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
