package vmem

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pagearena/internal/mem"
)

// PageInterface reserves address space and controls its physical backing.
//
// All sizes and addresses must be page-size multiples. Implementations return
// ErrNotPageAligned for violations; callers treat that as a precondition
// failure, not a recoverable condition.
type PageInterface interface {
	// PageSize returns the page size, constant for the process lifetime.
	PageSize() int
	// Reserve reserves size bytes of address space without committing
	// physical pages. Touching the returned bytes before Commit faults.
	Reserve(size int) ([]byte, error)
	// Commit makes a reserved sub-range readable and writable.
	Commit(b []byte) error
	// Decommit drops the physical backing of b while keeping it reserved.
	Decommit(b []byte) error
	// Release returns a whole reservation, as returned by Reserve, to the OS.
	Release(b []byte) error
}

var (
	// ErrNotPageAligned is returned when a size or address is not a page multiple.
	ErrNotPageAligned = errors.New("vmem: not page aligned")
	// ErrInvalidSize is returned for zero or negative sizes.
	ErrInvalidSize = errors.New("vmem: invalid size")
	// ErrUnknownRegion is returned when a range lies outside every reservation.
	ErrUnknownRegion = errors.New("vmem: range is not reserved")
)

func checkSize(size, pageSize int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if size%pageSize != 0 {
		return fmt.Errorf("%w: size %d, page size %d", ErrNotPageAligned, size, pageSize)
	}
	return nil
}

func checkRange(b []byte, pageSize int) error {
	if err := checkSize(len(b), pageSize); err != nil {
		return err
	}
	if !mem.IsAligned(b, pageSize) {
		return fmt.Errorf("%w: address %#x, page size %d", ErrNotPageAligned, mem.Addr(b), pageSize)
	}
	return nil
}
