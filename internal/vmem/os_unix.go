//go:build unix

package vmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type osPages struct {
	pageSize int
}

// OS returns the page interface of the running platform.
func OS() PageInterface {
	return osPages{pageSize: unix.Getpagesize()}
}

func (p osPages) PageSize() int { return p.pageSize }

func (p osPages) Reserve(size int) ([]byte, error) {
	if err := checkSize(size, p.pageSize); err != nil {
		return nil, err
	}
	// PROT_NONE keeps the range out of the commit charge until pages are committed.
	data, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON|reserveFlags)
	if err != nil {
		return nil, fmt.Errorf("vmem: reserve %d bytes: %w", size, err)
	}
	return data, nil
}

func (p osPages) Commit(b []byte) error {
	if err := checkRange(b, p.pageSize); err != nil {
		return err
	}
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("vmem: commit %d bytes: %w", len(b), err)
	}
	return nil
}

func (p osPages) Decommit(b []byte) error {
	if err := checkRange(b, p.pageSize); err != nil {
		return err
	}
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmem: decommit %d bytes: %w", len(b), err)
	}
	if err := unix.Mprotect(b, unix.PROT_NONE); err != nil {
		return fmt.Errorf("vmem: decommit %d bytes: %w", len(b), err)
	}
	return nil
}

func (p osPages) Release(b []byte) error {
	if err := checkRange(b, p.pageSize); err != nil {
		return err
	}
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("vmem: release %d bytes: %w", len(b), err)
	}
	return nil
}
