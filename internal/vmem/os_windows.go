//go:build windows

package vmem

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

type osPages struct {
	pageSize int
}

// OS returns the page interface of the running platform.
func OS() PageInterface {
	return osPages{pageSize: os.Getpagesize()}
}

func (p osPages) PageSize() int { return p.pageSize }

func (p osPages) Reserve(size int) ([]byte, error) {
	if err := checkSize(size, p.pageSize); err != nil {
		return nil, err
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("vmem: reserve %d bytes: %w", size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func (p osPages) Commit(b []byte) error {
	if err := checkRange(b, p.pageSize); err != nil {
		return err
	}
	if _, err := windows.VirtualAlloc(addrOf(b), uintptr(len(b)), windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return fmt.Errorf("vmem: commit %d bytes: %w", len(b), err)
	}
	return nil
}

func (p osPages) Decommit(b []byte) error {
	if err := checkRange(b, p.pageSize); err != nil {
		return err
	}
	if err := windows.VirtualFree(addrOf(b), uintptr(len(b)), windows.MEM_DECOMMIT); err != nil {
		return fmt.Errorf("vmem: decommit %d bytes: %w", len(b), err)
	}
	return nil
}

func (p osPages) Release(b []byte) error {
	if err := checkRange(b, p.pageSize); err != nil {
		return err
	}
	// MEM_RELEASE frees the entire reservation and requires a zero size.
	if err := windows.VirtualFree(addrOf(b), 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("vmem: release %d bytes: %w", len(b), err)
	}
	return nil
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
