//go:build linux

package vmem

import "golang.org/x/sys/unix"

const reserveFlags = unix.MAP_NORESERVE
