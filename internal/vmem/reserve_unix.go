//go:build unix && !linux

package vmem

const reserveFlags = 0
