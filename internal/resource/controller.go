package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrMemoryLimitExceeded is returned when a commit would exceed the memory limit.
	ErrMemoryLimitExceeded = errors.New("memory limit exceeded")
	// ErrCommitRateExceeded is returned when the commit rate limit does not allow a request.
	ErrCommitRateExceeded = errors.New("commit rate exceeded")
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for committed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// CommitBytesPerSec is the sustained rate at which pages may be committed.
	// If 0, unlimited.
	CommitBytesPerSec int64

	// CommitBurstBytes is the largest single commit the rate limiter admits.
	// If 0, defaults to CommitBytesPerSec.
	CommitBurstBytes int64
}

// Controller governs how much memory an arena may commit and how fast.
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Commit rate
	commitLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.CommitBytesPerSec > 0 {
		if cfg.CommitBurstBytes <= 0 {
			c.cfg.CommitBurstBytes = cfg.CommitBytesPerSec
		}
		c.commitLimiter = rate.NewLimiter(rate.Limit(cfg.CommitBytesPerSec), int(c.cfg.CommitBurstBytes))
	}

	return c
}

// AcquireMemory attempts to reserve memory.
// Returns ErrMemoryLimitExceeded if limit would be exceeded.
// Non-blocking - callers control retry/backoff policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
				ErrMemoryLimitExceeded, bytes, c.memUsed.Load(), c.cfg.MemoryLimitBytes)
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireCommit waits until the commit rate allows the specified number of bytes.
// Requests larger than the burst size fail immediately.
func (c *Controller) AcquireCommit(ctx context.Context, bytes int) error {
	if c == nil || c.commitLimiter == nil {
		return nil
	}
	if int64(bytes) > c.cfg.CommitBurstBytes {
		return fmt.Errorf("%w: %d bytes exceed burst of %d", ErrCommitRateExceeded, bytes, c.cfg.CommitBurstBytes)
	}
	return c.commitLimiter.WaitN(ctx, bytes)
}

// TryAcquireCommit attempts to acquire commit tokens without blocking.
// Returns true if tokens were acquired, false otherwise.
func (c *Controller) TryAcquireCommit(bytes int) bool {
	if c == nil || c.commitLimiter == nil {
		return true
	}
	return c.commitLimiter.AllowN(time.Now(), bytes)
}
