// Package resource implements the Controller that bounds an arena's footprint.
//
// The Controller governs two resources:
//
//   - Memory: a hard cap on committed bytes (non-blocking, fail-fast)
//   - Commit rate: a token bucket on bytes committed per second
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and atomic counters
// for usage tracking. AcquireMemory is non-blocking and returns immediately
// with ErrMemoryLimitExceeded if the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.AcquireMemory(64 << 10); err != nil {
//	    // ErrMemoryLimitExceeded - caller decides retry/backoff
//	}
//	defer rc.ReleaseMemory(64 << 10)
//
// # Commit Rate Limiting
//
// A token bucket smooths bursts of page commits, which are page faults and
// zeroing work for the kernel:
//
//	rc := resource.NewController(resource.Config{
//	    CommitBytesPerSec: 256 << 20, // 256MB/s
//	})
//
//	if err := rc.AcquireCommit(ctx, 1<<20); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use.
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
