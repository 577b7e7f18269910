package pagearena

import (
	"log/slog"

	"github.com/hupe1980/pagearena/internal/vmem"
)

// PageInterface is the operating-system page API an Arena is built on.
// All sizes and slices are page multiples and page-aligned.
type PageInterface interface {
	// PageSize returns the page size in bytes.
	PageSize() int
	// Reserve reserves size bytes of address space without backing memory.
	Reserve(size int) ([]byte, error)
	// Commit backs pages of a reservation with memory.
	Commit(b []byte) error
	// Decommit returns the memory behind pages while keeping the reservation.
	Decommit(b []byte) error
	// Release returns a whole reservation. b must be the slice Reserve returned.
	Release(b []byte) error
}

// OSPages returns the page interface of the running operating system.
func OSPages() PageInterface { return vmem.OS() }

// SimulatedPages returns a heap-backed page interface with the given page
// size. It is useful for tests and platforms without virtual memory
// primitives; reservations consume real memory.
func SimulatedPages(pageSize int) PageInterface { return vmem.NewSimulated(pageSize) }

type options struct {
	pages            PageInterface
	arenaSize        int
	maxRanges        int
	memoryLimit      int64
	commitRate       int64
	commitBurst      int64
	validate         bool
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Arena construction.
type Option func(*options)

// WithPageInterface sets the page interface backing the arena.
//
// If nil is passed, OSPages is used.
func WithPageInterface(pi PageInterface) Option {
	return func(o *options) {
		if pi == nil {
			pi = OSPages()
		}
		o.pages = pi
	}
}

// WithArenaSize sets the number of bytes of address space to reserve.
// It is rounded up to whole pages. The default is 32 GiB on 64-bit
// platforms and 1 GiB on 32-bit platforms.
func WithArenaSize(bytes int) Option {
	return func(o *options) {
		o.arenaSize = bytes
	}
}

// WithMaxRanges bounds how many ranges (committed plus free) the arena can be
// split into. Metadata for that many ranges is committed when the arena is
// created; once it is used up, Commit returns ErrMetadataExhausted until
// ranges are decommitted.
func WithMaxRanges(n int) Option {
	return func(o *options) {
		o.maxRanges = n
	}
}

// WithMemoryLimit caps the number of bytes that may be committed at once.
// Commits beyond the cap fail with ErrMemoryLimit. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithCommitRate limits the sustained commit throughput in bytes per second.
// burst is the largest single commit admitted; if 0 it equals bytesPerSec.
// CommitContext waits for tokens, and fails with ErrRateLimited for commits
// larger than burst.
func WithCommitRate(bytesPerSec, burst int64) Option {
	return func(o *options) {
		o.commitRate = bytesPerSec
		o.commitBurst = burst
	}
}

// WithValidation checks all arena invariants after every Commit and Decommit
// and panics on the first violation. It walks all metadata and is meant for
// tests and debugging.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &pagearena.BasicMetricsCollector{}
//	a, _ := pagearena.New(pagearena.WithMetricsCollector(metrics))
//	// ... use a ...
//	stats := metrics.GetStats()
//	fmt.Printf("Commits: %d, Live: %d bytes\n", stats.CommitCount, stats.LiveBytes)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := pagearena.NewJSONLogger(slog.LevelInfo)
//	a, _ := pagearena.New(pagearena.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.pages == nil {
		o.pages = OSPages()
	}
	return o
}
