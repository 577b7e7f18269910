package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Would exceed the limit.
	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 0})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(0))
	c.ReleaseMemory(-1)
	assert.Equal(t, int64(500), c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
}

func TestController_MemoryConcurrent(t *testing.T) {
	const limit = 64 << 10
	c := NewController(Config{MemoryLimitBytes: limit})

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for range 500 {
				if err := c.AcquireMemory(4096); err != nil {
					continue
				}
				if u := c.MemoryUsage(); u > limit {
					t.Errorf("usage %d above limit", u)
				}
				c.ReleaseMemory(4096)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Zero(t, c.MemoryUsage())
}

func TestController_CommitRate(t *testing.T) {
	c := NewController(Config{CommitBytesPerSec: 4096})

	// The bucket starts full.
	assert.True(t, c.TryAcquireCommit(4096))
	assert.False(t, c.TryAcquireCommit(4096))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireCommit(ctx, 4096), "would wait past the deadline")

	err := c.AcquireCommit(t.Context(), 8192)
	assert.ErrorIs(t, err, ErrCommitRateExceeded)
}

func TestController_CommitBurst(t *testing.T) {
	c := NewController(Config{CommitBytesPerSec: 4096, CommitBurstBytes: 16384})

	require.NoError(t, c.AcquireCommit(t.Context(), 16384))
	assert.False(t, c.TryAcquireCommit(4096))
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireMemory(1<<30))
	c.ReleaseMemory(1 << 30)
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
	require.NoError(t, c.AcquireCommit(t.Context(), 1<<30))
	assert.True(t, c.TryAcquireCommit(1<<30))

	unlimited := NewController(Config{})
	require.NoError(t, unlimited.AcquireCommit(t.Context(), 1<<30))
	assert.True(t, unlimited.TryAcquireCommit(1<<30))
}
