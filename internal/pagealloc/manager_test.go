package pagealloc

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pagearena/internal/mem"
	"github.com/hupe1980/pagearena/internal/vmem"
	"github.com/hupe1980/pagearena/testutil"
)

const pageSize = 4096

// newManager returns a Manager over a simulated page interface with exactly
// usable pages after metadata.
func newManager(t testing.TB, usable, maxRanges int) (*Manager, *vmem.Simulated) {
	t.Helper()
	pi := vmem.NewSimulated(pageSize)

	sizing, err := New(pi, Config{ArenaSize: 16 << 20, MaxRanges: maxRanges})
	require.NoError(t, err)
	meta := sizing.Stats().MetadataBytes
	require.NoError(t, sizing.Close())

	m, err := New(pi, Config{ArenaSize: meta + usable*pageSize, MaxRanges: maxRanges})
	require.NoError(t, err)
	require.Equal(t, uint64(usable), m.Stats().TotalPages)
	t.Cleanup(func() { assert.NoError(t, m.Close()) })
	return m, pi
}

// layout renders the address index, e.g. "C2 F3 C4 F1".
func layout(m *Manager) string {
	var parts []string
	for r := range m.Ranges() {
		state := "F"
		if r.Committed {
			state = "C"
		}
		parts = append(parts, fmt.Sprintf("%s%d", state, r.Pages))
	}
	return strings.Join(parts, " ")
}

func commit(t testing.TB, m *Manager, pages int) []byte {
	t.Helper()
	b, err := m.Commit(pages * pageSize)
	require.NoError(t, err)
	require.Len(t, b, pages*pageSize)
	return b
}

func TestNew(t *testing.T) {
	m, pi := newManager(t, 10, 64)

	s := m.Stats()
	assert.Equal(t, pageSize, s.PageSize)
	assert.Equal(t, 1, s.Ranges)
	assert.Equal(t, 1, s.FreeRanges)
	assert.Equal(t, 1, s.SizeClasses)
	assert.Equal(t, uint64(10), s.LargestFreePages)
	assert.Zero(t, s.CommittedPages)
	assert.GreaterOrEqual(t, s.MetadataCapacity, 64)
	assert.Equal(t, s.MetadataBytes, pi.CommittedBytes(), "only metadata is committed up front")
	assert.Equal(t, "F10", layout(m))
	require.NoError(t, m.Validate())
}

func TestNew_Errors(t *testing.T) {
	t.Run("nil page interface", func(t *testing.T) {
		_, err := New(nil, Config{})
		assert.ErrorIs(t, err, ErrNilPageInterface)
	})

	t.Run("arena too small", func(t *testing.T) {
		pi := vmem.NewSimulated(pageSize)
		_, err := New(pi, Config{ArenaSize: pageSize, MaxRanges: 16})
		assert.ErrorIs(t, err, ErrArenaTooSmall)
		assert.Zero(t, pi.Reservations())
	})
}

func TestCommit_Split(t *testing.T) {
	m, pi := newManager(t, 10, 64)

	b := commit(t, m, 3)
	assert.Equal(t, 3*pageSize, cap(b), "callers cannot grow into the neighbour")
	assert.Equal(t, "C3 F7", layout(m))

	addr := mem.Addr(b)
	assert.True(t, m.IsCommitted(addr))
	assert.True(t, m.IsCommitted(addr+3*pageSize-1))
	assert.False(t, m.IsCommitted(addr+3*pageSize))
	assert.True(t, pi.IsCommitted(addr))
	assert.False(t, pi.IsCommitted(addr+3*pageSize))

	for i := range b {
		b[i] = 0xAB
	}
	size, ok := m.RangeSize(b)
	assert.True(t, ok)
	assert.Equal(t, 3*pageSize, size)

	s := m.Stats()
	assert.Equal(t, uint64(3), s.CommittedPages)
	assert.Equal(t, uint64(7), s.FreePages)
	require.NoError(t, m.Validate())
}

func TestCommit_ExactFit(t *testing.T) {
	m, _ := newManager(t, 10, 64)

	b := commit(t, m, 10)
	assert.Equal(t, "C10", layout(m))
	assert.Zero(t, m.Stats().FreeRanges)
	assert.Zero(t, m.Stats().SizeClasses)

	_, err := m.Commit(pageSize)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	m.Decommit(b)
	assert.Equal(t, "F10", layout(m))
	require.NoError(t, m.Validate())
}

func TestCommit_InvalidSize(t *testing.T) {
	m, _ := newManager(t, 10, 64)
	before := m.Stats()

	for _, size := range []int{0, -pageSize, 100, pageSize + 1} {
		_, err := m.Commit(size)
		assert.ErrorIs(t, err, ErrInvalidSize, "size %d", size)
	}
	assert.Equal(t, before, m.Stats())
}

func TestCommit_OutOfMemory(t *testing.T) {
	m, pi := newManager(t, 10, 64)
	commits, _ := pi.Calls()
	before := m.Stats()

	_, err := m.Commit(11 * pageSize)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, before, m.Stats())

	after, _ := pi.Calls()
	assert.Equal(t, commits, after, "no pages are committed on failure")
}

func TestCommit_BestFit(t *testing.T) {
	m, _ := newManager(t, 20, 64)

	a := commit(t, m, 2)
	commit(t, m, 1)
	c := commit(t, m, 5)
	commit(t, m, 1)
	e := commit(t, m, 3)
	commit(t, m, 1)
	assert.Equal(t, "C2 C1 C5 C1 C3 C1 F7", layout(m))

	m.Decommit(a)
	m.Decommit(c)
	m.Decommit(e)
	assert.Equal(t, "F2 C1 F5 C1 F3 C1 F7", layout(m))
	require.NoError(t, m.Validate())

	got := commit(t, m, 3)
	assert.Equal(t, mem.Addr(e), mem.Addr(got), "exact size wins")

	got = commit(t, m, 4)
	assert.Equal(t, mem.Addr(c), mem.Addr(got), "smallest range that fits")
	assert.Equal(t, "F2 C1 C4 F1 C1 C3 C1 F7", layout(m))
	assert.Equal(t, uint64(7), m.Stats().LargestFreePages)
	require.NoError(t, m.Validate())
}

func TestCommit_ReusesMostRecentlyFreed(t *testing.T) {
	m, _ := newManager(t, 10, 64)

	a := commit(t, m, 2)
	commit(t, m, 1)
	c := commit(t, m, 2)
	commit(t, m, 1)

	m.Decommit(a)
	m.Decommit(c)
	assert.Equal(t, 2, m.Stats().SizeClasses, "the 2-page bucket holds both holes")

	got := commit(t, m, 2)
	assert.Equal(t, mem.Addr(c), mem.Addr(got))
	require.NoError(t, m.Validate())
}

func TestDecommit_Coalesce(t *testing.T) {
	m, _ := newManager(t, 10, 64)

	a := commit(t, m, 2)
	b := commit(t, m, 3)
	c := commit(t, m, 4)
	assert.Equal(t, "C2 C3 C4 F1", layout(m))

	m.Decommit(b)
	assert.Equal(t, "C2 F3 C4 F1", layout(m))
	require.NoError(t, m.Validate())

	m.Decommit(a)
	assert.Equal(t, "F5 C4 F1", layout(m))
	require.NoError(t, m.Validate())

	m.Decommit(c)
	assert.Equal(t, "F10", layout(m))
	assert.Equal(t, 1, m.Stats().FreeRanges)
	require.NoError(t, m.Validate())
}

func TestDecommit_CoalesceEqualRanges(t *testing.T) {
	m, _ := newManager(t, 9, 64)

	a := commit(t, m, 3)
	b := commit(t, m, 3)
	c := commit(t, m, 3)
	require.Equal(t, "C3 C3 C3", layout(m))
	require.Zero(t, m.Stats().FreeRanges)

	m.Decommit(b)
	assert.Equal(t, "C3 F3 C3", layout(m))

	m.Decommit(a)
	assert.Equal(t, "F6 C3", layout(m))

	m.Decommit(c)
	assert.Equal(t, "F9", layout(m))
	s := m.Stats()
	assert.Equal(t, 1, s.FreeRanges)
	assert.Equal(t, 1, s.SizeClasses)
	assert.Equal(t, uint64(9), s.LargestFreePages)
	require.NoError(t, m.Validate())
}

func TestCommitDecommit_RoundTrip(t *testing.T) {
	m, _ := newManager(t, 10, 64)

	a := commit(t, m, 2)
	commit(t, m, 3)
	m.Decommit(a)
	require.Equal(t, "F2 C3 F5", layout(m))

	want := layout(m)
	before := m.Stats()
	require.Equal(t, 2, before.FreeRanges)
	require.Equal(t, 2, before.SizeClasses)

	for pages := 1; pages <= 5; pages++ {
		m.Decommit(commit(t, m, pages))
		assert.Equal(t, want, layout(m), "%d pages", pages)
		assert.Equal(t, before, m.Stats(), "%d pages", pages)
		require.NoError(t, m.Validate())
	}
}

func TestDecommit_Neighbours(t *testing.T) {
	tests := []struct {
		name string
		free []int // indexes of the four single-page ranges, in order
		want string
	}{
		{name: "none free", free: []int{1}, want: "C1 F1 C1 C1"},
		{name: "left free", free: []int{0, 1}, want: "F2 C1 C1"},
		{name: "right free", free: []int{2, 1}, want: "C1 F2 C1"},
		{name: "both free", free: []int{0, 2, 1}, want: "F3 C1"},
		{name: "everything", free: []int{3, 0, 2, 1}, want: "F4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newManager(t, 4, 64)
			pages := make([][]byte, 4)
			for i := range pages {
				pages[i] = commit(t, m, 1)
			}
			require.Equal(t, "C1 C1 C1 C1", layout(m))

			for _, i := range tt.free {
				m.Decommit(pages[i])
				require.NoError(t, m.Validate())
			}
			assert.Equal(t, tt.want, layout(m))
		})
	}
}

func TestDecommit_ZeroesPages(t *testing.T) {
	m, _ := newManager(t, 4, 64)

	b := commit(t, m, 4)
	b[0], b[len(b)-1] = 1, 1
	m.Decommit(b)

	b = commit(t, m, 4)
	assert.Zero(t, b[0])
	assert.Zero(t, b[len(b)-1])
}

func TestDecommit_Panics(t *testing.T) {
	m, _ := newManager(t, 10, 64)
	b := commit(t, m, 3)

	assert.Panics(t, func() { m.Decommit(b[pageSize:]) }, "interior pointer")
	assert.Panics(t, func() { m.Decommit(make([]byte, pageSize)) }, "foreign memory")
	assert.Panics(t, func() { m.Decommit(nil) }, "nil slice")

	m.Decommit(b)
	assert.Panics(t, func() { m.Decommit(b) }, "double decommit")
	require.NoError(t, m.Validate(), "failed decommits leave the arena intact")
}

func TestIsCommitted(t *testing.T) {
	m, pi := newManager(t, 10, 64)

	a := commit(t, m, 2)
	b := commit(t, m, 3)
	commit(t, m, 4)
	m.Decommit(b)
	require.Equal(t, "C2 F3 C4 F1", layout(m))

	base := mem.Addr(a)
	for page := range 10 {
		addr := base + uintptr(page*pageSize)
		assert.Equal(t, pi.IsCommitted(addr), m.IsCommitted(addr), "page %d", page)
		assert.Equal(t, pi.IsCommitted(addr), m.IsCommitted(addr+pageSize-1), "last byte of page %d", page)
	}

	assert.False(t, m.IsCommitted(base-1), "metadata prefix")
	assert.False(t, m.IsCommitted(base+10*pageSize), "past the arena")
	assert.False(t, m.IsCommitted(0))
}

// stubPages commits and decommits without bookkeeping, so allocation counts
// reflect the Manager alone.
type stubPages struct {
	*vmem.Simulated
}

func (stubPages) Commit([]byte) error { return nil }

func (stubPages) Decommit(b []byte) error {
	clear(b)
	return nil
}

func TestCommitDecommit_NoHeapAllocs(t *testing.T) {
	m, err := New(stubPages{vmem.NewSimulated(pageSize)}, Config{ArenaSize: 1 << 20, MaxRanges: 64})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, m.Close()) })

	keep := commit(t, m, 1)
	var b []byte
	allocs := testing.AllocsPerRun(100, func() {
		b, err = m.Commit(3 * pageSize)
		if err != nil {
			t.Fatal(err)
		}
		if !m.IsCommitted(mem.Addr(b)) {
			t.Fatal("committed range reported as free")
		}
		m.Decommit(b)
	})
	assert.Zero(t, allocs)

	m.Decommit(keep)
	require.NoError(t, m.Validate())
}

func TestMetadataExhausted(t *testing.T) {
	m, _ := newManager(t, 64, minMaxRanges)
	capacity := m.Stats().MetadataCapacity
	require.Less(t, capacity, 64, "test needs more pages than range slots")

	// Each single-page commit splits the trailing free range.
	var live [][]byte
	for range capacity - 1 {
		live = append(live, commit(t, m, 1))
	}
	require.Equal(t, capacity, m.Stats().Ranges)

	before := m.Stats()
	_, err := m.Commit(pageSize)
	assert.ErrorIs(t, err, ErrMetadataExhausted)
	assert.Equal(t, before, m.Stats())
	require.NoError(t, m.Validate())

	// An exact fit needs no new node.
	rest := int(before.FreePages)
	tail := commit(t, m, rest)
	assert.Zero(t, m.Stats().FreeRanges)

	// Freeing a range between committed neighbours swaps one node for another.
	m.Decommit(live[0])
	assert.Equal(t, capacity, m.Stats().Ranges)
	again := commit(t, m, 1)
	assert.Equal(t, mem.Addr(live[0]), mem.Addr(again))

	m.Decommit(tail)
	require.NoError(t, m.Validate())
}

func TestClose(t *testing.T) {
	pi := vmem.NewSimulated(pageSize)
	m, err := New(pi, Config{ArenaSize: 1 << 20, MaxRanges: 16})
	require.NoError(t, err)

	b := commit(t, m, 2)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")

	assert.Zero(t, pi.Reservations())
	assert.Zero(t, pi.CommittedBytes())

	_, err = m.Commit(pageSize)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Validate(), ErrClosed)
	assert.False(t, m.IsCommitted(mem.Addr(b)))
	assert.Zero(t, m.Stats().Ranges)
	assert.Empty(t, layout(m))
	assert.Panics(t, func() { m.Decommit(b) })
}

// faultyPages fails whole-arena teardown calls while an error is set.
type faultyPages struct {
	*vmem.Simulated
	decommitErr error
	releaseErr  error
}

func (f *faultyPages) Decommit(b []byte) error {
	if f.decommitErr != nil {
		return f.decommitErr
	}
	return f.Simulated.Decommit(b)
}

func (f *faultyPages) Release(b []byte) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	return f.Simulated.Release(b)
}

func TestClose_PageInterfaceFailure(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("decommit", func(t *testing.T) {
		pi := &faultyPages{Simulated: vmem.NewSimulated(pageSize)}
		m, err := New(pi, Config{ArenaSize: 1 << 20, MaxRanges: 16})
		require.NoError(t, err)
		b := commit(t, m, 2)

		pi.decommitErr = errBoom
		require.ErrorIs(t, m.Close(), errBoom)
		assert.False(t, m.Closed())

		// Still open and intact.
		assert.True(t, m.IsCommitted(mem.Addr(b)))
		require.NoError(t, m.Validate())
		pi.decommitErr = nil
		m.Decommit(b)
		commit(t, m, 1)

		require.NoError(t, m.Close())
		assert.Zero(t, pi.Reservations())
	})

	t.Run("release", func(t *testing.T) {
		pi := &faultyPages{Simulated: vmem.NewSimulated(pageSize)}
		m, err := New(pi, Config{ArenaSize: 1 << 20, MaxRanges: 16})
		require.NoError(t, err)
		commit(t, m, 2)

		pi.releaseErr = errBoom
		require.ErrorIs(t, m.Close(), errBoom)
		assert.Equal(t, 1, pi.Reservations(), "reservation is kept for a retry")
		assert.True(t, m.Closed())
		_, err = m.Commit(pageSize)
		assert.ErrorIs(t, err, ErrClosed)

		pi.releaseErr = nil
		require.NoError(t, m.Close())
		assert.Zero(t, pi.Reservations())
		require.NoError(t, m.Close())
	})
}

func TestRandomized(t *testing.T) {
	const ops = 3000
	m, pi := newManager(t, 512, 256)
	rng := testutil.NewRNG(42)

	var live [][]byte
	for op := range ops {
		if len(live) == 0 || rng.Intn(100) < 55 {
			b, err := m.Commit(rng.PageRequest(pageSize, 32))
			if err != nil {
				require.True(t, errors.Is(err, ErrOutOfMemory) || errors.Is(err, ErrMetadataExhausted), "unexpected error: %v", err)
				continue
			}
			tag := byte(op)
			b[0], b[len(b)-1] = tag, tag
			live = append(live, b)
		} else {
			i := rng.Intn(len(live))
			b := live[i]
			require.Equal(t, b[0], b[len(b)-1], "range was overwritten by a neighbour")
			m.Decommit(b)
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}

		if op%100 == 0 {
			require.NoError(t, m.Validate(), "op %d (seed %d)", op, rng.Seed())
		}
	}

	var committed int
	for _, b := range live {
		committed += len(b)
	}
	s := m.Stats()
	assert.Equal(t, uint64(committed/pageSize), s.CommittedPages)
	assert.Equal(t, committed+s.MetadataBytes, pi.CommittedBytes())

	for _, b := range live {
		m.Decommit(b)
	}
	assert.Equal(t, "F512", layout(m))
	require.NoError(t, m.Validate())
}

func TestOSPageInterface(t *testing.T) {
	m, err := New(vmem.OS(), Config{ArenaSize: 64 << 20, MaxRanges: 1024})
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Close()) }()

	ps := m.PageSize()
	a, err := m.Commit(4 * ps)
	require.NoError(t, err)
	b, err := m.Commit(ps)
	require.NoError(t, err)

	for i := range a {
		a[i] = 0x5A
	}
	b[0] = 0xA5
	assert.Equal(t, byte(0x5A), a[len(a)-1])

	m.Decommit(a)
	m.Decommit(b)
	require.NoError(t, m.Validate())
	assert.Equal(t, 1, m.Stats().FreeRanges)
}

func BenchmarkCommitDecommit(b *testing.B) {
	m, _ := newManager(b, 4096, 4096)
	rng := testutil.NewRNG(1)
	sizes := make([]int, 1024)
	for i := range sizes {
		sizes[i] = rng.PageRequest(pageSize, 16)
	}
	live := make([][]byte, 0, 64)

	b.ReportAllocs()
	i := 0
	for b.Loop() {
		if len(live) == cap(live) {
			for _, r := range live {
				m.Decommit(r)
			}
			live = live[:0]
		}
		r, err := m.Commit(sizes[i%len(sizes)])
		if err != nil {
			b.Fatal(err)
		}
		live = append(live, r)
		i++
	}
}
