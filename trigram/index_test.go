package trigram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu      sync.Mutex
	rows    map[int64][]string
	failing bool
}

func newMemPersister() *memPersister {
	return &memPersister{rows: make(map[int64][]string)}
}

func (m *memPersister) ReplaceShingles(_ context.Context, threadID int64, shingles []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.rows[threadID] = append([]string(nil), shingles...)
	return nil
}

func (m *memPersister) DeleteShingles(_ context.Context, threadID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	delete(m.rows, threadID)
	return nil
}

func (m *memPersister) LoadShingles(_ context.Context, fn func(int64, []string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rows := range m.rows {
		if err := fn(id, rows); err != nil {
			return err
		}
	}
	return nil
}

type titles map[int64]string

func (t titles) ThreadTitles(context.Context) (map[int64]string, error) { return t, nil }

func TestIndexReindexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(nil)

	require.NoError(t, idx.Index(ctx, 1, "Data Structures & Algorithms"))
	once := idx.Entries(1)
	require.NoError(t, idx.Index(ctx, 1, "Data Structures & Algorithms"))

	assert.Equal(t, once, idx.Entries(1))
	scores, err := idx.FindByShingles(ctx, []string{"dat"})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 1}, scores)
}

func TestIndexEditReplacesEntries(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(nil)

	require.NoError(t, idx.Index(ctx, 7, "compilers"))
	require.NoError(t, idx.Index(ctx, 7, "networks"))

	scores, err := idx.FindByShingles(ctx, Shingles("compilers"))
	require.NoError(t, err)
	assert.Empty(t, scores)

	scores, err = idx.FindByShingles(ctx, Shingles("networks"))
	require.NoError(t, err)
	assert.Equal(t, len(Shingles("networks")), scores[7])
}

func TestIndexCountsRepeatedShingles(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(nil)
	require.NoError(t, idx.Index(ctx, 1, "aaaa"))

	// "aaa" occurs twice in the title; a duplicated query shingle counts once.
	scores, err := idx.FindByShingles(ctx, []string{"aaa", "aaa"})
	require.NoError(t, err)
	assert.Equal(t, 2, scores[1])
}

func TestIndexDeindex(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	idx := NewIndex(p)

	require.NoError(t, idx.Index(ctx, 1, "operating systems"))
	require.NoError(t, idx.Index(ctx, 2, "operating systems lab"))
	require.NoError(t, idx.Deindex(ctx, 1))
	require.NoError(t, idx.Deindex(ctx, 99))

	scores, err := idx.FindByShingles(ctx, Shingles("operating"))
	require.NoError(t, err)
	assert.NotContains(t, scores, int64(1))
	assert.Contains(t, scores, int64(2))
	assert.NotContains(t, p.rows, int64(1))
	assert.Empty(t, idx.Entries(1))
}

func TestIndexPersistFailureLeavesMemoryUntouched(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	idx := NewIndex(p)
	require.NoError(t, idx.Index(ctx, 1, "thermodynamics"))

	p.failing = true
	err := idx.Index(ctx, 1, "fluid mechanics")
	require.Error(t, err)

	assert.Equal(t, Shingles("thermodynamics"), idx.Entries(1))
	assert.Equal(t, Shingles("thermodynamics"), p.rows[1])
}

func TestIndexCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	idx := NewIndex(nil)
	require.NoError(t, idx.Index(context.Background(), 1, "probability"))
	cancel()

	assert.ErrorIs(t, idx.Index(ctx, 1, "statistics"), context.Canceled)
	assert.ErrorIs(t, idx.Deindex(ctx, 1), context.Canceled)
	_, err := idx.FindByShingles(ctx, Shingles("probability"))
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, Shingles("probability"), idx.Entries(1))
}

func TestIndexLoadAndReindex(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	p.rows[3] = Shingles("digital design")

	idx := NewIndex(p)
	require.NoError(t, idx.Load(ctx, p))
	assert.Equal(t, Shingles("digital design"), idx.Entries(3))

	src := titles{}
	for i := int64(1); i <= 50; i++ {
		src[i] = fmt.Sprintf("thread number %d", i)
	}
	n, err := idx.Reindex(ctx, src, 4)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, threads := idx.Stats()
	assert.Equal(t, 50, threads)
	assert.Empty(t, idx.Entries(3), "threads missing from the source are dropped")
	assert.Equal(t, Shingles("thread number 42"), p.rows[42])
}

// titlesFunc lets a test act between the title snapshot and its use.
type titlesFunc func(ctx context.Context) (map[int64]string, error)

func (f titlesFunc) ThreadTitles(ctx context.Context) (map[int64]string, error) { return f(ctx) }

func TestIndexReindexKeepsWritesAfterSnapshot(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	idx := NewIndex(p)
	require.NoError(t, idx.Index(ctx, 3, "Old title about physics"))
	require.NoError(t, idx.Index(ctx, 4, "Hostel mess menu"))

	src := titlesFunc(func(ctx context.Context) (map[int64]string, error) {
		snapshot := map[int64]string{1: "Exam timetable", 3: "Old title about physics", 4: "Hostel mess menu"}
		// Writes landing after the snapshot was read.
		require.NoError(t, idx.Index(ctx, 2, "Data Structures & Algorithms"))
		require.NoError(t, idx.Index(ctx, 3, "Linear algebra revision notes"))
		require.NoError(t, idx.Deindex(ctx, 4))
		return snapshot, nil
	})

	n, err := idx.Reindex(ctx, src, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	scores, err := idx.FindByShingles(ctx, Shingles("algorithms"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, scores[2], 2, "thread created during the rebuild is kept")

	scores, err = idx.FindByShingles(ctx, Shingles("linear algebra"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, scores[3], 2, "edit made during the rebuild wins")

	scores, err = idx.FindByShingles(ctx, Shingles("physics"))
	require.NoError(t, err)
	assert.Zero(t, scores[3])
	assert.Equal(t, Shingles("Linear algebra revision notes"), p.rows[3])

	assert.Empty(t, idx.Entries(4), "deindex during the rebuild is not undone")
	_, stored := p.rows[4]
	assert.False(t, stored)
	assert.Equal(t, Shingles("Exam timetable"), idx.Entries(1))
}

func TestIndexCompactFilterDropsRemovedShingles(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(nil)
	require.NoError(t, idx.Index(ctx, 1, "xylophone"))
	require.NoError(t, idx.Deindex(ctx, 1))
	idx.CompactFilter()

	assert.False(t, idx.filter.TestString("xyl"))
	shingles, threads := idx.Stats()
	assert.Zero(t, shingles)
	assert.Zero(t, threads)
}

func TestIndexConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(newMemPersister())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title := "shared title"
			if i%2 == 0 {
				title = "other title"
			}
			assert.NoError(t, idx.Index(ctx, 1, title))
		}(i)
	}
	wg.Wait()

	entries := idx.Entries(1)
	assert.True(t,
		assert.ObjectsAreEqual(Shingles("shared title"), entries) ||
			assert.ObjectsAreEqual(Shingles("other title"), entries))
	scores, err := idx.FindByShingles(ctx, []string{"tit"})
	require.NoError(t, err)
	assert.Equal(t, 1, scores[1])
}
