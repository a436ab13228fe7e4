package trigram

import (
	"context"
	"fmt"
	"sync"

	"studydeck/utils"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/errgroup"
)

const (
	minFilterCapacity = 4096
	filterFPRate      = 0.01
)

// Persister stores shingle entries durably. The index writes through it
// before touching memory, so a failed write leaves both sides unchanged.
type Persister interface {
	ReplaceShingles(ctx context.Context, threadID int64, shingles []string) error
	DeleteShingles(ctx context.Context, threadID int64) error
}

// Loader streams persisted shingle entries grouped by thread.
type Loader interface {
	LoadShingles(ctx context.Context, fn func(threadID int64, shingles []string) error) error
}

// TitleSource lists the current title of every thread.
type TitleSource interface {
	ThreadTitles(ctx context.Context) (map[int64]string, error)
}

// Index is an in-memory inverted index: shingle -> thread -> occurrences.
// A bloom filter over indexed shingles lets lookups skip shingles that were
// never indexed without touching the postings map.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[int64]int
	docs     map[int64][]string
	filter   *bloom.BloomFilter

	// seq advances on every write; written holds the seq of each thread's
	// latest write, including deindexes.
	seq     uint64
	written map[int64]uint64

	persist Persister
	writes  *utils.KeyedMutex
}

// NewIndex creates an empty index. persist may be nil for a purely
// in-memory index.
func NewIndex(persist Persister) *Index {
	return &Index{
		postings: make(map[string]map[int64]int),
		docs:     make(map[int64][]string),
		written:  make(map[int64]uint64),
		filter:   bloom.NewWithEstimates(minFilterCapacity, filterFPRate),
		persist:  persist,
		writes:   utils.NewKeyedMutex(),
	}
}

// Index replaces every entry of threadID with the shingles of title.
func (idx *Index) Index(ctx context.Context, threadID int64, title string) error {
	return idx.put(ctx, threadID, Shingles(title), true)
}

// Deindex drops every entry of threadID. Unknown threads are a no-op.
func (idx *Index) Deindex(ctx context.Context, threadID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := idx.writes.Lock(threadKey(threadID))
	defer unlock()

	if idx.persist != nil {
		if err := idx.persist.DeleteShingles(ctx, threadID); err != nil {
			return fmt.Errorf("failed to delete shingles for thread %d: %w", threadID, err)
		}
	}

	idx.mu.Lock()
	idx.removeLocked(threadID)
	idx.stampLocked(threadID)
	idx.mu.Unlock()
	return nil
}

func (idx *Index) put(ctx context.Context, threadID int64, shingles []string, persist bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := idx.writes.Lock(threadKey(threadID))
	defer unlock()
	return idx.putLocked(ctx, threadID, shingles, persist)
}

// putLocked expects the caller to hold the thread's write lock.
func (idx *Index) putLocked(ctx context.Context, threadID int64, shingles []string, persist bool) error {
	if persist && idx.persist != nil {
		if err := idx.persist.ReplaceShingles(ctx, threadID, shingles); err != nil {
			return fmt.Errorf("failed to persist shingles for thread %d: %w", threadID, err)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(threadID)
	for _, sh := range shingles {
		p, ok := idx.postings[sh]
		if !ok {
			p = make(map[int64]int)
			idx.postings[sh] = p
		}
		p[threadID]++
		idx.filter.AddString(sh)
	}
	idx.docs[threadID] = append([]string(nil), shingles...)
	idx.stampLocked(threadID)
	return nil
}

func (idx *Index) stampLocked(threadID int64) {
	idx.seq++
	idx.written[threadID] = idx.seq
}

// writtenAfter reports whether threadID changed after the write sequence
// reached mark.
func (idx *Index) writtenAfter(threadID int64, mark uint64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.written[threadID] > mark
}

func (idx *Index) removeLocked(threadID int64) {
	for _, sh := range idx.docs[threadID] {
		p := idx.postings[sh]
		delete(p, threadID)
		if len(p) == 0 {
			delete(idx.postings, sh)
		}
	}
	delete(idx.docs, threadID)
}

// FindByShingles sums, per thread, the occurrences of every distinct
// shingle in the query set.
func (idx *Index) FindByShingles(ctx context.Context, shingles []string) (map[int64]int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scores := make(map[int64]int)
	for _, sh := range Distinct(shingles) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !idx.filter.TestString(sh) {
			continue
		}
		for threadID, n := range idx.postings[sh] {
			scores[threadID] += n
		}
	}
	return scores, nil
}

// Entries returns a copy of the shingles indexed for threadID.
func (idx *Index) Entries(threadID int64) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.docs[threadID]...)
}

// Stats reports the number of distinct shingles and indexed threads.
func (idx *Index) Stats() (shingles, threads int) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.postings), len(idx.docs)
}

// Load fills the index from persisted entries without writing them back.
func (idx *Index) Load(ctx context.Context, loader Loader) error {
	err := loader.LoadShingles(ctx, func(threadID int64, shingles []string) error {
		return idx.put(ctx, threadID, shingles, false)
	})
	if err != nil {
		return fmt.Errorf("failed to load trigram index: %w", err)
	}
	idx.CompactFilter()
	return nil
}

// Reindex recomputes every thread's entries from its current title using
// up to workers goroutines, then compacts the bloom filter. Threads written
// through Index or Deindex after the title snapshot was taken keep their
// newer entries.
func (idx *Index) Reindex(ctx context.Context, src TitleSource, workers int) (int, error) {
	idx.mu.RLock()
	mark := idx.seq
	idx.mu.RUnlock()

	titles, err := src.ThreadTitles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list thread titles: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id, title := range titles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unlock := idx.writes.Lock(threadKey(id))
			defer unlock()
			if idx.writtenAfter(id, mark) {
				return nil
			}
			return idx.putLocked(gctx, id, Shingles(title), true)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	// Threads that no longer exist only linger in memory; their stored rows
	// are removed by the orphan purge.
	idx.mu.RLock()
	var stale []int64
	for id := range idx.written {
		if _, ok := titles[id]; !ok {
			stale = append(stale, id)
		}
	}
	idx.mu.RUnlock()
	for _, id := range stale {
		idx.dropStale(id, mark)
	}

	idx.CompactFilter()
	return len(titles), nil
}

func (idx *Index) dropStale(threadID int64, mark uint64) {
	unlock := idx.writes.Lock(threadKey(threadID))
	defer unlock()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.written[threadID] > mark {
		return
	}
	idx.removeLocked(threadID)
	delete(idx.written, threadID)
}

// CompactFilter rebuilds the bloom filter from the live postings, dropping
// bits left behind by deindexed or edited titles.
func (idx *Index) CompactFilter() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := uint(len(idx.postings)) * 2
	if n < minFilterCapacity {
		n = minFilterCapacity
	}
	filter := bloom.NewWithEstimates(n, filterFPRate)
	for sh := range idx.postings {
		filter.AddString(sh)
	}
	idx.filter = filter
}

func threadKey(id int64) string {
	return fmt.Sprintf("thread:%d", id)
}
