package listing

import (
	"iter"
	"sync"
)

// Sequence is a lazily evaluated, single-pass stream of thread IDs. The
// underlying query runs on the first call to Next; once consumed it cannot
// be restarted.
type Sequence struct {
	once sync.Once
	eval func() ([]int64, error)
	ids  []int64
	pos  int
	err  error
}

func newSequence(eval func() ([]int64, error)) *Sequence {
	return &Sequence{eval: eval}
}

func (s *Sequence) load() {
	s.once.Do(func() {
		s.ids, s.err = s.eval()
		s.eval = nil
	})
}

// Next returns the next thread ID. It returns false when the sequence is
// exhausted or evaluation failed; check Err afterwards.
func (s *Sequence) Next() (int64, bool) {
	s.load()
	if s.err != nil || s.pos >= len(s.ids) {
		return 0, false
	}
	id := s.ids[s.pos]
	s.pos++
	return id, true
}

// Err reports the evaluation error, if any.
func (s *Sequence) Err() error {
	return s.err
}

// All ranges over the remaining IDs, consuming them.
func (s *Sequence) All() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for {
			id, ok := s.Next()
			if !ok || !yield(id) {
				return
			}
		}
	}
}

// Take consumes up to n IDs, which is how callers paginate.
func (s *Sequence) Take(n int) []int64 {
	out := make([]int64, 0, n)
	for len(out) < n {
		id, ok := s.Next()
		if !ok {
			break
		}
		out = append(out, id)
	}
	return out
}
