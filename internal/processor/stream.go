package processor

import (
	"sort"

	"binsight/internal/decode"
)

// Stream is the canonical address-ordered sequence of decoded entries
// covering all discovered code regions. It is append-only while a
// decode pass runs and immutable afterwards; reload replaces it
// wholesale.
type Stream struct {
	entries []decode.Result
}

// NewStream wraps already-decoded entries, restoring the address
// order invariant if the caller assembled them out of order.
func NewStream(entries []decode.Result) *Stream {
	sorted := append([]decode.Result(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Addr() < sorted[j].Addr()
	})
	return &Stream{entries: sorted}
}

// Len reports the number of rows.
func (s *Stream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// At returns row i.
func (s *Stream) At(i int) decode.Result { return s.entries[i] }

// Entries exposes the rows for read-only iteration. Callers must not
// mutate the returned slice.
func (s *Stream) Entries() []decode.Result { return s.entries }

// RowAt resolves an exact instruction boundary to its row index.
func (s *Stream) RowAt(addr uint64) (int, bool) {
	i := s.RowAtOrAfter(addr)
	if i < s.Len() && s.entries[i].Addr() == addr {
		return i, true
	}
	return 0, false
}

// RowAtOrAfter returns the first row whose address is >= addr. An
// address that falls mid-instruction resolves forward to the next
// boundary, never to a synthetic midpoint; it also resolves to the
// containing instruction when addr lies inside one.
func (s *Stream) RowAtOrAfter(addr uint64) int {
	i := sort.Search(s.Len(), func(i int) bool {
		return s.entries[i].Addr() >= addr
	})
	// Step back if the preceding entry spans addr.
	if i > 0 {
		prev := s.entries[i-1]
		if prev.Addr()+uint64(prev.Len()) > addr {
			return i - 1
		}
	}
	return i
}

// Bounds returns the lowest and one-past-highest covered address.
func (s *Stream) Bounds() (lo, hi uint64) {
	if s.Len() == 0 {
		return 0, 0
	}
	first := s.entries[0]
	last := s.entries[s.Len()-1]
	return first.Addr(), last.Addr() + uint64(last.Len())
}
