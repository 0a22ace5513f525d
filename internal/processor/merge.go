package processor

import (
	"sort"

	"binsight/internal/decode"
)

// coverage tracks claimed address spans across waves. Spans are only
// extended between waves (single goroutine), and read concurrently by
// the sweeps of the wave in flight; claimed seeds are tracked on the
// coordinating goroutine only.
type coverage struct {
	spans   []span // sorted, disjoint
	claimed map[uint64]bool
}

type span struct{ start, end uint64 }

func newCoverage() *coverage {
	return &coverage{claimed: make(map[uint64]bool)}
}

func (c *coverage) contains(addr uint64) bool {
	i := sort.Search(len(c.spans), func(i int) bool {
		return c.spans[i].end > addr
	})
	return i < len(c.spans) && addr >= c.spans[i].start
}

// claim reserves a seed so no two sweeps start from the same address
// and none starts inside finished territory.
func (c *coverage) claim(seed uint64) bool {
	if c.claimed[seed] || c.contains(seed) {
		return false
	}
	c.claimed[seed] = true
	return true
}

func (c *coverage) add(start, end uint64) {
	if end <= start {
		return
	}
	c.spans = append(c.spans, span{start, end})
	sort.Slice(c.spans, func(i, j int) bool {
		return c.spans[i].start < c.spans[j].start
	})
}

// merge folds the per-sweep regions into one address-ordered stream
// under a single writer. Regions arrive wave by wave, each wave in
// seed order, so entries already accepted were confirmed first and
// the order is the same on every run: on overlap the confirmed
// boundary wins and the incoming prefix that straddles it degrades to
// one-byte invalid entries (IncomingWins flips who is truncated).
func (p *Processor) merge(regions []region) *Stream {
	if p.policy.IncomingWins {
		// Later regions overwrite on boundary conflicts; reverse
		// claim order turns one policy into the other.
		for i, j := 0, len(regions)-1; i < j; i, j = i+1, j-1 {
			regions[i], regions[j] = regions[j], regions[i]
		}
	}

	accepted := make(map[uint64]decode.Result)
	acc := newCoverage()

	for _, reg := range regions {
		for _, res := range reg.entries {
			a := res.Addr()
			end := a + uint64(res.Len())

			if _, dup := accepted[a]; dup {
				continue
			}
			if acc.contains(a) {
				// Starts inside confirmed territory off a
				// confirmed boundary; the confirmed decode
				// wins.
				continue
			}
			if b, ok := acc.nextStart(a); ok && b < end {
				// Straddles the confirmed boundary: keep
				// the gap as raw invalid bytes, truncated
				// at the boundary.
				for pc := a; pc < b; pc++ {
					if _, dup := accepted[pc]; !dup {
						accepted[pc] = decode.InvalidAt(pc, 1)
					}
				}
				acc.add(a, b)
				continue
			}

			accepted[a] = res
			acc.add(a, end)
		}
	}

	entries := make([]decode.Result, 0, len(accepted))
	for _, res := range accepted {
		entries = append(entries, res)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Addr() < entries[j].Addr()
	})
	return &Stream{entries: entries}
}

// nextStart returns the smallest confirmed span start at or after
// addr.
func (c *coverage) nextStart(addr uint64) (uint64, bool) {
	i := sort.Search(len(c.spans), func(i int) bool {
		return c.spans[i].start >= addr
	})
	if i < len(c.spans) {
		return c.spans[i].start, true
	}
	return 0, false
}
