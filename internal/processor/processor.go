// Package processor drives the decoder backends over a loaded image's
// code sections, discovers control flow and produces the canonical
// address-ordered instruction stream.
//
// Discovery is a hybrid of linear sweep and recursive traversal:
// every entry point and function symbol seeds a forward sweep, and
// every direct branch or call target found along the way seeds another
// one. Sweeps rooted at independent seeds run in parallel; decoding
// within one sweep is strictly sequential because each instruction's
// start depends on the previous instruction's length.
package processor

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"binsight/internal/binimg"
	"binsight/internal/decode"
)

// Policy holds the knobs the orchestrator treats as configurable
// rather than fixed law.
type Policy struct {
	// Workers bounds the sweep pool.
	Workers int

	// InvalidRunLimit is the number of consecutive undecodable
	// entries after which a sweep is judged to have fallen into
	// data and is abandoned.
	InvalidRunLimit int

	// SeedIndirect, when set, seeds targets of indirect flow too.
	// Off by default: indirect targets are not statically known and
	// guessing them is left to the analyst.
	SeedIndirect bool

	// IncomingWins flips the overlap policy at merge time. The
	// default keeps previously confirmed instruction boundaries.
	IncomingWins bool
}

// DefaultPolicy mirrors the shipped configuration defaults.
func DefaultPolicy() Policy {
	return Policy{Workers: 4, InvalidRunLimit: 8}
}

// Processor turns one Binary Image into a Stream. It holds the image
// for the lifetime of one analysis pass.
type Processor struct {
	img    *binimg.Image
	dec    decode.Decoder
	policy Policy
	logger *log.Logger
}

func New(img *binimg.Image, dec decode.Decoder, policy Policy, logger *log.Logger) *Processor {
	if policy.Workers < 1 {
		policy.Workers = 1
	}
	if policy.InvalidRunLimit < 1 {
		policy.InvalidRunLimit = 1
	}
	return &Processor{img: img, dec: dec, policy: policy, logger: logger}
}

// region is one sweep's private output. Regions are merged under a
// single-writer pass after all sweeps complete.
type region struct {
	seed    uint64
	entries []decode.Result
}

func (r region) start() uint64 { return r.seed }

func (r region) end() uint64 {
	if len(r.entries) == 0 {
		return r.seed
	}
	last := r.entries[len(r.entries)-1]
	return last.Addr() + uint64(last.Len())
}

// Run decodes everything reachable from the image's seeds. It blocks
// until all sweeps finish or ctx is cancelled; on cancellation the
// partial stream is discarded and the context error returned.
func (p *Processor) Run(ctx context.Context) (*Stream, error) {
	frontier := p.seeds()
	covered := newCoverage()

	var regions []region

	// Seeds discovered by one wave are swept in the next, and
	// coverage grows only between waves, so a wave's sweeps read a
	// stable coverage set while claiming disjoint seeds.
	for len(frontier) > 0 {
		var (
			mu   sync.Mutex
			wave []region
			next []uint64
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.policy.Workers)
		for _, seed := range frontier {
			if !covered.claim(seed) {
				continue
			}
			g.Go(func() error {
				reg, targets, err := p.sweep(gctx, seed, covered)
				if err != nil {
					return err
				}
				mu.Lock()
				wave = append(wave, reg)
				next = append(next, targets...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		// Goroutines finish in scheduling order; fix each wave to
		// seed order so the merge sees the same sequence on every
		// run of the same binary.
		sort.Slice(wave, func(i, j int) bool { return wave[i].seed < wave[j].seed })
		for _, reg := range wave {
			covered.add(reg.start(), reg.end())
		}
		regions = append(regions, wave...)
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		frontier = next
	}

	stream := p.merge(regions)
	if p.logger != nil {
		p.logger.Info("analysis complete",
			"arch", p.dec.Arch().String(),
			"regions", len(regions),
			"rows", stream.Len())
	}
	return stream, nil
}

// seeds are the entry point plus every function-typed symbol that
// lands in an executable section.
func (p *Processor) seeds() []uint64 {
	seen := map[uint64]bool{}
	var out []uint64
	add := func(addr uint64) {
		if seen[addr] {
			return
		}
		if sec, ok := p.img.SectionAt(addr); !ok || !sec.Exec {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}

	add(p.img.Entry)
	for _, sym := range p.img.Symbols {
		if sym.Kind == binimg.SymFunc {
			add(sym.Addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// sweep decodes forward from seed until a terminating condition:
// return, unconditional branch into covered territory, section end, or
// an invalid run past the policy limit. The image bytes are shared
// read-only; the returned region is private to this sweep.
func (p *Processor) sweep(ctx context.Context, seed uint64, covered *coverage) (region, []uint64, error) {
	reg := region{seed: seed}
	var targets []uint64

	sec, ok := p.img.SectionAt(seed)
	if !ok || !sec.Exec || sec.Bytes == nil {
		return reg, nil, nil
	}

	pc := seed
	invalidRun := 0
	for pc < sec.End() {
		// Cancellation is checked at instruction granularity.
		select {
		case <-ctx.Done():
			return reg, nil, ctx.Err()
		default:
		}

		window := sec.Bytes[pc-sec.Addr:]
		if max := p.dec.MaxLen(); len(window) > max {
			window = window[:max]
		}
		res := p.dec.Decode(window, pc)
		reg.entries = append(reg.entries, res)
		pc += uint64(res.Len())

		if res.Bad != nil {
			invalidRun++
			if invalidRun > p.policy.InvalidRunLimit {
				// Fell into data: drop the run and abandon
				// this seed.
				reg.entries = reg.entries[:len(reg.entries)-invalidRun]
				if p.logger != nil {
					p.logger.Debug("sweep abandoned in data",
						"seed", seed, "at", res.Addr())
				}
				break
			}
			continue
		}
		invalidRun = 0

		inst := res.Inst
		if inst.HasTarget && (inst.Flow == decode.FlowJump ||
			inst.Flow == decode.FlowCondJump || inst.Flow == decode.FlowCall) {
			targets = append(targets, inst.Target)
		}
		if p.policy.SeedIndirect && inst.Flow == decode.FlowIndirect && inst.HasTarget {
			targets = append(targets, inst.Target)
		}

		if inst.Flow == decode.FlowReturn {
			break
		}
		if inst.Flow == decode.FlowJump && inst.HasTarget &&
			(covered.contains(inst.Target) || withinRegion(reg, inst.Target)) {
			break
		}
	}
	return reg, targets, nil
}

func withinRegion(reg region, addr uint64) bool {
	return addr >= reg.start() && addr < reg.end()
}
