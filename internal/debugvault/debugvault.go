// Package debugvault builds the address-indexed correlation store that
// attaches symbol and source-line information to decoded addresses.
// The vault is built once per loaded binary, single-threaded, then
// treated as immutable; lookups are plain binary searches and safe for
// concurrent use.
package debugvault

import (
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ianlancetaylor/demangle"

	"binsight/internal/binimg"
	"binsight/internal/dwarfx"
)

// Record correlates one address range with debug information. A zero
// File means the range came from function boundaries only.
type Record struct {
	Low, High uint64
	File      string
	Line      int
	Function  string
}

// Contains reports whether addr falls inside the record's range.
func (r Record) Contains(addr uint64) bool { return addr >= r.Low && addr < r.High }

// Symbol is a demangled image symbol, ready for display.
type Symbol struct {
	Addr      uint64
	Name      string // demangled form
	Raw       string // as found in the symbol table
	Kind      binimg.SymbolKind
	Intrinsic bool // unnamed compiler artifact, skippable in listings
}

// Vault is the correlation index. Line records and function ranges
// are kept as two independent overlays because function ranges
// routinely enclose many line entries (and start before the first
// one, at the prologue); Lookup combines them per address.
type Vault struct {
	records   []Record // line records, sorted by Low, non-overlapping
	funcs     []Record // function ranges, sorted by Low, non-overlapping
	symbols   []Symbol // sorted by address
	byAddr    map[uint64]int
	conflicts int
}

// Build assembles the vault from externally parsed debug info and the
// image's symbol table. A nil info builds a symbol-only vault, the
// stripped-binary case.
func Build(info *dwarfx.Info, syms []binimg.Symbol, logger *log.Logger) *Vault {
	v := &Vault{byAddr: make(map[uint64]int, len(syms))}
	v.buildSymbols(syms)
	if info != nil {
		v.buildRecords(info, logger)
	}
	if logger != nil {
		logger.Debug("debug vault built",
			"records", len(v.records),
			"funcs", len(v.funcs),
			"symbols", len(v.symbols),
			"conflicts", v.conflicts)
	}
	return v
}

func (v *Vault) buildSymbols(syms []binimg.Symbol) {
	for _, s := range syms {
		name := demangle.Filter(s.Name)
		v.symbols = append(v.symbols, Symbol{
			Addr:      s.Addr,
			Name:      name,
			Raw:       s.Name,
			Kind:      s.Kind,
			Intrinsic: intrinsicName(s.Name),
		})
	}
	sort.SliceStable(v.symbols, func(i, j int) bool {
		return v.symbols[i].Addr < v.symbols[j].Addr
	})
	for i, s := range v.symbols {
		if _, dup := v.byAddr[s.Addr]; !dup {
			v.byAddr[s.Addr] = i
		}
	}
}

// buildRecords loads the line and function overlays. Overlapping
// ranges within one overlay resolve first-writer-wins; the conflict
// is a diagnostic, never fatal. A line entry inside a function range
// is not a conflict, the two overlays carry different information.
func (v *Vault) buildRecords(info *dwarfx.Info, logger *log.Logger) {
	lines := make([]Record, 0, len(info.Lines))
	for _, le := range info.Lines {
		lines = append(lines, Record{Low: le.Low, High: le.High, File: le.File, Line: le.Line})
	}
	funcs := make([]Record, 0, len(info.Funcs))
	for _, fr := range info.Funcs {
		funcs = append(funcs, Record{Low: fr.Low, High: fr.High, Function: fr.Name})
	}
	v.records = v.dedupe(lines, logger)
	v.funcs = v.dedupe(funcs, logger)
}

// dedupe sorts one overlay by range start and drops every range that
// overlaps an already-kept one, keeping the first writer.
func (v *Vault) dedupe(recs []Record, logger *log.Logger) []Record {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Low < recs[j].Low })
	var kept []Record
	for _, r := range recs {
		if n := len(kept); n > 0 && r.Low < kept[n-1].High {
			v.conflicts++
			if logger != nil {
				logger.Warn("overlapping debug ranges, keeping first",
					"low", r.Low, "high", r.High)
			}
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// Lookup resolves the record containing addr in O(log n): the line
// record when one covers addr, annotated with the enclosing function's
// name; a function-only record for addresses a function range covers
// without line info (prologues, padding). A miss is "unknown region",
// not an error.
func (v *Vault) Lookup(addr uint64) (Record, bool) {
	r, ok := searchRecords(v.records, addr)
	f, fok := searchRecords(v.funcs, addr)
	if ok {
		if fok {
			r.Function = f.Function
		}
		return r, true
	}
	if fok {
		return f, true
	}
	return Record{}, false
}

func searchRecords(recs []Record, addr uint64) (Record, bool) {
	i := sort.Search(len(recs), func(i int) bool {
		return recs[i].High > addr
	})
	if i < len(recs) && recs[i].Contains(addr) {
		return recs[i], true
	}
	return Record{}, false
}

// NearestSymbol names an address with no exact coverage: the closest
// preceding symbol plus the byte offset from it. This is the common
// path for stripped binaries.
func (v *Vault) NearestSymbol(addr uint64) (Symbol, uint64, bool) {
	i := sort.Search(len(v.symbols), func(i int) bool {
		return v.symbols[i].Addr > addr
	})
	if i == 0 {
		return Symbol{}, 0, false
	}
	s := v.symbols[i-1]
	return s, addr - s.Addr, true
}

// NameAt implements decode.SymbolNamer: exact-address symbol names for
// branch target rendering.
func (v *Vault) NameAt(addr uint64) (string, bool) {
	if i, ok := v.byAddr[addr]; ok {
		return v.symbols[i].Name, true
	}
	return "", false
}

// Symbols returns the demangled symbol list, sorted by address.
func (v *Vault) Symbols() []Symbol { return v.symbols }

// Conflicts counts overlapping debug ranges dropped during build.
func (v *Vault) Conflicts() int { return v.conflicts }

// intrinsicName flags unnamed compiler artifacts the symbol list can
// skip: local labels, string constants, exception tables.
func intrinsicName(name string) bool {
	switch {
	case name == "":
		return true
	case strings.HasPrefix(name, ".L"):
		return true
	case strings.HasPrefix(name, "str."):
		return true
	case strings.HasPrefix(name, "anon."):
		return true
	case strings.HasPrefix(name, "GCC_except_table"):
		return true
	}
	return false
}
