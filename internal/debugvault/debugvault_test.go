package debugvault

import (
	"testing"

	"binsight/internal/binimg"
	"binsight/internal/dwarfx"
)

func TestLookupResolvesRanges(t *testing.T) {
	info := &dwarfx.Info{
		Lines: []dwarfx.LineEntry{
			{Low: 0x1000, High: 0x1010, File: "main.c", Line: 10},
			{Low: 0x1010, High: 0x1024, File: "main.c", Line: 11},
			{Low: 0x2000, High: 0x2008, File: "util.c", Line: 3},
		},
	}
	v := Build(info, nil, nil)

	tests := []struct {
		name     string
		addr     uint64
		wantFile string
		wantLine int
		wantHit  bool
	}{
		{name: "range start", addr: 0x1000, wantFile: "main.c", wantLine: 10, wantHit: true},
		{name: "inside range", addr: 0x100c, wantFile: "main.c", wantLine: 10, wantHit: true},
		{name: "adjacent range", addr: 0x1010, wantFile: "main.c", wantLine: 11, wantHit: true},
		{name: "one past the end is exclusive", addr: 0x1024, wantHit: false},
		{name: "gap between units", addr: 0x1800, wantHit: false},
		{name: "second unit", addr: 0x2004, wantFile: "util.c", wantLine: 3, wantHit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := v.Lookup(tt.addr)
			if ok != tt.wantHit {
				t.Fatalf("Lookup(%#x) hit = %v, want %v", tt.addr, ok, tt.wantHit)
			}
			if ok && (rec.File != tt.wantFile || rec.Line != tt.wantLine) {
				t.Errorf("Lookup(%#x) = %s:%d, want %s:%d",
					tt.addr, rec.File, rec.Line, tt.wantFile, tt.wantLine)
			}
		})
	}
}

func TestBuildKeepsFirstOnConflict(t *testing.T) {
	info := &dwarfx.Info{
		Lines: []dwarfx.LineEntry{
			{Low: 0x1000, High: 0x1010, File: "a.c", Line: 1},
			{Low: 0x1008, High: 0x1018, File: "b.c", Line: 2},
		},
	}
	v := Build(info, nil, nil)

	rec, ok := v.Lookup(0x100c)
	if !ok || rec.File != "a.c" {
		t.Errorf("Lookup(0x100c) = %+v,%v, want first writer a.c", rec, ok)
	}
	if v.Conflicts() != 1 {
		t.Errorf("Conflicts() = %d, want 1", v.Conflicts())
	}
}

func TestBuildFoldsFunctionNames(t *testing.T) {
	info := &dwarfx.Info{
		Lines: []dwarfx.LineEntry{
			{Low: 0x1000, High: 0x1008, File: "main.c", Line: 5},
			{Low: 0x1008, High: 0x1010, File: "main.c", Line: 6},
		},
		Funcs: []dwarfx.FuncRange{
			{Low: 0x1000, High: 0x1010, Name: "main"},
		},
	}
	v := Build(info, nil, nil)

	rec, ok := v.Lookup(0x100a)
	if !ok {
		t.Fatal("Lookup(0x100a) missed")
	}
	if rec.Function != "main" || rec.File != "main.c" {
		t.Errorf("record = %+v, want function main folded into line range", rec)
	}
}

func TestLookupInsideEnclosingFunctionRange(t *testing.T) {
	// Function ranges commonly start before their first line entry
	// (the prologue) and span several of them. Every line entry must
	// stay resolvable, each carrying the function's name.
	info := &dwarfx.Info{
		Lines: []dwarfx.LineEntry{
			{Low: 0x1000, High: 0x1010, File: "main.c", Line: 10},
			{Low: 0x1010, High: 0x1020, File: "main.c", Line: 11},
		},
		Funcs: []dwarfx.FuncRange{
			{Low: 0x0ff0, High: 0x1020, Name: "main"},
		},
	}
	v := Build(info, nil, nil)

	tests := []struct {
		name     string
		addr     uint64
		wantFile string
		wantLine int
	}{
		{name: "first line entry", addr: 0x1004, wantFile: "main.c", wantLine: 10},
		{name: "second line entry", addr: 0x1015, wantFile: "main.c", wantLine: 11},
		{name: "second line start", addr: 0x1010, wantFile: "main.c", wantLine: 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := v.Lookup(tt.addr)
			if !ok {
				t.Fatalf("Lookup(%#x) missed", tt.addr)
			}
			if rec.File != tt.wantFile || rec.Line != tt.wantLine {
				t.Errorf("Lookup(%#x) = %s:%d, want %s:%d",
					tt.addr, rec.File, rec.Line, tt.wantFile, tt.wantLine)
			}
			if rec.Function != "main" {
				t.Errorf("Lookup(%#x).Function = %q, want main", tt.addr, rec.Function)
			}
		})
	}

	// The prologue has no line entry; the function range alone names it.
	rec, ok := v.Lookup(0x0ff8)
	if !ok || rec.Function != "main" || rec.File != "" {
		t.Errorf("Lookup(0x0ff8) = %+v,%v, want a function-only record for main", rec, ok)
	}

	// A line/function pair never counts as a conflict.
	if v.Conflicts() != 0 {
		t.Errorf("Conflicts() = %d, want 0", v.Conflicts())
	}
}

func TestSymbolsDemangledAndFlagged(t *testing.T) {
	syms := []binimg.Symbol{
		{Name: "_ZN3foo3barEv", Addr: 0x2000, Kind: binimg.SymFunc},
		{Name: ".L_loop_head", Addr: 0x2010},
		{Name: "str.hello", Addr: 0x3000},
		{Name: "GCC_except_table12", Addr: 0x3010},
		{Name: "plain_c_symbol", Addr: 0x4000, Kind: binimg.SymFunc},
	}
	v := Build(nil, syms, nil)

	got := v.Symbols()
	if len(got) != len(syms) {
		t.Fatalf("Symbols() has %d entries, want %d", len(got), len(syms))
	}
	if got[0].Name != "foo::bar()" {
		t.Errorf("demangled = %q, want %q", got[0].Name, "foo::bar()")
	}
	if got[0].Raw != "_ZN3foo3barEv" {
		t.Errorf("raw = %q, want the mangled original", got[0].Raw)
	}

	wantIntrinsic := map[string]bool{
		"_ZN3foo3barEv":      false,
		".L_loop_head":       true,
		"str.hello":          true,
		"GCC_except_table12": true,
		"plain_c_symbol":     false,
	}
	for _, s := range got {
		if s.Intrinsic != wantIntrinsic[s.Raw] {
			t.Errorf("symbol %q intrinsic = %v, want %v", s.Raw, s.Intrinsic, wantIntrinsic[s.Raw])
		}
	}
}

func TestNearestSymbol(t *testing.T) {
	syms := []binimg.Symbol{
		{Name: "first", Addr: 0x1000, Kind: binimg.SymFunc},
		{Name: "second", Addr: 0x2000, Kind: binimg.SymFunc},
	}
	v := Build(nil, syms, nil)

	sym, off, ok := v.NearestSymbol(0x2040)
	if !ok || sym.Name != "second" || off != 0x40 {
		t.Errorf("NearestSymbol(0x2040) = %q+%#x,%v, want second+0x40,true", sym.Name, off, ok)
	}

	// Before the first symbol there is nothing to name with.
	if _, _, ok := v.NearestSymbol(0x800); ok {
		t.Error("NearestSymbol(0x800) hit, want miss")
	}
}

func TestNameAtExactBoundariesOnly(t *testing.T) {
	syms := []binimg.Symbol{{Name: "main", Addr: 0x1000, Kind: binimg.SymFunc}}
	v := Build(nil, syms, nil)

	if name, ok := v.NameAt(0x1000); !ok || name != "main" {
		t.Errorf("NameAt(0x1000) = %q,%v, want main,true", name, ok)
	}
	if _, ok := v.NameAt(0x1004); ok {
		t.Error("NameAt(0x1004) hit off-boundary, want miss")
	}
}

func TestStrippedBinaryBuildsSymbolOnlyVault(t *testing.T) {
	v := Build(nil, []binimg.Symbol{{Name: "f", Addr: 0x100}}, nil)
	if _, ok := v.Lookup(0x100); ok {
		t.Error("Lookup on a symbol-only vault hit, want miss")
	}
	if _, ok := v.NameAt(0x100); !ok {
		t.Error("NameAt(0x100) missed on a symbol-only vault")
	}
}
