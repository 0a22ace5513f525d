// Package scroll presents a bounded, lazily materialized window over
// the instruction stream. The stream itself is already decoded; this
// layer only pays for annotation lookups, so rows far from the view
// are evicted and recomputed on re-approach instead of being kept
// alive.
//
// A checkpoint index at coarse instruction intervals turns
// address-to-row resolution into a binary search plus a short linear
// refinement, despite rows being variable-length records (an entry may
// expand into section and label rows in addition to its own).
package scroll

import (
	"fmt"
	"sort"

	"binsight/internal/binimg"
	"binsight/internal/debugvault"
	"binsight/internal/decode"
	"binsight/internal/processor"
)

// Direction selects which way Extend moves the anchor.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// RowKind discriminates the materialized row variants.
type RowKind int

const (
	RowInstruction RowKind = iota
	RowInvalid
	RowLabel
	RowSection
)

// Row is one materialized listing row. Rows are transient: always
// derivable from the stream and the vault, never owned state.
type Row struct {
	Kind   RowKind
	Addr   uint64
	Tokens []decode.Token
	Bytes  string // hex-encoded raw bytes, instruction rows only
	File   string // source annotation, when the vault covers Addr
	Line   int
}

// Config bounds the buffer's memory/recompute trade.
type Config struct {
	// CheckpointInterval is the number of stream entries between
	// row-index checkpoints.
	CheckpointInterval int

	// EvictDistance is how many rows away from the anchor a
	// materialized row survives.
	EvictDistance int
}

func DefaultConfig() Config {
	return Config{CheckpointInterval: 64, EvictDistance: 512}
}

type checkpoint struct {
	entry int // stream entry index
	row   int // first view row of that entry
}

// Buffer is the windowed cache. It is not safe for concurrent use;
// the viewer drives it from a single goroutine.
type Buffer struct {
	stream *processor.Stream
	vault  *debugvault.Vault
	secs   []binimg.Section
	cfg    Config

	checkpoints []checkpoint
	totalRows   int
	byteWidth   int

	cache  map[int]Row
	anchor int
}

// New builds the checkpoint index in one pass over the stream.
func New(stream *processor.Stream, vault *debugvault.Vault, secs []binimg.Section, maxInstLen int, cfg Config) *Buffer {
	if cfg.CheckpointInterval < 1 {
		cfg.CheckpointInterval = 64
	}
	if cfg.EvictDistance < 1 {
		cfg.EvictDistance = 512
	}
	b := &Buffer{
		stream:    stream,
		vault:     vault,
		secs:      secs,
		cfg:       cfg,
		byteWidth: maxInstLen*3 + 1,
		cache:     make(map[int]Row),
	}

	row := 0
	for i := 0; i < stream.Len(); i++ {
		if i%cfg.CheckpointInterval == 0 {
			b.checkpoints = append(b.checkpoints, checkpoint{entry: i, row: row})
		}
		row += b.rowsForEntry(i)
	}
	b.totalRows = row
	return b
}

// Rows is the total view length.
func (b *Buffer) Rows() int { return b.totalRows }

// AnchorRow is the current anchor's view row.
func (b *Buffer) AnchorRow() int { return b.anchor }

// SetAnchor positions the window at addr. Addresses inside an
// instruction resolve to that instruction's row; addresses in gaps
// resolve forward to the next boundary.
func (b *Buffer) SetAnchor(addr uint64) {
	entry := b.stream.RowAtOrAfter(addr)
	if entry >= b.stream.Len() {
		entry = b.stream.Len() - 1
	}
	if entry < 0 {
		b.anchor = 0
		return
	}
	// Anchor on the entry's own row, past its label/section rows.
	b.anchor = b.rowOfEntry(entry) + b.rowsForEntry(entry) - 1
}

// Extend moves the anchor count rows in dir and materializes the
// window beginning at the new anchor. The result is finite and the
// walk is restartable from any anchor.
func (b *Buffer) Extend(dir Direction, count int) []Row {
	if dir == Forward {
		b.anchor += count
	} else {
		b.anchor -= count
	}
	if b.anchor < 0 {
		b.anchor = 0
	}
	if b.anchor >= b.totalRows {
		b.anchor = b.totalRows - 1
	}
	return b.Window(count)
}

// RowForAddr resolves an exact instruction boundary to its view row.
// Addresses off any boundary report no row; callers render them as
// bare addresses instead of links.
func (b *Buffer) RowForAddr(addr uint64) (int, bool) {
	entry, ok := b.stream.RowAt(addr)
	if !ok {
		return 0, false
	}
	return b.rowOfEntry(entry) + b.rowsForEntry(entry) - 1, true
}

// Window materializes count rows starting at the anchor.
func (b *Buffer) Window(count int) []Row {
	rows := make([]Row, 0, count)
	for i := b.anchor; i < b.anchor+count && i < b.totalRows; i++ {
		rows = append(rows, b.Row(i))
	}
	b.evict()
	return rows
}

// Row materializes one view row, serving from cache when the row
// survived since its last use. A miss recomputes synchronously; the
// cost is one checkpoint refinement scan plus vault lookups, never a
// re-decode.
func (b *Buffer) Row(i int) Row {
	if r, ok := b.cache[i]; ok {
		return r
	}
	entry, sub := b.entryOfRow(i)
	r := b.materialize(entry, sub)
	b.cache[i] = r
	return r
}

// evict reclaims materialized rows beyond the configured distance from
// the anchor. They will be recomputed on re-approach.
func (b *Buffer) evict() {
	for i := range b.cache {
		if i < b.anchor-b.cfg.EvictDistance || i > b.anchor+b.cfg.EvictDistance {
			delete(b.cache, i)
		}
	}
}

// rowsForEntry counts the view rows entry i expands to: an optional
// section-start row, an optional label row, then the entry itself.
func (b *Buffer) rowsForEntry(i int) int {
	n := 1
	res := b.stream.At(i)
	if b.sectionStartsAt(res.Addr()) {
		n++
	}
	if b.labelAt(res.Addr()) != "" {
		n++
	}
	return n
}

func (b *Buffer) sectionStartsAt(addr uint64) bool {
	for _, s := range b.secs {
		if s.Addr == addr {
			return true
		}
	}
	return false
}

func (b *Buffer) labelAt(addr uint64) string {
	if b.vault == nil {
		return ""
	}
	if name, ok := b.vault.NameAt(addr); ok {
		return name
	}
	return ""
}

// rowOfEntry resolves a stream entry to its first view row: checkpoint
// binary search, then a scan bounded by the checkpoint interval.
func (b *Buffer) rowOfEntry(entry int) int {
	i := sort.Search(len(b.checkpoints), func(i int) bool {
		return b.checkpoints[i].entry > entry
	})
	cp := b.checkpoints[i-1]
	row := cp.row
	for e := cp.entry; e < entry; e++ {
		row += b.rowsForEntry(e)
	}
	return row
}

// entryOfRow inverts rowOfEntry: which entry and which of its expanded
// rows a view row lands on.
func (b *Buffer) entryOfRow(row int) (entry, sub int) {
	i := sort.Search(len(b.checkpoints), func(i int) bool {
		return b.checkpoints[i].row > row
	})
	cp := b.checkpoints[i-1]
	r := cp.row
	for e := cp.entry; e < b.stream.Len(); e++ {
		n := b.rowsForEntry(e)
		if row < r+n {
			return e, row - r
		}
		r += n
	}
	last := b.stream.Len() - 1
	return last, b.rowsForEntry(last) - 1
}

func (b *Buffer) materialize(entry, sub int) Row {
	res := b.stream.At(entry)
	addr := res.Addr()

	// Expanded rows come in fixed order: section, label, entry.
	order := make([]RowKind, 0, 3)
	if b.sectionStartsAt(addr) {
		order = append(order, RowSection)
	}
	if b.labelAt(addr) != "" {
		order = append(order, RowLabel)
	}
	if res.Bad != nil {
		order = append(order, RowInvalid)
	} else {
		order = append(order, RowInstruction)
	}
	if sub >= len(order) {
		sub = len(order) - 1
	}

	switch order[sub] {
	case RowSection:
		sec, _ := sectionAt(b.secs, addr)
		return Row{
			Kind: RowSection,
			Addr: addr,
			Tokens: []decode.Token{
				{Text: "section ", Kind: decode.KindDelimiter},
				{Text: sec.Name, Kind: decode.KindSymbol},
				{Text: fmt.Sprintf(" {%s} ", sec.Kind), Kind: decode.KindDelimiter},
				{Text: fmt.Sprintf("%x", sec.Addr), Kind: decode.KindAddress},
				{Text: "-", Kind: decode.KindDelimiter},
				{Text: fmt.Sprintf("%x", sec.End()), Kind: decode.KindAddress},
			},
		}
	case RowLabel:
		return Row{
			Kind: RowLabel,
			Addr: addr,
			Tokens: []decode.Token{
				{Text: "<", Kind: decode.KindDelimiter},
				{Text: b.labelAt(addr), Kind: decode.KindSymbol},
				{Text: ">", Kind: decode.KindDelimiter},
			},
		}
	case RowInvalid:
		return Row{
			Kind:   RowInvalid,
			Addr:   addr,
			Bytes:  b.rawHex(addr, res.Bad.Length),
			Tokens: decode.InvalidTokens(res.Bad),
		}
	default:
		inst := res.Inst
		r := Row{
			Kind:   RowInstruction,
			Addr:   addr,
			Bytes:  decode.HexBytes(inst.Raw, b.byteWidth),
			Tokens: decode.Tokenize(inst, b.vault),
		}
		if b.vault != nil {
			if rec, ok := b.vault.Lookup(addr); ok {
				r.File, r.Line = rec.File, rec.Line
			}
		}
		return r
	}
}

func (b *Buffer) rawHex(addr uint64, n int) string {
	sec, ok := sectionAt(b.secs, addr)
	if !ok || sec.Bytes == nil {
		return ""
	}
	off := addr - sec.Addr
	end := off + uint64(n)
	if end > uint64(len(sec.Bytes)) {
		end = uint64(len(sec.Bytes))
	}
	return decode.HexBytes(sec.Bytes[off:end], b.byteWidth)
}

func sectionAt(secs []binimg.Section, addr uint64) (binimg.Section, bool) {
	for _, s := range secs {
		if s.Contains(addr) {
			return s, true
		}
	}
	return binimg.Section{}, false
}
