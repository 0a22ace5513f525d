package scroll

import (
	"fmt"
	"strings"

	"binsight/internal/binimg"
)

// HexRow is one line of the raw-byte view: sixteen bytes with a
// printable-ASCII gutter.
type HexRow struct {
	Addr  uint64
	Hex   string
	ASCII string
}

const hexRowBytes = 16

// HexBuffer windows section bytes the same way Buffer windows the
// instruction stream. Records are fixed-length here, so row math is
// direct and no checkpoint index is needed.
type HexBuffer struct {
	secs   []binimg.Section
	rows   []hexSpan // per-section cumulative row offsets
	total  int
	anchor int
}

type hexSpan struct {
	sec      binimg.Section
	firstRow int
	rowCount int
}

func NewHex(secs []binimg.Section) *HexBuffer {
	b := &HexBuffer{secs: secs}
	row := 0
	for _, s := range secs {
		if s.Bytes == nil {
			continue
		}
		n := (len(s.Bytes) + hexRowBytes - 1) / hexRowBytes
		b.rows = append(b.rows, hexSpan{sec: s, firstRow: row, rowCount: n})
		row += n
	}
	b.total = row
	return b
}

func (b *HexBuffer) Rows() int { return b.total }

// SetAnchor positions on the row containing addr, or the nearest
// following one when addr falls between sections.
func (b *HexBuffer) SetAnchor(addr uint64) {
	for _, sp := range b.rows {
		if addr < sp.sec.Addr {
			b.anchor = sp.firstRow
			return
		}
		if sp.sec.Contains(addr) {
			b.anchor = sp.firstRow + int(addr-sp.sec.Addr)/hexRowBytes
			return
		}
	}
	if b.total > 0 {
		b.anchor = b.total - 1
	}
}

// Extend mirrors Buffer.Extend for the raw-byte view.
func (b *HexBuffer) Extend(dir Direction, count int) []HexRow {
	if dir == Forward {
		b.anchor += count
	} else {
		b.anchor -= count
	}
	if b.anchor < 0 {
		b.anchor = 0
	}
	if b.anchor >= b.total && b.total > 0 {
		b.anchor = b.total - 1
	}
	return b.Window(count)
}

// Window materializes count rows starting at the anchor without moving it.
func (b *HexBuffer) Window(count int) []HexRow {
	rows := make([]HexRow, 0, count)
	for i := b.anchor; i < b.anchor+count && i < b.total; i++ {
		rows = append(rows, b.row(i))
	}
	return rows
}

func (b *HexBuffer) row(i int) HexRow {
	for _, sp := range b.rows {
		if i < sp.firstRow || i >= sp.firstRow+sp.rowCount {
			continue
		}
		off := (i - sp.firstRow) * hexRowBytes
		end := off + hexRowBytes
		if end > len(sp.sec.Bytes) {
			end = len(sp.sec.Bytes)
		}
		chunk := sp.sec.Bytes[off:end]

		var hexed, ascii strings.Builder
		for j, c := range chunk {
			if j > 0 {
				hexed.WriteByte(' ')
			}
			fmt.Fprintf(&hexed, "%02x", c)
			if c >= 0x20 && c < 0x7f {
				ascii.WriteByte(c)
			} else {
				ascii.WriteByte('.')
			}
		}
		return HexRow{
			Addr:  sp.sec.Addr + uint64(off),
			Hex:   hexed.String(),
			ASCII: ascii.String(),
		}
	}
	return HexRow{}
}
