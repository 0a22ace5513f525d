package binimg

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// StringHit is a recovered NUL-terminated string from a data section.
type StringHit struct {
	Addr  uint64
	Value string // escaped form
	Len   int    // original byte length
}

// ScanStrings walks the read-only and data sections for printable
// NUL-terminated runs of at least minLen bytes.
func (img *Image) ScanStrings(minLen int) []StringHit {
	if minLen < 1 {
		minLen = 4
	}
	var hits []StringHit
	for _, sec := range img.Sections {
		if sec.Kind != KindReadOnly && sec.Kind != KindData {
			continue
		}
		start := -1
		for i, b := range sec.Bytes {
			if b >= 0x20 && b < 0x7f {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 && b == 0 && i-start >= minLen {
				hits = append(hits, StringHit{
					Addr:  sec.Addr + uint64(start),
					Value: EscapeUnprintable(sec.Bytes[start:i]),
					Len:   i - start,
				})
			}
			start = -1
		}
	}
	return hits
}

// EscapeUnprintable returns a string where printable Unicode runes are
// preserved. Control and unprintable runes are escaped as \uXXXX.
// Invalid UTF-8 is escaped as \xXX.
func EscapeUnprintable(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteString(fmt.Sprintf("\\x%02X", b[0]))
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteString(fmt.Sprintf("\\u%04X", r))
		}
		b = b[size:]
	}
	return sb.String()
}
