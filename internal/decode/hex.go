package decode

import (
	"fmt"
	"strings"
)

// HexBytes renders raw instruction bytes as space-separated hex pairs,
// truncated with ".." once the rendering would exceed width columns.
// Width 0 disables truncation.
func HexBytes(b []byte, width int) string {
	var sb strings.Builder
	for i, c := range b {
		if width > 0 && sb.Len()+3 > width-2 && i < len(b)-1 {
			sb.WriteString("..")
			return sb.String()
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}
