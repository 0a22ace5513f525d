package styles

import (
	"github.com/charmbracelet/lipgloss/v2"

	"binsight/internal/decode"
)

// Listing holds the lipgloss styles for every piece of a listing row.
type Listing struct {
	Address  lipgloss.Style
	Selected lipgloss.Style
	Bytes    lipgloss.Style
	Label    lipgloss.Style
	Section  lipgloss.Style
	Source   lipgloss.Style
	Token    map[decode.TokenKind]lipgloss.Style
}

// NewListing returns the default listing palette.
func NewListing() Listing {
	return Listing{
		Address:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")), // Gray for addresses
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("170")), // Purple for the selected row address
		Bytes:    lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true), // Orange labels
		Section:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
		Source:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		Token: map[decode.TokenKind]lipgloss.Style{
			decode.KindOpcode:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true),
			decode.KindRegister:  lipgloss.NewStyle().Foreground(lipgloss.Color("81")), // Cyan registers
			decode.KindImmediate: lipgloss.NewStyle().Foreground(lipgloss.Color("204")),
			decode.KindAddress:   lipgloss.NewStyle().Foreground(lipgloss.Color("150")),
			decode.KindSymbol:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			decode.KindDelimiter: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
			decode.KindExpr:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
			decode.KindInvalid:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // Red for undecodable bytes
		},
	}
}

// Render styles a single token.
func (l Listing) Render(tok decode.Token) string {
	if st, ok := l.Token[tok.Kind]; ok {
		return st.Render(tok.Text)
	}
	return tok.Text
}

// RenderTokens styles a full token stream into one line.
func (l Listing) RenderTokens(toks []decode.Token) string {
	var out string
	for _, t := range toks {
		out += l.Render(t)
	}
	return out
}
