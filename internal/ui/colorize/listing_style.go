package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// ListingDark is a custom chroma style matching the viewer's token palette,
// so dumped listings and the interactive listing read the same.
var ListingDark = styles.Register(chroma.MustNewStyle("listing-dark", chroma.StyleEntries{
	chroma.Text:       "#D4D4D4",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#6A9955",

	// Mnemonics come through the GAS lexer as keywords
	chroma.Keyword:       "#DCDCAA",
	chroma.KeywordPseudo: "#DCDCAA",

	// Registers
	chroma.Name:         "#9CDCFE",
	chroma.NameBuiltin:  "#9CDCFE",
	chroma.NameVariable: "#9CDCFE",

	// Immediates and addresses
	chroma.LiteralNumber:        "#B5CEA8",
	chroma.LiteralNumberHex:     "#B5CEA8",
	chroma.LiteralNumberInteger: "#B5CEA8",

	// Labels and symbol names
	chroma.NameLabel:    "#4FC1FF",
	chroma.NameFunction: "#4FC1FF",

	chroma.Operator:    "#D4D4D4",
	chroma.Punctuation: "#D4D4D4",
	chroma.String:      "#CE9178",
}))
