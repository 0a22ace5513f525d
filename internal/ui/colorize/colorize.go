// Package colorize applies chroma syntax highlighting to the source pane
// and to one-shot listing dumps.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Enabled reports whether highlighting is on. BINSIGHT_NO_COLOR disables it.
func Enabled() bool {
	return os.Getenv("BINSIGHT_NO_COLOR") == ""
}

// getListingStyle returns the listing style with fallbacks
func getListingStyle() *chroma.Style {
	_ = ListingDark // Force registration
	candidates := []string{"listing-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Source highlights a source file's contents. The lexer is picked from the
// file name the debug records point at, falling back to content analysis.
func Source(path, code string) string {
	if !Enabled() {
		return code
	}

	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getListingStyle(), iterator); err != nil {
		return code
	}
	return buf.String()
}

// Listing highlights assembly text written by the one-shot dump command.
// The interactive viewer styles tokens itself and does not go through here.
func Listing(code string) string {
	if !Enabled() {
		return code
	}

	lexer := assemblyLexer()
	if lexer == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getListingStyle(), iterator); err != nil {
		return code
	}
	return buf.String()
}

// assemblyLexer returns an assembly lexer with fallbacks across the
// dialects the backends emit
func assemblyLexer() chroma.Lexer {
	candidates := []string{"gas", "armasm", "nasm"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}
