package decode

import (
	"fmt"
	"strings"
)

// TokenKind tells the renderer what a piece of instruction text is.
type TokenKind int

const (
	KindOpcode TokenKind = iota
	KindRegister
	KindImmediate
	KindAddress
	KindSymbol
	KindDelimiter
	KindExpr
	KindInvalid
)

func (k TokenKind) String() string {
	switch k {
	case KindOpcode:
		return "opcode"
	case KindRegister:
		return "register"
	case KindImmediate:
		return "immediate"
	case KindAddress:
		return "address"
	case KindSymbol:
		return "symbol"
	case KindDelimiter:
		return "delimiter"
	case KindExpr:
		return "expr"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Token is one typed span of rendered instruction text.
type Token struct {
	Text string
	Kind TokenKind
}

// SymbolNamer resolves an address to a display name. A nil namer or a
// miss leaves relative operands rendered as bare hex addresses.
type SymbolNamer interface {
	NameAt(addr uint64) (string, bool)
}

// Tokenize converts a decoded instruction into typed text spans. The
// concatenated span text is the canonical rendering of the
// instruction; see TokensText.
func Tokenize(inst *Instruction, names SymbolNamer) []Token {
	toks := make([]Token, 0, 2+4*len(inst.Operands))
	toks = append(toks, Token{Text: inst.Mnemonic, Kind: KindOpcode})

	for i, op := range inst.Operands {
		if i == 0 {
			toks = append(toks, Token{Text: " ", Kind: KindDelimiter})
		} else {
			toks = append(toks, Token{Text: ", ", Kind: KindDelimiter})
		}
		toks = appendOperand(toks, op, names)
	}
	return toks
}

func appendOperand(toks []Token, op Operand, names SymbolNamer) []Token {
	switch op := op.(type) {
	case Reg:
		return append(toks, Token{Text: op.Name, Kind: KindRegister})
	case Imm:
		return append(toks, Token{Text: formatImm(op), Kind: KindImmediate})
	case Rel:
		if names != nil {
			if name, ok := names.NameAt(op.Target); ok {
				toks = append(toks, Token{Text: fmt.Sprintf("%#x", op.Target), Kind: KindAddress})
				toks = append(toks, Token{Text: " <", Kind: KindDelimiter})
				toks = append(toks, Token{Text: name, Kind: KindSymbol})
				return append(toks, Token{Text: ">", Kind: KindDelimiter})
			}
		}
		return append(toks, Token{Text: fmt.Sprintf("%#x", op.Target), Kind: KindAddress})
	case Mem:
		return appendMem(toks, op)
	case Expr:
		return append(toks, Token{Text: op.Text, Kind: KindExpr})
	default:
		return append(toks, Token{Text: "?", Kind: KindInvalid})
	}
}

func formatImm(imm Imm) string {
	if imm.Signed {
		return fmt.Sprintf("%#x", imm.Value)
	}
	return fmt.Sprintf("%#x", uint64(imm.Value))
}

func appendMem(toks []Token, m Mem) []Token {
	if m.Segment != "" {
		toks = append(toks, Token{Text: m.Segment, Kind: KindRegister})
		toks = append(toks, Token{Text: ":", Kind: KindDelimiter})
	}
	toks = append(toks, Token{Text: "[", Kind: KindDelimiter})
	wrote := false
	if m.Base != "" {
		toks = append(toks, Token{Text: m.Base, Kind: KindRegister})
		wrote = true
	}
	if m.Index != "" {
		if wrote {
			toks = append(toks, Token{Text: "+", Kind: KindDelimiter})
		}
		toks = append(toks, Token{Text: m.Index, Kind: KindRegister})
		if m.Scale > 1 {
			toks = append(toks, Token{Text: "*", Kind: KindDelimiter})
			toks = append(toks, Token{Text: fmt.Sprintf("%d", m.Scale), Kind: KindImmediate})
		}
		wrote = true
	}
	if m.Disp != 0 || !wrote {
		if wrote {
			if m.Disp < 0 {
				toks = append(toks, Token{Text: "-", Kind: KindDelimiter})
				toks = append(toks, Token{Text: fmt.Sprintf("%#x", -m.Disp), Kind: KindImmediate})
			} else {
				toks = append(toks, Token{Text: "+", Kind: KindDelimiter})
				toks = append(toks, Token{Text: fmt.Sprintf("%#x", m.Disp), Kind: KindImmediate})
			}
		} else {
			toks = append(toks, Token{Text: fmt.Sprintf("%#x", m.Disp), Kind: KindImmediate})
		}
	}
	return append(toks, Token{Text: "]", Kind: KindDelimiter})
}

// TokensText joins token spans back into plain text. For any
// instruction, Tokenize followed by TokensText round-trips the
// mnemonic/operand rendering.
func TokensText(toks []Token) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// InvalidTokens renders the placeholder row for undecodable bytes.
func InvalidTokens(bad *Invalid) []Token {
	return []Token{{Text: "??", Kind: KindInvalid}}
}
