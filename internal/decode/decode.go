// Package decode defines a common instruction representation and the
// decoder contract shared by all architecture backends.
package decode

import "fmt"

// Arch identifies an instruction set architecture. One backend is
// selected per loaded binary; backends are never mixed within a stream.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchARM
	ArchARM64
	ArchRISCV
	ArchMIPS
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86-64"
	case ArchARM:
		return "arm"
	case ArchARM64:
		return "arm64"
	case ArchRISCV:
		return "riscv"
	case ArchMIPS:
		return "mips"
	default:
		return "unknown"
	}
}

// Flow classifies how an instruction transfers control.
type Flow int

const (
	FlowNone Flow = iota
	FlowJump      // unconditional direct branch
	FlowCondJump  // conditional direct branch
	FlowCall
	FlowReturn
	FlowIndirect // target computed at runtime
)

func (f Flow) String() string {
	switch f {
	case FlowJump:
		return "jump"
	case FlowCondJump:
		return "cond-jump"
	case FlowCall:
		return "call"
	case FlowReturn:
		return "return"
	case FlowIndirect:
		return "indirect"
	default:
		return "none"
	}
}

// Operand is a tagged variant: Reg, Imm, Mem, Rel or Expr.
type Operand interface {
	operand()
}

// Reg is a named register operand.
type Reg struct {
	Name string
}

// Imm is an immediate. Value holds the raw bits as encoded; Signed and
// Width record how to interpret them. No widening or truncation is
// applied during decode.
type Imm struct {
	Value  int64
	Signed bool
	Width  uint8 // significant bits of the encoding
}

// Mem is a base+index*scale+displacement memory reference. Empty
// register names mean the component is absent.
type Mem struct {
	Segment string
	Base    string
	Index   string
	Scale   uint8
	Disp    int64
}

// Rel is a PC-relative reference already resolved to an absolute
// target address.
type Rel struct {
	Target uint64
}

// Expr covers textual operand forms with no numeric interpretation of
// their own: shifted registers, condition suffixes, barrier options.
type Expr struct {
	Text string
}

func (Reg) operand()  {}
func (Imm) operand()  {}
func (Mem) operand()  {}
func (Rel) operand()  {}
func (Expr) operand() {}

// Instruction is one decoded instruction. Immutable once produced.
type Instruction struct {
	Addr     uint64
	Len      int
	Mnemonic string
	Operands []Operand
	Raw      []byte
	Flow     Flow

	// Target is the resolved direct branch/call destination.
	// Valid only when Flow is FlowJump, FlowCondJump or FlowCall
	// and the encoding names the target directly.
	Target    uint64
	HasTarget bool
}

// Text renders the canonical "mnemonic operands" form.
func (i *Instruction) Text() string {
	return TokensText(Tokenize(i, nil))
}

// Invalid marks bytes that did not decode. Length is the best-effort
// number of bytes consumed, at least one, so a sweep can resynchronize.
type Invalid struct {
	Addr   uint64
	Length int
}

// Result is the outcome of decoding at one address: exactly one of
// Inst or Bad is set. Decoding never fails outright; unrecognized
// bytes are represented, not dropped.
type Result struct {
	Inst *Instruction
	Bad  *Invalid
}

// Len reports the number of bytes the result covers.
func (r Result) Len() int {
	if r.Inst != nil {
		return r.Inst.Len
	}
	return r.Bad.Length
}

// Addr reports the address the result was decoded at.
func (r Result) Addr() uint64 {
	if r.Inst != nil {
		return r.Inst.Addr
	}
	return r.Bad.Addr
}

// Decoder decodes one instruction starting at the first byte of src.
// Implementations are pure and stateless: no call may assume it was
// preceded by any other, and decoding the same window at the same
// address twice yields identical results.
type Decoder interface {
	// Decode never returns a zero-length result, even for empty or
	// garbage input.
	Decode(src []byte, addr uint64) Result

	// MaxLen is the longest encoding the architecture allows.
	MaxLen() int

	// Arch identifies the backend.
	Arch() Arch
}

// InvalidAt builds an Invalid result, clamping the length to the
// one-byte minimum the contract requires.
func InvalidAt(addr uint64, length int) Result {
	if length < 1 {
		length = 1
	}
	return Result{Bad: &Invalid{Addr: addr, Length: length}}
}

// ErrUnsupportedArch reports a machine type with no backend.
type ErrUnsupportedArch struct {
	Arch Arch
}

func (e ErrUnsupportedArch) Error() string {
	return fmt.Sprintf("no decoder backend for architecture %q", e.Arch)
}
