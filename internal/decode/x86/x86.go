// Package x86 decodes 64-bit x86 machine code on top of
// golang.org/x/arch/x86/x86asm.
package x86

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"binsight/internal/decode"
)

// Decoder is the variable-length x86-64 backend.
type Decoder struct{}

func New() Decoder { return Decoder{} }

func (Decoder) Arch() decode.Arch { return decode.ArchX86_64 }

// MaxLen is the architectural limit; longer byte runs are invalid by
// definition.
func (Decoder) MaxLen() int { return 15 }

// condJumps are the direct conditional transfers. LOOP and the
// CX-zero tests belong here too: they branch on state, not
// unconditionally.
var condJumps = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JE: true, x86asm.JG: true, x86asm.JGE: true, x86asm.JL: true,
	x86asm.JLE: true, x86asm.JNE: true, x86asm.JNO: true, x86asm.JNP: true,
	x86asm.JNS: true, x86asm.JO: true, x86asm.JP: true, x86asm.JS: true,
	x86asm.JCXZ: true, x86asm.JECXZ: true, x86asm.JRCXZ: true,
	x86asm.LOOP: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

func (d Decoder) Decode(src []byte, addr uint64) decode.Result {
	inst, err := x86asm.Decode(src, 64)
	if err != nil || inst.Len < 1 {
		// Resynchronize one byte at a time; x86 carries no
		// alignment to skip by.
		return decode.InvalidAt(addr, 1)
	}

	out := &decode.Instruction{
		Addr:     addr,
		Len:      inst.Len,
		Mnemonic: strings.ToLower(inst.Op.String()),
		Raw:      append([]byte(nil), src[:inst.Len]...),
	}

	var relTarget uint64
	var hasRel bool
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		op := convertArg(arg, addr, inst)
		if rel, ok := op.(decode.Rel); ok {
			relTarget, hasRel = rel.Target, true
		}
		out.Operands = append(out.Operands, op)
	}

	out.Flow, out.Target, out.HasTarget = classify(inst.Op, relTarget, hasRel)
	return decode.Result{Inst: out}
}

func classify(op x86asm.Op, target uint64, hasRel bool) (decode.Flow, uint64, bool) {
	switch {
	case op == x86asm.CALL:
		if hasRel {
			return decode.FlowCall, target, true
		}
		return decode.FlowIndirect, 0, false
	case op == x86asm.JMP:
		if hasRel {
			return decode.FlowJump, target, true
		}
		return decode.FlowIndirect, 0, false
	case op == x86asm.RET || op == x86asm.LRET ||
		op == x86asm.IRET || op == x86asm.IRETD || op == x86asm.IRETQ:
		return decode.FlowReturn, 0, false
	case condJumps[op]:
		if hasRel {
			return decode.FlowCondJump, target, true
		}
		return decode.FlowCondJump, 0, false
	default:
		return decode.FlowNone, 0, false
	}
}

func convertArg(arg x86asm.Arg, addr uint64, inst x86asm.Inst) decode.Operand {
	switch a := arg.(type) {
	case x86asm.Reg:
		return decode.Reg{Name: strings.ToLower(a.String())}
	case x86asm.Imm:
		return decode.Imm{Value: int64(a), Signed: true, Width: immWidth(inst)}
	case x86asm.Mem:
		m := decode.Mem{Scale: a.Scale, Disp: a.Disp}
		if a.Segment != 0 {
			m.Segment = strings.ToLower(a.Segment.String())
		}
		if a.Base != 0 {
			m.Base = strings.ToLower(a.Base.String())
		}
		if a.Index != 0 {
			m.Index = strings.ToLower(a.Index.String())
		}
		return m
	case x86asm.Rel:
		return decode.Rel{Target: addr + uint64(inst.Len) + uint64(int64(a))}
	default:
		return decode.Expr{Text: strings.ToLower(arg.String())}
	}
}

// immWidth reports the operand width the encoding used, preserving the
// encoded size rather than widening to 64 bits.
func immWidth(inst x86asm.Inst) uint8 {
	if inst.DataSize > 0 && inst.DataSize <= 64 {
		return uint8(inst.DataSize)
	}
	return 64
}
