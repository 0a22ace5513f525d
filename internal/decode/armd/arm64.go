// Package armd decodes 32- and 64-bit ARM machine code on top of
// golang.org/x/arch/arm/armasm and golang.org/x/arch/arm64/arm64asm.
package armd

import (
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"binsight/internal/decode"
)

// A64 is the fixed-width AArch64 backend.
type A64 struct{}

func NewA64() A64 { return A64{} }

func (A64) Arch() decode.Arch { return decode.ArchARM64 }
func (A64) MaxLen() int       { return 4 }

func (d A64) Decode(src []byte, addr uint64) decode.Result {
	if len(src) < 4 {
		return decode.InvalidAt(addr, len(src))
	}
	inst, err := arm64asm.Decode(src[:4])
	if err != nil {
		return decode.InvalidAt(addr, 4)
	}

	out := &decode.Instruction{
		Addr:     addr,
		Len:      4,
		Mnemonic: strings.ToLower(inst.Op.String()),
		Raw:      append([]byte(nil), src[:4]...),
	}

	conditional := false
	var relTarget uint64
	var hasRel bool
	for i, arg := range inst.Args {
		if arg == nil {
			break
		}
		// B.cond encodes the condition as the first argument;
		// fold it into the mnemonic the way GNU syntax does.
		if cond, ok := arg.(arm64asm.Cond); ok && i == 0 && inst.Op == arm64asm.B {
			out.Mnemonic = "b." + strings.ToLower(cond.String())
			conditional = true
			continue
		}
		op := convertA64Arg(arg, addr)
		if rel, ok := op.(decode.Rel); ok {
			relTarget, hasRel = rel.Target, true
		}
		out.Operands = append(out.Operands, op)
	}

	out.Flow, out.Target, out.HasTarget = classifyA64(inst.Op, conditional, relTarget, hasRel)
	return decode.Result{Inst: out}
}

func classifyA64(op arm64asm.Op, conditional bool, target uint64, hasRel bool) (decode.Flow, uint64, bool) {
	switch op {
	case arm64asm.B:
		if conditional {
			return decode.FlowCondJump, target, hasRel
		}
		return decode.FlowJump, target, hasRel
	case arm64asm.BL:
		return decode.FlowCall, target, hasRel
	case arm64asm.BR, arm64asm.BLR:
		return decode.FlowIndirect, 0, false
	case arm64asm.RET, arm64asm.ERET:
		return decode.FlowReturn, 0, false
	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		return decode.FlowCondJump, target, hasRel
	default:
		return decode.FlowNone, 0, false
	}
}

func convertA64Arg(arg arm64asm.Arg, addr uint64) decode.Operand {
	switch a := arg.(type) {
	case arm64asm.Reg:
		return decode.Reg{Name: strings.ToLower(a.String())}
	case arm64asm.RegSP:
		return decode.Reg{Name: strings.ToLower(arm64asm.Reg(a).String())}
	case arm64asm.PCRel:
		// A64 PC-relative offsets are based at the instruction
		// address, no pipeline skew.
		return decode.Rel{Target: addr + uint64(int64(a))}
	case arm64asm.Imm:
		return decode.Imm{Value: int64(a.Imm), Signed: false, Width: 32}
	case arm64asm.Imm64:
		return decode.Imm{Value: int64(a.Imm), Signed: true, Width: 64}
	default:
		// Memory references, extends and shifts keep their
		// arch-specific rendering.
		return decode.Expr{Text: strings.ToLower(arg.String())}
	}
}
