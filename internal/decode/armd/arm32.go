package armd

import (
	"strings"

	"golang.org/x/arch/arm/armasm"

	"binsight/internal/decode"
)

// A32 is the fixed-width AArch32 backend (ARM mode, 4-byte words).
type A32 struct{}

func NewA32() A32 { return A32{} }

func (A32) Arch() decode.Arch { return decode.ArchARM }
func (A32) MaxLen() int       { return 4 }

func (d A32) Decode(src []byte, addr uint64) decode.Result {
	if len(src) < 4 {
		return decode.InvalidAt(addr, len(src))
	}
	inst, err := armasm.Decode(src[:4], armasm.ModeARM)
	if err != nil || inst.Len != 4 {
		return decode.InvalidAt(addr, 4)
	}

	out := &decode.Instruction{
		Addr:     addr,
		Len:      4,
		Mnemonic: strings.ToLower(inst.Op.String()),
		Raw:      append([]byte(nil), src[:4]...),
	}

	var relTarget uint64
	var hasRel bool
	var lrArg bool
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		op := convertA32Arg(arg, addr)
		if rel, ok := op.(decode.Rel); ok {
			relTarget, hasRel = rel.Target, true
		}
		if r, ok := op.(decode.Reg); ok && r.Name == "lr" {
			lrArg = true
		}
		out.Operands = append(out.Operands, op)
	}

	out.Flow, out.Target, out.HasTarget = classifyA32(inst.Op, relTarget, hasRel, lrArg)
	return decode.Result{Inst: out}
}

// classifyA32 works from the op name: armasm folds the condition
// suffix into the Op value (B_EQ, BL_NE, ...), so the base mnemonic
// and the suffix are recovered by splitting on the first dot.
func classifyA32(op armasm.Op, target uint64, hasRel, lrArg bool) (decode.Flow, uint64, bool) {
	name := op.String()
	base, cond, hasCond := strings.Cut(name, ".")
	conditional := hasCond && cond != "AL"

	switch base {
	case "B":
		if !hasRel {
			return decode.FlowIndirect, 0, false
		}
		if conditional {
			return decode.FlowCondJump, target, true
		}
		return decode.FlowJump, target, true
	case "BL", "BLX":
		if !hasRel {
			return decode.FlowIndirect, 0, false
		}
		return decode.FlowCall, target, true
	case "BX":
		if lrArg {
			return decode.FlowReturn, 0, false
		}
		return decode.FlowIndirect, 0, false
	default:
		return decode.FlowNone, 0, false
	}
}

func convertA32Arg(arg armasm.Arg, addr uint64) decode.Operand {
	switch a := arg.(type) {
	case armasm.Reg:
		return decode.Reg{Name: strings.ToLower(a.String())}
	case armasm.PCRel:
		// A32 branch offsets are relative to the fetch address
		// two words ahead of the instruction.
		return decode.Rel{Target: addr + 8 + uint64(int64(a))}
	case armasm.Imm:
		return decode.Imm{Value: int64(a), Signed: false, Width: 32}
	case armasm.Mem:
		m := decode.Mem{}
		if a.Base != 0 {
			m.Base = strings.ToLower(a.Base.String())
		}
		if a.Mode == armasm.AddrOffset && a.Index == 0 {
			m.Disp = int64(a.Offset)
			return m
		}
		// Register offsets, shifts and writeback modes keep the
		// arch-specific rendering.
		return decode.Expr{Text: strings.ToLower(arg.String())}
	default:
		return decode.Expr{Text: strings.ToLower(arg.String())}
	}
}
