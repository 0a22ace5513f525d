// Package riscv decodes RV64 machine code on top of
// golang.org/x/arch/riscv64/riscv64asm.
package riscv

import (
	"strings"

	"golang.org/x/arch/riscv64/riscv64asm"

	"binsight/internal/decode"
)

// Decoder is the RV64I backend. Compressed (RVC) encodings are not
// decoded; they are reported as two-byte invalid entries so a sweep
// keeps its alignment through them.
type Decoder struct{}

func New() Decoder { return Decoder{} }

func (Decoder) Arch() decode.Arch { return decode.ArchRISCV }
func (Decoder) MaxLen() int       { return 4 }

func (d Decoder) Decode(src []byte, addr uint64) decode.Result {
	if len(src) < 2 {
		return decode.InvalidAt(addr, len(src))
	}
	// Encodings with the two low bits clear of 0b11 are 16-bit
	// compressed instructions.
	if src[0]&0x3 != 0x3 {
		return decode.InvalidAt(addr, 2)
	}
	if len(src) < 4 {
		return decode.InvalidAt(addr, len(src))
	}

	inst, err := riscv64asm.Decode(src[:4])
	if err != nil {
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
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		op := convertArg(arg, addr, inst.Op)
		if rel, ok := op.(decode.Rel); ok {
			relTarget, hasRel = rel.Target, true
		}
		out.Operands = append(out.Operands, op)
	}

	out.Flow, out.Target, out.HasTarget = classify(inst, relTarget, hasRel)
	return decode.Result{Inst: out}
}

// branchOps are the direct conditional branches of RV64I.
var branchOps = map[riscv64asm.Op]bool{
	riscv64asm.BEQ: true, riscv64asm.BNE: true,
	riscv64asm.BLT: true, riscv64asm.BGE: true,
	riscv64asm.BLTU: true, riscv64asm.BGEU: true,
}

func classify(inst riscv64asm.Inst, target uint64, hasRel bool) (decode.Flow, uint64, bool) {
	switch {
	case inst.Op == riscv64asm.JAL:
		// JAL with the zero register as link target is a plain
		// jump; any real link register makes it a call.
		if firstReg(inst) == riscv64asm.X0 {
			return decode.FlowJump, target, hasRel
		}
		return decode.FlowCall, target, hasRel
	case inst.Op == riscv64asm.JALR:
		// JALR through ra with no link is the conventional
		// return sequence; everything else is a computed target.
		if firstReg(inst) == riscv64asm.X0 && viaRA(inst) {
			return decode.FlowReturn, 0, false
		}
		return decode.FlowIndirect, 0, false
	case branchOps[inst.Op]:
		return decode.FlowCondJump, target, hasRel
	default:
		return decode.FlowNone, 0, false
	}
}

func firstReg(inst riscv64asm.Inst) riscv64asm.Reg {
	if len(inst.Args) > 0 {
		if r, ok := inst.Args[0].(riscv64asm.Reg); ok {
			return r
		}
	}
	return riscv64asm.Reg(0xff)
}

func viaRA(inst riscv64asm.Inst) bool {
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch a := arg.(type) {
		case riscv64asm.Reg:
			if a == riscv64asm.X1 {
				return true
			}
		case riscv64asm.RegOffset:
			if a.OfsReg == riscv64asm.X1 {
				return true
			}
		}
	}
	return false
}

// isRelImm marks ops whose signed immediate is a PC-relative offset
// rather than a value.
func isRelImm(op riscv64asm.Op) bool {
	return op == riscv64asm.JAL || branchOps[op]
}

func convertArg(arg riscv64asm.Arg, addr uint64, op riscv64asm.Op) decode.Operand {
	switch a := arg.(type) {
	case riscv64asm.Reg:
		return decode.Reg{Name: strings.ToLower(a.String())}
	case riscv64asm.Simm:
		if isRelImm(op) {
			return decode.Rel{Target: addr + uint64(int64(a.Imm))}
		}
		return decode.Imm{Value: int64(a.Imm), Signed: true, Width: a.Width}
	case riscv64asm.Uimm:
		return decode.Imm{Value: int64(a.Imm), Signed: false, Width: 32}
	case riscv64asm.RegOffset:
		return decode.Mem{
			Base: strings.ToLower(a.OfsReg.String()),
			Disp: int64(a.Ofs.Imm),
		}
	default:
		return decode.Expr{Text: strings.ToLower(arg.String())}
	}
}
