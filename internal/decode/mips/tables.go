package mips

import "binsight/internal/decode"

// format names the operand shape an instruction renders with.
type format int

const (
	fmtNone     format = iota
	fmtRdRsRt          // add rd, rs, rt
	fmtRdRtSa          // sll rd, rt, shamt
	fmtRdRtRs          // sllv rd, rt, rs
	fmtRs              // jr rs
	fmtRdRs            // jalr rd, rs
	fmtRsRt            // mult rs, rt
	fmtRd              // mfhi rd
	fmtRsRtOff         // beq rs, rt, offset
	fmtRsOff           // bltz rs, offset
	fmtRtRsImm         // addiu rt, rs, imm
	fmtRsRtImmU        // andi rt, rs, imm (zero-extended)
	fmtRtImm           // lui rt, imm
	fmtRtMem           // lw rt, offset(base)
	fmtJump            // j target
)

type spec struct {
	name   string
	format format
	flow   decode.Flow
}

// special is the funct table for opcode 0.
var special = map[uint32]spec{
	0x00: {"sll", fmtRdRtSa, decode.FlowNone},
	0x02: {"srl", fmtRdRtSa, decode.FlowNone},
	0x03: {"sra", fmtRdRtSa, decode.FlowNone},
	0x04: {"sllv", fmtRdRtRs, decode.FlowNone},
	0x06: {"srlv", fmtRdRtRs, decode.FlowNone},
	0x07: {"srav", fmtRdRtRs, decode.FlowNone},
	0x08: {"jr", fmtRs, decode.FlowIndirect},
	0x09: {"jalr", fmtRdRs, decode.FlowIndirect},
	0x0a: {"movz", fmtRdRsRt, decode.FlowNone},
	0x0b: {"movn", fmtRdRsRt, decode.FlowNone},
	0x0c: {"syscall", fmtNone, decode.FlowNone},
	0x0d: {"break", fmtNone, decode.FlowNone},
	0x0f: {"sync", fmtNone, decode.FlowNone},
	0x10: {"mfhi", fmtRd, decode.FlowNone},
	0x11: {"mthi", fmtRs, decode.FlowNone},
	0x12: {"mflo", fmtRd, decode.FlowNone},
	0x13: {"mtlo", fmtRs, decode.FlowNone},
	0x18: {"mult", fmtRsRt, decode.FlowNone},
	0x19: {"multu", fmtRsRt, decode.FlowNone},
	0x1a: {"div", fmtRsRt, decode.FlowNone},
	0x1b: {"divu", fmtRsRt, decode.FlowNone},
	0x20: {"add", fmtRdRsRt, decode.FlowNone},
	0x21: {"addu", fmtRdRsRt, decode.FlowNone},
	0x22: {"sub", fmtRdRsRt, decode.FlowNone},
	0x23: {"subu", fmtRdRsRt, decode.FlowNone},
	0x24: {"and", fmtRdRsRt, decode.FlowNone},
	0x25: {"or", fmtRdRsRt, decode.FlowNone},
	0x26: {"xor", fmtRdRsRt, decode.FlowNone},
	0x27: {"nor", fmtRdRsRt, decode.FlowNone},
	0x2a: {"slt", fmtRdRsRt, decode.FlowNone},
	0x2b: {"sltu", fmtRdRsRt, decode.FlowNone},
	0x30: {"tge", fmtRsRt, decode.FlowNone},
	0x31: {"tgeu", fmtRsRt, decode.FlowNone},
	0x32: {"tlt", fmtRsRt, decode.FlowNone},
	0x33: {"tltu", fmtRsRt, decode.FlowNone},
	0x34: {"teq", fmtRsRt, decode.FlowNone},
	0x36: {"tne", fmtRsRt, decode.FlowNone},
}

// special2 is the funct table for opcode 0x1c.
var special2 = map[uint32]spec{
	0x00: {"madd", fmtRsRt, decode.FlowNone},
	0x01: {"maddu", fmtRsRt, decode.FlowNone},
	0x02: {"mul", fmtRdRsRt, decode.FlowNone},
	0x04: {"msub", fmtRsRt, decode.FlowNone},
	0x05: {"msubu", fmtRsRt, decode.FlowNone},
	0x20: {"clz", fmtRdRs, decode.FlowNone},
	0x21: {"clo", fmtRdRs, decode.FlowNone},
}

// regimm is keyed on the rt field for opcode 1.
var regimm = map[uint32]spec{
	0x00: {"bltz", fmtRsOff, decode.FlowCondJump},
	0x01: {"bgez", fmtRsOff, decode.FlowCondJump},
	0x10: {"bltzal", fmtRsOff, decode.FlowCondJump},
	0x11: {"bgezal", fmtRsOff, decode.FlowCondJump},
}

// itype covers the remaining primary opcodes.
var itype = map[uint32]spec{
	0x02: {"j", fmtJump, decode.FlowJump},
	0x03: {"jal", fmtJump, decode.FlowCall},
	0x04: {"beq", fmtRsRtOff, decode.FlowCondJump},
	0x05: {"bne", fmtRsRtOff, decode.FlowCondJump},
	0x06: {"blez", fmtRsOff, decode.FlowCondJump},
	0x07: {"bgtz", fmtRsOff, decode.FlowCondJump},
	0x08: {"addi", fmtRtRsImm, decode.FlowNone},
	0x09: {"addiu", fmtRtRsImm, decode.FlowNone},
	0x0a: {"slti", fmtRtRsImm, decode.FlowNone},
	0x0b: {"sltiu", fmtRtRsImm, decode.FlowNone},
	0x0c: {"andi", fmtRsRtImmU, decode.FlowNone},
	0x0d: {"ori", fmtRsRtImmU, decode.FlowNone},
	0x0e: {"xori", fmtRsRtImmU, decode.FlowNone},
	0x0f: {"lui", fmtRtImm, decode.FlowNone},
	0x20: {"lb", fmtRtMem, decode.FlowNone},
	0x21: {"lh", fmtRtMem, decode.FlowNone},
	0x22: {"lwl", fmtRtMem, decode.FlowNone},
	0x23: {"lw", fmtRtMem, decode.FlowNone},
	0x24: {"lbu", fmtRtMem, decode.FlowNone},
	0x25: {"lhu", fmtRtMem, decode.FlowNone},
	0x26: {"lwr", fmtRtMem, decode.FlowNone},
	0x28: {"sb", fmtRtMem, decode.FlowNone},
	0x29: {"sh", fmtRtMem, decode.FlowNone},
	0x2a: {"swl", fmtRtMem, decode.FlowNone},
	0x2b: {"sw", fmtRtMem, decode.FlowNone},
	0x2e: {"swr", fmtRtMem, decode.FlowNone},
	0x30: {"ll", fmtRtMem, decode.FlowNone},
	0x38: {"sc", fmtRtMem, decode.FlowNone},
}

func lookup(f fields) (spec, bool) {
	switch f.op {
	case 0x00:
		s, ok := special[f.funct]
		return s, ok
	case 0x01:
		s, ok := regimm[f.rt]
		return s, ok
	case 0x1c:
		s, ok := special2[f.funct]
		return s, ok
	default:
		s, ok := itype[f.op]
		return s, ok
	}
}

func (fm format) operands(f fields, addr uint64) []decode.Operand {
	switch fm {
	case fmtRdRsRt:
		return []decode.Operand{reg(f.rd), reg(f.rs), reg(f.rt)}
	case fmtRdRtSa:
		return []decode.Operand{reg(f.rd), reg(f.rt),
			decode.Imm{Value: int64(f.shamt), Signed: false, Width: 5}}
	case fmtRdRtRs:
		return []decode.Operand{reg(f.rd), reg(f.rt), reg(f.rs)}
	case fmtRs:
		return []decode.Operand{reg(f.rs)}
	case fmtRdRs:
		return []decode.Operand{reg(f.rd), reg(f.rs)}
	case fmtRsRt:
		return []decode.Operand{reg(f.rs), reg(f.rt)}
	case fmtRd:
		return []decode.Operand{reg(f.rd)}
	case fmtRsRtOff:
		return []decode.Operand{reg(f.rs), reg(f.rt),
			decode.Rel{Target: branchTarget(addr, f.imm)}}
	case fmtRsOff:
		return []decode.Operand{reg(f.rs),
			decode.Rel{Target: branchTarget(addr, f.imm)}}
	case fmtRtRsImm:
		return []decode.Operand{reg(f.rt), reg(f.rs),
			decode.Imm{Value: int64(f.imm), Signed: true, Width: 16}}
	case fmtRsRtImmU:
		return []decode.Operand{reg(f.rt), reg(f.rs),
			decode.Imm{Value: int64(uint16(f.imm)), Signed: false, Width: 16}}
	case fmtRtImm:
		return []decode.Operand{reg(f.rt),
			decode.Imm{Value: int64(uint16(f.imm)), Signed: false, Width: 16}}
	case fmtRtMem:
		return []decode.Operand{reg(f.rt),
			decode.Mem{Base: regName[f.rs&0x1f], Disp: int64(f.imm)}}
	case fmtJump:
		return []decode.Operand{decode.Rel{Target: jumpTarget(addr, f.index)}}
	default:
		return nil
	}
}

// classify refines the table's flow kind with the field values the
// table cannot see: jr through $ra is the conventional return, and
// jalr always computes its target.
func (s spec) classify(f fields, addr uint64) (decode.Flow, uint64, bool) {
	switch s.name {
	case "jr":
		if f.rs == 31 {
			return decode.FlowReturn, 0, false
		}
		return decode.FlowIndirect, 0, false
	case "jalr":
		return decode.FlowIndirect, 0, false
	case "j":
		return decode.FlowJump, jumpTarget(addr, f.index), true
	case "jal":
		return decode.FlowCall, jumpTarget(addr, f.index), true
	}
	if s.flow == decode.FlowCondJump {
		return decode.FlowCondJump, branchTarget(addr, f.imm), true
	}
	return s.flow, 0, false
}
