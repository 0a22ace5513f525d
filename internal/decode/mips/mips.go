// Package mips decodes MIPS32 machine code. Unlike the other
// backends there is no decoder for raw MIPS words in golang.org/x/arch,
// so the instruction tables live here: a word is split into
// opcode/rs/rt/rd/shamt/funct fields and looked up in the format
// tables below.
package mips

import (
	"encoding/binary"

	"binsight/internal/decode"
)

// Decoder is the fixed-width MIPS32 backend. Byte order follows the
// ELF header of the loaded image.
type Decoder struct {
	order binary.ByteOrder
}

func New(order binary.ByteOrder) Decoder {
	return Decoder{order: order}
}

// NewBE returns the classic big-endian variant.
func NewBE() Decoder { return New(binary.BigEndian) }

func (Decoder) Arch() decode.Arch { return decode.ArchMIPS }
func (Decoder) MaxLen() int       { return 4 }

// Field extraction per the MIPS32 encoding: op 31..26, rs 25..21,
// rt 20..16, rd 15..11, shamt 10..6, funct 5..0.
func (d Decoder) Decode(src []byte, addr uint64) decode.Result {
	if len(src) < 4 {
		return decode.InvalidAt(addr, len(src))
	}
	word := d.order.Uint32(src[:4])

	f := fields{
		op:    word >> 26 & 0x3f,
		rs:    word >> 21 & 0x1f,
		rt:    word >> 16 & 0x1f,
		rd:    word >> 11 & 0x1f,
		shamt: word >> 6 & 0x1f,
		funct: word & 0x3f,
		imm:   int16(word & 0xffff),
		index: word & 0x03ffffff,
	}

	spec, ok := lookup(f)
	if !ok {
		return decode.InvalidAt(addr, 4)
	}

	out := &decode.Instruction{
		Addr:     addr,
		Len:      4,
		Mnemonic: spec.name,
		Raw:      append([]byte(nil), src[:4]...),
	}
	out.Operands = spec.format.operands(f, addr)
	out.Flow, out.Target, out.HasTarget = spec.classify(f, addr)
	return decode.Result{Inst: out}
}

type fields struct {
	op    uint32
	rs    uint32
	rt    uint32
	rd    uint32
	shamt uint32
	funct uint32
	imm   int16
	index uint32
}

// branchTarget computes a conditional branch destination: the signed
// 16-bit offset counts words from the delay-slot address.
func branchTarget(addr uint64, imm int16) uint64 {
	return addr + 4 + uint64(int64(imm)<<2)
}

// jumpTarget computes a J/JAL destination: the 26-bit index replaces
// the low bits within the delay slot's 256 MB region.
func jumpTarget(addr uint64, index uint32) uint64 {
	return (addr+4)&^uint64(0x0fffffff) | uint64(index)<<2
}

// regName maps register numbers to their conventional ABI names.
var regName = [32]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
}

func reg(n uint32) decode.Reg {
	return decode.Reg{Name: regName[n&0x1f]}
}
