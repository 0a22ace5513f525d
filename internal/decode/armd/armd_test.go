package armd

import (
	"testing"

	"binsight/internal/decode"
)

func TestA64DecodeFlow(t *testing.T) {
	d := NewA64()
	const base = uint64(0x10000)

	tests := []struct {
		name      string
		src       []byte // little-endian words
		mnemonic  string
		flow      decode.Flow
		target    uint64
		hasTarget bool
	}{
		{
			name:     "ret",
			src:      []byte{0xc0, 0x03, 0x5f, 0xd6},
			mnemonic: "ret",
			flow:     decode.FlowReturn,
		},
		{
			name:      "b forward",
			src:       []byte{0x02, 0x00, 0x00, 0x14},
			mnemonic:  "b",
			flow:      decode.FlowJump,
			target:    base + 8,
			hasTarget: true,
		},
		{
			name:      "bl",
			src:       []byte{0x01, 0x00, 0x00, 0x94},
			mnemonic:  "bl",
			flow:      decode.FlowCall,
			target:    base + 4,
			hasTarget: true,
		},
		{
			name:      "b.eq folds the condition",
			src:       []byte{0x40, 0x00, 0x00, 0x54},
			mnemonic:  "b.eq",
			flow:      decode.FlowCondJump,
			target:    base + 8,
			hasTarget: true,
		},
		{
			name:      "cbz",
			src:       []byte{0x40, 0x00, 0x00, 0xb4},
			mnemonic:  "cbz",
			flow:      decode.FlowCondJump,
			target:    base + 8,
			hasTarget: true,
		},
		{
			name:     "br is indirect",
			src:      []byte{0x00, 0x00, 0x1f, 0xd6},
			mnemonic: "br",
			flow:     decode.FlowIndirect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Decode(tt.src, base)
			if res.Inst == nil {
				t.Fatalf("Decode(% x) = invalid, want instruction", tt.src)
			}
			inst := res.Inst
			if inst.Mnemonic != tt.mnemonic {
				t.Errorf("mnemonic = %q, want %q", inst.Mnemonic, tt.mnemonic)
			}
			if inst.Flow != tt.flow {
				t.Errorf("flow = %v, want %v", inst.Flow, tt.flow)
			}
			if inst.HasTarget != tt.hasTarget || (tt.hasTarget && inst.Target != tt.target) {
				t.Errorf("target = %#x (has=%v), want %#x (has=%v)",
					inst.Target, inst.HasTarget, tt.target, tt.hasTarget)
			}
			if inst.Len != 4 {
				t.Errorf("len = %d, want 4", inst.Len)
			}
		})
	}
}

func TestA64DecodeInvalid(t *testing.T) {
	d := NewA64()

	// Unallocated encoding consumes a whole word.
	res := d.Decode([]byte{0xff, 0xff, 0xff, 0xff}, 0x10000)
	if res.Bad == nil || res.Bad.Length != 4 {
		t.Fatalf("Decode(ffffffff) = %+v, want 4-byte invalid", res)
	}

	// A short tail at the end of a section is invalid for its length.
	res = d.Decode([]byte{0xc0, 0x03}, 0x10000)
	if res.Bad == nil || res.Bad.Length != 2 {
		t.Fatalf("Decode(short) = %+v, want 2-byte invalid", res)
	}
}

func TestA32DecodeFlow(t *testing.T) {
	d := NewA32()
	const base = uint64(0x8000)

	tests := []struct {
		name      string
		src       []byte // little-endian words
		mnemonic  string
		flow      decode.Flow
		target    uint64
		hasTarget bool
	}{
		{
			name:     "bx lr is the return idiom",
			src:      []byte{0x1e, 0xff, 0x2f, 0xe1},
			mnemonic: "bx",
			flow:     decode.FlowReturn,
		},
		{
			name:      "b is relative to the fetch address",
			src:       []byte{0x00, 0x00, 0x00, 0xea},
			mnemonic:  "b",
			flow:      decode.FlowJump,
			target:    base + 8,
			hasTarget: true,
		},
		{
			name:      "bl",
			src:       []byte{0x00, 0x00, 0x00, 0xeb},
			mnemonic:  "bl",
			flow:      decode.FlowCall,
			target:    base + 8,
			hasTarget: true,
		},
		{
			name:      "beq keeps its condition suffix",
			src:       []byte{0x00, 0x00, 0x00, 0x0a},
			mnemonic:  "b.eq",
			flow:      decode.FlowCondJump,
			target:    base + 8,
			hasTarget: true,
		},
		{
			name:     "mov reg reg",
			src:      []byte{0x01, 0x00, 0xa0, 0xe1},
			mnemonic: "mov",
			flow:     decode.FlowNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Decode(tt.src, base)
			if res.Inst == nil {
				t.Fatalf("Decode(% x) = invalid, want instruction", tt.src)
			}
			inst := res.Inst
			if inst.Mnemonic != tt.mnemonic {
				t.Errorf("mnemonic = %q, want %q", inst.Mnemonic, tt.mnemonic)
			}
			if inst.Flow != tt.flow {
				t.Errorf("flow = %v, want %v", inst.Flow, tt.flow)
			}
			if inst.HasTarget != tt.hasTarget || (tt.hasTarget && inst.Target != tt.target) {
				t.Errorf("target = %#x (has=%v), want %#x (has=%v)",
					inst.Target, inst.HasTarget, tt.target, tt.hasTarget)
			}
		})
	}
}

func TestDecoderContracts(t *testing.T) {
	if a := NewA64(); a.Arch() != decode.ArchARM64 || a.MaxLen() != 4 {
		t.Errorf("A64 contract = %v/%d, want arm64/4", a.Arch(), a.MaxLen())
	}
	if a := NewA32(); a.Arch() != decode.ArchARM || a.MaxLen() != 4 {
		t.Errorf("A32 contract = %v/%d, want arm/4", a.Arch(), a.MaxLen())
	}
}
