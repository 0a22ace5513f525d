package riscv

import (
	"testing"

	"binsight/internal/decode"
)

func TestDecodeFlow(t *testing.T) {
	d := New()
	const base = uint64(0x80000000)

	tests := []struct {
		name      string
		src       []byte // little-endian words
		mnemonic  string
		flow      decode.Flow
		target    uint64
		hasTarget bool
	}{
		{
			name:     "ret is jalr zero through ra",
			src:      []byte{0x67, 0x80, 0x00, 0x00},
			flow:     decode.FlowReturn,
			mnemonic: "jalr",
		},
		{
			name:      "jal with zero link is a plain jump",
			src:       []byte{0x6f, 0x00, 0x80, 0x00},
			mnemonic:  "jal",
			flow:      decode.FlowJump,
			target:    base + 8,
			hasTarget: true,
		},
		{
			name:      "jal with ra link is a call",
			src:       []byte{0xef, 0x00, 0x00, 0x01},
			mnemonic:  "jal",
			flow:      decode.FlowCall,
			target:    base + 16,
			hasTarget: true,
		},
		{
			name:      "beq",
			src:       []byte{0x63, 0x04, 0x00, 0x00},
			mnemonic:  "beq",
			flow:      decode.FlowCondJump,
			target:    base + 8,
			hasTarget: true,
		},
		{
			name:     "addi",
			src:      []byte{0x13, 0x05, 0x15, 0x00},
			mnemonic: "addi",
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
			if inst.Len != 4 {
				t.Errorf("len = %d, want 4", inst.Len)
			}
		})
	}
}

func TestDecodeCompressedKeepsAlignment(t *testing.T) {
	d := New()
	// c.nop: low two bits are not 0b11, so this is a 16-bit encoding.
	res := d.Decode([]byte{0x01, 0x00, 0x00, 0x00}, 0x1000)
	if res.Bad == nil {
		t.Fatalf("Decode(compressed) = %v, want invalid", res.Inst)
	}
	if res.Bad.Length != 2 {
		t.Errorf("invalid length = %d, want 2", res.Bad.Length)
	}
}

func TestDecodeShortAndGarbage(t *testing.T) {
	d := New()

	if res := d.Decode([]byte{0x63}, 0x1000); res.Bad == nil || res.Bad.Length != 1 {
		t.Errorf("Decode(1 byte) = %+v, want 1-byte invalid", res)
	}
	if res := d.Decode([]byte{0xff, 0xff, 0xff, 0xff}, 0x1000); res.Bad == nil || res.Bad.Length != 4 {
		t.Errorf("Decode(ffffffff) = %+v, want 4-byte invalid", res)
	}
}

func TestDecoderContract(t *testing.T) {
	d := New()
	if d.Arch() != decode.ArchRISCV {
		t.Errorf("Arch() = %v, want %v", d.Arch(), decode.ArchRISCV)
	}
	if d.MaxLen() != 4 {
		t.Errorf("MaxLen() = %d, want 4", d.MaxLen())
	}
}
