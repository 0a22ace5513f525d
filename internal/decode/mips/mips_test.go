package mips

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binsight/internal/decode"
)

func be(word uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, word)
	return b
}

func TestDecodeFlow(t *testing.T) {
	d := NewBE()
	const base = uint64(0x00400000)

	tests := []struct {
		name      string
		word      uint32
		mnemonic  string
		flow      decode.Flow
		target    uint64
		hasTarget bool
	}{
		{
			name:     "jr through ra is a return",
			word:     0x03e00008,
			mnemonic: "jr",
			flow:     decode.FlowReturn,
		},
		{
			name:     "jr through t9 is indirect",
			word:     0x03200008,
			mnemonic: "jr",
			flow:     decode.FlowIndirect,
		},
		{
			name:     "jalr is always indirect",
			word:     0x0320f809,
			mnemonic: "jalr",
			flow:     decode.FlowIndirect,
		},
		{
			name:      "j replaces the region bits",
			word:      0x08100000,
			mnemonic:  "j",
			flow:      decode.FlowJump,
			target:    0x00400000,
			hasTarget: true,
		},
		{
			name:      "jal",
			word:      0x0c100004,
			mnemonic:  "jal",
			flow:      decode.FlowCall,
			target:    0x00400010,
			hasTarget: true,
		},
		{
			name:      "beq counts words from the delay slot",
			word:      0x10400002,
			mnemonic:  "beq",
			flow:      decode.FlowCondJump,
			target:    base + 4 + 8,
			hasTarget: true,
		},
		{
			name:      "bltz via regimm",
			word:      0x0440fffe,
			mnemonic:  "bltz",
			flow:      decode.FlowCondJump,
			target:    base + 4 - 8,
			hasTarget: true,
		},
		{
			name:     "addiu",
			word:     0x27bdffe0,
			mnemonic: "addiu",
			flow:     decode.FlowNone,
		},
		{
			name:     "nop decodes as sll",
			word:     0x00000000,
			mnemonic: "sll",
			flow:     decode.FlowNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Decode(be(tt.word), base)
			require.NotNil(t, res.Inst, "want instruction for %08x", tt.word)

			inst := res.Inst
			assert.Equal(t, tt.mnemonic, inst.Mnemonic)
			assert.Equal(t, tt.flow, inst.Flow)
			assert.Equal(t, tt.hasTarget, inst.HasTarget)
			if tt.hasTarget {
				assert.Equal(t, tt.target, inst.Target)
			}
			assert.Equal(t, 4, inst.Len)
		})
	}
}

func TestDecodeOperandText(t *testing.T) {
	d := NewBE()

	tests := []struct {
		name string
		word uint32
		want string
	}{
		{name: "three registers", word: 0x00851021, want: "addu $v0, $a0, $a1"},
		{name: "shift amount", word: 0x00042080, want: "sll $a0, $a0, 0x2"},
		{name: "signed immediate", word: 0x27bdffe0, want: "addiu $sp, $sp, -0x20"},
		{name: "zero extended immediate", word: 0x3442ffff, want: "ori $v0, $v0, 0xffff"},
		{name: "lui", word: 0x3c040040, want: "lui $a0, 0x40"},
		{name: "load with base and offset", word: 0x8fbf001c, want: "lw $ra, [$sp+0x1c]"},
		{name: "store", word: 0xafbf001c, want: "sw $ra, [$sp+0x1c]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Decode(be(tt.word), 0x00400000)
			require.NotNil(t, res.Inst, "want instruction for %08x", tt.word)
			assert.Equal(t, tt.want, res.Inst.Text())
		})
	}
}

func TestDecodeLittleEndian(t *testing.T) {
	d := New(binary.LittleEndian)

	res := d.Decode([]byte{0x08, 0x00, 0xe0, 0x03}, 0x1000)
	require.NotNil(t, res.Inst)
	assert.Equal(t, "jr", res.Inst.Mnemonic)
	assert.Equal(t, decode.FlowReturn, res.Inst.Flow)
}

func TestDecodeInvalid(t *testing.T) {
	d := NewBE()

	// Unassigned primary opcode consumes a full word.
	res := d.Decode(be(0xfc000000), 0x1000)
	require.NotNil(t, res.Bad)
	assert.Equal(t, 4, res.Bad.Length)

	// A short tail is invalid for its own length.
	res = d.Decode([]byte{0x03, 0xe0}, 0x1000)
	require.NotNil(t, res.Bad)
	assert.Equal(t, 2, res.Bad.Length)
}

func TestDecoderContract(t *testing.T) {
	d := NewBE()
	assert.Equal(t, decode.ArchMIPS, d.Arch())
	assert.Equal(t, 4, d.MaxLen())
}
