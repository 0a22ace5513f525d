package decode

import (
	"testing"
)

type mapNamer map[uint64]string

func (m mapNamer) NameAt(addr uint64) (string, bool) {
	name, ok := m[addr]
	return name, ok
}

func TestTokenizeRendersCanonicalText(t *testing.T) {
	tests := []struct {
		name string
		inst *Instruction
		want string
	}{
		{
			name: "no operands",
			inst: &Instruction{Mnemonic: "ret"},
			want: "ret",
		},
		{
			name: "register pair",
			inst: &Instruction{
				Mnemonic: "mov",
				Operands: []Operand{Reg{Name: "rax"}, Reg{Name: "rbx"}},
			},
			want: "mov rax, rbx",
		},
		{
			name: "immediate",
			inst: &Instruction{
				Mnemonic: "addi",
				Operands: []Operand{Reg{Name: "a0"}, Reg{Name: "a0"}, Imm{Value: 16, Signed: true, Width: 12}},
			},
			want: "addi a0, a0, 0x10",
		},
		{
			name: "negative immediate keeps sign",
			inst: &Instruction{
				Mnemonic: "addi",
				Operands: []Operand{Reg{Name: "sp"}, Reg{Name: "sp"}, Imm{Value: -32, Signed: true, Width: 12}},
			},
			want: "addi sp, sp, -0x20",
		},
		{
			name: "memory base plus displacement",
			inst: &Instruction{
				Mnemonic: "mov",
				Operands: []Operand{Reg{Name: "eax"}, Mem{Base: "rbp", Disp: -8}},
			},
			want: "mov eax, [rbp-0x8]",
		},
		{
			name: "memory with scaled index",
			inst: &Instruction{
				Mnemonic: "lea",
				Operands: []Operand{Reg{Name: "rax"}, Mem{Base: "rdi", Index: "rcx", Scale: 4}},
			},
			want: "lea rax, [rdi+rcx*4]",
		},
		{
			name: "absolute memory reference",
			inst: &Instruction{
				Mnemonic: "mov",
				Operands: []Operand{Reg{Name: "rax"}, Mem{Disp: 0x601040}},
			},
			want: "mov rax, [0x601040]",
		},
		{
			name: "relative target without namer",
			inst: &Instruction{
				Mnemonic: "call",
				Operands: []Operand{Rel{Target: 0x401000}},
			},
			want: "call 0x401000",
		},
		{
			name: "expression operand",
			inst: &Instruction{
				Mnemonic: "add",
				Operands: []Operand{Reg{Name: "r0"}, Reg{Name: "r1"}, Expr{Text: "r2, lsl #2"}},
			},
			want: "add r0, r1, r2, lsl #2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokensText(Tokenize(tt.inst, nil))
			if got != tt.want {
				t.Errorf("Tokenize() = %q, want %q", got, tt.want)
			}
			if got != tt.inst.Text() {
				t.Errorf("Text() = %q, want %q", tt.inst.Text(), got)
			}
		})
	}
}

func TestTokenizeResolvesSymbols(t *testing.T) {
	names := mapNamer{0x401000: "main"}
	inst := &Instruction{
		Mnemonic: "call",
		Operands: []Operand{Rel{Target: 0x401000}},
	}

	got := TokensText(Tokenize(inst, names))
	want := "call 0x401000 <main>"
	if got != want {
		t.Errorf("Tokenize() = %q, want %q", got, want)
	}

	// A miss falls back to the bare address.
	inst.Operands = []Operand{Rel{Target: 0x402000}}
	got = TokensText(Tokenize(inst, names))
	if got != "call 0x402000" {
		t.Errorf("Tokenize() miss = %q, want %q", got, "call 0x402000")
	}
}

func TestTokenKindsCoverOperands(t *testing.T) {
	names := mapNamer{0x10: "target"}
	inst := &Instruction{
		Mnemonic: "op",
		Operands: []Operand{
			Reg{Name: "r1"},
			Imm{Value: 1, Signed: true, Width: 8},
			Rel{Target: 0x10},
		},
	}

	kinds := make(map[TokenKind]bool)
	for _, tok := range Tokenize(inst, names) {
		kinds[tok.Kind] = true
	}
	for _, k := range []TokenKind{KindOpcode, KindRegister, KindImmediate, KindAddress, KindSymbol, KindDelimiter} {
		if !kinds[k] {
			t.Errorf("missing token kind %v", k)
		}
	}
}

func TestInvalidTokens(t *testing.T) {
	toks := InvalidTokens(&Invalid{Addr: 0x100, Length: 2})
	if TokensText(toks) != "??" {
		t.Errorf("InvalidTokens() = %q, want %q", TokensText(toks), "??")
	}
	if toks[0].Kind != KindInvalid {
		t.Errorf("InvalidTokens() kind = %v, want %v", toks[0].Kind, KindInvalid)
	}
}

func TestHexBytes(t *testing.T) {
	tests := []struct {
		name  string
		b     []byte
		width int
		want  string
	}{
		{name: "empty", b: nil, width: 16, want: ""},
		{name: "short fits", b: []byte{0x90}, width: 16, want: "90"},
		{name: "exact fit", b: []byte{0x48, 0x89}, width: 16, want: "48 89"},
		{name: "no truncation when width zero", b: []byte{1, 2, 3, 4, 5, 6}, width: 0, want: "01 02 03 04 05 06"},
		{name: "truncated with marker", b: []byte{1, 2, 3, 4, 5, 6, 7, 8}, width: 12, want: "01 02 03.."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HexBytes(tt.b, tt.width); got != tt.want {
				t.Errorf("HexBytes(%v, %d) = %q, want %q", tt.b, tt.width, got, tt.want)
			}
		})
	}
}

func TestInvalidAtClampsLength(t *testing.T) {
	res := InvalidAt(0x100, 0)
	if res.Bad == nil || res.Bad.Length != 1 {
		t.Fatalf("InvalidAt(0x100, 0) = %+v, want one-byte invalid", res)
	}
	if res.Len() != 1 || res.Addr() != 0x100 {
		t.Errorf("Len/Addr = %d/%#x, want 1/0x100", res.Len(), res.Addr())
	}
}
