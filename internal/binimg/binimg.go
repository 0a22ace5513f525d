// Package binimg opens ELF binaries and exposes the parsed image the
// analysis core consumes: loadable sections, symbols, the entry point
// and raw byte access by virtual address.
package binimg

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"syscall"

	"binsight/internal/decode"
)

// SectionKind is a coarse classification of what a section holds.
type SectionKind int

const (
	KindData SectionKind = iota
	KindCode
	KindReadOnly
	KindBSS
)

func (k SectionKind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindReadOnly:
		return "rodata"
	case KindBSS:
		return "bss"
	default:
		return "data"
	}
}

// Section is one loadable region of the image. Bytes is a read-only
// view into the mapped file and must not be mutated.
type Section struct {
	Name  string
	Addr  uint64
	Size  uint64
	Kind  SectionKind
	Exec  bool
	Write bool
	Bytes []byte
}

// End is the first address past the section.
func (s Section) End() uint64 { return s.Addr + s.Size }

// Contains reports whether va lies inside the section.
func (s Section) Contains(va uint64) bool { return va >= s.Addr && va < s.End() }

// SymbolKind distinguishes function symbols, which seed analysis, from
// everything else.
type SymbolKind int

const (
	SymOther SymbolKind = iota
	SymFunc
	SymObject
)

// Symbol is one named address from the symbol tables.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
	Kind SymbolKind
}

// Image is an immutable view of one loaded binary. It is replaced
// wholesale on reload, never mutated.
type Image struct {
	Path     string
	Arch     decode.Arch
	Order    binary.ByteOrder
	Entry    uint64
	Sections []Section
	Symbols  []Symbol // sorted by address

	all []byte
	f   *os.File
}

// Open maps the file and extracts sections, symbols and the entry
// point. The returned image owns the mapping; Close releases it.
func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	arch, err := machineArch(f)
	if err != nil {
		syscall.Munmap(all)
		of.Close()
		return nil, err
	}

	img := &Image{
		Path:  path,
		Arch:  arch,
		Order: byteOrder(f),
		Entry: f.Entry,
		all:   all,
		f:     of,
	}

	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		sec := Section{
			Name:  s.Name,
			Addr:  s.Addr,
			Size:  s.Size,
			Exec:  s.Flags&elf.SHF_EXECINSTR != 0,
			Write: s.Flags&elf.SHF_WRITE != 0,
		}
		switch {
		case s.Type == elf.SHT_NOBITS:
			sec.Kind = KindBSS
		case sec.Exec:
			sec.Kind = KindCode
		case !sec.Write:
			sec.Kind = KindReadOnly
		default:
			sec.Kind = KindData
		}
		if s.Type != elf.SHT_NOBITS {
			end := s.Offset + s.FileSize
			if end <= uint64(len(all)) {
				sec.Bytes = all[s.Offset:end]
			}
		}
		img.Sections = append(img.Sections, sec)
	}
	sort.Slice(img.Sections, func(i, j int) bool {
		return img.Sections[i].Addr < img.Sections[j].Addr
	})

	img.loadSymbols(f)
	return img, nil
}

// Close unmaps the file. The image's section byte views become invalid.
func (img *Image) Close() error {
	var err1, err2 error
	if img.all != nil {
		err1 = syscall.Munmap(img.all)
		img.all = nil
	}
	if img.f != nil {
		err2 = img.f.Close()
		img.f = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// SectionAt returns the section containing va.
func (img *Image) SectionAt(va uint64) (*Section, bool) {
	i := sort.Search(len(img.Sections), func(i int) bool {
		return img.Sections[i].End() > va
	})
	if i < len(img.Sections) && img.Sections[i].Contains(va) {
		return &img.Sections[i], true
	}
	return nil, false
}

// SliceVA returns the bytes for [va, va+size), restricted to a single
// section with file-backed contents.
func (img *Image) SliceVA(va, size uint64) ([]byte, bool) {
	sec, ok := img.SectionAt(va)
	if !ok || sec.Bytes == nil {
		return nil, false
	}
	off := va - sec.Addr
	if off+size > uint64(len(sec.Bytes)) {
		return nil, false
	}
	return sec.Bytes[off : off+size], true
}

func (img *Image) loadSymbols(f *elf.File) {
	seen := make(map[uint64]bool)
	add := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Value == 0 || s.Name == "" || seen[s.Value] {
				continue
			}
			kind := SymOther
			switch elf.ST_TYPE(s.Info) {
			case elf.STT_FUNC:
				kind = SymFunc
			case elf.STT_OBJECT:
				kind = SymObject
			}
			img.Symbols = append(img.Symbols, Symbol{
				Name: s.Name,
				Addr: s.Value,
				Size: s.Size,
				Kind: kind,
			})
			seen[s.Value] = true
		}
	}

	// Static symbols first so they win the per-address dedup.
	if syms, err := f.Symbols(); err == nil {
		add(syms)
	}
	if dyns, err := f.DynamicSymbols(); err == nil {
		add(dyns)
	}

	sort.Slice(img.Symbols, func(i, j int) bool {
		return img.Symbols[i].Addr < img.Symbols[j].Addr
	})
}

func machineArch(f *elf.File) (decode.Arch, error) {
	switch f.Machine {
	case elf.EM_X86_64:
		return decode.ArchX86_64, nil
	case elf.EM_ARM:
		return decode.ArchARM, nil
	case elf.EM_AARCH64:
		return decode.ArchARM64, nil
	case elf.EM_RISCV:
		return decode.ArchRISCV, nil
	case elf.EM_MIPS:
		return decode.ArchMIPS, nil
	default:
		return decode.ArchUnknown, fmt.Errorf("unsupported machine type %v", f.Machine)
	}
}

func byteOrder(f *elf.File) binary.ByteOrder {
	if f.Data == elf.ELFDATA2MSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
