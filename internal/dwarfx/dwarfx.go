// Package dwarfx extracts the pieces of DWARF the correlation index
// consumes: line-table address ranges and function ranges. Byte-level
// DWARF parsing stays inside debug/dwarf; type units are passed
// through opaquely.
package dwarfx

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// LineEntry maps [Low, High) to one source position.
type LineEntry struct {
	Low, High uint64
	File      string
	Line      int
}

// FuncRange maps [Low, High) to a function name.
type FuncRange struct {
	Low, High uint64
	Name      string
}

// TypeRecord is an opaque type unit reference. The core never
// interprets these; they ride along for external consumers.
type TypeRecord struct {
	Offset dwarf.Offset
	Name   string
}

// Info is everything extracted from one binary's debug sections.
type Info struct {
	Lines []LineEntry
	Funcs []FuncRange
	Types []TypeRecord
}

// ErrNoDebugInfo reports a binary without DWARF sections. Callers
// treat it as "stripped", not as a failure.
var ErrNoDebugInfo = errors.New("no debug info")

// Load reads DWARF from the ELF file at path.
func Load(path string) (*Info, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	dw, err := f.DWARF()
	if err != nil {
		return nil, ErrNoDebugInfo
	}
	return extract(dw)
}

func extract(dw *dwarf.Data) (*Info, error) {
	info := &Info{}
	r := dw.Reader()
	for {
		ent, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("walk dwarf: %w", err)
		}
		if ent == nil {
			break
		}
		switch ent.Tag {
		case dwarf.TagCompileUnit:
			if err := readLines(dw, ent, info); err != nil {
				return nil, err
			}
		case dwarf.TagSubprogram:
			readFunc(dw, ent, info)
		case dwarf.TagStructType, dwarf.TagTypedef, dwarf.TagBaseType:
			name, _ := ent.Val(dwarf.AttrName).(string)
			info.Types = append(info.Types, TypeRecord{Offset: ent.Offset, Name: name})
			r.SkipChildren()
		}
	}
	return info, nil
}

func readLines(dw *dwarf.Data, cu *dwarf.Entry, info *Info) error {
	lr, err := dw.LineReader(cu)
	if err != nil || lr == nil {
		// Units without line programs are fine; assembly-only
		// units commonly omit them.
		return nil
	}

	var prev dwarf.LineEntry
	havePrev := false
	for {
		var le dwarf.LineEntry
		err := lr.Next(&le)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("line program: %w", err)
		}
		if havePrev && le.Address > prev.Address && !prev.EndSequence {
			info.Lines = append(info.Lines, LineEntry{
				Low:  prev.Address,
				High: le.Address,
				File: prev.File.Name,
				Line: prev.Line,
			})
		}
		prev, havePrev = le, true
	}
	return nil
}

func readFunc(dw *dwarf.Data, ent *dwarf.Entry, info *Info) {
	name, _ := ent.Val(dwarf.AttrName).(string)
	if name == "" {
		return
	}
	ranges, err := dw.Ranges(ent)
	if err != nil {
		return
	}
	for _, r := range ranges {
		if r[1] <= r[0] {
			continue
		}
		info.Funcs = append(info.Funcs, FuncRange{Low: r[0], High: r[1], Name: name})
	}
}
