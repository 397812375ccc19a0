package debuginfo

import (
	"debug/elf"

	"github.com/VladMinzatu/addr2frame/internal/resolver"
)

type addrRange struct {
	low, high uint64
}

// segmentTranslator validates that an offset belongs to instantiated code:
// only offsets inside an executable loadable segment translate. DWARF
// offsets are already virtual addresses, so translation itself is the
// identity; what can fail is the membership check (discarded or
// never-loaded code).
type segmentTranslator struct {
	exec []addrRange
}

func newSegmentTranslator(ef *elf.File) *segmentTranslator {
	t := &segmentTranslator{}
	for _, prog := range ef.Progs {
		if prog.Type == elf.PT_LOAD && prog.Flags&elf.PF_X != 0 {
			t.exec = append(t.exec, addrRange{low: prog.Vaddr, high: prog.Vaddr + prog.Memsz})
		}
	}
	if len(t.exec) > 0 {
		return t
	}
	// Relocatable objects carry no program headers; fall back to the
	// executable sections.
	for _, sec := range ef.Sections {
		if sec.Flags&elf.SHF_EXECINSTR != 0 {
			t.exec = append(t.exec, addrRange{low: sec.Addr, high: sec.Addr + sec.Size})
		}
	}
	return t
}

func (t *segmentTranslator) Translate(off resolver.Offset) (uint64, bool) {
	for _, r := range t.exec {
		if off.Value >= r.low && off.Value < r.high {
			return off.Value, true
		}
	}
	return 0, false
}
