// Package debuginfo adapts an ELF binary's DWARF data to the resolver's
// debug-info source interfaces: modules are compile units, symbol streams
// are flattened DIE traversals, and the inlinee/identifier catalogs are
// built from inlined-subroutine instances and abstract function entries.
package debuginfo

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"log/slog"
	"sync"

	"github.com/VladMinzatu/addr2frame/internal/resolver"
)

type File struct {
	path       string
	ef         *elf.File
	dw         *dwarf.Data
	translator *segmentTranslator

	idOnce    sync.Once
	idEntries []resolver.IdentifierEntry
	idErr     error
}

// Open opens the binary at path and loads its debug information. A binary
// without DWARF data cannot serve a resolution run at all, so that is an
// error here rather than a degraded mode.
func Open(path string) (*File, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open binary %v: %w", path, err)
	}
	dw, err := ef.DWARF()
	if err != nil {
		ef.Close()
		return nil, fmt.Errorf("failed to parse DWARF of %v: %w", path, err)
	}
	return &File{
		path:       path,
		ef:         ef,
		dw:         dw,
		translator: newSegmentTranslator(ef),
	}, nil
}

func (f *File) Close() error {
	return f.ef.Close()
}

// Modules returns the compile units of the binary, in stream order.
func (f *File) Modules() ([]resolver.Module, error) {
	var modules []resolver.Module
	r := f.dw.Reader()
	for {
		ent, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("reading compile units: %w", err)
		}
		if ent == nil {
			break
		}
		if ent.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		name, _ := ent.Val(dwarf.AttrName).(string)
		modules = append(modules, &module{f: f, cuOffset: ent.Offset, name: name})
		r.SkipChildren()
	}
	slog.Debug("Loaded module list", "path", f.path, "modules", len(modules))
	return modules, nil
}

func (f *File) Translator() resolver.AddressTranslator {
	return f.translator
}

func (f *File) Identifiers() resolver.IdentifierCatalog {
	return f
}

// Entries builds the source-global identifier table on first use: every
// subprogram entry in the DWARF info, keyed by its entry offset. Inline
// sites reference their abstract origin's offset, which lands here.
func (f *File) Entries() ([]resolver.IdentifierEntry, error) {
	f.idOnce.Do(func() {
		r := f.dw.Reader()
		for {
			ent, err := r.Next()
			if err != nil {
				f.idErr = fmt.Errorf("scanning identifier entries: %w", err)
				return
			}
			if ent == nil {
				return
			}
			if ent.Tag != dwarf.TagSubprogram {
				continue
			}
			f.idEntries = append(f.idEntries, resolver.IdentifierEntry{
				ID:       resolver.InlineeID(ent.Offset),
				Function: true,
				Name:     subprogramName(f.dw, ent),
			})
		}
	})
	return f.idEntries, f.idErr
}
