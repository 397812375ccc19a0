package debuginfo

import (
	"debug/dwarf"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/VladMinzatu/addr2frame/internal/resolver"
)

// module adapts one compile unit. The DIE tree is a flattened pre-order
// traversal (children follow their parent, a null entry closes each level),
// which maps directly onto the resolver's linear symbol stream: an entry
// with children opens a scope, a null entry is a ScopeEnd.
type module struct {
	f        *File
	cuOffset dwarf.Offset
	name     string

	once    sync.Once
	loadErr error

	recs     []*resolver.SymbolRecord
	entries  []dwarf.LineEntry
	inlinees map[resolver.InlineeID]*inlineeEntry
}

type relLine struct {
	rel    uint64
	length uint64
	file   string
	line   uint32
}

type inlineeEntry struct {
	instances map[uint64][]relLine
}

// Lines anchors the stored relative records at the enclosing procedure's
// base offset, producing records in the same space the translator expects.
func (e *inlineeEntry) Lines(parent resolver.Offset, site *resolver.InlineSiteSymbol) ([]resolver.LineRecord, error) {
	rel := e.instances[site.Ref]
	out := make([]resolver.LineRecord, 0, len(rel))
	for _, rl := range rel {
		out = append(out, resolver.LineRecord{
			Offset:    resolver.Offset{Section: parent.Section, Value: parent.Value + rl.rel},
			File:      rl.file,
			Line:      rl.line,
			Length:    rl.length,
			HasLength: true,
		})
	}
	return out, nil
}

func (m *module) Name() string { return m.name }

func (m *module) Symbols() (resolver.SymbolStream, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	return &symbolStream{recs: m.recs}, nil
}

func (m *module) Lines() resolver.LineTable { return m }

func (m *module) Inlinees() resolver.InlineeCatalog { return m }

func (m *module) Lookup(id resolver.InlineeID) (resolver.InlineeEntry, bool) {
	entry, ok := m.inlinees[id]
	return entry, ok
}

type symbolStream struct {
	recs []*resolver.SymbolRecord
	pos  int
}

func (s *symbolStream) Next() (*resolver.SymbolRecord, error) {
	if s.pos >= len(s.recs) {
		return nil, nil
	}
	rec := s.recs[s.pos]
	s.pos++
	return rec, nil
}

// LinesAt returns the line records of the procedure starting at off, from
// the row at the procedure's entry up to the end of its line sequence. The
// final record is bounded by the sequence end; all others cover up to the
// next record per the one-ahead rule.
func (m *module) LinesAt(off resolver.Offset) ([]resolver.LineRecord, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	start := -1
	for i, e := range m.entries {
		if !e.EndSequence && e.Address == off.Value {
			start = i
			break
		}
	}
	if start < 0 {
		// No exact row at the procedure entry; start at the first row past it.
		for i, e := range m.entries {
			if !e.EndSequence && e.Address >= off.Value {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return nil, nil
	}
	var out []resolver.LineRecord
	for i := start; i < len(m.entries); i++ {
		e := m.entries[i]
		if e.EndSequence {
			if n := len(out); n > 0 && e.Address > out[n-1].Offset.Value {
				out[n-1].Length = e.Address - out[n-1].Offset.Value
				out[n-1].HasLength = true
			}
			break
		}
		out = append(out, resolver.LineRecord{
			Offset: resolver.Offset{Value: e.Address},
			File:   lineFile(&e),
			Line:   uint32(e.Line),
		})
	}
	return out, nil
}

func (m *module) ensure() error {
	m.once.Do(m.load)
	return m.loadErr
}

func (m *module) load() {
	m.inlinees = make(map[resolver.InlineeID]*inlineeEntry)

	r := m.f.dw.Reader()
	r.Seek(m.cuOffset)
	cu, err := r.Next()
	if err != nil || cu == nil {
		m.loadErr = fmt.Errorf("reading compile unit %s: %v", m.name, err)
		return
	}
	if err := m.loadLineEntries(cu); err != nil {
		m.loadErr = err
		return
	}
	if !cu.Children {
		return
	}

	// Track open procedures during the build so inline instances can be
	// stored relative to their enclosing procedure's base.
	type openProc struct {
		level int
		low   uint64
	}
	var procs []openProc
	level := 1

	for {
		ent, err := r.Next()
		if err != nil {
			// A corrupt entry poisons the rest of the walk; keep what was
			// decoded so far rather than losing the whole module.
			slog.Warn("Aborting symbol walk on corrupt entry", "module", m.name, "error", err)
			return
		}
		if ent == nil {
			return
		}
		if ent.Tag == 0 {
			level--
			m.recs = append(m.recs, &resolver.SymbolRecord{Kind: resolver.SymbolScopeEnd})
			for len(procs) > 0 && procs[len(procs)-1].level > level {
				procs = procs[:len(procs)-1]
			}
			if level == 0 {
				return
			}
			continue
		}

		var parentLow uint64
		hasParent := len(procs) > 0
		if hasParent {
			parentLow = procs[len(procs)-1].low
		}
		rec := m.decodeEntry(ent, parentLow, hasParent)
		m.recs = append(m.recs, rec)
		if ent.Children {
			level++
			if rec.Kind == resolver.SymbolProcedure && rec.Proc != nil {
				procs = append(procs, openProc{level: level, low: rec.Proc.Offset.Value})
			}
		}
	}
}

func (m *module) loadLineEntries(cu *dwarf.Entry) error {
	lr, err := m.f.dw.LineReader(cu)
	if err != nil {
		return fmt.Errorf("line program of %s: %w", m.name, err)
	}
	if lr == nil {
		return nil
	}
	var e dwarf.LineEntry
	for {
		if err := lr.Next(&e); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("line program of %s: %w", m.name, err)
		}
		m.entries = append(m.entries, e)
	}
}

// decodeEntry classifies one DIE as a symbol record. Entries whose payload
// cannot be interpreted keep their kind and scope flag but no payload, so
// the resolver skips them without losing the nesting structure.
func (m *module) decodeEntry(ent *dwarf.Entry, parentLow uint64, hasParent bool) *resolver.SymbolRecord {
	switch ent.Tag {
	case dwarf.TagSubprogram:
		low, ok := ent.Val(dwarf.AttrLowpc).(uint64)
		if !ok {
			// Declaration or abstract instance: no code, scope only.
			return scopeRecord(ent)
		}
		rec := &resolver.SymbolRecord{Kind: resolver.SymbolProcedure, OpensScope: ent.Children}
		length, ok := subprogramLength(ent, low)
		if !ok {
			return rec
		}
		rec.Proc = &resolver.ProcedureSymbol{
			Offset: resolver.Offset{Value: low},
			Length: length,
			Name:   subprogramName(m.f.dw, ent),
		}
		return rec

	case dwarf.TagInlinedSubroutine:
		rec := &resolver.SymbolRecord{Kind: resolver.SymbolInlineSite, OpensScope: ent.Children}
		origin, ok := ent.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
		if !ok {
			return rec
		}
		id := resolver.InlineeID(origin)
		ref := uint64(ent.Offset)
		rec.Inline = &resolver.InlineSiteSymbol{Inlinee: id, Ref: ref}
		if hasParent {
			m.registerInstance(ent, id, ref, parentLow)
		}
		return rec

	default:
		return scopeRecord(ent)
	}
}

func scopeRecord(ent *dwarf.Entry) *resolver.SymbolRecord {
	if ent.Children {
		return &resolver.SymbolRecord{Kind: resolver.SymbolScopeBegin, OpensScope: true}
	}
	return &resolver.SymbolRecord{Kind: resolver.SymbolOther}
}

// registerInstance records the line ranges one inline expansion contributes,
// relative to the enclosing procedure's base offset.
func (m *module) registerInstance(ent *dwarf.Entry, id resolver.InlineeID, ref uint64, parentLow uint64) {
	ranges, err := m.f.dw.Ranges(ent)
	if err != nil || len(ranges) == 0 {
		return
	}
	var rel []relLine
	for _, rng := range ranges {
		rel = append(rel, m.lineSlice(rng[0], rng[1], parentLow)...)
	}
	if len(rel) == 0 {
		return
	}
	entry := m.inlinees[id]
	if entry == nil {
		entry = &inlineeEntry{instances: make(map[uint64][]relLine)}
		m.inlinees[id] = entry
	}
	entry.instances[ref] = append(entry.instances[ref], rel...)
}

// lineSlice cuts the module's line program down to [low, high), assigning
// each row an explicit length up to the next row or the range end.
func (m *module) lineSlice(low, high, base uint64) []relLine {
	var out []relLine
	for i, e := range m.entries {
		if e.EndSequence || e.Address < low || e.Address >= high {
			continue
		}
		end := high
		if i+1 < len(m.entries) {
			if next := m.entries[i+1].Address; next > e.Address && next < end {
				end = next
			}
		}
		out = append(out, relLine{
			rel:    e.Address - base,
			length: end - e.Address,
			file:   lineFile(&e),
			line:   uint32(e.Line),
		})
	}
	return out
}

func lineFile(e *dwarf.LineEntry) string {
	if e.File == nil {
		return "??"
	}
	return e.File.Name
}

func subprogramLength(ent *dwarf.Entry, low uint64) (uint64, bool) {
	switch v := ent.Val(dwarf.AttrHighpc).(type) {
	case uint64:
		if v > low {
			return v - low, true
		}
	case int64:
		if v > 0 {
			return uint64(v), true
		}
	}
	return 0, false
}
