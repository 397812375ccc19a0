package resolver

import (
	"fmt"
	"log/slog"
)

// unknownInlineName is emitted when an inline site resolves to line
// information but its inlinee has no usable identifier entry.
const unknownInlineName = "unknown_inline_function"

// Resolver resolves target addresses against one opened debug-info source.
// All target addresses are resolved in a single linear pass over each
// module's symbol stream rather than one pass per address.
type Resolver struct {
	src Source

	identifiers []IdentifierEntry
	idLoaded    bool
	names       map[InlineeID]string
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src, names: make(map[InlineeID]string)}
}

// Resolve returns every frame covering any of the target addresses, in
// discovery order. Only fatal conditions (an unreadable module list, a
// string that fails to decode, a missing identifier table) surface as an
// error; a malformed module, record or inline site never prevents
// resolution of the remaining targets.
func (r *Resolver) Resolve(targets []uint64) ([]Match, error) {
	modules, err := r.src.Modules()
	if err != nil {
		return nil, fmt.Errorf("reading module list: %w", err)
	}

	var matches []Match
	for _, mod := range modules {
		ms, err := r.resolveModule(mod, targets)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", mod.Name(), err)
		}
		matches = append(matches, ms...)
	}
	return matches, nil
}

func (r *Resolver) resolveModule(mod Module, targets []uint64) ([]Match, error) {
	stream, err := mod.Symbols()
	if err != nil {
		// A module without retrievable module info is skipped wholesale.
		slog.Debug("Skipping module without symbol stream", "module", mod.Name(), "error", err)
		return nil, nil
	}

	var walker ScopeWalker
	var matches []Match
	for {
		rec, err := stream.Next()
		if err != nil {
			return nil, fmt.Errorf("symbol stream: %w", err)
		}
		if rec == nil {
			break
		}
		walker.Step(rec)

		switch {
		case rec.Kind == SymbolProcedure && rec.Proc != nil:
			walker.EnterProcedure(rec.Proc.Offset)
			ms, err := r.resolveProcedure(mod, rec.Proc, targets)
			if err != nil {
				return nil, err
			}
			matches = append(matches, ms...)

		case rec.Kind == SymbolInlineSite && rec.Inline != nil:
			parent, ok := walker.CurrentProcedure()
			if !ok {
				// Inline site outside any procedure scope: the stream is
				// not well formed here, ignore the site.
				continue
			}
			ms, err := r.resolveInlineSite(mod, parent, rec.Inline, targets)
			if err != nil {
				return nil, err
			}
			matches = append(matches, ms...)
		}
	}
	return matches, nil
}

// resolveProcedure emits the directly-covering frame of the procedure's own
// line table for every target inside the procedure's flat address range.
func (r *Resolver) resolveProcedure(mod Module, proc *ProcedureSymbol, targets []uint64) ([]Match, error) {
	start, ok := r.src.Translator().Translate(proc.Offset)
	if !ok {
		return nil, nil
	}

	var matches []Match
	var lines []LineInfo
	for _, target := range targets {
		if target < start || target >= start+proc.Length {
			continue
		}
		if lines == nil {
			records, err := mod.Lines().LinesAt(proc.Offset)
			if err != nil {
				return nil, fmt.Errorf("lines of %s: %w", proc.Name, err)
			}
			lines = collectLines(records, r.src.Translator())
		}
		li, ok := coveringLine(lines, target)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Target: target,
			Frame:  Frame{Function: proc.Name, File: li.File, Line: li.Line},
		})
	}
	return matches, nil
}

// resolveInlineSite emits one frame per target covered by a range the
// inline expansion contributed. An inlinee id absent from the catalog
// skips the site; missing a single inline function is more acceptable
// than halting iteration completely.
func (r *Resolver) resolveInlineSite(mod Module, parent Offset, site *InlineSiteSymbol, targets []uint64) ([]Match, error) {
	entry, ok := mod.Inlinees().Lookup(site.Inlinee)
	if !ok {
		return nil, nil
	}
	records, err := entry.Lines(parent, site)
	if err != nil {
		return nil, fmt.Errorf("inlinee %#x lines: %w", uint64(site.Inlinee), err)
	}
	lines := collectLines(records, r.src.Translator())

	var matches []Match
	for _, li := range lines {
		if !li.HasSize {
			continue
		}
		for _, target := range targets {
			if target < li.Address || target >= li.Address+li.Size {
				continue
			}
			name, err := r.inlineeName(site.Inlinee)
			if err != nil {
				return nil, err
			}
			matches = append(matches, Match{
				Target: target,
				Frame:  Frame{Function: name, File: li.File, Line: li.Line},
			})
		}
	}
	return matches, nil
}

// inlineeName recovers the display name of an inlinee from the global
// identifier table. Resolution is lazy: the table is only loaded and
// scanned once a site has actually matched a target address.
func (r *Resolver) inlineeName(id InlineeID) (string, error) {
	if name, ok := r.names[id]; ok {
		return name, nil
	}
	if !r.idLoaded {
		entries, err := r.src.Identifiers().Entries()
		if err != nil {
			return "", fmt.Errorf("identifier table: %w", err)
		}
		r.identifiers = entries
		r.idLoaded = true
	}

	name := unknownInlineName
	for _, entry := range r.identifiers {
		if entry.ID != id {
			continue
		}
		if entry.Function && entry.Name != "" {
			name = entry.Name
		}
		break
	}
	r.names[id] = name
	return name, nil
}
