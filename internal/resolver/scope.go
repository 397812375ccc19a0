package resolver

type scopeFrame struct {
	depth  int
	offset Offset
}

// ScopeWalker tracks lexical nesting while a module's symbol stream is
// consumed in order. A scope-opening record's body starts at the following
// record, so the depth increment is deferred by one step. The stack of
// procedure frames always has the innermost currently-open procedure on top.
type ScopeWalker struct {
	depth   int
	incNext bool
	procs   []scopeFrame
}

// Step applies one record's scope effects. It must be called exactly once
// per record, before the record's payload is acted on.
func (w *ScopeWalker) Step(rec *SymbolRecord) {
	if w.incNext {
		w.depth++
	}
	w.incNext = rec.OpensScope

	if rec.EndsScope() {
		w.depth--
		if n := len(w.procs); n > 0 && w.procs[n-1].depth >= w.depth {
			w.procs = w.procs[:n-1]
		}
	}
}

// EnterProcedure pushes a procedure frame at the current depth. Called by
// the driver when a procedure record's payload decoded successfully.
func (w *ScopeWalker) EnterProcedure(off Offset) {
	w.procs = append(w.procs, scopeFrame{depth: w.depth, offset: off})
}

// CurrentProcedure returns the innermost open procedure's offset, if any.
func (w *ScopeWalker) CurrentProcedure() (Offset, bool) {
	if len(w.procs) == 0 {
		return Offset{}, false
	}
	return w.procs[len(w.procs)-1].offset, true
}

func (w *ScopeWalker) Depth() int {
	return w.depth
}
