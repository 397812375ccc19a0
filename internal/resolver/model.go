package resolver

// Offset is a section-relative code offset inside the binary's image.
// It is not directly comparable to a queried address until translated
// into the flat address space by an AddressTranslator.
type Offset struct {
	Section uint32
	Value   uint64
}

// InlineeID identifies an inlined function in the debug-info source's
// identifier and inlinee tables.
type InlineeID uint64

type SymbolKind int

const (
	SymbolOther SymbolKind = iota
	SymbolProcedure
	SymbolInlineSite
	SymbolScopeBegin
	SymbolScopeEnd
)

// ProcedureSymbol is the decoded payload of a procedure-start record.
type ProcedureSymbol struct {
	Offset Offset
	Length uint64
	Name   string
}

// InlineSiteSymbol is the decoded payload of an inline-expansion record.
// Ref distinguishes multiple expansions of the same inlinee within one
// module and is matched against the inlinee catalog's instances.
type InlineSiteSymbol struct {
	Inlinee InlineeID
	Ref     uint64
}

// SymbolRecord is one entry in a module's linear symbol stream. Nesting is
// encoded purely by stream order: OpensScope marks records whose body starts
// at the following record, SymbolScopeEnd records close the innermost open
// scope. A record whose payload failed to decode keeps its scope structure
// but carries a nil Proc/Inline, so the walk skips its semantic action
// without losing track of nesting.
type SymbolRecord struct {
	Kind       SymbolKind
	OpensScope bool

	Proc   *ProcedureSymbol
	Inline *InlineSiteSymbol
}

func (r *SymbolRecord) EndsScope() bool {
	return r.Kind == SymbolScopeEnd
}

// LineRecord maps a section-relative code range to a source position.
// A record with HasLength unset covers up to the next record's offset
// (or unboundedly if it is the last record of its table).
type LineRecord struct {
	Offset    Offset
	File      string
	Line      uint32
	Length    uint64
	HasLength bool
}

// LineInfo is a LineRecord whose offset has been translated into the flat
// address space.
type LineInfo struct {
	Address uint64
	Size    uint64
	HasSize bool
	File    string
	Line    uint32
}

// Frame is one resolved source location for a queried address.
type Frame struct {
	Function string
	File     string
	Line     uint32
}

// Match pairs a queried address with one frame resolved for it.
type Match struct {
	Target uint64
	Frame  Frame
}

// AddressTranslator converts section-relative offsets into flat addresses.
// Translation fails for offsets in discarded or never-instantiated code.
type AddressTranslator interface {
	Translate(off Offset) (uint64, bool)
}

// SymbolStream yields a module's symbol records once, in stream order.
// Next returns nil after the last record; a non-nil error is fatal to the
// module walk only when the stream itself is broken, individual undecodable
// records are surfaced as payload-less SymbolRecords instead.
type SymbolStream interface {
	Next() (*SymbolRecord, error)
}

// LineTable exposes the line records of one module's code regions.
type LineTable interface {
	// LinesAt returns the records for the procedure starting at off, in
	// offset order. Failure to materialize a referenced file name is fatal.
	LinesAt(off Offset) ([]LineRecord, error)
}

// InlineeCatalog maps inline-site identifiers to the inlinee's relative
// line table. Absence of an id is non-fatal and must skip the site only.
type InlineeCatalog interface {
	Lookup(id InlineeID) (InlineeEntry, bool)
}

// InlineeEntry produces the line records one inline expansion contributes,
// anchored at the enclosing procedure's base offset.
type InlineeEntry interface {
	Lines(parent Offset, site *InlineSiteSymbol) ([]LineRecord, error)
}

// IdentifierEntry is one record of the source-global identifier table.
type IdentifierEntry struct {
	ID       InlineeID
	Function bool
	Name     string
}

// IdentifierCatalog is the source-global identifier table used to recover
// inlinee display names. It is scanned lazily, only for sites that matched
// a queried address.
type IdentifierCatalog interface {
	Entries() ([]IdentifierEntry, error)
}

// Module is one compilation unit's debug information.
type Module interface {
	Name() string
	Symbols() (SymbolStream, error)
	Lines() LineTable
	Inlinees() InlineeCatalog
}

// Source is one opened debug-info container.
type Source interface {
	Modules() ([]Module, error)
	Translator() AddressTranslator
	Identifiers() IdentifierCatalog
}
