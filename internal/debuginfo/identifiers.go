package debuginfo

import (
	"debug/dwarf"

	"github.com/ianlancetaylor/demangle"
)

// subprogramName picks a display name for a subprogram entry: the demangled
// linkage name when present, DW_AT_name otherwise, following one
// specification/abstract-origin hop for definitions that reference their
// declaration. Returns "" when the entry carries no name at all.
func subprogramName(dw *dwarf.Data, ent *dwarf.Entry) string {
	if name := entryName(ent); name != "" {
		return name
	}
	for _, attr := range []dwarf.Attr{dwarf.AttrSpecification, dwarf.AttrAbstractOrigin} {
		off, ok := ent.Val(attr).(dwarf.Offset)
		if !ok {
			continue
		}
		r := dw.Reader()
		r.Seek(off)
		ref, err := r.Next()
		if err != nil || ref == nil {
			continue
		}
		if name := entryName(ref); name != "" {
			return name
		}
	}
	return ""
}

func entryName(ent *dwarf.Entry) string {
	if name, ok := ent.Val(dwarf.AttrLinkageName).(string); ok {
		return demangleName(name)
	}
	if name, ok := ent.Val(dwarf.AttrName).(string); ok {
		return name
	}
	return ""
}

func demangleName(name string) string {
	if d, err := demangle.ToString(name); err == nil {
		return d
	}
	return name
}
