package resolver

// collectLines translates a slice of line records into the flat address
// space. Records whose offset fails translation belong to discarded code
// and are dropped rather than aborting the table.
func collectLines(records []LineRecord, at AddressTranslator) []LineInfo {
	lines := make([]LineInfo, 0, len(records))
	for _, rec := range records {
		addr, ok := at.Translate(rec.Offset)
		if !ok {
			continue
		}
		lines = append(lines, LineInfo{
			Address: addr,
			Size:    rec.Length,
			HasSize: rec.HasLength,
			File:    rec.File,
			Line:    rec.Line,
		})
	}
	return lines
}

// coveringLine finds the record covering addr using one-ahead lookahead:
// a record covers addr if its address is <= addr and either its explicit
// size contains addr, or the next record starts beyond addr, or it is the
// last record of the table. Records are offset-ordered and treated as
// consecutive non-overlapping intervals, so the first satisfying record
// is the only one.
func coveringLine(lines []LineInfo, addr uint64) (LineInfo, bool) {
	for i, li := range lines {
		if li.Address > addr {
			continue
		}
		switch {
		case li.HasSize:
			if addr < li.Address+li.Size {
				return li, true
			}
		case i+1 < len(lines):
			if lines[i+1].Address > addr {
				return li, true
			}
		default:
			return li, true
		}
	}
	return LineInfo{}, false
}
