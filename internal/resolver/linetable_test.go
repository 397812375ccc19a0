package resolver

import "testing"

// deadSection marks offsets that fail address translation in tests.
const deadSection = 0xdead

type identityTranslator struct{}

func (identityTranslator) Translate(off Offset) (uint64, bool) {
	if off.Section == deadSection {
		return 0, false
	}
	return off.Value, true
}

func TestCollectLines_DropsUntranslatableRecords(t *testing.T) {
	records := []LineRecord{
		{Offset: Offset{Value: 0x1000}, File: "a.c", Line: 10},
		{Offset: Offset{Section: deadSection, Value: 0x1010}, File: "a.c", Line: 11},
		{Offset: Offset{Value: 0x1020}, File: "a.c", Line: 12},
	}
	lines := collectLines(records, identityTranslator{})
	if len(lines) != 2 {
		t.Fatalf("expected 2 translated lines, got %d", len(lines))
	}
	if lines[0].Address != 0x1000 || lines[1].Address != 0x1020 {
		t.Fatalf("unexpected addresses: %#x %#x", lines[0].Address, lines[1].Address)
	}
}

func TestCoveringLine_ExplicitLength(t *testing.T) {
	lines := []LineInfo{
		{Address: 0x1000, Size: 0x10, HasSize: true, File: "a.c", Line: 10},
		{Address: 0x1010, Size: 0x10, HasSize: true, File: "a.c", Line: 11},
	}
	li, ok := coveringLine(lines, 0x100f)
	if !ok || li.Line != 10 {
		t.Fatalf("expected line 10 covering 0x100f, got (%+v,%v)", li, ok)
	}
	li, ok = coveringLine(lines, 0x1010)
	if !ok || li.Line != 11 {
		t.Fatalf("expected line 11 covering 0x1010, got (%+v,%v)", li, ok)
	}
}

func TestCoveringLine_OneAheadOpenEnded(t *testing.T) {
	lines := []LineInfo{
		{Address: 0x1000, File: "a.c", Line: 10},
		{Address: 0x1020, File: "a.c", Line: 12},
	}
	li, ok := coveringLine(lines, 0x101f)
	if !ok || li.Line != 10 {
		t.Fatalf("open-ended record should cover up to the next offset: got (%+v,%v)", li, ok)
	}
}

func TestCoveringLine_LastRecordCoversUnboundedly(t *testing.T) {
	lines := []LineInfo{
		{Address: 0x1000, File: "a.c", Line: 10},
		{Address: 0x1020, File: "a.c", Line: 12},
	}
	li, ok := coveringLine(lines, 0x9000)
	if !ok || li.Line != 12 {
		t.Fatalf("last record should cover unboundedly: got (%+v,%v)", li, ok)
	}
}

func TestCoveringLine_BeforeFirstRecord(t *testing.T) {
	lines := []LineInfo{{Address: 0x1000, File: "a.c", Line: 10}}
	if _, ok := coveringLine(lines, 0xfff); ok {
		t.Fatalf("address below the first record must not resolve")
	}
}

func TestCoveringLine_TotalOverStrictlyIncreasingTable(t *testing.T) {
	lines := []LineInfo{
		{Address: 0x1000, Line: 1},
		{Address: 0x1008, Line: 2},
		{Address: 0x1010, Size: 0x20, HasSize: true, Line: 3},
	}
	for addr := uint64(0x1000); addr < 0x1030; addr++ {
		li, ok := coveringLine(lines, addr)
		if !ok {
			t.Fatalf("no covering record for %#x", addr)
		}
		var want uint32
		switch {
		case addr < 0x1008:
			want = 1
		case addr < 0x1010:
			want = 2
		default:
			want = 3
		}
		if li.Line != want {
			t.Fatalf("address %#x: got line %d want %d", addr, li.Line, want)
		}
	}
}
