package exporter

import (
	"bytes"
	"testing"

	"github.com/VladMinzatu/addr2frame/internal/resolver"
	profilespb "go.opentelemetry.io/proto/otlp/profiles/v1development"
	"google.golang.org/protobuf/proto"
)

func fixedNow() uint64 { return 1700000000000000000 }

func tableString(pd *profilespb.ProfilesData, idx int32) string {
	st := pd.Dictionary.StringTable
	if idx < 0 || int(idx) >= len(st) {
		return ""
	}
	return st[idx]
}

func TestBuildOltpProfile_Empty(t *testing.T) {
	pd := BuildOltpProfile(nil, fixedNow)
	if pd == nil {
		t.Fatalf("expected non-nil ProfilesData")
	}
	prof := pd.ResourceProfiles[0].ScopeProfiles[0].Profiles[0]
	if len(prof.Samples) != 0 {
		t.Fatalf("expected 0 samples, got %d", len(prof.Samples))
	}
	// dictionary tables keep their zero sentinel entries
	if len(pd.Dictionary.LocationTable) != 1 || len(pd.Dictionary.FunctionTable) != 1 {
		t.Fatalf("expected sentinel-only dictionary tables: %d locations, %d functions",
			len(pd.Dictionary.LocationTable), len(pd.Dictionary.FunctionTable))
	}
}

func TestBuildOltpProfile_SingleAddressWithInlineFrame(t *testing.T) {
	matches := []resolver.Match{
		{Target: 0x1025, Frame: resolver.Frame{Function: "foo", File: "a.c", Line: 10}},
		{Target: 0x1025, Frame: resolver.Frame{Function: "bar", File: "b.c", Line: 42}},
	}
	pd := BuildOltpProfile(matches, fixedNow)
	prof := pd.ResourceProfiles[0].ScopeProfiles[0].Profiles[0]

	if prof.TimeUnixNano != fixedNow() {
		t.Fatalf("unexpected TimeUnixNano: got %d want %d", prof.TimeUnixNano, fixedNow())
	}
	if len(prof.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(prof.Samples))
	}

	sample := prof.Samples[0]
	stack := pd.Dictionary.StackTable[sample.StackIndex]
	if len(stack.LocationIndices) != 2 {
		t.Fatalf("expected 2 stack locations, got %d", len(stack.LocationIndices))
	}

	// leaf first: the inline frame precedes its enclosing procedure
	leaf := pd.Dictionary.LocationTable[stack.LocationIndices[0]]
	root := pd.Dictionary.LocationTable[stack.LocationIndices[1]]
	if leaf.Address != 0x1025 || root.Address != 0x1025 {
		t.Fatalf("locations must carry the queried address: %#x %#x", leaf.Address, root.Address)
	}
	leafFn := pd.Dictionary.FunctionTable[leaf.Lines[0].FunctionIndex]
	rootFn := pd.Dictionary.FunctionTable[root.Lines[0].FunctionIndex]
	if got := tableString(pd, leafFn.NameStrindex); got != "bar" {
		t.Fatalf("leaf frame: got %q want %q", got, "bar")
	}
	if got := tableString(pd, rootFn.NameStrindex); got != "foo" {
		t.Fatalf("root frame: got %q want %q", got, "foo")
	}
	if got := tableString(pd, leafFn.FilenameStrindex); got != "b.c" {
		t.Fatalf("leaf filename: got %q want %q", got, "b.c")
	}
	if leaf.Lines[0].Line != 42 || root.Lines[0].Line != 10 {
		t.Fatalf("unexpected line numbers: %d %d", leaf.Lines[0].Line, root.Lines[0].Line)
	}
}

func TestWriteOltpProfile_RoundTrips(t *testing.T) {
	matches := []resolver.Match{
		{Target: 0x1050, Frame: resolver.Frame{Function: "foo", File: "a.c", Line: 10}},
	}
	pd := BuildOltpProfile(matches, fixedNow)

	var buf bytes.Buffer
	if err := WriteOltpProfile(pd, &buf); err != nil {
		t.Fatalf("WriteOltpProfile error: %v", err)
	}

	var decoded profilespb.ProfilesData
	if err := proto.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to unmarshal written payload: %v", err)
	}
	prof := decoded.ResourceProfiles[0].ScopeProfiles[0].Profiles[0]
	if len(prof.Samples) != 1 {
		t.Fatalf("expected 1 sample after round trip, got %d", len(prof.Samples))
	}
}
