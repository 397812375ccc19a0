package pprof

import (
	"testing"

	"github.com/VladMinzatu/addr2frame/internal/resolver"
	"github.com/google/pprof/profile"
)

func findFuncByName(p *profile.Profile, name string) *profile.Function {
	for _, fn := range p.Function {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func findLocByAddr(p *profile.Profile, addr uint64) *profile.Location {
	for _, loc := range p.Location {
		if loc.Address == addr {
			return loc
		}
	}
	return nil
}

func TestBuildPprofProfile_Empty(t *testing.T) {
	p, err := BuildPprofProfile(nil)
	if err != nil {
		t.Fatalf("BuildPprofProfile returned error for empty slice: %v", err)
	}
	if p == nil {
		t.Fatalf("expected non-nil profile")
	}
	if len(p.Sample) != 0 {
		t.Fatalf("expected 0 samples, got %d", len(p.Sample))
	}
}

func TestBuildPprofProfile_SingleMatch(t *testing.T) {
	matches := []resolver.Match{
		{Target: 0x1050, Frame: resolver.Frame{Function: "foo", File: "a.c", Line: 10}},
	}
	p, err := BuildPprofProfile(matches)
	if err != nil {
		t.Fatalf("BuildPprofProfile error: %v", err)
	}

	if len(p.Sample) != 1 {
		t.Fatalf("expected 1 pprof sample, got %d", len(p.Sample))
	}
	fn := findFuncByName(p, "foo")
	if fn == nil {
		t.Fatalf("function foo not found in profile.Function")
	}
	if fn.Filename != "a.c" {
		t.Fatalf("unexpected function filename: got %q want %q", fn.Filename, "a.c")
	}
	loc := findLocByAddr(p, 0x1050)
	if loc == nil {
		t.Fatalf("location for addr 0x1050 not found")
	}
	if len(loc.Line) != 1 || loc.Line[0].Function != fn || loc.Line[0].Line != 10 {
		t.Fatalf("location line does not reference foo at line 10: %+v", loc.Line)
	}
}

func TestBuildPprofProfile_InlineFramesAreInnermostFirst(t *testing.T) {
	matches := []resolver.Match{
		{Target: 0x1025, Frame: resolver.Frame{Function: "foo", File: "a.c", Line: 10}},
		{Target: 0x1025, Frame: resolver.Frame{Function: "bar", File: "b.c", Line: 42}},
	}
	p, err := BuildPprofProfile(matches)
	if err != nil {
		t.Fatalf("BuildPprofProfile error: %v", err)
	}

	loc := findLocByAddr(p, 0x1025)
	if loc == nil {
		t.Fatalf("location for addr 0x1025 not found")
	}
	if len(loc.Line) != 2 {
		t.Fatalf("expected 2 lines at the location, got %d", len(loc.Line))
	}
	if loc.Line[0].Function.Name != "bar" || loc.Line[1].Function.Name != "foo" {
		t.Fatalf("inline frame must come first: got %q then %q",
			loc.Line[0].Function.Name, loc.Line[1].Function.Name)
	}
}

func TestBuildPprofProfile_SharedFunctionsDeduplicated(t *testing.T) {
	matches := []resolver.Match{
		{Target: 0x1010, Frame: resolver.Frame{Function: "foo", File: "a.c", Line: 10}},
		{Target: 0x1020, Frame: resolver.Frame{Function: "foo", File: "a.c", Line: 11}},
	}
	p, err := BuildPprofProfile(matches)
	if err != nil {
		t.Fatalf("BuildPprofProfile error: %v", err)
	}
	if len(p.Function) != 1 {
		t.Fatalf("expected a single shared function, got %d", len(p.Function))
	}
	if len(p.Location) != 2 || len(p.Sample) != 2 {
		t.Fatalf("expected one location and sample per address: %d locations, %d samples",
			len(p.Location), len(p.Sample))
	}
}
