package pprof

import (
	"compress/gzip"
	"io"
	"os"
	"sort"

	"github.com/VladMinzatu/addr2frame/internal/resolver"
	"github.com/google/pprof/profile"
)

// BuildPprofProfile renders resolution results as a pprof profile: one
// location per queried address carrying every resolved frame as a line,
// and one sample per address.
func BuildPprofProfile(matches []resolver.Match) (*profile.Profile, error) {
	if len(matches) == 0 {
		p := &profile.Profile{}
		return p, nil
	}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "addresses", Unit: "count"}},
	}

	type funcKey struct {
		name string
		file string
	}
	funcs := map[funcKey]*profile.Function{}
	nextFuncID := uint64(1)
	nextLocID := uint64(1)

	addFunction := func(f resolver.Frame) *profile.Function {
		key := funcKey{name: f.Function, file: f.File}
		if fn, ok := funcs[key]; ok {
			return fn
		}
		fn := &profile.Function{
			ID:       nextFuncID,
			Name:     f.Function,
			Filename: f.File,
		}
		nextFuncID++
		funcs[key] = fn
		p.Function = append(p.Function, fn)
		return fn
	}

	// group frames per queried address, preserving discovery order
	var order []uint64
	grouped := map[uint64][]resolver.Frame{}
	for _, m := range matches {
		if _, ok := grouped[m.Target]; !ok {
			order = append(order, m.Target)
		}
		grouped[m.Target] = append(grouped[m.Target], m.Frame)
	}

	for _, addr := range order {
		frames := grouped[addr]
		loc := &profile.Location{
			ID:      nextLocID,
			Address: addr,
		}
		nextLocID++
		// pprof expects Line[0] to be the innermost frame; inline frames
		// are discovered after their enclosing procedure, so reverse.
		for i := len(frames) - 1; i >= 0; i-- {
			fn := addFunction(frames[i])
			loc.Line = append(loc.Line, profile.Line{Function: fn, Line: int64(frames[i].Line)})
		}
		p.Location = append(p.Location, loc)

		p.Sample = append(p.Sample, &profile.Sample{
			Value:    []int64{1},
			Location: []*profile.Location{loc},
			NumLabel: map[string][]int64{"address": {int64(addr)}},
		})
	}

	// sort for deterministic output
	sort.Slice(p.Function, func(i, j int) bool { return p.Function[i].ID < p.Function[j].ID })
	sort.Slice(p.Location, func(i, j int) bool { return p.Location[i].ID < p.Location[j].ID })

	return p, nil
}

func WriteProfileGzip(p *profile.Profile, w io.Writer) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	return p.Write(gw)
}

func WriteProfile(p *profile.Profile, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteProfileGzip(p, f)
}
