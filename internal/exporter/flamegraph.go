package exporter

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/VladMinzatu/addr2frame/internal/resolver"
)

// BuildFoldedFrames aggregates resolution results into folded-stacks form:
// one key per distinct frame chain, counting how many queried addresses
// resolved to it. Frames are kept in discovery order, which runs outermost
// procedure first - the root->leaf order flamegraph tooling expects.
func BuildFoldedFrames(matches []resolver.Match) map[string]uint64 {
	var order []uint64
	grouped := map[uint64][]resolver.Frame{}
	for _, m := range matches {
		if _, ok := grouped[m.Target]; !ok {
			order = append(order, m.Target)
		}
		grouped[m.Target] = append(grouped[m.Target], m.Frame)
	}

	agg := make(map[string]uint64)
	for _, addr := range order {
		frames := grouped[addr]
		names := make([]string, 0, len(frames))
		for _, f := range frames {
			name := f.Function
			if name == "" {
				name = "<unknown>"
			}
			names = append(names, escapeFoldedName(name))
		}
		key := strings.Join(names, ";")
		agg[key]++
	}
	return agg
}

func escapeFoldedName(name string) string {
	// semicolons separate frames and newlines separate lines. Replace them with safe characters.
	name = strings.ReplaceAll(name, ";", "_")  // frame separator in folded stacks format
	name = strings.ReplaceAll(name, "\n", " ") // line separator, duh
	name = strings.TrimSpace(name)
	if name == "" {
		return "<unknown>"
	}
	return name
}

func WriteFoldedStacksToFile(agg map[string]uint64, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	type kv struct {
		k string
		v uint64
	}
	var items []kv
	for k, v := range agg {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].v == items[j].v {
			return items[i].k < items[j].k
		}
		return items[i].v > items[j].v
	})

	for _, it := range items {
		if _, err := fmt.Fprintf(f, "%s %d\n", it.k, it.v); err != nil {
			return err
		}
	}
	return nil
}
