package exporter

import (
	"io"

	"github.com/VladMinzatu/addr2frame/internal/resolver"
	v1 "go.opentelemetry.io/proto/otlp/common/v1"
	profilespb "go.opentelemetry.io/proto/otlp/profiles/v1development"
	resourceV1 "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/protobuf/proto"
)

type NowFunc func() uint64 // produces unix nsec

// BuildOltpProfile renders resolution results as an OTLP profiles payload:
// one sample per queried address whose stack holds every resolved frame.
func BuildOltpProfile(matches []resolver.Match, now NowFunc) *profilespb.ProfilesData {
	nowNsec := now()
	stringTable := []string{""}
	mappingTable := []*profilespb.Mapping{{}}
	locationTable := []*profilespb.Location{{}}
	functionTable := []*profilespb.Function{{}}
	stackTable := []*profilespb.Stack{{}}

	defaultMappingIdx := 0

	sampleType := &profilespb.ValueType{
		TypeStrindex: strIndex(&stringTable, "addresses"),
		UnitStrindex: strIndex(&stringTable, "count"),
	}

	buildStack := func(addr uint64, frames []resolver.Frame) int32 {
		locIndices := make([]int32, 0, len(frames))
		// stacks are leaf-to-root: inline frames are discovered after
		// their enclosing procedure, so walk the frames in reverse
		for i := len(frames) - 1; i >= 0; i-- {
			frame := frames[i]
			funcNameIdx := strIndex(&stringTable, frame.Function)
			fn := &profilespb.Function{
				NameStrindex:       funcNameIdx,
				SystemNameStrindex: funcNameIdx,
				FilenameStrindex:   strIndex(&stringTable, frame.File),
			}
			functionTable = append(functionTable, fn)
			fnIdx := int32(len(functionTable) - 1)

			loc := &profilespb.Location{
				Address:      addr,
				MappingIndex: int32(defaultMappingIdx),
				Lines: []*profilespb.Line{
					{
						FunctionIndex: fnIdx,
						Line:          int64(frame.Line),
					},
				},
			}
			locationTable = append(locationTable, loc)
			locIdx := int32(len(locationTable) - 1)
			locIndices = append(locIndices, locIdx)
		}

		stack := &profilespb.Stack{LocationIndices: locIndices}
		stackTable = append(stackTable, stack)
		return int32(len(stackTable) - 1)
	}

	var order []uint64
	grouped := map[uint64][]resolver.Frame{}
	for _, m := range matches {
		if _, ok := grouped[m.Target]; !ok {
			order = append(order, m.Target)
		}
		grouped[m.Target] = append(grouped[m.Target], m.Frame)
	}

	profileSamples := make([]*profilespb.Sample, 0, len(order))
	for _, addr := range order {
		stackIdx := buildStack(addr, grouped[addr])
		pbSample := &profilespb.Sample{
			StackIndex:         stackIdx,
			Values:             []int64{1},
			AttributeIndices:   []int32{},
			LinkIndex:          0,
			TimestampsUnixNano: []uint64{nowNsec},
		}
		profileSamples = append(profileSamples, pbSample)
	}

	profile := &profilespb.Profile{
		TimeUnixNano: nowNsec,
		DurationNano: uint64(0),
		SampleType:   sampleType,
		Samples:      profileSamples,
	}

	resource := &resourceV1.Resource{}
	resourceProfiles := &profilespb.ResourceProfiles{
		Resource: resource,
		ScopeProfiles: []*profilespb.ScopeProfiles{
			{
				Scope: &v1.InstrumentationScope{
					Name:    "addr2frame",
					Version: "v1",
				},
				Profiles: []*profilespb.Profile{profile},
			},
		},
	}

	dictionary := &profilespb.ProfilesDictionary{
		MappingTable:  mappingTable,
		LocationTable: locationTable,
		FunctionTable: functionTable,
		StackTable:    stackTable,
		StringTable:   stringTable,
	}

	return &profilespb.ProfilesData{
		ResourceProfiles: []*profilespb.ResourceProfiles{resourceProfiles},
		Dictionary:       dictionary,
	}
}

func WriteOltpProfile(pd *profilespb.ProfilesData, w io.Writer) error {
	data, err := proto.Marshal(pd)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func strIndex(table *[]string, s string) int32 {
	for i, v := range *table {
		if v == s {
			return int32(i)
		}
	}
	*table = append(*table, s)
	return int32(len(*table) - 1)
}
