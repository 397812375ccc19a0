package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/VladMinzatu/addr2frame/internal/debuginfo"
	"github.com/VladMinzatu/addr2frame/internal/exporter"
	"github.com/VladMinzatu/addr2frame/internal/pprof"
	"github.com/VladMinzatu/addr2frame/internal/resolver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		pprofOut  string
		oltpOut   string
		foldedOut string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:           "addr2frame <binary> <address>...",
		Short:         "Resolve instruction addresses to source frames, including inlined functions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				// Not an error: just show how the tool is used.
				return cmd.Usage()
			}
			if verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}

			targets, err := parseAddresses(args[1:])
			if err != nil {
				return err
			}

			src, err := debuginfo.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			matches, err := resolver.NewResolver(src).Resolve(targets)
			if err != nil {
				return err
			}

			for _, m := range matches {
				fmt.Fprintf(cmd.OutOrStdout(), "%#x %s (%s:%d)\n",
					m.Target, m.Frame.Function, m.Frame.File, m.Frame.Line)
			}

			return writeExports(matches, pprofOut, oltpOut, foldedOut)
		},
	}

	cmd.Flags().StringVar(&pprofOut, "pprof", "", "write resolved frames as a gzipped pprof profile to this file")
	cmd.Flags().StringVar(&oltpOut, "otlp", "", "write resolved frames as an OTLP profiles payload to this file")
	cmd.Flags().StringVar(&foldedOut, "folded", "", "write resolved frame chains in folded-stacks form to this file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func parseAddresses(args []string) ([]uint64, error) {
	targets := make([]uint64, 0, len(args))
	for _, arg := range args {
		addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(arg), "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %v", arg, err)
		}
		targets = append(targets, addr)
	}
	return targets, nil
}

func writeExports(matches []resolver.Match, pprofOut, oltpOut, foldedOut string) error {
	if pprofOut != "" {
		prof, err := pprof.BuildPprofProfile(matches)
		if err != nil {
			return fmt.Errorf("building pprof profile: %w", err)
		}
		if err := pprof.WriteProfile(prof, pprofOut); err != nil {
			return fmt.Errorf("writing pprof profile: %w", err)
		}
	}
	if oltpOut != "" {
		pd := exporter.BuildOltpProfile(matches, func() uint64 { return uint64(time.Now().UnixNano()) })
		f, err := os.Create(oltpOut)
		if err != nil {
			return fmt.Errorf("writing OTLP profile: %w", err)
		}
		defer f.Close()
		if err := exporter.WriteOltpProfile(pd, f); err != nil {
			return fmt.Errorf("writing OTLP profile: %w", err)
		}
	}
	if foldedOut != "" {
		if err := exporter.WriteFoldedStacksToFile(exporter.BuildFoldedFrames(matches), foldedOut); err != nil {
			return fmt.Errorf("writing folded stacks: %w", err)
		}
	}
	return nil
}
