// File: cmd/replay.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/internal/observability"
	"github.com/xkilldash9x/inputcore/internal/replay"
)

// newReplayCmd creates the `replay` command.
func newReplayCmd() *cobra.Command {
	var (
		asJSON   bool
		realtime bool
		parallel int
	)
	replayCmd := &cobra.Command{
		Use:   "replay [scenario files or directories...]",
		Short: "Runs YAML input scenarios and checks the notifications they produce",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("replay")

			paths, err := expandScenarioArgs(args)
			if err != nil {
				return err
			}
			scenarios := make([]*replay.Scenario, 0, len(paths))
			for _, p := range paths {
				sc, err := replay.Load(p)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}
			logger.Info("Replaying scenarios", zap.Int("count", len(scenarios)), zap.Int("parallel", parallel), zap.Bool("realtime", realtime))

			var opts []replay.Option
			if realtime {
				opts = append(opts, replay.WithRealtime())
			}
			results, err := replay.RunAll(ctx, scenarios, settings(cmd), logger, parallel, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := replay.MarshalResults(results)
				if err != nil {
					return fmt.Errorf("failed to encode results: %w", err)
				}
				fmt.Fprintln(out, string(data))
			} else {
				for _, res := range results {
					status := "PASS"
					switch {
					case res.Error != "":
						status = "ERROR"
					case !res.Passed:
						status = "FAIL"
					}
					fmt.Fprintf(out, "%-5s %s (%s)\n", status, res.Name, res.Duration)
					if res.Error != "" {
						fmt.Fprintf(out, "      %s\n", res.Error)
					}
					if res.Diff != "" {
						fmt.Fprintln(out, res.Diff)
					}
				}
			}

			failed := 0
			for _, res := range results {
				if !res.Passed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
			}
			return nil
		},
	}
	replayCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	replayCmd.Flags().BoolVar(&realtime, "realtime", false, "run on a wall-clock event loop; advance steps really wait")
	replayCmd.Flags().IntVarP(&parallel, "parallel", "p", runtime.NumCPU(), "maximum scenarios run at once")
	return replayCmd
}

// expandScenarioArgs turns directories into the YAML files they contain.
func expandScenarioArgs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("scenario path %q: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, err
			}
			out = append(out, matches...)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scenario files found")
	}
	return out, nil
}
