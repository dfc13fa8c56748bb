// Command mbsolve runs a one-shot solve over a layered instance directory
// and writes the resulting solution back to disk.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/ts2/mbsolve/astar"
	"github.com/ts2/mbsolve/config"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/ioadapter"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/solution"
	"github.com/ts2/mbsolve/telemetry"
)

func main() {
	var configPath string
	var instanceDir string
	var outputDir string
	var workers int
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "mbsolve",
		Short: "Solve a moving-block dispatch instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetry.InitializeLogger(log.New(), "mbsolve")

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.FromYaml(configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				cfg = *loaded
			}
			if instanceDir == "" {
				instanceDir = cfg.NetworkPath
			}
			if outputDir == "" {
				outputDir = cfg.OutputPath
			}
			if outputDir == "" {
				outputDir = "."
			}

			inst, err := ioadapter.LoadInstance(instanceDir)
			if err != nil {
				return fmt.Errorf("loading instance: %w", err)
			}

			opts := solverOptionsFromConfig(cfg)
			solver := astar.New(inst, opts)

			ctx := context.Background()
			var cancel context.CancelFunc
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			ps := startState(inst)
			start := time.Now()
			res, err := solver.SolveParallel(ctx, ps, workers)
			dur := time.Since(start)

			outcome := "infeasible"
			if err == nil && res != nil && res.Feasible {
				outcome = "feasible"
			} else if res != nil && res.TimedOut {
				outcome = "timeout"
			}
			if res != nil {
				telemetry.RecordSolve(outcome, res.NodesExpanded, res.SimulatorInvocations, dur)
			}
			logger.Info("solve finished", "outcome", outcome, "duration", dur)

			if err != nil {
				return err
			}

			sol := resultToSolution(*res.Goal)
			writeOpts := ioadapter.WriteOptions{IncludeVSSPositions: true, Net: inst.Network()}
			if err := ioadapter.WriteSolution(outputDir, sol, writeOpts); err != nil {
				return fmt.Errorf("writing solution: %w", err)
			}
			logger.Info("solution written", "dir", outputDir)
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.Flags().StringVar(&instanceDir, "instance", "", "path to a layered instance directory (overrides config)")
	root.Flags().StringVar(&outputDir, "output", "", "directory to write the solution to (overrides config)")
	root.Flags().IntVar(&workers, "workers", 0, "number of parallel solve workers (0: use the config's worker count)")
	root.Flags().DurationVar(&timeout, "timeout", 0, "solve deadline, 0 for none")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func solverOptionsFromConfig(cfg config.Config) astar.Options {
	opts := astar.DefaultOptions()
	if cfg.DT > 0 {
		opts.DT = cfg.DT
	}
	opts.Timeout = cfg.SolveTimeout
	opts.ParallelWorkers = cfg.Workers
	switch cfg.Heuristic {
	case "zero":
		opts.Heuristic = astar.Zero
	default:
		opts.Heuristic = astar.Simple
	}
	switch cfg.Strategy {
	case "singleEdge":
		opts.Strategy = astar.SingleEdge{}
	default:
		opts.Strategy = astar.NextTTD{}
	}
	return opts
}

func startState(inst *instance.Instance) partialstate.PartialState {
	return partialstate.New(inst.NumTrains(), len(inst.Network().UnbreakableSections()), inst.Network().NumVertices())
}

func resultToSolution(final partialstate.PartialState) *solution.Solution {
	routed := make([]bool, len(final.TrainEdges))
	for i := range final.TrainEdges {
		routed[i] = final.CurrentEdge(i) != partialstate.NoEdge
	}
	return solution.New(final, routed, 0, solution.Feasible)
}
