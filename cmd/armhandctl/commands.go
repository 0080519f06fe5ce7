package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kecskemeti/arm-hand-ai/internal/genotype"
	"github.com/kecskemeti/arm-hand-ai/internal/stats"
	"github.com/kecskemeti/arm-hand-ai/pkg/armhand"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		resume      bool
		runID       string
		topology    string
		ticks       int
		seed        int64
		islands     int
		population  int
		workers     int
		parallel    bool
		fitnessGoal float64
		storeKind   string
		storePath   string
		outputDir   string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve controllers on the configured islands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("resume") {
				cfg.Resume = resume
			}
			if flags.Changed("run-id") {
				cfg.RunID = runID
			}
			if flags.Changed("topology") {
				cfg.Topology = topology
			}
			if flags.Changed("ticks") {
				cfg.Ticks = ticks
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if flags.Changed("islands") {
				cfg.Population.Islands = islands
			}
			if flags.Changed("population") {
				cfg.Population.Size = population
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("parallel") {
				cfg.ParallelIslands = parallel
			}
			if flags.Changed("fitness-goal") {
				cfg.FitnessGoal = fitnessGoal
			}
			if flags.Changed("store") {
				cfg.Store.Kind = storeKind
			}
			if flags.Changed("store-path") {
				cfg.Store.Path = storePath
			}
			if flags.Changed("output-dir") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}

			client, err := opts.newClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), armhand.RunRequest{})
			if err != nil {
				return err
			}
			printRunSummary(cmd, summary)
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&resume, "resume", false, "seed islands from the newest checkpoints")
	f.StringVar(&runID, "run-id", "", "run id (generated when empty)")
	f.StringVar(&topology, "topology", "", "network topology: small|big")
	f.IntVar(&ticks, "ticks", 0, "stop after this many ticks (0 runs until the goal or Ctrl-C)")
	f.Int64Var(&seed, "seed", 0, "random seed")
	f.IntVar(&islands, "islands", 0, "number of islands")
	f.IntVar(&population, "population", 0, "genomes per island")
	f.IntVar(&workers, "workers", 0, "concurrent evaluations per island (0 uses every CPU)")
	f.BoolVar(&parallel, "parallel", false, "step islands concurrently")
	f.Float64Var(&fitnessGoal, "fitness-goal", 0, "stop once the best fitness reaches this value")
	f.StringVar(&storeKind, "store", "", "checkpoint backend: file|memory|sqlite")
	f.StringVar(&storePath, "store-path", "", "checkpoint directory or sqlite database path")
	f.StringVar(&outputDir, "output-dir", "", "directory for run artifacts (empty disables)")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func printRunSummary(cmd *cobra.Command, s armhand.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s stopped: %s\n", s.RunID, s.StopReason)
	fmt.Fprintf(out, "  ticks=%d evaluations=%s elapsed=%s resumed=%t\n",
		s.Ticks, humanize.Comma(s.Evaluations), s.Elapsed.Round(time.Millisecond), s.Resumed)
	fmt.Fprintf(out, "  best_fitness=%.6f record=%s checkpoints=%d failed=%d\n",
		s.BestFitness, orNone(s.BestRecord), s.Checkpoints, s.CheckpointFailures)
	if s.ArtifactsDir != "" {
		fmt.Fprintf(out, "  artifacts=%s\n", s.ArtifactsDir)
	}
}

func newEvalCmd(opts *rootOptions) *cobra.Command {
	var (
		steps     int
		tracePath string
	)
	cmd := &cobra.Command{
		Use:   "eval [record]",
		Short: "Replay a checkpoint through the arm simulation",
		Long:  "Replay a checkpoint through the arm simulation. Without a record the newest checkpoint for the configured topology is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			client, err := opts.newClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			req := armhand.EvalRequest{Steps: steps}
			if len(args) == 1 {
				req.Record = args[0]
			}
			result, err := client.Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "record=%s topology=%s fingerprint=%s parameters=%s steps=%d\n",
				result.Record, result.Topology, result.Fingerprint, humanize.Comma(int64(result.Parameters)), len(result.StepScores))
			fmt.Fprintf(out, "fitness=%.6f mape=%.6f median=%.6f last=%.6f min=%.6f max=%.6f\n",
				result.Fitness, result.MAPE, result.Summary.Median, result.Summary.Last, result.Summary.Min, result.Summary.Max)

			switch tracePath {
			case "":
				return nil
			case "-":
				return stats.WriteStepScores(out, result.StepScores)
			default:
				f, err := os.Create(tracePath)
				if err != nil {
					return err
				}
				if err := stats.WriteStepScores(f, result.StepScores); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			}
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "simulation steps (0 uses the config)")
	cmd.Flags().StringVar(&tracePath, "trace", "", "write per-step scores as CSV to this path (- for stdout)")
	return cmd
}

func newCheckpointsCmd(opts *rootOptions) *cobra.Command {
	var (
		topology string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List saved checkpoints, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			client, err := opts.newClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			ids, err := client.ListCheckpoints(cmd.Context(), topology, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "no checkpoints")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&topology, "topology", "", "topology to list (defaults to the configured one)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to list (0 lists all)")
	return cmd
}

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			client, err := opts.newClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCREATED\tTOPOLOGY\tISLANDS\tPOPULATION\tTICKS\tBEST")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.6f\n",
					r.RunID, createdAgo(r.CreatedAtUTC), r.Topology, r.Islands, r.Population, r.Ticks, r.FinalBestFitness)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 lists all)")
	return cmd
}

func newTopologiesCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "topologies",
		Short: "List registered network topologies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range genotype.ListTopologies() {
				topology, err := genotype.ResolveTopology(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%d->%d\t%d layers\t%s parameters\n",
					name, topology.Inputs(), topology.Outputs(), len(topology.Layers),
					humanize.Comma(int64(genotype.ParameterCount(genotype.NewZeroGenome(topology, "")))))
			}
			return nil
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write run configuration",
	}

	var (
		outPath string
		force   bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := armhand.DefaultConfig()
			if outPath == "" || outPath == "-" {
				return cfg.Write(cmd.OutOrStdout())
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := cfg.Write(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
			return nil
		},
	}
	initCmd.Flags().StringVar(&outPath, "out", "", "output path (stdout when empty)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after files and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func createdAgo(stamp string) string {
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return stamp
	}
	return humanize.Time(t)
}
