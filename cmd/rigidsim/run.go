package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/analysis"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/optim"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/storage"
	"github.com/san-kum/rigidsim/internal/world"
)

// resolveConfig picks the base config from --config, --preset or the scene
// argument, then applies the flags the user set.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Scene = args[0]
		}
	case preset != "":
		name := sceneArg(args)
		cfg = config.GetPreset(name, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
	default:
		cfg = config.DefaultConfig()
		cfg.Scene = sceneArg(args)
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("sample-every") {
		cfg.SampleEvery = sampleEvery
	}
	if flags.Changed("workers") {
		cfg.World.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sceneArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.DefaultScene
}

func simConfig(cfg *config.Config) sim.Config {
	return sim.Config{Dt: cfg.Dt, Duration: cfg.Duration, SampleEvery: cfg.SampleEvery}
}

func runInfo(cfg *config.Config) storage.RunInfo {
	return storage.RunInfo{
		Scene:       cfg.Scene,
		Preset:      preset,
		Seed:        cfg.Seed,
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		SampleEvery: cfg.SampleEvery,
		Workers:     cfg.World.Workers,
	}
}

// buildSimulator builds the scene with the default metrics and the contact
// counter attached.
func buildSimulator(cfg *config.Config) (*sim.Simulator, error) {
	starts := metrics.NewContactStarts()
	s, err := registry.Build(cfg, logger, world.WithListener(starts))
	if err != nil {
		return nil, err
	}
	simulator := sim.New(s.World, s)
	for _, m := range metrics.Default() {
		simulator.AddMetric(m)
	}
	simulator.AddMetric(starts)
	return simulator, nil
}

// progress logs the step count every interval steps at debug level.
type progress struct {
	interval int
	total    int
}

func (p progress) OnStep(w *world.World, step int, t float64) {
	if p.interval > 0 && step%p.interval == 0 {
		st := w.Stats()
		logger.Debug("progress", "step", step, "of", p.total, "t", t, "islands", st.Islands, "contacts", st.Manifolds)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if runs < 1 {
		return fmt.Errorf("runs must be at least 1, got %d", runs)
	}

	configs := make([]*config.Config, runs)
	builds := make([]func() (*sim.Simulator, error), runs)
	for i := range configs {
		i := i
		c := *cfg
		c.Seed = cfg.Seed + int64(i)
		configs[i] = &c
		builds[i] = func() (*sim.Simulator, error) {
			s, err := buildSimulator(configs[i])
			if err != nil {
				return nil, err
			}
			s.AddObserver(progress{interval: max(cfg.Steps()/10, 1), total: cfg.Steps()})
			return s, nil
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("running", "scene", cfg.Scene, "preset", preset, "seed", cfg.Seed, "runs", runs, "steps", cfg.Steps(), "workers", cfg.World.Workers)
	start := time.Now()
	// each world already solves islands in parallel, so runs share that budget
	results, err := sim.NewEnsemble(max(1, cfg.World.Workers/max(1, runs)), builds...).Run(ctx, simConfig(cfg))
	if err != nil {
		return err
	}
	logger.Info("completed", "elapsed", time.Since(start))

	st := storage.New(dataDir)
	for i, result := range results {
		info := runInfo(configs[i])
		if jsonOut {
			if err := storage.WriteJSON(os.Stdout, info, result); err != nil {
				return err
			}
		}
		if !noSave {
			runID, err := st.Save(info, result)
			if err != nil {
				return err
			}
			fmt.Printf("run id: %s\n", runID)
		}
		if !jsonOut {
			printSummary(result)
		}
	}
	return nil
}

func printSummary(result *sim.Result) {
	fmt.Printf("steps: %d (%v, %.0f steps/s)\n", result.StepsTaken, result.Elapsed.Round(time.Millisecond), float64(result.StepsTaken)/result.Elapsed.Seconds())
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("metrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	fmt.Println()
}

// verifyScene runs the scene once inline and once with the configured
// workers and compares every sample.
func verifyScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	parallel := max(cfg.World.Workers, 2)

	run := func(workers int) (*sim.Result, error) {
		c := *cfg
		c.World.Workers = workers
		s, err := buildSimulator(&c)
		if err != nil {
			return nil, err
		}
		return s.Run(context.Background(), simConfig(&c))
	}

	serial, err := run(1)
	if err != nil {
		return err
	}
	threaded, err := run(parallel)
	if err != nil {
		return err
	}

	div := analysis.Divergence(serial.Samples, threaded.Samples)
	worst := 0.0
	for _, d := range div {
		worst = max(worst, d)
	}
	if !analysis.Identical(serial.Samples, threaded.Samples) {
		return fmt.Errorf("%s: runs with 1 and %d workers differ (max rms distance %g)", cfg.Scene, parallel, worst)
	}
	fmt.Printf("%s: %d samples identical with 1 and %d workers\n", cfg.Scene, len(serial.Samples), parallel)
	return nil
}

func benchScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if benchSteps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", benchSteps)
	}

	counts := []int{1, 2, 4, 8}
	fmt.Printf("benchmarking %s (%d steps)\n\n", cfg.Scene, benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKERS\tBODIES\tISLANDS\tTIME\tSTEPS/SEC")

	for _, n := range counts {
		c := *cfg
		c.World.Workers = n
		s, err := registry.Build(&c, logger)
		if err != nil {
			return err
		}
		start := time.Now()
		for i := 0; i < benchSteps; i++ {
			s.BeforeStep(i)
			if err := s.World.Step(c.Dt); err != nil {
				return err
			}
		}
		elapsed := time.Since(start)
		st := s.World.Stats()
		fmt.Fprintf(w, "%d\t%d\t%d\t%v\t%.0f\n", n, st.Bodies, st.Islands, elapsed.Round(time.Microsecond), float64(benchSteps)/elapsed.Seconds())
	}
	return w.Flush()
}

func sweepScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(sweepParams) == 0 {
		return fmt.Errorf("at least one --param is required (tunable: %v)", config.TunableParams())
	}
	names := make([]string, len(sweepParams))
	ranges := make([][]float64, len(sweepParams))
	for i, p := range sweepParams {
		if names[i], ranges[i], err = config.ParseRange(p); err != nil {
			return err
		}
	}

	build := func(params map[string]float64) (*sim.Simulator, error) {
		c := *cfg
		for name, v := range params {
			if err := config.SetParam(&c, name, v); err != nil {
				return nil, err
			}
		}
		// each point runs serially; the search spreads points over workers
		c.World.Workers = 1
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return buildSimulator(&c)
	}

	ctx, cancel := signalContext()
	defer cancel()
	search := optim.NewGridSearch(names, ranges, cfg.World.Workers)
	logger.Info("sweeping", "scene", cfg.Scene, "points", len(search.Points()), "metric", sweepMetric)
	points, err := search.Search(ctx, simConfig(cfg), build, sweepMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(sweepMetric))
	for _, p := range points[:min(len(points), max(sweepTop, 1))] {
		for _, name := range names {
			fmt.Fprintf(w, "%g\t", p.Params[name])
		}
		fmt.Fprintf(w, "%.6g\n", p.Value)
	}
	return w.Flush()
}
