package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/scene"
	"github.com/san-kum/rigidsim/internal/storage"
)

var (
	dataDir     string
	logLevel    string
	configFile  string
	preset      string
	seed        int64
	dt          float64
	duration    float64
	sampleEvery int
	workers     int
	runs        int
	noSave      bool
	jsonOut     bool
	jsonPath    string
	svgPath     string
	svgTheme    string
	plotChannel string
	channel     string
	phase       bool
	liveTheme   string
	gifPath     string
	svgWidth    int
	svgHeight   int
	benchSteps  int
	sweepParams []string
	sweepMetric string
	sweepTop    int

	logger   *log.Logger
	registry = scene.NewRegistry()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rigidsim",
		Short:         "3D rigid body simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			logger = log.NewWithOptions(os.Stderr, log.Options{
				Level:           level,
				ReportTimestamp: true,
				TimeFormat:      time.Kitchen,
				Prefix:          "rigidsim",
			})
			return nil
		},
		// no subcommand opens the scene picker
		RunE: func(cmd *cobra.Command, args []string) error {
			return pickAndRun()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rigidsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a scene and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScene,
	}
	addSceneFlags(runCmd)
	runCmd.Flags().IntVar(&runs, "runs", 1, "independent runs with consecutive seeds")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the result")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as json")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotChannel, "channel", "", "single channel to plot (energy, kinetic, potential, awake, islands, contacts, separation, height:N, speed:N)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&channel, "channel", "height:0", "channel to analyze")
	analyzeCmd.Flags().BoolVar(&phase, "phase", false, "also draw the height/speed phase portrait of the body")

	compareCmd := &cobra.Command{
		Use:   "compare [run_a] [run_b]",
		Short: "measure how far two stored runs drift apart",
		Args:  cobra.ExactArgs(2),
		RunE:  compareRuns,
	}

	verifyCmd := &cobra.Command{
		Use:   "verify [scene]",
		Short: "check that serial and parallel solving give identical runs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  verifyScene,
	}
	addSceneFlags(verifyCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.New(dataDir).Delete(args[0]); err != nil {
				return err
			}
			logger.Info("run deleted", "id", args[0])
			return nil
		},
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&jsonPath, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [scene]",
		Short: "simulate a scene and draw its final frame as svg",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	addSceneFlags(exportSVGCmd)
	exportSVGCmd.Flags().StringVarP(&svgPath, "out", "o", "frame.svg", "output file")
	exportSVGCmd.Flags().StringVar(&svgTheme, "theme", "paper", "colour theme")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 600, "image height")

	liveCmd := &cobra.Command{
		Use:   "live [scene]",
		Short: "run a scene with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSceneFlags(liveCmd)
	liveCmd.Flags().StringVar(&liveTheme, "theme", "neon", "colour theme")
	liveCmd.Flags().StringVar(&gifPath, "gif", "rigidsim.gif", "recording output file")

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list available scenes",
		Args:  cobra.NoArgs,
		RunE:  listScenes,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scene]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [scene]",
		Short: "measure step throughput for several worker counts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScene,
	}
	addSceneFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchSteps, "steps", 300, "steps per measurement")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scene]",
		Short: "grid search parameters for the lowest metric value",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepScene,
	}
	addSceneFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "parameter range, name=a,b,c or name=from:to:step (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "max_penetration", "metric to minimise")
	sweepCmd.Flags().IntVar(&sweepTop, "top", 10, "rows to print")

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a config file to start from",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	initConfigCmd.Flags().StringVar(&preset, "preset", "", "start from a preset of --scene")
	initConfigCmd.Flags().String("scene", config.DefaultScene, "scene of the config")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, analyzeCmd, compareCmd, verifyCmd, deleteCmd,
		exportJSONCmd, exportSVGCmd, liveCmd, scenesCmd, presetsCmd, benchCmd, sweepCmd, initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// addSceneFlags registers the flags that select and override a scene
// config.
func addSceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds")
	cmd.Flags().IntVar(&sampleEvery, "sample-every", config.DefaultSampleEvery, "steps between samples")
	cmd.Flags().IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "island solver goroutines")
}
