package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/analysis"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/storage"
)

// parseChannel maps a channel name to its extractor. Body channels take the
// sampled body index after a colon, as in height:2.
func parseChannel(name string) (analysis.Extractor, error) {
	base, arg, indexed := strings.Cut(name, ":")
	index := 0
	if indexed {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid body index in channel %q", name)
		}
		index = n
	}
	switch base {
	case "energy":
		return analysis.TotalEnergy, nil
	case "kinetic":
		return analysis.KineticEnergy, nil
	case "potential":
		return func(s sim.Sample) float64 { return s.PotentialEnergy }, nil
	case "awake":
		return analysis.Awake, nil
	case "islands":
		return func(s sim.Sample) float64 { return float64(s.Islands) }, nil
	case "contacts":
		return func(s sim.Sample) float64 { return float64(s.Manifolds) }, nil
	case "separation":
		return func(s sim.Sample) float64 { return s.MinSeparation }, nil
	case "height":
		return analysis.BodyHeight(index), nil
	case "speed":
		return analysis.BodySpeed(index), nil
	}
	return nil, fmt.Errorf("unknown channel: %s", name)
}

func listRuns(cmd *cobra.Command, args []string) error {
	stored, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tPRESET\tSEED\tSTEPS\tTIMESTAMP")
	for _, r := range stored {
		p := r.Preset
		if p == "" {
			p = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.Scene, p, r.Seed, r.Steps, r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	samples, err := storage.New(dataDir).LoadSamples(args[0])
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("run %s has no samples", args[0])
	}

	channels := []string{"kinetic", "energy", "awake"}
	if plotChannel != "" {
		channels = []string{plotChannel}
	}
	for _, name := range channels {
		f, err := parseChannel(name)
		if err != nil {
			return err
		}
		data := analysis.Channel(samples, f)
		fmt.Println(asciigraph.Plot(data, asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption(name)))
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	f, err := parseChannel(channel)
	if err != nil {
		return err
	}

	data := analysis.Channel(samples, f)
	interval := meta.Dt * float64(max(meta.SampleEvery, 1))
	freq := analysis.DominantFrequency(data, interval)

	fmt.Printf("run: %s (%s, seed %d)\n", meta.ID, meta.Scene, meta.Seed)
	fmt.Printf("channel: %s, %d samples every %gs\n", channel, len(data), interval)
	if freq > 0 {
		fmt.Printf("dominant frequency: %.4f Hz (period %.4f s)\n", freq, 1/freq)
	} else {
		fmt.Println("dominant frequency: none")
	}

	if ps := analysis.PowerSpectrum(data); len(ps) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(ps[1:], asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption("power spectrum")))
	}

	if phase {
		index := 0
		if _, arg, ok := strings.Cut(channel, ":"); ok {
			index, _ = strconv.Atoi(arg)
		}
		portrait := analysis.NewPhasePortrait(samples, analysis.BodyHeight(index), analysis.BodySpeed(index))
		fmt.Println()
		fmt.Printf("phase portrait of body %d (height vs speed)\n", index)
		fmt.Println(portrait.ASCII(60, 20))
	}
	return nil
}

func compareRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	a, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	b, err := st.LoadSamples(args[1])
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	if analysis.Identical(a, b) {
		fmt.Printf("runs are identical over %d samples\n", len(a))
		return nil
	}
	div := analysis.Divergence(a, b)
	worst := 0.0
	for _, d := range div {
		worst = math.Max(worst, d)
	}
	interval := meta.Dt * float64(max(meta.SampleEvery, 1))
	fmt.Printf("compared %d samples\n", len(div))
	fmt.Printf("max rms distance: %g\n", worst)
	fmt.Printf("separation rate: %.4f 1/s\n", analysis.SeparationRate(div, interval, 1e-12))
	fmt.Println()
	fmt.Println(asciigraph.Plot(div, asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption("rms distance")))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	result := &sim.Result{
		Samples:    samples,
		Metrics:    meta.Metrics,
		StepsTaken: meta.Steps,
		Elapsed:    meta.Elapsed,
	}
	if jsonPath == "" {
		return storage.WriteJSON(os.Stdout, meta.RunInfo, result)
	}
	if err := storage.ExportJSON(jsonPath, meta.RunInfo, result); err != nil {
		return err
	}
	logger.Info("exported", "id", meta.ID, "path", jsonPath)
	return nil
}
