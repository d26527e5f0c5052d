package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/export"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/viz"
)

func newViewer(cfg *config.Config) (*viz.Model, error) {
	m, err := viz.NewModel(cfg.Scene, cfg.Dt, func() (*sim.Simulator, error) {
		return buildSimulator(cfg)
	})
	if err != nil {
		return nil, err
	}
	m.SetTheme(liveTheme)
	m.SetGIFPath(gifPath)
	return m, nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	m, err := newViewer(cfg)
	if err != nil {
		return err
	}
	if err := viz.Run(m); err != nil {
		return err
	}
	return m.Err()
}

func pickAndRun() error {
	names := registry.List()
	choices := make([]viz.Choice, len(names))
	for i, name := range names {
		choices[i] = viz.Choice{
			Name:        name,
			Description: registry.Describe(name),
			Presets:     config.ListPresets(name),
		}
	}
	return viz.RunPicker(choices, func(name, p string) (*viz.Model, error) {
		cfg := config.DefaultConfig()
		cfg.Scene = name
		if p != "" {
			if cfg = config.GetPreset(name, p); cfg == nil {
				return nil, fmt.Errorf("unknown preset: %s", p)
			}
		}
		return newViewer(cfg)
	})
}

// exportSVG simulates the scene to its end and draws the last frame.
func exportSVG(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	s, err := buildSimulator(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	if _, err := s.Run(ctx, simConfig(cfg)); err != nil {
		return err
	}

	frame := viz.BuildFrame(s.World(), viz.FrameOptions{Joints: true, Contacts: true})
	cam := viz.NewCamera()
	cam.Fit(frame.Bounds)
	svg := export.FrameToSVG(frame, cam, svgWidth, svgHeight, viz.GetTheme(svgTheme))
	if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
		return err
	}
	logger.Info("exported", "scene", cfg.Scene, "segments", len(frame.Segments), "path", svgPath)
	return nil
}

func listScenes(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENE\tDESCRIPTION")
	for _, name := range registry.List() {
		fmt.Fprintf(w, "%s\t%s\n", name, registry.Describe(name))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	scenes := config.PresetScenes()
	if len(args) > 0 {
		scenes = args
	}
	for _, name := range scenes {
		presets := config.ListPresets(name)
		if len(presets) == 0 {
			fmt.Printf("%s: no presets\n", name)
			continue
		}
		fmt.Printf("%s:\n", name)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	name, err := cmd.Flags().GetString("scene")
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	cfg.Scene = name
	if preset != "" {
		if cfg = config.GetPreset(name, preset); cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	logger.Info("config written", "path", args[0], "scene", name)
	return nil
}

