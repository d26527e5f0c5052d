// Package optim searches scene parameters for the values that minimise a
// run metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/rigidsim/internal/sim"
)

var ErrNoPoints = errors.New("optim: empty search grid")

// Point is one evaluated combination of the grid.
type Point struct {
	Params map[string]float64
	Value  float64
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

// NewGridSearch searches the cartesian product of ranges, one range per
// name, running up to workers simulations at once.
func NewGridSearch(params []string, ranges [][]float64, workers int) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: max(workers, 1)}
}

// Points enumerates the grid with the first parameter varying slowest.
func (g *GridSearch) Points() []map[string]float64 {
	if len(g.paramNames) == 0 || len(g.paramNames) != len(g.ranges) {
		return nil
	}
	var out []map[string]float64
	g.enumerate(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		point := make(map[string]float64, len(current))
		for k, v := range current {
			point[k] = v
		}
		*out = append(*out, point)
		return
	}
	for _, val := range g.ranges[depth] {
		current[g.paramNames[depth]] = val
		g.enumerate(depth+1, current, out)
	}
}

// Search evaluates every grid point and returns them sorted by metric,
// lowest first. A build or run failure aborts the search. A point whose
// result lacks the metric scores +Inf.
func (g *GridSearch) Search(
	ctx context.Context,
	cfg sim.Config,
	build func(params map[string]float64) (*sim.Simulator, error),
	metricName string,
) ([]Point, error) {
	points := g.Points()
	if len(points) == 0 {
		return nil, ErrNoPoints
	}

	builds := make([]func() (*sim.Simulator, error), len(points))
	for i, params := range points {
		params := params
		builds[i] = func() (*sim.Simulator, error) {
			s, err := build(params)
			if err != nil {
				return nil, fmt.Errorf("params %v: %w", params, err)
			}
			return s, nil
		}
	}
	results, err := sim.NewEnsemble(g.workers, builds...).Run(ctx, cfg)
	if err != nil {
		return nil, err
	}

	out := make([]Point, len(points))
	for i, r := range results {
		val, ok := r.Metrics[metricName]
		if !ok || math.IsNaN(val) {
			val = math.Inf(1)
		}
		out[i] = Point{Params: points[i], Value: val}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}
