// Package storage keeps finished runs on disk, one directory per run with
// metadata.json, series.csv and trajectory.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/sim"
)

// ErrCorruptRun reports a run directory whose files cannot be parsed.
var ErrCorruptRun = errors.New("storage: corrupt run")

const (
	metadataFile   = "metadata.json"
	seriesFile     = "series.csv"
	trajectoryFile = "trajectory.csv"
)

var (
	seriesHeader     = []string{"step", "time", "kinetic", "potential", "total", "awake", "islands", "manifolds", "min_separation"}
	trajectoryHeader = []string{"step", "time", "body", "px", "py", "pz", "qw", "qx", "qy", "qz", "vx", "vy", "vz", "wx", "wy", "wz", "sleeping"}
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was produced.
type RunInfo struct {
	Scene       string  `json:"scene"`
	Preset      string  `json:"preset,omitempty"`
	Seed        int64   `json:"seed"`
	Dt          float64 `json:"dt"`
	Duration    float64 `json:"duration"`
	SampleEvery int     `json:"sample_every"`
	Workers     int     `json:"workers"`
}

type RunMetadata struct {
	RunInfo
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Steps     int                `json:"steps"`
	Samples   int                `json:"samples"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes result into a new run directory and returns its id.
func (s *Store) Save(info RunInfo, result *sim.Result) (string, error) {
	now := time.Now()
	runID, runDir, err := s.newRunDir(info, now)
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		RunInfo:   info,
		ID:        runID,
		Timestamp: now,
		Steps:     result.StepsTaken,
		Samples:   len(result.Samples),
		Elapsed:   result.Elapsed,
		Metrics:   result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, seriesFile), seriesHeader, seriesRows(result.Samples)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, trajectoryFile), trajectoryHeader, trajectoryRows(result.Samples)); err != nil {
		return "", err
	}
	return runID, nil
}

// newRunDir creates a fresh directory, adding a counter when runs land in
// the same nanosecond.
func (s *Store) newRunDir(info RunInfo, now time.Time) (string, string, error) {
	if err := s.Init(); err != nil {
		return "", "", err
	}
	base := fmt.Sprintf("%s_s%d_%d", info.Scene, info.Seed, now.UnixNano())
	for i := 0; ; i++ {
		runID := base
		if i > 0 {
			runID = fmt.Sprintf("%s-%d", base, i)
		}
		dir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return runID, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func seriesRows(samples []sim.Sample) [][]string {
	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{
			strconv.Itoa(s.Step),
			ftoa(s.Time),
			ftoa(s.KineticEnergy),
			ftoa(s.PotentialEnergy),
			ftoa(s.TotalEnergy()),
			strconv.Itoa(s.Awake),
			strconv.Itoa(s.Islands),
			strconv.Itoa(s.Manifolds),
			ftoa(s.MinSeparation),
		})
	}
	return rows
}

func trajectoryRows(samples []sim.Sample) [][]string {
	var rows [][]string
	for _, s := range samples {
		for _, b := range s.Bodies {
			p, q, v, w := b.Position, b.Orientation, b.LinearVelocity, b.AngularVelocity
			rows = append(rows, []string{
				strconv.Itoa(s.Step), ftoa(s.Time), strconv.Itoa(b.ID),
				ftoa(p[0]), ftoa(p[1]), ftoa(p[2]),
				ftoa(q.W), ftoa(q.V[0]), ftoa(q.V[1]), ftoa(q.V[2]),
				ftoa(v[0]), ftoa(v[1]), ftoa(v[2]),
				ftoa(w[0]), ftoa(w[1]), ftoa(w[2]),
				strconv.FormatBool(b.Sleeping),
			})
		}
	}
	return rows
}

// List returns the stored runs, oldest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRun, runID, err)
	}
	return &meta, nil
}

// Delete removes a run directory.
func (s *Store) Delete(runID string) error {
	dir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// LoadSamples rebuilds the samples of a run from its series and trajectory
// files.
func (s *Store) LoadSamples(runID string) ([]sim.Sample, error) {
	dir := filepath.Join(s.baseDir, runID)
	series, err := readCSV(filepath.Join(dir, seriesFile), len(seriesHeader))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRun, runID, err)
	}

	samples := make([]sim.Sample, 0, len(series))
	byStep := make(map[int]int, len(series))
	for _, rec := range series {
		p := parser{rec: rec}
		smp := sim.Sample{
			Step:            p.integer(0),
			Time:            p.float(1),
			KineticEnergy:   p.float(2),
			PotentialEnergy: p.float(3),
			Awake:           p.integer(5),
			Islands:         p.integer(6),
			Manifolds:       p.integer(7),
			MinSeparation:   p.float(8),
		}
		if p.err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRun, runID, p.err)
		}
		byStep[smp.Step] = len(samples)
		samples = append(samples, smp)
	}

	traj, err := readCSV(filepath.Join(dir, trajectoryFile), len(trajectoryHeader))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRun, runID, err)
	}
	for _, rec := range traj {
		p := parser{rec: rec}
		step := p.integer(0)
		b := sim.BodySample{
			ID:              p.integer(2),
			Position:        p.vec(3),
			Orientation:     mgl64.Quat{W: p.float(6), V: p.vec(7)},
			LinearVelocity:  p.vec(10),
			AngularVelocity: p.vec(13),
			Sleeping:        p.boolean(16),
		}
		if p.err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRun, runID, p.err)
		}
		i, ok := byStep[step]
		if !ok {
			return nil, fmt.Errorf("%w: %s: trajectory step %d has no series row", ErrCorruptRun, runID, step)
		}
		samples[i].Bodies = append(samples[i].Bodies, b)
	}
	return samples, nil
}

// readCSV returns the records after the header, each with width fields.
func readCSV(path string, width int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = width
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("missing header")
	}
	return records[1:], nil
}

// parser keeps the first conversion error of a record.
type parser struct {
	rec []string
	err error
}

func (p *parser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.rec[i], 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) integer(i int) int {
	v, err := strconv.Atoi(p.rec[i])
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) boolean(i int) bool {
	v, err := strconv.ParseBool(p.rec[i])
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) vec(i int) mgl64.Vec3 {
	return mgl64.Vec3{p.float(i), p.float(i + 1), p.float(i + 2)}
}
