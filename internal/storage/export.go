package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/rigidsim/internal/sim"
)

type ExportData struct {
	RunInfo
	Steps   int                `json:"steps"`
	Times   []float64          `json:"times"`
	Samples []sim.Sample       `json:"samples"`
	Metrics map[string]float64 `json:"metrics"`
}

func newExportData(info RunInfo, result *sim.Result) ExportData {
	return ExportData{
		RunInfo: info,
		Steps:   result.StepsTaken,
		Times:   result.Times(),
		Samples: result.Samples,
		Metrics: result.Metrics,
	}
}

// ExportJSON writes the run to path as indented JSON.
func ExportJSON(path string, info RunInfo, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteJSON(file, info, result); err != nil {
		return err
	}
	return file.Close()
}

func WriteJSON(w io.Writer, info RunInfo, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(info, result))
}

// ReadJSON decodes a run written by WriteJSON.
func ReadJSON(r io.Reader) (*ExportData, error) {
	var data ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
