package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/san-kum/pwampc/internal/sim"
)

type ExportData struct {
	Problem    string             `json:"problem"`
	Controller string             `json:"controller"`
	Horizon    int                `json:"horizon"`
	Steps      int                `json:"steps"`
	States     [][]float64        `json:"states"`
	Controls   [][]float64        `json:"controls"`
	Metrics    map[string]float64 `json:"metrics"`
	Errors     []string           `json:"errors,omitempty"`
}

func NewExportData(meta RunMetadata, result *sim.Result) ExportData {
	data := ExportData{
		Problem:    meta.Problem,
		Controller: meta.Controller,
		Horizon:    meta.Horizon,
		Steps:      result.StepsTaken,
		States:     make([][]float64, len(result.States)),
		Controls:   make([][]float64, len(result.Controls)),
		Metrics:    result.Metrics,
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}
	for _, e := range result.Errors {
		data.Errors = append(data.Errors, e.Error())
	}
	return data
}

// ExportJSON writes the run as a single indented JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, result *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewExportData(meta, result)); err != nil {
		return errors.Wrap(err, "could not encode export")
	}
	return nil
}

func ExportJSONFile(path string, meta RunMetadata, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create export file")
	}
	defer f.Close()
	return ExportJSON(f, meta, result)
}
