// Package storage persists closed-loop runs and explicit solutions under a
// base directory, one subdirectory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/san-kum/pwampc/internal/sim"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
	regionsFile    = "regions.json"
	lockFile       = ".lock"

	lockRetries = 50
	lockBackoff = 20 * time.Millisecond
)

// ErrRunNotFound is returned when a run id has no metadata on disk.
var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return errors.Wrap(err, "could not create data directory")
	}
	return nil
}

// RunMetadata describes one stored run. Kind is "simulation" or "explicit".
type RunMetadata struct {
	ID         string             `json:"id"`
	Kind       string             `json:"kind"`
	Problem    string             `json:"problem"`
	Timestamp  time.Time          `json:"timestamp"`
	Controller string             `json:"controller"`
	Horizon    int                `json:"horizon"`
	Steps      int                `json:"steps"`
	X0         []float64          `json:"x0,omitempty"`
	Regions    int                `json:"regions,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
}

const (
	KindSimulation = "simulation"
	KindExplicit   = "explicit"
)

// withLock serialises writers sharing the base directory.
func (s *Store) withLock(fn func() error) error {
	fileLock := flock.New(filepath.Join(s.baseDir, lockFile))

	locked := false
	for i := 0; i < lockRetries; i++ {
		ok, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrap(err, "could not acquire data directory lock")
		}
		if ok {
			locked = true
			break
		}
		time.Sleep(lockBackoff)
	}
	if !locked {
		return errors.New("could not acquire data directory lock: timed out")
	}
	defer fileLock.Unlock()

	return fn()
}

func (s *Store) newRun(meta *RunMetadata) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", errors.Wrap(err, "could not create run directory")
	}
	return runDir, nil
}

// Save writes metadata.json and trajectory.csv for a closed-loop result and
// returns the new run id.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	if result == nil {
		return "", errors.New("storage: nil result")
	}
	meta.Kind = KindSimulation
	meta.Steps = result.StepsTaken
	if meta.Metrics == nil {
		meta.Metrics = result.Metrics
	}
	for _, e := range result.Errors {
		meta.Errors = append(meta.Errors, e.Error())
	}

	err := s.withLock(func() error {
		runDir, err := s.newRun(&meta)
		if err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
			return err
		}
		return writeTrajectory(filepath.Join(runDir, trajectoryFile), result)
	})
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", filepath.Base(path))
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "could not encode %s", filepath.Base(path))
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "could not decode %s", filepath.Base(path))
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeTrajectory stores one row per sample: step, state, then the input
// applied at that step. The final state has no input, so its u columns are
// empty.
func writeTrajectory(path string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create trajectory file")
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	nx := len(result.States[0])
	nu := 0
	for _, u := range result.Controls {
		if len(u) > nu {
			nu = len(u)
		}
	}

	header := []string{"step"}
	for i := 0; i < nx; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < nu; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "could not write trajectory header")
	}

	for t, x := range result.States {
		row := []string{strconv.Itoa(t)}
		for _, v := range x {
			row = append(row, formatFloat(v))
		}
		for i := 0; i < nu; i++ {
			if t < len(result.Controls) && i < len(result.Controls[t]) {
				row = append(row, formatFloat(result.Controls[t][i]))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "could not write trajectory row")
		}
	}

	w.Flush()
	return errors.Wrap(w.Error(), "could not flush trajectory file")
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, errors.Wrap(err, "could not read data directory")
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		var meta RunMetadata
		if err := readJSON(filepath.Join(s.baseDir, entry.Name(), metadataFile), &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.baseDir, runID, metadataFile), &meta); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrap(ErrRunNotFound, runID)
		}
		return nil, err
	}
	return &meta, nil
}

// LoadStates reads back the state and input columns of a stored trajectory.
// Inputs are nil for rows without one.
func (s *Store) LoadStates(runID string) ([]sim.State, []sim.Control, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.Wrap(ErrRunNotFound, runID)
		}
		return nil, nil, errors.Wrap(err, "could not open trajectory file")
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not parse trajectory file")
	}
	if len(records) < 2 {
		return []sim.State{}, []sim.Control{}, nil
	}

	nx := 0
	for _, col := range records[0][1:] {
		if len(col) > 0 && col[0] == 'x' {
			nx++
		}
	}

	states := make([]sim.State, 0, len(records)-1)
	controls := make([]sim.Control, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 1+nx {
			continue
		}
		x := make(sim.State, nx)
		for i := range x {
			v, err := strconv.ParseFloat(record[1+i], 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "bad state value at step %s", record[0])
			}
			x[i] = v
		}
		states = append(states, x)

		var u sim.Control
		for _, cell := range record[1+nx:] {
			if cell == "" {
				u = nil
				break
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "bad input value at step %s", record[0])
			}
			u = append(u, v)
		}
		controls = append(controls, u)
	}

	return states, controls, nil
}
