package storage

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/mpqp"
)

type regionRecord struct {
	ActiveSet []int       `json:"active_set"`
	A         [][]float64 `json:"a"`
	B         []float64   `json:"b"`
	K         [][]float64 `json:"k"`
	Offset    []float64   `json:"offset"`
	Vxx       [][]float64 `json:"vxx"`
	Vx        []float64   `json:"vx"`
	V0        float64     `json:"v0"`
}

type regionsFileData struct {
	Nx      int            `json:"nx"`
	Nu      int            `json:"nu"`
	Bound   float64        `json:"bound"`
	Regions []regionRecord `json:"regions"`
}

func rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func vec(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func dense(rs [][]float64, cols int) (*mat.Dense, error) {
	if len(rs) == 0 {
		return nil, errors.New("empty matrix")
	}
	m := mat.NewDense(len(rs), cols, nil)
	for i, r := range rs {
		if len(r) != cols {
			return nil, errors.Errorf("row %d has %d columns, want %d", i, len(r), cols)
		}
		m.SetRow(i, r)
	}
	return m, nil
}

func vecOf(v []float64, n int) (*mat.VecDense, error) {
	if len(v) != n {
		return nil, errors.Errorf("vector has length %d, want %d", len(v), n)
	}
	return mat.NewVecDense(n, append([]float64(nil), v...)), nil
}

// SaveExplicit stores an explicit solution as a run of kind "explicit" and
// returns its id.
func (s *Store) SaveExplicit(meta RunMetadata, sol *mpqp.ExplicitSolution) (string, error) {
	if sol == nil {
		return "", errors.New("storage: nil explicit solution")
	}
	meta.Kind = KindExplicit
	meta.Regions = len(sol.Regions())

	err := s.withLock(func() error {
		runDir, err := s.newRun(&meta)
		if err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
			return err
		}
		return writeJSON(filepath.Join(runDir, regionsFile), encodeRegions(sol))
	})
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

// SaveRegions attaches regions.json to an existing run.
func (s *Store) SaveRegions(runID string, sol *mpqp.ExplicitSolution) error {
	if _, err := s.Load(runID); err != nil {
		return err
	}
	return s.withLock(func() error {
		return writeJSON(filepath.Join(s.baseDir, runID, regionsFile), encodeRegions(sol))
	})
}

func encodeRegions(sol *mpqp.ExplicitSolution) regionsFileData {
	p := sol.Program()
	data := regionsFileData{Nx: p.Nx(), Nu: p.Nu(), Bound: sol.Bound()}
	for _, r := range sol.Regions() {
		data.Regions = append(data.Regions, regionRecord{
			ActiveSet: r.ActiveSet,
			A:         rows(r.Region.A()),
			B:         vec(r.Region.B()),
			K:         rows(r.K),
			Offset:    vec(r.Offset),
			Vxx:       rows(r.Vxx),
			Vx:        vec(r.Vx),
			V0:        r.V0,
		})
	}
	return data
}

// LoadRegions rebuilds the explicit solution stored for runID against p,
// which must have the same dimensions as the program it was computed from.
func (s *Store) LoadRegions(runID string, p *mpqp.Program) (*mpqp.ExplicitSolution, error) {
	var data regionsFileData
	if err := readJSON(filepath.Join(s.baseDir, runID, regionsFile), &data); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrap(ErrRunNotFound, runID)
		}
		return nil, err
	}
	if data.Nx != p.Nx() || data.Nu != p.Nu() {
		return nil, errors.Errorf("storage: stored regions are for nx=%d nu=%d, program has nx=%d nu=%d",
			data.Nx, data.Nu, p.Nx(), p.Nu())
	}

	nx, nu := data.Nx, data.Nu
	regions := make([]*mpqp.CriticalRegion, 0, len(data.Regions))
	for i, rec := range data.Regions {
		r, err := decodeRegion(rec, nx, nu)
		if err != nil {
			return nil, errors.Wrapf(err, "region %d", i)
		}
		regions = append(regions, r)
	}
	return mpqp.NewExplicitSolution(p, regions, mpqp.WithParameterBound(data.Bound)), nil
}

func decodeRegion(rec regionRecord, nx, nu int) (*mpqp.CriticalRegion, error) {
	a, err := dense(rec.A, nx)
	if err != nil {
		return nil, errors.Wrap(err, "constraint matrix")
	}
	b, err := vecOf(rec.B, len(rec.A))
	if err != nil {
		return nil, errors.Wrap(err, "constraint vector")
	}
	poly, err := geometry.NewPolyhedron(a, b)
	if err != nil {
		return nil, err
	}
	k, err := dense(rec.K, nx)
	if err != nil {
		return nil, errors.Wrap(err, "gain")
	}
	if r, _ := k.Dims(); r != nu {
		return nil, errors.Errorf("gain has %d rows, want %d", r, nu)
	}
	off, err := vecOf(rec.Offset, nu)
	if err != nil {
		return nil, errors.Wrap(err, "offset")
	}
	vxx, err := dense(rec.Vxx, nx)
	if err != nil {
		return nil, errors.Wrap(err, "value hessian")
	}
	vx, err := vecOf(rec.Vx, nx)
	if err != nil {
		return nil, errors.Wrap(err, "value gradient")
	}
	return &mpqp.CriticalRegion{
		ActiveSet: rec.ActiveSet,
		Region:    poly,
		K:         k,
		Offset:    off,
		Vxx:       vxx,
		Vx:        vx,
		V0:        rec.V0,
	}, nil
}
