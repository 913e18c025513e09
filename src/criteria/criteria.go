// Package criteria derives convergence metrics from the raw per-step data of
// a ResultFile. Every derivation is pure and recomputed on demand; a metric
// whose raw dataset is absent reports ErrUnavailable instead of failing hard.
package criteria

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/vasp-tools/vasp-opt-follows/src/vaspdata"
)

// Criterion names one convergence metric.
type Criterion string

const (
	Energy          Criterion = "energy"
	EnergyDelta     Criterion = "energy_delta"
	ForceRMS        Criterion = "force_rms"
	ForceMax        Criterion = "force_max"
	DisplacementRMS Criterion = "displacement_rms"
	DisplacementMax Criterion = "displacement_max"
	Drift           Criterion = "drift"
	Volume          Criterion = "volume"
)

// EnergyColumn selects which column of the energies dataset the energy
// criteria read. VASP 6 stores the total energy in column 1; files with
// fewer columns fall back to the last one.
const EnergyColumn = 1

// ErrUnavailable reports that the raw dataset a criterion needs is not in
// the file. Callers skip the criterion rather than surfacing an error.
var ErrUnavailable = errors.New("required dataset missing")

// All lists every criterion in display order.
func All() []Criterion {
	return []Criterion{
		Energy, EnergyDelta,
		ForceRMS, ForceMax,
		DisplacementRMS, DisplacementMax, Drift,
		Volume,
	}
}

// Label returns the human-readable label with units.
func (c Criterion) Label() string {
	switch c {
	case Energy:
		return "Energy (eV)"
	case EnergyDelta:
		return "|ΔE| (eV)"
	case ForceRMS:
		return "Force RMS (eV/Å)"
	case ForceMax:
		return "Force Max (eV/Å)"
	case DisplacementRMS:
		return "Displacement RMS"
	case DisplacementMax:
		return "Displacement Max"
	case Drift:
		return "Drift from start"
	case Volume:
		return "Cell Volume (Å³)"
	}
	return string(c)
}

// Series is one plottable sequence. Values[i] belongs to ionic step
// StartStep+i; difference-based criteria start at step 1.
type Series struct {
	Criterion Criterion
	StartStep int
	Values    []float64
}

// Compute derives the requested criterion from rf. It returns ErrUnavailable
// (wrapped) when the required raw dataset is absent.
func Compute(rf *vaspdata.ResultFile, c Criterion) (Series, error) {
	if rf == nil {
		return Series{}, fmt.Errorf("%s: %w", c, ErrUnavailable)
	}
	switch c {
	case Energy:
		vals, err := energyColumn(rf)
		if err != nil {
			return Series{}, err
		}
		return Series{Criterion: c, Values: vals}, nil
	case EnergyDelta:
		vals, err := energyColumn(rf)
		if err != nil {
			return Series{}, err
		}
		out := make([]float64, 0, max(len(vals)-1, 0))
		for i := 1; i < len(vals); i++ {
			out = append(out, math.Abs(vals[i]-vals[i-1]))
		}
		return Series{Criterion: c, StartStep: 1, Values: out}, nil
	case ForceRMS:
		return perStepForces(rf, c, rmsOfNorms)
	case ForceMax:
		return perStepForces(rf, c, maxOfNorms)
	case DisplacementRMS:
		return perStepDisplacements(rf, c, rmsOfNorms)
	case DisplacementMax:
		return perStepDisplacements(rf, c, maxOfNorms)
	case Drift:
		return driftSeries(rf)
	case Volume:
		return volumeSeries(rf)
	}
	return Series{}, fmt.Errorf("unknown criterion %q", c)
}

// Available filters All down to the criteria computable for rf.
func Available(rf *vaspdata.ResultFile) []Criterion {
	out := make([]Criterion, 0, len(All()))
	for _, c := range All() {
		if _, err := Compute(rf, c); err == nil {
			out = append(out, c)
		}
	}
	return out
}

func energyColumn(rf *vaspdata.ResultFile) ([]float64, error) {
	if rf.Energies == nil {
		return nil, fmt.Errorf("%s: %w", vaspdata.EnergiesPath, ErrUnavailable)
	}
	rows, cols := rf.Energies.Dims()
	col := EnergyColumn
	if col >= cols {
		col = cols - 1
	}
	out := make([]float64, rows)
	mat.Col(out, col, rf.Energies)
	return out, nil
}

// rowNorms returns the Euclidean norm of every row of m.
func rowNorms(m *mat.Dense) []float64 {
	n, _ := m.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = floats.Norm(m.RawRowView(i), 2)
	}
	return out
}

// rmsOfNorms reduces a per-ion matrix to the RMS of its row norms, which is
// the Frobenius norm scaled by sqrt(rows).
func rmsOfNorms(m *mat.Dense) float64 {
	n, _ := m.Dims()
	if n == 0 {
		return 0
	}
	return mat.Norm(m, 2) / math.Sqrt(float64(n))
}

func maxOfNorms(m *mat.Dense) float64 {
	norms := rowNorms(m)
	if len(norms) == 0 {
		return 0
	}
	return floats.Max(norms)
}

func perStepForces(rf *vaspdata.ResultFile, c Criterion, reduce func(*mat.Dense) float64) (Series, error) {
	if !rf.HasForces() {
		return Series{}, fmt.Errorf("%s: %w", vaspdata.ForcesPath, ErrUnavailable)
	}
	out := make([]float64, len(rf.Forces))
	for i, step := range rf.Forces {
		out[i] = reduce(step)
	}
	return Series{Criterion: c, Values: out}, nil
}

func perStepDisplacements(rf *vaspdata.ResultFile, c Criterion, reduce func(*mat.Dense) float64) (Series, error) {
	if !rf.HasPositions() {
		return Series{}, fmt.Errorf("%s: %w", vaspdata.PositionsPath, ErrUnavailable)
	}
	out := make([]float64, 0, max(len(rf.Positions)-1, 0))
	var d mat.Dense
	for i := 1; i < len(rf.Positions); i++ {
		d.Sub(rf.Positions[i], rf.Positions[i-1])
		out = append(out, reduce(&d))
	}
	return Series{Criterion: c, StartStep: 1, Values: out}, nil
}

// driftSeries sums, over all ions, the distance each has moved since step 0.
func driftSeries(rf *vaspdata.ResultFile) (Series, error) {
	if !rf.HasPositions() {
		return Series{}, fmt.Errorf("%s: %w", vaspdata.PositionsPath, ErrUnavailable)
	}
	out := make([]float64, 0, max(len(rf.Positions)-1, 0))
	var d mat.Dense
	for i := 1; i < len(rf.Positions); i++ {
		d.Sub(rf.Positions[i], rf.Positions[0])
		out = append(out, floats.Sum(rowNorms(&d)))
	}
	return Series{Criterion: Drift, StartStep: 1, Values: out}, nil
}

func volumeSeries(rf *vaspdata.ResultFile) (Series, error) {
	if !rf.HasLattices() {
		return Series{}, fmt.Errorf("%s: %w", vaspdata.LatticesPath, ErrUnavailable)
	}
	out := make([]float64, len(rf.Lattices))
	for i, l := range rf.Lattices {
		out[i] = math.Abs(mat.Det(l))
	}
	return Series{Criterion: Volume, Values: out}, nil
}
