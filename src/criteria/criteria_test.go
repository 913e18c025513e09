package criteria

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/vasp-tools/vasp-opt-follows/src/vaspdata"
)

const tol = 1e-12

func almostEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// stepMats builds per-step nions x 3 matrices from row-major step data.
func stepMats(nions int, steps ...[]float64) []*mat.Dense {
	out := make([]*mat.Dense, len(steps))
	for i, s := range steps {
		out[i] = mat.NewDense(nions, 3, s)
	}
	return out
}

func TestEnergyReturnsExactSequence(t *testing.T) {
	// 5 ionic steps; column 1 carries the total energy.
	want := []float64{-10.1, -10.3, -10.35, -10.36, -10.36}
	flat := make([]float64, 0, 10)
	for _, e := range want {
		flat = append(flat, e+1.0, e) // column 0 is a dummy term
	}
	rf := &vaspdata.ResultFile{NSteps: 5, Energies: mat.NewDense(5, 2, flat)}

	s, err := Compute(rf, Energy)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if s.StartStep != 0 {
		t.Fatalf("StartStep=%d want 0", s.StartStep)
	}
	if !almostEqual(s.Values, want) {
		t.Fatalf("got %v want %v", s.Values, want)
	}
}

func TestEnergySingleColumnFallback(t *testing.T) {
	rf := &vaspdata.ResultFile{NSteps: 2, Energies: mat.NewDense(2, 1, []float64{-1.5, -2.5})}
	s, err := Compute(rf, Energy)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !almostEqual(s.Values, []float64{-1.5, -2.5}) {
		t.Fatalf("got %v", s.Values)
	}
}

func TestEnergyDelta(t *testing.T) {
	rf := &vaspdata.ResultFile{NSteps: 4, Energies: mat.NewDense(4, 2, []float64{
		0, -10.0,
		0, -10.4,
		0, -10.3,
		0, -10.3,
	})}
	s, err := Compute(rf, EnergyDelta)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if s.StartStep != 1 {
		t.Fatalf("StartStep=%d want 1", s.StartStep)
	}
	if !almostEqual(s.Values, []float64{0.4, 0.1, 0.0}) {
		t.Fatalf("got %v", s.Values)
	}
}

func TestEnergyDeltaSingleStep(t *testing.T) {
	rf := &vaspdata.ResultFile{NSteps: 1, Energies: mat.NewDense(1, 1, []float64{-3})}
	s, err := Compute(rf, EnergyDelta)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(s.Values) != 0 {
		t.Fatalf("single step should yield empty delta, got %v", s.Values)
	}
}

func TestForceCriteria(t *testing.T) {
	// Two ions: norms 5 and 0 in step 0, norms 1 and 1 in step 1.
	rf := &vaspdata.ResultFile{NSteps: 2, NIons: 2, Forces: stepMats(2,
		[]float64{3, 4, 0, 0, 0, 0},
		[]float64{1, 0, 0, 0, 1, 0},
	)}

	maxS, err := Compute(rf, ForceMax)
	if err != nil {
		t.Fatalf("ForceMax: %v", err)
	}
	if !almostEqual(maxS.Values, []float64{5, 1}) {
		t.Fatalf("max got %v", maxS.Values)
	}

	rmsS, err := Compute(rf, ForceRMS)
	if err != nil {
		t.Fatalf("ForceRMS: %v", err)
	}
	want := []float64{math.Sqrt(25.0 / 2.0), 1}
	if !almostEqual(rmsS.Values, want) {
		t.Fatalf("rms got %v want %v", rmsS.Values, want)
	}
}

func TestDisplacementCriteria(t *testing.T) {
	zero := make([]float64, 6)
	step1 := []float64{1, 0, 0, 0, 2, 0} // ion norms 1 and 2
	rf := &vaspdata.ResultFile{NSteps: 2, NIons: 2, Positions: stepMats(2, zero, step1)}

	maxS, err := Compute(rf, DisplacementMax)
	if err != nil {
		t.Fatalf("DisplacementMax: %v", err)
	}
	if maxS.StartStep != 1 || !almostEqual(maxS.Values, []float64{2}) {
		t.Fatalf("max got start=%d %v", maxS.StartStep, maxS.Values)
	}

	rmsS, err := Compute(rf, DisplacementRMS)
	if err != nil {
		t.Fatalf("DisplacementRMS: %v", err)
	}
	if !almostEqual(rmsS.Values, []float64{math.Sqrt(5.0 / 2.0)}) {
		t.Fatalf("rms got %v", rmsS.Values)
	}
}

func TestDriftAccumulatesFromStart(t *testing.T) {
	zero := make([]float64, 3)
	rf := &vaspdata.ResultFile{NSteps: 3, NIons: 1, Positions: stepMats(1,
		zero,
		[]float64{1, 0, 0},
		[]float64{1, 1, 0},
	)}
	s, err := Compute(rf, Drift)
	if err != nil {
		t.Fatalf("Drift: %v", err)
	}
	want := []float64{1, math.Sqrt2}
	if s.StartStep != 1 || !almostEqual(s.Values, want) {
		t.Fatalf("got start=%d %v want %v", s.StartStep, s.Values, want)
	}
}

func TestVolume(t *testing.T) {
	cube := []float64{4, 0, 0, 0, 4, 0, 0, 0, 4}
	sheared := []float64{4, 0, 0, 1, 4, 0, 0, 0, 4} // shear keeps the volume
	rf := &vaspdata.ResultFile{NSteps: 2, Lattices: stepMats(3, cube, sheared)}
	s, err := Compute(rf, Volume)
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	if !almostEqual(s.Values, []float64{64, 64}) {
		t.Fatalf("got %v", s.Values)
	}
}

func TestMissingDatasetIsUnavailable(t *testing.T) {
	rf := &vaspdata.ResultFile{NSteps: 3} // no datasets at all
	for _, c := range All() {
		_, err := Compute(rf, c)
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("%s: got %v want ErrUnavailable", c, err)
		}
	}
	if _, err := Compute(nil, Energy); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("nil file: got %v want ErrUnavailable", err)
	}
}

func TestUnknownCriterion(t *testing.T) {
	rf := &vaspdata.ResultFile{NSteps: 1, Energies: mat.NewDense(1, 1, []float64{0})}
	if _, err := Compute(rf, Criterion("banana")); err == nil {
		t.Fatalf("expected error for unknown criterion")
	}
}

func TestAvailableFilters(t *testing.T) {
	rf := &vaspdata.ResultFile{NSteps: 2, Energies: mat.NewDense(2, 1, []float64{-1, -2})}
	got := Available(rf)
	want := []Criterion{Energy, EnergyDelta}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestSeriesLengthsMatchStepCount(t *testing.T) {
	nsteps := 4
	flatE := make([]float64, nsteps)
	steps := make([][]float64, nsteps)
	for i := range steps {
		steps[i] = []float64{float64(i), 0, 0}
		flatE[i] = -float64(i)
	}
	rf := &vaspdata.ResultFile{
		NSteps:    nsteps,
		NIons:     1,
		Energies:  mat.NewDense(nsteps, 1, flatE),
		Forces:    stepMats(1, steps...),
		Positions: stepMats(1, steps...),
	}
	for _, c := range Available(rf) {
		s, err := Compute(rf, c)
		if err != nil {
			t.Fatalf("%s: %v", c, err)
		}
		if len(s.Values)+s.StartStep != nsteps {
			t.Fatalf("%s: StartStep=%d len=%d does not cover %d steps", c, s.StartStep, len(s.Values), nsteps)
		}
	}
}
