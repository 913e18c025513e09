// Package vaspdata reads the subset of a VASP vaspout.h5 file that describes
// a structural optimization: per-step energies, forces, ion positions and
// lattice vectors. Datasets that are absent from a file are simply left nil
// on the ResultFile, so callers degrade to fewer plottable criteria instead
// of failing.
package vaspdata

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/hdf5"
)

// Dataset paths fixed by the VASP 6 vaspout.h5 schema.
const (
	EnergiesPath          = "intermediate/ion_dynamics/energies"
	ForcesPath            = "intermediate/ion_dynamics/forces"
	PositionsPath         = "intermediate/ion_dynamics/position_ions"
	LatticesPath          = "intermediate/ion_dynamics/lattice_vectors"
	SelectiveDynamicsPath = "input/poscar/selective_dynamics_ions"
)

var (
	// ErrNoIonDynamics marks files that open fine as HDF5 but contain none of
	// the ion-dynamics datasets, i.e. are not an optimization output.
	ErrNoIonDynamics = errors.New("no ion dynamics datasets found")
	// ErrStepMismatch marks files whose per-step datasets disagree on the
	// number of ionic steps.
	ErrStepMismatch = errors.New("per-step datasets disagree on step count")
)

// ResultFile holds the raw per-step data extracted from one vaspout.h5.
// All present datasets share NSteps; a nil field means the dataset was not
// in the file.
type ResultFile struct {
	Path   string
	NSteps int
	NIons  int

	Energies  *mat.Dense   // NSteps x ncols energy terms per step
	Forces    []*mat.Dense // per step, NIons x 3 (eV/Å)
	Positions []*mat.Dense // per step, NIons x 3, direct coordinates
	Lattices  []*mat.Dense // per step, 3 x 3 lattice vectors (Å)
}

// Name returns a short display label. Since most files are literally named
// "vaspout.h5", the parent directory is included to tell runs apart.
func (rf *ResultFile) Name() string {
	base := filepath.Base(rf.Path)
	if base == "vaspout.h5" {
		if dir := filepath.Base(filepath.Dir(rf.Path)); dir != "." && dir != string(filepath.Separator) {
			return filepath.Join(dir, base)
		}
	}
	return base
}

// HasForces reports whether force-based criteria can be derived.
func (rf *ResultFile) HasForces() bool { return len(rf.Forces) > 0 }

// HasPositions reports whether displacement criteria can be derived.
func (rf *ResultFile) HasPositions() bool { return len(rf.Positions) > 0 }

// HasLattices reports whether the cell volume can be derived.
func (rf *ResultFile) HasLattices() bool { return len(rf.Lattices) > 0 }

// Load opens path as an HDF5 container and extracts whichever of the known
// datasets are present. It fails when the file cannot be opened at all, when
// none of the ion-dynamics datasets exist, or when the present datasets
// disagree on the step count.
func Load(path string) (*ResultFile, error) {
	defer TimeTrack(time.Now(), "load "+path)

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rf := &ResultFile{Path: path, NSteps: -1}

	if err := rf.readEnergies(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rf.Forces, err = rf.readStepMatrices(f, ForcesPath); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rf.Positions, err = rf.readStepMatrices(f, PositionsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rf.Lattices, err = rf.readStepMatrices(f, LatticesPath); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rf.NSteps < 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoIonDynamics)
	}
	for _, m := range [][]*mat.Dense{rf.Forces, rf.Positions} {
		if len(m) > 0 {
			n, _ := m[0].Dims()
			rf.NIons = n
			break
		}
	}
	if err := rf.maskFrozenForces(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	Debugf("loaded %s: steps=%d ions=%d energies=%v forces=%v positions=%v lattices=%v",
		path, rf.NSteps, rf.NIons, rf.Energies != nil, rf.HasForces(), rf.HasPositions(), rf.HasLattices())
	return rf, nil
}

// checkSteps records or validates the leading (per-step) dimension.
func (rf *ResultFile) checkSteps(n int, what string) error {
	if rf.NSteps < 0 {
		rf.NSteps = n
		return nil
	}
	if n != rf.NSteps {
		return fmt.Errorf("%s has %d steps, expected %d: %w", what, n, rf.NSteps, ErrStepMismatch)
	}
	return nil
}

func (rf *ResultFile) readEnergies(f *hdf5.File) error {
	flat, dims, err := readFloats(f, EnergiesPath)
	if err != nil || flat == nil {
		return err
	}
	if len(dims) != 2 || dims[0] == 0 || dims[1] == 0 {
		return fmt.Errorf("%s: unexpected shape %v", EnergiesPath, dims)
	}
	if err := rf.checkSteps(dims[0], EnergiesPath); err != nil {
		return err
	}
	rf.Energies = mat.NewDense(dims[0], dims[1], flat)
	return nil
}

// readStepMatrices reads a (nsteps x rows x cols) dataset as one matrix per
// step, all sharing the flat backing slice.
func (rf *ResultFile) readStepMatrices(f *hdf5.File, name string) ([]*mat.Dense, error) {
	flat, dims, err := readFloats(f, name)
	if err != nil || flat == nil {
		return nil, err
	}
	if len(dims) != 3 || dims[0] == 0 || dims[1] == 0 || dims[2] == 0 {
		return nil, fmt.Errorf("%s: unexpected shape %v", name, dims)
	}
	if err := rf.checkSteps(dims[0], name); err != nil {
		return nil, err
	}
	rows, cols := dims[1], dims[2]
	out := make([]*mat.Dense, dims[0])
	for i := range out {
		out[i] = mat.NewDense(rows, cols, flat[i*rows*cols:(i+1)*rows*cols])
	}
	return out, nil
}

// maskFrozenForces zeroes force components of frozen degrees of freedom when
// the file carries a selective-dynamics mask. Frozen ions can report large
// residual forces that the optimizer never acts on, which would otherwise
// dominate the force criteria.
func (rf *ResultFile) maskFrozenForces(f *hdf5.File) error {
	if !rf.HasForces() {
		return nil
	}
	mask, dims, err := readInts(f, SelectiveDynamicsPath)
	if err != nil || mask == nil {
		return err
	}
	if len(dims) != 2 || dims[0] != rf.NIons || dims[1] != 3 {
		return fmt.Errorf("%s: unexpected shape %v for %d ions", SelectiveDynamicsPath, dims, rf.NIons)
	}
	frozen := 0
	for i := 0; i < rf.NIons; i++ {
		for j := 0; j < 3; j++ {
			if mask[i*3+j] != 0 {
				continue
			}
			frozen++
			for _, step := range rf.Forces {
				step.Set(i, j, 0)
			}
		}
	}
	if frozen > 0 {
		Debugf("selective dynamics: zeroed %d frozen force components in %s", frozen, rf.Path)
	}
	return nil
}

// readFloats reads a float64 dataset as a flat slice plus its dimensions.
// A dataset that is not present yields (nil, nil, nil).
func readFloats(f *hdf5.File, name string) ([]float64, []int, error) {
	dset, err := f.OpenDataset(name)
	if err != nil {
		return nil, nil, nil
	}
	defer dset.Close()
	dims, err := datasetDims(dset)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	buf := make([]float64, n)
	if n > 0 {
		if err := dset.Read(&buf); err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", name, err)
		}
	}
	return buf, dims, nil
}

// readInts mirrors readFloats for integer-typed datasets (the mask).
func readInts(f *hdf5.File, name string) ([]int32, []int, error) {
	dset, err := f.OpenDataset(name)
	if err != nil {
		return nil, nil, nil
	}
	defer dset.Close()
	dims, err := datasetDims(dset)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	buf := make([]int32, n)
	if n > 0 {
		if err := dset.Read(&buf); err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", name, err)
		}
	}
	return buf, dims, nil
}

func datasetDims(dset *hdf5.Dataset) ([]int, error) {
	space := dset.Space()
	defer space.Close()
	udims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	dims := make([]int, len(udims))
	for i, d := range udims {
		dims[i] = int(d)
	}
	return dims, nil
}
