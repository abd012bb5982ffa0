package belief

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingularCovariance is returned when the covariance of a conditioning
	// set cannot be inverted.
	ErrSingularCovariance = errors.New("belief: conditioning covariance is singular")
	// ErrEpochOrder is returned when an epoch is advanced out of sequence.
	ErrEpochOrder = errors.New("belief: epoch advanced out of order")
	// ErrDimension is returned for inputs whose length or node index does not
	// match the cluster.
	ErrDimension = errors.New("belief: dimension mismatch")
	// ErrEmptySelection is returned when a selector returns no nodes although
	// the full-suppression test failed.
	ErrEmptySelection = errors.New("belief: selector returned an empty subset")
)

// symmetryTolerance bounds |Σij − Σji| accepted for a noise covariance.
const symmetryTolerance = 1e-9

// Params holds the process model of one cluster. It is immutable once built.
type Params struct {
	C     *mat.VecDense // Offset, length m
	A     *mat.Dense    // Transition, m×m
	Sigma *mat.SymDense // Noise covariance, m×m
}

// NewParams builds Params from plain slices. a and sigma are row-major.
func NewParams(c []float64, a, sigma [][]float64) (Params, error) {
	m := len(c)
	if m == 0 {
		return Params{}, fmt.Errorf("%w: offset vector is empty", ErrDimension)
	}
	if err := checkSquare("a", a, m); err != nil {
		return Params{}, err
	}
	if err := checkSquare("sigma", sigma, m); err != nil {
		return Params{}, err
	}

	cv := mat.NewVecDense(m, append([]float64(nil), c...))
	am := mat.NewDense(m, m, nil)
	sm := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			am.Set(i, j, a[i][j])
		}
		if sigma[i][i] < 0 {
			return Params{}, fmt.Errorf("sigma[%d][%d] is negative: %g", i, i, sigma[i][i])
		}
		for j := i; j < m; j++ {
			if math.Abs(sigma[i][j]-sigma[j][i]) > symmetryTolerance {
				return Params{}, fmt.Errorf("sigma is not symmetric at (%d,%d): %g != %g", i, j, sigma[i][j], sigma[j][i])
			}
			sm.SetSym(i, j, 0.5*(sigma[i][j]+sigma[j][i]))
		}
	}
	return Params{C: cv, A: am, Sigma: sm}, nil
}

func checkSquare(name string, rows [][]float64, m int) error {
	if len(rows) != m {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrDimension, name, len(rows), m)
	}
	for i, row := range rows {
		if len(row) != m {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrDimension, name, i, len(row), m)
		}
	}
	return nil
}

// Nodes returns the number of nodes m.
func (p Params) Nodes() int {
	if p.C == nil {
		return 0
	}
	return p.C.Len()
}

// Validate checks that all three parts are present and agree on m.
func (p Params) Validate() error {
	if p.C == nil || p.A == nil || p.Sigma == nil {
		return fmt.Errorf("%w: process parameters are incomplete", ErrDimension)
	}
	m := p.C.Len()
	if r, c := p.A.Dims(); r != m || c != m {
		return fmt.Errorf("%w: a is %dx%d, want %dx%d", ErrDimension, r, c, m, m)
	}
	if p.Sigma.SymmetricDim() != m {
		return fmt.Errorf("%w: sigma is %dx%d, want %dx%d", ErrDimension, p.Sigma.SymmetricDim(), p.Sigma.SymmetricDim(), m, m)
	}
	return nil
}
