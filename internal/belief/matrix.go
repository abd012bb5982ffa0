package belief

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// subVec returns v restricted to idx, in idx order.
func subVec(v *mat.VecDense, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, p := range idx {
		out.SetVec(i, v.AtVec(p))
	}
	return out
}

// subSym returns the principal submatrix of s on idx.
func subSym(s *mat.SymDense, idx []int) *mat.SymDense {
	out := mat.NewSymDense(len(idx), nil)
	for i, p := range idx {
		for j := i; j < len(idx); j++ {
			out.SetSym(i, j, s.At(p, idx[j]))
		}
	}
	return out
}

// subBlock returns the rows×cols block of s.
func subBlock(s mat.Matrix, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, s.At(r, c))
		}
	}
	return out
}

// pack drops -1 entries from idx, preserving order. vals, when not nil, is
// filtered in step with idx.
func pack(idx []int, vals []float64) ([]int, []float64) {
	outIdx := make([]int, 0, len(idx))
	var outVals []float64
	if vals != nil {
		outVals = make([]float64, 0, len(vals))
	}
	for i, p := range idx {
		if p == -1 {
			continue
		}
		outIdx = append(outIdx, p)
		if vals != nil {
			outVals = append(outVals, vals[i])
		}
	}
	return outIdx, outVals
}

func checkIndices(idx []int, dim int) error {
	for _, p := range idx {
		if p < 0 || p >= dim {
			return fmt.Errorf("%w: position %d outside belief of dimension %d", ErrDimension, p, dim)
		}
	}
	return nil
}

// factorize returns the Cholesky factor of cov restricted to given.
func factorize(cov *mat.SymDense, given []int) (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(subSym(cov, given)); !ok {
		return nil, fmt.Errorf("%w: %d given entries", ErrSingularCovariance, len(given))
	}
	return &chol, nil
}

// Condition computes E[target | given = values] under N(mean, cov):
//
//	mean(t) + cov(t,g)·cov(g,g)⁻¹·(v − mean(g))
//
// Positions equal to -1 in target or given are ignored; values is aligned
// with given before compaction. The result is aligned with the compacted
// target.
func Condition(mean *mat.VecDense, cov *mat.SymDense, target, given []int, values []float64) ([]float64, error) {
	if len(values) != len(given) {
		return nil, fmt.Errorf("%w: %d values for %d given entries", ErrDimension, len(values), len(given))
	}
	target, _ = pack(target, nil)
	given, values = pack(given, values)
	dim := mean.Len()
	if err := checkIndices(target, dim); err != nil {
		return nil, err
	}
	if err := checkIndices(given, dim); err != nil {
		return nil, err
	}

	out := make([]float64, len(target))
	for i, p := range target {
		out[i] = mean.AtVec(p)
	}
	if len(target) == 0 || len(given) == 0 {
		return out, nil
	}

	chol, err := factorize(cov, given)
	if err != nil {
		return nil, err
	}
	diff := mat.NewVecDense(len(given), nil)
	for i, p := range given {
		diff.SetVec(i, values[i]-mean.AtVec(p))
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, diff); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularCovariance, err)
	}
	var adj mat.VecDense
	adj.MulVec(subBlock(cov, target, given), &w)
	for i := range out {
		out[i] += adj.AtVec(i)
	}
	return out, nil
}

// Regression returns the coefficient matrix K = cov(t,g)·cov(g,g)⁻¹ and the
// constant term mean(t) − K·mean(g), so that E[t | g = v] = constant + K·v.
// Positions equal to -1 in target are ignored; given must not contain -1.
func Regression(mean *mat.VecDense, cov *mat.SymDense, target, given []int) (*mat.Dense, []float64, error) {
	target, _ = pack(target, nil)
	dim := mean.Len()
	if err := checkIndices(target, dim); err != nil {
		return nil, nil, err
	}
	if err := checkIndices(given, dim); err != nil {
		return nil, nil, err
	}
	if len(target) == 0 || len(given) == 0 {
		return nil, nil, fmt.Errorf("%w: regression needs target and given entries", ErrDimension)
	}

	chol, err := factorize(cov, given)
	if err != nil {
		return nil, nil, err
	}
	// Solve cov(g,g)·X = cov(g,t); K = Xᵀ.
	var x mat.Dense
	if err := chol.SolveTo(&x, subBlock(cov, given, target)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingularCovariance, err)
	}
	k := mat.DenseCopyOf(x.T())

	var proj mat.VecDense
	proj.MulVec(k, subVec(mean, given))
	constant := make([]float64, len(target))
	for i, p := range target {
		constant[i] = mean.AtVec(p) - proj.AtVec(i)
	}
	return k, constant, nil
}
