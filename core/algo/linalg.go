package algo

import (
	"errors"
	"fmt"
	"math"
)

// DefaultPivotTolerance is the smallest pivot magnitude accepted by Solve.
const DefaultPivotTolerance = 1e-12

// Errors returned by the solvers.
var (
	ErrSingular     = errors.New("matrix is singular or near-singular")
	ErrNotConverged = errors.New("iteration did not converge")
)

// Solve solves a·x = b with Gaussian elimination and partial pivoting.
// The inputs are copied and left untouched.
func Solve(a [][]float64, b []float64, pivotTol float64) ([]float64, error) {
	n := len(a)
	if len(b) != n {
		return nil, fmt.Errorf("dimension mismatch: %d rows, %d constants", n, len(b))
	}
	if n == 0 {
		return []float64{}, nil
	}

	// Augmented copy [a | b]
	m := make([][]float64, n)
	for i := range n {
		if len(a[i]) != n {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(a[i]), n)
		}
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := range n {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < pivotTol {
			return nil, fmt.Errorf("%w: pivot %g at column %d", ErrSingular, m[pivot][col], col)
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := col + 1; row < n; row++ {
			f := m[row][col] / m[col][col]
			if f == 0 {
				continue
			}
			for k := col; k <= n; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for k := i + 1; k < n; k++ {
			sum -= m[i][k] * x[k]
		}
		x[i] = sum / m[i][i]
	}
	return x, nil
}

// SolveFixedPoint iterates x = q·x + r from x = 0 until the largest update is below tol.
// It returns the last iterate and the number of iterations performed. When maxIter is
// exhausted the iterate is returned together with ErrNotConverged.
func SolveFixedPoint(q [][]float64, r []float64, tol float64, maxIter int) ([]float64, int, error) {
	n := len(r)
	x := make([]float64, n)
	next := make([]float64, n)
	for iter := 1; iter <= maxIter; iter++ {
		delta := 0.0
		for i := range n {
			sum := r[i]
			for j, qij := range q[i] {
				sum += qij * x[j]
			}
			next[i] = sum
			delta = math.Max(delta, math.Abs(sum-x[i]))
		}
		x, next = next, x
		if delta < tol {
			return x, iter, nil
		}
	}
	return x, maxIter, fmt.Errorf("%w after %d iterations", ErrNotConverged, maxIter)
}
