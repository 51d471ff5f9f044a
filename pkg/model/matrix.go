package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a 6×6 transfer matrix in (x, x', y, y', z, δ) coordinates,
// indexed [row][column].
type Matrix [6][6]float64

// Identity returns the 6×6 identity matrix.
func Identity() Matrix {
	var m Matrix
	for i := range 6 {
		m[i][i] = 1
	}
	return m
}

// NaNMatrix returns a matrix with every entry NaN. It stands in for pairs
// whose names could not be resolved.
func NaNMatrix() Matrix {
	var m Matrix
	for i := range 6 {
		for j := range 6 {
			m[i][j] = math.NaN()
		}
	}
	return m
}

// IsNaN reports whether any entry is NaN.
func (m Matrix) IsNaN() bool {
	for i := range 6 {
		for j := range 6 {
			if math.IsNaN(m[i][j]) {
				return true
			}
		}
	}
	return false
}

// MatrixFromElements builds a matrix from the 36 elements R11..R66 in row
// major order.
func MatrixFromElements(e []float64) (Matrix, error) {
	var m Matrix
	if len(e) != 36 {
		return m, fmt.Errorf("need 36 matrix elements, got %d", len(e))
	}
	for i := range 6 {
		copy(m[i][:], e[i*6:i*6+6])
	}
	return m, nil
}

// Elements returns the 36 entries in row major order.
func (m Matrix) Elements() []float64 {
	out := make([]float64, 0, 36)
	for i := range 6 {
		out = append(out, m[i][:]...)
	}
	return out
}

func (m Matrix) dense() *mat.Dense {
	return mat.NewDense(6, 6, m.Elements())
}

func fromDense(d mat.Matrix) Matrix {
	var m Matrix
	for i := range 6 {
		for j := range 6 {
			m[i][j] = d.At(i, j)
		}
	}
	return m
}

// Mul returns m · b.
func (m Matrix) Mul(b Matrix) Matrix {
	var c mat.Dense
	c.Mul(m.dense(), b.dense())
	return fromDense(&c)
}

// Inverse returns m⁻¹ and the estimated condition number of m. Any matrix
// gonum cannot invert to working precision, exactly singular or with a
// condition number above mat.ConditionTolerance, yields ErrSingularMatrix.
func (m Matrix) Inverse() (Matrix, float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.dense()); err != nil {
		cond := math.Inf(1)
		var c mat.Condition
		if errors.As(err, &c) {
			cond = float64(c)
		}
		return Matrix{}, cond, ErrSingularMatrix
	}
	return fromDense(&inv), mat.Cond(m.dense(), 1), nil
}

// EqualApprox reports whether every entry of m and b differs by at most tol.
func (m Matrix) EqualApprox(b Matrix, tol float64) bool {
	return mat.EqualApprox(m.dense(), b.dense(), tol)
}

// String formats the matrix one row per line.
func (m Matrix) String() string {
	var sb strings.Builder
	for i := range 6 {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j := range 6 {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "% .6e", m[i][j])
		}
	}
	return sb.String()
}
