package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drift(l float64) Matrix {
	m := Identity()
	m[0][1] = l
	m[2][3] = l
	return m
}

func thinQuad(k float64) Matrix {
	m := Identity()
	m[1][0] = -k
	m[3][2] = k
	return m
}

func TestMatrixMulIdentity(t *testing.T) {
	m := drift(2.5).Mul(thinQuad(0.3))
	assert.Equal(t, m, m.Mul(Identity()))
	assert.Equal(t, m, Identity().Mul(m))
}

func TestMatrixInverse(t *testing.T) {
	m := drift(3).Mul(thinQuad(0.7)).Mul(drift(1.2))

	inv, cond, err := m.Inverse()
	require.NoError(t, err)
	assert.False(t, math.IsInf(cond, 1))
	assert.True(t, m.Mul(inv).EqualApprox(Identity(), 1e-12))
	assert.True(t, inv.EqualApprox(drift(-1.2).Mul(thinQuad(-0.7)).Mul(drift(-3)), 1e-12))
}

func TestMatrixInverseSingular(t *testing.T) {
	var zero Matrix
	_, _, err := zero.Inverse()
	assert.True(t, errors.Is(err, ErrSingularMatrix))

	rankDeficient := Identity()
	rankDeficient[5][5] = 0
	_, _, err = rankDeficient.Inverse()
	assert.True(t, errors.Is(err, ErrSingularMatrix))
}

func TestMatrixInverseNumericallySingular(t *testing.T) {
	// Row 1 is three times row 0, but rounding leaves a nonzero LU pivot.
	m := Identity()
	m[0][0], m[0][1], m[0][2] = 0.1, 0.7, 0.3
	m[1][0], m[1][1], m[1][2] = 0.3, 2.1, 0.9
	m[2][0], m[2][1], m[2][2] = 0.5, 0.2, 0.4

	inv, cond, err := m.Inverse()
	require.ErrorIs(t, err, ErrSingularMatrix)
	assert.Equal(t, Matrix{}, inv)
	assert.Greater(t, cond, 1e15)
}

func TestMatrixInverseIllConditionedKept(t *testing.T) {
	m := Identity()
	m[5][5] = 1e-10

	inv, cond, err := m.Inverse()
	require.NoError(t, err)
	assert.Greater(t, cond, illConditioned)
	assert.InDelta(t, 1e10, inv[5][5], 1)
}

func TestMatrixFromElements(t *testing.T) {
	e := make([]float64, 36)
	for i := range e {
		e[i] = float64(i)
	}
	m, err := MatrixFromElements(e)
	require.NoError(t, err)
	assert.Equal(t, 7.0, m[1][1])
	assert.Equal(t, 35.0, m[5][5])
	assert.Equal(t, e, m.Elements())

	_, err = MatrixFromElements(e[:35])
	assert.Error(t, err)
}

func TestNaNMatrix(t *testing.T) {
	assert.True(t, NaNMatrix().IsNaN())
	assert.False(t, Identity().IsNaN())
	assert.False(t, NaNMatrix().EqualApprox(NaNMatrix(), 1))
}
