package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CloneDense copies m, keeping nil as nil.
func CloneDense(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}

// CloneVec copies v, keeping nil as nil.
func CloneVec(v *mat.VecDense) *mat.VecDense {
	if v == nil {
		return nil
	}
	return mat.VecDenseCopyOf(v)
}

// Symmetrize replaces m with (m + m^T)/2 in place.
func Symmetrize(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

// SymOf returns the symmetric part of a square matrix as a SymDense.
func SymOf(m mat.Matrix) *mat.SymDense {
	r, _ := m.Dims()
	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}

func FiniteDense(m mat.Matrix) bool {
	if m == nil {
		return true
	}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func FiniteVec(v mat.Vector) bool {
	if v == nil {
		return true
	}
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// LerpDense interpolates two matrices of equal shape.
func LerpDense(a, b *mat.Dense, alpha float64) *mat.Dense {
	if alpha == 0 || b == nil {
		return mat.DenseCopyOf(a)
	}
	out := mat.DenseCopyOf(a)
	out.Scale(1-alpha, out)
	var tmp mat.Dense
	tmp.Scale(alpha, b)
	out.Add(out, &tmp)
	return out
}

// LerpVec interpolates two vectors of equal length.
func LerpVec(a, b *mat.VecDense, alpha float64) *mat.VecDense {
	if alpha == 0 || b == nil {
		return mat.VecDenseCopyOf(a)
	}
	out := mat.NewVecDense(a.Len(), nil)
	out.AddScaledVec(a, alpha, b)
	out.AddScaledVec(out, -alpha, a)
	return out
}

// Mul returns a*b in a new matrix.
func Mul(a, b mat.Matrix) *mat.Dense {
	var c mat.Dense
	c.Mul(a, b)
	return &c
}

// Identity returns the n×n identity as a Dense.
func Identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
