package approx

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// psdFloor replaces negative eigenvalues during the repair.
const psdFloor = 1e-6

// MakePSD returns m unchanged when it is symmetric positive semi-definite,
// its symmetric part when only asymmetric, and otherwise a copy whose negative
// eigenvalues are clamped to a small positive floor. The boolean reports
// whether a negative eigenvalue was found.
func MakePSD(m *mat.Dense) (*mat.Dense, bool) {
	sym := dynamo.SymOf(m)

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return symmetric(m), false
	}
	lambda := es.Values(nil)

	negative := false
	for j := range lambda {
		if lambda[j] < 0 {
			negative = true
			lambda[j] = psdFloor
		}
	}
	if !negative {
		return symmetric(m), false
	}

	var v mat.Dense
	es.VectorsTo(&v)
	var vl mat.Dense
	vl.Mul(&v, mat.NewDiagDense(len(lambda), lambda))
	repaired := mat.NewDense(len(lambda), len(lambda), nil)
	repaired.Mul(&vl, v.T())
	dynamo.Symmetrize(repaired)
	return repaired, true
}

func symmetric(m *mat.Dense) *mat.Dense {
	if mat.Equal(m, m.T()) {
		return m
	}
	s := mat.DenseCopyOf(m)
	dynamo.Symmetrize(s)
	return s
}

// inverseSPD inverts a symmetric positive definite matrix.
func inverseSPD(m mat.Matrix) (*mat.Dense, bool) {
	var chol mat.Cholesky
	if !chol.Factorize(dynamo.SymOf(m)) {
		return nil, false
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, false
	}
	return mat.DenseCopyOf(&inv), true
}

// pseudoInverse is the Moore-Penrose inverse computed from an SVD.
func pseudoInverse(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDThin) {
		return mat.NewDense(c, r, nil)
	}
	sigma := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tol := 1e-12
	if len(sigma) > 0 {
		tol *= sigma[0] * float64(max(r, c))
	}
	inv := make([]float64, len(sigma))
	for i, s := range sigma {
		if s > tol {
			inv[i] = 1 / s
		}
	}
	var vs mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inv), inv))
	out := mat.NewDense(c, r, nil)
	out.Mul(&vs, u.T())
	return out
}

// rank returns the numerical rank of m.
func rank(m mat.Matrix) int {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return 0
	}
	return svd.Rank(1e-10)
}
