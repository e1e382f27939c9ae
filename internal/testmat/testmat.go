// Package testmat builds small synthetic operators for package tests
// and for cmd/eigenctl's demonstration mode, in lieu of the persisted
// matrix-market loaders other SLEPc-adjacent tools ship: spec.md §6
// states persisted state is out of scope, so there is nothing for
// this engine to read off disk.
package testmat

import (
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"
)

// Diagonal builds an n x n diagonal matrix from vals, flagged
// Hermitian whenever every entry is real (conjugate-symmetric
// quadrature halving and the Lanczos path both need that flag set
// honestly, not just assumed).
func Diagonal(vals []complex128) *spmat.Dense[complex128] {
	n := len(vals)
	d := spmat.NewDense[complex128](n, n)
	hermitian := true
	for i, v := range vals {
		d.Set(i, i, v)
		if imag(v) != 0 {
			hermitian = false
		}
	}
	d.SetHermitianKnown(hermitian)
	return d
}

// Tridiagonal builds the classic symmetric 2/-1 tridiagonal operator
// of size n (the discrete 1-D Laplacian), a standard Lanczos/Arnoldi
// smoke-test matrix.
func Tridiagonal[S scalar.Scalar](n int) *spmat.Dense[S] {
	d := spmat.NewDense[S](n, n)
	two := scalar.FromFloat64[S](2)
	negOne := scalar.FromFloat64[S](-1)
	for i := 0; i < n; i++ {
		d.Set(i, i, two)
		if i+1 < n {
			d.Set(i, i+1, negOne)
			d.Set(i+1, i, negOne)
		}
	}
	d.SetHermitianKnown(true)
	return d
}
