package bv

import (
	"math"

	"github.com/gospectral/eigen/rng"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"
)

// OrthonormalizeColumn orthogonalizes column j against [0,j) using the
// configured policy (CGS: one projection against the whole block per
// spec.md §4.1 step 1-3; MGS: per-column projection). h receives the
// projection coefficients (length j, may be nil to discard them). If
// the post-orthogonalization norm falls below the linear-dependence
// threshold, lindep is reported true; if replace is set, column j is
// substituted with a random vector and the orthogonalization retried
// once; lindep then reports the outcome of that retry (spec.md §7's
// "single orthogonalization breakdown triggers one replacement").
func (bv *BV[S]) OrthonormalizeColumn(j int, replace bool, stream *rng.Stream, h []S) (beta float64, lindep bool) {
	beta, lindep = bv.orthogonalizeColumnOnce(j, h)
	if lindep && replace {
		bv.SetRandom(j, stream)
		beta, lindep = bv.orthogonalizeColumnOnce(j, h)
	}
	return beta, lindep
}

func (bv *BV[S]) orthogonalizeColumnOnce(j int, h []S) (beta float64, lindep bool) {
	v := bv.cols[j]
	initNorm := bv.normAgainstB(v)

	hAcc := make([]S, j)
	betaPrev := bv.projectOnce(j, v, hAcc)

	switch bv.refine {
	case RefineAlways:
		hExtra := make([]S, j)
		betaPrev = bv.projectOnce(j, v, hExtra)
		for i := range hAcc {
			hAcc[i] += hExtra[i]
		}
	case RefineIfNeeded:
		if betaPrev < bv.eta*initNorm {
			hExtra := make([]S, j)
			betaPrev = bv.projectOnce(j, v, hExtra)
			for i := range hAcc {
				hAcc[i] += hExtra[i]
			}
		}
	case RefineNever:
	}

	if h != nil {
		copy(h, hAcc)
	}

	if initNorm > 0 && betaPrev < breakdownTol*initNorm {
		return betaPrev, true
	}
	if betaPrev == 0 {
		return 0, true
	}
	v.Scale(scalar.FromFloat64[S](1 / betaPrev))
	bv.cacheValid = false
	return betaPrev, false
}

// projectOnce performs one CGS or MGS projection of column j against
// [0,j), accumulating coefficients into h and returning the resulting
// norm (spec.md §4.1 steps 1-3).
func (bv *BV[S]) projectOnce(j int, v *spmat.Vec[S], h []S) float64 {
	switch bv.orthog {
	case CGS:
		bv_ := bv.bColumnForIndex(v)
		for i := 0; i < j; i++ {
			c := bv_.Dot(bv.cols[i])
			h[i] = c
		}
		for i := 0; i < j; i++ {
			v.AXPY(-h[i], bv.cols[i])
		}
	case MGS:
		for i := 0; i < j; i++ {
			bvi := bv.bColumnForIndex(v)
			c := bvi.Dot(bv.cols[i])
			h[i] = c
			v.AXPY(-c, bv.cols[i])
		}
	}
	return bv.normAgainstB(v)
}

// bColumnForIndex returns B*v (or v itself if B is unset); used by
// projectOnce/normAgainstB which operate on a column outside the
// active-window cache (the column being orthogonalized).
func (bv *BV[S]) bColumnForIndex(v *spmat.Vec[S]) *spmat.Vec[S] {
	if bv.b == nil {
		return v
	}
	bvv := spmat.NewVec[S](bv.n)
	bv.b.Mult(v, bvv)
	return bvv
}

func (bv *BV[S]) normAgainstB(v *spmat.Vec[S]) float64 {
	if bv.b == nil {
		return v.Norm()
	}
	ip := v.Dot(bv.bColumnForIndex(v))
	re := scalar.Real(ip)
	if re < 0 {
		re = 0
	}
	return math.Sqrt(re)
}

// Orthogonalize performs block QR over the active window, filling the
// upper triangle of R (size (k-l)x(k-l)) with the coefficients, using
// Gram-Schmidt on columns (requiring [0,l) already orthogonal), which
// is the default block strategy spec.md §4.1 names. Refreshes the
// B·X cache on return.
func (bv *BV[S]) Orthogonalize(stream *rng.Stream, r [][]S) {
	n := bv.k - bv.l
	for jj := 0; jj < n; jj++ {
		j := bv.l + jj
		h := make([]S, j)
		beta, lindep := bv.OrthonormalizeColumn(j, true, stream, h)
		// Leading locked columns [0,l) do not appear in R.
		for i := 0; i < jj; i++ {
			r[i][jj] = h[bv.l+i]
		}
		r[jj][jj] = scalar.FromFloat64[S](beta)
		_ = lindep
	}
	bv.refreshCache()
}
