// Package bv implements the basis-vector container of spec.md §3/§4.1:
// a block of column vectors with a leading (locked) region, an active
// working window, and an optional non-standard inner product matrix B
// with a lazily-refreshed B·X cache. It is the one container every
// other solver package (krylov, ciss, csvd) stores its working
// subspace in, the way gonum's mat.Dense backs every higher-level
// decomposition in mat/.
package bv

import (
	"math"

	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/rng"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"
)

// OrthogType selects the block-orthogonalization algorithm.
type OrthogType int

const (
	CGS OrthogType = iota // classical Gram-Schmidt
	MGS                   // modified Gram-Schmidt
)

// RefineType controls whether a single re-orthogonalization pass runs
// after the first projection.
type RefineType int

const (
	RefineNever RefineType = iota
	RefineIfNeeded
	RefineAlways
)

// breakdownTol is the relative-norm threshold below which a column is
// declared linearly dependent (spec.md §4.1 step 5).
const breakdownTol = 1e-10

// BV is the basis-vector block: n (local==global under spmat.SelfComm)
// rows, m total columns, with an active window [l,k).
type BV[S scalar.Scalar] struct {
	n, m   int
	l, k   int
	cols   []*spmat.Vec[S]
	b      spmat.Matrix[S] // optional non-standard inner product; nil means identity
	bx     []*spmat.Vec[S] // cached B*cols[l:k), valid iff cacheValid
	cacheValid bool

	orthog OrthogType
	refine RefineType
	eta    float64

	borrowed map[int]bool
	comm     spmat.Comm
}

// New allocates an n×m BV with the full range active ([0,m)) and CGS /
// RefineIfNeeded orthogonalization with eta=0.7 (SLEPc's historical
// default, carried over via original_source/bvbasic.c).
func New[S scalar.Scalar](n, m int) *BV[S] {
	cols := make([]*spmat.Vec[S], m)
	for j := range cols {
		cols[j] = spmat.NewVec[S](n)
	}
	return &BV[S]{
		n: n, m: m, l: 0, k: m,
		cols:     cols,
		orthog:   CGS,
		refine:   RefineIfNeeded,
		eta:      0.7,
		borrowed: make(map[int]bool),
		comm:     spmat.SelfComm{},
	}
}

// SetInnerProduct attaches a non-standard inner product matrix B;
// pass nil to revert to the Euclidean inner product. Invalidates the
// cache.
func (bv *BV[S]) SetInnerProduct(b spmat.Matrix[S]) {
	bv.b = b
	bv.cacheValid = false
	bv.bx = nil
}

// SetOrthogonalization configures the block-orthogonalization policy.
func (bv *BV[S]) SetOrthogonalization(o OrthogType, r RefineType, eta float64) {
	if eta <= 0 || eta > 1 {
		panic("bv: eta must be in (0,1]")
	}
	bv.orthog, bv.refine, bv.eta = o, r, eta
}

// SetActiveColumns sets the active window [l,k); leading [0,l) is
// locked and untouched by Mult/Orthogonalize.
func (bv *BV[S]) SetActiveColumns(l, k int) {
	if l < 0 || k > bv.m || l > k {
		panic(&errs.OutOfRange{Op: "bv.SetActiveColumns", Idx: k})
	}
	bv.l, bv.k = l, k
	bv.cacheValid = false
}

func (bv *BV[S]) ActiveColumns() (l, k int) { return bv.l, bv.k }
func (bv *BV[S]) N() int                    { return bv.n }
func (bv *BV[S]) M() int                    { return bv.m }

// GetColumn borrows column j for direct read/write. At most two
// columns may be borrowed simultaneously (spec.md §3 invariant i);
// every GetColumn must be paired with a matching RestoreColumn.
func (bv *BV[S]) GetColumn(j int) *spmat.Vec[S] {
	if bv.borrowed[j] {
		panic(&errs.ColumnAlreadyBorrowed{Index: j})
	}
	if len(bv.borrowed) >= 2 {
		panic(&errs.ColumnAlreadyBorrowed{Index: j})
	}
	bv.borrowed[j] = true
	bv.cacheValid = false
	return bv.cols[j]
}

// RestoreColumn releases a column borrowed via GetColumn.
func (bv *BV[S]) RestoreColumn(j int, v *spmat.Vec[S]) {
	if !bv.borrowed[j] {
		panic(&errs.RestoreMismatch{Got: j, Want: -1})
	}
	if v != bv.cols[j] {
		panic(&errs.RestoreMismatch{Got: j, Want: j})
	}
	delete(bv.borrowed, j)
}

// SetRandom fills column j with reproducible pseudo-random entries.
// Every rank draws the same sequence from the same seed stream, so a
// "random" column is identical regardless of data distribution
// (spec.md §5's ordering guarantee) — this reference build is always
// single-rank, so the guarantee is trivially satisfied, but the draw
// still goes through the shared Stream rather than a process-local
// source, keeping the call site correct if SelfComm is later swapped
// for a real distributed Comm.
func (bv *BV[S]) SetRandom(j int, stream *rng.Stream) {
	col := bv.cols[j]
	for i := 0; i < bv.n; i++ {
		col.SetAt(i, rng.GetValue[S](stream))
	}
	bv.cacheValid = false
}

// refreshCache recomputes bx = B * cols[l:k) if B is set and the
// cache is stale.
func (bv *BV[S]) refreshCache() {
	if bv.b == nil || bv.cacheValid {
		return
	}
	n := bv.k - bv.l
	if len(bv.bx) != n {
		bv.bx = make([]*spmat.Vec[S], n)
		for i := range bv.bx {
			bv.bx[i] = spmat.NewVec[S](bv.n)
		}
	}
	for i := 0; i < n; i++ {
		bv.b.Mult(bv.cols[bv.l+i], bv.bx[i])
	}
	bv.cacheValid = true
}

// GetCachedBV exposes the refreshed B·X cache for the active window,
// rebuilding it first if stale (spec.md §4.1: "orthogonalize refreshes
// the cache at the end so callers can read it back via getCachedBV").
func (bv *BV[S]) GetCachedBV() []*spmat.Vec[S] {
	bv.refreshCache()
	return bv.bx
}

// bColumn returns B*cols[j] for j in the active window, going through
// the cache when B is set, or the raw column when it is not.
func (bv *BV[S]) bColumn(j int) *spmat.Vec[S] {
	if bv.b == nil {
		return bv.cols[j]
	}
	bv.refreshCache()
	return bv.bx[j-bv.l]
}

// Norm computes the vector norm of column j (or the Frobenius norm of
// the active window if j<0). When B is set, the vector norm is
// sqrt(<v,Bv>) and IndefiniteInner is returned if that value is
// non-positive.
func (bv *BV[S]) Norm(j int) (float64, error) {
	if j < 0 {
		var sum float64
		for c := bv.l; c < bv.k; c++ {
			nrm, err := bv.Norm(c)
			if err != nil {
				return 0, err
			}
			sum += nrm * nrm
		}
		return math.Sqrt(sum), nil
	}
	if bv.b == nil {
		return bv.cols[j].Norm(), nil
	}
	ip := bv.cols[j].Dot(bv.bColumn(j))
	re := scalar.Real(ip)
	if re <= 0 {
		return 0, &errs.IndefiniteInner{}
	}
	return math.Sqrt(re), nil
}

// DotVec computes m[i] = <cols[l+i], y> for i in the active window
// (column dots against a single vector).
func (bv *BV[S]) DotVec(y *spmat.Vec[S], m []S) {
	for i := bv.l; i < bv.k; i++ {
		var lhs *spmat.Vec[S]
		if bv.b == nil {
			lhs = y
		} else {
			by := spmat.NewVec[S](bv.n)
			bv.b.Mult(y, by)
			lhs = by
		}
		m[i-bv.l] = lhs.Dot(bv.cols[i])
	}
}

// Dot computes M[i,j] = <Y.cols[l(Y)+i], B*X.cols[l(X)+j]> (Y^H*(B*X))
// over the two BVs' active windows. X and Y may be the same BV.
func Dot[S scalar.Scalar](x, y *BV[S], m [][]S) {
	bxl, bxk := x.l, x.k
	byl, byk := y.l, y.k
	for jj := bxl; jj < bxk; jj++ {
		bxcol := x.bColumn(jj)
		for ii := byl; ii < byk; ii++ {
			m[ii-byl][jj-bxl] = bxcol.Dot(y.cols[ii])
		}
	}
}

// Mult computes Y <- beta*Y + alpha*X*Q over the active windows,
// where Q is a small dense k(X)×k(Y) matrix (row-major, rows indexed
// by X's active columns, cols by Y's). Leading locked columns of Y are
// untouched. X and Y must be different BVs.
func Mult[S scalar.Scalar](y *BV[S], alpha, beta S, x *BV[S], q [][]S) {
	if x == y {
		panic("bv: Mult requires X != Y")
	}
	nx := x.k - x.l
	ny := y.k - y.l
	if len(q) != nx {
		panic(&errs.SizeMismatch{Op: "bv.Mult", Expected: nx, Got: len(q)})
	}
	for jy := 0; jy < ny; jy++ {
		acc := spmat.NewVec[S](y.n)
		for ix := 0; ix < nx; ix++ {
			acc.AXPY(q[ix][jy], x.cols[x.l+ix])
		}
		dst := y.cols[y.l+jy]
		dst.Scale(beta)
		dst.AXPY(alpha, acc)
	}
	y.cacheValid = false
}

// MultInPlace overwrites V[:, s:e) <- V * Q[:, s:e) for columns s..e
// of the active window, in place (needs a temporary since columns
// alias their own inputs).
func (bv *BV[S]) MultInPlace(q [][]S, s, e int) {
	n := bv.k - bv.l
	tmp := make([]*spmat.Vec[S], e-s)
	for col := s; col < e; col++ {
		acc := spmat.NewVec[S](bv.n)
		for row := 0; row < n; row++ {
			acc.AXPY(q[row][col], bv.cols[bv.l+row])
		}
		tmp[col-s] = acc
	}
	for col := s; col < e; col++ {
		bv.cols[bv.l+col].Copy(tmp[col-s])
	}
	bv.cacheValid = false
}

// MultVec computes y <- beta*y + alpha*X*q, q a scalar array of
// length k(X)-l(X).
func (bv *BV[S]) MultVec(alpha, beta S, y *spmat.Vec[S], q []S) {
	n := bv.k - bv.l
	if len(q) != n {
		panic(&errs.SizeMismatch{Op: "bv.MultVec", Expected: n, Got: len(q)})
	}
	acc := spmat.NewVec[S](bv.n)
	for i := 0; i < n; i++ {
		acc.AXPY(q[i], bv.cols[bv.l+i])
	}
	y.Scale(beta)
	y.AXPY(alpha, acc)
}
