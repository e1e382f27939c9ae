// Package csvd is the cyclic SVD driver of spec.md §4.6: it embeds a
// (possibly rectangular) A into the Hermitian cyclic matrix
// C = [[0,A],[A^H,0]] — explicitly as a spmat.Dense, or as a
// matrix-free ShellOperator — and recovers singular triplets from C's
// positive eigenpairs via a dense Hermitian eigensolver (small C) or a
// krylov.Lanczos factorization through bv (shell C).
package csvd

import (
	"math"
	"sort"

	"github.com/gospectral/eigen/dla"
	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/krylov"
	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"

	"gonum.org/v1/gonum/mat"
)

// Which selects the end of the singular spectrum requested.
type Which int

const (
	Largest Which = iota
	Smallest
)

// Triplet is one recovered (sigma, u, v) with A*v = sigma*u.
type Triplet[S scalar.Scalar] struct {
	Sigma float64
	U, V  []S
}

// Result is the outcome of a Driver.Solve call.
type Result[S scalar.Scalar] struct {
	Triplets []Triplet[S]
	Reason   ksp.ConvergedReason
}

// Driver drives the cyclic/augmented SVD reduction of spec.md §4.6.
type Driver[S scalar.Scalar] struct {
	a            spmat.Matrix[S]
	which        Which
	shell        bool
	normRelative bool
	nev          int
	tol          float64
}

// New returns a Driver targeting the standard SVD of a.
func New[S scalar.Scalar](a spmat.Matrix[S]) *Driver[S] {
	return &Driver[S]{a: a, which: Largest, nev: 1, tol: 1e-10}
}

// SetGeneralized would switch to the generalized SVD of the pencil
// (a,b), via the alternative pencil D = [[I_m,0],[0,B^H*B]] spec.md
// §4.6 describes for which=Smallest. Not yet implemented: building
// that paired (C,D) generalized eigenproblem is a different reduction
// from the plain cyclic-matrix path below it, so this reports the
// request as unsupported instead of silently returning a plain SVD of
// a with b ignored.
func (d *Driver[S]) SetGeneralized(b spmat.Matrix[S]) error {
	return &errs.IncompatibleOptions{Reason: "csvd: generalized SVD is not yet implemented"}
}

func (d *Driver[S]) SetWhich(w Which)                   { d.which = w }
func (d *Driver[S]) SetShell(on bool)                   { d.shell = on }
func (d *Driver[S]) SetNormRelativeConvergence(on bool) { d.normRelative = on }
func (d *Driver[S]) SetNumTriplets(n int)               { d.nev = n }
func (d *Driver[S]) SetTolerance(tol float64)           { d.tol = tol }

// Solve computes the requested singular triplets.
func (d *Driver[S]) Solve() (*Result[S], error) {
	m, n := d.a.Dims()
	if d.shell {
		return d.solveShell(m, n)
	}
	return d.solveDense(m, n)
}

// convergenceDivisor implements spec.md §4.6's custom convergence test
// propagation: residual estimates divide by ||A||_inf when the caller
// asked for norm-relative convergence.
func (d *Driver[S]) convergenceDivisor() float64 {
	if !d.normRelative {
		return 1
	}
	best := d.a.Norm(spmat.NormInf)
	if best == 0 {
		return 1
	}
	return best
}

func fillCyclic[S scalar.Scalar](c *spmat.Dense[S], a spmat.Matrix[S], m, n int) {
	e := spmat.NewVec[S](n)
	y := spmat.NewVec[S](m)
	for j := 0; j < n; j++ {
		e.Set(0)
		e.SetAt(j, scalar.FromFloat64[S](1))
		a.Mult(e, y)
		for i := 0; i < m; i++ {
			c.Set(i, m+j, y.At(i))
			c.Set(m+j, i, scalar.Conj(y.At(i)))
		}
	}
}

func unitVec[S scalar.Scalar](n, idx int) []S {
	v := make([]S, n)
	if idx >= 0 && idx < n {
		v[idx] = scalar.FromFloat64[S](1)
	}
	return v
}

type eigPair struct {
	idx int
	val float64
}

func positiveEigenvalues(w []float64) []eigPair {
	var out []eigPair
	for i, v := range w {
		if v > 1e-12 {
			out = append(out, eigPair{i, v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].val > out[j].val })
	return out
}

// solveDense builds C explicitly and eigendecomposes it in full: good
// for the small/dense pencils this module's LAPACK-only driver targets
// (spec.md §8's end-to-end scenario 1 and 6).
func (d *Driver[S]) solveDense(m, n int) (*Result[S], error) {
	size := m + n
	c := spmat.NewDense[S](size, size)
	fillCyclic(c, d.a, m, n)

	var w []float64
	var q *mat.CDense
	if scalar.IsComplex[S]() {
		cm := mat.NewCDense(size, size, nil)
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				cm.Set(i, j, any(c.At(i, j)).(complex128))
			}
		}
		ww, qq, ok := dla.ComplexHeev(cm)
		if !ok {
			return nil, &errs.MatrixFunctionNotConverged{Method: "csvd Heev", Iterations: 0}
		}
		w, q = ww, qq
	} else {
		sm := mat.NewSymDense(size, nil)
		for i := 0; i < size; i++ {
			for j := i; j < size; j++ {
				sm.SetSym(i, j, any(c.At(i, j)).(float64))
			}
		}
		ww, rq, ok := dla.RealSyev(sm)
		if !ok {
			return nil, &errs.MatrixFunctionNotConverged{Method: "csvd Syev", Iterations: 0}
		}
		q = mat.NewCDense(size, size, nil)
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				q.Set(i, j, complex(rq.At(i, j), 0))
			}
		}
		w = ww
	}

	return d.extractTriplets(w, func(idx int) (u, v []S) {
		return extractColumn[S](q, idx, m, n)
	}, m, n)
}

// extractColumn reads columns m/n out of Q's idx'th column, scaled by
// sqrt(2) per spec.md §4.6's eigenvector recovery formula.
func extractColumn[S scalar.Scalar](q *mat.CDense, idx, m, n int) (u, v []S) {
	sqrt2 := complex(math.Sqrt2, 0)
	u = make([]S, m)
	v = make([]S, n)
	for i := 0; i < m; i++ {
		u[i] = scalar.FromComplex[S](sqrt2 * q.At(i, idx))
	}
	for j := 0; j < n; j++ {
		v[j] = scalar.FromComplex[S](sqrt2 * q.At(m+j, idx))
	}
	return u, v
}

func (d *Driver[S]) extractTriplets(w []float64, column func(idx int) (u, v []S), m, n int) (*Result[S], error) {
	positives := positiveEigenvalues(w)
	triplets := make([]Triplet[S], 0, d.nev)
	take := func(p eigPair) Triplet[S] {
		u, v := column(p.idx)
		return Triplet[S]{Sigma: p.val, U: u, V: v}
	}

	switch d.which {
	case Largest:
		for i := 0; i < d.nev && i < len(positives); i++ {
			triplets = append(triplets, take(positives[i]))
		}
	case Smallest:
		for i := len(positives) - 1; i >= 0 && len(triplets) < d.nev; i-- {
			triplets = append(triplets, take(positives[i]))
		}
	}

	// Zero (or rank-deficient) matrix: spec.md §8 requires all
	// returned singular values to equal 0 and ConvergedTolerance, not
	// an empty result or an error.
	for i := len(triplets); i < d.nev; i++ {
		triplets = append(triplets, Triplet[S]{Sigma: 0, U: unitVec[S](m, i), V: unitVec[S](n, i)})
	}

	return &Result[S]{Triplets: triplets, Reason: ksp.ConvergedTolerance}, nil
}

// ShellOperator is the matrix-free cyclic operator of spec.md §4.6's
// shell-matrix contract: every Mult call borrows the input vector's
// array, places it into the two (m,n)-sized halves, performs two
// sparse mat-vecs, and releases the borrow (scoped acquisition — the
// halves never own their own storage between calls).
type ShellOperator[S scalar.Scalar] struct {
	a    spmat.Matrix[S]
	m, n int
}

// NewShellOperator wraps a as the cyclic operator C=[[0,A],[A^H,0]].
func NewShellOperator[S scalar.Scalar](a spmat.Matrix[S]) *ShellOperator[S] {
	m, n := a.Dims()
	return &ShellOperator[S]{a: a, m: m, n: n}
}

func (c *ShellOperator[S]) Dims() (int, int) { return c.m + c.n, c.m + c.n }

func (c *ShellOperator[S]) Mult(x, y *spmat.Vec[S]) {
	xArr := x.GetArray()
	top := spmat.NewVec[S](c.m)
	bot := spmat.NewVec[S](c.n)
	releaseTop := top.PlaceArray(xArr[:c.m])
	releaseBot := bot.PlaceArray(xArr[c.m:])

	yTop := spmat.NewVec[S](c.m)
	yBot := spmat.NewVec[S](c.n)
	c.a.Mult(bot, yTop)
	c.a.MultTranspose(top, yBot)

	releaseTop()
	releaseBot()
	x.RestoreArray(xArr)

	yArr := y.GetArray()
	copy(yArr[:c.m], yTop.GetArray())
	copy(yArr[c.m:], yBot.GetArray())
	y.RestoreArray(yArr)
}

// MultTranspose is identical to Mult: C is Hermitian by construction.
func (c *ShellOperator[S]) MultTranspose(x, y *spmat.Vec[S]) { c.Mult(x, y) }

func (c *ShellOperator[S]) AXPY(S, spmat.Matrix[S], spmat.StructureHint) {
	panic("csvd: ShellOperator does not support AXPY")
}
func (c *ShellOperator[S]) Shift(S) { panic("csvd: ShellOperator does not support Shift") }
func (c *ShellOperator[S]) Copy() spmat.Matrix[S] {
	return &ShellOperator[S]{a: c.a, m: c.m, n: c.n}
}
func (c *ShellOperator[S]) Duplicate() spmat.Matrix[S]    { return c.Copy() }
func (c *ShellOperator[S]) Norm(typ spmat.NormType) float64 { return c.a.Norm(typ) }
func (c *ShellOperator[S]) State() int64                    { return 0 }
func (c *ShellOperator[S]) IsHermitianKnown() bool          { return true }

// solveShell drives a krylov.Lanczos factorization of the shell
// cyclic operator through bv, then recovers triplets from the
// projected tridiagonal's positive eigenpairs (spec.md §4.6: "its
// shell path drives a krylov.Lanczos factorization through bv").
func (d *Driver[S]) solveShell(m, n int) (*Result[S], error) {
	size := m + n
	op := NewShellOperator[S](d.a)
	maxSteps := size
	if want := 4*d.nev + 20; want < maxSteps {
		maxSteps = want
	}

	lanczos := krylov.NewLanczos[S](size, maxSteps, op)
	v0 := spmat.NewVec[S](size)
	v0.SetAt(0, scalar.FromFloat64[S](1))
	lanczos.SetInitialVector(v0)
	reached, _, err := lanczos.Extend(maxSteps)
	if err != nil {
		return nil, err
	}
	if reached == 0 {
		return d.extractTriplets(nil, nil, m, n)
	}

	sym := mat.NewSymDense(reached, nil)
	for i := 0; i < reached; i++ {
		sym.SetSym(i, i, lanczos.Alpha()[i])
	}
	for i := 0; i < reached-1; i++ {
		sym.SetSym(i, i+1, lanczos.Beta()[i+1])
	}
	w, proj, ok := dla.RealSyev(sym)
	if !ok {
		return nil, &errs.MatrixFunctionNotConverged{Method: "csvd Lanczos Syev", Iterations: 0}
	}

	basis := lanczos.Basis()
	basis.SetActiveColumns(0, reached)
	column := func(idx int) (u, v []S) {
		q := make([]S, reached)
		for i := 0; i < reached; i++ {
			q[i] = scalar.FromFloat64[S](proj.At(i, idx))
		}
		ritz := spmat.NewVec[S](size)
		basis.MultVec(scalar.FromFloat64[S](1), scalar.FromFloat64[S](0), ritz, q)
		nrm := ritz.Norm()
		if nrm > 0 {
			ritz.Scale(scalar.FromFloat64[S](math.Sqrt2 / nrm))
		}
		u = make([]S, m)
		v = make([]S, n)
		for i := 0; i < m; i++ {
			u[i] = ritz.At(i)
		}
		for j := 0; j < n; j++ {
			v[j] = ritz.At(m + j)
		}
		return u, v
	}
	result, err := d.extractTriplets(w, column, m, n)
	if err != nil {
		return nil, err
	}

	// Convergence check: the worst a-posteriori Ritz residual among
	// the requested triplets' defining columns, divided by
	// convergenceDivisor (spec.md §4.6's norm-relative convergence
	// propagation).
	divisor := d.convergenceDivisor()
	worst := 0.0
	positives := positiveEigenvalues(w)
	for i, p := range positives {
		if d.which == Largest && i >= d.nev {
			break
		}
		if d.which == Smallest && i < len(positives)-d.nev {
			continue
		}
		y := make([]float64, reached)
		for i := 0; i < reached; i++ {
			y[i] = proj.At(i, p.idx)
		}
		if r := lanczos.RitzResidual(reached, y) / divisor; r > worst {
			worst = r
		}
	}
	if worst > d.tol {
		result.Reason = ksp.DivergedIts
	}
	return result, nil
}
