// Package ciss implements the contour-integral spectral-slicing
// eigensolver of spec.md §4.5: given a region of the complex plane, it
// returns every eigenvalue of (A, B) inside it (or of A alone for the
// standard problem) without an initial guess, by probing the resolvent
// at quadrature points around the region's boundary.
//
// The core recurrence — quadrature, block shifted solves, moment
// construction, rank detection via a block-Hankel SVD, Rayleigh-Ritz,
// and the inner/outer refinement loops — is grounded on
// original_source/ciss.c (SLEPc's CISS), expressed with this module's
// own bv.BV/ksp.Handle/spmat.Matrix substrate rather than PETSc's.
package ciss

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/gospectral/eigen/bv"
	"github.com/gospectral/eigen/dla"
	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/rng"
	"github.com/gospectral/eigen/spmat"

	"gonum.org/v1/gonum/mat"
)

// Options configures a CISS run; see spec.md §6's flag table.
type Options struct {
	Center complex128 // region center c
	Radius float64    // region horizontal radius rho
	VScale float64    // region vertical scale nu

	N int // quadrature points, even

	L    int // working block size
	LMax int // cap on adaptive block growth

	M int // moment order (Hankel block count)

	Delta             float64 // singular-value cutoff for numerical rank
	SpuriousThreshold float64 // Ritz-pair reliability cutoff, relative to max tau

	RefineInner     int // budget for step 9 (inner refinement)
	RefineOuter     int // budget for step 10 (outer refinement)
	RefineBlocksize int // base block-size increment step 5/9 grow L by

	RealMatrices bool // enables conjugate-symmetry quadrature halving
	Partitions   int  // quadrature points spread across this many comm groups

	Tolerance float64 // residual tolerance for the outer refinement stop rule
	Seed      uint64  // rng.Stream seed
}

// DefaultOptions returns a reasonable starting configuration; callers
// typically only override Center/Radius/VScale and RealMatrices.
func DefaultOptions() Options {
	return Options{
		Radius: 1, VScale: 1,
		N: 32, L: 8, LMax: 64, M: 8,
		Delta: 1e-12, SpuriousThreshold: 1e-4,
		RefineInner: 1, RefineOuter: 2, RefineBlocksize: 0,
		Partitions: 1, Tolerance: 1e-8, Seed: 1,
	}
}

// Result collects every Ritz pair CISS produced, accepted or not
// (spec.md §9's "spurious-pair bookkeeping" supplement: rejected pairs
// keep their diagnostics rather than being silently dropped).
type Result struct {
	Values      []complex128
	Vectors     [][]complex128
	Reliability []float64
	Rejected    []bool
	Reason      ksp.ConvergedReason
}

// Solver drives the pipeline of spec.md §4.5 over a fixed operator A
// (and optionally B for the generalized problem). It always works in
// complex128: spec.md's RealScalarsUnsupported precondition is baked
// into the type signature rather than checked at runtime.
type Solver struct {
	a, b spmat.Matrix[complex128]
	opts Options
	comm spmat.Comm
}

// New returns a Solver for the standard problem A*x = lambda*x.
func New(a spmat.Matrix[complex128]) *Solver {
	return &Solver{a: a, opts: DefaultOptions(), comm: spmat.SelfComm{}}
}

// SetGeneralized switches to the generalized problem A*x = lambda*B*x.
func (s *Solver) SetGeneralized(b spmat.Matrix[complex128]) { s.b = b }

// SetOptions replaces the run configuration wholesale.
func (s *Solver) SetOptions(o Options) { s.opts = o }

// SetComm attaches the communicator the partitioned quadrature solves
// (spec.md §9 supplement) split across; defaults to spmat.SelfComm{}.
func (s *Solver) SetComm(c spmat.Comm) { s.comm = c }

func (s *Solver) dim() int {
	n, _ := s.a.Dims()
	return n
}

// quadNode is one point on the contour: the unit-ellipse reference
// point p, the shifted pencil point omega = c + rho*p, and the
// trapezoidal weight w.
type quadNode struct {
	p, omega, w complex128
}

// quadrature builds the N (or N/2 under conjugate symmetry) node set
// of spec.md §4.5.
func (s *Solver) quadrature() ([]quadNode, bool) {
	n := s.opts.N
	useConj := s.opts.RealMatrices && imag(s.opts.Center) == 0
	nsolve := n
	if useConj {
		nsolve = n / 2
	}
	nodes := make([]quadNode, nsolve)
	for i := 0; i < nsolve; i++ {
		theta := 2 * math.Pi * (float64(i) + 0.5) / float64(n)
		p := complex(math.Cos(theta), s.opts.VScale*math.Sin(theta))
		omega := s.opts.Center + complex(s.opts.Radius, 0)*p
		w := complex(s.opts.VScale*math.Cos(theta), math.Sin(theta))
		nodes[i] = quadNode{p: p, omega: omega, w: w}
	}
	return nodes, useConj
}

// partitionComm returns the communicator group this rank's quadrature
// solves and moment reductions go through (spec.md §9's "partitioned
// quadrature solves" supplement). Under spmat.SelfComm, Split always
// yields another single-rank communicator, so Partitions>1 changes
// nothing numerically here; a real distributed Comm would divide the
// node list across groups and make the AllReduceSum calls load-bearing.
func (s *Solver) partitionComm() spmat.Comm {
	if s.comm == nil {
		return spmat.SelfComm{}
	}
	if s.opts.Partitions <= 1 {
		return s.comm
	}
	color := s.comm.Rank() % s.opts.Partitions
	return s.comm.Split(color, s.comm.Rank())
}

// Solve runs the full pipeline: random block, shifted solves, moment
// construction with adaptive growth, block-Hankel rank detection,
// subspace orthonormalization, Rayleigh-Ritz, spurious filtering, and
// the inner/outer refinement loops, returning every candidate pair.
func (s *Solver) Solve() (*Result, error) {
	if s.a == nil {
		return nil, &errs.IncompatibleOptions{Reason: "ciss: no operator set"}
	}
	if s.opts.N <= 0 || s.opts.M <= 0 || s.opts.L <= 0 {
		return nil, &errs.IncompatibleOptions{Reason: "ciss: N, M, and L must be positive"}
	}

	nodes, useConj := s.quadrature()
	stream := rng.FromSeed(s.opts.Seed)

	l := s.opts.L
	v := s.randomVectors(l, stream)
	y, err := s.solveNodes(v, nodes)
	if err != nil {
		return nil, err
	}

	var values []complex128
	var vectors [][]complex128
	var reliab []float64
	var rejected []bool
	reason := ksp.DivergedIts

	for outer := 0; ; outer++ {
		v, y, l, err = s.growIfNeeded(v, y, nodes, useConj, l, stream)
		if err != nil {
			return nil, err
		}

		var basis *bv.BV[complex128]
		var svals []float64
		for inner := 0; ; inner++ {
			moments := s.computeMoments(y, nodes, useConj, 2*s.opts.M-1)
			h0 := buildHankel(moments, v, s.opts.M)
			svals = complexSingularValues(h0)
			rank := numericalRank(svals, s.opts.Delta)
			basis = s.orthonormalSubspace(moments, s.opts.M)
			rankFull := rank >= l*s.opts.M
			if !rankFull || inner >= s.opts.RefineInner {
				break
			}
			if s.opts.RefineBlocksize > 0 {
				grown := l + s.opts.RefineBlocksize
				if grown > s.opts.LMax {
					grown = s.opts.LMax
				}
				l = grown
			}
			v = s.reseed(basis, l, stream)
			y, err = s.solveNodes(v, nodes)
			if err != nil {
				return nil, err
			}
		}

		if basis.M() == 0 {
			return &Result{Reason: ksp.ConvergedTolerance}, nil
		}

		values, vectors, err = s.rayleighRitz(basis)
		if err != nil {
			return nil, err
		}
		reliab, rejected = s.spuriousFilter(values, vectors, svals)

		maxResidual, anyAccepted := s.worstResidual(values, vectors, rejected, basis)

		if !anyAccepted || maxResidual <= s.opts.Tolerance || outer >= s.opts.RefineOuter {
			if !anyAccepted || maxResidual <= s.opts.Tolerance {
				reason = ksp.ConvergedTolerance
			}
			return &Result{
				Values:      values,
				Vectors:     ritzVectors(basis, vectors),
				Reliability: reliab,
				Rejected:    rejected,
				Reason:      reason,
			}, nil
		}

		v = s.recombine(values, vectors, rejected, basis, l, stream)
		y, err = s.solveNodes(v, nodes)
		if err != nil {
			return nil, err
		}
	}
}

func cmplxPow(p complex128, k int) complex128 {
	if k == 0 {
		return 1
	}
	return cmplx.Pow(p, complex(float64(k), 0))
}

func (s *Solver) randomVectors(l int, stream *rng.Stream) []*spmat.Vec[complex128] {
	n := s.dim()
	out := make([]*spmat.Vec[complex128], l)
	for j := 0; j < l; j++ {
		v := spmat.NewVec[complex128](n)
		for i := 0; i < n; i++ {
			v.SetAt(i, rng.Rademacher[complex128](stream))
		}
		out[j] = v
	}
	return out
}

func (s *Solver) buildRHS(v []*spmat.Vec[complex128]) []*spmat.Vec[complex128] {
	if s.b == nil {
		return v
	}
	n := s.dim()
	out := make([]*spmat.Vec[complex128], len(v))
	for j, vj := range v {
		y := spmat.NewVec[complex128](n)
		s.b.Mult(vj, y)
		out[j] = y
	}
	return out
}

// shiftedSolve factorizes (A - omega*B) (or A - omega*I) once and
// solves it for every column of rhsCols, reusing the factorization
// (spec.md §4.5 step 2: "reusing a direct factorization per node").
func (s *Solver) shiftedSolve(omega complex128, rhsCols []*spmat.Vec[complex128]) ([]*spmat.Vec[complex128], error) {
	n := s.dim()
	shifted := spmat.ToDense[complex128](s.a)
	if s.b != nil {
		bdense := spmat.ToDense[complex128](s.b)
		denseScale(bdense, -omega)
		shifted.AXPY(1, bdense, spmat.StructureUnknown)
	} else {
		shifted.Shift(-omega)
	}

	handle := ksp.NewDirect[complex128]()
	handle.SetOperators(shifted, shifted, spmat.StructureSame)
	if err := handle.SetUp(); err != nil {
		return nil, &errs.SolverSetupFailure{Reason: err.Error()}
	}

	out := make([]*spmat.Vec[complex128], len(rhsCols))
	for j, rhs := range rhsCols {
		y := spmat.NewVec[complex128](n)
		if err := handle.Solve(rhs, y); err != nil {
			return nil, err
		}
		out[j] = y
	}
	return out, nil
}

// scale multiplies every entry of a dense matrix by alpha; spmat.Dense
// has no such method directly, so materialize it through AXPY against
// itself via a zero-beta trick is wasteful — this helper mutates data
// in place using the one bridge spmat.Dense does expose, Set/At.
func denseScale(d *spmat.Dense[complex128], alpha complex128) {
	rows, cols := d.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(i, j, d.At(i, j)*alpha)
		}
	}
}

func (s *Solver) solveNodes(v []*spmat.Vec[complex128], nodes []quadNode) ([][]*spmat.Vec[complex128], error) {
	rhs := s.buildRHS(v)
	y := make([][]*spmat.Vec[complex128], len(nodes))
	for i, nd := range nodes {
		cols, err := s.shiftedSolve(nd.omega, rhs)
		if err != nil {
			return nil, err
		}
		y[i] = cols
	}
	return y, nil
}

// reduceVector runs every entry of v through the partition
// communicator's AllReduceSum, combining contributions computed by
// every rank that shares this quadrature group (a no-op under
// spmat.SelfComm, load-bearing under a real distributed Comm).
func (s *Solver) reduceVector(v *spmat.Vec[complex128]) {
	group := s.partitionComm()
	for i := 0; i < v.Len(); i++ {
		x := v.At(i)
		re := group.AllReduceSum(real(x))
		im := group.AllReduceSum(imag(x))
		v.SetAt(i, complex(re, im))
	}
}

// momentBlock computes S_k = sum_i p_i^k * w_i * Y_{i,:} / N (doubled
// real part under conjugate-symmetry halving), spec.md §4.5 step 3
// generalized to any degree k (used both for the k=0 eigen-count
// estimate and for the full degree-(2M-1) moment set the block-Hankel
// needs).
func (s *Solver) momentBlock(y [][]*spmat.Vec[complex128], nodes []quadNode, useConj bool, k int) []*spmat.Vec[complex128] {
	n := s.dim()
	l := len(y[0])
	nf := complex(float64(s.opts.N), 0)
	out := make([]*spmat.Vec[complex128], l)
	for j := 0; j < l; j++ {
		acc := spmat.NewVec[complex128](n)
		for i, nd := range nodes {
			coeff := cmplxPow(nd.p, k) * nd.w / nf
			term := spmat.NewVec[complex128](n)
			term.Copy(y[i][j])
			term.Scale(coeff)
			if useConj {
				for idx := 0; idx < n; idx++ {
					term.SetAt(idx, complex(2*real(term.At(idx)), 0))
				}
			}
			acc.AXPY(1, term)
		}
		s.reduceVector(acc)
		out[j] = acc
	}
	return out
}

func (s *Solver) computeMoments(y [][]*spmat.Vec[complex128], nodes []quadNode, useConj bool, degree int) [][]*spmat.Vec[complex128] {
	moments := make([][]*spmat.Vec[complex128], degree)
	for k := 0; k < degree; k++ {
		moments[k] = s.momentBlock(y, nodes, useConj, k)
	}
	return moments
}

// eigenCountEstimate computes e-hat = |rho * sum_j <V_j,S_0_j> / L|,
// spec.md §4.5 step 4.
func (s *Solver) eigenCountEstimate(v, s0 []*spmat.Vec[complex128]) float64 {
	l := len(v)
	var sum complex128
	for j := 0; j < l; j++ {
		sum += s0[j].Dot(v[j])
	}
	return cmplx.Abs(complex(s.opts.Radius, 0) * sum / complex(float64(l), 0))
}

// growAmount computes L_add = ceil(e-hat*eta/M) - L with
// eta = 10^(-log10(tol)/N), spec.md §4.5 step 4.
func (s *Solver) growAmount(est float64, currentL int) int {
	eta := math.Pow(10, -math.Log10(s.opts.Tolerance)/float64(s.opts.N))
	want := math.Ceil(est * eta / float64(s.opts.M))
	return int(want) - currentL
}

func (s *Solver) growIfNeeded(v []*spmat.Vec[complex128], y [][]*spmat.Vec[complex128], nodes []quadNode, useConj bool, l int, stream *rng.Stream) ([]*spmat.Vec[complex128], [][]*spmat.Vec[complex128], int, error) {
	s0 := s.momentBlock(y, nodes, useConj, 0)
	est := s.eigenCountEstimate(v, s0)
	add := s.growAmount(est, l)
	if add <= 0 {
		return v, y, l, nil
	}
	newL := l + add
	if newL > s.opts.LMax {
		newL = s.opts.LMax
	}
	add = newL - l
	if add <= 0 {
		return v, y, l, nil
	}

	extra := s.randomVectors(add, stream)
	extraY, err := s.solveNodes(extra, nodes)
	if err != nil {
		return nil, nil, l, err
	}
	v = append(v, extra...)
	for i := range y {
		y[i] = append(y[i], extraY[i]...)
	}
	return v, y, newL, nil
}

// buildMuBlock computes the LxL block mu_k[p][q] = <V_p, S_k[q]>.
func buildMuBlock(moments [][]*spmat.Vec[complex128], v []*spmat.Vec[complex128], k int) [][]complex128 {
	l := len(v)
	block := make([][]complex128, l)
	for p := 0; p < l; p++ {
		block[p] = make([]complex128, l)
		for q := 0; q < l; q++ {
			block[p][q] = moments[k][q].Dot(v[p])
		}
	}
	return block
}

// buildHankel assembles H0, size (L*M)x(L*M), with block (i,j) = mu_{i+j}
// (spec.md §4.5 step 5).
func buildHankel(moments [][]*spmat.Vec[complex128], v []*spmat.Vec[complex128], m int) *mat.CDense {
	l := len(v)
	size := l * m
	h := mat.NewCDense(size, size, nil)
	for bi := 0; bi < m; bi++ {
		for bj := 0; bj < m; bj++ {
			block := buildMuBlock(moments, v, bi+bj)
			for p := 0; p < l; p++ {
				for q := 0; q < l; q++ {
					h.Set(bi*l+p, bj*l+q, block[p][q])
				}
			}
		}
	}
	return h
}

// complexSingularValues computes H0's singular values via the
// Hermitian Gram matrix H0^H*H0 (dla has no complex Gesvd, only
// ComplexHeev — see DESIGN.md); adequate for the small Hankel matrices
// this step ever builds.
func complexSingularValues(h *mat.CDense) []float64 {
	size, _ := h.Dims()
	gram := mat.NewCDense(size, size, nil)
	dla.ComplexGemm(gram, 1, h.H(), h, 0)
	w, _, ok := dla.ComplexHeev(gram)
	if !ok {
		return nil
	}
	sv := make([]float64, size)
	for i, lam := range w {
		if lam < 0 {
			lam = 0
		}
		sv[i] = math.Sqrt(lam)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sv)))
	return sv
}

// numericalRank counts singular values with sigma_i/max(sigma_0,1) > delta.
func numericalRank(svals []float64, delta float64) int {
	if len(svals) == 0 {
		return 0
	}
	denom := svals[0]
	if denom < 1 {
		denom = 1
	}
	count := 0
	for _, sv := range svals {
		if sv/denom > delta {
			count++
		}
	}
	return count
}

// orthonormalSubspace replaces the degree-0..M-1 moments (flattened to
// L*M columns) by an orthonormal basis of their column span, truncated
// at delta (spec.md §4.5 step 6), stored into a bv.BV so the rest of
// the pipeline (and Rayleigh-Ritz) drives it the same way every other
// solver in this module drives its working subspace.
func (s *Solver) orthonormalSubspace(moments [][]*spmat.Vec[complex128], m int) *bv.BV[complex128] {
	n := s.dim()
	cols := make([]*spmat.Vec[complex128], 0, len(moments[0])*m)
	for k := 0; k < m; k++ {
		cols = append(cols, moments[k]...)
	}

	refNorm := 0.0
	for _, c := range cols {
		if nrm := c.Norm(); nrm > refNorm {
			refNorm = nrm
		}
	}
	if refNorm == 0 {
		return bv.New[complex128](n, 0)
	}

	kept := make([]*spmat.Vec[complex128], 0, len(cols))
	for _, c := range cols {
		w := spmat.NewVec[complex128](n)
		w.Copy(c)
		for _, b := range kept {
			coeff := w.Dot(b)
			w.AXPY(-coeff, b)
		}
		nrm := w.Norm()
		if nrm/refNorm <= s.opts.Delta {
			continue
		}
		w.Scale(complex(1/nrm, 0))
		kept = append(kept, w)
	}

	basis := bv.New[complex128](n, len(kept))
	for j, w := range kept {
		col := basis.GetColumn(j)
		col.Copy(w)
		basis.RestoreColumn(j, col)
	}
	return basis
}

// reseed takes the leading l columns of basis as the next V block
// (spec.md §4.5 step 9), padding with fresh random columns if the
// basis came back smaller than l.
func (s *Solver) reseed(basis *bv.BV[complex128], l int, stream *rng.Stream) []*spmat.Vec[complex128] {
	n := basis.N()
	k := basis.M()
	out := make([]*spmat.Vec[complex128], 0, l)
	for j := 0; j < k && j < l; j++ {
		v := spmat.NewVec[complex128](n)
		col := basis.GetColumn(j)
		v.Copy(col)
		basis.RestoreColumn(j, col)
		out = append(out, v)
	}
	for len(out) < l {
		v := spmat.NewVec[complex128](n)
		for i := 0; i < n; i++ {
			v.SetAt(i, rng.Rademacher[complex128](stream))
		}
		out = append(out, v)
	}
	return out
}

// rayleighRitz projects H_A = S^H*A*S (and H_B = S^H*B*S for the
// generalized problem) onto the orthonormal basis and solves the small
// dense eigenproblem (spec.md §4.5 step 7). The projected problem is
// solved via dla.ComplexHeev, so this reference build's Rayleigh-Ritz
// targets Hermitian/symmetric (A, B) — matching the Laplacian used in
// spec.md §8 scenario 2 — rather than a fully general non-Hermitian
// small eigensolve (see DESIGN.md).
func (s *Solver) rayleighRitz(basis *bv.BV[complex128]) ([]complex128, [][]complex128, error) {
	k := basis.M()
	n := basis.N()

	ha := mat.NewCDense(k, k, nil)
	var hb *mat.CDense
	if s.b != nil {
		hb = mat.NewCDense(k, k, nil)
	}

	aq := make([]*spmat.Vec[complex128], k)
	var bq []*spmat.Vec[complex128]
	if s.b != nil {
		bq = make([]*spmat.Vec[complex128], k)
	}
	for j := 0; j < k; j++ {
		col := basis.GetColumn(j)
		yv := spmat.NewVec[complex128](n)
		s.a.Mult(col, yv)
		aq[j] = yv
		if s.b != nil {
			yb := spmat.NewVec[complex128](n)
			s.b.Mult(col, yb)
			bq[j] = yb
		}
		basis.RestoreColumn(j, col)
	}
	for i := 0; i < k; i++ {
		ci := basis.GetColumn(i)
		for j := 0; j < k; j++ {
			ha.Set(i, j, aq[j].Dot(ci))
			if s.b != nil {
				hb.Set(i, j, bq[j].Dot(ci))
			}
		}
		basis.RestoreColumn(i, ci)
	}

	var w []float64
	var q *mat.CDense
	var ok bool
	if s.b == nil {
		w, q, ok = dla.ComplexHeev(ha)
	} else {
		w, q, ok = generalizedHermitianEig(ha, hb, k)
	}
	if !ok {
		return nil, nil, &errs.SolverSetupFailure{Reason: "ciss: Rayleigh-Ritz small dense eigensolve failed"}
	}

	values := make([]complex128, k)
	for i, lam := range w {
		values[i] = complex(lam, 0)
	}
	vectors := make([][]complex128, k)
	for col := 0; col < k; col++ {
		vec := make([]complex128, k)
		for row := 0; row < k; row++ {
			vec[row] = q.At(row, col)
		}
		vectors[col] = vec
	}
	return values, vectors, nil
}

// generalizedHermitianEig solves H_A*x = lambda*H_B*x for Hermitian
// H_A and Hermitian positive-definite H_B via the congruence L^-1 H_A
// L^-H with L = Q*Lambda^(1/2) from H_B = Q*Lambda*Q^H (so H_B =
// L*L^H); eigenvectors of the reduced problem map back through L^-H.
func generalizedHermitianEig(ha, hb *mat.CDense, k int) ([]float64, *mat.CDense, bool) {
	bw, bq, ok := dla.ComplexHeev(hb)
	if !ok {
		return nil, nil, false
	}
	linv := mat.NewCDense(k, k, nil)
	for i := 0; i < k; i++ {
		if bw[i] <= 0 {
			return nil, nil, false
		}
		scale := complex(1/math.Sqrt(bw[i]), 0)
		for r := 0; r < k; r++ {
			linv.Set(r, i, bq.At(r, i)*scale)
		}
	}
	tmp := mat.NewCDense(k, k, nil)
	dla.ComplexGemm(tmp, 1, ha, linv, 0)
	reduced := mat.NewCDense(k, k, nil)
	dla.ComplexGemm(reduced, 1, linv.H(), tmp, 0)

	rw, rq, ok := dla.ComplexHeev(reduced)
	if !ok {
		return nil, nil, false
	}
	qfull := mat.NewCDense(k, k, nil)
	dla.ComplexGemm(qfull, 1, linv, rq, 0)
	return rw, qfull, true
}

// spuriousReliability computes tau_i = (sum|x|^2)^2 / (sum(|x|^2/s) *
// sum(|x|^2*s)), the Cauchy-Schwarz-style ratio spec.md §4.5 step 8
// uses to separate genuine from spurious Ritz pairs, s ranging over the
// block-Hankel singular values.
func spuriousReliability(svals []float64, x []complex128) float64 {
	var sumSq, sumOverS, sumTimesS float64
	for j, xv := range x {
		a2 := real(xv)*real(xv) + imag(xv)*imag(xv)
		sj := 1.0
		if j < len(svals) && svals[j] > 1e-300 {
			sj = svals[j]
		}
		sumSq += a2
		sumOverS += a2 / sj
		sumTimesS += a2 * sj
	}
	denom := sumOverS * sumTimesS
	if denom <= 0 {
		return 0
	}
	return (sumSq * sumSq) / denom
}

func (s *Solver) spuriousFilter(values []complex128, vectors [][]complex128, svals []float64) ([]float64, []bool) {
	k := len(values)
	reliab := make([]float64, k)
	rejected := make([]bool, k)

	maxTau := 0.0
	for i := range values {
		reliab[i] = spuriousReliability(svals, vectors[i])
		if reliab[i] > maxTau {
			maxTau = reliab[i]
		}
	}
	for i, lam := range values {
		d := (lam - s.opts.Center) / complex(s.opts.Radius, 0)
		re, im := real(d), imag(d)/s.opts.VScale
		insideEllipse := re*re+im*im <= 1
		reliable := maxTau == 0 || reliab[i] >= s.opts.SpuriousThreshold*maxTau
		rejected[i] = !insideEllipse || !reliable
	}
	return reliab, rejected
}

func (s *Solver) residual(lambda complex128, q *spmat.Vec[complex128]) float64 {
	n := s.dim()
	aq := spmat.NewVec[complex128](n)
	s.a.Mult(q, aq)
	bq := q
	if s.b != nil {
		bq = spmat.NewVec[complex128](n)
		s.b.Mult(q, bq)
	}
	r := spmat.NewVec[complex128](n)
	r.Copy(aq)
	r.AXPY(-lambda, bq)
	return r.Norm()
}

func (s *Solver) worstResidual(values []complex128, vectors [][]complex128, rejected []bool, basis *bv.BV[complex128]) (float64, bool) {
	n := s.dim()
	worst := 0.0
	accepted := false
	for i, lam := range values {
		if rejected[i] {
			continue
		}
		accepted = true
		q := spmat.NewVec[complex128](n)
		basis.MultVec(1, 0, q, vectors[i])
		if r := s.residual(lam, q); r > worst {
			worst = r
		}
	}
	return worst, accepted
}

func ritzVectors(basis *bv.BV[complex128], vectors [][]complex128) [][]complex128 {
	n := basis.N()
	out := make([][]complex128, len(vectors))
	for i, x := range vectors {
		q := spmat.NewVec[complex128](n)
		basis.MultVec(1, 0, q, x)
		out[i] = append([]complex128(nil), q.GetArray()...)
	}
	return out
}

// recombine builds the next V block (spec.md §4.5 step 10) out of the
// currently accepted Ritz vectors, padding with fresh random columns if
// fewer than l were accepted and truncating if more were.
func (s *Solver) recombine(values []complex128, vectors [][]complex128, rejected []bool, basis *bv.BV[complex128], l int, stream *rng.Stream) []*spmat.Vec[complex128] {
	n := s.dim()
	kept := make([]*spmat.Vec[complex128], 0, l)
	for i := range values {
		if rejected[i] {
			continue
		}
		q := spmat.NewVec[complex128](n)
		basis.MultVec(1, 0, q, vectors[i])
		kept = append(kept, q)
		if len(kept) == l {
			break
		}
	}
	for len(kept) < l {
		v := spmat.NewVec[complex128](n)
		for i := 0; i < n; i++ {
			v.SetAt(i, rng.Rademacher[complex128](stream))
		}
		kept = append(kept, v)
	}
	return kept
}
