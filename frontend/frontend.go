// Package frontend is the thin EPS/SVD dispatch layer of spec.md §4.7:
// a Solver[S] that owns one of ciss.Solver, krylov.ArnoldiSolver,
// krylov.LanczosSolver, or csvd.Driver behind a closed tagged-variant
// dispatch, forwarding SetProblem/SetTarget/SetMonitor/Solve calls to
// whichever engine is active and normalizing every engine's own result
// shape into one Result. It owns no solver logic of its own — grounded
// on the "Frontends" row of spec.md's layer table and on st.ST's own
// "thin façade over an attached collaborator" shape.
package frontend

import (
	"fmt"
	"io"

	"github.com/gospectral/eigen/ciss"
	"github.com/gospectral/eigen/csvd"
	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/krylov"
	"github.com/gospectral/eigen/rng"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"
)

// Variant selects the engine a Solver dispatches to.
type Variant int

const (
	VariantArnoldi Variant = iota
	VariantLanczos
	VariantCISS
	VariantSVD
)

func (v Variant) String() string {
	switch v {
	case VariantArnoldi:
		return "arnoldi"
	case VariantLanczos:
		return "lanczos"
	case VariantCISS:
		return "ciss"
	case VariantSVD:
		return "svd"
	default:
		return "unknown"
	}
}

// Region is the CISS-only target: every eigenvalue inside this region
// of the complex plane (spec.md §4.5).
type Region struct {
	Center            complex128
	Radius, VScale    float64
	N, L, LMax, M     int
	Delta             float64
	SpuriousThreshold float64
	RefineInner       int
	RefineOuter       int
	RefineBlocksize   int
	RealMatrices      bool
	Partitions        int
	Seed              uint64
}

// Target configures how many pairs/triplets are wanted and, for SVD,
// which end of the spectrum. The Arnoldi/Lanczos variants ignore Which
// and report every Ritz value of the factorization. Region is set instead
// of NumWanted/Which for the CISS variant, which has no notion of an
// arbitrary eigenvalue selector (spec.md §9's supplement).
type Target struct {
	NumWanted int
	Tolerance float64
	MaxSteps  int
	Which     string // "largest" or "smallest"; honored by SVD only
	Region    *Region
}

// Result normalizes whichever engine ran into one shape: every
// candidate Values[i]/Vectors[i] pair, its residual (when the engine
// tracks one per pair), and the overall convergence reason.
type Result struct {
	Values      []complex128
	Vectors     [][]complex128
	Residuals   []float64
	Reliability []float64 // CISS only; nil otherwise
	Rejected    []bool    // CISS only; nil otherwise
	NConv       int
	Reason      ksp.ConvergedReason
}

// Solver is the dispatch façade. The zero value is not usable; build
// one with New.
type Solver[S scalar.Scalar] struct {
	variant Variant
	a, b    spmat.Matrix[S]
	target  Target
	monitor krylov.Monitor

	arnoldi *krylov.ArnoldiSolver[S]
	lanczos *krylov.LanczosSolver[S]
	svd     *csvd.Driver[S]
	cissOpts ciss.Options

	result *Result
}

// New returns a dispatch-unconfigured Solver; call SetVariant before
// SetProblem.
func New[S scalar.Scalar]() *Solver[S] {
	return &Solver[S]{variant: VariantArnoldi, cissOpts: ciss.DefaultOptions()}
}

// SetVariant selects the engine this Solver dispatches to. CISS
// requires S=complex128 (spec.md §4.5's "complex scalars only"
// precondition); requesting it for a real-typed Solver is rejected
// with errs.RealScalarsUnsupported rather than failing later inside
// Solve.
func (s *Solver[S]) SetVariant(v Variant) error {
	if v == VariantCISS && !scalar.IsComplex[S]() {
		return &errs.RealScalarsUnsupported{Component: "frontend: ciss variant"}
	}
	s.variant = v
	return nil
}

// SetProblem attaches the operator(s): a alone for the standard
// problem A*x=lambda*x (or the SVD of A), a and b for the generalized
// problem A*x=lambda*B*x (or the generalized SVD of the pencil (A,B)).
func (s *Solver[S]) SetProblem(a, b spmat.Matrix[S]) {
	s.a, s.b = a, b
}

// SetMonitor attaches a progress callback. Only the Arnoldi/Lanczos
// variants call it (spec.md §4.7): CISS and the dense/shell SVD path
// run to completion in one internal call with no natural per-step hook
// to report through.
func (s *Solver[S]) SetMonitor(m krylov.Monitor) { s.monitor = m }

// SetTarget configures how many pairs are wanted and how. Region-based
// solvers (CISS) reject a non-empty Which: spec.md §9's supplement
// notes a region has no notion of "the ten largest-magnitude
// eigenvalues," so asking for both is a caller error rather than a
// silently-ignored field.
func (s *Solver[S]) SetTarget(t Target) error {
	if s.variant == VariantCISS {
		if t.Which != "" {
			return &errs.ArbitrarySelectionUnsupported{Selector: t.Which}
		}
		if t.Region == nil {
			return &errs.IncompatibleOptions{Reason: "frontend: ciss variant requires a Region target"}
		}
	} else if t.Region != nil {
		return &errs.IncompatibleOptions{Reason: "frontend: " + s.variant.String() + " variant cannot honor a Region target"}
	}
	s.target = t
	return nil
}

func toComplex128[S scalar.Scalar](x S) complex128 {
	switch v := any(x).(type) {
	case float64:
		return complex(v, 0)
	case complex128:
		return v
	}
	panic("frontend: unreachable scalar")
}

type matrixOperator[S scalar.Scalar] struct{ m spmat.Matrix[S] }

func (o matrixOperator[S]) Apply(x, y *spmat.Vec[S]) error {
	o.m.Mult(x, y)
	return nil
}

func randomInitialVector[S scalar.Scalar](n int, seed uint64) *spmat.Vec[S] {
	stream := rng.FromSeed(seed)
	v := spmat.NewVec[S](n)
	for i := 0; i < n; i++ {
		v.SetAt(i, rng.GetValue[S](stream))
	}
	return v
}

func (s *Solver[S]) maxSteps(n int) int {
	if s.target.MaxSteps > 0 {
		return s.target.MaxSteps
	}
	if n < 50 {
		return n
	}
	return 50
}

// Solve dispatches to the configured engine and normalizes its result.
func (s *Solver[S]) Solve() (*Result, error) {
	if s.a == nil {
		return nil, &errs.IncompatibleOptions{Reason: "frontend: no operator set"}
	}

	switch s.variant {
	case VariantArnoldi, VariantLanczos:
		return s.solveKrylov()
	case VariantCISS:
		return s.solveCISS()
	case VariantSVD:
		return s.solveSVD()
	default:
		return nil, &errs.IncompatibleOptions{Reason: "frontend: unknown variant"}
	}
}

func (s *Solver[S]) solveKrylov() (*Result, error) {
	n, _ := s.a.Dims()
	steps := s.maxSteps(n)
	op := matrixOperator[S]{s.a}

	nev := s.target.NumWanted
	if nev <= 0 {
		nev = 1
	}
	tol := s.target.Tolerance
	if tol <= 0 {
		tol = 1e-8
	}

	var res *krylov.Result
	var err error
	if s.variant == VariantArnoldi {
		solver := krylov.NewArnoldiSolver[S](n, steps, op)
		solver.SetNumEigenpairs(nev)
		solver.SetTolerance(tol)
		solver.SetMonitor(s.monitor)
		solver.SetInitialVector(randomInitialVector[S](n, 1))
		s.arnoldi = solver
		res, err = solver.Solve()
	} else {
		solver := krylov.NewLanczosSolver[S](n, steps, op)
		solver.SetNumEigenpairs(nev)
		solver.SetTolerance(tol)
		solver.SetMonitor(s.monitor)
		solver.SetInitialVector(randomInitialVector[S](n, 1))
		s.lanczos = solver
		res, err = solver.Solve()
	}
	if err != nil {
		return nil, err
	}

	out := &Result{
		Values:    res.Values,
		Vectors:   res.Vectors,
		Residuals: res.Residuals,
		NConv:     res.NConv,
		Reason:    res.Reason,
	}
	s.result = out
	return out, nil
}

func (s *Solver[S]) solveCISS() (*Result, error) {
	r := s.target.Region
	opts := s.cissOpts
	opts.Center = r.Center
	opts.Radius = r.Radius
	if r.VScale > 0 {
		opts.VScale = r.VScale
	}
	if r.N > 0 {
		opts.N = r.N
	}
	if r.L > 0 {
		opts.L = r.L
	}
	if r.LMax > 0 {
		opts.LMax = r.LMax
	}
	if r.M > 0 {
		opts.M = r.M
	} else if opts.N >= 4 {
		opts.M = opts.N / 4
	}
	if r.Delta > 0 {
		opts.Delta = r.Delta
	}
	if r.SpuriousThreshold > 0 {
		opts.SpuriousThreshold = r.SpuriousThreshold
	}
	opts.RefineInner = r.RefineInner
	opts.RefineOuter = r.RefineOuter
	opts.RefineBlocksize = r.RefineBlocksize
	opts.RealMatrices = r.RealMatrices
	if r.Partitions > 0 {
		opts.Partitions = r.Partitions
	}
	if r.Seed > 0 {
		opts.Seed = r.Seed
	}
	if s.target.Tolerance > 0 {
		opts.Tolerance = s.target.Tolerance
	}

	a := any(s.a).(spmat.Matrix[complex128])
	solver := ciss.New(a)
	if s.b != nil {
		solver.SetGeneralized(any(s.b).(spmat.Matrix[complex128]))
	}
	solver.SetOptions(opts)

	res, err := solver.Solve()
	if err != nil {
		return nil, err
	}

	nconv := 0
	for _, rej := range res.Rejected {
		if !rej {
			nconv++
		}
	}
	out := &Result{
		Values:      res.Values,
		Vectors:     res.Vectors,
		Reliability: res.Reliability,
		Rejected:    res.Rejected,
		NConv:       nconv,
		Reason:      res.Reason,
	}
	s.result = out
	return out, nil
}

func (s *Solver[S]) solveSVD() (*Result, error) {
	driver := csvd.New[S](s.a)
	if s.b != nil {
		if err := driver.SetGeneralized(s.b); err != nil {
			return nil, err
		}
	}
	nev := s.target.NumWanted
	if nev <= 0 {
		nev = 1
	}
	driver.SetNumTriplets(nev)
	if s.target.Tolerance > 0 {
		driver.SetTolerance(s.target.Tolerance)
	}
	switch s.target.Which {
	case "", "largest":
		driver.SetWhich(csvd.Largest)
	case "smallest":
		driver.SetWhich(csvd.Smallest)
	default:
		return nil, &errs.UnsupportedWhich{Which: s.target.Which}
	}
	s.svd = driver

	res, err := driver.Solve()
	if err != nil {
		return nil, err
	}

	values := make([]complex128, len(res.Triplets))
	vectors := make([][]complex128, len(res.Triplets))
	for i, tr := range res.Triplets {
		values[i] = complex(tr.Sigma, 0)
		vec := make([]complex128, len(tr.U)+len(tr.V))
		for j, u := range tr.U {
			vec[j] = toComplex128(u)
		}
		for j, v := range tr.V {
			vec[len(tr.U)+j] = toComplex128(v)
		}
		vectors[i] = vec
	}
	out := &Result{
		Values:  values,
		Vectors: vectors,
		NConv:   len(res.Triplets),
		Reason:  res.Reason,
	}
	s.result = out
	return out, nil
}

// Converged reports how many pairs converged in the most recent Solve.
func (s *Solver[S]) Converged() int {
	if s.result == nil {
		return 0
	}
	return s.result.NConv
}

// Eigenpair returns the i'th candidate's value and vector from the most
// recent Solve.
func (s *Solver[S]) Eigenpair(i int) (complex128, []complex128, error) {
	if s.result == nil || i < 0 || i >= len(s.result.Values) {
		return 0, nil, &errs.OutOfRange{Op: "frontend.Eigenpair", Idx: i}
	}
	return s.result.Values[i], s.result.Vectors[i], nil
}

// DumpOptions writes the current configuration in a human-readable
// form (spec.md §9's "view current options" supplement: a text-only
// stand-in for SLEPc's -eps_view).
func (s *Solver[S]) DumpOptions(w io.Writer) {
	fmt.Fprintf(w, "frontend.Solver variant=%s\n", s.variant)
	fmt.Fprintf(w, "  target: numWanted=%d tolerance=%g which=%q maxSteps=%d\n",
		s.target.NumWanted, s.target.Tolerance, s.target.Which, s.target.MaxSteps)
	if s.target.Region != nil {
		r := s.target.Region
		fmt.Fprintf(w, "  region: center=%v radius=%v vscale=%v N=%d L=%d M=%d real=%v\n",
			r.Center, r.Radius, r.VScale, r.N, r.L, r.M, r.RealMatrices)
	}
}
