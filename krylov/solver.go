package krylov

import (
	"math/cmplx"

	"github.com/gospectral/eigen/bv"
	"github.com/gospectral/eigen/dla"
	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"

	"gonum.org/v1/gonum/mat"
)

// ExtractionKind selects how Ritz pairs are pulled out of a Krylov
// factorization. Ritz is the only kind this reference build implements
// (SLEPc's narnoldi.c/nepsolve.c also support harmonic and refined
// extraction for non-Hermitian problems; those are out of scope here).
type ExtractionKind int

const (
	ExtractionRitz ExtractionKind = iota
	ExtractionHarmonic
	ExtractionRefined
)

// Monitor is called once per Extend step with the current iteration
// count, the number of converged pairs, and their residuals.
type Monitor func(it, nconv int, residuals []float64)

// Result collects the converged (and not-yet-converged) Ritz pairs an
// ArnoldiSolver/LanczosSolver run produced.
type Result struct {
	Values    []complex128
	Vectors   [][]complex128
	Residuals []float64
	NConv     int
	Reason    ksp.ConvergedReason
}

// ArnoldiSolver drives krylov.Arnoldi to convergence: grow the
// factorization one step at a time, extract Ritz pairs from the
// leading m x m Hessenberg block via dla.ComplexSchur/ComplexTrevc
// (widening a real Hessenberg to complex128 handles the
// complex-conjugate-pair case uniformly, rather than needing a separate
// real quasi-triangular eigenvector path), and stop once nev pairs meet
// the residual tolerance or the step budget is exhausted.
type ArnoldiSolver[S scalar.Scalar] struct {
	arn         *Arnoldi[S]
	maxSteps    int
	nev         int
	tol         float64
	extraction  ExtractionKind
	monitor     Monitor
}

// NewArnoldiSolver allocates a driver over an n-dimensional operator,
// growing its factorization up to maxSteps steps.
func NewArnoldiSolver[S scalar.Scalar](n, maxSteps int, op Operator[S]) *ArnoldiSolver[S] {
	return &ArnoldiSolver[S]{
		arn:        NewArnoldi[S](n, maxSteps, op),
		maxSteps:   maxSteps,
		nev:        1,
		tol:        1e-8,
		extraction: ExtractionRitz,
	}
}

func (s *ArnoldiSolver[S]) SetNumEigenpairs(k int)       { s.nev = k }
func (s *ArnoldiSolver[S]) SetTolerance(tol float64)      { s.tol = tol }
func (s *ArnoldiSolver[S]) SetMonitor(m Monitor)          { s.monitor = m }
func (s *ArnoldiSolver[S]) SetInitialVector(v0 *spmat.Vec[S]) { s.arn.SetInitialVector(v0) }

// SetExtraction validates the requested extraction kind (spec.md §9's
// "extraction kind guard" supplement): this reference build only
// implements Ritz extraction.
func (s *ArnoldiSolver[S]) SetExtraction(k ExtractionKind) error {
	if k != ExtractionRitz {
		return &errs.UnsupportedExtraction{Kind: extractionName(k)}
	}
	s.extraction = k
	return nil
}

func extractionName(k ExtractionKind) string {
	switch k {
	case ExtractionRitz:
		return "ritz"
	case ExtractionHarmonic:
		return "harmonic"
	case ExtractionRefined:
		return "refined"
	default:
		return "unknown"
	}
}

func widenToComplex[S scalar.Scalar](x S) complex128 {
	switch v := any(x).(type) {
	case float64:
		return complex(v, 0)
	case complex128:
		return v
	}
	panic("krylov: unreachable scalar")
}

// ritzVectorFull reconstructs a full n-dimensional Ritz vector from its
// m complex coefficients in the Krylov basis. For S=complex128 the
// coefficients feed bv.MultVec directly; for S=float64 the real and
// imaginary parts of the coefficients are combined as two independent
// real linear combinations (a real basis can only be scaled by real
// weights), then recombined into a complex128 result.
func ritzVectorFull[S scalar.Scalar](basis *bv.BV[S], coeffs []complex128) []complex128 {
	n := basis.N()
	m := len(coeffs)
	out := make([]complex128, n)

	if scalar.IsComplex[S]() {
		q := make([]S, m)
		for j, c := range coeffs {
			q[j] = any(c).(S)
		}
		yv := spmat.NewVec[S](n)
		basis.MultVec(any(complex128(1)).(S), any(complex128(0)).(S), yv, q)
		for i := 0; i < n; i++ {
			out[i] = any(yv.At(i)).(complex128)
		}
		return out
	}

	reQ := make([]S, m)
	imQ := make([]S, m)
	for j, c := range coeffs {
		reQ[j] = scalar.FromFloat64[S](real(c))
		imQ[j] = scalar.FromFloat64[S](imag(c))
	}
	reVec := spmat.NewVec[S](n)
	imVec := spmat.NewVec[S](n)
	basis.MultVec(scalar.FromFloat64[S](1), scalar.FromFloat64[S](0), reVec, reQ)
	basis.MultVec(scalar.FromFloat64[S](1), scalar.FromFloat64[S](0), imVec, imQ)
	for i := 0; i < n; i++ {
		out[i] = complex(scalar.Real(reVec.At(i)), scalar.Real(imVec.At(i)))
	}
	return out
}

// ritzPairs extracts every Ritz pair from the leading m x m Hessenberg
// block, along with each pair's a-posteriori residual estimate
// beta_m*|y[m-1]| (spec.md §4.4). Returns an error if the projected
// eigenproblem's Schur factorization fails to converge, rather than
// silently reporting zero Ritz pairs.
func ritzPairs[S scalar.Scalar](h [][]S, m int) (values []complex128, coeffs [][]complex128, residuals []float64, err error) {
	hc := mat.NewCDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			hc.Set(i, j, widenToComplex(h[i][j]))
		}
	}
	q, t, ok := dla.ComplexSchur(hc)
	if !ok {
		return nil, nil, nil, &errs.MatrixFunctionNotConverged{Method: "Schur", Iterations: m}
	}
	vecs := dla.ComplexTrevc(q, t)

	betaM := scalar.Abs(h[m][m-1])
	values = make([]complex128, m)
	coeffs = make([][]complex128, m)
	residuals = make([]float64, m)
	for col := 0; col < m; col++ {
		values[col] = t.At(col, col)
		y := make([]complex128, m)
		for row := 0; row < m; row++ {
			y[row] = vecs.At(row, col)
		}
		coeffs[col] = y
		residuals[col] = betaM * cmplx.Abs(y[m-1])
	}
	return values, coeffs, residuals, nil
}

// Solve grows the Arnoldi factorization one step at a time, checking
// Ritz-pair convergence after every step, until nev pairs are below
// Tolerance or maxSteps is reached.
func (s *ArnoldiSolver[S]) Solve() (*Result, error) {
	basis := s.arn.Basis()
	for m := 1; m <= s.maxSteps; m++ {
		_, breakdown, err := s.arn.Extend(m)
		if err != nil {
			return nil, err
		}

		values, coeffs, residuals, err := ritzPairs(s.arn.Hessenberg(), m)
		if err != nil {
			return nil, err
		}
		nconv := 0
		for _, r := range residuals {
			if r <= s.tol {
				nconv++
			}
		}
		if s.monitor != nil {
			s.monitor(m, nconv, residuals)
		}

		if nconv >= s.nev || breakdown || m == s.maxSteps {
			reason := ksp.DivergedIts
			if nconv >= s.nev {
				reason = ksp.ConvergedTolerance
			} else if breakdown {
				reason = ksp.ConvergedTolerance
			}
			vectors := make([][]complex128, len(coeffs))
			for i, c := range coeffs {
				vectors[i] = ritzVectorFull(basis, c)
			}
			return &Result{
				Values:    values,
				Vectors:   vectors,
				Residuals: residuals,
				NConv:     nconv,
				Reason:    reason,
			}, nil
		}
	}
	return nil, &errs.IncompatibleOptions{Reason: "krylov: maxSteps must be positive"}
}

// LanczosSolver drives krylov.Lanczos the same way ArnoldiSolver drives
// krylov.Arnoldi, but the small projected eigenproblem is a real
// symmetric tridiagonal matrix (Hermitian Rayleigh quotients are always
// real), solved directly via dla.RealSyev rather than widened to
// complex128.
type LanczosSolver[S scalar.Scalar] struct {
	lz       *Lanczos[S]
	maxSteps int
	nev      int
	tol      float64
	monitor  Monitor
}

func NewLanczosSolver[S scalar.Scalar](n, maxSteps int, op Operator[S]) *LanczosSolver[S] {
	return &LanczosSolver[S]{
		lz:       NewLanczos[S](n, maxSteps, op),
		maxSteps: maxSteps,
		nev:      1,
		tol:      1e-8,
	}
}

func (s *LanczosSolver[S]) SetNumEigenpairs(k int)       { s.nev = k }
func (s *LanczosSolver[S]) SetTolerance(tol float64)      { s.tol = tol }
func (s *LanczosSolver[S]) SetMonitor(m Monitor)          { s.monitor = m }
func (s *LanczosSolver[S]) SetInitialVector(v0 *spmat.Vec[S]) { s.lz.SetInitialVector(v0) }

func tridiagSymDense(alpha, beta []float64, m int) *mat.SymDense {
	d := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		d.SetSym(i, i, alpha[i])
		if i+1 < m {
			d.SetSym(i, i+1, beta[i+1])
		}
	}
	return d
}

// Solve grows the Lanczos factorization one step at a time, solving the
// leading m x m real symmetric tridiagonal projection via dla.RealSyev
// after every step, until nev pairs are below Tolerance or maxSteps is
// reached.
func (s *LanczosSolver[S]) Solve() (*Result, error) {
	basis := s.lz.Basis()
	for m := 1; m <= s.maxSteps; m++ {
		_, breakdown, err := s.lz.Extend(m)
		if err != nil {
			return nil, err
		}

		td := tridiagSymDense(s.lz.Alpha(), s.lz.Beta(), m)
		w, q, ok := dla.RealSyev(td)
		if !ok {
			return nil, &errs.SolverSetupFailure{Reason: "krylov: tridiagonal eigensolve failed"}
		}

		betaM := s.lz.Beta()[m]
		residuals := make([]float64, m)
		for col := 0; col < m; col++ {
			residuals[col] = betaM * absFloat(q.At(m-1, col))
		}
		nconv := 0
		for _, r := range residuals {
			if r <= s.tol {
				nconv++
			}
		}
		if s.monitor != nil {
			s.monitor(m, nconv, residuals)
		}

		if nconv >= s.nev || breakdown || m == s.maxSteps {
			reason := ksp.DivergedIts
			if nconv >= s.nev || breakdown {
				reason = ksp.ConvergedTolerance
			}
			values := make([]complex128, m)
			vectors := make([][]complex128, m)
			for col := 0; col < m; col++ {
				values[col] = complex(w[col], 0)
				coeffs := make([]complex128, m)
				for row := 0; row < m; row++ {
					coeffs[row] = complex(q.At(row, col), 0)
				}
				vectors[col] = ritzVectorFull(basis, coeffs)
			}
			return &Result{
				Values:    values,
				Vectors:   vectors,
				Residuals: residuals,
				NConv:     nconv,
				Reason:    reason,
			}, nil
		}
	}
	return nil, &errs.IncompatibleOptions{Reason: "krylov: maxSteps must be positive"}
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
