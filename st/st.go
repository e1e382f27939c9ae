// Package st implements the spectral transform of spec.md §3/§4.2: it
// holds the pencil {A_0,...,A_{r-1}}, a shift sigma, a mat-mode, and an
// attached ksp.Handle, and turns the original eigenproblem into the
// operator (e.g. (A-sigma*B)^-1*B) whose eigenvalues krylov/ciss
// actually iterate on.
package st

import (
	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"
)

// MatMode selects how ST builds its shifted/transformed matrix T.
type MatMode int

const (
	MatModeCopy MatMode = iota
	MatModeInPlace
	MatModeShell
)

// State tracks whether T/P/the solver are consistent with the current
// shift and the Aᵢ's mutation snapshots.
type State int

const (
	StateInitial State = iota
	StateSetupDone
	StateUpdated
)

// ST is the shift-and-invert (and polynomial generalization) spectral
// transform.
type ST[S scalar.Scalar] struct {
	mats      []spmat.Matrix[S]
	matSnap   []int64
	sigma     S
	sigmaSet  bool
	matMode   MatMode
	structure spmat.StructureHint

	t      []spmat.Matrix[S] // T_0..T_{r-1}; T_{r-1} is the preconditioner pencil P
	p      spmat.Matrix[S]
	psplit []spmat.Matrix[S]

	solver ksp.Handle[S]
	state  State
	n      int
}

// New creates an ST with no matrices set; call SetMatrices before
// SetUp.
func New[S scalar.Scalar](solver ksp.Handle[S]) *ST[S] {
	return &ST[S]{solver: solver, matMode: MatModeCopy, state: StateInitial}
}

// SetMatrices stores the list, resets state to StateInitial on every
// call (whether or not the list changed), and records each input's
// mutation-state snapshot.
func (st *ST[S]) SetMatrices(mats []spmat.Matrix[S]) {
	st.mats = append([]spmat.Matrix[S](nil), mats...)
	st.matSnap = make([]int64, len(mats))
	for i, m := range mats {
		st.matSnap[i] = m.State()
	}
	rows, _ := mats[0].Dims()
	st.n = rows
	st.state = StateInitial
}

// SetMatMode sets the COPY/INPLACE/SHELL mode.
func (st *ST[S]) SetMatMode(m MatMode) { st.matMode = m }

// SetStructureHint records the structural relationship between the
// Aᵢ, used by COPY/AXPY when building T.
func (st *ST[S]) SetStructureHint(h spmat.StructureHint) { st.structure = h }

// SetPreconditionerMat overrides the default P with an explicit
// matrix (highest precedence in the policy of spec.md §4.2).
func (st *ST[S]) SetPreconditionerMat(p spmat.Matrix[S]) { st.p = p }

// SetSplitPreconditioner supplies Psplit_i so that
// Pmat(sigma) = sum Psplit_i * phi_i(sigma) (second precedence).
func (st *ST[S]) SetSplitPreconditioner(psplit []spmat.Matrix[S]) { st.psplit = psplit }

// SetShift sets sigma. If state is already StateSetupDone, this
// reference ST always falls back to the "just store and mark
// initial" branch (no solver offers an online shift update in this
// build); otherwise it simply stores sigma.
func (st *ST[S]) SetShift(sigma S) {
	st.sigma = sigma
	st.sigmaSet = true
	if st.state == StateSetupDone {
		st.state = StateInitial
	}
}

// Shift returns the currently stored sigma.
func (st *ST[S]) Shift() S { return st.sigma }

// checkStale returns errs.StateStale if any Aᵢ's state counter moved
// since the snapshot recorded at SetUp (spec.md §3's ST invariant).
func (st *ST[S]) checkStale() error {
	for i, m := range st.mats {
		if m.State() != st.matSnap[i] {
			return &errs.StateStale{Component: "st.ST"}
		}
	}
	return nil
}

// SetUp builds T and P per the current mat-mode and shift, hands P to
// the attached linear solver, and promotes state to StateSetupDone.
func (st *ST[S]) SetUp() error {
	if len(st.mats) == 0 {
		return &errs.IncompatibleOptions{Reason: "st: SetMatrices not called"}
	}
	if !st.sigmaSet {
		var zero S
		st.sigma = zero
	}
	t, err := st.buildPencil()
	if err != nil {
		return err
	}
	st.t = t

	p := st.p
	if p == nil && st.psplit != nil {
		p = st.buildSplitPreconditioner()
	}
	if p == nil {
		p = t[len(t)-1]
	}

	st.solver.SetOperators(t[len(t)-1], p, st.structure)
	if err := st.solver.SetUp(); err != nil {
		st.state = StateInitial
		return &errs.SolverSetupFailure{Reason: err.Error()}
	}

	for i, m := range st.mats {
		st.matSnap[i] = m.State()
	}
	st.state = StateSetupDone
	return nil
}

// buildPencil constructs T_0..T_{r-1} from the pencil per spec.md
// §4.2: standard/generalized linear (r<=2) just shift A_0 by -sigma*A_1
// (or -sigma*I); polynomial (r>2) uses the monomial composition
// T_0=A_{r-1}, T_k = A_{r-k-1} + sigma*T_{k-1}.
func (st *ST[S]) buildPencil() ([]spmat.Matrix[S], error) {
	r := len(st.mats)
	negSigma := -st.sigma
	switch {
	case r == 1:
		t := st.dup(st.mats[0])
		t.Shift(negSigma)
		return []spmat.Matrix[S]{t}, nil
	case r == 2:
		t := st.dup(st.mats[0])
		b := st.dup(st.mats[1])
		t.AXPY(negSigma, b, st.structure)
		return []spmat.Matrix[S]{b, t}, nil
	default:
		t := make([]spmat.Matrix[S], r)
		t[0] = st.dup(st.mats[r-1])
		for k := 1; k < r; k++ {
			tk := st.dup(st.mats[r-k-1])
			tk.AXPY(st.sigma, t[k-1], spmat.StructureUnknown)
			t[k] = tk
		}
		return t, nil
	}
}

// dup duplicates or aliases a depending on mat-mode: COPY/SHELL both
// work from an independent copy in this reference build (true SHELL
// matrix-free operators are only exercised by csvd's cyclic operator);
// INPLACE mutates a directly.
func (st *ST[S]) dup(a spmat.Matrix[S]) spmat.Matrix[S] {
	if st.matMode == MatModeInPlace {
		return a
	}
	return a.Copy()
}

func (st *ST[S]) buildSplitPreconditioner() spmat.Matrix[S] {
	p := st.psplit[0].Copy()
	phi := scalar.FromFloat64[S](1)
	for i := 1; i < len(st.psplit); i++ {
		phi *= st.sigma
		p.AXPY(phi, st.psplit[i], spmat.StructureUnknown)
	}
	return p
}

// Apply computes y = OP*x: for the generalized shift-and-invert
// variant, (A-sigma*B)^-1 * B * x; for standard, (A-sigma*I)^-1 * x.
func (st *ST[S]) Apply(x, y *spmat.Vec[S]) error {
	if st.state != StateSetupDone {
		return &errs.IncompatibleOptions{Reason: "st: Apply before SetUp"}
	}
	if err := st.checkStale(); err != nil {
		return err
	}
	rhs := x
	if len(st.mats) == 2 {
		rhs = spmat.NewVec[S](st.n)
		st.mats[1].Mult(x, rhs)
	}
	return st.solver.Solve(rhs, y)
}

// ApplyTranspose computes the conjugate-transpose application.
func (st *ST[S]) ApplyTranspose(x, y *spmat.Vec[S]) error {
	if st.state != StateSetupDone {
		return &errs.IncompatibleOptions{Reason: "st: ApplyTranspose before SetUp"}
	}
	if err := st.checkStale(); err != nil {
		return err
	}
	// Solve T^H z = x, then y = B^H z (generalized) or y = z (standard).
	z := spmat.NewVec[S](st.n)
	direct, ok := st.solver.(interface {
		SolveTranspose(b, x *spmat.Vec[S]) error
	})
	if ok {
		if err := direct.SolveTranspose(x, z); err != nil {
			return err
		}
	} else {
		if err := st.solver.Solve(x, z); err != nil {
			return err
		}
	}
	if len(st.mats) == 2 {
		st.mats[1].MultTranspose(z, y)
		return nil
	}
	y.Copy(z)
	return nil
}

// BackTransform turns eigenvalues of OP back into eigenvalues of the
// original pencil (spec.md §4.2): for real scalars, conjugate pairs
// (lr, li) are handled jointly; li=0 maps to 1/lr + sigma, otherwise
// t=lr^2+li^2 maps to (lr/t + sigma, -li/t).
func (st *ST[S]) BackTransform(lr, li []float64) {
	for i := range lr {
		r, im := lr[i], li[i]
		if im == 0 {
			if r == 0 {
				lr[i] = scalar.Real(st.sigma)
				continue
			}
			lr[i] = 1/r + scalar.Real(st.sigma)
			continue
		}
		t := r*r + im*im
		lr[i] = r/t + scalar.Real(st.sigma)
		li[i] = -im / t
	}
}
