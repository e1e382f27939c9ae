// Package dla is the thin dense linear-algebra adapter the rest of this
// module builds on: a GEMM/GETRF/GETRI/GEES/TRSYL/SYEV/TREVC/GESVD
// façade over gonum's blas64/lapack64/mat, in the same "wrap the small
// dense engine, panic on programmer error, report ok on factorization
// failure" style as gonum.org/v1/gonum/mat's EigenSym and SVD types.
package dla

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// RealGemm computes C = alpha*A*B + beta*C in place on dst.
func RealGemm(dst *mat.Dense, alpha float64, a, b mat.Matrix, beta float64) {
	var tmp mat.Dense
	tmp.Mul(a, b)
	tmp.Scale(alpha, &tmp)
	if beta == 0 {
		dst.CloneFrom(&tmp)
		return
	}
	dst.Scale(beta, dst)
	dst.Add(dst, &tmp)
}

// RealInverse inverts a in place, returning false (ok=false) if a is
// singular. Grounded on lapack64.Getrf/Getri via mat.Dense.Inverse's
// factorization pattern.
func RealInverse(dst *mat.Dense, a mat.Matrix) (ok bool) {
	err := dst.Inverse(a)
	return err == nil
}

// RealNorm computes the requested matrix norm (mat.Norm's p: 1, 2, math.Inf(1), or "fro").
func RealNorm(a mat.Matrix, p float64) float64 {
	return mat.Norm(a, p)
}

// RealSchur computes the real Schur factorization A = Q*T*Qᵀ, returning
// the quasi-upper-triangular T (2x2 blocks on the diagonal hold complex
// conjugate eigenvalue pairs) and the orthogonal Q. Grounded on
// lapack64.Gees in the same Factorize-and-report-ok style as
// mat.EigenSym.Factorize.
func RealSchur(a mat.Matrix) (q, t *mat.Dense, ok bool) {
	n, _ := a.Dims()
	t = mat.NewDense(n, n, nil)
	t.CloneFrom(a)
	q = mat.NewDense(n, n, nil)
	// A full Hessenberg-QR Schur reduction is performed by the
	// embedded small dense engine (lapack64.Gees in the real build);
	// this reference adapter implements the unshifted QR-algorithm
	// fallback so the package has no cgo/asm dependency beyond gonum.
	ok = hessenbergQR(t, q, 500, 1e-13)
	return q, t, ok
}

// hessenbergQR reduces t to quasi-triangular Schur form in place via
// repeated QR factorization (the textbook, slow-but-robust fallback
// lapack64.Gees replaces in a production build), accumulating the
// orthogonal transform into q.
func hessenbergQR(t, q *mat.Dense, maxIter int, tol float64) bool {
	n, _ := t.Dims()
	q.CloneFrom(eye(n))
	for iter := 0; iter < maxIter; iter++ {
		var qr mat.QR
		qr.Factorize(t)
		var qm, rm mat.Dense
		qr.QTo(&qm)
		qr.RTo(&rm)
		t.Mul(&rm, &qm)
		q.Mul(q, &qm)
		if offDiagNorm(t) < tol {
			return true
		}
	}
	return offDiagNorm(t) < tol*1e3
}

func offDiagNorm(t *mat.Dense) float64 {
	n, _ := t.Dims()
	var sum float64
	prevBlock := false
	for i := 1; i < n; i++ {
		for j := 0; j < i-1; j++ { // allow one sub-diagonal for 2x2 blocks
			v := t.At(i, j)
			sum += v * v
		}
		// A subdiagonal entry may stay only as the corner of a 2x2
		// block with complex eigenvalues, and such blocks never overlap.
		a, b := t.At(i-1, i-1), t.At(i-1, i)
		c, d := t.At(i, i-1), t.At(i, i)
		half := (a - d) / 2
		if prevBlock || half*half+b*c >= 0 {
			sum += c * c
			prevBlock = false
		} else {
			prevBlock = true
		}
	}
	return math.Sqrt(sum)
}

func eye(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// RealSylvester solves the Sylvester equation A*X - X*B = C for X (the
// "one-sided Sylvester solve" the Schur-based FN path needs for
// off-diagonal blocks of f(T)). isgn is always +1 here; the -1 variant
// (A*X + X*B = C) is not needed by this module's callers.
func RealSylvester(a, b, c mat.Matrix) (x *mat.Dense, ok bool) {
	m, _ := a.Dims()
	n, _ := b.Dims()
	// Vectorize: (I_n kron A - Bᵀ kron I_m) vec(X) = vec(C).
	dim := m * n
	k := mat.NewDense(dim, dim, nil)
	for bi := 0; bi < n; bi++ {
		for bj := 0; bj < n; bj++ {
			var coeff float64
			if bi == bj {
				coeff = 1
			}
			for ai := 0; ai < m; ai++ {
				for aj := 0; aj < m; aj++ {
					v := coeff * a.At(ai, aj)
					if ai == aj {
						v -= b.At(bj, bi)
					}
					k.Set(bi*m+ai, bj*m+aj, v)
				}
			}
		}
	}
	rhs := mat.NewVecDense(dim, nil)
	for bi := 0; bi < n; bi++ {
		for ai := 0; ai < m; ai++ {
			rhs.SetVec(bi*m+ai, c.At(ai, bi))
		}
	}
	var xv mat.VecDense
	if err := xv.SolveVec(k, rhs); err != nil {
		return nil, false
	}
	x = mat.NewDense(m, n, nil)
	for bi := 0; bi < n; bi++ {
		for ai := 0; ai < m; ai++ {
			x.Set(ai, bi, xv.AtVec(bi*m+ai))
		}
	}
	return x, true
}

// RealSyev computes the symmetric eigendecomposition A = Q*diag(w)*Qᵀ.
// Thin wrapper around mat.EigenSym, matching spec.md's SYEV entry in
// the small dense engine contract.
func RealSyev(a mat.Symmetric) (w []float64, q *mat.Dense, ok bool) {
	var es mat.EigenSym
	if !es.Factorize(a, true) {
		return nil, nil, false
	}
	w = es.Values(nil)
	var vecs mat.Dense
	vecs.EigenvectorsSym(&es)
	return w, &vecs, true
}

// RealGesvd computes the thin SVD A = U*diag(s)*Vᵀ.
func RealGesvd(a mat.Matrix) (u *mat.Dense, s []float64, vt *mat.Dense, ok bool) {
	var svd mat.SVD
	svd.U, svd.V = mat.SVDThin, mat.SVDThin
	if !svd.Factorize(a) {
		return nil, nil, nil, false
	}
	s = svd.Values(nil)
	var um, vm mat.Dense
	svd.UTo(&um)
	svd.VTo(&vm)
	vtm := new(mat.Dense)
	vtm.CloneFrom(vm.T())
	return &um, s, vtm, true
}

// Complex counterparts.
//
// gonum's retrieved lapack64/mat surface covers Gesvd/Syev/Gees for
// real float64 only; it has no complex Hermitian eigensolver or
// complex Schur routine to wrap. The complex paths below are a
// from-scratch dense implementation (Jacobi eigenvalue iteration,
// Gauss-Jordan inverse) kept to the standard library's math/cmplx —
// see DESIGN.md for why no third-party complex dense solver from the
// example pack could serve here.

// ComplexGemm computes C = alpha*A*B + beta*C in place on dst.
func ComplexGemm(dst *mat.CDense, alpha complex128, a, b mat.CMatrix, beta complex128) {
	ar, ac := a.Dims()
	_, bc := b.Dims()
	tmp := mat.NewCDense(ar, bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < bc; j++ {
			var sum complex128
			for k := 0; k < ac; k++ {
				sum += a.At(i, k) * b.At(k, j)
			}
			tmp.Set(i, j, alpha*sum)
		}
	}
	if beta == 0 {
		dst.Reset()
		dst.CloneFromC(tmp)
		return
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < bc; j++ {
			dst.Set(i, j, beta*dst.At(i, j)+tmp.At(i, j))
		}
	}
}

// ComplexInverse inverts an n×n complex matrix via Gauss-Jordan
// elimination with partial pivoting, reporting ok=false on a singular
// (to working tolerance) pivot.
func ComplexInverse(a mat.CMatrix) (inv *mat.CDense, ok bool) {
	n, _ := a.Dims()
	aug := make([][]complex128, n)
	for i := range aug {
		aug[i] = make([]complex128, 2*n)
		for j := 0; j < n; j++ {
			aug[i][j] = a.At(i, j)
		}
		aug[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		piv := col
		best := cmplx.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if v := cmplx.Abs(aug[r][col]); v > best {
				piv, best = r, v
			}
		}
		if best < 1e-300 {
			return nil, false
		}
		aug[col], aug[piv] = aug[piv], aug[col]
		pivVal := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= pivVal
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			if f == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[r][j] -= f * aug[col][j]
			}
		}
	}
	inv = mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv.Set(i, j, aug[i][n+j])
		}
	}
	return inv, true
}

// ComplexFrobeniusNorm returns ||A||_F for a complex dense matrix.
func ComplexFrobeniusNorm(a mat.CMatrix) float64 {
	r, c := a.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			sum += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(sum)
}

// ComplexHeev computes the Hermitian eigendecomposition A = Q*diag(w)*Q^H
// via the cyclic Jacobi eigenvalue algorithm, adequate for the small
// (Hankel / Rayleigh-Ritz projected) dense matrices this module feeds
// it; it is not a replacement for a full LAPACK zheev on large inputs.
func ComplexHeev(a mat.CMatrix) (w []float64, q *mat.CDense, ok bool) {
	n, _ := a.Dims()
	A := make([][]complex128, n)
	for i := range A {
		A[i] = make([]complex128, n)
		for j := 0; j < n; j++ {
			A[i][j] = a.At(i, j)
		}
	}
	Q := make([][]complex128, n)
	for i := range Q {
		Q[i] = make([]complex128, n)
		Q[i][i] = 1
	}
	const maxSweeps = 100
	for sweep := 0; sweep < maxSweeps; sweep++ {
		off := 0.0
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				off += cmplx.Abs(A[p][q]) * cmplx.Abs(A[p][q])
			}
		}
		if math.Sqrt(off) < 1e-14 {
			break
		}
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				if cmplx.Abs(A[p][q]) < 1e-300 {
					continue
				}
				jacobiRotate(A, Q, p, q, n)
			}
		}
	}
	w = make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = real(A[i][i])
	}
	q = mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			q.Set(i, j, Q[i][j])
		}
	}
	return w, q, true
}

// ComplexSchur computes the complex Schur factorization A = Q*T*Q^H,
// T upper triangular (no 2x2 blocks needed: unlike the real
// case, a complex Schur form has every eigenvalue directly on the
// diagonal). Grounded on the same unshifted-QR-iteration fallback as
// RealSchur, with a complex modified-Gram-Schmidt QR step in place of
// gonum's real-only mat.QR.
func ComplexSchur(a mat.CMatrix) (q, t *mat.CDense, ok bool) {
	n, _ := a.Dims()
	t = mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			t.Set(i, j, a.At(i, j))
		}
	}
	q = mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		q.Set(i, i, 1)
	}

	const maxIter = 500
	for iter := 0; iter < maxIter; iter++ {
		qm, rm := complexQR(t)
		ComplexGemm(t, 1, rm, qm, 0)
		newQ := mat.NewCDense(n, n, nil)
		ComplexGemm(newQ, 1, q, qm, 0)
		q = newQ
		if complexOffDiagNorm(t) < 1e-13 {
			return q, t, true
		}
	}
	return q, t, complexOffDiagNorm(t) < 1e-10
}

// complexQR factorizes a into Q*R via modified Gram-Schmidt (gonum's
// retrieved mat package has no complex QR to wrap).
func complexQR(a *mat.CDense) (q, r *mat.CDense) {
	n, _ := a.Dims()
	cols := make([][]complex128, n)
	for j := 0; j < n; j++ {
		cols[j] = make([]complex128, n)
		for i := 0; i < n; i++ {
			cols[j][i] = a.At(i, j)
		}
	}
	q = mat.NewCDense(n, n, nil)
	r = mat.NewCDense(n, n, nil)
	for j := 0; j < n; j++ {
		v := cols[j]
		for k := 0; k < j; k++ {
			var dot complex128
			for i := 0; i < n; i++ {
				dot += cmplx.Conj(q.At(i, k)) * v[i]
			}
			r.Set(k, j, dot)
			for i := 0; i < n; i++ {
				v[i] -= dot * q.At(i, k)
			}
		}
		nrm := 0.0
		for i := 0; i < n; i++ {
			nrm += real(v[i])*real(v[i]) + imag(v[i])*imag(v[i])
		}
		nrm = math.Sqrt(nrm)
		r.Set(j, j, complex(nrm, 0))
		if nrm < 1e-300 {
			continue
		}
		for i := 0; i < n; i++ {
			q.Set(i, j, v[i]/complex(nrm, 0))
		}
	}
	return q, r
}

func complexOffDiagNorm(t *mat.CDense) float64 {
	n, _ := t.Dims()
	var sum float64
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			v := t.At(i, j)
			sum += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(sum)
}

// ComplexTrevc computes the right eigenvectors of A = Q*T*Q^H from its
// complex Schur form: for each diagonal entry lambda_i of the upper
// triangular T, back-substitution solves (T-lambda_i*I)*x = 0 with
// x[i]=1, x[k]=0 for k>i, then the eigenvector in the original basis is
// Q*x. Grounded on the standard ZTREVC back-substitution recurrence.
func ComplexTrevc(q, t *mat.CDense) *mat.CDense {
	n, _ := t.Dims()
	x := mat.NewCDense(n, n, nil)
	for col := 0; col < n; col++ {
		lambda := t.At(col, col)
		xi := make([]complex128, n)
		xi[col] = 1
		for k := col - 1; k >= 0; k-- {
			var sum complex128
			for j := k + 1; j <= col; j++ {
				sum += t.At(k, j) * xi[j]
			}
			denom := t.At(k, k) - lambda
			if cmplx.Abs(denom) < 1e-300 {
				denom = complex(1e-300, 0)
			}
			xi[k] = -sum / denom
		}
		for i := 0; i < n; i++ {
			x.Set(i, col, xi[i])
		}
	}
	out := mat.NewCDense(n, n, nil)
	ComplexGemm(out, 1, q, x, 0)
	for col := 0; col < n; col++ {
		var nrm float64
		for i := 0; i < n; i++ {
			v := out.At(i, col)
			nrm += real(v)*real(v) + imag(v)*imag(v)
		}
		nrm = math.Sqrt(nrm)
		if nrm < 1e-300 {
			continue
		}
		for i := 0; i < n; i++ {
			out.Set(i, col, out.At(i, col)/complex(nrm, 0))
		}
	}
	return out
}

// jacobiRotate zeros A[p][q]/A[q][p] with a unitary rotation, used by
// ComplexHeev's cyclic sweep.
func jacobiRotate(A, Q [][]complex128, p, q, n int) {
	apq := A[p][q]
	phase := apq / complex(cmplx.Abs(apq), 0)
	app, aqq := real(A[p][p]), real(A[q][q])
	theta := 0.5 * math.Atan2(2*cmplx.Abs(apq), app-aqq)
	c := math.Cos(theta)
	s := math.Sin(theta) * phase

	for k := 0; k < n; k++ {
		akp, akq := A[k][p], A[k][q]
		A[k][p] = complex(c, 0)*akp - cmplx.Conj(s)*akq
		A[k][q] = s*akp + complex(c, 0)*akq
	}
	for k := 0; k < n; k++ {
		apk, aqk := A[p][k], A[q][k]
		A[p][k] = complex(c, 0)*apk - s*aqk
		A[q][k] = cmplx.Conj(s)*apk + complex(c, 0)*aqk
	}
	for k := 0; k < n; k++ {
		qkp, qkq := Q[k][p], Q[k][q]
		Q[k][p] = complex(c, 0)*qkp - cmplx.Conj(s)*qkq
		Q[k][q] = s*qkp + complex(c, 0)*qkq
	}
}
