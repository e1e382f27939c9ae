package fn

import (
	"math"

	"github.com/gospectral/eigen/scalar"
)

// Generic small-dense helpers used by the matrix-function iterations
// (Denman-Beavers, Newton-Schulz, Sadeghi all only need Gemm, an
// inverse, and a Frobenius norm — not a full BLAS/LAPACK surface).

func gemm[S scalar.Scalar](a, b [][]S) [][]S {
	n := len(a)
	m := len(b[0])
	k := len(b)
	c := make([][]S, n)
	for i := range c {
		c[i] = make([]S, m)
		for j := 0; j < m; j++ {
			var sum S
			for p := 0; p < k; p++ {
				sum += a[i][p] * b[p][j]
			}
			c[i][j] = sum
		}
	}
	return c
}

func addScaled[S scalar.Scalar](a [][]S, alpha S, b [][]S) [][]S {
	n := len(a)
	c := make([][]S, n)
	for i := range c {
		c[i] = make([]S, len(a[i]))
		for j := range c[i] {
			c[i][j] = a[i][j] + alpha*b[i][j]
		}
	}
	return c
}

func scaleDense[S scalar.Scalar](a [][]S, alpha S) [][]S {
	c := make([][]S, len(a))
	for i := range c {
		c[i] = make([]S, len(a[i]))
		for j := range c[i] {
			c[i][j] = alpha * a[i][j]
		}
	}
	return c
}

func identity[S scalar.Scalar](n int) [][]S {
	m := make([][]S, n)
	for i := range m {
		m[i] = make([]S, n)
		m[i][i] = scalar.FromFloat64[S](1)
	}
	return m
}

func cloneDense[S scalar.Scalar](a [][]S) [][]S {
	c := make([][]S, len(a))
	for i := range c {
		c[i] = append([]S(nil), a[i]...)
	}
	return c
}

// inverse computes a^-1 via Gauss-Jordan elimination with partial
// pivoting (by modulus), generic over real or complex S.
func inverse[S scalar.Scalar](a [][]S) ([][]S, bool) {
	n := len(a)
	aug := make([][]S, n)
	for i := range aug {
		aug[i] = make([]S, 2*n)
		copy(aug[i], a[i])
		aug[i][n+i] = scalar.FromFloat64[S](1)
	}
	for col := 0; col < n; col++ {
		piv := col
		best := scalar.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if v := scalar.Abs(aug[r][col]); v > best {
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
	inv := make([][]S, n)
	for i := range inv {
		inv[i] = append([]S(nil), aug[i][n:]...)
	}
	return inv, true
}

func frobNorm[S scalar.Scalar](a [][]S) float64 {
	var sum float64
	for _, row := range a {
		for _, v := range row {
			x := scalar.Abs(v)
			sum += x * x
		}
	}
	return math.Sqrt(sum)
}

func frobDist[S scalar.Scalar](a, b [][]S) float64 {
	n := len(a)
	d := make([][]S, n)
	for i := range d {
		d[i] = make([]S, len(a[i]))
		for j := range d[i] {
			d[i][j] = a[i][j] - b[i][j]
		}
	}
	return frobNorm(d)
}

func determinantAbs[S scalar.Scalar](a [][]S) float64 {
	n := len(a)
	m := cloneDense(a)
	det := 1.0
	sign := 1.0
	for col := 0; col < n; col++ {
		piv := col
		best := scalar.Abs(m[col][col])
		for r := col + 1; r < n; r++ {
			if v := scalar.Abs(m[r][col]); v > best {
				piv, best = r, v
			}
		}
		if best < 1e-300 {
			return 0
		}
		if piv != col {
			m[col], m[piv] = m[piv], m[col]
			sign = -sign
		}
		det *= scalar.Abs(m[col][col])
		pivVal := m[col][col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / pivVal
			for j := col; j < n; j++ {
				m[r][j] -= f * m[col][j]
			}
		}
	}
	return det
}
