package fn

import (
	"math"

	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/scalar"
)

// denmanBeavers runs the product-form Denman-Beavers iteration of
// spec.md §4.3:
//   X_{k+1} = 1/2 * X_k * (I + M_k^-1)
//   M_{k+1} = 1/2 * (I + (M_k + M_k^-1)/2)
// terminating when ||I-M||_F <= sqrt(n)*eps/2. With inv=true, X0=I
// produces A^-1/2 instead of A^1/2. Optional per-iteration scaling by
// g = |det M|^(-1/2n) runs until the relative step shrinks below 1e-2,
// matching the original_source/fnsqrt.c scaling heuristic.
func denmanBeavers[S scalar.Scalar](a [][]S, inv bool) ([][]S, error) {
	n := len(a)
	tol := math.Sqrt(float64(n)) * 0x1p-52 / 2

	x := cloneDense(a)
	if inv {
		x = identity[S](n)
	}
	m := cloneDense(a)
	id := identity[S](n)

	var prevX [][]S
	scaling := true
	for iter := 0; iter < maxMatrixIterations; iter++ {
		if scaling {
			det := determinantAbs(m)
			if det > 0 {
				g := math.Pow(det, -1.0/(2*float64(n)))
				x = scaleDense(x, scalar.FromFloat64[S](g))
				m = scaleDense(m, scalar.FromFloat64[S](g*g))
			}
		}

		mInv, ok := inverse(m)
		if !ok {
			return nil, &errs.MatrixFunctionNotConverged{Method: "Denman-Beavers", Iterations: iter, Residual: frobDist(id, m)}
		}
		half := scalar.FromFloat64[S](0.5)
		newX := gemm(x, addScaled(id, scalar.FromFloat64[S](1), mInv))
		newX = scaleDense(newX, half)
		avg := addScaled(m, scalar.FromFloat64[S](1), mInv)
		avg = scaleDense(avg, half)
		newM := addScaled(id, scalar.FromFloat64[S](1), avg)
		newM = scaleDense(newM, half)

		if prevX != nil {
			rel := frobDist(newX, prevX)
			denomNorm := frobNorm(newX)
			if denomNorm > 0 && rel/denomNorm < 1e-2 {
				scaling = false
			}
		}
		prevX = x
		x, m = newX, newM

		res := frobDist(id, m)
		if res <= tol {
			return x, nil
		}
	}
	return nil, &errs.MatrixFunctionNotConverged{Method: "Denman-Beavers", Iterations: maxMatrixIterations, Residual: frobDist(id, m)}
}

// newtonSchulz runs the coupled Newton-Schulz sqrt iteration of
// spec.md §4.3:
//   X_{k+1} = 1/2 * X_k * (3I - Y_k*X_k)
//   Y_{k+1} = 1/2 * (3I - Y_k*X_k) * Y_k
// which converges quadratically provided A is contracted
// (||I-A||<1). A is pre-scaled by 1/||A||_F when that norm exceeds 1
// and the result rescaled by sqrt(||A||_F); the iteration stops once
// ||I - Y*X||_F <= sqrt(n)*eps/2.
func newtonSchulz[S scalar.Scalar](a [][]S) ([][]S, error) {
	n := len(a)
	id := identity[S](n)
	norm := frobNorm(a)
	scaleFactor := 1.0
	x := cloneDense(a)
	if norm > 1 {
		scaleFactor = norm
		x = scaleDense(a, scalar.FromFloat64[S](1/norm))
	}
	y := identity[S](n)
	half := scalar.FromFloat64[S](0.5)
	three := scalar.FromFloat64[S](3)

	tol := math.Sqrt(float64(n)) * 0x1p-52 / 2
	for iter := 0; iter < maxMatrixIterations; iter++ {
		yx := gemm(y, x)
		t := addScaled(scaleDense(id, three), scalar.FromFloat64[S](-1), yx)
		newX := scaleDense(gemm(x, t), half)
		newY := scaleDense(gemm(t, y), half)
		x, y = newX, newY
		if frobDist(id, gemm(y, x)) <= tol {
			return scaleDense(x, scalar.FromFloat64[S](math.Sqrt(scaleFactor))), nil
		}
	}
	return nil, &errs.MatrixFunctionNotConverged{Method: "Newton-Schulz", Iterations: maxMatrixIterations}
}

// sadeghi runs the higher-order Sadeghi square-root iteration of
// spec.md §4.3, pre-scaling A by 1/||A||_F when that norm exceeds 1
// and rescaling the result by sqrt(||A||_F).
func sadeghi[S scalar.Scalar](a [][]S) ([][]S, error) {
	n := len(a)
	id := identity[S](n)
	norm := frobNorm(a)
	scaleFactor := 1.0
	work := a
	if norm > 1 {
		scaleFactor = norm
		work = scaleDense(a, scalar.FromFloat64[S](1/norm))
	}

	x := identity[S](n)
	m := cloneDense(work)
	tol := math.Sqrt(float64(n)) * 0x1p-52 / 2

	c5 := scalar.FromFloat64[S](5)
	c15 := scalar.FromFloat64[S](15)
	c16inv := scalar.FromFloat64[S](1.0 / 16)

	for iter := 0; iter < maxMatrixIterations; iter++ {
		m2 := gemm(m, m)
		inner := addScaled(scaleDense(id, c15), scalar.FromFloat64[S](-1), scaleDense(m, c5))
		inner = addScaled(inner, scalar.FromFloat64[S](1), m2)
		g := gemm(m, inner)
		g = addScaled(scaleDense(id, c5), scalar.FromFloat64[S](1), g)
		g = scaleDense(g, c16inv)

		x = gemm(x, g)
		gg := gemm(g, g)
		ggInv, ok := inverse(gg)
		if !ok {
			return nil, &errs.MatrixFunctionNotConverged{Method: "Sadeghi", Iterations: iter}
		}
		m = gemm(m, ggInv)

		res := frobDist(id, m)
		if res <= tol {
			break
		}
		if iter == maxMatrixIterations-1 {
			return nil, &errs.MatrixFunctionNotConverged{Method: "Sadeghi", Iterations: maxMatrixIterations, Residual: res}
		}
	}

	if scaleFactor != 1.0 {
		x = scaleDense(x, scalar.FromFloat64[S](math.Sqrt(scaleFactor)))
	}
	return x, nil
}
