package spmat

import (
	"math"

	"github.com/gospectral/eigen/scalar"
)

// Vec is the distributed dense vector primitive of spec.md §3: set,
// copy, scale, axpy, dot, mDot, norm, pointwiseMult, and the scoped
// placeArray/getArray borrow contract. This reference implementation
// treats the local partition as the whole vector, matching SelfComm.
type Vec[S scalar.Scalar] struct {
	data    []S
	onLoan  bool // true while an array borrow (PlaceArray/GetArray) is outstanding
}

// NewVec allocates a zeroed vector of length n.
func NewVec[S scalar.Scalar](n int) *Vec[S] {
	return &Vec[S]{data: make([]S, n)}
}

// NewVecFrom wraps an existing slice without copying.
func NewVecFrom[S scalar.Scalar](data []S) *Vec[S] {
	return &Vec[S]{data: data}
}

func (v *Vec[S]) Len() int { return len(v.data) }

func (v *Vec[S]) At(i int) S { return v.data[i] }

func (v *Vec[S]) SetAt(i int, x S) { v.data[i] = x }

// Set fills every entry with x.
func (v *Vec[S]) Set(x S) {
	for i := range v.data {
		v.data[i] = x
	}
}

// Copy copies src into the receiver; lengths must match.
func (v *Vec[S]) Copy(src *Vec[S]) {
	copy(v.data, src.data)
}

// Scale computes v *= alpha.
func (v *Vec[S]) Scale(alpha S) {
	for i := range v.data {
		v.data[i] *= alpha
	}
}

// AXPY computes v += alpha*x.
func (v *Vec[S]) AXPY(alpha S, x *Vec[S]) {
	for i := range v.data {
		v.data[i] += alpha * x.data[i]
	}
}

// Dot computes x^H . v (conjugate-linear in the receiver's argument x,
// matching the BV/Krylov convention ⟨x, v⟩ = x^H v).
func (v *Vec[S]) Dot(x *Vec[S]) S {
	var sum S
	for i := range v.data {
		sum += scalar.Conj(x.data[i]) * v.data[i]
	}
	return sum
}

// MDot computes m[j] = X[j]^H . v for each column of X, the BV block
// reduction spec.md calls mDot.
func (v *Vec[S]) MDot(xs []*Vec[S], m []S) {
	for j, x := range xs {
		m[j] = v.Dot(x)
	}
}

// Norm returns the Euclidean (2-)norm of v.
func (v *Vec[S]) Norm() float64 {
	var sum float64
	for _, x := range v.data {
		a := scalar.Abs(x)
		sum += a * a
	}
	return math.Sqrt(sum)
}

// PointwiseMult computes v[i] = a[i]*b[i].
func (v *Vec[S]) PointwiseMult(a, b *Vec[S]) {
	for i := range v.data {
		v.data[i] = a.data[i] * b.data[i]
	}
}

// PlaceArray lets the caller borrow a backing array for v's storage,
// returning a release func that must be called before any other
// operation touches v (the scoped acquisition spec.md §3/§9 requires).
func (v *Vec[S]) PlaceArray(data []S) (release func()) {
	if v.onLoan {
		panic("spmat: vector array already placed")
	}
	old := v.data
	v.data = data
	v.onLoan = true
	return func() {
		v.data = old
		v.onLoan = false
	}
}

// GetArray exposes the backing slice for direct read/write, paired
// with RestoreArray; callers must not retain the slice past Restore.
func (v *Vec[S]) GetArray() []S { return v.data }

// RestoreArray is a no-op placeholder pairing GetArray for symmetry
// with the borrow contract (the reference Vec never needs to flush a
// separate device-side buffer back).
func (v *Vec[S]) RestoreArray([]S) {}
