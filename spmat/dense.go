package spmat

import (
	"math"

	"github.com/gospectral/eigen/scalar"
)

// Dense is a row-major dense Matrix[S], the simplest concrete binding
// of the Matrix contract — good for small test pencils and for the
// explicit (non-shell) cyclic-SVD operator of csvd. Layout mirrors
// blas64.General's (rows, cols, stride, data) convention.
type Dense[S scalar.Scalar] struct {
	rows, cols int
	data       []S
	state      int64
	hermitian  bool
}

// NewDense allocates a zeroed r×c dense matrix.
func NewDense[S scalar.Scalar](r, c int) *Dense[S] {
	return &Dense[S]{rows: r, cols: c, data: make([]S, r*c)}
}

// NewDenseFrom wraps existing row-major data without copying.
func NewDenseFrom[S scalar.Scalar](r, c int, data []S) *Dense[S] {
	return &Dense[S]{rows: r, cols: c, data: data}
}

func (d *Dense[S]) At(i, j int) S      { return d.data[i*d.cols+j] }
func (d *Dense[S]) Set(i, j int, v S)  { d.data[i*d.cols+j] = v; d.state++ }
func (d *Dense[S]) Dims() (int, int)   { return d.rows, d.cols }
func (d *Dense[S]) State() int64       { return d.state }

// SetHermitianKnown marks the matrix as Hermitian/symmetric by
// construction (the caller's responsibility, matching
// isSymmetricKnown/isHermitianKnown in spec.md §6).
func (d *Dense[S]) SetHermitianKnown(b bool) { d.hermitian = b }
func (d *Dense[S]) IsHermitianKnown() bool   { return d.hermitian }

func (d *Dense[S]) Mult(x, y *Vec[S]) {
	if x.Len() != d.cols || y.Len() != d.rows {
		panic("spmat: dense mult size mismatch")
	}
	for i := 0; i < d.rows; i++ {
		var sum S
		row := d.data[i*d.cols : (i+1)*d.cols]
		for j := 0; j < d.cols; j++ {
			sum += row[j] * x.At(j)
		}
		y.SetAt(i, sum)
	}
}

func (d *Dense[S]) MultTranspose(x, y *Vec[S]) {
	if x.Len() != d.rows || y.Len() != d.cols {
		panic("spmat: dense mult-transpose size mismatch")
	}
	for j := 0; j < d.cols; j++ {
		y.SetAt(j, 0)
	}
	for i := 0; i < d.rows; i++ {
		xi := x.At(i)
		if xi == 0 {
			continue
		}
		for j := 0; j < d.cols; j++ {
			y.SetAt(j, y.At(j)+scalar.Conj(d.At(i, j))*xi)
		}
	}
}

func (d *Dense[S]) AXPY(alpha S, b Matrix[S], _ StructureHint) {
	ob, ok := b.(*Dense[S])
	if !ok {
		panic("spmat: AXPY requires two Dense matrices in this reference implementation")
	}
	if ob.rows != d.rows || ob.cols != d.cols {
		panic("spmat: AXPY size mismatch")
	}
	for i := range d.data {
		d.data[i] += alpha * ob.data[i]
	}
	d.state++
}

func (d *Dense[S]) Shift(alpha S) {
	n := d.rows
	if d.cols < n {
		n = d.cols
	}
	for i := 0; i < n; i++ {
		d.data[i*d.cols+i] += alpha
	}
	d.state++
}

func (d *Dense[S]) Copy() Matrix[S] {
	nd := make([]S, len(d.data))
	copy(nd, d.data)
	return &Dense[S]{rows: d.rows, cols: d.cols, data: nd, hermitian: d.hermitian}
}

func (d *Dense[S]) Duplicate() Matrix[S] {
	return &Dense[S]{rows: d.rows, cols: d.cols, data: make([]S, d.rows*d.cols)}
}

func (d *Dense[S]) Norm(typ NormType) float64 {
	switch typ {
	case NormFrobenius:
		var sum float64
		for _, v := range d.data {
			a := scalar.Abs(v)
			sum += a * a
		}
		return math.Sqrt(sum)
	case NormInf:
		var best float64
		for i := 0; i < d.rows; i++ {
			var rowSum float64
			for j := 0; j < d.cols; j++ {
				rowSum += scalar.Abs(d.At(i, j))
			}
			if rowSum > best {
				best = rowSum
			}
		}
		return best
	case NormOne:
		var best float64
		for j := 0; j < d.cols; j++ {
			var colSum float64
			for i := 0; i < d.rows; i++ {
				colSum += scalar.Abs(d.At(i, j))
			}
			if colSum > best {
				best = colSum
			}
		}
		return best
	}
	panic("spmat: unknown norm type")
}

// ToDense materializes any Matrix[S] into a Dense[S] by applying Mult
// to each unit vector. It is the bridge ksp.Direct uses to get a dense
// factorizable snapshot of an arbitrary (e.g. CSR) operator; probing
// column-by-column is only viable for the small pencils this module's
// direct solver targets.
func ToDense[S scalar.Scalar](m Matrix[S]) *Dense[S] {
	rows, cols := m.Dims()
	d := NewDense[S](rows, cols)
	e := NewVec[S](cols)
	y := NewVec[S](rows)
	for j := 0; j < cols; j++ {
		e.Set(0)
		e.SetAt(j, scalar.FromFloat64[S](1))
		m.Mult(e, y)
		for i := 0; i < rows; i++ {
			d.Set(i, j, y.At(i))
		}
	}
	return d
}
