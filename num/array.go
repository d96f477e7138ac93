// Package num contains synchronous float32 array operations for neural network evaluation.
package num

import (
	"fmt"
	"strings"
)

// Array is a dense row major float32 array with up to 4 dimensions.
type Array struct {
	dims []int
	data []float32
}

// NewArray creates a new array of the given shape initialised to zero.
func NewArray(dims ...int) *Array {
	return &Array{dims: dims, data: make([]float32, Prod(dims))}
}

// NewArrayData creates a new array wrapping the given backing slice.
// Panics if the length does not match the shape.
func NewArrayData(data []float32, dims ...int) *Array {
	if len(data) != Prod(dims) {
		panic(fmt.Sprintf("num: data length %d does not match shape %v", len(data), dims))
	}
	return &Array{dims: dims, data: data}
}

// Dims returns the shape of the array.
func (a *Array) Dims() []int { return a.dims }

// Size returns the total number of elements.
func (a *Array) Size() int { return len(a.data) }

// Data returns the backing slice.
func (a *Array) Data() []float32 { return a.data }

// Reshape returns a view on the same data with a new shape.
// One dimension may be -1 in which case it is inferred from the others.
func (a *Array) Reshape(dims ...int) *Array {
	size := 1
	infer := -1
	for i, d := range dims {
		if d == -1 {
			if infer >= 0 {
				panic("num: only one dimension can be -1 in Reshape")
			}
			infer = i
		} else {
			size *= d
		}
	}
	shape := append([]int{}, dims...)
	if infer >= 0 {
		shape[infer] = len(a.data) / size
		size *= shape[infer]
	}
	if size != len(a.data) {
		panic(fmt.Sprintf("num: cannot reshape %v to %v", a.dims, dims))
	}
	return &Array{dims: shape, data: a.data}
}

// Slice returns a view on rows [start, end) along the leading dimension.
func (a *Array) Slice(start, end int) *Array {
	if len(a.dims) == 0 || start < 0 || end > a.dims[0] || start > end {
		panic(fmt.Sprintf("num: invalid slice [%d:%d] of %v", start, end, a.dims))
	}
	n := Prod(a.dims[1:])
	shape := append([]int{end - start}, a.dims[1:]...)
	return &Array{dims: shape, data: a.data[start*n : end*n]}
}

// At returns the element at the given row major position in a 2 dimensional array.
func (a *Array) At(row, col int) float32 {
	return a.data[row*a.dims[1]+col]
}

// String formats a 1 or 2 dimensional array for debug output.
func (a *Array) String() string {
	if len(a.dims) == 1 {
		return fmt.Sprint(a.data)
	}
	rows, cols := a.dims[0], Prod(a.dims[1:])
	s := make([]string, rows)
	for r := 0; r < rows; r++ {
		s[r] = fmt.Sprint(a.data[r*cols : (r+1)*cols])
	}
	return strings.Join(s, "\n")
}

// Prod returns the product of the given dimensions.
func Prod(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}

// SameShape checks if the two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
