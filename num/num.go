package num

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Fill sets all elements to val.
func Fill(a *Array, val float32) {
	for i := range a.data {
		a.data[i] = val
	}
}

// Copy copies src to dst which must be the same size.
func Copy(dst, src *Array) {
	if len(dst.data) != len(src.data) {
		panic(fmt.Sprintf("num: copy size mismatch %v %v", dst.dims, src.dims))
	}
	copy(dst.data, src.data)
}

// Axpy updates y += alpha * x.
func Axpy(alpha float32, x, y *Array) {
	if len(x.data) != len(y.data) {
		panic(fmt.Sprintf("num: axpy size mismatch %v %v", x.dims, y.dims))
	}
	blas32.Axpy(alpha, vec(x), vec(y))
}

// Scale updates x *= alpha.
func Scale(alpha float32, x *Array) {
	blas32.Scal(alpha, vec(x))
}

// Gemm updates c = alpha*op(a)*op(b) + beta*c where op is optional transposition.
// All arrays are 2 dimensional.
func Gemm(alpha, beta float32, a, b, c *Array, aTrans, bTrans bool) {
	blas32.Gemm(trans(aTrans), trans(bTrans), alpha, gen(a), gen(b), beta, gen(c))
}

// Relu sets dst = max(src, 0) elementwise.
func Relu(src, dst *Array) {
	for i, x := range src.data {
		if x > 0 {
			dst.data[i] = x
		} else {
			dst.data[i] = 0
		}
	}
}

// ReluD sets dst = grad where src > 0 else 0.
func ReluD(src, grad, dst *Array) {
	for i, x := range src.data {
		if x > 0 {
			dst.data[i] = grad.data[i]
		} else {
			dst.data[i] = 0
		}
	}
}

// Sigmoid sets dst = 1/(1+exp(-src)) elementwise.
func Sigmoid(src, dst *Array) {
	for i, x := range src.data {
		dst.data[i] = float32(1 / (1 + math.Exp(-float64(x))))
	}
}

// SigmoidD sets dst = grad * s * (1-s) where s is the sigmoid of src.
func SigmoidD(src, grad, dst *Array) {
	for i, x := range src.data {
		s := float32(1 / (1 + math.Exp(-float64(x))))
		dst.data[i] = grad.data[i] * s * (1 - s)
	}
}

// Tanh sets dst = tanh(src) elementwise.
func Tanh(src, dst *Array) {
	for i, x := range src.data {
		dst.data[i] = float32(math.Tanh(float64(x)))
	}
}

// TanhD sets dst = grad * (1 - tanh(src)^2).
func TanhD(src, grad, dst *Array) {
	for i, x := range src.data {
		y := float32(math.Tanh(float64(x)))
		dst.data[i] = grad.data[i] * (1 - y*y)
	}
}

// Softmax applies a row wise softmax to the [batch, classes] src array.
func Softmax(src, dst *Array) {
	rows, cols := src.dims[0], Prod(src.dims[1:])
	for r := 0; r < rows; r++ {
		row := src.data[r*cols : (r+1)*cols]
		out := dst.data[r*cols : (r+1)*cols]
		max := row[0]
		for _, x := range row {
			if x > max {
				max = x
			}
		}
		sum := 0.0
		for i, x := range row {
			e := math.Exp(float64(x - max))
			out[i] = float32(e)
			sum += e
		}
		inv := float32(1 / sum)
		for i := range out {
			out[i] *= inv
		}
	}
}

// SoftmaxLoss returns the total cross entropy loss between the one hot labels
// and predicted probabilities, summed over the batch.
func SoftmaxLoss(yOneHot, yPred *Array) float32 {
	loss := 0.0
	for i, y := range yOneHot.data {
		if y != 0 {
			loss -= float64(y) * math.Log(math.Max(float64(yPred.data[i]), 1e-10))
		}
	}
	return float32(loss)
}

// Onehot expands class labels into a [batch, classes] one hot encoding.
func Onehot(y []int32, dst *Array, classes int) {
	Fill(dst, 0)
	for i, label := range y {
		dst.data[i*classes+int(label)] = 1
	}
}

// Argmax writes the index of the max value in each row of the [batch, classes]
// array to out. Ties pick the lowest index.
func Argmax(a *Array, out []int32) {
	rows, cols := a.dims[0], Prod(a.dims[1:])
	for r := 0; r < rows; r++ {
		row := a.data[r*cols : (r+1)*cols]
		ix := 0
		for i, x := range row {
			if x > row[ix] {
				ix = i
			}
		}
		out[r] = int32(ix)
	}
}

func vec(a *Array) blas32.Vector {
	return blas32.Vector{N: len(a.data), Inc: 1, Data: a.data}
}

func gen(a *Array) blas32.General {
	if len(a.dims) != 2 {
		panic(fmt.Sprintf("num: gemm needs 2 dimensional arrays, have %v", a.dims))
	}
	return blas32.General{Rows: a.dims[0], Cols: a.dims[1], Stride: a.dims[1], Data: a.data}
}

func trans(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}
