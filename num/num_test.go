package num

import (
	"math"
	"reflect"
	"testing"
)

const eps = 1e-6

func compare(t *testing.T, title string, got, expect []float32) {
	t.Helper()
	if len(got) != len(expect) {
		t.Fatal(title, "length mismatch!")
	}
	for i := range got {
		if math.Abs(float64(got[i]-expect[i])) > eps {
			t.Errorf("%s mismatch: got %v expect %v", title, got, expect)
			return
		}
	}
}

func TestArray(t *testing.T) {
	x := NewArrayData([]float32{1, 1, 2, 2, 3, 3}, 6)
	x = x.Reshape(2, 3)
	if dim := x.Dims(); !reflect.DeepEqual(dim, []int{2, 3}) {
		t.Error("dims invalid: got", dim)
	}
	if v := x.At(1, 2); v != 3 {
		t.Error("at invalid: got", v)
	}
	y := x.Reshape(3, -1)
	if dim := y.Dims(); !reflect.DeepEqual(dim, []int{3, 2}) {
		t.Error("inferred dims invalid: got", dim)
	}
	row := x.Slice(1, 2)
	compare(t, "slice", row.Data(), []float32{2, 3, 3})
}

func TestGemm(t *testing.T) {
	a := NewArrayData([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := NewArrayData([]float32{1, 0, 0, 1, 1, 1}, 3, 2)
	c := NewArray(2, 2)
	Gemm(1, 0, a, b, c, false, false)
	compare(t, "gemm", c.Data(), []float32{4, 5, 10, 11})

	// aᵀ * a
	d := NewArray(3, 3)
	Gemm(1, 0, a, a, d, true, false)
	compare(t, "gemm trans", d.Data(), []float32{17, 22, 27, 22, 29, 36, 27, 36, 45})
}

func TestAxpyScale(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3}, 3)
	y := NewArrayData([]float32{1, 1, 1}, 3)
	Axpy(2, x, y)
	compare(t, "axpy", y.Data(), []float32{3, 5, 7})
	Scale(0.5, y)
	compare(t, "scale", y.Data(), []float32{1.5, 2.5, 3.5})
}

func TestRelu(t *testing.T) {
	src := NewArrayData([]float32{-1, 0, 2, -3}, 4)
	dst := NewArray(4)
	Relu(src, dst)
	compare(t, "relu", dst.Data(), []float32{0, 0, 2, 0})
	grad := NewArrayData([]float32{1, 1, 1, 1}, 4)
	ReluD(src, grad, dst)
	compare(t, "reluD", dst.Data(), []float32{0, 0, 1, 0})
}

func TestSigmoid(t *testing.T) {
	src := NewArrayData([]float32{0, 1, -1}, 3)
	dst := NewArray(3)
	Sigmoid(src, dst)
	compare(t, "sigmoid", dst.Data(), []float32{0.5, 0.7310586, 0.26894143})
	grad := NewArrayData([]float32{1, 2, 1}, 3)
	SigmoidD(src, grad, dst)
	compare(t, "sigmoidD", dst.Data(), []float32{0.25, 0.39322387, 0.19661193})
}

func TestTanh(t *testing.T) {
	src := NewArrayData([]float32{0, 1, -1}, 3)
	dst := NewArray(3)
	Tanh(src, dst)
	compare(t, "tanh", dst.Data(), []float32{0, 0.7615942, -0.7615942})
	grad := NewArrayData([]float32{1, 2, 1}, 3)
	TanhD(src, grad, dst)
	compare(t, "tanhD", dst.Data(), []float32{1, 0.83994865, 0.41997433})
}

func TestSoftmax(t *testing.T) {
	src := NewArrayData([]float32{0, 0, 0, 1, 2, 3}, 2, 3)
	dst := NewArray(2, 3)
	Softmax(src, dst)
	third := float32(1.0 / 3.0)
	compare(t, "softmax uniform", dst.Data()[:3], []float32{third, third, third})
	sum := float32(0)
	for _, v := range dst.Data()[3:] {
		sum += v
	}
	if math.Abs(float64(sum-1)) > eps {
		t.Error("softmax row does not sum to 1:", sum)
	}
	if !(dst.At(1, 2) > dst.At(1, 1) && dst.At(1, 1) > dst.At(1, 0)) {
		t.Error("softmax not monotonic:", dst.Data()[3:])
	}
}

func TestSoftmaxLoss(t *testing.T) {
	yOneHot := NewArrayData([]float32{1, 0, 0, 1}, 2, 2)
	yPred := NewArrayData([]float32{0.5, 0.5, 0.5, 0.5}, 2, 2)
	loss := SoftmaxLoss(yOneHot, yPred)
	expect := float32(-2 * math.Log(0.5))
	if math.Abs(float64(loss-expect)) > eps {
		t.Errorf("loss: got %v expect %v", loss, expect)
	}
}

func TestOnehot(t *testing.T) {
	dst := NewArray(3, 4)
	Onehot([]int32{1, 0, 3}, dst, 4)
	compare(t, "onehot", dst.Data(), []float32{
		0, 1, 0, 0,
		1, 0, 0, 0,
		0, 0, 0, 1})
}

func TestArgmax(t *testing.T) {
	a := NewArrayData([]float32{
		0, 3, 3, 1,
		2, 2, 2, 2,
		-1, -2, 0, -3}, 3, 4)
	out := make([]int32, 3)
	Argmax(a, out)
	// ties pick the lowest index
	if !reflect.DeepEqual(out, []int32{1, 0, 2}) {
		t.Error("argmax: got", out)
	}
}
