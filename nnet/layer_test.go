package nnet

import (
	"math"
	"testing"

	"convnet/num"
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

func TestLinearLayer(t *testing.T) {
	l := &linear{Linear: Linear{Nout: 2}}
	if err := l.Init([]int{2}, 2); err != nil {
		t.Fatal(err)
	}
	w := num.NewArrayData([]float32{1, 2, 3, 4}, 2, 2)
	b := num.NewArrayData([]float32{0.5, -0.5}, 2)
	l.SetParams(w, b)

	in := num.NewArrayData([]float32{1, 0, 0, 1}, 2, 2)
	out := l.Fprop(in, true)
	compare(t, "fprop", out.Data(), []float32{1.5, 1.5, 3.5, 3.5})

	grad := num.NewArrayData([]float32{1, 0, 0, 1}, 2, 2)
	dsrc := l.Bprop(grad)
	dw, db := l.ParamGrads()
	compare(t, "dw", dw.Data(), []float32{1, 0, 0, 1})
	compare(t, "db", db.Data(), []float32{1, 1})
	compare(t, "dsrc", dsrc.Data(), []float32{1, 3, 2, 4})
}

func TestActivationLayer(t *testing.T) {
	tests := []struct {
		atype string
		fprop []float32
		bprop []float32
	}{
		{"relu",
			[]float32{0, 0.5, 2, 0},
			[]float32{0, 2, 3, 0}},
		{"sigmoid",
			[]float32{0.26894143, 0.62245935, 0.8807971, 0.047425874},
			[]float32{0.19661193, 0.47000742, 0.31498075, 0.18070664}},
		{"tanh",
			[]float32{-0.7615942, 0.46211717, 0.9640276, -0.9950548},
			[]float32{0.41997433, 1.5728954, 0.21195248, 0.03946415}},
	}
	for _, test := range tests {
		cfg := Activation{Atype: test.atype}.Marshal()
		layer, err := cfg.Unmarshal()
		if err != nil {
			t.Fatal(err)
		}
		if err := layer.Init([]int{4}, 1); err != nil {
			t.Fatal(err)
		}
		in := num.NewArrayData([]float32{-1, 0.5, 2, -3}, 1, 4)
		out := layer.Fprop(in, true)
		compare(t, test.atype+" fprop", out.Data(), test.fprop)

		grad := num.NewArrayData([]float32{1, 2, 3, 4}, 1, 4)
		dsrc := layer.Bprop(grad)
		compare(t, test.atype+" bprop", dsrc.Data(), test.bprop)
	}
}

func TestConvLayer(t *testing.T) {
	l := &conv{Conv: Conv{Nfeats: 1, Size: 2}}
	if err := l.Init([]int{1, 3, 3}, 1); err != nil {
		t.Fatal(err)
	}
	w := num.NewArrayData([]float32{1, 1, 1, 1}, 1, 4)
	b := num.NewArrayData([]float32{0}, 1)
	l.SetParams(w, b)

	in := num.NewArrayData([]float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9}, 1, 1, 3, 3)
	out := l.Fprop(in, true)
	// each output is the sum over a 2x2 window
	compare(t, "fprop", out.Data(), []float32{12, 16, 24, 28})

	grad := num.NewArrayData([]float32{1, 1, 1, 1}, 1, 1, 2, 2)
	dsrc := l.Bprop(grad)
	dw, db := l.ParamGrads()
	compare(t, "dw", dw.Data(), []float32{12, 16, 24, 28})
	compare(t, "db", db.Data(), []float32{4})
	compare(t, "dsrc", dsrc.Data(), []float32{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1})
}

func TestMaxPoolLayer(t *testing.T) {
	l := &maxPool{MaxPool: MaxPool{Size: 2, Stride: 2}}
	if err := l.Init([]int{1, 4, 4}, 2); err != nil {
		t.Fatal(err)
	}
	in := num.NewArrayData([]float32{
		1, 3, 2, 1,
		4, 2, 0, 1,
		0, 1, 5, 6,
		1, 2, 7, 8}, 1, 1, 4, 4)
	out := l.Fprop(in, true)
	compare(t, "fprop", out.Data(), []float32{4, 2, 2, 8})

	grad := num.NewArrayData([]float32{1, 1, 1, 1}, 1, 1, 2, 2)
	dsrc := l.Bprop(grad)
	sum := float32(0)
	for _, v := range dsrc.Data() {
		sum += v
	}
	if sum != 4 {
		t.Error("bprop should route each gradient to one input, sum =", sum)
	}
}

func TestLogRegressionLayer(t *testing.T) {
	l := &logRegression{}
	if err := l.Init([]int{2}, 1); err != nil {
		t.Fatal(err)
	}
	in := num.NewArrayData([]float32{0, 0}, 1, 2)
	out := l.Fprop(in, true)
	compare(t, "fprop", out.Data(), []float32{0.5, 0.5})

	yOneHot := num.NewArrayData([]float32{1, 0}, 1, 2)
	loss := l.Loss(yOneHot, out)
	if math.Abs(float64(loss)-(-math.Log(0.5))) > eps {
		t.Error("loss: got", loss)
	}
}

func TestLayerConfigRoundTrip(t *testing.T) {
	cfg := Conv{Nfeats: 20, Size: 5, Pad: 2}.Marshal()
	layer, err := cfg.Unmarshal()
	if err != nil {
		t.Fatal(err)
	}
	if s := layer.String(); s != "conv {Nfeats:20 Size:5 Stride:1 Pad:2}" {
		t.Error("unexpected layer:", s)
	}
	if _, err := (LayerConfig{Type: "bogus"}).Unmarshal(); err == nil {
		t.Error("expected error for unknown layer type")
	}
	if _, err := (Activation{Atype: "softplus"}.Marshal()).Unmarshal(); err == nil {
		t.Error("expected error for unknown activation")
	}
}
