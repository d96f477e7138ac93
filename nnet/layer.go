package nnet

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"convnet/num"
)

// Layer interface type represents one layer of the neural net. Shapes exclude
// the leading batch dimension: layers allocate buffers for batchSize images at
// Init and return views over the leading rows when a batch is short.
type Layer interface {
	Init(inShape []int, batchSize int) error
	OutShape(inShape []int) []int
	Fprop(in *num.Array, train bool) *num.Array
	Bprop(grad *num.Array) *num.Array
	String() string
}

// ParamLayer is a layer with weight and bias parameters.
type ParamLayer interface {
	Layer
	InitParams(scale, bias float32, normal bool, rng *rand.Rand)
	Params() (w, b *num.Array)
	ParamGrads() (dw, db *num.Array)
	SetParams(w, b *num.Array)
}

// OutputLayer is the final layer in the stack and defines the loss.
type OutputLayer interface {
	Layer
	Loss(yOneHot, yPred *num.Array) float32
}

// LayerConfig is the serialised layer configuration.
type LayerConfig struct {
	Type string
	Data json.RawMessage `json:",omitempty"`
}

// ConfigLayer is implemented by the exported layer config structs.
type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal decodes the config data and constructs a new layer.
func (l LayerConfig) Unmarshal() (Layer, error) {
	switch l.Type {
	case "conv":
		cfg := new(Conv)
		if err := unmarshal(l.Data, cfg); err != nil {
			return nil, err
		}
		return &conv{Conv: *cfg}, nil
	case "maxPool":
		cfg := new(MaxPool)
		if err := unmarshal(l.Data, cfg); err != nil {
			return nil, err
		}
		return &maxPool{MaxPool: *cfg}, nil
	case "linear":
		cfg := new(Linear)
		if err := unmarshal(l.Data, cfg); err != nil {
			return nil, err
		}
		return &linear{Linear: *cfg}, nil
	case "activation":
		cfg := new(Activation)
		if err := unmarshal(l.Data, cfg); err != nil {
			return nil, err
		}
		layer := &activation{Activation: *cfg}
		switch cfg.Atype {
		case "relu":
			layer.activ, layer.deriv = num.Relu, num.ReluD
		case "sigmoid":
			layer.activ, layer.deriv = num.Sigmoid, num.SigmoidD
		case "tanh":
			layer.activ, layer.deriv = num.Tanh, num.TanhD
		default:
			return nil, errors.Errorf("activation type %q invalid", cfg.Atype)
		}
		return layer, nil
	case "flatten":
		return &flatten{}, nil
	case "logRegression":
		return &logRegression{}, nil
	default:
		return nil, errors.Errorf("invalid layer type: %q", l.Type)
	}
}

func (l LayerConfig) String() string {
	layer, err := l.Unmarshal()
	if err != nil {
		return l.Type + "?"
	}
	return layer.String()
}

// Convolutional layer, implements ParamLayer interface.
type Conv struct {
	Nfeats, Size, Stride, Pad int
}

func (c Conv) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	return LayerConfig{Type: "conv", Data: marshal(c)}
}

// Max pooling layer, should follow a conv layer.
type MaxPool struct {
	Size, Stride int
}

func (c MaxPool) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return LayerConfig{Type: "maxPool", Data: marshal(c)}
}

// Linear fully connected layer, implements ParamLayer interface.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

// Sigmoid, tanh or relu activation layer.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

// Flatten layer reshapes the input to one dimension per image.
type Flatten struct{}

func (c Flatten) Marshal() LayerConfig {
	return LayerConfig{Type: "flatten"}
}

// LogRegression output layer with softmax activation and cross entropy loss.
type LogRegression struct{}

func (c LogRegression) Marshal() LayerConfig {
	return LayerConfig{Type: "logRegression"}
}

// convolution implementation: im2col per image then one matrix product with
// the [nfeats, depth*size*size] filter matrix.
type conv struct {
	Conv
	paramBase
	geom      num.ConvGeom
	src       *num.Array
	dst, dsrc *num.Array
	col, dcol *num.Array
}

func (l *conv) String() string { return fmt.Sprintf("conv %+v", l.Conv) }

func (l *conv) OutShape(inShape []int) []int { return l.geom.OutShape() }

func (l *conv) Init(inShape []int, batchSize int) error {
	if len(inShape) != 3 {
		return errors.Errorf("conv: expect 3 dimensional input, have %v", inShape)
	}
	if l.Stride == 0 {
		l.Stride = 1
	}
	l.geom = num.ConvGeom{
		Depth: inShape[0], Height: inShape[1], Width: inShape[2],
		Nfeats: l.Nfeats, Size: l.Size, Stride: l.Stride, Pad: l.Pad,
	}
	if l.Nfeats <= 0 || !l.geom.Valid() {
		return errors.Errorf("conv: invalid geometry %+v for input %v", l.Conv, inShape)
	}
	cshape := l.geom.ColShape()
	l.paramBase = newParams([]int{l.Nfeats, cshape[0]}, []int{l.Nfeats})
	l.dst = num.NewArray(append([]int{batchSize}, l.geom.OutShape()...)...)
	l.dsrc = num.NewArray(append([]int{batchSize}, inShape...)...)
	l.col = num.NewArray(cshape...)
	l.dcol = num.NewArray(cshape...)
	return nil
}

func (l *conv) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	n := in.Dims()[0]
	oh, ow := l.geom.OutSize()
	out := l.dst.Slice(0, n)
	for i := 0; i < n; i++ {
		num.Im2col(in.Slice(i, i+1), l.col, l.geom)
		oi := out.Slice(i, i+1).Reshape(l.Nfeats, oh*ow)
		num.Gemm(1, 0, l.w, l.col, oi, false, false)
		for f := 0; f < l.Nfeats; f++ {
			row := oi.Data()[f*oh*ow : (f+1)*oh*ow]
			bias := l.b.Data()[f]
			for j := range row {
				row[j] += bias
			}
		}
	}
	return out
}

func (l *conv) Bprop(grad *num.Array) *num.Array {
	n := grad.Dims()[0]
	oh, ow := l.geom.OutSize()
	num.Fill(l.dw, 0)
	num.Fill(l.db, 0)
	dsrc := l.dsrc.Slice(0, n)
	num.Fill(dsrc, 0)
	for i := 0; i < n; i++ {
		num.Im2col(l.src.Slice(i, i+1), l.col, l.geom)
		gi := grad.Slice(i, i+1).Reshape(l.Nfeats, oh*ow)
		num.Gemm(1, 1, gi, l.col, l.dw, false, true)
		for f := 0; f < l.Nfeats; f++ {
			sum := float32(0)
			for _, g := range gi.Data()[f*oh*ow : (f+1)*oh*ow] {
				sum += g
			}
			l.db.Data()[f] += sum
		}
		num.Gemm(1, 0, l.w, gi, l.dcol, true, false)
		num.Col2im(l.dcol, dsrc.Slice(i, i+1), l.geom)
	}
	return dsrc
}

// max pooling implementation
type maxPool struct {
	MaxPool
	inShape   []int
	dst, dsrc *num.Array
	mask      []int32
}

func (l *maxPool) String() string { return fmt.Sprintf("maxPool %+v", l.MaxPool) }

func (l *maxPool) OutShape(inShape []int) []int {
	return []int{inShape[0], (inShape[1]-l.Size)/l.Stride + 1, (inShape[2]-l.Size)/l.Stride + 1}
}

func (l *maxPool) Init(inShape []int, batchSize int) error {
	if len(inShape) != 3 {
		return errors.Errorf("maxPool: expect 3 dimensional input, have %v", inShape)
	}
	if l.Stride == 0 {
		l.Stride = l.Size
	}
	if l.Size <= 0 || l.Size > inShape[1] || l.Size > inShape[2] {
		return errors.Errorf("maxPool: invalid size %d for input %v", l.Size, inShape)
	}
	l.inShape = inShape
	out := l.OutShape(inShape)
	l.dst = num.NewArray(append([]int{batchSize}, out...)...)
	l.dsrc = num.NewArray(append([]int{batchSize}, inShape...)...)
	l.mask = make([]int32, l.dst.Size())
	return nil
}

func (l *maxPool) Fprop(in *num.Array, train bool) *num.Array {
	n := in.Dims()[0]
	out := l.dst.Slice(0, n)
	num.MaxPool(in, out, l.mask, l.Size, l.Stride)
	return out
}

func (l *maxPool) Bprop(grad *num.Array) *num.Array {
	n := grad.Dims()[0]
	dsrc := l.dsrc.Slice(0, n)
	num.MaxPoolGrad(grad, dsrc, l.mask)
	return dsrc
}

// fully connected implementation: w is [nin, nout], input is [batch, nin].
type linear struct {
	Linear
	paramBase
	nin       int
	src       *num.Array
	dst, dsrc *num.Array
}

func (l *linear) String() string { return fmt.Sprintf("linear %+v", l.Linear) }

func (l *linear) OutShape(inShape []int) []int { return []int{l.Nout} }

func (l *linear) Init(inShape []int, batchSize int) error {
	if len(inShape) != 1 {
		return errors.Errorf("linear: expect flattened 1 dimensional input, have %v", inShape)
	}
	if l.Nout <= 0 {
		return errors.Errorf("linear: invalid output size %d", l.Nout)
	}
	l.nin = inShape[0]
	l.paramBase = newParams([]int{l.nin, l.Nout}, []int{l.Nout})
	l.dst = num.NewArray(batchSize, l.Nout)
	l.dsrc = num.NewArray(batchSize, l.nin)
	return nil
}

func (l *linear) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	n := in.Dims()[0]
	out := l.dst.Slice(0, n)
	for r := 0; r < n; r++ {
		copy(out.Data()[r*l.Nout:(r+1)*l.Nout], l.b.Data())
	}
	num.Gemm(1, 1, in, l.w, out, false, false)
	return out
}

func (l *linear) Bprop(grad *num.Array) *num.Array {
	n := grad.Dims()[0]
	num.Gemm(1, 0, l.src, grad, l.dw, true, false)
	num.Fill(l.db, 0)
	for r := 0; r < n; r++ {
		num.Axpy(1, grad.Slice(r, r+1).Reshape(l.Nout), l.db)
	}
	dsrc := l.dsrc.Slice(0, n)
	num.Gemm(1, 0, grad, l.w, dsrc, false, true)
	return dsrc
}

// activation implementation
type activation struct {
	Activation
	src       *num.Array
	dst, dsrc *num.Array
	activ     func(src, dst *num.Array)
	deriv     func(src, grad, dst *num.Array)
}

func (l *activation) String() string { return fmt.Sprintf("activation %+v", l.Activation) }

func (l *activation) OutShape(inShape []int) []int { return inShape }

func (l *activation) Init(inShape []int, batchSize int) error {
	l.dst = num.NewArray(append([]int{batchSize}, inShape...)...)
	l.dsrc = num.NewArray(append([]int{batchSize}, inShape...)...)
	return nil
}

func (l *activation) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	out := l.dst.Slice(0, in.Dims()[0])
	l.activ(in, out)
	return out
}

func (l *activation) Bprop(grad *num.Array) *num.Array {
	dsrc := l.dsrc.Slice(0, grad.Dims()[0])
	l.deriv(l.src, grad, dsrc)
	return dsrc
}

// flatten implementation: pure reshape, no buffers.
type flatten struct {
	inShape []int
}

func (l *flatten) String() string { return "flatten" }

func (l *flatten) OutShape(inShape []int) []int { return []int{num.Prod(inShape)} }

func (l *flatten) Init(inShape []int, batchSize int) error {
	l.inShape = inShape
	return nil
}

func (l *flatten) Fprop(in *num.Array, train bool) *num.Array {
	return in.Reshape(in.Dims()[0], -1)
}

func (l *flatten) Bprop(grad *num.Array) *num.Array {
	return grad.Reshape(append([]int{grad.Dims()[0]}, l.inShape...)...)
}

// log regression output implementation
type logRegression struct {
	classes   int
	dst, dsrc *num.Array
}

func (l *logRegression) String() string { return "logRegression" }

func (l *logRegression) OutShape(inShape []int) []int { return inShape }

func (l *logRegression) Init(inShape []int, batchSize int) error {
	if len(inShape) != 1 {
		return errors.Errorf("logRegression: expect 1 dimensional input, have %v", inShape)
	}
	l.classes = inShape[0]
	l.dst = num.NewArray(batchSize, l.classes)
	l.dsrc = num.NewArray(batchSize, l.classes)
	return nil
}

func (l *logRegression) Fprop(in *num.Array, train bool) *num.Array {
	out := l.dst.Slice(0, in.Dims()[0])
	num.Softmax(in, out)
	return out
}

// gradient at the output is computed directly from softmax output minus the
// one hot labels, so the backward pass is a passthrough.
func (l *logRegression) Bprop(grad *num.Array) *num.Array {
	dsrc := l.dsrc.Slice(0, grad.Dims()[0])
	num.Copy(dsrc, grad)
	return dsrc
}

func (l *logRegression) Loss(yOneHot, yPred *num.Array) float32 {
	return num.SoftmaxLoss(yOneHot, yPred)
}

// weight and bias parameters
type paramBase struct {
	w, b   *num.Array
	dw, db *num.Array
}

func newParams(wShape, bShape []int) paramBase {
	return paramBase{
		w:  num.NewArray(wShape...),
		b:  num.NewArray(bShape...),
		dw: num.NewArray(wShape...),
		db: num.NewArray(bShape...),
	}
}

func (p paramBase) Params() (w, b *num.Array) { return p.w, p.b }

func (p paramBase) ParamGrads() (dw, db *num.Array) { return p.dw, p.db }

func (p paramBase) InitParams(scale, bias float32, normal bool, rng *rand.Rand) {
	for i := range p.w.Data() {
		if normal {
			p.w.Data()[i] = float32(rng.NormFloat64()) * scale
		} else {
			p.w.Data()[i] = rng.Float32() * scale
		}
	}
	num.Fill(p.b, bias)
}

func (p paramBase) SetParams(w, b *num.Array) {
	num.Copy(p.w, w)
	num.Copy(p.b, b)
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return errors.WithStack(json.Unmarshal(data, v))
}
