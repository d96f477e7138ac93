package nnet

import (
	"math"

	"convnet/num"
)

// Optimizer applies one update step to the network parameters using the
// gradients accumulated by the last backward pass. Gradients are sums over
// the batch so the step divides by the batch size. Any per parameter state is
// owned by the optimizer and allocated on first use.
type Optimizer interface {
	Step(net *Network, batchSize int)
}

// SGD is stochastic gradient descent with optional momentum and L2 weight
// decay on the weight matrices.
type SGD struct {
	Eta         float64
	Momentum    float64
	WeightDecay float64
	vel         map[*num.Array]*num.Array
}

// NewSGD creates a plain SGD optimizer with the given learning rate.
func NewSGD(eta float64) *SGD {
	return &SGD{Eta: eta}
}

func (o *SGD) Step(net *Network, batchSize int) {
	if o.vel == nil {
		o.vel = make(map[*num.Array]*num.Array)
	}
	inv := 1 / float32(batchSize)
	for _, l := range net.ParamLayers() {
		w, b := l.Params()
		dw, db := l.ParamGrads()
		if o.WeightDecay != 0 {
			num.Axpy(float32(o.WeightDecay)*float32(batchSize), w, dw)
		}
		o.update(w, dw, inv)
		o.update(b, db, inv)
	}
}

func (o *SGD) update(p, grad *num.Array, inv float32) {
	if o.Momentum == 0 {
		num.Axpy(-float32(o.Eta)*inv, grad, p)
		return
	}
	v, ok := o.vel[p]
	if !ok {
		v = num.NewArray(p.Dims()...)
		o.vel[p] = v
	}
	num.Scale(float32(o.Momentum), v)
	num.Axpy(inv, grad, v)
	num.Axpy(-float32(o.Eta), v, p)
}

// Adam is adaptive moment estimation with bias corrected first and second
// gradient moments.
type Adam struct {
	Eta     float64
	Beta1   float64
	Beta2   float64
	Epsilon float64
	step    int
	moments map[*num.Array]*adamState
}

type adamState struct {
	m, v *num.Array
}

// NewAdam creates an Adam optimizer with the usual beta and epsilon defaults.
func NewAdam(eta float64) *Adam {
	return &Adam{Eta: eta, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

func (o *Adam) Step(net *Network, batchSize int) {
	if o.moments == nil {
		o.moments = make(map[*num.Array]*adamState)
	}
	o.step++
	c1 := 1 - math.Pow(o.Beta1, float64(o.step))
	c2 := 1 - math.Pow(o.Beta2, float64(o.step))
	inv := 1 / float32(batchSize)
	for _, l := range net.ParamLayers() {
		w, b := l.Params()
		dw, db := l.ParamGrads()
		o.update(w, dw, inv, c1, c2)
		o.update(b, db, inv, c1, c2)
	}
}

func (o *Adam) update(p, grad *num.Array, inv float32, c1, c2 float64) {
	s, ok := o.moments[p]
	if !ok {
		s = &adamState{m: num.NewArray(p.Dims()...), v: num.NewArray(p.Dims()...)}
		o.moments[p] = s
	}
	b1, b2 := float32(o.Beta1), float32(o.Beta2)
	for i, gsum := range grad.Data() {
		g := gsum * inv
		s.m.Data()[i] = b1*s.m.Data()[i] + (1-b1)*g
		s.v.Data()[i] = b2*s.v.Data()[i] + (1-b2)*g*g
		mhat := float64(s.m.Data()[i]) / c1
		vhat := float64(s.v.Data()[i]) / c2
		p.Data()[i] -= float32(o.Eta * mhat / (math.Sqrt(vhat) + o.Epsilon))
	}
}
