// Package nnet contains routines for constructing, training and testing
// convolutional neural network classifiers.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"convnet/num"
)

// Network type represents a multilayer neural network model.
type Network struct {
	Config
	Layers    []Layer
	inShape   []int
	classes   int
	batchSize int
	inputGrad *num.Array
}

// New creates a network from the layer configuration. inShape is the shape of
// a single input image excluding the batch dimension and batchSize is the
// largest batch the network will be evaluated with. The shape contract between
// successive layers is checked here, before any data is seen.
func New(conf Config, batchSize int, inShape []int) (*Network, error) {
	if len(conf.Layers) == 0 {
		return nil, errors.New("network: no layers defined")
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("network: invalid batch size %d", batchSize)
	}
	n := &Network{Config: conf, batchSize: batchSize}
	if conf.FlattenInput {
		n.inShape = []int{num.Prod(inShape)}
	} else {
		n.inShape = append([]int{}, inShape...)
	}
	shape := n.inShape
	for i, l := range conf.Layers {
		layer, err := l.Unmarshal()
		if err != nil {
			return nil, errors.Wrapf(err, "network: layer %d", i)
		}
		if err := layer.Init(shape, batchSize); err != nil {
			return nil, errors.Wrapf(err, "network: layer %d", i)
		}
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape(shape)
	}
	if _, ok := n.Layers[len(n.Layers)-1].(OutputLayer); !ok {
		return nil, errors.Errorf("network: final layer %s is not an output layer",
			n.Layers[len(n.Layers)-1])
	}
	if len(shape) != 1 || shape[0] < 2 {
		return nil, errors.Errorf("network: output shape %v is not a class score vector", shape)
	}
	n.classes = shape[0]
	n.inputGrad = num.NewArray(batchSize, n.classes)
	return n, nil
}

// InShape returns the per image input shape.
func (n *Network) InShape() []int { return n.inShape }

// Classes returns the number of output classes.
func (n *Network) Classes() int { return n.classes }

// BatchSize returns the maximum batch size the buffers are sized for.
func (n *Network) BatchSize() int { return n.batchSize }

// InitWeights initialises network weights using a uniform or normal
// distribution scaled by 1/sqrt(nin) per layer.
func (n *Network) InitWeights(rng *rand.Rand) {
	shape := n.inShape
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			scale := float32(1 / math.Sqrt(float64(num.Prod(shape))))
			l.InitParams(scale, float32(n.Bias), n.NormalWeights, rng)
		}
		shape = layer.OutShape(shape)
	}
}

// OutLayer returns the output layer.
func (n *Network) OutLayer() OutputLayer {
	return n.Layers[len(n.Layers)-1].(OutputLayer)
}

// Fprop feeds the input batch forward and returns the predicted class
// probabilities. The input must be shaped [batch, inShape...] with
// batch <= BatchSize; anything else is a shape mismatch error.
func (n *Network) Fprop(in *num.Array, train bool) (*num.Array, error) {
	dims := in.Dims()
	if n.FlattenInput && len(dims) > 2 && num.Prod(dims[1:]) == n.inShape[0] {
		in = in.Reshape(dims[0], n.inShape[0])
		dims = in.Dims()
	}
	if len(dims) < 1 || dims[0] < 1 || dims[0] > n.batchSize ||
		!num.SameShape(dims[1:], n.inShape) {
		return nil, errors.Errorf("network: input shape %v does not match [n <= %d]%v",
			dims, n.batchSize, n.inShape)
	}
	pred := in
	for _, layer := range n.Layers {
		pred = layer.Fprop(pred, train)
	}
	return pred, nil
}

// Bprop back propagates the output gradient and accumulates the parameter
// gradients on each layer.
func (n *Network) Bprop(grad *num.Array) {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Bprop(grad)
	}
}

// Predict runs the network in inference mode and writes the predicted class
// for each image to classes. Ties pick the lowest class index.
func (n *Network) Predict(in *num.Array, classes []int32) (*num.Array, error) {
	yPred, err := n.Fprop(in, false)
	if err != nil {
		return nil, err
	}
	num.Argmax(yPred, classes[:in.Dims()[0]])
	return yPred, nil
}

// ParamLayers returns the layers holding trainable parameters.
func (n *Network) ParamLayers() []ParamLayer {
	var layers []ParamLayer
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			layers = append(layers, l)
		}
	}
	return layers
}

// gradient of softmax + cross entropy at the output: yPred - yOneHot
func (n *Network) lossGrad(yPred, yOneHot *num.Array) *num.Array {
	grad := n.inputGrad.Slice(0, yPred.Dims()[0])
	num.Copy(grad, yPred)
	num.Axpy(-1, yOneHot, grad)
	return grad
}

// String returns the network description with the shape at each layer.
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := n.inShape
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %-25s %v", i, layer, shape)
		shape = layer.OutShape(shape)
	}
	return fmt.Sprintf("%s\n== Network ==\n%s", n.Config, strings.Join(s, "\n"))
}

// NewRng returns a seeded random number generator, or one seeded from the
// clock if seed <= 0.
func NewRng(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// CheckErr exits in case of error.
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
