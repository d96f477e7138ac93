package nnet

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"convnet/num"
	"convnet/stats"
)

// Trainer drives repeated forward, backward and update cycles over a training
// dataset and evaluates accuracy on a held out test set. Parameters are only
// mutated by the optimizer step during Train.
type Trainer struct {
	Net      *Network
	Opt      Optimizer
	LogEvery int                                   // batches between progress lines, 0 to disable
	Logf     func(format string, a ...interface{}) // defaults to fmt.Printf
}

// NewTrainer creates a trainer reporting every logEvery batches to stdout.
func NewTrainer(net *Network, opt Optimizer, logEvery int) *Trainer {
	return &Trainer{Net: net, Opt: opt, LogEvery: logEvery}
}

func (t *Trainer) logf(format string, a ...interface{}) {
	if t.Logf != nil {
		t.Logf(format, a...)
	} else {
		fmt.Printf(format, a...)
	}
}

// Train runs the given number of epochs over the training set. Each batch is
// processed to completion: forward pass in training mode, loss, backward
// pass, one optimizer step. Zero epochs is a no-op which leaves the
// parameters untouched. A batch which does not match the declared input
// shape, or a label outside the class range, aborts immediately.
func (t *Trainer) Train(dset *Dataset, epochs int) error {
	if epochs < 0 {
		return errors.Errorf("trainer: invalid epoch count %d", epochs)
	}
	net := t.Net
	yOneHot := num.NewArray(net.BatchSize(), net.Classes())
	for epoch := 1; epoch <= epochs; epoch++ {
		dset.NextEpoch()
		var avg stats.Average
		start := time.Now()
		for b := 0; b < dset.Batches; b++ {
			x, y := dset.GetBatch(b)
			if x.Dims()[0] != len(y) {
				return errors.Errorf("trainer: batch %d has %d images but %d labels",
					b, x.Dims()[0], len(y))
			}
			for _, label := range y {
				if label < 0 || int(label) >= net.Classes() {
					return errors.Errorf("trainer: label %d out of range [0,%d)",
						label, net.Classes())
				}
			}
			yPred, err := net.Fprop(x, true)
			if err != nil {
				return errors.Wrapf(err, "trainer: batch %d", b)
			}
			oneHot := yOneHot.Slice(0, len(y))
			num.Onehot(y, oneHot, net.Classes())
			loss := float64(net.OutLayer().Loss(oneHot, yPred)) / float64(len(y))
			net.Bprop(net.lossGrad(yPred, oneHot))
			t.Opt.Step(net, len(y))
			avg.Add(loss)
			if t.LogEvery > 0 && (b+1)%t.LogEvery == 0 {
				t.logf("Epoch [%d/%d], Step [%d/%d], Loss: %.4f\n",
					epoch, epochs, b+1, dset.Batches, loss)
			}
		}
		if t.LogEvery > 0 {
			t.logf("epoch %d done: mean loss %.4f  elapsed %s\n", epoch,
				avg.Mean, time.Since(start).Round(10*time.Millisecond))
		}
	}
	return nil
}

// Evaluate runs the trained model once over every test batch in inference
// mode and returns the aggregate accuracy in [0,1]. It never mutates the
// model parameters or the optimizer state and does not shuffle.
func (t *Trainer) Evaluate(dset *Dataset) (float64, error) {
	if dset.Samples == 0 {
		return 0, errors.New("trainer: test partition is empty")
	}
	classes := make([]int32, dset.BatchSize)
	correct, total := 0, 0
	for b := 0; b < dset.Batches; b++ {
		x, y := dset.GetBatch(b)
		if _, err := t.Net.Predict(x, classes); err != nil {
			return 0, errors.Wrapf(err, "trainer: test batch %d", b)
		}
		for i, label := range y {
			if classes[i] == label {
				correct++
			}
		}
		total += len(y)
	}
	return float64(correct) / float64(total), nil
}
