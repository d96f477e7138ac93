package nnet

import (
	"math/rand"
	"strconv"

	"github.com/pkg/errors"

	"convnet/num"
)

// Data interface type represents the raw samples for a training or test set.
type Data interface {
	Len() int
	Classes() []string
	Shape() []int
	Label(index []int, label []int32)
	Input(index []int, buf []float32)
}

// Dataset type wraps a Data partition and serves it as a sequence of batches.
// Each epoch covers every sample exactly once; the final batch is short when
// the partition size is not a multiple of the batch size. If shuffle is set
// the sample order is re-randomised at the start of each epoch.
type Dataset struct {
	Data
	Samples   int
	BatchSize int
	Batches   int
	shuffle   bool
	rng       *rand.Rand
	indexes   []int
	xBuffer   *num.Array
	yBuffer   []int32
}

// NewDataset creates a new Dataset and allocates the batch buffers.
// An empty partition is an error: it would silently turn training or
// evaluation into a no-op.
func NewDataset(data Data, batchSize int, shuffle bool, rng *rand.Rand) (*Dataset, error) {
	if data.Len() == 0 {
		return nil, errors.New("dataset: partition is empty")
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("dataset: invalid batch size %d", batchSize)
	}
	d := &Dataset{Data: data, Samples: data.Len(), shuffle: shuffle, rng: rng}
	if shuffle && rng == nil {
		return nil, errors.New("dataset: shuffle requires a random source")
	}
	d.BatchSize = batchSize
	if d.BatchSize > d.Samples {
		d.BatchSize = d.Samples
	}
	d.Batches = d.Samples / d.BatchSize
	if d.Samples%d.BatchSize != 0 {
		d.Batches++
	}
	d.xBuffer = num.NewArray(append([]int{d.BatchSize}, data.Shape()...)...)
	d.yBuffer = make([]int32, d.BatchSize)
	d.indexes = make([]int, d.Samples)
	for i := range d.indexes {
		d.indexes[i] = i
	}
	return d, nil
}

// NextEpoch starts a new traversal, reshuffling the sample order if enabled.
func (d *Dataset) NextEpoch() {
	if d.shuffle {
		d.indexes = d.rng.Perm(d.Samples)
	}
}

// GetBatch loads batch b into the internal buffers and returns views over the
// input images, shaped [n, shape...], and labels. The views are only valid
// until the next call.
func (d *Dataset) GetBatch(b int) (x *num.Array, y []int32) {
	start := b * d.BatchSize
	end := start + d.BatchSize
	if end > d.Samples {
		end = d.Samples
	}
	index := d.indexes[start:end]
	d.Input(index, d.xBuffer.Data())
	d.Label(index, d.yBuffer)
	return d.xBuffer.Slice(0, len(index)), d.yBuffer[:len(index)]
}

// in memory implementation of the Data interface
type data struct {
	class  []string
	dims   []int
	labels []int32
	inputs []float32
}

// NewData creates a data set holding the given samples in memory. inputs
// holds the images contiguously, Prod(shape) values per sample, labels one
// class index per sample.
func NewData(nclasses int, shape []int, labels []int32, inputs []float32) Data {
	classes := make([]string, nclasses)
	for i := range classes {
		classes[i] = strconv.Itoa(i)
	}
	return data{class: classes, dims: shape, labels: labels, inputs: inputs}
}

func (d data) Len() int { return len(d.labels) }

func (d data) Classes() []string { return d.class }

func (d data) Shape() []int { return d.dims }

func (d data) Label(index []int, label []int32) {
	for i, ix := range index {
		label[i] = d.labels[ix]
	}
}

func (d data) Input(index []int, buf []float32) {
	nfeat := num.Prod(d.dims)
	for i, ix := range index {
		copy(buf[i*nfeat:], d.inputs[ix*nfeat:(ix+1)*nfeat])
	}
}
