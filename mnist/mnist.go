// Package mnist loads the MNIST handwritten digit dataset from IDX format
// files on disk. Downloading the files is left to the user.
package mnist

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"convnet/nnet"
	"convnet/num"
)

const (
	imageMagic = 2051
	labelMagic = 2049
	classes    = 10
)

var (
	// standard MNIST distribution file names
	TrainImages = "train-images-idx3-ubyte"
	TrainLabels = "train-labels-idx1-ubyte"
	TestImages  = "t10k-images-idx3-ubyte"
	TestLabels  = "t10k-labels-idx1-ubyte"
)

type labelHeader struct{ Magic, Num uint32 }

type imageHeader struct{ Magic, Num, Height, Width uint32 }

// Load reads the train and test partitions from dir. Pixel intensities are
// scaled to [0,1] and images are shaped [1, height, width].
func Load(dir string) (train, test nnet.Data, err error) {
	if train, err = loadSet(dir, TrainImages, TrainLabels); err != nil {
		return
	}
	test, err = loadSet(dir, TestImages, TestLabels)
	return
}

func loadSet(dir, imageFile, labelFile string) (nnet.Data, error) {
	labels, err := readLabels(filepath.Join(dir, labelFile))
	if err != nil {
		return nil, err
	}
	shape, inputs, err := readImages(filepath.Join(dir, imageFile))
	if err != nil {
		return nil, err
	}
	nfeat := num.Prod(shape)
	if len(inputs) != len(labels)*nfeat {
		return nil, errors.Errorf("mnist: %s has %d images but %s has %d labels",
			imageFile, len(inputs)/nfeat, labelFile, len(labels))
	}
	return nnet.NewData(classes, shape, labels, inputs), nil
}

func readImages(name string) (shape []int, inputs []float32, err error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	defer f.Close()
	return DecodeImages(f)
}

func readLabels(name string) ([]int32, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return DecodeLabels(f)
}

// DecodeImages reads an IDX ubyte image file: big endian header with magic
// 2051 then count*height*width pixels.
func DecodeImages(r io.Reader) (shape []int, inputs []float32, err error) {
	var head imageHeader
	if err = binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, nil, errors.Wrap(err, "mnist: image header")
	}
	if head.Magic != imageMagic {
		return nil, nil, errors.Errorf("mnist: bad image magic %d", head.Magic)
	}
	n, h, w := int(head.Num), int(head.Height), int(head.Width)
	if n == 0 || h == 0 || w == 0 {
		return nil, nil, errors.Errorf("mnist: empty image file: %d %dx%d images", n, h, w)
	}
	pixels := make([]uint8, n*h*w)
	if _, err = io.ReadFull(r, pixels); err != nil {
		return nil, nil, errors.Wrap(err, "mnist: image data")
	}
	inputs = make([]float32, len(pixels))
	for i, pix := range pixels {
		inputs[i] = float32(pix) / 255
	}
	return []int{1, h, w}, inputs, nil
}

// DecodeLabels reads an IDX ubyte label file: big endian header with magic
// 2049 then one class byte per sample.
func DecodeLabels(r io.Reader) ([]int32, error) {
	var head labelHeader
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, errors.Wrap(err, "mnist: label header")
	}
	if head.Magic != labelMagic {
		return nil, errors.Errorf("mnist: bad label magic %d", head.Magic)
	}
	bytes := make([]byte, head.Num)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return nil, errors.Wrap(err, "mnist: label data")
	}
	labels := make([]int32, head.Num)
	for i, label := range bytes {
		if label >= classes {
			return nil, errors.Errorf("mnist: label %d out of range at sample %d", label, i)
		}
		labels[i] = int32(label)
	}
	return labels, nil
}
