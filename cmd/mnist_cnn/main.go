// Command mnist_cnn writes the convolutional network definition for the MNIST
// digits, to be trained with the train command.
package main

import (
	"flag"
	"fmt"

	"convnet/nnet"
)

func main() {
	out := flag.String("o", "mnist_cnn.json", "output config file")
	flag.Parse()

	conf := nnet.Config{
		DataSet:       "mnist",
		Optimizer:     "sgd",
		Eta:           0.1,
		NormalWeights: true,
		MaxEpoch:      10,
		TrainBatch:    10,
		TestBatch:     100,
		LogEvery:      1000,
		Shuffle:       true,
	}.AddLayers(
		nnet.Conv{Nfeats: 20, Size: 5, Pad: 2},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Flatten{},
		nnet.Linear{Nout: 100},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 10},
		nnet.LogRegression{},
	)
	fmt.Println(conf)
	fmt.Println("saving network config to", *out)
	nnet.CheckErr(conf.Save(*out))
}
