// Command mnist_mlp writes a two layer fully connected network definition for
// the MNIST digits, to be trained with the train command.
package main

import (
	"flag"
	"fmt"

	"convnet/nnet"
)

func main() {
	out := flag.String("o", "mnist_mlp.json", "output config file")
	flag.Parse()

	conf := nnet.Config{
		DataSet:       "mnist",
		Optimizer:     "sgd",
		Eta:           0.1,
		NormalWeights: true,
		FlattenInput:  true,
		MaxEpoch:      20,
		TrainBatch:    10,
		TestBatch:     100,
		LogEvery:      1000,
		Shuffle:       true,
	}.AddLayers(
		nnet.Linear{Nout: 100},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 10},
		nnet.LogRegression{},
	)
	fmt.Println(conf)
	fmt.Println("saving network config to", *out)
	nnet.CheckErr(conf.Save(*out))
}
