// Command train loads a network definition saved by one of the model cmds,
// trains it on the MNIST digits and reports the test set accuracy.
package main

import (
	"flag"
	"fmt"
	"os"

	"convnet/mnist"
	"convnet/nnet"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: train [opts] <config.json>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	conf, err := nnet.LoadConfig(model)
	nnet.CheckErr(err)

	// override config settings from command line
	dataDir := flag.String("datadir", "data/mnist", "directory with the MNIST idx files")
	flag.StringVar(&conf.Optimizer, "opt", conf.Optimizer, "optimizer: sgd or adam")
	flag.Float64Var(&conf.Eta, "eta", conf.Eta, "learning rate")
	flag.Float64Var(&conf.Lambda, "lambda", conf.Lambda, "weight decay parameter")
	flag.Float64Var(&conf.Momentum, "momentum", conf.Momentum, "sgd momentum")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "random number seed")
	flag.IntVar(&conf.MaxEpoch, "epochs", conf.MaxEpoch, "number of epochs")
	flag.IntVar(&conf.TrainBatch, "batch", conf.TrainBatch, "train batch size")
	flag.IntVar(&conf.TestBatch, "testbatch", conf.TestBatch, "test batch size")
	flag.IntVar(&conf.LogEvery, "logevery", conf.LogEvery, "batches between progress lines")
	flag.Parse()

	rng := nnet.NewRng(conf.RandSeed)
	trainData, testData, err := mnist.Load(*dataDir)
	nnet.CheckErr(err)
	trainSet, err := nnet.NewDataset(trainData, conf.TrainBatch, conf.Shuffle, rng)
	nnet.CheckErr(err)
	testSet, err := nnet.NewDataset(testData, conf.TestBatch, false, nil)
	nnet.CheckErr(err)

	net, err := nnet.New(conf, max(trainSet.BatchSize, testSet.BatchSize), trainData.Shape())
	nnet.CheckErr(err)
	fmt.Println(net)
	net.InitWeights(rng)

	opt, err := conf.NewOptimizer()
	nnet.CheckErr(err)
	trainer := nnet.NewTrainer(net, opt, conf.LogEvery)
	err = trainer.Train(trainSet, conf.MaxEpoch)
	nnet.CheckErr(err)

	acc, err := trainer.Evaluate(testSet)
	nnet.CheckErr(err)
	fmt.Printf("Test Accuracy of the model on the %d test images: %.3f\n", testSet.Samples, acc)
}
