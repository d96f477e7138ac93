package nnet

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Training configuration settings. All values are fixed at construction time;
// cmds may override individual fields from flags before the network is built.
type Config struct {
	DataSet       string
	Optimizer     string // "sgd" or "adam"
	Eta           float64
	Lambda        float64 // L2 weight decay, sgd only
	Momentum      float64 // sgd only
	Bias          float64
	NormalWeights bool
	FlattenInput  bool
	Shuffle       bool
	TrainBatch    int
	TestBatch     int
	MaxEpoch      int
	LogEvery      int
	RandSeed      int64
	Layers        []LayerConfig
}

// AddLayers appends layers to the config struct.
func (c Config) AddLayers(layers ...ConfigLayer) Config {
	for _, l := range layers {
		c.Layers = append(c.Layers, l.Marshal())
	}
	return c
}

// NewOptimizer constructs the optimizer selected by the config.
func (c Config) NewOptimizer() (Optimizer, error) {
	if c.Eta <= 0 {
		return nil, errors.Errorf("config: invalid learning rate %v", c.Eta)
	}
	switch c.Optimizer {
	case "", "sgd":
		opt := NewSGD(c.Eta)
		opt.Momentum = c.Momentum
		opt.WeightDecay = c.Lambda
		return opt, nil
	case "adam":
		return NewAdam(c.Eta), nil
	default:
		return nil, errors.Errorf("config: unknown optimizer %q", c.Optimizer)
	}
}

// LoadConfig reads a network definition from a JSON file.
func LoadConfig(filePath string) (c Config, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return c, errors.WithStack(err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return c, errors.Wrapf(err, "config: decode %s", filePath)
	}
	return c, nil
}

// Save writes the config to a JSON file.
func (c Config) Save(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(c))
}

func (c Config) String() string {
	str := []string{"== Config =="}
	str = append(str,
		fmt.Sprintf("%-14s: %s", "DataSet", c.DataSet),
		fmt.Sprintf("%-14s: %s", "Optimizer", optName(c.Optimizer)),
		fmt.Sprintf("%-14s: %v", "Eta", c.Eta),
		fmt.Sprintf("%-14s: %v", "Lambda", c.Lambda),
		fmt.Sprintf("%-14s: %v", "Momentum", c.Momentum),
		fmt.Sprintf("%-14s: %v", "Shuffle", c.Shuffle),
		fmt.Sprintf("%-14s: %d", "TrainBatch", c.TrainBatch),
		fmt.Sprintf("%-14s: %d", "TestBatch", c.TestBatch),
		fmt.Sprintf("%-14s: %d", "MaxEpoch", c.MaxEpoch),
	)
	return strings.Join(str, "\n")
}

func optName(s string) string {
	if s == "" {
		return "sgd"
	}
	return s
}
