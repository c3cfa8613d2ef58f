package plant_gan

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GeneratorConfig Sizes of Generator
//
// NumClasses - size of one-hot label vector
// NoiseSize - size of latent (noise) vector
// ImageSize - height and width of generated image
// BatchSize - number of samples generated per run
//
type GeneratorConfig struct {
	NumClasses int
	NoiseSize  int
	ImageSize  int
	BatchSize  int
}

// GeneratorNet Abstraction for generator part of GAN: maps (label, noise) pair to image (batch, image_size, image_size, 3).
//
// Labels - input node for one-hot labels (batch, num_classes)
// Noise - input node for latent vectors (batch, noise_size)
//
type GeneratorNet struct {
	Labels *gorgonia.Node
	Noise  *gorgonia.Node

	cfg     GeneratorConfig
	private *Network
}

// generator filters of the hidden convolutions. Last hidden convolution has image_size*image_size filters
var generatorFilters = []int{64, 128}

// NewGenerator Constructor for GeneratorNet. Defines learnables, inputs and feedforward on provided graph.
//
// g - graph to define network on
// name - prefix for every node of network, e.g. "generator_train" or "generator_target"
// cfg - sizes
// rng - source of randomness for weights initialization
//
func NewGenerator(g *gorgonia.ExprGraph, name string, cfg GeneratorConfig, rng *rand.Rand) (*GeneratorNet, error) {
	if cfg.NumClasses <= 0 || cfg.NoiseSize <= 0 || cfg.ImageSize <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("Generator sizes should be positive, but got %+v", cfg)
	}
	/*
		concat(labels, noise) => reshape(C+Z,1,1)
			=> filters=64,size=3x3,conv(1,1) => filters=128,size=3x3,conv(1,1) => filters=S*S,size=3x3,conv(1,1)
			=> reshape(1,S,S) => filters=3,size=3x3,conv(S,S) => transpose(S,S,3)
	*/
	inChannels := cfg.NumClasses + cfg.NoiseSize
	filters := append(append([]int{}, generatorFilters...), cfg.ImageSize*cfg.ImageSize)
	layers := make([]*Layer, 0, 2*len(filters)+3)
	for i, f := range filters {
		layers = append(layers, convLayer(g, fmt.Sprintf("%s_conv%d", name, i+1), inChannels, f, rng))
		inChannels = f
	}
	layers = append(layers,
		&Layer{
			Type:        LayerReshape,
			Activation:  NoActivation,
			ReshapeDims: []int{cfg.BatchSize, 1, cfg.ImageSize, cfg.ImageSize},
		},
		convLayer(g, name+"_output", 1, 3, rng),
		&Layer{
			Type:       LayerTranspose,
			Activation: NoActivation,
			Axes:       []int{0, 2, 3, 1},
		},
	)

	net := &GeneratorNet{
		Labels:  gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(cfg.BatchSize, cfg.NumClasses), gorgonia.WithName(name+"_labels")),
		Noise:   gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(cfg.BatchSize, cfg.NoiseSize), gorgonia.WithName(name+"_noise")),
		cfg:     cfg,
		private: &Network{Name: name, Layers: layers},
	}
	concat, err := gorgonia.Concat(1, net.Labels, net.Noise)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concatenate labels and noise")
	}
	input, err := gorgonia.Reshape(concat, tensor.Shape{cfg.BatchSize, cfg.NumClasses + cfg.NoiseSize, 1, 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape generator input")
	}
	if err = net.private.Fwd(input, cfg.BatchSize); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return net, nil
}

// Out Returns reference to output node (batch, image_size, image_size, 3)
func (net *GeneratorNet) Out() *gorgonia.Node {
	return net.private.Out()
}

// Params Returns learnables nodes
func (net *GeneratorNet) Params() ParamSet {
	return net.private.Params()
}

// Config Returns sizes of generator
func (net *GeneratorNet) Config() GeneratorConfig {
	return net.cfg
}

// Feed Binds labels and noise to generator inputs
func (net *GeneratorNet) Feed(labels, noise *tensor.Dense) error {
	if err := gorgonia.Let(net.Labels, labels); err != nil {
		return errors.Wrap(err, "Can't bind generator labels")
	}
	if err := gorgonia.Let(net.Noise, noise); err != nil {
		return errors.Wrap(err, "Can't bind generator noise")
	}
	return nil
}

// convLayer Same-padded 3x3 convolution with stride 1, zero bias and ReLU activation
func convLayer(g *gorgonia.ExprGraph, name string, inChannels, filters int, rng *rand.Rand) *Layer {
	w := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(filters, inChannels, 3, 3), gorgonia.WithName(name+"_w"), gorgonia.WithInit(VarianceScaling(rng, 1.0)))
	b := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, filters, 1, 1), gorgonia.WithName(name+"_b"), gorgonia.WithInit(gorgonia.Zeroes()))
	return &Layer{
		WeightNode:   w,
		BiasNode:     b,
		Type:         LayerConvolutional,
		Activation:   Rectify,
		KernelHeight: 3,
		KernelWidth:  3,
		Padding:      []int{1, 1},
		Stride:       []int{1, 1},
		Dilation:     []int{1, 1},
	}
}

// linearLayer Fully connected layer with weights (out, in), zero bias (1, out)
func linearLayer(g *gorgonia.ExprGraph, name string, in, out int, activation ActivationFunc, rng *rand.Rand) *Layer {
	w := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(out, in), gorgonia.WithName(name+"_w"), gorgonia.WithInit(VarianceScaling(rng, 1.0)))
	b := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, out), gorgonia.WithName(name+"_b"), gorgonia.WithInit(gorgonia.Zeroes()))
	return &Layer{
		WeightNode: w,
		BiasNode:   b,
		Type:       LayerLinear,
		Activation: activation,
	}
}
