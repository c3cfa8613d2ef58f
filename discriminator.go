package plant_gan

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DiscriminatorConfig Sizes of Discriminator
type DiscriminatorConfig struct {
	NumClasses int
	ImageSize  int
	BatchSize  int
}

// DiscriminatorNet Abstraction for discriminator part of GAN. It's a classifier actually: maps images (batch, image_size, image_size, 3)
// to logits and probabilities over num_classes. Zero label vector means "none of classes" - generated image.
//
// Input - input node. Either placeholder for images or output of generator
//
type DiscriminatorNet struct {
	Input *gorgonia.Node

	cfg     DiscriminatorConfig
	private *Network
	logits  *gorgonia.Node
	probs   *gorgonia.Node
}

const (
	normEpsilon         = 1e-3
	discriminatorHidden = 256
)

// NewDiscriminator Constructor for DiscriminatorNet. Defines learnables and feedforward on provided graph.
//
// g - graph to define network on
// name - prefix for every node of network, e.g. "discriminator_train" or "discriminator_target"
// input - node holding images in NHWC layout. If it's nil then placeholder will be created
// cfg - sizes
// rng - source of randomness for weights initialization
//
func NewDiscriminator(g *gorgonia.ExprGraph, name string, input *gorgonia.Node, cfg DiscriminatorConfig, rng *rand.Rand) (*DiscriminatorNet, error) {
	if cfg.NumClasses <= 0 || cfg.ImageSize <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("Discriminator sizes should be positive, but got %+v", cfg)
	}
	if cfg.ImageSize%4 != 0 {
		return nil, fmt.Errorf("Discriminator image size should be divisible by 4 (two pooling stages), but got %d", cfg.ImageSize)
	}
	expected := tensor.Shape{cfg.BatchSize, cfg.ImageSize, cfg.ImageSize, 3}
	if input == nil {
		input = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(expected...), gorgonia.WithName(name+"_input"))
	}
	if !input.Shape().Eq(expected) {
		return nil, fmt.Errorf("Discriminator input should have shape %v, but got %v", expected, input.Shape())
	}
	/*
		input(S,S,3) => transpose(3,S,S) => norm(3,S,S)
			=> filters=32,size=3x3,conv(S,S) => dropout => filters=32,size=3x3,conv(S,S) => size=2x2,maxpool(S/2,S/2)
			=> filters=64,size=3x3,conv(S/2,S/2) => dropout => filters=64,size=3x3,conv(S/2,S/2) => size=2x2,maxpool(S/4,S/4)
			=> 64*flatten(S/4*S/4) => linear(256) => linear(num_classes)
	*/
	flat := 64 * (cfg.ImageSize / 4) * (cfg.ImageSize / 4)
	layers := []*Layer{
		{
			Type:       LayerTranspose,
			Activation: NoActivation,
			Axes:       []int{0, 3, 1, 2},
		},
		{
			WeightNode: gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 3, 1, 1), gorgonia.WithName(name+"_prenorm_gamma"), gorgonia.WithInit(gorgonia.Ones())),
			BiasNode:   gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 3, 1, 1), gorgonia.WithName(name+"_prenorm_beta"), gorgonia.WithInit(gorgonia.Zeroes())),
			Type:       LayerNormalization,
			Activation: NoActivation,
			Epsilon:    normEpsilon,
		},
		convLayer(g, name+"_conv1", 3, 32, rng),
		{
			Type:       LayerDropout,
			Activation: NoActivation,
		},
		convLayer(g, name+"_conv2", 32, 32, rng),
		maxpoolLayer(),
		convLayer(g, name+"_conv3", 32, 64, rng),
		{
			Type:       LayerDropout,
			Activation: NoActivation,
		},
		convLayer(g, name+"_conv4", 64, 64, rng),
		maxpoolLayer(),
		{
			Type:       LayerFlatten,
			Activation: NoActivation,
		},
		linearLayer(g, name+"_fc", flat, discriminatorHidden, Rectify, rng),
		linearLayer(g, name+"_output", discriminatorHidden, cfg.NumClasses, NoActivation, rng),
	}
	net := &DiscriminatorNet{
		Input:   input,
		cfg:     cfg,
		private: &Network{Name: name, Layers: layers},
	}
	if err := net.private.Fwd(input, cfg.BatchSize); err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	net.logits = net.private.Out()
	probs, err := Softmax(net.logits, Options{Axis: []int{1}})
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't apply softmax to logits")
	}
	gorgonia.WithName(name + "_probs")(probs)
	net.probs = probs
	return net, nil
}

// Logits Returns reference to raw class scores (batch, num_classes)
func (net *DiscriminatorNet) Logits() *gorgonia.Node {
	return net.logits
}

// Probs Returns reference to class probabilities (batch, num_classes)
func (net *DiscriminatorNet) Probs() *gorgonia.Node {
	return net.probs
}

// Params Returns learnables nodes
func (net *DiscriminatorNet) Params() ParamSet {
	return net.private.Params()
}

// Config Returns sizes of discriminator
func (net *DiscriminatorNet) Config() DiscriminatorConfig {
	return net.cfg
}

// FeedDropout Binds fresh dropout masks for provided keep probability. Must be called before every run of the graph
func (net *DiscriminatorNet) FeedDropout(rng *rand.Rand, keepProb float64) error {
	if err := net.private.FeedDropout(rng, keepProb); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	return nil
}

// maxpoolLayer 2x2 max pooling with stride 2 and no padding
func maxpoolLayer() *Layer {
	return &Layer{
		Type:         LayerMaxpool,
		Activation:   NoActivation,
		KernelHeight: 2,
		KernelWidth:  2,
		Padding:      []int{0, 0},
		Stride:       []int{2, 2},
	}
}
