package plant_gan

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network Abstraction for neural network.
//
// Layers - simple sequence of layers
// out - alias to activated output of last layer
//
type Network struct {
	Name   string
	Layers []*Layer
	out    *gorgonia.Node
}

// Out Returns reference to output node
func (net *Network) Out() *gorgonia.Node {
	return net.out
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			if l.WeightNode != nil {
				learnables = append(learnables, l.WeightNode)
			}
			if l.BiasNode != nil {
				learnables = append(learnables, l.BiasNode)
			}
		}
	}
	return learnables
}

// Params Returns learnables nodes wrapped into ParamSet
func (net *Network) Params() ParamSet {
	return NewParamSet(net.Name, net.Learnables()...)
}

// Masks Returns dropout mask nodes. Those are available after Fwd() call only
func (net *Network) Masks() gorgonia.Nodes {
	masks := gorgonia.Nodes{}
	for _, l := range net.Layers {
		if l != nil && l.MaskNode != nil {
			masks = append(masks, l.MaskNode)
		}
	}
	return masks
}

// FeedDropout Binds fresh dropout masks to every dropout layer.
//
// rng - source of randomness
// keepProb - probability to keep an activation. Kept activations are scaled by 1/keepProb. If keepProb is 1.0 then masks are filled with ones.
//
func (net *Network) FeedDropout(rng *rand.Rand, keepProb float64) error {
	if keepProb <= 0 || keepProb > 1 {
		return fmt.Errorf("Keep probability should be in (0; 1], but got %f", keepProb)
	}
	for _, mask := range net.Masks() {
		data := make([]float64, mask.Shape().TotalSize())
		for i := range data {
			if keepProb == 1.0 || rng.Float64() < keepProb {
				data[i] = 1.0 / keepProb
			}
		}
		err := gorgonia.Let(mask, tensor.New(tensor.WithShape(mask.Shape().Clone()...), tensor.WithBacking(data)))
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't bind dropout mask '%s'", mask.Name()))
		}
	}
	return nil
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. Used by flatten layers
//
func (net *Network) Fwd(input *gorgonia.Node, batchSize int) error {
	networkName := "network"
	if net.Name != "" {
		networkName = net.Name
	}

	if len(net.Layers) == 0 {
		return fmt.Errorf("Network must have one layer atleast")
	}

	lastActivatedLayer := input
	for i := range net.Layers {
		if net.Layers[i] == nil {
			return fmt.Errorf("Network's layer #%d is nil", i)
		}
		if net.Layers[i].WeightNode == nil && !noWeightsAllowed(net.Layers[i].Type) {
			return fmt.Errorf("Network's layer's #%d WeightNode is nil", i)
		}
		// Feedforward input through i-th layer
		layerNonActivated, err := net.Layers[i].Fwd(batchSize, lastActivatedLayer, fmt.Sprintf("%s_%s%d", networkName, net.Layers[i].Type, i))
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("[Network '%s', Layer #%d] Can't feedforward input before activation", networkName, i))
		}
		gorgonia.WithName(fmt.Sprintf("%s_%d", networkName, i))(layerNonActivated)
		activation := net.Layers[i].Activation
		if activation == nil {
			activation = NoActivation
		}
		// Activate i-th layer's output
		layerActivated, err := activation(layerNonActivated)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of Network's layer #%d", i))
		}
		gorgonia.WithName(fmt.Sprintf("%s_activated_%d", networkName, i))(layerActivated)
		lastActivatedLayer = layerActivated
	}
	net.out = lastActivatedLayer
	return nil
}
