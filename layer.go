package plant_gan

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// For LayerNormalization WeightNode holds per-channel scale (gamma) and BiasNode holds per-channel shift (beta).
// For LayerDropout MaskNode is created on first feedforward and has to be bound before each run (see Network.FeedDropout).
//
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	MaskNode   *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	ReshapeDims  []int
	Axes         []int
	// Epsilon is used by LayerNormalization only
	Epsilon float64
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerMaxpool
	LayerReshape
	LayerTranspose
	LayerDropout
	LayerNormalization
)

func (lt LayerType) String() string {
	switch lt {
	case LayerLinear:
		return "linear"
	case LayerFlatten:
		return "flatten"
	case LayerConvolutional:
		return "conv"
	case LayerMaxpool:
		return "maxpool"
	case LayerReshape:
		return "reshape"
	case LayerTranspose:
		return "transpose"
	case LayerDropout:
		return "dropout"
	case LayerNormalization:
		return "norm"
	default:
		return fmt.Sprintf("layer_type_%d", uint16(lt))
	}
}

var (
	allowedNoWeights = []LayerType{LayerMaxpool, LayerFlatten, LayerReshape, LayerTranspose, LayerDropout}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Feedforward input through layer. Returns non-activated output.
//
// batchSize - batch size. Used by flatten layer only
// input - Input node
// name - prefix for nodes which are created by layer itself (dropout masks)
//
func (l *Layer) Fwd(batchSize int, input *gorgonia.Node, name string) (*gorgonia.Node, error) {
	if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
		return nil, fmt.Errorf("Layer of type '%s' has nil weight node", l.Type)
	}
	var out *gorgonia.Node
	var err error
	switch l.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		out, err = gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
	case LayerConvolutional:
		out, err = gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
	case LayerMaxpool:
		out, err = gorgonia.MaxPool2D(input, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't maxpool[2D] input by kernel")
		}
	case LayerFlatten:
		out, err = gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
	case LayerReshape:
		out, err = gorgonia.Reshape(input, l.ReshapeDims)
		if err != nil {
			return nil, errors.Wrap(err, "Can't reshape input")
		}
	case LayerTranspose:
		out, err = gorgonia.Transpose(input, l.Axes...)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose input")
		}
	case LayerDropout:
		if l.MaskNode == nil {
			l.MaskNode = gorgonia.NewTensor(input.Graph(), gorgonia.Float64, input.Dims(), gorgonia.WithShape(input.Shape().Clone()...), gorgonia.WithName(name+"_mask"), gorgonia.WithInit(gorgonia.Ones()))
		}
		out, err = gorgonia.HadamardProd(input, l.MaskNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply dropout mask")
		}
		// Dropout has neither weights nor bias
		return out, nil
	case LayerNormalization:
		// Running statistics are fixed: mean = 0, variance = 1
		scaled, err := broadcastOp(gorgonia.HadamardProd, gorgonia.BroadcastHadamardProd, input, l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't scale input by gamma")
		}
		out, err = gorgonia.Mul(scaled, gorgonia.NewConstant(1.0/math.Sqrt(1.0+l.Epsilon)))
		if err != nil {
			return nil, errors.Wrap(err, "Can't divide input by running deviation")
		}
	default:
		return nil, fmt.Errorf("Layer's type '%d' (uint16) is not handled", l.Type)
	}
	if l.BiasNode != nil {
		out, err = broadcastOp(gorgonia.Add, gorgonia.BroadcastAdd, out, l.BiasNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't add bias to non-activated output")
		}
	}
	return out, nil
}

type binaryOp func(a, b *gorgonia.Node) (*gorgonia.Node, error)
type broadcastBinaryOp func(a, b *gorgonia.Node, leftPattern, rightPattern []byte) (*gorgonia.Node, error)

// broadcastOp applies op to x and y where y has the same number of dimensions as x and size 1 along every broadcasted axis.
// Plain (non-broadcast) version is used when shapes are equal already: e.g. batch size is 1 and spatial dims are 1x1
func broadcastOp(plain binaryOp, broadcasted broadcastBinaryOp, x, y *gorgonia.Node) (*gorgonia.Node, error) {
	xs, ys := x.Shape(), y.Shape()
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("Can't broadcast %v to %v: number of dimensions differs", ys, xs)
	}
	pattern := []byte{}
	for i := range xs {
		if xs[i] == ys[i] {
			continue
		}
		if ys[i] != 1 {
			return nil, fmt.Errorf("Can't broadcast %v to %v: axis %d", ys, xs, i)
		}
		pattern = append(pattern, byte(i))
	}
	if len(pattern) == 0 {
		return plain(x, y)
	}
	return broadcasted(x, y, nil, pattern)
}
