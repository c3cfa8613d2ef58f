package plant_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ParamSet Ordered collection of learnable nodes which belong to single instance of network.
// Order is the order of layers (weight first, then bias), so two instances of the same architecture are paired positionally.
type ParamSet struct {
	Name  string
	nodes gorgonia.Nodes
}

// NewParamSet Constructor for ParamSet
func NewParamSet(name string, nodes ...*gorgonia.Node) ParamSet {
	return ParamSet{
		Name:  name,
		nodes: nodes,
	}
}

// Nodes Returns learnable nodes
func (ps ParamSet) Nodes() gorgonia.Nodes {
	return ps.nodes
}

// Len Returns number of learnable nodes
func (ps ParamSet) Len() int {
	return len(ps.nodes)
}

// Shapes Returns shapes of learnable nodes in order
func (ps ParamSet) Shapes() []tensor.Shape {
	shapes := make([]tensor.Shape, len(ps.nodes))
	for i, n := range ps.nodes {
		shapes[i] = n.Shape().Clone()
	}
	return shapes
}

// Size Returns total number of scalar parameters
func (ps ParamSet) Size() int {
	total := 0
	for _, n := range ps.nodes {
		total += n.Shape().TotalSize()
	}
	return total
}

// CheckPaired Verifies that two parameter sets could be synchronized: same number of nodes and same shape for each position.
func CheckPaired(train, target ParamSet) error {
	if train.Len() != target.Len() {
		return fmt.Errorf("Parameter sets '%s' and '%s' have different number of nodes: %d != %d", train.Name, target.Name, train.Len(), target.Len())
	}
	for i := range train.nodes {
		if !train.nodes[i].Shape().Eq(target.nodes[i].Shape()) {
			return fmt.Errorf("Parameter #%d of '%s' has shape %v, but parameter #%d of '%s' has shape %v", i, train.Name, train.nodes[i].Shape(), i, target.Name, target.nodes[i].Shape())
		}
	}
	return nil
}

// Sync Hard copy of values: dst[i] := src[i] for every i.
// Values are copied in place, so tape machines which were compiled with dst nodes see new values on the next run.
func Sync(dst, src ParamSet) error {
	if err := CheckPaired(src, dst); err != nil {
		return errors.Wrap(err, "Can't synchronize parameter sets")
	}
	for i := range src.nodes {
		srcData, err := float64Data(src.nodes[i])
		if err != nil {
			return errors.Wrapf(err, "Can't read parameter #%d of '%s'", i, src.Name)
		}
		dstData, err := float64Data(dst.nodes[i])
		if err != nil {
			return errors.Wrapf(err, "Can't read parameter #%d of '%s'", i, dst.Name)
		}
		copy(dstData, srcData)
	}
	return nil
}

// Values Returns copies of parameter values keyed by node name
func (ps ParamSet) Values() (map[string][]float64, error) {
	values := make(map[string][]float64, len(ps.nodes))
	for i, n := range ps.nodes {
		data, err := float64Data(n)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't read parameter #%d of '%s'", i, ps.Name)
		}
		cp := make([]float64, len(data))
		copy(cp, data)
		values[n.Name()] = cp
	}
	return values, nil
}

// SetValues Copies provided values into parameters (in place). Every node of the set must be present in values.
func (ps ParamSet) SetValues(values map[string][]float64) error {
	for i, n := range ps.nodes {
		v, ok := values[n.Name()]
		if !ok {
			return fmt.Errorf("No value for parameter '%s' of '%s'", n.Name(), ps.Name)
		}
		data, err := float64Data(n)
		if err != nil {
			return errors.Wrapf(err, "Can't read parameter #%d of '%s'", i, ps.Name)
		}
		if len(v) != len(data) {
			return fmt.Errorf("Parameter '%s' of '%s' has %d elements, but provided %d", n.Name(), ps.Name, len(data), len(v))
		}
		copy(data, v)
	}
	return nil
}

func float64Data(n *gorgonia.Node) ([]float64, error) {
	if n.Value() == nil {
		return nil, fmt.Errorf("Node '%s' has no value", n.Name())
	}
	data, ok := n.Value().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Node '%s' holds %T, but []float64 expected", n.Name(), n.Value().Data())
	}
	return data, nil
}
