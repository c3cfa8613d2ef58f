package plant_gan

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// Accuracy Fraction of rows where arg-max of predicted probabilities matches arg-max of labels.
// Arg-max of zero label vector is 0 (first class).
func Accuracy(probs, labels tensor.Tensor) (float64, error) {
	if !probs.Shape().Eq(labels.Shape()) || probs.Dims() != 2 {
		return 0, fmt.Errorf("Probabilities and labels should be (batch, num_classes), but got %v and %v", probs.Shape(), labels.Shape())
	}
	p, ok := probs.Data().([]float64)
	if !ok {
		return 0, fmt.Errorf("Probabilities hold %T, but []float64 expected", probs.Data())
	}
	l, ok := labels.Data().([]float64)
	if !ok {
		return 0, fmt.Errorf("Labels hold %T, but []float64 expected", labels.Data())
	}
	rows, cols := probs.Shape()[0], probs.Shape()[1]
	if rows == 0 {
		return 0, nil
	}
	matched := 0
	for i := 0; i < rows; i++ {
		if floats.MaxIdx(p[i*cols:(i+1)*cols]) == floats.MaxIdx(l[i*cols:(i+1)*cols]) {
			matched++
		}
	}
	return float64(matched) / float64(rows), nil
}
