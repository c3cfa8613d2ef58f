package plant_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// SoftmaxCrossEntropyWithLogits See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// Cross entropy between softmax(logits) and labels computed per row:
//
//	loss_i = Σ_c labels_ic * (logsumexp(logits_i) - logits_ic) = Σ_c labels_ic * logsumexp(logits_i) - Σ_c labels_ic * logits_ic
//
// logsumexp is shifted by row maximum, so large logits give finite loss and gradients.
//
// then reduced over rows. Rows with zero label vector contribute zero loss and zero gradient.
// Both nodes must have shape (batch, num_classes). Default reduction is 'mean'
func SoftmaxCrossEntropyWithLogits(logits, labels *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	if !logits.Shape().Eq(labels.Shape()) {
		return nil, fmt.Errorf("Logits and labels should have same shape, but got %v and %v", logits.Shape(), labels.Shape())
	}
	if logits.Dims() != 2 {
		return nil, fmt.Errorf("Logits should be (batch, num_classes), but got %v", logits.Shape())
	}
	batchSize := logits.Shape()[0]
	// logsumexp(A) = m + log(Σexp(A - m)) where m is row maximum: exp never overflows
	rowMax, err := gorgonia.Max(logits, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do max(A)")
	}
	rowMaxCol, err := gorgonia.Reshape(rowMax, tensor.Shape{batchSize, 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape max(A)")
	}
	shifted, err := gorgonia.BroadcastSub(logits, rowMaxCol, nil, []byte{1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't do A-max(A)")
	}
	exp, err := gorgonia.Exp(shifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do exp(A-max(A))")
	}
	sumExp, err := gorgonia.Sum(exp, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do Σexp(A-max(A))")
	}
	logShifted, err := gorgonia.Log(sumExp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(Σexp(A-max(A)))")
	}
	logSumExp, err := gorgonia.Add(rowMax, logShifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do max(A)+log(Σexp(A-max(A)))")
	}
	labelsMass, err := gorgonia.Sum(labels, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do ΣB")
	}
	normalizer, err := gorgonia.HadamardProd(labelsMass, logSumExp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (ΣB).*log(Σexp(A))")
	}
	hprod, err := gorgonia.HadamardProd(labels, logits)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A.*B)")
	}
	picked, err := gorgonia.Sum(hprod, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do Σ(A.*B)")
	}
	perRow, err := gorgonia.Sub(normalizer, picked)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x-y)")
	}

	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(perRow)
	case LossReductionMean:
		return gorgonia.Mean(perRow)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}
