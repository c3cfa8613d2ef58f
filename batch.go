package plant_gan

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// LabelSource Which labels condition the target generator when synthetic images for discriminator training are produced
type LabelSource uint16

const (
	// LabelsBatch Labels of current batch window: synthetic batch has batch_size samples
	LabelsBatch = LabelSource(iota)
	// LabelsFull Whole training label array: synthetic batch has as many samples as training set
	LabelsFull
)

func (ls LabelSource) String() string {
	switch ls {
	case LabelsBatch:
		return "batch"
	case LabelsFull:
		return "full"
	default:
		return fmt.Sprintf("label_source_%d", uint16(ls))
	}
}

// ParseLabelSource Parses "batch" or "full"
func ParseLabelSource(s string) (LabelSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "batch":
		return LabelsBatch, nil
	case "full":
		return LabelsFull, nil
	default:
		return LabelsBatch, fmt.Errorf("Unknown label source '%s'. Use 'batch' or 'full'", s)
	}
}

// SyntheticSize Number of synthetic samples per epoch for given label source
func (ls LabelSource) SyntheticSize(batchSize, dataSize int) int {
	if ls == LabelsFull {
		return dataSize
	}
	return batchSize
}

// GenerationLabels Picks labels which condition image generation
func (ls LabelSource) GenerationLabels(batchLabels, allLabels *tensor.Dense) *tensor.Dense {
	if ls == LabelsFull {
		return allLabels
	}
	return batchLabels
}

// BatchOffset Start of contiguous batch window for given epoch: epoch mod (dataSize - batchSize).
// There is no reshuffling: window slides by one sample per epoch and wraps deterministically.
func BatchOffset(epoch, dataSize, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("Batch size should be positive, but got %d", batchSize)
	}
	if dataSize <= batchSize {
		return 0, fmt.Errorf("Data size (%d) should be greater than batch size (%d)", dataSize, batchSize)
	}
	if epoch < 0 {
		return 0, fmt.Errorf("Epoch should be non-negative, but got %d", epoch)
	}
	return epoch % (dataSize - batchSize), nil
}

// Rows Copies rows [start; end) of tensor along first axis
func Rows(t *tensor.Dense, start, end int) (*tensor.Dense, error) {
	shp := t.Shape()
	if start < 0 || end > shp[0] || start >= end {
		return nil, fmt.Errorf("Can't select rows [%d; %d) of tensor with %d rows", start, end, shp[0])
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Tensor holds %T, but []float64 expected", t.Data())
	}
	rowSize := shp.TotalSize() / shp[0]
	backing := make([]float64, (end-start)*rowSize)
	copy(backing, data[start*rowSize:end*rowSize])
	newShape := shp.Clone()
	newShape[0] = end - start
	return tensor.New(tensor.WithShape(newShape...), tensor.WithBacking(backing)), nil
}

// ConcatRows Stacks tensors along first axis. Every tensor must have same shape except first dimension
func ConcatRows(ts ...*tensor.Dense) (*tensor.Dense, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("Nothing to concatenate")
	}
	rowShape := ts[0].Shape()[1:]
	rows := 0
	for i, t := range ts {
		if !t.Shape()[1:].Eq(rowShape) {
			return nil, fmt.Errorf("Tensor #%d has shape %v, but rows of shape %v expected", i, t.Shape(), rowShape)
		}
		if _, ok := t.Data().([]float64); !ok {
			return nil, fmt.Errorf("Tensor #%d holds %T, but []float64 expected", i, t.Data())
		}
		rows += t.Shape()[0]
	}
	backing := make([]float64, 0, rows*rowShape.TotalSize())
	for _, t := range ts {
		backing = append(backing, t.Data().([]float64)...)
	}
	newShape := append(tensor.Shape{rows}, rowShape...)
	return tensor.New(tensor.WithShape(newShape...), tensor.WithBacking(backing)), nil
}

// ZeroLabels Labels of synthetic samples: (n, numClasses) zeros, i.e. "none of classes"
func ZeroLabels(n, numClasses int) *tensor.Dense {
	return tensor.New(tensor.WithShape(n, numClasses), tensor.WithBacking(make([]float64, n*numClasses)))
}

// CombineBatch Builds discriminator batch: real samples first, synthetic samples last. Synthetic samples are labeled with zero vectors.
func CombineBatch(realImages, realLabels, syntheticImages *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	if realImages.Shape()[0] != realLabels.Shape()[0] {
		return nil, nil, fmt.Errorf("Real images (%d) and labels (%d) are not aligned", realImages.Shape()[0], realLabels.Shape()[0])
	}
	images, err := ConcatRows(realImages, syntheticImages)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't combine images")
	}
	labels, err := ConcatRows(realLabels, ZeroLabels(syntheticImages.Shape()[0], realLabels.Shape()[1]))
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't combine labels")
	}
	return images, labels, nil
}
