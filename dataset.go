package plant_gan

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Dataset Images (N, image_size, image_size, 3) with one-hot labels (N, num_classes)
type Dataset struct {
	Images *tensor.Dense
	Labels *tensor.Dense
}

// Len Returns number of samples
func (ds *Dataset) Len() int {
	if ds == nil || ds.Images == nil {
		return 0
	}
	return ds.Images.Shape()[0]
}

// Validate Checks that images and labels are aligned and have expected sizes
func (ds *Dataset) Validate(imageSize, numClasses int) error {
	if ds == nil || ds.Images == nil || ds.Labels == nil {
		return fmt.Errorf("Dataset is empty")
	}
	n := ds.Images.Shape()[0]
	expectedImages := tensor.Shape{n, imageSize, imageSize, 3}
	if !ds.Images.Shape().Eq(expectedImages) {
		return fmt.Errorf("Images should have shape %v, but got %v", expectedImages, ds.Images.Shape())
	}
	expectedLabels := tensor.Shape{n, numClasses}
	if !ds.Labels.Shape().Eq(expectedLabels) {
		return fmt.Errorf("Labels should have shape %v, but got %v", expectedLabels, ds.Labels.Shape())
	}
	if _, ok := ds.Images.Data().([]float64); !ok {
		return fmt.Errorf("Images hold %T, but []float64 expected", ds.Images.Data())
	}
	if _, ok := ds.Labels.Data().([]float64); !ok {
		return fmt.Errorf("Labels hold %T, but []float64 expected", ds.Labels.Data())
	}
	return nil
}

// Loader Contract of persisted dataset. LoadData must be called before any getter.
type Loader interface {
	LoadData() error
	// Data Returns every image (training + validation)
	Data() *tensor.Dense
	// Labels Returns every label (training + validation)
	Labels() *tensor.Dense
	TrainingData() *tensor.Dense
	TrainingLabels() *tensor.Dense
	ValidationData() *tensor.Dense
	ValidationLabels() *tensor.Dense
}

// MemoryLoader Loader over in-memory training and validation datasets
type MemoryLoader struct {
	Training   *Dataset
	Validation *Dataset

	all *Dataset
}

// LoadData Concatenates training and validation sets for Data()/Labels()
func (ml *MemoryLoader) LoadData() error {
	if ml.Training == nil || ml.Training.Images == nil || ml.Training.Labels == nil {
		return fmt.Errorf("Training set is empty")
	}
	if ml.Validation.Len() == 0 {
		ml.all = ml.Training
		return nil
	}
	images, err := ConcatRows(ml.Training.Images, ml.Validation.Images)
	if err != nil {
		return err
	}
	labels, err := ConcatRows(ml.Training.Labels, ml.Validation.Labels)
	if err != nil {
		return err
	}
	ml.all = &Dataset{Images: images, Labels: labels}
	return nil
}

func (ml *MemoryLoader) Data() *tensor.Dense           { return ml.all.Images }
func (ml *MemoryLoader) Labels() *tensor.Dense         { return ml.all.Labels }
func (ml *MemoryLoader) TrainingData() *tensor.Dense   { return ml.Training.Images }
func (ml *MemoryLoader) TrainingLabels() *tensor.Dense { return ml.Training.Labels }
func (ml *MemoryLoader) ValidationData() *tensor.Dense {
	if ml.Validation == nil {
		return nil
	}
	return ml.Validation.Images
}
func (ml *MemoryLoader) ValidationLabels() *tensor.Dense {
	if ml.Validation == nil {
		return nil
	}
	return ml.Validation.Labels
}
