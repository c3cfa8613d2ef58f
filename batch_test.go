package plant_gan

import (
	"testing"

	"gorgonia.org/tensor"
)

func TestBatchOffset(t *testing.T) {
	dataSize, batchSize := 100, 10
	for epoch := 0; epoch < 500; epoch++ {
		offset, err := BatchOffset(epoch, dataSize, batchSize)
		if err != nil {
			t.Fatal(err)
		}
		if offset < 0 || offset+batchSize > dataSize {
			t.Fatalf("Epoch %d: window [%d; %d) is out of data", epoch, offset, offset+batchSize)
		}
		if offset != epoch%90 {
			t.Fatalf("Epoch %d: offset should be %d, but got %d", epoch, epoch%90, offset)
		}
	}
	if offset, _ := BatchOffset(90, dataSize, batchSize); offset != 0 {
		t.Errorf("Window should wrap on epoch 90, but got offset %d", offset)
	}
	if _, err := BatchOffset(0, 10, 10); err == nil {
		t.Error("Data size equal to batch size should be rejected")
	}
	if _, err := BatchOffset(-1, 100, 10); err == nil {
		t.Error("Negative epoch should be rejected")
	}
}

func TestRowsAndConcatRows(t *testing.T) {
	x := tensor.New(tensor.WithShape(4, 2), tensor.WithBacking([]float64{0, 1, 2, 3, 4, 5, 6, 7}))
	rows, err := Rows(x, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !rows.Shape().Eq(tensor.Shape{2, 2}) {
		t.Fatalf("Rows should have shape (2, 2), but got %v", rows.Shape())
	}
	expected := []float64{2, 3, 4, 5}
	for i, v := range rows.Data().([]float64) {
		if v != expected[i] {
			t.Errorf("Element #%d should be %f, but got %f", i, expected[i], v)
		}
	}
	// Copy must not alias source
	rows.Data().([]float64)[0] = 100
	if x.Data().([]float64)[2] != 2 {
		t.Error("Rows should copy data")
	}
	if _, err = Rows(x, 3, 5); err == nil {
		t.Error("Out of range rows should be rejected")
	}

	joined, err := ConcatRows(x, rows)
	if err != nil {
		t.Fatal(err)
	}
	if !joined.Shape().Eq(tensor.Shape{6, 2}) {
		t.Errorf("Concatenated shape should be (6, 2), but got %v", joined.Shape())
	}
	if _, err = ConcatRows(x, tensor.New(tensor.WithShape(1, 3), tensor.WithBacking([]float64{1, 2, 3}))); err == nil {
		t.Error("Rows of different shapes should be rejected")
	}
}

func TestCombineBatch(t *testing.T) {
	batchSize, imageSize, numClasses := 3, 4, 5
	realSet := randomDataset(rand1337(), batchSize, imageSize, numClasses)
	synthetic := randomDataset(rand1337(), 2, imageSize, numClasses)
	images, labels, err := CombineBatch(realSet.Images, realSet.Labels, synthetic.Images)
	if err != nil {
		t.Fatal(err)
	}
	if images.Shape()[0] != 5 || labels.Shape()[0] != 5 {
		t.Fatalf("Combined batch should have 5 rows, but got %v and %v", images.Shape(), labels.Shape())
	}
	data := labels.Data().([]float64)
	realData := realSet.Labels.Data().([]float64)
	for i := 0; i < batchSize*numClasses; i++ {
		if data[i] != realData[i] {
			t.Fatalf("Real labels should be kept as is, element #%d differs", i)
		}
	}
	for i := batchSize * numClasses; i < len(data); i++ {
		if data[i] != 0 {
			t.Fatalf("Synthetic labels should be zero vectors, but element #%d is %f", i, data[i])
		}
	}
	imageData := images.Data().([]float64)
	syntheticData := synthetic.Images.Data().([]float64)
	offset := batchSize * imageSize * imageSize * 3
	for i := range syntheticData {
		if imageData[offset+i] != syntheticData[i] {
			t.Fatalf("Synthetic images should follow real ones, element #%d differs", i)
		}
	}
}

func TestLabelSource(t *testing.T) {
	batchLabels := ZeroLabels(4, 3)
	allLabels := ZeroLabels(20, 3)

	if n := LabelsBatch.SyntheticSize(4, 20); n != 4 {
		t.Errorf("Batch label source should produce 4 samples, but got %d", n)
	}
	if n := LabelsFull.SyntheticSize(4, 20); n != 20 {
		t.Errorf("Full label source should produce 20 samples, but got %d", n)
	}
	if l := LabelsBatch.GenerationLabels(batchLabels, allLabels); l != batchLabels {
		t.Error("Batch label source should pick batch labels")
	}
	if l := LabelsFull.GenerationLabels(batchLabels, allLabels); l != allLabels {
		t.Error("Full label source should pick whole label array")
	}

	for _, s := range []string{"batch", "full"} {
		ls, err := ParseLabelSource(s)
		if err != nil {
			t.Fatal(err)
		}
		if ls.String() != s {
			t.Errorf("Label source should be '%s', but got '%s'", s, ls)
		}
	}
	if _, err := ParseLabelSource("random"); err == nil {
		t.Error("Unknown label source should be rejected")
	}
}
