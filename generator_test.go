package plant_gan

import (
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestGeneratorOutputShape(t *testing.T) {
	for _, batchSize := range []int{1, 3} {
		cfg := GeneratorConfig{NumClasses: 12, NoiseSize: 32, ImageSize: 8, BatchSize: batchSize}
		rng := rand1337()
		g := gorgonia.NewGraph()
		gen, err := NewGenerator(g, "generator_train", cfg, rng)
		if err != nil {
			t.Fatal(err)
		}
		expected := tensor.Shape{batchSize, 8, 8, 3}
		if !gen.Out().Shape().Eq(expected) {
			t.Fatalf("Batch %d: output should have shape %v, but got %v", batchSize, expected, gen.Out().Shape())
		}

		labels := ZeroLabels(batchSize, 12)
		labels.Data().([]float64)[0] = 1
		if err = gen.Feed(labels, NormRandDense(rng, batchSize, 32)); err != nil {
			t.Fatal(err)
		}
		var out gorgonia.Value
		gorgonia.Read(gen.Out(), &out)
		tm := gorgonia.NewTapeMachine(g)
		if err = tm.RunAll(); err != nil {
			t.Fatal(err)
		}
		tm.Close()
		if !out.Shape().Eq(expected) {
			t.Errorf("Batch %d: computed output should have shape %v, but got %v", batchSize, expected, out.Shape())
		}
		// ReLU output
		for i, v := range out.Data().([]float64) {
			if v < 0 {
				t.Fatalf("Batch %d: output #%d should be non-negative, but got %f", batchSize, i, v)
			}
		}
	}
}

func TestGeneratorParams(t *testing.T) {
	cfg := GeneratorConfig{NumClasses: 3, NoiseSize: 4, ImageSize: 4, BatchSize: 2}
	gen, err := NewGenerator(gorgonia.NewGraph(), "generator_train", cfg, rand1337())
	if err != nil {
		t.Fatal(err)
	}
	ps := gen.Params()
	// 4 convolutions with weights and bias
	if ps.Len() != 8 {
		t.Fatalf("Generator should have 8 learnables, but got %d", ps.Len())
	}
	expectedFirst := tensor.Shape{64, 7, 3, 3}
	if !ps.Shapes()[0].Eq(expectedFirst) {
		t.Errorf("First kernel should have shape %v, but got %v", expectedFirst, ps.Shapes()[0])
	}
	expectedOutput := tensor.Shape{3, 1, 3, 3}
	if !ps.Shapes()[6].Eq(expectedOutput) {
		t.Errorf("Output kernel should have shape %v, but got %v", expectedOutput, ps.Shapes()[6])
	}

	if _, err = NewGenerator(gorgonia.NewGraph(), "generator_train", GeneratorConfig{NumClasses: 3, ImageSize: 4, BatchSize: 2}, rand1337()); err == nil {
		t.Error("Zero noise size should be rejected")
	}
}
