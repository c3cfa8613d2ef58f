package plant_gan

import (
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestLearningRate(t *testing.T) {
	lr := NewLearningRate(0.1)
	if v := lr.Scale(0.5); !almostEqual(v, 0.05, 1e-12) {
		t.Errorf("Scaled learning rate should be 0.05, but got %f", v)
	}
	lr.Set(0.2)
	if lr.Get() != 0.2 {
		t.Errorf("Learning rate should be 0.2, but got %f", lr.Get())
	}
}

func TestOptimizerStep(t *testing.T) {
	g := gorgonia.NewGraph()
	w := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 2), gorgonia.WithName("w"), gorgonia.WithValue(tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float64{2, -1}))))
	sq, err := gorgonia.HadamardProd(w, w)
	if err != nil {
		t.Fatal(err)
	}
	cost, err := gorgonia.Sum(sq)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = gorgonia.Grad(cost, w); err != nil {
		t.Fatal(err)
	}
	tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(w))
	defer tm.Close()

	rate := NewLearningRate(0.1)
	opt := NewOptimizer(rate, NewParamSet("w", w))
	if err = tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	if err = opt.Step(); err != nil {
		t.Fatal(err)
	}
	tm.Reset()
	// w := w - lr * 2w
	expected := []float64{1.6, -0.8}
	for i, v := range w.Value().Data().([]float64) {
		if !almostEqual(v, expected[i], 1e-12) {
			t.Errorf("Parameter #%d should be %f, but got %f", i, expected[i], v)
		}
	}

	// Changed rate is picked by next step
	rate.Set(0.5)
	if err = tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	if err = opt.Step(); err != nil {
		t.Fatal(err)
	}
	tm.Reset()
	for i, v := range w.Value().Data().([]float64) {
		if v != 0 {
			t.Errorf("Parameter #%d should be 0 after step with rate 0.5, but got %f", i, v)
		}
	}
}
