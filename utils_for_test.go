package plant_gan

import (
	"math"
	"math/rand"
	"testing"

	"gorgonia.org/tensor"
)

// Test whether two values are equal up to a tolerance.
func almostEqual(a, b, tol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol*math.Max(1.0, math.Abs(b))
}

// randomDataset Images with values in [0; 1) and one-hot labels cycling over classes
func randomDataset(rng *rand.Rand, n, imageSize, numClasses int) *Dataset {
	images := make([]float64, n*imageSize*imageSize*3)
	for i := range images {
		images[i] = rng.Float64()
	}
	labels := make([]float64, n*numClasses)
	for i := 0; i < n; i++ {
		labels[i*numClasses+i%numClasses] = 1
	}
	return &Dataset{
		Images: tensor.New(tensor.WithShape(n, imageSize, imageSize, 3), tensor.WithBacking(images)),
		Labels: tensor.New(tensor.WithShape(n, numClasses), tensor.WithBacking(labels)),
	}
}

func assertValuesEqual(t *testing.T, a, b map[string][]float64, name string) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("%s: %d values vs %d values", name, len(a), len(b))
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			t.Fatalf("%s: no value for '%s'", name, k)
		}
		for i := range va {
			if va[i] != vb[i] {
				t.Fatalf("%s: '%s'[%d] differs: %v != %v", name, k, i, va[i], vb[i])
			}
		}
	}
}

// positional comparison of two parameter sets with different node names
func assertParamSetsEqual(t *testing.T, a, b ParamSet) {
	t.Helper()
	if err := CheckPaired(a, b); err != nil {
		t.Fatal(err)
	}
	for i := range a.Nodes() {
		da, _ := float64Data(a.Nodes()[i])
		db, _ := float64Data(b.Nodes()[i])
		for j := range da {
			if da[j] != db[j] {
				t.Fatalf("Parameter #%d of '%s' and '%s' differs at %d: %v != %v", i, a.Name, b.Name, j, da[j], db[j])
			}
		}
	}
}

func paramSetsDiffer(a, b ParamSet) bool {
	for i := range a.Nodes() {
		da, _ := float64Data(a.Nodes()[i])
		db, _ := float64Data(b.Nodes()[i])
		for j := range da {
			if da[j] != db[j] {
				return true
			}
		}
	}
	return false
}

func snapshot(t *testing.T, ps ParamSet) map[string][]float64 {
	t.Helper()
	values, err := ps.Values()
	if err != nil {
		t.Fatal(err)
	}
	return values
}

func valuesDiffer(a, b map[string][]float64) bool {
	for k, va := range a {
		for i := range va {
			if va[i] != b[k][i] {
				return true
			}
		}
	}
	return false
}

func rand1337() *rand.Rand {
	return rand.New(rand.NewSource(1337))
}
