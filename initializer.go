package plant_gan

import (
	"math"
	"math/rand"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// truncatedNormalStd Standard deviation of the unit normal truncated to [-2; 2]
const truncatedNormalStd = 0.87962566103423978

// VarianceScaling Returns initializer drawing values from normal distribution truncated at two standard deviations
// with stddev = sqrt(scale / fan_in). For convolution kernels (out, in, kh, kw) fan_in = in*kh*kw, for linear weights (out, in) fan_in = in.
//
// rng - source of randomness. Network constructors share single source to make initialization reproducible
// scale - scaling factor, 1.0 in common case
//
func VarianceScaling(rng *rand.Rand, scale float64) gorgonia.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn := 1
		for _, d := range s[1:] {
			fanIn *= d
		}
		if len(s) == 1 {
			fanIn = s[0]
		}
		std := math.Sqrt(scale/float64(fanIn)) / truncatedNormalStd
		size := tensor.Shape(s).TotalSize()
		switch dt {
		case tensor.Float32:
			data := make([]float32, size)
			for i := range data {
				data[i] = float32(truncatedNorm(rng) * std)
			}
			return data
		default:
			data := make([]float64, size)
			for i := range data {
				data[i] = truncatedNorm(rng) * std
			}
			return data
		}
	}
}

func truncatedNorm(rng *rand.Rand) float64 {
	for {
		v := rng.NormFloat64()
		if v >= -2 && v <= 2 {
			return v
		}
	}
}
