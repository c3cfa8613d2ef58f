package plant_gan

import (
	"fmt"
	"math/rand"
	"sort"

	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with normally distributed float64 values (mean = 0, stddev = 1)
//
// rng - source of randomness
// batchSize - Simply batch size
// n - Number of elements in each batch
// Resulting dense will have batchSize*n elements
//
func NormRandDense(rng *rand.Rand, batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// OneHotEncode Encodes string categories into one-hot vectors. Categories are indexed in sorted order of unique values.
// Returns encoded vectors and sorted unique categories
func OneHotEncode(sl []string) ([][]float64, []string, error) {
	result := make([][]float64, 0, len(sl))
	unique := make(map[string]bool)
	for _, s := range sl {
		unique[s] = true
	}
	uniqueSlice := make([]string, 0, len(unique))
	for k := range unique {
		uniqueSlice = append(uniqueSlice, k)
	}
	sort.Strings(uniqueSlice)
	maxIdx := len(uniqueSlice)
	for i := range sl {
		oneHotEncodedResult := make([]float64, maxIdx)
		oneHotIdx := findIdxStrings(sl[i], uniqueSlice)
		if oneHotIdx == -1 {
			return nil, nil, fmt.Errorf("Index went to -1. This should not happen at all")
		}
		oneHotEncodedResult[oneHotIdx] = 1
		result = append(result, oneHotEncodedResult)
	}
	return result, uniqueSlice, nil
}

func findIdxStrings(s string, slice []string) int {
	for i, item := range slice {
		if item == s {
			return i
		}
	}
	return -1
}
