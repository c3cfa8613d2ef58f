package main

import (
	"fmt"
	"math/rand"

	plant_gan "github.com/LdDl/plant-gan"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	learningRate = 0.01
	keepProb     = 0.8
	imgSize      = 8
	numEpochs    = 300
	classes      = 3
	batchSize    = 3

	x_image = []float64{
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 1, 0, 0, 0, 1, 0, 0,
		0, 0, 1, 0, 1, 0, 0, 0,
		0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 1, 0, 1, 0, 0, 0,
		0, 1, 0, 0, 0, 1, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	t_image = []float64{
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
	}
	o_image = []float64{
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 1, 0, 0, 0, 0, 1, 0,
		0, 1, 0, 0, 0, 0, 1, 0,
		0, 1, 0, 0, 0, 0, 1, 0,
		0, 1, 0, 0, 0, 0, 1, 0,
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
)

func main() {
	rng := rand.New(rand.NewSource(1337))

	/* Define Gorgonia's graph */
	cnnGraph := gorgonia.NewGraph()

	/* Define discriminator as plain classifier */
	classifier, err := plant_gan.NewDiscriminator(cnnGraph, "discriminator_train", nil, plant_gan.DiscriminatorConfig{
		NumClasses: classes,
		ImageSize:  imgSize,
		BatchSize:  batchSize,
	}, rng)
	if err != nil {
		panic(err)
	}

	/* Prepare tensor for label values */
	targetCNN := gorgonia.NewMatrix(cnnGraph, gorgonia.Float64, gorgonia.WithShape(batchSize, classes), gorgonia.WithName("discriminator_label"))

	/* Prepare cost node */
	cost, err := plant_gan.SoftmaxCrossEntropyWithLogits(classifier.Logits(), targetCNN)
	if err != nil {
		panic(err)
	}

	/* Define gradients */
	_, err = gorgonia.Grad(cost, classifier.Params().Nodes()...)
	if err != nil {
		panic(err)
	}

	/* Prepare variables for storing neural network's cost and output */
	var costOut, probsOut gorgonia.Value
	gorgonia.Read(cost, &costOut)
	gorgonia.Read(classifier.Probs(), &probsOut)

	/* Define tape machine */
	tm := gorgonia.NewTapeMachine(cnnGraph, gorgonia.BindDualValues(classifier.Params().Nodes()...))
	defer tm.Close()

	optimizer := plant_gan.NewOptimizer(plant_gan.NewLearningRate(learningRate), classifier.Params())

	labels := tensor.New(tensor.WithShape(batchSize, classes), tensor.WithBacking([]float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}))

	for e := 0; e < numEpochs; e++ {
		err = gorgonia.Let(classifier.Input, batch(rng, 0.2))
		if err != nil {
			panic(err)
		}
		err = gorgonia.Let(targetCNN, labels)
		if err != nil {
			panic(err)
		}
		err = classifier.FeedDropout(rng, keepProb)
		if err != nil {
			panic(err)
		}
		/* Run training step */
		err = tm.RunAll()
		if err != nil {
			panic(err)
		}
		err = optimizer.Step()
		if err != nil {
			panic(err)
		}
		tm.Reset()
		if e%50 == 0 {
			fmt.Printf("Epoch #%d: loss = %v\n", e, costOut)
		}
	}

	/* Test neural network on noisy data */
	err = gorgonia.Let(classifier.Input, batch(rng, 0.2))
	if err != nil {
		panic(err)
	}
	err = classifier.FeedDropout(rng, 1.0)
	if err != nil {
		panic(err)
	}
	err = tm.RunAll()
	if err != nil {
		panic(err)
	}
	tm.Reset()
	accuracy, err := plant_gan.Accuracy(probsOut.(tensor.Tensor), labels)
	if err != nil {
		panic(err)
	}
	fmt.Println("X, T, O => Should give [1, 0, 0], [0, 1, 0], [0, 0, 1]")
	fmt.Println(probsOut)
	fmt.Printf("Accuracy: %f\n", accuracy)
}

// batch Stacks X, T and O chars as gray RGB images with noise added to background
func batch(rng *rand.Rand, noise float64) *tensor.Dense {
	data := make([]float64, 0, batchSize*imgSize*imgSize*3)
	for _, img := range [][]float64{x_image, t_image, o_image} {
		for _, v := range img {
			// Random value in [0; noise)
			pixel := v + rng.Float64()*noise
			data = append(data, pixel, pixel, pixel)
		}
	}
	return tensor.New(tensor.WithShape(batchSize, imgSize, imgSize, 3), tensor.WithBacking(data))
}
