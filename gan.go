package plant_gan

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GANConfig Sizes and hyperparameters which define graphs of PlantGAN
//
// BatchSize - number of real samples per batch. Generator is trained on batches of this size
// SyntheticSize - number of samples produced by target generator for discriminator training (see LabelSource.SyntheticSize)
// ValidationBatch - size of chunk for validation graph. Zero means no validation graph
//
type GANConfig struct {
	NumClasses int
	ImageSize  int
	NoiseSize  int

	BatchSize       int
	SyntheticSize   int
	ValidationBatch int

	GeneratorLearningRate     float64
	DiscriminatorLearningRate float64

	Seed int64
}

// PlantGAN Conditional GAN where discriminator is num_classes classifier and generated images are labeled with zero vector.
// Both networks have train and target instances. Target instances are updated by explicit synchronization only.
//
// It owns four graphs, each one with its own tape machine:
//
// ganGraph - generator(train) => discriminator(target) => generator loss. Gradients are computed for generator(train) only
// generateGraph - generator(target) for producing synthetic samples
// discriminatorGraph - discriminator(train) on combined batch => discriminator loss. Gradients are computed for discriminator(train)
// validationGraph - copy of discriminator(train) for evaluation on validation chunks
//
type PlantGAN struct {
	cfg GANConfig
	rng *rand.Rand

	ganGraph            *gorgonia.ExprGraph
	generatorTrain      *GeneratorNet
	discriminatorTarget *DiscriminatorNet
	ganLabels           *gorgonia.Node
	generatorLoss       *gorgonia.Node
	generatorLossVal    gorgonia.Value
	generatorTrainVal   gorgonia.Value
	tmGAN               gorgonia.VM

	generateGraph      *gorgonia.ExprGraph
	generatorTarget    *GeneratorNet
	generatorTargetVal gorgonia.Value
	tmGenerate         gorgonia.VM

	discriminatorGraph     *gorgonia.ExprGraph
	discriminatorTrain     *DiscriminatorNet
	discriminatorLabels    *gorgonia.Node
	discriminatorLoss      *gorgonia.Node
	discriminatorLossVal   gorgonia.Value
	discriminatorProbsVal  gorgonia.Value
	discriminatorBatchSize int
	tmDiscriminator        gorgonia.VM

	validationGraph    *gorgonia.ExprGraph
	discriminatorEval  *DiscriminatorNet
	validationLabels   *gorgonia.Node
	validationLossVal  gorgonia.Value
	validationProbsVal gorgonia.Value
	tmValidation       gorgonia.VM

	generatorOptimizer     *Optimizer
	discriminatorOptimizer *Optimizer
}

// NewPlantGAN Defines every graph, losses, gradients and tape machines.
// Train and target parameter sets are checked to be paired: mismatch is a structural error.
func NewPlantGAN(cfg GANConfig) (*PlantGAN, error) {
	if cfg.BatchSize <= 0 || cfg.SyntheticSize <= 0 {
		return nil, fmt.Errorf("Batch size and synthetic size should be positive, but got %d and %d", cfg.BatchSize, cfg.SyntheticSize)
	}
	if cfg.GeneratorLearningRate <= 0 || cfg.DiscriminatorLearningRate <= 0 {
		return nil, fmt.Errorf("Learning rates should be positive, but got %g and %g", cfg.GeneratorLearningRate, cfg.DiscriminatorLearningRate)
	}
	net := &PlantGAN{
		cfg:                    cfg,
		rng:                    rand.New(rand.NewSource(cfg.Seed)),
		discriminatorBatchSize: cfg.BatchSize + cfg.SyntheticSize,
	}
	if err := net.defineGAN(); err != nil {
		return nil, errors.Wrap(err, "Can't define generator training graph")
	}
	if err := net.defineGenerate(); err != nil {
		return nil, errors.Wrap(err, "Can't define image generation graph")
	}
	if err := net.defineDiscriminator(); err != nil {
		return nil, errors.Wrap(err, "Can't define discriminator training graph")
	}
	if cfg.ValidationBatch > 0 {
		if err := net.defineValidation(); err != nil {
			return nil, errors.Wrap(err, "Can't define validation graph")
		}
	}

	if err := CheckPaired(net.generatorTrain.Params(), net.generatorTarget.Params()); err != nil {
		return nil, errors.Wrap(err, "Generator")
	}
	if err := CheckPaired(net.discriminatorTrain.Params(), net.discriminatorTarget.Params()); err != nil {
		return nil, errors.Wrap(err, "Discriminator")
	}
	if net.discriminatorEval != nil {
		if err := CheckPaired(net.discriminatorTrain.Params(), net.discriminatorEval.Params()); err != nil {
			return nil, errors.Wrap(err, "Discriminator (validation)")
		}
	}

	net.tmGAN = gorgonia.NewTapeMachine(net.ganGraph, gorgonia.BindDualValues(net.generatorTrain.Params().Nodes()...))
	net.tmGenerate = gorgonia.NewTapeMachine(net.generateGraph)
	net.tmDiscriminator = gorgonia.NewTapeMachine(net.discriminatorGraph, gorgonia.BindDualValues(net.discriminatorTrain.Params().Nodes()...))
	if net.validationGraph != nil {
		net.tmValidation = gorgonia.NewTapeMachine(net.validationGraph)
	}

	net.generatorOptimizer = NewOptimizer(NewLearningRate(cfg.GeneratorLearningRate), net.generatorTrain.Params())
	net.discriminatorOptimizer = NewOptimizer(NewLearningRate(cfg.DiscriminatorLearningRate), net.discriminatorTrain.Params())
	return net, nil
}

func (net *PlantGAN) generatorConfig(batchSize int) GeneratorConfig {
	return GeneratorConfig{
		NumClasses: net.cfg.NumClasses,
		NoiseSize:  net.cfg.NoiseSize,
		ImageSize:  net.cfg.ImageSize,
		BatchSize:  batchSize,
	}
}

func (net *PlantGAN) discriminatorConfig(batchSize int) DiscriminatorConfig {
	return DiscriminatorConfig{
		NumClasses: net.cfg.NumClasses,
		ImageSize:  net.cfg.ImageSize,
		BatchSize:  batchSize,
	}
}

func (net *PlantGAN) defineGAN() error {
	var err error
	net.ganGraph = gorgonia.NewGraph()
	net.generatorTrain, err = NewGenerator(net.ganGraph, "generator_train", net.generatorConfig(net.cfg.BatchSize), net.rng)
	if err != nil {
		return err
	}
	net.discriminatorTarget, err = NewDiscriminator(net.ganGraph, "discriminator_target", net.generatorTrain.Out(), net.discriminatorConfig(net.cfg.BatchSize), net.rng)
	if err != nil {
		return err
	}
	net.ganLabels = gorgonia.NewMatrix(net.ganGraph, gorgonia.Float64, gorgonia.WithShape(net.cfg.BatchSize, net.cfg.NumClasses), gorgonia.WithName("generator_loss_labels"))
	net.generatorLoss, err = SoftmaxCrossEntropyWithLogits(net.discriminatorTarget.Logits(), net.ganLabels)
	if err != nil {
		return errors.Wrap(err, "Can't define generator loss")
	}
	gorgonia.Read(net.generatorLoss, &net.generatorLossVal)
	gorgonia.Read(net.generatorTrain.Out(), &net.generatorTrainVal)
	// Target discriminator is frozen: gradients are taken w.r.t. generator's learnables only
	if _, err = gorgonia.Grad(net.generatorLoss, net.generatorTrain.Params().Nodes()...); err != nil {
		return errors.Wrap(err, "Can't define gradients of generator loss")
	}
	return nil
}

func (net *PlantGAN) defineGenerate() error {
	var err error
	net.generateGraph = gorgonia.NewGraph()
	net.generatorTarget, err = NewGenerator(net.generateGraph, "generator_target", net.generatorConfig(net.cfg.SyntheticSize), net.rng)
	if err != nil {
		return err
	}
	gorgonia.Read(net.generatorTarget.Out(), &net.generatorTargetVal)
	return nil
}

func (net *PlantGAN) defineDiscriminator() error {
	var err error
	net.discriminatorGraph = gorgonia.NewGraph()
	net.discriminatorTrain, err = NewDiscriminator(net.discriminatorGraph, "discriminator_train", nil, net.discriminatorConfig(net.discriminatorBatchSize), net.rng)
	if err != nil {
		return err
	}
	net.discriminatorLabels = gorgonia.NewMatrix(net.discriminatorGraph, gorgonia.Float64, gorgonia.WithShape(net.discriminatorBatchSize, net.cfg.NumClasses), gorgonia.WithName("discriminator_loss_labels"))
	net.discriminatorLoss, err = SoftmaxCrossEntropyWithLogits(net.discriminatorTrain.Logits(), net.discriminatorLabels)
	if err != nil {
		return errors.Wrap(err, "Can't define discriminator loss")
	}
	gorgonia.Read(net.discriminatorLoss, &net.discriminatorLossVal)
	gorgonia.Read(net.discriminatorTrain.Probs(), &net.discriminatorProbsVal)
	if _, err = gorgonia.Grad(net.discriminatorLoss, net.discriminatorTrain.Params().Nodes()...); err != nil {
		return errors.Wrap(err, "Can't define gradients of discriminator loss")
	}
	return nil
}

func (net *PlantGAN) defineValidation() error {
	var err error
	net.validationGraph = gorgonia.NewGraph()
	net.discriminatorEval, err = NewDiscriminator(net.validationGraph, "discriminator_eval", nil, net.discriminatorConfig(net.cfg.ValidationBatch), net.rng)
	if err != nil {
		return err
	}
	net.validationLabels = gorgonia.NewMatrix(net.validationGraph, gorgonia.Float64, gorgonia.WithShape(net.cfg.ValidationBatch, net.cfg.NumClasses), gorgonia.WithName("validation_loss_labels"))
	// Sum reduction: chunks are padded with zero labels which add nothing to the sum
	validationLoss, err := SoftmaxCrossEntropyWithLogits(net.discriminatorEval.Logits(), net.validationLabels, LossReductionSum)
	if err != nil {
		return errors.Wrap(err, "Can't define validation loss")
	}
	gorgonia.Read(validationLoss, &net.validationLossVal)
	gorgonia.Read(net.discriminatorEval.Probs(), &net.validationProbsVal)
	return nil
}

// Close Releases tape machines
func (net *PlantGAN) Close() error {
	for _, vm := range []gorgonia.VM{net.tmGAN, net.tmGenerate, net.tmDiscriminator, net.tmValidation} {
		if vm == nil {
			continue
		}
		if err := vm.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Config Returns configuration which graphs were defined with
func (net *PlantGAN) Config() GANConfig {
	return net.cfg
}

// Rand Returns source of randomness shared by noise sampling and dropout masks
func (net *PlantGAN) Rand() *rand.Rand {
	return net.rng
}

// SampleNoise Draws n standard normal latent vectors
func (net *PlantGAN) SampleNoise(n int) *tensor.Dense {
	return NormRandDense(net.rng, n, net.cfg.NoiseSize)
}

// GeneratorParams Returns train and target parameter sets of generator
func (net *PlantGAN) GeneratorParams() (train, target ParamSet) {
	return net.generatorTrain.Params(), net.generatorTarget.Params()
}

// DiscriminatorParams Returns train and target parameter sets of discriminator
func (net *PlantGAN) DiscriminatorParams() (train, target ParamSet) {
	return net.discriminatorTrain.Params(), net.discriminatorTarget.Params()
}

// GeneratorRate Returns mutable learning rate of generator
func (net *PlantGAN) GeneratorRate() *LearningRate {
	return net.generatorOptimizer.Rate()
}

// DiscriminatorRate Returns mutable learning rate of discriminator
func (net *PlantGAN) DiscriminatorRate() *LearningRate {
	return net.discriminatorOptimizer.Rate()
}

// DiscriminatorBatchSize Returns size of combined batch: real + synthetic samples
func (net *PlantGAN) DiscriminatorBatchSize() int {
	return net.discriminatorBatchSize
}

// SyncGenerator Hard copy: generator(target) := generator(train)
func (net *PlantGAN) SyncGenerator() error {
	return Sync(net.generatorTarget.Params(), net.generatorTrain.Params())
}

// SyncDiscriminator Hard copy: discriminator(target) := discriminator(train)
func (net *PlantGAN) SyncDiscriminator() error {
	return Sync(net.discriminatorTarget.Params(), net.discriminatorTrain.Params())
}

// Generate Produces synthetic images by target generator
//
// labels - (synthetic_size, num_classes)
// noise - (synthetic_size, noise_size)
//
func (net *PlantGAN) Generate(labels, noise *tensor.Dense) (*tensor.Dense, error) {
	if err := net.generatorTarget.Feed(labels, noise); err != nil {
		return nil, err
	}
	if err := runVM(net.tmGenerate); err != nil {
		return nil, errors.Wrap(err, "Can't generate images")
	}
	return cloneValue(net.generatorTargetVal)
}

// feedGAN Binds inputs of generator training graph. Target discriminator always runs without dropout
func (net *PlantGAN) feedGAN(labels, noise *tensor.Dense) error {
	if err := net.generatorTrain.Feed(labels, noise); err != nil {
		return err
	}
	if err := gorgonia.Let(net.ganLabels, labels); err != nil {
		return errors.Wrap(err, "Can't bind generator loss labels")
	}
	return net.discriminatorTarget.FeedDropout(net.rng, 1.0)
}

// EvalGenerator Computes generator loss (and generator(train) output) without updating parameters
//
// labels - (batch_size, num_classes): both generator condition and target classes for discriminator(target)
// noise - (batch_size, noise_size)
//
func (net *PlantGAN) EvalGenerator(labels, noise *tensor.Dense) (float64, *tensor.Dense, error) {
	if err := net.feedGAN(labels, noise); err != nil {
		return 0, nil, err
	}
	if err := runVM(net.tmGAN); err != nil {
		return 0, nil, errors.Wrap(err, "Can't evaluate generator")
	}
	loss, err := scalarValue(net.generatorLossVal)
	if err != nil {
		return 0, nil, err
	}
	images, err := cloneValue(net.generatorTrainVal)
	if err != nil {
		return 0, nil, err
	}
	return loss, images, nil
}

// TrainGenerator Does single gradient descent step for generator(train) against discriminator(target). Returns loss before the step
func (net *PlantGAN) TrainGenerator(labels, noise *tensor.Dense) (float64, error) {
	if err := net.feedGAN(labels, noise); err != nil {
		return 0, err
	}
	if err := net.tmGAN.RunAll(); err != nil {
		net.tmGAN.Reset()
		return 0, errors.Wrap(err, "Can't run generator training graph")
	}
	if err := net.generatorOptimizer.Step(); err != nil {
		net.tmGAN.Reset()
		return 0, err
	}
	net.tmGAN.Reset()
	return scalarValue(net.generatorLossVal)
}

func (net *PlantGAN) feedDiscriminator(images, labels *tensor.Dense, keepProb float64) error {
	if err := gorgonia.Let(net.discriminatorTrain.Input, images); err != nil {
		return errors.Wrap(err, "Can't bind discriminator images")
	}
	if err := gorgonia.Let(net.discriminatorLabels, labels); err != nil {
		return errors.Wrap(err, "Can't bind discriminator labels")
	}
	return net.discriminatorTrain.FeedDropout(net.rng, keepProb)
}

// EvalDiscriminator Computes discriminator(train) loss and accuracy on combined batch without dropout and without updating parameters
func (net *PlantGAN) EvalDiscriminator(images, labels *tensor.Dense) (float64, float64, error) {
	if err := net.feedDiscriminator(images, labels, 1.0); err != nil {
		return 0, 0, err
	}
	if err := runVM(net.tmDiscriminator); err != nil {
		return 0, 0, errors.Wrap(err, "Can't evaluate discriminator")
	}
	loss, err := scalarValue(net.discriminatorLossVal)
	if err != nil {
		return 0, 0, err
	}
	probs, ok := net.discriminatorProbsVal.(tensor.Tensor)
	if !ok {
		return 0, 0, fmt.Errorf("Discriminator probabilities hold %T, but tensor expected", net.discriminatorProbsVal)
	}
	acc, err := Accuracy(probs, labels)
	if err != nil {
		return 0, 0, err
	}
	return loss, acc, nil
}

// TrainDiscriminator Does single gradient descent step for discriminator(train) on combined batch. Returns loss before the step
//
// keepProb - dropout keep probability for this step
//
func (net *PlantGAN) TrainDiscriminator(images, labels *tensor.Dense, keepProb float64) (float64, error) {
	if err := net.feedDiscriminator(images, labels, keepProb); err != nil {
		return 0, err
	}
	if err := net.tmDiscriminator.RunAll(); err != nil {
		net.tmDiscriminator.Reset()
		return 0, errors.Wrap(err, "Can't run discriminator training graph")
	}
	if err := net.discriminatorOptimizer.Step(); err != nil {
		net.tmDiscriminator.Reset()
		return 0, err
	}
	net.tmDiscriminator.Reset()
	return scalarValue(net.discriminatorLossVal)
}

// Validate Computes mean loss and accuracy of discriminator(train) on provided set without dropout.
// Current discriminator(train) parameters are copied into validation graph first; set is evaluated in chunks.
func (net *PlantGAN) Validate(images, labels *tensor.Dense) (float64, float64, error) {
	if net.validationGraph == nil {
		return 0, 0, fmt.Errorf("Validation graph is not defined")
	}
	n := images.Shape()[0]
	if n == 0 || labels.Shape()[0] != n {
		return 0, 0, fmt.Errorf("Validation images (%d) and labels (%d) should be non-empty and aligned", n, labels.Shape()[0])
	}
	if err := Sync(net.discriminatorEval.Params(), net.discriminatorTrain.Params()); err != nil {
		return 0, 0, err
	}
	if err := net.discriminatorEval.FeedDropout(net.rng, 1.0); err != nil {
		return 0, 0, err
	}
	chunk := net.cfg.ValidationBatch
	totalLoss := 0.0
	matched := 0.0
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		chunkImages, err := Rows(images, start, end)
		if err != nil {
			return 0, 0, err
		}
		chunkLabels, err := Rows(labels, start, end)
		if err != nil {
			return 0, 0, err
		}
		// Pad last chunk: zero images with zero labels add nothing to summed loss
		if pad := chunk - (end - start); pad > 0 {
			padShape := images.Shape().Clone()
			padShape[0] = pad
			chunkImages, err = ConcatRows(chunkImages, tensor.New(tensor.WithShape(padShape...), tensor.WithBacking(make([]float64, padShape.TotalSize()))))
			if err != nil {
				return 0, 0, err
			}
			chunkLabels, err = ConcatRows(chunkLabels, ZeroLabels(pad, net.cfg.NumClasses))
			if err != nil {
				return 0, 0, err
			}
		}
		if err = gorgonia.Let(net.discriminatorEval.Input, chunkImages); err != nil {
			return 0, 0, errors.Wrap(err, "Can't bind validation images")
		}
		if err = gorgonia.Let(net.validationLabels, chunkLabels); err != nil {
			return 0, 0, errors.Wrap(err, "Can't bind validation labels")
		}
		if err = runVM(net.tmValidation); err != nil {
			return 0, 0, errors.Wrap(err, "Can't evaluate validation chunk")
		}
		loss, err := scalarValue(net.validationLossVal)
		if err != nil {
			return 0, 0, err
		}
		totalLoss += loss
		probs, ok := net.validationProbsVal.(*tensor.Dense)
		if !ok {
			return 0, 0, fmt.Errorf("Validation probabilities hold %T, but *tensor.Dense expected", net.validationProbsVal)
		}
		realProbs, err := Rows(probs, 0, end-start)
		if err != nil {
			return 0, 0, err
		}
		realLabels, err := Rows(chunkLabels, 0, end-start)
		if err != nil {
			return 0, 0, err
		}
		acc, err := Accuracy(realProbs, realLabels)
		if err != nil {
			return 0, 0, err
		}
		matched += acc * float64(end-start)
	}
	return totalLoss / float64(n), matched / float64(n), nil
}

// Params Returns every parameter set which has to be persisted: train and target instances of both networks
func (net *PlantGAN) Params() []ParamSet {
	return []ParamSet{
		net.generatorTrain.Params(),
		net.generatorTarget.Params(),
		net.discriminatorTrain.Params(),
		net.discriminatorTarget.Params(),
	}
}

func runVM(vm gorgonia.VM) error {
	defer vm.Reset()
	return vm.RunAll()
}

func scalarValue(v gorgonia.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("Value has not been computed yet")
	}
	switch data := v.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) == 1 {
			return data[0], nil
		}
	}
	return 0, fmt.Errorf("Scalar float64 expected, but got %T of shape %v", v.Data(), v.Shape())
}

// cloneValue Copies value which has been read from graph, since its backing storage is reused by next runs
func cloneValue(v gorgonia.Value) (*tensor.Dense, error) {
	if v == nil {
		return nil, fmt.Errorf("Value has not been computed yet")
	}
	data, ok := v.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Tensor of float64 expected, but got %T", v.Data())
	}
	backing := make([]float64, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(v.Shape().Clone()...), tensor.WithBacking(backing)), nil
}
