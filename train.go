package plant_gan

import (
	"context"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// StepStats Outcome of single epoch. GeneratorLoss is NaN when generator hasn't been trained on this epoch
type StepStats struct {
	Epoch             int
	Offset            int
	DiscriminatorLoss float64
	GeneratorLoss     float64
}

// Trainer Adversarial training loop over PlantGAN
type Trainer struct {
	GAN    *PlantGAN
	Config Config
	Logger *log.Logger

	trainImages *tensor.Dense
	trainLabels *tensor.Dense
	validImages *tensor.Dense
	validLabels *tensor.Dense

	folder     string
	summary    *SummaryWriter
	startEpoch int
}

// NewTrainer Loads data, defines PlantGAN and (when saving is enabled) prepares output folder and summary writer
func NewTrainer(cfg Config, loader Loader, logger *log.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid config")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "plant_gan ", log.LstdFlags)
	}
	if err := loader.LoadData(); err != nil {
		return nil, errors.Wrap(err, "Can't load data")
	}
	tr := &Trainer{
		Config: cfg,
		Logger: logger,
	}
	if cfg.LoadAll {
		tr.trainImages, tr.trainLabels = loader.Data(), loader.Labels()
	} else {
		tr.trainImages, tr.trainLabels = loader.TrainingData(), loader.TrainingLabels()
	}
	training := &Dataset{Images: tr.trainImages, Labels: tr.trainLabels}
	if err := training.Validate(cfg.ImageSize, cfg.NumClasses); err != nil {
		return nil, errors.Wrap(err, "Training set")
	}
	dataSize := training.Len()
	if dataSize <= cfg.BatchSize {
		return nil, errors.Errorf("Training set has %d samples, but it should be greater than batch size %d", dataSize, cfg.BatchSize)
	}

	validationBatch := 0
	validation := &Dataset{Images: loader.ValidationData(), Labels: loader.ValidationLabels()}
	if validation.Len() > 0 {
		if err := validation.Validate(cfg.ImageSize, cfg.NumClasses); err != nil {
			return nil, errors.Wrap(err, "Validation set")
		}
		tr.validImages, tr.validLabels = validation.Images, validation.Labels
		validationBatch = cfg.ValidationBatch
		if validation.Len() < validationBatch {
			validationBatch = validation.Len()
		}
	}

	net, err := NewPlantGAN(GANConfig{
		NumClasses:                cfg.NumClasses,
		ImageSize:                 cfg.ImageSize,
		NoiseSize:                 cfg.NoiseSize,
		BatchSize:                 cfg.BatchSize,
		SyntheticSize:             cfg.LabelSource.SyntheticSize(cfg.BatchSize, dataSize),
		ValidationBatch:           validationBatch,
		GeneratorLearningRate:     cfg.GeneratorLearningRate,
		DiscriminatorLearningRate: cfg.DiscriminatorLearningRate,
		Seed:                      cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	tr.GAN = net

	if cfg.Restore != "" {
		ckpt, err := LoadCheckpoint(cfg.Restore)
		if err != nil {
			net.Close()
			return nil, err
		}
		if err = net.Restore(ckpt); err != nil {
			net.Close()
			return nil, err
		}
		tr.startEpoch = ckpt.Epoch + 1
		logger.Printf("restored checkpoint=%s epoch=%d", cfg.Restore, ckpt.Epoch)
	}

	if cfg.Saving {
		tr.folder, err = PrepareFolder(cfg.OutputDir, cfg.Descriptor())
		if err != nil {
			net.Close()
			return nil, err
		}
		summaryRoot := cfg.SummaryDir
		if summaryRoot == "" {
			summaryRoot = os.TempDir()
		}
		tr.summary, err = NewSummaryWriter(filepath.Join(summaryRoot, filepath.Base(tr.folder)))
		if err != nil {
			net.Close()
			return nil, err
		}
		logger.Printf("folder=%s summary=%s", tr.folder, tr.summary.Dir())
	}
	logger.Printf("training_samples=%d validation_samples=%d label_source=%s synthetic_samples=%d", dataSize, validation.Len(), cfg.LabelSource, net.Config().SyntheticSize)
	return tr, nil
}

// Folder Returns output folder. Empty when saving is disabled
func (tr *Trainer) Folder() string {
	return tr.folder
}

// Summary Returns summary writer. Nil when saving is disabled
func (tr *Trainer) Summary() *SummaryWriter {
	return tr.summary
}

// StartEpoch Returns first epoch Run executes: 0 for fresh training, checkpoint epoch + 1 after restore
func (tr *Trainer) StartEpoch() int {
	return tr.startEpoch
}

// Run Executes epochs [StartEpoch; MaxEpochs). Cancellation of ctx is checked between epochs.
// Loss curves are plotted on both normal completion and cancellation
func (tr *Trainer) Run(ctx context.Context) error {
	for epoch := tr.startEpoch; epoch < tr.Config.MaxEpochs; epoch++ {
		select {
		case <-ctx.Done():
			tr.Logger.Printf("interrupted epoch=%d", epoch)
			if err := tr.plotLosses(); err != nil {
				tr.Logger.Printf("WARNING can't plot losses: %v", err)
			}
			return ctx.Err()
		default:
		}
		if _, err := tr.Step(epoch); err != nil {
			return errors.Wrapf(err, "Epoch %d", epoch)
		}
	}
	return tr.plotLosses()
}

func (tr *Trainer) plotLosses() error {
	if tr.summary == nil {
		return nil
	}
	return tr.summary.PlotLosses()
}

// Step Single epoch of adversarial training
func (tr *Trainer) Step(epoch int) (StepStats, error) {
	cfg := tr.Config
	stats := StepStats{
		Epoch:         epoch,
		GeneratorLoss: math.NaN(),
	}
	offset, err := BatchOffset(epoch, tr.trainImages.Shape()[0], cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Offset = offset
	imagesBatch, err := Rows(tr.trainImages, offset, offset+cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	labelsBatch, err := Rows(tr.trainLabels, offset, offset+cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	// Synthetic samples come from target generator which is the copy of current train generator
	if err = tr.GAN.SyncGenerator(); err != nil {
		return stats, err
	}
	synthetic, err := tr.GAN.Generate(
		cfg.LabelSource.GenerationLabels(labelsBatch, tr.trainLabels),
		tr.GAN.SampleNoise(tr.GAN.Config().SyntheticSize),
	)
	if err != nil {
		return stats, err
	}
	combinedImages, combinedLabels, err := CombineBatch(imagesBatch, labelsBatch, synthetic)
	if err != nil {
		return stats, err
	}

	if epoch%cfg.DisplayEpochs == 0 {
		if err = tr.display(epoch, labelsBatch, combinedImages, combinedLabels); err != nil {
			return stats, err
		}
	}

	stats.DiscriminatorLoss, err = tr.GAN.TrainDiscriminator(combinedImages, combinedLabels, cfg.KeepProb)
	if err != nil {
		return stats, err
	}
	tr.warnNonFinite(epoch, "dloss", stats.DiscriminatorLoss)

	var noise *tensor.Dense
	if epoch%cfg.Tau == 0 {
		if err = tr.GAN.SyncDiscriminator(); err != nil {
			return stats, err
		}
		noise = tr.GAN.SampleNoise(cfg.BatchSize)
		stats.GeneratorLoss, err = tr.GAN.TrainGenerator(labelsBatch, noise)
		if err != nil {
			return stats, err
		}
		tr.warnNonFinite(epoch, "gloss", stats.GeneratorLoss)
	}

	if cfg.Saving && epoch != 0 {
		if epoch%cfg.SaveEpochs == 0 {
			if err = tr.save(epoch); err != nil {
				return stats, err
			}
		}
		if epoch%cfg.SummaryEpochs == 0 {
			if noise == nil {
				noise = tr.GAN.SampleNoise(cfg.BatchSize)
			}
			if err = tr.writeSummary(epoch, labelsBatch, noise, combinedImages, combinedLabels); err != nil {
				return stats, err
			}
		}
	}

	if epoch != 0 && epoch%cfg.DecayEpochs == 0 && cfg.DecayRate != 1.0 {
		glr := tr.GAN.GeneratorRate().Scale(cfg.DecayRate)
		dlr := tr.GAN.DiscriminatorRate().Scale(cfg.DecayRate)
		tr.Logger.Printf("epoch=%d glearning_rate=%g dlearning_rate=%g", epoch, glr, dlr)
	}
	return stats, nil
}

func (tr *Trainer) display(epoch int, labelsBatch, combinedImages, combinedLabels *tensor.Dense) error {
	gloss, _, err := tr.GAN.EvalGenerator(labelsBatch, tr.GAN.SampleNoise(tr.Config.BatchSize))
	if err != nil {
		return err
	}
	dloss, accuracy, err := tr.GAN.EvalDiscriminator(combinedImages, combinedLabels)
	if err != nil {
		return err
	}
	tr.Logger.Printf("epoch=%d gloss=%f dloss=%f classification=%f", epoch, gloss, dloss, accuracy)
	tr.warnNonFinite(epoch, "gloss", gloss)
	tr.warnNonFinite(epoch, "dloss", dloss)
	if tr.validImages == nil {
		return nil
	}
	validLoss, validAccuracy, err := tr.GAN.Validate(tr.validImages, tr.validLabels)
	if err != nil {
		return err
	}
	tr.Logger.Printf("epoch=%d validation_dloss=%f validation_classification=%f", epoch, validLoss, validAccuracy)
	return nil
}

func (tr *Trainer) save(epoch int) error {
	ckpt, err := tr.GAN.Checkpoint(epoch)
	if err != nil {
		return err
	}
	path := CheckpointPath(tr.folder, epoch)
	if err = SaveCheckpoint(path, ckpt); err != nil {
		return err
	}
	tr.Logger.Printf("epoch=%d checkpoint=%s", epoch, path)
	return nil
}

func (tr *Trainer) writeSummary(epoch int, labelsBatch, noise, combinedImages, combinedLabels *tensor.Dense) error {
	gloss, generated, err := tr.GAN.EvalGenerator(labelsBatch, noise)
	if err != nil {
		return err
	}
	dloss, accuracy, err := tr.GAN.EvalDiscriminator(combinedImages, combinedLabels)
	if err != nil {
		return err
	}
	err = tr.summary.AddScalars(Scalars{
		Epoch:                     epoch,
		GeneratorLoss:             gloss,
		DiscriminatorLoss:         dloss,
		Accuracy:                  accuracy,
		GeneratorLearningRate:     tr.GAN.GeneratorRate().Get(),
		DiscriminatorLearningRate: tr.GAN.DiscriminatorRate().Get(),
	})
	if err != nil {
		return err
	}
	return tr.summary.AddImages(epoch, generated)
}

func (tr *Trainer) warnNonFinite(epoch int, name string, v float64) {
	if !isFinite(v) {
		tr.Logger.Printf("WARNING epoch=%d non-finite %s=%f", epoch, name, v)
	}
}

// Close Releases tape machines and summary writer
func (tr *Trainer) Close() error {
	var summaryErr error
	if tr.summary != nil {
		summaryErr = tr.summary.Close()
	}
	if err := tr.GAN.Close(); err != nil {
		return err
	}
	return summaryErr
}
