package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	plant_gan "github.com/LdDl/plant-gan"
	"github.com/LdDl/plant-gan/loader"
)

func main() {
	defaults := plant_gan.DefaultConfig()

	dbName := flag.String("dbname", defaults.DBName, "dbname to load data for training")
	gLearningRate := flag.Float64("glearning-rate", defaults.GeneratorLearningRate, "learning rate of generator")
	dLearningRate := flag.Float64("dlearning-rate", defaults.DiscriminatorLearningRate, "learning rate of discriminator")
	tau := flag.Int("tau", defaults.Tau, "train generator (and sync discriminator) every tau epoches")
	maxEpochs := flag.Int("max-epoches", defaults.MaxEpochs, "max epoches to train model")
	displayEpochs := flag.Int("display-epoches", defaults.DisplayEpochs, "epoches to evaluation")
	saveEpochs := flag.Int("save-epoches", defaults.SaveEpochs, "epoches to save model")
	summaryEpochs := flag.Int("summary-epoches", defaults.SummaryEpochs, "epoches to save summary")
	batchSize := flag.Int("batch-size", defaults.BatchSize, "batch size for training")
	saving := flag.Bool("saving", defaults.Saving, "rather to save model or not")
	keepProb := flag.Float64("keep-prob", defaults.KeepProb, "keep probability for dropout")
	decayEpochs := flag.Int("decay-epoch", defaults.DecayEpochs, "epoches to decay learning rate")
	decayRate := flag.Float64("decay-rate", defaults.DecayRate, "learning rate multiplier applied every decay-epoch epoches")
	loadAll := flag.Bool("load-all", defaults.LoadAll, "train on training and validation data")
	labelSource := flag.String("label-source", defaults.LabelSource.String(), "labels for generated images: 'batch' or 'full'")
	noiseSize := flag.Int("noise-size", defaults.NoiseSize, "size of noise vector")
	numClasses := flag.Int("num-classes", defaults.NumClasses, "number of species")
	imageSize := flag.Int("image-size", defaults.ImageSize, "height and width of images")
	seed := flag.Int64("seed", defaults.Seed, "PRNG seed")
	restore := flag.String("restore", "", "checkpoint file to restore parameters from; training continues from the epoch after the saved one")

	flag.Parse()

	source, err := plant_gan.ParseLabelSource(*labelSource)
	if err != nil {
		log.Fatalf("invalid label source: %v", err)
	}

	cfg := defaults
	cfg.DBName = *dbName
	cfg.GeneratorLearningRate = *gLearningRate
	cfg.DiscriminatorLearningRate = *dLearningRate
	cfg.Tau = *tau
	cfg.MaxEpochs = *maxEpochs
	cfg.DisplayEpochs = *displayEpochs
	cfg.SaveEpochs = *saveEpochs
	cfg.SummaryEpochs = *summaryEpochs
	cfg.BatchSize = *batchSize
	cfg.Saving = *saving
	cfg.KeepProb = *keepProb
	cfg.DecayEpochs = *decayEpochs
	cfg.DecayRate = *decayRate
	cfg.LoadAll = *loadAll
	cfg.LabelSource = source
	cfg.NoiseSize = *noiseSize
	cfg.NumClasses = *numClasses
	cfg.ImageSize = *imageSize
	cfg.Seed = *seed
	cfg.Restore = *restore

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := log.New(os.Stderr, "plant_gan ", log.LstdFlags)
	trainer, err := plant_gan.NewTrainer(cfg, loader.NewPlantLoader(cfg.DBName, cfg.NumClasses, cfg.ImageSize), logger)
	if err != nil {
		log.Fatalf("can't prepare training: %v", err)
	}
	defer trainer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trainer.Run(ctx); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}
