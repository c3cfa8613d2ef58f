package plant_gan

import (
	"bytes"
	"context"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testTrainerConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.NumClasses = 3
	cfg.ImageSize = 8
	cfg.NoiseSize = 4
	cfg.BatchSize = 4
	cfg.Tau = 2
	cfg.MaxEpochs = 3
	cfg.DisplayEpochs = 1
	cfg.SaveEpochs = 2
	cfg.SummaryEpochs = 1
	cfg.ValidationBatch = 4
	cfg.OutputDir = t.TempDir()
	cfg.SummaryDir = t.TempDir()
	return cfg
}

func testLoader() *MemoryLoader {
	rng := rand1337()
	return &MemoryLoader{
		Training:   randomDataset(rng, 10, 8, 3),
		Validation: randomDataset(rng, 5, 8, 3),
	}
}

func newTestTrainer(t *testing.T, cfg Config) (*Trainer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	tr, err := NewTrainer(cfg, testLoader(), log.New(&buf, "plant_gan ", 0))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, &buf
}

func TestTrainerRun(t *testing.T) {
	cfg := testTrainerConfig(t)
	cfg.Saving = true
	tr, buf := newTestTrainer(t, cfg)
	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	expectedFolder := filepath.Join(cfg.OutputDir, "gan-plants_0")
	if tr.Folder() != expectedFolder {
		t.Errorf("Output folder should be %s, but got %s", expectedFolder, tr.Folder())
	}
	if _, err := os.Stat(filepath.Join(tr.Folder(), "gan-2.gob")); err != nil {
		t.Errorf("Checkpoint of epoch 2 should exist: %v", err)
	}
	// Epoch 0 is never saved
	if _, err := os.Stat(filepath.Join(tr.Folder(), "gan-0.gob")); err == nil {
		t.Error("Checkpoint of epoch 0 should not exist")
	}
	summaryDir := filepath.Join(cfg.SummaryDir, "gan-plants_0")
	for _, name := range []string{"scalars.csv", "generated_1.png", "generated_2.png", "losses.png"} {
		if _, err := os.Stat(filepath.Join(summaryDir, name)); err != nil {
			t.Errorf("Summary file %s should exist: %v", name, err)
		}
	}
	if n := len(tr.Summary().History()); n != 2 {
		t.Errorf("Summary should have 2 rows (epochs 1 and 2), but got %d", n)
	}

	logs := buf.String()
	for _, expected := range []string{"epoch=0 gloss=", "epoch=2 validation_dloss=", "checkpoint="} {
		if !strings.Contains(logs, expected) {
			t.Errorf("Logs should contain '%s':\n%s", expected, logs)
		}
	}
}

func TestTrainerStep(t *testing.T) {
	cfg := testTrainerConfig(t)
	cfg.DecayEpochs = 2
	cfg.DecayRate = 0.5
	tr, _ := newTestTrainer(t, cfg)

	stats, err := tr.Step(0)
	if err != nil {
		t.Fatal(err)
	}
	if !isFinite(stats.DiscriminatorLoss) || !isFinite(stats.GeneratorLoss) {
		t.Errorf("Epoch 0 should train both networks, but got dloss=%f gloss=%f", stats.DiscriminatorLoss, stats.GeneratorLoss)
	}
	stats, err = tr.Step(1)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(stats.GeneratorLoss) {
		t.Errorf("Generator should not be trained on epoch 1 with tau=2, but got gloss=%f", stats.GeneratorLoss)
	}
	if stats.Offset != 1 {
		t.Errorf("Offset of epoch 1 should be 1, but got %d", stats.Offset)
	}
	if tr.GAN.GeneratorRate().Get() != cfg.GeneratorLearningRate {
		t.Errorf("Learning rate should not decay before epoch 2")
	}
	if _, err = tr.Step(2); err != nil {
		t.Fatal(err)
	}
	if !almostEqual(tr.GAN.GeneratorRate().Get(), cfg.GeneratorLearningRate*0.5, 1e-12) || !almostEqual(tr.GAN.DiscriminatorRate().Get(), cfg.DiscriminatorLearningRate*0.5, 1e-12) {
		t.Errorf("Learning rates should decay on epoch 2, but got %f and %f", tr.GAN.GeneratorRate().Get(), tr.GAN.DiscriminatorRate().Get())
	}
	// Window wraps: data size 10, batch size 4
	stats, err = tr.Step(6)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Offset != 0 {
		t.Errorf("Offset of epoch 6 should wrap to 0, but got %d", stats.Offset)
	}
}

func TestTrainerFullLabelSource(t *testing.T) {
	cfg := testTrainerConfig(t)
	cfg.LabelSource = LabelsFull
	tr, _ := newTestTrainer(t, cfg)
	if n := tr.GAN.Config().SyntheticSize; n != 10 {
		t.Fatalf("Full label source should generate 10 samples, but got %d", n)
	}
	if n := tr.GAN.DiscriminatorBatchSize(); n != 14 {
		t.Errorf("Discriminator batch should have 14 samples, but got %d", n)
	}
	if _, err := tr.Step(0); err != nil {
		t.Fatal(err)
	}
}

func TestTrainerLoadAll(t *testing.T) {
	cfg := testTrainerConfig(t)
	cfg.LoadAll = true
	tr, buf := newTestTrainer(t, cfg)
	if !strings.Contains(buf.String(), "training_samples=15") {
		t.Errorf("Training on whole data should use 15 samples:\n%s", buf.String())
	}
	if _, err := tr.Step(10); err != nil {
		t.Fatal(err)
	}
}

func TestTrainerCancel(t *testing.T) {
	tr, _ := newTestTrainer(t, testTrainerConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Run(ctx); err != context.Canceled {
		t.Errorf("Run should stop with context.Canceled, but got %v", err)
	}
}

func TestTrainerCancelPlotsLosses(t *testing.T) {
	cfg := testTrainerConfig(t)
	cfg.Saving = true
	tr, _ := newTestTrainer(t, cfg)
	// Epoch 1 writes summary row since SummaryEpochs is 1
	if _, err := tr.Step(1); err != nil {
		t.Fatal(err)
	}
	if len(tr.Summary().History()) != 1 {
		t.Fatalf("Summary should hold 1 row, but got %d", len(tr.Summary().History()))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Run(ctx); err != context.Canceled {
		t.Fatalf("Run should stop with context.Canceled, but got %v", err)
	}
	if _, err := os.Stat(filepath.Join(tr.Summary().Dir(), "losses.png")); err != nil {
		t.Errorf("Loss curves should be plotted on interruption: %v", err)
	}
}

func TestTrainerRestore(t *testing.T) {
	cfg := testTrainerConfig(t)
	src, _ := newTestTrainer(t, cfg)
	if src.StartEpoch() != 0 {
		t.Errorf("Fresh trainer should start at epoch 0, but got %d", src.StartEpoch())
	}
	if _, err := src.Step(0); err != nil {
		t.Fatal(err)
	}
	ckpt, err := src.GAN.Checkpoint(0)
	if err != nil {
		t.Fatal(err)
	}
	path := CheckpointPath(t.TempDir(), 0)
	if err = SaveCheckpoint(path, ckpt); err != nil {
		t.Fatal(err)
	}

	cfg.Restore = path
	cfg.Seed = 99
	dst, buf := newTestTrainer(t, cfg)
	srcTrain, _ := src.GAN.DiscriminatorParams()
	dstTrain, _ := dst.GAN.DiscriminatorParams()
	assertValuesEqual(t, snapshot(t, srcTrain), snapshot(t, dstTrain), "restored discriminator")

	if dst.StartEpoch() != 1 {
		t.Fatalf("Restored trainer should continue from epoch 1, but got %d", dst.StartEpoch())
	}
	if err = dst.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "epoch=0 gloss=") {
		t.Error("Restored trainer shouldn't repeat epoch 0")
	}
	for _, epoch := range []string{"epoch=1 gloss=", "epoch=2 gloss="} {
		if !strings.Contains(out, epoch) {
			t.Errorf("Log should contain %q", epoch)
		}
	}
}

func TestTrainerRejectsSmallData(t *testing.T) {
	cfg := testTrainerConfig(t)
	cfg.BatchSize = 10
	if _, err := NewTrainer(cfg, testLoader(), log.New(&bytes.Buffer{}, "", 0)); err == nil {
		t.Error("Batch size equal to training size should be rejected")
	}
}

func TestTrainerStepPlantSizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 4
	cfg.MaxEpochs = 1
	cfg.OutputDir = t.TempDir()
	rng := rand1337()
	loader := &MemoryLoader{Training: randomDataset(rng, 6, cfg.ImageSize, cfg.NumClasses)}
	tr, err := NewTrainer(cfg, loader, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	gTrain, gTarget := tr.GAN.GeneratorParams()
	dTrain, dTarget := tr.GAN.DiscriminatorParams()
	gCount, dCount := gTrain.Size(), dTrain.Size()

	stats, err := tr.Step(0)
	if err != nil {
		t.Fatal(err)
	}
	if !isFinite(stats.DiscriminatorLoss) || !isFinite(stats.GeneratorLoss) {
		t.Errorf("Losses should be finite, but got dloss=%f gloss=%f", stats.DiscriminatorLoss, stats.GeneratorLoss)
	}
	if err = CheckPaired(gTrain, gTarget); err != nil {
		t.Error(err)
	}
	if err = CheckPaired(dTrain, dTarget); err != nil {
		t.Error(err)
	}
	if gTrain.Size() != gCount || dTrain.Size() != dCount {
		t.Error("Parameter counts should not change during training")
	}
}
