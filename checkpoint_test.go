package plant_gan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareFolder(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		folder, err := PrepareFolder(root, "plants")
		if err != nil {
			t.Fatal(err)
		}
		expected := filepath.Join(root, FolderName("plants", i))
		if folder != expected {
			t.Errorf("Folder #%d should be %s, but got %s", i, expected, folder)
		}
		if info, err := os.Stat(folder); err != nil || !info.IsDir() {
			t.Errorf("Folder %s should exist", folder)
		}
	}
	if name := FolderName("seedlings", 2); name != "gan-seedlings_2" {
		t.Errorf("Folder name should be gan-seedlings_2, but got %s", name)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	src := newTestGAN(t, testGANConfig())
	ds := randomDataset(src.Rand(), 4, 8, 3)
	images, labels := combinedTestBatch(t, src, ds)
	if _, err := src.TrainDiscriminator(images, labels, 0.8); err != nil {
		t.Fatal(err)
	}
	src.GeneratorRate().Scale(0.5)

	ckpt, err := src.Checkpoint(10)
	if err != nil {
		t.Fatal(err)
	}
	path := CheckpointPath(t.TempDir(), 10)
	if filepath.Base(path) != "gan-10.gob" {
		t.Errorf("Checkpoint file should be gan-10.gob, but got %s", filepath.Base(path))
	}
	if err = SaveCheckpoint(path, ckpt); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Epoch != 10 {
		t.Errorf("Epoch should be 10, but got %d", loaded.Epoch)
	}

	dstCfg := testGANConfig()
	dstCfg.Seed = 7
	dst := newTestGAN(t, dstCfg)
	if err = dst.Restore(loaded); err != nil {
		t.Fatal(err)
	}
	srcParams, dstParams := src.Params(), dst.Params()
	for i := range srcParams {
		assertValuesEqual(t, snapshot(t, srcParams[i]), snapshot(t, dstParams[i]), srcParams[i].Name)
	}
	if dst.GeneratorRate().Get() != src.GeneratorRate().Get() {
		t.Errorf("Generator learning rate should be restored: %f != %f", dst.GeneratorRate().Get(), src.GeneratorRate().Get())
	}

	delete(loaded.Params, srcParams[0].Nodes()[0].Name())
	if err = dst.Restore(loaded); err == nil {
		t.Error("Restore from incomplete checkpoint should fail")
	}
	if _, err = LoadCheckpoint(filepath.Join(t.TempDir(), "missing.gob")); err == nil {
		t.Error("Loading missing checkpoint should fail")
	}
}
