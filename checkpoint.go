package plant_gan

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Checkpoint Persisted state of PlantGAN: parameters of every network instance keyed by node name and current learning rates
type Checkpoint struct {
	Epoch                     int
	GeneratorLearningRate     float64
	DiscriminatorLearningRate float64
	Params                    map[string][]float64
}

// FolderName Returns name of output folder for given descriptor and index: gan-<descriptor>_<index>
func FolderName(descriptor string, index int) string {
	return fmt.Sprintf("gan-%s_%d", descriptor, index)
}

// PrepareFolder Creates output folder with first unused index under root directory and returns its path
func PrepareFolder(root, descriptor string) (string, error) {
	index := 0
	folder := filepath.Join(root, FolderName(descriptor, index))
	for {
		_, err := os.Stat(folder)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, "Can't check folder '%s'", folder)
		}
		index++
		folder = filepath.Join(root, FolderName(descriptor, index))
	}
	if err := os.Mkdir(folder, 0755); err != nil {
		return "", errors.Wrapf(err, "Can't create folder '%s'", folder)
	}
	return folder, nil
}

// CheckpointPath Returns path of checkpoint file for given epoch: <folder>/gan-<epoch>.gob
func CheckpointPath(folder string, epoch int) string {
	return filepath.Join(folder, fmt.Sprintf("gan-%d.gob", epoch))
}

// Checkpoint Captures current state of every parameter set and both learning rates
func (net *PlantGAN) Checkpoint(epoch int) (*Checkpoint, error) {
	ckpt := &Checkpoint{
		Epoch:                     epoch,
		GeneratorLearningRate:     net.GeneratorRate().Get(),
		DiscriminatorLearningRate: net.DiscriminatorRate().Get(),
		Params:                    make(map[string][]float64),
	}
	for _, ps := range net.Params() {
		values, err := ps.Values()
		if err != nil {
			return nil, err
		}
		for name, v := range values {
			ckpt.Params[name] = v
		}
	}
	return ckpt, nil
}

// Restore Copies parameters and learning rates from checkpoint into networks
func (net *PlantGAN) Restore(ckpt *Checkpoint) error {
	if ckpt == nil {
		return fmt.Errorf("Checkpoint is nil")
	}
	for _, ps := range net.Params() {
		if err := ps.SetValues(ckpt.Params); err != nil {
			return errors.Wrap(err, "Can't restore parameters")
		}
	}
	if ckpt.GeneratorLearningRate > 0 {
		net.GeneratorRate().Set(ckpt.GeneratorLearningRate)
	}
	if ckpt.DiscriminatorLearningRate > 0 {
		net.DiscriminatorRate().Set(ckpt.DiscriminatorLearningRate)
	}
	return nil
}

// SaveCheckpoint Writes checkpoint to file
func SaveCheckpoint(path string, ckpt *Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create checkpoint file '%s'", path)
	}
	defer f.Close()
	if err = gob.NewEncoder(f).Encode(ckpt); err != nil {
		return errors.Wrapf(err, "Can't encode checkpoint '%s'", path)
	}
	return f.Sync()
}

// LoadCheckpoint Reads checkpoint from file
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open checkpoint file '%s'", path)
	}
	defer f.Close()
	var ckpt Checkpoint
	if err = gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, errors.Wrapf(err, "Can't decode checkpoint '%s'", path)
	}
	return &ckpt, nil
}
