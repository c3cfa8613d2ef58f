package loader

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	_ "image/png"

	plant_gan "github.com/LdDl/plant-gan"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	_ "modernc.org/sqlite"
)

const (
	SplitTraining   = "train"
	SplitValidation = "validation"
)

// PlantLoader Loads labeled plant images from sqlite database.
//
// Expected table:
//
//	CREATE TABLE plants (id INTEGER PRIMARY KEY, species TEXT NOT NULL, split TEXT NOT NULL, image BLOB NOT NULL)
//
// image - PNG of exactly ImageSize x ImageSize pixels. Channels are scaled to [0; 1]
// split - either "train" or "validation"
// species - mapped to one-hot vector by index in sorted list of unique species over whole table
//
type PlantLoader struct {
	DBName     string
	NumClasses int
	ImageSize  int

	species    []string
	training   *plant_gan.Dataset
	validation *plant_gan.Dataset
	all        *plant_gan.Dataset
}

var _ plant_gan.Loader = (*PlantLoader)(nil)

// NewPlantLoader Constructor for PlantLoader
func NewPlantLoader(dbName string, numClasses, imageSize int) *PlantLoader {
	return &PlantLoader{
		DBName:     dbName,
		NumClasses: numClasses,
		ImageSize:  imageSize,
	}
}

type plantRow struct {
	species string
	split   string
	pixels  []float64
}

// LoadData Reads whole table into memory
func (pl *PlantLoader) LoadData() error {
	db, err := sql.Open("sqlite", pl.DBName)
	if err != nil {
		return errors.Wrapf(err, "Can't open database '%s'", pl.DBName)
	}
	defer db.Close()

	rows, err := db.Query("SELECT species, split, image FROM plants ORDER BY id ASC")
	if err != nil {
		return errors.Wrap(err, "Can't query plants")
	}
	defer rows.Close()

	plants := []plantRow{}
	for rows.Next() {
		var species, split string
		var raw []byte
		if err = rows.Scan(&species, &split, &raw); err != nil {
			return errors.Wrap(err, "Can't scan plant row")
		}
		if split != SplitTraining && split != SplitValidation {
			return fmt.Errorf("Unknown split '%s' for plant #%d", split, len(plants))
		}
		pixels, err := DecodeImage(raw, pl.ImageSize)
		if err != nil {
			return errors.Wrapf(err, "Plant #%d", len(plants))
		}
		plants = append(plants, plantRow{species: species, split: split, pixels: pixels})
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "Can't iterate plants")
	}
	if len(plants) == 0 {
		return fmt.Errorf("No plants in database '%s'", pl.DBName)
	}

	names := make([]string, len(plants))
	for i := range plants {
		names[i] = plants[i].species
	}
	encoded, species, err := plant_gan.OneHotEncode(names)
	if err != nil {
		return errors.Wrap(err, "Can't encode species")
	}
	if len(species) > pl.NumClasses {
		return fmt.Errorf("Database has %d species, but only %d classes expected", len(species), pl.NumClasses)
	}
	pl.species = species

	var trainImages, trainLabels, validImages, validLabels []float64
	for i, p := range plants {
		label := make([]float64, pl.NumClasses)
		copy(label, encoded[i])
		if p.split == SplitTraining {
			trainImages = append(trainImages, p.pixels...)
			trainLabels = append(trainLabels, label...)
		} else {
			validImages = append(validImages, p.pixels...)
			validLabels = append(validLabels, label...)
		}
	}
	pl.training = pl.dataset(trainImages, trainLabels)
	pl.validation = pl.dataset(validImages, validLabels)
	if pl.training == nil {
		return fmt.Errorf("No training plants in database '%s'", pl.DBName)
	}
	memory := plant_gan.MemoryLoader{Training: pl.training, Validation: pl.validation}
	if err = memory.LoadData(); err != nil {
		return err
	}
	pl.all = &plant_gan.Dataset{Images: memory.Data(), Labels: memory.Labels()}
	return nil
}

func (pl *PlantLoader) dataset(images, labels []float64) *plant_gan.Dataset {
	n := len(labels) / pl.NumClasses
	if n == 0 {
		return nil
	}
	return &plant_gan.Dataset{
		Images: tensor.New(tensor.WithShape(n, pl.ImageSize, pl.ImageSize, 3), tensor.WithBacking(images)),
		Labels: tensor.New(tensor.WithShape(n, pl.NumClasses), tensor.WithBacking(labels)),
	}
}

// Species Returns sorted unique species. Index of species is index of its one-hot position
func (pl *PlantLoader) Species() []string {
	return pl.species
}

func (pl *PlantLoader) Data() *tensor.Dense           { return pl.all.Images }
func (pl *PlantLoader) Labels() *tensor.Dense         { return pl.all.Labels }
func (pl *PlantLoader) TrainingData() *tensor.Dense   { return pl.training.Images }
func (pl *PlantLoader) TrainingLabels() *tensor.Dense { return pl.training.Labels }

func (pl *PlantLoader) ValidationData() *tensor.Dense {
	if pl.validation == nil {
		return nil
	}
	return pl.validation.Images
}

func (pl *PlantLoader) ValidationLabels() *tensor.Dense {
	if pl.validation == nil {
		return nil
	}
	return pl.validation.Labels
}

// DecodeImage Decodes PNG of size x size pixels into HWC float64 values in [0; 1]
func DecodeImage(raw []byte, size int) ([]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "Can't decode image")
	}
	bounds := img.Bounds()
	if bounds.Dx() != size || bounds.Dy() != size {
		return nil, fmt.Errorf("Image should be %dx%d, but got %dx%d", size, size, bounds.Dx(), bounds.Dy())
	}
	pixels := make([]float64, 0, size*size*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pixels = append(pixels, float64(r)/65535.0, float64(g)/65535.0, float64(b)/65535.0)
		}
	}
	return pixels, nil
}
