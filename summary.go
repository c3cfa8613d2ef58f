package plant_gan

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// Scalars Values which are recorded per summary step
type Scalars struct {
	Epoch                     int
	GeneratorLoss             float64
	DiscriminatorLoss         float64
	Accuracy                  float64
	GeneratorLearningRate     float64
	DiscriminatorLearningRate float64
}

var scalarsHeader = []string{"epoch", "generator_loss", "discriminator_loss", "accuracy", "generator_learning_rate", "discriminator_learning_rate"}

func (s Scalars) record() []string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		strconv.Itoa(s.Epoch),
		format(s.GeneratorLoss),
		format(s.DiscriminatorLoss),
		format(s.Accuracy),
		format(s.GeneratorLearningRate),
		format(s.DiscriminatorLearningRate),
	}
}

// SummaryWriter Writes summaries of training run into directory:
//
// scalars.csv - one row per summary step
// generated_<epoch>.png - generated images laid out in a row
// losses.png - generator and discriminator loss curves
//
type SummaryWriter struct {
	dir     string
	file    *os.File
	csv     *csv.Writer
	history []Scalars
}

// NewSummaryWriter Creates directory (if needed) and scalars file
func NewSummaryWriter(dir string) (*SummaryWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "Can't create summary folder '%s'", dir)
	}
	f, err := os.Create(filepath.Join(dir, "scalars.csv"))
	if err != nil {
		return nil, errors.Wrap(err, "Can't create scalars file")
	}
	w := csv.NewWriter(f)
	if err = w.Write(scalarsHeader); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "Can't write scalars header")
	}
	w.Flush()
	return &SummaryWriter{
		dir:  dir,
		file: f,
		csv:  w,
	}, nil
}

// Dir Returns summary directory
func (sw *SummaryWriter) Dir() string {
	return sw.dir
}

// History Returns every recorded scalars row
func (sw *SummaryWriter) History() []Scalars {
	return sw.history
}

// AddScalars Appends row to scalars.csv
func (sw *SummaryWriter) AddScalars(s Scalars) error {
	if err := sw.csv.Write(s.record()); err != nil {
		return errors.Wrap(err, "Can't write scalars")
	}
	sw.csv.Flush()
	if err := sw.csv.Error(); err != nil {
		return errors.Wrap(err, "Can't flush scalars")
	}
	sw.history = append(sw.history, s)
	return nil
}

// AddImages Writes NHWC batch of images (values are clamped to [0; 1]) as single PNG strip generated_<epoch>.png
func (sw *SummaryWriter) AddImages(epoch int, images *tensor.Dense) error {
	shp := images.Shape()
	if len(shp) != 4 || shp[3] != 3 {
		return fmt.Errorf("Images should be (batch, height, width, 3), but got %v", shp)
	}
	data, ok := images.Data().([]float64)
	if !ok {
		return fmt.Errorf("Images hold %T, but []float64 expected", images.Data())
	}
	n, h, w := shp[0], shp[1], shp[2]
	img := image.NewRGBA(image.Rect(0, 0, n*w, h))
	for b := 0; b < n; b++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := ((b*h+y)*w + x) * 3
				img.Set(b*w+x, y, color.RGBA{
					R: toByte(data[idx]),
					G: toByte(data[idx+1]),
					B: toByte(data[idx+2]),
					A: 255,
				})
			}
		}
	}
	fname := filepath.Join(sw.dir, fmt.Sprintf("generated_%d.png", epoch))
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrapf(err, "Can't create image file '%s'", fname)
	}
	defer f.Close()
	if err = png.Encode(f, img); err != nil {
		return errors.Wrapf(err, "Can't encode image '%s'", fname)
	}
	return nil
}

// PlotLosses Draws loss curves of recorded history into losses.png
func (sw *SummaryWriter) PlotLosses() error {
	if len(sw.history) == 0 {
		return nil
	}
	gData := make(plotter.XYs, 0, len(sw.history))
	dData := make(plotter.XYs, 0, len(sw.history))
	for _, s := range sw.history {
		// Non-finite values can't be drawn
		if isFinite(s.GeneratorLoss) {
			gData = append(gData, plotter.XY{X: float64(s.Epoch), Y: s.GeneratorLoss})
		}
		if isFinite(s.DiscriminatorLoss) {
			dData = append(dData, plotter.XY{X: float64(s.Epoch), Y: s.DiscriminatorLoss})
		}
	}
	p := plot.New()
	p.Title.Text = "Losses"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	if len(gData) > 0 {
		gLine, err := plotter.NewLine(gData)
		if err != nil {
			return errors.Wrap(err, "Can't init generator loss line")
		}
		gLine.Color = color.RGBA{R: 255, B: 128, A: 255}
		p.Add(gLine)
		p.Legend.Add("generator", gLine)
	}
	if len(dData) > 0 {
		dLine, err := plotter.NewLine(dData)
		if err != nil {
			return errors.Wrap(err, "Can't init discriminator loss line")
		}
		dLine.Color = color.RGBA{G: 128, B: 255, A: 255}
		p.Add(dLine)
		p.Legend.Add("discriminator", dLine)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(sw.dir, "losses.png")); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// Close Flushes pending data and closes scalars file
func (sw *SummaryWriter) Close() error {
	sw.csv.Flush()
	if err := sw.csv.Error(); err != nil {
		sw.file.Close()
		return err
	}
	return sw.file.Close()
}

func toByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
