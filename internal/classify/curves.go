package classify

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/RyanBlaney/genre-classifier/internal/experiment"
)

// AccuracyImagePath returns where Draw writes the accuracy curve for
// an experiment identity.
func AccuracyImagePath(dir string, id int64) string {
	return filepath.Join(dir, fmt.Sprintf("%dacc.png", absInt64(id)))
}

// LossImagePath returns where Draw writes the loss curve for an
// experiment identity.
func LossImagePath(dir string, id int64) string {
	return filepath.Join(dir, fmt.Sprintf("%dloss.png", absInt64(id)))
}

// Draw renders the accuracy and loss curves for a training history
// into dir, named after the experiment identity. Existing images are
// rewritten in place, so long runs show their progress between calls.
func Draw(history experiment.History, dir string, id int64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}

	if err := drawCurve("Model accuracy", "Accuracy", history.Acc, history.ValAcc, AccuracyImagePath(dir, id)); err != nil {
		return err
	}
	if err := drawCurve("Model loss", "Loss", history.Loss, history.ValLoss, LossImagePath(dir, id)); err != nil {
		return err
	}

	return nil
}

// drawCurve plots the train and test series for one metric and saves
// the image. Empty series produce an empty plot rather than an error.
func drawCurve(title, yLabel string, train, test []float64, path string) error {
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("creating plot: %w", err)
	}

	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Legend.Left = true

	trainLine, err := plotter.NewLine(curvePoints(train))
	if err != nil {
		return fmt.Errorf("building train line: %w", err)
	}
	trainLine.Color = plotutil.Color(0)
	p.Add(trainLine)
	p.Legend.Add("Train", trainLine)

	testLine, err := plotter.NewLine(curvePoints(test))
	if err != nil {
		return fmt.Errorf("building test line: %w", err)
	}
	testLine.Color = plotutil.Color(1)
	p.Add(testLine)
	p.Legend.Add("Test", testLine)

	if err := p.Save(6.4*vg.Inch, 4.8*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}

	return nil
}

func curvePoints(values []float64) plotter.XYs {
	points := make(plotter.XYs, len(values))
	for i, v := range values {
		points[i].X = float64(i)
		points[i].Y = v
	}
	return points
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
