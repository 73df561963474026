package report

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/tsawler/rnn-gridsearch/training"
)

const (
	figureWidth  = 15 * vg.Inch
	figureHeight = 5 * vg.Inch
)

// errorPoints is a curve with a symmetric error bar at every point
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// Curves converts a summary into accuracy and loss chart descriptions
func Curves(s Summary) (accuracy, loss training.PlotData) {
	vc := training.NewVisualizationCollector(s.Point.String())
	for e := 0; e < s.Epochs(); e++ {
		vc.RecordEpochStats(e, training.EpochStats{
			TrainLoss:        s.Loss[e],
			TrainLossStd:     s.LossStd[e],
			TrainAccuracy:    s.Accuracy[e],
			TrainAccuracyStd: s.AccuracyStd[e],
			ValidLoss:        s.ValLoss[e],
			ValidLossStd:     s.ValLossStd[e],
			ValidAccuracy:    s.ValAccuracy[e],
			ValidAccuracyStd: s.ValAccuracyStd[e],
		})
	}
	return vc.GenerateAccuracyPlot(), vc.GenerateLossPlot()
}

func newChart(pd training.PlotData) (*plot.Plot, error) {
	if err := pd.Validate(); err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = pd.Title
	p.X.Label.Text = pd.Config.XAxisLabel
	p.Y.Label.Text = pd.Config.YAxisLabel
	p.Legend.Top = true
	p.Legend.Left = true

	for i, s := range pd.Series {
		pts := errorPoints{
			XYs:     make(plotter.XYs, len(s.Data)),
			YErrors: make(plotter.YErrors, len(s.Data)),
		}
		for j, d := range s.Data {
			pts.XYs[j] = plotter.XY{X: d.X, Y: d.Y}
			pts.YErrors[j].Low = d.YErr
			pts.YErrors[j].High = d.YErr
		}

		line, err := plotter.NewLine(pts.XYs)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: series %s", pd.Title, s.Name)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)

		if pd.Config.ErrorBars {
			bars, err := plotter.NewYErrorBars(pts)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: error bars for %s", pd.Title, s.Name)
			}
			bars.LineStyle.Color = plotutil.Color(i)
			p.Add(bars)
		}
		if pd.Config.ShowLegend {
			p.Legend.Add(s.Name, line)
		}
	}
	return p, nil
}

// RenderPlot draws the accuracy and loss curves of s side by side and
// writes them as <dir>/<FileStem>_accuracyandloss.png
func RenderPlot(dir string, s Summary) (string, error) {
	if s.Epochs() == 0 {
		return "", errors.Errorf("no epochs to plot for %s", s.Point)
	}
	accData, lossData := Curves(s)
	acc, err := newChart(accData)
	if err != nil {
		return "", err
	}
	loss, err := newChart(lossData)
	if err != nil {
		return "", err
	}

	img := vgimg.New(figureWidth, figureHeight)
	dc := draw.New(img)
	plots := [][]*plot.Plot{{acc, loss}}
	canvases := plot.Align(plots, draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Inch / 4}, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}

	path := filepath.Join(dir, s.Point.FileStem()+"_accuracyandloss.png")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", path)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "writing %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "closing %s", path)
	}
	return path, nil
}
