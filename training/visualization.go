package training

import (
	"fmt"
)

// PlotType represents different types of plots that can be generated
type PlotType string

const (
	AccuracyCurves PlotType = "accuracy_curves"
	LossCurves     PlotType = "loss_curves"
)

// PlotData describes one chart independently of the rendering backend
type PlotData struct {
	PlotType  PlotType
	Title     string
	ModelName string

	Series []SeriesData
	Config PlotConfig
}

// SeriesData represents a single data series in a plot
type SeriesData struct {
	Name string
	Data []DataPoint
}

// DataPoint is one x/y sample with an optional symmetric error bar
type DataPoint struct {
	X    float64
	Y    float64
	YErr float64
}

// PlotConfig contains plot-specific configuration
type PlotConfig struct {
	XAxisLabel string
	YAxisLabel string
	ShowLegend bool
	ErrorBars  bool
}

// EpochStats is the value and spread of every tracked series at one epoch
type EpochStats struct {
	TrainLoss, TrainLossStd         float64
	TrainAccuracy, TrainAccuracyStd float64
	ValidLoss, ValidLossStd         float64
	ValidAccuracy, ValidAccuracyStd float64
}

// VisualizationCollector accumulates epoch-level curves for plotting
type VisualizationCollector struct {
	modelName string

	epochs []int
	stats  []EpochStats
}

// NewVisualizationCollector creates a new visualization collector
func NewVisualizationCollector(modelName string) *VisualizationCollector {
	return &VisualizationCollector{
		modelName: modelName,
		epochs:    make([]int, 0),
		stats:     make([]EpochStats, 0),
	}
}

// RecordEpochStats records aggregated metrics with their spread.
// epoch is 0-based, matching the x axis of the rendered curves.
func (vc *VisualizationCollector) RecordEpochStats(epoch int, stats EpochStats) {
	vc.epochs = append(vc.epochs, epoch)
	vc.stats = append(vc.stats, stats)
}

func (vc *VisualizationCollector) curve(name string, value, spread func(EpochStats) float64) SeriesData {
	s := SeriesData{Name: name, Data: make([]DataPoint, len(vc.stats))}
	for i, st := range vc.stats {
		s.Data[i] = DataPoint{X: float64(vc.epochs[i]), Y: value(st), YErr: spread(st)}
	}
	return s
}

// GenerateAccuracyPlot returns train and validation accuracy against epoch
func (vc *VisualizationCollector) GenerateAccuracyPlot() PlotData {
	return PlotData{
		PlotType:  AccuracyCurves,
		Title:     "Model Accuracy",
		ModelName: vc.modelName,
		Series: []SeriesData{
			vc.curve("Train",
				func(s EpochStats) float64 { return s.TrainAccuracy },
				func(s EpochStats) float64 { return s.TrainAccuracyStd }),
			vc.curve("Val",
				func(s EpochStats) float64 { return s.ValidAccuracy },
				func(s EpochStats) float64 { return s.ValidAccuracyStd }),
		},
		Config: PlotConfig{
			XAxisLabel: "Epoch",
			YAxisLabel: "Accuracy",
			ShowLegend: true,
			ErrorBars:  true,
		},
	}
}

// GenerateLossPlot returns train and validation loss against epoch
func (vc *VisualizationCollector) GenerateLossPlot() PlotData {
	return PlotData{
		PlotType:  LossCurves,
		Title:     "Model Loss",
		ModelName: vc.modelName,
		Series: []SeriesData{
			vc.curve("Train",
				func(s EpochStats) float64 { return s.TrainLoss },
				func(s EpochStats) float64 { return s.TrainLossStd }),
			vc.curve("Val",
				func(s EpochStats) float64 { return s.ValidLoss },
				func(s EpochStats) float64 { return s.ValidLossStd }),
		},
		Config: PlotConfig{
			XAxisLabel: "Epoch",
			YAxisLabel: "Loss",
			ShowLegend: true,
			ErrorBars:  true,
		},
	}
}

// Validate checks that every series is non-empty and finite-length aligned
func (pd PlotData) Validate() error {
	if len(pd.Series) == 0 {
		return fmt.Errorf("plot %q has no series", pd.Title)
	}
	n := len(pd.Series[0].Data)
	for _, s := range pd.Series {
		if len(s.Data) == 0 {
			return fmt.Errorf("plot %q: series %q is empty", pd.Title, s.Name)
		}
		if len(s.Data) != n {
			return fmt.Errorf("plot %q: series %q has %d points, expected %d", pd.Title, s.Name, len(s.Data), n)
		}
	}
	return nil
}
