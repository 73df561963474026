package training

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tsawler/rnn-gridsearch/layers"
)

// ProgressBar renders a single-line batch progress bar
type ProgressBar struct {
	out         io.Writer
	description string
	total       int
	current     int
	startTime   time.Time
	width       int
	showRate    bool
	showETA     bool
	metrics     map[string]float64
}

// NewProgressBarTo creates a new progress bar writing to out
func NewProgressBarTo(out io.Writer, description string, total int) *ProgressBar {
	return &ProgressBar{
		out:         out,
		description: description,
		total:       total,
		current:     0,
		startTime:   time.Now(),
		width:       30, // Character width of progress bar
		showRate:    true,
		showETA:     true,
		metrics:     make(map[string]float64),
	}
}

// Update advances the progress bar
func (pb *ProgressBar) Update(step int, metrics map[string]float64) {
	pb.current = step
	pb.metrics = metrics
	pb.render()
}

// UpdateMetrics updates metrics without advancing progress
func (pb *ProgressBar) UpdateMetrics(metrics map[string]float64) {
	for k, v := range metrics {
		pb.metrics[k] = v
	}
	pb.render()
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.out) // New line after completion
}

// render draws the progress bar
func (pb *ProgressBar) render() {
	percentage := 1.0
	if pb.total > 0 {
		percentage = float64(pb.current) / float64(pb.total)
	}
	if percentage > 1.0 {
		percentage = 1.0
	}

	filled := int(percentage * float64(pb.width))
	bar := strings.Repeat("=", filled) + strings.Repeat(".", pb.width-filled)

	elapsed := time.Since(pb.startTime)
	var eta time.Duration
	var rate float64

	if pb.current > 0 {
		rate = float64(pb.current) / elapsed.Seconds()
		if percentage > 0 {
			totalTime := time.Duration(float64(elapsed) / percentage)
			eta = totalTime - elapsed
		}
	}

	line := fmt.Sprintf("\r%s: %d/%d [%s] %3.0f%%",
		pb.description,
		pb.current,
		pb.total,
		bar,
		percentage*100,
	)

	if pb.showETA && eta > 0 {
		line += fmt.Sprintf(" - %s<%s", formatDuration(elapsed), formatDuration(eta))
	} else {
		line += fmt.Sprintf(" - %s", formatDuration(elapsed))
	}

	if pb.showRate && rate > 0 {
		line += fmt.Sprintf(" - %.2fbatch/s", rate)
	}

	// Stable metric order
	keys := make([]string, 0, len(pb.metrics))
	for key := range pb.metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		line += fmt.Sprintf(" - %s: %.4f", key, pb.metrics[key])
	}

	fmt.Fprint(pb.out, line)
}

// formatDuration formats duration as MM:SS
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// ModelArchitecturePrinter prints a model's layers with their configuration
type ModelArchitecturePrinter struct {
	out       io.Writer
	modelName string
}

// NewModelArchitecturePrinter creates a new model architecture printer
func NewModelArchitecturePrinter(out io.Writer, modelName string) *ModelArchitecturePrinter {
	if out == nil {
		out = os.Stdout
	}
	return &ModelArchitecturePrinter{
		out:       out,
		modelName: modelName,
	}
}

// PrintArchitecture prints the model architecture and parameter summary
func (p *ModelArchitecturePrinter) PrintArchitecture(modelSpec *layers.ModelSpec) {
	fmt.Fprintf(p.out, "Model Architecture:\n")
	fmt.Fprintf(p.out, "%s(\n", p.modelName)

	for i, layer := range modelSpec.Layers {
		fmt.Fprintf(p.out, "  %s\n", p.formatLayer(layer, i))
	}

	fmt.Fprintf(p.out, ")\n\n")

	fmt.Fprintf(p.out, "Total parameters: %s\n", formatParameterCount(modelSpec.TotalParameters))
	fmt.Fprintf(p.out, "Trainable parameters: %s\n", formatParameterCount(modelSpec.TrainableParameters))
	fmt.Fprintf(p.out, "Non-trainable parameters: %s\n", formatParameterCount(modelSpec.TotalParameters-modelSpec.TrainableParameters))
	fmt.Fprintf(p.out, "Params size: %s\n\n", humanize.IBytes(uint64(modelSpec.TotalParameters*8))) // float64 weights
}

// formatLayer formats a single layer for display
func (p *ModelArchitecturePrinter) formatLayer(layer layers.LayerSpec, index int) string {
	switch layer.Type {
	case layers.Embedding:
		return fmt.Sprintf("(%s): Embedding(%d, %d, trainable=%t)", layer.Name,
			layer.IntParam("vocab_size", 0), layer.IntParam("output_dim", 0), layer.Trainable)
	case layers.SpatialDropout1D:
		return fmt.Sprintf("(%s): SpatialDropout1D(p=%g)", layer.Name, layer.FloatParam("rate", 0))
	case layers.LSTM, layers.GRU, layers.Bidirectional:
		return p.formatRecurrent(layer)
	case layers.Dense:
		return fmt.Sprintf("(%s): Linear(in_features=%d, out_features=%d, bias=%t)", layer.Name,
			layer.IntParam("input_size", 0), layer.IntParam("output_size", 0), layer.BoolParam("use_bias", true))
	case layers.Softmax:
		return fmt.Sprintf("(%s): Softmax(dim=%d)", layer.Name, layer.IntParam("axis", -1))
	default:
		return fmt.Sprintf("(%d) %s: %s()", index, layer.Name, layer.Type.String())
	}
}

// formatRecurrent formats an LSTM, GRU or bidirectional wrapper
func (p *ModelArchitecturePrinter) formatRecurrent(layer layers.LayerSpec) string {
	s := fmt.Sprintf("%s(%d, %d, dropout=%g, recurrent_dropout=%g, return_sequences=%t)",
		layer.Cell(),
		layer.IntParam("input_size", 0),
		layer.IntParam("units", 0),
		layer.FloatParam("dropout", 0),
		layer.FloatParam("recurrent_dropout", 0),
		layer.BoolParam("return_sequences", false),
	)
	if layer.Type == layers.Bidirectional {
		s = "Bidirectional(" + s + ", merge_mode=concat)"
	}
	return fmt.Sprintf("(%s): %s", layer.Name, s)
}

// formatParameterCount formats parameter count with K/M suffixes
func formatParameterCount(count int64) string {
	if count >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(count)/1000000.0)
	} else if count >= 1000 {
		return fmt.Sprintf("%.1fK", float64(count)/1000.0)
	}
	return fmt.Sprintf("%d", count)
}

// TrainingSession drives per-epoch progress bars and summaries
type TrainingSession struct {
	out             io.Writer
	epochs          int
	stepsPerEpoch   int
	validationSteps int
	currentEpoch    int
	epochStart      time.Time

	// Progress tracking
	trainProgress      *ProgressBar
	validationProgress *ProgressBar

	// Metrics tracking
	trainLoss          float64
	trainAccuracy      float64
	validationLoss     float64
	validationAccuracy float64
}

// NewTrainingSession creates a new training session with progress visualization
func NewTrainingSession(out io.Writer, epochs, stepsPerEpoch, validationSteps int) *TrainingSession {
	if out == nil {
		out = os.Stdout
	}
	return &TrainingSession{
		out:             out,
		epochs:          epochs,
		stepsPerEpoch:   stepsPerEpoch,
		validationSteps: validationSteps,
	}
}

// StartEpoch begins a new epoch. epoch is 1-based.
func (ts *TrainingSession) StartEpoch(epoch int) {
	ts.currentEpoch = epoch
	ts.epochStart = time.Now()

	description := fmt.Sprintf("Epoch %d/%d", epoch, ts.epochs)
	ts.trainProgress = NewProgressBarTo(ts.out, description, ts.stepsPerEpoch)
}

// UpdateTrainingProgress updates training progress with running averages
func (ts *TrainingSession) UpdateTrainingProgress(step int, loss float64, accuracy float64) {
	ts.trainLoss = loss
	ts.trainAccuracy = accuracy

	ts.trainProgress.Update(step, map[string]float64{
		"loss": loss,
		"acc":  accuracy,
	})
}

// FinishTrainingEpoch completes the training phase of an epoch
func (ts *TrainingSession) FinishTrainingEpoch() {
	ts.trainProgress.Finish()
}

// StartValidation begins the validation phase
func (ts *TrainingSession) StartValidation() {
	if ts.validationSteps <= 0 {
		return
	}

	description := fmt.Sprintf("Epoch %d/%d (validation)", ts.currentEpoch, ts.epochs)
	ts.validationProgress = NewProgressBarTo(ts.out, description, ts.validationSteps)
}

// UpdateValidationProgress updates validation progress
func (ts *TrainingSession) UpdateValidationProgress(step int, loss float64, accuracy float64) {
	ts.validationLoss = loss
	ts.validationAccuracy = accuracy

	if ts.validationProgress != nil {
		ts.validationProgress.Update(step, map[string]float64{
			"val_loss": loss,
			"val_acc":  accuracy,
		})
	}
}

// FinishValidationEpoch completes the validation phase of an epoch
func (ts *TrainingSession) FinishValidationEpoch() {
	if ts.validationProgress != nil {
		ts.validationProgress.Finish()
	}
}

// PrintEpochSummary prints a Keras-style line for the completed epoch
func (ts *TrainingSession) PrintEpochSummary() {
	fmt.Fprintf(ts.out, "Epoch %d/%d - %s - loss: %.4f - acc: %.4f",
		ts.currentEpoch, ts.epochs, formatDuration(time.Since(ts.epochStart)), ts.trainLoss, ts.trainAccuracy)
	if ts.validationSteps > 0 {
		fmt.Fprintf(ts.out, " - val_loss: %.4f - val_acc: %.4f", ts.validationLoss, ts.validationAccuracy)
	}
	fmt.Fprintln(ts.out)
}
