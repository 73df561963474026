package report

import (
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func floats(v []float64) []interface{} {
	out := make([]interface{}, len(v))
	for i, f := range v {
		out[i] = f
	}
	return out
}

// SummaryStruct converts the summaries into a protobuf Struct with the best
// point and one entry per grid point
func SummaryStruct(summaries []Summary) (*structpb.Struct, error) {
	best, value, err := Best(summaries)
	if err != nil {
		return nil, err
	}
	points := make([]interface{}, len(summaries))
	for i, s := range summaries {
		points[i] = map[string]interface{}{
			"point":              s.Point.String(),
			"index":              s.Point.Index,
			"layer_type":         s.Point.LayerType.String(),
			"num_layers":         s.Point.NumLayers,
			"num_units":          s.Point.NumUnits,
			"dropout":            s.Point.Dropout,
			"recurrent_dropout":  s.Point.RecurrentDropout,
			"spatial_dropout":    s.Point.SpatialDropout,
			"optimizer":          s.Point.Optimizer,
			"batch_size":         s.Point.BatchSize,
			"folds":              s.Folds,
			"accuracy":           floats(s.Accuracy),
			"accuracy_std":       floats(s.AccuracyStd),
			"val_accuracy":       floats(s.ValAccuracy),
			"val_accuracy_std":   floats(s.ValAccuracyStd),
			"loss":               floats(s.Loss),
			"loss_std":           floats(s.LossStd),
			"val_loss":           floats(s.ValLoss),
			"val_loss_std":       floats(s.ValLossStd),
			"val_macro_f1":       floats(s.ValMacroF1),
			"val_macro_f1_std":   floats(s.ValMacroF1Std),
			"final_val_accuracy": s.FinalValAccuracy(),
		}
	}
	st, err := structpb.NewStruct(map[string]interface{}{
		"best_point":        summaries[best].Point.String(),
		"best_val_accuracy": value,
		"points":            points,
	})
	if err != nil {
		return nil, errors.Wrap(err, "building summary")
	}
	return st, nil
}

// WriteSummaryJSON writes the summaries as indented JSON to path
func WriteSummaryJSON(path string, summaries []Summary) error {
	st, err := SummaryStruct(summaries)
	if err != nil {
		return err
	}
	buf, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encoding summary")
	}
	if err := os.WriteFile(path, append(buf, '\n'), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
