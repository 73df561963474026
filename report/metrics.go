package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

const metricsRule = "-------------------------"

// WriteMetrics writes one block per summary: the point between two rules,
// then each labelled series with one %.4f value per line
func WriteMetrics(w io.Writer, summaries []Summary) error {
	bw := bufio.NewWriter(w)
	for _, s := range summaries {
		fmt.Fprintln(bw, metricsRule)
		fmt.Fprintln(bw, s.Point.String())
		fmt.Fprintln(bw, metricsRule)
		blocks := []struct {
			label  string
			values []float64
		}{
			{"accuracy", s.Accuracy},
			{"std", s.AccuracyStd},
			{"validation accuracy", s.ValAccuracy},
			{"std", s.ValAccuracyStd},
			{"loss", s.Loss},
			{"std", s.LossStd},
			{"validation loss", s.ValLoss},
			{"std", s.ValLossStd},
		}
		for _, b := range blocks {
			fmt.Fprintln(bw, b.label)
			for _, v := range b.values {
				fmt.Fprintf(bw, "%.4f\n", v)
			}
		}
	}
	return bw.Flush()
}

// AppendMetricsFile appends the metrics blocks to path, creating it if needed
func AppendMetricsFile(path string, summaries []Summary) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening metrics file %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing metrics file %s", path)
		}
	}()
	if err := WriteMetrics(f, summaries); err != nil {
		return errors.Wrapf(err, "writing metrics file %s", path)
	}
	return nil
}
