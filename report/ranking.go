package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/tsawler/rnn-gridsearch/grid"
)

// Best returns the index of the summary with the highest final-epoch mean
// validation accuracy. The first one wins on ties.
func Best(summaries []Summary) (int, float64, error) {
	if len(summaries) == 0 {
		return -1, 0, errors.New("no summaries to rank")
	}
	best, value := 0, summaries[0].FinalValAccuracy()
	for i, s := range summaries[1:] {
		if v := s.FinalValAccuracy(); v > value {
			best, value = i+1, v
		}
	}
	return best, value, nil
}

// PrintRanking prints the best grid point and its score, then every point
// with its final-epoch mean validation accuracy in grid order
func PrintRanking(w io.Writer, summaries []Summary) error {
	best, value, err := Best(summaries)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Model with hightest mean validation accuracy:")
	fmt.Fprintln(w, summaries[best].Point)
	fmt.Fprintln(w, grid.FormatFloat(value))
	fmt.Fprintln(w, strings.Repeat("-", 30))
	for _, s := range summaries {
		fmt.Fprintln(w, s.Point)
		fmt.Fprintln(w, grid.FormatFloat(s.FinalValAccuracy()))
	}
	return nil
}

// PrintTable prints the summaries sorted by final-epoch mean validation
// accuracy, highest first
func PrintTable(w io.Writer, summaries []Summary) error {
	order := make([]int, len(summaries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return summaries[order[a]].FinalValAccuracy() > summaries[order[b]].FinalValAccuracy()
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPOINT\tFOLDS\tVAL_ACC\tSTD\tVAL_LOSS")
	for rank, i := range order {
		s := summaries[i]
		last := s.Epochs() - 1
		if last < 0 {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.4f\t%.4f\t%.4f\n",
			rank+1, s.Point, s.Folds, s.ValAccuracy[last], s.ValAccuracyStd[last], s.ValLoss[last])
	}
	return tw.Flush()
}
