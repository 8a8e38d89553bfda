package simulation

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/portfolio-risk-engine/internal/stats"
	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
)

// DefaultBands are the percentiles drawn as fan-chart bands
var DefaultBands = []float64{5, 25, 50, 75, 95}

// Bands evaluates the given percentiles and the mean across paths at every step
func Bands(paths mat.Matrix, percentiles []float64) models.Bands {
	if len(percentiles) == 0 {
		percentiles = DefaultBands
	}
	rows, cols := paths.Dims()
	out := models.Bands{
		Percentiles: append([]float64(nil), percentiles...),
		Values:      make([][]float64, len(percentiles)),
		Mean:        make([]float64, rows),
	}
	for i := range out.Values {
		out.Values[i] = make([]float64, rows)
	}

	row := make([]float64, cols)
	for t := 0; t < rows; t++ {
		mat.Row(row, t, paths)
		for i, v := range stats.Percentiles(row, percentiles) {
			out.Values[i][t] = v
		}
		out.Mean[t] = stat.Mean(row, nil)
	}
	return out
}

// TerminalReturns returns final/initial - 1 for every path
func TerminalReturns(paths mat.Matrix) []float64 {
	rows, cols := paths.Dims()
	out := make([]float64, cols)
	for j := 0; j < cols; j++ {
		out[j] = paths.At(rows-1, j)/paths.At(0, j) - 1
	}
	return out
}

// StepReturns pools the per-step simple returns of every path
func StepReturns(paths mat.Matrix) []float64 {
	rows, cols := paths.Dims()
	if rows < 2 {
		return nil
	}
	out := make([]float64, 0, (rows-1)*cols)
	for j := 0; j < cols; j++ {
		for t := 1; t < rows; t++ {
			out = append(out, paths.At(t, j)/paths.At(t-1, j)-1)
		}
	}
	return out
}

// MedianPath is the per-step median across paths
func MedianPath(paths mat.Matrix) []float64 {
	rows, cols := paths.Dims()
	out := make([]float64, rows)
	row := make([]float64, cols)
	for t := 0; t < rows; t++ {
		mat.Row(row, t, paths)
		out[t] = stats.Percentile(row, 50)
	}
	return out
}

// Summarize reduces a path matrix to its bands and terminal statistics
func Summarize(paths mat.Matrix, percentiles []float64) models.ProjectionSummary {
	rows, cols := paths.Dims()
	final := make([]float64, cols)
	mat.Row(final, rows-1, paths)

	losses := 0
	for j, v := range final {
		if v < paths.At(0, j) {
			losses++
		}
	}

	return models.ProjectionSummary{
		Steps:             rows - 1,
		NumPaths:          cols,
		Bands:             Bands(paths, percentiles),
		MeanFinalValue:    stat.Mean(final, nil),
		MedianFinalValue:  stats.Percentile(final, 50),
		ProbabilityOfLoss: float64(losses) / float64(cols),
	}
}
