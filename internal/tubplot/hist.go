// Package tubplot renders summaries of tub columns.
package tubplot

import (
	"errors"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DefaultBins is the histogram bin count used when none is given.
const DefaultBins = 50

// ErrNoValues is returned when a histogram is requested for an empty column.
var ErrNoValues = errors.New("tubplot: no values")

// Summary holds basic statistics of a column.
type Summary struct {
	Count  int
	Mean   float64
	Stddev float64
	Min    float64
	Max    float64
}

// Summarize computes count, mean, population standard deviation and range.
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - s.Mean) * (v - s.Mean)
	}
	s.Stddev = math.Sqrt(sq / float64(len(values)))
	return s
}

// Histogram renders a histogram of values as a 4x3 inch PNG to w.
func Histogram(w io.Writer, title string, values []float64, bins int) error {
	if len(values) == 0 {
		return ErrNoValues
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "records"

	hist, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return err
	}
	p.Add(hist)

	wt, err := p.WriterTo(4*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveHistogram writes the histogram PNG to path.
func SaveHistogram(path, title string, values []float64, bins int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Histogram(f, title, values, bins); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
