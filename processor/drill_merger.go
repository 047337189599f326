package processor

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// DrillMerger pools raw samples per calendar year across granules and
// reduces each year to regional statistics once every granule has
// reported.
type DrillMerger struct {
	Context context.Context
	In      chan *DrillSamples
	Out     chan *DrillOutput
	Error   chan error
}

func NewDrillMerger(ctx context.Context, errChan chan error) *DrillMerger {
	return &DrillMerger{
		Context: ctx,
		In:      make(chan *DrillSamples, 100),
		Out:     make(chan *DrillOutput),
		Error:   errChan,
	}
}

func (dm *DrillMerger) Run(nameSpace string, decileCount int, verbose bool) {
	if verbose {
		defer log.Printf("drill merger done")
	}
	defer close(dm.Out)

	results := make(map[int][]float64)
	for drillRes := range dm.In {
		for _, ys := range drillRes.Samples {
			year := int(ys.Year)
			results[year] = append(results[year], ys.Values...)
		}
	}

	var years []int
	for year := range results {
		years = append(years, year)
	}
	sort.Ints(years)

	out := &DrillOutput{NameSpace: nameSpace}
	for _, year := range years {
		row := ReduceYear(results[year], decileCount)
		if row == nil {
			continue
		}
		row.Year = year
		out.Rows = append(out.Rows, row)
	}
	out.CSV = drillCSV(out.Rows, decileCount)

	if dm.checkCancellation() {
		return
	}
	dm.Out <- out
}

// ReduceYear reduces one year's pooled samples. decileCount is the
// number of equal-probability bins, giving decileCount-1 cut points.
// Returns nil when no samples survive the NaN filter.
func ReduceYear(values []float64, decileCount int) *DrillRow {
	var samples []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			samples = append(samples, v)
		}
	}
	if len(samples) == 0 {
		return nil
	}

	sort.Float64s(samples)
	row := &DrillRow{
		Count: len(samples),
		Mean:  stat.Mean(samples, nil),
		Min:   samples[0],
		Max:   samples[len(samples)-1],
	}

	for ic := 1; ic < decileCount; ic++ {
		p := float64(ic) / float64(decileCount)
		row.Deciles = append(row.Deciles, stat.Quantile(p, stat.Empirical, samples, nil))
	}
	return row
}

func drillCSV(rows []*DrillRow, decileCount int) string {
	var csv strings.Builder
	fmt.Fprint(&csv, "year,count,mean,min,max")
	for ic := 1; ic < decileCount; ic++ {
		fmt.Fprintf(&csv, ",decile_%d", ic)
	}
	fmt.Fprint(&csv, "\n")

	for _, row := range rows {
		fmt.Fprintf(&csv, "%d,%d,%f,%f,%f", row.Year, row.Count, row.Mean, row.Min, row.Max)
		for _, d := range row.Deciles {
			fmt.Fprintf(&csv, ",%f", d)
		}
		fmt.Fprint(&csv, "\n")
	}
	return csv.String()
}

func (dm *DrillMerger) sendError(err error) {
	select {
	case dm.Error <- err:
	default:
	}
}

func (dm *DrillMerger) checkCancellation() bool {
	select {
	case <-dm.Context.Done():
		dm.sendError(fmt.Errorf("drill merger context has been cancelled: %v", dm.Context.Err()))
		return true
	default:
		return false
	}
}
