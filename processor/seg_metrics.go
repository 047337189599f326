package processor

import (
	"math"
)

// SegmentRecord holds the derived metrics of one segment of one
// pixel. Fields that cannot be derived (non-positive duration, zero
// rmse) are NaN and substituted with the no-data sentinel when the
// record is flattened into an output stack.
type SegmentRecord struct {
	StartYear  float32
	EndYear    float32
	StartValue float32
	EndValue   float32
	Magnitude  float32
	Duration   float32
	Rate       float32
	DSNR       float32
}

var segNaN = float32(math.NaN())

// Valid reports whether the segment carries usable change metrics.
// A non-positive duration is a fitter output violation and poisons
// the whole record rather than aborting the canvas.
func (rec *SegmentRecord) Valid() bool {
	return rec.Duration > 0 && !math.IsNaN(float64(rec.Magnitude))
}

// ComputeSegmentMetrics derives per-segment metrics from the left and
// right vertex views of one pixel. Values come from the fitted row;
// the observed row only feeds the vertex stack product. rmse is the
// pixel's model residual error.
func ComputeSegmentMetrics(left, right VertexSlice, rmse float32) []SegmentRecord {
	if left.Len() == 0 {
		return nil
	}

	recs := make([]SegmentRecord, left.Len())
	for i := range recs {
		rec := &recs[i]
		rec.StartYear = left.Years[i]
		rec.EndYear = right.Years[i]
		rec.StartValue = left.Fitted[i]
		rec.EndValue = right.Fitted[i]
		rec.Duration = rec.EndYear - rec.StartYear

		if rec.Duration <= 0 {
			rec.Magnitude = segNaN
			rec.Rate = segNaN
			rec.DSNR = segNaN
			continue
		}

		rec.Magnitude = rec.EndValue - rec.StartValue
		rec.Rate = rec.Magnitude / rec.Duration

		if rmse == 0 || math.IsNaN(float64(rmse)) {
			rec.DSNR = segNaN
		} else {
			rec.DSNR = rec.Magnitude / rmse
		}
	}
	return recs
}

// PixelSegmentMetrics is the per-pixel composition of the reshape and
// metrics steps.
func PixelSegmentMetrics(seg *SegRaster, p int, rmse float32) []SegmentRecord {
	vertices := seg.PixelVertices(p)
	if vertices.SegmentCount() == 0 {
		return nil
	}
	left, right := vertices.LeftRight()
	return ComputeSegmentMetrics(left, right, rmse)
}
