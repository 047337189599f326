package processor

import (
	"encoding/json"
	"math"
)

// ProbeSegment is one segment record of a pixel probe, in the
// canonical change field order. Underivable fields serialize as the
// no-data sentinel.
type ProbeSegment struct {
	StartYear  float32 `json:"yod"`
	EndYear    float32 `json:"endyr"`
	StartValue float32 `json:"preval"`
	EndValue   float32 `json:"postval"`
	Magnitude  float32 `json:"mag"`
	Duration   float32 `json:"dur"`
	Rate       float32 `json:"rate"`
	DSNR       float32 `json:"dsnr"`
}

type ProbeVertices struct {
	Years  []float32 `json:"yrs"`
	Source []float32 `json:"src"`
	Fitted []float32 `json:"fit"`
}

type ProbeResponse struct {
	Vertices ProbeVertices  `json:"vertices"`
	Segments []ProbeSegment `json:"segments"`
}

// BuildPixelProbe inspects one pixel of a segmentation canvas and
// returns its vertex rows with the derived segment records.
func BuildPixelProbe(seg *SegRaster, p int, rmse float32) *ProbeResponse {
	vs := seg.PixelVertices(p)

	out := &ProbeResponse{
		Vertices: ProbeVertices{Years: vs.Years, Source: vs.Source, Fitted: vs.Fitted},
		Segments: []ProbeSegment{},
	}

	for _, rec := range PixelSegmentMetrics(seg, p, rmse) {
		out.Segments = append(out.Segments, ProbeSegment{
			StartYear:  rec.StartYear,
			EndYear:    rec.EndYear,
			StartValue: rec.StartValue,
			EndValue:   rec.EndValue,
			Magnitude:  sentinelOr(rec.Magnitude),
			Duration:   rec.Duration,
			Rate:       sentinelOr(rec.Rate),
			DSNR:       sentinelOr(rec.DSNR),
		})
	}
	return out
}

// MarshalJSON keeps NaN out of the encoded output; encoding/json
// rejects it.
func (pr *ProbeResponse) MarshalJSON() ([]byte, error) {
	type alias ProbeResponse
	clean := alias(*pr)
	for i := range clean.Segments {
		s := &clean.Segments[i]
		s.Magnitude = sentinelOr(s.Magnitude)
		s.Rate = sentinelOr(s.Rate)
		s.DSNR = sentinelOr(s.DSNR)
	}
	for i, v := range clean.Vertices.Fitted {
		if math.IsNaN(float64(v)) {
			clean.Vertices.Fitted[i] = ChangeNoData
		}
	}
	return json.Marshal(clean)
}
