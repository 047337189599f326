package processor

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/nci/ltsky/utils"
)

const (
	DeltaAll  = "all"
	DeltaGain = "gain"
	DeltaLoss = "loss"
)

// ChangeOptions steer the direction filtering of segment metrics.
// IndexFlip is set for spectral indices whose natural polarity reads
// vegetation loss as a positive change. RightOriented is only
// honoured for delta "all" and re-orients every signed field so that
// vegetation gain comes out positive regardless of index polarity.
type ChangeOptions struct {
	Delta         string
	IndexFlip     bool
	RightOriented bool
}

func (opts *ChangeOptions) validate() error {
	switch opts.Delta {
	case DeltaAll, DeltaGain, DeltaLoss:
		return nil
	}
	return fmt.Errorf("delta must be one of all, gain or loss: %v", opts.Delta)
}

// ClassifySegments filters and sign-adjusts the segment records of
// one pixel. The raw magnitude sign is in the index's native
// polarity: gain means magnitude < 0, loss magnitude > 0.
// Zero-magnitude segments match neither direction. For gain and loss
// the magnitude family is reported as absolute change; the endpoint
// values are negated when the index polarity is flipped.
func ClassifySegments(recs []SegmentRecord, opts ChangeOptions) ([]SegmentRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if opts.Delta == DeltaAll {
		if !(opts.RightOriented && opts.IndexFlip) {
			return recs, nil
		}
		out := make([]SegmentRecord, len(recs))
		for i, rec := range recs {
			rec.StartValue = -rec.StartValue
			rec.EndValue = -rec.EndValue
			rec.Magnitude = -rec.Magnitude
			rec.Rate = -rec.Rate
			rec.DSNR = -rec.DSNR
			out[i] = rec
		}
		return out, nil
	}

	var out []SegmentRecord
	for _, rec := range recs {
		if !rec.Valid() {
			continue
		}
		if opts.Delta == DeltaGain && rec.Magnitude >= 0 {
			continue
		}
		if opts.Delta == DeltaLoss && rec.Magnitude <= 0 {
			continue
		}

		if opts.IndexFlip {
			rec.StartValue = -rec.StartValue
			rec.EndValue = -rec.EndValue
		}
		rec.Magnitude = float32(math.Abs(float64(rec.Magnitude)))
		rec.Rate = float32(math.Abs(float64(rec.Rate)))
		rec.DSNR = float32(math.Abs(float64(rec.DSNR)))
		out = append(out, rec)
	}
	return out, nil
}

// ChangeFieldNames is the canonical field order of the flattened
// change stack.
var ChangeFieldNames = []string{"yod", "endyr", "preval", "postval", "mag", "dur", "rate", "dsnr"}

const NumChangeFields = 8

// ChangeStack is the flattened change product: per pixel, for each of
// the 8 fields, a fixed-capacity row of MaxSegments values filled
// with the no-data sentinel beyond the pixel's segment count.
type ChangeStack struct {
	Width, Height int
	MaxSegments   int
	Data          []float32
}

func (cs *ChangeStack) pixelField(p, field int) []float32 {
	base := (p*NumChangeFields + field) * cs.MaxSegments
	return cs.Data[base : base+cs.MaxSegments]
}

func sentinelOr(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return ChangeNoData
	}
	return v
}

// BuildChangeStack runs reshape, metrics and classification over the
// whole canvas. A nil rmse raster leaves dSNR as no-data everywhere.
func BuildChangeStack(seg *SegRaster, rmse *utils.Float32Raster, maxSegments int, opts ChangeOptions) (*ChangeStack, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if maxSegments < 1 {
		return nil, fmt.Errorf("maxSegments must be >= 1, got %d", maxSegments)
	}
	if rmse != nil && (rmse.Width != seg.Width || rmse.Height != seg.Height) {
		return nil, fmt.Errorf("rmse band is %dx%d but segmentation band is %dx%d",
			rmse.Width, rmse.Height, seg.Width, seg.Height)
	}

	nPixels := seg.Width * seg.Height
	cs := &ChangeStack{Width: seg.Width, Height: seg.Height, MaxSegments: maxSegments,
		Data: make([]float32, nPixels*NumChangeFields*maxSegments)}
	for i := range cs.Data {
		cs.Data[i] = ChangeNoData
	}

	for p := 0; p < nPixels; p++ {
		var rmseVal float32
		if rmse != nil {
			rmseVal = rmse.Data[p]
			if rmseVal == float32(rmse.NoData) {
				rmseVal = 0
			}
		}

		recs, err := ClassifySegments(PixelSegmentMetrics(seg, p, rmseVal), opts)
		if err != nil {
			return nil, err
		}

		for i, rec := range recs {
			if i >= maxSegments {
				break
			}
			cs.pixelField(p, 0)[i] = sentinelOr(rec.StartYear)
			cs.pixelField(p, 1)[i] = sentinelOr(rec.EndYear)
			cs.pixelField(p, 2)[i] = sentinelOr(rec.StartValue)
			cs.pixelField(p, 3)[i] = sentinelOr(rec.EndValue)
			cs.pixelField(p, 4)[i] = sentinelOr(rec.Magnitude)
			cs.pixelField(p, 5)[i] = sentinelOr(rec.Duration)
			cs.pixelField(p, 6)[i] = sentinelOr(rec.Rate)
			cs.pixelField(p, 7)[i] = sentinelOr(rec.DSNR)
		}
	}
	return cs, nil
}

func changeFieldIndex(field string) (int, error) {
	switch strings.ToLower(field) {
	case "yod":
		return 0, nil
	case "endyr":
		return 1, nil
	case "preval":
		return 2, nil
	case "postval":
		return 3, nil
	case "mag":
		return 4, nil
	case "dur":
		return 5, nil
	case "rate":
		return 6, nil
	case "dsnr":
		return 7, nil
	}
	return -1, fmt.Errorf("unsupported change field: %v", field)
}

// FieldRaster selects one segment per pixel by the sort criterion and
// reads the requested field from it. greatest and least rank by
// absolute magnitude, newest and oldest by start year. Pixels with no
// matching segment read as the no-data sentinel.
func (cs *ChangeStack) FieldRaster(field, sortBy string) (*utils.Float32Raster, error) {
	iField, err := changeFieldIndex(field)
	if err != nil {
		return nil, err
	}

	sortBy = strings.ToLower(sortBy)
	if sortBy == "" {
		sortBy = "greatest"
	}
	switch sortBy {
	case "greatest", "least", "newest", "oldest":
	default:
		return nil, fmt.Errorf("unsupported sort criterion: %v", sortBy)
	}

	out := &utils.Float32Raster{NameSpace: field, Data: make([]float32, cs.Width*cs.Height),
		Height: cs.Height, Width: cs.Width, NoData: ChangeNoData}

	for p := 0; p < cs.Width*cs.Height; p++ {
		mags := cs.pixelField(p, 4)
		years := cs.pixelField(p, 0)

		best := -1
		var bestKey float32
		for i := 0; i < cs.MaxSegments; i++ {
			if mags[i] == ChangeNoData {
				continue
			}

			var key float32
			switch sortBy {
			case "greatest":
				key = float32(math.Abs(float64(mags[i])))
			case "least":
				key = -float32(math.Abs(float64(mags[i])))
			case "newest":
				key = years[i]
			case "oldest":
				key = -years[i]
			}

			if best < 0 || key > bestKey {
				best = i
				bestKey = key
			}
		}

		if best < 0 {
			out.Data[p] = ChangeNoData
		} else {
			out.Data[p] = cs.pixelField(p, iField)[best]
		}
	}
	return out, nil
}

// FieldPayloads serialises the stack into one little-endian payload
// per field, in canonical field order, for container encoding.
func (cs *ChangeStack) FieldPayloads() [][]byte {
	nPixels := cs.Width * cs.Height
	out := make([][]byte, NumChangeFields)
	for f := range out {
		payload := make([]byte, nPixels*cs.MaxSegments*SizeofFloat32)
		for p := 0; p < nPixels; p++ {
			row := cs.pixelField(p, f)
			for i, v := range row {
				offset := (p*cs.MaxSegments + i) * SizeofFloat32
				binary.LittleEndian.PutUint32(payload[offset:], math.Float32bits(v))
			}
		}
		out[f] = payload
	}
	return out
}
