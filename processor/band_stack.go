package processor

import (
	"fmt"
	"math"

	"github.com/nci/ltsky/utils"
)

// YearStack is one year's worth of source bands for the band stack
// assembler, in stable band order.
type YearStack struct {
	Year  int
	Bands []*utils.Float32Raster
}

// BuildBandStack interleaves annual source bands into a band-major
// stack: for each source band, one uint16 output per year named
// <namespace>_<year>, ascending years within a band. A single
// unnamed source band yields bands named by the year alone. No-data
// pixels take the maskFill value; any valid value outside the uint16
// range is an error, not a clamp.
func BuildBandStack(stacks []*YearStack, maskFill uint16) ([]*utils.UInt16Raster, error) {
	if len(stacks) == 0 {
		return nil, fmt.Errorf("no annual stacks supplied")
	}

	first := stacks[0]
	if len(first.Bands) == 0 {
		return nil, fmt.Errorf("year %d carries no bands", first.Year)
	}
	for i := 1; i < len(stacks); i++ {
		if stacks[i].Year <= stacks[i-1].Year {
			return nil, fmt.Errorf("stack years must be strictly ascending at %d", stacks[i].Year)
		}
		if len(stacks[i].Bands) != len(first.Bands) {
			return nil, fmt.Errorf("year %d carries %d bands, year %d carries %d",
				stacks[i].Year, len(stacks[i].Bands), first.Year, len(first.Bands))
		}
		for b, band := range stacks[i].Bands {
			ref := first.Bands[b]
			if band.NameSpace != ref.NameSpace {
				return nil, fmt.Errorf("year %d band %d is %s, year %d has %s",
					stacks[i].Year, b, band.NameSpace, first.Year, ref.NameSpace)
			}
			if band.Width != ref.Width || band.Height != ref.Height {
				return nil, fmt.Errorf("band %s is %dx%d in year %d but %dx%d in year %d",
					band.NameSpace, band.Width, band.Height, stacks[i].Year,
					ref.Width, ref.Height, first.Year)
			}
		}
	}

	out := make([]*utils.UInt16Raster, 0, len(first.Bands)*len(stacks))
	for b := range first.Bands {
		for _, ys := range stacks {
			src := ys.Bands[b]
			name := fmt.Sprintf("%d", ys.Year)
			if src.NameSpace != "" {
				name = fmt.Sprintf("%s_%d", src.NameSpace, ys.Year)
			}

			dst := &utils.UInt16Raster{NameSpace: name,
				Data: make([]uint16, len(src.Data)),
				Height: src.Height, Width: src.Width, NoData: float64(maskFill)}

			noData := float32(src.NoData)
			for i, v := range src.Data {
				if v == noData || math.IsNaN(float64(v)) {
					dst.Data[i] = maskFill
					continue
				}
				if v < 0 || v > math.MaxUint16 {
					return nil, fmt.Errorf("band %s value %v outside uint16 range", name, v)
				}
				dst.Data[i] = uint16(v)
			}
			out = append(out, dst)
		}
	}
	return out, nil
}
