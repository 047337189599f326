package processor

import (
	"fmt"

	"github.com/nci/ltsky/utils"
)

// FTVRaster holds the fitted-to-vertex annual series: per pixel, one
// fitted value for every year of the collection span, pixel major.
type FTVRaster struct {
	Data          []float32
	Width, Height int
	Years         []int
	NoData        float64
}

func (f *FTVRaster) pixelYears(p int) []float32 {
	base := p * len(f.Years)
	return f.Data[base : base+len(f.Years)]
}

// yearIndex maps a calendar year to its offset in the annual block.
func (f *FTVRaster) yearIndex(year int) (int, error) {
	for i, y := range f.Years {
		if y == year {
			return i, nil
		}
	}
	return -1, fmt.Errorf("year %d outside fitted span %d..%d", year, f.Years[0], f.Years[len(f.Years)-1])
}

// BuildFittedSeries slices one band per calendar year out of the
// annual blocks, named by the 4-digit year. Both endpoints are
// inclusive and must lie within the collection span.
func BuildFittedSeries(ftv *FTVRaster, year0, year1 int) ([]*utils.Float32Raster, error) {
	if len(ftv.Years) == 0 {
		return nil, fmt.Errorf("fitted raster carries no years")
	}
	if year1 < year0 {
		return nil, fmt.Errorf("empty year range %d..%d", year0, year1)
	}
	i0, err := ftv.yearIndex(year0)
	if err != nil {
		return nil, err
	}
	i1, err := ftv.yearIndex(year1)
	if err != nil {
		return nil, err
	}

	nPixels := ftv.Width * ftv.Height
	out := make([]*utils.Float32Raster, 0, i1-i0+1)
	for i := i0; i <= i1; i++ {
		band := &utils.Float32Raster{NameSpace: fmt.Sprintf("%04d", ftv.Years[i]),
			Data: make([]float32, nPixels), Height: ftv.Height, Width: ftv.Width,
			NoData: ftv.NoData}
		for p := 0; p < nPixels; p++ {
			band.Data[p] = ftv.pixelYears(p)[i]
		}
		out = append(out, band)
	}
	return out, nil
}
