package processor

import (
	"fmt"
	"time"

	"github.com/nci/ltsky/utils"
)

// AnnualComposite is one display frame of the fitted RGB animation.
type AnnualComposite struct {
	Year      int
	TimeStamp time.Time
	Bands     []*utils.ByteRaster
}

// BuildComposites pairs the red, green and blue fitted series year by
// year and stretches each triple into display bytes. The three series
// must cover the same years in the same order.
func BuildComposites(red, green, blue []*utils.Float32Raster, years []int, vis *utils.VisParams) ([]*AnnualComposite, error) {
	if len(red) != len(years) || len(green) != len(years) || len(blue) != len(years) {
		return nil, fmt.Errorf("channel series cover %d, %d and %d years, want %d",
			len(red), len(green), len(blue), len(years))
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("empty composite year range")
	}
	for i := 1; i < len(years); i++ {
		if years[i] <= years[i-1] {
			return nil, fmt.Errorf("composite years must be strictly ascending at %d", years[i])
		}
	}

	out := make([]*AnnualComposite, len(years))
	for i, year := range years {
		bands, err := utils.ScaleVis([]*utils.Float32Raster{red[i], green[i], blue[i]}, vis)
		if err != nil {
			return nil, err
		}
		out[i] = &AnnualComposite{
			Year:      year,
			TimeStamp: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
			Bands:     bands,
		}
	}
	return out, nil
}
