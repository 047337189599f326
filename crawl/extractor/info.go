package extractor

import (
	"fmt"
	"os"

	"github.com/nci/ltsky/utils"
)

// ExtractGranuleInfo decodes the container header of one granule file
// and returns its index records, one per band namespace. Sidecar
// metadata is merged in when present.
func ExtractGranuleInfo(path string, product string) ([]*GranuleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Error opening granule %s: %v", path, err)
	}
	defer f.Close()

	hdr, _, err := utils.DecodeContainerHeader(f)
	if err != nil {
		return nil, fmt.Errorf("Error reading granule %s: %v", path, err)
	}

	records, err := RecordsFromHeader(path, product, hdr)
	if err != nil {
		return nil, err
	}

	if fStat, err := os.Stat(path); err == nil {
		for _, rec := range records {
			rec.Created = fStat.ModTime().UTC()
		}
	}

	sidecar, err := ExtractSidecar(path)
	if err != nil {
		return nil, err
	}
	if sidecar != nil {
		MergeSidecar(records, sidecar)
	}

	return records, nil
}

// RecordsFromHeader flattens a container header into index records.
// The spatial extent comes from the geotransform and the canvas size,
// the year span from the per-band date lists.
func RecordsFromHeader(path string, product string, hdr *utils.ContainerHeader) ([]*GranuleRecord, error) {
	if len(hdr.GeoTransform) != 6 {
		return nil, fmt.Errorf("granule %s: header carries no geotransform", path)
	}

	geot := hdr.GeoTransform
	minX := geot[0]
	maxX := geot[0] + float64(hdr.Width)*geot[1]
	maxY := geot[3]
	minY := geot[3] + float64(hdr.Height)*geot[5]
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	var records []*GranuleRecord
	for _, band := range hdr.Bands {
		years, err := yearsFromDates(band.Dates)
		if err != nil {
			return nil, fmt.Errorf("granule %s, band %s: %v", path, band.NameSpace, err)
		}
		records = append(records, &GranuleRecord{
			Product:   product,
			Path:      path,
			NameSpace: band.NameSpace,
			ArrayType: band.ArrayType,
			Rows:      band.Rows,
			Cols:      band.Cols,
			Years:     years,
			NoData:    band.NoData,
			MinX:      minX,
			MinY:      minY,
			MaxX:      maxX,
			MaxY:      maxY,
		})
	}
	return records, nil
}

func yearsFromDates(dates []string) ([]int, error) {
	var years []int
	for _, date := range dates {
		year, err := utils.YearFromDate(date)
		if err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	return years, nil
}
