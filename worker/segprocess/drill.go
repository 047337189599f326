package segprocess

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"

	geo "github.com/nci/geometry"
	"github.com/nci/ltsky/utils"
	pb "github.com/nci/ltsky/worker/segservice"
)

// DrillGranule samples an annual band under a GeoJSON region and
// returns the raw per-year samples. The merger pools samples across
// granules before reducing them, so no statistics happen here.
func DrillGranule(in *pb.SegRPCRequest) *pb.Result {
	var feat geo.Feature
	err := json.Unmarshal([]byte(in.Geometry), &feat)
	if err != nil {
		msg := fmt.Sprintf("Problem unmarshalling geometry %v", in.Geometry)
		log.Println(msg)
		return &pb.Result{Error: msg}
	}
	geomGeoJSON, err := json.Marshal(feat.Geometry)
	if err != nil {
		msg := fmt.Sprintf("Problem marshaling GeoJSON geometry: %v", err)
		log.Println(msg)
		return &pb.Result{Error: msg}
	}
	region, err := parseRegion(geomGeoJSON)
	if err != nil {
		return &pb.Result{Error: err.Error()}
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return &pb.Result{Error: fmt.Sprintf("Error opening granule %s: %v", in.Path, err)}
	}
	defer f.Close()

	hdr, payloadStart, err := utils.DecodeContainerHeader(f)
	if err != nil {
		return &pb.Result{Error: fmt.Sprintf("Error reading granule %s: %v", in.Path, err)}
	}
	if len(hdr.GeoTransform) != 6 || hdr.GeoTransform[1] == 0 || hdr.GeoTransform[5] == 0 {
		return &pb.Result{Error: fmt.Sprintf("granule %s: missing geotransform", in.Path)}
	}
	region.gt = hdr.GeoTransform

	var band *utils.ContainerBand
	var values []float32
	if len(in.Expression) == 0 {
		band, err = hdr.FindBand(in.NameSpace)
		if err != nil {
			return &pb.Result{Error: err.Error()}
		}
		values, err = readBandFloat32(f, hdr, band, payloadStart)
	} else {
		band, values, err = evalExpression(f, hdr, payloadStart, in.Expression, in.VarRef)
	}
	if err != nil {
		return &pb.Result{Error: err.Error()}
	}
	if band.Rows != 1 {
		return &pb.Result{Error: fmt.Sprintf("band %s is not an annual band", band.NameSpace)}
	}

	years := make([]int32, 0, len(band.Dates))
	for _, date := range band.Dates {
		year, err := utils.YearFromDate(date)
		if err != nil {
			return &pb.Result{Error: fmt.Sprintf("granule %s band %s: %v", in.Path, band.NameSpace, err)}
		}
		years = append(years, int32(year))
	}
	if len(years) != band.Cols {
		return &pb.Result{Error: fmt.Sprintf("band %s has %d dates for %d cols", band.NameSpace, len(years), band.Cols)}
	}

	// the request's year span scopes the output; a granule band may
	// carry years on either side of it
	year0, year1 := int32(math.MinInt32), int32(math.MaxInt32)
	if len(in.Years) == 2 && in.Years[0] <= in.Years[1] {
		year0, year1 = in.Years[0], in.Years[1]
	}

	samples := make([]*pb.YearSamples, 0, len(years))
	sampleIdx := make([]int, len(years))
	for i, year := range years {
		if year < year0 || year > year1 {
			sampleIdx[i] = -1
			continue
		}
		sampleIdx[i] = len(samples)
		samples = append(samples, &pb.YearSamples{Year: year})
	}

	gt := hdr.GeoTransform
	noData := float32(band.NoData)
	stride := band.PixelStride()
	for y := 0; y < hdr.Height; y++ {
		gy := gt[3] + (float64(y)+0.5)*gt[5]
		for x := 0; x < hdr.Width; x++ {
			gx := gt[0] + (float64(x)+0.5)*gt[1]
			if !region.contains(gx, gy) {
				continue
			}

			base := (y*hdr.Width + x) * stride
			for i := range years {
				si := sampleIdx[i]
				if si < 0 {
					continue
				}
				v := values[base+i]
				if v == noData || math.IsNaN(float64(v)) {
					continue
				}
				samples[si].Values = append(samples[si].Values, float64(v))
			}
		}
	}

	return &pb.Result{Samples: samples, Error: "OK"}
}

// drillRegion is the coordinate view of the request geometry. Rings
// follow GeoJSON nesting, a point degenerates to a zero-area region
// containing only its own location's pixel.
type drillRegion struct {
	polygons [][][][]float64
	point    []float64
	gt       []float64
}

func parseRegion(geomGeoJSON []byte) (*drillRegion, error) {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(geomGeoJSON, &raw); err != nil {
		return nil, fmt.Errorf("Problem parsing geometry: %v", err)
	}

	region := &drillRegion{}
	switch raw.Type {
	case "Point":
		if err := json.Unmarshal(raw.Coordinates, &region.point); err != nil || len(region.point) < 2 {
			return nil, fmt.Errorf("Problem parsing point coordinates: %v", err)
		}
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(raw.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("Problem parsing polygon coordinates: %v", err)
		}
		region.polygons = [][][][]float64{rings}
	case "MultiPolygon":
		if err := json.Unmarshal(raw.Coordinates, &region.polygons); err != nil {
			return nil, fmt.Errorf("Problem parsing multipolygon coordinates: %v", err)
		}
	default:
		return nil, fmt.Errorf("Unsupported geometry type: %s", raw.Type)
	}
	return region, nil
}

func (r *drillRegion) contains(x, y float64) bool {
	if r.point != nil {
		// a point matches the pixel whose centre lies within half a
		// cell of it
		return math.Abs(x-r.point[0]) <= math.Abs(pointTolX(r)) && math.Abs(y-r.point[1]) <= math.Abs(pointTolY(r))
	}

	for _, rings := range r.polygons {
		if len(rings) == 0 {
			continue
		}
		if !ringContains(rings[0], x, y) {
			continue
		}
		inHole := false
		for _, hole := range rings[1:] {
			if ringContains(hole, x, y) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

func pointTolX(r *drillRegion) float64 {
	if len(r.gt) == 6 {
		return r.gt[1] / 2
	}
	return 0.5
}

func pointTolY(r *drillRegion) float64 {
	if len(r.gt) == 6 {
		return r.gt[5] / 2
	}
	return 0.5
}

// ringContains is the even-odd ray casting test. Degenerate rings
// contain nothing.
func ringContains(ring [][]float64, x, y float64) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if len(ring[i]) < 2 || len(ring[j]) < 2 {
			return false
		}
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
