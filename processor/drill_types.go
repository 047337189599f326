package processor

import (
	pb "github.com/nci/ltsky/worker/segservice"
)

// DrillRequest is one regional statistics query: a GeoJSON feature,
// a product collection and the band or registered index to reduce
// over the requested year span.
type DrillRequest struct {
	ConfigPayLoad
	Collection         string
	Geometry           string
	NameSpace          string
	StartYear, EndYear int
	DecileCount        int
}

// DrillGranule is one granule file intersecting the drill region.
// Descriptor carries the rendered per-granule drill descriptor for
// provenance logging.
type DrillGranule struct {
	ConfigPayLoad
	Path               string
	NameSpace          string
	Geometry           string
	Descriptor         string
	Years              []int
	StartYear, EndYear int
	NoData             float64
}

// DrillSamples is one granule's raw per-year samples.
type DrillSamples struct {
	NameSpace string
	Samples   []*pb.YearSamples
}

// DrillRow is the reduced regional statistics of one calendar year.
type DrillRow struct {
	Year    int       `json:"year"`
	Count   int       `json:"count"`
	Mean    float64   `json:"mean"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Deciles []float64 `json:"deciles,omitempty"`
}

// DrillOutput is the merged drill result in both serializations.
type DrillOutput struct {
	NameSpace string      `json:"namespace"`
	Rows      []*DrillRow `json:"rows"`
	CSV       string      `json:"-"`
}
