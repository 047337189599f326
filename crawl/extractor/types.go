package extractor

import "time"

// GranuleRecord is one (container file, band namespace) line of the
// ingest stream consumed by the granule index API. The sidecar fields
// ride along when a YAML sidecar sits next to the container.
type GranuleRecord struct {
	Product            string    `json:"product,omitempty"`
	Path               string    `json:"path"`
	NameSpace          string    `json:"namespace"`
	ArrayType          string    `json:"array_type"`
	Rows               int       `json:"rows"`
	Cols               int       `json:"cols"`
	Years              []int     `json:"years"`
	NoData             float64   `json:"nodata"`
	MinX               float64   `json:"min_x"`
	MinY               float64   `json:"min_y"`
	MaxX               float64   `json:"max_x"`
	MaxY               float64   `json:"max_y"`
	Created            time.Time `json:"created,omitempty"`
	Mission            string    `json:"mission,omitempty"`
	TileID             string    `json:"tile_id,omitempty"`
	ProcessingBaseline string    `json:"processing_baseline,omitempty"`
}
