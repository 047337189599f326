package processor

import (
	"fmt"
	"unsafe"

	"github.com/nci/ltsky/metrics"
	"github.com/nci/ltsky/utils"
)

const SizeofUint16 = 2
const SizeofInt16 = 2
const SizeofFloat32 = 4

// ISOFormat is the string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

// ChangeNoData is the sentinel substituted for absent or invalid
// per-segment entries in all change products.
const ChangeNoData = -9999.0

type ConfigPayLoad struct {
	NameSpaces       []string
	BandExpr         *utils.BandExpressions
	ScaleParams      utils.ScaleParams
	Palette          *utils.Palette
	MaxSegments      int
	FitParams        map[string]string
	GrpcConcLimit    int
	MetricsCollector *metrics.MetricsCollector
}

// SegTileRequest asks the serving pipeline for a canvas of granule
// bands covering bbox at the requested size, for the year span.
type SegTileRequest struct {
	ConfigPayLoad
	Collection         string
	BBox               []float64
	Height, Width      int
	StartYear, EndYear int
}

// SegGranule is one (granule container, namespace) pair emitted by
// the indexer and consumed by the gRPC stage.
type SegGranule struct {
	ConfigPayLoad
	Path          string
	NameSpace     string
	RasterType    string
	Rows, Cols    int
	Years         []int
	NoData        float64
	BBox          []float64
	Height, Width int
}

// FlexRaster carries a granule band canvas as raw bytes plus enough
// metadata to reinterpret it per array type. Rows and Cols give the
// per-pixel array shape of the band.
type FlexRaster struct {
	ConfigPayLoad
	Data          []byte
	Height, Width int
	Rows, Cols    int
	Years         []int
	Type          string
	NoData        float64
	NameSpace     string
}

// Float32Data reinterprets the raw payload as float32 without copy.
func (r *FlexRaster) Float32Data() []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(r.Data))), len(r.Data)/SizeofFloat32)
}

// AsSegRaster views the raster as a segmentation band. The band must
// hold the fixed 4-row vertex layout.
func (r *FlexRaster) AsSegRaster() (*SegRaster, error) {
	if r.Type != "Float32" {
		return nil, fmt.Errorf("segmentation band must be Float32, got %s", r.Type)
	}
	if r.Rows != SegArrayRows {
		return nil, fmt.Errorf("segmentation band must have %d rows, got %d", SegArrayRows, r.Rows)
	}
	data := r.Float32Data()
	if len(data) != r.Width*r.Height*r.Rows*r.Cols {
		return nil, fmt.Errorf("segmentation band payload is %d values, want %d", len(data), r.Width*r.Height*r.Rows*r.Cols)
	}
	return &SegRaster{Data: data, Width: r.Width, Height: r.Height, MaxVertices: r.Cols, NoData: r.NoData}, nil
}

// AsFloat32Raster views a scalar band as a flat float32 raster.
func (r *FlexRaster) AsFloat32Raster() (*utils.Float32Raster, error) {
	if r.Type != "Float32" {
		return nil, fmt.Errorf("band %s must be Float32, got %s", r.NameSpace, r.Type)
	}
	if r.Rows*r.Cols != 1 {
		return nil, fmt.Errorf("band %s is not scalar: %dx%d per pixel", r.NameSpace, r.Rows, r.Cols)
	}
	return &utils.Float32Raster{NameSpace: r.NameSpace, Data: r.Float32Data(),
		Height: r.Height, Width: r.Width, NoData: r.NoData}, nil
}

// AsFTVRaster views an annual fitted band as an FTVRaster.
func (r *FlexRaster) AsFTVRaster() (*FTVRaster, error) {
	if r.Type != "Float32" {
		return nil, fmt.Errorf("fitted band %s must be Float32, got %s", r.NameSpace, r.Type)
	}
	if r.Rows != 1 || r.Cols != len(r.Years) {
		return nil, fmt.Errorf("fitted band %s: %dx%d per pixel for %d years", r.NameSpace, r.Rows, r.Cols, len(r.Years))
	}
	return &FTVRaster{Data: r.Float32Data(), Width: r.Width, Height: r.Height,
		Years: r.Years, NoData: r.NoData}, nil
}
