package processor

import (
	"github.com/nci/ltsky/utils"
)

// Row layout of the per-pixel segmentation array written by the
// offline fitter: one column per candidate vertex, rows holding the
// vertex year, the observed value, the model value and the validity
// mask. Columns beyond the per-pixel vertex count are padding.
const (
	RowYear = iota
	RowSource
	RowFitted
	RowVertex

	SegArrayRows
)

// SegRaster is the segmentation band for a canvas: per pixel a
// 4 x MaxVertices float32 array, stored flat pixel-major.
type SegRaster struct {
	Data          []float32
	Width, Height int
	MaxVertices   int
	NoData        float64
}

func (s *SegRaster) pixelRow(p, row int) []float32 {
	base := (p*SegArrayRows + row) * s.MaxVertices
	return s.Data[base : base+s.MaxVertices]
}

// VertexSlice holds the vertex-aligned rows of one pixel with the
// padding columns already masked out.
type VertexSlice struct {
	Years  []float32
	Source []float32
	Fitted []float32
}

// Len is the number of valid vertices.
func (v VertexSlice) Len() int {
	return len(v.Years)
}

// SegmentCount is the number of segments the vertices delimit. Fewer
// than 2 vertices delimit no segment.
func (v VertexSlice) SegmentCount() int {
	if len(v.Years) < 2 {
		return 0
	}
	return len(v.Years) - 1
}

// LeftRight takes the two column-shifted views over the valid
// vertices: left drops the last vertex, right drops the first, so
// that column i of each pair brackets segment i.
func (v VertexSlice) LeftRight() (VertexSlice, VertexSlice) {
	n := len(v.Years)
	if n < 2 {
		return VertexSlice{}, VertexSlice{}
	}
	left := VertexSlice{Years: v.Years[:n-1], Source: v.Source[:n-1], Fitted: v.Fitted[:n-1]}
	right := VertexSlice{Years: v.Years[1:], Source: v.Source[1:], Fitted: v.Fitted[1:]}
	return left, right
}

// PixelVertices masks the three value rows of pixel p by the vertex
// row, dropping the padding columns.
func (s *SegRaster) PixelVertices(p int) VertexSlice {
	vertexRow := s.pixelRow(p, RowVertex)
	yearRow := s.pixelRow(p, RowYear)
	sourceRow := s.pixelRow(p, RowSource)
	fittedRow := s.pixelRow(p, RowFitted)

	var out VertexSlice
	for i, isVertex := range vertexRow {
		if isVertex == 0 {
			continue
		}
		out.Years = append(out.Years, yearRow[i])
		out.Source = append(out.Source, sourceRow[i])
		out.Fitted = append(out.Fitted, fittedRow[i])
	}
	return out
}

// BuildSegmentCount derives the per-pixel count of valid segments as
// a byte band.
func BuildSegmentCount(seg *SegRaster) *utils.ByteRaster {
	out := &utils.ByteRaster{NameSpace: "segCount", Data: make([]uint8, seg.Width*seg.Height),
		Height: seg.Height, Width: seg.Width, NoData: 255}

	for p := 0; p < seg.Width*seg.Height; p++ {
		count := seg.PixelVertices(p).SegmentCount()
		if count > 254 {
			count = 254
		}
		out.Data[p] = uint8(count)
	}
	return out
}
