package processor

import (
	"fmt"

	"github.com/nci/ltsky/utils"
)

// vertexFamilies are the band name prefixes of the vertex stack, in
// the order the bands are emitted.
var vertexFamilies = []string{"yrs", "src", "fit"}

// BuildVertexStack flattens the per-pixel vertex lists into fixed
// bands. Each family gets maxSegments+1 bands named e.g. yrs_vert_1;
// pixels with fewer vertices are zero padded on the right and pixels
// with more keep their first maxSegments+1 vertices. A malformed
// pixel never fails the canvas.
func BuildVertexStack(seg *SegRaster, maxSegments int) ([]*utils.Float32Raster, error) {
	if maxSegments < 1 {
		return nil, fmt.Errorf("maxSegments must be >= 1, got %d", maxSegments)
	}
	nVerts := maxSegments + 1
	nPixels := seg.Width * seg.Height

	out := make([]*utils.Float32Raster, 0, 3*nVerts)
	for _, family := range vertexFamilies {
		for v := 1; v <= nVerts; v++ {
			out = append(out, &utils.Float32Raster{
				NameSpace: fmt.Sprintf("%s_vert_%d", family, v),
				Data:      make([]float32, nPixels),
				Height:    seg.Height, Width: seg.Width,
				NoData: seg.NoData,
			})
		}
	}

	buf := make([]float32, 3*nVerts)
	for p := 0; p < nPixels; p++ {
		vs := seg.PixelVertices(p)

		for i := range buf {
			buf[i] = 0
		}
		copy(buf[:nVerts], vs.Years)
		copy(buf[nVerts:2*nVerts], vs.Source)
		copy(buf[2*nVerts:], vs.Fitted)

		for f := 0; f < 3; f++ {
			for v := 0; v < nVerts; v++ {
				out[f*nVerts+v].Data[p] = buf[f*nVerts+v]
			}
		}
	}
	return out, nil
}
