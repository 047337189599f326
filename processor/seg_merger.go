package processor

import (
	"fmt"
)

// SegMerger mosaics the per-granule canvases into one canvas per
// namespace. Granules are spatially disjoint tiles of the same
// product, so merging is a no-data-respecting overwrite.
type SegMerger struct {
	In    chan *FlexRaster
	Out   chan map[string]*FlexRaster
	Error chan error
}

func NewSegMerger(errChan chan error) *SegMerger {
	return &SegMerger{
		In:    make(chan *FlexRaster, 100),
		Out:   make(chan map[string]*FlexRaster, 100),
		Error: errChan,
	}
}

func mergeFlexRaster(r *FlexRaster, canvasMap map[string]*FlexRaster) error {
	canvas, found := canvasMap[r.NameSpace]
	if !found {
		canvasMap[r.NameSpace] = r
		return nil
	}

	if r.Type != "Float32" || canvas.Type != "Float32" {
		return fmt.Errorf("merger has not been implemented for raster type %s", r.Type)
	}
	if canvas.Width != r.Width || canvas.Height != r.Height || canvas.Rows != r.Rows || canvas.Cols != r.Cols {
		return fmt.Errorf("namespace %s: mismatched canvas shapes %dx%d/%dx%d and %dx%d/%dx%d",
			r.NameSpace, canvas.Width, canvas.Height, canvas.Rows, canvas.Cols, r.Width, r.Height, r.Rows, r.Cols)
	}

	dst := canvas.Float32Data()
	src := r.Float32Data()
	if len(dst) != len(src) {
		return fmt.Errorf("namespace %s: mismatched canvas sizes %d and %d", r.NameSpace, len(dst), len(src))
	}

	noData := float32(r.NoData)
	stride := r.Rows * r.Cols
	nPixels := r.Width * r.Height
	for p := 0; p < nPixels; p++ {
		base := p * stride
		// a granule either covers a pixel wholly or not at all, the
		// first array value is the coverage probe
		if src[base] == noData {
			continue
		}
		copy(dst[base:base+stride], src[base:base+stride])
	}

	if len(canvas.Years) == 0 && len(r.Years) > 0 {
		canvas.Years = r.Years
	}
	return nil
}

func (m *SegMerger) Run() {
	defer close(m.Out)

	canvasMap := map[string]*FlexRaster{}
	for r := range m.In {
		if err := mergeFlexRaster(r, canvasMap); err != nil {
			m.sendError(err)
			return
		}
	}

	if len(canvasMap) == 0 {
		return
	}
	m.Out <- canvasMap
}

func (m *SegMerger) sendError(err error) {
	select {
	case m.Error <- err:
	default:
	}
}
