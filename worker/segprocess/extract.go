package segprocess

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"

	goeval "github.com/edisonguo/govaluate"
	"github.com/nci/ltsky/utils"
	pb "github.com/nci/ltsky/worker/segservice"
)

// ExtractRaster reads one band out of a granule container and
// resamples it onto the request canvas. With an expression set the
// band is computed per pixel over the referenced source bands
// instead of read directly. All outputs are Float32 regardless of
// the stored array type.
func ExtractRaster(in *pb.SegRPCRequest, verbose bool) *pb.Result {
	if verbose {
		log.Printf("extract %s ns:%s expr:%s", in.Path, in.NameSpace, in.Expression)
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

	var band *utils.ContainerBand
	var values []float32
	if len(in.Expression) == 0 {
		band, err = hdr.FindBand(in.NameSpace)
		if err != nil {
			return &pb.Result{Error: err.Error()}
		}
		values, err = readBandFloat32(f, hdr, band, payloadStart)
		if err != nil {
			return &pb.Result{Error: err.Error()}
		}
	} else {
		band, values, err = evalExpression(f, hdr, payloadStart, in.Expression, in.VarRef)
		if err != nil {
			return &pb.Result{Error: err.Error()}
		}
	}

	years := make([]int32, 0, len(band.Dates))
	for _, date := range band.Dates {
		year, err := utils.YearFromDate(date)
		if err != nil {
			return &pb.Result{Error: fmt.Sprintf("granule %s band %s: %v", in.Path, band.NameSpace, err)}
		}
		years = append(years, int32(year))
	}

	stride := band.PixelStride()
	out := &pb.Raster{RasterType: "Float32", NoData: band.NoData,
		Rows: int32(band.Rows), Cols: int32(band.Cols), Years: years}

	if in.Width <= 0 || in.Height <= 0 {
		// native grid read
		out.Data = float32sToBytes(values)
		return &pb.Result{Raster: out, Error: "OK"}
	}

	if len(in.Geot) != 6 || len(hdr.GeoTransform) != 6 {
		return &pb.Result{Error: fmt.Sprintf("granule %s: missing geotransform for canvas extract", in.Path)}
	}

	canvas, err := resampleNearest(values, hdr, stride, float32(band.NoData), in.Geot, int(in.Width), int(in.Height))
	if err != nil {
		return &pb.Result{Error: err.Error()}
	}
	out.Data = float32sToBytes(canvas)
	return &pb.Result{Raster: out, Error: "OK"}
}

// resampleNearest samples whole per-pixel arrays from the granule
// grid onto the target canvas. Target pixels outside the granule
// footprint read as no-data.
func resampleNearest(values []float32, hdr *utils.ContainerHeader, stride int, noData float32, geot []float64, width, height int) ([]float32, error) {
	sgt := hdr.GeoTransform
	if sgt[1] == 0 || sgt[5] == 0 {
		return nil, fmt.Errorf("degenerate granule geotransform: %v", sgt)
	}

	out := make([]float32, width*height*stride)
	for y := 0; y < height; y++ {
		gy := geot[3] + (float64(y)+0.5)*geot[5]
		srcY := int(math.Floor((gy - sgt[3]) / sgt[5]))

		for x := 0; x < width; x++ {
			gx := geot[0] + (float64(x)+0.5)*geot[1]
			srcX := int(math.Floor((gx - sgt[0]) / sgt[1]))

			dst := out[(y*width+x)*stride : (y*width+x+1)*stride]
			if srcX < 0 || srcX >= hdr.Width || srcY < 0 || srcY >= hdr.Height {
				for i := range dst {
					dst[i] = noData
				}
				continue
			}
			src := (srcY*hdr.Width + srcX) * stride
			copy(dst, values[src:src+stride])
		}
	}
	return out, nil
}

// evalExpression computes a spectral index band per stored value
// from the referenced source bands. The source bands must share one
// array shape; any no-data input poisons the output value.
func evalExpression(f *os.File, hdr *utils.ContainerHeader, payloadStart int64, exprText string, varRef []string) (*utils.ContainerBand, []float32, error) {
	if len(varRef) == 0 {
		return nil, nil, fmt.Errorf("expression references no source bands")
	}

	expr, err := goeval.NewEvaluableExpression(exprText)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing error in band expression '%s': %v", exprText, err)
	}

	bands := make([]*utils.ContainerBand, len(varRef))
	sources := make([][]float32, len(varRef))
	for i, ns := range varRef {
		band, err := hdr.FindBand(ns)
		if err != nil {
			return nil, nil, err
		}
		if i > 0 && (band.Rows != bands[0].Rows || band.Cols != bands[0].Cols) {
			return nil, nil, fmt.Errorf("band %s shape %dx%d differs from %s", ns, band.Rows, band.Cols, varRef[0])
		}
		bands[i] = band

		sources[i], err = readBandFloat32(f, hdr, band, payloadStart)
		if err != nil {
			return nil, nil, err
		}
	}

	ref := bands[0]
	out := make([]float32, len(sources[0]))
	params := make(map[string]interface{}, len(varRef))
	noData := float32(ref.NoData)

	for j := range out {
		masked := false
		for i := range sources {
			v := sources[i][j]
			if v == float32(bands[i].NoData) || math.IsNaN(float64(v)) {
				masked = true
				break
			}
			params[varRef[i]] = float64(v)
		}
		if masked {
			out[j] = noData
			continue
		}

		result, err := expr.Evaluate(params)
		if err != nil {
			return nil, nil, fmt.Errorf("error evaluating band expression '%s': %v", exprText, err)
		}
		val, ok := result.(float64)
		if !ok {
			return nil, nil, fmt.Errorf("band expression '%s' is not numeric", exprText)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			out[j] = noData
			continue
		}
		out[j] = float32(val)
	}

	derived := &utils.ContainerBand{NameSpace: exprText, ArrayType: "Float32",
		Rows: ref.Rows, Cols: ref.Cols, Dates: ref.Dates, NoData: ref.NoData}
	return derived, out, nil
}

func readBandFloat32(f *os.File, hdr *utils.ContainerHeader, band *utils.ContainerBand, payloadStart int64) ([]float32, error) {
	offset, err := hdr.BandOffset(band.NameSpace)
	if err != nil {
		return nil, err
	}
	size, err := band.SizeBytes(hdr.Width, hdr.Height)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, size)
	if _, err := f.ReadAt(raw, payloadStart+offset); err != nil {
		return nil, fmt.Errorf("error reading band %s: %v", band.NameSpace, err)
	}

	nValues := hdr.Width * hdr.Height * band.PixelStride()
	out := make([]float32, nValues)
	switch band.ArrayType {
	case "Byte":
		for i := range out {
			out[i] = float32(raw[i])
		}
	case "Int16":
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:])))
		}
	case "UInt16":
		for i := range out {
			out[i] = float32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case "Float32":
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	default:
		return nil, fmt.Errorf("unsupported array type: %s", band.ArrayType)
	}
	return out, nil
}

func float32sToBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
