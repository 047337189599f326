package utils

import (
	"fmt"
	"math"
)

type ScaleParams struct {
	Offset float64
	Scale  float64
	Clip   float64
}

func scale(r Raster, params ScaleParams) (*ByteRaster, error) {
	switch t := r.(type) {
	case *ByteRaster:
		noData := uint8(t.NoData)
		scale := params.Scale
		clip := uint8(params.Clip)

		for i, value := range t.Data {
			if value == noData {
				t.Data[i] = 0xFF
			} else {
				if value > clip {
					value = clip
				}
				t.Data[i] = uint8(float64(value) * scale)
			}
		}
		return &ByteRaster{t.NameSpace, t.Data, t.Height, t.Width, t.NoData}, nil

	case *Int16Raster:
		out := &ByteRaster{NameSpace: t.NameSpace, NoData: t.NoData, Data: make([]uint8, t.Height*t.Width), Width: t.Width, Height: t.Height}
		noData := int16(t.NoData)
		clip := int16(params.Clip)
		for i, value := range t.Data {
			if value == noData {
				out.Data[i] = 0xFF
			} else {
				if value > clip {
					value = clip
				}
				out.Data[i] = uint8(float32(value) * 254.0 / float32(clip))
			}
		}
		return out, nil

	case *UInt16Raster:
		out := &ByteRaster{NameSpace: t.NameSpace, NoData: t.NoData, Data: make([]uint8, t.Height*t.Width), Width: t.Width, Height: t.Height}
		noData := uint16(t.NoData)
		clip := uint16(params.Clip)
		for i, value := range t.Data {
			if value == noData {
				out.Data[i] = 0xFF
			} else {
				if value > clip {
					value = clip
				}
				out.Data[i] = uint8(float32(value) * 254.0 / float32(clip))
			}
		}
		return out, nil

	case *Float32Raster:
		out := &ByteRaster{NameSpace: t.NameSpace, NoData: t.NoData, Data: make([]uint8, t.Height*t.Width), Width: t.Width, Height: t.Height}

		noData := float32(t.NoData)
		scale := float32(params.Scale)
		offset := float32(params.Offset)
		clip := float32(params.Clip)

		for i, value := range t.Data {
			if value == noData || math.IsNaN(float64(value)) {
				out.Data[i] = 0xFF
			} else {
				value += offset
				if value > clip {
					value = clip
				}
				out.Data[i] = uint8(value * scale)
			}
		}
		return out, nil

	default:
		return &ByteRaster{}, fmt.Errorf("Raster type not implemented")
	}
}

func Scale(rs []Raster, params ScaleParams) ([]*ByteRaster, error) {
	out := make([]*ByteRaster, len(rs))

	for i, r := range rs {
		br, err := scale(r, params)
		if err != nil {
			return out, err
		}
		out[i] = br
	}

	return out, nil
}

func visChannelParam(vals []float64, iChannel int, fallback float64) float64 {
	switch len(vals) {
	case 0:
		return fallback
	case 1:
		return vals[0]
	default:
		return vals[iChannel]
	}
}

// ScaleVis stretches float32 channel rasters into display bytes with
// the per-channel min/max/gamma of the product's vis_params. Values
// stretch linearly into [0, 254] then apply the gamma curve; 0xFF is
// reserved for no-data.
func ScaleVis(rs []*Float32Raster, vis *VisParams) ([]*ByteRaster, error) {
	out := make([]*ByteRaster, len(rs))
	for iChannel, t := range rs {
		vMin := 0.0
		vMax := 1.0
		gamma := 1.0
		if vis != nil {
			vMin = visChannelParam(vis.Min, iChannel, vMin)
			vMax = visChannelParam(vis.Max, iChannel, vMax)
			gamma = visChannelParam(vis.Gamma, iChannel, gamma)
		}

		if vMax <= vMin {
			return nil, fmt.Errorf("vis_params max must be greater than min for channel %d", iChannel)
		}
		if gamma <= 0 {
			return nil, fmt.Errorf("vis_params gamma must be positive for channel %d", iChannel)
		}

		br := &ByteRaster{NameSpace: t.NameSpace, NoData: t.NoData, Data: make([]uint8, t.Height*t.Width), Width: t.Width, Height: t.Height}
		noData := float32(t.NoData)
		for i, value := range t.Data {
			if value == noData || math.IsNaN(float64(value)) {
				br.Data[i] = 0xFF
				continue
			}

			norm := (float64(value) - vMin) / (vMax - vMin)
			if norm < 0 {
				norm = 0
			}
			if norm > 1 {
				norm = 1
			}
			if gamma != 1.0 {
				norm = math.Pow(norm, 1.0/gamma)
			}
			br.Data[i] = uint8(norm * 254.0)
		}
		out[iChannel] = br
	}
	return out, nil
}
