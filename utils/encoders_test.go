package utils

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestEncodePNGGray(t *testing.T) {
	br := []*ByteRaster{
		{NameSpace: "mag", Data: []uint8{0, 127, 254, 0xFF}, Width: 2, Height: 2},
	}

	out, err := EncodePNG(br, nil)
	if err != nil {
		t.Errorf("failed to encode gray png: %v", err)
		return
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Errorf("output is not a decodable png: %v", err)
		return
	}

	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Errorf("wrong png dimensions: %v", img.Bounds())
	}

	r, g, b, a := img.At(1, 0).RGBA()
	if r>>8 != 127 || g>>8 != 127 || b>>8 != 127 || a>>8 != 255 {
		t.Errorf("wrong gray pixel: %v %v %v %v", r>>8, g>>8, b>>8, a>>8)
	}

	_, _, _, a = img.At(1, 1).RGBA()
	if a != 0 {
		t.Errorf("nodata pixel is not transparent: alpha %v", a)
	}
}

func TestEncodePNGPalette(t *testing.T) {
	palette := &Palette{
		Interpolate: true,
		Colours: []color.RGBA{
			{0, 0, 0, 255},
			{255, 255, 255, 255},
		},
	}

	br := []*ByteRaster{
		{NameSpace: "mag", Data: []uint8{0, 254, 128, 0xFF}, Width: 2, Height: 2},
	}

	out, err := EncodePNG(br, palette)
	if err != nil {
		t.Errorf("failed to encode palette png: %v", err)
		return
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Errorf("output is not a decodable png: %v", err)
		return
	}

	r, g, b, a := img.At(0, 0).RGBA()
	if r != 0 || g != 0 || b != 0 || a>>8 != 255 {
		t.Errorf("palette start colour wrong: %v %v %v %v", r, g, b, a)
	}

	r, _, _, _ = img.At(1, 0).RGBA()
	if r>>8 < 200 {
		t.Errorf("palette end colour not near white: %v", r>>8)
	}
}

func TestEncodePNGRGB(t *testing.T) {
	br := []*ByteRaster{
		{NameSpace: "r", Data: []uint8{200, 0xFF}, Width: 2, Height: 1},
		{NameSpace: "g", Data: []uint8{100, 0xFF}, Width: 2, Height: 1},
		{NameSpace: "b", Data: []uint8{50, 0xFF}, Width: 2, Height: 1},
	}

	out, err := EncodePNG(br, nil)
	if err != nil {
		t.Errorf("failed to encode rgb png: %v", err)
		return
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Errorf("output is not a decodable png: %v", err)
		return
	}

	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Errorf("wrong rgb pixel: %v %v %v", r>>8, g>>8, b>>8)
	}

	_, _, _, a := img.At(1, 0).RGBA()
	if a != 0 {
		t.Errorf("all-nodata pixel is not transparent: alpha %v", a)
	}

	_, err = EncodePNG(br[:2], nil)
	if err == nil {
		t.Errorf("2 band png encode accepted")
	}
}

func TestEncodeJPEG(t *testing.T) {
	br := []*ByteRaster{
		{NameSpace: "r", Data: []uint8{200, 100}, Width: 2, Height: 1},
		{NameSpace: "g", Data: []uint8{100, 100}, Width: 2, Height: 1},
		{NameSpace: "b", Data: []uint8{50, 100}, Width: 2, Height: 1},
	}

	out, err := EncodeJPEG(br)
	if err != nil {
		t.Errorf("failed to encode jpeg: %v", err)
		return
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Errorf("output is not a decodable jpeg: %v", err)
		return
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 1 {
		t.Errorf("wrong jpeg dimensions: %v", img.Bounds())
	}

	_, err = EncodeJPEG(br[:1])
	if err == nil {
		t.Errorf("1 band jpeg encode accepted")
	}
}

func TestValidateRasterSlice(t *testing.T) {
	rs := []Raster{
		&Float32Raster{Data: make([]float32, 4), Width: 2, Height: 2},
		&Float32Raster{Data: make([]float32, 4), Width: 2, Height: 2},
	}

	width, height, rasterType, err := ValidateRasterSlice(rs)
	if err != nil {
		t.Errorf("failed to validate uniform rasters: %v", err)
	}
	if width != 2 || height != 2 || rasterType != "Float32" {
		t.Errorf("wrong raster properties: %v %v %v", width, height, rasterType)
	}

	rs = []Raster{
		&Float32Raster{Data: make([]float32, 4), Width: 2, Height: 2},
		&ByteRaster{Data: make([]uint8, 4), Width: 2, Height: 2},
	}
	_, _, _, err = ValidateRasterSlice(rs)
	if err == nil {
		t.Errorf("mixed raster types accepted")
	}

	rs = []Raster{
		&Float32Raster{Data: make([]float32, 4), Width: 2, Height: 2},
		&Float32Raster{Data: make([]float32, 6), Width: 3, Height: 2},
	}
	_, _, _, err = ValidateRasterSlice(rs)
	if err == nil {
		t.Errorf("mixed raster widths accepted")
	}

	_, _, _, err = ValidateRasterSlice([]Raster{})
	if err == nil {
		t.Errorf("empty raster slice accepted")
	}
}

func TestGradientRGBAPalette(t *testing.T) {
	palette := &Palette{
		Interpolate: true,
		Colours: []color.RGBA{
			{0, 0, 0, 255},
			{255, 255, 255, 255},
		},
	}

	ramp, err := GradientRGBAPalette(palette)
	if err != nil {
		t.Errorf("failed to build palette ramp: %v", err)
		return
	}
	if len(ramp) != 256 {
		t.Errorf("wrong ramp size: %v", len(ramp))
		return
	}
	if ramp[0].R != 0 {
		t.Errorf("ramp start is not the first colour: %v", ramp[0])
	}
	if ramp[128].R < 100 || ramp[128].R > 160 {
		t.Errorf("ramp midpoint is not interpolated: %v", ramp[128])
	}

	discrete := &Palette{
		Colours: []color.RGBA{
			{10, 0, 0, 255},
			{20, 0, 0, 255},
			{30, 0, 0, 255},
			{40, 0, 0, 255},
		},
	}
	ramp, err = GradientRGBAPalette(discrete)
	if err != nil {
		t.Errorf("failed to build discrete ramp: %v", err)
		return
	}
	if ramp[0].R != 10 || ramp[10].R != 10 {
		t.Errorf("discrete ramp first bin wrong: %v", ramp[0])
	}
	if ramp[255].R != 40 {
		t.Errorf("discrete ramp last bin wrong: %v", ramp[255])
	}
}
