package utils

import (
	"math"
	"testing"
)

func assert(t *testing.T, out *ByteRaster, expected *ByteRaster, err error) {
	if err != nil {
		t.Errorf("byte raster test failed,  %v", err)
	}
	if out.NameSpace != expected.NameSpace {
		t.Errorf("byte raster test failed, expecting namespace %v, actual %v", expected.NameSpace, out.NameSpace)
	}
	for i := range out.Data {
		if out.Data[i] != expected.Data[i] {
			t.Errorf("byte raster test failed, expecting %v, actual %v", expected.Data, out.Data)
		}
	}
}

func testByteRaster(t *testing.T) {
	inRaster := make([]Raster, 1)

	sp := ScaleParams{Offset: 0, Scale: 1, Clip: 254}

	inRaster[0] = &ByteRaster{NameSpace: "seg", Data: []uint8{uint8(10), uint8(20)}, Height: 2, Width: 1, NoData: 255}
	expOut := &ByteRaster{NameSpace: "seg", Data: []uint8{uint8(10), uint8(20)}}
	out, err := Scale(inRaster, sp)
	assert(t, out[0], expOut, err)

	inRaster[0] = &ByteRaster{NameSpace: "seg", Data: []uint8{uint8(10), uint8(255)}, Height: 2, Width: 1, NoData: 255}
	sp = ScaleParams{Offset: 0, Scale: 2, Clip: 254}
	expOut = &ByteRaster{NameSpace: "seg", Data: []uint8{uint8(20), uint8(0xFF)}}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], expOut, err)
}

func testInt16Raster(t *testing.T) {
	inRaster := make([]Raster, 1)

	sp := ScaleParams{Clip: 1000}

	inRaster[0] = &Int16Raster{NameSpace: "mag", Data: []int16{int16(100), int16(500)}, Height: 2, Width: 1, NoData: -9999}
	expOut := &ByteRaster{NameSpace: "mag", Data: []uint8{uint8(25), uint8(127)}}
	out, err := Scale(inRaster, sp)
	assert(t, out[0], expOut, err)

	inRaster[0] = &Int16Raster{NameSpace: "mag", Data: []int16{int16(250), int16(800)}, Height: 2, Width: 1, NoData: -9999}
	sp = ScaleParams{Clip: 500}
	expOut = &ByteRaster{NameSpace: "mag", Data: []uint8{uint8(127), uint8(254)}}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], expOut, err)

	inRaster[0] = &Int16Raster{NameSpace: "mag", Data: []int16{int16(-9999), int16(500)}, Height: 2, Width: 1, NoData: -9999}
	sp = ScaleParams{Clip: 1000}
	expOut = &ByteRaster{NameSpace: "mag", Data: []uint8{uint8(0xFF), uint8(127)}}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], expOut, err)
}

func testUInt16Raster(t *testing.T) {
	inRaster := make([]Raster, 1)

	sp := ScaleParams{Clip: 2000}

	inRaster[0] = &UInt16Raster{NameSpace: "dur", Data: []uint16{uint16(1000), uint16(3000)}, Height: 2, Width: 1, NoData: 0}
	expOut := &ByteRaster{NameSpace: "dur", Data: []uint8{uint8(127), uint8(254)}}
	out, err := Scale(inRaster, sp)
	assert(t, out[0], expOut, err)

	inRaster[0] = &UInt16Raster{NameSpace: "dur", Data: []uint16{uint16(0), uint16(500)}, Height: 2, Width: 1, NoData: 0}
	expOut = &ByteRaster{NameSpace: "dur", Data: []uint8{uint8(0xFF), uint8(63)}}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], expOut, err)
}

func testFloat32Raster(t *testing.T) {
	inRaster := make([]Raster, 1)

	sp := ScaleParams{Offset: 0, Scale: 254, Clip: 1}

	inRaster[0] = &Float32Raster{NameSpace: "ftv", Data: []float32{float32(0.25), float32(2.0)}, Height: 2, Width: 1, NoData: -9999}
	expOut := &ByteRaster{NameSpace: "ftv", Data: []uint8{uint8(63), uint8(254)}}
	out, err := Scale(inRaster, sp)
	assert(t, out[0], expOut, err)

	inRaster[0] = &Float32Raster{NameSpace: "ftv", Data: []float32{float32(-9999), float32(0.5)}, Height: 2, Width: 1, NoData: -9999}
	expOut = &ByteRaster{NameSpace: "ftv", Data: []uint8{uint8(0xFF), uint8(127)}}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], expOut, err)

	inRaster[0] = &Float32Raster{NameSpace: "ftv", Data: []float32{float32(math.NaN()), float32(0.5)}, Height: 2, Width: 1, NoData: -9999}
	expOut = &ByteRaster{NameSpace: "ftv", Data: []uint8{uint8(0xFF), uint8(127)}}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], expOut, err)
}

func TestScale(t *testing.T) {
	testByteRaster(t)
	testInt16Raster(t)
	testUInt16Raster(t)
	testFloat32Raster(t)
}

func TestScaleVis(t *testing.T) {
	vis := &VisParams{Min: []float64{0}, Max: []float64{100}, Gamma: []float64{1}}
	rs := []*Float32Raster{
		{NameSpace: "nbr", Data: []float32{0, 50, 100, 200}, Height: 2, Width: 2, NoData: -9999},
	}

	out, err := ScaleVis(rs, vis)
	if err != nil {
		t.Errorf("vis scale test failed, %v", err)
		return
	}
	expected := []uint8{0, 127, 254, 254}
	for i, v := range out[0].Data {
		if v != expected[i] {
			t.Errorf("vis scale test failed, expecting %v, actual %v", expected, out[0].Data)
			break
		}
	}

	vis = &VisParams{Min: []float64{0}, Max: []float64{1}, Gamma: []float64{0.5}}
	rs = []*Float32Raster{
		{NameSpace: "nbr", Data: []float32{0.5}, Height: 1, Width: 1, NoData: -9999},
	}
	out, err = ScaleVis(rs, vis)
	if err != nil {
		t.Errorf("vis gamma test failed, %v", err)
		return
	}
	if out[0].Data[0] != 63 {
		t.Errorf("vis gamma test failed, expecting 63, actual %v", out[0].Data[0])
	}

	vis = &VisParams{Min: []float64{0, 10, 20}, Max: []float64{100, 110, 120}, Gamma: []float64{1}}
	rs = []*Float32Raster{
		{NameSpace: "r", Data: []float32{50}, Height: 1, Width: 1, NoData: -9999},
		{NameSpace: "g", Data: []float32{60}, Height: 1, Width: 1, NoData: -9999},
		{NameSpace: "b", Data: []float32{70}, Height: 1, Width: 1, NoData: -9999},
	}
	out, err = ScaleVis(rs, vis)
	if err != nil {
		t.Errorf("vis channel test failed, %v", err)
		return
	}
	for i := range out {
		if out[i].Data[0] != 127 {
			t.Errorf("vis channel test failed, expecting 127 for channel %d, actual %v", i, out[i].Data[0])
		}
	}

	vis = &VisParams{Min: []float64{10}, Max: []float64{10}}
	_, err = ScaleVis(rs[:1], vis)
	if err == nil {
		t.Errorf("vis scale accepted max <= min")
	}

	vis = &VisParams{Min: []float64{0}, Max: []float64{1}, Gamma: []float64{-1}}
	_, err = ScaleVis(rs[:1], vis)
	if err == nil {
		t.Errorf("vis scale accepted non-positive gamma")
	}

	rs = []*Float32Raster{
		{NameSpace: "nbr", Data: []float32{-9999, float32(math.NaN())}, Height: 2, Width: 1, NoData: -9999},
	}
	out, err = ScaleVis(rs, nil)
	if err != nil {
		t.Errorf("vis nodata test failed, %v", err)
		return
	}
	if out[0].Data[0] != 0xFF || out[0].Data[1] != 0xFF {
		t.Errorf("vis nodata test failed, expecting 0xFF, actual %v", out[0].Data)
	}
}
