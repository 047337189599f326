package processor

import (
	"testing"
	"time"

	"github.com/nci/ltsky/utils"
)

func flatBand(name string, value float32) *utils.Float32Raster {
	return &utils.Float32Raster{NameSpace: name, Data: []float32{value}, Height: 1, Width: 1, NoData: -9999}
}

func TestBuildComposites(t *testing.T) {
	years := []int{2000, 2001}
	red := []*utils.Float32Raster{flatBand("2000", 50), flatBand("2001", 100)}
	green := []*utils.Float32Raster{flatBand("2000", 25), flatBand("2001", 75)}
	blue := []*utils.Float32Raster{flatBand("2000", 0), flatBand("2001", -9999)}
	vis := &utils.VisParams{Min: []float64{0}, Max: []float64{100}, Gamma: []float64{1}}

	frames, err := BuildComposites(red, green, blue, years, vis)
	if err != nil {
		t.Fatalf("composite test failed, %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("composite test failed, expecting 2 frames, actual %d", len(frames))
	}

	for i, frame := range frames {
		if frame.Year != years[i] {
			t.Errorf("composite test failed, frame %d year %d", i, frame.Year)
		}
		expected := time.Date(years[i], 1, 1, 0, 0, 0, 0, time.UTC)
		if !frame.TimeStamp.Equal(expected) {
			t.Errorf("composite test failed, frame %d timestamp %v", i, frame.TimeStamp)
		}
		if len(frame.Bands) != 3 {
			t.Errorf("composite test failed, frame %d carries %d bands", i, len(frame.Bands))
		}
	}

	if frames[0].Bands[0].Data[0] != 127 {
		t.Errorf("composite test failed, red channel %v, expecting 127", frames[0].Bands[0].Data[0])
	}
	if frames[1].Bands[2].Data[0] != 0xFF {
		t.Errorf("composite test failed, no-data pixel %v, expecting 0xFF", frames[1].Bands[2].Data[0])
	}
}

func TestBuildCompositesBadInput(t *testing.T) {
	band := []*utils.Float32Raster{flatBand("2000", 1)}

	if _, err := BuildComposites(band, band, band, nil, nil); err == nil {
		t.Errorf("composite test failed, empty year range accepted")
	}
	if _, err := BuildComposites(band, band, nil, []int{2000}, nil); err == nil {
		t.Errorf("composite test failed, short channel series accepted")
	}

	two := []*utils.Float32Raster{flatBand("2001", 1), flatBand("2000", 2)}
	if _, err := BuildComposites(two, two, two, []int{2001, 2000}, nil); err == nil {
		t.Errorf("composite test failed, descending years accepted")
	}
}
