package processor

import (
	"testing"

	"github.com/nci/ltsky/utils"
)

func maskFromBytes(rows ...[]byte) []bool {
	var out []bool
	for _, row := range rows {
		for _, v := range row {
			out = append(out, v != 0)
		}
	}
	return out
}

func TestFilterMinMappingUnit(t *testing.T) {
	// one 5-pixel diagonal-linked patch and one isolated pixel
	mask := maskFromBytes(
		[]byte{1, 1, 0, 0, 0},
		[]byte{0, 1, 1, 0, 0},
		[]byte{0, 0, 1, 0, 1},
	)

	out, err := FilterMinMappingUnit(mask, 5, 3, 5)
	if err != nil {
		t.Fatalf("mmu test failed, %v", err)
	}
	kept := 0
	for _, v := range out {
		if v {
			kept++
		}
	}
	if kept != 5 {
		t.Errorf("mmu test failed, expecting the 5-pixel patch to survive, kept %d", kept)
	}
	if out[2*5+4] {
		t.Errorf("mmu test failed, isolated pixel must be removed")
	}

	out, err = FilterMinMappingUnit(mask, 5, 3, 6)
	if err != nil {
		t.Fatalf("mmu test failed, %v", err)
	}
	for i, v := range out {
		if v {
			t.Errorf("mmu test failed, pixel %d survived mmu 6", i)
		}
	}

	out, err = FilterMinMappingUnit(mask, 5, 3, 1)
	if err != nil {
		t.Fatalf("mmu test failed, %v", err)
	}
	for i := range out {
		if out[i] != mask[i] {
			t.Errorf("mmu test failed, mmu 1 must keep every pixel")
			break
		}
	}
}

func TestFilterMinMappingUnitErrors(t *testing.T) {
	mask := make([]bool, 4)
	if _, err := FilterMinMappingUnit(mask, 2, 2, 0); err == nil {
		t.Errorf("mmu test failed, mmu 0 accepted")
	}
	if _, err := FilterMinMappingUnit(mask, 3, 2, 2); err == nil {
		t.Errorf("mmu test failed, wrong mask size accepted")
	}
}

func TestBuildChangeMask(t *testing.T) {
	mag := &utils.Float32Raster{NameSpace: "mag", Data: []float32{100, 40, ChangeNoData, 300}, Height: 2, Width: 2, NoData: ChangeNoData}
	dur := &utils.Float32Raster{NameSpace: "dur", Data: []float32{3, 2, ChangeNoData, 9}, Height: 2, Width: 2, NoData: ChangeNoData}
	preval := &utils.Float32Raster{NameSpace: "preval", Data: []float32{500, 600, ChangeNoData, 100}, Height: 2, Width: 2, NoData: ChangeNoData}

	magMin := 50.0
	durMax := 5.0
	prevalMin := 200.0
	mask, err := BuildChangeMask(mag, dur, preval, ChangeThresholds{MagMin: &magMin, DurMax: &durMax, PrevalMin: &prevalMin})
	if err != nil {
		t.Fatalf("change mask test failed, %v", err)
	}

	// pixel 1 fails mag, pixel 2 has no change, pixel 3 fails dur and preval
	expected := []bool{true, false, false, false}
	for i := range mask {
		if mask[i] != expected[i] {
			t.Errorf("change mask test failed, expecting %v, actual %v", expected, mask)
			break
		}
	}

	mask, err = BuildChangeMask(mag, dur, preval, ChangeThresholds{})
	if err != nil {
		t.Fatalf("change mask test failed, %v", err)
	}
	expected = []bool{true, true, false, true}
	for i := range mask {
		if mask[i] != expected[i] {
			t.Errorf("change mask test failed, no thresholds, expecting %v, actual %v", expected, mask)
			break
		}
	}
}

func TestApplyChangeMask(t *testing.T) {
	r := &utils.Float32Raster{NameSpace: "mag", Data: []float32{1, 2, 3, 4}, Height: 2, Width: 2, NoData: ChangeNoData}
	if err := ApplyChangeMask(r, []bool{true, false, false, true}); err != nil {
		t.Fatalf("apply mask test failed, %v", err)
	}
	expected := []float32{1, ChangeNoData, ChangeNoData, 4}
	for i := range r.Data {
		if r.Data[i] != expected[i] {
			t.Errorf("apply mask test failed, expecting %v, actual %v", expected, r.Data)
			break
		}
	}

	if err := ApplyChangeMask(r, []bool{true}); err == nil {
		t.Errorf("apply mask test failed, wrong mask size accepted")
	}
}
