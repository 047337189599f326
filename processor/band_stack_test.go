package processor

import (
	"math"
	"testing"

	"github.com/nci/ltsky/utils"
)

func annualStack(year int, values map[string][]float32) *YearStack {
	ys := &YearStack{Year: year}
	for _, ns := range []string{"nbr", "b5"} {
		if v, ok := values[ns]; ok {
			ys.Bands = append(ys.Bands, &utils.Float32Raster{
				NameSpace: ns, Data: v, Height: 1, Width: 2, NoData: -9999})
		}
	}
	return ys
}

func TestBuildBandStack(t *testing.T) {
	stacks := []*YearStack{
		annualStack(2000, map[string][]float32{"nbr": {100, -9999}, "b5": {10, 20}}),
		annualStack(2001, map[string][]float32{"nbr": {110, 120}, "b5": {11, 21}}),
		annualStack(2002, map[string][]float32{"nbr": {float32(math.NaN()), 130}, "b5": {12, 22}}),
	}

	out, err := BuildBandStack(stacks, 0)
	if err != nil {
		t.Fatalf("band stack test failed, %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("band stack test failed, expecting 6 bands, actual %d", len(out))
	}

	expectedNames := []string{"nbr_2000", "nbr_2001", "nbr_2002", "b5_2000", "b5_2001", "b5_2002"}
	for i, b := range out {
		if b.NameSpace != expectedNames[i] {
			t.Errorf("band stack test failed, band %d named %v, expecting %v", i, b.NameSpace, expectedNames[i])
		}
	}

	if out[0].Data[0] != 100 || out[0].Data[1] != 0 {
		t.Errorf("band stack test failed, nbr_2000 %v, no-data must read as mask fill", out[0].Data)
	}
	if out[2].Data[0] != 0 || out[2].Data[1] != 130 {
		t.Errorf("band stack test failed, nbr_2002 %v, NaN must read as mask fill", out[2].Data)
	}
	if out[4].Data[0] != 11 || out[4].Data[1] != 21 {
		t.Errorf("band stack test failed, b5_2001 %v", out[4].Data)
	}
}

func TestBuildBandStackSingleBand(t *testing.T) {
	stacks := []*YearStack{
		{Year: 2000, Bands: []*utils.Float32Raster{{Data: []float32{1}, Height: 1, Width: 1, NoData: -9999}}},
		{Year: 2001, Bands: []*utils.Float32Raster{{Data: []float32{2}, Height: 1, Width: 1, NoData: -9999}}},
	}
	out, err := BuildBandStack(stacks, 0)
	if err != nil {
		t.Fatalf("band stack test failed, %v", err)
	}
	if out[0].NameSpace != "2000" || out[1].NameSpace != "2001" {
		t.Errorf("band stack test failed, single-band names %v, %v", out[0].NameSpace, out[1].NameSpace)
	}
}

func TestBuildBandStackErrors(t *testing.T) {
	base := annualStack(2000, map[string][]float32{"nbr": {100, 200}, "b5": {10, 20}})

	if _, err := BuildBandStack(nil, 0); err == nil {
		t.Errorf("band stack test failed, empty input accepted")
	}

	stacks := []*YearStack{base, annualStack(2000, map[string][]float32{"nbr": {1, 2}, "b5": {3, 4}})}
	if _, err := BuildBandStack(stacks, 0); err == nil {
		t.Errorf("band stack test failed, duplicate year accepted")
	}

	stacks = []*YearStack{base, annualStack(2001, map[string][]float32{"nbr": {1, 2}})}
	if _, err := BuildBandStack(stacks, 0); err == nil {
		t.Errorf("band stack test failed, mismatched band count accepted")
	}

	stacks = []*YearStack{annualStack(2000, map[string][]float32{"nbr": {-5, 100}, "b5": {1, 2}})}
	if _, err := BuildBandStack(stacks, 0); err == nil {
		t.Errorf("band stack test failed, negative value accepted")
	}

	stacks = []*YearStack{annualStack(2000, map[string][]float32{"nbr": {70000, 100}, "b5": {1, 2}})}
	if _, err := BuildBandStack(stacks, 0); err == nil {
		t.Errorf("band stack test failed, overflow value accepted")
	}
}
