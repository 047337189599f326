package processor

import (
	"fmt"
	"testing"
)

func TestBuildVertexStack(t *testing.T) {
	maxSegments := 3
	s := newTestSegRaster(2, 1, maxSegments+1)
	setPixelVertices(s, 0, []float32{2000, 2005, 2010}, []float32{11, 14, 13}, []float32{10, 15, 12})
	setPixelVertices(s, 1, []float32{2001, 2009}, []float32{7, 8}, []float32{6, 9})

	bands, err := BuildVertexStack(s, maxSegments)
	if err != nil {
		t.Fatalf("vertex stack test failed, %v", err)
	}
	if len(bands) != 3*(maxSegments+1) {
		t.Fatalf("vertex stack test failed, expecting %d bands, actual %d", 3*(maxSegments+1), len(bands))
	}

	idx := make(map[string]int)
	for i, b := range bands {
		idx[b.NameSpace] = i
	}
	for _, family := range []string{"yrs", "src", "fit"} {
		for v := 1; v <= maxSegments+1; v++ {
			if _, ok := idx[fmt.Sprintf("%s_vert_%d", family, v)]; !ok {
				t.Fatalf("vertex stack test failed, missing band %s_vert_%d", family, v)
			}
		}
	}

	checks := []struct {
		band     string
		pixel    int
		expected float32
	}{
		{"yrs_vert_1", 0, 2000},
		{"yrs_vert_3", 0, 2010},
		{"yrs_vert_4", 0, 0},
		{"src_vert_2", 0, 14},
		{"fit_vert_2", 0, 15},
		{"yrs_vert_2", 1, 2009},
		{"yrs_vert_3", 1, 0},
		{"fit_vert_1", 1, 6},
		{"fit_vert_3", 1, 0},
	}
	for _, c := range checks {
		b := bands[idx[c.band]]
		if b.Data[c.pixel] != c.expected {
			t.Errorf("vertex stack test failed, %s pixel %d, expecting %v, actual %v",
				c.band, c.pixel, c.expected, b.Data[c.pixel])
		}
	}
}

func TestBuildVertexStackOverfull(t *testing.T) {
	s := newTestSegRaster(2, 1, 5)
	setPixelVertices(s, 0, []float32{2000, 2002, 2004, 2006, 2008}, []float32{1, 2, 3, 4, 5}, []float32{6, 7, 8, 9, 10})
	setPixelVertices(s, 1, []float32{2001, 2009}, []float32{7, 8}, []float32{6, 9})

	bands, err := BuildVertexStack(s, 3)
	if err != nil {
		t.Fatalf("vertex stack test failed, overfull pixel must not abort the canvas, %v", err)
	}

	idx := make(map[string]int)
	for i, b := range bands {
		idx[b.NameSpace] = i
	}
	if v := bands[idx["yrs_vert_4"]].Data[0]; v != 2006 {
		t.Errorf("vertex stack test failed, overfull pixel last kept vertex, expecting 2006, actual %v", v)
	}
	if v := bands[idx["src_vert_4"]].Data[0]; v != 4 {
		t.Errorf("vertex stack test failed, overfull pixel truncation, expecting 4, actual %v", v)
	}
	if v := bands[idx["yrs_vert_2"]].Data[1]; v != 2009 {
		t.Errorf("vertex stack test failed, neighbour pixel disturbed, expecting 2009, actual %v", v)
	}

	if _, err := BuildVertexStack(s, 0); err == nil {
		t.Errorf("vertex stack test failed, zero maxSegments accepted")
	}
}
