package processor

import (
	"math"
	"testing"
)

func isNaN32(v float32) bool {
	return math.IsNaN(float64(v))
}

func TestComputeSegmentMetrics(t *testing.T) {
	s := newTestSegRaster(1, 1, 4)
	setPixelVertices(s, 0, []float32{2000, 2005, 2010}, []float32{11, 14, 13}, []float32{10, 15, 12})

	recs := PixelSegmentMetrics(s, 0, 2)
	if len(recs) != 2 {
		t.Fatalf("segment metrics test failed, expecting 2 records, actual %d", len(recs))
	}

	first := recs[0]
	if first.StartYear != 2000 || first.EndYear != 2005 {
		t.Errorf("segment metrics test failed, first segment years %v..%v", first.StartYear, first.EndYear)
	}
	if first.StartValue != 10 || first.EndValue != 15 {
		t.Errorf("segment metrics test failed, first segment values %v..%v", first.StartValue, first.EndValue)
	}
	if first.Magnitude != 5 || first.Duration != 5 || first.Rate != 1 {
		t.Errorf("segment metrics test failed, first segment mag %v dur %v rate %v",
			first.Magnitude, first.Duration, first.Rate)
	}
	if first.DSNR != 2.5 {
		t.Errorf("segment metrics test failed, first segment dsnr %v", first.DSNR)
	}

	second := recs[1]
	if second.Magnitude != -3 || second.Duration != 5 {
		t.Errorf("segment metrics test failed, second segment mag %v dur %v", second.Magnitude, second.Duration)
	}
	if math.Abs(float64(second.Rate)+0.6) > 1e-6 {
		t.Errorf("segment metrics test failed, second segment rate %v", second.Rate)
	}
	if second.DSNR != -1.5 {
		t.Errorf("segment metrics test failed, second segment dsnr %v", second.DSNR)
	}

	for _, rec := range recs {
		if !rec.Valid() {
			t.Errorf("segment metrics test failed, %v..%v should be valid", rec.StartYear, rec.EndYear)
		}
	}
}

func TestZeroRmse(t *testing.T) {
	s := newTestSegRaster(1, 1, 4)
	setPixelVertices(s, 0, []float32{2000, 2010}, []float32{1, 2}, []float32{10, 20})

	recs := PixelSegmentMetrics(s, 0, 0)
	if len(recs) != 1 {
		t.Fatalf("zero rmse test failed, expecting 1 record, actual %d", len(recs))
	}
	if !isNaN32(recs[0].DSNR) {
		t.Errorf("zero rmse test failed, dsnr %v, expecting NaN", recs[0].DSNR)
	}
	if recs[0].Magnitude != 10 || recs[0].Rate != 1 {
		t.Errorf("zero rmse test failed, mag %v rate %v should survive", recs[0].Magnitude, recs[0].Rate)
	}
	if !recs[0].Valid() {
		t.Errorf("zero rmse test failed, record should stay valid")
	}
}

func TestDegenerateDuration(t *testing.T) {
	s := newTestSegRaster(1, 1, 4)
	setPixelVertices(s, 0, []float32{2005, 2005}, []float32{1, 2}, []float32{10, 20})

	recs := PixelSegmentMetrics(s, 0, 2)
	if len(recs) != 1 {
		t.Fatalf("degenerate duration test failed, expecting 1 record, actual %d", len(recs))
	}
	rec := recs[0]
	if rec.Duration != 0 {
		t.Errorf("degenerate duration test failed, duration %v", rec.Duration)
	}
	if !isNaN32(rec.Magnitude) || !isNaN32(rec.Rate) || !isNaN32(rec.DSNR) {
		t.Errorf("degenerate duration test failed, mag %v rate %v dsnr %v, expecting NaN",
			rec.Magnitude, rec.Rate, rec.DSNR)
	}
	if rec.Valid() {
		t.Errorf("degenerate duration test failed, record should be invalid")
	}
}

func TestNoSegments(t *testing.T) {
	s := newTestSegRaster(1, 1, 4)
	setPixelVertices(s, 0, []float32{2005}, []float32{1}, []float32{10})

	if recs := PixelSegmentMetrics(s, 0, 2); len(recs) != 0 {
		t.Errorf("no segments test failed, expecting no records, actual %d", len(recs))
	}
}
