package processor

import (
	"testing"

	"github.com/nci/ltsky/utils"
)

func testRecords() []SegmentRecord {
	return []SegmentRecord{
		{StartYear: 2000, EndYear: 2004, StartValue: 10, EndValue: 18, Magnitude: 8, Duration: 4, Rate: 2, DSNR: 4},
		{StartYear: 2004, EndYear: 2010, StartValue: 18, EndValue: 12, Magnitude: -6, Duration: 6, Rate: -1, DSNR: -3},
		{StartYear: 2010, EndYear: 2012, StartValue: 12, EndValue: 12, Magnitude: 0, Duration: 2, Rate: 0, DSNR: 0},
	}
}

func TestClassifyDeltaPartition(t *testing.T) {
	recs := testRecords()

	gain, err := ClassifySegments(recs, ChangeOptions{Delta: DeltaGain})
	if err != nil {
		t.Fatalf("classify test failed, %v", err)
	}
	loss, err := ClassifySegments(recs, ChangeOptions{Delta: DeltaLoss})
	if err != nil {
		t.Fatalf("classify test failed, %v", err)
	}

	if len(gain) != 1 || gain[0].StartYear != 2004 {
		t.Errorf("classify test failed, gain records %v", gain)
	}
	if len(loss) != 1 || loss[0].StartYear != 2000 {
		t.Errorf("classify test failed, loss records %v", loss)
	}
	if len(gain)+len(loss) != 2 {
		t.Errorf("classify test failed, zero-magnitude segment must match neither direction")
	}

	if gain[0].Magnitude != 6 || gain[0].Rate != 1 || gain[0].DSNR != 3 {
		t.Errorf("classify test failed, gain magnitudes must be absolute, got mag %v rate %v dsnr %v",
			gain[0].Magnitude, gain[0].Rate, gain[0].DSNR)
	}
	if gain[0].StartValue != 18 || gain[0].EndValue != 12 {
		t.Errorf("classify test failed, endpoint values must be untouched without flip, got %v..%v",
			gain[0].StartValue, gain[0].EndValue)
	}
}

func TestClassifyIndexFlip(t *testing.T) {
	recs := testRecords()

	loss, err := ClassifySegments(recs, ChangeOptions{Delta: DeltaLoss, IndexFlip: true})
	if err != nil {
		t.Fatalf("classify flip test failed, %v", err)
	}
	if len(loss) != 1 {
		t.Fatalf("classify flip test failed, expecting 1 loss record, actual %d", len(loss))
	}
	if loss[0].StartValue != -10 || loss[0].EndValue != -18 {
		t.Errorf("classify flip test failed, endpoint values %v..%v", loss[0].StartValue, loss[0].EndValue)
	}
	if loss[0].Magnitude != 8 {
		t.Errorf("classify flip test failed, magnitude %v must be absolute", loss[0].Magnitude)
	}
}

func TestClassifyAllRightOriented(t *testing.T) {
	recs := testRecords()

	out, err := ClassifySegments(recs, ChangeOptions{Delta: DeltaAll, RightOriented: true, IndexFlip: true})
	if err != nil {
		t.Fatalf("classify orientation test failed, %v", err)
	}
	if len(out) != len(recs) {
		t.Fatalf("classify orientation test failed, delta all must keep all records")
	}
	if out[0].Magnitude != -8 || out[0].StartValue != -10 || out[0].Rate != -2 || out[0].DSNR != -4 {
		t.Errorf("classify orientation test failed, first record %+v", out[0])
	}
	if out[0].StartYear != 2000 || out[0].Duration != 4 {
		t.Errorf("classify orientation test failed, years and duration must be untouched")
	}

	same, err := ClassifySegments(recs, ChangeOptions{Delta: DeltaAll, RightOriented: true})
	if err != nil {
		t.Fatalf("classify orientation test failed, %v", err)
	}
	if same[0].Magnitude != recs[0].Magnitude {
		t.Errorf("classify orientation test failed, orientation without flip must be a no-op")
	}
}

func TestClassifyInvalidDelta(t *testing.T) {
	if _, err := ClassifySegments(testRecords(), ChangeOptions{Delta: "sideways"}); err == nil {
		t.Errorf("classify test failed, invalid delta accepted")
	}
}

func TestBuildChangeStack(t *testing.T) {
	s := newTestSegRaster(3, 1, 4)
	setPixelVertices(s, 0, []float32{2000, 2005, 2010}, []float32{1, 2, 3}, []float32{10, 15, 12})
	setPixelVertices(s, 1, []float32{2000, 2005, 2010}, []float32{1, 2, 3}, []float32{10, 15, 12})

	rmse := &utils.Float32Raster{NameSpace: "rmse", Data: []float32{2, 0, 0}, Height: 1, Width: 3, NoData: -9999}

	cs, err := BuildChangeStack(s, rmse, 6, ChangeOptions{Delta: DeltaAll})
	if err != nil {
		t.Fatalf("change stack test failed, %v", err)
	}

	yod := cs.pixelField(0, 0)
	if yod[0] != 2000 || yod[1] != 2005 || yod[2] != ChangeNoData {
		t.Errorf("change stack test failed, yod row %v", yod)
	}
	mag := cs.pixelField(0, 4)
	if mag[0] != 5 || mag[1] != -3 {
		t.Errorf("change stack test failed, mag row %v", mag)
	}
	dsnr := cs.pixelField(0, 7)
	if dsnr[0] != 2.5 || dsnr[1] != -1.5 {
		t.Errorf("change stack test failed, dsnr row %v", dsnr)
	}

	dsnr = cs.pixelField(1, 7)
	if dsnr[0] != ChangeNoData || dsnr[1] != ChangeNoData {
		t.Errorf("change stack test failed, dsnr row %v, zero rmse must read as no-data", dsnr)
	}
	if cs.pixelField(1, 4)[0] != 5 {
		t.Errorf("change stack test failed, zero rmse must not mask magnitudes, mag row %v", cs.pixelField(1, 4))
	}

	for f := 0; f < NumChangeFields; f++ {
		for _, v := range cs.pixelField(2, f) {
			if v != ChangeNoData {
				t.Errorf("change stack test failed, empty pixel field %d reads %v", f, v)
			}
		}
	}
}

func TestFieldRaster(t *testing.T) {
	s := newTestSegRaster(1, 1, 4)
	setPixelVertices(s, 0, []float32{2000, 2005, 2010}, []float32{1, 2, 3}, []float32{10, 15, 12})

	cs, err := BuildChangeStack(s, nil, 6, ChangeOptions{Delta: DeltaAll})
	if err != nil {
		t.Fatalf("field raster test failed, %v", err)
	}

	for _, tc := range []struct {
		field, sort string
		expected    float32
	}{
		{"mag", "greatest", 5},
		{"mag", "least", -3},
		{"yod", "newest", 2005},
		{"yod", "oldest", 2000},
		{"dur", "", 5},
		{"endyr", "newest", 2010},
	} {
		out, err := cs.FieldRaster(tc.field, tc.sort)
		if err != nil {
			t.Fatalf("field raster test failed, %v %v, %v", tc.field, tc.sort, err)
		}
		if out.Data[0] != tc.expected {
			t.Errorf("field raster test failed, %v sorted %v, expecting %v, actual %v",
				tc.field, tc.sort, tc.expected, out.Data[0])
		}
	}

	if _, err := cs.FieldRaster("bogus", "greatest"); err == nil {
		t.Errorf("field raster test failed, invalid field accepted")
	}
	if _, err := cs.FieldRaster("mag", "bogus"); err == nil {
		t.Errorf("field raster test failed, invalid sort accepted")
	}
}
