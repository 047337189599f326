package processor

import (
	"context"
	"math"
	"testing"

	pb "github.com/nci/ltsky/worker/segservice"
)

func TestReduceYear(t *testing.T) {
	values := []float64{7, 2, 9, 4, 1, 10, 5, 3, 8, 6}
	row := ReduceYear(values, 10)
	if row == nil {
		t.Fatalf("reduce year test failed, expecting a row, actual nil")
	}

	if row.Count != 10 {
		t.Errorf("reduce year count test failed, expecting %v, actual %v", 10, row.Count)
	}
	if math.Abs(row.Mean-5.5) > 1e-9 {
		t.Errorf("reduce year mean test failed, expecting %v, actual %v", 5.5, row.Mean)
	}
	if row.Min != 1 || row.Max != 10 {
		t.Errorf("reduce year min/max test failed, expecting %v/%v, actual %v/%v", 1, 10, row.Min, row.Max)
	}

	expDeciles := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if len(row.Deciles) != len(expDeciles) {
		t.Fatalf("reduce year decile count test failed, expecting %v, actual %v", len(expDeciles), len(row.Deciles))
	}
	for i, d := range expDeciles {
		if row.Deciles[i] != d {
			t.Errorf("reduce year decile %d test failed, expecting %v, actual %v", i, d, row.Deciles[i])
		}
	}
}

func TestReduceYearQuartiles(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	row := ReduceYear(values, 4)
	expDeciles := []float64{3, 5, 8}
	if len(row.Deciles) != len(expDeciles) {
		t.Fatalf("reduce year quartile count test failed, expecting %v, actual %v", len(expDeciles), len(row.Deciles))
	}
	for i, d := range expDeciles {
		if row.Deciles[i] != d {
			t.Errorf("reduce year quartile %d test failed, expecting %v, actual %v", i, d, row.Deciles[i])
		}
	}
}

func TestReduceYearNaNFilter(t *testing.T) {
	values := []float64{math.NaN(), 3, math.NaN(), 5}
	row := ReduceYear(values, 1)
	if row.Count != 2 {
		t.Errorf("reduce year nan filter test failed, expecting %v, actual %v", 2, row.Count)
	}
	if math.Abs(row.Mean-4) > 1e-9 {
		t.Errorf("reduce year nan filter mean test failed, expecting %v, actual %v", 4.0, row.Mean)
	}
	if len(row.Deciles) != 0 {
		t.Errorf("reduce year nan filter decile test failed, expecting %v, actual %v", 0, len(row.Deciles))
	}

	if ReduceYear([]float64{math.NaN()}, 1) != nil {
		t.Errorf("reduce year all-nan test failed, expecting nil row")
	}
}

func TestDrillMergerPoolsAcrossGranules(t *testing.T) {
	errChan := make(chan error, 10)
	dm := NewDrillMerger(context.Background(), errChan)

	go func() {
		dm.In <- &DrillSamples{NameSpace: "nbr", Samples: []*pb.YearSamples{
			{Year: 2001, Values: []float64{1, 2}},
			{Year: 2000, Values: []float64{10}},
		}}
		dm.In <- &DrillSamples{NameSpace: "nbr", Samples: []*pb.YearSamples{
			{Year: 2001, Values: []float64{3, 4}},
		}}
		close(dm.In)
	}()
	go dm.Run("nbr", 1, false)

	out, ok := <-dm.Out
	if !ok {
		t.Fatalf("drill merger test failed, expecting an output, actual closed channel")
	}
	if out.NameSpace != "nbr" {
		t.Errorf("drill merger namespace test failed, expecting %v, actual %v", "nbr", out.NameSpace)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("drill merger row count test failed, expecting %v, actual %v", 2, len(out.Rows))
	}

	if out.Rows[0].Year != 2000 || out.Rows[0].Count != 1 || out.Rows[0].Mean != 10 {
		t.Errorf("drill merger year 2000 test failed, actual %+v", out.Rows[0])
	}
	if out.Rows[1].Year != 2001 || out.Rows[1].Count != 4 || math.Abs(out.Rows[1].Mean-2.5) > 1e-9 {
		t.Errorf("drill merger year 2001 test failed, actual %+v", out.Rows[1])
	}

	expCSV := "year,count,mean,min,max\n2000,1,10.000000,10.000000,10.000000\n2001,4,2.500000,1.000000,4.000000\n"
	if out.CSV != expCSV {
		t.Errorf("drill merger csv test failed, expecting %q, actual %q", expCSV, out.CSV)
	}
}

func TestGeometryBBox(t *testing.T) {
	geom := `{"type": "Polygon", "coordinates": [[[146.1, -34.2], [147.8, -34.2], [147.8, -33.5], [146.1, -33.5], [146.1, -34.2]]]}`
	bbox, err := geometryBBox([]byte(geom))
	if err != nil {
		t.Fatalf("geometry bbox test failed, unexpected error: %v", err)
	}
	exp := []float64{146.1, -34.2, 147.8, -33.5}
	for i, v := range exp {
		if bbox[i] != v {
			t.Errorf("geometry bbox component %d test failed, expecting %v, actual %v", i, v, bbox[i])
		}
	}

	point := `{"type": "Point", "coordinates": [146.5, -33.9]}`
	bbox, err = geometryBBox([]byte(point))
	if err != nil {
		t.Fatalf("geometry bbox point test failed, unexpected error: %v", err)
	}
	if bbox[0] != 146.5 || bbox[2] != 146.5 || bbox[1] != -33.9 || bbox[3] != -33.9 {
		t.Errorf("geometry bbox point test failed, actual %v", bbox)
	}

	if _, err = geometryBBox([]byte(`{"type": "Polygon"}`)); err == nil {
		t.Errorf("geometry bbox test failed, expecting an error for missing coordinates")
	}
}
