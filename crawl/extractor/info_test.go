package extractor

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/nci/ltsky/utils"
)

func writeTestGranule(t *testing.T, dir, name string) string {
	hdr := &utils.ContainerHeader{
		Product:      "lt_annual",
		Width:        2,
		Height:       2,
		GeoTransform: []float64{100.0, 0.5, 0, -30.0, 0, -0.5},
		Bands: []*utils.ContainerBand{
			{NameSpace: "ftv_ndvi_fit", ArrayType: "Float32", Rows: 1, Cols: 2,
				Dates: utils.GenerateAnnualDates(2001, 2002), NoData: -9999},
			{NameSpace: "rmse", ArrayType: "Float32", Rows: 1, Cols: 1, NoData: -9999},
		},
	}

	var payloads [][]byte
	for _, band := range hdr.Bands {
		size, err := band.SizeBytes(hdr.Width, hdr.Height)
		if err != nil {
			t.Fatalf("failed to size band %s: %v", band.NameSpace, err)
		}
		payloads = append(payloads, make([]byte, size))
	}

	var buf bytes.Buffer
	if err := utils.EncodeContainer(&buf, hdr, payloads); err != nil {
		t.Fatalf("failed to encode granule: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write granule: %v", err)
	}
	return path
}

func TestExtractGranuleInfo(t *testing.T) {
	dir, err := ioutil.TempDir("", "extract")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := writeTestGranule(t, dir, "granule.lts")

	records, err := ExtractGranuleInfo(path, "lt_annual")
	if err != nil {
		t.Errorf("ExtractGranuleInfo test failed: %v", err)
		return
	}

	if len(records) != 2 {
		t.Errorf("ExtractGranuleInfo test failed, expecting 2 records, actual %d", len(records))
		return
	}

	ftv := records[0]
	if ftv.NameSpace != "ftv_ndvi_fit" || ftv.ArrayType != "Float32" || ftv.Rows != 1 || ftv.Cols != 2 {
		t.Errorf("ExtractGranuleInfo band test failed, actual %+v", ftv)
	}
	if ftv.Product != "lt_annual" || ftv.Path != path {
		t.Errorf("ExtractGranuleInfo identity test failed, actual %+v", ftv)
	}
	if len(ftv.Years) != 2 || ftv.Years[0] != 2001 || ftv.Years[1] != 2002 {
		t.Errorf("ExtractGranuleInfo years test failed, expecting [2001 2002], actual %v", ftv.Years)
	}
	if len(records[1].Years) != 0 {
		t.Errorf("ExtractGranuleInfo years test failed, expecting no years, actual %v", records[1].Years)
	}

	if ftv.MinX != 100.0 || ftv.MaxX != 101.0 || ftv.MinY != -31.0 || ftv.MaxY != -30.0 {
		t.Errorf("ExtractGranuleInfo extent test failed, actual [%v %v %v %v]",
			ftv.MinX, ftv.MinY, ftv.MaxX, ftv.MaxY)
	}

	if ftv.Created.IsZero() {
		t.Errorf("ExtractGranuleInfo created test failed, expecting file mtime, actual zero")
	}
	if len(ftv.Mission) != 0 {
		t.Errorf("ExtractGranuleInfo sidecar test failed, expecting no mission, actual %v", ftv.Mission)
	}
}

func TestExtractGranuleInfoSidecar(t *testing.T) {
	dir, err := ioutil.TempDir("", "extract")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := writeTestGranule(t, dir, "granule.lts")

	sidecar := "mission: landsat-8\ntile_id: T55HFA\nprocessing_baseline: \"04.00\"\n"
	if err := ioutil.WriteFile(path+".yaml", []byte(sidecar), 0644); err != nil {
		t.Fatalf("failed to write sidecar: %v", err)
	}

	records, err := ExtractGranuleInfo(path, "lt_annual")
	if err != nil {
		t.Errorf("ExtractGranuleInfo test failed: %v", err)
		return
	}

	for _, rec := range records {
		if rec.Mission != "landsat-8" {
			t.Errorf("sidecar merge test failed, expecting landsat-8, actual %v", rec.Mission)
		}
		if rec.TileID != "T55HFA" {
			t.Errorf("sidecar merge test failed, expecting T55HFA, actual %v", rec.TileID)
		}
		if rec.ProcessingBaseline != "04.00" {
			t.Errorf("sidecar merge test failed, expecting 04.00, actual %v", rec.ProcessingBaseline)
		}
	}
}

func TestGranuleCrawler(t *testing.T) {
	dir, err := ioutil.TempDir("", "crawler")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	subDir := filepath.Join(dir, "x_100")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("failed to create sub dir: %v", err)
	}

	writeTestGranule(t, dir, "a.lts")
	writeTestGranule(t, subDir, "b.lts")
	if err := ioutil.WriteFile(filepath.Join(dir, "a.lts.yaml"), []byte("mission: m\n"), 0644); err != nil {
		t.Fatalf("failed to write sidecar: %v", err)
	}
	if err := ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	expr, err := ParsePatternExpression(`type == 'd' || path =~ '\.lts$'`)
	if err != nil {
		t.Fatalf("failed to parse pattern: %v", err)
	}

	crawler := NewGranuleCrawler(4, expr, false)

	var paths []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for path := range crawler.Outputs {
			paths = append(paths, path)
		}
	}()

	if err := crawler.Crawl(dir); err != nil {
		t.Errorf("crawler test failed: %v", err)
		return
	}
	<-done

	sort.Strings(paths)
	expected := []string{filepath.Join(dir, "a.lts"), filepath.Join(subDir, "b.lts")}
	if len(paths) != len(expected) {
		t.Errorf("crawler test failed, expecting %v, actual %v", expected, paths)
		return
	}
	for i, path := range expected {
		if paths[i] != path {
			t.Errorf("crawler test failed, expecting %v, actual %v", path, paths[i])
		}
	}
}
