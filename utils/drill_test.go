package utils

import (
	"io/ioutil"
	"strings"
	"testing"

	geo "github.com/nci/geometry"
)

func squareRing(x0, y0, x1, y1 float64) geo.LinearRing {
	return geo.LinearRing{
		geo.Point{X: x0, Y: y0},
		geo.Point{X: x1, Y: y0},
		geo.Point{X: x1, Y: y1},
		geo.Point{X: x0, Y: y1},
		geo.Point{X: x0, Y: y0},
	}
}

func TestGetArea(t *testing.T) {
	square := &geo.Polygon{squareRing(0, 0, 1, 1)}

	// 1x1 degree at the equator is roughly 12,300 km^2
	area := GetArea(square)
	if area < 1.2e10 || area > 1.3e10 {
		t.Errorf("square area out of range: %v", area)
	}

	holed := &geo.Polygon{
		squareRing(0, 0, 2, 2),
		squareRing(0.5, 0.5, 1.5, 1.5),
	}
	holedArea := GetArea(holed)
	outer := GetArea(&geo.Polygon{squareRing(0, 0, 2, 2)})
	if holedArea >= outer || holedArea <= 0 {
		t.Errorf("hole did not subtract: %v vs %v", holedArea, outer)
	}

	multi := &geo.MultiPolygon{
		geo.Polygon{squareRing(0, 0, 1, 1)},
		geo.Polygon{squareRing(0, 0, 1, 1)},
	}
	multiArea := GetArea(multi)
	if multiArea < 1.9*area || multiArea > 2.1*area {
		t.Errorf("multipolygon area is not the sum of its parts: %v vs %v", multiArea, area)
	}

	if GetArea(&geo.Point{X: 0, Y: 0}) != 0 {
		t.Errorf("point geometry has non-zero area")
	}
}

func TestDrillParamsChecker(t *testing.T) {
	compREMap := CompileDrillRegexMap()

	params := map[string][]string{
		"service":    {"LTS"},
		"request":    {"Execute"},
		"identifier": {"SegmentTrends"},
		"product":    {"lt_annual"},
		"index":      {"NBR"},
		"year0":      {"2000"},
		"year1":      {"2010"},
		"format":     {"csv"},
		"geometry":   {`{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[145.0, -32.0], [145.1, -32.0], [145.1, -32.1], [145.0, -32.1], [145.0, -32.0]]]}}]}`},
	}

	drillParams, err := DrillParamsChecker(params, compREMap)
	if err != nil {
		t.Errorf("failed to parse valid drill params: %v", err)
		return
	}

	if drillParams.Identifier == nil || *drillParams.Identifier != "SegmentTrends" {
		t.Errorf("identifier not parsed: %v", drillParams.Identifier)
	}
	if drillParams.Index == nil || *drillParams.Index != "nbr" {
		t.Errorf("index not lowercased: %v", drillParams.Index)
	}
	if drillParams.Year0 == nil || *drillParams.Year0 != 2000 {
		t.Errorf("year0 not parsed: %v", drillParams.Year0)
	}
	if len(drillParams.FeatCol.Features) != 1 {
		t.Errorf("feature collection not parsed: %v", drillParams.FeatCol)
	}

	params["request"] = []string{"LaunchMissiles"}
	_, err = DrillParamsChecker(params, compREMap)
	if err == nil {
		t.Errorf("invalid request accepted")
	}
	params["request"] = []string{"Execute"}

	params["format"] = []string{"xml"}
	_, err = DrillParamsChecker(params, compREMap)
	if err == nil {
		t.Errorf("invalid format accepted")
	}
}

func TestParseDrillPost(t *testing.T) {
	body := `{
		"identifier": "SegmentTrends",
		"product": "lt_annual",
		"index": "nbr",
		"year0": 2000,
		"year1": 2010,
		"geometry": {"type": "FeatureCollection", "features": []}
	}`

	params, err := ParseDrillPost(ioutil.NopCloser(strings.NewReader(body)))
	if err != nil {
		t.Errorf("failed to parse drill post body: %v", err)
		return
	}

	if params["service"][0] != "LTS" || params["request"][0] != "Execute" {
		t.Errorf("implied service/request missing: %v", params)
	}
	if params["identifier"][0] != "SegmentTrends" || params["product"][0] != "lt_annual" {
		t.Errorf("drill post fields not extracted: %v", params)
	}
	if params["year0"][0] != "2000" || params["year1"][0] != "2010" {
		t.Errorf("drill post years not extracted: %v", params)
	}
	if len(params["geometry"]) != 1 || !strings.Contains(params["geometry"][0], "FeatureCollection") {
		t.Errorf("drill post geometry not extracted: %v", params)
	}

	_, err = ParseDrillPost(ioutil.NopCloser(strings.NewReader("{ not json")))
	if err == nil {
		t.Errorf("malformed drill post body accepted")
	}
}
