package utils

import (
	"testing"
)

func TestGetCurrentTimeStamp(t *testing.T) {
	currentTime, err := GetCurrentTimeStamp([]string{})
	if currentTime == nil {
		t.Errorf("failed to get current time for empty timestamps array")
		return
	}

	timestamps := []string{"2015-01-01T00:00:00.000Z"}
	currentTime, err = GetCurrentTimeStamp(timestamps)
	if err != nil {
		t.Errorf("failed to parse current time: %v", timestamps)
		return
	}

	if timestamps[0] != currentTime.Format(ISOFormat) {
		t.Errorf("failed to get current time: %v", timestamps)
		return
	}
}

func TestLTSParamsChecker(t *testing.T) {
	compREMap := CompileLTSRegexMap()

	params := map[string][]string{
		"service": {"LTS"},
		"request": {"GetChangeMap"},
		"product": {"lt_annual"},
		"delta":   {"Loss"},
		"index":   {"NBR"},
		"year0":   {"2000"},
		"year1":   {"2010"},
		"bbox":    {"140.0,-37.0,150.0,-27.0"},
		"i":       {"12"},
		"j":       {"34"},
		"width":   {"256"},
		"height":  {"256"},
		"format":  {"png"},
		"mmu":     {"11"},
		"mag":     {"100.5"},
	}

	ltsParams, err := LTSParamsChecker(params, compREMap)
	if err != nil {
		t.Errorf("failed to parse valid params: %v", err)
		return
	}

	if ltsParams.Product == nil || *ltsParams.Product != "lt_annual" {
		t.Errorf("product not parsed: %v", ltsParams.Product)
	}
	if ltsParams.Delta == nil || *ltsParams.Delta != "loss" {
		t.Errorf("delta not lowercased: %v", ltsParams.Delta)
	}
	if ltsParams.Index == nil || *ltsParams.Index != "nbr" {
		t.Errorf("index not lowercased: %v", ltsParams.Index)
	}
	if ltsParams.Year0 == nil || *ltsParams.Year0 != 2000 || ltsParams.Year1 == nil || *ltsParams.Year1 != 2010 {
		t.Errorf("year range not parsed: %v, %v", ltsParams.Year0, ltsParams.Year1)
	}
	if len(ltsParams.BBox) != 4 || ltsParams.BBox[0] != 140.0 || ltsParams.BBox[3] != -27.0 {
		t.Errorf("bbox not parsed: %v", ltsParams.BBox)
	}
	if ltsParams.X == nil || *ltsParams.X != 12 || ltsParams.Y == nil || *ltsParams.Y != 34 {
		t.Errorf("i/j aliases not parsed: %v, %v", ltsParams.X, ltsParams.Y)
	}
	if ltsParams.MMU == nil || *ltsParams.MMU != 11 {
		t.Errorf("mmu not parsed: %v", ltsParams.MMU)
	}
	if ltsParams.Mag == nil || *ltsParams.Mag != 100.5 {
		t.Errorf("mag threshold not parsed: %v", ltsParams.Mag)
	}

	params["delta"] = []string{"sideways"}
	_, err = LTSParamsChecker(params, compREMap)
	if err == nil {
		t.Errorf("invalid delta accepted")
	}
	params["delta"] = []string{"all"}

	params["format"] = []string{"gif"}
	_, err = LTSParamsChecker(params, compREMap)
	if err == nil {
		t.Errorf("invalid format accepted")
	}
	params["format"] = []string{"png"}

	params["year0"] = []string{"20"}
	_, err = LTSParamsChecker(params, compREMap)
	if err == nil {
		t.Errorf("invalid year accepted")
	}
	params["year0"] = []string{"2000"}

	params["rangesubset"] = []string{"regrowth=nbr_mag/nbr_dur"}
	ltsParams, err = LTSParamsChecker(params, compREMap)
	if err != nil {
		t.Errorf("failed to parse rangesubset: %v", err)
		return
	}
	if ltsParams.BandExpr == nil || len(ltsParams.BandExpr.Expressions) != 1 {
		t.Errorf("band expression not parsed")
		return
	}
	if ltsParams.BandExpr.ExprNames[0] != "regrowth" {
		t.Errorf("band expression name not parsed: %v", ltsParams.BandExpr.ExprNames)
	}
}

func TestYearRange(t *testing.T) {
	product := &Product{StartYear: 1985, EndYear: 2020}

	year0, year1, err := YearRange(LTSParams{}, product)
	if err != nil || year0 != 1985 || year1 != 2020 {
		t.Errorf("default year range failed: %v, %v, %v", year0, year1, err)
	}

	year := 2005
	year0, year1, err = YearRange(LTSParams{Year: &year}, product)
	if err != nil || year0 != 2005 || year1 != 2005 {
		t.Errorf("single year pin failed: %v, %v, %v", year0, year1, err)
	}

	y0, y1 := 2010, 2000
	_, _, err = YearRange(LTSParams{Year0: &y0, Year1: &y1}, product)
	if err == nil {
		t.Errorf("empty year range accepted")
	}
}

func TestGetCoordinates(t *testing.T) {
	x, y := 128, 128
	width, height := 256, 256
	params := LTSParams{
		BBox:   []float64{140.0, -37.0, 150.0, -27.0},
		X:      &x,
		Y:      &y,
		Width:  &width,
		Height: &height,
	}

	lon, lat, err := GetCoordinates(params)
	if err != nil {
		t.Errorf("failed to compute coordinates: %v", err)
		return
	}
	if lon != 145.0 || lat != -32.0 {
		t.Errorf("wrong coordinates: %v, %v", lon, lat)
	}

	_, _, err = GetCoordinates(LTSParams{X: &x, Y: &y})
	if err == nil {
		t.Errorf("missing bbox accepted")
	}
}
