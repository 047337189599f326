package utils

import (
	"testing"
)

func TestParseQuery(t *testing.T) {
	m, err := ParseQuery("service=LTS&request=GetChangeMap&product=lt_annual")
	if err != nil {
		t.Errorf("failed to parse query: %v", err)
		return
	}
	if m.Get("service") != "LTS" || m.Get("request") != "GetChangeMap" || m.Get("product") != "lt_annual" {
		t.Errorf("wrong query values: %v", m)
	}

	m, err = ParseQuery("SERVICE=LTS&Product=lt_annual")
	if err != nil {
		t.Errorf("failed to parse query: %v", err)
		return
	}
	if m.Get("service") != "LTS" || m.Get("product") != "lt_annual" {
		t.Errorf("keys not lowercased: %v", m)
	}
}

func TestParseQueryRangeSubset(t *testing.T) {
	m, err := ParseQuery("rangesubset=regrowth%3Dnbr_mag%2Fnbr_dur")
	if err != nil {
		t.Errorf("failed to parse query: %v", err)
		return
	}
	if m.Get("rangesubset") != "regrowth=nbr_mag/nbr_dur" {
		t.Errorf("percent escape not decoded: %v", m.Get("rangesubset"))
	}

	m, err = ParseQuery("rangesubset=total=nbr_mag+ndvi_mag&product=a+b")
	if err != nil {
		t.Errorf("failed to parse query: %v", err)
		return
	}
	if m.Get("rangesubset") != "total=nbr_mag+ndvi_mag" {
		t.Errorf("plus sign not preserved in rangesubset: %v", m.Get("rangesubset"))
	}
	if m.Get("product") != "a b" {
		t.Errorf("plus sign not decoded as space outside rangesubset: %v", m.Get("product"))
	}

	m, err = ParseQuery(`rangesubset=a\&b&x=1`)
	if err != nil {
		t.Errorf("failed to parse query: %v", err)
		return
	}
	if m.Get("rangesubset") != "a&b" {
		t.Errorf("escaped ampersand not preserved: %v", m.Get("rangesubset"))
	}
	if m.Get("x") != "1" {
		t.Errorf("parameter after escaped ampersand lost: %v", m)
	}
}
