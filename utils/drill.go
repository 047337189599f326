package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	geo "github.com/nci/geometry"
)

// DrillParams contains the serialised version
// of the parameters contained in a drill request.
type DrillParams struct {
	Service    *string               `json:"service"`
	Request    *string               `json:"request"`
	Identifier *string               `json:"identifier"`
	Product    *string               `json:"product"`
	Index      *string               `json:"index"`
	Year0      *int                  `json:"year0"`
	Year1      *int                  `json:"year1"`
	Format     *string               `json:"format"`
	FeatCol    geo.FeatureCollection `json:"feature_collection"`
	GeometryId *string               `json:"geometry_id"`
}

// DrillRegexpMap maps drill request parameters to
// regular expressions for doing validation
// when parsing.
var DrillRegexpMap = map[string]string{"service": `^LTS$`,
	"request": `^GetCapabilities$|^DescribeDrill$|^Execute$`,
	"year":    `^[0-9]{4}$`,
	"name":    `^[A-Za-z_][A-Za-z0-9_]*$`,
	"format":  `^(?i)(?:csv|json)$`}

func CompileDrillRegexMap() map[string]*regexp.Regexp {
	REMap := make(map[string]*regexp.Regexp)
	for key, re := range DrillRegexpMap {
		REMap[key] = regexp.MustCompile(re)
	}

	return REMap
}

// ParseDrillPost decodes a drill POST body into the flat parameter
// map shared with the KVP path. The body is a JSON document:
// {"identifier":..., "product":..., "index":..., "year0":...,
// "year1":..., "geometry": <GeoJSON feature collection>}.
func ParseDrillPost(rc io.ReadCloser) (map[string][]string, error) {
	buf := new(bytes.Buffer)
	buf.ReadFrom(rc)
	rc.Close()

	type drillBody struct {
		Identifier string          `json:"identifier"`
		Product    string          `json:"product"`
		Index      string          `json:"index"`
		Year0      *int            `json:"year0"`
		Year1      *int            `json:"year1"`
		Format     string          `json:"format"`
		GeometryId string          `json:"geometry_id"`
		Geometry   json.RawMessage `json:"geometry"`
	}

	var body drillBody
	err := json.Unmarshal(buf.Bytes(), &body)
	if err != nil {
		return map[string][]string{}, fmt.Errorf("Error parsing drill request body: %v", err)
	}

	parsedBody := map[string][]string{
		"service": {"LTS"},
		"request": {"Execute"},
	}

	if len(strings.TrimSpace(body.Identifier)) > 0 {
		parsedBody["identifier"] = []string{body.Identifier}
	}
	if len(strings.TrimSpace(body.Product)) > 0 {
		parsedBody["product"] = []string{body.Product}
	}
	if len(strings.TrimSpace(body.Index)) > 0 {
		parsedBody["index"] = []string{body.Index}
	}
	if body.Year0 != nil {
		parsedBody["year0"] = []string{fmt.Sprintf("%d", *body.Year0)}
	}
	if body.Year1 != nil {
		parsedBody["year1"] = []string{fmt.Sprintf("%d", *body.Year1)}
	}
	if len(strings.TrimSpace(body.Format)) > 0 {
		parsedBody["format"] = []string{body.Format}
	}
	if len(strings.TrimSpace(body.GeometryId)) > 0 {
		parsedBody["geometry_id"] = []string{body.GeometryId}
	}
	if len(body.Geometry) > 0 {
		parsedBody["geometry"] = []string{string(body.Geometry)}
	}

	return parsedBody, nil
}

// DrillParamsChecker checks and marshals the content
// of the parameters of a drill request into a
// DrillParams struct.
func DrillParamsChecker(params map[string][]string, compREMap map[string]*regexp.Regexp) (DrillParams, error) {

	jsonFields := []string{}

	if service, serviceOK := params["service"]; serviceOK {
		if compREMap["service"].MatchString(service[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"service":"%s"`, service[0]))
		}
	} else {
		jsonFields = append(jsonFields, `"service":""`)
	}

	if request, requestOK := params["request"]; requestOK {
		if compREMap["request"].MatchString(request[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"request":"%s"`, request[0]))
		} else {
			return DrillParams{}, fmt.Errorf("%s is not a valid drill request", request[0])
		}
	} else {
		return DrillParams{}, fmt.Errorf("drill 'request' not found")
	}

	if id, idOK := params["identifier"]; idOK {
		jsonFields = append(jsonFields, fmt.Sprintf(`"identifier":"%s"`, id[0]))
	} else {
		jsonFields = append(jsonFields, `"identifier":""`)
	}

	if product, productOK := params["product"]; productOK {
		if !compREMap["name"].MatchString(product[0]) {
			return DrillParams{}, fmt.Errorf("invalid product name: %v", product[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"product":"%s"`, product[0]))
	}

	if index, indexOK := params["index"]; indexOK {
		if !compREMap["name"].MatchString(index[0]) {
			return DrillParams{}, fmt.Errorf("invalid index name: %v", index[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"index":"%s"`, strings.ToLower(index[0])))
	}

	for _, key := range []string{"year0", "year1"} {
		if val, valOK := params[key]; valOK {
			if !compREMap["year"].MatchString(val[0]) {
				return DrillParams{}, fmt.Errorf("%s must be a 4 digit year: %v", key, val[0])
			}
			jsonFields = append(jsonFields, fmt.Sprintf(`"%s":%s`, key, val[0]))
		}
	}

	if format, formatOK := params["format"]; formatOK {
		if !compREMap["format"].MatchString(format[0]) {
			return DrillParams{}, fmt.Errorf("unsupported drill format: %v", format[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"format":"%s"`, strings.ToLower(format[0])))
	}

	if geom, geomOK := params["geometry"]; geomOK {
		jsonFields = append(jsonFields, fmt.Sprintf(`"feature_collection":%s`, geom[0]))
	}

	if geometryId, geometryIdOk := params["geometry_id"]; geometryIdOk {
		jsonFields = append(jsonFields, fmt.Sprintf(`"geometry_id":"%s"`, geometryId[0]))
	}

	jsonParams := fmt.Sprintf("{%s}", strings.Join(jsonFields, ","))
	var drillParams DrillParams
	err := json.Unmarshal([]byte(jsonParams), &drillParams)
	return drillParams, err
}

const earthRadius = 6378137.0

// GetArea computes the approximate area in square metres of a WGS84
// polygon using the spherical excess of its rings. Holes subtract.
func GetArea(wgs84Poly geo.Geometry) float64 {
	switch geom := wgs84Poly.(type) {
	case *geo.Polygon:
		return polyArea(*geom)
	case *geo.MultiPolygon:
		var total float64
		for _, poly := range *geom {
			total += polyArea(poly)
		}
		return total
	}
	return 0
}

func polyArea(rings geo.Polygon) float64 {
	var total float64
	for iRing, ring := range rings {
		area := ringArea(ring)
		if iRing == 0 {
			total += area
		} else {
			total -= area
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

func ringArea(ring geo.LinearRing) float64 {
	if len(ring) < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < len(ring); i++ {
		p0 := ring[i]
		p1 := ring[(i+1)%len(ring)]
		lon0 := p0.X * math.Pi / 180.0
		lon1 := p1.X * math.Pi / 180.0
		lat0 := p0.Y * math.Pi / 180.0
		lat1 := p1.Y * math.Pi / 180.0
		sum += (lon1 - lon0) * (2 + math.Sin(lat0) + math.Sin(lat1))
	}

	return math.Abs(sum * earthRadius * earthRadius / 2.0)
}

func GetProcessIndex(params DrillParams, config *Config) (int, error) {
	if params.Identifier != nil {
		for i := range config.Processes {
			if config.Processes[i].Identifier == *params.Identifier {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%s not found in config processes", *params.Identifier)
	}
	return -1, fmt.Errorf("drill request doesn't specify a process")
}
