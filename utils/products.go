package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const ISOZeroTime = "0001-01-01T00:00:00.000Z"

// LTSParams contains the serialised version
// of the parameters contained in a product request.
type LTSParams struct {
	Service   *string    `json:"service,omitempty"`
	Request   *string    `json:"request,omitempty"`
	Product   *string    `json:"product,omitempty"`
	Delta     *string    `json:"delta,omitempty"`
	Sort      *string    `json:"sort,omitempty"`
	Index     *string    `json:"index,omitempty"`
	RBand     *string    `json:"r,omitempty"`
	GBand     *string    `json:"g,omitempty"`
	BBand     *string    `json:"b,omitempty"`
	Bands     []string   `json:"bands,omitempty"`
	Year      *int       `json:"year,omitempty"`
	Year0     *int       `json:"year0,omitempty"`
	Year1     *int       `json:"year1,omitempty"`
	BBox      []float64  `json:"bbox,omitempty"`
	X         *int       `json:"x,omitempty"`
	Y         *int       `json:"y,omitempty"`
	Height    *int       `json:"height,omitempty"`
	Width     *int       `json:"width,omitempty"`
	Format    *string    `json:"format,omitempty"`
	Field     *string    `json:"field,omitempty"`
	MMU       *int       `json:"mmu,omitempty"`
	Mag       *float64   `json:"mag,omitempty"`
	Dur       *float64   `json:"dur,omitempty"`
	Preval    *float64   `json:"preval,omitempty"`
	MaskFill  *float64   `json:"mask_fill,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
	BandExpr  *BandExpressions
}

// LTSRegexpMap maps product request parameters to
// regular expressions for doing validation
// when parsing.
// --- These regexp do not avoid every case of
// --- invalid code but filter most of the malformed
// --- cases. Error free JSON deserialisation into types
// --- also validates correct values.
var LTSRegexpMap = map[string]string{"service": `^LTS$`,
	"request": `^GetCapabilities$|^GetChangeMap$|^GetVertexStack$|^GetFittedSeries$|^GetComposite$|^GetSegmentCount$|^GetBandStack$|^ProbePixel$`,
	"bbox":    `^[-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?(,[-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?){3}$`,
	"x":       `^[0-9]+$`,
	"y":       `^[0-9]+$`,
	"width":   `^[0-9]+$`,
	"height":  `^[0-9]+$`,
	"year":    `^[0-9]{4}$`,
	"mmu":     `^[0-9]+$`,
	"float":   `^[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?$`,
	"delta":   `^(?i)(?:all|gain|loss)$`,
	"sort":    `^(?i)(?:greatest|least|newest|oldest)$`,
	"field":   `^(?i)(?:yod|mag|dur|preval|rate|dsnr)$`,
	"format":  `^(?i)(?:png|jpeg|lts|json|csv)$`,
	"name":    `^[A-Za-z_][A-Za-z0-9_]*$`,
	"time":    `^\d{4}-(?:1[0-2]|0[1-9])-(?:3[01]|0[1-9]|[12][0-9])T[0-2]\d:[0-5]\d:[0-5]\d\.\d+Z$`}

// BBox2Geot return the geotransform from the
// parameters received in a product request
func BBox2Geot(width, height int, bbox []float64) []float64 {
	return []float64{bbox[0], (bbox[2] - bbox[0]) / float64(width), 0, bbox[3], 0, (bbox[1] - bbox[3]) / float64(height)}
}

func CompileLTSRegexMap() map[string]*regexp.Regexp {
	REMap := make(map[string]*regexp.Regexp)
	for key, re := range LTSRegexpMap {
		REMap[key] = regexp.MustCompile(re)
	}

	return REMap
}

// LTSParamsChecker checks and marshals the content
// of the parameters of a product request into an
// LTSParams struct.
func LTSParamsChecker(params map[string][]string, compREMap map[string]*regexp.Regexp) (LTSParams, error) {

	jsonFields := []string{}
	var ltsParams LTSParams

	if service, serviceOK := params["service"]; serviceOK {
		if compREMap["service"].MatchString(service[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"service":"%s"`, service[0]))
		}
	}

	if request, requestOK := params["request"]; requestOK {
		jsonFields = append(jsonFields, fmt.Sprintf(`"request":"%s"`, request[0]))
	}

	var products []string
	if _products, productsOK := params["products"]; productsOK {
		products = _products
	} else {
		if _product, productOK := params["product"]; productOK {
			products = _product
		}
	}
	if len(products) > 0 {
		if !strings.Contains(products[0], "\"") {
			jsonFields = append(jsonFields, fmt.Sprintf(`"product":"%s"`, strings.TrimSpace(products[0])))
		}
	}

	if delta, deltaOK := params["delta"]; deltaOK {
		if !compREMap["delta"].MatchString(delta[0]) {
			return ltsParams, fmt.Errorf("delta must be one of all, gain or loss: %v", delta[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"delta":"%s"`, strings.ToLower(delta[0])))
	}

	if sort, sortOK := params["sort"]; sortOK {
		if !compREMap["sort"].MatchString(sort[0]) {
			return ltsParams, fmt.Errorf("sort must be one of greatest, least, newest or oldest: %v", sort[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"sort":"%s"`, strings.ToLower(sort[0])))
	}

	for _, key := range []string{"index", "r", "g", "b"} {
		if val, valOK := params[key]; valOK {
			if !compREMap["name"].MatchString(val[0]) {
				return ltsParams, fmt.Errorf("invalid index name in %s: %v", key, val[0])
			}
			jsonFields = append(jsonFields, fmt.Sprintf(`"%s":"%s"`, key, strings.ToLower(val[0])))
		}
	}

	if bands, bandsOK := params["bands"]; bandsOK {
		if !strings.Contains(bands[0], "\"") {
			jsonFields = append(jsonFields, fmt.Sprintf(`"bands":["%s"]`, strings.Replace(bands[0], ",", "\",\"", -1)))
		}
	}

	for _, key := range []string{"year", "year0", "year1"} {
		if val, valOK := params[key]; valOK {
			if !compREMap["year"].MatchString(val[0]) {
				return ltsParams, fmt.Errorf("%s must be a 4 digit year: %v", key, val[0])
			}
			jsonFields = append(jsonFields, fmt.Sprintf(`"%s":%s`, key, val[0]))
		}
	}

	if bbox, bboxOK := params["bbox"]; bboxOK {
		if compREMap["bbox"].MatchString(bbox[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"bbox":[%s]`, bbox[0]))
		}
	}

	if i, iOK := params["i"]; iOK {
		params["x"] = i
	}

	if x, xOK := params["x"]; xOK {
		if compREMap["x"].MatchString(x[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"x":%s`, x[0]))
		}
	}

	if j, jOK := params["j"]; jOK {
		params["y"] = j
	}

	if y, yOK := params["y"]; yOK {
		if compREMap["y"].MatchString(y[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"y":%s`, y[0]))
		}
	}

	if width, widthOK := params["width"]; widthOK {
		if compREMap["width"].MatchString(width[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"width":%s`, width[0]))
		}
	}

	if height, heightOK := params["height"]; heightOK {
		if compREMap["height"].MatchString(height[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"height":%s`, height[0]))
		}
	}

	if format, formatOK := params["format"]; formatOK {
		if !compREMap["format"].MatchString(format[0]) {
			return ltsParams, fmt.Errorf("unsupported format: %v", format[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"format":"%s"`, strings.ToLower(format[0])))
	}

	if field, fieldOK := params["field"]; fieldOK {
		if !compREMap["field"].MatchString(field[0]) {
			return ltsParams, fmt.Errorf("unsupported field: %v", field[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"field":"%s"`, strings.ToLower(field[0])))
	}

	if mmu, mmuOK := params["mmu"]; mmuOK {
		if !compREMap["mmu"].MatchString(mmu[0]) {
			return ltsParams, fmt.Errorf("mmu must be a non-negative integer: %v", mmu[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"mmu":%s`, mmu[0]))
	}

	for _, key := range []string{"mag", "dur", "preval", "mask_fill"} {
		if val, valOK := params[key]; valOK {
			if !compREMap["float"].MatchString(val[0]) {
				return ltsParams, fmt.Errorf("%s must be numeric: %v", key, val[0])
			}
			jsonFields = append(jsonFields, fmt.Sprintf(`"%s":%s`, key, val[0]))
		}
	}

	if timeStr, timeOK := params["time"]; timeOK {
		if compREMap["time"].MatchString(timeStr[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"time":"%s"`, timeStr[0]))
		}
	}

	jsonParams := fmt.Sprintf("{%s}", strings.Join(jsonFields, ","))

	err := json.Unmarshal([]byte(jsonParams), &ltsParams)
	if err != nil {
		return ltsParams, err
	}

	if rangeSubsets, rangeSubsetsOK := params["rangesubset"]; rangeSubsetsOK {
		sub := strings.Join(rangeSubsets, ";")
		parts := strings.Split(sub, ";")

		var rangeSubs []string
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if len(p) < 1 {
				continue
			}

			rangeSubs = append(rangeSubs, p)
		}

		bandExpr, err := ParseBandExpressions(rangeSubs)
		if err != nil {
			return ltsParams, fmt.Errorf("parsing error in band expressions: %v", err)
		}

		ltsParams.BandExpr = bandExpr
	}

	return ltsParams, err
}

// GetCoordinates returns the x and y
// coordinates in the original projection
// from the raster relative request parameters.
func GetCoordinates(params LTSParams) (float64, float64, error) {
	if len(params.BBox) != 4 {
		return 0, 0, fmt.Errorf("No BBox parameter has been specified")
	}
	if params.Width == nil || params.Height == nil {
		return 0, 0, fmt.Errorf("Width and Height have to be bigger than 0")
	}

	return params.BBox[0] + (params.BBox[2]-params.BBox[0])*float64(*params.X)/float64(*params.Width), params.BBox[3] + (params.BBox[1]-params.BBox[3])*float64(*params.Y)/float64(*params.Height), nil
}

// GetProductIndex returns the index of the
// specified product inside the Config.Products
// field.
func GetProductIndex(params LTSParams, config *Config) (int, error) {
	if params.Product != nil {
		product := *params.Product
		for i := range config.Products {
			if config.Products[i].Name == product {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%s not found in config Products", product)
	}
	return -1, fmt.Errorf("request doesn't specify a product")
}

// YearRange resolves the requested year span against the product's
// published span. A request without years takes the product span; a
// bare year= pins both endpoints.
func YearRange(params LTSParams, product *Product) (int, int, error) {
	year0 := product.StartYear
	year1 := product.EndYear

	if params.Year != nil {
		year0 = *params.Year
		year1 = *params.Year
	}
	if params.Year0 != nil {
		year0 = *params.Year0
	}
	if params.Year1 != nil {
		year1 = *params.Year1
	}

	if year0 > year1 {
		return 0, 0, fmt.Errorf("empty year range: %d to %d", year0, year1)
	}
	return year0, year1, nil
}

func ExecuteWriteTemplateFile(w io.Writer, data interface{}, filePath string) error {
	// General template compilation, execution and writting in to
	// a stream.
	tplStr, err := ioutil.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("Error trying to read %s file: %v", filePath, err)
	}
	tpl, err := template.New("template").Parse(string(tplStr))
	if err != nil {
		return fmt.Errorf("Error trying to parse template document: %v", err)
	}
	err = tpl.Execute(w, data)
	if err != nil {
		return fmt.Errorf("Error executing template: %v\n", err)
	}

	return nil
}

// GetCurrentTimeStamp gets the latest timestamp if time is not
// specified in the HTTP request
func GetCurrentTimeStamp(timestamps []string) (*time.Time, error) {
	var currentTime time.Time

	// An empty timestamp list usually means a misconfigured product.
	// Fall back to Now() so the caller gets a blank response rather
	// than an out-of-range index panic turning into a 500.
	if len(timestamps) == 0 {
		currentTime = time.Now().UTC()
	} else {
		tmpTime, err := time.Parse(ISOFormat, timestamps[len(timestamps)-1])
		if err != nil {
			return nil, fmt.Errorf("Cannot find a valid date to proceed with the request")
		}
		currentTime = tmpTime
	}

	return &currentTime, nil
}

// ParseRequestYears pulls every 4 digit year substring out of a
// comma separated list, rejecting anything else.
func ParseRequestYears(val string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		year, err := strconv.Atoi(part)
		if err != nil || year < 1000 || year > 9999 {
			return nil, fmt.Errorf("invalid year: %v", part)
		}
		years = append(years, year)
	}
	return years, nil
}
