package utils

import (
	"fmt"
	"image/color"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

var LibexecDir = "."
var EtcDir = "."
var DataDir = "."

type ServiceConfig struct {
	LTSHostname     string   `json:"lts_hostname"`
	IndexAddress    string   `json:"index_address"`
	WorkerNodes     []string `json:"worker_nodes"`
	MemcacheServers []string `json:"memcache_servers"`
	TempDir         string   `json:"temp_dir"`
}

type Palette struct {
	Interpolate bool         `json:"interpolate"`
	Colours     []color.RGBA `json:"colours"`
}

// SpectralIndex declares a named band expression over the source
// reflectance namespaces stored in a granule, e.g.
// "ndvi" = "(nir - red) / (nir + red)". The set of indices declared
// on a product is the only source of index names the service accepts.
type SpectralIndex struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// VisParams carries the per-channel stretch applied when rendering
// fitted values into RGB composites. Min/Max/Gamma have either one
// entry broadcast across channels or one entry per channel.
type VisParams struct {
	Min   []float64 `json:"min"`
	Max   []float64 `json:"max"`
	Gamma []float64 `json:"gamma"`
}

// Product describes one published segmentation product: where its
// granules live, the shape the fitter wrote them with and how its
// outputs are rendered.
type Product struct {
	LTSHostname        string `json:"lts_hostname"`
	NameSpace          string
	Name               string           `json:"name"`
	Title              string           `json:"title"`
	Abstract           string           `json:"abstract"`
	DataSource         string           `json:"data_source"`
	StartYear          int              `json:"start_year"`
	EndYear            int              `json:"end_year"`
	Dates              []string         `json:"dates"`
	MaxSegments        int              `json:"max_segments"`
	SegNameSpace       string           `json:"seg_namespace"`
	RmseNameSpace      string           `json:"rmse_namespace"`
	Indices            []*SpectralIndex `json:"indices"`
	IndexExpressions   *BandExpressions `json:"-"`
	FitParams          map[string]string `json:"fit_params"`
	MMU                int              `json:"mmu"`
	RGBProducts        []string         `json:"rgb_products"`
	VisParams          *VisParams       `json:"vis_params"`
	OffsetValue        float64          `json:"offset_value"`
	ClipValue          float64          `json:"clip_value"`
	ScaleValue         float64          `json:"scale_value"`
	Palette            *Palette         `json:"palette"`
	LegendPath         string           `json:"legend_path"`
	MaxGrpcRecvMsgSize int              `json:"max_grpc_recv_msg_size"`
}

// Process contains all the details that a drill operation needs
// to be published and processed
type Process struct {
	Paths       []string   `json:"paths"`
	Identifier  string     `json:"identifier"`
	Title       string     `json:"title"`
	Abstract    string     `json:"abstract"`
	MaxArea     float64    `json:"max_area"`
	LiteralData []LitData  `json:"literal_data"`
	ComplexData []CompData `json:"complex_data"`
}

// LitData contains the description of a variable used to compute a
// drill operation
type LitData struct {
	Identifier    string   `json:"identifier"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	DataType      string   `json:"data_type"`
	DataTypeRef   string   `json:"data_type_ref"`
	AllowedValues []string `json:"allowed_values"`
}

// CompData contains the description of a variable used to compute a
// drill operation
type CompData struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Abstract   string `json:"abstract"`
	MimeType   string `json:"mime_type"`
	Encoding   string `json:"encoding"`
	Schema     string `json:"schema"`
}

// Config is the struct representing the configuration of an LTS
// server. It contains information about the granule index API as
// well as the list of segmentation products that can be served.
type Config struct {
	ServiceConfig ServiceConfig `json:"service_config"`
	Products      []Product     `json:"products"`
	Processes     []Process     `json:"processes"`
}

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

const DefaultSegNameSpace = "landtrendr"
const DefaultRmseNameSpace = "rmse"

// GenerateAnnualDates returns one ISO date per calendar year in
// [startYear, endYear], timestamped at the start of the year.
func GenerateAnnualDates(startYear, endYear int) []string {
	dates := []string{}
	for year := startYear; year <= endYear; year++ {
		dates = append(dates, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format(ISOFormat))
	}
	return dates
}

// YearFromDate recovers the calendar year from an ISO date string
// produced by GenerateAnnualDates.
func YearFromDate(date string) (int, error) {
	t, err := time.Parse(ISOFormat, date)
	if err != nil {
		return 0, fmt.Errorf("Error parsing ISO date: %s. Error: %v", date, err)
	}
	return t.Year(), nil
}

func LoadAllConfigFiles(rootDir string) (map[string]*Config, error) {
	configMap := make(map[string]*Config)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && info.Name() == "config.json" {
			relPath, _ := filepath.Rel(rootDir, filepath.Dir(path))
			log.Printf("Loading config file: %s under namespace: %s\n", path, relPath)

			config := &Config{}
			e := config.LoadConfigFile(path)
			if e != nil {
				return e
			}

			configMap[relPath] = config

			for i := range config.Products {
				ns := relPath
				if relPath == "." {
					ns = ""
				}
				config.Products[i].NameSpace = ns
			}
		}
		return nil
	})

	if err == nil && len(configMap) == 0 {
		err = fmt.Errorf("No config file found")
	}

	return configMap, err
}

const DefaultRecvMsgSize = 10 * 1024 * 1024

// LoadConfigFile marshalls the config.json document returning an
// instance of a Config variable containing all the values
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = Unmarshal(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
	}

	for i := range config.Products {
		product := &config.Products[i]
		product.LTSHostname = config.ServiceConfig.LTSHostname

		if product.MaxSegments < 1 {
			return fmt.Errorf("Product %s: max_segments must be >= 1, got %d", product.Name, product.MaxSegments)
		}

		if product.StartYear > product.EndYear {
			return fmt.Errorf("Product %s: start_year %d is after end_year %d", product.Name, product.StartYear, product.EndYear)
		}

		if len(product.Dates) == 0 {
			product.Dates = GenerateAnnualDates(product.StartYear, product.EndYear)
		}

		if len(strings.TrimSpace(product.SegNameSpace)) == 0 {
			product.SegNameSpace = DefaultSegNameSpace
		}

		if len(strings.TrimSpace(product.RmseNameSpace)) == 0 {
			product.RmseNameSpace = DefaultRmseNameSpace
		}

		if product.MaxGrpcRecvMsgSize <= 0 {
			product.MaxGrpcRecvMsgSize = DefaultRecvMsgSize
		}

		var exprList []string
		for _, idx := range product.Indices {
			if len(strings.TrimSpace(idx.Name)) == 0 || len(strings.TrimSpace(idx.Expression)) == 0 {
				return fmt.Errorf("Product %s: spectral index requires both name and expression", product.Name)
			}
			exprList = append(exprList, fmt.Sprintf("%s=%s", idx.Name, idx.Expression))
		}
		product.IndexExpressions, err = ParseBandExpressions(exprList)
		if err != nil {
			return fmt.Errorf("Product %s: %v", product.Name, err)
		}

		for _, rgb := range product.RGBProducts {
			if !product.HasIndex(rgb) {
				return fmt.Errorf("Product %s: rgb_products refers to unknown index %s", product.Name, rgb)
			}
		}

		if product.VisParams != nil {
			for _, vals := range [][]float64{product.VisParams.Min, product.VisParams.Max, product.VisParams.Gamma} {
				if len(vals) != 0 && len(vals) != 1 && len(vals) != 3 {
					return fmt.Errorf("Product %s: vis_params entries must have 1 or 3 values", product.Name)
				}
			}
		}

		if product.Palette != nil && product.Palette.Colours != nil && len(product.Palette.Colours) < 2 {
			return fmt.Errorf("The colour palette must contain at least 2 colours.")
		}
	}
	return nil
}

// HasIndex reports whether name is a registered spectral index of
// the product.
func (product *Product) HasIndex(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, idx := range product.Indices {
		if strings.ToLower(idx.Name) == name {
			return true
		}
	}
	return false
}

// FitNameSpace is the granule namespace holding the annual fitted
// series of a spectral index.
func FitNameSpace(index string) string {
	return fmt.Sprintf("ftv_%s_fit", strings.ToLower(index))
}

func WatchConfig(infoLog, errLog *log.Logger, configMap *map[string]*Config) {
	// Catch SIGHUP to automatically reload cache
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-sighup:
				infoLog.Println("Caught SIGHUP, reloading config...")
				confMap, err := LoadAllConfigFiles(EtcDir)
				if err != nil {
					errLog.Printf("Error in loading config files: %v\n", err)
					return
				}

				for k := range *configMap {
					delete(*configMap, k)
				}

				for k := range confMap {
					(*configMap)[k] = confMap[k]
				}
			}
		}
	}()
}
