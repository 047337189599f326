package main

/* lts is a web server publishing LandTrendr-style temporal
   segmentation products. It exposes a KVP query API for change maps,
   vertex stacks, fitted series, RGB composites and band stacks, plus
   a POST drill endpoint for regional statistics.
   Configuration of the server is specified in config.json documents
   where products, spectral indices and colour palettes are defined.
   This server depends on two other services to operate: the granule
   index API which registers the files involved in one operation and
   the seg-server workers which perform the actual granule reads. */

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	geo "github.com/nci/geometry"
	"github.com/nci/ltsky/metrics"
	proc "github.com/nci/ltsky/processor"
	"github.com/nci/ltsky/utils"

	_ "net/http/pprof"
)

// Global variable to hold the values specified
// on the config.json documents.
var configMap map[string]*utils.Config

var (
	port            = flag.Int("p", 8080, "Server listening port.")
	serverDataDir   = flag.String("data_dir", utils.DataDir, "Server data directory.")
	serverConfigDir = flag.String("conf_dir", utils.EtcDir, "Server config directory.")
	serverLogDir    = flag.String("log_dir", "", "Server metrics log directory.")
	validateConfig  = flag.Bool("check_conf", false, "Validate server config files.")
	verbose         = flag.Bool("v", false, "Verbose mode for more server outputs.")
)

var reLTSMap map[string]*regexp.Regexp
var reDrillMap map[string]*regexp.Regexp

var (
	Error *log.Logger
	Info  *log.Logger
)

var metricsLogger metrics.Logger
var ltsCache *utils.LTSCache

const DefaultGrpcConcLimit = 16
const DefaultPipelineTimeout = 120 * time.Second
const DefaultMaxOutputSize = 8192
const DefaultDecileCount = 10

// init initialises the loggers, checks required files are in place
// and loads the config tree. This is the first function to be called
// in main.
func init() {
	rand.Seed(time.Now().UnixNano())

	Error = log.New(os.Stderr, "LTS: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "LTS: ", log.Ldate|log.Ltime|log.Lshortfile)

	flag.Parse()

	utils.DataDir = *serverDataDir
	utils.EtcDir = *serverConfigDir

	filePaths := []string{
		utils.DataDir + "/templates/LTS_GetCapabilities.tpl"}

	for _, filePath := range filePaths {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			panic(err)
		}
	}

	confMap, err := utils.LoadAllConfigFiles(utils.EtcDir)
	if err != nil {
		Error.Printf("Error in loading config files: %v\n", err)
		panic(err)
	}

	if *validateConfig {
		os.Exit(0)
	}

	configMap = confMap

	utils.WatchConfig(Info, Error, &configMap)

	reLTSMap = utils.CompileLTSRegexMap()
	reDrillMap = utils.CompileDrillRegexMap()

	for _, conf := range configMap {
		if ltsCache == nil && len(conf.ServiceConfig.MemcacheServers) > 0 {
			ltsCache = utils.NewLTSCache(conf.ServiceConfig.MemcacheServers, *verbose)
		}
	}

	if len(*serverLogDir) > 0 {
		if *serverLogDir == "-" {
			metricsLogger = metrics.NewStdoutLogger()
		} else {
			metricsLogger = metrics.NewFileLogger(*serverLogDir, 0, -1, *verbose)
		}
	}
}

func newTileRequest(product *utils.Product, bbox []float64, width, height, year0, year1 int, metricsCollector *metrics.MetricsCollector) *proc.SegTileRequest {
	return &proc.SegTileRequest{
		ConfigPayLoad: proc.ConfigPayLoad{
			BandExpr:         product.IndexExpressions,
			Palette:          product.Palette,
			MaxSegments:      product.MaxSegments,
			FitParams:        product.FitParams,
			GrpcConcLimit:    DefaultGrpcConcLimit,
			MetricsCollector: metricsCollector,
		},
		Collection: product.DataSource,
		BBox:       bbox,
		Height:     height,
		Width:      width,
		StartYear:  year0,
		EndYear:    year1,
	}
}

// checkCanvasParams validates the common bbox/width/height trio of
// every map request.
func checkCanvasParams(params utils.LTSParams) error {
	if len(params.BBox) != 4 {
		return fmt.Errorf("request should contain a valid 'bbox' parameter")
	}
	if params.BBox[2] <= params.BBox[0] || params.BBox[3] <= params.BBox[1] {
		return fmt.Errorf("bbox is empty: %v", params.BBox)
	}
	if params.Width == nil || params.Height == nil {
		return fmt.Errorf("request should contain valid 'width' and 'height' parameters")
	}
	if *params.Width <= 0 || *params.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if *params.Width > DefaultMaxOutputSize || *params.Height > DefaultMaxOutputSize {
		return fmt.Errorf("requested width/height is too large, max width:%d, height:%d", DefaultMaxOutputSize, DefaultMaxOutputSize)
	}
	return nil
}

func changeOptions(params utils.LTSParams, product *utils.Product) proc.ChangeOptions {
	delta := proc.DeltaAll
	if params.Delta != nil {
		delta = *params.Delta
	}
	return proc.ChangeOptions{
		Delta:         delta,
		IndexFlip:     product.FitParams["index_flip"] == "true",
		RightOriented: product.FitParams["right_oriented"] == "true",
	}
}

func float32PayloadLE(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func uint16PayloadLE(data []uint16) []byte {
	out := make([]byte, len(data)*2)
	for i, v := range data {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

// writeProductResponse sets the content type for the requested
// format, writes the payload and memoises it against the request URI.
func writeProductResponse(w http.ResponseWriter, r *http.Request, format string, payload []byte) {
	contentType, err := utils.ContentType(format)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(payload)
	ltsCache.Put(r.URL.RequestURI(), payload)
}

// encodeFloat32Container flattens scalar float32 bands into the
// granule container format for lossless delivery.
func encodeFloat32Container(product string, width, height int, bbox []float64, rasters []*utils.Float32Raster, dates func(i int) []string) ([]byte, error) {
	hdr := &utils.ContainerHeader{
		Product:      product,
		Width:        width,
		Height:       height,
		GeoTransform: utils.BBox2Geot(width, height, bbox),
	}

	var payloads [][]byte
	for i, raster := range rasters {
		band := &utils.ContainerBand{NameSpace: raster.NameSpace, ArrayType: "Float32",
			Rows: 1, Cols: 1, NoData: raster.NoData}
		if dates != nil {
			band.Dates = dates(i)
		}
		hdr.Bands = append(hdr.Bands, band)
		payloads = append(payloads, float32PayloadLE(raster.Data))
	}

	var buf bytes.Buffer
	if err := utils.EncodeContainer(&buf, hdr, payloads); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func serveLTS(ctx context.Context, params utils.LTSParams, conf *utils.Config, r *http.Request, w http.ResponseWriter, metricsCollector *metrics.MetricsCollector) {
	if params.Request == nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "Malformed request, a Request field needs to be specified", 400)
		return
	}

	if *params.Request == "GetCapabilities" {
		conf.ServiceConfig.LTSHostname = strings.Split(r.Host, ":")[0]
		err := utils.ExecuteWriteTemplateFile(w, conf,
			utils.DataDir+"/templates/LTS_GetCapabilities.tpl")
		if err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		}
		return
	}

	idx, err := utils.GetProductIndex(params, conf)
	if err != nil {
		Error.Printf("%s\n", err)
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Malformed request: %v", err), 400)
		return
	}
	product := &conf.Products[idx]

	year0, year1, err := utils.YearRange(params, product)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, err.Error(), 400)
		return
	}

	format := ""
	if params.Format != nil {
		format = *params.Format
	}

	if cached, ok := ltsCache.Get(r.URL.RequestURI()); ok {
		contentType, ctErr := utils.ContentType(format)
		if ctErr == nil {
			w.Header().Set("Content-Type", contentType)
			w.Write(cached)
			return
		}
	}

	if err := checkCanvasParams(params); err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, err.Error(), 400)
		return
	}

	ctx, ctxCancel := context.WithCancel(ctx)
	defer ctxCancel()
	errChan := make(chan error, 100)

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), DefaultPipelineTimeout)
	defer timeoutCancel()

	geoReq := newTileRequest(product, params.BBox, *params.Width, *params.Height, year0, year1, metricsCollector)

	switch *params.Request {
	case "GetChangeMap":
		opts := changeOptions(params, product)

		cp := proc.InitChangePipeline(ctx, conf.ServiceConfig.IndexAddress, conf.ServiceConfig.WorkerNodes, product.MaxGrpcRecvMsgSize, errChan)
		select {
		case res, ok := <-cp.Process(geoReq, product.SegNameSpace, product.RmseNameSpace, opts, *verbose):
			if !ok {
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, "change pipeline produced no output", 500)
				return
			}
			serveChangeMap(params, product, format, res, w, r, metricsCollector)
		case err := <-errChan:
			Info.Printf("Error in the pipeline: %v\n", err)
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		case <-ctx.Done():
			Error.Printf("Context cancelled with message: %v\n", ctx.Err())
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, ctx.Err().Error(), 500)
		case <-timeoutCtx.Done():
			Error.Printf("change pipeline timed out, threshold:%v", DefaultPipelineTimeout)
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, "request timed out", 500)
		}

	case "GetVertexStack", "GetSegmentCount", "ProbePixel":
		geoReq.NameSpaces = []string{product.SegNameSpace}
		if *params.Request == "ProbePixel" {
			geoReq.NameSpaces = append(geoReq.NameSpaces, product.RmseNameSpace)
			if params.X == nil || params.Y == nil {
				metricsCollector.Info.HTTPStatus = 400
				http.Error(w, "request should contain valid 'x' and 'y' parameters", 400)
				return
			}
			if *params.X >= *params.Width || *params.Y >= *params.Height {
				metricsCollector.Info.HTTPStatus = 400
				http.Error(w, "x and y must fall inside the requested canvas", 400)
				return
			}

			// a single pixel canvas at the probed location keeps the
			// worker reads minimal
			xRes := (params.BBox[2] - params.BBox[0]) / float64(*params.Width)
			yRes := (params.BBox[3] - params.BBox[1]) / float64(*params.Height)
			px0 := params.BBox[0] + float64(*params.X)*xRes
			py1 := params.BBox[3] - float64(*params.Y)*yRes
			geoReq.BBox = []float64{px0, py1 - yRes, px0 + xRes, py1}
			geoReq.Width = 1
			geoReq.Height = 1
		}

		sp := proc.InitSegPipeline(ctx, conf.ServiceConfig.IndexAddress, conf.ServiceConfig.WorkerNodes, product.MaxGrpcRecvMsgSize, errChan)
		select {
		case res, ok := <-sp.Process(geoReq, *verbose):
			if !ok {
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, "pipeline produced no output", 500)
				return
			}
			segFlex, found := res[product.SegNameSpace]
			if !found {
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, "segmentation band missing from pipeline output", 500)
				return
			}
			seg, err := segFlex.AsSegRaster()
			if err != nil {
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, err.Error(), 500)
				return
			}

			switch *params.Request {
			case "GetVertexStack":
				serveVertexStack(params, product, seg, w, r, metricsCollector)
			case "GetSegmentCount":
				serveSegmentCount(format, seg, w, r, metricsCollector)
			case "ProbePixel":
				serveProbePixel(res, product, seg, w, r, metricsCollector)
			}
		case err := <-errChan:
			Info.Printf("Error in the pipeline: %v\n", err)
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		case <-ctx.Done():
			Error.Printf("Context cancelled with message: %v\n", ctx.Err())
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, ctx.Err().Error(), 500)
		case <-timeoutCtx.Done():
			Error.Printf("pipeline timed out, threshold:%v", DefaultPipelineTimeout)
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, "request timed out", 500)
		}

	case "GetFittedSeries", "GetComposite", "GetBandStack":
		indices, err := requestIndices(params, product)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, err.Error(), 400)
			return
		}

		nameSpaces := make([]string, len(indices))
		for i, index := range indices {
			nameSpaces[i] = utils.FitNameSpace(index)
		}

		fp := proc.InitFitPipeline(ctx, conf.ServiceConfig.IndexAddress, conf.ServiceConfig.WorkerNodes, product.MaxGrpcRecvMsgSize, errChan)
		select {
		case res, ok := <-fp.Process(geoReq, nameSpaces, *verbose):
			if !ok {
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, "fit pipeline produced no output", 500)
				return
			}
			ftv := make([]*proc.FTVRaster, len(nameSpaces))
			for i, ns := range nameSpaces {
				f, found := res[ns]
				if !found {
					metricsCollector.Info.HTTPStatus = 500
					http.Error(w, fmt.Sprintf("fitted band %s missing from pipeline output", ns), 500)
					return
				}
				ftv[i] = f
			}

			switch *params.Request {
			case "GetFittedSeries":
				serveFittedSeries(params, product, format, ftv[0], year0, year1, w, r, metricsCollector)
			case "GetComposite":
				serveComposite(params, product, format, ftv, year0, year1, w, r, metricsCollector)
			case "GetBandStack":
				serveBandStack(params, product, indices, ftv, year0, year1, w, r, metricsCollector)
			}
		case err := <-errChan:
			Info.Printf("Error in the pipeline: %v\n", err)
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		case <-ctx.Done():
			Error.Printf("Context cancelled with message: %v\n", ctx.Err())
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, ctx.Err().Error(), 500)
		case <-timeoutCtx.Done():
			Error.Printf("fit pipeline timed out, threshold:%v", DefaultPipelineTimeout)
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, "request timed out", 500)
		}

	default:
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("%s not recognised.", *params.Request), 400)
	}
}

// requestIndices resolves the spectral indices a fitted-series style
// request refers to: index= for series, r=/g=/b= for composites,
// bands= for band stacks. Every name must be registered on the
// product.
func requestIndices(params utils.LTSParams, product *utils.Product) ([]string, error) {
	var indices []string
	switch *params.Request {
	case "GetFittedSeries":
		if params.Index == nil {
			return nil, fmt.Errorf("request should contain an 'index' parameter")
		}
		indices = []string{*params.Index}
	case "GetComposite":
		if params.RBand == nil || params.GBand == nil || params.BBand == nil {
			if len(product.RGBProducts) == 3 {
				indices = append(indices, product.RGBProducts...)
			} else {
				return nil, fmt.Errorf("request should contain 'r', 'g' and 'b' parameters")
			}
		} else {
			indices = []string{*params.RBand, *params.GBand, *params.BBand}
		}
	case "GetBandStack":
		if len(params.Bands) == 0 {
			return nil, fmt.Errorf("request should contain a 'bands' parameter")
		}
		indices = params.Bands
	}

	for _, index := range indices {
		if !product.HasIndex(index) {
			return nil, fmt.Errorf("%s is not a registered spectral index of product %s", index, product.Name)
		}
	}
	return indices, nil
}

func serveChangeMap(params utils.LTSParams, product *utils.Product, format string, cs *proc.ChangeStack, w http.ResponseWriter, r *http.Request, metricsCollector *metrics.MetricsCollector) {
	if format == "lts" {
		hdr := &utils.ContainerHeader{
			Product:      product.Name,
			Width:        cs.Width,
			Height:       cs.Height,
			GeoTransform: utils.BBox2Geot(cs.Width, cs.Height, params.BBox),
		}
		for _, field := range proc.ChangeFieldNames {
			hdr.Bands = append(hdr.Bands, &utils.ContainerBand{NameSpace: field, ArrayType: "Float32",
				Rows: 1, Cols: cs.MaxSegments, NoData: proc.ChangeNoData})
		}

		var buf bytes.Buffer
		if err := utils.EncodeContainer(&buf, hdr, cs.FieldPayloads()); err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		writeProductResponse(w, r, format, buf.Bytes())
		return
	}

	field := "mag"
	if params.Field != nil {
		field = *params.Field
	}
	sortBy := ""
	if params.Sort != nil {
		sortBy = *params.Sort
	}

	fr, err := cs.FieldRaster(field, sortBy)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, err.Error(), 400)
		return
	}

	mmu := product.MMU
	if params.MMU != nil {
		mmu = *params.MMU
	}

	if err := applyChangeFilters(params, cs, sortBy, mmu, fr); err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, err.Error(), 400)
		return
	}

	norm, err := utils.Scale([]utils.Raster{fr}, utils.ScaleParams{Offset: product.OffsetValue,
		Scale: product.ScaleValue, Clip: product.ClipValue})
	if err != nil {
		Info.Printf("Error in the utils.Scale: %v\n", err)
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}

	palette := product.Palette
	if palette == nil {
		palette = utils.DefaultChangePalette()
	}

	out, err := utils.EncodePNG(norm, palette)
	if err != nil {
		Info.Printf("Error in the utils.EncodePNG: %v\n", err)
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	writeProductResponse(w, r, format, out)
}

// applyChangeFilters masks the rendered field with the requested
// magnitude/duration/pre-change thresholds and the minimum mapping
// unit. Product level MMU applies when the request omits one.
func applyChangeFilters(params utils.LTSParams, cs *proc.ChangeStack, sortBy string, mmu int, fr *utils.Float32Raster) error {
	th := proc.ChangeThresholds{MagMin: params.Mag, DurMax: params.Dur, PrevalMin: params.Preval}
	hasThresholds := th.MagMin != nil || th.DurMax != nil || th.PrevalMin != nil
	if !hasThresholds && mmu <= 1 {
		return nil
	}

	mag, err := cs.FieldRaster("mag", sortBy)
	if err != nil {
		return err
	}
	dur, err := cs.FieldRaster("dur", sortBy)
	if err != nil {
		return err
	}
	preval, err := cs.FieldRaster("preval", sortBy)
	if err != nil {
		return err
	}

	mask, err := proc.BuildChangeMask(mag, dur, preval, th)
	if err != nil {
		return err
	}

	if mmu > 1 {
		mask, err = proc.FilterMinMappingUnit(mask, cs.Width, cs.Height, mmu)
		if err != nil {
			return err
		}
	}

	return proc.ApplyChangeMask(fr, mask)
}

func serveVertexStack(params utils.LTSParams, product *utils.Product, seg *proc.SegRaster, w http.ResponseWriter, r *http.Request, metricsCollector *metrics.MetricsCollector) {
	rasters, err := proc.BuildVertexStack(seg, product.MaxSegments)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}

	out, err := encodeFloat32Container(product.Name, seg.Width, seg.Height, params.BBox, rasters, nil)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	writeProductResponse(w, r, "lts", out)
}

func serveSegmentCount(format string, seg *proc.SegRaster, w http.ResponseWriter, r *http.Request, metricsCollector *metrics.MetricsCollector) {
	counts := proc.BuildSegmentCount(seg)
	out, err := utils.EncodePNG([]*utils.ByteRaster{counts}, nil)
	if err != nil {
		Info.Printf("Error in the utils.EncodePNG: %v\n", err)
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	writeProductResponse(w, r, format, out)
}

func serveProbePixel(res map[string]*proc.FlexRaster, product *utils.Product, seg *proc.SegRaster, w http.ResponseWriter, r *http.Request, metricsCollector *metrics.MetricsCollector) {
	rmse := float32(0)
	if rmseFlex, found := res[product.RmseNameSpace]; found {
		rmseRaster, err := rmseFlex.AsFloat32Raster()
		if err == nil && len(rmseRaster.Data) > 0 && rmseRaster.Data[0] != float32(rmseRaster.NoData) {
			rmse = rmseRaster.Data[0]
		}
	}

	probe := proc.BuildPixelProbe(seg, 0, rmse)
	payload, err := json.Marshal(probe)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	writeProductResponse(w, r, "json", payload)
}

func serveFittedSeries(params utils.LTSParams, product *utils.Product, format string, ftv *proc.FTVRaster, year0, year1 int, w http.ResponseWriter, r *http.Request, metricsCollector *metrics.MetricsCollector) {
	rasters, err := proc.BuildFittedSeries(ftv, year0, year1)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, err.Error(), 400)
		return
	}

	out, err := encodeFloat32Container(product.Name, ftv.Width, ftv.Height, params.BBox, rasters, func(i int) []string {
		return utils.GenerateAnnualDates(year0+i, year0+i)
	})
	if err != nil {
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	writeProductResponse(w, r, "lts", out)
}

func serveComposite(params utils.LTSParams, product *utils.Product, format string, ftv []*proc.FTVRaster, year0, year1 int, w http.ResponseWriter, r *http.Request, metricsCollector *metrics.MetricsCollector) {
	if year0 != year1 {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "composite requests render one year, use 'year='", 400)
		return
	}

	channels := make([][]*utils.Float32Raster, 3)
	for i := 0; i < 3; i++ {
		rasters, err := proc.BuildFittedSeries(ftv[i], year0, year1)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, err.Error(), 400)
			return
		}
		channels[i] = rasters
	}

	composites, err := proc.BuildComposites(channels[0], channels[1], channels[2], []int{year0}, product.VisParams)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}

	var out []byte
	if format == "jpeg" {
		out, err = utils.EncodeJPEG(composites[0].Bands)
	} else {
		out, err = utils.EncodePNG(composites[0].Bands, nil)
	}
	if err != nil {
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	writeProductResponse(w, r, format, out)
}

func serveBandStack(params utils.LTSParams, product *utils.Product, indices []string, ftv []*proc.FTVRaster, year0, year1 int, w http.ResponseWriter, r *http.Request, metricsCollector *metrics.MetricsCollector) {
	maskFill := uint16(0)
	if params.MaskFill != nil {
		if *params.MaskFill < 0 || *params.MaskFill > 65535 {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, "mask_fill must fit in a 16 bit unsigned integer", 400)
			return
		}
		maskFill = uint16(*params.MaskFill)
	}

	var stacks []*proc.YearStack
	for year := year0; year <= year1; year++ {
		ys := &proc.YearStack{Year: year}
		for i, index := range indices {
			rasters, err := proc.BuildFittedSeries(ftv[i], year, year)
			if err != nil {
				metricsCollector.Info.HTTPStatus = 400
				http.Error(w, err.Error(), 400)
				return
			}
			rasters[0].NameSpace = index
			ys.Bands = append(ys.Bands, rasters[0])
		}
		stacks = append(stacks, ys)
	}

	bands, err := proc.BuildBandStack(stacks, maskFill)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}

	width, height := ftv[0].Width, ftv[0].Height
	hdr := &utils.ContainerHeader{
		Product:      product.Name,
		Width:        width,
		Height:       height,
		GeoTransform: utils.BBox2Geot(width, height, params.BBox),
	}
	var payloads [][]byte
	for _, band := range bands {
		hdr.Bands = append(hdr.Bands, &utils.ContainerBand{NameSpace: band.NameSpace, ArrayType: "UInt16",
			Rows: 1, Cols: 1, NoData: band.NoData})
		payloads = append(payloads, uint16PayloadLE(band.Data))
	}

	var buf bytes.Buffer
	if err := utils.EncodeContainer(&buf, hdr, payloads); err != nil {
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	writeProductResponse(w, r, "lts", buf.Bytes())
}

func serveDrill(ctx context.Context, params utils.DrillParams, conf *utils.Config, r *http.Request, w http.ResponseWriter, metricsCollector *metrics.MetricsCollector) {
	if params.Product == nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "drill request doesn't specify a product", 400)
		return
	}

	var product *utils.Product
	for i := range conf.Products {
		if conf.Products[i].Name == *params.Product {
			product = &conf.Products[i]
			break
		}
	}
	if product == nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("%s not found in config Products", *params.Product), 400)
		return
	}

	if params.Index == nil || !product.HasIndex(*params.Index) {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "drill request requires a registered 'index'", 400)
		return
	}

	if len(params.FeatCol.Features) == 0 {
		Info.Printf("The request does not contain the 'geometry' property.\n")
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "The request does not contain the 'geometry' property", 400)
		return
	}

	var feat []byte
	geom := params.FeatCol.Features[0].Geometry
	switch geom := geom.(type) {
	case *geo.Point:
		feat, _ = json.Marshal(&geo.Feature{Type: "Feature", Geometry: geom})

	case *geo.Polygon, *geo.MultiPolygon:
		area := utils.GetArea(geom)
		if *verbose {
			log.Println("Requested polygon has an area of", area)
		}

		maxArea := 0.0
		if iProc, err := utils.GetProcessIndex(params, conf); err == nil {
			maxArea = conf.Processes[iProc].MaxArea
		}
		if maxArea > 0 && (area == 0.0 || area > maxArea) {
			Info.Printf("The requested area %.02f, is too large.\n", area)
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, "The requested area is too large. Please try with a smaller one.", 400)
			return
		}
		feat, _ = json.Marshal(&geo.Feature{Type: "Feature", Geometry: geom})

	default:
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "Geometry not supported. Only Features containing Point, Polygon or MultiPolygon are available.", 400)
		return
	}

	year0 := product.StartYear
	year1 := product.EndYear
	if params.Year0 != nil {
		year0 = *params.Year0
	}
	if params.Year1 != nil {
		year1 = *params.Year1
	}
	if year0 > year1 {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("empty year range: %d to %d", year0, year1), 400)
		return
	}

	ctx, ctxCancel := context.WithCancel(ctx)
	defer ctxCancel()
	errChan := make(chan error, 100)

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), DefaultPipelineTimeout)
	defer timeoutCancel()

	drillReq := &proc.DrillRequest{
		ConfigPayLoad: proc.ConfigPayLoad{
			BandExpr:         product.IndexExpressions,
			MaxSegments:      product.MaxSegments,
			GrpcConcLimit:    DefaultGrpcConcLimit,
			MetricsCollector: metricsCollector,
		},
		Collection:  product.DataSource,
		Geometry:    string(feat),
		NameSpace:   utils.FitNameSpace(*params.Index),
		StartYear:   year0,
		EndYear:     year1,
		DecileCount: DefaultDecileCount,
	}

	templateFileName := ""
	resolver := utils.NewRuntimeFileResolver(utils.DataDir)
	if resolved, err := resolver.Lookup("templates/drill_descriptor.tpl"); err == nil {
		templateFileName = resolved
	}

	dp := proc.InitDrillPipeline(ctx, conf.ServiceConfig.IndexAddress, conf.ServiceConfig.WorkerNodes, product.MaxGrpcRecvMsgSize, templateFileName, errChan)

	select {
	case out, ok := <-dp.Process(drillReq, *verbose):
		if !ok {
			out = &proc.DrillOutput{NameSpace: drillReq.NameSpace}
		}

		format := "json"
		if params.Format != nil {
			format = *params.Format
		}

		if format == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			w.Write([]byte(out.CSV))
			return
		}

		payload, err := json.Marshal(out)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	case err := <-errChan:
		Info.Printf("Error in the drill pipeline: %v\n", err)
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
	case <-ctx.Done():
		Error.Printf("Context cancelled with message: %v\n", ctx.Err())
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, ctx.Err().Error(), 500)
	case <-timeoutCtx.Done():
		Error.Printf("drill pipeline timed out, threshold:%v", DefaultPipelineTimeout)
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, "request timed out", 500)
	}
}

// generalHandler handles every request received on /lts and
// /drill
func generalHandler(conf *utils.Config, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	if *verbose {
		Info.Printf("%s\n", r.URL.String())
	}
	ctx := r.Context()

	metricsCollector := metrics.NewMetricsCollector(metricsLogger)
	defer metricsCollector.Log()

	t0 := time.Now()
	metricsCollector.Info.ReqTime = t0.Format(utils.ISOFormat)
	defer func() { metricsCollector.Info.ReqDuration = time.Since(t0) }()

	metricsCollector.Info.URL.RawURL = r.URL.String()
	metricsCollector.Info.RemoteAddr = r.RemoteAddr
	metricsCollector.Info.HTTPStatus = 200

	if r.Method == "POST" {
		query, err := utils.ParseDrillPost(r.Body)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("Error parsing drill POST payload: %s", err), 400)
			return
		}

		params, err := utils.DrillParamsChecker(query, reDrillMap)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("Wrong drill parameters on request: %s", err), 400)
			return
		}
		serveDrill(ctx, params, conf, r, w, metricsCollector)
		return
	}

	query, err := utils.ParseQuery(r.URL.RawQuery)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Failed to parse query: %v", err), 400)
		return
	}

	params, err := utils.LTSParamsChecker(query, reLTSMap)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Wrong parameters on URL: %s", err), 400)
		return
	}

	serveLTS(ctx, params, conf, r, w, metricsCollector)
}

func ltsHandler(w http.ResponseWriter, r *http.Request) {
	namespace := "."
	if len(r.URL.Path) > len("/lts/") {
		namespace = r.URL.Path[len("/lts/"):]
	}
	config, ok := configMap[namespace]
	if !ok {
		Info.Printf("Invalid dataset namespace: %v for url: %v\n", namespace, r.URL.Path)
		http.Error(w, fmt.Sprintf("Invalid dataset namespace: %v\n", namespace), 404)
		return
	}
	generalHandler(config, w, r)
}

func drillHandler(w http.ResponseWriter, r *http.Request) {
	config, ok := configMap["."]
	if !ok {
		for _, conf := range configMap {
			config = conf
			break
		}
	}
	if config == nil {
		http.Error(w, "No product configuration loaded", 500)
		return
	}
	generalHandler(config, w, r)
}

func catalogHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	config, ok := configMap["."]
	if !ok {
		for _, conf := range configMap {
			config = conf
			break
		}
	}

	indexAddress := ""
	if config != nil {
		indexAddress = config.ServiceConfig.IndexAddress
	}

	catPath := strings.TrimPrefix(path.Clean(r.URL.Path), "/catalog")
	h := utils.NewCatalogueHandler(catPath, strings.Split(r.Host, ":")[0], "/catalog",
		utils.DataDir+"/static", indexAddress, utils.DataDir+"/templates", configMap, *verbose, w)
	status := h.Process()
	if status != 200 {
		http.Error(w, "Catalogue entry not found", status)
	}
}

func fileHandler(w http.ResponseWriter, r *http.Request) {
	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
		r.URL.Path = upath
	}
	upath = path.Clean(upath)
	upath = filepath.Join(utils.DataDir+"/static", upath)

	if *verbose {
		Info.Printf("%s -> %s\n", r.URL.String(), upath)
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	http.ServeFile(w, r, upath)
}

func main() {
	http.HandleFunc("/", fileHandler)
	http.HandleFunc("/lts", ltsHandler)
	http.HandleFunc("/lts/", ltsHandler)
	http.HandleFunc("/drill", drillHandler)
	http.HandleFunc("/catalog", catalogHandler)
	http.HandleFunc("/catalog/", catalogHandler)

	listener, err := reuseport.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", *port))
	if err != nil {
		Error.Fatalf("Failed to listen on port %d: %v", *port, err)
	}

	Info.Printf("LTS is ready")
	log.Fatal(http.Serve(listener, nil))
}
