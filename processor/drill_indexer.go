package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/CloudyKit/jet"
	geo "github.com/nci/geometry"
)

// DrillIndexer resolves a drill request into the granule files whose
// extent intersects the request geometry's bounding box. Each output
// granule carries the request geometry so the worker can mask the
// window read, plus an optional rendered descriptor for provenance.
type DrillIndexer struct {
	Context          context.Context
	In               chan *DrillRequest
	Out              chan *DrillGranule
	Error            chan error
	APIAddress       string
	TemplateFileName string
}

func NewDrillIndexer(ctx context.Context, apiAddr string, templateFileName string, errChan chan error) *DrillIndexer {
	return &DrillIndexer{
		Context:          ctx,
		In:               make(chan *DrillRequest, 100),
		Out:              make(chan *DrillGranule, 100),
		Error:            errChan,
		APIAddress:       apiAddr,
		TemplateFileName: templateFileName,
	}
}

func (p *DrillIndexer) Run(verbose bool) {
	defer close(p.Out)
	for drillReq := range p.In {
		var feat geo.Feature
		err := json.Unmarshal([]byte(drillReq.Geometry), &feat)
		if err != nil {
			p.Error <- fmt.Errorf("Problem unmarshalling GeoJSON object: %v", drillReq.Geometry)
			return
		}

		geomJSON, err := json.Marshal(feat.Geometry)
		if err != nil {
			p.Error <- fmt.Errorf("Problem marshalling GeoJSON geometry: %v", err)
			return
		}

		bbox, err := geometryBBox(geomJSON)
		if err != nil {
			p.Error <- err
			return
		}

		// registered spectral indices resolve to their source bands on
		// the worker, the index only needs the file list
		queryNS := drillReq.NameSpace
		if drillReq.BandExpr != nil {
			if _, varRef, err := drillReq.BandExpr.FindExpr(drillReq.NameSpace); err == nil && len(varRef) > 0 {
				queryNS = strings.Join(varRef, ",")
			}
		}

		url := strings.Replace(fmt.Sprintf("http://%s/granules?product=%s&time0=%d&time1=%d&bbox=%f,%f,%f,%f&namespace=%s",
			p.APIAddress, drillReq.Collection, drillReq.StartYear, drillReq.EndYear,
			bbox[0], bbox[1], bbox[2], bbox[3], queryNS), " ", "%20", -1)
		if verbose {
			log.Println(url)
		}

		resp, err := http.Get(url)
		if err != nil {
			p.Error <- fmt.Errorf("GET request to %s failed. Error: %v", url, err)
			continue
		}
		body, err := ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			p.Error <- fmt.Errorf("Error parsing response body from %s. Error: %v", url, err)
			continue
		}

		var metadata MetadataResponse
		err = json.Unmarshal(body, &metadata)
		if err != nil {
			p.Error <- fmt.Errorf("Problem parsing JSON response from %s. Error: %v", url, err)
			continue
		}
		if len(metadata.Error) > 0 {
			p.Error <- fmt.Errorf("granule index returned error: %v", metadata.Error)
			continue
		}

		var template *jet.Template
		if len(p.TemplateFileName) > 0 && len(metadata.Granules) > 0 {
			view := jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
				w.Write(b)
			}), filepath.Dir(p.TemplateFileName), "/")

			template, err = view.GetTemplate(filepath.Base(p.TemplateFileName))
			if err != nil {
				p.Error <- fmt.Errorf("drill descriptor template error: %v", err)
				return
			}
		}

		isFirst := true
		for _, ds := range metadata.Granules {
			gran := &DrillGranule{ConfigPayLoad: drillReq.ConfigPayLoad, Path: ds.Path,
				NameSpace: drillReq.NameSpace, Geometry: string(geomJSON), Years: ds.Years,
				StartYear: drillReq.StartYear, EndYear: drillReq.EndYear, NoData: ds.NoData}

			if template != nil {
				type granuleInfo struct {
					Granule *GranuleMetadata
					Request *DrillRequest
				}

				var resBuf bytes.Buffer
				vars := make(jet.VarMap)
				if err = template.Execute(&resBuf, vars, &granuleInfo{Granule: ds, Request: drillReq}); err != nil {
					p.Error <- fmt.Errorf("drill descriptor template error: %v", err)
					return
				}
				gran.Descriptor = resBuf.String()

				if isFirst && verbose {
					log.Printf("drill descriptor: %v, %v", gran.Path, gran.Descriptor)
					isFirst = false
				}
			}

			p.Out <- gran
		}
	}
}

// geometryBBox walks the coordinate arrays of a GeoJSON geometry and
// returns [minX, minY, maxX, maxY].
func geometryBBox(geomJSON []byte) ([]float64, error) {
	var geom struct {
		Type        string      `json:"type"`
		Coordinates interface{} `json:"coordinates"`
	}
	if err := json.Unmarshal(geomJSON, &geom); err != nil {
		return nil, fmt.Errorf("Problem parsing GeoJSON coordinates: %v", err)
	}
	if geom.Coordinates == nil {
		return nil, fmt.Errorf("GeoJSON geometry has no coordinates")
	}

	bbox := []float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	if err := walkCoordinates(geom.Coordinates, bbox); err != nil {
		return nil, err
	}
	if math.IsInf(bbox[0], 1) {
		return nil, fmt.Errorf("GeoJSON geometry has no coordinates")
	}
	return bbox, nil
}

func walkCoordinates(node interface{}, bbox []float64) error {
	arr, ok := node.([]interface{})
	if !ok || len(arr) == 0 {
		return fmt.Errorf("malformed GeoJSON coordinates")
	}

	if x, ok := arr[0].(float64); ok {
		if len(arr) < 2 {
			return fmt.Errorf("malformed GeoJSON coordinates")
		}
		y, ok := arr[1].(float64)
		if !ok {
			return fmt.Errorf("malformed GeoJSON coordinates")
		}
		if x < bbox[0] {
			bbox[0] = x
		}
		if y < bbox[1] {
			bbox[1] = y
		}
		if x > bbox[2] {
			bbox[2] = x
		}
		if y > bbox[3] {
			bbox[3] = y
		}
		return nil
	}

	for _, child := range arr {
		if err := walkCoordinates(child, bbox); err != nil {
			return err
		}
	}
	return nil
}
