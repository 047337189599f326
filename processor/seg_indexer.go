package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"strings"
	"time"
)

// GranuleMetadata mirrors one record of the granule index API
// response.
type GranuleMetadata struct {
	Path      string    `json:"path"`
	NameSpace string    `json:"namespace"`
	ArrayType string    `json:"array_type"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Years     []int     `json:"years"`
	NoData    float64   `json:"nodata"`
	MinX      float64   `json:"min_x"`
	MinY      float64   `json:"min_y"`
	MaxX      float64   `json:"max_x"`
	MaxY      float64   `json:"max_y"`
	Created   time.Time `json:"created,omitempty"`
}

type MetadataResponse struct {
	Granules []*GranuleMetadata `json:"granules"`
	Error    string             `json:"error,omitempty"`
}

// SegIndexer resolves a tile request into the granule files covering
// its bounding box, one output granule per file per namespace.
type SegIndexer struct {
	Context    context.Context
	In         chan *SegTileRequest
	Out        chan *SegGranule
	Error      chan error
	APIAddress string
}

func NewSegIndexer(ctx context.Context, apiAddr string, errChan chan error) *SegIndexer {
	return &SegIndexer{
		Context:    ctx,
		In:         make(chan *SegTileRequest, 100),
		Out:        make(chan *SegGranule, 100),
		Error:      errChan,
		APIAddress: apiAddr,
	}
}

func (p *SegIndexer) Run(verbose bool) {
	defer close(p.Out)
	for geoReq := range p.In {
		select {
		case <-p.Context.Done():
			p.Error <- fmt.Errorf("seg indexer context has been cancelled: %v", p.Context.Err())
			return
		default:
			for _, nameSpace := range geoReq.NameSpaces {
				// index expressions resolve to their source bands on
				// the worker, the index only needs the file list
				queryNS := nameSpace
				if geoReq.BandExpr != nil {
					if _, varRef, err := geoReq.BandExpr.FindExpr(nameSpace); err == nil && len(varRef) > 0 {
						queryNS = strings.Join(varRef, ",")
					}
				}

				url := strings.Replace(fmt.Sprintf("http://%s/granules?product=%s&time0=%d&time1=%d&bbox=%f,%f,%f,%f&namespace=%s",
					p.APIAddress, geoReq.Collection, geoReq.StartYear, geoReq.EndYear,
					geoReq.BBox[0], geoReq.BBox[1], geoReq.BBox[2], geoReq.BBox[3], queryNS), " ", "%20", -1)
				if verbose {
					log.Println(url)
				}

				p.urlIndexGet(url, nameSpace, geoReq)
			}
		}
	}
}

func (p *SegIndexer) emptyGranule(nameSpace string, geoReq *SegTileRequest) *SegGranule {
	return &SegGranule{ConfigPayLoad: geoReq.ConfigPayLoad, Path: "NULL", NameSpace: nameSpace,
		RasterType: "Float32", Rows: 1, Cols: 1, NoData: ChangeNoData,
		BBox: geoReq.BBox, Height: geoReq.Height, Width: geoReq.Width}
}

func (p *SegIndexer) urlIndexGet(url, nameSpace string, geoReq *SegTileRequest) {
	resp, err := http.Get(url)
	if err != nil {
		p.Error <- fmt.Errorf("GET request to %s failed. Error: %v", url, err)
		p.Out <- p.emptyGranule(nameSpace, geoReq)
		return
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		p.Error <- fmt.Errorf("Error parsing response body from %s. Error: %v", url, err)
		p.Out <- p.emptyGranule(nameSpace, geoReq)
		return
	}

	var metadata MetadataResponse
	err = json.Unmarshal(body, &metadata)
	if err != nil {
		p.Error <- fmt.Errorf("Problem parsing JSON response from %s. Error: %v", url, err)
		p.Out <- p.emptyGranule(nameSpace, geoReq)
		return
	}
	if len(metadata.Error) > 0 {
		p.Error <- fmt.Errorf("granule index returned error: %v", metadata.Error)
		p.Out <- p.emptyGranule(nameSpace, geoReq)
		return
	}

	if len(metadata.Granules) == 0 {
		p.Out <- p.emptyGranule(nameSpace, geoReq)
		return
	}

	for _, ds := range metadata.Granules {
		p.Out <- &SegGranule{ConfigPayLoad: geoReq.ConfigPayLoad, Path: ds.Path, NameSpace: nameSpace,
			RasterType: ds.ArrayType, Rows: ds.Rows, Cols: ds.Cols, Years: ds.Years, NoData: ds.NoData,
			BBox: geoReq.BBox, Height: geoReq.Height, Width: geoReq.Width}
	}
}
