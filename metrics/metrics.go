package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	"github.com/nci/ltsky/utils"
)

type URLInfo struct {
	RawURL string            `json:"raw_url"`
	Host   string            `json:"host"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query"`
}

type IndexerInfo struct {
	Duration    time.Duration `json:"duration"`
	URL         URLInfo       `json:"url"`
	Geometry    string        `json:"geometry"`
	NumGranules int           `json:"num_granules"`
}

type RPCInfo struct {
	Duration    time.Duration `json:"duration"`
	NumGranules int           `json:"num_granules"`
	BytesRead   int64         `json:"bytes_read"`
}

// TransformInfo times the array reshaping stages downstream of the
// workers: segment metrics, change classification, stack assembly
// and rendering.
type TransformInfo struct {
	Duration  time.Duration `json:"duration"`
	NumPixels int           `json:"num_pixels"`
}

type MetricsInfo struct {
	ReqTime     string         `json:"req_time"`
	ReqDuration time.Duration  `json:"req_duration"`
	URL         URLInfo        `json:"url"`
	RemoteAddr  string         `json:"remote_addr"`
	RemoteHost  string         `json:"remote_host"`
	RemotePort  string         `json:"remote_port"`
	HTTPStatus  int            `json:"http_status"`
	Indexer     *IndexerInfo   `json:"indexer"`
	RPC         *RPCInfo       `json:"rpc"`
	Transform   *TransformInfo `json:"transform"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	return &MetricsCollector{
		Info: &MetricsInfo{
			Indexer:   &IndexerInfo{},
			RPC:       &RPCInfo{},
			Transform: &TransformInfo{},
		},
		logger: logger,
	}
}

func (m *MetricsCollector) Log() {
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	i.normaliseNetworkAddr(i.RemoteAddr)
	i.normaliseURLs()

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(i)
	if err == nil {
		return buf.String(), nil
	}
	return "", err
}

func (i *MetricsInfo) normaliseNetworkAddr(addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		i.RemoteHost = host
		i.RemotePort = port
	} else {
		i.RemoteHost = addr
	}
}

func (i *MetricsInfo) normaliseURLs() {
	err := i.normaliseURL(&i.URL)
	if err != nil {
		log.Printf("metrics: normaliseUrl() error: %v", err)
	}

	if i.Indexer != nil {
		err = i.normaliseURL(&i.Indexer.URL)
		if err != nil {
			log.Printf("metrics: indexer: normaliseUrl() error: %v", err)
		}
	}
}

func (i *MetricsInfo) normaliseURL(u *URLInfo) error {
	r, err := url.Parse(u.RawURL)
	if err != nil {
		return err
	}

	u.Host = r.Host
	u.Path = r.Path
	query, err := utils.ParseQuery(r.RawQuery)
	if err != nil {
		return err
	}

	if u.Query == nil {
		u.Query = make(map[string]string)
	}
	for k, v := range query {
		if len(v) == 1 {
			u.Query[k] = v[0]
		} else if len(v) > 1 {
			u.Query[k] = fmt.Sprintf("%v", v)
		} else {
			u.Query[k] = ""
		}
	}
	return nil
}
