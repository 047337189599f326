package processor

import (
	"encoding/json"
	"os"

	extr "github.com/nci/ltsky/crawl/extractor"
)

// GranuleEncoder turns decoded container headers into the JSON lines
// the granule index /ingest endpoint consumes, one line per band
// namespace. Sidecar metadata and file timestamps are read from the
// shared store.
type GranuleEncoder struct {
	In      chan *GranuleHeader
	Out     chan []byte
	Error   chan error
	Product string
}

func NewGranuleEncoder(product string, errChan chan error) *GranuleEncoder {
	return &GranuleEncoder{
		In:      make(chan *GranuleHeader, 100),
		Out:     make(chan []byte, 100),
		Error:   errChan,
		Product: product,
	}
}

func (ge *GranuleEncoder) Run() {
	defer close(ge.Out)

	for gran := range ge.In {
		records, err := extr.RecordsFromHeader(gran.Path, ge.Product, gran.Header)
		if err != nil {
			ge.Error <- err
			continue
		}

		if fStat, err := os.Stat(gran.Path); err == nil {
			for _, rec := range records {
				rec.Created = fStat.ModTime().UTC()
			}
		}

		sidecar, err := extr.ExtractSidecar(gran.Path)
		if err != nil {
			ge.Error <- err
		} else if sidecar != nil {
			extr.MergeSidecar(records, sidecar)
		}

		for _, rec := range records {
			out, err := json.Marshal(rec)
			if err != nil {
				ge.Error <- err
				continue
			}
			ge.Out <- append(out, '\n')
		}
	}
}
