package processor

import (
	"context"
	"io"
	"regexp"
)

// InfoPipeline crawls a granule store and streams index records for
// every matching container, decoding headers on seg-server workers.
type InfoPipeline struct {
	Context context.Context
	Error   chan error
	RPCAdds []string
}

func InitInfoPipeline(ctx context.Context, rpcAddrs []string, errChan chan error) *InfoPipeline {
	return &InfoPipeline{
		Context: ctx,
		Error:   errChan,
		RPCAdds: rpcAddrs,
	}
}

func (dp *InfoPipeline) Process(rootPath string, product string, contains *regexp.Regexp, file io.Writer) chan struct{} {
	i := NewFileCrawler(rootPath, contains, dp.Error)
	grpcInfo := NewInfoGRPC(dp.Context, dp.RPCAdds, dp.Error)
	e := NewGranuleEncoder(product, dp.Error)
	p := NewJSONPrinter(file, dp.Error)

	grpcInfo.In = i.Out
	e.In = grpcInfo.Out
	p.In = e.Out

	go i.Run()
	go grpcInfo.Run()
	go e.Run()
	go p.Run()

	return p.Out
}
