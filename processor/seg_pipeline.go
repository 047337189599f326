package processor

import (
	"context"
)

// SegPipeline is the indexer, worker extract and merger stages wired
// the staged-channel way. Process returns the merged namespace
// canvases for one tile request.
type SegPipeline struct {
	Context            context.Context
	Error              chan error
	RPCAddress         []string
	MaxGrpcRecvMsgSize int
	IndexAddress       string
}

func InitSegPipeline(ctx context.Context, indexAddr string, rpcAddr []string, maxGrpcRecvMsgSize int, errChan chan error) *SegPipeline {
	return &SegPipeline{
		Context:            ctx,
		Error:              errChan,
		RPCAddress:         rpcAddr,
		MaxGrpcRecvMsgSize: maxGrpcRecvMsgSize,
		IndexAddress:       indexAddr,
	}
}

func (dp *SegPipeline) Process(geoReq *SegTileRequest, verbose bool) chan map[string]*FlexRaster {
	grpcTiler := NewSegGRPC(dp.Context, dp.RPCAddress, dp.MaxGrpcRecvMsgSize, dp.Error)

	i := NewSegIndexer(dp.Context, dp.IndexAddress, dp.Error)
	go func() {
		i.In <- geoReq
		close(i.In)
	}()

	m := NewSegMerger(dp.Error)

	grpcTiler.In = i.Out
	m.In = grpcTiler.Out

	go i.Run(verbose)
	go grpcTiler.Run(verbose)
	go m.Run()

	return m.Out
}
