package processor

import (
	"context"
)

// DrillPipeline chains indexer, worker fan-out and merger for one
// regional statistics request.
type DrillPipeline struct {
	Context            context.Context
	Error              chan error
	RPCAddress         []string
	MaxGrpcRecvMsgSize int
	IndexAddress       string
	TemplateFileName   string
}

func InitDrillPipeline(ctx context.Context, indexAddr string, rpcAddrs []string, maxGrpcRecvMsgSize int, templateFileName string, errChan chan error) *DrillPipeline {
	return &DrillPipeline{
		Context:            ctx,
		Error:              errChan,
		RPCAddress:         rpcAddrs,
		MaxGrpcRecvMsgSize: maxGrpcRecvMsgSize,
		IndexAddress:       indexAddr,
		TemplateFileName:   templateFileName,
	}
}

func (dp *DrillPipeline) Process(drillReq *DrillRequest, verbose bool) chan *DrillOutput {
	indexer := NewDrillIndexer(dp.Context, dp.IndexAddress, dp.TemplateFileName, dp.Error)
	go func() {
		indexer.In <- drillReq
		close(indexer.In)
	}()

	grpcDriller := NewDrillGRPC(dp.Context, dp.RPCAddress, dp.MaxGrpcRecvMsgSize, dp.Error)
	merger := NewDrillMerger(dp.Context, dp.Error)

	grpcDriller.In = indexer.Out
	merger.In = grpcDriller.Out

	go indexer.Run(verbose)
	go grpcDriller.Run(verbose)
	go merger.Run(drillReq.NameSpace, drillReq.DecileCount, verbose)

	return merger.Out
}
