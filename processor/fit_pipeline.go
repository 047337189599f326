package processor

import (
	"context"
	"fmt"
)

// FitPipeline pulls annual fitted canvases for one or more
// namespaces, either stored ftv bands or registered index
// expressions computed on the worker.
type FitPipeline struct {
	*SegPipeline
}

func InitFitPipeline(ctx context.Context, indexAddr string, rpcAddr []string, maxGrpcRecvMsgSize int, errChan chan error) *FitPipeline {
	return &FitPipeline{InitSegPipeline(ctx, indexAddr, rpcAddr, maxGrpcRecvMsgSize, errChan)}
}

func (p *FitPipeline) Process(geoReq *SegTileRequest, nameSpaces []string, verbose bool) chan map[string]*FTVRaster {
	geoReq.NameSpaces = nameSpaces
	resChan := p.SegPipeline.Process(geoReq, verbose)

	out := make(chan map[string]*FTVRaster, 1)
	go func() {
		defer close(out)
		for canvasMap := range resChan {
			ftvMap := make(map[string]*FTVRaster, len(nameSpaces))
			for _, ns := range nameSpaces {
				flex, found := canvasMap[ns]
				if !found {
					p.sendError(fmt.Errorf("fitted band '%v' not found", ns))
					return
				}
				ftv, err := flex.AsFTVRaster()
				if err != nil {
					p.sendError(err)
					return
				}
				ftvMap[ns] = ftv
			}
			out <- ftvMap
		}
	}()
	return out
}

func (p *FitPipeline) sendError(err error) {
	select {
	case p.Error <- err:
	default:
	}
}
