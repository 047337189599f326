package processor

import (
	"context"
	"fmt"

	"github.com/nci/ltsky/utils"
)

// ChangePipeline pulls the segmentation and rmse canvases for a tile
// request and reduces them to the flattened change stack.
type ChangePipeline struct {
	*SegPipeline
}

func InitChangePipeline(ctx context.Context, indexAddr string, rpcAddr []string, maxGrpcRecvMsgSize int, errChan chan error) *ChangePipeline {
	return &ChangePipeline{InitSegPipeline(ctx, indexAddr, rpcAddr, maxGrpcRecvMsgSize, errChan)}
}

func (p *ChangePipeline) Process(geoReq *SegTileRequest, segNS, rmseNS string, opts ChangeOptions, verbose bool) chan *ChangeStack {
	geoReq.NameSpaces = []string{segNS, rmseNS}
	resChan := p.SegPipeline.Process(geoReq, verbose)

	out := make(chan *ChangeStack, 1)
	go func() {
		defer close(out)
		for canvasMap := range resChan {
			segFlex, found := canvasMap[segNS]
			if !found {
				p.sendError(fmt.Errorf("segmentation band '%v' not found", segNS))
				return
			}

			seg, err := segFlex.AsSegRaster()
			if err != nil {
				p.sendError(err)
				return
			}

			var rmse *utils.Float32Raster
			if rmseFlex, found := canvasMap[rmseNS]; found {
				rmse, err = rmseFlex.AsFloat32Raster()
				if err != nil {
					p.sendError(err)
					return
				}
			}

			cs, err := BuildChangeStack(seg, rmse, geoReq.MaxSegments, opts)
			if err != nil {
				p.sendError(err)
				return
			}
			out <- cs
		}
	}()
	return out
}

func (p *ChangePipeline) sendError(err error) {
	select {
	case p.Error <- err:
	default:
	}
}
