package processor

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/nci/ltsky/utils"
	pb "github.com/nci/ltsky/worker/segservice"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
)

// SegGRPC fans granule extracts out over the worker nodes. Each
// input granule becomes one Processor/Process call; outputs are the
// extracted canvases as FlexRasters.
type SegGRPC struct {
	Context            context.Context
	In                 chan *SegGranule
	Out                chan *FlexRaster
	Error              chan error
	Clients            []string
	MaxGrpcRecvMsgSize int
}

func NewSegGRPC(ctx context.Context, serverAddress []string, maxGrpcRecvMsgSize int, errChan chan error) *SegGRPC {
	return &SegGRPC{
		Context:            ctx,
		In:                 make(chan *SegGranule, 100),
		Out:                make(chan *FlexRaster, 100),
		Error:              errChan,
		Clients:            serverAddress,
		MaxGrpcRecvMsgSize: maxGrpcRecvMsgSize,
	}
}

func (gi *SegGRPC) Run(verbose bool) {
	if verbose {
		defer log.Printf("seg grpc done")
	}
	defer close(gi.Out)

	var grans []*SegGranule
	for gran := range gi.In {
		if gran.Path == "NULL" {
			gi.Out <- emptyFlexRaster(gran)
			continue
		}
		grans = append(grans, gran)
	}

	if len(grans) == 0 {
		return
	}

	g0 := grans[0]
	effectivePoolSize := int(math.Ceil(float64(len(grans)) / float64(g0.GrpcConcLimit)))
	if effectivePoolSize < 1 {
		effectivePoolSize = 1
	} else if effectivePoolSize > len(gi.Clients) {
		effectivePoolSize = len(gi.Clients)
	}

	opts := []grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(gi.MaxGrpcRecvMsgSize)),
	}

	clientIdx := make([]int, len(gi.Clients))
	for ic := range clientIdx {
		clientIdx[ic] = ic
	}
	rand.Shuffle(len(clientIdx), func(i, j int) { clientIdx[i], clientIdx[j] = clientIdx[j], clientIdx[i] })

	var connPool []*grpc.ClientConn
	for i := 0; i < effectivePoolSize; i++ {
		conn, err := grpc.Dial(gi.Clients[clientIdx[i]], opts...)
		if err != nil {
			log.Printf("gRPC connection problem: %v", err)
			continue
		}
		defer conn.Close()

		connPool = append(connPool, conn)
	}

	if len(connPool) == 0 {
		gi.Error <- fmt.Errorf("All gRPC servers offline")
		return
	}

	cLimiter := NewConcLimiter(g0.GrpcConcLimit * len(connPool))
	for iGran, gran := range grans {
		select {
		case <-gi.Context.Done():
			gi.sendError(fmt.Errorf("seg grpc context has been cancelled: %v", gi.Context.Err()))
			return
		default:
			cLimiter.Increase()
			go func(g *SegGranule, conn *grpc.ClientConn) {
				defer cLimiter.Decrease()
				r, err := getRPCRaster(gi.Context, g, conn)
				if err != nil {
					gi.sendError(err)
					gi.Out <- emptyFlexRaster(g)
					return
				}

				years := make([]int, len(r.Raster.Years))
				for i, y := range r.Raster.Years {
					years[i] = int(y)
				}
				gi.Out <- &FlexRaster{ConfigPayLoad: g.ConfigPayLoad, Data: r.Raster.Data,
					Height: g.Height, Width: g.Width, Rows: int(r.Raster.Rows), Cols: int(r.Raster.Cols),
					Years: years, Type: r.Raster.RasterType, NoData: r.Raster.NoData, NameSpace: g.NameSpace}
			}(gran, connPool[iGran%len(connPool)])
		}
	}
	cLimiter.Wait()
}

func (gi *SegGRPC) sendError(err error) {
	select {
	case gi.Error <- err:
	default:
	}
}

func emptyFlexRaster(g *SegGranule) *FlexRaster {
	stride := g.Rows * g.Cols
	if stride < 1 {
		stride = 1
	}
	data := make([]byte, g.Width*g.Height*stride*SizeofFloat32)
	out := &FlexRaster{ConfigPayLoad: g.ConfigPayLoad, Data: data, Height: g.Height, Width: g.Width,
		Rows: g.Rows, Cols: g.Cols, Years: g.Years, Type: "Float32", NoData: g.NoData, NameSpace: g.NameSpace}
	fill := out.Float32Data()
	for i := range fill {
		fill[i] = float32(g.NoData)
	}
	return out
}

func getRPCRaster(ctx context.Context, g *SegGranule, conn *grpc.ClientConn) (*pb.Result, error) {
	c := pb.NewProcessorClient(conn)

	granule := &pb.SegRPCRequest{Operation: "extract", Path: g.Path, NameSpace: g.NameSpace,
		Height: int32(g.Height), Width: int32(g.Width), Geot: utils.BBox2Geot(g.Width, g.Height, g.BBox)}

	// registered spectral indices go down as expressions over the
	// granule's source bands
	if g.BandExpr != nil {
		if expr, varRef, err := g.BandExpr.FindExpr(g.NameSpace); err == nil {
			granule.Expression = expr.String()
			granule.VarRef = varRef
			granule.NameSpace = ""
		}
	}

	r, err := c.Process(ctx, granule)
	if err != nil {
		return nil, err
	}
	if r.Raster == nil {
		return nil, fmt.Errorf("worker returned no raster for %s", g.Path)
	}

	return r, nil
}
