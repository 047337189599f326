package processor

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	pb "github.com/nci/ltsky/worker/segservice"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
)

// DrillGRPC fans granule drills out over the worker nodes. Each input
// granule becomes one Processor/Process call with the drill operation;
// outputs are the raw per-year samples inside the request geometry.
type DrillGRPC struct {
	Context            context.Context
	In                 chan *DrillGranule
	Out                chan *DrillSamples
	Error              chan error
	Clients            []string
	MaxGrpcRecvMsgSize int
}

func NewDrillGRPC(ctx context.Context, serverAddress []string, maxGrpcRecvMsgSize int, errChan chan error) *DrillGRPC {
	return &DrillGRPC{
		Context:            ctx,
		In:                 make(chan *DrillGranule, 100),
		Out:                make(chan *DrillSamples, 100),
		Error:              errChan,
		Clients:            serverAddress,
		MaxGrpcRecvMsgSize: maxGrpcRecvMsgSize,
	}
}

func (gi *DrillGRPC) Run(verbose bool) {
	if verbose {
		defer log.Printf("drill grpc done")
	}
	defer close(gi.Out)

	var grans []*DrillGranule
	for gran := range gi.In {
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
			gi.sendError(fmt.Errorf("drill grpc context has been cancelled: %v", gi.Context.Err()))
			return
		default:
			cLimiter.Increase()
			go func(g *DrillGranule, conn *grpc.ClientConn) {
				defer cLimiter.Decrease()
				c := pb.NewProcessorClient(conn)

				granule := &pb.SegRPCRequest{Operation: "drill", Path: g.Path,
					NameSpace: g.NameSpace, Geometry: g.Geometry}
				if g.StartYear > 0 && g.EndYear > 0 {
					granule.Years = []int32{int32(g.StartYear), int32(g.EndYear)}
				}
				if g.BandExpr != nil {
					if expr, varRef, err := g.BandExpr.FindExpr(g.NameSpace); err == nil {
						granule.Expression = expr.String()
						granule.VarRef = varRef
						granule.NameSpace = ""
					}
				}

				r, err := c.Process(gi.Context, granule)
				if err != nil {
					gi.sendError(err)
					return
				}

				gi.Out <- &DrillSamples{NameSpace: g.NameSpace, Samples: r.Samples}
			}(gran, connPool[iGran%len(connPool)])
		}
	}
	cLimiter.Wait()
}

func (gi *DrillGRPC) sendError(err error) {
	select {
	case gi.Error <- err:
	default:
	}
}
