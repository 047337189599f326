package processor

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"

	"golang.org/x/net/context"
	"google.golang.org/grpc"

	"github.com/nci/ltsky/utils"
	pb "github.com/nci/ltsky/worker/segservice"
)

// GranuleHeader pairs a granule path with its decoded container
// header.
type GranuleHeader struct {
	Path   string
	Header *utils.ContainerHeader
}

// InfoGRPC fans granule paths out to seg-server workers and collects
// the decoded container headers.
type InfoGRPC struct {
	Context context.Context
	In      chan string
	Out     chan *GranuleHeader
	Error   chan error
	Clients []string
}

func NewInfoGRPC(ctx context.Context, serverAddress []string, errChan chan error) *InfoGRPC {
	return &InfoGRPC{
		Context: ctx,
		In:      make(chan string, 100),
		Out:     make(chan *GranuleHeader, 100),
		Error:   errChan,
		Clients: serverAddress,
	}
}

func (gi *InfoGRPC) Run() {
	defer close(gi.Out)

	conns := make([]*grpc.ClientConn, len(gi.Clients))
	for i, client := range gi.Clients {
		conn, err := grpc.Dial(client, grpc.WithInsecure())
		if err != nil {
			log.Fatalf("gRPC connection problem: %v", err)
		}
		defer conn.Close()
		conns[i] = conn
	}

	// Concurrency limited to the number of gRPC workers
	cl := NewConcLimiter(16)
	for gran := range gi.In {
		select {
		case <-gi.Context.Done():
			gi.Error <- fmt.Errorf("info gRPC context has been cancelled: %v", gi.Context.Err())
			return
		default:
			cl.Increase()
			go func(g string) {
				defer cl.Decrease()

				c := pb.NewProcessorClient(conns[rand.Intn(len(conns))])
				r, err := c.Process(gi.Context, &pb.SegRPCRequest{Operation: "info", Path: g})
				if err != nil {
					gi.Error <- err
					return
				}
				if r.Error != "OK" {
					gi.Error <- fmt.Errorf("%s: %s", g, r.Error)
					return
				}

				hdr := &utils.ContainerHeader{}
				if err := json.Unmarshal([]byte(r.Info), hdr); err != nil {
					gi.Error <- fmt.Errorf("%s: malformed header info: %v", g, err)
					return
				}
				gi.Out <- &GranuleHeader{Path: g, Header: hdr}
			}(gran)
		}
	}

	cl.Wait()
}
