package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	sp "github.com/nci/ltsky/worker/segprocess"
	pb "github.com/nci/ltsky/worker/segservice"

	_ "net/http/pprof"

	"golang.org/x/net/context"
	"google.golang.org/grpc"
)

type server struct {
	Pool *pb.ProcessPool
}

func (s *server) Process(ctx context.Context, in *pb.SegRPCRequest) (*pb.Result, error) {
	rChan := make(chan *pb.Result)
	defer close(rChan)
	errChan := make(chan error)
	defer close(errChan)

	s.Pool.AddQueue(&pb.Task{Payload: in, Resp: rChan, Error: errChan})

	select {
	case out, ok := <-rChan:
		if !ok {
			return &pb.Result{}, fmt.Errorf("task response channel has been closed")
		}
		if out.Error != "OK" {
			return &pb.Result{}, fmt.Errorf("%s", out.Error)
		}
		return out, nil
	case err := <-errChan:
		return &pb.Result{}, fmt.Errorf("Error in ops: %v", err)
	}
}

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	poolSize := flag.Int("n", 8, "Maximum number of requests handled concurrently.")
	executable := flag.String("exec", "", "Executable filepath")
	maxTaskProcessed := flag.Int("max_tasks", 0, "Recycle a child process after this many tasks. Zero disables recycling.")
	oomThreshold := flag.Int("oom", 0, "Available memory threshold in KB below which the largest child is killed. Zero disables the monitor.")
	oomMatch := flag.String("oom_match", sp.DefaultExecMatch, "Regexp matching child process names for the OOM monitor.")
	maxRecvMsgSize := flag.Int("max_recv_msg_size", 100*1024*1024, "Maximum gRPC message size in bytes.")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	p, err := pb.CreateProcessPool(*poolSize, *executable, *maxTaskProcessed, *verbose)
	if err != nil {
		log.Printf("Failed to create process pool: %v", err)
		os.Exit(2)
	}

	if *oomThreshold > 0 {
		mon := sp.NewOOMMonitor(*oomMatch, *oomThreshold, *verbose)
		go func() {
			err := mon.StartMonitorLoop()
			if err != nil {
				log.Printf("OOM monitor stopped: %v", err)
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for {
			select {
			case <-signals:
				for _, proc := range p.Pool {
					if proc != nil {
						proc.RemoveTempFiles()
					}
				}

				os.Exit(1)
			}
		}
	}()

	s := grpc.NewServer(grpc.MaxRecvMsgSize(*maxRecvMsgSize), grpc.MaxSendMsgSize(*maxRecvMsgSize))
	pb.RegisterProcessorServer(s, &server{Pool: p})

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
