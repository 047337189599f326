package segprocess

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nci/ltsky/utils"
	pb "github.com/nci/ltsky/worker/segservice"
)

// ExtractInfo returns the granule container header as JSON. The
// crawler and the capabilities document are built from it.
func ExtractInfo(in *pb.SegRPCRequest) *pb.Result {
	f, err := os.Open(in.Path)
	if err != nil {
		return &pb.Result{Error: fmt.Sprintf("Error opening granule %s: %v", in.Path, err)}
	}
	defer f.Close()

	hdr, _, err := utils.DecodeContainerHeader(f)
	if err != nil {
		return &pb.Result{Error: fmt.Sprintf("Error reading granule %s: %v", in.Path, err)}
	}

	info, err := json.Marshal(hdr)
	if err != nil {
		return &pb.Result{Error: fmt.Sprintf("Error marshalling granule header: %v", err)}
	}

	return &pb.Result{Info: string(info), Error: "OK"}
}
