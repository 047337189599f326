// Package segservice carries the wire protocol between the tile
// server, the seg-server workers and their seg-process children. The
// messages are hand-maintained legacy protobuf structs so the worker
// binaries build without a protoc toolchain.
package segservice

// SegRPCRequest is one unit of work against a single granule file.
// Operation selects extract, drill or info. For extract, Geot and the
// canvas size describe the target grid; Expression and VarRef carry a
// compiled spectral index over the granule's source bands. For drill,
// Geometry holds the GeoJSON region and Years the inclusive
// [start, end] year span scoping the samples.
type SegRPCRequest struct {
	Operation  string    `protobuf:"bytes,1,opt,name=operation" json:"operation,omitempty"`
	Path       string    `protobuf:"bytes,2,opt,name=path" json:"path,omitempty"`
	NameSpace  string    `protobuf:"bytes,3,opt,name=name_space" json:"name_space,omitempty"`
	Height     int32     `protobuf:"varint,4,opt,name=height" json:"height,omitempty"`
	Width      int32     `protobuf:"varint,5,opt,name=width" json:"width,omitempty"`
	Geot       []float64 `protobuf:"fixed64,6,rep,packed,name=geot" json:"geot,omitempty"`
	Years      []int32   `protobuf:"varint,7,rep,packed,name=years" json:"years,omitempty"`
	Geometry   string    `protobuf:"bytes,8,opt,name=geometry" json:"geometry,omitempty"`
	Expression string    `protobuf:"bytes,9,opt,name=expression" json:"expression,omitempty"`
	VarRef     []string  `protobuf:"bytes,10,rep,name=var_ref" json:"var_ref,omitempty"`
}

func (m *SegRPCRequest) Reset()         { *m = SegRPCRequest{} }
func (m *SegRPCRequest) String() string { return "SegRPCRequest" }
func (*SegRPCRequest) ProtoMessage()    {}

// Raster is an extract response band resampled onto the request
// canvas. Rows and Cols carry the per-pixel array shape so the
// caller can rebuild segmentation and fitted arrays.
type Raster struct {
	Data       []byte  `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
	RasterType string  `protobuf:"bytes,2,opt,name=raster_type" json:"raster_type,omitempty"`
	NoData     float64 `protobuf:"fixed64,3,opt,name=no_data" json:"no_data,omitempty"`
	Rows       int32   `protobuf:"varint,4,opt,name=rows" json:"rows,omitempty"`
	Cols       int32   `protobuf:"varint,5,opt,name=cols" json:"cols,omitempty"`
	Years      []int32 `protobuf:"varint,6,rep,packed,name=years" json:"years,omitempty"`
}

func (m *Raster) Reset()         { *m = Raster{} }
func (m *Raster) String() string { return "Raster" }
func (*Raster) ProtoMessage()    {}

// YearSamples carries the raw drill samples of one calendar year so
// the merger can pool samples across granules before reducing them.
type YearSamples struct {
	Year   int32     `protobuf:"varint,1,opt,name=year" json:"year,omitempty"`
	Values []float64 `protobuf:"fixed64,2,rep,packed,name=values" json:"values,omitempty"`
}

func (m *YearSamples) Reset()         { *m = YearSamples{} }
func (m *YearSamples) String() string { return "YearSamples" }
func (*YearSamples) ProtoMessage()    {}

// Result is the single response envelope of every operation. Error
// is "OK" on success.
type Result struct {
	Raster  *Raster        `protobuf:"bytes,1,opt,name=raster" json:"raster,omitempty"`
	Samples []*YearSamples `protobuf:"bytes,2,rep,name=samples" json:"samples,omitempty"`
	Info    string         `protobuf:"bytes,3,opt,name=info" json:"info,omitempty"`
	Error   string         `protobuf:"bytes,4,opt,name=error" json:"error,omitempty"`
}

func (m *Result) Reset()         { *m = Result{} }
func (m *Result) String() string { return "Result" }
func (*Result) ProtoMessage()    {}
