package utils

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Granule containers hold the offline fitter's per-tile outputs: a
// magic tag, a JSON header describing the bands, then raw
// little-endian band payloads in header order. The same format is
// served back to callers requesting non-visual products.
const ContainerMagic = "LTSG"
const ContainerVersion = 1

// ContainerBand describes one stored band. Rows and Cols give the
// per-pixel array shape: the segmentation band stores 4 rows by
// maxSegments+1 cols per pixel, annual fitted bands store 1 row by
// nYears cols and scalar bands 1x1.
type ContainerBand struct {
	NameSpace string   `json:"namespace"`
	ArrayType string   `json:"array_type"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	Dates     []string `json:"dates,omitempty"`
	NoData    float64  `json:"nodata"`
}

type ContainerHeader struct {
	Product      string           `json:"product,omitempty"`
	Width        int              `json:"width"`
	Height       int              `json:"height"`
	GeoTransform []float64        `json:"geo_transform,omitempty"`
	Bands        []*ContainerBand `json:"bands"`
}

var arrayTypeSizes = map[string]int{
	"Byte":    1,
	"Int16":   2,
	"UInt16":  2,
	"Float32": 4,
}

func ArrayTypeSize(arrayType string) (int, error) {
	size, found := arrayTypeSizes[arrayType]
	if !found {
		return 0, fmt.Errorf("Unsupported array type: %s", arrayType)
	}
	return size, nil
}

// PixelStride is the number of values each pixel holds in the band.
func (band *ContainerBand) PixelStride() int {
	return band.Rows * band.Cols
}

// SizeBytes is the payload size of the band in a container of the
// given raster dimensions.
func (band *ContainerBand) SizeBytes(width, height int) (int64, error) {
	typeSize, err := ArrayTypeSize(band.ArrayType)
	if err != nil {
		return 0, err
	}
	return int64(width) * int64(height) * int64(band.PixelStride()) * int64(typeSize), nil
}

func (hdr *ContainerHeader) validate() error {
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return fmt.Errorf("container dimensions must be positive, got %dx%d", hdr.Width, hdr.Height)
	}
	if len(hdr.Bands) == 0 {
		return fmt.Errorf("container requires at least one band")
	}
	seen := make(map[string]struct{})
	for _, band := range hdr.Bands {
		ns := strings.TrimSpace(band.NameSpace)
		if len(ns) == 0 {
			return fmt.Errorf("container band requires a namespace")
		}
		if _, found := seen[ns]; found {
			return fmt.Errorf("duplicate container namespace: %s", ns)
		}
		seen[ns] = struct{}{}

		if band.Rows < 1 || band.Cols < 1 {
			return fmt.Errorf("band %s: rows and cols must be >= 1", ns)
		}
		if _, err := ArrayTypeSize(band.ArrayType); err != nil {
			return err
		}
		if len(band.Dates) > 0 && len(band.Dates) != band.Cols {
			return fmt.Errorf("band %s: %d dates for %d cols", ns, len(band.Dates), band.Cols)
		}
	}
	return nil
}

// FindBand returns the header band published under the namespace.
func (hdr *ContainerHeader) FindBand(nameSpace string) (*ContainerBand, error) {
	for _, band := range hdr.Bands {
		if band.NameSpace == nameSpace {
			return band, nil
		}
	}
	return nil, fmt.Errorf("namespace %s not found in container", nameSpace)
}

// BandOffset computes the byte offset of a band's payload relative
// to the start of the payload section.
func (hdr *ContainerHeader) BandOffset(nameSpace string) (int64, error) {
	var offset int64
	for _, band := range hdr.Bands {
		if band.NameSpace == nameSpace {
			return offset, nil
		}
		size, err := band.SizeBytes(hdr.Width, hdr.Height)
		if err != nil {
			return 0, err
		}
		offset += size
	}
	return 0, fmt.Errorf("namespace %s not found in container", nameSpace)
}

// EncodeContainer streams a container: header first, then one raw
// little-endian payload per band in header order. Payload lengths
// must match the band shapes exactly.
func EncodeContainer(w io.Writer, hdr *ContainerHeader, payloads [][]byte) error {
	if err := hdr.validate(); err != nil {
		return err
	}
	if len(payloads) != len(hdr.Bands) {
		return fmt.Errorf("container has %d bands but %d payloads", len(hdr.Bands), len(payloads))
	}

	for i, band := range hdr.Bands {
		size, err := band.SizeBytes(hdr.Width, hdr.Height)
		if err != nil {
			return err
		}
		if int64(len(payloads[i])) != size {
			return fmt.Errorf("band %s: payload is %d bytes, want %d", band.NameSpace, len(payloads[i]), size)
		}
	}

	hdrBytes, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("error marshalling container header: %v", err)
	}

	if _, err := w.Write([]byte(ContainerMagic)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{ContainerVersion}); err != nil {
		return err
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(hdrBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(hdrBytes); err != nil {
		return err
	}

	for _, payload := range payloads {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

const maxContainerHeaderSize = 16 * 1024 * 1024

// DecodeContainerHeader reads the header section and returns it with
// the byte offset where the payload section begins.
func DecodeContainerHeader(r io.Reader) (*ContainerHeader, int64, error) {
	var magic [5]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, 0, fmt.Errorf("error reading container magic: %v", err)
	}
	if string(magic[:4]) != ContainerMagic {
		return nil, 0, fmt.Errorf("not a granule container: bad magic %q", string(magic[:4]))
	}
	if magic[4] != ContainerVersion {
		return nil, 0, fmt.Errorf("unsupported container version: %d", magic[4])
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, 0, fmt.Errorf("error reading container header length: %v", err)
	}
	hdrLen := binary.LittleEndian.Uint32(lenBuf[:])
	if hdrLen == 0 || hdrLen > maxContainerHeaderSize {
		return nil, 0, fmt.Errorf("implausible container header length: %d", hdrLen)
	}

	hdrBytes := make([]byte, hdrLen)
	if _, err := io.ReadFull(r, hdrBytes); err != nil {
		return nil, 0, fmt.Errorf("error reading container header: %v", err)
	}

	hdr := &ContainerHeader{}
	if err := json.Unmarshal(hdrBytes, hdr); err != nil {
		return nil, 0, fmt.Errorf("error parsing container header: %v", err)
	}
	if err := hdr.validate(); err != nil {
		return nil, 0, err
	}

	payloadStart := int64(len(magic)) + int64(len(lenBuf)) + int64(hdrLen)
	return hdr, payloadStart, nil
}
