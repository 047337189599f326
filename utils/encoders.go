package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
)

type Raster interface {
	GetNoData() float64
}

type ByteRaster struct {
	NameSpace     string
	Data          []uint8
	Height, Width int
	NoData        float64
}

func (r *ByteRaster) GetNoData() float64 {
	return r.NoData
}

type Int16Raster struct {
	NameSpace     string
	Data          []int16
	Height, Width int
	NoData        float64
}

func (r *Int16Raster) GetNoData() float64 {
	return r.NoData
}

type UInt16Raster struct {
	NameSpace     string
	Data          []uint16
	Height, Width int
	NoData        float64
}

func (r *UInt16Raster) GetNoData() float64 {
	return r.NoData
}

type Float32Raster struct {
	NameSpace     string
	Data          []float32
	Height, Width int
	NoData        float64
}

func (r *Float32Raster) GetNoData() float64 {
	return r.NoData
}

const EmptyTileNS = "EmptyTile"

func IsEmptyTile(namespace string) bool {
	return len(namespace) >= len(EmptyTileNS) && namespace[:len(EmptyTileNS)] == EmptyTileNS
}

func EncodePNG(br []*ByteRaster, palette *Palette) ([]byte, error) {
	buf := new(bytes.Buffer)
	canvas := image.NewRGBA(image.Rect(0, 0, br[0].Width, br[0].Height))

	switch len(br) {
	case 1:
		if palette != nil {
			plt, err := GradientRGBAPalette(palette)
			if err != nil {
				return buf.Bytes(), err
			}

			for x := 0; x < br[0].Width; x++ {
				for y := 0; y < br[0].Height; y++ {
					if br[0].Data[y*br[0].Width+x] != 0xFF {
						canvas.Set(x, y, plt[br[0].Data[y*br[0].Width+x]])
					}
				}
			}
		} else {
			var start int
			for i := 0; i < br[0].Width*br[0].Height; i++ {
				val := br[0].Data[i]
				if val != 0xFF {
					start = i * 4
					canvas.Pix[start] = val
					canvas.Pix[start+1] = val
					canvas.Pix[start+2] = val
					canvas.Pix[start+3] = 0xff
				}
			}
		}

	case 3:
		rasterR := br[0]
		rasterG := br[1]
		rasterB := br[2]

		if rasterR == nil || rasterG == nil || rasterB == nil {
			return []byte{}, fmt.Errorf("At least one of the bands is nil")
		}

		var start int
		for i := 0; i < rasterR.Width*rasterR.Height; i++ {
			if rasterR.Data[i] != 0xFF || rasterG.Data[i] != 0xFF || rasterB.Data[i] != 0xFF {
				start = i * 4
				canvas.Pix[start] = rasterR.Data[i]
				canvas.Pix[start+1] = rasterG.Data[i]
				canvas.Pix[start+2] = rasterB.Data[i]
				canvas.Pix[start+3] = 0xff
			}
		}

	default:
		return []byte{}, fmt.Errorf("Cannot encode other than 1 or 3 namespaces into a PNG: Received %d", len(br))
	}

	err := png.Encode(buf, canvas)

	return buf.Bytes(), err
}

const DefaultJpegQuality = 85

// EncodeJPEG renders exactly 3 scaled byte rasters into an opaque
// RGB JPEG. No-data pixels come out black as JPEG carries no alpha.
func EncodeJPEG(br []*ByteRaster) ([]byte, error) {
	buf := new(bytes.Buffer)
	if len(br) != 3 {
		return buf.Bytes(), fmt.Errorf("Cannot encode other than 3 namespaces into a JPEG: Received %d", len(br))
	}

	rasterR := br[0]
	rasterG := br[1]
	rasterB := br[2]
	canvas := image.NewRGBA(image.Rect(0, 0, rasterR.Width, rasterR.Height))

	var start int
	for i := 0; i < rasterR.Width*rasterR.Height; i++ {
		if rasterR.Data[i] != 0xFF || rasterG.Data[i] != 0xFF || rasterB.Data[i] != 0xFF {
			start = i * 4
			canvas.Pix[start] = rasterR.Data[i]
			canvas.Pix[start+1] = rasterG.Data[i]
			canvas.Pix[start+2] = rasterB.Data[i]
			canvas.Pix[start+3] = 0xff
		}
	}

	opt := jpeg.Options{Quality: DefaultJpegQuality}
	err := jpeg.Encode(buf, canvas, &opt)
	return buf.Bytes(), err
}

func ValidateRasterSlice(rs []Raster) (int, int, string, error) {
	var width, height int
	var rasterType string
	var err error

	for _, r := range rs {
		switch t := r.(type) {
		case *ByteRaster:
			if rasterType == "" {
				rasterType = "Byte"
			} else if rasterType != "Byte" {
				err = fmt.Errorf("Mixed types")
			}

			if width == 0 {
				width = t.Width
			} else if width != t.Width {
				err = fmt.Errorf("Mixed width sizes")
			}

			if height == 0 {
				height = t.Height
			} else if height != t.Height {
				err = fmt.Errorf("Mixed height sizes")
			}
		case *Int16Raster:
			if rasterType == "" {
				rasterType = "Int16"
			} else if rasterType != "Int16" {
				err = fmt.Errorf("Mixed types")
			}

			if width == 0 {
				width = t.Width
			} else if width != t.Width {
				err = fmt.Errorf("Mixed width sizes")
			}

			if height == 0 {
				height = t.Height
			} else if height != t.Height {
				err = fmt.Errorf("Mixed height sizes")
			}
		case *UInt16Raster:
			if rasterType == "" {
				rasterType = "UInt16"
			} else if rasterType != "UInt16" {
				err = fmt.Errorf("Mixed types")
			}

			if width == 0 {
				width = t.Width
			} else if width != t.Width {
				err = fmt.Errorf("Mixed width sizes")
			}

			if height == 0 {
				height = t.Height
			} else if height != t.Height {
				err = fmt.Errorf("Mixed height sizes")
			}
		case *Float32Raster:
			if rasterType == "" {
				rasterType = "Float32"
			} else if rasterType != "Float32" {
				err = fmt.Errorf("Mixed types")
			}

			if width == 0 {
				width = t.Width
			} else if width != t.Width {
				err = fmt.Errorf("Mixed width sizes")
			}

			if height == 0 {
				height = t.Height
			} else if height != t.Height {
				err = fmt.Errorf("Mixed height sizes")
			}
		default:
			err = fmt.Errorf("Raster type not implemented")
		}
	}

	if width <= 0 || height <= 0 {
		err = fmt.Errorf("data unavailable")
	}

	return width, height, rasterType, err
}

const tSize = 256

// GetEmptyTile tiles a placeholder image across a canvas of the
// requested size for requests that resolve to no granules.
func GetEmptyTile(imageFileName string, height, width int) ([]byte, error) {
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))

	infile, err := os.Open(imageFileName)
	if err != nil {
		return nil, err
	}
	defer infile.Close()

	tile, _, err := image.Decode(infile)
	if err != nil {
		return nil, err
	}

	for x := 0; x < width; x += tSize {
		for y := 0; y < height; y += tSize {
			draw.Draw(canvas, image.Rect(x, y, x+tSize, y+tSize), tile, image.ZP, draw.Src)
		}
	}

	buf := new(bytes.Buffer)
	err = png.Encode(buf, canvas)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), err
}
