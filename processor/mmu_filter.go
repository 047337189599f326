package processor

import (
	"fmt"

	"github.com/nci/ltsky/utils"
)

// FilterMinMappingUnit removes connected patches of set pixels
// smaller than mmu pixels from a binary change mask. Connectivity is
// 8-neighbour, so diagonal pixels join a patch. mmu of 1 keeps every
// patch.
func FilterMinMappingUnit(mask []bool, width, height, mmu int) ([]bool, error) {
	if mmu < 1 {
		return nil, fmt.Errorf("mmu must be >= 1, got %d", mmu)
	}
	if len(mask) != width*height {
		return nil, fmt.Errorf("mask has %d pixels, want %dx%d", len(mask), width, height)
	}

	out := make([]bool, len(mask))
	copy(out, mask)
	if mmu == 1 {
		return out, nil
	}

	visited := make([]bool, len(mask))
	var patch, queue []int
	for seed := range mask {
		if !mask[seed] || visited[seed] {
			continue
		}

		patch = patch[:0]
		queue = append(queue[:0], seed)
		visited[seed] = true
		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			patch = append(patch, p)

			x := p % width
			y := p / width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					ny := y + dy
					if nx < 0 || nx >= width || ny < 0 || ny >= height {
						continue
					}
					n := ny*width + nx
					if mask[n] && !visited[n] {
						visited[n] = true
						queue = append(queue, n)
					}
				}
			}
		}

		if len(patch) < mmu {
			for _, p := range patch {
				out[p] = false
			}
		}
	}
	return out, nil
}

// ApplyChangeMask writes the no-data value over every pixel the mask
// does not keep.
func ApplyChangeMask(r *utils.Float32Raster, mask []bool) error {
	if len(mask) != len(r.Data) {
		return fmt.Errorf("mask has %d pixels but raster %s has %d", len(mask), r.NameSpace, len(r.Data))
	}
	noData := float32(r.NoData)
	for i, keep := range mask {
		if !keep {
			r.Data[i] = noData
		}
	}
	return nil
}

// ChangeThresholds are the optional magnitude, duration and pre-change
// value screens applied before the minimum mapping unit filter. A nil
// pointer leaves that screen off.
type ChangeThresholds struct {
	MagMin    *float64
	DurMax    *float64
	PrevalMin *float64
}

// BuildChangeMask screens the selected change pixels. A pixel is kept
// when it carries a change segment and passes every enabled
// threshold: magnitude at least MagMin, duration at most DurMax and
// pre-change value at least PrevalMin.
func BuildChangeMask(mag, dur, preval *utils.Float32Raster, th ChangeThresholds) ([]bool, error) {
	if dur.Width != mag.Width || dur.Height != mag.Height ||
		preval.Width != mag.Width || preval.Height != mag.Height {
		return nil, fmt.Errorf("change field rasters differ in size")
	}

	mask := make([]bool, len(mag.Data))
	for i := range mask {
		if mag.Data[i] == ChangeNoData {
			continue
		}
		if th.MagMin != nil && float64(mag.Data[i]) < *th.MagMin {
			continue
		}
		if th.DurMax != nil && float64(dur.Data[i]) > *th.DurMax {
			continue
		}
		if th.PrevalMin != nil && float64(preval.Data[i]) < *th.PrevalMin {
			continue
		}
		mask[i] = true
	}
	return mask, nil
}
