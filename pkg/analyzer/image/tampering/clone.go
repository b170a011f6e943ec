package tampering

import (
	"context"
	"math"

	"DeForge/pkg/models"
	"DeForge/pkg/raster"
)

// cloneOutcome holds the copy-move statistics
type cloneOutcome struct {
	Status         string
	Pairs          int     // duplicate block pairs far enough apart
	DuplicateRatio float64 // blocks taking part in any pair / all grid blocks
	HashedBlocks   int
}

// blockKey is the perceptual fingerprint of one grid block
type blockKey struct {
	bits  uint64 // 8×8 average hash
	level uint8  // coarse mean brightness
}

// copyMove hashes non-overlapping blocks and pairs identical fingerprints that
// sit at least CloneMinSeparation blocks apart
func (d *Detector) copyMove(ctx context.Context, img *raster.Image) (cloneOutcome, error) {
	size := d.cfg.CloneBlockSize
	cols, rows := img.Width/size, img.Height/size
	if cols == 0 || rows == 0 {
		return cloneOutcome{Status: models.CloneStatusInsufficientSize}, nil
	}

	gray := raster.NewPlane(img.Width, img.Height, img.GrayPlane(img.Bounds()))
	buckets := make(map[blockKey][]int)
	hashed := 0

	for by := 0; by < rows; by++ {
		if err := ctx.Err(); err != nil {
			return cloneOutcome{}, err
		}
		for bx := 0; bx < cols; bx++ {
			key, ok := hashBlock(gray, bx*size, by*size, size, d.cfg.CloneMinBlockStd)
			if !ok {
				continue
			}
			hashed++
			buckets[key] = append(buckets[key], by*cols+bx)
		}
	}

	inPair := make(map[int]bool)
	pairs := 0
	for _, blocks := range buckets {
		if len(blocks) < 2 {
			continue
		}
		for i := 0; i < len(blocks); i++ {
			for j := i + 1; j < len(blocks); j++ {
				if chebyshev(blocks[i], blocks[j], cols) >= d.cfg.CloneMinSeparation {
					pairs++
					inPair[blocks[i]] = true
					inPair[blocks[j]] = true
				}
			}
		}
	}

	return cloneOutcome{
		Status:         models.CloneStatusPerformed,
		Pairs:          pairs,
		DuplicateRatio: float64(len(inPair)) / float64(cols*rows),
		HashedBlocks:   hashed,
	}, nil
}

// hashBlock computes the average hash of the block at (x0, y0). Blocks with
// too little texture are rejected since every flat area hashes the same.
func hashBlock(gray raster.Plane, x0, y0, size int, minStd float64) (blockKey, bool) {
	const cells = 8

	var means [cells * cells]float64
	var counts [cells * cells]int
	var sum, sumSq float64
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := gray.At(x0+x, y0+y)
			sum += v
			sumSq += v * v
			c := (y*cells/size)*cells + x*cells/size
			means[c] += v
			counts[c]++
		}
	}

	n := float64(size * size)
	mean := sum / n
	if std := math.Sqrt(max(0, sumSq/n-mean*mean)); std < minStd {
		return blockKey{}, false
	}

	var bits uint64
	for i, m := range means {
		if m/float64(counts[i]) > mean {
			bits |= 1 << uint(i)
		}
	}
	return blockKey{bits: bits, level: uint8(mean / 16)}, true
}

func chebyshev(a, b, cols int) int {
	ax, ay := a%cols, a/cols
	bx, by := b%cols, b/cols
	return max(abs(ax-bx), abs(ay-by))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
