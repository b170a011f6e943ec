package tampering

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"DeForge/pkg/raster"
)

// noiseFloor keeps perfectly clean regions from producing infinite ratios
const noiseFloor = 0.5

// noiseRatio estimates the noise level of every region from the median
// absolute Laplacian residual and returns the p90/p10 spread. Regions
// pasted from another source keep their own noise level.
func (d *Detector) noiseRatio(ctx context.Context, img *raster.Image) (float64, error) {
	gray := raster.NewPlane(img.Width, img.Height, img.GrayPlane(img.Bounds()))
	residual := raster.Laplacian(gray)
	size := d.cfg.NoiseRegionSize
	if residual.W < size || residual.H < size {
		return 1, nil
	}

	// residual std of the 4-neighbour Laplacian on white noise is sigma·sqrt(20)
	norm := 1 / (0.6745 * math.Sqrt(20))

	var sigmas []float64
	region := make([]float64, 0, size*size)
	for y0 := 0; y0+size <= residual.H; y0 += size {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for x0 := 0; x0+size <= residual.W; x0 += size {
			region = region[:0]
			for y := y0; y < y0+size; y++ {
				for _, v := range residual.V[y*residual.W+x0 : y*residual.W+x0+size] {
					region = append(region, math.Abs(v))
				}
			}
			sorted := raster.SortedCopy(region)
			sigmas = append(sigmas, max(noiseFloor, sorted[len(sorted)/2]*norm))
		}
	}
	if len(sigmas) < 4 {
		return 1, nil
	}

	sorted := raster.SortedCopy(sigmas)
	p10 := stat.Quantile(0.1, stat.Empirical, sorted, nil)
	p90 := stat.Quantile(0.9, stat.Empirical, sorted, nil)
	return p90 / p10, nil
}

// edgeConsistency splits the centre window into a tile grid and compares the
// share of strong edges among all edges per tile. A spliced region carries a
// different sharpness profile than its surroundings.
func (d *Detector) edgeConsistency(ctx context.Context, img *raster.Image) (float64, error) {
	rect := img.CenterWindow(d.cfg.AnalysisWindow)
	gray := raster.NewPlane(rect.Dx(), rect.Dy(), img.GrayPlane(rect))
	mag := raster.Magnitude(raster.Sobel(gray))
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	grid := d.cfg.EdgeTileGrid
	if mag.W < grid || mag.H < grid {
		return 0, nil
	}
	tw, th := mag.W/grid, mag.H/grid

	lo, hi := math.Inf(1), math.Inf(-1)
	valid := 0
	for ty := 0; ty < grid; ty++ {
		for tx := 0; tx < grid; tx++ {
			weak, strong := 0, 0
			for y := ty * th; y < (ty+1)*th; y++ {
				for x := tx * tw; x < (tx+1)*tw; x++ {
					m := mag.At(x, y)
					if m > d.cfg.EdgeLowThreshold {
						weak++
					}
					if m > d.cfg.EdgeHighThreshold {
						strong++
					}
				}
			}
			if weak < d.cfg.EdgeMinPixels {
				continue
			}
			ratio := float64(strong) / float64(weak)
			lo = min(lo, ratio)
			hi = max(hi, ratio)
			valid++
		}
	}
	if valid < 2 {
		return 0, nil
	}
	return (hi - lo) * 100, nil
}
