package tampering

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"DeForge/pkg/raster"
)

// elaOutcome holds the error level analysis statistics
type elaOutcome struct {
	Variance     float64 // population variance of scaled channel differences
	AnomalyRatio float64 // share of pixels in anomalous blocks
}

// errorLevel recompresses img at the configured quality and measures how
// unevenly the recompression error is spread across the image
func (d *Detector) errorLevel(ctx context.Context, img *raster.Image) (elaOutcome, error) {
	recompressed, err := d.codec.Recompress(img, d.cfg.ELAQuality)
	if err != nil {
		return elaOutcome{}, fmt.Errorf("ela recompress: %w", err)
	}
	if recompressed.Width != img.Width || recompressed.Height != img.Height {
		return elaOutcome{}, fmt.Errorf("ela recompress changed dimensions to %dx%d", recompressed.Width, recompressed.Height)
	}

	w, h := img.Width, img.Height
	scale := d.cfg.ELAScale

	// per-pixel mean channel difference, before scaling
	pixelDiff := make([]float64, w*h)

	// integer sums keep the variance exact for any image size
	var sum, sumSq uint64
	for y := 0; y < h; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return elaOutcome{}, err
			}
		}
		for x := 0; x < w; x++ {
			p := (y*w + x) * 3
			total := 0
			for c := 0; c < 3; c++ {
				diff := int(img.Pix[p+c]) - int(recompressed.Pix[p+c])
				if diff < 0 {
					diff = -diff
				}
				total += diff
				scaled := uint64(min(255, math.Round(float64(diff)*scale)))
				sum += scaled
				sumSq += scaled * scaled
			}
			pixelDiff[y*w+x] = float64(total) / 3
		}
	}

	n := float64(w * h * 3)
	mean := float64(sum) / n
	variance := float64(sumSq)/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	return elaOutcome{
		Variance:     variance,
		AnomalyRatio: anomalousBlockRatio(pixelDiff, w, h, d.cfg.ELABlockSize, d.cfg.ELASigma, d.cfg.ELAMinSpread),
	}, nil
}

// anomalousBlockRatio averages diff over block×block tiles and returns the
// share of pixels lying in tiles whose mean exceeds the median tile by more
// than sigma robust deviations (1.4826·MAD, floored at minSpread). The
// baseline stays anchored to untouched tiles until edits cover half the frame.
func anomalousBlockRatio(diff []float64, w, h, block int, sigma, minSpread float64) float64 {
	if block <= 0 || w == 0 || h == 0 {
		return 0
	}

	type tile struct {
		mean   float64
		pixels int
	}
	var tiles []tile
	means := make([]float64, 0, (w/block+1)*(h/block+1))
	for by := 0; by < h; by += block {
		for bx := 0; bx < w; bx += block {
			x1, y1 := min(bx+block, w), min(by+block, h)
			s := 0.0
			for y := by; y < y1; y++ {
				for x := bx; x < x1; x++ {
					s += diff[y*w+x]
				}
			}
			count := (x1 - bx) * (y1 - by)
			t := tile{mean: s / float64(count), pixels: count}
			tiles = append(tiles, t)
			means = append(means, t.mean)
		}
	}

	sort.Float64s(means)
	median := stat.Quantile(0.5, stat.Empirical, means, nil)
	deviations := make([]float64, len(means))
	for i, m := range means {
		deviations[i] = math.Abs(m - median)
	}
	sort.Float64s(deviations)
	spread := max(1.4826*stat.Quantile(0.5, stat.Empirical, deviations, nil), minSpread)

	threshold := median + sigma*spread
	anomalous := 0
	for _, t := range tiles {
		if t.mean > threshold {
			anomalous += t.pixels
		}
	}
	return float64(anomalous) / float64(w*h)
}

// elaBand describes the overall recompression error level
func elaBand(variance float64) string {
	switch {
	case variance < 50:
		return "very low error levels, consistent with heavy recompression"
	case variance < 200:
		return "moderate error levels"
	case variance < 1000:
		return "high error levels"
	default:
		return "very high error levels, compression history is inconsistent"
	}
}
