package tampering

import (
	"context"
	"math"

	"DeForge/pkg/raster"
)

// medianOutcome holds the median filtering statistics
type medianOutcome struct {
	MeanDiff    float64 // mean |pixel - 3×3 median|
	FlatRatio   float64 // share of pixels already equal to their neighbourhood median
	Texture     float64 // noise sigma estimated from the median absolute Laplacian
	Streak      float64 // share of equal neighbour pairs in active areas
	StreakRatio float64 // Streak over the Streak of a re-filtered copy
}

// medianFilter re-applies a 3×3 median filter to the centre window. A median
// filter leaves runs of identical values behind even in textured areas, so an
// image that was already filtered has almost as many equal neighbour pairs as
// its re-filtered copy. Clean photos have far fewer.
func (d *Detector) medianFilter(ctx context.Context, img *raster.Image) (medianOutcome, error) {
	rect := img.CenterWindow(d.cfg.AnalysisWindow)
	values := img.GrayPlane(rect)
	for i, v := range values {
		values[i] = math.Round(v)
	}
	gray := raster.NewPlane(rect.Dx(), rect.Dy(), values)
	filtered := raster.Median3x3(gray)
	if len(filtered.V) == 0 {
		return medianOutcome{}, nil
	}
	if err := ctx.Err(); err != nil {
		return medianOutcome{}, err
	}

	inner := gray.Interior()
	sum := 0.0
	flat := 0
	for i, v := range inner.V {
		diff := math.Abs(v - filtered.V[i])
		sum += diff
		if diff < 0.5 {
			flat++
		}
	}
	n := float64(len(inner.V))

	out := medianOutcome{
		MeanDiff:  sum / n,
		FlatRatio: float64(flat) / n,
		Texture:   laplacianSigma(gray),
		Streak:    streakShare(gray, d.cfg.MedianMinRange),
	}
	if err := ctx.Err(); err != nil {
		return medianOutcome{}, err
	}
	if again := streakShare(filtered, d.cfg.MedianMinRange); again > 0 {
		out.StreakRatio = out.Streak / again
	}
	return out, nil
}

// laplacianSigma estimates the noise level of p from the median absolute
// Laplacian response
func laplacianSigma(p raster.Plane) float64 {
	residual := raster.Laplacian(p)
	if len(residual.V) == 0 {
		return 0
	}
	mags := make([]float64, len(residual.V))
	for i, v := range residual.V {
		mags[i] = math.Abs(v)
	}
	sorted := raster.SortedCopy(mags)
	return sorted[len(sorted)/2] / (0.6745 * math.Sqrt(20))
}

// streakShare returns the share of right and down neighbour pairs holding the
// same value, counted around interior pixels whose 3×3 range is at least
// minRange
func streakShare(p raster.Plane, minRange float64) float64 {
	equal, pairs := 0, 0
	for y := 1; y < p.H-1; y++ {
		for x := 1; x < p.W-1; x++ {
			lo, hi := math.Inf(1), math.Inf(-1)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					v := p.At(x+dx, y+dy)
					lo, hi = min(lo, v), max(hi, v)
				}
			}
			if hi-lo < minRange {
				continue
			}
			c := p.At(x, y)
			pairs += 2
			if c == p.At(x+1, y) {
				equal++
			}
			if c == p.At(x, y+1) {
				equal++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(equal) / float64(pairs)
}
