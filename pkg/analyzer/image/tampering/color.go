package tampering

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"DeForge/pkg/raster"
)

// colorCorrelation returns the mean Pearson correlation of the R-G, R-B and
// G-B channel pairs over a regular subsample of the image. Camera images keep
// their channels strongly correlated; splices from other sources often don't.
func (d *Detector) colorCorrelation(ctx context.Context, img *raster.Image) (float64, error) {
	step := max(1, (max(img.Width, img.Height)+d.cfg.ColorSampleLimit-1)/d.cfg.ColorSampleLimit)

	capacity := ((img.Width + step - 1) / step) * ((img.Height + step - 1) / step)
	r := make([]float64, 0, capacity)
	g := make([]float64, 0, capacity)
	b := make([]float64, 0, capacity)
	for y := 0; y < img.Height; y += step {
		for x := 0; x < img.Width; x += step {
			cr, cg, cb := img.RGB(x, y)
			r = append(r, float64(cr))
			g = append(g, float64(cg))
			b = append(b, float64(cb))
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return (correlation(r, g) + correlation(r, b) + correlation(g, b)) / 3, nil
}

// correlation treats a constant channel as perfectly correlated
func correlation(x, y []float64) float64 {
	if len(x) < 2 {
		return 1
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 1
	}
	return c
}
