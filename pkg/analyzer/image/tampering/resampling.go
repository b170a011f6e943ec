package tampering

import (
	"context"
	"image"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"

	"DeForge/pkg/raster"
)

// jpegPeriod is the DCT block size; its harmonics appear in every JPEG
const jpegPeriod = 16

// resamplingOutcome holds the periodicity statistics of the residual spectrum
type resamplingOutcome struct {
	PeakRatio float64 // mean of the strongest peaks over their local background
}

// resampling looks for the periodic interpolation traces left by scaling or
// rotation. Interpolated pixels are predictable from their neighbours, so the
// magnitude of the Laplacian residual varies periodically and shows up as
// isolated peaks in its spectrum.
//
// Large images are cropped to a multiple of the decimation factor times the
// block period and box-averaged, so compression block boundaries stay on a
// fixed set of frequency lines which are then excluded.
func (d *Detector) resampling(ctx context.Context, img *raster.Image) (resamplingOutcome, error) {
	residual := blockAlignedResidual(img, d.cfg.ResamplingAnalysisSize)
	if residual.W < 2*jpegPeriod || residual.H < 2*jpegPeriod {
		return resamplingOutcome{}, nil
	}
	residual = centered(residual)

	spectrum, err := magnitudeSpectrum(ctx, hann(residual))
	if err != nil {
		return resamplingOutcome{}, err
	}

	w, h := residual.W, residual.H
	bg := d.cfg.ResamplingBackground
	background := newWrappedSums(spectrum, w, h, bg)
	samples := float64((2*bg+1)*(2*bg+1) - 9)
	radius := float64(d.cfg.ResamplingDCRadius)
	gridU, gridV := w/jpegPeriod, h/jpegPeriod

	var ratios []float64
	for v := 0; v < h; v++ {
		if v%64 == 0 {
			if err := ctx.Err(); err != nil {
				return resamplingOutcome{}, err
			}
		}
		fv := min(v, h-v)
		for u := 0; u < w; u++ {
			fu := min(u, w-u)
			if math.Hypot(float64(fu), float64(fv)) <= radius {
				continue
			}
			if onGridLine(fu, gridU) || onGridLine(fv, gridV) {
				continue
			}
			mean := (background.box(u, v, bg) - background.box(u, v, 1)) / samples
			if mean <= 0 {
				continue
			}
			ratios = append(ratios, spectrum[v*w+u]/mean)
		}
	}
	if len(ratios) == 0 {
		return resamplingOutcome{}, nil
	}

	sort.Float64s(ratios)
	top := min(d.cfg.ResamplingTopPeaks, len(ratios))
	peak := 0.0
	for _, r := range ratios[len(ratios)-top:] {
		peak += r
	}
	return resamplingOutcome{PeakRatio: peak / float64(top)}, nil
}

// blockAlignedResidual returns the absolute Laplacian of a centred crop of
// img, box-decimated by the smallest integer factor that brings the longer
// side within size. Both output sides are multiples of jpegPeriod.
func blockAlignedResidual(img *raster.Image, size int) raster.Plane {
	f := 1
	if size > 0 {
		f = max(1, (max(img.Width, img.Height)+size-1)/size)
	}
	step := jpegPeriod * f
	wc, hc := (img.Width-2)/step*step, (img.Height-2)/step*step
	if wc <= 0 || hc <= 0 {
		return raster.Plane{}
	}
	x0, y0 := (img.Width-2-wc)/2, (img.Height-2-hc)/2
	rect := image.Rect(x0, y0, x0+wc+2, y0+hc+2)
	lap := raster.Laplacian(raster.NewPlane(rect.Dx(), rect.Dy(), img.GrayPlane(rect)))

	w, h := wc/f, hc/f
	out := make([]float64, w*h)
	norm := 1 / float64(f*f)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := 0.0
			for dy := 0; dy < f; dy++ {
				row := (y*f + dy) * lap.W
				for dx := 0; dx < f; dx++ {
					s += math.Abs(lap.V[row+x*f+dx])
				}
			}
			out[y*w+x] = s * norm
		}
	}
	return raster.NewPlane(w, h, out)
}

// onGridLine reports whether frequency index f lies within one bin of a
// non-zero multiple of spacing
func onGridLine(f, spacing int) bool {
	if spacing <= 0 {
		return false
	}
	k := (f + spacing/2) / spacing
	if k == 0 {
		return false
	}
	return abs(f-k*spacing) <= 1
}

// centered returns p minus its mean
func centered(p raster.Plane) raster.Plane {
	out := make([]float64, len(p.V))
	mean := 0.0
	for _, v := range p.V {
		mean += v
	}
	mean /= float64(len(p.V))
	for i, v := range p.V {
		out[i] = v - mean
	}
	return raster.NewPlane(p.W, p.H, out)
}

// wrappedSums is a summed-area table over a toroidally padded plane
type wrappedSums struct {
	pad, stride int
	sums        []float64
}

func newWrappedSums(v []float64, w, h, pad int) wrappedSums {
	ew, eh := w+2*pad, h+2*pad
	stride := ew + 1
	sums := make([]float64, (eh+1)*stride)
	for y := 0; y < eh; y++ {
		sy := ((y-pad)%h + h) % h
		acc := 0.0
		for x := 0; x < ew; x++ {
			sx := ((x-pad)%w + w) % w
			acc += v[sy*w+sx]
			sums[(y+1)*stride+x+1] = sums[y*stride+x+1] + acc
		}
	}
	return wrappedSums{pad: pad, stride: stride, sums: sums}
}

// box returns the sum of the (2r+1)² window centred on (x, y), r <= pad
func (s wrappedSums) box(x, y, r int) float64 {
	x0, y0 := x+s.pad-r, y+s.pad-r
	x1, y1 := x+s.pad+r+1, y+s.pad+r+1
	return s.sums[y1*s.stride+x1] - s.sums[y0*s.stride+x1] - s.sums[y1*s.stride+x0] + s.sums[y0*s.stride+x0]
}

// hann applies a separable Hann window to suppress border leakage
func hann(p raster.Plane) raster.Plane {
	wx := hannWeights(p.W)
	wy := hannWeights(p.H)
	out := make([]float64, len(p.V))
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			out[y*p.W+x] = p.V[y*p.W+x] * wx[x] * wy[y]
		}
	}
	return raster.NewPlane(p.W, p.H, out)
}

func hannWeights(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// magnitudeSpectrum returns |F(u,v)| of a real plane using row then column
// complex transforms
func magnitudeSpectrum(ctx context.Context, p raster.Plane) ([]float64, error) {
	data := make([]complex128, len(p.V))
	for i, v := range p.V {
		data[i] = complex(v, 0)
	}

	rowFFT := fourier.NewCmplxFFT(p.W)
	for y := 0; y < p.H; y++ {
		row := data[y*p.W : (y+1)*p.W]
		rowFFT.Coefficients(row, row)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	colFFT := fourier.NewCmplxFFT(p.H)
	col := make([]complex128, p.H)
	for x := 0; x < p.W; x++ {
		for y := 0; y < p.H; y++ {
			col[y] = data[y*p.W+x]
		}
		colFFT.Coefficients(col, col)
		for y := 0; y < p.H; y++ {
			data[y*p.W+x] = col[y]
		}
	}

	mags := make([]float64, len(data))
	for i, c := range data {
		mags[i] = cmplx.Abs(c)
	}
	return mags, ctx.Err()
}
