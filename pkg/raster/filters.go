package raster

import (
	"math"
	"sort"
)

// Plane is a single-channel float image in row-major order
type Plane struct {
	W, H int
	V    []float64
}

// NewPlane wraps values of a w×h plane
func NewPlane(w, h int, v []float64) Plane {
	return Plane{W: w, H: h, V: v}
}

// At returns the value at (x, y)
func (p Plane) At(x, y int) float64 {
	return p.V[y*p.W+x]
}

// Laplacian applies the 4-neighbour Laplacian to the interior of p.
// The result is (W-2)×(H-2); planes smaller than 3×3 yield an empty plane.
func Laplacian(p Plane) Plane {
	if p.W < 3 || p.H < 3 {
		return Plane{}
	}
	w, h := p.W-2, p.H-2
	out := make([]float64, w*h)
	for y := 1; y <= h; y++ {
		for x := 1; x <= w; x++ {
			i := y*p.W + x
			out[(y-1)*w+(x-1)] = p.V[i-p.W] + p.V[i+p.W] + p.V[i-1] + p.V[i+1] - 4*p.V[i]
		}
	}
	return Plane{W: w, H: h, V: out}
}

// Sobel returns the horizontal and vertical Sobel responses of the interior of p
func Sobel(p Plane) (gx, gy Plane) {
	if p.W < 3 || p.H < 3 {
		return Plane{}, Plane{}
	}
	w, h := p.W-2, p.H-2
	gxv := make([]float64, w*h)
	gyv := make([]float64, w*h)
	for y := 1; y <= h; y++ {
		for x := 1; x <= w; x++ {
			tl, t, tr := p.At(x-1, y-1), p.At(x, y-1), p.At(x+1, y-1)
			l, r := p.At(x-1, y), p.At(x+1, y)
			bl, b, br := p.At(x-1, y+1), p.At(x, y+1), p.At(x+1, y+1)
			o := (y-1)*w + (x - 1)
			gxv[o] = (tr + 2*r + br) - (tl + 2*l + bl)
			gyv[o] = (bl + 2*b + br) - (tl + 2*t + tr)
		}
	}
	return Plane{W: w, H: h, V: gxv}, Plane{W: w, H: h, V: gyv}
}

// Magnitude combines two gradient planes
func Magnitude(gx, gy Plane) Plane {
	out := make([]float64, len(gx.V))
	for i := range out {
		out[i] = math.Hypot(gx.V[i], gy.V[i])
	}
	return Plane{W: gx.W, H: gx.H, V: out}
}

// Median3x3 applies a 3×3 median filter to the interior of p
func Median3x3(p Plane) Plane {
	if p.W < 3 || p.H < 3 {
		return Plane{}
	}
	w, h := p.W-2, p.H-2
	out := make([]float64, w*h)
	var window [9]float64
	for y := 1; y <= h; y++ {
		for x := 1; x <= w; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				row := (y+dy)*p.W + x
				window[k], window[k+1], window[k+2] = p.V[row-1], p.V[row], p.V[row+1]
				k += 3
			}
			out[(y-1)*w+(x-1)] = median9(window)
		}
	}
	return Plane{W: w, H: h, V: out}
}

func median9(v [9]float64) float64 {
	// insertion sort: nine elements
	for i := 1; i < 9; i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
	return v[4]
}

// Interior returns the plane without its one-pixel border
func (p Plane) Interior() Plane {
	if p.W < 3 || p.H < 3 {
		return Plane{}
	}
	w, h := p.W-2, p.H-2
	out := make([]float64, 0, w*h)
	for y := 1; y <= h; y++ {
		out = append(out, p.V[y*p.W+1:y*p.W+1+w]...)
	}
	return Plane{W: w, H: h, V: out}
}

// SortedCopy returns the values of v in ascending order
func SortedCopy(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	return out
}
