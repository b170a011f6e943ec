package raster

import (
	"image"

	"golang.org/x/image/draw"
)

// FitWithin returns a copy of img scaled down with Catmull-Rom so that neither
// side exceeds size. Images already inside the bound are returned unchanged.
func FitWithin(img *Image, size int) *Image {
	if img.Width <= size && img.Height <= size {
		return img
	}

	w, h := img.Width, img.Height
	if w >= h {
		h = max(1, h*size/w)
		w = size
	} else {
		w = max(1, w*size/h)
		h = size
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img.ToRGBA(), img.Bounds(), draw.Src, nil)

	out := FromImage(dst, img.Format)
	out.Channels = img.Channels
	return out
}
