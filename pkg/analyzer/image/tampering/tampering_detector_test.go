package tampering

import (
	"context"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"DeForge/pkg/config"
	"DeForge/pkg/logger"
	"DeForge/pkg/models"
	"DeForge/pkg/raster"
	"DeForge/pkg/raster/rastertest"
)

func newDetector() *Detector {
	return NewDetector(config.Default().Tampering, raster.NewCodec(), logger.NopLogger())
}

func fromRGBA(img *image.RGBA) *raster.Image {
	return raster.FromImage(img, "png")
}

// grayNoise returns noise with identical channels
func grayNoise(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(rng.Intn(256))
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func TestCloneDetectsCopiedRegion(t *testing.T) {
	img := rastertest.Noise(256, 256, 1)
	rastertest.CopyBlock(img, 0, 0, 160, 160, 64)

	d := newDetector()
	out, err := d.copyMove(context.Background(), fromRGBA(img))
	require.NoError(t, err)

	assert.Equal(t, models.CloneStatusPerformed, out.Status)
	assert.Equal(t, 4, out.Pairs)
	assert.InDelta(t, 8.0/64.0, out.DuplicateRatio, 1e-9)

	result, err := d.Detect(context.Background(), fromRGBA(img))
	require.NoError(t, err)
	assert.True(t, result.HasIndicator(models.IndicatorCloneDetected))
	assert.True(t, result.IsTampered)
	assert.Equal(t, 4, result.CloneRegionCount)
}

func TestCloneIgnoresAdjacentDuplicates(t *testing.T) {
	img := rastertest.Noise(256, 256, 2)
	rastertest.CopyBlock(img, 0, 0, 32, 0, 32)

	out, err := newDetector().copyMove(context.Background(), fromRGBA(img))
	require.NoError(t, err)
	assert.Zero(t, out.Pairs)
	assert.Zero(t, out.DuplicateRatio)
}

func TestCloneIgnoresFlatBlocks(t *testing.T) {
	img := rastertest.Flat(256, 256, color.RGBA{90, 90, 90, 255})

	out, err := newDetector().copyMove(context.Background(), fromRGBA(img))
	require.NoError(t, err)
	assert.Equal(t, models.CloneStatusPerformed, out.Status)
	assert.Zero(t, out.HashedBlocks)
	assert.Zero(t, out.Pairs)
}

func TestCloneSizeBoundaries(t *testing.T) {
	d := newDetector()
	size := d.cfg.CloneBlockSize

	out, err := d.copyMove(context.Background(), fromRGBA(rastertest.Noise(size-1, 100, 3)))
	require.NoError(t, err)
	assert.Equal(t, models.CloneStatusInsufficientSize, out.Status)

	out, err = d.copyMove(context.Background(), fromRGBA(rastertest.Noise(size, size, 3)))
	require.NoError(t, err)
	assert.Equal(t, models.CloneStatusPerformed, out.Status)
	assert.Zero(t, out.DuplicateRatio)
}

func TestTinyImageStillAnalyzed(t *testing.T) {
	result, err := newDetector().Detect(context.Background(), fromRGBA(rastertest.Noise(16, 16, 4)))
	require.NoError(t, err)
	assert.Equal(t, models.CloneStatusInsufficientSize, result.CloneStatus)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestColorCorrelation(t *testing.T) {
	d := newDetector()

	corr, err := d.colorCorrelation(context.Background(), fromRGBA(grayNoise(128, 128, 5)))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, corr, 1e-9)

	corr, err = d.colorCorrelation(context.Background(), fromRGBA(rastertest.Flat(64, 64, color.RGBA{10, 200, 30, 255})))
	require.NoError(t, err)
	assert.Equal(t, 1.0, corr)

	corr, err = d.colorCorrelation(context.Background(), fromRGBA(rastertest.Noise(128, 128, 6)))
	require.NoError(t, err)
	assert.Less(t, corr, d.cfg.ColorCorrelationMin)
}

func TestNoiseInconsistency(t *testing.T) {
	d := newDetector()

	uniform, err := d.noiseRatio(context.Background(), fromRGBA(rastertest.Noise(256, 256, 7)))
	require.NoError(t, err)
	assert.Less(t, uniform, d.cfg.NoiseRatioMax)

	spliced := rastertest.Noise(256, 256, 7)
	flat := rastertest.Flat(128, 256, color.RGBA{120, 120, 120, 255})
	draw.Draw(spliced, image.Rect(128, 0, 256, 256), flat, image.Point{}, draw.Src)

	ratio, err := d.noiseRatio(context.Background(), fromRGBA(spliced))
	require.NoError(t, err)
	assert.Greater(t, ratio, d.cfg.NoiseRatioMax)
}

// checkerWithWaves draws a hard-edged checkerboard on the left and a soft
// low-contrast wave on the right
func checkerWithWaves(w, h int, waves bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8
			if waves && x >= w/2 {
				v = uint8(128 + 20*math.Sin(float64(x)/6))
			} else if (x/8+y/8)%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestEdgeConsistency(t *testing.T) {
	d := newDetector()

	delta, err := d.edgeConsistency(context.Background(), fromRGBA(checkerWithWaves(256, 256, false)))
	require.NoError(t, err)
	assert.InDelta(t, 0, delta, 1e-9)

	delta, err = d.edgeConsistency(context.Background(), fromRGBA(checkerWithWaves(256, 256, true)))
	require.NoError(t, err)
	assert.Greater(t, delta, d.cfg.EdgeConsistencyDelta)
}

func TestQuantization(t *testing.T) {
	d := newDetector()
	base := rastertest.Textured(64, 64, 8)

	low := d.quantization(rastertest.Decode(t, rastertest.EncodeJPEG(t, base, 10)))
	assert.True(t, low.Present)
	assert.Equal(t, QuantHigh, low.Anomaly)

	high := d.quantization(rastertest.Decode(t, rastertest.EncodeJPEG(t, base, 95)))
	assert.True(t, high.Present)
	assert.Empty(t, high.Anomaly)

	png := d.quantization(rastertest.Decode(t, rastertest.EncodePNG(t, base)))
	assert.False(t, png.Present)
}

func TestMedianFilteredImageChangesLess(t *testing.T) {
	d := newDetector()
	noise := grayNoise(128, 128, 9)
	smooth := medianFiltered(noise)

	raw, err := d.medianFilter(context.Background(), fromRGBA(noise))
	require.NoError(t, err)
	again, err := d.medianFilter(context.Background(), fromRGBA(smooth))
	require.NoError(t, err)

	assert.Less(t, again.MeanDiff, raw.MeanDiff)
	assert.Greater(t, again.FlatRatio, raw.FlatRatio)
}

// medianFiltered returns the 3×3 median of src's gray plane without its border
func medianFiltered(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	plane := raster.NewPlane(b.Dx(), b.Dy(), fromRGBA(src).GrayPlane(b))
	filtered := raster.Median3x3(plane)
	out := image.NewRGBA(image.Rect(0, 0, filtered.W, filtered.H))
	for i, v := range filtered.V {
		g := uint8(math.Round(v))
		out.Pix[i*4], out.Pix[i*4+1], out.Pix[i*4+2], out.Pix[i*4+3] = g, g, g, 255
	}
	return out
}

func TestMedianIgnoresCleanJPEG(t *testing.T) {
	d := newDetector()
	for _, sigma := range []float64{2, 3, 5} {
		for _, quality := range []int{70, 80, 90} {
			src := rastertest.Natural(256, 256, sigma, int64(quality)*7+int64(sigma))
			img := rastertest.Decode(t, rastertest.EncodeJPEG(t, src, quality))

			out, err := d.medianFilter(context.Background(), img)
			require.NoError(t, err)
			if out.Texture >= d.cfg.MedianMinTexture {
				assert.Less(t, out.StreakRatio, d.cfg.MedianStreakRatio, "sigma %.0f quality %d", sigma, quality)
			}

			result, err := d.Detect(context.Background(), img)
			require.NoError(t, err)
			assert.False(t, result.HasIndicator(models.IndicatorMedianFilter), "sigma %.0f quality %d", sigma, quality)
		}
	}
}

func TestMedianDetectsFilteredCopy(t *testing.T) {
	d := newDetector()
	src := rastertest.Natural(256, 256, 12, 31)

	clean, err := d.medianFilter(context.Background(), fromRGBA(src))
	require.NoError(t, err)
	filtered, err := d.medianFilter(context.Background(), fromRGBA(medianFiltered(src)))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, filtered.Texture, d.cfg.MedianMinTexture)
	assert.Greater(t, filtered.StreakRatio, d.cfg.MedianStreakRatio)
	assert.Less(t, clean.StreakRatio, d.cfg.MedianStreakRatio)
	assert.Greater(t, filtered.Streak, clean.Streak)

	result, err := d.Detect(context.Background(), fromRGBA(medianFiltered(src)))
	require.NoError(t, err)
	assert.True(t, result.HasIndicator(models.IndicatorMedianFilter))
	assert.Greater(t, result.MedianFilterScore, 0.5)
}

func TestStreakShare(t *testing.T) {
	flat := raster.NewPlane(4, 4, make([]float64, 16))
	assert.Zero(t, streakShare(flat, 4))

	// alternating columns: every vertical pair is equal, no horizontal pair is
	v := make([]float64, 36)
	for i := range v {
		if i%2 == 1 {
			v[i] = 10
		}
	}
	assert.InDelta(t, 0.5, streakShare(raster.NewPlane(6, 6, v), 4), 1e-9)
}

func TestResamplingPeaks(t *testing.T) {
	d := newDetector()
	noise := grayNoise(256, 256, 10)

	upscaled := image.NewRGBA(image.Rect(0, 0, 384, 384))
	draw.BiLinear.Scale(upscaled, upscaled.Bounds(), noise, noise.Bounds(), draw.Src, nil)

	plain, err := d.resampling(context.Background(), fromRGBA(noise))
	require.NoError(t, err)
	resampled, err := d.resampling(context.Background(), fromRGBA(upscaled))
	require.NoError(t, err)

	assert.Less(t, plain.PeakRatio, d.cfg.ResamplingPeakRatio)
	assert.Greater(t, resampled.PeakRatio, d.cfg.ResamplingPeakRatio)

	result, err := d.Detect(context.Background(), fromRGBA(upscaled))
	require.NoError(t, err)
	assert.True(t, result.HasIndicator(models.IndicatorResampling))
}

func TestResamplingIgnoresJPEGBlockGrid(t *testing.T) {
	d := newDetector()
	for _, sigma := range []float64{1, 2, 5} {
		for _, quality := range []int{50, 60, 70, 85} {
			src := rastertest.Natural(256, 256, sigma, int64(quality)+int64(sigma*10))
			img := rastertest.Decode(t, rastertest.EncodeJPEG(t, src, quality))

			result, err := d.Detect(context.Background(), img)
			require.NoError(t, err)
			assert.Less(t, result.ResamplingScore, d.cfg.ResamplingPeakRatio, "sigma %.0f quality %d", sigma, quality)
			assert.False(t, result.HasIndicator(models.IndicatorResampling), "sigma %.0f quality %d", sigma, quality)
		}
	}
}

func TestResamplingLargeImageKeepsGridAligned(t *testing.T) {
	d := newDetector()
	img := rastertest.Decode(t, rastertest.EncodeJPEG(t, rastertest.Natural(1280, 960, 2, 21), 75))

	residual := blockAlignedResidual(img, d.cfg.ResamplingAnalysisSize)
	assert.Equal(t, 0, residual.W%jpegPeriod)
	assert.Equal(t, 0, residual.H%jpegPeriod)
	assert.LessOrEqual(t, max(residual.W, residual.H), d.cfg.ResamplingAnalysisSize)

	out, err := d.resampling(context.Background(), img)
	require.NoError(t, err)
	assert.Less(t, out.PeakRatio, d.cfg.ResamplingPeakRatio)
}

func TestOnGridLine(t *testing.T) {
	for f, want := range map[int]bool{0: false, 1: false, 15: true, 16: true, 17: true, 18: false, 24: false, 31: true, 48: true} {
		assert.Equal(t, want, onGridLine(f, 16), "f=%d", f)
	}
	assert.False(t, onGridLine(3, 0))
}

func TestResamplingFlatImage(t *testing.T) {
	out, err := newDetector().resampling(context.Background(), fromRGBA(rastertest.Flat(64, 64, color.RGBA{50, 50, 50, 255})))
	require.NoError(t, err)
	assert.Zero(t, out.PeakRatio)
}

func TestErrorLevelFlatImage(t *testing.T) {
	out, err := newDetector().errorLevel(context.Background(), fromRGBA(rastertest.Flat(64, 64, color.RGBA{200, 40, 40, 255})))
	require.NoError(t, err)
	assert.Zero(t, out.AnomalyRatio)
}

func TestErrorLevelLocalizesPastedRegion(t *testing.T) {
	d := newDetector()
	base := rastertest.Decode(t, rastertest.EncodeJPEG(t, rastertest.Textured(256, 256, 11), d.cfg.ELAQuality))

	before, err := d.errorLevel(context.Background(), base)
	require.NoError(t, err)
	assert.Less(t, before.AnomalyRatio, 0.02)

	for _, size := range []int{64, 112, 128, 160} {
		// paste a never-compressed patch into the top-left corner
		patch := rastertest.Noise(size, size, int64(size))
		pasted := *base
		pasted.Pix = append([]uint8(nil), base.Pix...)
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				c := patch.RGBAAt(x, y)
				i := (y*base.Width + x) * 3
				pasted.Pix[i], pasted.Pix[i+1], pasted.Pix[i+2] = c.R, c.G, c.B
			}
		}

		after, err := d.errorLevel(context.Background(), &pasted)
		require.NoError(t, err)

		share := float64(size*size) / float64(256*256)
		assert.InDelta(t, share, after.AnomalyRatio, 0.02, "patch %d", size)
		assert.Greater(t, after.Variance, before.Variance, "patch %d", size)
		if share > d.cfg.ELAAnomalyThreshold {
			assert.Greater(t, after.AnomalyRatio, d.cfg.ELAAnomalyThreshold, "patch %d", size)
		}
	}
}

func TestAnomalousBlockRatio(t *testing.T) {
	w, h := 32, 32
	diff := make([]float64, w*h)
	assert.Zero(t, anomalousBlockRatio(diff, w, h, 8, 3, 0.5))

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			diff[y*w+x] = 50
		}
	}
	assert.InDelta(t, 64.0/1024.0, anomalousBlockRatio(diff, w, h, 8, 3, 0.5), 1e-9)

	// the baseline holds until edits cover half the tiles
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			diff[y*w+x] = 50
		}
	}
	assert.InDelta(t, 384.0/1024.0, anomalousBlockRatio(diff, w, h, 8, 3, 0.5), 1e-9)
}

func TestConfidenceIsMonotone(t *testing.T) {
	w := config.Default().Tampering.Weights
	base := []scoredCheck{
		{CheckELA, w.ELA, 0.1, false},
		{CheckClone, w.Clone, 0.2, false},
		{CheckResampling, w.Resampling, 0.3, false},
		{CheckMedian, w.Median, 0, false},
		{CheckColor, w.Color, 0.4, false},
		{CheckNoise, w.Noise, 0.2, false},
		{CheckEdge, w.Edge, 0.1, false},
		{CheckQuantization, w.Quantization, 0, false},
	}
	prev := confidence(base)

	for i := range base {
		for _, step := range []float64{0.3, 0.6, 0.9} {
			raised := append([]scoredCheck(nil), base...)
			raised[i].score = max(raised[i].score, step)
			raised[i].fired = step > 0.5
			got := confidence(raised)
			assert.GreaterOrEqual(t, got, prev, "raising %s to %.1f", raised[i].name, step)
		}
	}

	fired := append([]scoredCheck(nil), base...)
	fired[1].score, fired[1].fired = 0.8, true
	assert.InDelta(t, 0.8, confidence(fired), 1e-9)
}

func TestDetectIsDeterministic(t *testing.T) {
	d := newDetector()
	img := fromRGBA(rastertest.Textured(160, 120, 13))

	first, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.CheckScores, 8)
	assert.Equal(t, len(first.Indicators), len(first.Findings))
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDetector().Detect(ctx, fromRGBA(rastertest.Noise(64, 64, 14)))
	assert.ErrorIs(t, err, context.Canceled)
}

type failingCodec struct{ raster.StdCodec }

func (failingCodec) Recompress(*raster.Image, int) (*raster.Image, error) {
	return nil, assert.AnError
}

func TestDetectPropagatesCheckFailure(t *testing.T) {
	d := NewDetector(config.Default().Tampering, failingCodec{}, logger.NopLogger())
	_, err := d.Detect(context.Background(), fromRGBA(rastertest.Noise(64, 64, 15)))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "ela check")
}
