// Package aigen scores how likely an image is to be synthetic from four
// pixel statistics: residual noise, color entropy, edge uniformity and
// left-right symmetry. Generated images tend to be clean, smooth and
// unusually uniform.
package aigen

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"DeForge/pkg/analyzer"
	"DeForge/pkg/config"
	"DeForge/pkg/logger"
	"DeForge/pkg/models"
	"DeForge/pkg/raster"
)

// Signal names used in SignalScores
const (
	SignalNoise    = "noise"
	SignalEntropy  = "entropy"
	SignalEdge     = "edge"
	SignalSymmetry = "symmetry"
)

// factorThreshold is the signal score from which a signal is reported as a factor
const factorThreshold = 0.5

// symmetrySize bounds the raster used for the symmetry signal
const symmetrySize = 512

// Detector scores images for signs of synthetic generation
type Detector struct {
	analyzer.BaseAnalyzer
	cfg config.AIConfig
	log *logger.Logger
}

// NewDetector creates a new AI-generation detector
func NewDetector(cfg config.AIConfig, log *logger.Logger) *Detector {
	return &Detector{
		BaseAnalyzer: analyzer.NewBaseAnalyzer(
			analyzer.CheckAIDetection,
			"Estimates the likelihood that an image was produced by a generative model",
			raster.SupportedFormats,
		),
		cfg: cfg,
		log: log.Component(analyzer.CheckAIDetection),
	}
}

// Detect measures every signal and blends the ramp scores
func (d *Detector) Detect(ctx context.Context, img *raster.Image) (*models.AIDetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rect := img.CenterWindow(d.cfg.AnalysisWindow)
	window := raster.NewPlane(rect.Dx(), rect.Dy(), img.GrayPlane(rect))

	result := &models.AIDetectionResult{
		NoiseLevel:       noiseLevel(window),
		ColorEntropy:     colorEntropy(img),
		DetectionFactors: []string{},
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.EdgeConsistency = edgeConsistency(window, d.cfg.EdgeTileGrid)
	result.SymmetryDeviation = symmetryDeviation(raster.FitWithin(img, symmetrySize))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signals := []struct {
		name   string
		weight float64
		score  float64
		factor string
	}{
		{SignalNoise, d.cfg.Weights.Noise, falling(result.NoiseLevel, d.cfg.NoiseLow, d.cfg.NoiseHigh),
			fmt.Sprintf("Unusually low sensor noise (%.1f)", result.NoiseLevel)},
		{SignalEntropy, d.cfg.Weights.Entropy, falling(result.ColorEntropy, d.cfg.EntropyLow, d.cfg.EntropyHigh),
			fmt.Sprintf("Low color entropy (%.2f bits)", result.ColorEntropy)},
		{SignalEdge, d.cfg.Weights.Edge, rising(result.EdgeConsistency, d.cfg.EdgeLow, d.cfg.EdgeHigh),
			fmt.Sprintf("Edges are unnaturally uniform (%.2f)", result.EdgeConsistency)},
		{SignalSymmetry, d.cfg.Weights.Symmetry, falling(result.SymmetryDeviation, d.cfg.SymmetryLow, d.cfg.SymmetryHigh),
			fmt.Sprintf("Strong left-right symmetry (deviation %.1f)", result.SymmetryDeviation)},
	}

	result.SignalScores = make(map[string]float64, len(signals))
	var weighted, total float64
	for _, s := range signals {
		result.SignalScores[s.name] = s.score
		weighted += s.weight * s.score
		total += s.weight
		if s.score >= factorThreshold {
			result.DetectionFactors = append(result.DetectionFactors, s.factor)
		}
	}
	if total > 0 {
		result.Confidence = weighted / total
	}
	result.IsAIGenerated = result.Confidence >= d.cfg.Cutoff

	d.log.Debug("ai detection finished",
		"confidence", result.Confidence,
		"ai_generated", result.IsAIGenerated,
		"factors", len(result.DetectionFactors))

	return result, nil
}

// noiseLevel is the variance of the Laplacian residual
func noiseLevel(p raster.Plane) float64 {
	residual := raster.Laplacian(p)
	if len(residual.V) == 0 {
		return 0
	}
	return stat.PopVariance(residual.V, nil)
}

// colorEntropy averages the Shannon entropy (bits) of the three channel histograms
func colorEntropy(img *raster.Image) float64 {
	var hist [3][256]float64
	for i := 0; i < len(img.Pix); i += 3 {
		hist[0][img.Pix[i]]++
		hist[1][img.Pix[i+1]]++
		hist[2][img.Pix[i+2]]++
	}

	n := float64(img.Pixels())
	total := 0.0
	for c := range hist {
		p := make([]float64, 0, 256)
		for _, count := range hist[c] {
			if count > 0 {
				p = append(p, count/n)
			}
		}
		// stat.Entropy uses the natural log
		total += stat.Entropy(p) / math.Ln2
	}
	return total / 3
}

// edgeConsistency is 1/(1+cv) of the mean gradient strength across a tile grid
func edgeConsistency(p raster.Plane, grid int) float64 {
	mag := raster.Magnitude(raster.Sobel(p))
	if mag.W < grid || mag.H < grid || grid <= 0 {
		return 1
	}
	tw, th := mag.W/grid, mag.H/grid

	means := make([]float64, 0, grid*grid)
	for ty := 0; ty < grid; ty++ {
		for tx := 0; tx < grid; tx++ {
			sum := 0.0
			for y := ty * th; y < (ty+1)*th; y++ {
				for x := tx * tw; x < (tx+1)*tw; x++ {
					sum += mag.At(x, y)
				}
			}
			means = append(means, sum/float64(tw*th))
		}
	}

	mean, std := stat.PopMeanStdDev(means, nil)
	if mean == 0 {
		return 1
	}
	return 1 / (1 + std/mean)
}

// symmetryDeviation is the mean absolute difference between each pixel of the
// left half and its mirror on the right
func symmetryDeviation(img *raster.Image) float64 {
	half := img.Width / 2
	if half == 0 {
		return 0
	}
	sum := 0.0
	for y := 0; y < img.Height; y++ {
		for x := 0; x < half; x++ {
			sum += math.Abs(img.Luma(x, y) - img.Luma(img.Width-1-x, y))
		}
	}
	return sum / float64(half*img.Height)
}

// falling scores 1 at or below lo and 0 at or above hi
func falling(v, lo, hi float64) float64 {
	if hi <= lo {
		if v <= lo {
			return 1
		}
		return 0
	}
	return clamp01((hi - v) / (hi - lo))
}

// rising scores 0 at or below lo and 1 at or above hi
func rising(v, lo, hi float64) float64 {
	if hi <= lo {
		if v >= hi {
			return 1
		}
		return 0
	}
	return clamp01((v - lo) / (hi - lo))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
