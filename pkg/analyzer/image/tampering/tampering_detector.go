// Package tampering runs the pixel-level manipulation checks: error level
// analysis, copy-move hashing, resampling periodicity, median filtering,
// channel correlation, noise and edge consistency, and JPEG quantization.
package tampering

import (
	"context"
	"fmt"
	"sync"

	"DeForge/pkg/analyzer"
	"DeForge/pkg/config"
	"DeForge/pkg/logger"
	"DeForge/pkg/models"
	"DeForge/pkg/raster"
)

// Check names used in CheckScores
const (
	CheckELA          = "ela"
	CheckClone        = "clone"
	CheckResampling   = "resampling"
	CheckMedian       = "median"
	CheckColor        = "color"
	CheckNoise        = "noise"
	CheckEdge         = "edge"
	CheckQuantization = "quantization"
)

// Detector performs tampering detection on decoded rasters
type Detector struct {
	analyzer.BaseAnalyzer
	cfg   config.TamperingConfig
	codec raster.Codec
	log   *logger.Logger
}

// NewDetector creates a new tampering detector
func NewDetector(cfg config.TamperingConfig, codec raster.Codec, log *logger.Logger) *Detector {
	return &Detector{
		BaseAnalyzer: analyzer.NewBaseAnalyzer(
			analyzer.CheckTampering,
			"Detects splicing, cloning, resampling and filtering traces in pixel data",
			raster.SupportedFormats,
		),
		cfg:   cfg,
		codec: codec,
		log:   log.Component(analyzer.CheckTampering),
	}
}

// outcomes collects every check result before they are scored
type outcomes struct {
	ela        elaOutcome
	clone      cloneOutcome
	resampling resamplingOutcome
	median     medianOutcome
	color      float64
	noise      float64
	edge       float64
	quant      quantOutcome
}

// Detect runs every tampering check concurrently and combines their scores
func (d *Detector) Detect(ctx context.Context, img *raster.Image) (*models.TamperingDetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var o outcomes
	o.quant = d.quantization(img)

	tasks := []struct {
		name string
		run  func() error
	}{
		{CheckELA, func() (err error) { o.ela, err = d.errorLevel(ctx, img); return }},
		{CheckClone, func() (err error) { o.clone, err = d.copyMove(ctx, img); return }},
		{CheckResampling, func() (err error) { o.resampling, err = d.resampling(ctx, img); return }},
		{CheckMedian, func() (err error) { o.median, err = d.medianFilter(ctx, img); return }},
		{CheckColor, func() (err error) { o.color, err = d.colorCorrelation(ctx, img); return }},
		{CheckNoise, func() (err error) { o.noise, err = d.noiseRatio(ctx, img); return }},
		{CheckEdge, func() (err error) { o.edge, err = d.edgeConsistency(ctx, img); return }},
	}

	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task.run(); err != nil {
				errs[i] = fmt.Errorf("%s check: %w", task.name, err)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	result := d.score(o)
	d.log.Debug("tampering analysis finished",
		"confidence", result.Confidence,
		"tampered", result.IsTampered,
		"indicators", result.Indicators)
	return result, nil
}

// scoredCheck is one check after thresholding
type scoredCheck struct {
	name   string
	weight float64
	score  float64
	fired  bool
}

// score turns raw outcomes into indicators, findings and a confidence
func (d *Detector) score(o outcomes) *models.TamperingDetectionResult {
	cfg := d.cfg
	result := &models.TamperingDetectionResult{
		ELAAnomalyRatio:      o.ela.AnomalyRatio,
		ELAVariance:          o.ela.Variance,
		CloneStatus:          o.clone.Status,
		CloneRegionCount:     o.clone.Pairs,
		CloneDuplicateRatio:  o.clone.DuplicateRatio,
		ResamplingScore:      o.resampling.PeakRatio,
		NoiseRatio:           o.noise,
		ColorCorrelation:     o.color,
		EdgeConsistencyDelta: o.edge,
		QuantizationAnomaly:  o.quant.Anomaly,
		Indicators:           []string{},
		Findings:             []models.Finding{},
	}

	// too little texture and median filtering leaves no measurable trace
	textured := o.median.Texture >= cfg.MedianMinTexture
	medianFired := textured && o.median.StreakRatio >= cfg.MedianStreakRatio
	medianScore := 0.0
	if textured {
		medianScore = clamp01(o.median.StreakRatio / (2 * cfg.MedianStreakRatio))
	}
	result.MedianFilterScore = medianScore

	quantScore := 0.0
	if o.quant.Anomaly != "" {
		quantScore = 1
	}

	checks := []scoredCheck{
		{CheckELA, cfg.Weights.ELA, clamp01(o.ela.AnomalyRatio * cfg.ELAConfidenceMultiplier), o.ela.AnomalyRatio > cfg.ELAAnomalyThreshold},
		{CheckClone, cfg.Weights.Clone, clamp01(o.clone.DuplicateRatio / (2 * cfg.CloneDuplicateThreshold)), o.clone.DuplicateRatio > cfg.CloneDuplicateThreshold},
		{CheckResampling, cfg.Weights.Resampling, clamp01(o.resampling.PeakRatio / (2 * cfg.ResamplingPeakRatio)), o.resampling.PeakRatio > cfg.ResamplingPeakRatio},
		{CheckMedian, cfg.Weights.Median, medianScore, medianFired},
		{CheckColor, cfg.Weights.Color, clamp01((1 - o.color) / (2 * (1 - cfg.ColorCorrelationMin))), o.color < cfg.ColorCorrelationMin},
		{CheckNoise, cfg.Weights.Noise, clamp01(o.noise / (2 * cfg.NoiseRatioMax)), o.noise > cfg.NoiseRatioMax},
		{CheckEdge, cfg.Weights.Edge, clamp01(o.edge / (2 * cfg.EdgeConsistencyDelta)), o.edge > cfg.EdgeConsistencyDelta},
		{CheckQuantization, cfg.Weights.Quantization, quantScore, o.quant.Anomaly != ""},
	}

	result.CheckScores = make(map[string]float64, len(checks))
	for _, c := range checks {
		result.CheckScores[c.name] = c.score
	}

	for _, c := range checks {
		if !c.fired {
			continue
		}
		switch c.name {
		case CheckELA:
			severity := models.SeverityMedium
			if c.score > 0.6 {
				severity = models.SeverityHigh
			}
			result.AddIndicator(models.IndicatorELAAnomaly, severity, c.score,
				"Error level analysis found regions with inconsistent compression",
				fmt.Sprintf("%.1f%% of pixels in anomalous blocks, variance %.1f (%s)",
					o.ela.AnomalyRatio*100, o.ela.Variance, elaBand(o.ela.Variance)))
		case CheckClone:
			result.AddIndicator(models.IndicatorCloneDetected, models.SeverityHigh, c.score,
				"Duplicated regions found (copy-move)",
				fmt.Sprintf("%d duplicate block pairs, %.1f%% of blocks", o.clone.Pairs, o.clone.DuplicateRatio*100))
		case CheckResampling:
			result.AddIndicator(models.IndicatorResampling, models.SeverityHigh, c.score,
				"Periodic interpolation traces suggest resized or rotated content",
				fmt.Sprintf("spectral peak ratio %.2f", o.resampling.PeakRatio))
		case CheckMedian:
			result.AddIndicator(models.IndicatorMedianFilter, models.SeverityMedium, c.score,
				"Pixel neighbourhoods are already median filtered",
				fmt.Sprintf("equal neighbour share %.1f%% (%.2f of a re-filtered copy), mean residual %.3f, %.1f%% unchanged pixels",
					o.median.Streak*100, o.median.StreakRatio, o.median.MeanDiff, o.median.FlatRatio*100))
		case CheckColor:
			result.AddIndicator(models.IndicatorColorCorrelation, models.SeverityLow, c.score,
				"Color channels are weakly correlated",
				fmt.Sprintf("mean channel correlation %.3f", o.color))
		case CheckNoise:
			result.AddIndicator(models.IndicatorNoiseInconsistency, models.SeverityMedium, c.score,
				"Noise level differs strongly between regions",
				fmt.Sprintf("p90/p10 noise ratio %.2f", o.noise))
		case CheckEdge:
			result.AddIndicator(models.IndicatorEdgeInconsistency, models.SeverityLow, c.score,
				"Edge sharpness differs between regions",
				fmt.Sprintf("strong edge share spread %.1f points", o.edge))
		case CheckQuantization:
			result.AddIndicator(models.IndicatorQuantizationAnomaly, models.SeverityMedium, c.score,
				"JPEG quantization table indicates re-saving at low quality",
				fmt.Sprintf("%s: mean %.1f, variance %.1f", o.quant.Anomaly, o.quant.Mean, o.quant.Variance))
		}
	}

	result.Confidence = confidence(checks)
	result.IsTampered = len(result.Indicators) > 0
	return result
}

// confidence is the larger of the weighted mean score and the strongest fired
// check. Both terms only grow when a check statistic moves toward tampering.
func confidence(checks []scoredCheck) float64 {
	var weighted, total, strongest float64
	for _, c := range checks {
		weighted += c.weight * c.score
		total += c.weight
		if c.fired {
			strongest = max(strongest, c.score)
		}
	}
	mean := 0.0
	if total > 0 {
		mean = weighted / total
	}
	return clamp01(max(mean, strongest))
}

func clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
