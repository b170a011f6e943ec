package config

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks that the configuration is internally consistent.
// All problems are reported at once.
func (c *Config) Validate() error {
	var problems []string

	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	unit := func(name string, v float64) {
		if v < 0 || v > 1 || math.IsNaN(v) {
			add("%s must be within [0,1], got %v", name, v)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format must be text or json, got %q", c.Log.Format)
	}

	// Analysis
	if c.Analysis.Workers < 1 {
		add("analysis.workers must be at least 1, got %d", c.Analysis.Workers)
	}
	if c.Analysis.DetectorTimeout.Duration <= 0 {
		add("analysis.detector_timeout must be positive")
	}
	if c.Analysis.MaxFileSize < 1024 {
		add("analysis.max_file_size too small: %d (minimum 1024)", c.Analysis.MaxFileSize)
	}
	unit("analysis.authenticity_cutoff", c.Analysis.AuthenticityCutoff)
	unit("analysis.veto_confidence", c.Analysis.VetoConfidence)
	if c.Analysis.ReverseSearchMatchScale <= 0 {
		add("analysis.reverse_search_match_scale must be positive")
	}
	w := c.Analysis.Weights
	unit("analysis.weights.metadata", w.Metadata)
	unit("analysis.weights.ai", w.AI)
	unit("analysis.weights.tampering", w.Tampering)
	unit("analysis.weights.reverse_search", w.ReverseSearch)
	if w.Metadata+w.AI+w.Tampering <= 0 {
		add("analysis.weights must give at least one detector a positive weight")
	}

	// Tampering
	t := c.Tampering
	if t.ELAQuality < 1 || t.ELAQuality > 100 {
		add("tampering.ela_quality must be within [1,100], got %d", t.ELAQuality)
	}
	if t.ELABlockSize < 1 {
		add("tampering.ela_block_size must be positive")
	}
	if t.CloneBlockSize < 8 {
		add("tampering.clone_block_size must be at least 8, got %d", t.CloneBlockSize)
	}
	if t.CloneMinSeparation < 1 {
		add("tampering.clone_min_separation must be at least 1")
	}
	unit("tampering.ela_anomaly_threshold", t.ELAAnomalyThreshold)
	unit("tampering.clone_duplicate_threshold", t.CloneDuplicateThreshold)
	if t.ResamplingAnalysisSize < 16 {
		add("tampering.resampling_analysis_size must be at least 16")
	}
	if t.ResamplingTopPeaks < 1 {
		add("tampering.resampling_top_peaks must be positive")
	}
	if t.ResamplingBackground < 2 {
		add("tampering.resampling_background_radius must be at least 2")
	}
	if t.MedianStreakRatio <= 0 {
		add("tampering.median_streak_ratio must be positive")
	}
	if t.AnalysisWindow < 16 {
		add("tampering.analysis_window must be at least 16")
	}
	if t.NoiseRegionSize < 8 {
		add("tampering.noise_region_size must be at least 8")
	}
	if t.EdgeTileGrid < 1 {
		add("tampering.edge_tile_grid must be positive")
	}
	if t.EdgeHighThreshold <= t.EdgeLowThreshold {
		add("tampering.edge_high_threshold must exceed edge_low_threshold")
	}
	if t.ColorSampleLimit < 16 {
		add("tampering.color_sample_limit must be at least 16")
	}

	// AI
	unit("ai.cutoff", c.AI.Cutoff)
	if c.AI.NoiseHigh <= c.AI.NoiseLow {
		add("ai.noise_high must exceed ai.noise_low")
	}
	if c.AI.EntropyHigh <= c.AI.EntropyLow {
		add("ai.entropy_high must exceed ai.entropy_low")
	}
	if c.AI.EdgeHigh <= c.AI.EdgeLow {
		add("ai.edge_high must exceed ai.edge_low")
	}
	if c.AI.SymmetryHigh <= c.AI.SymmetryLow {
		add("ai.symmetry_high must exceed ai.symmetry_low")
	}
	if c.AI.AnalysisWindow < 16 || c.AI.EdgeTileGrid < 1 {
		add("ai.analysis_window must be at least 16 and ai.edge_tile_grid positive")
	}

	// Compression profiles
	unit("compression.size_tolerance", c.Compression.SizeTolerance)
	unit("compression.variance_slack", c.Compression.VarianceSlack)
	seen := make(map[string]bool)
	for i, p := range c.Compression.Profiles {
		if p.ID == "" {
			add("compression.profiles[%d] has no id", i)
		}
		if seen[p.ID] {
			add("compression.profiles[%d] duplicates id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.VarianceMin < 0 || p.VarianceMax < p.VarianceMin {
			add("compression.profiles[%d] (%s) has an invalid variance range [%v,%v]", i, p.ID, p.VarianceMin, p.VarianceMax)
		}
	}

	// Risk
	unit("risk.image_weight", c.Risk.ImageWeight)
	unit("risk.reductions.high", c.Risk.Reductions.High)
	unit("risk.reductions.medium", c.Risk.Reductions.Medium)
	unit("risk.reductions.low", c.Risk.Reductions.Low)
	if !(c.Risk.MediumAt <= c.Risk.HighAt && c.Risk.HighAt <= c.Risk.CriticalAt) {
		add("risk tier thresholds must be ordered medium_at <= high_at <= critical_at")
	}

	// Cache
	switch c.Cache.Backend {
	case "memory", "none":
	case "sqlite":
		if c.Cache.Path == "" {
			add("cache.path is required for the sqlite backend")
		}
	default:
		add("cache.backend must be memory, sqlite or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend != "none" && c.Cache.TTL.Duration <= 0 {
		add("cache.ttl must be positive")
	}

	unit("reverse_search.min_similarity", c.ReverseSearch.MinSimilarity)
	if c.ReverseSearch.Enabled() && c.ReverseSearch.Timeout.Duration <= 0 {
		add("reverse_search.timeout must be positive when an endpoint is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
