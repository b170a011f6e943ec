// Package config holds every tunable threshold of the forensic engine.
//
// Values start from Default(), are optionally overlaid by a TOML, YAML or JSON
// file (see Load), then by DEFORGE_* environment variables, and are finally
// checked with Validate. The numbers below are calibrated starting points, not
// ground truth; deployments are expected to tune them.
package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so it can be written as "30s" or "2h" in files
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root configuration document
type Config struct {
	Log           LogConfig           `toml:"log" yaml:"log" json:"log"`
	Analysis      AnalysisConfig      `toml:"analysis" yaml:"analysis" json:"analysis"`
	Tampering     TamperingConfig     `toml:"tampering" yaml:"tampering" json:"tampering"`
	AI            AIConfig            `toml:"ai" yaml:"ai" json:"ai"`
	Metadata      MetadataConfig      `toml:"metadata" yaml:"metadata" json:"metadata"`
	Compression   CompressionConfig   `toml:"compression" yaml:"compression" json:"compression"`
	Risk          RiskConfig          `toml:"risk" yaml:"risk" json:"risk"`
	Cache         CacheConfig         `toml:"cache" yaml:"cache" json:"cache"`
	ReverseSearch ReverseSearchConfig `toml:"reverse_search" yaml:"reverse_search" json:"reverse_search"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`    // debug, info, warn, error
	Format string `toml:"format" yaml:"format" json:"format"` // text or json
}

// AuthenticityWeights are the blend weights of the authenticity score
type AuthenticityWeights struct {
	Metadata      float64 `toml:"metadata" yaml:"metadata" json:"metadata"`
	AI            float64 `toml:"ai" yaml:"ai" json:"ai"`
	Tampering     float64 `toml:"tampering" yaml:"tampering" json:"tampering"`
	ReverseSearch float64 `toml:"reverse_search" yaml:"reverse_search" json:"reverse_search"`
}

// MetadataPenalties are subtracted from a perfect metadata score
type MetadataPenalties struct {
	NoMetadata      float64 `toml:"no_metadata" yaml:"no_metadata" json:"no_metadata"`
	EditingSoftware float64 `toml:"editing_software" yaml:"editing_software" json:"editing_software"`
	Timestamps      float64 `toml:"timestamps" yaml:"timestamps" json:"timestamps"`
	NoCamera        float64 `toml:"no_camera" yaml:"no_camera" json:"no_camera"`
}

// AnalysisConfig drives the orchestrator
type AnalysisConfig struct {
	Workers                     int                 `toml:"workers" yaml:"workers" json:"workers"`
	DetectorTimeout             Duration            `toml:"detector_timeout" yaml:"detector_timeout" json:"detector_timeout"`
	MaxFileSize                 int64               `toml:"max_file_size" yaml:"max_file_size" json:"max_file_size"`
	AuthenticityCutoff          float64             `toml:"authenticity_cutoff" yaml:"authenticity_cutoff" json:"authenticity_cutoff"`
	VetoConfidence              float64             `toml:"veto_confidence" yaml:"veto_confidence" json:"veto_confidence"`
	ReverseSearchMatchThreshold int                 `toml:"reverse_search_match_threshold" yaml:"reverse_search_match_threshold" json:"reverse_search_match_threshold"`
	ReverseSearchMatchScale     float64             `toml:"reverse_search_match_scale" yaml:"reverse_search_match_scale" json:"reverse_search_match_scale"`
	Weights                     AuthenticityWeights `toml:"weights" yaml:"weights" json:"weights"`
	MetadataPenalties           MetadataPenalties   `toml:"metadata_penalties" yaml:"metadata_penalties" json:"metadata_penalties"`
}

// CheckWeights blend the individual tampering checks into one confidence
type CheckWeights struct {
	ELA          float64 `toml:"ela" yaml:"ela" json:"ela"`
	Clone        float64 `toml:"clone" yaml:"clone" json:"clone"`
	Resampling   float64 `toml:"resampling" yaml:"resampling" json:"resampling"`
	Median       float64 `toml:"median" yaml:"median" json:"median"`
	Color        float64 `toml:"color" yaml:"color" json:"color"`
	Noise        float64 `toml:"noise" yaml:"noise" json:"noise"`
	Edge         float64 `toml:"edge" yaml:"edge" json:"edge"`
	Quantization float64 `toml:"quantization" yaml:"quantization" json:"quantization"`
}

// TamperingConfig contains the thresholds of every tampering check
type TamperingConfig struct {
	// Error level analysis
	ELAQuality              int     `toml:"ela_quality" yaml:"ela_quality" json:"ela_quality"`
	ELAScale                float64 `toml:"ela_scale" yaml:"ela_scale" json:"ela_scale"`
	ELABlockSize            int     `toml:"ela_block_size" yaml:"ela_block_size" json:"ela_block_size"`
	ELASigma                float64 `toml:"ela_sigma" yaml:"ela_sigma" json:"ela_sigma"`
	ELAMinSpread            float64 `toml:"ela_min_spread" yaml:"ela_min_spread" json:"ela_min_spread"`
	ELAAnomalyThreshold     float64 `toml:"ela_anomaly_threshold" yaml:"ela_anomaly_threshold" json:"ela_anomaly_threshold"`
	ELAConfidenceMultiplier float64 `toml:"ela_confidence_multiplier" yaml:"ela_confidence_multiplier" json:"ela_confidence_multiplier"`

	// Copy-move detection
	CloneBlockSize          int     `toml:"clone_block_size" yaml:"clone_block_size" json:"clone_block_size"`
	CloneMinSeparation      int     `toml:"clone_min_separation" yaml:"clone_min_separation" json:"clone_min_separation"`
	CloneDuplicateThreshold float64 `toml:"clone_duplicate_threshold" yaml:"clone_duplicate_threshold" json:"clone_duplicate_threshold"`
	CloneMinBlockStd        float64 `toml:"clone_min_block_std" yaml:"clone_min_block_std" json:"clone_min_block_std"`

	// Resampling
	ResamplingAnalysisSize int     `toml:"resampling_analysis_size" yaml:"resampling_analysis_size" json:"resampling_analysis_size"`
	ResamplingTopPeaks     int     `toml:"resampling_top_peaks" yaml:"resampling_top_peaks" json:"resampling_top_peaks"`
	ResamplingDCRadius     int     `toml:"resampling_dc_radius" yaml:"resampling_dc_radius" json:"resampling_dc_radius"`
	ResamplingPeakRatio    float64 `toml:"resampling_peak_ratio" yaml:"resampling_peak_ratio" json:"resampling_peak_ratio"`
	ResamplingBackground   int     `toml:"resampling_background_radius" yaml:"resampling_background_radius" json:"resampling_background_radius"`

	// Median filtering
	AnalysisWindow    int     `toml:"analysis_window" yaml:"analysis_window" json:"analysis_window"`
	MedianStreakRatio float64 `toml:"median_streak_ratio" yaml:"median_streak_ratio" json:"median_streak_ratio"`
	MedianMinTexture  float64 `toml:"median_min_texture" yaml:"median_min_texture" json:"median_min_texture"` // Laplacian noise estimate
	MedianMinRange    float64 `toml:"median_min_range" yaml:"median_min_range" json:"median_min_range"`

	// Color channel correlation
	ColorCorrelationMin float64 `toml:"color_correlation_min" yaml:"color_correlation_min" json:"color_correlation_min"`
	ColorSampleLimit    int     `toml:"color_sample_limit" yaml:"color_sample_limit" json:"color_sample_limit"`

	// Noise and edge consistency
	NoiseRegionSize      int     `toml:"noise_region_size" yaml:"noise_region_size" json:"noise_region_size"`
	NoiseRatioMax        float64 `toml:"noise_ratio_max" yaml:"noise_ratio_max" json:"noise_ratio_max"`
	EdgeLowThreshold     float64 `toml:"edge_low_threshold" yaml:"edge_low_threshold" json:"edge_low_threshold"`
	EdgeHighThreshold    float64 `toml:"edge_high_threshold" yaml:"edge_high_threshold" json:"edge_high_threshold"`
	EdgeTileGrid         int     `toml:"edge_tile_grid" yaml:"edge_tile_grid" json:"edge_tile_grid"`
	EdgeMinPixels        int     `toml:"edge_min_pixels" yaml:"edge_min_pixels" json:"edge_min_pixels"`
	EdgeConsistencyDelta float64 `toml:"edge_consistency_delta" yaml:"edge_consistency_delta" json:"edge_consistency_delta"`

	// JPEG quantization tables
	QuantHighMean       float64 `toml:"quant_high_mean" yaml:"quant_high_mean" json:"quant_high_mean"`
	QuantUniformVar     float64 `toml:"quant_uniform_var" yaml:"quant_uniform_var" json:"quant_uniform_var"`
	QuantUniformMinMean float64 `toml:"quant_uniform_min_mean" yaml:"quant_uniform_min_mean" json:"quant_uniform_min_mean"`

	Weights CheckWeights `toml:"weights" yaml:"weights" json:"weights"`
}

// SignalWeights blend the AI-generation signals
type SignalWeights struct {
	Noise    float64 `toml:"noise" yaml:"noise" json:"noise"`
	Entropy  float64 `toml:"entropy" yaml:"entropy" json:"entropy"`
	Edge     float64 `toml:"edge" yaml:"edge" json:"edge"`
	Symmetry float64 `toml:"symmetry" yaml:"symmetry" json:"symmetry"`
}

// AIConfig contains the ramps of the AI-generation signals
type AIConfig struct {
	Cutoff         float64       `toml:"cutoff" yaml:"cutoff" json:"cutoff"`
	AnalysisWindow int           `toml:"analysis_window" yaml:"analysis_window" json:"analysis_window"`
	EdgeTileGrid   int           `toml:"edge_tile_grid" yaml:"edge_tile_grid" json:"edge_tile_grid"`
	NoiseLow       float64       `toml:"noise_low" yaml:"noise_low" json:"noise_low"`
	NoiseHigh      float64       `toml:"noise_high" yaml:"noise_high" json:"noise_high"`
	EntropyLow     float64       `toml:"entropy_low" yaml:"entropy_low" json:"entropy_low"`
	EntropyHigh    float64       `toml:"entropy_high" yaml:"entropy_high" json:"entropy_high"`
	EdgeLow        float64       `toml:"edge_low" yaml:"edge_low" json:"edge_low"`
	EdgeHigh       float64       `toml:"edge_high" yaml:"edge_high" json:"edge_high"`
	SymmetryLow    float64       `toml:"symmetry_low" yaml:"symmetry_low" json:"symmetry_low"`
	SymmetryHigh   float64       `toml:"symmetry_high" yaml:"symmetry_high" json:"symmetry_high"`
	Weights        SignalWeights `toml:"weights" yaml:"weights" json:"weights"`
}

// MetadataConfig lists the formats expected to carry EXIF and the editor signatures
type MetadataConfig struct {
	ExpectedFormats []string `toml:"expected_formats" yaml:"expected_formats" json:"expected_formats"`
	EditingSoftware []string `toml:"editing_software" yaml:"editing_software" json:"editing_software"`
}

// ProfileConfig is one row of the compression profile table
type ProfileConfig struct {
	ID            string  `toml:"id" yaml:"id" json:"id"`
	Message       string  `toml:"message" yaml:"message" json:"message"`
	VarianceMin   float64 `toml:"variance_min" yaml:"variance_min" json:"variance_min"`
	VarianceMax   float64 `toml:"variance_max" yaml:"variance_max" json:"variance_max"`
	TypicalWidth  int     `toml:"typical_width" yaml:"typical_width" json:"typical_width"`
	TypicalHeight int     `toml:"typical_height" yaml:"typical_height" json:"typical_height"`
	Recompression bool    `toml:"recompression" yaml:"recompression" json:"recompression"`
}

// CompressionConfig holds the profile table and its matching tolerances
type CompressionConfig struct {
	SizeTolerance float64         `toml:"size_tolerance" yaml:"size_tolerance" json:"size_tolerance"`
	VarianceSlack float64         `toml:"variance_slack" yaml:"variance_slack" json:"variance_slack"`
	Profiles      []ProfileConfig `toml:"profiles" yaml:"profiles" json:"profiles"`
}

// Reductions maps a profile confidence tier to the share of risk removed
type Reductions struct {
	High   float64 `toml:"high" yaml:"high" json:"high"`
	Medium float64 `toml:"medium" yaml:"medium" json:"medium"`
	Low    float64 `toml:"low" yaml:"low" json:"low"`
}

// RiskConfig contains image risk scoring and normalization policy
type RiskConfig struct {
	ImageWeight            float64    `toml:"image_weight" yaml:"image_weight" json:"image_weight"`
	Reductions             Reductions `toml:"reductions" yaml:"reductions" json:"reductions"`
	HardIndicators         []string   `toml:"hard_indicators" yaml:"hard_indicators" json:"hard_indicators"`
	MediumAt               float64    `toml:"medium_at" yaml:"medium_at" json:"medium_at"`
	HighAt                 float64    `toml:"high_at" yaml:"high_at" json:"high_at"`
	CriticalAt             float64    `toml:"critical_at" yaml:"critical_at" json:"critical_at"`
	AIPenalty              float64    `toml:"ai_penalty" yaml:"ai_penalty" json:"ai_penalty"`
	TamperingPenalty       float64    `toml:"tampering_penalty" yaml:"tampering_penalty" json:"tampering_penalty"`
	ReverseMatchStep       float64    `toml:"reverse_match_step" yaml:"reverse_match_step" json:"reverse_match_step"`
	ReverseMatchCap        float64    `toml:"reverse_match_cap" yaml:"reverse_match_cap" json:"reverse_match_cap"`
	MetadataSeverityFactor float64    `toml:"metadata_severity_factor" yaml:"metadata_severity_factor" json:"metadata_severity_factor"`
	ForensicSeverityFactor float64    `toml:"forensic_severity_factor" yaml:"forensic_severity_factor" json:"forensic_severity_factor"`
	NotAuthenticPenalty    float64    `toml:"not_authentic_penalty" yaml:"not_authentic_penalty" json:"not_authentic_penalty"`
}

// CacheConfig selects the result cache backend
type CacheConfig struct {
	Backend string   `toml:"backend" yaml:"backend" json:"backend"` // memory, sqlite, none
	Path    string   `toml:"path" yaml:"path" json:"path"`
	TTL     Duration `toml:"ttl" yaml:"ttl" json:"ttl"`
}

// ReverseSearchConfig points at the external reverse image search service
type ReverseSearchConfig struct {
	Endpoint      string   `toml:"endpoint" yaml:"endpoint" json:"endpoint"`
	APIKey        string   `toml:"api_key" yaml:"api_key" json:"api_key"`
	Timeout       Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
	MinSimilarity float64  `toml:"min_similarity" yaml:"min_similarity" json:"min_similarity"` // matches below are ignored
}

// Enabled reports whether a reverse search endpoint is configured
func (r ReverseSearchConfig) Enabled() bool {
	return r.Endpoint != ""
}
