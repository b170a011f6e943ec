package config

import (
	"time"

	"DeForge/pkg/models"
)

// Default returns the default engine configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Analysis: AnalysisConfig{
			Workers:                     4,
			DetectorTimeout:             Duration{30 * time.Second},
			MaxFileSize:                 100 * 1024 * 1024, // 100MB
			AuthenticityCutoff:          0.7,
			VetoConfidence:              0.7,
			ReverseSearchMatchThreshold: 5,
			ReverseSearchMatchScale:     20,
			Weights: AuthenticityWeights{
				Metadata:      0.2,
				AI:            0.3,
				Tampering:     0.4,
				ReverseSearch: 0.1,
			},
			MetadataPenalties: MetadataPenalties{
				NoMetadata:      0.4,
				EditingSoftware: 0.3,
				Timestamps:      0.2,
				NoCamera:        0.1,
			},
		},
		Tampering: TamperingConfig{
			ELAQuality:              90,
			ELAScale:                20,
			ELABlockSize:            8,
			ELASigma:                3,
			ELAMinSpread:            0.5,
			ELAAnomalyThreshold:     0.15, // 15% of pixels in anomalous blocks
			ELAConfidenceMultiplier: 3,

			CloneBlockSize:          32,
			CloneMinSeparation:      2, // blocks, Chebyshev distance
			CloneDuplicateThreshold: 0.05,
			CloneMinBlockStd:        4, // flat blocks hash identically

			ResamplingAnalysisSize: 512,
			ResamplingTopPeaks:     50,
			ResamplingDCRadius:     5,
			ResamplingPeakRatio:    8,
			ResamplingBackground:   7,

			AnalysisWindow:    1024,
			MedianStreakRatio: 0.6,
			MedianMinTexture:  1.2,
			MedianMinRange:    4,

			ColorCorrelationMin: 0.85,
			ColorSampleLimit:    512,

			NoiseRegionSize:      64,
			NoiseRatioMax:        3.0,
			EdgeLowThreshold:     20,
			EdgeHighThreshold:    60,
			EdgeTileGrid:         4,
			EdgeMinPixels:        50,
			EdgeConsistencyDelta: 45,

			QuantHighMean:       40,
			QuantUniformVar:     20,
			QuantUniformMinMean: 20,

			Weights: CheckWeights{
				ELA:          0.30,
				Clone:        0.20,
				Resampling:   0.15,
				Median:       0.10,
				Color:        0.05,
				Noise:        0.10,
				Edge:         0.05,
				Quantization: 0.05,
			},
		},
		AI: AIConfig{
			Cutoff:         0.6,
			AnalysisWindow: 1024,
			EdgeTileGrid:   8,
			NoiseLow:       5,
			NoiseHigh:      50,
			EntropyLow:     5,
			EntropyHigh:    7,
			EdgeLow:        0.6,
			EdgeHigh:       0.9,
			SymmetryLow:    5,
			SymmetryHigh:   20,
			Weights: SignalWeights{
				Noise:    0.3,
				Entropy:  0.2,
				Edge:     0.2,
				Symmetry: 0.3,
			},
		},
		Metadata: MetadataConfig{
			ExpectedFormats: []string{"jpeg", "tiff"},
			EditingSoftware: []string{
				"photoshop", "gimp", "paint", "edit", "lightroom", "affinity", "corel",
				"pixelmator", "snapseed", "picsart", "canva",
				"midjourney", "dall-e", "stable diffusion", "firefly",
			},
		},
		Compression: CompressionConfig{
			SizeTolerance: 0.5,
			VarianceSlack: 0.2,
			Profiles:      DefaultProfiles(),
		},
		Risk: RiskConfig{
			ImageWeight: 0.40,
			Reductions: Reductions{
				High:   0.65,
				Medium: 0.50,
				Low:    0.40,
			},
			HardIndicators: []string{
				models.IndicatorCloneDetected,
				models.IndicatorResampling,
				models.IndicatorMedianFilter,
				models.IndicatorQuantizationAnomaly,
			},
			MediumAt:               25,
			HighAt:                 50,
			CriticalAt:             75,
			AIPenalty:              80,
			TamperingPenalty:       90,
			ReverseMatchStep:       5,
			ReverseMatchCap:        50,
			MetadataSeverityFactor: 0.2,
			ForensicSeverityFactor: 0.25,
			NotAuthenticPenalty:    30,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Path:    "deforge-cache.db",
			TTL:     Duration{2 * time.Hour},
		},
		ReverseSearch: ReverseSearchConfig{
			Timeout:       Duration{10 * time.Second},
			MinSimilarity: 0.9,
		},
	}
}

// DefaultProfiles returns the built-in compression profile table
func DefaultProfiles() []ProfileConfig {
	return []ProfileConfig{
		{ID: "whatsapp_low", Message: "WhatsApp/Low Quality Compression", VarianceMin: 10, VarianceMax: 50, TypicalWidth: 1280, TypicalHeight: 1280, Recompression: true},
		{ID: "instagram", Message: "Instagram Compression", VarianceMin: 80, VarianceMax: 180, TypicalWidth: 1080, TypicalHeight: 1080, Recompression: true},
		{ID: "facebook", Message: "Facebook Compression", VarianceMin: 120, VarianceMax: 280, TypicalWidth: 2048, TypicalHeight: 2048, Recompression: true},
		{ID: "twitter", Message: "Twitter/X Compression", VarianceMin: 60, VarianceMax: 160, TypicalWidth: 1200, TypicalHeight: 675, Recompression: true},
		{ID: "original_camera", Message: "Original Camera JPEG", VarianceMin: 150, VarianceMax: 450, TypicalWidth: 4000, TypicalHeight: 3000, Recompression: false},
	}
}
