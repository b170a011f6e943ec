package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DEFORGE_"

// ApplyEnvOverrides overlays DEFORGE_* environment variables onto c.
// Unset or unparsable variables leave the current value untouched.
func (c *Config) ApplyEnvOverrides() {
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)

	c.Analysis.Workers = getEnvAsInt("WORKERS", c.Analysis.Workers)
	c.Analysis.DetectorTimeout.Duration = getEnvAsDuration("DETECTOR_TIMEOUT", c.Analysis.DetectorTimeout.Duration)
	c.Analysis.MaxFileSize = getEnvAsInt64("MAX_FILE_SIZE", c.Analysis.MaxFileSize)
	c.Analysis.AuthenticityCutoff = getEnvAsFloat("AUTHENTICITY_CUTOFF", c.Analysis.AuthenticityCutoff)

	c.Tampering.ELAQuality = getEnvAsInt("ELA_QUALITY", c.Tampering.ELAQuality)
	c.Tampering.ELAAnomalyThreshold = getEnvAsFloat("ELA_ANOMALY_THRESHOLD", c.Tampering.ELAAnomalyThreshold)
	c.Tampering.CloneBlockSize = getEnvAsInt("CLONE_BLOCK_SIZE", c.Tampering.CloneBlockSize)
	c.Tampering.CloneDuplicateThreshold = getEnvAsFloat("CLONE_DUPLICATE_THRESHOLD", c.Tampering.CloneDuplicateThreshold)
	c.Tampering.ResamplingPeakRatio = getEnvAsFloat("RESAMPLING_PEAK_RATIO", c.Tampering.ResamplingPeakRatio)
	c.Tampering.ColorCorrelationMin = getEnvAsFloat("COLOR_CORRELATION_MIN", c.Tampering.ColorCorrelationMin)
	c.Tampering.NoiseRatioMax = getEnvAsFloat("NOISE_RATIO_MAX", c.Tampering.NoiseRatioMax)

	c.AI.Cutoff = getEnvAsFloat("AI_CUTOFF", c.AI.Cutoff)

	c.Metadata.EditingSoftware = getEnvAsSlice("EDITING_SOFTWARE", c.Metadata.EditingSoftware)

	c.Risk.HardIndicators = getEnvAsSlice("HARD_INDICATORS", c.Risk.HardIndicators)

	c.Cache.Backend = getEnvOrDefault("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Path = getEnvOrDefault("CACHE_PATH", c.Cache.Path)
	c.Cache.TTL.Duration = getEnvAsDuration("CACHE_TTL", c.Cache.TTL.Duration)

	c.ReverseSearch.Endpoint = getEnvOrDefault("REVERSE_SEARCH_ENDPOINT", c.ReverseSearch.Endpoint)
	c.ReverseSearch.APIKey = getEnvOrDefault("REVERSE_SEARCH_API_KEY", c.ReverseSearch.APIKey)
	c.ReverseSearch.Timeout.Duration = getEnvAsDuration("REVERSE_SEARCH_TIMEOUT", c.ReverseSearch.Timeout.Duration)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated variable, dropping empty entries
func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
