package analyzer

/*
analyzer.go contains the shared description of forensic detectors.
Detector: interface every detector exposes to the orchestrator and the CLI listing.
BaseAnalyzer: struct provides the name, description and supported formats of a detector.
The typed analysis entry points live on the concrete detectors (metadata, tampering, aigen);
the orchestrator uses CanAnalyze to decide whether a detector applies to a decoded format.
*/

// Check names used across results, logs and the CLI -skip flag
const (
	CheckMetadata      = "metadata"
	CheckTampering     = "tampering"
	CheckAIDetection   = "ai_detection"
	CheckReverseSearch = "reverse_search"
)

// Detector is the interface that all forensic detectors implement
type Detector interface {
	// CanAnalyze checks if this detector can handle the given format
	CanAnalyze(format string) bool

	// Name returns the check name of the detector
	Name() string

	// Description returns a detailed description of what the detector does
	Description() string

	// SupportedFormats returns a list of image formats this detector supports
	SupportedFormats() []string
}

// BaseAnalyzer provides common functionality for detectors
type BaseAnalyzer struct {
	name        string
	description string
	formats     []string
}

// NewBaseAnalyzer creates a new BaseAnalyzer
func NewBaseAnalyzer(name, description string, formats []string) BaseAnalyzer {
	return BaseAnalyzer{
		name:        name,
		description: description,
		formats:     formats,
	}
}

// Name returns the detector name
func (b *BaseAnalyzer) Name() string {
	return b.name
}

// Description returns the detector description
func (b *BaseAnalyzer) Description() string {
	return b.description
}

// SupportedFormats returns the supported formats
func (b *BaseAnalyzer) SupportedFormats() []string {
	return b.formats
}

// CanAnalyze checks if the detector supports the given format
func (b *BaseAnalyzer) CanAnalyze(format string) bool {
	for _, f := range b.formats {
		if f == format {
			return true
		}
	}
	return false
}
