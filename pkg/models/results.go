package models

// Severity grades how strongly a finding argues against authenticity
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Weight returns the numeric weight of a severity used by risk scoring
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 100
	case SeverityHigh:
		return 75
	case SeverityMedium:
		return 50
	case SeverityLow:
		return 25
	default:
		return 0
	}
}

// Finding represents a specific detection or discovery during analysis
type Finding struct {
	Code        string   `json:"code"`
	Category    string   `json:"category"` // metadata, forensic
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"` // 0.0-1.0
	Details     string   `json:"details,omitempty"`
}

// MetadataAnalysisResult contains the outcome of container metadata inspection
type MetadataAnalysisResult struct {
	HasEXIF              bool              `json:"hasExif"`
	CameraInfoPresent    bool              `json:"cameraInfoPresent"`
	CameraMake           string            `json:"cameraMake,omitempty"`
	CameraModel          string            `json:"cameraModel,omitempty"`
	EditingSoftware      string            `json:"editingSoftware,omitempty"`
	TimestampsConsistent bool              `json:"timestampsConsistent"`
	Timestamps           map[string]string `json:"timestamps,omitempty"`
	Findings             []Finding         `json:"findings"`
}

// AddFinding adds a finding to the metadata result
func (r *MetadataAnalysisResult) AddFinding(code string, severity Severity, description, details string) {
	r.Findings = append(r.Findings, Finding{
		Code:        code,
		Category:    "metadata",
		Severity:    severity,
		Description: description,
		Confidence:  1.0,
		Details:     details,
	})
}

// Tampering indicators emitted by the tampering detector
const (
	IndicatorELAAnomaly          = "ELA_ANOMALY"
	IndicatorCloneDetected       = "CLONE_DETECTED"
	IndicatorResampling          = "RESAMPLING_DETECTED"
	IndicatorMedianFilter        = "MEDIAN_FILTER_DETECTED"
	IndicatorColorCorrelation    = "COLOR_CORRELATION_ANOMALY"
	IndicatorNoiseInconsistency  = "NOISE_INCONSISTENCY"
	IndicatorEdgeInconsistency   = "EDGE_INCONSISTENCY"
	IndicatorQuantizationAnomaly = "QUANTIZATION_ANOMALY"
)

// Clone check status values
const (
	CloneStatusPerformed        = "performed"
	CloneStatusInsufficientSize = "insufficient_size"
)

// TamperingDetectionResult contains the outcome of the pixel-level tampering checks
type TamperingDetectionResult struct {
	IsTampered           bool               `json:"isTampered"`
	Confidence           float64            `json:"confidence"`
	ELAAnomalyRatio      float64            `json:"elaAnomalyRatio"`
	ELAVariance          float64            `json:"elaVariance"`
	CloneStatus          string             `json:"cloneStatus"`
	CloneRegionCount     int                `json:"cloneRegionCount"`
	CloneDuplicateRatio  float64            `json:"cloneDuplicateRatio"`
	ResamplingScore      float64            `json:"resamplingScore"`
	NoiseRatio           float64            `json:"noiseRatio"`
	ColorCorrelation     float64            `json:"colorCorrelation"`
	EdgeConsistencyDelta float64            `json:"edgeConsistencyDelta"`
	MedianFilterScore    float64            `json:"medianFilterScore"`
	QuantizationAnomaly  string             `json:"quantizationAnomaly,omitempty"`
	CheckScores          map[string]float64 `json:"checkScores"`
	Indicators           []string           `json:"indicators"`
	Findings             []Finding          `json:"findings"`
}

// AddIndicator records a fired check together with its finding
func (r *TamperingDetectionResult) AddIndicator(indicator string, severity Severity, confidence float64, description, details string) {
	r.Indicators = append(r.Indicators, indicator)
	r.AddFinding(indicator, severity, confidence, description, details)
}

// AddFinding adds a forensic finding without raising an indicator
func (r *TamperingDetectionResult) AddFinding(code string, severity Severity, confidence float64, description, details string) {
	r.Findings = append(r.Findings, Finding{
		Code:        code,
		Category:    "forensic",
		Severity:    severity,
		Description: description,
		Confidence:  confidence,
		Details:     details,
	})
}

// HasIndicator reports whether the given indicator fired
func (r *TamperingDetectionResult) HasIndicator(indicator string) bool {
	for _, i := range r.Indicators {
		if i == indicator {
			return true
		}
	}
	return false
}

// AIDetectionResult contains the outcome of the synthetic-image heuristics
type AIDetectionResult struct {
	IsAIGenerated     bool               `json:"isAiGenerated"`
	Confidence        float64            `json:"confidence"`
	NoiseLevel        float64            `json:"noiseLevel"`
	ColorEntropy      float64            `json:"colorEntropy"`
	EdgeConsistency   float64            `json:"edgeConsistency"`
	SymmetryDeviation float64            `json:"symmetryDeviation"`
	SignalScores      map[string]float64 `json:"signalScores"`
	DetectionFactors  []string           `json:"detectionFactors"`
}

// ConfidenceTier grades how well an image fits a compression profile
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "HIGH"
	TierMedium ConfidenceTier = "MEDIUM"
	TierLow    ConfidenceTier = "LOW"
)

// Rank orders tiers so HIGH sorts first
func (t ConfidenceTier) Rank() int {
	switch t {
	case TierHigh:
		return 0
	case TierMedium:
		return 1
	case TierLow:
		return 2
	default:
		return 3
	}
}

// CompressionProfile is a matched reference signature of a known pipeline
type CompressionProfile struct {
	ID            string         `json:"id"`
	Message       string         `json:"message"`
	Confidence    ConfidenceTier `json:"confidence"`
	SizeMatch     bool           `json:"sizeMatch"`
	VarianceMin   float64        `json:"varianceMin"`
	VarianceMax   float64        `json:"varianceMax"`
	TypicalWidth  int            `json:"typicalWidth"`
	TypicalHeight int            `json:"typicalHeight"`
	Recompression bool           `json:"recompression"`
}

// CheckState is the outcome of one orchestrated check
type CheckState string

const (
	CheckCompleted     CheckState = "completed"
	CheckSkipped       CheckState = "skipped"
	CheckTimeout       CheckState = "timeout"
	CheckFailed        CheckState = "failed"
	CheckNotApplicable CheckState = "not_applicable"
)

// Unknown reports whether the check ran but produced no usable result
func (s CheckState) Unknown() bool {
	return s == CheckTimeout || s == CheckFailed
}

// CheckStatus records what happened to a single orchestrated check
type CheckStatus struct {
	Check string     `json:"check"`
	State CheckState `json:"state"`
	Error string     `json:"error,omitempty"`
}

// ForensicAnalysisResult aggregates every detector output for one image
type ForensicAnalysisResult struct {
	ContentHash          string                    `json:"contentHash"`
	Format               string                    `json:"format"`
	Width                int                       `json:"width"`
	Height               int                       `json:"height"`
	Metadata             *MetadataAnalysisResult   `json:"metadata,omitempty"`
	Tampering            *TamperingDetectionResult `json:"tampering,omitempty"`
	AIDetection          *AIDetectionResult        `json:"aiDetection,omitempty"`
	CompressionProfiles  []CompressionProfile      `json:"compressionProfiles"`
	ReverseSearchMatches *int                      `json:"reverseSearchMatches,omitempty"`
	AuthenticityScore    float64                   `json:"authenticityScore"`
	IsAuthentic          bool                      `json:"isAuthentic"`
	Checks               []CheckStatus             `json:"checks"`
	Partial              bool                      `json:"partial"`
	Findings             []Finding                 `json:"findings"`
}

// StateOf returns the recorded state of the named check
func (r *ForensicAnalysisResult) StateOf(check string) CheckState {
	for _, c := range r.Checks {
		if c.Check == check {
			return c.State
		}
	}
	return ""
}

// Indicators returns the tampering indicators, or nil when tampering is unknown
func (r *ForensicAnalysisResult) Indicators() []string {
	if r.Tampering == nil {
		return nil
	}
	return r.Tampering.Indicators
}
