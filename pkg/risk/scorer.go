package risk

import (
	"fmt"
	"math"

	"DeForge/pkg/config"
	"DeForge/pkg/models"
)

// ImageRisk is the image component of a risk score
type ImageRisk struct {
	Raw           float64       `json:"raw"`          // 0-100 image score
	Weighted      float64       `json:"weighted"`     // Raw scaled by the image weight
	Contribution  float64       `json:"contribution"` // Weighted after normalization
	Normalization Normalization `json:"normalization"`
	Factors       []string      `json:"factors"`
}

// Component is a risk contribution computed outside the image engine
type Component struct {
	Name    string
	Value   float64
	Factors []string
}

// Score is the combined risk assessment
type Score struct {
	Value          float64            `json:"value"`
	Tier           models.Severity    `json:"tier"`
	Components     map[string]float64 `json:"components"`
	Factors        []string           `json:"factors"`
	Image          ImageRisk          `json:"image"`
	LikelySource   string             `json:"likelySource"`
	Recommendation string             `json:"recommendation"`
}

// Scorer computes risk scores from forensic results
type Scorer struct {
	cfg            config.RiskConfig
	matchThreshold int
	normalizer     *Normalizer
}

// NewScorer creates a scorer. matchThreshold is the reverse search match
// count above which an image counts as widely reused.
func NewScorer(cfg config.RiskConfig, matchThreshold int) *Scorer {
	return &Scorer{
		cfg:            cfg,
		matchThreshold: matchThreshold,
		normalizer:     NewNormalizer(cfg),
	}
}

// Normalizer returns the normalizer used by the scorer
func (s *Scorer) Normalizer() *Normalizer {
	return s.normalizer
}

// ImageRisk builds the normalized image component of result
func (s *Scorer) ImageRisk(result *models.ForensicAnalysisResult) ImageRisk {
	raw, factors := s.rawImageScore(result)
	image := ImageRisk{
		Raw:      raw,
		Weighted: raw * s.cfg.ImageWeight,
		Factors:  factors,
	}

	var elaVariance float64
	if result.Tampering != nil {
		elaVariance = result.Tampering.ELAVariance
	}
	s.normalizer.Apply(&image, result.CompressionProfiles, result.Indicators(), elaVariance, result.Tampering != nil)
	return image
}

// Score combines the image component with external components
func (s *Scorer) Score(result *models.ForensicAnalysisResult, external ...Component) Score {
	image := s.ImageRisk(result)

	score := Score{
		Components:   map[string]float64{"image": image.Contribution},
		Factors:      append([]string(nil), image.Factors...),
		Image:        image,
		LikelySource: "unknown",
	}
	if image.Normalization.Applied {
		score.LikelySource = image.Normalization.Profile
	}

	total := image.Contribution
	for _, c := range external {
		score.Components[c.Name] += c.Value
		score.Factors = append(score.Factors, c.Factors...)
		total += c.Value
	}
	score.Value = math.Min(100, math.Max(0, total))
	score.Tier = s.Tier(score.Value)
	score.Recommendation = recommendation(score.Tier)
	return score
}

// Tier maps a 0-100 score to its risk tier
func (s *Scorer) Tier(value float64) models.Severity {
	switch {
	case value >= s.cfg.CriticalAt:
		return models.SeverityCritical
	case value >= s.cfg.HighAt:
		return models.SeverityHigh
	case value >= s.cfg.MediumAt:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func recommendation(tier models.Severity) string {
	switch tier {
	case models.SeverityCritical:
		return "Reject or escalate for manual forensic review"
	case models.SeverityHigh:
		return "Hold for manual review before accepting the image"
	case models.SeverityMedium:
		return "Request the original, unedited image"
	default:
		return "No action required"
	}
}

// rawImageScore sums the image penalties, capped at 100
func (s *Scorer) rawImageScore(result *models.ForensicAnalysisResult) (float64, []string) {
	var score float64
	var factors []string

	if ai := result.AIDetection; ai != nil && ai.IsAIGenerated {
		score += ai.Confidence * s.cfg.AIPenalty
		factors = append(factors, fmt.Sprintf("AI-generated content suspected (%.0f%% confidence)", ai.Confidence*100))
	}

	if t := result.Tampering; t != nil && t.IsTampered {
		score += t.Confidence * s.cfg.TamperingPenalty
		factors = append(factors, fmt.Sprintf("Tampering detected (%.0f%% confidence)", t.Confidence*100))
	}

	if m := result.ReverseSearchMatches; m != nil && *m > s.matchThreshold {
		score += math.Min(float64(*m)*s.cfg.ReverseMatchStep, s.cfg.ReverseMatchCap)
		factors = append(factors, fmt.Sprintf("Image found in %d other places online", *m))
	}

	if md := result.Metadata; md != nil {
		for _, f := range md.Findings {
			score += f.Severity.Weight() * s.cfg.MetadataSeverityFactor
			factors = append(factors, f.Description)
		}
	}

	if t := result.Tampering; t != nil {
		for _, f := range t.Findings {
			score += f.Severity.Weight() * s.cfg.ForensicSeverityFactor
		}
	}

	if !result.IsAuthentic {
		score += s.cfg.NotAuthenticPenalty
		factors = append(factors, "Image authenticity could not be confirmed")
	}

	return math.Min(100, score), factors
}
