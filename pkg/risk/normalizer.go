// Package risk turns a forensic analysis result into a bounded risk
// contribution and reconciles benign platform recompression with genuine
// tampering signals.
package risk

import (
	"fmt"
	"math"
	"strings"

	"DeForge/pkg/config"
	"DeForge/pkg/models"
)

// NormalizationInput is everything the normalizer looks at
type NormalizationInput struct {
	Raw            float64 // weighted image-risk contribution before normalization
	Profiles       []models.CompressionProfile
	Indicators     []string
	ELAVariance    float64
	TamperingKnown bool
}

// Normalization records the outcome of one normalization decision
type Normalization struct {
	Raw         float64 `json:"raw"`
	Adjusted    float64 `json:"adjusted"`
	Applied     bool    `json:"applied"`
	Reduction   float64 `json:"reduction"` // share of Raw removed
	Profile     string  `json:"profile,omitempty"`
	Explanation string  `json:"explanation"`
}

// Normalizer reduces risk attributable to known recompression pipelines
type Normalizer struct {
	reductions config.Reductions
	hard       map[string]bool
	hardOrder  []string
}

// NewNormalizer creates a normalizer from the risk configuration
func NewNormalizer(cfg config.RiskConfig) *Normalizer {
	n := &Normalizer{
		reductions: cfg.Reductions,
		hard:       make(map[string]bool, len(cfg.HardIndicators)),
	}
	for _, indicator := range cfg.HardIndicators {
		if !n.hard[indicator] {
			n.hard[indicator] = true
			n.hardOrder = append(n.hardOrder, indicator)
		}
	}
	return n
}

// Normalize decides whether in.Raw may be reduced. The result depends only on
// its input, so normalizing the same raw value again yields the same outcome.
func (n *Normalizer) Normalize(in NormalizationInput) Normalization {
	out := Normalization{Raw: in.Raw, Adjusted: in.Raw}

	if !in.TamperingKnown {
		out.Explanation = "No compression normalization applied: tampering results are unavailable"
		return out
	}

	profile, ok := firstRecompression(in.Profiles)
	if !ok {
		if len(in.Profiles) > 0 {
			out.Explanation = fmt.Sprintf("No compression normalization applied: matched profile %s is not a recompression pipeline", in.Profiles[0].ID)
		} else {
			out.Explanation = "No compression normalization applied: no compression profile matched"
		}
		return out
	}
	out.Profile = profile.ID

	if vetoes := n.vetoes(in.Indicators); len(vetoes) > 0 {
		out.Explanation = fmt.Sprintf("No compression normalization applied: %s matched but hard tampering indicators are present (%s)",
			profile.Message, strings.Join(vetoes, ", "))
		return out
	}

	out.Reduction = n.reductionFor(profile.Confidence)
	out.Adjusted = in.Raw * (1 - out.Reduction)
	out.Applied = true
	out.Explanation = fmt.Sprintf("Adjusted to %.1f (%d%% of original) due to likely %s (%s confidence, ELA variance %.1f)",
		out.Adjusted, int(math.Round((1-out.Reduction)*100)), profile.Message, profile.Confidence, in.ELAVariance)
	return out
}

// Apply re-normalizes an image risk from its stored raw contribution
func (n *Normalizer) Apply(image *ImageRisk, profiles []models.CompressionProfile, indicators []string, elaVariance float64, tamperingKnown bool) {
	image.Normalization = n.Normalize(NormalizationInput{
		Raw:            image.Weighted,
		Profiles:       profiles,
		Indicators:     indicators,
		ELAVariance:    elaVariance,
		TamperingKnown: tamperingKnown,
	})
	image.Contribution = image.Normalization.Adjusted
}

// vetoes returns the hard indicators present, in configuration order
func (n *Normalizer) vetoes(indicators []string) []string {
	present := make(map[string]bool, len(indicators))
	for _, i := range indicators {
		present[i] = true
	}
	var out []string
	for _, h := range n.hardOrder {
		if present[h] {
			out = append(out, h)
		}
	}
	return out
}

func (n *Normalizer) reductionFor(tier models.ConfidenceTier) float64 {
	switch tier {
	case models.TierHigh:
		return n.reductions.High
	case models.TierMedium:
		return n.reductions.Medium
	case models.TierLow:
		return n.reductions.Low
	default:
		return 0
	}
}

func firstRecompression(profiles []models.CompressionProfile) (models.CompressionProfile, bool) {
	for _, p := range profiles {
		if p.Recompression {
			return p, true
		}
	}
	return models.CompressionProfile{}, false
}

