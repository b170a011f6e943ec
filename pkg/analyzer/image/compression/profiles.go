// Package compression matches an image against the configured table of
// platform compression fingerprints.
package compression

import (
	"math"
	"sort"

	"DeForge/pkg/config"
	"DeForge/pkg/models"
)

// Classifier matches ELA variance and dimensions against a profile table
type Classifier struct {
	profiles      []config.ProfileConfig
	sizeTolerance float64
	varianceSlack float64
}

// NewClassifier creates a classifier over cfg.Profiles
func NewClassifier(cfg config.CompressionConfig) *Classifier {
	return &Classifier{
		profiles:      append([]config.ProfileConfig(nil), cfg.Profiles...),
		sizeTolerance: cfg.SizeTolerance,
		varianceSlack: cfg.VarianceSlack,
	}
}

// Classify returns every matching profile, best first. An empty slice means
// no known pipeline explains the image.
func (c *Classifier) Classify(variance float64, width, height int) []models.CompressionProfile {
	type ranked struct {
		profile  models.CompressionProfile
		distance float64
		index    int
	}

	var matches []ranked
	for i, p := range c.profiles {
		tier, sizeMatch, ok := c.match(p, variance, width, height)
		if !ok {
			continue
		}
		matches = append(matches, ranked{
			profile: models.CompressionProfile{
				ID:            p.ID,
				Message:       p.Message,
				Confidence:    tier,
				SizeMatch:     sizeMatch,
				VarianceMin:   p.VarianceMin,
				VarianceMax:   p.VarianceMax,
				TypicalWidth:  p.TypicalWidth,
				TypicalHeight: p.TypicalHeight,
				Recompression: p.Recompression,
			},
			distance: math.Abs(variance - (p.VarianceMin+p.VarianceMax)/2),
			index:    i,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if ra, rb := a.profile.Confidence.Rank(), b.profile.Confidence.Rank(); ra != rb {
			return ra < rb
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.index < b.index
	})

	out := make([]models.CompressionProfile, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.profile)
	}
	return out
}

// match grades one profile: HIGH needs variance and size, MEDIUM variance
// only, LOW size plus a variance just outside the range
func (c *Classifier) match(p config.ProfileConfig, variance float64, width, height int) (models.ConfidenceTier, bool, bool) {
	inRange := variance >= p.VarianceMin && variance <= p.VarianceMax
	sizeMatch := c.sizeMatches(p, width, height)

	switch {
	case inRange && sizeMatch:
		return models.TierHigh, true, true
	case inRange:
		return models.TierMedium, false, true
	case sizeMatch:
		slack := c.varianceSlack * (p.VarianceMax - p.VarianceMin)
		if variance >= p.VarianceMin-slack && variance <= p.VarianceMax+slack {
			return models.TierLow, true, true
		}
	}
	return "", sizeMatch, false
}

func (c *Classifier) sizeMatches(p config.ProfileConfig, width, height int) bool {
	if p.TypicalWidth <= 0 || p.TypicalHeight <= 0 {
		return false
	}
	tw, th := float64(p.TypicalWidth), float64(p.TypicalHeight)
	return math.Abs(float64(width)-tw) <= c.sizeTolerance*tw &&
		math.Abs(float64(height)-th) <= c.sizeTolerance*th
}
