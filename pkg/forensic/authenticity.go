package forensic

import (
	"math"

	"DeForge/pkg/analyzer"
	"DeForge/pkg/analyzer/image/metadata"
	"DeForge/pkg/models"
)

// neutralScore is the contribution of a check the caller skipped
const neutralScore = 1.0

// authenticity blends the component scores of r. Checks that timed out,
// failed or were not performed are left out and their weight is shared by
// the rest. With no completed check the image cannot be vouched for.
func (a *Analyzer) authenticity(r *models.ForensicAnalysisResult) (float64, bool) {
	w := a.cfg.Weights
	components := []struct {
		check  string
		weight float64
		score  func() float64
	}{
		{analyzer.CheckMetadata, w.Metadata, func() float64 { return a.metadataScore(r.Metadata) }},
		{analyzer.CheckAIDetection, w.AI, func() float64 { return flaggedScore(r.AIDetection.IsAIGenerated, r.AIDetection.Confidence) }},
		{analyzer.CheckTampering, w.Tampering, func() float64 { return flaggedScore(r.Tampering.IsTampered, r.Tampering.Confidence) }},
		{analyzer.CheckReverseSearch, w.ReverseSearch, func() float64 { return a.reverseSearchScore(*r.ReverseSearchMatches) }},
	}

	var weighted, total float64
	completed := 0
	for _, c := range components {
		switch r.StateOf(c.check) {
		case models.CheckCompleted:
			weighted += c.weight * c.score()
			total += c.weight
			completed++
		case models.CheckSkipped:
			weighted += c.weight * neutralScore
			total += c.weight
		}
	}
	if completed == 0 || total == 0 {
		return 0, false
	}

	score := weighted / total
	return score, score >= a.cfg.AuthenticityCutoff && !a.vetoed(r)
}

// vetoed reports a high-confidence AI or tampering verdict or a widely
// circulated image. Any one of them rules out authenticity whatever the score.
func (a *Analyzer) vetoed(r *models.ForensicAnalysisResult) bool {
	if r.AIDetection != nil && r.AIDetection.IsAIGenerated && r.AIDetection.Confidence > a.cfg.VetoConfidence {
		return true
	}
	if r.Tampering != nil && r.Tampering.IsTampered && r.Tampering.Confidence > a.cfg.VetoConfidence {
		return true
	}
	return r.ReverseSearchMatches != nil && *r.ReverseSearchMatches > a.cfg.ReverseSearchMatchThreshold
}

// metadataScore subtracts a penalty per metadata finding kind
func (a *Analyzer) metadataScore(m *models.MetadataAnalysisResult) float64 {
	p := a.cfg.MetadataPenalties
	penalties := map[string]float64{
		metadata.FindingNoMetadata:      p.NoMetadata,
		metadata.FindingEditingSoftware: p.EditingSoftware,
		metadata.FindingTimestamps:      p.Timestamps,
		metadata.FindingMissingCamera:   p.NoCamera,
	}

	score := 1.0
	for _, f := range m.Findings {
		if penalty, ok := penalties[f.Code]; ok {
			score -= penalty
			delete(penalties, f.Code) // once per kind
		}
	}
	return math.Max(0, score)
}

func flaggedScore(flagged bool, confidence float64) float64 {
	if !flagged {
		return 1
	}
	return math.Max(0, 1-confidence)
}

func (a *Analyzer) reverseSearchScore(matches int) float64 {
	if matches <= a.cfg.ReverseSearchMatchThreshold {
		return 1
	}
	if a.cfg.ReverseSearchMatchScale <= 0 {
		return 0
	}
	return math.Max(0, 1-float64(matches)/a.cfg.ReverseSearchMatchScale)
}
