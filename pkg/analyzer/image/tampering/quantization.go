package tampering

import (
	"gonum.org/v1/gonum/stat"

	"DeForge/pkg/raster"
)

// Quantization anomaly kinds
const (
	QuantHigh    = "HIGH_QUANTIZATION"
	QuantUniform = "UNIFORM_QUANTIZATION"
)

// quantOutcome describes the luminance quantization table
type quantOutcome struct {
	Present  bool
	Mean     float64
	Variance float64
	Anomaly  string
}

// quantization inspects the first JPEG quantization table. Very coarse or
// unusually flat tables come from re-saving through a low quality encoder.
func (d *Detector) quantization(img *raster.Image) quantOutcome {
	if len(img.Container.QuantTables) == 0 {
		return quantOutcome{}
	}

	table := img.Container.QuantTables[0]
	values := make([]float64, len(table))
	for i, q := range table {
		values[i] = float64(q)
	}
	out := quantOutcome{
		Present:  true,
		Mean:     stat.Mean(values, nil),
		Variance: stat.PopVariance(values, nil),
	}

	switch {
	case out.Mean > d.cfg.QuantHighMean:
		out.Anomaly = QuantHigh
	case out.Variance < d.cfg.QuantUniformVar && out.Mean > d.cfg.QuantUniformMinMean:
		out.Anomaly = QuantUniform
	}
	return out
}
