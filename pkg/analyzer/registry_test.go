package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDetector struct {
	BaseAnalyzer
}

func newFake(name string, formats ...string) *fakeDetector {
	return &fakeDetector{NewBaseAnalyzer(name, name+" detector", formats)}
}

func TestBaseAnalyzer(t *testing.T) {
	d := newFake(CheckTampering, "jpeg", "png")

	assert.Equal(t, CheckTampering, d.Name())
	assert.Equal(t, "tampering detector", d.Description())
	assert.True(t, d.CanAnalyze("jpeg"))
	assert.False(t, d.CanAnalyze("gif"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	meta := newFake(CheckMetadata, "jpeg", "tiff")
	tamper := newFake(CheckTampering, "jpeg", "png")
	r.Register(meta)
	r.Register(tamper)

	assert.Equal(t, []string{"jpeg", "png", "tiff"}, r.GetSupportedFormats())
	assert.Len(t, r.GetAnalyzersForFormat("jpeg"), 2)
	assert.Len(t, r.GetAnalyzersForFormat("gif"), 0)

	got, ok := r.Get(CheckMetadata)
	assert.True(t, ok)
	assert.Same(t, meta, got)
}

func TestRegistryReplacesByName(t *testing.T) {
	r := NewRegistry()
	r.Register(newFake(CheckAIDetection, "jpeg", "webp"))
	replacement := newFake(CheckAIDetection, "png")
	r.Register(replacement)

	assert.Empty(t, r.GetAnalyzersForFormat("jpeg"))
	assert.Equal(t, []string{"png"}, r.GetSupportedFormats())
	got, _ := r.Get(CheckAIDetection)
	assert.Same(t, replacement, got)
}
