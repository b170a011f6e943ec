package forensic

import (
	"context"
	"errors"
	"image/color"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DeForge/pkg/analyzer"
	"DeForge/pkg/analyzer/image/metadata"
	"DeForge/pkg/cache"
	"DeForge/pkg/config"
	"DeForge/pkg/models"
	"DeForge/pkg/raster"
	"DeForge/pkg/raster/rastertest"
	"DeForge/pkg/risk"
)

type fakeMetadata struct {
	analyzer.BaseAnalyzer
	calls  atomic.Int32
	result *models.MetadataAnalysisResult
}

func newFakeMetadata(codes ...string) *fakeMetadata {
	result := &models.MetadataAnalysisResult{TimestampsConsistent: true}
	for _, code := range codes {
		result.AddFinding(code, models.SeverityMedium, code, "")
	}
	return &fakeMetadata{
		BaseAnalyzer: analyzer.NewBaseAnalyzer(analyzer.CheckMetadata, "fake", raster.SupportedFormats),
		result:       result,
	}
}

func (f *fakeMetadata) Analyze(ctx context.Context, img *raster.Image) (*models.MetadataAnalysisResult, error) {
	f.calls.Add(1)
	return f.result, nil
}

type fakeTampering struct {
	analyzer.BaseAnalyzer
	detect func(ctx context.Context) (*models.TamperingDetectionResult, error)
}

func newFakeTampering(detect func(ctx context.Context) (*models.TamperingDetectionResult, error)) *fakeTampering {
	return &fakeTampering{
		BaseAnalyzer: analyzer.NewBaseAnalyzer(analyzer.CheckTampering, "fake", raster.SupportedFormats),
		detect:       detect,
	}
}

func (f *fakeTampering) Detect(ctx context.Context, img *raster.Image) (*models.TamperingDetectionResult, error) {
	return f.detect(ctx)
}

type fakeAI struct {
	analyzer.BaseAnalyzer
	detect func(ctx context.Context) (*models.AIDetectionResult, error)
}

func newFakeAI(detect func(ctx context.Context) (*models.AIDetectionResult, error)) *fakeAI {
	return &fakeAI{
		BaseAnalyzer: analyzer.NewBaseAnalyzer(analyzer.CheckAIDetection, "fake", raster.SupportedFormats),
		detect:       detect,
	}
}

func (f *fakeAI) Detect(ctx context.Context, img *raster.Image) (*models.AIDetectionResult, error) {
	return f.detect(ctx)
}

type fakeSearcher struct{ matches int }

func (f fakeSearcher) CountMatches(ctx context.Context, data []byte) (int, error) {
	return f.matches, nil
}

func tampered(flagged bool, confidence float64) func(context.Context) (*models.TamperingDetectionResult, error) {
	return func(context.Context) (*models.TamperingDetectionResult, error) {
		return &models.TamperingDetectionResult{IsTampered: flagged, Confidence: confidence}, nil
	}
}

func generated(flagged bool, confidence float64) func(context.Context) (*models.AIDetectionResult, error) {
	return func(context.Context) (*models.AIDetectionResult, error) {
		return &models.AIDetectionResult{IsAIGenerated: flagged, Confidence: confidence}, nil
	}
}

// blockUntil ignores its context and waits for release
func blockUntil(release <-chan struct{}) func(context.Context) (*models.AIDetectionResult, error) {
	return func(context.Context) (*models.AIDetectionResult, error) {
		<-release
		return &models.AIDetectionResult{}, nil
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Analysis.DetectorTimeout = config.Duration{Duration: 2 * time.Second}
	return cfg
}

func cleanDeps() Deps {
	return Deps{
		Metadata:  newFakeMetadata(),
		Tampering: newFakeTampering(tampered(false, 0.1)),
		AI:        newFakeAI(generated(false, 0.2)),
	}
}

func sampleImage(t *testing.T) []byte {
	return rastertest.EncodePNG(t, rastertest.Noise(64, 64, 7))
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	data := rastertest.EncodePNG(t, rastertest.Textured(96, 96, 3))

	first, err := NewAnalyzer(config.Default(), Deps{}).Analyze(context.Background(), data, DefaultOptions())
	require.NoError(t, err)
	second, err := NewAnalyzer(config.Default(), Deps{}).Analyze(context.Background(), data, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, first.Partial)
	assert.Equal(t, models.CheckNotApplicable, first.StateOf(analyzer.CheckReverseSearch))
	assert.Nil(t, first.ReverseSearchMatches)
	assert.Equal(t, "png", first.Format)
	assert.Equal(t, 96, first.Width)
}

func TestAnalyzeCleanImage(t *testing.T) {
	a := NewAnalyzer(testConfig(), cleanDeps())

	result, err := a.Analyze(context.Background(), sampleImage(t), DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.AuthenticityScore, 1e-9)
	assert.True(t, result.IsAuthentic)
	assert.Equal(t, []models.CheckStatus{
		{Check: analyzer.CheckMetadata, State: models.CheckCompleted},
		{Check: analyzer.CheckTampering, State: models.CheckCompleted},
		{Check: analyzer.CheckAIDetection, State: models.CheckCompleted},
		{Check: analyzer.CheckReverseSearch, State: models.CheckNotApplicable},
	}, result.Checks)
}

func TestAnalyzeServesCompleteResultsFromCache(t *testing.T) {
	store := cache.NewMemory(time.Hour, nil)
	deps := cleanDeps()
	meta := newFakeMetadata()
	deps.Metadata = meta
	deps.Store = store
	a := NewAnalyzer(testConfig(), deps)
	data := sampleImage(t)

	first, err := a.Analyze(context.Background(), data, DefaultOptions())
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), data, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, meta.calls.Load())
	assert.Equal(t, 1, store.Len())

	// Different options are a different cache entry
	opts := DefaultOptions()
	opts.AIDetection = false
	_, err = a.Analyze(context.Background(), data, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 2, meta.calls.Load())
}

func TestSkippedChecksAreNeutral(t *testing.T) {
	a := NewAnalyzer(testConfig(), cleanDeps())
	opts := DefaultOptions()
	assert.Empty(t, opts.Skip(analyzer.CheckTampering, analyzer.CheckAIDetection))

	result, err := a.Analyze(context.Background(), sampleImage(t), opts)
	require.NoError(t, err)

	assert.Equal(t, models.CheckSkipped, result.StateOf(analyzer.CheckTampering))
	assert.Equal(t, models.CheckSkipped, result.StateOf(analyzer.CheckAIDetection))
	assert.Nil(t, result.Tampering)
	assert.Nil(t, result.AIDetection)
	assert.Empty(t, result.CompressionProfiles)
	assert.False(t, result.Partial)
	assert.InDelta(t, 1.0, result.AuthenticityScore, 1e-9)
	assert.True(t, result.IsAuthentic)
}

func TestSkipReportsUnknownChecks(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, []string{"ocr"}, opts.Skip("ocr", analyzer.CheckMetadata))
	assert.False(t, opts.Metadata)
}

func TestTimedOutDetectorIsExcluded(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	cfg := testConfig()
	cfg.Analysis.DetectorTimeout = config.Duration{Duration: 50 * time.Millisecond}
	store := cache.NewMemory(time.Hour, nil)
	deps := cleanDeps()
	deps.Tampering = newFakeTampering(tampered(true, 0.5))
	deps.AI = newFakeAI(blockUntil(release))
	deps.Store = store
	a := NewAnalyzer(cfg, deps)

	began := time.Now()
	result, err := a.Analyze(context.Background(), sampleImage(t), DefaultOptions())
	require.NoError(t, err)
	assert.Less(t, time.Since(began), time.Second)

	assert.Equal(t, models.CheckTimeout, result.StateOf(analyzer.CheckAIDetection))
	assert.Nil(t, result.AIDetection)
	assert.True(t, result.Partial)
	// metadata 1.0 at 0.2, tampering 0.5 at 0.4; AI weight redistributed
	assert.InDelta(t, 0.4/0.6, result.AuthenticityScore, 1e-9)
	assert.False(t, result.IsAuthentic)
	assert.Zero(t, store.Len(), "partial results are not cached")
}

func TestOptionsDeadlineCapsDetectorTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	cfg := testConfig()
	cfg.Analysis.DetectorTimeout = config.Duration{Duration: time.Minute}
	deps := cleanDeps()
	deps.AI = newFakeAI(blockUntil(release))
	a := NewAnalyzer(cfg, deps)

	opts := DefaultOptions()
	opts.Deadline = time.Now().Add(50 * time.Millisecond)

	result, err := a.Analyze(context.Background(), sampleImage(t), opts)
	require.NoError(t, err)
	assert.Equal(t, models.CheckTimeout, result.StateOf(analyzer.CheckAIDetection))
	assert.Equal(t, models.CheckCompleted, result.StateOf(analyzer.CheckMetadata))
}

func TestFailedAndPanickingDetectorsAreContained(t *testing.T) {
	deps := cleanDeps()
	deps.Tampering = newFakeTampering(func(context.Context) (*models.TamperingDetectionResult, error) {
		panic("index out of range")
	})
	deps.AI = newFakeAI(func(context.Context) (*models.AIDetectionResult, error) {
		return nil, errors.New("model exploded")
	})
	a := NewAnalyzer(testConfig(), deps)

	result, err := a.Analyze(context.Background(), sampleImage(t), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, models.CheckFailed, result.StateOf(analyzer.CheckTampering))
	assert.Equal(t, models.CheckFailed, result.StateOf(analyzer.CheckAIDetection))
	assert.True(t, result.Partial)
	for _, c := range result.Checks {
		if c.State == models.CheckFailed {
			assert.Contains(t, c.Error, c.Check+" detector")
		}
	}
	// only metadata is known
	assert.InDelta(t, 1.0, result.AuthenticityScore, 1e-9)
}

func TestNothingKnownIsNotAuthentic(t *testing.T) {
	failing := func(context.Context) (*models.TamperingDetectionResult, error) {
		return nil, errors.New("boom")
	}
	deps := cleanDeps()
	deps.Tampering = newFakeTampering(failing)
	deps.AI = newFakeAI(func(context.Context) (*models.AIDetectionResult, error) { return nil, errors.New("boom") })
	a := NewAnalyzer(testConfig(), deps)

	opts := DefaultOptions()
	opts.Skip(analyzer.CheckMetadata)

	result, err := a.Analyze(context.Background(), sampleImage(t), opts)
	require.NoError(t, err)
	assert.Zero(t, result.AuthenticityScore)
	assert.False(t, result.IsAuthentic)
}

func TestDecodeErrorIsFatal(t *testing.T) {
	a := NewAnalyzer(testConfig(), cleanDeps())

	result, err := a.Analyze(context.Background(), []byte("definitely not an image"), DefaultOptions())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, raster.ErrDecode)
}

func TestCallerCancellationAbortsAnalysis(t *testing.T) {
	a := NewAnalyzer(testConfig(), cleanDeps())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, sampleImage(t), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHardVetoes(t *testing.T) {
	tests := []struct {
		name      string
		deps      func(*Deps)
		score     float64
		authentic bool
	}{
		{
			name:      "widely circulated",
			deps:      func(d *Deps) { d.Searcher = fakeSearcher{matches: 10} },
			score:     (0.2 + 0.3 + 0.4 + 0.1*0.5) / 1.0,
			authentic: false,
		},
		{
			name:      "few matches",
			deps:      func(d *Deps) { d.Searcher = fakeSearcher{matches: 3} },
			score:     1.0,
			authentic: true,
		},
		{
			name:      "confident ai verdict",
			deps:      func(d *Deps) { d.AI = newFakeAI(generated(true, 0.75)) },
			score:     (0.2 + 0.3*0.25 + 0.4) / 0.9,
			authentic: false,
		},
		{
			name:      "weak ai verdict",
			deps:      func(d *Deps) { d.AI = newFakeAI(generated(true, 0.65)) },
			score:     (0.2 + 0.3*0.35 + 0.4) / 0.9,
			authentic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := cleanDeps()
			tt.deps(&deps)
			result, err := NewAnalyzer(testConfig(), deps).Analyze(context.Background(), sampleImage(t), DefaultOptions())
			require.NoError(t, err)
			assert.InDelta(t, tt.score, result.AuthenticityScore, 1e-9)
			assert.Equal(t, tt.authentic, result.IsAuthentic)
		})
	}
}

func TestReverseSearchMatchesAreReported(t *testing.T) {
	deps := cleanDeps()
	deps.Searcher = fakeSearcher{matches: 3}

	result, err := NewAnalyzer(testConfig(), deps).Analyze(context.Background(), sampleImage(t), DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, result.ReverseSearchMatches)
	assert.Equal(t, 3, *result.ReverseSearchMatches)
	assert.Equal(t, models.CheckCompleted, result.StateOf(analyzer.CheckReverseSearch))
}

func TestMetadataPenalties(t *testing.T) {
	a := NewAnalyzer(testConfig(), cleanDeps())

	tests := []struct {
		codes []string
		want  float64
	}{
		{nil, 1.0},
		{[]string{metadata.FindingNoMetadata}, 0.6},
		{[]string{metadata.FindingNoMetadata, metadata.FindingEditingSoftware}, 0.3},
		{[]string{metadata.FindingTimestamps, metadata.FindingMissingCamera, metadata.FindingUnreadable}, 0.7},
		{[]string{metadata.FindingNoMetadata, metadata.FindingNoMetadata}, 0.6},
		{[]string{metadata.FindingNoMetadata, metadata.FindingEditingSoftware, metadata.FindingTimestamps, metadata.FindingMissingCamera}, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, a.metadataScore(newFakeMetadata(tt.codes...).result), 1e-9, "%v", tt.codes)
	}
}

func TestReverseSearchScore(t *testing.T) {
	a := NewAnalyzer(testConfig(), cleanDeps())

	assert.Equal(t, 1.0, a.reverseSearchScore(0))
	assert.Equal(t, 1.0, a.reverseSearchScore(5))
	assert.InDelta(t, 0.7, a.reverseSearchScore(6), 1e-9)
	assert.Equal(t, 0.0, a.reverseSearchScore(40))
}

func TestCompressionProfileFromELAVariance(t *testing.T) {
	deps := cleanDeps()
	deps.Tampering = newFakeTampering(func(context.Context) (*models.TamperingDetectionResult, error) {
		return &models.TamperingDetectionResult{ELAVariance: 30}, nil
	})
	data := rastertest.EncodePNG(t, rastertest.Flat(1280, 960, color.RGBA{R: 90, G: 120, B: 150, A: 255}))

	result, err := NewAnalyzer(testConfig(), deps).Analyze(context.Background(), data, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, result.CompressionProfiles, 1)
	assert.Equal(t, "whatsapp_low", result.CompressionProfiles[0].ID)
	assert.Equal(t, models.TierHigh, result.CompressionProfiles[0].Confidence)
}

// platformShare encodes a 1280×960 photo the way a messenger re-saves it
func platformShare(t *testing.T, cloned bool) []byte {
	src := rastertest.Natural(1280, 960, 2, 41)
	if cloned {
		rng := rand.New(rand.NewSource(42))
		for y := 64; y < 320; y++ {
			for x := 64; x < 320; x++ {
				i := src.PixOffset(x, y)
				g := uint8(min(255, max(0, int(src.Pix[i])+rng.Intn(41)-20)))
				src.Pix[i], src.Pix[i+1], src.Pix[i+2] = g, g, g
			}
		}
		rastertest.CopyBlock(src, 64, 64, 768, 512, 256)
	}
	return rastertest.EncodeJPEG(t, src, 70)
}

func TestRecompressedPhotoIsNormalized(t *testing.T) {
	cfg := config.Default()
	scorer := risk.NewScorer(cfg.Risk, cfg.Analysis.ReverseSearchMatchThreshold)

	result, err := NewAnalyzer(cfg, Deps{}).Analyze(context.Background(), platformShare(t, false), DefaultOptions())
	require.NoError(t, err)
	require.False(t, result.Partial)
	require.NotNil(t, result.Tampering)

	for _, hard := range cfg.Risk.HardIndicators {
		assert.False(t, result.Tampering.HasIndicator(hard), hard)
	}
	require.NotEmpty(t, result.CompressionProfiles)
	assert.Equal(t, "whatsapp_low", result.CompressionProfiles[0].ID)
	assert.Equal(t, models.TierHigh, result.CompressionProfiles[0].Confidence)

	score := scorer.Score(result)
	image := score.Image
	assert.True(t, image.Normalization.Applied, image.Normalization.Explanation)
	assert.Equal(t, "whatsapp_low", image.Normalization.Profile)
	assert.InDelta(t, cfg.Risk.Reductions.High, image.Normalization.Reduction, 1e-9)
	assert.InDelta(t, 0.35*image.Weighted, image.Contribution, 1e-9)
	assert.Contains(t, image.Normalization.Explanation, "35% of original")
	assert.Equal(t, "whatsapp_low", score.LikelySource)
}

func TestClonedRecompressedPhotoIsNotNormalized(t *testing.T) {
	cfg := config.Default()
	scorer := risk.NewScorer(cfg.Risk, cfg.Analysis.ReverseSearchMatchThreshold)

	result, err := NewAnalyzer(cfg, Deps{}).Analyze(context.Background(), platformShare(t, true), DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, result.Tampering)

	assert.True(t, result.Tampering.HasIndicator(models.IndicatorCloneDetected))
	assert.True(t, result.Tampering.IsTampered)
	require.NotEmpty(t, result.CompressionProfiles)
	assert.Equal(t, "whatsapp_low", result.CompressionProfiles[0].ID)

	image := scorer.Score(result).Image
	assert.False(t, image.Normalization.Applied)
	assert.Equal(t, image.Weighted, image.Contribution)
	assert.Contains(t, image.Normalization.Explanation, "hard tampering indicators are present")
	assert.Contains(t, image.Normalization.Explanation, models.IndicatorCloneDetected)
	assert.Contains(t, image.Normalization.Explanation, "WhatsApp/Low Quality Compression")
}

func TestUnsupportedFormatIsNotApplicable(t *testing.T) {
	deps := cleanDeps()
	deps.AI = &fakeAI{
		BaseAnalyzer: analyzer.NewBaseAnalyzer(analyzer.CheckAIDetection, "jpeg only", []string{"jpeg"}),
		detect:       generated(true, 1),
	}
	a := NewAnalyzer(testConfig(), deps)

	result, err := a.Analyze(context.Background(), sampleImage(t), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, models.CheckNotApplicable, result.StateOf(analyzer.CheckAIDetection))
	assert.False(t, result.Partial)
	assert.True(t, result.IsAuthentic)
	assert.Equal(t, []string{"bmp", "gif", "jpeg", "png", "tiff", "webp"}, a.Registry().GetSupportedFormats())
}
