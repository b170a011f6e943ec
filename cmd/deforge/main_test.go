package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DeForge/pkg/config"
	"DeForge/pkg/forensic"
	"DeForge/pkg/raster/rastertest"
	"DeForge/pkg/risk"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	return &app{
		analyzer: forensic.NewAnalyzer(cfg, forensic.Deps{}),
		scorer:   risk.NewScorer(cfg.Risk, cfg.Analysis.ReverseSearchMatchThreshold),
		opts:     forensic.DefaultOptions(),
		maxSize:  cfg.Analysis.MaxFileSize,
		outdir:   t.TempDir(),
		jsonOut:  true,
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"metadata", "ai_detection"}, splitList(" metadata, ,ai_detection,"))
	assert.Empty(t, splitList(""))
}

func TestAnalyzeAndSaveReport(t *testing.T) {
	a := newTestApp(t)
	path := filepath.Join(t.TempDir(), "upload.png")
	require.NoError(t, os.WriteFile(path, rastertest.EncodePNG(t, rastertest.Textured(64, 64, 1)), 0644))

	report, err := a.analyze(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, report.File)
	assert.Equal(t, "png", report.Result.Format)
	assert.NotEmpty(t, report.Risk.Image.Normalization.Explanation)

	require.NoError(t, a.saveReport(report))
	saved, err := filepath.Glob(filepath.Join(a.outdir, "reports", "upload-*.json"))
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestAnalyzeRejectsNonImages(t *testing.T) {
	a := newTestApp(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	_, err := a.analyze(context.Background(), path)
	assert.ErrorContains(t, err, "unsupported file format")
}

func TestProgressBar(t *testing.T) {
	var out bytes.Buffer
	bar := newProgressBar(&out, 2)

	bar.Advance("a.png", nil)
	bar.Advance("b.png", errors.New("boom"))
	bar.Finish()

	assert.Contains(t, out.String(), "100.0% 2/2 (1 failed)")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}
