package metadata

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"DeForge/pkg/analyzer"
	"DeForge/pkg/config"
	"DeForge/pkg/logger"
	"DeForge/pkg/models"
	"DeForge/pkg/raster"
)

// Finding codes produced by the metadata analyzer
const (
	FindingNoMetadata      = "NO_METADATA"
	FindingEditingSoftware = "EDITING_SOFTWARE"
	FindingTimestamps      = "TIMESTAMP_INCONSISTENCY"
	FindingMissingCamera   = "MISSING_CAMERA_INFO"
	FindingUnreadable      = "METADATA_UNREADABLE"
)

// Analyzer inspects EXIF and container text metadata. It never fails on
// malformed metadata: problems become findings.
type Analyzer struct {
	analyzer.BaseAnalyzer
	cfg config.MetadataConfig
	log *logger.Logger
}

// NewAnalyzer creates a new metadata analyzer
func NewAnalyzer(cfg config.MetadataConfig, log *logger.Logger) *Analyzer {
	return &Analyzer{
		BaseAnalyzer: analyzer.NewBaseAnalyzer(
			analyzer.CheckMetadata,
			"Inspects EXIF camera, software and timestamp fields for signs of editing",
			raster.SupportedFormats,
		),
		cfg: cfg,
		log: log.Component(analyzer.CheckMetadata),
	}
}

// fields holds the EXIF values the analyzer looks at
type fields struct {
	make, model, software          string
	dateTime, original, digitized string
}

// Analyze inspects the container metadata of img
func (a *Analyzer) Analyze(ctx context.Context, img *raster.Image) (*models.MetadataAnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &models.MetadataAnalysisResult{
		HasEXIF:              img.Container.HasEXIF,
		TimestampsConsistent: true,
	}

	var f fields
	if img.Container.HasEXIF {
		var err error
		f, err = readEXIF(img)
		if err != nil {
			a.log.Debug("exif unreadable", "format", img.Format, "error", err)
			result.AddFinding(FindingUnreadable, models.SeverityLow,
				"Embedded EXIF block could not be parsed", err.Error())
		}
	}
	if f.software == "" && img.Container.Text != nil {
		f.software = img.Container.Text["Software"]
	}

	result.CameraMake = f.make
	result.CameraModel = f.model
	result.CameraInfoPresent = f.make != "" || f.model != ""

	if !img.Container.HasEXIF && a.expectsMetadata(img.Format) {
		result.AddFinding(FindingNoMetadata, models.SeverityMedium,
			"No EXIF metadata found", fmt.Sprintf("%s files normally carry EXIF; it may have been stripped", img.Format))
	}

	if signature := a.matchEditingSoftware(f.software); signature != "" {
		result.EditingSoftware = f.software
		result.AddFinding(FindingEditingSoftware, models.SeverityHigh,
			fmt.Sprintf("Image processed with editing software: %s", f.software),
			fmt.Sprintf("matched signature %q", signature))
	}

	result.Timestamps = timestamps(f)
	if distinct := distinctValues(result.Timestamps); distinct > 1 {
		result.TimestampsConsistent = false
		result.AddFinding(FindingTimestamps, models.SeverityMedium,
			"EXIF timestamps disagree", formatTimestamps(result.Timestamps))
	}

	if img.Container.HasEXIF && !result.CameraInfoPresent {
		result.AddFinding(FindingMissingCamera, models.SeverityLow,
			"EXIF present but camera make and model are missing", "")
	}

	a.log.Debug("metadata analysis finished",
		"has_exif", result.HasEXIF,
		"camera", result.CameraInfoPresent,
		"findings", len(result.Findings))

	return result, nil
}

// readEXIF decodes the EXIF block of img through goexif
func readEXIF(img *raster.Image) (fields, error) {
	payload := img.Encoded()
	if len(img.Container.EXIF) > 0 {
		payload = img.Container.EXIF
	}

	x, err := exif.Decode(bytes.NewReader(payload))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		if err == nil {
			err = fmt.Errorf("no exif data")
		}
		return fields{}, err
	}

	get := func(name exif.FieldName) string {
		tag, err := x.Get(name)
		if err != nil {
			return ""
		}
		s, err := tag.StringVal()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(s, "\x00"))
	}

	return fields{
		make:      get(exif.Make),
		model:     get(exif.Model),
		software:  get(exif.Software),
		dateTime:  get(exif.DateTime),
		original:  get(exif.DateTimeOriginal),
		digitized: get(exif.DateTimeDigitized),
	}, nil
}

func (a *Analyzer) expectsMetadata(format string) bool {
	for _, f := range a.cfg.ExpectedFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// matchEditingSoftware returns the first configured signature found in software
func (a *Analyzer) matchEditingSoftware(software string) string {
	if software == "" {
		return ""
	}
	lower := strings.ToLower(software)
	for _, sig := range a.cfg.EditingSoftware {
		if sig != "" && strings.Contains(lower, strings.ToLower(sig)) {
			return sig
		}
	}
	return ""
}

func timestamps(f fields) map[string]string {
	ts := make(map[string]string)
	if f.dateTime != "" {
		ts["DateTime"] = f.dateTime
	}
	if f.original != "" {
		ts["DateTimeOriginal"] = f.original
	}
	if f.digitized != "" {
		ts["DateTimeDigitized"] = f.digitized
	}
	if len(ts) == 0 {
		return nil
	}
	return ts
}

func distinctValues(m map[string]string) int {
	seen := make(map[string]bool, len(m))
	for _, v := range m {
		seen[v] = true
	}
	return len(seen)
}

func formatTimestamps(m map[string]string) string {
	var parts []string
	for _, key := range []string{"DateTime", "DateTimeOriginal", "DateTimeDigitized"} {
		if v, ok := m[key]; ok {
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, ", ")
}
