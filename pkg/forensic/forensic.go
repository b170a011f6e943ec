// Package forensic orchestrates the detectors over one image: it decodes the
// bytes once, fans the enabled checks out to a bounded worker pool, joins
// them, classifies the compression profile and blends the authenticity score.
// Detector failures and timeouts are recorded per check and never fail the
// analysis; only decode errors and caller cancellation do.
package forensic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"DeForge/pkg/analyzer"
	"DeForge/pkg/analyzer/image/aigen"
	"DeForge/pkg/analyzer/image/compression"
	"DeForge/pkg/analyzer/image/metadata"
	"DeForge/pkg/analyzer/image/tampering"
	"DeForge/pkg/cache"
	"DeForge/pkg/config"
	"DeForge/pkg/logger"
	"DeForge/pkg/models"
	"DeForge/pkg/raster"
	"DeForge/pkg/reversesearch"
)

// MetadataAnalyzer inspects container metadata
type MetadataAnalyzer interface {
	analyzer.Detector
	Analyze(ctx context.Context, img *raster.Image) (*models.MetadataAnalysisResult, error)
}

// TamperingDetector runs the pixel-level manipulation checks
type TamperingDetector interface {
	analyzer.Detector
	Detect(ctx context.Context, img *raster.Image) (*models.TamperingDetectionResult, error)
}

// AIDetector scores synthetic-image likelihood
type AIDetector interface {
	analyzer.Detector
	Detect(ctx context.Context, img *raster.Image) (*models.AIDetectionResult, error)
}

// Options selects the checks of one analysis
type Options struct {
	Metadata      bool
	Tampering     bool
	AIDetection   bool
	ReverseSearch bool

	// Deadline caps every detector timeout when set
	Deadline time.Time
}

// DefaultOptions enables every check
func DefaultOptions() Options {
	return Options{Metadata: true, Tampering: true, AIDetection: true, ReverseSearch: true}
}

// Skip disables the named checks. Unknown names are returned.
func (o *Options) Skip(checks ...string) []string {
	var unknown []string
	for _, check := range checks {
		switch check {
		case analyzer.CheckMetadata:
			o.Metadata = false
		case analyzer.CheckTampering:
			o.Tampering = false
		case analyzer.CheckAIDetection:
			o.AIDetection = false
		case analyzer.CheckReverseSearch:
			o.ReverseSearch = false
		default:
			unknown = append(unknown, check)
		}
	}
	return unknown
}

func (o Options) enabled(check string) bool {
	switch check {
	case analyzer.CheckMetadata:
		return o.Metadata
	case analyzer.CheckTampering:
		return o.Tampering
	case analyzer.CheckAIDetection:
		return o.AIDetection
	case analyzer.CheckReverseSearch:
		return o.ReverseSearch
	}
	return false
}

// Deps are the collaborators of an Analyzer. Nil fields get the standard implementation.
type Deps struct {
	Codec     raster.Codec
	Metadata  MetadataAnalyzer
	Tampering TamperingDetector
	AI        AIDetector
	Searcher  reversesearch.Searcher // nil: reverse search is not performed
	Store     cache.Store
	Logger    *logger.Logger
}

// Analyzer is the forensic orchestrator
type Analyzer struct {
	cfg        config.AnalysisConfig
	codec      raster.Codec
	metadata   MetadataAnalyzer
	tampering  TamperingDetector
	ai         AIDetector
	searcher   reversesearch.Searcher
	store      cache.Store
	classifier *compression.Classifier
	registry   *analyzer.Registry
	log        *logger.Logger

	// fingerprint ties cached results to the thresholds that produced them
	fingerprint string
}

// NewAnalyzer wires an orchestrator from cfg and deps
func NewAnalyzer(cfg *config.Config, deps Deps) *Analyzer {
	log := deps.Logger
	if log == nil {
		log = logger.NopLogger()
	}
	a := &Analyzer{
		cfg:        cfg.Analysis,
		codec:      deps.Codec,
		metadata:   deps.Metadata,
		tampering:  deps.Tampering,
		ai:         deps.AI,
		searcher:   deps.Searcher,
		store:      deps.Store,
		classifier: compression.NewClassifier(cfg.Compression),
		registry:   analyzer.NewRegistry(),
		log:        log.Component("forensic"),
	}
	if a.codec == nil {
		a.codec = raster.NewCodec()
	}
	if a.metadata == nil {
		a.metadata = metadata.NewAnalyzer(cfg.Metadata, log)
	}
	if a.tampering == nil {
		a.tampering = tampering.NewDetector(cfg.Tampering, a.codec, log)
	}
	if a.ai == nil {
		a.ai = aigen.NewDetector(cfg.AI, log)
	}
	if a.store == nil {
		a.store = cache.Nop{}
	}
	if a.cfg.Workers <= 0 {
		a.cfg.Workers = 1
	}

	a.registry.Register(a.metadata)
	a.registry.Register(a.tampering)
	a.registry.Register(a.ai)
	a.fingerprint = fingerprint(cfg)

	return a
}

// Registry returns the detectors known to the orchestrator
func (a *Analyzer) Registry() *analyzer.Registry {
	return a.registry
}

// checkOrder fixes the order of Checks in every result
var checkOrder = []string{
	analyzer.CheckMetadata,
	analyzer.CheckTampering,
	analyzer.CheckAIDetection,
	analyzer.CheckReverseSearch,
}

// task is one detector run scheduled on the worker pool
type task struct {
	check string
	run   func(ctx context.Context) error
}

// Analyze runs the enabled checks over data and aggregates their results
func (a *Analyzer) Analyze(ctx context.Context, data []byte, opts Options) (*models.ForensicAnalysisResult, error) {
	log := a.log.With("analysis_id", uuid.NewString())
	start := time.Now()

	hash := cache.ContentHash(data)
	key := cache.Key(hash, a.signature(opts))

	if cached, ok, err := a.store.Get(ctx, key); err != nil {
		log.Warn("cache lookup failed", "error", err)
	} else if ok {
		log.Info("analysis served from cache", "content_hash", hash)
		return cached, nil
	}

	img, err := a.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	result := &models.ForensicAnalysisResult{
		ContentHash:         hash,
		Format:              img.Format,
		Width:               img.Width,
		Height:              img.Height,
		CompressionProfiles: []models.CompressionProfile{},
		Checks:              make([]models.CheckStatus, 0, len(checkOrder)),
		Findings:            []models.Finding{},
	}

	applicable := make(map[string]bool)
	for _, d := range a.registry.GetAnalyzersForFormat(img.Format) {
		applicable[d.Name()] = true
	}
	applicable[analyzer.CheckReverseSearch] = a.searcher != nil

	var matches int
	runners := map[string]func(ctx context.Context) error{
		analyzer.CheckMetadata: func(ctx context.Context) (err error) {
			result.Metadata, err = runDetector(ctx, analyzer.CheckMetadata, img, a.metadata.Analyze)
			if err == nil && result.Metadata == nil {
				err = emptyResult(analyzer.CheckMetadata)
			}
			return err
		},
		analyzer.CheckTampering: func(ctx context.Context) (err error) {
			result.Tampering, err = runDetector(ctx, analyzer.CheckTampering, img, a.tampering.Detect)
			if err == nil && result.Tampering == nil {
				err = emptyResult(analyzer.CheckTampering)
			}
			return err
		},
		analyzer.CheckAIDetection: func(ctx context.Context) (err error) {
			result.AIDetection, err = runDetector(ctx, analyzer.CheckAIDetection, img, a.ai.Detect)
			if err == nil && result.AIDetection == nil {
				err = emptyResult(analyzer.CheckAIDetection)
			}
			return err
		},
		analyzer.CheckReverseSearch: func(ctx context.Context) (err error) {
			matches, err = runDetector(ctx, analyzer.CheckReverseSearch, img, func(ctx context.Context, _ *raster.Image) (int, error) {
				return a.searcher.CountMatches(ctx, data)
			})
			return err
		},
	}

	states := make(map[string]models.CheckStatus, len(checkOrder))
	var tasks []task
	var skipped []string
	for _, check := range checkOrder {
		switch {
		case !opts.enabled(check):
			states[check] = models.CheckStatus{Check: check, State: models.CheckSkipped}
			skipped = append(skipped, check)
		case !applicable[check]:
			states[check] = models.CheckStatus{Check: check, State: models.CheckNotApplicable}
		default:
			tasks = append(tasks, task{check: check, run: runners[check]})
		}
	}

	errs := a.fanOut(ctx, opts, tasks, log)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	for i, t := range tasks {
		status := models.CheckStatus{Check: t.check, State: models.CheckCompleted}
		if err := errs[i]; err != nil {
			status.State = models.CheckFailed
			if errors.Is(err, ErrDetectorTimeout) {
				status.State = models.CheckTimeout
			}
			status.Error = err.Error()
			log.Warn("detector did not complete", "check", t.check, "state", status.State, "error", err)
		}
		states[t.check] = status
	}
	for _, check := range checkOrder {
		status := states[check]
		result.Checks = append(result.Checks, status)
		if status.State.Unknown() {
			result.Partial = true
		}
	}
	if result.StateOf(analyzer.CheckReverseSearch) == models.CheckCompleted {
		result.ReverseSearchMatches = &matches
	}

	if len(skipped) > 0 {
		log.Warn("checks skipped", "skipped", skipped)
	}

	if result.Metadata != nil {
		result.Findings = append(result.Findings, result.Metadata.Findings...)
	}
	if result.Tampering != nil {
		result.Findings = append(result.Findings, result.Tampering.Findings...)
		result.CompressionProfiles = a.classifier.Classify(result.Tampering.ELAVariance, img.Width, img.Height)
	}

	result.AuthenticityScore, result.IsAuthentic = a.authenticity(result)

	log.Info("analysis completed",
		"content_hash", hash,
		"format", result.Format,
		"authenticity", result.AuthenticityScore,
		"authentic", result.IsAuthentic,
		"partial", result.Partial,
		"duration", time.Since(start))

	if !result.Partial {
		if err := a.store.Set(ctx, key, result); err != nil {
			log.Warn("cache write failed", "error", err)
		}
	}

	return result, nil
}

// fanOut runs tasks on at most Workers goroutines at a time, each under its
// own timeout, and returns their errors in task order
func (a *Analyzer) fanOut(ctx context.Context, opts Options, tasks []task, log *logger.Logger) []error {
	runCtx := ctx
	if !opts.Deadline.IsZero() {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, opts.Deadline)
		defer cancel()
	}

	sem := make(chan struct{}, a.cfg.Workers)
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup

	for i, t := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				errs[i] = contextError(t.check, runCtx.Err(), runCtx.Err())
				return
			}

			taskCtx := runCtx
			if timeout := a.cfg.DetectorTimeout.Duration; timeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(runCtx, timeout)
				defer cancel()
			}

			began := time.Now()
			errs[i] = t.run(taskCtx)
			log.Debug("detector finished", "check", t.check, "duration", time.Since(began), "ok", errs[i] == nil)
		}()
	}
	wg.Wait()

	return errs
}

// runDetector calls fn and converts its failure modes into a *DetectorError.
// It returns as soon as ctx is done even if fn ignores cancellation.
func runDetector[T any](ctx context.Context, check string, img *raster.Image, fn func(context.Context, *raster.Image) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", ErrDetectorCompute, r)}
			}
		}()
		v, err := fn(ctx, img)
		done <- outcome{value: v, err: err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err == nil {
			return o.value, nil
		}
		if errors.Is(o.err, ErrDetectorCompute) {
			return zero, &DetectorError{Check: check, Err: o.err}
		}
		return zero, contextError(check, ctx.Err(), o.err)
	case <-ctx.Done():
		return zero, contextError(check, ctx.Err(), ctx.Err())
	}
}

func emptyResult(check string) error {
	return &DetectorError{Check: check, Err: fmt.Errorf("%w: no result", ErrDetectorCompute)}
}

// contextError classifies err given the state of the detector context
func contextError(check string, ctxErr, err error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &DetectorError{Check: check, Err: fmt.Errorf("%w: %w", ErrDetectorTimeout, err)}
	}
	return &DetectorError{Check: check, Err: fmt.Errorf("%w: %w", ErrDetectorCompute, err)}
}

// signature identifies the options and thresholds a result was computed with
func (a *Analyzer) signature(opts Options) string {
	return fmt.Sprintf("metadata=%t,tampering=%t,ai=%t,reverse=%t|%s",
		opts.Metadata, opts.Tampering, opts.AIDetection, opts.ReverseSearch && a.searcher != nil, a.fingerprint)
}

func fingerprint(cfg *config.Config) string {
	data, err := json.Marshal(struct {
		Analysis    config.AnalysisConfig
		Tampering   config.TamperingConfig
		AI          config.AIConfig
		Metadata    config.MetadataConfig
		Compression config.CompressionConfig
	}{cfg.Analysis, cfg.Tampering, cfg.AI, cfg.Metadata, cfg.Compression})
	if err != nil {
		return ""
	}
	return string(data)
}
