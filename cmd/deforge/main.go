package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"DeForge/pkg/analyzer"
	"DeForge/pkg/cache"
	"DeForge/pkg/config"
	"DeForge/pkg/filehandler"
	"DeForge/pkg/forensic"
	"DeForge/pkg/logger"
	"DeForge/pkg/models"
	"DeForge/pkg/reversesearch"
	"DeForge/pkg/risk"
)

var (
	// Color printers
	infoColor    = color.New(color.FgBlue).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	alertColor   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func printInfo(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", infoColor("[*]"), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", successColor("[+]"), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", warningColor("[!]"), fmt.Sprintf(format, args...))
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", errorColor("[-]"), fmt.Sprintf(format, args...))
}

func printAlert(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", alertColor("[!!!]"), fmt.Sprintf(format, args...))
}

// app carries everything needed to analyze one file
type app struct {
	analyzer *forensic.Analyzer
	scorer   *risk.Scorer
	opts     forensic.Options
	timeout  time.Duration
	maxSize  int64
	outdir   string
	verbose  bool
	jsonOut  bool
}

// fileReport is the per-file output, printed or saved as JSON
type fileReport struct {
	File     string                         `json:"file"`
	Result   *models.ForensicAnalysisResult `json:"result"`
	Risk     risk.Score                     `json:"risk"`
	Duration time.Duration                  `json:"-"`
}

func main() {
	// Parse command line arguments
	var (
		filePath    = flag.String("file", "", "Path to a single image for analysis")
		dirPath     = flag.String("dir", "", "Path to directory of images for analysis")
		urlPath     = flag.String("url", "", "URL to download and analyze")
		urlFilePath = flag.String("urlfile", "", "Path to file containing URLs to download and analyze")
		watchDir    = flag.String("watch", "", "Watch a directory and analyze images dropped into it")
		outputDir   = flag.String("outdir", "deforge_output", "Directory to store reports and downloaded files")
		configPath  = flag.String("config", "", "Path to a TOML, YAML or JSON config file")
		envFile     = flag.String("env", "", "Path to a .env file with DEFORGE_* overrides")
		skip        = flag.String("skip", "", "Comma-separated checks to skip (metadata, tampering, ai_detection, reverse_search)")
		timeout     = flag.Duration("timeout", 0, "Deadline for the analysis of one file (0 = detector timeouts only)")
		jsonOut     = flag.Bool("json", false, "Print reports as JSON")
		verbose     = flag.Bool("verbose", false, "Enable verbose output")
		listFormats = flag.Bool("listformats", false, "List all supported file formats")
		sequential  = flag.Bool("seq", true, "Use sequential processing (default: true)")
		workers     = flag.Int("workers", 0, "Detector worker pool size (0 = config value)")
	)

	flag.Parse()

	// Banner and version info
	if !*jsonOut {
		fmt.Println("DeForge v1.0.0")
		fmt.Println("Image forensic analysis: tampering, AI generation and recompression")
		fmt.Println("---------------------------------")
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		printError("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Analysis.Workers = *workers
	}

	level := cfg.Log.Level
	if *verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.Log.Format)

	store, err := cache.New(cfg.Cache)
	if err != nil {
		printError("Failed to open result cache: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	deps := forensic.Deps{Store: store, Logger: log}
	searcher, err := reversesearch.NewClient(cfg.ReverseSearch)
	switch {
	case err == nil:
		deps.Searcher = searcher
	case errors.Is(err, reversesearch.ErrDisabled):
		if *verbose {
			printInfo("Reverse image search is not configured, the check will not be performed")
		}
	default:
		printError("Failed to set up reverse search: %v", err)
		os.Exit(1)
	}

	a := &app{
		analyzer: forensic.NewAnalyzer(cfg, deps),
		scorer:   risk.NewScorer(cfg.Risk, cfg.Analysis.ReverseSearchMatchThreshold),
		opts:     forensic.DefaultOptions(),
		timeout:  *timeout,
		maxSize:  cfg.Analysis.MaxFileSize,
		outdir:   *outputDir,
		verbose:  *verbose,
		jsonOut:  *jsonOut,
	}

	// Handle list formats flag
	if *listFormats {
		listSupportedFormats(a.analyzer)
		return
	}

	if *skip != "" {
		if unknown := a.opts.Skip(splitList(*skip)...); len(unknown) > 0 {
			printError("Unknown checks in -skip: %s", strings.Join(unknown, ", "))
			os.Exit(1)
		}
	}

	// Ensure we have at least one input method
	if *filePath == "" && *dirPath == "" && *urlPath == "" && *urlFilePath == "" && *watchDir == "" {
		fmt.Println("Usage:")
		fmt.Println("  deforge -file <filepath>")
		fmt.Println("  deforge -dir <directory>")
		fmt.Println("  deforge -url <url>")
		fmt.Println("  deforge -urlfile <file-with-urls>")
		fmt.Println("  deforge -watch <directory>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		printError("Failed to create output directory: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	downloadDir := filepath.Join(*outputDir, "downloads")

	// Process URL file if specified
	if *urlFilePath != "" {
		printInfo("Processing URLs from file: %s", *urlFilePath)
		urls, err := filehandler.ReadLines(*urlFilePath)
		if err != nil {
			printError("Failed to read URL file: %v", err)
			os.Exit(1)
		}

		for _, url := range urls {
			if !filehandler.IsURL(url) {
				printWarning("Skipping %s: not an http(s) URL", url)
				continue
			}
			printInfo("Downloading from %s", url)
			path, err := filehandler.DownloadFromURL(ctx, nil, url, downloadDir, a.maxSize)
			if err != nil {
				printError("Failed to download from %s: %v", url, err)
				continue
			}
			printSuccess("Downloaded to %s", path)

			a.process(ctx, path)
		}
	}

	// Process single URL if specified
	if *urlPath != "" {
		printInfo("Downloading from URL: %s", *urlPath)
		path, err := filehandler.DownloadFromURL(ctx, nil, *urlPath, downloadDir, a.maxSize)
		if err != nil {
			printError("Failed to download from URL: %v", err)
			os.Exit(1)
		}
		printSuccess("Downloaded to %s", path)

		a.process(ctx, path)
	}

	// Process single file if specified
	if *filePath != "" {
		printInfo("Analyzing file: %s", *filePath)
		a.process(ctx, *filePath)
	}

	// Process directory if specified
	if *dirPath != "" {
		printInfo("Analyzing directory: %s", *dirPath)
		files, err := filehandler.GatherFiles(*dirPath)
		if err != nil {
			printError("Failed to read directory: %v", err)
			os.Exit(1)
		}

		printInfo("Found %d images to analyze", len(files))

		var reports []*fileReport
		if *sequential {
			for _, file := range files {
				if report := a.process(ctx, file); report != nil {
					reports = append(reports, report)
				}
			}
		} else {
			reports = a.processParallel(ctx, files, cfg.Analysis.Workers)
		}

		// Print summary
		printSummary(reports)
	}

	if *watchDir != "" {
		printInfo("Watching %s for new images (Ctrl+C to stop)", *watchDir)
		err := filehandler.Watch(ctx, *watchDir, filehandler.DefaultSettleDelay, func(path string) {
			printInfo("New image: %s", path)
			a.process(ctx, path)
		})
		if err != nil {
			printError("Watch failed: %v", err)
			os.Exit(1)
		}
	}
}

func listSupportedFormats(fa *forensic.Analyzer) {
	registry := fa.Registry()
	fmt.Println("Supported file formats:")
	for _, format := range registry.GetSupportedFormats() {
		detectors := registry.GetAnalyzersForFormat(format)
		names := make([]string, 0, len(detectors))
		for _, d := range detectors {
			names = append(names, d.Name())
		}
		fmt.Printf("- %s: %s\n", format, strings.Join(names, ", "))
	}
	fmt.Println("\nDetectors:")
	for _, name := range []string{analyzer.CheckMetadata, analyzer.CheckTampering, analyzer.CheckAIDetection} {
		if d, ok := registry.Get(name); ok {
			fmt.Printf("- %s: %s\n", d.Name(), d.Description())
		}
	}
}

// analyze runs the forensic engine and the risk scorer over one file
func (a *app) analyze(ctx context.Context, path string) (*fileReport, error) {
	if _, err := filehandler.DetectFileFormat(path); err != nil {
		return nil, err
	}

	data, err := filehandler.ReadFileBytes(path, a.maxSize)
	if err != nil {
		return nil, err
	}

	opts := a.opts
	if a.timeout > 0 {
		opts.Deadline = time.Now().Add(a.timeout)
	}

	start := time.Now()
	result, err := a.analyzer.Analyze(ctx, data, opts)
	if err != nil {
		return nil, err
	}

	return &fileReport{
		File:     path,
		Result:   result,
		Risk:     a.scorer.Score(result),
		Duration: time.Since(start),
	}, nil
}

// process analyzes, displays and saves one file. Errors are printed and nil is returned.
func (a *app) process(ctx context.Context, path string) *fileReport {
	report, err := a.analyze(ctx, path)
	if err != nil {
		printError("Analysis of %s failed: %v", path, err)
		return nil
	}
	a.emit(report)
	return report
}

// processParallel analyzes files on a pool of workers and displays the
// reports in file order once all are done
func (a *app) processParallel(ctx context.Context, files []string, workers int) []*fileReport {
	if workers <= 0 {
		workers = 1
	}

	reports := make([]*fileReport, len(files))
	errs := make([]error, len(files))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	var bar *progressBar
	if !a.jsonOut {
		bar = newProgressBar(os.Stdout, len(files))
	}

	for i, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			reports[i], errs[i] = a.analyze(ctx, file)
			if bar != nil {
				bar.Advance(file, errs[i])
			}
		}()
	}
	wg.Wait()
	if bar != nil {
		bar.Finish()
	}

	var done []*fileReport
	for i, report := range reports {
		if errs[i] != nil {
			printError("Analysis of %s failed: %v", files[i], errs[i])
			continue
		}
		a.emit(report)
		done = append(done, report)
	}
	return done
}

// emit prints report and saves it under the output directory
func (a *app) emit(report *fileReport) {
	if a.jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			printError("Failed to encode report: %v", err)
			return
		}
		fmt.Println(string(data))
	} else {
		displayReport(report, a.verbose)
	}

	if err := a.saveReport(report); err != nil {
		printWarning("Failed to save report: %v", err)
	}
}

func (a *app) saveReport(report *fileReport) error {
	dir := filepath.Join(a.outdir, "reports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(report.File), filepath.Ext(report.File))
	return os.WriteFile(filepath.Join(dir, name+"-"+report.Result.ContentHash[:12]+".json"), data, 0644)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
