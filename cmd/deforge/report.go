package main

import (
	"fmt"
	"strings"

	"DeForge/pkg/models"
)

func displayReport(report *fileReport, verbose bool) {
	result := report.Result
	score := report.Risk

	fmt.Println("\n--- Analysis Results ---")

	// Basic info
	fmt.Printf("File: %s\n", report.File)
	fmt.Printf("Format: %s (%dx%d)\n", result.Format, result.Width, result.Height)

	// Authenticity verdict
	if result.IsAuthentic {
		printSuccess("Image appears authentic (%.2f)", result.AuthenticityScore)
	} else {
		printWarning("Authenticity could not be confirmed (%.2f)", result.AuthenticityScore)
	}

	for _, c := range result.Checks {
		switch c.State {
		case models.CheckTimeout, models.CheckFailed:
			printWarning("%s check %s: %s", c.Check, c.State, c.Error)
		case models.CheckSkipped:
			if verbose {
				printInfo("%s check skipped", c.Check)
			}
		}
	}
	if result.Partial {
		printWarning("Partial result: some checks did not complete")
	}

	if ai := result.AIDetection; ai != nil {
		if ai.IsAIGenerated {
			printAlert("AI-generated content suspected (%.2f)", ai.Confidence)
		} else if verbose {
			printInfo("AI generation confidence: %.2f", ai.Confidence)
		}
		if verbose && len(ai.DetectionFactors) > 0 {
			fmt.Printf("AI factors: %s\n", strings.Join(ai.DetectionFactors, "; "))
		}
	}

	if t := result.Tampering; t != nil {
		if t.IsTampered {
			printAlert("Tampering indicators: %s (confidence %.2f)", strings.Join(t.Indicators, ", "), t.Confidence)
		} else {
			printSuccess("No tampering indicators (confidence %.2f)", t.Confidence)
		}
		if verbose {
			fmt.Printf("ELA variance: %.1f, anomaly ratio: %.3f\n", t.ELAVariance, t.ELAAnomalyRatio)
			fmt.Printf("Clone check: %s (%d pairs)\n", t.CloneStatus, t.CloneRegionCount)
		}
	}

	if m := result.ReverseSearchMatches; m != nil {
		fmt.Printf("Reverse search matches: %d\n", *m)
	}

	// Compression profiles
	if len(result.CompressionProfiles) > 0 {
		fmt.Println("\nCompression profiles:")
		for i, p := range result.CompressionProfiles {
			fmt.Printf("%d. %s (%s confidence, size match: %t)\n", i+1, p.Message, p.Confidence, p.SizeMatch)
		}
	}

	// Findings
	if len(result.Findings) > 0 {
		fmt.Println("\nFindings:")
		for i, finding := range result.Findings {
			fmt.Printf("%d. [%s] %s (Confidence: %.2f)\n", i+1, finding.Severity, finding.Description, finding.Confidence)
			if verbose && finding.Details != "" {
				fmt.Printf("   Details: %s\n", finding.Details)
			}
		}
	}

	// Risk
	fmt.Println()
	switch score.Tier {
	case models.SeverityCritical, models.SeverityHigh:
		printAlert("%s risk (%.1f)", score.Tier, score.Value)
	case models.SeverityMedium:
		printWarning("%s risk (%.1f)", score.Tier, score.Value)
	default:
		printSuccess("%s risk (%.1f)", score.Tier, score.Value)
	}
	fmt.Printf("Image risk: raw %.1f, weighted %.1f\n", score.Image.Raw, score.Image.Weighted)
	fmt.Printf("Normalization: %s\n", score.Image.Normalization.Explanation)
	if score.LikelySource != "unknown" {
		fmt.Printf("Likely source: %s\n", score.LikelySource)
	}
	fmt.Printf("Recommendation: %s\n", score.Recommendation)

	printInfo("Analysis completed in %v", report.Duration)
	fmt.Println("-------------------------")
}

func printSummary(reports []*fileReport) {
	var low, medium, high int

	for _, r := range reports {
		switch r.Risk.Tier {
		case models.SeverityCritical, models.SeverityHigh:
			high++
		case models.SeverityMedium:
			medium++
		default:
			low++
		}
	}

	fmt.Println("\n=== Analysis Summary ===")
	fmt.Printf("Total images analyzed: %d\n", len(reports))
	fmt.Printf("%s Low risk: %d\n", successColor("[+]"), low)

	if medium > 0 {
		fmt.Printf("%s Medium risk: %d\n", warningColor("[!]"), medium)
	}

	if high > 0 {
		fmt.Printf("%s High or critical risk: %d\n", alertColor("[!!!]"), high)

		fmt.Println("\nImages needing review:")
		for _, r := range reports {
			if r.Risk.Tier == models.SeverityHigh || r.Risk.Tier == models.SeverityCritical {
				fmt.Printf("- %s (Risk: %.1f, authenticity: %.2f)\n", r.File, r.Risk.Value, r.Result.AuthenticityScore)
			}
		}
	}
}
