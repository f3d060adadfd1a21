package faults

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
)

const (
	bannerWidth        = 80
	maxEvidenceSamples = 5
)

// Report aggregates one classification run for rendering. The rendered
// layout mirrors the historical fault detection reports so existing runs
// stay diffable.
type Report struct {
	Experiment   string
	GeneratedAt  time.Time
	TestFolder   string
	TotalRecords int
	Skipped      int
	Signatures   []Signature
	Results      []MatchResult
}

// NewReport pairs the signature table with its classification results.
// Signatures and results must be index-aligned, as produced by Classify.
func NewReport(folder string, sigs []Signature, results []MatchResult, total, skipped int) *Report {
	now := time.Now()
	return &Report{
		Experiment:   "trainticket_evomaster_" + now.Format("20060102150405"),
		GeneratedAt:  now,
		TestFolder:   folder,
		TotalRecords: total,
		Skipped:      skipped,
		Signatures:   sigs,
		Results:      results,
	}
}

// DefaultReportName derives the timestamped report file name used when no
// output path was given, so prior runs are never overwritten.
func DefaultReportName(t time.Time) string {
	return "fault_detection_report_" + t.Format("20060102_150405") + ".log"
}

// DetectedCount returns how many signatures were detected.
func (rp *Report) DetectedCount() int {
	n := 0
	for _, r := range rp.Results {
		if r.Detected {
			n++
		}
	}
	return n
}

func (rp *Report) detectionRate() float64 {
	if len(rp.Results) == 0 {
		return 0
	}
	return float64(rp.DetectedCount()) / float64(len(rp.Results)) * 100
}

func progressBar(pct float64, width int) string {
	filled := int(float64(width) * pct / 100)
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + fmt.Sprintf("] %.1f%%", pct)
}

func banner(b *strings.Builder, title string) {
	b.WriteString(strings.Repeat("=", bannerWidth) + "\n")
	if title != "" {
		b.WriteString(title + "\n")
		b.WriteString(strings.Repeat("=", bannerWidth) + "\n")
	}
}

// Render produces the full plain-text report.
func (rp *Report) Render() string {

	total := len(rp.Results)
	detected := rp.DetectedCount()
	undetected := total - detected
	rate := rp.detectionRate()

	var b strings.Builder

	banner(&b, "                    FAULT DETECTION SUMMARY REPORT")
	b.WriteString("\n")
	fmt.Fprintf(&b, "Experiment:         %s\n", rp.Experiment)
	fmt.Fprintf(&b, "Generated:          %s\n", rp.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Test Folder:        %s\n", rp.TestFolder)
	fmt.Fprintf(&b, "Total Test Records: %d\n", rp.TotalRecords)
	if rp.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped Records:    %d (malformed, see warnings)\n", rp.Skipped)
	}
	b.WriteString("\n")

	banner(&b, "FAULT COVERAGE SUMMARY")
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total Injected Faults:    %d\n", total)
	fmt.Fprintf(&b, "Detected Faults:          %d (%.1f%%)\n", detected, rate)
	fmt.Fprintf(&b, "Undetected Faults:        %d (%.1f%%)\n", undetected, 100-rate)
	b.WriteString("\n")
	b.WriteString("Detection Progress:\n")
	b.WriteString(progressBar(rate, 50) + "\n")
	b.WriteString("\n")

	banner(&b, fmt.Sprintf("DETECTED FAULTS (%d)", detected))
	b.WriteString("\n")

	n := 0
	for i, res := range rp.Results {
		if !res.Detected {
			continue
		}
		n++
		sig := rp.Signatures[i]

		fmt.Fprintf(&b, "%d. %s\n", n, sig.ID)
		fmt.Fprintf(&b, "   Service:       %s\n", sig.Service)
		fmt.Fprintf(&b, "   API:           %s\n", joinEndpoints(sig.Endpoints))
		fmt.Fprintf(&b, "   Description:   %s\n", sig.Description)
		fmt.Fprintf(&b, "   Detections:    %d time(s)\n", len(res.Evidence))
		b.WriteString("\n")

		for j, rec := range res.Evidence {
			if j == maxEvidenceSamples {
				fmt.Fprintf(&b, "   ... and %d more detection(s)\n\n", len(res.Evidence)-maxEvidenceSamples)
				break
			}
			fmt.Fprintf(&b, "   Detection #%d:\n", j+1)
			fmt.Fprintf(&b, "     Request:     %s %s\n", rec.Method, rec.Path)
			fmt.Fprintf(&b, "     Status:      %d\n", rec.StatusCode)
			if name := rec.FaultName(); name != "" {
				fmt.Fprintf(&b, "     Fault Name:  %s\n", name)
			}
			fmt.Fprintf(&b, "     Source:      %s\n", rec.Source)
			b.WriteString("\n")
		}

		b.WriteString(strings.Repeat("-", bannerWidth) + "\n\n")
	}

	if detected == 0 {
		b.WriteString("No faults were detected in this test run.\n\n")
	}

	banner(&b, fmt.Sprintf("UNDETECTED FAULTS (%d)", undetected))
	b.WriteString("\n")

	n = 0
	for i, res := range rp.Results {
		if res.Detected {
			continue
		}
		n++
		sig := rp.Signatures[i]

		fmt.Fprintf(&b, "%d. %s\n", n, sig.ID)
		fmt.Fprintf(&b, "   Service:       %s\n", sig.Service)
		fmt.Fprintf(&b, "   API:           %s\n", joinEndpoints(sig.Endpoints))
		fmt.Fprintf(&b, "   Description:   %s\n", sig.Description)
		b.WriteString("   Status:        NOT DETECTED\n")
		b.WriteString("\n")
		b.WriteString("   Trigger Conditions:\n")
		b.WriteString("     - Check if the API endpoint was tested\n")
		b.WriteString("     - Verify authentication is working for admin endpoints\n")
		b.WriteString("     - Consider increasing test duration\n")
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", bannerWidth) + "\n\n")
	}

	if undetected == 0 {
		b.WriteString("All injected faults were detected! Excellent coverage.\n\n")
	}

	banner(&b, "DETECTION STATISTICS")
	b.WriteString("\n")
	fmt.Fprintf(&b, "%-45s %-15s %-10s\n", "Fault Name", "Status", "Count")
	b.WriteString(strings.Repeat("-", 70) + "\n")

	totalEvidence := 0
	for _, res := range rp.Results {
		status := "NOT DETECTED"
		if res.Detected {
			status = "DETECTED"
		}
		totalEvidence += len(res.Evidence)
		fmt.Fprintf(&b, "%-45s %-15s %-10d\n", res.SignatureID, status, len(res.Evidence))
	}

	b.WriteString(strings.Repeat("-", 70) + "\n")
	fmt.Fprintf(&b, "%-45s %d/%-14d %-10d\n", "TOTAL", detected, total, totalEvidence)
	b.WriteString("\n")

	b.WriteString(strings.Repeat("=", bannerWidth) + "\n")
	b.WriteString("END OF REPORT\n")
	b.WriteString(strings.Repeat("=", bannerWidth) + "\n")

	return b.String()
}

func joinEndpoints(eps []Endpoint) string {
	parts := make([]string, len(eps))
	for i, e := range eps {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Write renders the report to path atomically: the content lands in a
// temporary file first and is renamed into place, so a failed run never
// leaves a partial report behind.
func (rp *Report) Write(path string) error {

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if _, err := io.WriteString(tmp, rp.Render()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// PrintSummary writes the per-signature console summary.
func (rp *Report) PrintSummary(w io.Writer) {

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(w)
	for _, res := range rp.Results {
		status := red("NOT DETECTED")
		if res.Detected {
			status = green("DETECTED")
		}
		fmt.Fprintf(w, "  %-45s %s (%d)\n", res.SignatureID, status, len(res.Evidence))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Final Detection Rate: %d/%d (%.1f%%)\n",
		rp.DetectedCount(), len(rp.Results), rp.detectionRate())
}
