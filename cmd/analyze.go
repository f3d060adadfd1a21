package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miaoti/trainticket-fuzz/internal/artifacts"
	"github.com/miaoti/trainticket-fuzz/pkg/faults"
	"github.com/miaoti/trainticket-fuzz/pkg/openapifix"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify generated test artifacts against the injected-fault catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {

		flags := cmd.Flags()
		opts := analysisOptions{}
		opts.TestsDir, _ = flags.GetString("tests")
		opts.ReportPath, _ = flags.GetString("out")
		opts.EvidenceDir, _ = flags.GetString("evidence-dir")
		opts.FaultTable, _ = flags.GetString("faults")
		opts.SpecPath, _ = flags.GetString("spec")

		return runAnalysis(cmd.Context(), opts)
	},
}

func init() {
	analyzeCmd.Flags().String("tests", "generated_tests", "folder holding the fuzzer's generated artifacts")
	analyzeCmd.Flags().String("out", "", "report file (default fault_detection_report_<timestamp>.log)")
	analyzeCmd.Flags().String("evidence-dir", "", "mirror detection evidence into this directory")
	analyzeCmd.Flags().String("faults", "", "fault table override (YAML)")
	analyzeCmd.Flags().String("spec", "", "cross-check fault endpoints against this OpenAPI document")
	rootCmd.AddCommand(analyzeCmd)
}

type analysisOptions struct {
	TestsDir    string
	ReportPath  string
	EvidenceDir string
	FaultTable  string
	SpecPath    string
}

func runAnalysis(ctx context.Context, opts analysisOptions) error {

	sigs := faults.Builtin()
	if opts.FaultTable != "" {
		var err error
		sigs, err = faults.LoadTable(opts.FaultTable)
		if err != nil {
			return err
		}
	}

	if opts.SpecPath != "" {
		crossCheckEndpoints(sigs, opts.SpecPath)
	}

	loaded, err := artifacts.Load(ctx, opts.TestsDir, log)
	if err != nil {
		return err
	}
	log.Infow("artifacts loaded",
		"folder", opts.TestsDir,
		"files", loaded.Files,
		"records", len(loaded.Records),
		"skipped", loaded.Skipped,
	)

	results := faults.Classify(sigs, loaded.Records)
	report := faults.NewReport(opts.TestsDir, sigs, results, len(loaded.Records), loaded.Skipped)

	if opts.EvidenceDir != "" {
		saveEvidence(opts.EvidenceDir, results)
	}

	path := opts.ReportPath
	if path == "" {
		path = faults.DefaultReportName(report.GeneratedAt)
	}
	if err := report.Write(path); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Print(report.Render())
	report.PrintSummary(os.Stdout)
	fmt.Printf("\nReport saved to: %s\n", path)

	if len(loaded.Records) == 0 {
		log.Warnf("no test records found under %s; all faults reported undetected", opts.TestsDir)
		exitCode = 2
	}

	return nil
}

func saveEvidence(dir string, results []faults.MatchResult) {

	store, err := artifacts.NewStore(dir)
	if err != nil {
		log.Warnf("evidence store unavailable: %v", err)
		return
	}

	for _, res := range results {
		for _, rec := range res.Evidence {
			if err := store.Put(rec, res.SignatureID); err != nil {
				log.Warnf("evidence store: %v", err)
				return
			}
		}
	}
}

func crossCheckEndpoints(sigs []faults.Signature, specPath string) {

	eps, err := openapifix.Endpoints(specPath)
	if err != nil {
		log.Warnf("cannot cross-check endpoints: %v", err)
		return
	}

	for _, s := range sigs {
		for _, e := range s.Endpoints {
			if !eps[e.Path][strings.ToUpper(e.Method)] {
				log.Warnf("fault %s endpoint %s is not present in %s", s.ID, e.String(), specPath)
			}
		}
	}
}
