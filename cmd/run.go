package cmd

import (
	"github.com/spf13/cobra"

	"github.com/miaoti/trainticket-fuzz/internal/config"
	"github.com/miaoti/trainticket-fuzz/pkg/evomaster"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the external fuzzer against the target, then analyze its output",
	RunE: func(cmd *cobra.Command, _ []string) error {

		cfg, err := config.Load(cmd.Flags(), cfgFile)
		if err != nil {
			return err
		}

		opts := evomaster.Options{
			JarPath:       cfg.JarPath,
			TargetURL:     cfg.TargetURL,
			SpecPath:      cfg.SpecPath,
			ConfigPath:    cfg.AuthConfig,
			OutputFormat:  cfg.OutputFormat,
			MaxTime:       cfg.MaxTime,
			OutputFolder:  cfg.OutputFolder,
			RatePerMinute: cfg.RatePerMinute,
		}
		if err := opts.Validate(log); err != nil {
			return err
		}

		runner := &evomaster.Runner{Options: opts, Log: log}
		if _, err := runner.Run(cmd.Context()); err != nil {
			return err
		}

		return runAnalysis(cmd.Context(), analysisOptions{
			TestsDir:    opts.OutputFolder,
			ReportPath:  cfg.ReportPath,
			EvidenceDir: cfg.EvidenceDir,
			FaultTable:  cfg.FaultTable,
		})
	},
}

func init() {
	runCmd.Flags().String("target", "http://localhost:8080", "base URL of the system under test")
	runCmd.Flags().String("max-time", "30m", "fuzzing time budget")
	runCmd.Flags().String("format", "PYTHON_UNITTEST", "test suite output format")
	runCmd.Flags().String("jar", "evomaster.jar", "path to the fuzzer jar")
	runCmd.Flags().String("spec", "merged_openapi_spec_fixed.yaml", "OpenAPI specification fed to the fuzzer")
	runCmd.Flags().String("auth-config", "", "authentication template handed to the fuzzer (optional)")
	runCmd.Flags().String("tests", "generated_tests", "folder the fuzzer writes generated tests to")
	runCmd.Flags().Int("rate", 0, "request rate limit per minute (0 = unlimited)")
	runCmd.Flags().String("out", "", "report file (default fault_detection_report_<timestamp>.log)")
	runCmd.Flags().String("evidence-dir", "", "mirror detection evidence into this directory")
	runCmd.Flags().String("faults", "", "fault table override (YAML)")
	rootCmd.AddCommand(runCmd)
}
