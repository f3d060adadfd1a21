// Package evomaster invokes the external black-box fuzzer as a java
// subprocess. The fuzzer owns test generation and execution; this package
// owns precondition checks and the CLI flag mapping.
package evomaster

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/miaoti/trainticket-fuzz/internal/logger"
)

// OutputFormats the external fuzzer can emit test suites in.
var OutputFormats = []string{
	"PYTHON_UNITTEST",
	"JAVA_JUNIT_4",
	"JAVA_JUNIT_5",
	"KOTLIN_JUNIT_5",
	"JS_JEST",
}

// ConfigurationError reports a missing required input. Fatal: the run
// aborts before any work.
type ConfigurationError struct {
	What string
	Path string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

// Options are the parameters mapped onto the fuzzer CLI.
type Options struct {
	JavaPath      string
	JarPath       string
	TargetURL     string
	SpecPath      string
	ConfigPath    string
	OutputFormat  string
	MaxTime       string
	OutputFolder  string
	RatePerMinute int
}

// Validate checks preconditions. A missing auth config downgrades to a
// warning and the flag is dropped; everything else required is fatal.
func (o *Options) Validate(log *logger.Logger) error {

	if _, err := os.Stat(o.JarPath); err != nil {
		return &ConfigurationError{What: "fuzzer jar", Path: o.JarPath}
	}
	if _, err := os.Stat(o.SpecPath); err != nil {
		return &ConfigurationError{What: "OpenAPI specification", Path: o.SpecPath}
	}

	if !validFormat(o.OutputFormat) {
		return fmt.Errorf("unsupported output format %q (supported: %s)",
			o.OutputFormat, strings.Join(OutputFormats, ", "))
	}

	if _, err := ParseMaxTime(o.MaxTime); err != nil {
		return fmt.Errorf("invalid max time %q: %w", o.MaxTime, err)
	}

	if o.ConfigPath != "" {
		if _, err := os.Stat(o.ConfigPath); err != nil {
			log.Warnf("auth config %s not found, running without authentication", o.ConfigPath)
			o.ConfigPath = ""
		}
	}

	return nil
}

func validFormat(f string) bool {
	for _, v := range OutputFormats {
		if v == f {
			return true
		}
	}
	return false
}

// ParseMaxTime accepts Go duration strings, which cover the fuzzer's own
// 30m / 1h style budgets.
func ParseMaxTime(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

// Args maps the options onto the fuzzer's CLI flags.
func (o *Options) Args() []string {

	args := []string{
		"-jar", o.JarPath,
		"--blackBox", "true",
		"--bbTargetUrl", o.TargetURL,
		"--bbSwaggerUrl", swaggerURL(o.SpecPath),
		"--outputFormat", o.OutputFormat,
		"--maxTime", o.MaxTime,
		"--outputFolder", o.OutputFolder,
	}

	if o.ConfigPath != "" {
		args = append(args, "--configPath", o.ConfigPath)
	}
	if o.RatePerMinute > 0 {
		args = append(args, "--ratePerMinute", strconv.Itoa(o.RatePerMinute))
	}

	return args
}

func swaggerURL(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	return "file://" + abs
}

// Runner drives one fuzzer invocation.
type Runner struct {
	Options Options
	Log     *logger.Logger
	Stdout  io.Writer
	Stderr  io.Writer
}

// Run blocks until the fuzzer exits and returns its exit code. A nonzero
// exit is a warning, not an error: partial results are still analyzed.
// Failing to start the subprocess at all is an error.
func (r *Runner) Run(ctx context.Context) (int, error) {

	java := r.Options.JavaPath
	if java == "" {
		java = "java"
	}

	cmd := exec.CommandContext(ctx, java, r.Options.Args()...)
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	r.Log.Infow("starting external fuzzer",
		"jar", r.Options.JarPath,
		"target", r.Options.TargetURL,
		"maxTime", r.Options.MaxTime,
		"outputFormat", r.Options.OutputFormat,
		"outputFolder", r.Options.OutputFolder,
	)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		r.Log.Warnf("external fuzzer exited with code %d, continuing to analysis", code)
		return code, nil
	}

	return -1, fmt.Errorf("start external fuzzer: %w", err)
}
