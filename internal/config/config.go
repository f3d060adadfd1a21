// Package config resolves harness settings from flags, environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config carries the settings of one harness run.
type Config struct {
	TargetURL     string
	MaxTime       string
	OutputFormat  string
	JarPath       string
	SpecPath      string
	AuthConfig    string
	OutputFolder  string
	ReportPath    string
	EvidenceDir   string
	FaultTable    string
	RatePerMinute int
}

// Load resolves settings with precedence flags > TTFUZZ_* environment >
// config file > flag defaults. When cfgFile is empty, ./harness.yaml is
// read if present; an explicitly named file must exist.
func Load(flags *pflag.FlagSet, cfgFile string) (*Config, error) {

	v := viper.New()
	v.SetEnvPrefix("TTFUZZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("harness")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	return &Config{
		TargetURL:     v.GetString("target"),
		MaxTime:       v.GetString("max-time"),
		OutputFormat:  v.GetString("format"),
		JarPath:       v.GetString("jar"),
		SpecPath:      v.GetString("spec"),
		AuthConfig:    v.GetString("auth-config"),
		OutputFolder:  v.GetString("tests"),
		ReportPath:    v.GetString("out"),
		EvidenceDir:   v.GetString("evidence-dir"),
		FaultTable:    v.GetString("faults"),
		RatePerMinute: v.GetInt("rate"),
	}, nil
}
