// Package config loads the optional .forkrisk.yml file that tunes a scan:
// which triggers count as risky, which runner labels count as hosted,
// which actions gate a job, and how results are rendered.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harekrishnarai/forkrisk/pkg/constants"
	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete forkrisk configuration.
type Config struct {
	Version  string   `yaml:"version" json:"version"`
	Analysis Analysis `yaml:"analysis" json:"analysis"`
	Output   Output   `yaml:"output" json:"output"`
	Policies []string `yaml:"policies,omitempty" json:"policies,omitempty"`
}

// Analysis tunes the detection engine.
type Analysis struct {
	// RiskyTriggers replaces the built-in risky trigger set when set.
	RiskyTriggers []string `yaml:"risky_triggers" json:"risky_triggers"`
	// ExtraHostedLabels extends the hosted-runner label allow-list, for
	// organizations that alias hosted pools under custom names.
	ExtraHostedLabels []string `yaml:"extra_hosted_labels" json:"extra_hosted_labels"`
	// ExtraGateActions extends the permission-gate action allow-list.
	ExtraGateActions []string `yaml:"extra_gate_actions" json:"extra_gate_actions"`
	// Bypass forces pwn-request and injection analysis even when no risky
	// trigger is declared.
	Bypass bool `yaml:"bypass" json:"bypass"`
	// IgnoreWorkflows lists workflow file names to skip.
	IgnoreWorkflows []string `yaml:"ignore_workflows" json:"ignore_workflows"`
}

// Output configures result rendering.
type Output struct {
	Format string `yaml:"format" json:"format"` // "cli", "json", "markdown"
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	// MinConfidence drops pwn-request candidates below this level.
	MinConfidence string `yaml:"min_confidence" json:"min_confidence"`
	// ExportDir re-emits every analyzed workflow under dir/<repo>/<file>.
	ExportDir string `yaml:"export_dir,omitempty" json:"export_dir,omitempty"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Output: Output{
			Format:        constants.DefaultOutputFormat,
			MinConfidence: constants.DefaultMinConfidence,
		},
	}
}

// LoadConfig reads a configuration file, or falls back to defaults when
// path is empty and no well-known file exists in the search dir.
func LoadConfig(path, searchDir string) (*Config, error) {
	if path == "" {
		path = findConfigFile(searchDir)
		if path == "" {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.NewConfigError(constants.ErrConfigLoadFailed, err,
			fmt.Sprintf("check that %s exists and is readable", path))
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ferrors.NewConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}
	if err := cfg.validate(); err != nil {
		return nil, ferrors.NewConfigError(fmt.Sprintf("invalid config file %s", path), err)
	}
	return cfg, nil
}

func findConfigFile(dir string) string {
	if dir == "" {
		dir = "."
	}
	candidates := []string{
		constants.ConfigFileYML,
		constants.ConfigFileYAML,
		constants.ConfigFileBaseYML,
		constants.ConfigFileBaseYAML,
	}
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) validate() error {
	if c.Output.Format != "" && !contains(constants.SupportedOutputFormats, c.Output.Format) {
		return fmt.Errorf("unsupported output format %q (expected one of %s)",
			c.Output.Format, strings.Join(constants.SupportedOutputFormats, ", "))
	}
	switch c.Output.MinConfidence {
	case "", constants.ConfidenceUnknown, constants.ConfidenceMedium, constants.ConfidenceHigh:
	default:
		return fmt.Errorf("unsupported min_confidence %q", c.Output.MinConfidence)
	}
	return nil
}

// RiskyTriggers resolves the effective risky trigger set.
func (c *Config) RiskyTriggers() []string {
	if len(c.Analysis.RiskyTriggers) > 0 {
		return c.Analysis.RiskyTriggers
	}
	return constants.RiskyTriggers
}

// HostedLabels resolves the effective hosted-runner label allow-list.
func (c *Config) HostedLabels() []string {
	if len(c.Analysis.ExtraHostedLabels) == 0 {
		return constants.GitHubHostedLabels
	}
	out := make([]string, 0, len(constants.GitHubHostedLabels)+len(c.Analysis.ExtraHostedLabels))
	out = append(out, constants.GitHubHostedLabels...)
	out = append(out, c.Analysis.ExtraHostedLabels...)
	return out
}

// ShouldIgnoreWorkflow reports whether a workflow file name is excluded.
func (c *Config) ShouldIgnoreWorkflow(fileName string) bool {
	for _, pattern := range c.Analysis.IgnoreWorkflows {
		if matched, err := filepath.Match(pattern, fileName); err == nil && matched {
			return true
		}
		if pattern == fileName {
			return true
		}
	}
	return false
}

// MeetsConfidence reports whether a candidate confidence clears the
// configured floor.
func (c *Config) MeetsConfidence(confidence string) bool {
	rank := map[string]int{
		constants.ConfidenceUnknown: 0,
		constants.ConfidenceMedium:  1,
		constants.ConfidenceHigh:    2,
	}
	floor := c.Output.MinConfidence
	if floor == "" {
		floor = constants.DefaultMinConfidence
	}
	return rank[confidence] >= rank[floor]
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
