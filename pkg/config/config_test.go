/*
Copyright 2025 Hare Krishna Rai

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harekrishnarai/forkrisk/pkg/constants"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Version != "1" {
		t.Errorf("Expected version '1', got '%s'", config.Version)
	}

	if config.Output.Format != "cli" {
		t.Errorf("Expected default format 'cli', got '%s'", config.Output.Format)
	}

	if config.Output.MinConfidence != "UNKNOWN" {
		t.Errorf("Expected default min confidence 'UNKNOWN', got '%s'", config.Output.MinConfidence)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	// No explicit path and no discoverable file in an empty dir returns the
	// default config.
	config, err := LoadConfig("", t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error for missing config, got: %v", err)
	}

	if config.Version != "1" {
		t.Errorf("Expected default config, got version '%s'", config.Version)
	}
}

func TestLoadConfigDiscovery(t *testing.T) {
	dir := t.TempDir()
	content := `version: "1"
analysis:
  risky_triggers:
    - pull_request_target
  ignore_workflows:
    - release.yml
output:
  format: json
  min_confidence: MEDIUM
`
	if err := os.WriteFile(filepath.Join(dir, constants.ConfigFileYML), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfig("", dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Output.Format != "json" {
		t.Errorf("Expected format 'json', got '%s'", config.Output.Format)
	}
	if got := config.RiskyTriggers(); len(got) != 1 || got[0] != "pull_request_target" {
		t.Errorf("Expected overridden risky triggers, got %v", got)
	}
	if !config.ShouldIgnoreWorkflow("release.yml") {
		t.Error("Expected release.yml to be ignored")
	}
	if config.ShouldIgnoreWorkflow("build.yml") {
		t.Error("Did not expect build.yml to be ignored")
	}
}

func TestLoadConfigRejectsBadFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(path, []byte("output:\n  format: xml\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadConfig(path, ""); err == nil {
		t.Error("Expected error for unsupported output format")
	}
}

func TestRiskyTriggersDefault(t *testing.T) {
	config := DefaultConfig()
	if len(config.RiskyTriggers()) != len(constants.RiskyTriggers) {
		t.Errorf("Expected default risky trigger set, got %v", config.RiskyTriggers())
	}
}

func TestHostedLabelsExtension(t *testing.T) {
	config := DefaultConfig()
	config.Analysis.ExtraHostedLabels = []string{"org-large-runner"}

	labels := config.HostedLabels()
	if len(labels) != len(constants.GitHubHostedLabels)+1 {
		t.Errorf("Expected %d labels, got %d", len(constants.GitHubHostedLabels)+1, len(labels))
	}
	if labels[len(labels)-1] != "org-large-runner" {
		t.Errorf("Expected extra label appended, got %v", labels[len(labels)-1])
	}
}

func TestMeetsConfidence(t *testing.T) {
	config := DefaultConfig()
	config.Output.MinConfidence = constants.ConfidenceMedium

	if !config.MeetsConfidence(constants.ConfidenceHigh) {
		t.Error("HIGH should clear a MEDIUM floor")
	}
	if !config.MeetsConfidence(constants.ConfidenceMedium) {
		t.Error("MEDIUM should clear a MEDIUM floor")
	}
	if config.MeetsConfidence(constants.ConfidenceUnknown) {
		t.Error("UNKNOWN should not clear a MEDIUM floor")
	}
}

func TestShouldIgnoreWorkflowGlob(t *testing.T) {
	config := DefaultConfig()
	config.Analysis.IgnoreWorkflows = []string{"deploy-*.yml"}

	if !config.ShouldIgnoreWorkflow("deploy-prod.yml") {
		t.Error("Expected glob pattern to match deploy-prod.yml")
	}
	if config.ShouldIgnoreWorkflow("ci.yml") {
		t.Error("Did not expect glob pattern to match ci.yml")
	}
}
