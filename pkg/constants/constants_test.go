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

package constants

import "testing"

func TestLargerRunnerPattern(t *testing.T) {
	tests := []struct {
		label string
		match bool
	}{
		{"ubuntu-22.04-8core-32gb", true},
		{"windows-2019-2022-16core-64gb", true},
		{"ubuntu-22.04", false},
		{"self-hosted", false},
		{"ubuntu-22.04-3core-32gb", false},
	}

	for _, tt := range tests {
		if got := LargerRunnerPattern.MatchString(tt.label); got != tt.match {
			t.Errorf("LargerRunnerPattern(%q) = %v, want %v", tt.label, got, tt.match)
		}
	}
}

func TestMatrixKeyPattern(t *testing.T) {
	tests := []struct {
		label string
		key   string
	}{
		{"${{ matrix.os }}", "os"},
		{"${{matrix.runner-label}}", "runner-label"},
		{"{{ matrix.os }}", "os"},
		{"ubuntu-latest", ""},
	}

	for _, tt := range tests {
		m := MatrixKeyPattern.FindStringSubmatch(tt.label)
		got := ""
		if len(m) > 1 {
			got = m[1]
		}
		if got != tt.key {
			t.Errorf("MatrixKeyPattern(%q) = %q, want %q", tt.label, got, tt.key)
		}
	}
}

func TestRiskyTriggersMembership(t *testing.T) {
	want := map[string]bool{
		"pull_request_target": true,
		"workflow_run":        true,
		"issue_comment":       true,
	}
	seen := make(map[string]bool)
	for _, trigger := range RiskyTriggers {
		seen[trigger] = true
	}
	for trigger := range want {
		if !seen[trigger] {
			t.Errorf("Expected %q in RiskyTriggers", trigger)
		}
	}
	if seen["pull_request"] {
		t.Error("pull_request must not be a risky trigger")
	}
	if seen["push"] {
		t.Error("push must not be a risky trigger")
	}
}
