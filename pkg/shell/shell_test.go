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

package shell_test

import (
	"testing"

	"github.com/harekrishnarai/forkrisk/pkg/shell"
)

func TestClassifyExpansionsPlacement(t *testing.T) {
	tests := []struct {
		name      string
		script    string
		placement shell.Placement
	}{
		{
			name:      "command position",
			script:    "${{ github.event.comment.body }}",
			placement: shell.PlacementCommand,
		},
		{
			name:      "bare argument",
			script:    "echo ${{ github.event.issue.title }}",
			placement: shell.PlacementUnquoted,
		},
		{
			name:      "double quoted argument",
			script:    `echo "${{ github.event.issue.title }}"`,
			placement: shell.PlacementQuoted,
		},
		{
			name:      "single quoted argument",
			script:    `echo '${{ github.event.issue.title }}'`,
			placement: shell.PlacementQuoted,
		},
		{
			name:      "assignment value",
			script:    "TITLE=${{ github.event.issue.title }}",
			placement: shell.PlacementUnquoted,
		},
		{
			name:      "comment only",
			script:    "echo hello # ${{ github.event.issue.title }}",
			placement: shell.PlacementNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expansions, err := shell.ClassifyExpansions(tt.script)
			if err != nil {
				t.Fatalf("ClassifyExpansions failed: %v", err)
			}
			if len(expansions) != 1 {
				t.Fatalf("Expected 1 expansion, got %d", len(expansions))
			}
			if expansions[0].Placement != tt.placement {
				t.Errorf("Expected placement %s, got %s", tt.placement, expansions[0].Placement)
			}
		})
	}
}

func TestClassifyExpansionsStrongestWins(t *testing.T) {
	// The same expression quoted in one place and bare in another must
	// report the stronger placement.
	script := `echo "${{ github.event.issue.title }}"
${{ github.event.issue.title }} --help`

	expansions, err := shell.ClassifyExpansions(script)
	if err != nil {
		t.Fatalf("ClassifyExpansions failed: %v", err)
	}
	if len(expansions) != 2 {
		t.Fatalf("Expected 2 expansions, got %d", len(expansions))
	}

	strongest := shell.PlacementNone
	for _, e := range expansions {
		if e.Placement > strongest {
			strongest = e.Placement
		}
	}
	if strongest != shell.PlacementCommand {
		t.Errorf("Expected strongest placement command, got %s", strongest)
	}
}

func TestClassifyExpansionsNoMarkers(t *testing.T) {
	expansions, err := shell.ClassifyExpansions("echo hello")
	if err != nil {
		t.Fatalf("ClassifyExpansions failed: %v", err)
	}
	if expansions != nil {
		t.Errorf("Expected nil for script without markers, got %v", expansions)
	}
}

func TestClassifyExpansionsParseFailure(t *testing.T) {
	_, err := shell.ClassifyExpansions("if [ ${{ github.event.issue.title }}")
	if err == nil {
		t.Error("Expected error for unparseable script")
	}
}

func TestReachable(t *testing.T) {
	e := shell.Expansion{Placement: shell.PlacementNone}
	if e.Reachable() {
		t.Error("None placement must not be reachable")
	}
	e.Placement = shell.PlacementQuoted
	if !e.Reachable() {
		t.Error("Quoted placement must be reachable")
	}
}
