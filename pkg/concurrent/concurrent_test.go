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

package concurrent

import (
	"context"
	"fmt"
	"testing"

	"github.com/harekrishnarai/forkrisk/pkg/workflow"
)

const riskyCheckoutWorkflow = `
on: pull_request_target
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
        with:
          ref: ${{ github.event.pull_request.head.ref }}
      - run: npm install
`

const cleanWorkflow = `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`

func quietConfig() *ProcessorConfig {
	config := DefaultProcessorConfig()
	config.ShowProgress = false
	return config
}

func TestProcessWorkflowsSequential(t *testing.T) {
	workflows := []*workflow.Workflow{
		workflow.New("octo/repo", "risky.yml", []byte(riskyCheckoutWorkflow)),
		workflow.New("octo/repo", "clean.yml", []byte(cleanWorkflow)),
	}

	cp := NewConcurrentProcessor(quietConfig())
	reports, err := cp.ProcessWorkflows(context.Background(), workflows, nil, false, nil)
	if err != nil {
		t.Fatalf("ProcessWorkflows failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}

	byFile := map[string]int{}
	for i, r := range reports {
		byFile[r.FileName] = i
	}
	risky := reports[byFile["risky.yml"]]
	if risky.PwnRequest == nil || risky.PwnRequest.Empty() {
		t.Error("Expected pwn-request candidate in risky.yml")
	}
	clean := reports[byFile["clean.yml"]]
	if clean.HasFindings() {
		t.Error("Did not expect findings in clean.yml")
	}
}

func TestProcessWorkflowsConcurrent(t *testing.T) {
	var workflows []*workflow.Workflow
	for i := 0; i < 8; i++ {
		workflows = append(workflows,
			workflow.New("octo/repo", fmt.Sprintf("wf%d.yml", i), []byte(riskyCheckoutWorkflow)))
	}

	cp := NewConcurrentProcessor(quietConfig())
	reports, err := cp.ProcessWorkflows(context.Background(), workflows, nil, false, nil)
	if err != nil {
		t.Fatalf("ProcessWorkflows failed: %v", err)
	}
	if len(reports) != 8 {
		t.Fatalf("Expected 8 reports, got %d", len(reports))
	}
	for _, r := range reports {
		if r.PwnRequest == nil || r.PwnRequest.Empty() {
			t.Errorf("Workflow %s missing expected candidate", r.FileName)
		}
	}

	completed, total, _ := cp.GetStats()
	if completed != 8 || total != 8 {
		t.Errorf("Stats = %d/%d, want 8/8", completed, total)
	}
}

func TestProcessWorkflowsRecordsParseErrors(t *testing.T) {
	workflows := []*workflow.Workflow{
		workflow.New("octo/repo", "broken.yml", []byte("jobs: [unclosed")),
	}

	cp := NewConcurrentProcessor(quietConfig())
	reports, err := cp.ProcessWorkflows(context.Background(), workflows, nil, false, nil)
	if err != nil {
		t.Fatalf("ProcessWorkflows failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(reports))
	}
	if reports[0].ParseError == "" {
		t.Error("Expected parse error to be recorded")
	}
	if reports[0].HasFindings() {
		t.Error("A broken document carries no findings")
	}
}

func TestProcessWorkflowsEmptyInput(t *testing.T) {
	cp := NewConcurrentProcessor(quietConfig())
	reports, err := cp.ProcessWorkflows(context.Background(), nil, nil, false, nil)
	if err != nil {
		t.Fatalf("ProcessWorkflows failed: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("Expected no reports, got %d", len(reports))
	}
}
