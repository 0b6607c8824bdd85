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
	"runtime"
	"sync"
	"time"

	"github.com/harekrishnarai/forkrisk/pkg/analysis"
	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
	"github.com/harekrishnarai/forkrisk/pkg/policies"
	"github.com/harekrishnarai/forkrisk/pkg/report"
	"github.com/harekrishnarai/forkrisk/pkg/workflow"
)

// ProcessorConfig contains configuration for concurrent processing
type ProcessorConfig struct {
	// MaxWorkers defines the maximum number of concurrent workers
	// If 0, uses number of CPU cores
	MaxWorkers int

	// Timeout for processing a single workflow file
	WorkflowTimeout time.Duration

	// Timeout for the entire analysis operation
	TotalTimeout time.Duration

	// Enable progress reporting
	ShowProgress bool

	// Buffer size for worker channels
	BufferSize int
}

// DefaultProcessorConfig returns a default configuration
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		MaxWorkers:      runtime.NumCPU(),
		WorkflowTimeout: 30 * time.Second,
		TotalTimeout:    5 * time.Minute,
		ShowProgress:    true,
		BufferSize:      100,
	}
}

// ScanJob represents a single workflow analysis job. Each job holds an
// exclusive workflow; the memoized guard evaluation inside is not safe for
// sharing across workers.
type ScanJob struct {
	Workflow *workflow.Workflow
	Options  *analysis.Options
	Bypass   bool
	Policies *policies.Engine
}

// ScanResult represents the result of analyzing one workflow
type ScanResult struct {
	Report   report.WorkflowReport
	Error    error
	Duration time.Duration
}

// ProgressReporter handles progress reporting during concurrent processing
type ProgressReporter struct {
	Total        int
	Completed    int
	mutex        sync.RWMutex
	showProgress bool
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(total int, showProgress bool) *ProgressReporter {
	return &ProgressReporter{
		Total:        total,
		Completed:    0,
		showProgress: showProgress,
	}
}

// Update increments the completed count and reports progress
func (pr *ProgressReporter) Update(workflowName string) {
	pr.mutex.Lock()
	defer pr.mutex.Unlock()

	pr.Completed++

	if pr.showProgress {
		percentage := float64(pr.Completed) / float64(pr.Total) * 100
		fmt.Printf("\r🔍 Analyzing workflows... [%d/%d] (%.1f%%) - %s",
			pr.Completed, pr.Total, percentage, workflowName)

		if pr.Completed == pr.Total {
			fmt.Println() // New line when complete
		}
	}
}

// GetProgress returns current progress information
func (pr *ProgressReporter) GetProgress() (completed, total int) {
	pr.mutex.RLock()
	defer pr.mutex.RUnlock()
	return pr.Completed, pr.Total
}

// ConcurrentProcessor handles concurrent workflow analysis
type ConcurrentProcessor struct {
	config   *ProcessorConfig
	reporter *ProgressReporter
}

// NewConcurrentProcessor creates a new concurrent processor
func NewConcurrentProcessor(config *ProcessorConfig) *ConcurrentProcessor {
	if config == nil {
		config = DefaultProcessorConfig()
	}

	// Ensure we have at least 1 worker
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}

	return &ConcurrentProcessor{
		config: config,
	}
}

// ProcessWorkflows analyzes multiple workflows concurrently and returns a
// report per workflow in completion order.
func (cp *ConcurrentProcessor) ProcessWorkflows(
	ctx context.Context,
	workflows []*workflow.Workflow,
	opts *analysis.Options,
	bypass bool,
	policyEngine *policies.Engine,
) ([]report.WorkflowReport, error) {

	if len(workflows) == 0 {
		return []report.WorkflowReport{}, nil
	}

	// Set up timeout context
	if cp.config.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cp.config.TotalTimeout)
		defer cancel()
	}

	// Initialize progress reporter
	cp.reporter = NewProgressReporter(len(workflows), cp.config.ShowProgress)

	// For small numbers of workflows, use sequential processing
	if len(workflows) <= 2 {
		return cp.processSequentially(ctx, workflows, opts, bypass, policyEngine)
	}

	// Use concurrent processing for larger numbers
	return cp.processConcurrently(ctx, workflows, opts, bypass, policyEngine)
}

// processSequentially processes workflows one by one (for small counts)
func (cp *ConcurrentProcessor) processSequentially(
	ctx context.Context,
	workflows []*workflow.Workflow,
	opts *analysis.Options,
	bypass bool,
	policyEngine *policies.Engine,
) ([]report.WorkflowReport, error) {

	var reports []report.WorkflowReport

	for _, wf := range workflows {
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}

		result := cp.processWorkflow(ctx, ScanJob{
			Workflow: wf,
			Options:  opts,
			Bypass:   bypass,
			Policies: policyEngine,
		})

		cp.reporter.Update(wf.FileName)

		if result.Error != nil {
			fmt.Printf("Warning: error processing %s: %v\n", result.Report.FileName, result.Error)
			continue
		}

		reports = append(reports, result.Report)
	}

	return reports, nil
}

// processConcurrently processes workflows using worker pools
func (cp *ConcurrentProcessor) processConcurrently(
	ctx context.Context,
	workflows []*workflow.Workflow,
	opts *analysis.Options,
	bypass bool,
	policyEngine *policies.Engine,
) ([]report.WorkflowReport, error) {

	// Calculate optimal number of workers
	numWorkers := cp.config.MaxWorkers
	if numWorkers > len(workflows) {
		numWorkers = len(workflows)
	}

	// Create job and result channels
	jobs := make(chan ScanJob, cp.config.BufferSize)
	results := make(chan ScanResult, len(workflows))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go cp.worker(ctx, &wg, jobs, results)
	}

	// Send jobs
	go func() {
		defer close(jobs)
		for _, wf := range workflows {
			select {
			case jobs <- ScanJob{
				Workflow: wf,
				Options:  opts,
				Bypass:   bypass,
				Policies: policyEngine,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Collect results
	var reports []report.WorkflowReport
	var errors []error

	for i := 0; i < len(workflows); i++ {
		select {
		case result := <-results:
			cp.reporter.Update(result.Report.FileName)

			if result.Error != nil {
				errors = append(errors, fmt.Errorf("error processing %s: %w", result.Report.FileName, result.Error))
				continue
			}

			reports = append(reports, result.Report)

		case <-ctx.Done():
			// Wait for workers to finish
			go func() {
				wg.Wait()
				close(results)
			}()
			return reports, ctx.Err()
		}
	}

	// Wait for all workers to complete
	wg.Wait()
	close(results)

	// Report any errors that occurred
	if len(errors) > 0 {
		for _, err := range errors {
			fmt.Printf("Warning: %v\n", err)
		}
	}

	return reports, nil
}

// worker processes jobs from the job channel
func (cp *ConcurrentProcessor) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan ScanJob, results chan<- ScanResult) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := cp.processWorkflow(ctx, job)

		select {
		case results <- result:
		case <-ctx.Done():
			return
		}
	}
}

// processWorkflow analyzes a single workflow with timeout
func (cp *ConcurrentProcessor) processWorkflow(ctx context.Context, job ScanJob) ScanResult {
	start := time.Now()

	// Set up workflow-level timeout
	workflowCtx := ctx
	if cp.config.WorkflowTimeout > 0 {
		var cancel context.CancelFunc
		workflowCtx, cancel = context.WithTimeout(ctx, cp.config.WorkflowTimeout)
		defer cancel()
	}

	result := ScanResult{
		Report: report.WorkflowReport{
			Repository: job.Workflow.RepoName,
			FileName:   job.Workflow.FileName,
		},
	}

	// Check for cancellation
	select {
	case <-workflowCtx.Done():
		result.Error = workflowCtx.Err()
		result.Duration = time.Since(start)
		return result
	default:
	}

	result.Report, result.Error = cp.analyzeWorkflow(workflowCtx, job)
	result.Duration = time.Since(start)

	return result
}

// analyzeWorkflow runs the full detection pipeline over one workflow.
// Unparseable workflows produce a report with ParseError set rather than
// failing the scan.
func (cp *ConcurrentProcessor) analyzeWorkflow(ctx context.Context, job ScanJob) (report.WorkflowReport, error) {
	wr := report.WorkflowReport{
		Repository: job.Workflow.RepoName,
		FileName:   job.Workflow.FileName,
	}

	a, err := analysis.New(job.Workflow, job.Options)
	if err != nil {
		// Document errors only disqualify this one file.
		if ferrors.IsDocumentError(err) {
			wr.ParseError = err.Error()
			return wr, nil
		}
		return wr, err
	}

	wr.PwnRequest = a.CheckPwnRequest(job.Bypass)
	wr.Injection = a.CheckInjection(job.Bypass)
	wr.SelfHosted = a.SelfHosted()
	wr.Actions = a.ExtractReferencedActions()

	if job.Policies != nil {
		violations, err := job.Policies.Evaluate(ctx, wr)
		if err != nil {
			return wr, err
		}
		wr.Violations = violations
	}

	return wr, nil
}

// GetStats returns processing statistics
func (cp *ConcurrentProcessor) GetStats() (completed, total int, config *ProcessorConfig) {
	if cp.reporter != nil {
		completed, total = cp.reporter.GetProgress()
	}
	return completed, total, cp.config
}
