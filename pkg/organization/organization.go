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

// Package organization scans every repository of a GitHub organization,
// fetching workflows over the API instead of cloning.
package organization

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harekrishnarai/forkrisk/pkg/analysis"
	"github.com/harekrishnarai/forkrisk/pkg/config"
	"github.com/harekrishnarai/forkrisk/pkg/constants"
	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
	"github.com/harekrishnarai/forkrisk/pkg/github"
	"github.com/harekrishnarai/forkrisk/pkg/report"
	"github.com/harekrishnarai/forkrisk/pkg/workflow"
)

// RepositoryFilter is defined in the github package
type RepositoryFilter = github.RepositoryFilter

// RepositoryResult represents the analysis result for a single repository
type RepositoryResult struct {
	Repository     github.RepositoryInfo   `json:"repository"`
	Workflows      []report.WorkflowReport `json:"workflows"`
	Summary        report.ResultSummary    `json:"summary"`
	WorkflowsCount int                     `json:"workflows_count"`
	Duration       time.Duration           `json:"duration"`
	Error          error                   `json:"error,omitempty"`
}

// OrganizationResult represents the analysis result for an entire organization
type OrganizationResult struct {
	Organization         string               `json:"organization"`
	ScanTime             time.Time            `json:"scan_time"`
	Duration             time.Duration        `json:"duration"`
	TotalRepositories    int                  `json:"total_repositories"`
	AnalyzedRepositories int                  `json:"analyzed_repositories"`
	SkippedRepositories  int                  `json:"skipped_repositories"`
	RepositoryResults    []RepositoryResult   `json:"repository_results"`
	Summary              OrganizationSummary  `json:"summary"`
}

// OrganizationSummary provides aggregated statistics for an organization
type OrganizationSummary struct {
	TotalFindings      int                  `json:"total_findings"`
	PwnRequestJobs     int                  `json:"pwn_request_jobs"`
	InjectionJobs      int                  `json:"injection_jobs"`
	SelfHostedJobs     int                  `json:"self_hosted_jobs"`
	RepositoriesByRisk map[string]int       `json:"repositories_by_risk"`
	RiskDistribution   []RepositoryRiskInfo `json:"risk_distribution"`
}

// RepositoryRiskInfo provides risk assessment for individual repositories
type RepositoryRiskInfo struct {
	Repository    github.RepositoryInfo `json:"repository"`
	RiskLevel     string                `json:"risk_level"` // CLEAN, LOW, MEDIUM, HIGH, CRITICAL
	FindingsCount int                   `json:"findings_count"`
	Score         float64               `json:"score"` // Risk score 0-100
}

// Analyzer handles organization-wide analysis
type Analyzer struct {
	client     *github.Client
	config     *config.Config
	maxWorkers int
	progress   bool
}

// NewAnalyzer creates a new organization analyzer
func NewAnalyzer(client *github.Client, cfg *config.Config, maxWorkers int, showProgress bool) *Analyzer {
	return &Analyzer{
		client:     client,
		config:     cfg,
		maxWorkers: maxWorkers,
		progress:   showProgress,
	}
}

// AnalyzeOrganization scans all repositories in an organization that pass
// the filter.
func (a *Analyzer) AnalyzeOrganization(ctx context.Context, orgName string, filter RepositoryFilter) (*OrganizationResult, error) {
	startTime := time.Now()

	repositories, err := a.client.DiscoverOrganizationRepositories(orgName, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to discover repositories: %w", err)
	}

	if a.progress {
		fmt.Printf("📦 Discovered %d repositories in organization '%s'\n", len(repositories), orgName)
	}

	results := a.analyzeRepositoriesConcurrently(ctx, repositories)
	summary := a.calculateSummary(results)

	return &OrganizationResult{
		Organization:         orgName,
		ScanTime:             startTime,
		Duration:             time.Since(startTime),
		TotalRepositories:    len(repositories),
		AnalyzedRepositories: countAnalyzed(results),
		SkippedRepositories:  countSkipped(results),
		RepositoryResults:    results,
		Summary:              summary,
	}, nil
}

// analyzeRepositoriesConcurrently processes multiple repositories in parallel
func (a *Analyzer) analyzeRepositoriesConcurrently(ctx context.Context, repositories []github.RepositoryInfo) []RepositoryResult {
	jobs := make(chan github.RepositoryInfo, len(repositories))
	results := make(chan RepositoryResult, len(repositories))

	numWorkers := a.maxWorkers
	if numWorkers <= 0 {
		numWorkers = 4 // Default for organization analysis
	}
	if numWorkers > len(repositories) {
		numWorkers = len(repositories)
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go a.repositoryWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, repo := range repositories {
			select {
			case jobs <- repo:
			case <-ctx.Done():
				return
			}
		}
	}()

	var repoResults []RepositoryResult
	completed := 0

	for completed < len(repositories) {
		select {
		case result := <-results:
			repoResults = append(repoResults, result)
			completed++

			if a.progress {
				fmt.Printf("\r🔍 Analyzed repositories: %d/%d", completed, len(repositories))
				if completed == len(repositories) {
					fmt.Println() // New line when complete
				}
			}

		case <-ctx.Done():
			return repoResults
		}
	}

	wg.Wait()
	close(results)

	return repoResults
}

// repositoryWorker processes individual repository analysis jobs
func (a *Analyzer) repositoryWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan github.RepositoryInfo, results chan<- RepositoryResult) {
	defer wg.Done()

	for repo := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := a.analyzeRepository(ctx, repo)

		select {
		case results <- result:
		case <-ctx.Done():
			return
		}
	}
}

// analyzeRepository fetches a repository's workflows over the API and runs
// the detection pipeline on each.
func (a *Analyzer) analyzeRepository(ctx context.Context, repo github.RepositoryInfo) RepositoryResult {
	startTime := time.Now()

	result := RepositoryResult{
		Repository: repo,
	}

	owner, repoName, err := github.ParseRepositoryURL(repo.CloneURL)
	if err != nil {
		result.Error = fmt.Errorf("failed to parse repository URL: %w", err)
		result.Duration = time.Since(startTime)
		return result
	}

	files, err := a.client.FetchWorkflows(owner, repoName, "")
	if err != nil {
		result.Error = fmt.Errorf("failed to fetch workflow files: %w", err)
		result.Duration = time.Since(startTime)
		return result
	}

	// No workflows is not an error.
	if len(files) == 0 {
		result.Duration = time.Since(startTime)
		return result
	}

	result.WorkflowsCount = len(files)

	opts := &analysis.Options{
		RiskyTriggers:    a.config.RiskyTriggers(),
		HostedLabels:     a.config.HostedLabels(),
		ExtraGateActions: a.config.Analysis.ExtraGateActions,
	}

	for _, file := range files {
		select {
		case <-ctx.Done():
			result.Error = ctx.Err()
			result.Duration = time.Since(startTime)
			return result
		default:
		}

		if a.config.ShouldIgnoreWorkflow(file.Name) {
			continue
		}

		wf := workflow.New(repo.FullName, file.Name, file.Content)
		wr := report.WorkflowReport{
			Repository: repo.FullName,
			FileName:   file.Name,
		}

		an, err := analysis.New(wf, opts)
		if err != nil {
			if !ferrors.IsDocumentError(err) {
				result.Error = err
				result.Duration = time.Since(startTime)
				return result
			}
			wr.ParseError = err.Error()
			result.Workflows = append(result.Workflows, wr)
			continue
		}

		wr.PwnRequest = an.CheckPwnRequest(a.config.Analysis.Bypass)
		wr.Injection = an.CheckInjection(a.config.Analysis.Bypass)
		wr.SelfHosted = an.SelfHosted()

		result.Workflows = append(result.Workflows, wr)
	}

	result.Summary = report.CalculateSummary(result.Workflows)
	result.Duration = time.Since(startTime)
	return result
}

// calculateSummary computes organization-level statistics
func (a *Analyzer) calculateSummary(results []RepositoryResult) OrganizationSummary {
	summary := OrganizationSummary{
		RepositoriesByRisk: make(map[string]int),
		RiskDistribution:   []RepositoryRiskInfo{},
	}

	for _, result := range results {
		if result.Error != nil {
			continue
		}

		summary.TotalFindings += result.Summary.Total
		summary.PwnRequestJobs += result.Summary.PwnRequests
		summary.InjectionJobs += result.Summary.Injections
		summary.SelfHostedJobs += result.Summary.SelfHosted

		riskLevel := riskLevelFor(result)
		summary.RepositoriesByRisk[riskLevel]++

		summary.RiskDistribution = append(summary.RiskDistribution, RepositoryRiskInfo{
			Repository:    result.Repository,
			RiskLevel:     riskLevel,
			FindingsCount: result.Summary.Total,
			Score:         riskScoreFor(result),
		})
	}

	return summary
}

// riskLevelFor ranks a repository by its worst finding. A HIGH-confidence
// pwn-request candidate dominates everything else.
func riskLevelFor(result RepositoryResult) string {
	if anyHighConfidenceCheckout(result) {
		return "CRITICAL"
	}
	if result.Summary.PwnRequests > 0 {
		return "HIGH"
	}
	if result.Summary.Injections > 0 {
		return "MEDIUM"
	}
	if result.Summary.SelfHosted > 0 {
		return "LOW"
	}
	return "CLEAN"
}

// riskScoreFor computes a numerical risk score (0-100)
func riskScoreFor(result RepositoryResult) float64 {
	score := float64(result.Summary.Total)
	score += float64(result.Summary.PwnRequests * 10)
	score += float64(result.Summary.Injections * 5)
	if anyHighConfidenceCheckout(result) {
		score += 25
	}

	if score > 100 {
		score = 100
	}
	return score
}

func anyHighConfidenceCheckout(result RepositoryResult) bool {
	for _, wf := range result.Workflows {
		if wf.PwnRequest == nil {
			continue
		}
		for _, candidate := range wf.PwnRequest.Candidates {
			if candidate.Confidence == constants.ConfidenceHigh {
				return true
			}
		}
	}
	return false
}

func countAnalyzed(results []RepositoryResult) int {
	count := 0
	for _, result := range results {
		if result.Error == nil {
			count++
		}
	}
	return count
}

func countSkipped(results []RepositoryResult) int {
	count := 0
	for _, result := range results {
		if result.Error != nil {
			count++
		}
	}
	return count
}
