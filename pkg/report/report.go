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

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harekrishnarai/forkrisk/pkg/analysis"
	"github.com/harekrishnarai/forkrisk/pkg/constants"
	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
	"github.com/olekukonko/tablewriter"
)

// WorkflowReport holds every analysis result for a single workflow file.
type WorkflowReport struct {
	Repository string                               `json:"repository"`
	FileName   string                               `json:"fileName"`
	PwnRequest *analysis.PwnRequestResult           `json:"pwnRequest,omitempty"`
	Injection  *analysis.InjectionResult            `json:"injection,omitempty"`
	SelfHosted []analysis.SelfHostedJob             `json:"selfHosted,omitempty"`
	Actions    map[string]analysis.ReferencedAction `json:"referencedActions,omitempty"`
	Violations []string                             `json:"policyViolations,omitempty"`
	ParseError string                               `json:"parseError,omitempty"`
}

// HasFindings reports whether anything risky was observed in this workflow.
func (w *WorkflowReport) HasFindings() bool {
	if w.PwnRequest != nil && !w.PwnRequest.Empty() {
		return true
	}
	if w.Injection != nil && !w.Injection.Empty() {
		return true
	}
	return len(w.SelfHosted) > 0 || len(w.Violations) > 0
}

// ScanResult represents the overall result of a scan run.
type ScanResult struct {
	Repository     string           `json:"repository"`
	ScanTime       time.Time        `json:"scanTime"`
	Duration       time.Duration    `json:"duration"`
	WorkflowsCount int              `json:"workflowsCount"`
	Workflows      []WorkflowReport `json:"workflows"`
	Summary        ResultSummary    `json:"summary"`
}

// ResultSummary counts findings by category.
type ResultSummary struct {
	PwnRequests int `json:"pwnRequests"`
	Injections  int `json:"injections"`
	SelfHosted  int `json:"selfHosted"`
	Total       int `json:"total"`
}

// CalculateSummary computes the summary counts for a set of workflow reports.
func CalculateSummary(workflows []WorkflowReport) ResultSummary {
	summary := ResultSummary{}
	for _, wf := range workflows {
		if wf.PwnRequest != nil && !wf.PwnRequest.Empty() {
			summary.PwnRequests += len(wf.PwnRequest.Candidates)
		}
		if wf.Injection != nil && !wf.Injection.Empty() {
			summary.Injections += len(wf.Injection.Jobs)
		}
		summary.SelfHosted += len(wf.SelfHosted)
	}
	summary.Total = summary.PwnRequests + summary.Injections + summary.SelfHosted
	return summary
}

// Generator creates a formatted report from scan results
type Generator struct {
	Result   ScanResult
	Format   string
	Verbose  bool
	FilePath string
}

// NewGenerator creates a new report generator
func NewGenerator(result ScanResult, format string, verbose bool, filePath string) *Generator {
	return &Generator{
		Result:   result,
		Format:   format,
		Verbose:  verbose,
		FilePath: filePath,
	}
}

// Generate creates and outputs the report in the specified format
func (g *Generator) Generate() error {
	switch strings.ToLower(g.Format) {
	case constants.OutputFormatCLI:
		return g.generateCLIReport()
	case constants.OutputFormatJSON:
		return g.generateJSONReport()
	case constants.OutputFormatMarkdown:
		return g.generateMarkdownReport()
	default:
		return fmt.Errorf("unsupported report format: %s", g.Format)
	}
}

// generateCLIReport creates a colorized terminal report
func (g *Generator) generateCLIReport() error {
	titleStyle := color.New(color.FgHiCyan, color.Bold)
	subtitleStyle := color.New(color.FgCyan, color.Bold)
	infoStyle := color.New(color.FgBlue)
	successStyle := color.New(color.FgGreen, color.Bold)
	highStyle := color.New(color.FgHiRed, color.Bold)
	mediumStyle := color.New(color.FgHiYellow, color.Bold)
	unknownStyle := color.New(color.FgYellow)

	fmt.Println()
	titleStyle.Println("╔═══════════════════════════════════════════╗")
	titleStyle.Println("║            FORKRISK SCAN RESULTS          ║")
	titleStyle.Println("╚═══════════════════════════════════════════╝")

	fmt.Println()
	subtitleStyle.Println("► SCAN INFORMATION")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	infoStyle.Printf("%-20s ", "Repository:")
	fmt.Println(g.Result.Repository)
	infoStyle.Printf("%-20s ", "Scan Time:")
	fmt.Println(g.Result.ScanTime.Format(time.RFC1123))
	infoStyle.Printf("%-20s ", "Duration:")
	fmt.Println(g.Result.Duration.Round(time.Millisecond))
	infoStyle.Printf("%-20s ", "Workflows Analyzed:")
	fmt.Println(g.Result.WorkflowsCount)

	fmt.Println()
	subtitleStyle.Println("► SUMMARY")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Category", "Count"})
	table.SetBorder(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold},
		tablewriter.Colors{tablewriter.Bold},
	)
	table.Rich([]string{"Pwn Request Jobs", fmt.Sprintf("%d", g.Result.Summary.PwnRequests)}, []tablewriter.Colors{
		{tablewriter.Bold, tablewriter.FgHiRedColor},
		{tablewriter.Bold, tablewriter.FgHiRedColor},
	})
	table.Rich([]string{"Injection Jobs", fmt.Sprintf("%d", g.Result.Summary.Injections)}, []tablewriter.Colors{
		{tablewriter.Bold, tablewriter.FgHiYellowColor},
		{tablewriter.Bold, tablewriter.FgHiYellowColor},
	})
	table.Rich([]string{"Self-Hosted Jobs", fmt.Sprintf("%d", g.Result.Summary.SelfHosted)}, []tablewriter.Colors{
		{tablewriter.Bold, tablewriter.FgYellowColor},
		{tablewriter.Bold, tablewriter.FgYellowColor},
	})
	table.Rich([]string{"TOTAL", fmt.Sprintf("%d", g.Result.Summary.Total)}, []tablewriter.Colors{
		{tablewriter.Bold},
		{tablewriter.Bold},
	})
	table.Render()

	confidenceStyles := map[string]*color.Color{
		constants.ConfidenceHigh:    highStyle,
		constants.ConfidenceMedium:  mediumStyle,
		constants.ConfidenceUnknown: unknownStyle,
	}

	printed := false
	for _, wf := range g.Result.Workflows {
		if !wf.HasFindings() {
			continue
		}
		printed = true

		fmt.Println()
		subtitleStyle.Printf("► %s\n", wf.FileName)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		if wf.PwnRequest != nil && !wf.PwnRequest.Empty() {
			highStyle.Println("■ PWN REQUEST CANDIDATES")
			infoStyle.Printf("  %-14s ", "Triggers:")
			fmt.Println(strings.Join(wf.PwnRequest.Triggers, ", "))
			for _, jobName := range sortedCheckoutJobs(wf.PwnRequest.Candidates) {
				jc := wf.PwnRequest.Candidates[jobName]
				style, ok := confidenceStyles[jc.Confidence]
				if !ok {
					style = unknownStyle
				}
				fmt.Printf("  Job %q: ", jobName)
				style.Printf("%s", jc.Confidence)
				if jc.Gated {
					fmt.Print(" (gated)")
				}
				fmt.Println()
				if jc.IfCheck != "" {
					infoStyle.Printf("  %-14s ", "Job Guard:")
					fmt.Println(jc.IfCheck)
				}
				for _, obs := range jc.Steps {
					fmt.Printf("    - step %q checks out ref %q", obs.StepName, obs.Ref)
					if obs.IfCheck != "" {
						fmt.Printf(" [%s]", obs.IfCheck)
					}
					fmt.Println()
				}
			}
			fmt.Println()
		}

		if wf.Injection != nil && !wf.Injection.Empty() {
			mediumStyle.Println("■ SCRIPT INJECTION CANDIDATES")
			infoStyle.Printf("  %-14s ", "Triggers:")
			fmt.Println(strings.Join(wf.Injection.Triggers, ", "))
			for _, jobName := range sortedInjectionJobs(wf.Injection.Jobs) {
				ji := wf.Injection.Jobs[jobName]
				fmt.Printf("  Job %q:\n", jobName)
				if ji.IfCheck != "" {
					infoStyle.Printf("  %-14s ", "Job Guard:")
					fmt.Println(ji.IfCheck)
				}
				for _, stepName := range sortedStepNames(ji.Steps) {
					si := ji.Steps[stepName]
					fmt.Printf("    - step %q: %s", stepName, strings.Join(si.Variables, ", "))
					if si.Severity != "" {
						fmt.Printf(" (%s)", si.Severity)
					}
					fmt.Println()
				}
			}
			fmt.Println()
		}

		if len(wf.SelfHosted) > 0 {
			unknownStyle.Println("■ SELF-HOSTED RUNNERS")
			for _, sh := range wf.SelfHosted {
				fmt.Printf("    - job %q runs on %s\n", sh.JobName, strings.Join(sh.Labels, ", "))
			}
		}

		if len(wf.Violations) > 0 {
			mediumStyle.Println("■ POLICY VIOLATIONS")
			for _, v := range wf.Violations {
				fmt.Printf("    - %s\n", v)
			}
		}
	}

	if !printed {
		fmt.Println()
		successStyle.Println("✅ NO RISKY WORKFLOWS FOUND!")
		fmt.Println("No pwn-request, injection, or self-hosted findings in the analyzed workflows.")
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	return nil
}

// generateJSONReport creates a JSON report
func (g *Generator) generateJSONReport() error {
	data, err := json.MarshalIndent(g.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if g.FilePath != "" {
		err = os.WriteFile(g.FilePath, data, 0644)
		if err != nil {
			return ferrors.NewReportError("failed to write JSON report", err, g.FilePath)
		}
		fmt.Printf("JSON report written to %s\n", g.FilePath)
	} else {
		fmt.Println(string(data))
	}

	return nil
}

// generateMarkdownReport creates a Markdown report
func (g *Generator) generateMarkdownReport() error {
	var b strings.Builder

	b.WriteString("# Forkrisk Scan Report\n\n")
	b.WriteString("## Scan Information\n\n")
	b.WriteString(fmt.Sprintf("- **Repository:** %s\n", g.Result.Repository))
	b.WriteString(fmt.Sprintf("- **Scan Time:** %s\n", g.Result.ScanTime.Format(time.RFC1123)))
	b.WriteString(fmt.Sprintf("- **Duration:** %s\n", g.Result.Duration.Round(time.Millisecond)))
	b.WriteString(fmt.Sprintf("- **Workflows Analyzed:** %d\n", g.Result.WorkflowsCount))

	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Category | Count |\n")
	b.WriteString("|----------|-------|\n")
	b.WriteString(fmt.Sprintf("| 🔴 Pwn Request Jobs | %d |\n", g.Result.Summary.PwnRequests))
	b.WriteString(fmt.Sprintf("| 🟠 Injection Jobs   | %d |\n", g.Result.Summary.Injections))
	b.WriteString(fmt.Sprintf("| 🟡 Self-Hosted Jobs | %d |\n", g.Result.Summary.SelfHosted))
	b.WriteString(fmt.Sprintf("| **Total**           | %d |\n", g.Result.Summary.Total))

	anyFindings := false
	for _, wf := range g.Result.Workflows {
		if !wf.HasFindings() {
			continue
		}
		anyFindings = true

		b.WriteString(fmt.Sprintf("\n## `%s`\n", wf.FileName))

		if wf.PwnRequest != nil && !wf.PwnRequest.Empty() {
			b.WriteString("\n### 🔴 Pwn Request Candidates\n\n")
			b.WriteString(fmt.Sprintf("- **Triggers:** %s\n\n", strings.Join(wf.PwnRequest.Triggers, ", ")))
			b.WriteString("| Job | Confidence | Gated | Checked-Out Ref | Guard |\n")
			b.WriteString("|-----|------------|-------|-----------------|-------|\n")
			for _, jobName := range sortedCheckoutJobs(wf.PwnRequest.Candidates) {
				jc := wf.PwnRequest.Candidates[jobName]
				for _, obs := range jc.Steps {
					guard := obs.IfCheck
					if guard == "" {
						guard = jc.IfCheck
					}
					b.WriteString(fmt.Sprintf("| `%s` | %s | %t | `%s` | %s |\n",
						jobName, jc.Confidence, jc.Gated, obs.Ref, guard))
				}
			}
		}

		if wf.Injection != nil && !wf.Injection.Empty() {
			b.WriteString("\n### 🟠 Script Injection Candidates\n\n")
			b.WriteString(fmt.Sprintf("- **Triggers:** %s\n\n", strings.Join(wf.Injection.Triggers, ", ")))
			b.WriteString("| Job | Step | Variables | Severity |\n")
			b.WriteString("|-----|------|-----------|----------|\n")
			for _, jobName := range sortedInjectionJobs(wf.Injection.Jobs) {
				ji := wf.Injection.Jobs[jobName]
				for _, stepName := range sortedStepNames(ji.Steps) {
					si := ji.Steps[stepName]
					b.WriteString(fmt.Sprintf("| `%s` | `%s` | `%s` | %s |\n",
						jobName, stepName, strings.Join(si.Variables, ", "), si.Severity))
				}
			}
		}

		if len(wf.SelfHosted) > 0 {
			b.WriteString("\n### 🟡 Self-Hosted Runners\n\n")
			for _, sh := range wf.SelfHosted {
				b.WriteString(fmt.Sprintf("- Job `%s` runs on `%s`\n", sh.JobName, strings.Join(sh.Labels, ", ")))
			}
		}

		if len(wf.Violations) > 0 {
			b.WriteString("\n### Policy Violations\n\n")
			for _, v := range wf.Violations {
				b.WriteString(fmt.Sprintf("- %s\n", v))
			}
		}

		if g.Verbose && len(wf.Actions) > 0 {
			b.WriteString("\n### Referenced Actions\n\n")
			keys := make([]string, 0, len(wf.Actions))
			for k := range wf.Actions {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b.WriteString(fmt.Sprintf("- `%s`\n", k))
			}
		}
	}

	if !anyFindings {
		b.WriteString("\n## ✅ No Risky Workflows Found\n\n")
		b.WriteString("No pwn-request, injection, or self-hosted findings in the analyzed workflows.\n")
	}

	b.WriteString("\n---\n")
	b.WriteString(fmt.Sprintf("Generated by %s v%s - %s\n", constants.AppName, constants.AppVersion, constants.AppUsage))

	if g.FilePath != "" {
		err := os.WriteFile(g.FilePath, []byte(b.String()), 0644)
		if err != nil {
			return ferrors.NewReportError("failed to write Markdown report", err, g.FilePath)
		}
		fmt.Printf("Markdown report written to %s\n", g.FilePath)
	} else {
		fmt.Println(b.String())
	}

	return nil
}

func sortedCheckoutJobs(m map[string]*analysis.JobCheckout) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedInjectionJobs(m map[string]*analysis.JobInjection) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStepNames(m map[string]*analysis.StepInjection) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
