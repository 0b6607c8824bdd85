package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/harekrishnarai/forkrisk/pkg/analysis"
	"github.com/harekrishnarai/forkrisk/pkg/concurrent"
	"github.com/harekrishnarai/forkrisk/pkg/config"
	"github.com/harekrishnarai/forkrisk/pkg/constants"
	"github.com/harekrishnarai/forkrisk/pkg/github"
	"github.com/harekrishnarai/forkrisk/pkg/organization"
	"github.com/harekrishnarai/forkrisk/pkg/policies"
	"github.com/harekrishnarai/forkrisk/pkg/report"
	"github.com/harekrishnarai/forkrisk/pkg/workflow"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    constants.AppName,
		Version: constants.AppVersion,
		Usage:   constants.AppUsage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"r"},
				Usage:   "Local repository path to scan",
			},
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "GitHub repository URL to scan",
			},
			&cli.StringFlag{
				Name:    "workflow",
				Aliases: []string{"w"},
				Usage:   "Path to a single workflow file to scan",
			},
			&cli.StringFlag{
				Name:  "branch",
				Usage: "Branch to fetch workflows from (defaults to the repository default branch)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format (cli, json, markdown)",
			},
			&cli.StringFlag{
				Name:    "output-file",
				Aliases: []string{"f"},
				Usage:   "Output file path (if not specified, prints to stdout)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path (.forkrisk.yml)",
			},
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "Custom Rego policy file or directory",
			},
			&cli.BoolFlag{
				Name:  "bypass",
				Usage: "Analyze checkouts and injection even without a risky trigger",
			},
			&cli.StringFlag{
				Name:  "min-confidence",
				Usage: "Minimum pwn-request confidence to report (HIGH, MEDIUM, UNKNOWN)",
			},
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "Directory to re-emit analyzed workflow files into",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Maximum concurrent workers (0 = CPU count)",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable progress reporting",
			},
			&cli.StringFlag{
				Name:  "temp-dir",
				Usage: "Temporary directory for repository clone",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Include referenced actions in the report",
			},
		},
		Action: scan,
		Commands: []*cli.Command{
			{
				Name:      "org",
				Usage:     "Scan every repository of a GitHub organization",
				ArgsUsage: "<organization>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Configuration file path (.forkrisk.yml)",
					},
					&cli.StringFlag{
						Name:    "output-file",
						Aliases: []string{"f"},
						Usage:   "JSON output file path (if not specified, prints to stdout)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Maximum concurrent repository workers",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "include-forks",
						Usage: "Include forked repositories",
					},
					&cli.BoolFlag{
						Name:  "include-archived",
						Usage: "Include archived repositories",
					},
					&cli.StringFlag{
						Name:  "name-filter",
						Usage: "Regular expression to filter repository names",
					},
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "Disable progress reporting",
					},
				},
				Action: scanOrganization,
			},
			{
				Name:  "init-policy",
				Usage: "Create an example policy file",
				Action: func(c *cli.Context) error {
					outputPath := c.Args().First()
					if outputPath == "" {
						outputPath = "policies/example.rego"
					}

					fmt.Printf("Creating example policy file at %s...\n", outputPath)
					if err := policies.CreateExamplePolicy(outputPath); err != nil {
						return fmt.Errorf("failed to create example policy: %w", err)
					}

					fmt.Println("Example policy file created successfully!")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func scan(c *cli.Context) error {
	startTime := time.Now()

	repoPath := c.String("repo")
	repoURL := c.String("url")
	workflowFile := c.String("workflow")

	if repoPath == "" && repoURL == "" && workflowFile == "" {
		return fmt.Errorf(constants.ErrNoInputSpecified)
	}

	searchDir := repoPath
	cfg, err := config.LoadConfig(c.String("config"), searchDir)
	if err != nil {
		return fmt.Errorf("%s: %w", constants.ErrConfigLoadFailed, err)
	}

	// CLI overrides config
	if format := c.String("output"); format != "" {
		cfg.Output.Format = format
	}
	if file := c.String("output-file"); file != "" {
		cfg.Output.File = file
	}
	if min := c.String("min-confidence"); min != "" {
		cfg.Output.MinConfidence = min
	}
	if exportDir := c.String("export-dir"); exportDir != "" {
		cfg.Output.ExportDir = exportDir
	}
	bypass := c.Bool("bypass") || cfg.Analysis.Bypass

	fmt.Printf("🔍 %s - %s\n", constants.AppName, constants.AppUsage)
	fmt.Println("=======================================")

	// Acquire workflows
	var workflows []*workflow.Workflow
	repoLabel := repoPath

	switch {
	case workflowFile != "":
		fmt.Printf("Scanning single workflow file %s...\n", workflowFile)
		wf, err := workflow.LoadFile(workflowFile)
		if err != nil {
			return fmt.Errorf("%s: %w", constants.ErrWorkflowLoadFailed, err)
		}
		workflows = append(workflows, wf)
		repoLabel = workflowFile

	case repoURL != "":
		fmt.Printf("Cloning repository from %s...\n", repoURL)
		client := github.NewClient()
		localPath, err := client.CloneRepository(repoURL, c.String("temp-dir"))
		if err != nil {
			return fmt.Errorf("%s: %w", constants.ErrRepoCloneFailed, err)
		}
		if c.String("temp-dir") == "" {
			defer os.RemoveAll(localPath)
		}

		fmt.Printf("Scanning workflows in %s...\n", localPath)
		workflows, err = workflow.FindWorkflows(localPath)
		if err != nil {
			return fmt.Errorf("failed to find workflow files: %w", err)
		}
		repoLabel = repoURL

	default:
		fmt.Printf("Scanning workflows in %s...\n", repoPath)
		workflows, err = workflow.FindWorkflows(repoPath)
		if err != nil {
			return fmt.Errorf("failed to find workflow files: %w", err)
		}
	}

	// Apply config exclusions
	kept := workflows[:0]
	for _, wf := range workflows {
		if cfg.ShouldIgnoreWorkflow(wf.FileName) {
			continue
		}
		kept = append(kept, wf)
	}
	workflows = kept

	fmt.Printf("Found %d workflow files.\n", len(workflows))

	// Load custom policies if specified
	var policyEngine *policies.Engine
	policyPaths := cfg.Policies
	if policyPath := c.String("policy"); policyPath != "" {
		policyPaths = append(policyPaths, policyPath)
	}
	if len(policyPaths) > 0 {
		var policyFiles []string
		for _, path := range policyPaths {
			files, err := policies.LoadPolicyFiles(path)
			if err != nil {
				return fmt.Errorf("failed to load policy files: %w", err)
			}
			policyFiles = append(policyFiles, files...)
		}

		fmt.Printf("Loaded %d policy files.\n", len(policyFiles))
		policyEngine = policies.NewEngine(policyFiles)
	}

	opts := &analysis.Options{
		RiskyTriggers:    cfg.RiskyTriggers(),
		HostedLabels:     cfg.HostedLabels(),
		ExtraGateActions: cfg.Analysis.ExtraGateActions,
		NonDefaultBranch: c.String("branch"),
	}

	procConfig := concurrent.DefaultProcessorConfig()
	procConfig.MaxWorkers = c.Int("workers")
	procConfig.ShowProgress = !c.Bool("no-progress")

	processor := concurrent.NewConcurrentProcessor(procConfig)
	reports, err := processor.ProcessWorkflows(context.Background(), workflows, opts, bypass, policyEngine)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	// Drop pwn-request candidates below the configured confidence floor.
	for i := range reports {
		pr := reports[i].PwnRequest
		if pr == nil {
			continue
		}
		for jobName, candidate := range pr.Candidates {
			if !cfg.MeetsConfidence(candidate.Confidence) {
				delete(pr.Candidates, jobName)
			}
		}
		if pr.Empty() {
			reports[i].PwnRequest = nil
		}
	}

	if exportDir := cfg.Output.ExportDir; exportDir != "" {
		exported := 0
		for _, wf := range workflows {
			if err := wf.Output(exportDir); err == nil {
				exported++
			}
		}
		fmt.Printf("Exported %d workflow files to %s.\n", exported, exportDir)
	}

	result := report.ScanResult{
		Repository:     repoLabel,
		ScanTime:       startTime,
		Duration:       time.Since(startTime),
		WorkflowsCount: len(workflows),
		Workflows:      reports,
		Summary:        report.CalculateSummary(reports),
	}

	outputFile := cfg.Output.File
	if cfg.Output.Format != constants.OutputFormatCLI && outputFile == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputFile = fmt.Sprintf("%s-report-%s.%s", constants.AppName, timestamp, extensionFor(cfg.Output.Format))
	}

	generator := report.NewGenerator(result, cfg.Output.Format, c.Bool("verbose"), outputFile)
	if err := generator.Generate(); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	fmt.Printf("\n✅ Scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("Found %d risky jobs (%d pwn request, %d injection, %d self-hosted)\n",
		result.Summary.Total, result.Summary.PwnRequests, result.Summary.Injections, result.Summary.SelfHosted)

	return nil
}

func scanOrganization(c *cli.Context) error {
	orgName := c.Args().First()
	if orgName == "" {
		return fmt.Errorf("organization name is required")
	}

	cfg, err := config.LoadConfig(c.String("config"), "")
	if err != nil {
		return fmt.Errorf("%s: %w", constants.ErrConfigLoadFailed, err)
	}

	filter := github.DefaultRepositoryFilter()
	filter.IncludeForks = c.Bool("include-forks")
	filter.IncludeArchived = c.Bool("include-archived")
	filter.NameFilter = c.String("name-filter")

	analyzer := organization.NewAnalyzer(github.NewClient(), cfg, c.Int("workers"), !c.Bool("no-progress"))
	result, err := analyzer.AnalyzeOrganization(context.Background(), orgName, filter)
	if err != nil {
		return fmt.Errorf("organization scan failed: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if outputFile := c.String("output-file"); outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		fmt.Printf("Organization report written to %s\n", outputFile)
	} else {
		fmt.Println(string(data))
	}

	fmt.Printf("\n✅ Scanned %d repositories (%d analyzed, %d skipped) in %s\n",
		result.TotalRepositories, result.AnalyzedRepositories, result.SkippedRepositories,
		result.Duration.Round(time.Millisecond))

	return nil
}

func extensionFor(format string) string {
	if format == constants.OutputFormatMarkdown {
		return "md"
	}
	return format
}
