// Package analysis composes the workflow object model into whole-file
// analyses: trigger-risk classification, gate backtracking over the job
// graph, checkout/pwn-request detection, script-injection detection, and
// self-hosted-runner discovery. It performs static analysis only; the
// caller is responsible for any API queries that augment the results.
package analysis

import (
	"log"
	"strings"

	"github.com/harekrishnarai/forkrisk/pkg/constants"
	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
	"github.com/harekrishnarai/forkrisk/pkg/expr"
	"github.com/harekrishnarai/forkrisk/pkg/workflow"
)

// Options tunes an analysis pass. Zero values fall back to the constants
// package defaults.
type Options struct {
	// RiskyTriggers overrides the default risky-trigger set.
	RiskyTriggers []string
	// HostedLabels overrides the platform-hosted runner label allow-list.
	HostedLabels []string
	// ExtraGateActions extends the permission-gate action allow-list used
	// by step classification.
	ExtraGateActions []string
	// NonDefaultBranch records the branch the file was fetched from when
	// it is not the repository default.
	NonDefaultBranch string
}

// Analysis owns one parsed workflow file and everything derived from it.
// Guard evaluation memoizes into the owned Jobs/Steps, so an Analysis must
// not be shared across concurrent passes; parse a fresh one per goroutine.
type Analysis struct {
	wf        *workflow.Workflow
	jobs      []*workflow.Job
	byName    map[string]*workflow.Job
	evaluator *expr.Evaluator

	riskyTriggers []string
	hostedLabels  map[string]bool

	branch      string
	externalRef bool
	callees     []string
}

// New builds an analysis over a workflow wrapper. It fails fast with a
// document error when the wrapper is invalid or the document lacks a jobs
// section; every other failure mode degrades per-guard instead.
func New(wf *workflow.Workflow, opts *Options) (*Analysis, error) {
	if opts == nil {
		opts = &Options{}
	}
	if !wf.Valid() {
		return nil, ferrors.NewDocumentError("received invalid workflow", wf.ParseError(), wf.FileName)
	}
	if !wf.Doc.HasJobsSection {
		return nil, ferrors.NewDocumentError("workflow has no jobs section", nil, wf.FileName)
	}

	riskyTriggers := opts.RiskyTriggers
	if riskyTriggers == nil {
		riskyTriggers = constants.RiskyTriggers
	}
	hostedLabels := opts.HostedLabels
	if hostedLabels == nil {
		hostedLabels = constants.GitHubHostedLabels
	}
	var gateActions []string
	if len(opts.ExtraGateActions) > 0 {
		gateActions = append(gateActions, constants.GateActions...)
		gateActions = append(gateActions, opts.ExtraGateActions...)
	}

	a := &Analysis{
		wf:            wf,
		byName:        make(map[string]*workflow.Job),
		evaluator:     expr.NewEvaluator(riskyTriggers),
		riskyTriggers: riskyTriggers,
		hostedLabels:  make(map[string]bool, len(hostedLabels)),
	}
	for _, label := range hostedLabels {
		a.hostedLabels[strings.ToLower(label)] = true
	}

	for _, name := range wf.Doc.JobNames() {
		spec := wf.Doc.Jobs[name]
		if spec == nil {
			continue
		}
		job := workflow.NewJob(name, spec, a.evaluator, gateActions)
		a.jobs = append(a.jobs, job)
		a.byName[name] = job
	}

	if wf.SpecialPath != "" {
		a.externalRef = true
		a.branch = wf.Branch
	} else if opts.NonDefaultBranch != "" {
		a.branch = opts.NonDefaultBranch
	}

	return a, nil
}

// Workflow returns the wrapped workflow file.
func (a *Analysis) Workflow() *workflow.Workflow {
	return a.wf
}

// Jobs returns the job wrappers in declaration order.
func (a *Analysis) Jobs() []*workflow.Job {
	return a.jobs
}

// IsReferenced reports whether the document was fetched through a
// workflow-call reference rather than the repository's own tree.
func (a *Analysis) IsReferenced() bool {
	return a.externalRef
}

// Branch returns the non-default branch qualifier, empty on the default.
func (a *Analysis) Branch() string {
	return a.branch
}

// Callees lists reusable-workflow targets recorded during checkout
// analysis, so the caller can pull those definitions into the same scan.
func (a *Analysis) Callees() []string {
	return a.callees
}

// VulnerableTriggers returns every declared trigger in the risky set, in
// declaration order. A trigger whose types filter is exactly ["labeled"]
// is reported as "<trigger>:labeled": label-only activation needs a
// trusted actor to apply the label, a materially different exploitability
// profile. When alternate is non-empty it replaces the risky set, which is
// how HasTrigger asks about one specific trigger.
func (a *Analysis) VulnerableTriggers(alternate string) []string {
	risky := a.riskyTriggers
	if alternate != "" {
		risky = []string{alternate}
	}
	riskySet := make(map[string]bool, len(risky))
	for _, t := range risky {
		riskySet[t] = true
	}

	var out []string
	on := a.wf.Doc.On
	for _, name := range on.Names {
		if !riskySet[name] {
			continue
		}
		filter := on.Filters[name]
		if filter != nil && len(filter.Types) == 1 && filter.Types[0] == "labeled" {
			out = append(out, name+":labeled")
			continue
		}
		out = append(out, name)
	}
	return out
}

// HasTrigger reports whether the workflow declares the given trigger.
func (a *Analysis) HasTrigger(trigger string) bool {
	return len(a.VulnerableTriggers(trigger)) > 0
}

// BacktrackGate reports whether at least one of the named jobs is gated,
// directly or through its own dependencies. The needs graph is declared
// acyclic by the workflow format, but the visited set guarantees
// termination on malformed self-referential input: a revisited job counts
// as non-gating.
func (a *Analysis) BacktrackGate(needs ...string) bool {
	visited := make(map[string]bool)
	return a.backtrackGate(needs, visited)
}

func (a *Analysis) backtrackGate(needs []string, visited map[string]bool) bool {
	for _, name := range needs {
		if visited[name] {
			continue
		}
		visited[name] = true
		job, ok := a.byName[name]
		if !ok {
			continue
		}
		if job.Gated() {
			return true
		}
		if len(job.Dependencies()) > 0 && a.backtrackGate(job.Dependencies(), visited) {
			return true
		}
	}
	return false
}

// CheckRules returns false as soon as any job's deployment bindings match
// one of the given environment protection rules, meaning the platform
// configuration already blocks the flagged path, and true otherwise.
func (a *Analysis) CheckRules(gateRules []string) bool {
	for _, rule := range gateRules {
		for _, job := range a.jobs {
			for _, deployment := range job.Deployments {
				if strings.Contains(deployment, rule) {
					return false
				}
			}
		}
	}
	return true
}

// Output writes the raw workflow verbatim to dir/<repo>/<file>. I/O
// failure is logged and reported as false, never raised.
func (a *Analysis) Output(dir string) bool {
	if err := a.wf.Output(dir); err != nil {
		log.Printf("failed to write workflow %s/%s: %v", a.wf.RepoName, a.wf.FileName, err)
		return false
	}
	return true
}
