// Package workflow wraps a single GitHub Actions workflow file: the raw
// bytes, the parsed YAML structure, and the Job/Step object model the
// analysis engine walks. One Workflow and everything it owns belongs to
// exactly one analysis pass; guard evaluation memoizes into the instance,
// so instances must not be shared across concurrent analyses.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Workflow is the wrapper handed to the analysis engine by the enumeration
// layer: raw document text plus its structured parse and identifying
// metadata.
type Workflow struct {
	RepoName string
	FileName string
	// Branch is set when the file was fetched from a non-default branch.
	Branch string
	// SpecialPath is set when the document came from a non-default
	// location, e.g. resolved through a workflow-call reference.
	SpecialPath string

	Raw []byte
	Doc *Document

	valid    bool
	parseErr error
}

// Document is the structured parse of a workflow file.
type Document struct {
	Name string                 `yaml:"name"`
	On   TriggerSpec            `yaml:"on"`
	Env  map[string]interface{} `yaml:"env"`
	Jobs map[string]*JobSpec    `yaml:"jobs"`

	// HasJobsSection distinguishes a missing jobs key from an empty one.
	// A document without any jobs section is structurally invalid; a null
	// or empty jobs mapping just yields no findings.
	HasJobsSection bool

	jobOrder []string
}

// JobSpec is the declared form of one job.
type JobSpec struct {
	Name        string                 `yaml:"name"`
	RunsOn      RunnerSpec             `yaml:"runs-on"`
	Needs       StringOrSlice          `yaml:"needs"`
	If          string                 `yaml:"if"`
	Uses        string                 `yaml:"uses"`
	Steps       []*StepSpec            `yaml:"steps"`
	Env         map[string]interface{} `yaml:"env"`
	Environment EnvironmentSpec        `yaml:"environment"`
	Strategy    *StrategySpec          `yaml:"strategy"`
	Permissions interface{}            `yaml:"permissions"`
	Secrets     interface{}            `yaml:"secrets"`
	With        map[string]interface{} `yaml:"with"`
}

// UnmarshalYAML accepts a job declared as a mapping or as a single-element
// sequence wrapping one; anchored job templates sometimes produce the
// latter shape.
func (j *JobSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("job must be a mapping (yaml kind %d)", node.Kind)
	}
	type plain JobSpec
	return node.Decode((*plain)(j))
}

// StepSpec is the declared form of one step.
type StepSpec struct {
	Name             string                 `yaml:"name"`
	ID               string                 `yaml:"id"`
	If               string                 `yaml:"if"`
	Uses             string                 `yaml:"uses"`
	Run              string                 `yaml:"run"`
	Shell            string                 `yaml:"shell"`
	With             map[string]interface{} `yaml:"with"`
	Env              map[string]interface{} `yaml:"env"`
	WorkingDirectory string                 `yaml:"working-directory"`
}

// New parses raw workflow bytes into a wrapper. Parse failures do not
// return an error here; they mark the wrapper invalid, and analysis
// construction refuses to proceed past an invalid wrapper.
func New(repoName, fileName string, raw []byte) *Workflow {
	w := &Workflow{
		RepoName: repoName,
		FileName: fileName,
		Raw:      raw,
	}
	doc := &Document{}
	if err := yaml.Unmarshal(raw, doc); err != nil {
		w.parseErr = err
		return w
	}
	w.Doc = doc
	w.valid = true
	return w
}

// Valid reports whether the document parsed into usable structure.
func (w *Workflow) Valid() bool {
	return w.valid
}

// ParseError returns the YAML error for an invalid wrapper, nil otherwise.
func (w *Workflow) ParseError() error {
	return w.parseErr
}

// JobNames returns job names in declaration order.
func (d *Document) JobNames() []string {
	return d.jobOrder
}

// UnmarshalYAML records job declaration order alongside the job mapping;
// map iteration order would otherwise make findings non-deterministic.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	type plain struct {
		Name string                 `yaml:"name"`
		On   TriggerSpec            `yaml:"on"`
		Env  map[string]interface{} `yaml:"env"`
		Jobs map[string]*JobSpec    `yaml:"jobs"`
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	d.Name = p.Name
	d.On = p.On
	d.Env = p.Env
	d.Jobs = p.Jobs

	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value != "jobs" {
			continue
		}
		d.HasJobsSection = true
		jobs := node.Content[i+1]
		if jobs.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j < len(jobs.Content)-1; j += 2 {
			d.jobOrder = append(d.jobOrder, jobs.Content[j].Value)
		}
	}
	return nil
}

// Output writes the raw document verbatim to dir/<repo-name>/<file-name>.
// I/O failure is reported through the error return and is never fatal to
// analysis; callers log it and move on.
func (w *Workflow) Output(dir string) error {
	target := filepath.Join(dir, w.RepoName)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return ferrors.NewIOError("failed to create output directory", err, target)
	}
	path := filepath.Join(target, w.FileName)
	if err := os.WriteFile(path, w.Raw, 0o644); err != nil {
		return ferrors.NewIOError("failed to write workflow file", err, path)
	}
	return nil
}

// FindWorkflows loads every workflow file under a repository checkout.
func FindWorkflows(repoPath string) ([]*Workflow, error) {
	workflowsDir := filepath.Join(repoPath, ".github", "workflows")
	if _, err := os.Stat(workflowsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("no .github/workflows directory found in %s", repoPath)
	}

	repoName := filepath.Base(repoPath)
	var workflows []*Workflow
	err := filepath.Walk(workflowsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".yml") && !strings.HasSuffix(info.Name(), ".yaml") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read workflow file %s: %w", path, err)
		}
		workflows = append(workflows, New(repoName, info.Name(), content))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error searching for workflow files: %w", err)
	}
	if len(workflows) == 0 {
		return nil, fmt.Errorf("no workflow files found in %s", workflowsDir)
	}
	return workflows, nil
}

// LoadFile loads a single workflow file from disk.
func LoadFile(filePath string) (*Workflow, error) {
	if !strings.HasSuffix(filePath, ".yml") && !strings.HasSuffix(filePath, ".yaml") {
		return nil, fmt.Errorf("file %s does not have a YAML extension (.yml or .yaml)", filePath)
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %s: %w", filePath, err)
	}
	repoName := filepath.Base(filepath.Dir(filePath))
	return New(repoName, filepath.Base(filePath), content), nil
}
