package analysis

import (
	"fmt"
	"strings"

	"github.com/harekrishnarai/forkrisk/pkg/constants"
	"github.com/harekrishnarai/forkrisk/pkg/workflow"
)

// SelfHostedJob names a job that can land on non-platform infrastructure,
// together with its declaration for downstream reporting.
type SelfHostedJob struct {
	JobName string            `json:"job_name"`
	Labels  []string          `json:"labels"`
	Spec    *workflow.JobSpec `json:"-"`
}

// SelfHosted returns every job whose runs-on can resolve to a self-hosted
// runner. Matrix-templated labels are expanded against the job's own
// strategy.matrix block, including values contributed by include entries;
// the job is reported if any resolved candidate is neither a hosted label
// nor a recognized larger-runner SKU.
func (a *Analysis) SelfHosted() []SelfHostedJob {
	var out []SelfHostedJob
	for _, job := range a.jobs {
		runner := &job.Spec.RunsOn
		if runner.Empty() {
			continue
		}
		if a.anySelfHosted(runner.AllLabels(), job.Spec) {
			out = append(out, SelfHostedJob{
				JobName: job.Name,
				Labels:  runner.AllLabels(),
				Spec:    job.Spec,
			})
		}
	}
	return out
}

func (a *Analysis) anySelfHosted(labels []string, spec *workflow.JobSpec) bool {
	resolving := make(map[string]bool)
	for _, label := range labels {
		if a.labelSelfHosted(label, spec, resolving) {
			return true
		}
	}
	return false
}

func (a *Analysis) labelSelfHosted(label string, spec *workflow.JobSpec, resolving map[string]bool) bool {
	if strings.Contains(label, "self-hosted") {
		return true
	}
	if m := constants.MatrixKeyPattern.FindStringSubmatch(label); m != nil {
		return a.matrixSelfHosted(m[1], spec, resolving)
	}
	lower := strings.ToLower(label)
	return !a.hostedLabels[lower] && !constants.LargerRunnerPattern.MatchString(lower)
}

// matrixSelfHosted resolves a matrix key against the job's strategy block
// and tests every candidate value. A key already being resolved is
// template-recursive and contributes no candidates; the resolving set
// guarantees termination the same way the visited set does for the needs
// graph.
func (a *Analysis) matrixSelfHosted(key string, spec *workflow.JobSpec, resolving map[string]bool) bool {
	if spec.Strategy == nil || spec.Strategy.Matrix == nil {
		return false
	}
	if resolving[key] {
		return false
	}
	resolving[key] = true
	for _, candidate := range spec.Strategy.Matrix.Values(key) {
		label, ok := candidate.(string)
		if !ok {
			label = fmt.Sprintf("%v", candidate)
		}
		if a.labelSelfHosted(label, spec, resolving) {
			return true
		}
	}
	return false
}
