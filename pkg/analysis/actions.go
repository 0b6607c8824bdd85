package analysis

import "strings"

// ReferencedAction is the decomposed form of one local action reference,
// so the composite action's own definition can be fetched and analyzed as
// part of the same attack surface.
type ReferencedAction struct {
	// Repo is the repository holding the action definition.
	Repo string `json:"repo"`
	// Path is the sub-path of the action inside the repository.
	Path string `json:"path"`
	// Ref is the pinned ref, empty when unpinned.
	Ref string `json:"ref"`
	// Local marks a ./ same-repository reference.
	Local bool `json:"local"`
}

// ExtractReferencedActions collects every step referencing a local
// composite action, keyed by the raw uses string. It returns nothing when
// the workflow has no risky trigger: an action only joins the attack
// surface when an external actor can cause it to run.
func (a *Analysis) ExtractReferencedActions() map[string]ReferencedAction {
	referenced := make(map[string]ReferencedAction)
	if len(a.VulnerableTriggers("")) == 0 {
		return referenced
	}

	for _, job := range a.jobs {
		for _, step := range job.Steps {
			if !step.IsActionRef {
				continue
			}
			if action, ok := decomposeActionRef(step.Spec.Uses, a.wf.RepoName); ok {
				referenced[step.Spec.Uses] = action
			}
		}
	}
	return referenced
}

// decomposeActionRef splits a uses reference into repository, sub-path and
// pinned ref. Docker references carry no analyzable definition.
func decomposeActionRef(uses, repoName string) (ReferencedAction, bool) {
	if uses == "" || strings.HasPrefix(uses, "docker://") {
		return ReferencedAction{}, false
	}

	path := uses
	ref := ""
	if at := strings.IndexByte(uses, '@'); at >= 0 {
		path = uses[:at]
		ref = uses[at+1:]
	}

	if strings.HasPrefix(path, "./") {
		return ReferencedAction{
			Repo:  repoName,
			Path:  strings.TrimPrefix(path, "./"),
			Ref:   ref,
			Local: true,
		}, true
	}

	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ReferencedAction{}, false
	}
	return ReferencedAction{
		Repo: parts[0] + "/" + parts[1],
		Path: strings.Join(parts[2:], "/"),
		Ref:  ref,
	}, true
}
