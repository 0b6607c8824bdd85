package constants

import "regexp"

// Application constants
const (
	AppName    = "forkrisk"
	AppVersion = "0.1.0"
	AppUsage   = "GitHub Actions pwn-request and script-injection analyzer"

	// Default configuration values
	DefaultOutputFormat  = "cli"
	DefaultMinConfidence = "UNKNOWN"
	DefaultConfigFile    = ".forkrisk.yml"
	DefaultMaxWorkers    = 0   // 0 means use CPU count
	DefaultFileTimeout   = 30  // seconds, whole-file analysis
	DefaultTotalTimeout  = 300 // seconds

	// Supported output formats
	OutputFormatCLI      = "cli"
	OutputFormatJSON     = "json"
	OutputFormatMarkdown = "markdown"

	// Configuration file names
	ConfigFileYML      = ".forkrisk.yml"
	ConfigFileYAML     = ".forkrisk.yaml"
	ConfigFileBaseYML  = "forkrisk.yml"
	ConfigFileBaseYAML = "forkrisk.yaml"

	// Confidence levels for risk candidates
	ConfidenceHigh    = "HIGH"
	ConfidenceMedium  = "MEDIUM"
	ConfidenceUnknown = "UNKNOWN"

	// Common paths
	GitHubWorkflowsPath = ".github/workflows"

	// Error messages
	ErrNoInputSpecified   = "either --repo, --url, or --workflow must be specified"
	ErrConfigLoadFailed   = "failed to load configuration"
	ErrWorkflowLoadFailed = "failed to load workflow file"
	ErrRepoCloneFailed    = "failed to clone repository"
)

// RiskyTriggers is the set of workflow triggers that run with an elevated
// token while being reachable by an external actor. Membership here is
// configuration, not analysis logic; pkg/config can override it.
var RiskyTriggers = []string{
	"pull_request_target",
	"workflow_run",
	"issue_comment",
	"issues",
	"discussion",
	"discussion_comment",
	"fork",
	"watch",
}

// GitHubHostedLabels is the allow-list of runner labels that resolve to
// GitHub-managed infrastructure. Any label outside this list that also
// fails the larger-runner SKU pattern counts as self-hosted.
var GitHubHostedLabels = []string{
	"ubuntu-latest",
	"ubuntu-24.04",
	"ubuntu-22.04",
	"ubuntu-20.04",
	"windows-latest",
	"windows-2025",
	"windows-2022",
	"windows-2019",
	"macos-latest",
	"macos-latest-large",
	"macos-latest-xlarge",
	"macos-15",
	"macos-14",
	"macos-14-large",
	"macos-14-xlarge",
	"macos-13",
	"macos-13-large",
	"macos-13-xlarge",
	"macos-12",
	"macos-11",
}

// LargerRunnerPattern recognizes the {os}-{version}-{n}core-{mem}gb naming
// GitHub uses for paid larger hosted runners.
var LargerRunnerPattern = regexp.MustCompile(`^(windows|ubuntu)-(22\.04|20\.04|2019-2022)-(4|8|16|32|64)core-(16|32|64|128|256)gb$`)

// MatrixKeyPattern extracts the matrix variable name out of a templated
// runs-on label such as "${{ matrix.os }}".
var MatrixKeyPattern = regexp.MustCompile(`\$?{{\s*matrix\.([\w-]+)\s*}}`)

// GateActions lists actions whose presence in a job means an external actor
// cannot reach later steps without a maintainer-controlled check passing.
var GateActions = []string{
	"actions-cool/check-user-permission",
	"sushichop/action-repository-permission",
	"lannonbr/repo-permission-check-action",
	"xt0rted/pull-request-comment-branch",
	"trstringer/require-label-or-comment",
}

// GateScriptMarkers are fragments of inline script bodies that implement a
// permission or approval check by hand.
var GateScriptMarkers = []string{
	"getCollaboratorPermissionLevel",
	"checkCollaborator",
	"author_association",
	"listMembersInOrg",
	"getMembershipForUserInOrg",
}

// SinkActions lists actions that persist or execute attacker-influenced
// state with the workflow's token.
var SinkActions = []string{
	"stefanzweifel/git-auto-commit-action",
	"ad-m/github-push-action",
	"EndBug/add-and-commit",
	"peter-evans/create-pull-request",
	"docker/build-push-action",
	"goreleaser/goreleaser-action",
}

// SinkScriptMarkers are command fragments that execute code out of the
// checked-out tree, turning a mutable checkout into code execution.
var SinkScriptMarkers = []string{
	"npm install",
	"npm ci",
	"npm run",
	"npx ",
	"yarn",
	"pnpm install",
	"pip install",
	"bundle install",
	"make ",
	"mvn ",
	"gradle",
	"./gradlew",
	"go build",
	"go test",
	"go run",
	"cargo build",
	"cargo test",
	"cmake",
	"bash ./",
	"sh ./",
	"./scripts/",
}

// SuspiciousOutputNames are step/needs output leaf names that usually carry
// an attacker-derived commit or ref when populated from an API lookup.
var SuspiciousOutputNames = []string{
	"sha",
	"ref",
	"branch",
	"head",
	"commit",
	"merge_commit",
	"head_ref",
	"head_sha",
}

// Supported output formats list
var SupportedOutputFormats = []string{
	OutputFormatCLI,
	OutputFormatJSON,
	OutputFormatMarkdown,
}
