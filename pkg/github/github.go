// Package github fetches workflow files from remote repositories so a scan
// can run without a full local clone.
package github

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/go-github/v53/github"
	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
	"golang.org/x/oauth2"
)

// Client represents a GitHub API client
type Client struct {
	client *github.Client
	ctx    context.Context
}

// NewClient creates a new GitHub API client. It authenticates with
// GITHUB_TOKEN when set, otherwise it runs unauthenticated and rate limited.
func NewClient() *Client {
	ctx := context.Background()
	var client *github.Client

	token := os.Getenv("GITHUB_TOKEN")
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(ctx, ts)
		client = github.NewClient(tc)
	} else {
		client = github.NewClient(nil)
	}

	return &Client{
		client: client,
		ctx:    ctx,
	}
}

// ParseRepositoryURL parses a GitHub repository URL
func ParseRepositoryURL(repoURL string) (owner, repo string, err error) {
	// Handle URLs like https://github.com/owner/repo
	if strings.HasPrefix(repoURL, "https://github.com/") {
		parts := strings.Split(strings.TrimPrefix(repoURL, "https://github.com/"), "/")
		if len(parts) >= 2 {
			owner = parts[0]
			repo = parts[1]
			repo = strings.TrimSuffix(repo, ".git")
			return owner, repo, nil
		}
	}

	// Handle git URLs like git@github.com:owner/repo.git
	if strings.HasPrefix(repoURL, "git@github.com:") {
		parts := strings.Split(strings.TrimPrefix(repoURL, "git@github.com:"), "/")
		if len(parts) >= 2 {
			owner = parts[0]
			repo = parts[1]
			repo = strings.TrimSuffix(repo, ".git")
			return owner, repo, nil
		}
	}

	return "", "", fmt.Errorf("invalid GitHub repository URL: %s", repoURL)
}

// DefaultBranch returns the repository's default branch name.
func (c *Client) DefaultBranch(owner, repo string) (string, error) {
	r, _, err := c.client.Repositories.Get(c.ctx, owner, repo)
	if err != nil {
		return "", ferrors.NewRepositoryError("failed to query repository", err, owner+"/"+repo)
	}
	return r.GetDefaultBranch(), nil
}

// CloneRepository clones a GitHub repository to a local directory
func (c *Client) CloneRepository(repoURL, destDir string) (string, error) {
	owner, repo, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return "", err
	}

	if destDir == "" {
		tempDir, err := os.MkdirTemp("", fmt.Sprintf("forkrisk-%s-%s", owner, repo))
		if err != nil {
			return "", fmt.Errorf("failed to create temporary directory: %w", err)
		}
		destDir = tempDir
	} else if _, err := os.Stat(destDir); os.IsNotExist(err) {
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cloneURL = fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", url.QueryEscape(token), owner, repo)
	}

	cmd := exec.Command("git", "clone", "--depth", "1", cloneURL, destDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", ferrors.NewRepositoryError(
			fmt.Sprintf("git clone failed: %s", string(output)), err, repoURL)
	}

	return destDir, nil
}

// WorkflowFile is a workflow fetched from the API, ready for analysis
// without touching disk.
type WorkflowFile struct {
	Name    string
	Path    string
	Content []byte
}

// FetchWorkflows lists and downloads every workflow file under
// .github/workflows at the given ref. An empty ref means the default branch.
func (c *Client) FetchWorkflows(owner, repo, ref string) ([]WorkflowFile, error) {
	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}

	_, directoryContent, _, err := c.client.Repositories.GetContents(
		c.ctx,
		owner,
		repo,
		".github/workflows",
		opts,
	)
	if err != nil {
		return nil, ferrors.NewRepositoryError("failed to list workflow files", err, owner+"/"+repo)
	}

	var files []WorkflowFile
	for _, content := range directoryContent {
		if content.GetType() != "file" {
			continue
		}
		name := content.GetName()
		if !strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml") {
			continue
		}

		fileContent, _, _, err := c.client.Repositories.GetContents(
			c.ctx,
			owner,
			repo,
			content.GetPath(),
			opts,
		)
		if err != nil {
			return nil, ferrors.NewRepositoryError(
				fmt.Sprintf("failed to get file %s", content.GetPath()), err, owner+"/"+repo)
		}

		decoded, err := fileContent.GetContent()
		if err != nil {
			return nil, ferrors.NewRepositoryError(
				fmt.Sprintf("failed to decode content of %s", content.GetPath()), err, owner+"/"+repo)
		}

		files = append(files, WorkflowFile{
			Name:    name,
			Path:    content.GetPath(),
			Content: []byte(decoded),
		})
	}

	return files, nil
}

// RepositoryInfo describes a repository discovered during organization
// enumeration.
type RepositoryInfo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	CloneURL      string `json:"clone_url"`
	DefaultBranch string `json:"default_branch"`
	IsPrivate     bool   `json:"is_private"`
	IsFork        bool   `json:"is_fork"`
	IsArchived    bool   `json:"is_archived"`
}

// RepositoryFilter selects which repositories of an organization to scan.
type RepositoryFilter struct {
	IncludePublic   bool
	IncludePrivate  bool
	IncludeForks    bool
	IncludeArchived bool
	// NameFilter is a regular expression matched against the bare repo name.
	NameFilter string
}

// DefaultRepositoryFilter scans public and private repositories but skips
// forks and archived repositories.
func DefaultRepositoryFilter() RepositoryFilter {
	return RepositoryFilter{
		IncludePublic:  true,
		IncludePrivate: true,
	}
}

// DiscoverOrganizationRepositories lists all repositories of an organization
// that pass the filter.
func (c *Client) DiscoverOrganizationRepositories(orgName string, filter RepositoryFilter) ([]RepositoryInfo, error) {
	var repositories []RepositoryInfo

	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		repos, resp, err := c.client.Repositories.ListByOrg(c.ctx, orgName, opts)
		if err != nil {
			return nil, ferrors.NewRepositoryError("failed to list organization repositories", err, orgName)
		}

		for _, repo := range repos {
			info := RepositoryInfo{
				Name:          repo.GetName(),
				FullName:      repo.GetFullName(),
				CloneURL:      repo.GetCloneURL(),
				DefaultBranch: repo.GetDefaultBranch(),
				IsPrivate:     repo.GetPrivate(),
				IsFork:        repo.GetFork(),
				IsArchived:    repo.GetArchived(),
			}
			if matchesFilter(info, filter) {
				repositories = append(repositories, info)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return repositories, nil
}

func matchesFilter(repo RepositoryInfo, filter RepositoryFilter) bool {
	if repo.IsPrivate && !filter.IncludePrivate {
		return false
	}
	if !repo.IsPrivate && !filter.IncludePublic {
		return false
	}
	if repo.IsFork && !filter.IncludeForks {
		return false
	}
	if repo.IsArchived && !filter.IncludeArchived {
		return false
	}
	if filter.NameFilter != "" {
		matched, err := regexp.MatchString(filter.NameFilter, repo.Name)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// DownloadWorkflowFiles fetches workflow files and mirrors them under
// destDir/.github/workflows, returning the written paths.
func (c *Client) DownloadWorkflowFiles(owner, repo, ref, destDir string) ([]string, error) {
	files, err := c.FetchWorkflows(owner, repo, ref)
	if err != nil {
		return nil, err
	}

	workflowsDir := filepath.Join(destDir, ".github", "workflows")
	if err := os.MkdirAll(workflowsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workflows directory: %w", err)
	}

	var downloadedFiles []string
	for _, file := range files {
		filePath := filepath.Join(workflowsDir, file.Name)
		if err := os.WriteFile(filePath, file.Content, 0644); err != nil {
			return nil, fmt.Errorf("failed to write file %s: %w", filePath, err)
		}
		downloadedFiles = append(downloadedFiles, filePath)
	}

	return downloadedFiles, nil
}
