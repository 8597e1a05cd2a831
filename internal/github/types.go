package github

// RepositoryFile is a file fetched from or written to the contents
// API. SHA is the version token GitHub requires to authorize updates.
type RepositoryFile struct {
	Path    string
	Branch  string
	SHA     string
	Content string
}

// Issue is a tracked item from the issues API.
type Issue struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	URL    string  `json:"html_url"`
	Labels []Label `json:"labels"`

	// PullRequest is set when the "issue" is actually a PR; the issues
	// API returns both.
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

// Label is an issue label.
type Label struct {
	Name string `json:"name"`
}

// LabelNames returns the label names of the issue.
func (i Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// PushEvent is the only repo-host webhook payload ChillTask processes.
type PushEvent struct {
	Ref        string `json:"ref"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
			Name  string `json:"name"`
		} `json:"owner"`
	} `json:"repository"`
}

// RepoKey returns the owner/name key used by channel mappings.
func (p PushEvent) RepoKey() string {
	owner := p.Repository.Owner.Login
	if owner == "" {
		owner = p.Repository.Owner.Name
	}
	return owner + "/" + p.Repository.Name
}
