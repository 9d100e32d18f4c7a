package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

const githubAPIURL = "https://api.github.com"

// GitHub wraps the GitHub REST API for the commits, pull requests, and
// issues a user authored since a cursor.
type GitHub struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewGitHub(token string) *GitHub {
	return &GitHub{token: token, baseURL: githubAPIURL, client: newHTTPClient()}
}

type GitHubCommit struct {
	SHA        string
	Message    string
	Repo       string
	URL        string
	AuthoredAt time.Time
}

type GitHubPullRequest struct {
	Number    int
	Title     string
	Repo      string
	URL       string
	State     string
	UpdatedAt time.Time
}

type GitHubIssue struct {
	Number    int
	Title     string
	Repo      string
	URL       string
	State     string
	UpdatedAt time.Time
}

// Login returns the authenticated user's login name.
func (g *GitHub) Login(ctx context.Context) (string, error) {
	var out struct {
		Login string `json:"login"`
	}
	if err := g.get(ctx, "/user", nil, &out); err != nil {
		return "", err
	}
	return out.Login, nil
}

// FetchCommits searches commits authored by login since the cursor.
func (g *GitHub) FetchCommits(ctx context.Context, login string, since time.Time) ([]GitHubCommit, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("author:%s committer-date:>=%s", login, fmtDay(since)))
	q.Set("sort", "committer-date")
	q.Set("per_page", "100")

	var out struct {
		Items []struct {
			SHA     string `json:"sha"`
			HTMLURL string `json:"html_url"`
			Commit  struct {
				Message string `json:"message"`
				Author  struct {
					Date time.Time `json:"date"`
				} `json:"author"`
			} `json:"commit"`
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}

	if err := g.get(ctx, "/search/commits", q, &out); err != nil {
		return nil, err
	}

	commits := make([]GitHubCommit, 0, len(out.Items))
	for _, item := range out.Items {
		commits = append(commits, GitHubCommit{
			SHA:        item.SHA,
			Message:    item.Commit.Message,
			Repo:       item.Repository.FullName,
			URL:        item.HTMLURL,
			AuthoredAt: item.Commit.Author.Date,
		})
	}
	return commits, nil
}

// FetchPullRequests searches pull requests authored by login updated since
// the cursor.
func (g *GitHub) FetchPullRequests(ctx context.Context, login string, since time.Time) ([]GitHubPullRequest, error) {
	items, err := g.searchIssues(ctx, fmt.Sprintf("author:%s type:pr updated:>=%s", login, fmtDay(since)))
	if err != nil {
		return nil, err
	}

	prs := make([]GitHubPullRequest, 0, len(items))
	for _, item := range items {
		prs = append(prs, GitHubPullRequest{
			Number:    item.Number,
			Title:     item.Title,
			Repo:      repoFromIssueURL(item.RepositoryURL),
			URL:       item.HTMLURL,
			State:     item.State,
			UpdatedAt: item.UpdatedAt,
		})
	}
	return prs, nil
}

// FetchIssues searches issues authored by login updated since the cursor.
func (g *GitHub) FetchIssues(ctx context.Context, login string, since time.Time) ([]GitHubIssue, error) {
	items, err := g.searchIssues(ctx, fmt.Sprintf("author:%s type:issue updated:>=%s", login, fmtDay(since)))
	if err != nil {
		return nil, err
	}

	issues := make([]GitHubIssue, 0, len(items))
	for _, item := range items {
		issues = append(issues, GitHubIssue{
			Number:    item.Number,
			Title:     item.Title,
			Repo:      repoFromIssueURL(item.RepositoryURL),
			URL:       item.HTMLURL,
			State:     item.State,
			UpdatedAt: item.UpdatedAt,
		})
	}
	return issues, nil
}

type githubIssueItem struct {
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	HTMLURL       string    `json:"html_url"`
	State         string    `json:"state"`
	UpdatedAt     time.Time `json:"updated_at"`
	RepositoryURL string    `json:"repository_url"`
}

func (g *GitHub) searchIssues(ctx context.Context, query string) ([]githubIssueItem, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "updated")
	q.Set("per_page", "100")

	var out struct {
		Items []githubIssueItem `json:"items"`
	}
	if err := g.get(ctx, "/search/issues", q, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (g *GitHub) get(ctx context.Context, path string, query url.Values, v any) error {
	if g.token == "" {
		return missingToken(models.ProviderGitHub)
	}

	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return netError(models.ProviderGitHub, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(models.ProviderGitHub, resp.StatusCode, readSnippet(resp.Body, 512), resp.Header)
	}

	if err := decodeJSON(resp.Body, v); err != nil {
		return &Error{Provider: models.ProviderGitHub, Code: CodeAPIError, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// repoFromIssueURL extracts "owner/repo" from an API repository URL.
func repoFromIssueURL(u string) string {
	const marker = "/repos/"
	if i := strings.Index(u, marker); i >= 0 {
		return u[i+len(marker):]
	}
	return ""
}
