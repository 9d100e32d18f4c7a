package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devlens/devlens/internal/server/models"
	"github.com/devlens/devlens/internal/server/providers"
)

// GitHubPipeline pulls commits, pull requests, and issues.
type GitHubPipeline struct {
	// NewClient exists so tests can point the pipeline at a stub server.
	NewClient func(token string) *providers.GitHub
}

func NewGitHubPipeline() *GitHubPipeline {
	return &GitHubPipeline{NewClient: providers.NewGitHub}
}

func (p *GitHubPipeline) Provider() models.Provider { return models.ProviderGitHub }

func (p *GitHubPipeline) Run(ctx context.Context, userID, accessToken string, since time.Time) (*Batch, error) {
	client := p.NewClient(accessToken)

	login, err := client.Login(ctx)
	if err != nil {
		return nil, err
	}

	commits, err := client.FetchCommits(ctx, login, since)
	if err != nil {
		return nil, err
	}
	prs, err := client.FetchPullRequests(ctx, login, since)
	if err != nil {
		return nil, err
	}
	issues, err := client.FetchIssues(ctx, login, since)
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	for _, c := range commits {
		batch.Activities = append(batch.Activities, &models.Activity{
			UserID:      userID,
			Type:        models.ActivityCommit,
			Title:       firstLine(c.Message),
			Source:      models.ProviderGitHub,
			ExternalID:  "github_commit_" + c.SHA,
			ExternalURL: c.URL,
			Metadata:    map[string]any{"repo": c.Repo},
			CreatedAt:   c.AuthoredAt,
		})
	}
	for _, pr := range prs {
		batch.Activities = append(batch.Activities, &models.Activity{
			UserID:      userID,
			Type:        models.ActivityPullRequest,
			Title:       pr.Title,
			Source:      models.ProviderGitHub,
			ExternalID:  fmt.Sprintf("github_pr_%s_%d", pr.Repo, pr.Number),
			ExternalURL: pr.URL,
			Metadata:    map[string]any{"repo": pr.Repo, "state": pr.State},
			CreatedAt:   pr.UpdatedAt,
		})
	}
	for _, is := range issues {
		batch.Activities = append(batch.Activities, &models.Activity{
			UserID:      userID,
			Type:        models.ActivityIssue,
			Title:       is.Title,
			Source:      models.ProviderGitHub,
			ExternalID:  fmt.Sprintf("github_issue_%s_%d", is.Repo, is.Number),
			ExternalURL: is.URL,
			Metadata:    map[string]any{"repo": is.Repo, "state": is.State},
			CreatedAt:   is.UpdatedAt,
		})
	}

	batch.Raw = marshalRaw(map[string]any{"commits": commits, "pull_requests": prs, "issues": issues})
	return batch, nil
}

// NotionPipeline pulls recently edited pages.
type NotionPipeline struct {
	NewClient func(token string) *providers.Notion
}

func NewNotionPipeline() *NotionPipeline {
	return &NotionPipeline{NewClient: providers.NewNotion}
}

func (p *NotionPipeline) Provider() models.Provider { return models.ProviderNotion }

func (p *NotionPipeline) Run(ctx context.Context, userID, accessToken string, since time.Time) (*Batch, error) {
	client := p.NewClient(accessToken)

	pages, err := client.FetchEditedPages(ctx, since)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Raw: marshalRaw(pages)}
	for _, page := range pages {
		batch.Activities = append(batch.Activities, &models.Activity{
			UserID:      userID,
			Type:        models.ActivityPageEdit,
			Title:       page.Title,
			Source:      models.ProviderNotion,
			ExternalID:  "notion_page_" + page.ID + "_" + page.LastEditedAt.UTC().Format("2006-01-02"),
			ExternalURL: page.URL,
			CreatedAt:   page.LastEditedAt,
		})
	}
	return batch, nil
}

// SlackPipeline pulls per-day message bursts.
type SlackPipeline struct {
	NewClient func(token string) *providers.Slack
}

func NewSlackPipeline() *SlackPipeline {
	return &SlackPipeline{NewClient: providers.NewSlack}
}

func (p *SlackPipeline) Provider() models.Provider { return models.ProviderSlack }

func (p *SlackPipeline) Run(ctx context.Context, userID, accessToken string, since time.Time) (*Batch, error) {
	client := p.NewClient(accessToken)

	slackUser, err := client.Identity(ctx)
	if err != nil {
		return nil, err
	}

	bursts, err := client.FetchMessageBursts(ctx, slackUser, since)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Raw: marshalRaw(bursts)}
	for _, b := range bursts {
		day := b.Day.Format("2006-01-02")
		batch.Activities = append(batch.Activities, &models.Activity{
			UserID:     userID,
			Type:       models.ActivityMessages,
			Title:      fmt.Sprintf("%d messages in #%s", b.Count, b.Channel),
			Source:     models.ProviderSlack,
			ExternalID: fmt.Sprintf("slack_burst_%s_%s", b.Channel, day),
			Metadata:   map[string]any{"channel": b.Channel, "count": b.Count, "day": day},
			CreatedAt:  b.Day,
		})
	}
	return batch, nil
}

// CalendarPipeline pulls meetings from the primary calendar.
type CalendarPipeline struct {
	NewClient func(token string) *providers.Calendar

	now func() time.Time
}

func NewCalendarPipeline() *CalendarPipeline {
	return &CalendarPipeline{NewClient: providers.NewCalendar, now: time.Now}
}

func (p *CalendarPipeline) Provider() models.Provider { return models.ProviderCalendar }

func (p *CalendarPipeline) Run(ctx context.Context, userID, accessToken string, since time.Time) (*Batch, error) {
	client := p.NewClient(accessToken)

	events, err := client.FetchEvents(ctx, since, p.now())
	if err != nil {
		return nil, err
	}

	batch := &Batch{Raw: marshalRaw(events)}
	for _, ev := range events {
		minutes := int(ev.End.Sub(ev.Start).Minutes())
		batch.Activities = append(batch.Activities, &models.Activity{
			UserID:      userID,
			Type:        models.ActivityMeeting,
			Title:       ev.Summary,
			Source:      models.ProviderCalendar,
			ExternalID:  "calendar_event_" + ev.ID,
			ExternalURL: ev.Link,
			Metadata:    map[string]any{"duration_minutes": minutes},
			CreatedAt:   ev.Start,
		})
	}
	return batch, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

func marshalRaw(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
