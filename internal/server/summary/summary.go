// Package summary turns a user's aggregated activity into a productivity
// digest. The narrative itself comes from a pluggable Summarizer so the
// text generation backend can change without touching aggregation.
package summary

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/devlens/devlens/internal/logging"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/devlens/devlens/internal/server/repositories/activities"
)

// defaultWindow is the lookback for a digest when the caller does not give
// one.
const defaultWindow = 7 * 24 * time.Hour

// Digest is the aggregate view handed to the Summarizer.
type Digest struct {
	UserID     string         `json:"user_id"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySource   map[string]int `json:"by_source"`
	BusiestDay string         `json:"busiest_day,omitempty"`
}

// Summary is the generated narrative plus the digest it was built from.
type Summary struct {
	Digest          *Digest  `json:"digest"`
	Text            string   `json:"text"`
	Highlights      []string `json:"highlights,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Summarizer produces the narrative for a digest.
type Summarizer interface {
	Summarize(ctx context.Context, d *Digest) (*Summary, error)
}

type Service struct {
	acts       activities.Repository
	summarizer Summarizer
	log        logging.Logger
	now        func() time.Time
}

func New(acts activities.Repository, summarizer Summarizer, log logging.Logger) *Service {
	return &Service{acts: acts, summarizer: summarizer, log: log, now: time.Now}
}

// Build aggregates the user's activity over the window and runs the
// summarizer. A zero window uses the default week.
func (s *Service) Build(ctx context.Context, userID string, window time.Duration) (*Summary, error) {
	if window <= 0 {
		window = defaultWindow
	}
	to := s.now()
	from := to.Add(-window)

	stats, err := s.acts.Stats(ctx, userID, from)
	if err != nil {
		return nil, fmt.Errorf("error aggregating activity: %w", err)
	}

	d := &Digest{
		UserID:     userID,
		From:       from,
		To:         to,
		Total:      stats.Total,
		ByType:     stats.ByType,
		BySource:   stats.BySource,
		BusiestDay: stats.BusiestDay,
	}

	return s.summarizer.Summarize(ctx, d)
}

// TemplateSummarizer renders the digest into plain prose without any
// external service. It is the fallback backend and the one used in tests.
type TemplateSummarizer struct{}

func (TemplateSummarizer) Summarize(ctx context.Context, d *Digest) (*Summary, error) {
	out := &Summary{Digest: d}

	if d.Total == 0 {
		out.Text = "No tracked activity in this period. Connect an integration or check integration health."
		return out, nil
	}

	days := int(d.To.Sub(d.From).Hours() / 24)
	if days < 1 {
		days = 1
	}
	out.Text = fmt.Sprintf("You logged %d activities across %d sources over the last %d days.",
		d.Total, len(d.BySource), days)

	for _, typ := range sortedKeys(d.ByType) {
		out.Highlights = append(out.Highlights, fmt.Sprintf("%d %s", d.ByType[typ], typeLabel(typ, d.ByType[typ])))
	}
	if d.BusiestDay != "" {
		out.Highlights = append(out.Highlights, "busiest day: "+d.BusiestDay)
	}

	if meetings := d.ByType[models.ActivityMeeting]; days > 0 && meetings > days*4 {
		out.Recommendations = append(out.Recommendations,
			"Heavy meeting load this period; consider blocking focus time.")
	}
	if d.ByType[models.ActivityCommit] == 0 && d.BySource[string(models.ProviderGitHub)] > 0 {
		out.Recommendations = append(out.Recommendations,
			"No commits landed this period despite GitHub activity.")
	}

	return out, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func typeLabel(typ string, n int) string {
	labels := map[string][2]string{
		models.ActivityCommit:      {"commit", "commits"},
		models.ActivityPullRequest: {"pull request", "pull requests"},
		models.ActivityIssue:       {"issue", "issues"},
		models.ActivityPageEdit:    {"page edit", "page edits"},
		models.ActivityMessages:    {"message burst", "message bursts"},
		models.ActivityMeeting:     {"meeting", "meetings"},
	}
	pair, ok := labels[typ]
	if !ok {
		return typ
	}
	if n == 1 {
		return pair[0]
	}
	return pair[1]
}
