package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

const slackAPIURL = "https://slack.com/api"

// Slack wraps the Slack Web API. Slack reports most failures as HTTP 200
// with {"ok":false,"error":"..."}, so every call inspects the envelope
// before trusting the payload.
type Slack struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewSlack(token string) *Slack {
	return &Slack{token: token, baseURL: slackAPIURL, client: newHTTPClient()}
}

// SlackMessageBurst aggregates one day of a user's messages in one channel.
type SlackMessageBurst struct {
	Channel string
	Day     time.Time
	Count   int
}

// Identity returns the authed user's ID via auth.test.
func (s *Slack) Identity(ctx context.Context) (string, error) {
	var out struct {
		slackEnvelope
		UserID string `json:"user_id"`
	}
	if err := s.call(ctx, "auth.test", nil, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// FetchMessageBursts searches the user's messages since the cursor and folds
// them into per-channel per-day bursts.
func (s *Slack) FetchMessageBursts(ctx context.Context, userID string, since time.Time) ([]SlackMessageBurst, error) {
	q := url.Values{}
	q.Set("query", fmt.Sprintf("from:<@%s> after:%s", userID, fmtDay(since.AddDate(0, 0, -1))))
	q.Set("count", "100")
	q.Set("sort", "timestamp")

	var out struct {
		slackEnvelope
		Messages struct {
			Matches []struct {
				Channel struct {
					Name string `json:"name"`
				} `json:"channel"`
				TS string `json:"ts"`
			} `json:"matches"`
		} `json:"messages"`
	}
	if err := s.call(ctx, "search.messages", q, &out); err != nil {
		return nil, err
	}

	type bucket struct {
		channel string
		day     time.Time
	}
	counts := make(map[bucket]int)
	for _, m := range out.Messages.Matches {
		ts, err := parseSlackTS(m.TS)
		if err != nil || ts.Before(since) {
			continue
		}
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		counts[bucket{channel: m.Channel.Name, day: day}]++
	}

	bursts := make([]SlackMessageBurst, 0, len(counts))
	for b, n := range counts {
		bursts = append(bursts, SlackMessageBurst{Channel: b.channel, Day: b.day, Count: n})
	}
	sort.Slice(bursts, func(i, j int) bool {
		if !bursts[i].Day.Equal(bursts[j].Day) {
			return bursts[i].Day.Before(bursts[j].Day)
		}
		return bursts[i].Channel < bursts[j].Channel
	})
	return bursts, nil
}

type slackEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (e slackEnvelope) envelope() slackEnvelope { return e }

type slackResponse interface {
	envelope() slackEnvelope
}

func (s *Slack) call(ctx context.Context, method string, query url.Values, out slackResponse) error {
	if s.token == "" {
		return missingToken(models.ProviderSlack)
	}

	u := s.baseURL + "/" + method
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return netError(models.ProviderSlack, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(models.ProviderSlack, resp.StatusCode, readSnippet(resp.Body, 512), resp.Header)
	}

	if err := decodeJSON(resp.Body, out); err != nil {
		return &Error{Provider: models.ProviderSlack, Code: CodeAPIError, Message: "malformed response: " + err.Error()}
	}

	if env := out.envelope(); !env.OK {
		return classifySlackError(env.Error)
	}
	return nil
}

// classifySlackError maps Slack's in-body error strings onto the taxonomy.
func classifySlackError(code string) *Error {
	e := &Error{Provider: models.ProviderSlack, Status: http.StatusOK, Message: code}
	switch code {
	case "invalid_auth", "token_revoked", "token_expired", "not_authed", "account_inactive":
		e.Code = CodeInvalidToken
	case "ratelimited", "rate_limited":
		e.Code = CodeRateLimit
	case "missing_scope", "no_permission":
		e.Code = CodeForbidden
	default:
		e.Code = CodeAPIError
	}
	return e
}

func parseSlackTS(ts string) (time.Time, error) {
	sec := ts
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		sec = ts[:i]
	}
	unix, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}
