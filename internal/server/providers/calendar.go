package providers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

const calendarAPIURL = "https://www.googleapis.com"

// Calendar wraps the Google Calendar events API for the primary calendar.
type Calendar struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewCalendar(token string) *Calendar {
	return &Calendar{token: token, baseURL: calendarAPIURL, client: newHTTPClient()}
}

type CalendarEvent struct {
	ID      string
	Summary string
	Link    string
	Start   time.Time
	End     time.Time
}

// FetchEvents lists events on the primary calendar between since and until.
// Recurring events are expanded into individual instances.
func (c *Calendar) FetchEvents(ctx context.Context, since, until time.Time) ([]CalendarEvent, error) {
	if c.token == "" {
		return nil, missingToken(models.ProviderCalendar)
	}

	q := url.Values{}
	q.Set("timeMin", since.UTC().Format(time.RFC3339))
	q.Set("timeMax", until.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", "250")

	u := c.baseURL + "/calendar/v3/calendars/primary/events?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, netError(models.ProviderCalendar, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(models.ProviderCalendar, resp.StatusCode, readSnippet(resp.Body, 512), resp.Header)
	}

	var out struct {
		Items []struct {
			ID       string `json:"id"`
			Summary  string `json:"summary"`
			HTMLLink string `json:"htmlLink"`
			Status   string `json:"status"`
			Start    struct {
				DateTime time.Time `json:"dateTime"`
				Date     string    `json:"date"`
			} `json:"start"`
			End struct {
				DateTime time.Time `json:"dateTime"`
				Date     string    `json:"date"`
			} `json:"end"`
		} `json:"items"`
	}
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, &Error{Provider: models.ProviderCalendar, Code: CodeAPIError, Message: "malformed response: " + err.Error()}
	}

	events := make([]CalendarEvent, 0, len(out.Items))
	for _, item := range out.Items {
		if item.Status == "cancelled" {
			continue
		}
		events = append(events, CalendarEvent{
			ID:      item.ID,
			Summary: item.Summary,
			Link:    item.HTMLLink,
			Start:   eventTime(item.Start.DateTime, item.Start.Date),
			End:     eventTime(item.End.DateTime, item.End.Date),
		})
	}
	return events, nil
}

// eventTime resolves the dateTime/date union: all-day events carry only a
// date string.
func eventTime(dt time.Time, day string) time.Time {
	if !dt.IsZero() {
		return dt
	}
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}
	}
	return t
}
