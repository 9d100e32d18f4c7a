package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

const (
	notionAPIURL  = "https://api.notion.com"
	notionVersion = "2022-06-28"
)

// Notion wraps the Notion API search endpoint for recently edited pages.
type Notion struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewNotion(token string) *Notion {
	return &Notion{token: token, baseURL: notionAPIURL, client: newHTTPClient()}
}

type NotionPage struct {
	ID           string
	Title        string
	URL          string
	LastEditedAt time.Time
}

// FetchEditedPages returns pages edited since the cursor, newest first.
// Notion's search endpoint has no time filter, so the page sort order is
// exploited: results come back by last_edited_time descending and the scan
// stops at the first page older than since.
func (n *Notion) FetchEditedPages(ctx context.Context, since time.Time) ([]NotionPage, error) {
	if n.token == "" {
		return nil, missingToken(models.ProviderNotion)
	}

	body, err := json.Marshal(map[string]any{
		"filter": map[string]string{"property": "object", "value": "page"},
		"sort": map[string]string{
			"direction": "descending",
			"timestamp": "last_edited_time",
		},
		"page_size": 100,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, netError(models.ProviderNotion, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(models.ProviderNotion, resp.StatusCode, readSnippet(resp.Body, 512), resp.Header)
	}

	var out struct {
		Results []struct {
			ID             string    `json:"id"`
			URL            string    `json:"url"`
			LastEditedTime time.Time `json:"last_edited_time"`
			Properties     map[string]struct {
				Type  string `json:"type"`
				Title []struct {
					PlainText string `json:"plain_text"`
				} `json:"title"`
			} `json:"properties"`
		} `json:"results"`
	}
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, &Error{Provider: models.ProviderNotion, Code: CodeAPIError, Message: "malformed response: " + err.Error()}
	}

	pages := make([]NotionPage, 0, len(out.Results))
	for _, r := range out.Results {
		if r.LastEditedTime.Before(since) {
			break
		}
		pages = append(pages, NotionPage{
			ID:           r.ID,
			Title:        notionTitle(r.Properties),
			URL:          r.URL,
			LastEditedAt: r.LastEditedTime,
		})
	}
	return pages, nil
}

func notionTitle(props map[string]struct {
	Type  string `json:"type"`
	Title []struct {
		PlainText string `json:"plain_text"`
	} `json:"title"`
}) string {
	for _, p := range props {
		if p.Type != "title" {
			continue
		}
		title := ""
		for _, t := range p.Title {
			title += t.PlainText
		}
		if title != "" {
			return title
		}
	}
	return "Untitled"
}
