package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"news-rag/internal/domain"
)

// Client fetches articles from the Guardian Open Platform content API.
// Requests are paced with a limiter so long fetch runs stay inside the
// free-tier quota.
type Client struct {
	BaseURL  string
	APIKey   string
	PageSize int
	Client   *http.Client
	Limiter  *rate.Limiter
	Logger   *slog.Logger
}

type searchResponse struct {
	Response struct {
		Status  string `json:"status"`
		Total   int    `json:"total"`
		Pages   int    `json:"pages"`
		Results []struct {
			ID                 string `json:"id"`
			WebTitle           string `json:"webTitle"`
			WebURL             string `json:"webUrl"`
			WebPublicationDate string `json:"webPublicationDate"`
			Fields             struct {
				BodyText string `json:"bodyText"`
				Headline string `json:"headline"`
			} `json:"fields"`
		} `json:"results"`
	} `json:"response"`
}

// FetchArticles pages through the search endpoint oldest-first until
// it has target articles or runs out of pages. Articles without body
// text are skipped; they cannot be chunked or cited.
func (c *Client) FetchArticles(ctx context.Context, fromDate, toDate string, target int) ([]domain.Article, error) {
	if c.APIKey == "" {
		return nil, &domain.ConfigError{Field: "guardian_api_key", Reason: "missing"}
	}

	var articles []domain.Article
	page := 1
	for len(articles) < target {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return articles, err
			}
		}

		result, err := c.search(ctx, fromDate, toDate, page)
		if err != nil {
			return articles, err
		}
		if len(result.Response.Results) == 0 {
			break
		}

		for _, item := range result.Response.Results {
			if len(articles) >= target {
				break
			}
			body := strings.TrimSpace(item.Fields.BodyText)
			if body == "" {
				continue
			}
			articles = append(articles, domain.Article{
				ID:          item.ID,
				Title:       item.WebTitle,
				URL:         item.WebURL,
				PublishedAt: item.WebPublicationDate,
				Body:        body,
			})
		}

		c.Logger.Info("guardian_page_fetched",
			slog.Int("page", page),
			slog.Int("pages", result.Response.Pages),
			slog.Int("collected", len(articles)))

		if page >= result.Response.Pages {
			break
		}
		page++
	}

	return articles, nil
}

func (c *Client) search(ctx context.Context, fromDate, toDate string, page int) (*searchResponse, error) {
	params := url.Values{}
	params.Set("api-key", c.APIKey)
	params.Set("from-date", fromDate)
	params.Set("to-date", toDate)
	params.Set("page-size", strconv.Itoa(c.PageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("show-fields", "bodyText,headline")
	params.Set("order-by", "oldest")
	params.Set("tag", "type/article")

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("guardian request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("guardian API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode guardian response: %w", err)
	}
	if result.Response.Status != "ok" {
		return nil, fmt.Errorf("guardian API status %q", result.Response.Status)
	}
	return &result, nil
}

var _ domain.ArticleSource = (*Client)(nil)
