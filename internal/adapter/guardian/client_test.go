package guardian

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-rag/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func pageJSON(page, pages int, items ...string) string {
	results := ""
	for i, item := range items {
		if i > 0 {
			results += ","
		}
		results += item
	}
	return fmt.Sprintf(`{"response":{"status":"ok","total":%d,"pages":%d,"results":[%s]}}`, pages*len(items), pages, results)
}

func resultJSON(id, title, body string) string {
	return fmt.Sprintf(`{"id":%q,"webTitle":%q,"webUrl":"https://www.theguardian.com/%s","webPublicationDate":"2015-12-05T10:00:00Z","fields":{"bodyText":%q,"headline":%q}}`,
		id, title, id, body, title)
}

func TestClient_FetchArticles_PagesUntilTarget(t *testing.T) {
	var pagesRequested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pagesRequested = append(pagesRequested, q.Get("page"))
		assert.Equal(t, "test-key", q.Get("api-key"))
		assert.Equal(t, "2015-12-03", q.Get("from-date"))
		assert.Equal(t, "bodyText,headline", q.Get("show-fields"))
		assert.Equal(t, "oldest", q.Get("order-by"))

		switch q.Get("page") {
		case "1":
			fmt.Fprint(w, pageJSON(1, 2,
				resultJSON("world/2015/dec/05/a", "A", "body a"),
				resultJSON("world/2015/dec/05/b", "B", "body b")))
		default:
			fmt.Fprint(w, pageJSON(2, 2,
				resultJSON("world/2015/dec/06/c", "C", "body c"),
				resultJSON("world/2015/dec/06/d", "D", "body d")))
		}
	}))
	defer server.Close()

	client := &Client{
		BaseURL:  server.URL,
		APIKey:   "test-key",
		PageSize: 2,
		Client:   server.Client(),
		Logger:   testLogger(),
	}

	articles, err := client.FetchArticles(context.Background(), "2015-12-03", "2015-12-31", 3)
	require.NoError(t, err)

	require.Len(t, articles, 3)
	assert.Equal(t, []string{"1", "2"}, pagesRequested)
	assert.Equal(t, "world/2015/dec/05/a", articles[0].ID)
	assert.Equal(t, "A", articles[0].Title)
	assert.Equal(t, "body a", articles[0].Body)
	assert.Equal(t, "2015-12-05T10:00:00Z", articles[0].PublishedAt)
}

func TestClient_FetchArticles_SkipsEmptyBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageJSON(1, 1,
			resultJSON("world/a", "A", "   "),
			resultJSON("world/b", "B", "real body")))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, APIKey: "k", PageSize: 10, Client: server.Client(), Logger: testLogger()}

	articles, err := client.FetchArticles(context.Background(), "2015-12-03", "2015-12-31", 10)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "world/b", articles[0].ID)
}

func TestClient_FetchArticles_StopsOnEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"status":"ok","total":0,"pages":0,"results":[]}}`)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, APIKey: "k", PageSize: 10, Client: server.Client(), Logger: testLogger()}

	articles, err := client.FetchArticles(context.Background(), "2015-12-03", "2015-12-31", 10)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestClient_FetchArticles_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, APIKey: "k", PageSize: 10, Client: server.Client(), Logger: testLogger()}

	_, err := client.FetchArticles(context.Background(), "2015-12-03", "2015-12-31", 10)
	assert.ErrorContains(t, err, "status 429")
}

func TestClient_FetchArticles_MissingAPIKey(t *testing.T) {
	client := &Client{BaseURL: "http://unused", PageSize: 10, Client: http.DefaultClient, Logger: testLogger()}

	_, err := client.FetchArticles(context.Background(), "2015-12-03", "2015-12-31", 10)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "guardian_api_key", cfgErr.Field)
}
