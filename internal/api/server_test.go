package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ggstore/ggcrawl/internal/api"
	"github.com/ggstore/ggcrawl/internal/catalog"
)

func newTestServer(t *testing.T) (*api.Server, *catalog.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.NewStore(filepath.Join(dir, "metadata.json"), zap.NewNop())
	require.NoError(t, err)
	statusPath := filepath.Join(dir, "status.jsonl")
	return api.NewServer(store, statusPath, zap.NewNop()), store, statusPath
}

func seedStatusLog(t *testing.T, path string, records ...catalog.JobRecord) {
	t.Helper()
	log, err := catalog.OpenStatusLog(path)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, log.Append(rec))
	}
	require.NoError(t, log.Close())
}

func TestHealthz(t *testing.T) {
	server, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestGetStatus(t *testing.T) {
	server, store, statusPath := newTestServer(t)

	result := catalog.NewCrawlResult()
	result.Upsert(catalog.Product{
		ID:   "case",
		Name: "Case",
		URL:  "https://ggstore.com/products/case",
		Images: []catalog.ProductImage{
			{Filename: "case_01.jpg", OriginalURL: "https://ggstore.com/cdn/shop/files/a.jpg?v=1"},
		},
		CrawledAt: time.Now().UTC(),
	})
	result.CrawledAt = time.Now().UTC()
	require.NoError(t, store.Save(result))

	now := time.Now().UTC()
	seedStatusLog(t, statusPath,
		catalog.JobRecord{SessionID: "s1", JobType: catalog.JobDetailFetch, Outcome: catalog.OutcomeSuccess, Timestamp: now},
		catalog.JobRecord{SessionID: "s1", JobType: catalog.JobDetailFetch, Outcome: catalog.OutcomeFailed, ErrorKind: "parse_error", Timestamp: now},
		catalog.JobRecord{SessionID: "s1", JobType: catalog.JobImageDownload, Outcome: catalog.OutcomeSkipped, Timestamp: now},
	)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalProducts int `json:"total_products"`
		TotalImages   int `json:"total_images"`
		Jobs          struct {
			Success int `json:"success"`
			Failed  int `json:"failed"`
			Skipped int `json:"skipped"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalProducts)
	assert.Equal(t, 1, resp.TotalImages)
	assert.Equal(t, 1, resp.Jobs.Success)
	assert.Equal(t, 1, resp.Jobs.Failed)
	assert.Equal(t, 1, resp.Jobs.Skipped)
}

func TestGetErrors(t *testing.T) {
	server, _, statusPath := newTestServer(t)
	now := time.Now().UTC()
	seedStatusLog(t, statusPath,
		catalog.JobRecord{SessionID: "s1", JobType: catalog.JobDetailFetch, TargetURL: "https://ggstore.com/products/a", Outcome: catalog.OutcomeFailed, ErrorKind: "navigation_error", Timestamp: now},
		catalog.JobRecord{SessionID: "s1", JobType: catalog.JobDetailFetch, TargetURL: "https://ggstore.com/products/b", Outcome: catalog.OutcomeSuccess, Timestamp: now},
		catalog.JobRecord{SessionID: "s1", JobType: catalog.JobImageDownload, TargetURL: "https://ggstore.com/cdn/shop/files/c.jpg", Outcome: catalog.OutcomeFailed, ErrorKind: "download_error", Timestamp: now},
	)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/errors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Errors []catalog.JobRecord `json:"errors"`
		Total  int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "navigation_error", resp.Errors[0].ErrorKind)
	assert.Equal(t, "download_error", resp.Errors[1].ErrorKind)
}

func TestGetErrorsLimit(t *testing.T) {
	server, _, statusPath := newTestServer(t)
	now := time.Now().UTC()
	var records []catalog.JobRecord
	for i := 0; i < 5; i++ {
		records = append(records, catalog.JobRecord{
			SessionID: "s1", JobType: catalog.JobImageDownload,
			Outcome: catalog.OutcomeFailed, ErrorKind: "download_error", Timestamp: now,
		})
	}
	seedStatusLog(t, statusPath, records...)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/errors?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Errors []catalog.JobRecord `json:"errors"`
		Total  int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Errors, 2)
	assert.Equal(t, 5, resp.Total, "total counts all failures, not just the returned page")

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/errors?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStatusLastSession(t *testing.T) {
	server, _, statusPath := newTestServer(t)
	now := time.Now().UTC()
	log, err := catalog.OpenStatusLog(statusPath)
	require.NoError(t, err)
	require.NoError(t, log.Append(catalog.JobRecord{
		SessionID: "s1", JobType: catalog.JobDetailFetch, Outcome: catalog.OutcomeSuccess, Timestamp: now,
	}))
	require.NoError(t, log.AppendProgress(catalog.SessionProgress{
		SessionID: "s1", StartedAt: now, FinishedAt: now.Add(time.Minute),
		ProductsDiscovered: 4, ProductsCrawled: 3, ImagesDownloaded: 7,
	}))
	require.NoError(t, log.AppendProgress(catalog.SessionProgress{
		SessionID: "s2", StartedAt: now.Add(time.Hour), FinishedAt: now.Add(2 * time.Hour),
		ProductsDiscovered: 4, ProductsSkipped: 4,
	}))
	require.NoError(t, log.Close())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs struct {
			Success int `json:"success"`
		} `json:"jobs"`
		LastSession *catalog.SessionProgress `json:"last_session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Jobs.Success, "session lines must not be counted as jobs")
	require.NotNil(t, resp.LastSession)
	assert.Equal(t, "s2", resp.LastSession.SessionID)
	assert.Equal(t, 4, resp.LastSession.ProductsSkipped)
}
