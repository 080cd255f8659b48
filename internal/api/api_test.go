package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/api"
	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/dispatcher"
	"github.com/magazine-cms/internal/mocks"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/service"
	"github.com/magazine-cms/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type testEnv struct {
	router     *gin.Engine
	store      *mocks.Store
	gateway    *mocks.MockGateway
	dispatcher *mocks.MockDispatcher
}

func setupTestRouter() *testEnv {
	gin.SetMode(gin.TestMode)

	repos, store := mocks.NewRepositories()
	env := &testEnv{
		store:      store,
		gateway:    mocks.NewMockGateway(),
		dispatcher: mocks.NewMockDispatcher(),
	}

	cfg := config.Default()
	services := service.NewServices(repos, service.Deps{
		Gateway:    env.gateway,
		Dispatcher: env.dispatcher,
		Images:     storage.NewFileStore(afero.NewMemMapFs()),
	}, cfg, zerolog.Nop())

	env.router = api.NewRouter(services, cfg, zerolog.Nop())
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "editor-1")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) createDraft(t *testing.T, title string) models.RewrittenArticle {
	t.Helper()
	w := e.do("POST", "/v1/drafts", map[string]string{"title": title, "content": "Body of " + title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create draft: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[models.RewrittenArticle](t, w)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestRouter()

	w := env.do("GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	response := decode[map[string]interface{}](t, w)
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
	if response["service"] != "magazine-cms" {
		t.Errorf("Expected service name, got %v", response["service"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestRouter()
	env.createDraft(t, "Counted")

	w := env.do("GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	response := decode[struct {
		Database map[string]int `json:"database"`
	}](t, w)
	if response.Database["rewritten_articles"] != 1 {
		t.Errorf("Expected 1 draft, got %v", response.Database)
	}
}

func TestDraftLifecycle(t *testing.T) {
	env := setupTestRouter()
	draft := env.createDraft(t, "Bài viết mới")

	if draft.UserID != "editor-1" {
		t.Errorf("Expected user from header, got %q", draft.UserID)
	}

	w := env.do("PUT", "/v1/drafts/"+draft.ID, map[string]string{"meta_description": "short"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do("POST", "/v1/drafts/"+draft.ID+"/approve", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("approve: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	approved := decode[models.ApprovedArticle](t, w)
	if approved.Status != models.PublishStatusPublished || !strings.HasPrefix(approved.Slug, "bai-viet-moi-") {
		t.Errorf("unexpected approved article %+v", approved)
	}
	if approved.MetaDescription != "short" {
		t.Errorf("expected edit to carry over, got %q", approved.MetaDescription)
	}

	w = env.do("POST", "/v1/drafts/"+draft.ID+"/approve", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second approve: expected 404, got %d", w.Code)
	}

	w = env.do("GET", "/public/articles/"+approved.Slug, nil)
	if w.Code != http.StatusOK {
		t.Errorf("public read: expected 200, got %d", w.Code)
	}

	w = env.do("POST", "/v1/approved/"+approved.ID+"/unpublish", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unpublish: expected 200, got %d", w.Code)
	}
	w = env.do("GET", "/public/articles/"+approved.Slug, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("public read after unpublish: expected 404, got %d", w.Code)
	}

	w = env.do("DELETE", "/v1/approved/"+approved.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}
}

func TestRejectTwice_Conflict(t *testing.T) {
	env := setupTestRouter()
	draft := env.createDraft(t, "Reject")

	if w := env.do("POST", "/v1/drafts/"+draft.ID+"/reject", nil); w.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d", w.Code)
	}
	if w := env.do("POST", "/v1/drafts/"+draft.ID+"/reject", nil); w.Code != http.StatusConflict {
		t.Errorf("second reject: expected 409, got %d", w.Code)
	}
}

func TestCreateDraft_Validation(t *testing.T) {
	env := setupTestRouter()

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", "{not json"},
		{"missing content", `{"title":"Only title"}`},
		{"bad category", `{"title":"t","content":"c","category_id":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/drafts", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestAIRewrite_ErrorStatuses(t *testing.T) {
	env := setupTestRouter()
	draft := env.createDraft(t, "AI")
	path := "/v1/drafts/" + draft.ID + "/ai-rewrite"

	if w := env.do("POST", path, nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("no settings: expected 422, got %d", w.Code)
	}

	env.store.Setting = &models.AISetting{
		Provider:         models.AIProviderOpenAI,
		APIKey:           "sk-live-9999",
		ModelName:        "gpt-4o-mini",
		MaxTokens:        512,
		MaxDailyRewrites: 1,
	}

	env.gateway.RewriteFunc = func(ctx context.Context, content string, s models.AISetting) (string, error) {
		return "", errors.New("status 503")
	}
	if w := env.do("POST", path, nil); w.Code != http.StatusBadGateway {
		t.Errorf("provider failure: expected 502, got %d", w.Code)
	}

	env.gateway.RewriteFunc = nil
	w := env.do("POST", path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rewrite: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[models.RewrittenArticle](t, w); !got.AIGenerated {
		t.Error("expected ai_generated draft")
	}

	if w := env.do("POST", path, nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("over quota: expected 429, got %d", w.Code)
	}
}

func TestSettings_MasksAPIKey(t *testing.T) {
	env := setupTestRouter()

	w := env.do("PUT", "/v1/settings/ai", map[string]any{
		"provider":    "openai",
		"api_key":     "sk-secret-abcd",
		"model_name":  "gpt-4o-mini",
		"temperature": 0.5,
		"max_tokens":  800,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do("GET", "/v1/settings/ai", nil)
	got := decode[models.AISetting](t, w)
	if got.APIKey != "****abcd" {
		t.Errorf("expected masked key, got %q", got.APIKey)
	}
	if env.store.Setting.APIKey != "sk-secret-abcd" {
		t.Errorf("expected the real key to be stored, got %q", env.store.Setting.APIKey)
	}
}

func TestSettings_TestConnection(t *testing.T) {
	env := setupTestRouter()
	env.gateway.TestConnectionFunc = func(ctx context.Context, req models.ConnectionTestRequest) models.ConnectionTestResult {
		return models.ConnectionTestResult{OK: false, Error: "status 401"}
	}

	w := env.do("POST", "/v1/settings/ai/test", map[string]string{"provider": "mistral", "api_key": "bad"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decode[models.ConnectionTestResult](t, w); got.OK || got.Error == "" {
		t.Errorf("expected failed result, got %+v", got)
	}

	if w := env.do("POST", "/v1/settings/ai/test", map[string]string{"provider": "gemini"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown provider: expected 400, got %d", w.Code)
	}
}

func TestKeywordRewrite_CreateAndCallback(t *testing.T) {
	env := setupTestRouter()

	w := env.do("POST", "/v1/keyword-rewrites", map[string]string{"keyword": "phở Hà Nội"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("create: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	job := decode[models.KeywordRewrite](t, w)
	if job.UserID != "editor-1" || job.Status != models.JobStatusProcessing {
		t.Errorf("unexpected job %+v", job)
	}

	w = env.do("POST", "/v1/callbacks/keyword-rewrite", map[string]string{
		"rewrite_id": job.ID,
		"status":     "completed",
		"title":      "Phở Hà Nội",
		"content":    "Generated",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("callback: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do("GET", "/v1/drafts?ai_generated=true", nil)
	list := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if list.Count != 1 {
		t.Errorf("expected 1 ai generated draft, got %d", list.Count)
	}
}

func TestKeywordRewrite_DispatchFailure(t *testing.T) {
	env := setupTestRouter()
	env.dispatcher.DispatchFunc = func(ctx context.Context, endpoint string, payload any) (*dispatcher.Result, error) {
		return nil, errors.New("connection refused")
	}

	w := env.do("POST", "/v1/keyword-rewrites", map[string]string{"content": "text"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}

	response := decode[struct {
		Job models.KeywordRewrite `json:"job"`
	}](t, w)
	if response.Job.Status != models.JobStatusFailed {
		t.Errorf("expected failed job in response, got %+v", response.Job)
	}

	w = env.do("POST", "/v1/keyword-rewrites/"+response.Job.ID+"/retry", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("retry while still down: expected 502, got %d", w.Code)
	}
}

func TestKeywordServiceHealth(t *testing.T) {
	env := setupTestRouter()

	if w := env.do("GET", "/v1/services/keyword/health", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	env.dispatcher.Healthy = false
	if w := env.do("GET", "/v1/services/keyword/health", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestScrape(t *testing.T) {
	env := setupTestRouter()

	w := env.do("POST", "/v1/scrape", map[string]any{"url": "https://facebook.com/groups/news", "limit": 10})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[models.ScrapeResult](t, w); got.Via != "http" {
		t.Errorf("unexpected result %+v", got)
	}

	if w := env.do("POST", "/v1/scrape", map[string]any{"url": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("missing url: expected 400, got %d", w.Code)
	}
}

func TestRawArticleImport_NDJSONBody(t *testing.T) {
	env := setupTestRouter()

	body := `{"title":"A","body":"a"}` + "\n" + `{"title":"","body":"b"}` + "\n"
	req := httptest.NewRequest("POST", "/v1/raw-articles/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-ndjson")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := decode[models.ImportResult](t, w)
	if result.SuccessfulCount != 1 || result.FailedCount != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestRawArticleImport_WrongFileExtension(t *testing.T) {
	env := setupTestRouter()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "articles.csv")
	part.Write([]byte("title,body\n"))
	writer.Close()

	req := httptest.NewRequest("POST", "/v1/raw-articles/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for wrong extension, got %d", w.Code)
	}
}

func TestImageUpload(t *testing.T) {
	env := setupTestRouter()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "cover.webp")
	part.Write([]byte("webp"))
	writer.Close()

	req := httptest.NewRequest("POST", "/v1/images", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[map[string]string](t, w)
	if !strings.HasPrefix(got["featured_image"], "/storage/images/") {
		t.Errorf("unexpected reference %v", got)
	}
}

func TestPublicStream_FormatValidation(t *testing.T) {
	env := setupTestRouter()

	if w := env.do("GET", "/public/articles?format=csv", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	w := env.do("GET", "/public/articles", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %d %q", w.Code, w.Body.String())
	}
}

func TestCategories(t *testing.T) {
	env := setupTestRouter()

	w := env.do("POST", "/v1/categories", map[string]any{
		"name":          "Kinh tế",
		"subcategories": []map[string]string{{"name": "Chứng khoán"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[models.Category](t, w)

	w = env.do("POST", "/v1/categories", map[string]any{"name": "Kinh tế"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", w.Code)
	}

	w = env.do("POST", "/v1/categories/"+created.ID+"/subcategories", map[string]any{
		"subcategories": []map[string]string{{"name": "Bất động sản"}},
	})
	if w.Code != http.StatusCreated {
		t.Errorf("add subcategories: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do("GET", "/v1/categories", nil)
	list := decode[struct {
		Data []models.Category `json:"data"`
	}](t, w)
	if len(list.Data) != 1 || len(list.Data[0].Subcategories) != 2 {
		t.Errorf("unexpected categories %+v", list.Data)
	}
}

func TestCORSHeaders(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest("OPTIONS", "/v1/drafts", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for OPTIONS, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header Access-Control-Allow-Origin: *")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Error("Expected DELETE in allowed methods")
	}
}

func TestMalformedIDs_NotFound(t *testing.T) {
	env := setupTestRouter()

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/v1/drafts/abc"},
		{"POST", "/v1/drafts/from-source/abc"},
		{"POST", "/v1/drafts/abc/approve"},
		{"DELETE", "/v1/drafts/abc"},
		{"POST", "/v1/approved/abc/publish"},
		{"GET", "/v1/keyword-rewrites/abc"},
		{"POST", "/v1/keyword-rewrites/abc/retry"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := env.do(tt.method, tt.path, nil); w.Code != http.StatusNotFound {
				t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestUpstreamFailure_HidesDetail(t *testing.T) {
	env := setupTestRouter()
	env.store.Setting = &models.AISetting{
		Provider:  models.AIProviderOpenAI,
		APIKey:    "sk-live-9999",
		ModelName: "gpt-4o-mini",
		MaxTokens: 512,
	}
	env.gateway.RewriteFunc = func(ctx context.Context, content string, s models.AISetting) (string, error) {
		return "", errors.New(`POST https://llm.internal:8443/v1/chat/completions: status 500: {"trace":"secret"}`)
	}
	draft := env.createDraft(t, "Leak")

	w := env.do("POST", "/v1/drafts/"+draft.ID+"/ai-rewrite", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["error"] != "failed to rewrite draft: external service error" {
		t.Errorf("unexpected error message %v", body["error"])
	}

	env.dispatcher.DispatchFunc = func(ctx context.Context, endpoint string, payload any) (*dispatcher.Result, error) {
		return nil, errors.New("dial tcp 10.0.0.7:9000: connection refused")
	}
	w = env.do("POST", "/v1/keyword-rewrites", map[string]string{"content": "text"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	response := decode[struct {
		Error string                `json:"error"`
		Job   models.KeywordRewrite `json:"job"`
	}](t, w)
	if strings.Contains(response.Error, "10.0.0.7") {
		t.Errorf("error message leaks transport detail: %q", response.Error)
	}
	if response.Job.ErrorMessage == "" {
		t.Error("expected the failed job to record its error")
	}
}
