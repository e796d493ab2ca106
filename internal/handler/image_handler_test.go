package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/artlog/internal/config"
	"github.com/artlog/internal/db"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeImageAPI struct {
	handler func(*http.Request) (*http.Response, error)
}

func (f fakeImageAPI) Do(req *http.Request) (*http.Response, error) {
	if f.handler == nil {
		return nil, errors.New("no handler configured")
	}
	return f.handler(req)
}

func upstreamImageResponse(t *testing.T, b64 string) *http.Response {
	t.Helper()
	payload := map[string]interface{}{
		"data": []map[string]string{{"b64_json": b64}},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal upstream response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(buf)),
		Header:     make(http.Header),
	}
}

func setupHandlerTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&db.Artwork{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	return gdb, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func newTestAPI(t *testing.T, gdb *gorm.DB) *API {
	t.Helper()

	api, err := NewAPI(gdb, config.AppConfig{OpenAIAPIKey: "sk-test"})
	if err != nil {
		t.Fatalf("failed to build api: %v", err)
	}
	return api
}

func newTestRouter(api *API) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("artlog_session", store))

	r.POST("/api/images", api.CreateImage)
	r.GET("/api/gallery", api.ListArtworks)
	r.POST("/api/gallery", api.CreateArtwork)
	r.DELETE("/api/gallery", api.ClearGallery)
	r.DELETE("/api/gallery/:id", api.DeleteArtwork)
	r.POST("/api/gallery/import", api.ImportGallery)
	r.GET("/api/gallery/export", api.ExportGallery)
	r.GET("/api/gallery/:id/export", api.ExportArtwork)
	return r
}

// performRequest 发送请求并附带既有的会话 Cookie。
func performRequest(r http.Handler, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestCreateImageGenerateJSON(t *testing.T) {
	gdb, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, gdb)
	api.ImageClient().SetHTTPClient(fakeImageAPI{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/images/generations" {
			t.Fatalf("unexpected upstream path %s", r.URL.Path)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode upstream payload: %v", err)
		}
		if payload["prompt"] != "a red fox" || payload["size"] != "512x512" || payload["model"] != "gpt-image-1" {
			t.Fatalf("unexpected upstream payload: %v", payload)
		}
		return upstreamImageResponse(t, "Zm94LWltYWdl"), nil
	}})

	r := newTestRouter(api)
	req := httptest.NewRequest(http.MethodPost, "/api/images",
		strings.NewReader(`{"prompt": "a red fox", "action": "generate", "size": "512x512", "model": "gpt-image-1"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := performRequest(r, req, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["b64"] != "Zm94LWltYWdl" {
		t.Fatalf("unexpected b64 in response: %v", body)
	}
	if _, ok := body["error"]; ok {
		t.Fatalf("expected no error field on success")
	}
}

func TestCreateImageNormalizesUnknownSizeAndModel(t *testing.T) {
	gdb, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, gdb)
	api.ImageClient().SetHTTPClient(fakeImageAPI{handler: func(r *http.Request) (*http.Response, error) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode upstream payload: %v", err)
		}
		if payload["size"] != "1024x1024" || payload["model"] != "gpt-image-1" {
			t.Fatalf("expected normalized defaults, got %v", payload)
		}
		return upstreamImageResponse(t, "ZGF0YQ=="), nil
	}})

	r := newTestRouter(api)
	req := httptest.NewRequest(http.MethodPost, "/api/images",
		strings.NewReader(`{"prompt": "x", "size": "999x999", "model": "made-up"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := performRequest(r, req, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateImageEditRequiresFile(t *testing.T) {
	gdb, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, gdb)
	api.ImageClient().SetHTTPClient(fakeImageAPI{handler: func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no upstream call expected for invalid edit request")
		return nil, nil
	}})

	r := newTestRouter(api)
	req := httptest.NewRequest(http.MethodPost, "/api/images",
		strings.NewReader(`{"prompt": "add a hat", "action": "edit"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := performRequest(r, req, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["error"] == "" || body["error"] == nil {
		t.Fatalf("expected descriptive error, got %v", body)
	}
}

func multipartImageRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	for name, data := range files {
		part, err := writer.CreateFormFile(name, name+".png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close form writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/images", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestCreateImageMultipartEdit(t *testing.T) {
	gdb, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, gdb)
	api.ImageClient().SetHTTPClient(fakeImageAPI{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/images/edits" {
			t.Fatalf("unexpected upstream path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Fatalf("failed to parse upstream form: %v", err)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Fatalf("expected forwarded image file: %v", err)
		}
		if _, _, err := r.FormFile("mask"); err != nil {
			t.Fatalf("expected forwarded mask file: %v", err)
		}
		return upstreamImageResponse(t, "ZWRpdGVk"), nil
	}})

	r := newTestRouter(api)
	req := multipartImageRequest(t,
		map[string]string{"action": "edit", "prompt": "add a hat", "size": "1024x1024", "model": "gpt-image-1"},
		map[string][]byte{"image": []byte("fake-image"), "mask": []byte("fake-mask")},
	)
	rr := performRequest(r, req, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["b64"] != "ZWRpdGVk" {
		t.Fatalf("unexpected response body: %v", body)
	}
}

func TestCreateImageVariationCoercesModel(t *testing.T) {
	gdb, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, gdb)
	api.ImageClient().SetHTTPClient(fakeImageAPI{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/images/variations" {
			t.Fatalf("unexpected upstream path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Fatalf("failed to parse upstream form: %v", err)
		}
		if got := r.FormValue("model"); got != "dall-e-2" {
			t.Fatalf("expected model coerced to dall-e-2, got %q", got)
		}
		return upstreamImageResponse(t, "dmFy"), nil
	}})

	r := newTestRouter(api)
	req := multipartImageRequest(t,
		map[string]string{"action": "variation", "size": "1024x1024", "model": "gpt-image-1"},
		map[string][]byte{"image": []byte("fake-image")},
	)
	rr := performRequest(r, req, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateImageVariationRequiresFile(t *testing.T) {
	gdb, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, gdb)
	api.ImageClient().SetHTTPClient(fakeImageAPI{handler: func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no upstream call expected for invalid variation request")
		return nil, nil
	}})

	r := newTestRouter(api)
	req := multipartImageRequest(t, map[string]string{"action": "variation"}, nil)
	rr := performRequest(r, req, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateImageUpstreamFailure(t *testing.T) {
	gdb, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, gdb)
	api.ImageClient().SetHTTPClient(fakeImageAPI{handler: func(r *http.Request) (*http.Response, error) {
		payload := `{"error": {"message": "rate limited"}}`
		return &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Body:       io.NopCloser(strings.NewReader(payload)),
			Header:     make(http.Header),
		}, nil
	}})

	r := newTestRouter(api)
	req := httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader(`{"prompt": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := performRequest(r, req, nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	message, _ := body["error"].(string)
	if !strings.Contains(message, "rate limited") {
		t.Fatalf("expected upstream message surfaced, got %v", body)
	}
}

func TestCreateImageMissingAPIKey(t *testing.T) {
	gdb, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api, err := NewAPI(gdb, config.AppConfig{})
	if err != nil {
		t.Fatalf("failed to build api: %v", err)
	}

	r := newTestRouter(api)
	req := httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader(`{"prompt": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := performRequest(r, req, nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", rr.Code, rr.Body.String())
	}
}
