package template_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"template-service/internal/api/handlers/template"
	"template-service/internal/api/router"
	apperrors "template-service/internal/common/errors"
	"template-service/internal/common/httpclient"
	"template-service/internal/common/logger"
	generateimage "template-service/internal/workers/templates/generate-image"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generateBody struct {
	Status                  int    `json:"status"`
	Msg                     string `json:"msg"`
	Img                     string `json:"img"`
	ProcessingTime          *int64 `json:"processingTime"`
	ProcessingTimeFormatted string `json:"processingTimeFormatted"`
}

type filePart struct {
	name string
	data []byte
}

func multipartBody(t *testing.T, fields map[string]string, file *filePart) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("image", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newPipelineRouter(t *testing.T, renderURL, uploadURL string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)

	policy := httpclient.RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second},
		Timeout:     5 * time.Second,
	}

	cfg := generateimage.DefaultConfig()
	cfg.RenderURL = renderURL
	cfg.UploadURL = uploadURL
	cfg.StorageDomain = "https://storage.test"
	cfg.OutputDir = "/srv/uploads"
	cfg.RequestTimeout = 10 * time.Second

	svc := generateimage.NewService(generateimage.ServiceDependencies{
		Logger:   log,
		Uploader: httpclient.NewUploadClient(policy, log, httpclient.WithSleep(noSleep)),
		Renderer: httpclient.NewRenderClient(policy, log, httpclient.WithSleep(noSleep)),
	}, cfg)

	return router.Setup(template.NewHandler(svc, log, 1), router.Options{Logger: log})
}

func post(t *testing.T, r http.Handler, body *bytes.Buffer, contentType string, headers map[string]string) (*httptest.ResponseRecorder, generateBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/templates/generate", body)
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out generateBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestGenerate_FeedBasicSuccess(t *testing.T) {
	received := make(chan map[string][]string, 1)
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- r.MultipartForm.Value
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer render.Close()

	r := newPipelineRouter(t, render.URL, "http://127.0.0.1:1/unused")
	body, ct := multipartBody(t, map[string]string{
		"template_type": "feed_basic",
		"title":         "Hello",
		"sub_text":      "World",
	}, nil)

	rec, out := post(t, r, body, ct, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, out.Status)
	assert.Equal(t, "Image generated successfully", out.Msg)
	assert.Regexp(t, `^https://storage\.test/storage/uploads/output_\d+\.jpg$`, out.Img)
	require.NotNil(t, out.ProcessingTime)
	assert.Regexp(t, `^\d+\.\d{2}s$`, out.ProcessingTimeFormatted)

	form := <-received
	assert.Equal(t, []string{"Hello"}, form["text"])
	assert.Equal(t, []string{"World"}, form["sub_text"])
	assert.Equal(t, []string{"feed_basic"}, form["template_type"])
	assert.Regexp(t, `^session_\d+$`, form["session_id"][0])
	assert.Regexp(t, `^/srv/uploads/output_\d+\.jpg$`, form["output_img_path"][0])
}

func TestGenerate_RenderUnavailable(t *testing.T) {
	var calls int32
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Service Unavailable"))
	}))
	defer render.Close()

	r := newPipelineRouter(t, render.URL, "http://127.0.0.1:1/unused")
	body, ct := multipartBody(t, map[string]string{
		"template_type": "web_news_story",
		"artical_url":   "https://news.test/article/42",
	}, nil)

	rec, out := post(t, r, body, ct, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, out.Status)
	assert.Equal(t, apperrors.MsgUnavailable, out.Msg)
	assert.Empty(t, out.Img)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerate_ValidationFailure(t *testing.T) {
	var calls int32
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer render.Close()

	r := newPipelineRouter(t, render.URL, "http://127.0.0.1:1/unused")
	body, ct := multipartBody(t, map[string]string{"template_type": "feed_location"}, nil)

	rec, out := post(t, r, body, ct, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, out.Status)
	assert.Equal(t, "Title is required<br>Location is required", out.Msg)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestGenerate_UploadsImageBeforeRender(t *testing.T) {
	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "photo.jpg", header.Filename)
		_, _ = w.Write([]byte(`{"status":1,"file_path":"uploads/photo_1.jpg"}`))
	}))
	defer upload.Close()

	received := make(chan map[string][]string, 1)
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- r.MultipartForm.Value
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer render.Close()

	r := newPipelineRouter(t, render.URL, upload.URL)
	body, ct := multipartBody(t, map[string]string{
		"template_type": "web_news_story",
		"title":         "Breaking",
		"crop_mode":     "square",
	}, &filePart{name: "photo.jpg", data: []byte("jpeg-bytes")})

	rec, out := post(t, r, body, ct, nil)

	require.Equal(t, http.StatusOK, rec.Code, out.Msg)
	form := <-received
	assert.Equal(t, []string{"uploads/photo_1.jpg"}, form["image_path"])
	assert.Equal(t, []string{"story"}, form["crop_mode"])
	assert.Equal(t, []string{"web_news_story"}, form["template_type"])
}

func TestGenerate_URLEncodedForm(t *testing.T) {
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer render.Close()

	r := newPipelineRouter(t, render.URL, "http://127.0.0.1:1/unused")
	form := url.Values{"template_type": {"feed_basic"}, "title": {"Hello"}}

	rec, out := post(t, r, bytes.NewBufferString(form.Encode()), "application/x-www-form-urlencoded", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, out.Status)
}

func TestGenerate_RequestIDHeader(t *testing.T) {
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer render.Close()
	r := newPipelineRouter(t, render.URL, "http://127.0.0.1:1/unused")

	body, ct := multipartBody(t, map[string]string{"template_type": "feed_basic", "title": "Hi"}, nil)
	rec, _ := post(t, r, body, ct, map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	body, ct = multipartBody(t, map[string]string{"template_type": "feed_basic", "title": "Hi"}, nil)
	rec, _ = post(t, r, body, ct, nil)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestGenerate_BodyTooLarge(t *testing.T) {
	r := newPipelineRouter(t, "http://127.0.0.1:1/unused", "http://127.0.0.1:1/unused")
	body, ct := multipartBody(t, map[string]string{"template_type": "feed_basic", "title": "Hi"},
		&filePart{name: "big.jpg", data: bytes.Repeat([]byte("x"), 2<<20)})

	rec, out := post(t, r, body, ct, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, out.Status)
	assert.NotEmpty(t, out.Msg)
}

type stubService struct {
	fn func() (*generateimage.TemplateResponse, error)
}

func (s stubService) Generate(context.Context, *generateimage.TemplateRequest) (*generateimage.TemplateResponse, error) {
	return s.fn()
}

func newStubRouter(t *testing.T, fn func() (*generateimage.TemplateResponse, error)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)
	return router.Setup(template.NewHandler(stubService{fn: fn}, log, 0), router.Options{Logger: log})
}

func TestGenerate_PanicBecomes500(t *testing.T) {
	r := newStubRouter(t, func() (*generateimage.TemplateResponse, error) {
		panic("render table corrupted")
	})
	body, ct := multipartBody(t, map[string]string{"template_type": "feed_basic"}, nil)

	rec, out := post(t, r, body, ct, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, out.Status)
	assert.NotEmpty(t, out.Msg)
	assert.NotContains(t, out.Msg, "corrupted")
	assert.NotNil(t, out.ProcessingTime)
}

func TestGenerate_ServiceErrorBecomes500(t *testing.T) {
	r := newStubRouter(t, func() (*generateimage.TemplateResponse, error) {
		return nil, apperrors.NewInternalError(assert.AnError)
	})
	body, ct := multipartBody(t, map[string]string{"template_type": "feed_basic"}, nil)

	rec, out := post(t, r, body, ct, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, out.Status)
	assert.Equal(t, "Unexpected error", out.Msg)
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.NewNoOpLogger()
	h := template.NewHandler(stubService{}, log, 0)

	healthy := router.Setup(h, router.Options{Logger: log, Checks: map[string]router.HealthCheck{
		"redis": func(context.Context) error { return nil },
	}})
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	degraded := router.Setup(h, router.Options{Logger: log, Checks: map[string]router.HealthCheck{
		"redis": func(context.Context) error { return assert.AnError },
	}})
	rec = httptest.NewRecorder()
	degraded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "degraded"))
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.NewNoOpLogger()
	r := router.Setup(template.NewHandler(stubService{}, log, 0), router.Options{Logger: log, MetricsEnabled: true})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
