package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/metrics"
	"github.com/andreyxaxa/photo-pipeline/internal/testutil"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/image"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/record"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topic = "photo-events"

type env struct {
	app   *fiber.App
	store *testutil.RecordStore
	blobs *testutil.BlobStore
	pub   *testutil.Publisher
}

func newEnv(t *testing.T) *env {
	t.Helper()

	l := logger.NewNop()
	e := &env{
		app:   fiber.New(),
		store: testutil.NewRecordStore(),
		blobs: testutil.NewBlobStore(),
		pub:   testutil.NewPublisher(),
	}

	records := record.New(e.store, testutil.NewOutbox(), testutil.Transactor{}, time.Hour, l)
	img := image.New(e.blobs, records, e.pub, "photos", topic, l)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewPipelineMetrics(registry)
	require.NoError(t, err)
	m.Message("events", "done")

	NewRouter(e.app, img, registry, l)

	return e
}

func (e *env) do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, code)

	code, body := e.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "pipeline_messages_total")
}

func TestUpload(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="beach.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	code, body := e.do(t, req)
	require.Equal(t, http.StatusAccepted, code, string(body))

	var resp response.Upload
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "photos", resp.Bucket)
	assert.Equal(t, "image/jpeg", resp.ContentType)
	assert.Equal(t, int64(len("jpeg bytes")), resp.Size)
	assert.True(t, strings.HasSuffix(resp.ID, ".jpg"))
	assert.True(t, e.blobs.Has(entity.BlobRef{Bucket: "photos", Key: resp.ID}))
	assert.Len(t, e.pub.Messages(topic), 1)
}

func TestUploadWithoutFile(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, httptest.NewRequest(http.MethodPost, "/v1/upload", nil))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetImage(t *testing.T) {
	e := newEnv(t)
	caption := "sunset"
	e.store.Put(&entity.Image{ID: "a.jpg", Caption: &caption, Status: entity.StatusPass})

	code, body := e.do(t, httptest.NewRequest(http.MethodGet, "/v1/image/a.jpg", nil))
	require.Equal(t, http.StatusOK, code)

	var img entity.Image
	require.NoError(t, json.Unmarshal(body, &img))
	assert.Equal(t, "a.jpg", img.ID)
	assert.Equal(t, "sunset", *img.Caption)
	assert.Equal(t, entity.StatusPass, img.Status)

	code, _ = e.do(t, httptest.NewRequest(http.MethodGet, "/v1/image/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpdateMetadata(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, jsonRequest(http.MethodPost, "/v1/image/a.jpg/metadata", `{"field":"Caption","value":"sunset"}`))
	require.Equal(t, http.StatusAccepted, code, string(body))

	msgs := e.pub.Messages(topic)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Caption", msgs[0].Attr("metadata_type"))

	code, _ = e.do(t, jsonRequest(http.MethodPost, "/v1/image/a.jpg/metadata", `{"field":"Caption"}`))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, jsonRequest(http.MethodPost, "/v1/image/a.jpg/metadata", `{"value":"x"}`))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpdateStatus(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, jsonRequest(http.MethodPost, "/v1/image/a.jpg/status", `{"status":"Pass","reason":"Great shot"}`))
	require.Equal(t, http.StatusAccepted, code, string(body))

	var resp response.Accepted
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "a.jpg", resp.ID)
	assert.Equal(t, "queued", resp.Status)
	assert.Len(t, e.pub.Messages(topic), 1)

	code, _ = e.do(t, jsonRequest(http.MethodPost, "/v1/image/a.jpg/status", `{"reason":"x"}`))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPublishFailure(t *testing.T) {
	e := newEnv(t)
	e.pub.Err = context.DeadlineExceeded

	code, _ := e.do(t, jsonRequest(http.MethodPost, "/v1/image/a.jpg/status", `{"status":"Pass"}`))
	assert.Equal(t, http.StatusInternalServerError, code)
}
