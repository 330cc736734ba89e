package images

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ajoubeir/chat-service/internal/config"
	"github.com/ajoubeir/chat-service/internal/registry/blob"
	"github.com/ajoubeir/chat-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type memPictureStore struct {
	mu       sync.Mutex
	pictures map[string][]byte
}

func (f *memPictureStore) Store(ctx context.Context, pictureID string, data io.Reader, maxSize int64, contentType string) (*blob.StoreResult, error) {
	buf, err := io.ReadAll(io.LimitReader(data, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > maxSize {
		return nil, fmt.Errorf("picture exceeds maximum size of %d bytes", maxSize)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pictures[pictureID] = buf
	sum := sha256.Sum256(buf)
	return &blob.StoreResult{Size: int64(len(buf)), SHA256: hex.EncodeToString(sum[:])}, nil
}

func (f *memPictureStore) Retrieve(ctx context.Context, pictureID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf, ok := f.pictures[pictureID]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (f *memPictureStore) Delete(ctx context.Context, pictureID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pictures, pictureID)
	return nil
}

func (f *memPictureStore) GetSignedURL(ctx context.Context, pictureID string, expiry time.Duration) (*url.URL, error) {
	return nil, fmt.Errorf("signed URLs are not supported by the in-memory picture store")
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pictures := service.NewPictureService(&memPictureStore{pictures: map[string][]byte{}}, 1024, time.Minute)
	cfg := config.DefaultConfig()
	cfg.S3DirectDownload = false

	r := gin.New()
	MountRoutes(r, pictures, &cfg)
	return r
}

func uploadRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "avatar.png")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAndDownloadImage(t *testing.T) {
	r := newTestRouter(t)
	content := []byte("fake png bytes")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, content))
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		ImageID string `json:"imageId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.ImageID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/images/"+body.ImageID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, content, w.Body.Bytes())
	require.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
}

func TestUploadImageMissingFile(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/images", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadImageEmpty(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadImageNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/images/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
