package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStorage records the last upload instead of talking to a bucket.
type fakeStorage struct {
	key         string
	contentType string
	size        int64
	data        []byte
}

func (f *fakeStorage) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.key = key
	f.contentType = contentType
	f.size = size
	f.data = data
	return "https://cdn.test/" + key, nil
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func uploadRequest(t *testing.T, token, field, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func doUpload(t *testing.T, router http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestUploadImage(t *testing.T) {
	store := &fakeStorage{}
	router := newTestRouterWithStorage(t, store)
	token := registerAdmin(t, router)

	rec, body := doUpload(t, router, uploadRequest(t, token, "image", "photo.png", pngBytes))
	require.Equal(t, http.StatusCreated, rec.Code, "upload: %v", body)

	d := data(t, body)
	assert.Equal(t, "image/png", d["contentType"])
	assert.EqualValues(t, len(pngBytes), d["size"])

	key := d["key"].(string)
	assert.True(t, strings.HasPrefix(key, "images/"), "key %q", key)
	assert.True(t, strings.HasSuffix(key, ".png"), "key %q", key)
	assert.Equal(t, "https://cdn.test/"+key, d["url"])

	// The stored object is the whole file, not just the sniffed head.
	assert.Equal(t, pngBytes, store.data)
	assert.Equal(t, "image/png", store.contentType)

	// Extensions follow the sniffed type, not the uploaded filename.
	gif := append([]byte("GIF89a"), bytes.Repeat([]byte{0}, 32)...)
	rec, body = doUpload(t, router, uploadRequest(t, token, "image", "misleading.png", gif))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, strings.HasSuffix(data(t, body)["key"].(string), ".gif"))
}

func TestUploadRejectsUnknownType(t *testing.T) {
	router := newTestRouterWithStorage(t, &fakeStorage{})
	token := registerAdmin(t, router)

	rec, body := doUpload(t, router, uploadRequest(t, token, "image", "notes.txt", []byte("plain text, not an image")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "unsupported image type")
}

func TestUploadRejectsOversize(t *testing.T) {
	router := newTestRouterWithStorage(t, &fakeStorage{})
	token := registerAdmin(t, router)

	huge := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, maxUploadBytes)...)
	rec, body := doUpload(t, router, uploadRequest(t, token, "image", "huge.png", huge))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "5 MB")
}

func TestUploadRequiresImageField(t *testing.T) {
	router := newTestRouterWithStorage(t, &fakeStorage{})
	token := registerAdmin(t, router)

	rec, body := doUpload(t, router, uploadRequest(t, token, "attachment", "photo.png", pngBytes))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], `"image" file field`)
}

func TestUploadAuthorization(t *testing.T) {
	router := newTestRouterWithStorage(t, &fakeStorage{})
	registerAdmin(t, router)
	userToken, _ := registerTestUser(t, router, "reader@example.com", "reader")

	rec, _ := doUpload(t, router, uploadRequest(t, userToken, "image", "photo.png", pngBytes))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doUpload(t, router, uploadRequest(t, "", "image", "photo.png", pngBytes))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadWithoutStorage(t *testing.T) {
	router := newTestRouter(t)
	token := registerAdmin(t, router)

	rec, body := doUpload(t, router, uploadRequest(t, token, "image", "photo.png", pngBytes))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "image storage is not configured", body["error"])
}
