package profiles

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ajoubeir/chat-service/internal/service"
	"github.com/ajoubeir/chat-service/internal/testutil/memstore"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	profiles := service.NewProfileService(memstore.New(), nil, 0)
	r := gin.New()
	MountRoutes(r, profiles)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProfileCRUD(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/profile",
		map[string]any{"username": "john", "firstName": "John", "lastName": "Smith"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/profile/john", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "john", body["username"])
	require.Equal(t, "Smith", body["lastName"])
	_, hasPicture := body["profilePictureId"]
	require.False(t, hasPicture)

	// Update takes the username from the path, not the body.
	w = doJSON(t, r, http.MethodPut, "/api/profile/john",
		map[string]any{"firstName": "John", "lastName": "Doe", "profilePictureId": "pic-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/profile/john", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	require.Equal(t, "Doe", body["lastName"])
	require.Equal(t, "pic-1", body["profilePictureId"])
}

func TestAddProfileConflict(t *testing.T) {
	r := newTestRouter(t)

	profile := map[string]any{"username": "john", "firstName": "John", "lastName": "Smith"}
	w := doJSON(t, r, http.MethodPost, "/api/profile", profile)
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/profile", profile)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAddProfileValidation(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/profile",
		map[string]any{"username": "", "firstName": "John", "lastName": "Smith"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_error", decodeBody(t, w)["code"])
}

func TestGetProfileNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/profile/ghost", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", decodeBody(t, w)["code"])
}

func TestUpdateProfileNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/api/profile/ghost",
		map[string]any{"firstName": "No", "lastName": "Body"})
	require.Equal(t, http.StatusNotFound, w.Code)
}
