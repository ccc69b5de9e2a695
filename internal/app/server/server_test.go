package server_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/app/handler"
	"github.com/atinyakov/linkcore/internal/app/server"
	"github.com/atinyakov/linkcore/internal/app/service"
	"github.com/atinyakov/linkcore/internal/blobstore"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

const baseURL = "http://localhost:8080"

type testServer struct {
	t      *testing.T
	router http.Handler
	auth   *service.Auth
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	store, err := storage.CreateMemoryStorage()
	require.NoError(t, err)

	uploads := t.TempDir()
	disk, err := blobstore.NewDisk(uploads, logger)
	require.NoError(t, err)

	codes := service.NewCodeResolver(store, service.DefaultCodeLength)
	gs1 := service.NewDigitalLinkFormatter(store)
	namespace := service.NewNamespace(store, disk, logger)

	h := handler.New(handler.Services{
		Links:     service.NewLinks(store, codes, gs1, service.NewDirectRecorder(store), logger),
		Namespace: namespace,
		Media:     service.NewMediaCatalog(store, disk, namespace, logger),
		Analytics: service.NewAnalytics(store, codes, gs1, logger),
		Pinger:    store,
	}, baseURL, logger)

	auth := service.NewAuth("test-secret")
	token, err := auth.BuildJWTString("c1", "u1")
	require.NoError(t, err)

	return &testServer{
		t:      t,
		router: server.Init(h, server.Options{Auth: auth, UploadsDir: uploads}, logger),
		auth:   auth,
		token:  token,
	}
}

// do sends a request as the given bearer token; an empty token sends none.
func (s *testServer) do(method, target, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) api(method, target string, body any) *httptest.ResponseRecorder {
	return s.do(method, target, s.token, body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/links", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/links", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: s.token})
	cookieRec := httptest.NewRecorder()
	s.router.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)
}

func TestShortLinkLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(http.MethodPost, "/api/links", models.ShortLinkInput{
		OriginalURL: "https://example.com/landing",
		ShortCode:   "promo",
		Title:       "Promo",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.ShortLinkResponse](t, rec)
	assert.Equal(t, "promo", created.ShortCode)
	assert.Equal(t, baseURL+"/r/s/promo", created.ShortURL)
	assert.Equal(t, models.StatusActive, created.Status)

	rec = s.api(http.MethodPost, "/api/links", models.ShortLinkInput{
		OriginalURL: "https://example.com/other",
		ShortCode:   "promo",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "short code already exists", decode[models.ErrorResponse](t, rec).Error)

	rec = s.api(http.MethodPost, "/api/links", models.ShortLinkInput{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/r/s/promo", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://example.com/landing", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/r/s/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.api(http.MethodGet, "/api/links/"+created.ID+"/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"groupedByReferrer":[{"count":1,"referrer":"Direct"}]`)
	summary := decode[models.Summary](t, rec)
	assert.Equal(t, 1, summary.TotalCount)
	assert.Equal(t, []models.Bucket{{Value: "Direct", Count: 1}}, summary.GroupedByReferrer)

	title := "Renamed"
	rec = s.api(http.MethodPut, "/api/links/"+created.ID, models.ShortLinkPatch{Title: &title})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[models.ShortLinkResponse](t, rec)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 1, updated.Clicks)

	rec = s.api(http.MethodGet, "/api/links?search=renamed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		ShortLinks []models.ShortLinkResponse `json:"shortlinks"`
		Pagination models.Pagination          `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.ShortLinks, 1)
	assert.Equal(t, baseURL+"/r/s/promo", page.ShortLinks[0].ShortURL)
	assert.Equal(t, 1, page.Pagination.TotalCount)

	rec = s.api(http.MethodDelete, "/api/links/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.api(http.MethodGet, "/api/links/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.api(http.MethodGet, "/api/analytics/activity?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	activity := decode[models.ActivityResponse](t, rec)
	require.Len(t, activity.Activities, 3)
	assert.Equal(t, models.ActionDeleted, activity.Activities[0].Action)
}

func TestShortLinksAreScopedToCompany(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(http.MethodPost, "/api/links", models.ShortLinkInput{OriginalURL: "https://example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.ShortLinkResponse](t, rec)

	other, err := s.auth.BuildJWTString("c2", "u9")
	require.NoError(t, err)

	rec = s.do(http.MethodGet, "/api/links/"+created.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/links/"+created.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"originalUrl":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"unknown":1}`))
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown field")
}

func TestDigitalLinkLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(http.MethodPost, "/api/digitallinks", models.CreateDigitalLinkRequest{
		GS1Key:       "00011122233344",
		GS1KeyType:   "GTIN",
		RedirectType: models.RedirectCustom,
		CustomURL:    "https://brand.example/product",
		Title:        "Cereal",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	gtin := decode[models.DigitalLinkResponse](t, rec)
	require.NotNil(t, gtin.GS1URL)
	assert.Equal(t, "01/00011122233344", *gtin.GS1URL)
	assert.Equal(t, baseURL+"/r/d/01/00011122233344", gtin.URL)

	rec = s.api(http.MethodPost, "/api/digitallinks", models.CreateDigitalLinkRequest{
		GS1Key:       "00011122233344",
		GS1KeyType:   "GTIN",
		RedirectType: models.RedirectCustom,
		CustomURL:    "https://brand.example/dup",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.api(http.MethodPost, "/api/digitallinks", models.CreateDigitalLinkRequest{
		GS1Key:       "123",
		GS1KeyType:   "BOGUS",
		RedirectType: models.RedirectCustom,
		CustomURL:    "https://brand.example",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.api(http.MethodPost, "/api/digitallinks", models.CreateDigitalLinkRequest{
		GS1Key:       "4000000000001",
		GS1KeyType:   "GLN",
		RedirectType: models.RedirectStandard,
		ProductID:    "p-42",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.api(http.MethodPost, "/api/digitallinks", models.CreateDigitalLinkRequest{
		LinkType:  string(models.SpecialSurvey),
		TargetURL: "https://survey.example/s/1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	survey := decode[models.DigitalLinkResponse](t, rec)
	assert.Equal(t, models.RedirectCustom, survey.RedirectType)
	assert.Equal(t, string(models.SpecialSurvey), survey.LinkType)

	rec = s.do(http.MethodGet, "/r/d/01/00011122233344", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://brand.example/product", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/r/d/00011122233344", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	rec = s.do(http.MethodGet, "/r/d/414/4000000000001", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, baseURL+"/products/p-42", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/r/d/01/99999999999999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.api(http.MethodGet, "/api/digitallinks/"+gtin.ID+"/analytics?from=2000-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[models.Summary](t, rec).TotalCount)

	rec = s.api(http.MethodGet, "/api/digitallinks/"+gtin.ID+"/analytics?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	inactive := models.StatusInactive
	rec = s.api(http.MethodPut, "/api/digitallinks/"+gtin.ID, models.DigitalLinkPatch{Status: &inactive})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/r/d/01/00011122233344", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.api(http.MethodGet, "/api/digitallinks?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		DigitalLinks []models.DigitalLinkResponse `json:"digitallinks"`
		Pagination   models.Pagination            `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.DigitalLinks, 2)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 2, TotalCount: 3, TotalPages: 2}, page.Pagination)

	rec = s.api(http.MethodDelete, "/api/digitallinks/"+gtin.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.api(http.MethodGet, "/api/analytics/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.CompanySummary](t, rec)
	assert.Equal(t, 2, summary.TotalDigitallinks)
	assert.Equal(t, 1, summary.TotalDigitallinkClicks)
}

func TestFolders(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(http.MethodPost, "/api/folders", models.CreateFolderRequest{Name: "brand"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	brand := decode[models.Folder](t, rec)
	assert.Equal(t, "/brand", brand.Path)

	rec = s.api(http.MethodPost, "/api/folders", models.CreateFolderRequest{Name: "logos", ParentID: &brand.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	logos := decode[models.Folder](t, rec)
	assert.Equal(t, "/brand/logos", logos.Path)

	rec = s.api(http.MethodPost, "/api/folders", models.CreateFolderRequest{Name: "brand"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	name := "identity"
	rec = s.api(http.MethodPatch, "/api/folders/"+brand.ID, models.UpdateFolderRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "/identity", decode[models.Folder](t, rec).Path)

	rec = s.api(http.MethodGet, "/api/folders/"+logos.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/identity/logos", decode[models.Folder](t, rec).Path)

	rec = s.api(http.MethodGet, "/api/folders/"+brand.ID+"/descendants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Folder](t, rec), 1)

	rec = s.api(http.MethodPatch, "/api/folders/"+brand.ID, models.UpdateFolderRequest{ParentID: &logos.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.api(http.MethodPatch, "/api/folders/"+brand.ID, models.UpdateFolderRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	other := "other"
	rec = s.api(http.MethodPatch, "/api/folders/"+brand.ID, models.UpdateFolderRequest{Name: &other, ParentID: &logos.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.api(http.MethodGet, "/api/folders/"+brand.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/identity", decode[models.Folder](t, rec).Path)

	rec = s.api(http.MethodPatch, "/api/folders/"+logos.ID, models.UpdateFolderRequest{MoveToRoot: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/logos", decode[models.Folder](t, rec).Path)

	rec = s.api(http.MethodGet, "/api/folders?root=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Folder](t, rec), 2)

	rec = s.api(http.MethodGet, "/api/folders/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*models.TreeNode](t, rec), 2)

	rec = s.api(http.MethodDelete, "/api/folders/"+brand.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.api(http.MethodGet, "/api/folders/"+brand.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestMediaUpload(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(http.MethodPost, "/api/folders", models.CreateFolderRequest{Name: "shots"})
	require.Equal(t, http.StatusCreated, rec.Code)
	folder := decode[models.Folder](t, rec)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 3))))

	body, contentType := multipartUpload(t, "pixel.png", img.Bytes(), map[string]string{
		"folderId": folder.ID,
		"title":    "Pixel",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	m := decode[models.Media](t, rec)
	assert.Equal(t, models.MediaImage, m.Type)
	assert.Equal(t, "Pixel", m.Title)
	require.NotNil(t, m.Path)
	assert.Equal(t, "/shots", *m.Path)
	require.NotNil(t, m.Width)
	assert.Equal(t, 4, *m.Width)
	assert.True(t, strings.HasPrefix(m.URL, blobstore.URLPrefix+"/"))

	rec = s.do(http.MethodGet, m.URL, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, img.Bytes(), rec.Body.Bytes())

	alt := "a pixel"
	rec = s.api(http.MethodPatch, "/api/media/"+m.ID, models.UpdateMediaRequest{
		MediaPatch: models.MediaPatch{Alt: &alt},
		MoveToRoot: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[models.Media](t, rec)
	assert.Equal(t, "a pixel", moved.Alt)
	assert.Nil(t, moved.FolderID)

	rec = s.api(http.MethodGet, "/api/media?type=image", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.MediaPage](t, rec).Media, 1)

	rec = s.api(http.MethodDelete, "/api/media/"+m.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, m.URL, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMediaUploadRequiresFile(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "nothing"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file is required", decode[models.ErrorResponse](t, rec).Error)
}
