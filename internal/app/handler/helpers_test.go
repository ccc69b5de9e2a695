package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation("name is required"), http.StatusBadRequest, "name is required"},
		{"conflict", apperr.Conflict("short code already exists"), http.StatusConflict, "short code already exists"},
		{"not found", apperr.NotFound("folder not found"), http.StatusNotFound, "folder not found"},
		{"malformed", &malformedRequest{status: http.StatusUnsupportedMediaType, msg: "bad type"}, http.StatusUnsupportedMediaType, "bad type"},
		{"internal", &apperr.OperationError{Op: "list media", Err: errors.New("connection reset")}, http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			rec := httptest.NewRecorder()

			writeError(rec, zap.New(core), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"`+tt.message+`"}`, rec.Body.String())

			if tt.status == http.StatusInternalServerError {
				require.Equal(t, 1, logs.Len())
				assert.Contains(t, logs.All()[0].ContextMap()["error"], "connection reset")
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"wrong content type", "text/plain", `{}`, http.StatusUnsupportedMediaType},
		{"empty", "application/json", ``, http.StatusBadRequest},
		{"syntax", "application/json", `{"name":}`, http.StatusBadRequest},
		{"type mismatch", "application/json", `{"name":1}`, http.StatusBadRequest},
		{"two objects", "application/json", `{"name":"a"}{"name":"b"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			var dst models.CreateFolderRequest
			err := decodeJSONBody(httptest.NewRecorder(), req, &dst)

			var mr *malformedRequest
			require.ErrorAs(t, err, &mr)
			assert.Equal(t, tt.status, mr.status)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"docs"}`))
	var dst models.CreateFolderRequest
	require.NoError(t, decodeJSONBody(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "docs", dst.Name)
}

func TestParseDateRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2024-03-01&to=2024-03-02", nil)
	rng, err := parseDateRange(req)
	require.NoError(t, err)
	require.NotNil(t, rng.From)
	require.NotNil(t, rng.To)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *rng.From)
	assert.True(t, rng.Contains(time.Date(2024, 3, 2, 23, 59, 0, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)))

	req = httptest.NewRequest(http.MethodGet, "/?to=2024-03-02T10:00:00Z", nil)
	rng, err = parseDateRange(req)
	require.NoError(t, err)
	assert.Nil(t, rng.From)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), rng.To.UTC())

	req = httptest.NewRequest(http.MethodGet, "/?from=03/01/2024", nil)
	_, err = parseDateRange(req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=-1&root=true&parentId=p1&bad=x", nil)

	assert.Equal(t, 3, queryInt(req, "page"))
	assert.Equal(t, 0, queryInt(req, "limit"))
	assert.Equal(t, 0, queryInt(req, "bad"))
	assert.True(t, queryBool(req, "root"))
	assert.False(t, queryBool(req, "missing"))
	require.NotNil(t, queryRef(req, "parentId"))
	assert.Equal(t, "p1", *queryRef(req, "parentId"))
	assert.Nil(t, queryRef(req, "missing"))
}

func TestDigitalLinkRequest(t *testing.T) {
	req, meta := digitalLinkRequest(models.CreateDigitalLinkRequest{
		GS1Key:       "123",
		GS1KeyType:   "GTIN",
		RedirectType: models.RedirectStandard,
		ProductID:    "p1",
		Title:        "Cereal",
	})
	assert.Equal(t, models.GS1Link{Key: "123", KeyType: "GTIN", RedirectType: models.RedirectStandard, ProductID: "p1"}, req)
	assert.Equal(t, "Cereal", meta.Title)

	req, _ = digitalLinkRequest(models.CreateDigitalLinkRequest{LinkType: "gs1", GS1Key: "1"})
	assert.IsType(t, models.GS1Link{}, req)

	req, _ = digitalLinkRequest(models.CreateDigitalLinkRequest{
		LinkType:  "form",
		TargetURL: "https://forms.example/1",
		GS1Key:    "123",
	})
	assert.Equal(t, models.SpecialLink{Kind: models.SpecialForm, TargetURL: "https://forms.example/1", Key: "123"}, req)
}
