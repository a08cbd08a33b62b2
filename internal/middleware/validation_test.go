package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "priceindex/internal/errors"
	"priceindex/internal/shared/testutil"
)

type sampleRequest struct {
	Method string   `json:"method" validate:"required,oneof=TPD TDH"`
	Column string   `json:"column" validate:"column"`
	Rows   []sample `json:"rows" validate:"required,min=1,dive"`
}

type sample struct {
	Price float64 `json:"price" validate:"gt=0"`
}

func newValidation(t *testing.T, maxBody int64) *ValidationMiddleware {
	logger, _ := testutil.NewTestLogger(t)
	return NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false), maxBody)
}

func TestValidateStruct(t *testing.T) {
	v := newValidation(t, 0)

	tests := []struct {
		name       string
		req        sampleRequest
		wantFields []string
	}{
		{"valid", sampleRequest{Method: "TPD", Rows: []sample{{Price: 1}}}, nil},
		{"unknown method", sampleRequest{Method: "FOO", Rows: []sample{{Price: 1}}}, []string{"method"}},
		{"lowercase method", sampleRequest{Method: "tdh", Rows: []sample{{Price: 1}}}, []string{"method"}},
		{"bad column", sampleRequest{Method: "TPD", Column: "a,b", Rows: []sample{{Price: 1}}}, []string{"column"}},
		{"no rows", sampleRequest{Method: "TPD"}, []string{"rows"}},
		{"non-positive price", sampleRequest{Method: "TPD", Rows: []sample{{Price: 0}}}, []string{"rows[0].price"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

			details, ok := apiErr.Details.([]apierrors.ValidationError)
			require.True(t, ok)
			fields := make([]string, len(details))
			for i, d := range details {
				fields[i] = d.Field
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	v := newValidation(t, 32)

	var got string
	h := v.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"valid json", http.MethodPost, `{"method":"TPD"}`, http.StatusOK},
		{"invalid json", http.MethodPost, `{"method":`, http.StatusBadRequest},
		{"too large", http.MethodPost, `{"method":"` + strings.Repeat("x", 64) + `"}`, http.StatusRequestEntityTooLarge},
		{"get skips validation", http.MethodGet, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = ""
			req := httptest.NewRequest(tt.method, "/api/indexes", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.body, got, "body is restored for the handler")
			}
		})
	}

	t.Run("multipart skips validation", func(t *testing.T) {
		body := "--x\r\n" + strings.Repeat("y", 64)
		req := httptest.NewRequest(http.MethodPost, "/api/indexes/upload", strings.NewReader(body))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, got)
	})
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("application/json", "multipart/form-data")(okHandler)

	tests := []struct {
		contentType string
		wantStatus  int
	}{
		{"application/json; charset=utf-8", http.StatusOK},
		{"multipart/form-data; boundary=x", http.StatusOK},
		{"text/plain", http.StatusUnsupportedMediaType},
		{"", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	w := httptest.NewRecorder()
	n, ok := v.ValidateInt(w, httptest.NewRequest(http.MethodGet, "/?limit=5", nil), "limit", 1, 100, 20)
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	n, ok = v.ValidateInt(w, httptest.NewRequest(http.MethodGet, "/", nil), "limit", 1, 100, 20)
	assert.True(t, ok)
	assert.Equal(t, 20, n)

	w = httptest.NewRecorder()
	_, ok = v.ValidateInt(w, httptest.NewRequest(http.MethodGet, "/?limit=500", nil), "limit", 1, 100, 20)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	_, ok = v.ValidateInt(w, httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), "limit", 1, 100, 20)
	assert.False(t, ok)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, apierrors.TypeValidation, body["type"])

	format, ok := v.ValidateEnum(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?format=XLSX", nil), "format", []string{"csv", "xlsx", "json"}, "csv")
	assert.True(t, ok)
	assert.Equal(t, "xlsx", format)

	_, ok = v.ValidateEnum(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?format=pdf", nil), "format", []string{"csv", "xlsx", "json"}, "csv")
	assert.False(t, ok)
}
