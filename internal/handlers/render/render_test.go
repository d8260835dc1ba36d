package render

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

const jsonContentType = "application/json; charset=utf-8"

func TestRender_JSON(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, map[string]any{"title": "Song", "sizeBytes": 5})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, jsonContentType, rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"title": "Song", "sizeBytes": 5}`, rec.Body.String())
}

func TestRender_JSONWithStatus(t *testing.T) {
	t.Run("status enforced", func(t *testing.T) {
		rec := httptest.NewRecorder()

		JSONWithStatus(rec, []string{}, http.StatusCreated)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("not encodable", func(t *testing.T) {
		rec := httptest.NewRecorder()

		JSONWithStatus(rec, map[string]any{"ch": make(chan int)}, http.StatusOK)

		require.Equal(t, http.StatusInternalServerError, rec.Code, "nothing is sent before data encoded")
	})
}

func TestRender_ServiceError(t *testing.T) {
	rec := httptest.NewRecorder()

	ServiceError(rec, "Track already uploaded", http.StatusConflict)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, jsonContentType, rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{
			"error": "service_error",
			"message": "Track already uploaded"
		}`,
		rec.Body.String(),
	)
}

func TestRender_DecodeError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name: "json parsing error",
			body: `invalid-json`,
			expected: `{
				"error":"decoding_failed",
				"message": "Failed to parse JSON: invalid character 'i' looking for beginning of value"
			}`,
		},
		{
			name: "invalid type",
			body: `{"title": "Song", "sizeBytes": "big"}`,
			expected: `{
				"error": "decoding_failed",
				"message": "Invalid data type for field 'sizeBytes'"
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var value struct {
				Title     string `json:"title"`
				SizeBytes int64  `json:"sizeBytes"`
			}
			err := json.Unmarshal([]byte(tt.body), &value)
			require.Error(t, err, "test expects invalid JSON")

			rec := httptest.NewRecorder()
			DecodeError(rec, err)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.JSONEq(t, tt.expected, rec.Body.String())
		})
	}
}

func TestRender_ValidationErrors(t *testing.T) {
	type upload struct {
		Title  string `json:"title" validate:"required"`
		Artist string `json:"artist" validate:"min=2"`
		Album  string `json:"album" validate:"max=3"`
		Email  string `json:"email" validate:"email"`
		Code   string `json:"code" validate:"notblank"`
	}

	err := validate.Struct(upload{Artist: "A", Album: "Long", Email: "not-valid-email", Code: " "})
	var errs validator.ValidationErrors
	require.True(t, errors.As(err, &errs), "be sure you pass structure to validator")

	rec := httptest.NewRecorder()
	ValidationErrors(rec, errs)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{
		"error": "validation_failed",
		"message": "Request validation failed",
		"fields": {
			"title": "This field is required",
			"artist": "Value is too short (minimum 2)",
			"album": "Value is too long (maximum 3)",
			"email": "Invalid value",
			"code": "Value must not be blank"
		}
	}`, rec.Body.String())
}

func TestRender_BindAndValidate(t *testing.T) {
	type refreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required,notblank"`
	}

	tests := []struct {
		name           string
		requestBody    string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "valid request",
			requestBody:    `{"refreshToken": "abc"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"refreshToken": "abc"}`,
		},
		{
			name:           "invalid json",
			requestBody:    `{"refreshToken":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "decoding_failed",
				"message": "Failed to parse JSON: unexpected EOF"
			}`,
		},
		{
			name:           "missing field",
			requestBody:    `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {"refreshToken": "This field is required"}
			}`,
		},
		{
			name:           "blank value",
			requestBody:    `{"refreshToken": "   "}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {"refreshToken": "Value must not be blank"}
			}`,
		},
		{
			name:           "body too large",
			requestBody:    `{"refreshToken": "` + strings.Repeat("a", maxBodyBytes) + `"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "decoding_failed",
				"message": "Failed to parse JSON: http: request body too large"
			}`,
		},
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := BindAndValidate[refreshRequest](w, r)
		if err != nil {
			return // error response written already
		}
		JSON(w, map[string]string{"refreshToken": data.RefreshToken})
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(tt.requestBody)))

			require.Equal(t, tt.expectedStatus, rec.Code)
			require.Equal(t, jsonContentType, rec.Header().Get("Content-Type"))
			require.JSONEq(t, tt.expectedBody, rec.Body.String())
		})
	}
}
