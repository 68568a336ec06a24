package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/context"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		meta    map[string]any
	}{
		{
			name:    "validation",
			err:     ferrors.Validation("target id is required"),
			status:  http.StatusBadRequest,
			message: "target id is required",
			meta:    map[string]any{"kind": "validation"},
		},
		{
			name:    "not found with entity",
			err:     ferrors.NotFound("entity", "e1"),
			status:  http.StatusNotFound,
			message: "entity e1 not found",
			meta:    map[string]any{"kind": "not_found", "entity_id": "e1"},
		},
		{
			name:    "storage hides driver error",
			err:     ferrors.Storage("update entity", errors.New("pq: deadlock detected")),
			status:  http.StatusInternalServerError,
			message: "update entity: storage failure",
			meta:    map[string]any{"kind": "storage"},
		},
		{
			name:    "http error",
			err:     httperror.NewHTTPError(http.StatusBadRequest, "invalid request body"),
			status:  http.StatusBadRequest,
			message: "invalid request body",
			meta:    map[string]any{},
		},
		{
			name:    "echo error",
			err:     echo.NewHTTPError(http.StatusNotFound, "Not Found"),
			status:  http.StatusNotFound,
			message: "Not Found",
			meta:    map[string]any{},
		},
		{
			name:    "untyped",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			message: "Internal Server Error",
			meta:    map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.SetRequestID(req.Context(), "req-1"))
			rec := httptest.NewRecorder()

			Error(testutil.Logger())(tt.err, e.NewContext(req, rec))

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, "req-1", resp.RequestID)
			assert.Equal(t, tt.meta, resp.Meta)
		})
	}
}

func TestContext(t *testing.T) {
	e := echo.New()
	var requestID, folderID string
	e.GET("/", func(c echo.Context) error {
		requestID = context.GetRequestID(c.Request().Context())
		folderID = context.GetFolderID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	}, Context())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderFolderID, "f1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "f1", folderID)
}

func TestContainer_UnknownID(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = Error(testutil.Logger())
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, Container("no-such-container"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
