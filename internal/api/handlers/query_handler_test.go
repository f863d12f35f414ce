package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
	"github.com/zatekoja/insurance-qa/pkg/normalize"
)

type stubQueryService struct {
	bundle    *entities.AnswerBundle
	err       error
	lastInput normalize.Input
}

func (s *stubQueryService) Answer(_ context.Context, input normalize.Input) (*entities.AnswerBundle, error) {
	s.lastInput = input
	return s.bundle, s.err
}

func postQuery(t *testing.T, handler *QueryHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.Answer(rec, req)
	return rec
}

func TestQueryHandler_Success(t *testing.T) {
	service := &stubQueryService{bundle: &entities.AnswerBundle{
		Answer:  "Cleanings are covered twice a year.",
		Sources: []entities.Source{{FragmentID: "f-1", InsurerID: "allianz", Category: "health", Similarity: 0.91}},
	}}
	handler := NewQueryHandler(service, nil)

	rec := postQuery(t, handler, `{"queryText":"Is dental cleaning covered?","categoryFilter":["health"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got entities.AnswerBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, service.bundle.Answer, got.Answer)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "f-1", got.Sources[0].FragmentID)

	assert.Equal(t, "Is dental cleaning covered?", service.lastInput.QueryText)
}

func TestQueryHandler_MalformedBody(t *testing.T) {
	handler := NewQueryHandler(&stubQueryService{}, nil)

	rec := postQuery(t, handler, `{"queryText":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryHandler_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", apperrors.NewValidationError("query must not be empty"), http.StatusBadRequest},
		{"unauthorized", apperrors.NewUnauthorizedError("bad api key"), http.StatusUnauthorized},
		{"rate limited", apperrors.NewRateLimitError("budget exhausted"), http.StatusTooManyRequests},
		{"timeout", apperrors.NewTimeoutError("pipeline deadline exhausted", nil), http.StatusGatewayTimeout},
		{"provider", apperrors.NewProviderError("typesense unreachable", nil), http.StatusBadGateway},
		{"internal", apperrors.NewInternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewQueryHandler(&stubQueryService{err: tc.err}, nil)

			rec := postQuery(t, handler, `{"queryText":"coverage"}`)

			assert.Equal(t, tc.expected, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}
