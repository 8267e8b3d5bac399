package verification

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaultd-io/vaultd/internal/snapshot"
)

func newTestRouter(t *testing.T, dispatcher Dispatcher) (chi.Router, *Service) {
	t.Helper()
	svc := NewService(newMemoryRepo(), dispatcher, nil, slog.New(slog.DiscardHandler))
	handler := NewHandler(slog.New(slog.DiscardHandler), svc, snapshot.NewSink(t.TempDir()))
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, svc
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestSendCodeEndpoint(t *testing.T) {
	dispatcher := &captureDispatcher{}
	r, _ := newTestRouter(t, dispatcher)

	res := doJSON(t, r, http.MethodPost, "/send-code/", `{"email":"user@test.local"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "success", body["status"])
	require.Equal(t, "user@test.local", body["email"])
	require.Len(t, dispatcher.sent, 1)
}

func TestSendCodeValidation(t *testing.T) {
	r, _ := newTestRouter(t, &captureDispatcher{})

	res := doJSON(t, r, http.MethodPost, "/send-code/", `{"email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCheckCodeEndpointFlow(t *testing.T) {
	r, svc := newTestRouter(t, &captureDispatcher{})
	code, err := svc.Issue(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "user@test.local")
	require.NoError(t, err)

	// Unknown email first.
	res := doJSON(t, r, http.MethodPost, "/check-code", `{"email":"ghost@test.local","user_code":"123456"}`)
	require.Equal(t, http.StatusNotFound, res.Code)

	// Wrong code leaves the entry pending.
	res = doJSON(t, r, http.MethodPost, "/check-code", `{"email":"user@test.local","user_code":"000000"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	// Matching code consumes it.
	res = doJSON(t, r, http.MethodPost, "/check-code", `{"email":"user@test.local","user_code":"`+code+`"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "success", body["status"])
	require.Equal(t, "Code verified successfully", body["message"])

	// Second consumption is rejected.
	res = doJSON(t, r, http.MethodPost, "/check-code", `{"email":"user@test.local","user_code":"`+code+`"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCheckCodeRejectsMalformedCode(t *testing.T) {
	r, _ := newTestRouter(t, &captureDispatcher{})

	for _, code := range []string{"12345", "1234567", "12345a", ""} {
		res := doJSON(t, r, http.MethodPost, "/check-code", `{"email":"user@test.local","user_code":"`+code+`"}`)
		require.Equal(t, http.StatusBadRequest, res.Code, "code %q", code)
	}
}

func TestListCodesEndpoint(t *testing.T) {
	r, svc := newTestRouter(t, &captureDispatcher{})
	_, err := svc.Issue(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "user@test.local")
	require.NoError(t, err)

	res := doJSON(t, r, http.MethodGet, "/get_codes_db", "")
	require.Equal(t, http.StatusOK, res.Code)

	var body []entrySnapshot
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body, 1)
	require.Equal(t, "user@test.local", body[0].Email)
	require.False(t, body[0].IsUsed)
	require.NotNil(t, body[0].CreatedAt)
}
