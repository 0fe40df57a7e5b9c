package popup_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/book-expert/speak-service/internal/popup"
	"github.com/book-expert/speak-service/internal/settings"
	"github.com/book-expert/speak-service/internal/tts"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, initial map[string]string) (*mux.Router, *fakeService) {
	t.Helper()

	session, service, _ := newSession(t, initial)

	return popup.NewHandler(session, newTestLogger(t)).Router(), service
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	return recorder
}

func decodeView(t *testing.T, recorder *httptest.ResponseRecorder) popup.View {
	t.Helper()

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var view popup.View
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &view))

	return view
}

func TestHandler_SetupFlow(t *testing.T) {
	t.Parallel()

	router, _ := newRouter(t, nil)

	view := decodeView(t, doRequest(t, router, http.MethodGet, "/api/settings", nil))
	assert.True(t, view.SetupNeeded)

	rejected := doRequest(t, router, http.MethodPut, "/api/credentials", popup.CredentialsRequest{APIKey: "key"})
	assert.Equal(t, http.StatusBadRequest, rejected.Code)

	view = decodeView(t, doRequest(t, router, http.MethodPut, "/api/credentials",
		popup.CredentialsRequest{APIKey: "key", Region: "eastus"}))
	assert.False(t, view.SetupNeeded)
	assert.False(t, view.VoicesLoaded)

	view = decodeView(t, doRequest(t, router, http.MethodPost, "/api/voices/load", nil))
	assert.True(t, view.VoicesLoaded)
	assert.Len(t, view.Voices, 4)

	language := "en"
	multilingual := true
	view = decodeView(t, doRequest(t, router, http.MethodPut, "/api/filters",
		popup.FilterRequest{Language: &language}))
	assert.Len(t, view.Voices, 3)

	view = decodeView(t, doRequest(t, router, http.MethodPut, "/api/filters",
		popup.FilterRequest{MultilingualOnly: &multilingual}))
	assert.Equal(t, "en", view.LanguageFilter, "omitted fields keep their value")
	assert.Len(t, view.Voices, 1)

	view = decodeView(t, doRequest(t, router, http.MethodPut, "/api/voice",
		popup.VoiceRequest{ShortName: "en-US-AvaMultilingualNeural"}))
	assert.Equal(t, "en-US-AvaMultilingualNeural", view.SelectedVoice)

	view = decodeView(t, doRequest(t, router, http.MethodGet, "/api/voices", nil))
	assert.True(t, view.SelectedVisible)
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()

	t.Run("bad body", func(t *testing.T) {
		t.Parallel()

		router, _ := newRouter(t, nil)
		req := httptest.NewRequest(http.MethodPut, "/api/credentials", bytes.NewBufferString("{"))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()

		router, _ := newRouter(t, nil)
		recorder := doRequest(t, router, http.MethodDelete, "/api/settings", nil)

		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	})

	t.Run("voice before load", func(t *testing.T) {
		t.Parallel()

		router, _ := newRouter(t, nil)
		recorder := doRequest(t, router, http.MethodPut, "/api/voice", popup.VoiceRequest{ShortName: "en-US-JennyNeural"})

		assert.Equal(t, http.StatusConflict, recorder.Code)
	})

	t.Run("upstream status is reported", func(t *testing.T) {
		t.Parallel()

		router, service := newRouter(t, map[string]string{
			settings.KeyAPIKey: "key",
			settings.KeyRegion: "eastus",
		})
		service.tokenErr = &tts.StatusError{Kind: tts.ErrAuth, StatusCode: http.StatusUnauthorized, Reason: "Unauthorized"}

		recorder := doRequest(t, router, http.MethodPost, "/api/voices/load", nil)
		require.Equal(t, http.StatusBadGateway, recorder.Code)

		var body popup.ErrorResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, http.StatusUnauthorized, body.Status)
		assert.Contains(t, body.Error, "token request failed with status 401: Unauthorized")
	})
}
