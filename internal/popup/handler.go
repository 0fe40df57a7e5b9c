package popup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/catalog"
	"github.com/book-expert/speak-service/internal/settings"
	"github.com/book-expert/speak-service/internal/tts"
	"github.com/gorilla/mux"
)

const maxRequestBodySize = 1 << 16

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

// CredentialsRequest is the body of PUT /api/credentials.
type CredentialsRequest struct {
	APIKey string `json:"apiKey"`
	Region string `json:"region"`
}

// FilterRequest is the body of PUT /api/filters. Omitted fields keep their
// current value.
type FilterRequest struct {
	Language         *string `json:"language"`
	MultilingualOnly *bool   `json:"multilingualOnly"`
}

// VoiceRequest is the body of PUT /api/voice.
type VoiceRequest struct {
	ShortName string `json:"shortName"`
}

// Handler exposes a Session over HTTP.
type Handler struct {
	session *Session
	log     *logger.Logger
}

// NewHandler creates a Handler for session.
func NewHandler(session *Session, log *logger.Logger) *Handler {
	return &Handler{session: session, log: log}
}

// RegisterRoutes registers the settings routes on router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/settings", h.Settings).Methods(http.MethodGet)
	api.HandleFunc("/credentials", h.Credentials).Methods(http.MethodPut)
	api.HandleFunc("/voices/load", h.LoadVoices).Methods(http.MethodPost)
	api.HandleFunc("/voices", h.Voices).Methods(http.MethodGet)
	api.HandleFunc("/filters", h.Filters).Methods(http.MethodPut)
	api.HandleFunc("/voice", h.Voice).Methods(http.MethodPut)
}

// Router returns a new router with the settings routes registered.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return router
}

// Settings handles GET /api/settings. It reloads the persisted settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.Open(r.Context())
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Credentials handles PUT /api/credentials.
func (h *Handler) Credentials(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.session.SaveCredentials(r.Context(), settings.Credentials{APIKey: req.APIKey, Region: req.Region})
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, view)
}

// LoadVoices handles POST /api/voices/load.
func (h *Handler) LoadVoices(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.LoadVoices(r.Context())
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Voices handles GET /api/voices. It renders without touching the network.
func (h *Handler) Voices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.View())
}

// Filters handles PUT /api/filters.
func (h *Handler) Filters(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	current := h.session.View()

	filter := catalog.NewFilter(current.LanguageFilter, current.MultilingualOnly)
	if req.Language != nil {
		filter.Language = catalog.LanguageOption(*req.Language)
	}

	if req.MultilingualOnly != nil {
		filter.MultilingualOnly = *req.MultilingualOnly
	}

	view, err := h.session.SetFilter(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Voice handles PUT /api/voice.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.session.SelectVoice(r.Context(), req.ShortName)
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, upstream := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Settings request failed: %v", err)
	} else {
		h.log.Warn("Settings request rejected: %v", err)
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Status: upstream})
}

// statusFor maps an error to the HTTP status of the reply and, for speech
// service failures, the upstream status.
func statusFor(err error) (int, int) {
	var statusErr *tts.StatusError
	if errors.As(err, &statusErr) {
		return http.StatusBadGateway, statusErr.StatusCode
	}

	switch {
	case errors.Is(err, tts.ErrConfig):
		return http.StatusBadRequest, 0
	case errors.Is(err, ErrUnknownVoice):
		return http.StatusNotFound, 0
	case errors.Is(err, ErrVoicesNotLoaded):
		return http.StatusConflict, 0
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, 0
	default:
		return http.StatusInternalServerError, 0
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})

		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
