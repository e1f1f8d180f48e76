package genimage

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"ebook-reader/internal/domain"
	apperrors "ebook-reader/pkg/errors"
)

// Handler exposes the generate-image service over HTTP. Requests carry the
// caller's Supabase access token; quota usage is attributed to the token's
// user, never to anything client-supplied.
type Handler struct {
	service        *Service
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewHandler(service *Service, supabaseClient domain.SupabaseClient, logger domain.Logger) *Handler {
	return &Handler{
		service:        service,
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// Register mounts the function routes on the router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/generate-image", h.GenerateImage).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

// CORS returns the cross-origin policy for the function surface. The webview
// calls the function from any origin, and preflight requests carry no bearer
// token, so they must be answered before the auth check.
func CORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "apikey"},
		MaxAge:         300,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GenerateImage handles one generation request. A quota rejection answers
// 429 with the reset timestamp in epoch milliseconds so clients can show
// when the window reopens.
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeAppError(w, apperrors.NewUnauthorizedError("missing access token"))
		return
	}

	user, err := h.supabaseClient.ValidateToken(token)
	if err != nil {
		h.logger.Warn("Rejected invalid access token", "error", err)
		writeAppError(w, apperrors.NewUnauthorizedError("invalid access token"))
		return
	}

	var req domain.GenerateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperrors.NewValidationError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Passage) == "" {
		writeAppError(w, apperrors.NewValidationError("passage is required"))
		return
	}

	generated, err := h.service.Generate(r.Context(), user.ID, req)
	if err != nil {
		if rle, ok := domain.AsRateLimitError(err); ok {
			appErr := apperrors.NewRateLimitedError(rle.Message)
			writeJSON(w, appErr.StatusCode, map[string]interface{}{
				"status":  appErr.StatusCode,
				"message": appErr.Message,
				"reset":   rle.Reset,
			})
			return
		}
		h.logger.Error("Image generation failed", err, "user_id", user.ID)
		writeAppError(w, apperrors.NewInternalError("image generation failed", err))
		return
	}

	writeJSON(w, http.StatusOK, generated)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

func writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	writeJSON(w, appErr.StatusCode, map[string]interface{}{
		"status":  appErr.StatusCode,
		"message": appErr.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
