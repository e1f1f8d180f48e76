package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"ebook-reader/internal/config"
	"ebook-reader/internal/domain"
	"ebook-reader/internal/lifecycle"
	"ebook-reader/internal/reader"
	apperrors "ebook-reader/pkg/errors"
)

// SessionHandler exposes the reader session over the local bridge. One
// session is active at a time, matching one open book in the UI. Renderer
// commands flow out through the queue; renderer and host lifecycle events
// flow back in through the event endpoints.
type SessionHandler struct {
	container *config.Container
	feed      *lifecycle.Feed
	queue     *RendererQueue

	mu            sync.Mutex
	session       *reader.Session
	opening       bool
	lastSelection *visualizeRequest
}

func NewSessionHandler(container *config.Container, feed *lifecycle.Feed) *SessionHandler {
	return &SessionHandler{
		container: container,
		feed:      feed,
		queue:     NewRendererQueue(),
	}
}

func (h *SessionHandler) current() (*reader.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session, h.session != nil
}

type openSessionRequest struct {
	BookID string `json:"book_id"`
}

// OpenSession starts a reading session for the authenticated user.
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, _ := GetTokenFromContext(r)

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}

	// Reserve the slot before the slow Open call. Without the reservation a
	// concurrent open passes the guard too, and the overwritten session keeps
	// its exit subscription, flushing stale positions forever.
	h.mu.Lock()
	if h.session != nil || h.opening {
		h.mu.Unlock()
		writeError(w, http.StatusConflict, "A session is already open")
		return
	}
	h.opening = true
	h.mu.Unlock()

	visualizer := reader.NewVisualizer(
		h.container.HighlightRepository,
		h.container.ImageGenerator,
		h.container.ImageStore,
		h.container.Logger,
	)
	session := reader.NewSession(user.ID, req.BookID, token, reader.SessionDeps{
		Store:      h.container.PositionStore,
		UserBooks:  h.container.UserBookRepository,
		Highlights: h.container.HighlightRepository,
		Visualizer: visualizer,
		Renderer:   h.queue,
		Exits:      lifecycle.NewExitNotifier(h.feed, h.feed, h.container.Logger),
		Logger:     h.container.Logger,
	})

	if err := session.Open(r.Context()); err != nil {
		h.mu.Lock()
		h.opening = false
		h.mu.Unlock()
		h.writeDomainError(w, err)
		return
	}

	h.mu.Lock()
	h.session = session
	h.opening = false
	h.mu.Unlock()

	h.writeState(w, session)
}

// CloseSession flushes the position and tears the session down.
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	session := h.session
	h.session = nil
	h.mu.Unlock()

	if session == nil {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}
	if err := session.Close(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// GetState reports the session's current location, pending conflict and
// annotations.
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}
	h.writeState(w, session)
}

// DrainCommands hands the pending renderer commands to the webview.
func (h *SessionHandler) DrainCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"commands": h.queue.Drain(),
	})
}

type locationEvent struct {
	Location domain.PositionToken `json:"location"`
}

// LocationChanged records a navigation event reported by the renderer.
func (h *SessionHandler) LocationChanged(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}

	var event locationEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil || event.Location.IsZero() {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}
	if err := session.OnLocationChange(event.Location); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type appStateEvent struct {
	State domain.AppState `json:"state"`
}

// AppStateChanged feeds a host application state transition into the
// lifecycle bus; transitions to inactive or background trigger the exit
// flush.
func (h *SessionHandler) AppStateChanged(w http.ResponseWriter, r *http.Request) {
	var event appStateEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil || event.State == "" {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}
	h.feed.EmitAppState(event.State)
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

// BeforeRemove feeds the screen-removal event into the lifecycle bus.
func (h *SessionHandler) BeforeRemove(w http.ResponseWriter, r *http.Request) {
	h.feed.EmitBeforeRemove()
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

type resolveConflictRequest struct {
	AdoptRemote bool `json:"adopt_remote"`
}

// ResolveConflict applies the user's choice for a pending location conflict.
func (h *SessionHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}

	var req resolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := session.ResolveConflict(req.AdoptRemote); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeState(w, session)
}

// GoToLocation asks the renderer to navigate.
func (h *SessionHandler) GoToLocation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}

	var event locationEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil || event.Location.IsZero() {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}
	if err := session.GoToLocation(event.Location); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

type visualizeRequest struct {
	Text     string               `json:"text"`
	Location domain.PositionToken `json:"location"`
	Chapter  string               `json:"chapter"`
}

// Selected records the renderer's text-selection event. The selection is held
// until the user asks to visualize it.
func (h *SessionHandler) Selected(w http.ResponseWriter, r *http.Request) {
	var sel visualizeRequest
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil || sel.Text == "" || sel.Location.IsZero() {
		writeError(w, http.StatusBadRequest, "text and location are required")
		return
	}

	h.mu.Lock()
	h.lastSelection = &sel
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// PressAnnotation resolves the annotation the renderer reported a press on,
// so the UI can open its visualization.
func (h *SessionHandler) PressAnnotation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}

	var event locationEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil || event.Location.IsZero() {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}

	highlight, ok := session.AnnotationAt(event.Location)
	if !ok {
		writeError(w, http.StatusNotFound, "No annotation at location")
		return
	}
	writeJSON(w, http.StatusOK, domain.Annotation{Location: event.Location, Data: highlight})
}

// VisualizeSelection creates a highlight for the selected passage and runs
// the visualization pipeline. The passage comes from the request body, or
// falls back to the last recorded selection event. A quota rejection answers
// 429 and still returns the persisted imageless highlight so the UI can keep
// it.
func (h *SessionHandler) VisualizeSelection(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}

	var req visualizeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Text == "" || req.Location.IsZero() {
		h.mu.Lock()
		if h.lastSelection != nil {
			req = *h.lastSelection
			h.lastSelection = nil
		}
		h.mu.Unlock()
	}
	if req.Text == "" || req.Location.IsZero() {
		writeError(w, http.StatusBadRequest, "text and location are required")
		return
	}

	highlight, err := session.VisualizeSelection(r.Context(), req.Text, req.Location, req.Chapter)
	if err != nil {
		h.writePipelineError(w, highlight, err)
		return
	}
	writeJSON(w, http.StatusOK, highlight)
}

type revisualizeRequest struct {
	Text string `json:"text"`
}

// Revisualize regenerates the image for an existing highlight. The body may
// carry a custom prompt text; when absent the highlight's own text is used.
func (h *SessionHandler) Revisualize(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}

	var req revisualizeRequest
	// The body is optional; a missing or empty one means "reuse the text".
	_ = json.NewDecoder(r.Body).Decode(&req)

	highlightID := mux.Vars(r)["id"]
	highlight, err := session.Revisualize(r.Context(), highlightID, req.Text)
	if err != nil {
		h.writePipelineError(w, highlight, err)
		return
	}
	writeJSON(w, http.StatusOK, highlight)
}

// DeleteVisualization detaches the image from a highlight.
func (h *SessionHandler) DeleteVisualization(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}

	highlightID := mux.Vars(r)["id"]
	highlight, err := session.DeleteVisualization(r.Context(), highlightID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, highlight)
}

// DeleteHighlight removes a highlight entirely.
func (h *SessionHandler) DeleteHighlight(w http.ResponseWriter, r *http.Request) {
	session, ok := h.current()
	if !ok {
		h.writeDomainError(w, domain.ErrSessionNotOpen)
		return
	}

	highlightID := mux.Vars(r)["id"]
	if err := session.DeleteHighlight(r.Context(), highlightID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *SessionHandler) writeState(w http.ResponseWriter, session *reader.Session) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_location": session.CurrentLocation(),
		"conflict":         session.Conflict(),
		"annotations":      session.Annotations(),
	})
}

// writePipelineError maps a visualization pipeline failure. The partially
// processed highlight (created row, or updated row whose old-image cleanup
// failed) rides along so the caller can apply it.
func (h *SessionHandler) writePipelineError(w http.ResponseWriter, highlight *domain.Highlight, err error) {
	if rle, ok := domain.AsRateLimitError(err); ok {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"status":    http.StatusTooManyRequests,
			"message":   rle.Message,
			"reset":     rle.Reset,
			"highlight": highlight,
		})
		return
	}
	if highlight != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status":    http.StatusInternalServerError,
			"message":   err.Error(),
			"highlight": highlight,
		})
		return
	}
	h.writeDomainError(w, err)
}

func (h *SessionHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotOpen):
		writeError(w, http.StatusConflict, "No session is open")
	case errors.Is(err, domain.ErrSessionAlreadyOpen):
		writeError(w, http.StatusConflict, "A session is already open")
	case errors.Is(err, domain.ErrBookNotFound):
		writeError(w, http.StatusNotFound, "Book not found")
	case errors.Is(err, domain.ErrHighlightNotFound):
		writeError(w, http.StatusNotFound, "Highlight not found")
	case errors.Is(err, domain.ErrNoVisualization):
		writeError(w, http.StatusBadRequest, "Highlight has no visualization")
	case errors.Is(err, domain.ErrConflictResolved):
		writeError(w, http.StatusConflict, "No pending conflict")
	case errors.Is(err, domain.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "Access denied")
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			writeError(w, appErr.StatusCode, appErr.Message)
			return
		}
		h.container.GetLogger().Error("Request failed", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
