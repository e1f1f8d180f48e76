package reader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ebook-reader/internal/domain"
	"ebook-reader/internal/lifecycle"
)

const flushTimeout = 5 * time.Second

// SessionDeps bundles the collaborators a reader session needs.
type SessionDeps struct {
	Store      domain.PositionStore
	UserBooks  domain.UserBookRepository
	Highlights domain.HighlightRepository
	Visualizer *Visualizer
	Renderer   domain.Renderer
	Exits      *lifecycle.ExitNotifier
	Logger     domain.Logger
}

// Session is the composition root for one open book: it reconciles the
// starting position, mirrors the user's highlights into the renderer, tracks
// the current location, and flushes it to the remote record when the user
// leaves. One session maps to one (user, book) pair.
type Session struct {
	userID      string
	bookID      string
	accessToken string

	store      domain.PositionStore
	userBooks  domain.UserBookRepository
	highlights domain.HighlightRepository
	visualizer *Visualizer
	renderer   domain.Renderer
	exits      *lifecycle.ExitNotifier
	logger     domain.Logger

	mu          sync.Mutex
	open        bool
	book        *domain.Book
	current     domain.PositionToken
	annotations map[domain.PositionToken]*domain.Highlight
	conflict    *domain.LocationConflict
	exitSub     *lifecycle.ExitSubscription
}

func NewSession(userID, bookID, accessToken string, deps SessionDeps) *Session {
	return &Session{
		userID:      userID,
		bookID:      bookID,
		accessToken: accessToken,
		store:       deps.Store,
		userBooks:   deps.UserBooks,
		highlights:  deps.Highlights,
		visualizer:  deps.Visualizer,
		renderer:    deps.Renderer,
		exits:       deps.Exits,
		logger:      deps.Logger,
		annotations: make(map[domain.PositionToken]*domain.Highlight),
	}
}

// Open loads the book, seeds the renderer with existing visualized
// highlights, reconciles the starting position, and registers the exit-flush
// subscription. A position source that fails to load is treated as absent:
// opening the book must not fail because one side of the sync is unreachable.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return domain.ErrSessionAlreadyOpen
	}
	s.mu.Unlock()

	book, err := s.userBooks.GetBook(ctx, s.bookID, s.accessToken)
	if err != nil {
		return fmt.Errorf("failed to load book: %w", err)
	}

	highlights, err := s.highlights.ListByBook(ctx, s.userID, s.bookID, s.accessToken)
	if err != nil {
		return fmt.Errorf("failed to load highlights: %w", err)
	}

	local, err := s.store.Load(ctx, s.userID, s.bookID)
	if err != nil {
		s.logger.Warn("Failed to load local position, treating as absent", "book_id", s.bookID, "error", err)
		local = ""
	}

	remote, err := s.userBooks.GetLastLocation(ctx, s.userID, s.bookID, s.accessToken)
	if err != nil {
		if !errors.Is(err, domain.ErrBookNotFound) {
			s.logger.Warn("Failed to load remote position, treating as absent", "book_id", s.bookID, "error", err)
		}
		remote = ""
	}

	result := Reconcile(local, remote)

	s.mu.Lock()
	s.open = true
	s.book = book
	s.current = result.Initial
	s.conflict = result.Conflict
	for _, h := range highlights {
		if h.HasImage() {
			s.annotations[h.Location] = h
		}
	}
	annotations := s.snapshotAnnotationsLocked()
	s.mu.Unlock()

	for _, a := range annotations {
		s.renderer.AddAnnotation("highlight", a.Location, a.Data)
	}
	if !result.Initial.IsZero() {
		s.renderer.GoToLocation(result.Initial)
	}

	s.exitSub = s.exits.Register(s.flushPosition)

	s.logger.Info("Reader session opened", "book_id", s.bookID, "initial", string(result.Initial), "conflict", result.Conflict != nil)
	return nil
}

// Close flushes the position one final time and removes the exit
// subscription. The flush failure is logged, not returned: closing always
// succeeds locally.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return domain.ErrSessionNotOpen
	}
	s.open = false
	s.mu.Unlock()

	if s.exitSub != nil {
		s.exitSub.Dispose()
	}
	if err := s.flushPosition(); err != nil {
		s.logger.Error("Final position flush failed", err, "book_id", s.bookID)
	}
	s.logger.Info("Reader session closed", "book_id", s.bookID)
	return nil
}

// OnLocationChange records a navigation event from the renderer. The local
// write is fire-and-forget; the remote record is only touched at exit time.
func (s *Session) OnLocationChange(location domain.PositionToken) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return domain.ErrSessionNotOpen
	}
	s.current = location
	s.mu.Unlock()

	s.store.Save(s.userID, s.bookID, location)
	return nil
}

// CurrentLocation returns the last position reported by the renderer.
func (s *Session) CurrentLocation() domain.PositionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Conflict returns the pending location conflict, or nil once it is resolved
// or was never raised.
func (s *Session) Conflict() *domain.LocationConflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflict
}

// ResolveConflict applies the user's choice. Adopting the remote position
// navigates the renderer and overwrites the local store so the same conflict
// cannot reappear on this device; keeping the local position changes nothing.
// A conflict is resolved at most once per session.
func (s *Session) ResolveConflict(adoptRemote bool) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return domain.ErrSessionNotOpen
	}
	if s.conflict == nil {
		s.mu.Unlock()
		return domain.ErrConflictResolved
	}
	conflict := s.conflict
	s.conflict = nil
	if adoptRemote {
		s.current = conflict.Remote
	}
	s.mu.Unlock()

	if adoptRemote {
		s.renderer.GoToLocation(conflict.Remote)
		s.store.Save(s.userID, s.bookID, conflict.Remote)
	}
	return nil
}

// GoToLocation asks the renderer to navigate. The renderer reports the
// resulting position back through OnLocationChange.
func (s *Session) GoToLocation(location domain.PositionToken) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return domain.ErrSessionNotOpen
	}
	s.mu.Unlock()

	s.renderer.GoToLocation(location)
	return nil
}

// VisualizeSelection creates a highlight for the selected passage and runs
// the visualization pipeline on it. The annotation is merged into the
// renderer only when an image was attached; a row whose generation failed
// (quota included) persists imageless and can be retried later. The created
// highlight is returned even when the pipeline error is non-nil.
func (s *Session) VisualizeSelection(ctx context.Context, text string, location domain.PositionToken, chapter string) (*domain.Highlight, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotOpen
	}
	book := s.book
	s.mu.Unlock()

	highlight := &domain.Highlight{
		UserID:   s.userID,
		BookID:   s.bookID,
		Text:     text,
		Location: location,
		Chapter:  chapter,
	}

	created, err := s.visualizer.CreateAndVisualize(ctx, highlight, book, s.accessToken)
	if created != nil && created.HasImage() {
		s.mergeAnnotation(created)
	}
	return created, err
}

// Revisualize regenerates the image for an existing highlight. A non-empty
// customText replaces the highlight's own text as the passage the image is
// generated from. The annotation is updated whenever the record was updated,
// even if cleanup of the replaced image failed (that error is still
// surfaced).
func (s *Session) Revisualize(ctx context.Context, highlightID string, customText string) (*domain.Highlight, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotOpen
	}
	book := s.book
	s.mu.Unlock()

	highlight, err := s.getOwnHighlight(ctx, highlightID)
	if err != nil {
		return nil, err
	}

	passage := customText
	if passage == "" {
		passage = highlight.Text
	}

	updated, err := s.visualizer.Visualize(ctx, highlight, book, passage, s.accessToken)
	if updated != nil && updated.HasImage() {
		s.mergeAnnotation(updated)
	}
	return updated, err
}

// DeleteVisualization detaches the image from a highlight and removes its
// annotation. The highlight row itself survives.
func (s *Session) DeleteVisualization(ctx context.Context, highlightID string) (*domain.Highlight, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotOpen
	}
	s.mu.Unlock()

	highlight, err := s.getOwnHighlight(ctx, highlightID)
	if err != nil {
		return nil, err
	}

	updated, err := s.visualizer.DeleteVisualization(ctx, highlight, s.accessToken)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.annotations, highlight.Location)
	s.mu.Unlock()
	s.renderer.RemoveAnnotationByLocation(highlight.Location)

	return updated, nil
}

// DeleteHighlight removes the highlight row and its annotation. The stored
// image, if any, is deleted best-effort after the row is gone.
func (s *Session) DeleteHighlight(ctx context.Context, highlightID string) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return domain.ErrSessionNotOpen
	}
	s.mu.Unlock()

	highlight, err := s.getOwnHighlight(ctx, highlightID)
	if err != nil {
		return err
	}

	if highlight.HasImage() {
		if _, err := s.visualizer.DeleteVisualization(ctx, highlight, s.accessToken); err != nil {
			return err
		}
	}
	if err := s.highlights.Delete(ctx, s.userID, highlightID, s.accessToken); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.annotations, highlight.Location)
	s.mu.Unlock()
	s.renderer.RemoveAnnotationByLocation(highlight.Location)

	return nil
}

// getOwnHighlight loads a highlight and verifies it belongs to the session's
// user. Row-level security scopes the query already; this catches a stale or
// mismatched id before any write happens on its behalf.
func (s *Session) getOwnHighlight(ctx context.Context, highlightID string) (*domain.Highlight, error) {
	highlight, err := s.highlights.Get(ctx, highlightID, s.accessToken)
	if err != nil {
		return nil, err
	}
	if highlight.UserID != s.userID {
		return nil, domain.ErrAccessDenied
	}
	return highlight, nil
}

// AnnotationAt returns the highlight rendered at the location, if any. Used
// when the renderer reports an annotation press.
func (s *Session) AnnotationAt(location domain.PositionToken) (*domain.Highlight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.annotations[location]
	return h, ok
}

// Annotations returns the currently rendered annotations ordered by location
// token for stable output.
func (s *Session) Annotations() []domain.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotAnnotationsLocked()
}

func (s *Session) snapshotAnnotationsLocked() []domain.Annotation {
	out := make([]domain.Annotation, 0, len(s.annotations))
	for loc, h := range s.annotations {
		out = append(out, domain.Annotation{Location: loc, Data: h})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Location < out[j].Location
	})
	return out
}

func (s *Session) mergeAnnotation(h *domain.Highlight) {
	s.mu.Lock()
	_, existed := s.annotations[h.Location]
	s.annotations[h.Location] = h
	s.mu.Unlock()

	if existed {
		s.renderer.UpdateAnnotation(h.Location, h)
	} else {
		s.renderer.AddAnnotation("highlight", h.Location, h)
	}
}

// flushPosition pushes the current position to the remote record. It runs on
// exit triggers, which can fire twice per departure; the write is idempotent
// so the duplicate is harmless. The error is returned for the caller to log,
// never retried here. An empty position is not flushed.
func (s *Session) flushPosition() error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current.IsZero() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := s.userBooks.UpdateLastLocation(ctx, s.userID, s.bookID, current, s.accessToken); err != nil {
		return fmt.Errorf("failed to flush position: %w", err)
	}
	s.logger.Debug("Position flushed", "book_id", s.bookID, "location", string(current))
	return nil
}
