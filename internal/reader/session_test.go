package reader

import (
	"context"
	"errors"
	"testing"

	"ebook-reader/internal/domain"
	"ebook-reader/internal/lifecycle"
)

type savedPosition struct {
	userID   string
	bookID   string
	location domain.PositionToken
}

type mockPositionStore struct {
	saved     []savedPosition
	loadToken domain.PositionToken
	loadErr   error
}

func (m *mockPositionStore) Save(userID, bookID string, location domain.PositionToken) {
	m.saved = append(m.saved, savedPosition{userID, bookID, location})
}

func (m *mockPositionStore) Load(ctx context.Context, userID, bookID string) (domain.PositionToken, error) {
	return m.loadToken, m.loadErr
}

func (m *mockPositionStore) Close() error { return nil }

type mockUserBookRepo struct {
	book      *domain.Book
	last      domain.PositionToken
	lastErr   error
	updateErr error
	updates   []domain.PositionToken
}

func (m *mockUserBookRepo) GetBook(ctx context.Context, bookID string, accessToken string) (*domain.Book, error) {
	if m.book == nil {
		return nil, domain.ErrBookNotFound
	}
	return m.book, nil
}

func (m *mockUserBookRepo) GetLastLocation(ctx context.Context, userID, bookID string, accessToken string) (domain.PositionToken, error) {
	return m.last, m.lastErr
}

func (m *mockUserBookRepo) UpdateLastLocation(ctx context.Context, userID, bookID string, location domain.PositionToken, accessToken string) error {
	m.updates = append(m.updates, location)
	return m.updateErr
}

type addedAnnotation struct {
	kind     string
	location domain.PositionToken
	data     *domain.Highlight
}

type mockRenderer struct {
	gotoCalls []domain.PositionToken
	added     []addedAnnotation
	updated   []domain.PositionToken
	removed   []domain.PositionToken
}

func (m *mockRenderer) GoToLocation(location domain.PositionToken) {
	m.gotoCalls = append(m.gotoCalls, location)
}

func (m *mockRenderer) AddAnnotation(kind string, location domain.PositionToken, data *domain.Highlight) {
	m.added = append(m.added, addedAnnotation{kind, location, data})
}

func (m *mockRenderer) UpdateAnnotation(location domain.PositionToken, data *domain.Highlight) {
	m.updated = append(m.updated, location)
}

func (m *mockRenderer) RemoveAnnotationByLocation(location domain.PositionToken) {
	m.removed = append(m.removed, location)
}

type sessionFixture struct {
	session   *Session
	store     *mockPositionStore
	userBooks *mockUserBookRepo
	repo      *mockHighlightRepo
	gen       *mockImageGenerator
	images    *mockImageStore
	renderer  *mockRenderer
	feed      *lifecycle.Feed
	logger    *mockReaderLogger
}

func newSessionFixture() *sessionFixture {
	log := &opLog{}
	store := &mockPositionStore{}
	userBooks := &mockUserBookRepo{book: testBook}
	repo := newMockHighlightRepo(log)
	gen := &mockImageGenerator{
		log: log,
		result: &domain.GeneratedImage{
			ImgURL:    "https://x.supabase.co/storage/v1/object/public/images/new.jpg",
			ImgPrompt: "a watercolor of the passage",
		},
	}
	images := &mockImageStore{log: log}
	renderer := &mockRenderer{}
	feed := lifecycle.NewFeed()
	logger := &mockReaderLogger{}

	session := NewSession("u1", "book-1", "token", SessionDeps{
		Store:      store,
		UserBooks:  userBooks,
		Highlights: repo,
		Visualizer: NewVisualizer(repo, gen, images, logger),
		Renderer:   renderer,
		Exits:      lifecycle.NewExitNotifier(feed, feed, logger),
		Logger:     logger,
	})

	return &sessionFixture{
		session:   session,
		store:     store,
		userBooks: userBooks,
		repo:      repo,
		gen:       gen,
		images:    images,
		renderer:  renderer,
		feed:      feed,
		logger:    logger,
	}
}

func TestSession_OpenNavigatesToLocalPosition(t *testing.T) {
	f := newSessionFixture()
	f.store.loadToken = "epubcfi(/6/4)"

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if len(f.renderer.gotoCalls) != 1 || f.renderer.gotoCalls[0] != "epubcfi(/6/4)" {
		t.Fatalf("expected navigation to local position, got %v", f.renderer.gotoCalls)
	}
	if f.session.Conflict() != nil {
		t.Fatal("expected no conflict")
	}
}

func TestSession_OpenWithNoPositionsStartsAtBeginning(t *testing.T) {
	f := newSessionFixture()
	f.userBooks.lastErr = domain.ErrBookNotFound // no user_books row yet

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if len(f.renderer.gotoCalls) != 0 {
		t.Fatalf("expected no navigation, got %v", f.renderer.gotoCalls)
	}
}

func TestSession_OpenSeedsOnlyVisualizedHighlights(t *testing.T) {
	f := newSessionFixture()
	f.repo.list = []*domain.Highlight{
		{ID: "hl-1", UserID: "u1", Location: "epubcfi(/6/2)", ImgURL: "https://x/images/a.jpg", ImgPrompt: "p"},
		{ID: "hl-2", Location: "epubcfi(/6/6)"},
	}

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if len(f.renderer.added) != 1 {
		t.Fatalf("expected 1 seeded annotation, got %d", len(f.renderer.added))
	}
	if f.renderer.added[0].location != "epubcfi(/6/2)" || f.renderer.added[0].kind != "highlight" {
		t.Fatalf("unexpected seeded annotation %+v", f.renderer.added[0])
	}
}

func TestSession_OpenRaisesConflictAndKeepsLocal(t *testing.T) {
	f := newSessionFixture()
	f.store.loadToken = "epubcfi(/6/4)"
	f.userBooks.last = "epubcfi(/6/8)"

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if len(f.renderer.gotoCalls) != 1 || f.renderer.gotoCalls[0] != "epubcfi(/6/4)" {
		t.Fatalf("expected provisional navigation to local position, got %v", f.renderer.gotoCalls)
	}
	conflict := f.session.Conflict()
	if conflict == nil {
		t.Fatal("expected a conflict")
	}
	if conflict.Local != "epubcfi(/6/4)" || conflict.Remote != "epubcfi(/6/8)" {
		t.Fatalf("conflict should carry both tokens, got %+v", conflict)
	}
}

func TestSession_ResolveConflictAdoptRemote(t *testing.T) {
	f := newSessionFixture()
	f.store.loadToken = "epubcfi(/6/4)"
	f.userBooks.last = "epubcfi(/6/8)"

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if err := f.session.ResolveConflict(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := f.renderer.gotoCalls[len(f.renderer.gotoCalls)-1]
	if last != "epubcfi(/6/8)" {
		t.Fatalf("expected navigation to remote position, got %v", f.renderer.gotoCalls)
	}
	if len(f.store.saved) == 0 || f.store.saved[len(f.store.saved)-1].location != "epubcfi(/6/8)" {
		t.Fatalf("expected adopted position written locally, got %v", f.store.saved)
	}
	if f.session.Conflict() != nil {
		t.Fatal("expected conflict cleared after resolution")
	}
	if err := f.session.ResolveConflict(true); !errors.Is(err, domain.ErrConflictResolved) {
		t.Fatalf("expected ErrConflictResolved on second resolve, got %v", err)
	}
}

func TestSession_ResolveConflictKeepLocal(t *testing.T) {
	f := newSessionFixture()
	f.store.loadToken = "epubcfi(/6/4)"
	f.userBooks.last = "epubcfi(/6/8)"

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	gotosBefore := len(f.renderer.gotoCalls)
	if err := f.session.ResolveConflict(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.renderer.gotoCalls) != gotosBefore {
		t.Fatalf("expected no navigation when keeping local, got %v", f.renderer.gotoCalls)
	}
	if f.session.Conflict() != nil {
		t.Fatal("expected conflict cleared after resolution")
	}
}

func TestSession_LocationChangeSavesLocallyOnly(t *testing.T) {
	f := newSessionFixture()

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if err := f.session.OnLocationChange("epubcfi(/6/10)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.store.saved) != 1 || f.store.saved[0].location != "epubcfi(/6/10)" {
		t.Fatalf("expected one local save, got %v", f.store.saved)
	}
	if len(f.userBooks.updates) != 0 {
		t.Fatalf("expected no remote writes during navigation, got %v", f.userBooks.updates)
	}
	if f.session.CurrentLocation() != "epubcfi(/6/10)" {
		t.Fatalf("expected tracked location updated, got %q", f.session.CurrentLocation())
	}
}

func TestSession_ExitFlushesCurrentPosition(t *testing.T) {
	f := newSessionFixture()

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if err := f.session.OnLocationChange("epubcfi(/6/10)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.feed.EmitBeforeRemove()

	if len(f.userBooks.updates) != 1 || f.userBooks.updates[0] != "epubcfi(/6/10)" {
		t.Fatalf("expected one remote flush of the current position, got %v", f.userBooks.updates)
	}
}

func TestSession_ExitFlushSkipsEmptyPosition(t *testing.T) {
	f := newSessionFixture()
	f.userBooks.lastErr = domain.ErrBookNotFound

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	f.feed.EmitBeforeRemove()

	if len(f.userBooks.updates) != 0 {
		t.Fatalf("expected no flush when nothing was read, got %v", f.userBooks.updates)
	}
}

func TestSession_ExitFlushFailureLoggedNotRetried(t *testing.T) {
	f := newSessionFixture()
	f.userBooks.updateErr = errors.New("network unreachable")

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.session.OnLocationChange("epubcfi(/6/10)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.feed.EmitBeforeRemove()

	if len(f.userBooks.updates) != 1 {
		t.Fatalf("expected exactly one attempt (no retry), got %d", len(f.userBooks.updates))
	}
	if f.logger.errorCount == 0 {
		t.Fatal("expected the flush failure to be logged")
	}
}

func TestSession_VisualizeSelectionMergesOnSuccess(t *testing.T) {
	f := newSessionFixture()

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	created, err := f.session.VisualizeSelection(context.Background(), "the passage", "epubcfi(/6/4)", "Chapter 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created.HasImage() {
		t.Fatalf("expected a visualized highlight, got %+v", created)
	}
	if len(f.renderer.added) != 1 || f.renderer.added[0].location != "epubcfi(/6/4)" {
		t.Fatalf("expected the annotation merged into the renderer, got %v", f.renderer.added)
	}
	annotations := f.session.Annotations()
	if len(annotations) != 1 || !annotations[0].Data.HasImage() {
		t.Fatalf("expected one tracked annotation, got %v", annotations)
	}
}

func TestSession_VisualizeSelectionQuotaKeepsImagelessRow(t *testing.T) {
	f := newSessionFixture()
	f.gen.err = &domain.RateLimitError{Message: "Too many image generations", Reset: 1756600000000}

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	created, err := f.session.VisualizeSelection(context.Background(), "the passage", "epubcfi(/6/4)", "")
	rle, ok := domain.AsRateLimitError(err)
	if !ok {
		t.Fatalf("expected a rate limit error, got %v", err)
	}
	if rle.Reset != 1756600000000 {
		t.Fatalf("expected reset timestamp preserved, got %d", rle.Reset)
	}
	if created == nil || created.HasImage() {
		t.Fatalf("expected the imageless row returned, got %+v", created)
	}
	if len(f.renderer.added) != 0 {
		t.Fatalf("expected no annotation for an imageless highlight, got %v", f.renderer.added)
	}
	if _, ok := f.repo.byID[created.ID]; !ok {
		t.Fatal("expected the imageless row to persist for later retry")
	}
}

func TestSession_RevisualizeUpdatesExistingAnnotation(t *testing.T) {
	f := newSessionFixture()
	f.repo.list = []*domain.Highlight{
		{ID: "hl-1", UserID: "u1", Location: "epubcfi(/6/2)", Text: "the passage", ImgURL: "https://x/images/old.jpg", ImgPrompt: "old"},
	}
	f.repo.byID["hl-1"] = f.repo.list[0]

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	updated, err := f.session.Revisualize(context.Background(), "hl-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ImgURL == "https://x/images/old.jpg" {
		t.Fatal("expected a fresh image url")
	}
	if len(f.renderer.updated) != 1 || f.renderer.updated[0] != "epubcfi(/6/2)" {
		t.Fatalf("expected the annotation updated in place, got %v", f.renderer.updated)
	}
}

func TestSession_DeleteVisualizationRemovesAnnotation(t *testing.T) {
	f := newSessionFixture()
	f.repo.list = []*domain.Highlight{
		{ID: "hl-1", UserID: "u1", Location: "epubcfi(/6/2)", ImgURL: "https://x/images/a.jpg", ImgPrompt: "p"},
	}
	f.repo.byID["hl-1"] = f.repo.list[0]

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	updated, err := f.session.DeleteVisualization(context.Background(), "hl-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.HasImage() {
		t.Fatalf("expected cleared highlight, got %+v", updated)
	}
	if len(f.renderer.removed) != 1 || f.renderer.removed[0] != "epubcfi(/6/2)" {
		t.Fatalf("expected the annotation removed, got %v", f.renderer.removed)
	}
	if len(f.session.Annotations()) != 0 {
		t.Fatal("expected no tracked annotations")
	}
}

func TestSession_DeleteHighlightRemovesRowAndAnnotation(t *testing.T) {
	f := newSessionFixture()
	f.repo.list = []*domain.Highlight{
		{ID: "hl-1", UserID: "u1", Location: "epubcfi(/6/2)", ImgURL: "https://x/images/a.jpg", ImgPrompt: "p"},
	}
	f.repo.byID["hl-1"] = f.repo.list[0]

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if err := f.session.DeleteHighlight(context.Background(), "hl-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.repo.byID["hl-1"]; ok {
		t.Fatal("expected the row deleted")
	}
	if len(f.renderer.removed) != 1 {
		t.Fatalf("expected the annotation removed, got %v", f.renderer.removed)
	}
}

func TestSession_ForeignHighlightDenied(t *testing.T) {
	f := newSessionFixture()
	f.repo.byID["hl-9"] = &domain.Highlight{ID: "hl-9", UserID: "u2", Location: "epubcfi(/6/2)", Text: "not yours"}

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if _, err := f.session.Revisualize(context.Background(), "hl-9", ""); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if err := f.session.DeleteHighlight(context.Background(), "hl-9"); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if _, ok := f.repo.byID["hl-9"]; !ok {
		t.Fatal("expected the foreign row untouched")
	}
}

func TestSession_OperationsRequireOpen(t *testing.T) {
	f := newSessionFixture()

	if err := f.session.OnLocationChange("epubcfi(/6/2)"); !errors.Is(err, domain.ErrSessionNotOpen) {
		t.Fatalf("expected ErrSessionNotOpen, got %v", err)
	}
	if _, err := f.session.VisualizeSelection(context.Background(), "t", "epubcfi(/6/2)", ""); !errors.Is(err, domain.ErrSessionNotOpen) {
		t.Fatalf("expected ErrSessionNotOpen, got %v", err)
	}
	if err := f.session.Close(); !errors.Is(err, domain.ErrSessionNotOpen) {
		t.Fatalf("expected ErrSessionNotOpen, got %v", err)
	}
}

func TestSession_OpenTwiceFails(t *testing.T) {
	f := newSessionFixture()

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.session.Close()

	if err := f.session.Open(context.Background()); !errors.Is(err, domain.ErrSessionAlreadyOpen) {
		t.Fatalf("expected ErrSessionAlreadyOpen, got %v", err)
	}
}

func TestSession_CloseFlushesAndStopsListening(t *testing.T) {
	f := newSessionFixture()

	if err := f.session.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.session.OnLocationChange("epubcfi(/6/10)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.session.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.userBooks.updates) != 1 || f.userBooks.updates[0] != "epubcfi(/6/10)" {
		t.Fatalf("expected final flush on close, got %v", f.userBooks.updates)
	}

	f.feed.EmitBeforeRemove()
	if len(f.userBooks.updates) != 1 {
		t.Fatalf("expected no flushes after close, got %v", f.userBooks.updates)
	}
}
