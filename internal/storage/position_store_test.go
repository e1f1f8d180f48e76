package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"ebook-reader/internal/domain"
)

type mockStorageLogger struct{}

func (l *mockStorageLogger) Info(msg string, fields ...interface{})             {}
func (l *mockStorageLogger) Error(msg string, err error, fields ...interface{}) {}
func (l *mockStorageLogger) Debug(msg string, fields ...interface{})            {}
func (l *mockStorageLogger) Warn(msg string, fields ...interface{})             {}

func newTestStore(t *testing.T) *PositionStore {
	t.Helper()
	store, err := NewPositionStore(filepath.Join(t.TempDir(), "reader.db"), &mockStorageLogger{})
	if err != nil {
		t.Fatalf("expected store to open, got %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPositionStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	store.Save("user-1", "book-1", "epubcfi(/6/4)")
	store.Flush()

	got, err := store.Load(context.Background(), "user-1", "book-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "epubcfi(/6/4)" {
		t.Fatalf("expected epubcfi(/6/4), got %s", got)
	}
}

func TestPositionStore_LoadAbsent(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Load(context.Background(), "user-1", "book-none")
	if err != nil {
		t.Fatalf("expected no error for absent position, got %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero token, got %s", got)
	}
}

func TestPositionStore_LastWriteWins(t *testing.T) {
	store := newTestStore(t)
	// Slow every individual write down; ordering must still hold.
	store.beforeWrite = func() { time.Sleep(2 * time.Millisecond) }

	var last domain.PositionToken
	for i := 1; i <= 20; i++ {
		last = domain.PositionToken(fmt.Sprintf("epubcfi(/6/%d)", i))
		store.Save("user-1", "book-1", last)
	}
	store.Flush()

	got, err := store.Load(context.Background(), "user-1", "book-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != last {
		t.Fatalf("expected last written token %s, got %s", last, got)
	}
}

func TestPositionStore_SaveAfterCloseIsNoOp(t *testing.T) {
	store := newTestStore(t)

	store.Save("user-1", "book-1", "epubcfi(/6/4)")
	if err := store.Close(); err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}

	// A handler racing shutdown must not panic on the drained queue.
	store.Save("user-1", "book-1", "epubcfi(/6/8)")
	store.Flush()
	if err := store.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
}

func TestPositionStore_KeysAreIndependent(t *testing.T) {
	store := newTestStore(t)

	store.Save("user-1", "book-1", "epubcfi(/6/4)")
	store.Save("user-1", "book-2", "epubcfi(/6/8)")
	store.Save("user-2", "book-1", "epubcfi(/6/12)")
	store.Flush()

	got, _ := store.Load(context.Background(), "user-1", "book-2")
	if got != "epubcfi(/6/8)" {
		t.Fatalf("expected epubcfi(/6/8), got %s", got)
	}
	got, _ = store.Load(context.Background(), "user-2", "book-1")
	if got != "epubcfi(/6/12)" {
		t.Fatalf("expected epubcfi(/6/12), got %s", got)
	}
}
