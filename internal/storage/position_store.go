package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"ebook-reader/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

const createPositionsTable = `
CREATE TABLE IF NOT EXISTS reading_positions (
	user_id    TEXT NOT NULL,
	book_id    TEXT NOT NULL,
	location   TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, book_id)
);`

// PositionStore is the device-local store for last-read positions, backed by
// SQLite. Saves are fire-and-forget: they are queued onto a single writer
// goroutine, so writes for the same key apply in submission order and the
// last write wins no matter how slow an individual write is. A failed write
// is logged and dropped; only the final flushed value matters.
type PositionStore struct {
	db     *sql.DB
	logger domain.Logger
	writes chan positionWrite
	done   chan struct{}

	mu     sync.Mutex
	closed bool

	// test hook, invoked before each queued write is applied
	beforeWrite func()
}

type positionWrite struct {
	userID   string
	bookID   string
	location domain.PositionToken
	barrier  chan struct{}
}

// NewPositionStore opens (creating if needed) the local position database at
// path and starts the writer goroutine.
func NewPositionStore(path string, logger domain.Logger) (*PositionStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local position db: %w", err)
	}
	if _, err := db.Exec(createPositionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create reading_positions table: %w", err)
	}

	s := &PositionStore{
		db:     db,
		logger: logger,
		writes: make(chan positionWrite, 64),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// Save records the position for (userID, bookID), overwriting any prior
// value. It never blocks the caller: when the queue is full the oldest
// pending write is discarded, since the newer token supersedes it anyway.
// A save racing shutdown is dropped with a warning instead of panicking on
// the closed queue.
func (s *PositionStore) Save(userID, bookID string, location domain.PositionToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("Reading position dropped, store already closed",
			"user_id", userID, "book_id", bookID)
		return
	}

	w := positionWrite{userID: userID, bookID: bookID, location: location}
	for {
		select {
		case s.writes <- w:
			return
		default:
		}
		select {
		case dropped := <-s.writes:
			if dropped.barrier != nil {
				close(dropped.barrier)
			}
		default:
		}
	}
}

// Load returns the stored position for (userID, bookID), or the zero token
// when none has been recorded on this device.
func (s *PositionStore) Load(ctx context.Context, userID, bookID string) (domain.PositionToken, error) {
	var location string
	err := s.db.QueryRowContext(ctx,
		`SELECT location FROM reading_positions WHERE user_id = ? AND book_id = ?`,
		userID, bookID,
	).Scan(&location)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load reading position: %w", err)
	}
	return domain.PositionToken(location), nil
}

// Flush blocks until every write queued before the call has been applied.
// After Close it returns immediately: the close already drained the queue.
func (s *PositionStore) Flush() {
	barrier := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.writes <- positionWrite{barrier: barrier}
	s.mu.Unlock()
	<-barrier
}

// Close drains pending writes and closes the database. Safe to call twice.
func (s *PositionStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.writes)
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}

func (s *PositionStore) writeLoop() {
	defer close(s.done)
	for w := range s.writes {
		if w.barrier != nil {
			close(w.barrier)
			continue
		}
		if s.beforeWrite != nil {
			s.beforeWrite()
		}
		if err := s.apply(w); err != nil {
			s.logger.Warn("Failed to save reading position locally",
				"error", err, "user_id", w.userID, "book_id", w.bookID)
		}
	}
}

func (s *PositionStore) apply(w positionWrite) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reading_positions (user_id, book_id, location, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, book_id)
		DO UPDATE SET location = excluded.location, updated_at = CURRENT_TIMESTAMP`,
		w.userID, w.bookID, string(w.location),
	)
	return err
}
