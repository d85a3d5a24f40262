// Package notes implements the owner-scoped note query pipeline: the
// paginated dashboard listing, keyword search, and single-note mutations.
//
// Every query in this package filters on the owning user's id. There is no
// code path that reads or writes another user's rows; a mutation against a
// note the caller does not own affects zero rows and reports not found.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/quicknotes/internal/db"
	"github.com/kuitang/quicknotes/internal/errs"
)

const (
	// PageSize is the fixed number of notes per dashboard page.
	PageSize = 12

	// TitlePreviewLen and BodyPreviewLen are the projection lengths for the
	// dashboard listing, in runes. Shorter fields pass through unchanged and
	// no elision marker is added.
	TitlePreviewLen = 30
	BodyPreviewLen  = 100

	// MaxSearchResults caps a single search response.
	MaxSearchResults = 200

	// queryTimeout bounds every store round trip. Expiry surfaces to the
	// caller as an unavailable error and is never retried.
	queryTimeout = 5 * time.Second
)

// ErrNotFound is returned when a note id does not exist for the requesting
// user. A note owned by someone else is deliberately indistinguishable from
// one that does not exist.
var ErrNotFound = errs.New(errs.NotFound, "note not found")

// Service executes note queries and mutations against the application database.
type Service struct {
	db  *db.DB
	now func() time.Time
}

// NewService creates a notes service.
func NewService(database *db.DB) *Service {
	return &Service{
		db:  database,
		now: time.Now,
	}
}

// SetNowFunc replaces the clock used for timestamps. Intended for testing.
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Create inserts a new note owned by userID and returns it.
func (s *Service) Create(ctx context.Context, userID string, params CreateParams) (*Note, error) {
	if userID == "" {
		return nil, errs.New(errs.InvalidArgument, "user id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	note := &Note{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     params.Title,
		Body:      params.Body,
		CreatedAt: s.now().UTC(),
	}
	note.UpdatedAt = note.CreatedAt

	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO notes (id, user_id, title, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, note.ID, note.UserID, note.Title, note.Body,
		note.CreatedAt.UnixNano(), note.UpdatedAt.UnixNano())
	if err != nil {
		return nil, storeErr("create note", err)
	}

	return note, nil
}

// Get fetches a single note by id, scoped to userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Note, error) {
	if userID == "" || id == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		note               Note
		createdAt, updated int64
	)
	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT id, user_id, title, body, created_at, updated_at
		FROM notes
		WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&note.ID, &note.UserID, &note.Title, &note.Body, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get note", err)
	}

	note.CreatedAt = time.Unix(0, createdAt).UTC()
	note.UpdatedAt = time.Unix(0, updated).UTC()
	return &note, nil
}

// Update replaces the title and body of the note and refreshes updated_at.
// When the id does not exist for userID, zero rows are affected and
// ErrNotFound is returned; another user's note is never touched.
func (s *Service) Update(ctx context.Context, userID, id string, params UpdateParams) (*Note, error) {
	if userID == "" || id == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	updatedAt := s.now().UTC()
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE notes
		SET title = ?, body = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, params.Title, params.Body, updatedAt.UnixNano(), id, userID)
	if err != nil {
		return nil, storeErr("update note", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("update note", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.Get(ctx, userID, id)
}

// Delete removes the note, scoped to userID. Same ownership guard as Update.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.SQL().ExecContext(ctx, `
		DELETE FROM notes WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return storeErr("delete note", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete note", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one dashboard page of the user's notes, most recently
// updated first, with title and body projected to their preview lengths.
// Pages are 1-based; non-positive input is clamped to page 1. The total
// count backing the page arithmetic is scoped to the same owner filter as
// the listing itself.
func (s *Service) List(ctx context.Context, userID string, page int) (*ListResult, error) {
	if userID == "" {
		return nil, errs.New(errs.InvalidArgument, "user id is required")
	}
	if page < 1 {
		page = 1
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notes WHERE user_id = ?
	`, userID).Scan(&count)
	if err != nil {
		return nil, storeErr("count notes", err)
	}

	offset := PageSize*page - PageSize
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT id, title, body, updated_at
		FROM notes
		WHERE user_id = ?
		ORDER BY updated_at DESC, id
		LIMIT ? OFFSET ?
	`, userID, PageSize, offset)
	if err != nil {
		return nil, storeErr("list notes", err)
	}
	defer rows.Close()

	previews := make([]Preview, 0, PageSize)
	for rows.Next() {
		var (
			p       Preview
			updated int64
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &updated); err != nil {
			return nil, storeErr("scan note", err)
		}
		p.Title = truncateRunes(p.Title, TitlePreviewLen)
		p.Body = truncateRunes(p.Body, BodyPreviewLen)
		p.UpdatedAt = time.Unix(0, updated).UTC()
		previews = append(previews, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate notes", err)
	}

	return &ListResult{
		Notes:      previews,
		Page:       page,
		TotalCount: count,
		TotalPages: (count + PageSize - 1) / PageSize,
	}, nil
}

// Search returns the user's notes whose title or body contains the
// sanitized term as a case-insensitive substring, most recently updated
// first. An empty sanitized term matches every note. Results are capped at
// MaxSearchResults; Capped reports whether the cap was hit.
func (s *Service) Search(ctx context.Context, userID, term string) (*SearchResult, error) {
	if userID == "" {
		return nil, errs.New(errs.InvalidArgument, "user id is required")
	}

	sanitized := SanitizeTerm(term)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// The sanitized term contains only ASCII letters, digits, and spaces,
	// so it cannot carry LIKE metacharacters. SQLite LIKE is ASCII
	// case-insensitive by default.
	pattern := "%" + sanitized + "%"
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT id, user_id, title, body, created_at, updated_at
		FROM notes
		WHERE user_id = ? AND (title LIKE ? OR body LIKE ?)
		ORDER BY updated_at DESC, id
		LIMIT ?
	`, userID, pattern, pattern, MaxSearchResults+1)
	if err != nil {
		return nil, storeErr("search notes", err)
	}
	defer rows.Close()

	var matches []Note
	for rows.Next() {
		var (
			n                  Note
			createdAt, updated int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &createdAt, &updated); err != nil {
			return nil, storeErr("scan note", err)
		}
		n.CreatedAt = time.Unix(0, createdAt).UTC()
		n.UpdatedAt = time.Unix(0, updated).UTC()
		matches = append(matches, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate notes", err)
	}

	capped := len(matches) > MaxSearchResults
	if capped {
		matches = matches[:MaxSearchResults]
	}

	return &SearchResult{
		Notes:   matches,
		Term:    sanitized,
		Capped:  capped,
		Matched: len(matches),
	}, nil
}

// SanitizeTerm strips every rune that is not an ASCII letter, digit, or
// space from a raw search input. Malformed input degrades to a narrower or
// empty term instead of erroring.
func SanitizeTerm(term string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			return r
		default:
			return -1
		}
	}, term)
}

// truncateRunes returns at most n runes of s, unchanged when already short
// enough. No elision marker is added.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.Unavailable, "notes temporarily unavailable", err)
	}
	return errs.Wrap(errs.Internal, "failed to "+op, err)
}
