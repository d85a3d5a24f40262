package notes

import "time"

// Note is a single note record owned by exactly one user.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preview is a note as shown on the dashboard list: title and body are
// projected to their preview lengths.
type Preview struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListResult is one page of a user's notes plus the pagination totals.
type ListResult struct {
	Notes      []Preview `json:"notes"`
	Page       int       `json:"page"`
	TotalCount int       `json:"total_count"`
	TotalPages int       `json:"total_pages"`
}

// SearchResult holds the matches for a search term.
type SearchResult struct {
	Notes   []Note `json:"notes"`
	Term    string `json:"term"`
	Capped  bool   `json:"capped,omitempty"`
	Matched int    `json:"matched"`
}

// CreateParams enumerates exactly the caller-suppliable fields of a new
// note. Anything else in the request payload is ignored.
type CreateParams struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// UpdateParams enumerates the replaceable fields of an existing note.
type UpdateParams struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
