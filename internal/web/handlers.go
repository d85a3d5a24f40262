package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/kuitang/quicknotes/internal/auth"
	"github.com/kuitang/quicknotes/internal/errs"
	"github.com/kuitang/quicknotes/internal/notes"
	"github.com/kuitang/quicknotes/internal/obs"
)

// WebHandler provides HTTP handlers for web UI pages.
type WebHandler struct {
	renderer     *Renderer
	notesService *notes.Service
	userService  *auth.UserService
}

// NewWebHandler creates a new web handler.
func NewWebHandler(renderer *Renderer, notesService *notes.Service, userService *auth.UserService) *WebHandler {
	return &WebHandler{
		renderer:     renderer,
		notesService: notesService,
		userService:  userService,
	}
}

// RegisterRoutes registers all web UI routes on the given mux.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	// Landing page
	mux.Handle("GET /{$}", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleLanding)))

	// Auth pages (HTML only; POST routes are registered by internal/auth)
	mux.HandleFunc("GET /login", h.HandleLoginPage)
	mux.HandleFunc("GET /register", h.HandleRegisterPage)

	// Notes CRUD (auth required, redirect to login)
	mux.Handle("GET /notes", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleNotesList)))
	mux.Handle("GET /notes/new", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleNewNotePage)))
	mux.Handle("POST /notes", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleCreateNote)))
	mux.Handle("GET /notes/{id}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleViewNote)))
	mux.Handle("GET /notes/{id}/edit", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleEditNotePage)))
	mux.Handle("POST /notes/{id}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleUpdateNote)))
	mux.Handle("POST /notes/{id}/delete", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleDeleteNote)))

	// Search (auth required; POST is the form target, GET supports links)
	mux.Handle("GET /search", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleSearch)))
	mux.Handle("POST /search", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleSearch)))
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title        string
	User         *auth.User
	FlashMessage string
	FlashType    string // "success", "error", "info"
	Error        string
}

// NotesListData contains data for the notes list page.
type NotesListData struct {
	PageData
	Notes      []notes.Preview
	Page       int
	TotalCount int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// NoteViewData contains data for the note view page.
type NoteViewData struct {
	PageData
	Note *notes.Note
}

// NoteEditData contains data for the new/edit note form.
type NoteEditData struct {
	PageData
	Note *notes.Note
}

// SearchData contains data for the search results page.
type SearchData struct {
	PageData
	Notes   []notes.Note
	Term    string
	Matched int
	Capped  bool
}

// LoginPageData contains data for the login page.
type LoginPageData struct {
	PageData
	ReturnTo string
	Email    string
}

// RegisterPageData contains data for the register page.
type RegisterPageData struct {
	PageData
	Email string
}

// currentUser resolves the authenticated user for template display. Returns
// a bare ID-only user when the account row cannot be loaded.
func (h *WebHandler) currentUser(r *http.Request) *auth.User {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		return nil
	}
	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		return &auth.User{ID: userID}
	}
	return user
}

// renderServiceError maps a coded service error onto the right error page.
func (h *WebHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := errs.HTTPStatus(errs.CodeOf(err))
	msg := fallback
	if errs.IsNotFound(err) {
		msg = "Note not found"
	}
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("page handler failed", "error", err)
	}
	h.renderer.RenderError(w, status, msg)
}

// HandleLanding handles GET / - shows landing page, or redirects to notes if logged in.
func (h *WebHandler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	if auth.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, "/notes", http.StatusFound)
		return
	}

	data := PageData{
		Title: "QuickNotes",
	}

	if err := h.renderer.Render(w, "landing.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLoginPage handles GET /login - shows the login page.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := LoginPageData{
		PageData: PageData{
			Title: "Sign In",
		},
		ReturnTo: r.URL.Query().Get("return_to"),
		Email:    r.URL.Query().Get("email"),
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		data.Error = errMsg
	}
	if success := r.URL.Query().Get("success"); success != "" {
		data.FlashMessage = success
		data.FlashType = "success"
	}

	if err := h.renderer.Render(w, "auth/login.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleRegisterPage handles GET /register - shows registration page.
func (h *WebHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	data := RegisterPageData{
		PageData: PageData{
			Title: "Create Account",
		},
		Email: r.URL.Query().Get("email"),
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		data.Error = errMsg
	}

	if err := h.renderer.Render(w, "auth/register.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleNotesList handles GET /notes - shows one page of the user's notes.
func (h *WebHandler) HandleNotesList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserID(r.Context())

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil {
			page = p
		}
	}

	result, err := h.notesService.List(r.Context(), userID, page)
	if err != nil {
		h.renderServiceError(w, r, err, "Failed to load notes")
		return
	}

	pageData := PageData{
		Title: "My Notes",
		User:  h.currentUser(r),
	}
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		pageData.FlashMessage = errMsg
		pageData.FlashType = "error"
	}

	data := NotesListData{
		PageData:   pageData,
		Notes:      result.Notes,
		Page:       result.Page,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
		HasPrev:    result.Page > 1,
		HasNext:    result.Page < result.TotalPages,
	}

	if err := h.renderer.Render(w, "notes/list.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleNewNotePage handles GET /notes/new - shows new note form.
func (h *WebHandler) HandleNewNotePage(w http.ResponseWriter, r *http.Request) {
	data := NoteEditData{
		PageData: PageData{
			Title: "New Note",
			User:  h.currentUser(r),
		},
	}

	if err := h.renderer.Render(w, "notes/edit.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleCreateNote handles POST /notes - creates a new note.
func (h *WebHandler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserID(r.Context())

	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	note, err := h.notesService.Create(r.Context(), userID, notes.CreateParams{
		Title: r.FormValue("title"),
		Body:  r.FormValue("body"),
	})
	if err != nil {
		h.renderServiceError(w, r, err, "Failed to create note")
		return
	}

	http.Redirect(w, r, "/notes/"+note.ID, http.StatusFound)
}

// HandleViewNote handles GET /notes/{id} - shows a note.
func (h *WebHandler) HandleViewNote(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserID(r.Context())

	noteID := r.PathValue("id")
	if noteID == "" {
		http.Redirect(w, r, "/notes", http.StatusFound)
		return
	}

	note, err := h.notesService.Get(r.Context(), userID, noteID)
	if err != nil {
		h.renderServiceError(w, r, err, "Failed to load note")
		return
	}

	data := NoteViewData{
		PageData: PageData{
			Title: note.Title,
			User:  h.currentUser(r),
		},
		Note: note,
	}

	if err := h.renderer.Render(w, "notes/view.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleEditNotePage handles GET /notes/{id}/edit - shows edit note form.
func (h *WebHandler) HandleEditNotePage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserID(r.Context())

	noteID := r.PathValue("id")
	if noteID == "" {
		http.Redirect(w, r, "/notes", http.StatusFound)
		return
	}

	note, err := h.notesService.Get(r.Context(), userID, noteID)
	if err != nil {
		h.renderServiceError(w, r, err, "Failed to load note")
		return
	}

	data := NoteEditData{
		PageData: PageData{
			Title: "Edit: " + note.Title,
			User:  h.currentUser(r),
		},
		Note: note,
	}

	if err := h.renderer.Render(w, "notes/edit.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleUpdateNote handles POST /notes/{id} - updates a note.
func (h *WebHandler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserID(r.Context())

	noteID := r.PathValue("id")
	if noteID == "" {
		http.Redirect(w, r, "/notes", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	_, err := h.notesService.Update(r.Context(), userID, noteID, notes.UpdateParams{
		Title: r.FormValue("title"),
		Body:  r.FormValue("body"),
	})
	if err != nil {
		h.renderServiceError(w, r, err, "Failed to update note")
		return
	}

	http.Redirect(w, r, "/notes/"+noteID, http.StatusFound)
}

// HandleDeleteNote handles POST /notes/{id}/delete - deletes a note.
func (h *WebHandler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserID(r.Context())

	noteID := r.PathValue("id")
	if noteID == "" {
		http.Redirect(w, r, "/notes", http.StatusFound)
		return
	}

	if err := h.notesService.Delete(r.Context(), userID, noteID); err != nil {
		if errors.Is(err, notes.ErrNotFound) {
			http.Redirect(w, r, "/notes?error=Note+not+found", http.StatusFound)
			return
		}
		h.renderServiceError(w, r, err, "Failed to delete note")
		return
	}

	http.Redirect(w, r, "/notes", http.StatusFound)
}

// HandleSearch handles GET and POST /search - keyword search over the
// user's notes. The form posts the raw term; links carry it as ?term=.
func (h *WebHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserID(r.Context())

	var term string
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
			return
		}
		term = r.FormValue("term")
	} else {
		term = r.URL.Query().Get("term")
	}

	result, err := h.notesService.Search(r.Context(), userID, term)
	if err != nil {
		h.renderServiceError(w, r, err, "Search failed")
		return
	}

	data := SearchData{
		PageData: PageData{
			Title: "Search",
			User:  h.currentUser(r),
		},
		Notes:   result.Notes,
		Term:    result.Term,
		Matched: result.Matched,
		Capped:  result.Capped,
	}

	if err := h.renderer.Render(w, "notes/search.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
