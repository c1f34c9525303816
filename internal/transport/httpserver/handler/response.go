package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"pedigree-chart-go/internal/transport/httpserver/middleware"
	"pedigree-chart-go/internal/view"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (h *Handlers) header(r *http.Request, title string) view.Header {
	header := view.Header{
		Title:     title,
		LoginURL:  h.auth.LoginURL(r),
		LogoutURL: h.auth.LogoutURL(r),
	}
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		header.LoggedIn = true
		header.Nickname = user.Nickname
	}
	return header
}

// writePage renders the whole document before touching w, so a template
// failure still produces a clean 500.
func (h *Handlers) writePage(w http.ResponseWriter, r *http.Request, status int, page, title string, values map[string]any) {
	body, err := h.views.Page(page, h.header(r, title), values)
	if err != nil {
		h.log.InternalError("view: render page failed", err, "page", page, "path", r.URL.Path)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (h *Handlers) writeErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	heading := http.StatusText(status)
	h.writePage(w, r, status, "error", heading+" | Pedigree Chart", map[string]any{
		"heading": heading,
		"message": message,
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Accept"), "application/json")
}
