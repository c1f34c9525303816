package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	pedigreedomain "pedigree-chart-go/internal/domain/pedigree"
	"pedigree-chart-go/internal/transport/httpserver/middleware"
	"pedigree-chart-go/internal/view"
)

const siteTitle = "Pedigree Chart"

type chartResponse struct {
	Owner       string    `json:"owner"`
	Slug        string    `json:"slug"`
	Generations int       `json:"generations"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

func toChartResponse(chart *pedigreedomain.Chart) chartResponse {
	return chartResponse{
		Owner:       chart.Owner,
		Slug:        chart.Slug,
		Generations: chart.Generations,
		URL:         view.ViewPath(chart.Owner, chart.Slug),
		CreatedAt:   chart.CreatedAt,
	}
}

// Index shows the chart creation form.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	h.writeForm(w, r, http.StatusOK, user.Nickname, formState{})
}

// AddChart builds and stores a new chart, then sends the browser to it.
func (h *Handlers) AddChart(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	req, err := h.decodeChartRequest(w, r, true)
	if err != nil {
		h.log.BusinessError("charts.add: invalid request", err, "owner", user.Nickname)
		h.rejectChart(w, r, http.StatusBadRequest, "invalid_request", err.Error(), user.Nickname, submitted(req))
		return
	}

	owner := pedigreedomain.Owner{ID: user.ID, Nickname: user.Nickname}
	chart, err := h.Charts.CreateChart(r.Context(), owner, req.input())
	if err != nil {
		switch {
		case errors.Is(err, pedigreedomain.ErrInvalidSlug):
			h.log.BusinessError("charts.add: invalid slug", err, "owner", user.Nickname, "slug", req.Slug)
			h.rejectChart(w, r, http.StatusBadRequest, "invalid_slug", "use letters, digits, '-' and '_' for the chart address", user.Nickname, submitted(req))
		case errors.Is(err, pedigreedomain.ErrInvalidGenerations):
			h.log.BusinessError("charts.add: invalid generations", err, "owner", user.Nickname, "generations", req.Generations)
			h.rejectChart(w, r, http.StatusBadRequest, "invalid_generations", "generations must be between 1 and 8", user.Nickname, submitted(req))
		case errors.Is(err, pedigreedomain.ErrSlugTaken):
			h.log.BusinessError("charts.add: slug taken", err, "owner", user.Nickname, "slug", req.Slug)
			h.rejectChart(w, r, http.StatusConflict, "slug_taken", "you already have a chart at this address", user.Nickname, submitted(req))
		case errors.Is(err, pedigreedomain.ErrNotOwner):
			h.log.BusinessError("charts.add: nickname held by another user", err, "owner", user.Nickname, "user_id", user.ID)
			h.rejectChart(w, r, http.StatusForbidden, "forbidden", "charts under this name belong to another user", user.Nickname, submitted(req))
		default:
			h.log.InternalError("charts.add: create chart failed", err, "owner", user.Nickname, "slug", req.Slug)
			h.rejectChart(w, r, http.StatusInternalServerError, "internal_error", "internal error", user.Nickname, submitted(req))
		}
		return
	}

	h.log.Info("charts.add: chart created", "owner", chart.Owner, "slug", chart.Slug, "generations", chart.Generations)
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, toChartResponse(chart))
		return
	}
	http.Redirect(w, r, view.ViewPath(chart.Owner, chart.Slug), http.StatusSeeOther)
}

func (h *Handlers) ListCharts(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	charts, err := h.Charts.ListCharts(r.Context(), owner)
	if err != nil {
		h.log.InternalError("charts.list: list charts failed", err, "owner", owner)
		h.writeErrorPage(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if len(charts) == 0 && h.Profiles != nil {
		known, err := h.Profiles.Known(r.Context(), owner)
		if err != nil {
			h.log.InternalError("charts.list: profile lookup failed", err, "owner", owner)
		} else if !known {
			h.writeErrorPage(w, r, http.StatusNotFound, "no such user: "+owner)
			return
		}
	}

	if wantsJSON(r) {
		response := make([]chartResponse, 0, len(charts))
		for i := range charts {
			response = append(response, toChartResponse(&charts[i]))
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	items := make([]map[string]any, 0, len(charts))
	for _, chart := range charts {
		items = append(items, map[string]any{
			"slug":       chart.Slug,
			"url":        view.ViewPath(chart.Owner, chart.Slug),
			"created_at": chart.CreatedAt.Format("2006-01-02"),
			"age":        humanize.Time(chart.CreatedAt),
		})
	}
	h.writePage(w, r, http.StatusOK, "list", "Pedigrees by "+owner, map[string]any{
		"username":  owner,
		"pedigrees": items,
	})
}

func (h *Handlers) ViewChart(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	slug := chi.URLParam(r, "slug")

	chart, err := h.Charts.GetChart(r.Context(), owner, slug)
	if err != nil {
		if errors.Is(err, pedigreedomain.ErrChartNotFound) {
			h.log.BusinessError("charts.view: chart not found", err, "owner", owner, "slug", slug)
			h.writeErrorPage(w, r, http.StatusNotFound, "chart not found")
			return
		}
		h.log.InternalError("charts.view: get chart failed", err, "owner", owner, "slug", slug)
		h.writeErrorPage(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	markup := pedigreedomain.Render(chart.Root, chart.Generations)
	if h.rendered != nil {
		h.rendered.ChartRendered()
	}

	values := map[string]any{
		"slug":  chart.Slug,
		"html":  markup,
		"notes": h.views.NotesHTML(chart.Notes),
	}
	if user, ok := middleware.UserFromContext(r.Context()); ok && user.ID == chart.OwnerID {
		values["edit_url"] = view.EditPath(chart.Owner, chart.Slug)
	}
	h.writePage(w, r, http.StatusOK, "view", chart.Slug+" | "+siteTitle, values)
}

func (h *Handlers) EditChart(w http.ResponseWriter, r *http.Request) {
	chart, ok := h.ownedChart(w, r)
	if !ok {
		return
	}
	h.writeForm(w, r, http.StatusOK, chart.Owner, formState{
		editing: true,
		slug:    chart.Slug,
		notes:   chart.Notes,
		root:    chart.Root,
		gens:    chart.Generations,
	})
}

func (h *Handlers) UpdateChart(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	chart, ok := h.ownedChart(w, r)
	if !ok {
		return
	}

	req, err := h.decodeChartRequest(w, r, false)
	if err != nil {
		h.log.BusinessError("charts.update: invalid request", err, "owner", chart.Owner, "slug", chart.Slug)
		h.rejectChart(w, r, http.StatusBadRequest, "invalid_request", err.Error(), chart.Owner, editState(chart, req))
		return
	}
	// The form was built for the chart's own depth.
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") && chart.Generations != h.Charts.Generations() {
		req.Root = pedigreedomain.InputFromFields(r.PostForm, chart.Generations)
	}

	owner := pedigreedomain.Owner{ID: user.ID, Nickname: chart.Owner}
	updated, err := h.Charts.UpdateChart(r.Context(), owner, chart.Slug, req.input())
	if err != nil {
		state := editState(chart, req)
		switch {
		case errors.Is(err, pedigreedomain.ErrInvalidGenerations):
			h.log.BusinessError("charts.update: generations changed", err, "owner", chart.Owner, "slug", chart.Slug, "generations", req.Generations)
			h.rejectChart(w, r, http.StatusBadRequest, "invalid_generations", "generations cannot change after the chart is created", chart.Owner, state)
		case errors.Is(err, pedigreedomain.ErrNotOwner):
			h.log.BusinessError("charts.update: not owner", err, "owner", chart.Owner, "slug", chart.Slug, "user_id", user.ID)
			h.rejectChart(w, r, http.StatusForbidden, "forbidden", "only the owner can edit this chart", chart.Owner, state)
		case errors.Is(err, pedigreedomain.ErrChartNotFound):
			h.log.BusinessError("charts.update: chart not found", err, "owner", chart.Owner, "slug", chart.Slug)
			h.rejectChart(w, r, http.StatusNotFound, "not_found", "chart not found", chart.Owner, state)
		default:
			h.log.InternalError("charts.update: update chart failed", err, "owner", chart.Owner, "slug", chart.Slug)
			h.rejectChart(w, r, http.StatusInternalServerError, "internal_error", "internal error", chart.Owner, state)
		}
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, toChartResponse(updated))
		return
	}
	http.Redirect(w, r, view.ViewPath(updated.Owner, updated.Slug), http.StatusSeeOther)
}

func (h *Handlers) ownedChart(w http.ResponseWriter, r *http.Request) (*pedigreedomain.Chart, bool) {
	owner := chi.URLParam(r, "owner")
	slug := chi.URLParam(r, "slug")

	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return nil, false
	}
	if user.Nickname != owner {
		h.log.BusinessError("charts.edit: not owner", pedigreedomain.ErrNotOwner, "owner", owner, "user", user.Nickname)
		h.writeErrorPage(w, r, http.StatusForbidden, "only the owner can edit this chart")
		return nil, false
	}

	chart, err := h.Charts.GetChart(r.Context(), owner, slug)
	if err != nil {
		if errors.Is(err, pedigreedomain.ErrChartNotFound) {
			h.writeErrorPage(w, r, http.StatusNotFound, "chart not found")
			return nil, false
		}
		h.log.InternalError("charts.edit: get chart failed", err, "owner", owner, "slug", slug)
		h.writeErrorPage(w, r, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if chart.OwnerID != user.ID {
		h.log.BusinessError("charts.edit: not owner", pedigreedomain.ErrNotOwner, "owner", owner, "user_id", user.ID)
		h.writeErrorPage(w, r, http.StatusForbidden, "only the owner can edit this chart")
		return nil, false
	}
	return chart, true
}

type formState struct {
	editing bool
	slug    string
	notes   string
	err     string
	root    *pedigreedomain.Person
	gens    int
}

func (h *Handlers) writeForm(w http.ResponseWriter, r *http.Request, status int, owner string, state formState) {
	gens := state.gens
	if gens == 0 {
		gens = h.Charts.Generations()
	}

	values := map[string]any{
		"heading":  "New pedigree chart",
		"action":   "/add",
		"submit":   "Save chart",
		"base_url": h.siteURL + view.ViewPath(owner, ""),
		"slug":     state.slug,
		"notes":    state.notes,
		"error":    state.err,
		"editing":  state.editing,
		"slots":    pedigreedomain.FormSlots(state.root, gens),
	}
	title := siteTitle
	if state.editing {
		values["heading"] = "Edit " + state.slug
		values["action"] = view.EditPath(owner, state.slug)
		values["submit"] = "Update chart"
		title = "Edit " + state.slug + " | " + siteTitle
	}
	h.writePage(w, r, status, "form", title, values)
}

// rejectChart answers a failed create or update with JSON or with the form
// refilled from state.
func (h *Handlers) rejectChart(w http.ResponseWriter, r *http.Request, status int, code, message, owner string, state formState) {
	if wantsJSON(r) {
		writeError(w, status, code, message)
		return
	}
	state.err = message
	h.writeForm(w, r, status, owner, state)
}

func submitted(req chartRequest) formState {
	return formState{
		slug:  req.Slug,
		notes: req.Notes,
		root:  pedigreedomain.PreviewTree(req.Root),
	}
}

func editState(chart *pedigreedomain.Chart, req chartRequest) formState {
	state := submitted(req)
	state.editing = true
	state.slug = chart.Slug
	state.gens = chart.Generations
	return state
}
