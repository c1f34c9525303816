package handler

import (
	"net/http"

	pedigreedomain "pedigree-chart-go/internal/domain/pedigree"
	userdomain "pedigree-chart-go/internal/domain/user"
	"pedigree-chart-go/internal/view"
	"pedigree-chart-go/pkg/logger"
)

// AuthLinks builds the login and logout links shown in the page header.
type AuthLinks interface {
	LoginURL(r *http.Request) string
	LogoutURL(r *http.Request) string
}

type RenderCounter interface {
	ChartRendered()
}

type Handlers struct {
	Charts   *pedigreedomain.Service
	Profiles *userdomain.Service
	views    *view.Renderer
	auth     AuthLinks
	rendered RenderCounter
	siteURL  string
	log      logger.Logger
}

func New(charts *pedigreedomain.Service, profiles *userdomain.Service, views *view.Renderer, auth AuthLinks, rendered RenderCounter, siteURL string, log logger.Logger) *Handlers {
	return &Handlers{
		Charts:   charts,
		Profiles: profiles,
		views:    views,
		auth:     auth,
		rendered: rendered,
		siteURL:  siteURL,
		log:      log,
	}
}
