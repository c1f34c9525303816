// Package view renders pages from pongo2 templates. A page is the header
// template, the page template and the footer template concatenated.
package view

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/fsnotify/fsnotify"
	"github.com/microcosm-cc/bluemonday"
	"pedigree-chart-go/pkg/logger"
)

const (
	headerTemplate = "header.html"
	footerTemplate = "footer.html"
	pageExtension  = ".html"
)

type Option func(*config)

type config struct {
	baseDir string
	files   fs.FS
}

// WithBaseDir loads templates from a directory on disk. It takes precedence
// over WithFS for templates present in both.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.files = files
	}
}

type Renderer struct {
	set     *pongo2.TemplateSet
	baseDir string
	notes   *bluemonday.Policy

	mu        sync.RWMutex
	templates map[string]*pongo2.Template
}

func New(options ...Option) (*Renderer, error) {
	cfg := &config{}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.baseDir == "" && cfg.files == nil {
		return nil, errors.New("view: need a template directory or fs.FS")
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("view: template dir: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.files != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.files))
	}

	return &Renderer{
		set:       pongo2.NewSet("pedigree", loaders...),
		baseDir:   cfg.baseDir,
		notes:     bluemonday.UGCPolicy(),
		templates: make(map[string]*pongo2.Template),
	}, nil
}

// Render executes the template at path with values.
func (r *Renderer) Render(path string, values map[string]any) (string, error) {
	tmpl, err := r.template(path)
	if err != nil {
		return "", err
	}
	ctx := pongo2.Context{}
	ctx.Update(values)
	out, err := tmpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("view: execute %q: %w", path, err)
	}
	return out, nil
}

// Page composes header, page and footer into one document.
func (r *Renderer) Page(page string, header Header, values map[string]any) (string, error) {
	var b strings.Builder
	parts := []struct {
		path   string
		values map[string]any
	}{
		{headerTemplate, header.values()},
		{page + pageExtension, values},
		{footerTemplate, nil},
	}
	for _, part := range parts {
		out, err := r.Render(part.path, part.values)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// NotesHTML sanitizes user notes and keeps their line breaks.
func (r *Renderer) NotesHTML(notes string) string {
	notes = strings.ReplaceAll(notes, "\r\n", "\n")
	return strings.ReplaceAll(r.notes.Sanitize(notes), "\n", "<br/>")
}

func (r *Renderer) template(path string) (*pongo2.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[path]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.templates[path]; ok {
		return tmpl, nil
	}
	tmpl, err := r.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("view: load %q: %w", path, err)
	}
	r.templates[path] = tmpl
	return tmpl, nil
}

// Forget drops every compiled template; the next render reads them again.
func (r *Renderer) Forget() {
	r.mu.Lock()
	r.templates = make(map[string]*pongo2.Template)
	r.mu.Unlock()
}

// Watch forgets compiled templates whenever a file in the template directory
// changes, until ctx is done. It does nothing without a template directory.
func (r *Renderer) Watch(ctx context.Context, log logger.Logger) error {
	if r.baseDir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("view: watcher: %w", err)
	}
	if err := watcher.Add(r.baseDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("view: watch %q: %w", r.baseDir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					r.Forget()
					log.Info("view: templates changed", "file", event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("view: watcher error", "err", err)
			}
		}
	}()
	return nil
}
