// Package handler contains HTTP request handlers for the microblog.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc — a function with the right signature
// that automatically satisfies the Handler interface. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, form body, path params)
// 2. Call the service layer
// 3. Write the HTTP response (a rendered page, a redirect, or JSON)
//
// Handlers should NOT contain business logic — they are the "glue" between HTTP and your app.
package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/sakif/microblog/internal/model"
)

// Renderer holds the parsed HTML templates shared by all page handlers.
//
// WHY A STRUCT?
// Templates are parsed once at startup (expensive) and reused per request
// (cheap). Each page template {{define "content"}} fills the slot that
// base.html leaves open — Go's template composition model, similar to
// "layouts" in Rails or "extends" in Jinja2.
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// pageViews lists every page template. Each is parsed together with
// base.html so only one "content" definition exists per template set;
// parsing them all into a single set would make the last {{define
// "content"}} win silently.
var pageViews = []string{
	"home.html",
	"login.html",
	"claim.html",
	"profile.html",
	"post.html",
	"error.html",
}

// NewRenderer parses all page templates under templateDir.
func NewRenderer(templateDir string, logger *slog.Logger) (*Renderer, error) {
	templates := make(map[string]*template.Template, len(pageViews))
	for _, view := range pageViews {
		tmpl, err := template.ParseFiles(
			filepath.Join(templateDir, "base.html"),
			filepath.Join(templateDir, view),
		)
		if err != nil {
			return nil, err
		}
		templates[view] = tmpl
	}

	return &Renderer{
		templates: templates,
		logger:    logger,
	}, nil
}

// pageData is the envelope every template receives. Session state drives
// the nav (login links vs username + logout), View carries the page's own
// data under whatever keys the template expects.
type pageData struct {
	Title   string
	Session model.Session
	View    map[string]interface{}
}

// render executes a page template against the base layout.
func (rn *Renderer) render(w http.ResponseWriter, status int, view string, data pageData) {
	tmpl, ok := rn.templates[view]
	if !ok {
		rn.logger.Error("unknown template", slog.String("view", view))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Set content type and status BEFORE writing the body
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		// Headers are already sent; all we can do is log.
		rn.logger.Error("failed to render template",
			slog.String("view", view),
			slog.String("error", err.Error()),
		)
	}
}

// renderError shows the error page. Used for the GET /error route and for
// page-handler failures that aren't worth a custom view.
func (rn *Renderer) renderError(w http.ResponseWriter, status int, session model.Session, message string) {
	rn.render(w, status, "error.html", pageData{
		Title:   "Error",
		Session: session,
		View:    map[string]interface{}{"Message": message},
	})
}
