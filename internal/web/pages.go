package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/raine/petition-web/internal/actions"
	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/session"
	"github.com/rs/zerolog/hlog"
)

var templateFuncs = template.FuncMap{
	"field": func(fields map[string]string, name string) string {
		return fields[name]
	},
	"inc": func(n int) int { return n + 1 },
	"dec": func(n int) int { return n - 1 },
	"hasNext": func(p *api.PetitionPage) bool {
		return p.Page*actions.DefaultPageSize < p.Total
	},
	"money": func(minor int, currency string) string {
		return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, currency)
	},
}

type pages struct {
	templates map[string]*template.Template
}

func loadPages(fsys fs.FS) (*pages, error) {
	names, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}

	p := &pages{templates: map[string]*template.Template{}}
	for _, name := range names {
		base := path.Base(name)
		if base == "layout.html" {
			continue
		}
		t, err := template.New(base).Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", base, err)
		}
		p.templates[strings.TrimSuffix(base, ".html")] = t
	}
	return p, nil
}

// page is what every template gets.
type page struct {
	Title    string
	SignedIn bool
	Notice   string
	Error    string
	Fields   map[string]string
	Form     url.Values
	Data     any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p *page) {
	t, ok := s.pages.templates[name]
	if !ok {
		hlog.FromRequest(r).Error().Str("template", name).Msg("unknown template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if sess := session.FromContext(r.Context()); sess != nil {
		p.SignedIn = sess.IsAuthenticated(r.Context())
	}
	if p.Notice == "" {
		p.Notice = notices[r.URL.Query().Get("notice")]
	}
	if p.Form == nil {
		p.Form = url.Values{}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("template", name).Msg("failed to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error", &page{Title: message})
}

// fail renders the page for a failed action that has no form to redisplay.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, f *actions.Failure) {
	switch f.Kind {
	case actions.KindUnauthenticated:
		s.redirectToSignIn(w, r)
	case actions.KindNotFound:
		s.renderError(w, r, http.StatusNotFound, f.Message)
	case actions.KindUnavailable:
		s.renderError(w, r, http.StatusServiceUnavailable, f.Message)
	default:
		s.renderError(w, r, http.StatusBadRequest, f.Message)
	}
}

func (s *Server) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	next := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		next = "/"
		if ref, err := url.Parse(r.Referer()); err == nil && ref.Host == r.Host {
			next = localPath(ref.RequestURI())
		}
	}
	http.Redirect(w, r, "/signin?next="+url.QueryEscape(next), http.StatusSeeOther)
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, to, notice string) {
	http.Redirect(w, r, to+"?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

// localPath returns p if it is a path on this site, "/" otherwise.
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}

func sessionFrom(r *http.Request) *session.Session {
	return session.FromContext(r.Context())
}
