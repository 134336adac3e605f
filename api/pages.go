package api

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"admin-console/api/handlers"
	"admin-console/core/authflow"
	"admin-console/core/guard"
	"admin-console/core/rbac"
	"admin-console/core/session"
)

//go:embed web/templates/*.html
var templatesFS embed.FS

//go:embed web/static
var staticFS embed.FS

type pageData struct {
	Page     string
	Title    string
	Path     string
	Source   string
	Callback string
	User     *session.User
	Menu     []handlers.MenuItem
}

type pageRenderer struct {
	pages map[string]*template.Template
}

func newPageRenderer() *pageRenderer {
	layout := template.Must(template.ParseFS(templatesFS, "web/templates/layout.html"))
	r := &pageRenderer{pages: map[string]*template.Template{}}
	for _, name := range []string{"sign-in", "register", "forgot-password", "dashboard", "admin"} {
		t := template.Must(layout.Clone())
		r.pages[name] = template.Must(t.ParseFS(templatesFS, "web/templates/"+name+".html"))
	}
	return r
}

func (p *pageRenderer) render(w http.ResponseWriter, name string, data pageData) error {
	var buf bytes.Buffer
	if err := p.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}

func (s *Server) staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

func (s *Server) authPage(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.servePage(w, r, name, pageData{
			Page:     name,
			Title:    title,
			Path:     r.URL.Path,
			Callback: guard.ReturnTarget(r.URL.Query()),
		})
	}
}

// signedInPage serves a page that needs a live session. A stale marker with
// no session behind it is expired and the browser sent to sign in.
func (s *Server) signedInPage(tmpl, page, title, source string, reqs ...*rbac.Requirement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := session.FromContext(r.Context())
		if st == nil || !st.Authenticated() {
			http.SetCookie(w, authflow.ExpiredMarkerCookie(handlers.IsSecureRequest(r, s.cfg)))
			http.Redirect(w, r, guard.SignInURL(r.URL.RequestURI()), http.StatusFound)
			return
		}
		sess := st.Session()
		for _, req := range reqs {
			if !rbac.Can(sess, req) {
				s.logger.Printf("PERM fail %s %s role=%s", r.Method, r.URL.Path, sess.User.Role)
				http.Redirect(w, r, guard.DashboardPath, http.StatusFound)
				return
			}
		}
		s.servePage(w, r, tmpl, pageData{
			Page:   page,
			Title:  title,
			Path:   r.URL.Path,
			Source: source,
			User:   sess.User,
			Menu:   handlers.BuildMenu(sess),
		})
	}
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	if err := s.pages.render(w, name, data); err != nil {
		s.logger.Errorf("PAGE %s: %v", r.URL.Path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func redirectTo(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	}
}
