package handlers

import (
	"context"
	"net/http"
	"time"

	"admin-console/config"
	"admin-console/core/authflow"
	"admin-console/core/guard"
	"admin-console/core/rbac"
	"admin-console/core/session"
)

const csrfMaxAge = 12 * time.Hour

type AuthHandler struct {
	base
}

func NewAuthHandler(d Deps) *AuthHandler {
	return &AuthHandler{base: newBase(d)}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	st := h.store(r)
	if st == nil {
		h.fail(w, r, session.ErrNotHydrated)
		return
	}
	var creds authflow.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		h.fail(w, r, err)
		return
	}
	secure := h.secure(r)
	res, err := h.Auth.NewFlow(st).Submit(r.Context(), creds)
	if err != nil {
		h.Metrics.LoginOutcome(loginOutcome(err))
		if status, _ := errorStatus(err); status != http.StatusUnauthorized && !st.Authenticated() {
			http.SetCookie(w, authflow.ExpiredMarkerCookie(secure))
		}
		h.fail(w, r, err)
		return
	}
	st, err = h.rotate(r, st)
	if err != nil {
		http.SetCookie(w, authflow.ExpiredMarkerCookie(secure))
		h.fail(w, r, err)
		return
	}
	h.Metrics.LoginOutcome("ok")
	http.SetCookie(w, SessionCookie(r, h.Cfg, st.ID()))
	http.SetCookie(w, authflow.MarkerCookie(res.Remember, h.Auth.RememberMaxAge(), secure))
	token := h.issueCSRF(w, r, st)
	writeJSON(w, http.StatusOK, map[string]any{
		"redirect":    res.Redirect,
		"user":        res.User,
		"remember":    res.Remember,
		"role_source": res.Source,
		"csrf_token":  token,
	})
}

// rotate reissues the console session under a new id once the login has
// attached credentials. The pre-login id names nothing afterwards.
func (h *AuthHandler) rotate(r *http.Request, st *session.Store) (*session.Store, error) {
	if h.Sessions == nil {
		return st, nil
	}
	old := st.ID()
	fresh, err := h.Sessions.Rotate(context.WithoutCancel(r.Context()), st)
	if err != nil {
		return nil, err
	}
	h.Editors.DropSession(old)
	return fresh, nil
}

func loginOutcome(err error) string {
	status, _ := errorStatus(err)
	switch status {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusBadGateway:
		return "unreachable"
	case http.StatusConflict:
		return "in_flight"
	default:
		return "rejected"
	}
}

// Logout never fails: the mutation is best-effort and the local state is
// cleared regardless.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	redirect := guard.SignInPath
	if st := h.store(r); st != nil {
		redirect = h.Auth.Logout(r.Context(), st)
		if n := h.Editors.DropSession(st.ID()); n > 0 {
			h.Logger.Printf("AUTH logout dropped %d open editors", n)
		}
	}
	secure := h.secure(r)
	http.SetCookie(w, authflow.ExpiredMarkerCookie(secure))
	http.SetCookie(w, &http.Cookie{
		Name:     authflow.CSRFCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"redirect": redirect})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	body := map[string]any{
		"user":       sess.User,
		"csrf_token": h.issueCSRF(w, r, h.store(r)),
	}
	if sess.ExpiresAt != nil {
		body["expires_at"] = sess.ExpiresAt.UTC()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in authflow.Registration
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.Auth.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "redirect": guard.SignInPath})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in authflow.PasswordReset
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Auth.ForgotPassword(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Menu(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"menu": BuildMenu(sess)})
}

type MenuItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Area requirements shared by the navigation, the admin pages and the API
// routes behind them.
var (
	UsersArea = &rbac.Requirement{
		AnyRole:       []string{string(rbac.RoleAdmin), string(rbac.RoleDeveloper)},
		AnyPermission: [][2]string{{"user", "read"}},
	}
	RolesArea = &rbac.Requirement{
		AnyRole:       []string{string(rbac.RoleAdmin), string(rbac.RoleDeveloper)},
		AnyPermission: [][2]string{{"role", "read"}},
	}
	PermissionsArea = &rbac.Requirement{
		AnyRole:       []string{string(rbac.RoleAdmin), string(rbac.RoleDeveloper)},
		AnyPermission: [][2]string{{"permission", "read"}, {"role", "read"}},
	}
)

var menuEntries = []struct {
	Name string
	Path string
	Req  *rbac.Requirement
}{
	{Name: "overview", Path: "/dashboard"},
	{Name: "users", Path: "/admin/users", Req: UsersArea},
	{Name: "roles", Path: "/admin/roles", Req: RolesArea},
	{Name: "permissions", Path: "/admin/permissions", Req: PermissionsArea},
}

// BuildMenu lists the navigation entries the session may see.
func BuildMenu(sess *session.Session) []MenuItem {
	menu := []MenuItem{}
	for _, e := range menuEntries {
		if rbac.Can(sess, e.Req) {
			menu = append(menu, MenuItem{Name: e.Name, Path: e.Path})
		}
	}
	return menu
}

func (h *AuthHandler) issueCSRF(w http.ResponseWriter, r *http.Request, st *session.Store) string {
	token := authflow.GenerateCSRF(h.Cfg.CSRFKey, st.ID(), time.Now().UTC())
	http.SetCookie(w, &http.Cookie{
		Name:     authflow.CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(csrfMaxAge / time.Second),
		Secure:   h.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// SessionCookie names the console session. It outlives the longest
// remembered sign-in so the server-side record expires first.
func SessionCookie(r *http.Request, cfg *config.AppConfig, id string) *http.Cookie {
	maxAge := cfg.Session.TTL
	if cfg.Session.RememberMaxAge > maxAge {
		maxAge = cfg.Session.RememberMaxAge
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   IsSecureRequest(r, cfg),
		SameSite: http.SameSiteLaxMode,
	}
}

// CSRFMaxAge is how long an issued token stays valid.
func CSRFMaxAge() time.Duration {
	return csrfMaxAge
}
