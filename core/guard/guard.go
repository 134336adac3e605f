// Package guard decides page navigation from the presence of the marker
// cookie alone. It never reads the session itself.
package guard

import (
	"net/url"
	"strings"
)

const (
	SignInPath    = "/sign-in"
	DashboardPath = "/dashboard"
)

var exemptPrefixes = []string{"/static/", "/api/", "/_next/", "/favicon.ico", "/healthz", "/readyz", "/metrics"}

var protectedPrefixes = []string{
	"/dashboard",
	"/admin/users",
	"/admin/roles",
	"/admin/permissions",
	"/users",
	"/roles",
	"/permissions",
}

var authPages = map[string]struct{}{
	"/sign-in":         {},
	"/login":           {},
	"/register":        {},
	"/forgot-password": {},
}

type Action int

const (
	Allow Action = iota
	Redirect
)

type Decision struct {
	Action   Action
	Location string
	Reason   string
}

func (d Decision) Allowed() bool {
	return d.Action == Allow
}

func Decide(path string, hasMarker bool, query url.Values) Decision {
	if path == "" {
		path = "/"
	}
	for _, p := range exemptPrefixes {
		if strings.HasPrefix(path, p) {
			return Decision{Action: Allow, Reason: "exempt"}
		}
	}
	if _, ok := authPages[path]; ok {
		if hasMarker {
			return Decision{Action: Redirect, Location: ReturnTarget(query), Reason: "authenticated"}
		}
		return Decision{Action: Allow, Reason: "auth_page"}
	}
	if IsProtected(path) && !hasMarker {
		return Decision{Action: Redirect, Location: SignInURL(path), Reason: "unauthenticated"}
	}
	return Decision{Action: Allow, Reason: "pass"}
}

func IsProtected(path string) bool {
	for _, p := range protectedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// SignInURL keeps the target readable: /sign-in?callbackUrl=/dashboard.
func SignInURL(target string) string {
	if !IsSafeLocalPath(target) {
		return SignInPath
	}
	return SignInPath + "?callbackUrl=" + escapeKeepSlash(target)
}

// ReturnTarget picks callbackUrl, then next, falling back to the dashboard.
func ReturnTarget(query url.Values) string {
	for _, key := range []string{"callbackUrl", "next"} {
		if v := query.Get(key); v != "" && IsSafeLocalPath(v) {
			return v
		}
	}
	return DashboardPath
}

// IsSafeLocalPath rejects absolute and protocol-relative URLs so a return
// parameter cannot bounce the browser off-site.
func IsSafeLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	if strings.ContainsAny(p, "\r\n") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return false
	}
	return true
}

func escapeKeepSlash(p string) string {
	return strings.ReplaceAll(url.QueryEscape(p), "%2F", "/")
}
