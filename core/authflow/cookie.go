package authflow

import (
	"net/http"
	"time"
)

// MarkerCookieName is the advisory "signed in" flag read by the route guard.
// It only ever holds "1"; the token stays server-side.
const MarkerCookieName = "next-admin-auth"

func MarkerCookie(remember bool, maxAge time.Duration, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     MarkerCookieName,
		Value:    "1",
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	}
	if remember && maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
		c.Expires = time.Now().Add(maxAge)
	}
	return c
}

// ExpiredMarkerCookie serializes with Max-Age=0.
func ExpiredMarkerCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     MarkerCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	}
}

func HasMarker(r *http.Request) bool {
	c, err := r.Cookie(MarkerCookieName)
	return err == nil && c.Value != ""
}
