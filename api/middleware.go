package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"admin-console/api/handlers"
	"admin-console/core/authflow"
	"admin-console/core/guard"
	"admin-console/core/rbac"
	"admin-console/core/session"
	"admin-console/core/utils"
)

const (
	loginLimiterTTL             = 10 * time.Minute
	loginLimiterCleanupInterval = time.Minute
	loginLimiterMaxBuckets      = 10000
	maxLoginBodyBytes           = 64 << 10
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// loginLimiter keeps one token bucket per client IP and per email.
type loginLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*limiterEntry
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
	now         func() time.Time
}

func newLoginLimiter(limit rate.Limit, burst int) *loginLimiter {
	if limit <= 0 {
		limit = rate.Every(5 * time.Second)
	}
	if burst <= 0 {
		burst = 5
	}
	return &loginLimiter{buckets: map[string]*limiterEntry{}, limit: limit, burst: burst, now: time.Now}
}

func (l *loginLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastCleanup) >= loginLimiterCleanupInterval {
		l.cleanup(now)
		l.lastCleanup = now
	}
	e, ok := l.buckets[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *loginLimiter) cleanup(now time.Time) {
	for key, e := range l.buckets {
		if now.Sub(e.lastSeen) > loginLimiterTTL {
			delete(l.buckets, key)
		}
	}
	for len(l.buckets) > loginLimiterMaxBuckets {
		oldestKey := ""
		var oldest time.Time
		for key, e := range l.buckets {
			if oldestKey == "" || e.lastSeen.Before(oldest) {
				oldestKey = key
				oldest = e.lastSeen
			}
		}
		delete(l.buckets, oldestKey)
	}
}

func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := handlers.ClientIP(r, s.cfg)
		body, err := io.ReadAll(io.LimitReader(r.Body, maxLoginBodyBytes))
		if err != nil {
			writeJSONPlain(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var creds authflow.Credentials
		_ = json.Unmarshal(body, &creds)
		email := strings.ToLower(strings.TrimSpace(creds.Email))
		if !s.limiter.allow("ip|"+strings.ToLower(ip)) || (email != "" && !s.limiter.allow("email|"+email)) {
			s.metrics.LoginOutcome("throttled")
			s.logger.Printf("AUTH throttled ip=%s email=%s", ip, email)
			writeJSONPlain(w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts"})
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Errorf("PANIC %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeJSONPlain(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self'; script-src 'self'; img-src 'self' data:; object-src 'none'; frame-ancestors 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if s.cfg.TLSEnabled {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		user := "-"
		if rec.store != nil {
			if sess := rec.store.Session(); sess != nil && sess.User != nil {
				user = sess.User.Email
			}
		}
		s.logger.Printf("RESP %s %s id=%s user=%s status=%d dur=%s bytes=%d", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), user, rec.status, time.Since(start), rec.size)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
	store  *session.Store
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// guardMiddleware applies the marker-cookie navigation rules to page requests.
func (s *Server) guardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		d := guard.Decide(r.URL.Path, authflow.HasMarker(r), r.URL.Query())
		if d.Reason != "exempt" {
			s.metrics.GuardDecision(d.Reason)
		}
		if !d.Allowed() {
			http.Redirect(w, r, d.Location, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withSession binds the console session named by the cookie to the request,
// minting a new id when the cookie is missing or malformed. Pending changes
// are flushed once the handler returns.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(handlers.SessionCookieName); err == nil {
			id = c.Value
		}
		st, err := s.deps.Sessions.Open(r.Context(), id)
		if err != nil {
			s.logger.Errorf("SESSION open %s %s: %v", r.Method, r.URL.Path, err)
			writeJSONPlain(w, http.StatusServiceUnavailable, map[string]string{"error": "session not ready"})
			return
		}
		if st.ID() != id {
			http.SetCookie(w, handlers.SessionCookie(r, s.cfg, st.ID()))
		}
		if rec, ok := w.(*statusRecorder); ok {
			rec.store = st
		}
		next.ServeHTTP(w, r.WithContext(session.WithStore(r.Context(), st)))
		if err := st.Flush(context.WithoutCancel(r.Context())); err != nil {
			s.logger.Errorf("SESSION flush %s: %v", r.URL.Path, err)
		}
	})
}

// requireSignedIn rejects anonymous sessions and checks the CSRF token of
// state-changing calls.
func (s *Server) requireSignedIn(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := session.FromContext(r.Context())
		if st == nil || !st.Authenticated() {
			s.logger.Printf("AUTH fail (no session) %s %s", r.Method, r.URL.Path)
			http.SetCookie(w, authflow.ExpiredMarkerCookie(handlers.IsSecureRequest(r, s.cfg)))
			writeJSONPlain(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated", "redirect": guard.SignInPath})
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
			header := r.Header.Get("X-CSRF-Token")
			cookie, _ := r.Cookie(authflow.CSRFCookieName)
			if header == "" || cookie == nil || !utils.ConstantTimeEquals([]byte(header), []byte(cookie.Value)) {
				s.logger.Printf("AUTH fail (csrf missing) %s %s", r.Method, r.URL.Path)
				writeJSONPlain(w, http.StatusForbidden, map[string]string{"error": "csrf invalid"})
				return
			}
			if err := authflow.VerifyCSRF(s.cfg.CSRFKey, st.ID(), header, handlers.CSRFMaxAge(), time.Now().UTC()); err != nil {
				s.logger.Printf("AUTH fail (csrf) %s %s: %v", r.Method, r.URL.Path, err)
				writeJSONPlain(w, http.StatusForbidden, map[string]string{"error": "csrf invalid"})
				return
			}
		}
		next.ServeHTTP(w, r)
	}
}

// requireCan gates a route with the same decision the UI uses. The GraphQL
// API still authorizes every call.
func (s *Server) requireCan(req *rbac.Requirement) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			st := session.FromContext(r.Context())
			var sess *session.Session
			if st != nil {
				sess = st.Session()
			}
			if !rbac.Can(sess, req) {
				role := ""
				if sess != nil && sess.User != nil {
					role = sess.User.Role
				}
				s.logger.Printf("PERM fail %s %s role=%s", r.Method, r.URL.Path, role)
				writeJSONPlain(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}
