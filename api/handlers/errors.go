package handlers

import (
	"errors"
	"net/http"

	"admin-console/core/authflow"
	"admin-console/core/gql"
	"admin-console/core/guard"
	"admin-console/core/reconcile"
	"admin-console/core/session"
)

// errorStatus maps a domain error to the HTTP status and user message.
func errorStatus(err error) (int, string) {
	var verr *authflow.ValidationError
	var ferr *authflow.FlowError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation failed"
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, "bad request"
	case errors.Is(err, reconcile.ErrPending), errors.Is(err, reconcile.ErrLinkPending), errors.Is(err, authflow.ErrInFlight):
		return http.StatusConflict, err.Error()
	case errors.Is(err, reconcile.ErrUnknownLink), errors.Is(err, errUserNotFound), errors.Is(err, errRoleNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, session.ErrNotHydrated):
		return http.StatusServiceUnavailable, "session not ready"
	case gql.IsUnauthenticated(err):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.As(err, &ferr):
		status, _ := errorStatus(ferr.Err)
		if status == http.StatusInternalServerError {
			status = http.StatusUnprocessableEntity
		}
		return status, ferr.Message
	case gql.IsServerError(err):
		return http.StatusUnprocessableEntity, gql.Message(err)
	case errors.Is(err, gql.ErrTransport), errors.Is(err, gql.ErrBreakerOpen), errors.Is(err, gql.ErrNotFound), errors.Is(err, gql.ErrEmptyResponse):
		return http.StatusBadGateway, authflow.MsgServerUnreached
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail writes err as JSON. Unauthenticated answers also expire the marker
// cookie and point the browser at the sign-in page.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	b.failWith(w, r, err, nil)
}

func (b base) failWith(w http.ResponseWriter, r *http.Request, err error, extra map[string]any) {
	status, msg := errorStatus(err)
	body := map[string]any{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	var verr *authflow.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	if status == http.StatusUnauthorized {
		http.SetCookie(w, authflow.ExpiredMarkerCookie(b.secure(r)))
		body["redirect"] = guard.SignInPath
	}
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		b.Logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, body)
}

// requireSession rejects requests whose console session is not signed in.
func (b base) requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	st := b.store(r)
	if st == nil || !st.Hydrated() {
		b.fail(w, r, session.ErrNotHydrated)
		return nil, false
	}
	sess := st.Session()
	if !st.Authenticated() || sess == nil || sess.User == nil {
		http.SetCookie(w, authflow.ExpiredMarkerCookie(b.secure(r)))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthenticated", "redirect": guard.SignInPath})
		return nil, false
	}
	return sess, true
}
