package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"admin-console/core/gql"
)

const (
	SessionCookieName = "console_session"
	maxBodyBytes      = 1 << 20
	maxListLimit      = 100
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var errBadBody = errors.New("bad request")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

// listOptions reads ?limit=&offset= falling back to the console's first page.
func listOptions(r *http.Request) gql.ListOptions {
	opts := gql.DefaultListOptions
	q := r.URL.Query()
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil && v > 0 {
		opts.Limit = min(v, maxListLimit)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("offset"))); err == nil && v >= 0 {
		opts.Offset = v
	}
	return opts
}
