package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"admin-console/core/authflow"
	"admin-console/core/gql"
	"admin-console/core/reconcile"
	"admin-console/core/utils"
)

const (
	userScanPageSize = 100
	userScanMaxPages = 10
)

var errUserNotFound = errors.New("user not found")

type UsersHandler struct {
	base
}

func NewUsersHandler(d Deps) *UsersHandler {
	return &UsersHandler{base: newBase(d)}
}

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type updateUserRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Status    *string `json:"status" validate:"omitempty,oneof=active invited unverified"`
}

type setPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type selectionRequest struct {
	Selected []string `json:"selected"`
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	page, err := h.api(r).GetUsers(r.Context(), listOptions(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if page.Data == nil {
		page.Data = []gql.User{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if errs := utils.ValidateStruct(&req); len(errs) > 0 {
		h.fail(w, r, &authflow.ValidationError{Fields: errs})
		return
	}
	user, err := h.api(r).CreateUser(r.Context(), gql.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Printf("USERS created %s", user.Email)
	writeJSON(w, http.StatusCreated, user)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	id := urlParam(r, "id")
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if errs := utils.ValidateStruct(&req); len(errs) > 0 {
		h.fail(w, r, &authflow.ValidationError{Fields: errs})
		return
	}
	if req.FirstName == nil && req.LastName == nil && req.Status == nil {
		h.fail(w, r, &authflow.ValidationError{Fields: map[string]string{"data": "nothing to update"}})
		return
	}
	user, err := h.api(r).UpdateUser(r.Context(), id, gql.UpdateUserData{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Status:    req.Status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	id := urlParam(r, "id")
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if errs := utils.ValidateStruct(&req); len(errs) > 0 {
		h.fail(w, r, &authflow.ValidationError{Fields: errs})
		return
	}
	res, err := h.api(r).SetUserPassword(r.Context(), id, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Printf("USERS password reset for %s", id)
	writeJSON(w, http.StatusOK, res)
}

// SetRoles replaces a user's roles with the posted selection. An open editor
// for the same user carries the change so its links stay consistent.
func (h *UsersHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	id := urlParam(r, "id")
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	api := h.api(r)
	m := reconcile.UserRoleMutator{API: api}
	if ed := h.Editors.Get(h.store(r).ID(), reconcile.UserRoles, id); ed != nil {
		res, err := ed.ApplySelection(r.Context(), m, req.Selected, h.maxParallel())
		h.writeBatch(w, r, reconcile.UserRoles, res, err)
		return
	}
	user, err := findUser(r.Context(), api, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d := reconcile.ComputeDiff(reconcile.RoleIDs(user), req.Selected)
	res := reconcile.ApplyDiff(r.Context(), m, id, d, h.maxParallel())
	h.writeBatch(w, r, reconcile.UserRoles, res, res.Err())
}

func (b base) writeBatch(w http.ResponseWriter, r *http.Request, kind reconcile.Kind, res reconcile.BatchResult, err error) {
	if err != nil && len(res.Applied) == 0 && len(res.Failed) == 0 {
		b.fail(w, r, err)
		return
	}
	for range res.Applied {
		b.Metrics.LinkMutation(kind, "bulk", "ok")
	}
	for range res.Failed {
		b.Metrics.LinkMutation(kind, "bulk", "failed")
	}
	if res.Applied == nil {
		res.Applied = []reconcile.Outcome{}
	}
	if res.Failed == nil {
		res.Failed = []reconcile.Outcome{}
	}
	body := map[string]any{"applied": res.Applied, "failed": res.Failed}
	if len(res.Failed) > 0 {
		body["error"] = fmt.Sprintf("%d of %d changes failed", len(res.Failed), len(res.Failed)+len(res.Applied))
	}
	writeJSON(w, http.StatusOK, body)
}

type userLister interface {
	GetUsers(ctx context.Context, opts gql.ListOptions) (gql.UserPage, error)
}

// findUser pages through the user list; the API has no single-user lookup.
func findUser(ctx context.Context, api userLister, id string) (gql.User, error) {
	for page := 0; page < userScanMaxPages; page++ {
		res, err := api.GetUsers(ctx, gql.ListOptions{Limit: userScanPageSize, Offset: page * userScanPageSize})
		if err != nil {
			return gql.User{}, err
		}
		for _, u := range res.Data {
			if u.ID == id {
				return u, nil
			}
		}
		if len(res.Data) < userScanPageSize || (page+1)*userScanPageSize >= res.MetaData.TotalRows {
			break
		}
	}
	return gql.User{}, fmt.Errorf("%w: %s", errUserNotFound, id)
}
