package reconcile

import (
	"context"
	"errors"
)

var (
	ErrPending     = errors.New("assignment changes are still pending")
	ErrLinkPending = errors.New("assignment change already in flight")
	ErrUnknownLink = errors.New("unknown assignment")
)

type Kind string

const (
	RolePermissions Kind = "role_permissions"
	UserRoles       Kind = "user_roles"
)

// LinkState is the per-link lifecycle: Synced -> Pending -> Synced | Reverted.
type LinkState string

const (
	Synced   LinkState = "synced"
	Pending  LinkState = "pending"
	Reverted LinkState = "reverted"
)

// Mutator creates or removes one link between the owner and a target.
type Mutator interface {
	Assign(ctx context.Context, ownerID, targetID string) error
	Revoke(ctx context.Context, ownerID, targetID string) error
}

// Refetch reloads the authoritative data after an editor is closed.
type Refetch func(ctx context.Context) error

type LinkSeed struct {
	ID       string
	Label    string
	Group    string
	Selected bool
}

type LinkView struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Selected bool      `json:"selected"`
	State    LinkState `json:"state"`
	Error    string    `json:"error,omitempty"`
}

type GroupView struct {
	Name  string     `json:"name"`
	Links []LinkView `json:"links"`
}

type EditorView struct {
	Kind       Kind        `json:"kind"`
	OwnerID    string      `json:"owner_id"`
	OwnerLabel string      `json:"owner_label"`
	HasChanges bool        `json:"has_changes"`
	Pending    bool        `json:"pending"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	Groups     []GroupView `json:"groups"`
}

type Outcome struct {
	LinkID   string    `json:"link_id"`
	Assigned bool      `json:"assigned"`
	State    LinkState `json:"state"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
}
