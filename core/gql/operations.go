package gql

import (
	"context"
	"errors"
)

const (
	loginMutation            = `mutation Login($input: LoginInput!) { login(input: $input) { access_token refresh_token } }`
	currentUserQuery         = `query CurrentUser { user { id email first_name last_name permissions role status } }`
	logoutMutation           = `mutation Logout { logout { success message } }`
	forgotPasswordMutation   = `mutation ForgotPassword($input: ForgotPasswordInput!) { forgotPassword(input: $input) { success message } }`
	createUserMutation       = `mutation CreateUser($input: CreateUserInput!) { createUser(input: $input) { id email first_name last_name status } }`
	getUsersQuery            = `query GetUsers($options: OptionsInput) { getUsers(options: $options) { data { id email first_name last_name status roles { id name } created_at } meta_data { total_rows filtered_rows } } }`
	updateUserMutation       = `mutation UpdateUser($input: UpdateUserInput!) { updateUser(input: $input) { id email first_name last_name status } }`
	setUserPasswordMutation  = `mutation SetUserPasswordByAdmin($user_id: ID!, $password: String!) { setUserPasswordByAdmin(user_id: $user_id, password: $password) { success message } }`
	getRolesQuery            = `query GetRoles($options: OptionsInput) { getRoles(options: $options) { data { id name created_at permissions { id action module role_permissions { id can_do_the_action } } } meta_data { total_rows filtered_rows } } }`
	createRoleMutation       = `mutation CreateRole($input: CreateRoleInput!) { createRole(input: $input) { id name created_at } }`
	updateRoleMutation       = `mutation UpdateRole($input: UpdateRoleInput!) { updateRole(input: $input) { id name created_at } }`
	deleteRoleMutation       = `mutation DeleteRole($entity_id: ID!) { deleteRole(entity_id: $entity_id) { success message } }`
	getPermissionsQuery      = `query GetPermissions($options: OptionsInput) { getPermissions(options: $options) { data { id action created_at module } meta_data { total_rows filtered_rows } } }`
	assignPermissionMutation = `mutation AssignPermission($input: CreateRolePermissionInput!) { assignPermission(input: $input) { id can_do_the_action permission_id role_id } }`
	revokePermissionMutation = `mutation RevokePermission($input: RevokeRolePermissionInput!) { revokePermission(input: $input) { success message } }`
	assignRoleMutation       = `mutation AssignRole($input: CreateRoleUserInput!) { assignRole(input: $input) { id role_id user_id } }`
	revokeRoleMutation       = `mutation RevokeRole($input: RevokeRoleUserInput!) { revokeRole(input: $input) { success message } }`
)

// TokenSource is the session the API acts for. session.Store satisfies it.
type TokenSource interface {
	AccessToken() string
	Clear()
}

// API is the typed operation set bound to one console session. When the
// server answers UNAUTHENTICATED while a token is held, the session is cleared.
type API struct {
	client            *Client
	tokens            TokenSource
	onUnauthenticated func()
}

func (c *Client) For(tokens TokenSource) *API {
	return &API{client: c, tokens: tokens}
}

// OnUnauthenticated registers a hook run after the session has been cleared.
func (a *API) OnUnauthenticated(fn func()) *API {
	a.onUnauthenticated = fn
	return a
}

func (a *API) do(ctx context.Context, op Operation, out any) error {
	token := ""
	if a.tokens != nil {
		token = a.tokens.AccessToken()
	}
	err := a.client.Do(ctx, token, op, out)
	if err != nil && token != "" && IsUnauthenticated(err) {
		a.tokens.Clear()
		if a.onUnauthenticated != nil {
			a.onUnauthenticated()
		}
	}
	return err
}

var ErrMissingToken = errors.New("login response did not include an access token")

func (a *API) Login(ctx context.Context, in LoginInput) (Tokens, error) {
	var out struct {
		Login *Tokens `json:"login"`
	}
	err := a.do(ctx, Operation{Name: "Login", Query: loginMutation, Variables: map[string]any{"input": in}}, &out)
	if err != nil {
		return Tokens{}, err
	}
	if out.Login == nil || out.Login.AccessToken == "" {
		return Tokens{}, ErrMissingToken
	}
	return *out.Login, nil
}

// CurrentUser returns nil, nil when the server has no profile for the token.
func (a *API) CurrentUser(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := a.do(ctx, Operation{Name: "CurrentUser", Query: currentUserQuery}, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (a *API) Logout(ctx context.Context) (MutationResult, error) {
	var out struct {
		Logout MutationResult `json:"logout"`
	}
	err := a.do(ctx, Operation{Name: "Logout", Query: logoutMutation}, &out)
	return out.Logout, err
}

func (a *API) ForgotPassword(ctx context.Context, email string) (MutationResult, error) {
	var out struct {
		ForgotPassword MutationResult `json:"forgotPassword"`
	}
	vars := map[string]any{"input": map[string]any{"email": email}}
	err := a.do(ctx, Operation{Name: "ForgotPassword", Query: forgotPasswordMutation, Variables: vars}, &out)
	return out.ForgotPassword, err
}

func (a *API) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	var out struct {
		CreateUser User `json:"createUser"`
	}
	err := a.do(ctx, Operation{Name: "CreateUser", Query: createUserMutation, Variables: map[string]any{"input": in}}, &out)
	return out.CreateUser, err
}

func (a *API) GetUsers(ctx context.Context, opts ListOptions) (UserPage, error) {
	var out struct {
		GetUsers UserPage `json:"getUsers"`
	}
	err := a.do(ctx, Operation{Name: "GetUsers", Query: getUsersQuery, Variables: map[string]any{"options": opts}}, &out)
	return out.GetUsers, err
}

func (a *API) UpdateUser(ctx context.Context, userID string, data UpdateUserData) (User, error) {
	var out struct {
		UpdateUser User `json:"updateUser"`
	}
	vars := map[string]any{"input": map[string]any{"entity_id": userID, "data": data}}
	err := a.do(ctx, Operation{Name: "UpdateUser", Query: updateUserMutation, Variables: vars}, &out)
	return out.UpdateUser, err
}

func (a *API) SetUserPassword(ctx context.Context, userID, password string) (MutationResult, error) {
	var out struct {
		SetUserPasswordByAdmin MutationResult `json:"setUserPasswordByAdmin"`
	}
	vars := map[string]any{"user_id": userID, "password": password}
	err := a.do(ctx, Operation{Name: "SetUserPasswordByAdmin", Query: setUserPasswordMutation, Variables: vars}, &out)
	return out.SetUserPasswordByAdmin, err
}

func (a *API) GetRoles(ctx context.Context, opts ListOptions) (RolePage, error) {
	var out struct {
		GetRoles RolePage `json:"getRoles"`
	}
	err := a.do(ctx, Operation{Name: "GetRoles", Query: getRolesQuery, Variables: map[string]any{"options": opts}}, &out)
	return out.GetRoles, err
}

func (a *API) CreateRole(ctx context.Context, name string) (Role, error) {
	var out struct {
		CreateRole Role `json:"createRole"`
	}
	vars := map[string]any{"input": map[string]any{"name": name}}
	err := a.do(ctx, Operation{Name: "CreateRole", Query: createRoleMutation, Variables: vars}, &out)
	return out.CreateRole, err
}

func (a *API) UpdateRole(ctx context.Context, roleID, name string) (Role, error) {
	var out struct {
		UpdateRole Role `json:"updateRole"`
	}
	vars := map[string]any{"input": map[string]any{"entity_id": roleID, "data": map[string]any{"name": name}}}
	err := a.do(ctx, Operation{Name: "UpdateRole", Query: updateRoleMutation, Variables: vars}, &out)
	return out.UpdateRole, err
}

func (a *API) DeleteRole(ctx context.Context, roleID string) (MutationResult, error) {
	var out struct {
		DeleteRole MutationResult `json:"deleteRole"`
	}
	err := a.do(ctx, Operation{Name: "DeleteRole", Query: deleteRoleMutation, Variables: map[string]any{"entity_id": roleID}}, &out)
	return out.DeleteRole, err
}

func (a *API) GetPermissions(ctx context.Context, opts ListOptions) (PermissionPage, error) {
	var out struct {
		GetPermissions PermissionPage `json:"getPermissions"`
	}
	err := a.do(ctx, Operation{Name: "GetPermissions", Query: getPermissionsQuery, Variables: map[string]any{"options": opts}}, &out)
	return out.GetPermissions, err
}

func (a *API) AssignPermission(ctx context.Context, roleID, permissionID string) (RolePermissionLink, error) {
	var out struct {
		AssignPermission RolePermissionLink `json:"assignPermission"`
	}
	vars := map[string]any{"input": map[string]any{"role_id": roleID, "permission_id": permissionID}}
	err := a.do(ctx, Operation{Name: "AssignPermission", Query: assignPermissionMutation, Variables: vars}, &out)
	return out.AssignPermission, err
}

func (a *API) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	vars := map[string]any{"input": map[string]any{"role_id": roleID, "permission_id": permissionID}}
	return a.do(ctx, Operation{Name: "RevokePermission", Query: revokePermissionMutation, Variables: vars}, nil)
}

func (a *API) AssignRole(ctx context.Context, roleID, userID string) (RoleUserLink, error) {
	var out struct {
		AssignRole RoleUserLink `json:"assignRole"`
	}
	vars := map[string]any{"input": map[string]any{"role_id": roleID, "user_id": userID}}
	err := a.do(ctx, Operation{Name: "AssignRole", Query: assignRoleMutation, Variables: vars}, &out)
	return out.AssignRole, err
}

func (a *API) RevokeRole(ctx context.Context, roleID, userID string) error {
	vars := map[string]any{"input": map[string]any{"role_id": roleID, "user_id": userID}}
	return a.do(ctx, Operation{Name: "RevokeRole", Query: revokeRoleMutation, Variables: vars}, nil)
}
