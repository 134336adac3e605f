package gql

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Status      string    `json:"status,omitempty"`
	Role        string    `json:"role,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	Roles       []RoleRef `json:"roles,omitempty"`
	CreatedAt   string    `json:"created_at,omitempty"`
}

// RolePermissionLink is the server's link row. CanDoTheAction is decoded for
// completeness; links are treated as present/absent.
type RolePermissionLink struct {
	ID             string `json:"id"`
	CanDoTheAction *bool  `json:"can_do_the_action,omitempty"`
	PermissionID   string `json:"permission_id,omitempty"`
	RoleID         string `json:"role_id,omitempty"`
}

type Permission struct {
	ID              string               `json:"id"`
	Module          string               `json:"module"`
	Action          string               `json:"action"`
	CreatedAt       string               `json:"created_at,omitempty"`
	RolePermissions []RolePermissionLink `json:"role_permissions,omitempty"`
}

func (p Permission) Key() string {
	return p.Module + ":" + p.Action
}

type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CreatedAt   string       `json:"created_at,omitempty"`
	Permissions []Permission `json:"permissions"`
	Users       []User       `json:"users,omitempty"`
}

type ListOptions struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultListOptions matches the console's first page.
var DefaultListOptions = ListOptions{Limit: 10, Offset: 0}

type MetaData struct {
	TotalRows    int `json:"total_rows"`
	FilteredRows int `json:"filtered_rows"`
}

type UserPage struct {
	Data     []User   `json:"data"`
	MetaData MetaData `json:"meta_data"`
}

type RolePage struct {
	Data     []Role   `json:"data"`
	MetaData MetaData `json:"meta_data"`
}

type PermissionPage struct {
	Data     []Permission `json:"data"`
	MetaData MetaData     `json:"meta_data"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateUserInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type UpdateUserData struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Status    *string `json:"status,omitempty"`
}

type MutationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type RoleUserLink struct {
	ID     string `json:"id"`
	RoleID string `json:"role_id"`
	UserID string `json:"user_id"`
}
