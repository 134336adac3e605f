package authflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"admin-console/core/gql"
	"admin-console/core/guard"
	"admin-console/core/rbac"
	"admin-console/core/session"
	"admin-console/core/utils"
)

type State string

const (
	Idle          State = "idle"
	Submitting    State = "submitting"
	Authenticated State = "authenticated"
	Failed        State = "failed"
)

const (
	RoleSourceProfile = "profile"
	RoleSourceClaims  = "claims"
	RoleSourceAuto    = "auto"
)

type Credentials struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Remember    bool   `json:"remember"`
	CallbackURL string `json:"callbackUrl"`
	Next        string `json:"next"`
}

type Result struct {
	Redirect string        `json:"redirect"`
	Remember bool          `json:"remember"`
	User     *session.User `json:"user"`
	Source   string        `json:"role_source"`
}

type Options struct {
	RoleSource     string
	RememberMaxAge time.Duration
	Now            func() time.Time
}

// Service runs sign-in and sign-out against the GraphQL API.
type Service struct {
	client *gql.Client
	policy *rbac.Policy
	logger *utils.Logger
	opts   Options
}

func NewService(client *gql.Client, policy *rbac.Policy, logger *utils.Logger, opts Options) *Service {
	if opts.RoleSource == "" {
		opts.RoleSource = RoleSourceProfile
	}
	if opts.RememberMaxAge <= 0 {
		opts.RememberMaxAge = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{client: client, policy: policy, logger: logger, opts: opts}
}

func (s *Service) RememberMaxAge() time.Duration {
	return s.opts.RememberMaxAge
}

// Flow is one sign-in attempt: Idle -> Submitting -> Authenticated | Failed.
type Flow struct {
	mu    sync.Mutex
	svc   *Service
	store *session.Store
	state State
	err   error
}

func (s *Service) NewFlow(store *session.Store) *Flow {
	return &Flow{svc: s, store: store, state: Idle}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Flow) transition(to State, err error) {
	f.mu.Lock()
	f.state = to
	f.err = err
	f.mu.Unlock()
}

// Submit validates creds, logs in and resolves the profile. Validation
// failures leave the flow Idle and make no network call. Any later failure
// clears the session store.
func (f *Flow) Submit(ctx context.Context, creds Credentials) (Result, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if errs := utils.ValidateStruct(&creds); len(errs) > 0 {
		return Result{}, &ValidationError{Fields: errs}
	}
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return Result{}, ErrInFlight
	}
	f.state = Submitting
	f.err = nil
	f.mu.Unlock()

	tokens, err := f.svc.client.For(nil).Login(ctx, gql.LoginInput{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return Result{}, f.fail(err, loginMessage(err))
	}
	f.store.SetTokens(session.Tokens{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
	f.transition(Authenticated, nil)

	user, source, err := f.svc.resolveUser(ctx, f.store, creds.Email, tokens.AccessToken)
	if err != nil {
		return Result{}, f.fail(err, MsgProfileFailed)
	}
	sess := session.Session{User: user}
	if creds.Remember {
		exp := f.svc.opts.Now().Add(f.svc.opts.RememberMaxAge)
		sess.ExpiresAt = &exp
	}
	f.store.SetSession(sess)
	f.svc.logger.Printf("AUTH login ok email=%s role=%s source=%s", creds.Email, user.Role, source)
	return Result{
		Redirect: redirectTarget(creds),
		Remember: creds.Remember,
		User:     user,
		Source:   source,
	}, nil
}

func (f *Flow) fail(err error, msg string) error {
	f.store.Clear()
	ferr := &FlowError{Message: msg, Err: err}
	f.transition(Failed, ferr)
	f.svc.logger.Printf("AUTH login failed: %v", err)
	return ferr
}

func loginMessage(err error) string {
	switch {
	case errors.Is(err, gql.ErrMissingToken):
		return MsgMissingTokens
	case gql.IsServerError(err):
		if msg := gql.Message(err); msg != "" {
			return msg
		}
		return MsgSignInFailed
	case errors.Is(err, gql.ErrTransport), errors.Is(err, gql.ErrBreakerOpen), errors.Is(err, gql.ErrNotFound):
		return MsgServerUnreached
	default:
		return MsgSignInFailed
	}
}

func redirectTarget(creds Credentials) string {
	for _, v := range []string{creds.CallbackURL, creds.Next} {
		if v != "" && guard.IsSafeLocalPath(v) {
			return v
		}
	}
	return guard.DashboardPath
}

func (s *Service) resolveUser(ctx context.Context, store *session.Store, email, token string) (*session.User, string, error) {
	switch s.opts.RoleSource {
	case RoleSourceClaims:
		return s.userFromClaims(ctx, email, token), RoleSourceClaims, nil
	case RoleSourceAuto:
		user, err := s.userFromProfile(ctx, store)
		if err != nil && profileUnsupported(err) {
			s.logger.Printf("AUTH profile query unsupported, using token claims: %v", err)
			return s.userFromClaims(ctx, email, token), RoleSourceClaims, nil
		}
		return user, RoleSourceProfile, err
	default:
		user, err := s.userFromProfile(ctx, store)
		return user, RoleSourceProfile, err
	}
}

func (s *Service) userFromProfile(ctx context.Context, store *session.Store) (*session.User, error) {
	u, err := s.client.For(store).CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrProfileFailed
	}
	return &session.User{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		Permissions: append([]string{}, u.Permissions...),
		Status:      u.Status,
	}, nil
}

// userFromClaims trusts the token's role claim. Permissions come from the
// role catalog, which is pulled with the new credentials when it does not
// know the role yet. A failed pull leaves the session in place.
func (s *Service) userFromClaims(ctx context.Context, email, token string) *session.User {
	role := RoleFromToken(token)
	perms := []string{}
	if s.policy != nil && !s.policy.Known(string(role)) {
		if err := rbac.RefreshFromCatalog(ctx, s.client.For(bearer(token)), s.policy); err != nil {
			s.logger.Printf("AUTH role catalog refresh failed: %v", err)
		}
	}
	if s.policy != nil && s.policy.Known(string(role)) {
		perms = s.policy.PermissionsForRole(string(role))
	}
	return &session.User{
		ID:          email,
		Email:       email,
		Role:        string(role),
		Permissions: perms,
		Status:      "active",
	}
}

// bearer is a token source that never clears anything on UNAUTHENTICATED.
type bearer string

func (b bearer) AccessToken() string { return string(b) }
func (bearer) Clear()                {}

func profileUnsupported(err error) bool {
	if errors.Is(err, gql.ErrNotFound) {
		return true
	}
	var gerrs gql.Errors
	if errors.As(err, &gerrs) {
		for _, item := range gerrs {
			if strings.Contains(item.Message, `Cannot query field "user"`) {
				return true
			}
		}
	}
	return false
}

// Logout calls the logout mutation best-effort, then clears the store.
// It always succeeds from the caller's point of view.
func (s *Service) Logout(ctx context.Context, store *session.Store) string {
	if store.AccessToken() != "" {
		if _, err := s.client.For(store).Logout(ctx); err != nil {
			s.logger.Printf("AUTH logout mutation failed: %v", err)
		}
	}
	store.Clear()
	return guard.SignInPath
}
