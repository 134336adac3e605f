package authflow

import (
	"context"
	"strings"

	"admin-console/core/gql"
	"admin-console/core/utils"
)

type Registration struct {
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"max=100"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type PasswordReset struct {
	Email string `json:"email" validate:"required,email"`
}

// Register creates an account. It never touches the session store.
func (s *Service) Register(ctx context.Context, in Registration) (gql.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if errs := utils.ValidateStruct(&in); len(errs) > 0 {
		return gql.User{}, &ValidationError{Fields: errs}
	}
	user, err := s.client.For(nil).CreateUser(ctx, gql.CreateUserInput{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		return gql.User{}, &FlowError{Message: userMessage(err, "Unable to create the account."), Err: err}
	}
	return user, nil
}

func (s *Service) ForgotPassword(ctx context.Context, in PasswordReset) (gql.MutationResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if errs := utils.ValidateStruct(&in); len(errs) > 0 {
		return gql.MutationResult{}, &ValidationError{Fields: errs}
	}
	res, err := s.client.For(nil).ForgotPassword(ctx, in.Email)
	if err != nil {
		return gql.MutationResult{}, &FlowError{Message: userMessage(err, "Unable to send the reset link."), Err: err}
	}
	return res, nil
}

func userMessage(err error, fallback string) string {
	if !gql.IsServerError(err) {
		return MsgServerUnreached
	}
	if msg := gql.Message(err); msg != "" {
		return msg
	}
	return fallback
}
