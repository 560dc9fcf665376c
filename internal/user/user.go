// Package user is the identity provider: accounts, credentials and the
// remote user profile document.
package user

import (
	"context"
	"errors"

	"github.com/pot-code/samba-client/internal/session"
)

// UserModel account row joined with its profile document
type UserModel struct {
	ID           string
	Email        string
	Password     string
	Name         string
	Age          string
	Role         string
	ImageURI     string
	Phone        string
	Gender       string
	HealthDone   bool // onboarding: health declaration confirmed
	SettingsDone bool // onboarding: settings screen saved
	LoginRetry   int
	LastLogin    int64 // unix time of the last sign-in attempt
}

// ErrNoSuchUser failed to validate the credential
var ErrNoSuchUser = errors.New("No such user or password is incorrect")

// ErrDuplicatedUser unique key constraint violation
var ErrDuplicatedUser = errors.New("Email is already registered")

// ErrTooManyRetries account locked after repeated failed sign-ins
var ErrTooManyRetries = errors.New("Too many failed sign-in attempts")

// SignUpForm .
type SignUpForm struct {
	Email    string `json:"email" validate:"required,email,max=128"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,max=64"`
	Age      string `json:"age" validate:"omitempty,numeric,max=3"`
	Role     string `json:"role" validate:"omitempty,oneof=Instructor Participant Guide instructor participant guide"`
}

// SignInForm .
type SignInForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileForm settings screen, saving it completes that onboarding step
type ProfileForm struct {
	Name   string `json:"name" validate:"required,max=64"`
	Age    string `json:"age" validate:"omitempty,numeric,max=3"`
	Email  string `json:"email" validate:"required,email,max=128"`
	Role   string `json:"role" validate:"omitempty,oneof=Instructor Participant Guide instructor participant guide"`
	Phone  string `json:"phone" validate:"omitempty,max=32"`
	Gender string `json:"gender" validate:"omitempty,max=16"`
}

// HealthForm health declaration, every statement has to be confirmed
type HealthForm struct {
	NoHeartCondition bool `json:"noHeartCondition" validate:"required"`
	NotPregnant      bool `json:"notPregnant" validate:"required"`
	AcceptTerms      bool `json:"acceptTerms" validate:"required"`
}

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*UserModel, error)
	FindByID(ctx context.Context, id string) (*UserModel, error)
	SaveUser(ctx context.Context, post *UserModel) error
	UpdateLogin(ctx context.Context, post *UserModel) error
	UpdateProfile(ctx context.Context, post *UserModel) error
}

type UserUseCase interface {
	session.IdentityProvider
	session.ProfileSource
	SignUp(ctx context.Context, form *SignUpForm) (*UserModel, error)
	SignIn(ctx context.Context, form *SignInForm) (*UserModel, error)
	SignOut(ctx context.Context) error
	UpdateProfile(ctx context.Context, uid string, form *ProfileForm) error
	DeclareHealth(ctx context.Context, uid string, form *HealthForm) error
}
