package user

import (
	"context"
	"time"

	"github.com/pot-code/samba-client/internal/infrastructure/auth"
	"github.com/pot-code/samba-client/internal/infrastructure/validate"
	"github.com/pot-code/samba-client/internal/preference"
	"github.com/pot-code/samba-client/internal/session"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MaxLoginRetry failed sign-ins allowed before the account is locked for
// RetryTimeout
const MaxLoginRetry = 5

// UserUseCaseImpl identity provider backed by a user repository. The signed
// session token lives in the device preference store so sign-in survives
// restarts.
type UserUseCaseImpl struct {
	UserRepository UserRepository
	Prefs          preference.Store
	JWTUtil        *auth.JWTUtil
	Validator      validate.Validator
	RetryTimeout   time.Duration
	logger         *zap.Logger
}

var _ UserUseCase = &UserUseCaseImpl{}

// NewUserUseCase ...
func NewUserUseCase(
	UserRepository UserRepository,
	Prefs preference.Store,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
	RetryTimeout time.Duration,
	logger *zap.Logger,
) *UserUseCaseImpl {
	return &UserUseCaseImpl{
		UserRepository: UserRepository,
		Prefs:          Prefs,
		JWTUtil:        JWTUtil,
		Validator:      Validator,
		RetryTimeout:   RetryTimeout,
		logger:         logger,
	}
}

func (uu *UserUseCaseImpl) validate(form interface{}) error {
	if errs := uu.Validator.Struct(form); errs != nil {
		return &validate.ValidationError{Fields: errs}
	}
	return nil
}

// SignUp create a user and sign it in
func (uu *UserUseCaseImpl) SignUp(ctx context.Context, form *SignUpForm) (*UserModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.SignUp", "service")
	defer apmSpan.End()

	if err := uu.validate(form); err != nil {
		return nil, err
	}

	ur := uu.UserRepository
	// search for existence
	if m, err := ur.FindByEmail(ctx, form.Email); err != nil {
		return nil, err
	} else if m != nil {
		return nil, ErrDuplicatedUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	post := &UserModel{
		Email:     form.Email,
		Password:  string(hash),
		Name:      form.Name,
		Age:       form.Age,
		Role:      session.CanonicalRole(form.Role),
		LastLogin: time.Now().Unix(),
	}
	if post.Role == "" {
		post.Role = session.RoleParticipant
	}
	if err := ur.SaveUser(ctx, post); err != nil {
		return nil, err
	}
	if err := uu.issueToken(ctx, post); err != nil {
		return nil, err
	}
	uu.logger.Info("user signed up", zap.String("uid", post.ID))
	return post, nil
}

// SignIn check credentials and store a fresh session token
func (uu *UserUseCaseImpl) SignIn(ctx context.Context, form *SignInForm) (*UserModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.SignIn", "service")
	defer apmSpan.End()

	if err := uu.validate(form); err != nil {
		return nil, err
	}

	ur := uu.UserRepository
	user, err := ur.FindByEmail(ctx, form.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSuchUser
	}
	now := time.Now().Unix()
	if user.LoginRetry >= MaxLoginRetry {
		if now-user.LastLogin < int64(uu.RetryTimeout.Seconds()) {
			return nil, ErrTooManyRetries
		}
		uu.logger.Debug("sign-in lock expired", zap.String("uid", user.ID))
		user.LoginRetry = 0
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(form.Password)); err != nil {
		user.LoginRetry++
		user.LastLogin = now
		if err := ur.UpdateLogin(ctx, user); err != nil {
			return nil, err
		}
		uu.logger.Debug("wrong password", zap.String("uid", user.ID), zap.Int("retry", user.LoginRetry))
		return nil, ErrNoSuchUser
	}

	user.LoginRetry = 0
	user.LastLogin = now
	if err := ur.UpdateLogin(ctx, user); err != nil {
		return nil, err
	}
	if err := uu.issueToken(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (uu *UserUseCaseImpl) issueToken(ctx context.Context, user *UserModel) error {
	token, err := uu.JWTUtil.GenerateTokenStr(user.ID, user.Email, user.Name)
	if err != nil {
		return err
	}
	return uu.Prefs.SetScalar(ctx, preference.ScalarSessionToken, token)
}

// SignOut drop the stored session token
func (uu *UserUseCaseImpl) SignOut(ctx context.Context) error {
	return uu.Prefs.DeleteScalar(ctx, preference.ScalarSessionToken)
}

// CurrentUID uid of the stored session token, ok is false when there is no
// valid token
func (uu *UserUseCaseImpl) CurrentUID(ctx context.Context) (string, bool) {
	token, ok, err := uu.Prefs.GetScalar(ctx, preference.ScalarSessionToken)
	if err != nil {
		uu.logger.Error("failed to read session token", zap.Error(err))
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	claims, err := uu.JWTUtil.Validate(token)
	if err != nil {
		uu.logger.Debug("session token rejected", zap.Error(err))
		return "", false
	}
	return claims.UID, true
}

// Profile remote user document
func (uu *UserUseCaseImpl) Profile(ctx context.Context, uid string) (*session.Profile, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.Profile", "service")
	defer apmSpan.End()

	user, err := uu.UserRepository.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSuchUser
	}
	return &session.Profile{
		Name:         user.Name,
		Age:          user.Age,
		Email:        user.Email,
		Role:         session.CanonicalRole(user.Role),
		ImageURI:     user.ImageURI,
		Phone:        user.Phone,
		Gender:       user.Gender,
		HealthDone:   user.HealthDone,
		SettingsDone: user.SettingsDone,
	}, nil
}

// UpdateProfile write profile fields to the remote user document
func (uu *UserUseCaseImpl) UpdateProfile(ctx context.Context, uid string, form *ProfileForm) error {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.UpdateProfile", "service")
	defer apmSpan.End()

	if err := uu.validate(form); err != nil {
		return err
	}
	user, err := uu.UserRepository.FindByID(ctx, uid)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNoSuchUser
	}
	user.Name = form.Name
	user.Age = form.Age
	user.Email = form.Email
	user.Phone = form.Phone
	user.Gender = form.Gender
	user.SettingsDone = true
	if form.Role != "" {
		user.Role = session.CanonicalRole(form.Role)
	}
	return uu.UserRepository.UpdateProfile(ctx, user)
}

// DeclareHealth records a confirmed health declaration on the user document
func (uu *UserUseCaseImpl) DeclareHealth(ctx context.Context, uid string, form *HealthForm) error {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.DeclareHealth", "service")
	defer apmSpan.End()

	if err := uu.validate(form); err != nil {
		return err
	}
	user, err := uu.UserRepository.FindByID(ctx, uid)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNoSuchUser
	}
	if user.HealthDone {
		return nil
	}
	user.HealthDone = true
	return uu.UserRepository.UpdateProfile(ctx, user)
}
