package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/samba-client/internal/interfaces/rest/middleware"
	"github.com/pot-code/samba-client/internal/lesson"
	"github.com/pot-code/samba-client/internal/session"
	"github.com/pot-code/samba-client/internal/user"
)

// MediaStore local media files reachable over HTTP
type MediaStore interface {
	lesson.MediaStore
	Save(name string, r io.Reader) (string, error)
	Exists(path string) (bool, error)
}

// ProfileResponse cached identity plus, when signed in, the onboarding state
// of the remote user document
type ProfileResponse struct {
	session.Profile
	UID        string `json:"uid"`
	Privileged bool   `json:"privileged"`
	Image      string `json:"image,omitempty"`
	Onboarding string `json:"onboarding,omitempty"`
}

// UserHandler user related operations
type UserHandler struct {
	UserUseCase user.UserUseCase
	Session     *session.Session
	Media       MediaStore
}

// NewUserHandler create an user controller instance
func NewUserHandler(UserUseCase user.UserUseCase, Session *session.Session, Media MediaStore) *UserHandler {
	return &UserHandler{
		UserUseCase: UserUseCase,
		Session:     Session,
		Media:       Media,
	}
}

func (uh *UserHandler) adopt(c echo.Context, u *user.UserModel) error {
	ctx := c.Request().Context()
	if err := uh.Session.SetIdentity(ctx, u.Name, u.Age, u.Email, u.Role); err != nil {
		return err
	}
	return uh.Session.SetImageURI(ctx, u.ImageURI)
}

func (uh *UserHandler) profile(c echo.Context) (*ProfileResponse, error) {
	ctx := c.Request().Context()
	image, err := uh.Session.ProfileImage(ctx, uh.Media)
	if err != nil {
		return nil, err
	}
	res := &ProfileResponse{
		Profile:    uh.Session.Profile(),
		UID:        uh.Session.UID(ctx),
		Privileged: uh.Session.IsPrivileged(),
		Image:      image,
	}
	if res.UID == session.UnknownUID {
		return res, nil
	}
	remote, err := uh.UserUseCase.Profile(ctx, res.UID)
	if err != nil {
		return nil, err
	}
	res.Phone = remote.Phone
	res.Gender = remote.Gender
	res.HealthDone = remote.HealthDone
	res.SettingsDone = remote.SettingsDone
	res.Onboarding = remote.Onboarding()
	return res, nil
}

// HandleSignUp ...
func (uh *UserHandler) HandleSignUp(c echo.Context) (err error) {
	post := new(user.SignUpForm)
	if err = bind(c, post); err != nil {
		return err
	}
	u, err := uh.UserUseCase.SignUp(c.Request().Context(), post)
	if err != nil {
		return err
	}
	if err = uh.adopt(c, u); err != nil {
		return err
	}
	res, err := uh.profile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// HandleSignIn ...
func (uh *UserHandler) HandleSignIn(c echo.Context) (err error) {
	post := new(user.SignInForm)
	if err = bind(c, post); err != nil {
		return err
	}
	u, err := uh.UserUseCase.SignIn(c.Request().Context(), post)
	if err != nil {
		return err
	}
	if err = uh.adopt(c, u); err != nil {
		return err
	}
	res, err := uh.profile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleSignOut ...
func (uh *UserHandler) HandleSignOut(c echo.Context) (err error) {
	ctx := c.Request().Context()
	if err = uh.UserUseCase.SignOut(ctx); err != nil {
		return err
	}
	if err = uh.Session.Clear(ctx); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetProfile ...
func (uh *UserHandler) HandleGetProfile(c echo.Context) (err error) {
	res, err := uh.profile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleUpdateProfile writes the remote user document first, then the local
// identity. An empty role keeps the current one.
func (uh *UserHandler) HandleUpdateProfile(c echo.Context) (err error) {
	uid, err := middleware.GetContextUID(c)
	if err != nil {
		return err
	}
	post := new(user.ProfileForm)
	if err = bind(c, post); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err = uh.UserUseCase.UpdateProfile(ctx, uid, post); err != nil {
		return err
	}
	role := post.Role
	if role == "" {
		role = uh.Session.Profile().Role
	}
	if err = uh.Session.SetIdentity(ctx, post.Name, post.Age, post.Email, role); err != nil {
		return err
	}
	res, err := uh.profile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleDeclareHealth confirms the health declaration of the current user
func (uh *UserHandler) HandleDeclareHealth(c echo.Context) (err error) {
	uid, err := middleware.GetContextUID(c)
	if err != nil {
		return err
	}
	post := new(user.HealthForm)
	if err = bind(c, post); err != nil {
		return err
	}
	if err = uh.UserUseCase.DeclareHealth(c.Request().Context(), uid, post); err != nil {
		return err
	}
	res, err := uh.profile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleUploadProfileImage stores the multipart "file" as the local profile
// image of the current user
func (uh *UserHandler) HandleUploadProfileImage(c echo.Context) (err error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file")
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	path, err := uh.Media.Save(fh.Filename, src)
	if err != nil {
		return err
	}
	if err = uh.Session.SetProfileImagePath(c.Request().Context(), path); err != nil {
		return err
	}
	res, err := uh.profile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
