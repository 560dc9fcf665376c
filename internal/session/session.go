// Package session holds the identity of the signed-in user for the lifetime
// of the process. A Session is built once at start-up and handed to every
// component that needs the uid or the privileged flag.
package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/pot-code/samba-client/internal/preference"
	"go.uber.org/zap"
)

// UnknownUID returned by UID when nobody is signed in, never a real key
const UnknownUID = "unknown_uid"

// roles
const (
	RoleInstructor  = "Instructor"
	RoleParticipant = "Participant"
	roleLegacyGuide = "Guide"
)

const unknownName = "Unknown"

// ErrUnauthenticated returned by operations that need a signed-in user
var ErrUnauthenticated = errors.New("no authenticated user")

// IdentityProvider resolves the current uid, ok is false when signed out
type IdentityProvider interface {
	CurrentUID(ctx context.Context) (uid string, ok bool)
}

// Profile user facing identity fields. Phone, gender and the onboarding flags
// only come from the remote user document and are not cached.
type Profile struct {
	Name         string `json:"name"`
	Age          string `json:"age"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ImageURI     string `json:"imageUri"`
	Phone        string `json:"phone,omitempty"`
	Gender       string `json:"gender,omitempty"`
	HealthDone   bool   `json:"healthDone"`
	SettingsDone bool   `json:"settingsDone"`
}

// onboarding steps, in the order a new account goes through them
const (
	OnboardingHealth   = "health"
	OnboardingSettings = "settings"
	OnboardingDone     = "done"
)

// Onboarding next screen after sign-in: the health declaration first, then
// the settings screen, then the lesson list
func (p Profile) Onboarding() string {
	switch {
	case !p.HealthDone:
		return OnboardingHealth
	case !p.SettingsDone:
		return OnboardingSettings
	default:
		return OnboardingDone
	}
}

// ProfileSource loads the remote user document
type ProfileSource interface {
	Profile(ctx context.Context, uid string) (*Profile, error)
}

// FileChecker checks local files
type FileChecker interface {
	Exists(path string) (bool, error)
}

// CanonicalRole maps legacy role labels to the current ones
func CanonicalRole(role string) string {
	if strings.EqualFold(role, roleLegacyGuide) {
		return RoleInstructor
	}
	return role
}

// Session current identity, safe for concurrent use
type Session struct {
	ids    IdentityProvider
	prefs  preference.Store
	logger *zap.Logger

	mu         sync.RWMutex
	profile    Profile
	privileged bool
}

// New create an empty session
func New(ids IdentityProvider, prefs preference.Store, logger *zap.Logger) *Session {
	return &Session{ids: ids, prefs: prefs, logger: logger}
}

// SetIdentity replaces the cached identity and persists it to preferences
func (s *Session) SetIdentity(ctx context.Context, name, age, email, role string) error {
	role = CanonicalRole(role)
	privileged := strings.EqualFold(role, RoleInstructor)

	s.mu.Lock()
	s.profile.Name = name
	s.profile.Age = age
	s.profile.Email = email
	s.profile.Role = role
	s.privileged = privileged
	s.mu.Unlock()

	scalars := []struct{ name, value string }{
		{preference.ScalarName, name},
		{preference.ScalarAge, age},
		{preference.ScalarEmail, email},
		{preference.ScalarRole, role},
		{preference.ScalarIsInstructor, strconv.FormatBool(privileged)},
	}
	for _, sc := range scalars {
		if err := s.prefs.SetScalar(ctx, sc.name, sc.value); err != nil {
			return err
		}
	}
	return nil
}

// Load restores the cached identity from preferences
func (s *Session) Load(ctx context.Context) error {
	var p Profile
	fields := []struct {
		name string
		dst  *string
	}{
		{preference.ScalarName, &p.Name},
		{preference.ScalarAge, &p.Age},
		{preference.ScalarEmail, &p.Email},
		{preference.ScalarRole, &p.Role},
		{preference.ScalarImageURI, &p.ImageURI},
	}
	for _, f := range fields {
		v, _, err := s.prefs.GetScalar(ctx, f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	p.Role = CanonicalRole(p.Role)

	s.mu.Lock()
	s.profile = p
	s.privileged = strings.EqualFold(p.Role, RoleInstructor)
	s.mu.Unlock()
	return nil
}

// Resync refreshes the identity from the remote user document
func (s *Session) Resync(ctx context.Context, src ProfileSource) error {
	uid, err := s.RequireUID(ctx)
	if err != nil {
		return err
	}
	p, err := src.Profile(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.SetIdentity(ctx, p.Name, p.Age, p.Email, p.Role); err != nil {
		return err
	}
	return s.SetImageURI(ctx, p.ImageURI)
}

// UID current uid or UnknownUID
func (s *Session) UID(ctx context.Context) string {
	if uid, ok := s.ids.CurrentUID(ctx); ok && uid != "" {
		return uid
	}
	return UnknownUID
}

// RequireUID like UID but refuses the sentinel
func (s *Session) RequireUID(ctx context.Context) (string, error) {
	uid := s.UID(ctx)
	if uid == UnknownUID {
		return "", ErrUnauthenticated
	}
	return uid, nil
}

// IsPrivileged cached flag set by SetIdentity or Load
func (s *Session) IsPrivileged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.privileged
}

// Profile copy of the cached identity, Name defaults to "Unknown"
func (s *Session) Profile() Profile {
	s.mu.RLock()
	p := s.profile
	s.mu.RUnlock()
	if p.Name == "" {
		p.Name = unknownName
	}
	return p
}

// SetImageURI sets the remote profile image
func (s *Session) SetImageURI(ctx context.Context, uri string) error {
	s.mu.Lock()
	s.profile.ImageURI = uri
	s.mu.Unlock()
	return s.prefs.SetScalar(ctx, preference.ScalarImageURI, uri)
}

// SetProfileImagePath remembers a local profile image for the current user
func (s *Session) SetProfileImagePath(ctx context.Context, path string) error {
	uid, err := s.RequireUID(ctx)
	if err != nil {
		return err
	}
	return s.prefs.SetScalar(ctx, preference.ProfileImageOf(uid), path)
}

// ProfileImage resolves the image to show: the per-user local file if it still
// exists, otherwise ImageURI. A stale local path is forgotten.
func (s *Session) ProfileImage(ctx context.Context, files FileChecker) (string, error) {
	fallback := s.Profile().ImageURI
	uid, err := s.RequireUID(ctx)
	if err != nil {
		return fallback, nil
	}
	key := preference.ProfileImageOf(uid)
	path, ok, err := s.prefs.GetScalar(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok || path == "" {
		return fallback, nil
	}
	exists, err := files.Exists(path)
	if err != nil {
		return "", err
	}
	if exists {
		return path, nil
	}
	s.logger.Info("profile image missing, falling back", zap.String("uid", uid), zap.String("media.path", path))
	if err := s.prefs.DeleteScalar(ctx, key); err != nil {
		return "", err
	}
	return fallback, nil
}

// Clear forgets the cached identity, used on sign-out
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.profile = Profile{}
	s.privileged = false
	s.mu.Unlock()

	for _, name := range []string{
		preference.ScalarName,
		preference.ScalarAge,
		preference.ScalarEmail,
		preference.ScalarRole,
		preference.ScalarIsInstructor,
		preference.ScalarImageURI,
	} {
		if err := s.prefs.DeleteScalar(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
