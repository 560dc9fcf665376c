package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pot-code/samba-client/internal/infrastructure/driver"
	"github.com/pot-code/samba-client/internal/preference"
	"go.uber.org/zap/zaptest"
)

type staticIdentity struct{ uid string }

func (si *staticIdentity) CurrentUID(ctx context.Context) (string, bool) {
	return si.uid, si.uid != ""
}

type staticProfiles map[string]*Profile

func (sp staticProfiles) Profile(ctx context.Context, uid string) (*Profile, error) {
	if p, ok := sp[uid]; ok {
		return p, nil
	}
	return nil, errors.New("no such user")
}

type fileSet map[string]bool

func (fs fileSet) Exists(path string) (bool, error) { return fs[path], nil }

func newPrefs(t *testing.T) preference.Store {
	t.Helper()
	ctx := context.Background()
	conn, err := driver.GetDBConnection(&driver.DBConfig{
		Driver: driver.DriverSQLite,
		Host:   "file:" + filepath.Join(t.TempDir(), "prefs.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := preference.NewSQLStore(ctx, conn, "samba")
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	t.Cleanup(func() { store.Close(ctx) })
	return store
}

func TestLegacyRoleIsCanonicalized(t *testing.T) {
	ctx := context.Background()
	prefs := newPrefs(t)
	s := New(&staticIdentity{uid: "u1"}, prefs, zaptest.NewLogger(t))

	if err := s.SetIdentity(ctx, "Dana", "31", "dana@samba.dev", "Guide"); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	if !s.IsPrivileged() {
		t.Error("IsPrivileged() = false for Guide")
	}
	role, _, _ := prefs.GetScalar(ctx, preference.ScalarRole)
	if role != RoleInstructor {
		t.Errorf("stored role = %q, want Instructor", role)
	}
	flag, _, _ := prefs.GetScalar(ctx, preference.ScalarIsInstructor)
	if flag != "true" {
		t.Errorf("stored instructor flag = %q", flag)
	}
}

func TestCanonicalRole(t *testing.T) {
	tests := map[string]string{
		"Guide":       RoleInstructor,
		"guide":       RoleInstructor,
		"Instructor":  "Instructor",
		"Participant": "Participant",
		"":            "",
	}
	for in, want := range tests {
		if got := CanonicalRole(in); got != want {
			t.Errorf("CanonicalRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOnboardingOrder(t *testing.T) {
	tests := []struct {
		health, settings bool
		want             string
	}{
		{false, false, OnboardingHealth},
		{false, true, OnboardingHealth},
		{true, false, OnboardingSettings},
		{true, true, OnboardingDone},
	}
	for _, tt := range tests {
		p := Profile{HealthDone: tt.health, SettingsDone: tt.settings}
		if got := p.Onboarding(); got != tt.want {
			t.Errorf("Onboarding(health=%v, settings=%v) = %q, want %q", tt.health, tt.settings, got, tt.want)
		}
	}
}

func TestParticipantIsNotPrivileged(t *testing.T) {
	s := New(&staticIdentity{uid: "u1"}, newPrefs(t), zaptest.NewLogger(t))
	s.SetIdentity(context.Background(), "Noa", "20", "noa@samba.dev", RoleParticipant)
	if s.IsPrivileged() {
		t.Error("participant reported as privileged")
	}
}

func TestUIDSentinel(t *testing.T) {
	ctx := context.Background()
	s := New(&staticIdentity{}, newPrefs(t), zaptest.NewLogger(t))
	if uid := s.UID(ctx); uid != UnknownUID {
		t.Errorf("UID() = %q, want sentinel", uid)
	}
	if _, err := s.RequireUID(ctx); err != ErrUnauthenticated {
		t.Errorf("RequireUID err = %v, want ErrUnauthenticated", err)
	}
	if err := s.SetProfileImagePath(ctx, "/data/me.png"); err != ErrUnauthenticated {
		t.Errorf("SetProfileImagePath err = %v, want ErrUnauthenticated", err)
	}
}

func TestLoadRestoresIdentity(t *testing.T) {
	ctx := context.Background()
	prefs := newPrefs(t)
	first := New(&staticIdentity{uid: "u1"}, prefs, zaptest.NewLogger(t))
	first.SetIdentity(ctx, "Dana", "31", "dana@samba.dev", "Instructor")

	second := New(&staticIdentity{uid: "u1"}, prefs, zaptest.NewLogger(t))
	if second.Profile().Name != "Unknown" {
		t.Errorf("empty session name = %q, want Unknown", second.Profile().Name)
	}
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := second.Profile()
	if p.Name != "Dana" || p.Email != "dana@samba.dev" || !second.IsPrivileged() {
		t.Errorf("Load restored %+v privileged=%v", p, second.IsPrivileged())
	}
}

func TestResync(t *testing.T) {
	ctx := context.Background()
	s := New(&staticIdentity{uid: "u1"}, newPrefs(t), zaptest.NewLogger(t))
	src := staticProfiles{"u1": {Name: "Dana", Age: "31", Email: "dana@samba.dev", Role: "Guide", ImageURI: "https://img/dana.png"}}
	if err := s.Resync(ctx, src); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	p := s.Profile()
	if p.Role != RoleInstructor || p.ImageURI != "https://img/dana.png" {
		t.Errorf("Profile after resync = %+v", p)
	}
}

func TestProfileImageFallsBackWhenFileIsGone(t *testing.T) {
	ctx := context.Background()
	prefs := newPrefs(t)
	s := New(&staticIdentity{uid: "u1"}, prefs, zaptest.NewLogger(t))
	s.SetImageURI(ctx, "https://img/dana.png")
	s.SetProfileImagePath(ctx, "/data/dana.png")

	got, err := s.ProfileImage(ctx, fileSet{"/data/dana.png": true})
	if err != nil || got != "/data/dana.png" {
		t.Fatalf("ProfileImage = %q, %v", got, err)
	}

	got, err = s.ProfileImage(ctx, fileSet{})
	if err != nil || got != "https://img/dana.png" {
		t.Fatalf("ProfileImage after removal = %q, %v", got, err)
	}
	if _, ok, _ := prefs.GetScalar(ctx, preference.ProfileImageOf("u1")); ok {
		t.Error("stale profile image path not cleared")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	prefs := newPrefs(t)
	s := New(&staticIdentity{uid: "u1"}, prefs, zaptest.NewLogger(t))
	s.SetIdentity(ctx, "Dana", "31", "dana@samba.dev", "Instructor")
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.IsPrivileged() {
		t.Error("still privileged after Clear")
	}
	if _, ok, _ := prefs.GetScalar(ctx, preference.ScalarName); ok {
		t.Error("name still persisted after Clear")
	}
}
