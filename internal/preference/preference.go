// Package preference is the device-local durable key-value store holding
// per-user sets (favorites, created, watched) and scalar profile fields.
//
// Every mutating call is persisted before it returns. Set membership is
// idempotent: adding a present member or removing an absent one is a no-op.
package preference

import (
	"context"
	"errors"
	"sort"
)

// device scoped sets, favorites are per user, see FavoritesOf
const (
	SetCreated = "created_lessons"
	SetWatched = "watched_lessons"
)

// scalar profile fields
const (
	ScalarName         = "user_name"
	ScalarAge          = "user_age"
	ScalarEmail        = "user_email"
	ScalarRole         = "user_role"
	ScalarIsInstructor = "user_is_instructor"
	ScalarImageURI     = "user_image_uri"
	ScalarSessionToken = "session_token"
	ScalarDeviceID     = "device_id"
)

// ErrEmptyKey returned when a set name, member or scalar name is empty
var ErrEmptyKey = errors.New("preference key must not be empty")

// FavoritesOf per-user favorites set, switching accounts on one device
// doesn't bleed state between users
func FavoritesOf(uid string) string {
	return "favorites_" + uid
}

// ProfileImageOf per-user scalar holding the local profile image path
func ProfileImageOf(uid string) string {
	return "profile_image_path_" + uid
}

// Set unordered collection of members
type Set map[string]struct{}

// NewSet builds a set from members
func NewSet(members ...string) Set {
	s := make(Set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Has reports membership
func (s Set) Has(member string) bool {
	_, ok := s[member]
	return ok
}

// Sorted members in ascending order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Store durable preference storage
type Store interface {
	AddToSet(ctx context.Context, set, member string) error
	RemoveFromSet(ctx context.Context, set, member string) error
	Contains(ctx context.Context, set, member string) (bool, error)
	GetAll(ctx context.Context, set string) (Set, error)

	// SetScalar stores value under name, GetScalar reports ok=false for
	// names never set or deleted
	SetScalar(ctx context.Context, name, value string) error
	GetScalar(ctx context.Context, name string) (value string, ok bool, err error)
	DeleteScalar(ctx context.Context, name string) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func checkKeys(keys ...string) error {
	for _, k := range keys {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
