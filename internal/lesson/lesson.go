// Package lesson keeps the per-category lesson lists in sync with the remote
// catalog and merges local favorite and watched flags into what is shown.
package lesson

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Category difficulty tier, stored in the "level" document field
type Category string

// categories
const (
	Beginner Category = "Beginner"
	Advanced Category = "Advanced"
	Expert   Category = "Expert"
)

// Categories in display order
var Categories = []Category{Beginner, Advanced, Expert}

// ParseCategory case-insensitive, accepts the legacy plural "Beginners"
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beginner", "beginners":
		return Beginner, nil
	case "advanced":
		return Advanced, nil
	case "expert":
		return Expert, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// document field names
const (
	FieldTime            = "time"
	FieldTitle           = "title"
	FieldSubtitle        = "subtitle"
	FieldDescription     = "description"
	FieldVideoPath       = "videoPath"
	FieldLikes           = "likes"
	FieldMaxParticipants = "maxParticipants"
	FieldIconID          = "iconId"
	FieldLevel           = "level"
	FieldIsPast          = "isPast"
	FieldCreatedBy       = "createdBy"
)

// creation defaults
const (
	DefaultCapacity = 20
	DefaultIconID   = "icon_image_dance"
)

var (
	// ErrUnknownCategory .
	ErrUnknownCategory = errors.New("unknown lesson category")
	// ErrRemote transient catalog failure
	ErrRemote = errors.New("remote catalog unavailable")
	// ErrDocumentNotFound catalog has no document with that id
	ErrDocumentNotFound = errors.New("lesson document not found")
	// ErrNotFound item is not in the observed list
	ErrNotFound = errors.New("lesson not found")
	// ErrNotPrivileged only instructors may create, edit or delete
	ErrNotPrivileged = errors.New("instructor role required")
	// ErrFavoriteLocked favorites of past lessons can't change
	ErrFavoriteLocked = errors.New("lesson is in the past, favorite is locked")
	// ErrCancelled user declined the confirmation or the editor
	ErrCancelled = errors.New("cancelled")
	// ErrUnsupportedField document field outside the catalog schema
	ErrUnsupportedField = errors.New("unsupported document field")
)

// Item a lesson as mirrored from the catalog. Favorite state is not part of
// it, see DisplayState.
type Item struct {
	ID            string   `json:"id"`
	Category      Category `json:"category"`
	Title         string   `json:"title" validate:"required,max=128"`
	Subtitle      string   `json:"subtitle" validate:"max=128"`
	Description   string   `json:"description" validate:"max=2048"`
	MediaPath     string   `json:"mediaPath,omitempty" validate:"max=512"`
	ScheduledTime string   `json:"scheduledTime" validate:"required,max=64"`
	Registered    int      `json:"registered" validate:"gte=0,ltefield=Capacity"`
	Capacity      int      `json:"capacity" validate:"gte=1,lte=500"`
	IconID        string   `json:"iconId"`
	IsPast        bool     `json:"isPast"`
	CreatorID     string   `json:"creatorId"`
}

// Fields schemaless document body
type Fields map[string]interface{}

// Document catalog entry
type Document struct {
	ID     string
	Fields Fields
}

// FromDocument maps a catalog document onto an Item, missing fields keep
// their zero value
func FromDocument(doc Document) Item {
	f := doc.Fields
	return Item{
		ID:            doc.ID,
		Category:      Category(f.String(FieldLevel)),
		Title:         f.String(FieldTitle),
		Subtitle:      f.String(FieldSubtitle),
		Description:   f.String(FieldDescription),
		MediaPath:     f.String(FieldVideoPath),
		ScheduledTime: f.String(FieldTime),
		Registered:    f.Int(FieldLikes),
		Capacity:      f.Int(FieldMaxParticipants),
		IconID:        f.String(FieldIconID),
		IsPast:        f.Bool(FieldIsPast),
		CreatorID:     f.String(FieldCreatedBy),
	}
}

// Fields document body of the item, the id is not part of it
func (it Item) Fields() Fields {
	return Fields{
		FieldLevel:           string(it.Category),
		FieldTitle:           it.Title,
		FieldSubtitle:        it.Subtitle,
		FieldDescription:     it.Description,
		FieldVideoPath:       it.MediaPath,
		FieldTime:            it.ScheduledTime,
		FieldLikes:           it.Registered,
		FieldMaxParticipants: it.Capacity,
		FieldIconID:          it.IconID,
		FieldIsPast:          it.IsPast,
		FieldCreatedBy:       it.CreatorID,
	}
}

// String field as string, non-string values are formatted
func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int field as int, unparsable values read as 0
func (f Fields) Int(name string) int {
	switch v := f[name].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	case []byte:
		n, _ := strconv.Atoi(string(v))
		return n
	}
	return 0
}

// Bool field as bool, absent reads as false
func (f Fields) Bool(name string) bool {
	switch v := f[name].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// CatalogSource remote document collection holding lessons
type CatalogSource interface {
	Query(ctx context.Context, field string, value interface{}) ([]Document, error)
	Add(ctx context.Context, fields Fields) (string, error)
	Update(ctx context.Context, id string, fields Fields) error
	// Delete returns ErrDocumentNotFound when id is already gone
	Delete(ctx context.Context, id string) error
}

// FavoriteMirror remote per-user favorites collection
type FavoriteMirror interface {
	SetFavorite(ctx context.Context, uid, itemID string, favorite bool) error
}
