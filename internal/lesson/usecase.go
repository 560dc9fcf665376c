package lesson

import (
	"context"

	"github.com/pot-code/samba-client/internal/infrastructure/validate"
	"github.com/pot-code/samba-client/internal/preference"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// Draft new lesson as entered by an instructor
type Draft struct {
	Title         string `json:"title" validate:"required,max=128"`
	Subtitle      string `json:"subtitle" validate:"max=128"`
	Description   string `json:"description" validate:"max=2048"`
	VideoPath     string `json:"videoPath" validate:"max=512"`
	ScheduledTime string `json:"time" validate:"required,max=64"`
	Capacity      int    `json:"maxParticipants" validate:"omitempty,gte=1,lte=500"`
	IconID        string `json:"iconId" validate:"omitempty,max=64"`
}

type LessonUseCase interface {
	Create(ctx context.Context, category Category, draft *Draft) (*Item, error)
	Favorites(ctx context.Context) ([]string, error)
	Created(ctx context.Context) ([]string, error)
}

// LessonUseCaseImpl ...
type LessonUseCaseImpl struct {
	Catalog   CatalogSource
	Cache     *Cache
	Prefs     preference.Store
	Identity  Identity
	Validator validate.Validator
	Media     MediaStore
	logger    *zap.Logger
}

var _ LessonUseCase = &LessonUseCaseImpl{}

// NewLessonUseCase ...
func NewLessonUseCase(
	Catalog CatalogSource,
	Cache *Cache,
	Prefs preference.Store,
	Identity Identity,
	Validator validate.Validator,
	Media MediaStore,
	logger *zap.Logger,
) *LessonUseCaseImpl {
	return &LessonUseCaseImpl{
		Catalog:   Catalog,
		Cache:     Cache,
		Prefs:     Prefs,
		Identity:  Identity,
		Validator: Validator,
		Media:     Media,
		logger:    logger,
	}
}

// Create validates the draft, stores it in the catalog and shows it in the
// category list right away
func (lu *LessonUseCaseImpl) Create(ctx context.Context, category Category, draft *Draft) (*Item, error) {
	apmSpan, _ := apm.StartSpan(ctx, "LessonUseCaseImpl.Create", "service")
	defer apmSpan.End()

	if !lu.Identity.IsPrivileged() {
		return nil, ErrNotPrivileged
	}
	uid, err := lu.Identity.RequireUID(ctx)
	if err != nil {
		return nil, err
	}
	if errs := lu.Validator.Struct(draft); errs != nil {
		return nil, &validate.ValidationError{Fields: errs}
	}
	if err := checkMediaPath(lu.Media, draft.VideoPath); err != nil {
		return nil, err
	}

	item := Item{
		Category:      category,
		Title:         draft.Title,
		Subtitle:      draft.Subtitle,
		Description:   draft.Description,
		MediaPath:     draft.VideoPath,
		ScheduledTime: draft.ScheduledTime,
		Capacity:      draft.Capacity,
		IconID:        draft.IconID,
		CreatorID:     uid,
	}
	if item.Capacity == 0 {
		item.Capacity = DefaultCapacity
	}
	if item.IconID == "" {
		item.IconID = DefaultIconID
	}
	if errs := lu.Validator.Struct(&item); errs != nil {
		return nil, &validate.ValidationError{Fields: errs}
	}

	id, err := lu.Catalog.Add(ctx, item.Fields())
	if err != nil {
		return nil, err
	}
	item.ID = id
	if err := lu.Prefs.AddToSet(ctx, preference.SetCreated, id); err != nil {
		lu.logger.Warn("failed to remember created lesson", zap.String("lesson.id", id), zap.Error(err))
	}
	if err := lu.Cache.InsertLocally(ctx, category, item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Favorites lesson ids the current user marked
func (lu *LessonUseCaseImpl) Favorites(ctx context.Context) ([]string, error) {
	uid, err := lu.Identity.RequireUID(ctx)
	if err != nil {
		return nil, err
	}
	set, err := lu.Prefs.GetAll(ctx, preference.FavoritesOf(uid))
	if err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}

// Created lesson ids created on this device
func (lu *LessonUseCaseImpl) Created(ctx context.Context) ([]string, error) {
	set, err := lu.Prefs.GetAll(ctx, preference.SetCreated)
	if err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}
