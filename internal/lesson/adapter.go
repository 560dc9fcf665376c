package lesson

import (
	"context"
	"errors"

	"github.com/pot-code/samba-client/internal/infrastructure/validate"
	"github.com/pot-code/samba-client/internal/preference"
	"github.com/pot-code/samba-client/internal/session"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// Identity what the adapter needs from the session
type Identity interface {
	UID(ctx context.Context) string
	RequireUID(ctx context.Context) (string, error)
	IsPrivileged() bool
}

var _ Identity = &session.Session{}

// MediaStore local media files
type MediaStore interface {
	Delete(path string) error
	// Accepts reports whether path may be referenced by a lesson
	Accepts(path string) bool
}

// checkMediaPath rejects local video paths the media store does not own
func checkMediaPath(media MediaStore, path string) error {
	if path == "" || media.Accepts(path) {
		return nil
	}
	return &validate.ValidationError{Fields: []*validate.FieldError{
		validate.NewFieldError(FieldVideoPath, "videoPath must be a remote URI or an uploaded media file"),
	}}
}

// DisplayState an item merged with the local flags of the current user
type DisplayState struct {
	Item
	Favorite       bool   `json:"favorite"`
	Watched        bool   `json:"watched"`
	FavoriteLocked bool   `json:"favoriteLocked"`
	CanEdit        bool   `json:"canEdit"`
	CanDelete      bool   `json:"canDelete"`
	Icon           string `json:"icon"`
}

// View rendered category
type View struct {
	Category   Category       `json:"category"`
	Items      []DisplayState `json:"items"`
	Loading    bool           `json:"loading"`
	Error      string         `json:"error,omitempty"`
	Generation uint64         `json:"generation"`
}

// Confirmer asks the user before a destructive action
type Confirmer interface {
	Confirm(ctx context.Context, item Item) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, item Item) bool

// Confirm .
func (f ConfirmFunc) Confirm(ctx context.Context, item Item) bool {
	return f(ctx, item)
}

// EditResult outcome of an editor session
type EditResult struct {
	Committed bool
	Fields    Fields
}

// Editor edits an item and persists the changes itself
type Editor interface {
	Edit(ctx context.Context, item Item, category Category) (EditResult, error)
}

// Adapter turns cache snapshots into display states and applies user intents
type Adapter struct {
	cache    *Cache
	prefs    preference.Store
	identity Identity
	catalog  CatalogSource
	media    MediaStore
	mirror   *MirrorQueue
	icons    *IconTable
	logger   *zap.Logger
}

// NewAdapter .
func NewAdapter(
	cache *Cache,
	prefs preference.Store,
	identity Identity,
	catalog CatalogSource,
	media MediaStore,
	mirror *MirrorQueue,
	icons *IconTable,
	logger *zap.Logger,
) *Adapter {
	return &Adapter{
		cache:    cache,
		prefs:    prefs,
		identity: identity,
		catalog:  catalog,
		media:    media,
		mirror:   mirror,
		icons:    icons,
		logger:   logger,
	}
}

// Render merges snap with the favorite and watched sets. Signed-out users
// see no favorites.
func (a *Adapter) Render(ctx context.Context, snap Snapshot) (*View, error) {
	favorites := preference.NewSet()
	if uid := a.identity.UID(ctx); uid != session.UnknownUID {
		set, err := a.prefs.GetAll(ctx, preference.FavoritesOf(uid))
		if err != nil {
			return nil, err
		}
		favorites = set
	}
	watched, err := a.prefs.GetAll(ctx, preference.SetWatched)
	if err != nil {
		return nil, err
	}
	privileged := a.identity.IsPrivileged()

	view := &View{
		Category:   snap.Category,
		Items:      make([]DisplayState, 0, len(snap.Items)),
		Loading:    snap.Loading,
		Generation: snap.Generation,
	}
	if snap.Err != nil {
		view.Error = snap.Err.Error()
	}
	for _, it := range snap.Items {
		view.Items = append(view.Items, DisplayState{
			Item:           it,
			Favorite:       favorites.Has(it.ID),
			Watched:        watched.Has(it.ID),
			FavoriteLocked: it.IsPast,
			CanEdit:        privileged,
			CanDelete:      privileged,
			Icon:           a.icons.Resolve(it),
		})
	}
	return view, nil
}

// ToggleFavorite flips the favorite flag of the current user for item id.
// Past lessons are locked and return ErrFavoriteLocked untouched.
func (a *Adapter) ToggleFavorite(ctx context.Context, category Category, id string) (bool, error) {
	apmSpan, _ := apm.StartSpan(ctx, "Adapter.ToggleFavorite", "service")
	defer apmSpan.End()

	uid, err := a.identity.RequireUID(ctx)
	if err != nil {
		return false, err
	}
	var favorite bool
	if doErr := a.cache.loop.Do(ctx, func() {
		item, ok := a.cache.findOnLoop(category, id)
		if !ok {
			err = ErrNotFound
			return
		}
		set := preference.FavoritesOf(uid)
		favorite, err = a.prefs.Contains(ctx, set, id)
		if err != nil {
			return
		}
		if item.IsPast {
			err = ErrFavoriteLocked
			return
		}
		if favorite {
			err = a.prefs.RemoveFromSet(ctx, set, id)
		} else {
			err = a.prefs.AddToSet(ctx, set, id)
		}
		if err != nil {
			return
		}
		favorite = !favorite
		a.mirror.Enqueue(uid, id, favorite)
		a.cache.touchOnLoop(category)
	}); doErr != nil {
		return false, doErr
	}
	return favorite, err
}

// SetWatched marks item id as watched on this device
func (a *Adapter) SetWatched(ctx context.Context, id string, watched bool) error {
	var err error
	if doErr := a.cache.loop.Do(ctx, func() {
		err = a.setWatchedOnLoop(ctx, id, watched)
	}); doErr != nil {
		return doErr
	}
	return err
}

// ToggleWatched flips the watched flag and returns the new value
func (a *Adapter) ToggleWatched(ctx context.Context, id string) (bool, error) {
	var (
		watched bool
		err     error
	)
	if doErr := a.cache.loop.Do(ctx, func() {
		watched, err = a.prefs.Contains(ctx, preference.SetWatched, id)
		if err != nil {
			return
		}
		watched = !watched
		err = a.setWatchedOnLoop(ctx, id, watched)
	}); doErr != nil {
		return false, doErr
	}
	return watched, err
}

func (a *Adapter) setWatchedOnLoop(ctx context.Context, id string, watched bool) error {
	var err error
	if watched {
		err = a.prefs.AddToSet(ctx, preference.SetWatched, id)
	} else {
		err = a.prefs.RemoveFromSet(ctx, preference.SetWatched, id)
	}
	if err != nil {
		return err
	}
	a.cache.touchOnLoop()
	return nil
}

func (a *Adapter) lookup(ctx context.Context, category Category, id string) (Item, error) {
	var (
		item Item
		ok   bool
	)
	if err := a.cache.loop.Do(ctx, func() { item, ok = a.cache.findOnLoop(category, id) }); err != nil {
		return Item{}, err
	}
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

// Delete removes item id after confirmation. The catalog entry goes first;
// only once it is gone are the local media file and the list entry removed.
func (a *Adapter) Delete(ctx context.Context, category Category, id string, confirm Confirmer) error {
	apmSpan, _ := apm.StartSpan(ctx, "Adapter.Delete", "service")
	defer apmSpan.End()

	if !a.identity.IsPrivileged() {
		return ErrNotPrivileged
	}
	item, err := a.lookup(ctx, category, id)
	if err != nil {
		return err
	}
	if !confirm.Confirm(ctx, item) {
		return ErrCancelled
	}

	if err := a.catalog.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrDocumentNotFound) {
			return err
		}
		a.logger.Info("lesson already deleted remotely", zap.String("lesson.id", id))
	}
	if err := a.media.Delete(item.MediaPath); err != nil {
		a.logger.Warn("failed to delete lesson media",
			zap.String("lesson.id", id), zap.String("media.path", item.MediaPath), zap.Error(err))
	}
	if err := a.prefs.RemoveFromSet(ctx, preference.SetCreated, id); err != nil {
		a.logger.Warn("failed to forget created lesson", zap.String("lesson.id", id), zap.Error(err))
	}
	_, err = a.cache.RemoveLocally(ctx, category, id)
	return err
}

// Edit hands item id to editor. The editor persists its own changes, a
// committed edit is followed by a refresh of the category.
func (a *Adapter) Edit(ctx context.Context, category Category, id string, editor Editor) (EditResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "Adapter.Edit", "service")
	defer apmSpan.End()

	if !a.identity.IsPrivileged() {
		return EditResult{}, ErrNotPrivileged
	}
	item, err := a.lookup(ctx, category, id)
	if err != nil {
		return EditResult{}, err
	}
	res, err := editor.Edit(ctx, item, category)
	if err != nil || !res.Committed {
		return res, err
	}
	select {
	case err = <-a.cache.Refresh(category):
	case <-ctx.Done():
		err = ctx.Err()
	}
	if errors.Is(err, ErrStaleResult) {
		err = nil
	}
	return res, err
}
