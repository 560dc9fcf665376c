package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	infra "github.com/pot-code/samba-client/internal/infrastructure"
	"github.com/pot-code/samba-client/internal/infrastructure/validate"
	"github.com/pot-code/samba-client/internal/lesson"
)

// LessonHandler lesson list operations
type LessonHandler struct {
	LessonUseCase lesson.LessonUseCase
	Cache         *lesson.Cache
	Adapter       *lesson.Adapter
	Catalog       lesson.CatalogSource
	Validator     validate.Validator
	Media         MediaStore
	Websocket     *infra.Websocket
}

// NewLessonHandler .
func NewLessonHandler(
	LessonUseCase lesson.LessonUseCase,
	Cache *lesson.Cache,
	Adapter *lesson.Adapter,
	Catalog lesson.CatalogSource,
	Validator validate.Validator,
	Media MediaStore,
	Websocket *infra.Websocket,
) *LessonHandler {
	return &LessonHandler{
		LessonUseCase: LessonUseCase,
		Cache:         Cache,
		Adapter:       Adapter,
		Catalog:       Catalog,
		Validator:     Validator,
		Media:         Media,
		Websocket:     Websocket,
	}
}

func category(c echo.Context) (lesson.Category, error) {
	return lesson.ParseCategory(c.Param("category"))
}

// await waits for a fetch outcome. A superseded fetch is fine, the newer one
// publishes the list; a failed fetch still leaves a renderable snapshot.
func await(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		if errors.Is(err, lesson.ErrCacheClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleGetFavorites ...
func (lh *LessonHandler) HandleGetFavorites(c echo.Context) error {
	ids, err := lh.LessonUseCase.Favorites(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string][]string{"favorites": ids})
}

// HandleGetCreated ...
func (lh *LessonHandler) HandleGetCreated(c echo.Context) error {
	ids, err := lh.LessonUseCase.Created(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string][]string{"created": ids})
}

// HandleGetLessons renders the category list. The first request for a
// category, or one with refresh=true, waits for a fetch.
func (lh *LessonHandler) HandleGetLessons(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	list, err := lh.Cache.Observe(ctx, cat)
	if err != nil {
		return err
	}
	refresh, _ := strconv.ParseBool(c.QueryParam("refresh"))
	if snap := list.Value(); refresh || (snap.Generation == 0 && !snap.Loading) {
		if err := await(ctx, lh.Cache.Refresh(cat)); err != nil {
			return err
		}
	}
	view, err := lh.Adapter.Render(ctx, list.Value())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// HandleRefresh fetches the category again and reports the fetch outcome
func (lh *LessonHandler) HandleRefresh(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	select {
	case err = <-lh.Cache.Refresh(cat):
		if errors.Is(err, lesson.ErrStaleResult) {
			err = nil
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleCreateLesson ...
func (lh *LessonHandler) HandleCreateLesson(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	post := new(lesson.Draft)
	if err = bind(c, post); err != nil {
		return err
	}
	item, err := lh.LessonUseCase.Create(c.Request().Context(), cat, post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

// HandleEditLesson applies a partial update to the lesson
func (lh *LessonHandler) HandleEditLesson(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	post := new(lesson.EditForm)
	if err = bind(c, post); err != nil {
		return err
	}
	editor := lesson.NewCatalogEditor(lh.Catalog, lh.Validator, lh.Media, post)
	res, err := lh.Adapter.Edit(c.Request().Context(), cat, c.Param("id"), editor)
	if err != nil {
		return err
	}
	if !res.Committed {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, res.Fields)
}

// HandleDeleteLesson deletes a lesson, the caller confirms with confirm=true
func (lh *LessonHandler) HandleDeleteLesson(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	confirmed, _ := strconv.ParseBool(c.QueryParam("confirm"))
	confirm := lesson.ConfirmFunc(func(context.Context, lesson.Item) bool { return confirmed })
	if err := lh.Adapter.Delete(c.Request().Context(), cat, c.Param("id"), confirm); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleToggleFavorite ...
func (lh *LessonHandler) HandleToggleFavorite(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	favorite, err := lh.Adapter.ToggleFavorite(c.Request().Context(), cat, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"favorite": favorite})
}

type watchedForm struct {
	Watched *bool `json:"watched"`
}

// HandleSetWatched sets the watched flag, an empty body toggles it
func (lh *LessonHandler) HandleSetWatched(c echo.Context) error {
	post := new(watchedForm)
	if c.Request().ContentLength != 0 {
		if err := bind(c, post); err != nil {
			return err
		}
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if post.Watched == nil {
		watched, err := lh.Adapter.ToggleWatched(ctx, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]bool{"watched": watched})
	}
	if err := lh.Adapter.SetWatched(ctx, id, *post.Watched); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"watched": *post.Watched})
}

// HandleUploadMedia stores a lesson video and returns its local path, to be
// used as videoPath of a draft or edit
func (lh *LessonHandler) HandleUploadMedia(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file")
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	path, err := lh.Media.Save(fh.Filename, src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"videoPath": path})
}

// HandleWatch streams the rendered category over a websocket, one message
// per published snapshot. Slow readers only get the latest snapshot.
func (lh *LessonHandler) HandleWatch(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	list, err := lh.Cache.Observe(c.Request().Context(), cat)
	if err != nil {
		return err
	}
	if snap := list.Value(); snap.Generation == 0 && !snap.Loading {
		lh.Cache.Refresh(cat)
	}

	return lh.Websocket.Serve(c, func(ctx context.Context, conn *websocket.Conn) error {
		updates := make(chan lesson.Snapshot, 1)
		cancel := list.Subscribe(func(snap lesson.Snapshot) {
			// runs on the event loop, never block here
			for {
				select {
				case updates <- snap:
					return
				default:
				}
				select {
				case <-updates:
				default:
				}
			}
		})
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case snap := <-updates:
				view, err := lh.Adapter.Render(ctx, snap)
				if err != nil {
					return err
				}
				conn.SetWriteDeadline(time.Now().Add(lh.Websocket.WriteWait))
				if err := conn.WriteJSON(view); err != nil {
					return err
				}
			}
		}
	})
}
