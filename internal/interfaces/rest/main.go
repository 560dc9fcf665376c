package rest

import (
	"expvar"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	infra "github.com/pot-code/samba-client/internal/infrastructure"
	"github.com/pot-code/samba-client/internal/infrastructure/driver"
	"github.com/pot-code/samba-client/internal/infrastructure/validate"
	"github.com/pot-code/samba-client/internal/interfaces/rest/handler"
	"github.com/pot-code/samba-client/internal/interfaces/rest/middleware"
	"github.com/pot-code/samba-client/internal/lesson"
	"github.com/pot-code/samba-client/internal/preference"
	"github.com/pot-code/samba-client/internal/session"
	"github.com/pot-code/samba-client/internal/user"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// Services components served over HTTP
type Services struct {
	Conn          driver.ITransactionalDB
	Prefs         preference.Store
	Session       *session.Session
	UserUseCase   user.UserUseCase
	LessonUseCase lesson.LessonUseCase
	Cache         *lesson.Cache
	Adapter       *lesson.Adapter
	Catalog       lesson.CatalogSource
	Media         handler.MediaStore
}

// NewServer create http transport server, call Start on the result to serve
func NewServer(option *infra.AppConfig, svc *Services, logger *zap.Logger) *echo.Echo {
	var (
		app            = echo.New()
		validator      = validate.NewValidator()
		websocket = infra.NewWebsocket(logger)
		guards    = &routeGuards{
			session: middleware.RequireSession(svc.Session),
			timeout: middleware.AbortRequest(option.RequestTimeout),
		}
	)
	app.HideBanner = true

	registerHealthCheck(app, svc.Conn, svc.Prefs, guards.timeout)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)
	}
	app.Use(middleware.AccessLog(logger, &middleware.AccessLogConfig{
		SkipPrefixes: []string{"/healthz", "/debug/"},
	}))
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: errorResponder(logger),
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())

	var (
		UserHandler   = handler.NewUserHandler(svc.UserUseCase, svc.Session, svc.Media)
		LessonHandler = handler.NewLessonHandler(
			svc.LessonUseCase, svc.Cache, svc.Adapter, svc.Catalog,
			validator, svc.Media, websocket,
		)
	)

	createEndpoint(app,
		&endpoint{
			apiVersion:  "api/v1",
			middlewares: []echo.MiddlewareFunc{echo_middleware.RequestID(), middleware.SetTraceLogger(logger)},
			groups: []*apiGroup{
				{
					prefix: "/user",
					routes: []*route{
						{method: "POST", path: "/login", handler: UserHandler.HandleSignIn},
						{method: "PUT", path: "/sign-out", handler: UserHandler.HandleSignOut},
						{method: "POST", path: "/sign-up", handler: UserHandler.HandleSignUp},
						{method: "GET", path: "/profile", handler: UserHandler.HandleGetProfile},
						{method: "PUT", path: "/profile", handler: UserHandler.HandleUpdateProfile, access: signedIn},
						{method: "PUT", path: "/profile/image", handler: UserHandler.HandleUploadProfileImage, access: signedIn},
						{method: "PUT", path: "/health", handler: UserHandler.HandleDeclareHealth, access: signedIn},
					},
				},
				{
					prefix: "/lesson",
					routes: []*route{
						{method: "GET", path: "/favorites", handler: LessonHandler.HandleGetFavorites, access: signedIn},
						{method: "GET", path: "/created", handler: LessonHandler.HandleGetCreated},
						{method: "POST", path: "/media", handler: LessonHandler.HandleUploadMedia, access: signedIn},
						{method: "GET", path: "/:category", handler: LessonHandler.HandleGetLessons},
						{method: "POST", path: "/:category/refresh", handler: LessonHandler.HandleRefresh},
						{method: "POST", path: "/:category", handler: LessonHandler.HandleCreateLesson, access: signedIn},
						{method: "PUT", path: "/:category/:id", handler: LessonHandler.HandleEditLesson, access: signedIn},
						{method: "DELETE", path: "/:category/:id", handler: LessonHandler.HandleDeleteLesson, access: signedIn},
						{method: "PUT", path: "/:category/:id/favorite", handler: LessonHandler.HandleToggleFavorite, access: signedIn},
						{method: "PUT", path: "/:category/:id/watched", handler: LessonHandler.HandleSetWatched},
					},
				},
				{
					prefix: "/ws",
					routes: []*route{
						{method: "GET", path: "/lessons/:category", handler: LessonHandler.HandleWatch, streaming: true},
					},
				},
			},
		}, guards)

	printRoutes(app, logger)
	return app
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Info("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerHealthCheck(app *echo.Echo, db driver.ITransactionalDB, prefs preference.Store, m ...echo.MiddlewareFunc) {
	app.GET("/healthz", func(c echo.Context) error {
		ctx := c.Request().Context()
		if db.Ping(ctx) == nil && prefs.Ping(ctx) == nil {
			c.NoContent(http.StatusOK)
		} else {
			c.NoContent(http.StatusServiceUnavailable)
		}
		return nil
	}, m...)
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
