package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	infra "github.com/pot-code/samba-client/internal/infrastructure"
	"github.com/pot-code/samba-client/internal/infrastructure/auth"
	"github.com/pot-code/samba-client/internal/infrastructure/driver"
	"github.com/pot-code/samba-client/internal/infrastructure/eventloop"
	"github.com/pot-code/samba-client/internal/infrastructure/logging"
	"github.com/pot-code/samba-client/internal/infrastructure/uuid"
	"github.com/pot-code/samba-client/internal/infrastructure/validate"
	"github.com/pot-code/samba-client/internal/interfaces/rest"
	"github.com/pot-code/samba-client/internal/lesson"
	"github.com/pot-code/samba-client/internal/media"
	"github.com/pot-code/samba-client/internal/preference"
	"github.com/pot-code/samba-client/internal/session"
	"github.com/pot-code/samba-client/internal/user"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		log.Fatalf("Failed to create DB connection: %s\n", err)
	}
	defer dbConn.Close(context.Background())
	logger.Debug("Create catalog connection instance", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)
	if option.Database.Migrate {
		if err := user.Migrate(ctx, dbConn); err != nil {
			log.Fatalf("Failed to migrate users: %s\n", err)
		}
		if err := lesson.Migrate(ctx, dbConn); err != nil {
			log.Fatalf("Failed to migrate lessons: %s\n", err)
		}
	}

	prefs, err := openPreferences(ctx, option)
	if err != nil {
		log.Fatalf("Failed to open preference store: %s\n", err)
	}
	defer prefs.Close(context.Background())
	if deviceID, err := preference.DeviceID(ctx, prefs); err == nil {
		logger = logger.With(zap.String("device.id", deviceID))
	} else {
		logger.Warn("no device id", zap.Error(err))
	}

	UUIDGenerator := uuid.NewNanoIDGenerator(option.Security.IDLength)
	mediaStore, err := media.NewStore(afero.NewOsFs(), option.Media.Dir, UUIDGenerator, logger)
	if err != nil {
		log.Fatalf("Failed to open media directory: %s\n", err)
	}

	var (
		Validator     = validate.NewValidator()
		JWTUtil       = auth.NewJWTUtil(option.Security.JWTMethod, option.Security.JWTSecret, option.Security.SessionTimeout)
		UserRepo      = user.NewUserRepository(dbConn, UUIDGenerator)
		UserUseCase   = user.NewUserUseCase(UserRepo, prefs, JWTUtil, Validator, option.Security.RetryTimeout, logger)
		Session       = session.New(UserUseCase, prefs, logger)
	)
	if err := Session.Load(ctx); err != nil {
		log.Fatalf("Failed to restore session: %s\n", err)
	}
	if _, err := Session.RequireUID(ctx); err == nil {
		if err := Session.Resync(ctx, UserUseCase); err != nil {
			logger.Warn("failed to resync profile, using the cached one", zap.Error(err))
		}
	}

	loop := eventloop.New(256)
	defer loop.Close()

	var (
		Catalog = lesson.NewSQLCatalog(dbConn, UUIDGenerator)
		Cache   = lesson.NewCache(loop, Catalog, logger,
			lesson.WithOrder(option.Lesson.Sort),
			lesson.WithFetchTimeout(option.Lesson.FetchTimeout))
		Mirror = lesson.NewMirrorQueue(lesson.NewSQLFavoriteMirror(dbConn), logger,
			option.Lesson.MirrorRetryInterval, option.Lesson.MirrorMaxAttempts)
		Adapter = lesson.NewAdapter(Cache, prefs, Session, Catalog, mediaStore, Mirror,
			lesson.DefaultIcons(), logger)
		LessonUseCase = lesson.NewLessonUseCase(Catalog, Cache, prefs, Session, Validator, mediaStore, logger)
	)
	go Mirror.Run(ctx)

	app := rest.NewServer(option, &rest.Services{
		Conn:          dbConn,
		Prefs:         prefs,
		Session:       Session,
		UserUseCase:   UserUseCase,
		LessonUseCase: LessonUseCase,
		Cache:         Cache,
		Adapter:       Adapter,
		Catalog:       Catalog,
		Media:         mediaStore,
	}, logger)

	go func() {
		if err := app.Start(fmt.Sprintf("%s:%d", option.Host, option.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server", zap.Error(err))
	}
	if err := Mirror.Flush(shutdownCtx); err != nil {
		logger.Warn("favorite mirror writes left pending", zap.Int("pending", Mirror.Pending()), zap.Error(err))
	}
	if err := Cache.Close(shutdownCtx); err != nil {
		logger.Warn("failed to close lesson cache", zap.Error(err))
	}
}

// openPreferences the device preference store, a local sqlite file or a
// shared redis server
func openPreferences(ctx context.Context, option *infra.AppConfig) (preference.Store, error) {
	switch option.Preference.Driver {
	case "redis":
		kv := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
		if err := kv.Ping(ctx); err != nil {
			kv.Close()
			return nil, err
		}
		return preference.NewKVStore(kv, option.Preference.Namespace), nil
	default:
		conn, err := driver.GetDBConnection(&driver.DBConfig{
			Driver: driver.DriverSQLite,
			Host:   option.Preference.Path,
		})
		if err != nil {
			return nil, err
		}
		store, err := preference.NewSQLStore(ctx, conn, option.Preference.Namespace)
		if err != nil {
			conn.Close(ctx)
			return nil, err
		}
		return store, nil
	}
}
