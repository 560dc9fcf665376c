package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "SAMBA"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	Database       struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=mysql postgres sqlite"`  // driver name
		Host     string `mapstructure:"host" json:"host" yaml:"host" validate:"required"`                            // server host, or file path for sqlite
		MaxConn  int32  `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn"`                                       // maximum opening connections number
		Password string `mapstructure:"password" json:"password" yaml:"password"`                                    // db password
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                                // server port
		Protocol string `mapstructure:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=tcp udp"` // connection protocol, eg.tcp
		Query    string `mapstructure:"query" json:"query" yaml:"query"`                                             // DSN query parameter
		Schema   string `mapstructure:"schema" json:"schema" yaml:"schema"`                                          // use schema
		User     string `mapstructure:"username" json:"username" yaml:"username"`                                    // db username
		Migrate  bool   `mapstructure:"migrate" json:"migrate" yaml:"migrate"`                                       // create tables on start
	} `mapstructure:"database" json:"database" yaml:"database"`
	Preference struct {
		Driver    string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=sqlite redis"`
		Path      string `mapstructure:"path" json:"path" yaml:"path"` // sqlite file
		Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace" validate:"required"`
	} `mapstructure:"preference" json:"preference" yaml:"preference"`
	KVStore struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"`             // bind host address
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`             // bind listen port
		Password string `mapstructure:"password" json:"password" yaml:"password"` // password for security reasons
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	Media struct {
		Dir string `mapstructure:"dir" json:"dir" yaml:"dir" validate:"required"` // local media directory
	} `mapstructure:"media" json:"media" yaml:"media"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDLength       int           `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=8"` // length of generated ID for entities
		JWTMethod      string        `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS384 HS512"`
		JWTSecret      string        `mapstructure:"jwt_secret" json:"jwt_secret" yaml:"jwt_secret" validate:"required"`
		SessionTimeout time.Duration `mapstructure:"session_timeout" json:"session_timeout" yaml:"session_timeout"` // lifetime of the stored session token
		RetryTimeout   time.Duration `mapstructure:"retry_timeout" json:"retry_timeout" yaml:"retry_timeout"`       // how long a locked account waits
	} `mapstructure:"security" json:"security" yaml:"security"`
	Lesson struct {
		Sort                string        `mapstructure:"sort" json:"sort" yaml:"sort" validate:"oneof=none schedule title"`
		FetchTimeout        time.Duration `mapstructure:"fetch_timeout" json:"fetch_timeout" yaml:"fetch_timeout"`
		MirrorRetryInterval time.Duration `mapstructure:"mirror_retry_interval" json:"mirror_retry_interval" yaml:"mirror_retry_interval"`
		MirrorMaxAttempts   int           `mapstructure:"mirror_max_attempts" json:"mirror_max_attempts" yaml:"mirror_max_attempts" validate:"min=1"`
	} `mapstructure:"lesson" json:"lesson" yaml:"lesson"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config using viper, a .env file in the working
// directory is loaded first if present
func InitConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// app
	pflag.String("host", "", "binding address")
	pflag.String("app_id", "samba", "application identifier (required)")
	pflag.String("env", EnvDevelopment, "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8081, "listening port")
	pflag.Duration("request_timeout", 30*time.Second, "request timeout(m, s and h units are supported), eg.30s")

	// catalog database
	pflag.String("database.driver", "sqlite", "catalog database driver, one of mysql, postgres, sqlite")
	pflag.String("database.host", "catalog.db", "database host, or the database file if sqlite is used")
	pflag.Int("database.port", 3306, "database server port")
	pflag.String("database.protocol", "", "connection protocol(if mysql is used, this flag must be set), eg.tcp")
	pflag.String("database.username", "", "database username")
	pflag.String("database.password", "", "database password")
	pflag.String("database.schema", "", "database schema")
	pflag.String("database.query", "", "additional DSN query parameters('?' is auto prefixed)")
	pflag.Int32("database.maxconn", 20, "max connection count, ignored by sqlite")
	pflag.Bool("database.migrate", true, "create missing tables on start")

	// preference store
	pflag.String("preference.driver", "sqlite", "preference store backend, sqlite or redis")
	pflag.String("preference.path", "preferences.db", "sqlite preference file")
	pflag.String("preference.namespace", "samba", "preference namespace, keeps several installs apart on a shared backend")

	// kv storage
	pflag.String("kv.host", "127.0.0.1", "kv host")
	pflag.Int("kv.port", 6379, "kv server port")
	pflag.String("kv.password", "", "kv server password")

	// media
	pflag.String("media.dir", "media", "directory for lesson videos and profile images")

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// security
	pflag.Int("security.id_length", 20, "set length of generated ID for entities")
	pflag.String("security.jwt_method", "HS256", "hash algorithm used for session tokens")
	pflag.String("security.jwt_secret", "", "session token secret (required)")
	pflag.Duration("security.session_timeout", 30*24*time.Hour, "session token lifetime(m, s and h units are supported)")
	pflag.Duration("security.retry_timeout", 1*time.Hour, "lock time after too many failed sign-ins")

	// lesson
	pflag.String("lesson.sort", "schedule", "lesson list order, one of none, schedule, title")
	pflag.Duration("lesson.fetch_timeout", 10*time.Second, "catalog query timeout")
	pflag.Duration("lesson.mirror_retry_interval", 30*time.Second, "retry interval of favorite mirror writes")
	pflag.Int("lesson.mirror_max_attempts", 5, "attempts before a favorite mirror write is dropped")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "-" || name == "" {
			name = fld.Tag.Get("yaml")
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})
	err := validate.Struct(config)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		log.Fatalf("Failed to validate config: %s", err)
	}
	if err == nil {
		return nil
	}

	var msg []string
	for _, field := range err.(validator.ValidationErrors) {
		namespace := field.Namespace()
		fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		switch field.Tag() {
		case "required":
			msg = append(msg, fmt.Sprintf("%s is required", fieldName))
		case "oneof":
			msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
		case "min":
			msg = append(msg, fmt.Sprintf("%s must be at least %s", fieldName, field.Param()))
		}
	}
	if len(msg) > 0 {
		return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
	}
	return nil
}
