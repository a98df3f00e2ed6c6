package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

const envPrefix = "MEETING"

type Config struct {
	App         App           `yaml:"app"`
	DatabaseURL string        `yaml:"postgresql_host" validate:"required"`
	DB          *sql.DB       `yaml:"-" validate:"-"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	MinIO       MinIO         `yaml:"minio"`
	Storage     *minio.Client `yaml:"-" validate:"-"`
	Server      Server        `yaml:"server"`
	Processor   Processor     `yaml:"processor"`
	Capture     Capture       `yaml:"capture"`
	Push        Push          `yaml:"push"`
	Auth        Auth          `yaml:"auth"`
	Log         Log           `yaml:"log"`

	warnings []string
}

type App struct {
	Environment string `yaml:"environment" validate:"oneof=production staging develop"`
}

type Server struct {
	HttpPort string `yaml:"port" validate:"required"`
	Workers  int    `yaml:"workers" validate:"min=1"`
}

type RabbitMQ struct {
	Host string `json:"host" validate:"required"`
	Port int    `json:"port" validate:"required"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Kind string `json:"kind" validate:"oneof=direct topic fanout"`
}

type MinIO struct {
	URL             string `yaml:"url" validate:"required"`
	AccessID        string `yaml:"access_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Secure          bool   `yaml:"secure"`
	Bucket          string `yaml:"bucket" validate:"required"`
	PublicURL       string `yaml:"public_url" validate:"omitempty,url"`
}

type Processor struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type Capture struct {
	Dir        string `yaml:"dir" validate:"required"`
	SampleRate int    `yaml:"sample_rate" validate:"gt=0"`
	Channels   int    `yaml:"channels" validate:"oneof=1 2"`
	FFmpegPath string `yaml:"ffmpeg_path"`
	Format     string `yaml:"format"`
	Device     string `yaml:"device"`
	Bitrate    string `yaml:"bitrate"`
}

type Push struct {
	Token string `yaml:"token"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Log struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Warnings lists what is missing or malformed in the loaded configuration.
// Load never fails on these; the server reports them at startup.
func (c *Config) Warnings() []string {
	return c.warnings
}

func (c *Config) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "develop")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 4)
	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("rabbitmq_kind", "direct")
	v.SetDefault("minio.bucket", "recordings")
	v.SetDefault("processor.base_url", "http://localhost:8000")
	v.SetDefault("processor.timeout", 30*time.Second)
	v.SetDefault("capture.dir", filepath.Join(os.TempDir(), "meeting-recorder"))
	v.SetDefault("capture.sample_rate", 44100)
	v.SetDefault("capture.channels", 1)
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		cfg.warn("no config file found in %s, using defaults and environment", path)
	}

	cfg.App = App{
		Environment: v.GetString("app.environment"),
	}
	cfg.DatabaseURL = v.GetString("postgresql_host")
	cfg.Queue = &RabbitMQ{
		Host: v.GetString("rabbitmq_host"),
		Port: v.GetInt("rabbitmq_port"),
		User: v.GetString("rabbitmq_user"),
		Pass: v.GetString("rabbitmq_pass"),
		Kind: v.GetString("rabbitmq_kind"),
	}
	cfg.MinIO = MinIO{
		URL:             v.GetString("minio.url"),
		AccessID:        v.GetString("minio.access_id"),
		SecretAccessKey: v.GetString("minio.secret_access_key"),
		Secure:          v.GetBool("minio.secure"),
		Bucket:          v.GetString("minio.bucket"),
		PublicURL:       v.GetString("minio.public_url"),
	}
	cfg.Server = Server{
		HttpPort: v.GetString("server.port"),
		Workers:  v.GetInt("server.workers"),
	}
	cfg.Processor = Processor{
		BaseURL: v.GetString("processor.base_url"),
		Timeout: v.GetDuration("processor.timeout"),
	}
	cfg.Capture = Capture{
		Dir:        v.GetString("capture.dir"),
		SampleRate: v.GetInt("capture.sample_rate"),
		Channels:   v.GetInt("capture.channels"),
		FFmpegPath: v.GetString("capture.ffmpeg_path"),
		Format:     v.GetString("capture.format"),
		Device:     v.GetString("capture.device"),
		Bitrate:    v.GetString("capture.bitrate"),
	}
	cfg.Push = Push{Token: v.GetString("push.token")}
	cfg.Auth = Auth{JWTSecret: v.GetString("auth.jwt_secret")}
	cfg.Log = Log{
		File:       v.GetString("log.file"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
	}

	cfg.validate()

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		cfg.DB = db
	}

	if cfg.MinIO.URL != "" {
		minioClient, err := minio.New(cfg.MinIO.URL, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessID, cfg.MinIO.SecretAccessKey, ""),
			Secure: cfg.MinIO.Secure,
		})
		if err != nil {
			cfg.warn("object store disabled: %v", err)
		} else {
			cfg.Storage = minioClient
		}
	}

	return cfg, nil
}

func (c *Config) validate() {
	err := validator.New().Struct(c)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		c.warn("config validation: %v", err)
		return
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			c.warn("%s is not set", fe.Namespace())
			continue
		}
		c.warn("%s has invalid value %v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
	}
}
