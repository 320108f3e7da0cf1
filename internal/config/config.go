// Package config loads server settings from an optional YAML file, the
// .env file and the process environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/csg33k/billed/internal/session"
)

type Config struct {
	Server  ServerConfig      `yaml:"server"`
	Log     LogConfig         `yaml:"log"`
	DB      DBConfig          `yaml:"db"`
	Storage StorageConfig     `yaml:"storage"`
	Session SessionConfig     `yaml:"session"`
	Bills   BillsConfig       `yaml:"bills"`
	Users   []session.Account `yaml:"users"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DBConfig selects the bill store. Driver is one of memory, sqlite,
// postgres or firestore.
type DBConfig struct {
	Driver           string `yaml:"driver"`
	Path             string `yaml:"path"`
	URL              string `yaml:"url"`
	FirestoreProject string `yaml:"firestore_project"`
}

// StorageConfig selects the attachment storage: memory or minio.
type StorageConfig struct {
	Driver string      `yaml:"driver"`
	Minio  MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type SessionConfig struct {
	Secret       string        `yaml:"secret"`
	TTL          time.Duration `yaml:"ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// BillsConfig tunes the employee screens.
type BillsConfig struct {
	SubmitMode   string        `yaml:"submit_mode"` // optimistic, consistent
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ModalWidth   int           `yaml:"modal_width"`
	FormTTL      time.Duration `yaml:"form_ttl"`
	MaxForms     int           `yaml:"max_forms"`
}

// Load reads .env (a missing file only warns), then the YAML file at path
// when it exists, then environment overrides, and finally applies defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("error loading .env file", "err", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Info("config file not found, using environment only", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.DB.Driver, "DB_DRIVER")
	setString(&c.DB.Path, "DB_PATH")
	setString(&c.DB.URL, "DATABASE_URL")
	setString(&c.DB.FirestoreProject, "FIRESTORE_PROJECT")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Storage.Minio.Bucket, "MINIO_BUCKET")
	setString(&c.Storage.Minio.Region, "MINIO_REGION")
	if v, ok := lookup("MINIO_USE_SSL"); ok {
		c.Storage.Minio.UseSSL, _ = strconv.ParseBool(v)
	}
	setString(&c.Session.Secret, "SESSION_SECRET")
	setString(&c.Bills.SubmitMode, "SUBMIT_MODE")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Path == "" {
		c.DB.Path = "billed.db"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Minio.Bucket == "" {
		c.Storage.Minio.Bucket = "billed"
	}
	if c.Storage.Minio.Region == "" {
		c.Storage.Minio.Region = "us-east-1"
	}
	if c.Storage.Minio.ExpireDays == 0 {
		c.Storage.Minio.ExpireDays = 7
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Bills.SubmitMode == "" {
		c.Bills.SubmitMode = "optimistic"
	}
	if c.Bills.WriteTimeout <= 0 {
		c.Bills.WriteTimeout = 10 * time.Second
	}
	if c.Bills.ModalWidth <= 0 {
		c.Bills.ModalWidth = 800
	}
	if c.Bills.FormTTL <= 0 {
		c.Bills.FormTTL = time.Hour
	}
	if c.Bills.MaxForms <= 0 {
		c.Bills.MaxForms = 1000
	}
}

// Validate rejects unknown drivers and missing settings they depend on.
func (c *Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.DB.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case "firestore":
		if c.DB.FirestoreProject == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT is required for the firestore driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q", c.DB.Driver))
	}
	switch c.Storage.Driver {
	case "memory":
	case "minio":
		if c.Storage.Minio.Endpoint == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT is required for the minio driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Bills.SubmitMode {
	case "optimistic", "consistent":
	default:
		errs = append(errs, fmt.Errorf("unknown submit mode %q", c.Bills.SubmitMode))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
