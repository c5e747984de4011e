package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config is read from the environment. Everything except the stored files is
// held here; nothing else is persisted.
type Config struct {
	Host string `env:"HOST,default=0.0.0.0" validate:"required,ip"`
	Port int    `env:"PORT,default=5000" validate:"min=1,max=65535"`

	// StorageRoot is the single flat directory holding every shared file.
	// It is made absolute by Load.
	StorageRoot    string `env:"STORAGE_ROOT,default=./uploads" validate:"required"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES,default=5368709120" validate:"min=1"`

	// InstanceName becomes <name>.local on the network.
	InstanceName    string `env:"INSTANCE_NAME,default=mycloud" validate:"required,hostname_rfc1123,excludes=."`
	EnableDiscovery bool   `env:"ENABLE_DISCOVERY,default=true"`

	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	MaxConnections  int           `env:"MAX_CONNECTIONS,default=0" validate:"min=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"min=0"`
	SeedExample     bool          `env:"SEED_EXAMPLE,default=false"`
	ShowQR          bool          `env:"SHOW_QR,default=true"`
}

// Load reads the given .env files, then the process environment. Without
// arguments ./.env is read if it exists.
func Load(dotenv ...string) (Config, error) {
	if err := godotenv.Load(dotenv...); err != nil {
		if len(dotenv) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	return Parse(os.Environ())
}

// Parse builds a Config from KEY=value pairs.
func Parse(environ []string) (Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg.Normalize()
}

// Normalize canonicalizes and validates cfg. Flag overrides go through it too.
func (c Config) Normalize() (Config, error) {
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	c.InstanceName = strings.TrimSpace(c.InstanceName)
	if strings.TrimSpace(c.StorageRoot) != "" {
		abs, err := filepath.Abs(c.StorageRoot)
		if err != nil {
			return Config{}, fmt.Errorf("storage root: %w", err)
		}
		c.StorageRoot = abs
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// ListenAddr is host:port for net.Listen.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
