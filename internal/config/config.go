package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Security     SecurityConfig     `json:"security"`
	Logging      LoggingConfig      `json:"logging"`
	Map          MapConfig          `json:"map"`
	Jurisdiction JurisdictionConfig `json:"jurisdiction"`
	Moderation   ModerationConfig   `json:"moderation"`
	Storage      StorageConfig      `json:"storage"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig selects the catalog store. Driver is memory, postgres or sqlite.
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	SQLitePath     string        `json:"sqlite_path"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// SecurityConfig holds the bearer token settings
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
	Issuer    string `json:"issuer"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	Environment string `json:"environment"`
}

// MapConfig tunes live map sessions
type MapConfig struct {
	DefaultLayer   string        `json:"default_layer"`
	LocateTimeout  time.Duration `json:"locate_timeout"`
	LocateZoom     int           `json:"locate_zoom"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

// JurisdictionConfig selects how regional admins are scoped. Matcher is
// substring or geofence; geofence reads polygons from RegionsFile.
type JurisdictionConfig struct {
	Matcher      string `json:"matcher"`
	RegionsFile  string `json:"regions_file"`
	NameProperty string `json:"name_property"`
}

// ModerationConfig
type ModerationConfig struct {
	DigestCron string `json:"digest_cron"`
}

// StorageConfig enables presigning of s3:// image references
type StorageConfig struct {
	S3Enabled  bool          `json:"s3_enabled"`
	Region     string        `json:"region"`
	Endpoint   string        `json:"endpoint"`
	PathStyle  bool          `json:"path_style"`
	PresignTTL time.Duration `json:"presign_ttl"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := defaults()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "memory",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "farmtrace",
			SSLMode:        "disable",
			SQLitePath:     "farmtrace.db",
			MaxConnections: 20,
			MaxIdleConns:   5,
			MaxLifetime:    time.Hour,
		},
		Security: SecurityConfig{
			Issuer: "farmtrace",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Map: MapConfig{
			DefaultLayer:  "standard",
			LocateTimeout: 10 * time.Second,
			LocateZoom:    15,
		},
		Jurisdiction: JurisdictionConfig{
			Matcher:      "substring",
			NameProperty: "name",
		},
		Moderation: ModerationConfig{
			DigestCron: "0 0 7 * * *",
		},
		Storage: StorageConfig{
			PresignTTL: 15 * time.Minute,
		},
	}
}

func overrideWithEnv(config *Config) error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT: %w", err)
		}
		config.Server.Port = p
	}

	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = strings.ToLower(driver)
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if path := os.Getenv("DATABASE_SQLITE_PATH"); path != "" {
		config.Database.SQLitePath = path
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if layer := os.Getenv("MAP_DEFAULT_LAYER"); layer != "" {
		config.Map.DefaultLayer = layer
	}
	if timeout := os.Getenv("MAP_LOCATE_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid MAP_LOCATE_TIMEOUT: %w", err)
		}
		config.Map.LocateTimeout = d
	}
	if origins := os.Getenv("MAP_ALLOWED_ORIGINS"); origins != "" {
		config.Map.AllowedOrigins = splitList(origins)
	}

	if matcher := os.Getenv("JURISDICTION_MATCHER"); matcher != "" {
		config.Jurisdiction.Matcher = strings.ToLower(matcher)
	}
	if file := os.Getenv("JURISDICTION_REGIONS_FILE"); file != "" {
		config.Jurisdiction.RegionsFile = file
	}
	if spec := os.Getenv("MODERATION_DIGEST_CRON"); spec != "" {
		config.Moderation.DigestCron = spec
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Storage.Region = region
	}
	if enabled := os.Getenv("STORAGE_S3_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_S3_ENABLED: %w", err)
		}
		config.Storage.S3Enabled = b
	}
	if endpoint := os.Getenv("STORAGE_S3_ENDPOINT"); endpoint != "" {
		config.Storage.Endpoint = endpoint
	}
	return nil
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Jurisdiction.Matcher {
	case "substring":
	case "geofence":
		if c.Jurisdiction.RegionsFile == "" {
			return errors.New("geofence matcher needs jurisdiction.regions_file")
		}
	default:
		return fmt.Errorf("unknown jurisdiction matcher %q", c.Jurisdiction.Matcher)
	}
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
