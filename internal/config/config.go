package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	AppPort          string
	APIPrefix        string
	LogLevel         string
	CORSAllowOrigins string

	DBDriver          string
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DatabaseDSN       string
	SQLitePath        string
	DBTimeout         time.Duration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBAutoMigrate     bool

	BcryptCost  int
	RabbitMQURL string

	ImagesDir   string
	WelcomePath string
}

// SetDefaults registers the default values. Credentials have no defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":3000")
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "clubsite.db")
	v.SetDefault("DB_TIMEOUT", 5*time.Second)
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("IMAGES_DIR", "./images")
	v.SetDefault("WELCOME_PATH", "/welcome.html")
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment variables win over file values.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		AppPort:          v.GetString("APP_PORT"),
		APIPrefix:        strings.TrimRight(v.GetString("API_PREFIX"), "/"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		CORSAllowOrigins: v.GetString("CORS_ALLOW_ORIGINS"),

		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:            v.GetString("DB_HOST"),
		DBPort:            v.GetInt("DB_PORT"),
		DBUser:            v.GetString("DB_USER"),
		DBPassword:        v.GetString("DB_PASSWORD"),
		DBName:            v.GetString("DB_NAME"),
		DBSSLMode:         v.GetString("DB_SSLMODE"),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		SQLitePath:        v.GetString("SQLITE_PATH"),
		DBTimeout:         v.GetDuration("DB_TIMEOUT"),
		DBMaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		DBConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		DBAutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),

		BcryptCost:  v.GetInt("BCRYPT_COST"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),

		ImagesDir:   v.GetString("IMAGES_DIR"),
		WelcomePath: v.GetString("WELCOME_PATH"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.AppPort == "" {
		return fmt.Errorf("APP_PORT is required")
	}
	if c.DBTimeout <= 0 {
		return fmt.Errorf("DB_TIMEOUT must be positive, got %s", c.DBTimeout)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}

	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseDSN != "" {
			return nil
		}
		var missing []string
		if c.DBHost == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.DBUser == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("required environment variables are not set: %v", missing)
		}
	case DriverSQLite:
		if c.SQLitePath == "" && c.DatabaseDSN == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// PostgresDSN builds the keyword/value connection string for PostgreSQL.
// DATABASE_DSN takes precedence when set.
func (c *Config) PostgresDSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	parts := []string{
		"host=" + quoteDSNValue(c.DBHost),
		fmt.Sprintf("port=%d", c.DBPort),
		"user=" + quoteDSNValue(c.DBUser),
		"dbname=" + quoteDSNValue(c.DBName),
		"sslmode=" + quoteDSNValue(c.DBSSLMode),
	}
	if c.DBPassword != "" {
		parts = append(parts, "password="+quoteDSNValue(c.DBPassword))
	}
	return strings.Join(parts, " ")
}

// SQLiteDSN returns the SQLite file path or DATABASE_DSN when set.
func (c *Config) SQLiteDSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	return c.SQLitePath
}

func quoteDSNValue(s string) string {
	if s != "" && !strings.ContainsAny(s, ` '\`) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
