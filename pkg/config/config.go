package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	DBDriver       string
	DatabaseURL    string
	DBMaxOpenConns int

	LDAP LDAPConfig

	SyncInterval time.Duration
	SyncTimeout  time.Duration
	RedisURL     string

	DecisionTimeout time.Duration

	JWTSecret          string
	AdminUsers         string
	AdminTokenTTL      time.Duration
	LoginRatePerMinute int
	CORSAllowedOrigins []string
}

// LDAPConfig holds directory connection and schema settings
type LDAPConfig struct {
	URL                string
	BindDN             string
	BindPassword       string
	UsersDN            string
	GroupsDN           string
	PrincipalAttribute string
	TagAttribute       string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	ldapTimeout, err := positiveInt("LDAP_TIMEOUT_SECONDS", "10")
	if err != nil {
		return nil, err
	}

	insecure, err := strconv.ParseBool(getEnv("LDAP_INSECURE_SKIP_VERIFY", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid LDAP_INSECURE_SKIP_VERIFY: %w", err)
	}

	syncInterval, err := positiveInt("SYNC_INTERVAL_MINUTES", "5")
	if err != nil {
		return nil, err
	}

	syncTimeout, err := positiveInt("SYNC_TIMEOUT_SECONDS", "120")
	if err != nil {
		return nil, err
	}

	decisionTimeout, err := positiveInt("DECISION_TIMEOUT_SECONDS", "5")
	if err != nil {
		return nil, err
	}

	tokenTTL, err := positiveInt("ADMIN_TOKEN_TTL_MINUTES", "60")
	if err != nil {
		return nil, err
	}

	loginRate, err := positiveInt("LOGIN_RATE_PER_MINUTE", "10")
	if err != nil {
		return nil, err
	}

	driver := getEnv("DB_DRIVER", "sqlite3")
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want sqlite3 or postgres", driver)
	}

	adminUsers := os.Getenv("ADMIN_USERS")
	if err := validateAdminUsers(adminUsers); err != nil {
		return nil, err
	}

	return &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     port,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DBDriver:       driver,
		DatabaseURL:    getEnv("DATABASE_URL", "doorgate.sqlite"),
		DBMaxOpenConns: maxOpen,
		LDAP: LDAPConfig{
			URL:                os.Getenv("LDAP_URL"),
			BindDN:             os.Getenv("LDAP_BIND_DN"),
			BindPassword:       os.Getenv("LDAP_BIND_PASSWORD"),
			UsersDN:            os.Getenv("LDAP_USERS_DN"),
			GroupsDN:           os.Getenv("LDAP_GROUPS_DN"),
			PrincipalAttribute: getEnv("LDAP_PRINCIPAL_ATTRIBUTE", "userPrincipalName"),
			TagAttribute:       getEnv("LDAP_TAG_ATTRIBUTE", "rFIDUID"),
			Timeout:            time.Duration(ldapTimeout) * time.Second,
			InsecureSkipVerify: insecure,
		},
		SyncInterval:       time.Duration(syncInterval) * time.Minute,
		SyncTimeout:        time.Duration(syncTimeout) * time.Second,
		RedisURL:           os.Getenv("REDIS_URL"),
		DecisionTimeout:    time.Duration(decisionTimeout) * time.Second,
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AdminUsers:         adminUsers,
		AdminTokenTTL:      time.Duration(tokenTTL) * time.Minute,
		LoginRatePerMinute: loginRate,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", nil),
	}, nil
}

// validateAdminUsers checks the name:role:hash shape of every entry
func validateAdminUsers(spec string) error {
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return errors.New("invalid ADMIN_USERS: entries must be name:role:bcrypt-hash")
		}
	}
	return nil
}

func positiveInt(key, defaultValue string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
